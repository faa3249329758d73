package logging

import (
	"github.com/davecgh/go-spew/spew"
	"go.uber.org/zap"

	"antiposta.dev/testserver/internal/core/request"
)

// DumpInspector writes a structural dump of each decoded request at debug level
type DumpInspector struct {
	logger *zap.Logger
	config *spew.ConfigState
}

// NewDumpInspector creates an inspector logging through logger
func NewDumpInspector(logger *zap.Logger) *DumpInspector {
	return &DumpInspector{
		logger: logger,
		config: &spew.ConfigState{
			Indent:                  "  ",
			DisableMethods:          true,
			DisablePointerAddresses: true,
			DisableCapacities:       true,
			SortKeys:                true,
			MaxDepth:                8,
		},
	}
}

// Inspect implements ports.RequestInspector
func (i *DumpInspector) Inspect(d *request.Description) {
	if ce := i.logger.Check(zap.DebugLevel, "decoded request"); ce != nil {
		ce.Write(
			zap.String("method", d.Method.String()),
			zap.String("path", d.Path),
			zap.String("body_kind", d.Body.Kind().String()),
			zap.String("dump", i.Dump(d)),
		)
	}
}

// Dump renders d with spew
func (i *DumpInspector) Dump(d *request.Description) string {
	return i.config.Sdump(d)
}
