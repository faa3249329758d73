package ports

import (
	"antiposta.dev/testserver/internal/core/render"
	"antiposta.dev/testserver/internal/core/request"
)

// RequestDecoder builds the description of an incoming request
type RequestDecoder interface {
	Decode(in request.Incoming) *request.Description
}

// ResponseRenderer renders descriptions in a negotiated format
type ResponseRenderer interface {
	// Headers returns the headers sent with a response in format f
	Headers(f render.Format) request.Headers

	// Render produces the full response for d
	Render(d *request.Description, f render.Format) (*render.Rendered, error)
}

// RequestInspector observes every decoded request before it is rendered
type RequestInspector interface {
	Inspect(d *request.Description)
}
