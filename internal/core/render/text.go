package render

import (
	"fmt"
	"strings"

	"antiposta.dev/testserver/internal/core/request"
)

func (r *Renderer) renderText(d *request.Description) ([]byte, error) {
	query, err := prettyJSON(d.Query)
	if err != nil {
		return nil, err
	}
	body, err := bodyText(d.Body)
	if err != nil {
		return nil, err
	}

	headerLines := make([]string, len(d.Headers))
	for i, h := range d.Headers {
		headerLines[i] = h.Name + ": " + h.Value
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\nRequest Details:\n----------------\n%s %s %s\n", d.Method, d.Path, d.HTTPVersion)
	fmt.Fprintf(&b, "\nHeaders:\n--------\n%s\n", strings.Join(headerLines, "\n"))
	fmt.Fprintf(&b, "\nQuery Parameters:\n----------------\n%s\n", query)
	fmt.Fprintf(&b, "\nBody:\n-----\n%s\n", body)
	fmt.Fprintf(&b, "\nClient Info:\n-----------\nIP Address: %s\nTimestamp: %s\nServer: %s\n",
		d.ClientIP, r.humanTime(d.Timestamp), r.serverName())

	return []byte(b.String()), nil
}
