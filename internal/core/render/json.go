package render

import "antiposta.dev/testserver/internal/core/request"

// jsonDocument fixes the member order of the JSON response
type jsonDocument struct {
	Method      request.Method  `json:"method"`
	Path        string          `json:"path"`
	HTTPVersion string          `json:"http_version"`
	Headers     request.Headers `json:"headers"`
	ClientIP    string          `json:"client_ip"`
	QueryParams request.Values  `json:"query_params"`
	Body        request.Body    `json:"body"`
	Timestamp   float64         `json:"timestamp"`
	Server      string          `json:"server"`
}

func (r *Renderer) renderJSON(d *request.Description) ([]byte, error) {
	return prettyJSON(jsonDocument{
		Method:      d.Method,
		Path:        d.Path,
		HTTPVersion: d.HTTPVersion,
		Headers:     d.Headers,
		ClientIP:    d.ClientIP,
		QueryParams: d.Query,
		Body:        d.Body,
		Timestamp:   d.Seconds(),
		Server:      r.serverName(),
	})
}
