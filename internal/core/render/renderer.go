package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"antiposta.dev/testserver/internal/core/request"
)

// DefaultServerName identifies the server in headers and rendered documents
const DefaultServerName = "Antiposta-Test-Server/1.0"

// CORS header values sent with every response
const (
	AllowOrigin  = "*"
	AllowMethods = "GET, POST, PUT, DELETE, PATCH, OPTIONS"
	AllowHeaders = "Content-Type"
)

// Rendered is a complete response produced by the Renderer
type Rendered struct {
	Status  int
	Headers request.Headers
	Body    []byte
}

// Renderer turns descriptions into response documents. It holds no
// per-request state and is safe for concurrent use.
type Renderer struct {
	// Server is reported in the Server header and in every document
	Server string
	// RawHTML disables escaping in the HTML document
	RawHTML bool
	// Location is used for human-readable timestamps, time.Local when nil
	Location *time.Location
}

// NewRenderer returns a Renderer reporting server as its identity
func NewRenderer(server string) *Renderer {
	if server == "" {
		server = DefaultServerName
	}
	return &Renderer{Server: server}
}

// Headers returns the response headers for format f
func (r *Renderer) Headers(f Format) request.Headers {
	return request.Headers{
		{Name: "Content-Type", Value: f.ContentType()},
		{Name: "Server", Value: r.serverName()},
		{Name: "Access-Control-Allow-Origin", Value: AllowOrigin},
		{Name: "Access-Control-Allow-Methods", Value: AllowMethods},
		{Name: "Access-Control-Allow-Headers", Value: AllowHeaders},
	}
}

// Render produces the status, headers and body describing d in format f
func (r *Renderer) Render(d *request.Description, f Format) (*Rendered, error) {
	var (
		body []byte
		err  error
	)

	switch f {
	case FormatJSON:
		body, err = r.renderJSON(d)
	case FormatHTML:
		body, err = r.renderHTML(d)
	case FormatXML:
		body, err = r.renderXML(d)
	case FormatText:
		body, err = r.renderText(d)
	default:
		err = fmt.Errorf("unknown format %d", f)
	}
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", f, err)
	}

	return &Rendered{
		Status:  http.StatusOK,
		Headers: r.Headers(f),
		Body:    body,
	}, nil
}

func (r *Renderer) serverName() string {
	if r.Server == "" {
		return DefaultServerName
	}
	return r.Server
}

// humanTime formats t like "Mon Jan  2 15:04:05 2006"
func (r *Renderer) humanTime(t time.Time) string {
	loc := r.Location
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(time.ANSIC)
}

// prettyJSON encodes v with two-space indentation and no HTML escaping
func prettyJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// compactJSON encodes v on a single line without HTML escaping
func compactJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return string(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// scalarText renders a structured value where plain text is expected
func scalarText(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case request.Binary:
		return s.String(), nil
	case json.Number:
		return s.String(), nil
	}
	return compactJSON(v)
}

// bodyText renders the body for the HTML and text documents: pretty JSON
// when structured, the verbatim text otherwise. A request without a body
// renders as an empty string, so its block in both documents stays empty
// rather than showing a placeholder.
func bodyText(b request.Body) (string, error) {
	switch {
	case b.IsStructured():
		raw, err := prettyJSON(b)
		return string(raw), err
	case b.Kind() == request.BodyText:
		return b.Text(), nil
	default:
		return "", nil
	}
}
