package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"antiposta.dev/testserver/internal/application/ports"
	"antiposta.dev/testserver/internal/core/render"
	"antiposta.dev/testserver/internal/core/request"
)

// ErrUnsupportedMethod is returned for verbs the echo server does not answer
var ErrUnsupportedMethod = errors.New("unsupported method")

// Response is what the transport writes back for one request
type Response struct {
	Status  int
	Format  render.Format
	Headers request.Headers
	Body    []byte
}

// EchoService answers every request with a description of itself.
// It keeps no state between calls and is safe for concurrent use.
type EchoService struct {
	decoder   ports.RequestDecoder
	renderer  ports.ResponseRenderer
	inspector ports.RequestInspector
}

// NewEchoService creates a new echo service. inspector may be nil.
func NewEchoService(
	decoder ports.RequestDecoder,
	renderer ports.ResponseRenderer,
	inspector ports.RequestInspector,
) *EchoService {
	return &EchoService{
		decoder:   decoder,
		renderer:  renderer,
		inspector: inspector,
	}
}

// Handle answers one fully-read request.
//
// OPTIONS is answered without looking at the request. HEAD is decoded and
// negotiated like GET but gets no body. GET, POST, PUT, DELETE and PATCH
// receive the rendered description. Any other verb yields ErrUnsupportedMethod.
// Rendering faults are returned to the caller.
func (s *EchoService) Handle(ctx context.Context, in request.Incoming) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch in.Method {
	case request.MethodOptions:
		return s.preflight(), nil
	case request.MethodHead:
		return s.head(in), nil
	case request.MethodGet, request.MethodPost, request.MethodPut, request.MethodDelete, request.MethodPatch:
		return s.echo(in)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, in.Method)
	}
}

func (s *EchoService) preflight() *Response {
	return &Response{
		Status:  http.StatusOK,
		Format:  render.FormatJSON,
		Headers: s.renderer.Headers(render.FormatJSON),
	}
}

func (s *EchoService) head(in request.Incoming) *Response {
	s.decode(in)
	format := negotiate(in.Headers)

	return &Response{
		Status:  http.StatusOK,
		Format:  format,
		Headers: s.renderer.Headers(format),
	}
}

func (s *EchoService) echo(in request.Incoming) (*Response, error) {
	desc := s.decode(in)
	format := negotiate(in.Headers)

	out, err := s.renderer.Render(desc, format)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s %s: %w", in.Method, in.Target, err)
	}

	return &Response{
		Status:  out.Status,
		Format:  format,
		Headers: out.Headers,
		Body:    out.Body,
	}, nil
}

func (s *EchoService) decode(in request.Incoming) *request.Description {
	desc := s.decoder.Decode(in)
	if s.inspector != nil {
		s.inspector.Inspect(desc)
	}
	return desc
}

func negotiate(headers request.Headers) render.Format {
	return render.Negotiate(headers.Get("Accept"), headers.Get("Content-Type"))
}
