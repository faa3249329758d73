package http

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"

	"antiposta.dev/testserver/internal/core/request"
)

// toIncoming reads r fully and converts it to the transport-neutral request form
func toIncoming(r *http.Request) (request.Incoming, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return request.Incoming{}, fmt.Errorf("failed to read request body: %w", err)
	}

	target := r.RequestURI
	if target == "" {
		target = r.URL.RequestURI()
	}

	return request.Incoming{
		Method:   request.Method(r.Method),
		Target:   target,
		Version:  r.Proto,
		ClientIP: clientIP(r.RemoteAddr),
		Headers:  headersOf(r),
		Body:     body,
	}, nil
}

// headersOf flattens r's header map. net/http keeps neither the wire order
// across names nor the Host line, so Host comes first and the rest follow
// sorted by canonical name, each name's values in arrival order.
func headersOf(r *http.Request) request.Headers {
	headers := make(request.Headers, 0, len(r.Header)+1)
	if r.Host != "" {
		headers = append(headers, request.Header{Name: "Host", Value: r.Host})
	}

	names := make([]string, 0, len(r.Header))
	for name := range r.Header {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, value := range r.Header[name] {
			headers = append(headers, request.Header{Name: name, Value: value})
		}
	}
	return headers
}

func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

// writeResponse copies headers in order, then the status line and body
func writeResponse(w http.ResponseWriter, status int, headers request.Headers, body []byte) error {
	h := w.Header()
	for _, header := range headers {
		h.Add(header.Name, header.Value)
	}
	w.WriteHeader(status)

	if len(body) == 0 {
		return nil
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("failed to write response body: %w", err)
	}
	return nil
}
