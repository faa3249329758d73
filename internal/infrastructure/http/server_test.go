package http

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"antiposta.dev/testserver/internal/application/services"
	"antiposta.dev/testserver/internal/core/render"
	"antiposta.dev/testserver/internal/core/request"
	"antiposta.dev/testserver/internal/monitoring"
)

// Local test helpers

type handlerFunc func(ctx context.Context, in request.Incoming) (*services.Response, error)

func (f handlerFunc) Handle(ctx context.Context, in request.Incoming) (*services.Response, error) {
	return f(ctx, in)
}

type recordingObserver struct {
	mu      sync.Mutex
	entries []monitoring.Entry
}

func (o *recordingObserver) Observe(e monitoring.Entry) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.entries = append(o.entries, e)
}

func (o *recordingObserver) all() []monitoring.Entry {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]monitoring.Entry(nil), o.entries...)
}

func echoService() *services.EchoService {
	return services.NewEchoService(request.NewDecoder(), render.NewRenderer(""), nil)
}

func newTestServer(t *testing.T, handler Handler, opts Options) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(NewServer(handler, opts).Router())
	t.Cleanup(ts.Close)
	return ts
}

// rawRequest sends a hand-written request and returns the parsed response
func rawRequest(t *testing.T, addr, raw string) *http.Response {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	_, err = io.WriteString(conn, raw)
	require.NoError(t, err)

	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// TestServer_EchoesJSONRequest tests a full JSON round trip through the router
func TestServer_EchoesJSONRequest(t *testing.T) {
	ts := newTestServer(t, echoService(), Options{})

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/users?active=true&tag=a&tag=b", strings.NewReader(`{"name":"Alice","age":30}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "Antiposta-Test-Server/1.0", resp.Header.Get("Server"))
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	var doc map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Equal(t, "POST", doc["method"])
	assert.Equal(t, "/api/users?active=true&tag=a&tag=b", doc["path"])
	assert.Equal(t, "HTTP/1.1", doc["http_version"])
	assert.Equal(t, "127.0.0.1", doc["client_ip"])
	assert.Equal(t, map[string]any{"active": []any{"true"}, "tag": []any{"a", "b"}}, doc["query_params"])
	assert.Equal(t, map[string]any{"name": "Alice", "age": float64(30)}, doc["body"])

	headers, ok := doc["headers"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, strings.TrimPrefix(ts.URL, "http://"), headers["Host"])
}

// TestServer_PathsAreNotCleaned tests that dot segments and double slashes are echoed verbatim
func TestServer_PathsAreNotCleaned(t *testing.T) {
	ts := newTestServer(t, echoService(), Options{})

	resp := rawRequest(t, ts.Listener.Addr().String(),
		"GET //a/../b/./c HTTP/1.1\r\nHost: example\r\nAccept: application/json\r\nConnection: close\r\n\r\n")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var doc map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Equal(t, "//a/../b/./c", doc["path"])
}

// TestServer_OptionsAsterisk_GetsCORSHeaders tests the server-wide OPTIONS form
func TestServer_OptionsAsterisk_GetsCORSHeaders(t *testing.T) {
	ts := newTestServer(t, echoService(), Options{})

	resp := rawRequest(t, ts.Listener.Addr().String(),
		"OPTIONS * HTTP/1.1\r\nHost: example\r\nConnection: close\r\n\r\n")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "GET, POST, PUT, DELETE, PATCH, OPTIONS", resp.Header.Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Empty(t, body)
}

// TestServer_StatusMapping tests how handler outcomes map onto status codes
func TestServer_StatusMapping(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		handler     Handler
		wantStatus  int
		description string
	}{
		{
			name:        "UnsupportedVerb_501",
			method:      "TRACE",
			handler:     echoService(),
			wantStatus:  http.StatusNotImplemented,
			description: "Verbs outside the echo set are not implemented",
		},
		{
			name:   "HandlerError_500",
			method: http.MethodGet,
			handler: handlerFunc(func(context.Context, request.Incoming) (*services.Response, error) {
				return nil, errors.New("render xml: broken")
			}),
			wantStatus:  http.StatusInternalServerError,
			description: "Rendering faults become a generic 500",
		},
		{
			name:   "HandlerPanic_500",
			method: http.MethodGet,
			handler: handlerFunc(func(context.Context, request.Incoming) (*services.Response, error) {
				panic("template exploded")
			}),
			wantStatus:  http.StatusInternalServerError,
			description: "Panics are recovered into a generic 500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, tt.handler, Options{})

			req, err := http.NewRequest(tt.method, ts.URL+"/x", nil)
			require.NoError(t, err)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode, tt.description)
			body, _ := io.ReadAll(resp.Body)
			assert.NotContains(t, string(body), "exploded", "fault details stay in the log")
			assert.NotContains(t, string(body), "broken", "fault details stay in the log")
		})
	}
}

// TestServer_Head_HasNoBody tests HEAD against the GET headers. The response
// headers match except Content-Length: HEAD never renders a body, so no length
// is declared for it.
func TestServer_Head_HasNoBody(t *testing.T) {
	ts := newTestServer(t, echoService(), Options{})

	get, err := http.Get(ts.URL + "/h")
	require.NoError(t, err)
	get.Body.Close()

	head, err := http.Head(ts.URL + "/h")
	require.NoError(t, err)
	defer head.Body.Close()

	body, err := io.ReadAll(head.Body)
	require.NoError(t, err)
	assert.Empty(t, body)
	assert.Equal(t, http.StatusOK, head.StatusCode)
	for _, name := range []string{"Content-Type", "Server", "Access-Control-Allow-Origin", "Access-Control-Allow-Methods", "Access-Control-Allow-Headers"} {
		assert.Equal(t, get.Header.Get(name), head.Header.Get(name), name)
	}
	assert.NotEmpty(t, get.Header.Get("Content-Length"))
	assert.Empty(t, head.Header.Get("Content-Length"))
}

// TestServer_AccessLogAndObserver tests per-request logging and the live feed hook
func TestServer_AccessLogAndObserver(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	obs := &recordingObserver{}
	ts := newTestServer(t, echoService(), Options{Logger: zap.New(core).Sugar(), Observer: obs})

	resp, err := http.Get(ts.URL + "/logged?q=1")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "GET", fields["method"])
	assert.Equal(t, "/logged?q=1", fields["target"])
	assert.EqualValues(t, http.StatusOK, fields["status"])
	assert.EqualValues(t, len(body), fields["bytes"])

	seen := obs.all()
	require.Len(t, seen, 1)
	assert.Equal(t, "/logged?q=1", seen[0].Path)
	assert.Equal(t, http.StatusOK, seen[0].Status)
	assert.Equal(t, "text/plain", seen[0].Format)
	assert.Equal(t, "127.0.0.1", seen[0].ClientIP)
}

// TestServer_StartShutdown tests the listener lifecycle
func TestServer_StartShutdown(t *testing.T) {
	srv := NewServer(echoService(), Options{Addr: "127.0.0.1:0"})
	require.NoError(t, srv.Start())
	assert.Error(t, srv.Start(), "double start is rejected")
	require.NotZero(t, srv.Port())

	resp, err := http.Get(fmt.Sprintf("http://%s/ping", srv.Addr()))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.NoError(t, <-srv.Done())
	assert.Error(t, srv.Shutdown(ctx), "second shutdown is rejected")
}

// TestServer_Start_PortInUse tests bind failures
func TestServer_Start_PortInUse(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	srv := NewServer(echoService(), Options{Addr: l.Addr().String()})
	assert.Error(t, srv.Start())
}

// TestHeadersOf_Order tests the flattened header order
func TestHeadersOf_Order(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Host = "example.com"
	r.Header = http.Header{
		"X-B":    {"2", "3"},
		"Accept": {"*/*"},
		"X-A":    {"1"},
	}

	got := headersOf(r)

	assert.Equal(t, request.Headers{
		{Name: "Host", Value: "example.com"},
		{Name: "Accept", Value: "*/*"},
		{Name: "X-A", Value: "1"},
		{Name: "X-B", Value: "2"},
		{Name: "X-B", Value: "3"},
	}, got)
}

// TestClientIP_Forms tests remote address parsing
func TestClientIP_Forms(t *testing.T) {
	assert.Equal(t, "192.0.2.1", clientIP("192.0.2.1:5555"))
	assert.Equal(t, "::1", clientIP("[::1]:5555"))
	assert.Equal(t, "pipe", clientIP("pipe"))
}
