package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"antiposta.dev/testserver/internal/application/services"
	"antiposta.dev/testserver/internal/core/request"
	"antiposta.dev/testserver/internal/monitoring"
)

// Handler answers one fully-read request
type Handler interface {
	Handle(ctx context.Context, in request.Incoming) (*services.Response, error)
}

// Observer receives a summary of every answered request
type Observer interface {
	Observe(monitoring.Entry)
}

// Options configures a Server
type Options struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	Logger            *zap.SugaredLogger
	Observer          Observer
}

// Server is the HTTP front of the echo service
type Server struct {
	handler  Handler
	logger   *zap.SugaredLogger
	observer Observer
	router   *mux.Router

	mu        sync.Mutex
	addr      string
	server    *http.Server
	listener  net.Listener
	isRunning bool
	done      chan error
}

// NewServer creates a server answering every path and verb through handler
func NewServer(handler Handler, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	s := &Server{
		handler:  handler,
		logger:   logger,
		observer: opts.Observer,
		addr:     opts.Addr,
	}
	s.router = s.setupRoutes()
	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: opts.ReadHeaderTimeout,
		// OPTIONS * must reach the router to get the CORS headers
		DisableGeneralOptionsHandler: true,
		ErrorLog:                     zap.NewStdLog(logger.Desugar()),
	}
	return s
}

// setupRoutes builds the catch-all router. Paths are never cleaned or
// redirected; every target is echoed as sent.
func (s *Server) setupRoutes() *mux.Router {
	r := mux.NewRouter().SkipClean(true)
	r.Use(s.logRequests, s.recoverPanics)
	r.PathPrefix("/").HandlerFunc(s.serveEcho)

	// Targets outside the path space (OPTIONS *, absolute forms) bypass
	// the route table and therefore the middleware chain.
	r.NotFoundHandler = s.logRequests(s.recoverPanics(http.HandlerFunc(s.serveEcho)))
	r.MethodNotAllowedHandler = r.NotFoundHandler
	return r
}

// Router returns the server's request handler
func (s *Server) Router() http.Handler {
	return s.router
}

// Start binds the listen address and serves in the background
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("server is already running")
	}

	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}

	s.listener = listener
	s.addr = listener.Addr().String()
	s.isRunning = true
	s.done = make(chan error, 1)

	go func(done chan<- error) {
		err := s.server.Serve(listener)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		done <- err
		close(done)
	}(s.done)

	return nil
}

// Addr returns the bound address once started, the configured one before
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Port returns the bound TCP port, or 0 when not listening
func (s *Server) Port() int {
	_, port, err := net.SplitHostPort(s.Addr())
	if err != nil {
		return 0
	}
	n, _ := strconv.Atoi(port)
	return n
}

// Done delivers the serve loop's terminal error, nil after a clean shutdown
func (s *Server) Done() <-chan error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Shutdown stops accepting connections and waits for in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return fmt.Errorf("server is not running")
	}
	s.isRunning = false

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

// serveEcho adapts one request to the echo service and writes the answer
func (s *Server) serveEcho(w http.ResponseWriter, r *http.Request) {
	in, err := toIncoming(r)
	if err != nil {
		s.logger.Warnw("Failed to read request", "target", r.RequestURI, "error", err)
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	resp, err := s.handler.Handle(r.Context(), in)
	switch {
	case errors.Is(err, services.ErrUnsupportedMethod):
		http.Error(w, http.StatusText(http.StatusNotImplemented), http.StatusNotImplemented)
		return
	case err != nil:
		s.logger.Errorw("Failed to handle request", "method", r.Method, "target", r.RequestURI, "error", err)
		writeInternalError(w)
		return
	}

	// HEAD skips rendering, so there is no length to declare
	if r.Method != http.MethodHead {
		w.Header().Set("Content-Length", strconv.Itoa(len(resp.Body)))
	}
	if err := writeResponse(w, resp.Status, resp.Headers, resp.Body); err != nil {
		s.logger.Debugw("Client went away", "target", r.RequestURI, "error", err)
	}
}
