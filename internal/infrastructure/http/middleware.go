package http

import (
	"net/http"
	"runtime/debug"
	"time"

	"antiposta.dev/testserver/internal/monitoring"
)

// statusRecorder captures what a handler wrote
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// written reports whether the response line has gone out
func (r *statusRecorder) written() bool {
	return r.status != 0
}

// recoverPanics turns a handler panic into a bare 500
func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			s.logger.Errorw("Recovered from handler panic",
				"method", r.Method,
				"target", r.RequestURI,
				"panic", rec,
				"stack", string(debug.Stack()),
			)

			if sr, ok := w.(*statusRecorder); ok && sr.written() {
				return
			}
			writeInternalError(w)
		}()

		next.ServeHTTP(w, r)
	})
}

// logRequests writes one access log line per request and publishes it to the observer
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}

		next.ServeHTTP(rec, r)

		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		elapsed := time.Since(start)
		client := clientIP(r.RemoteAddr)

		s.logger.Infow("request",
			"method", r.Method,
			"target", r.RequestURI,
			"status", rec.status,
			"bytes", rec.bytes,
			"duration", elapsed,
			"client", client,
		)

		if s.observer != nil {
			s.observer.Observe(monitoring.Entry{
				Time:     start,
				Method:   r.Method,
				Path:     r.RequestURI,
				Status:   rec.status,
				Format:   rec.Header().Get("Content-Type"),
				ClientIP: client,
				Bytes:    rec.bytes,
				Duration: elapsed,
			})
		}
	})
}

func writeInternalError(w http.ResponseWriter) {
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
