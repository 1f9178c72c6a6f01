package pkgrouter

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
)

// statusRecorder captures the status code and byte count of a response.
//
// Bodies are deliberately not captured: webhook payloads carry account
// identifiers that do not belong in logs.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}

	n, err := w.ResponseWriter.Write(p)
	w.bytes += n
	return n, err
}

func (w *statusRecorder) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func matchedRoutePath(r *http.Request) string {
	pattern := httprouter.ParamsFromContext(r.Context()).MatchedRoutePath()
	if pattern != "" {
		return pattern
	}
	return r.URL.Path
}

func middlewareLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := matchedRoutePath(r)
		start := time.Now()

		slog.InfoContext(
			r.Context(),
			"request received",
			"method", r.Method,
			"route", route,
			"path", r.URL.Path,
		)

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}

		slog.InfoContext(
			r.Context(),
			"response sent",
			"method", r.Method,
			"route", route,
			"path", r.URL.Path,
			"status", status,
			"bytes", rec.bytes,
			"latency_ms", time.Since(start).Milliseconds(),
		)
	})
}
