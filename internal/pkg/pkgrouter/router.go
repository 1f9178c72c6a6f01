package pkgrouter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/shandysiswandi/gosettle/internal/pkg/pkgerror"
)

// healthTimeLayout renders UTC instants with microsecond precision and a "Z"
// suffix, matching the representation used across the API.
const healthTimeLayout = "2006-01-02T15:04:05.000000Z"

// Handler is the application-style handler used by this router.
//
// It returns a response payload (that will be JSON encoded) or an error.
type Handler func(ctx context.Context, r *http.Request) (any, error)

// Router is an http.Handler that wraps httprouter and a middleware chain.
type Router struct {
	hr         *httprouter.Router
	errorCodec func(ctx context.Context, w http.ResponseWriter, err error)
	encoder    func(ctx context.Context, w http.ResponseWriter, resp any)
	mws        []Middleware
}

// NewRouter builds the default application router with standard middleware.
func NewRouter(uuid Generator) *Router {
	hr := &httprouter.Router{
		RedirectTrailingSlash:  true,
		RedirectFixedPath:      true,
		HandleMethodNotAllowed: true,
		HandleOPTIONS:          true,
		SaveMatchedRoutePath:   true,
		NotFound: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]string{"message": "endpoint not found"}, http.StatusNotFound)
		}),
		MethodNotAllowed: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]string{"message": "method not allowed"}, http.StatusMethodNotAllowed)
		}),
	}

	errorCodec := func(ctx context.Context, w http.ResponseWriter, err error) {
		var gerr *pkgerror.Error
		if !errors.As(err, &gerr) {
			writeJSON(w, map[string]string{"message": "Internal server error"}, http.StatusInternalServerError)
			return
		}

		writeJSON(w, map[string]string{"message": gerr.Msg()}, gerr.StatusCode())
	}

	okCodec := func(ctx context.Context, w http.ResponseWriter, resp any) {
		if resp == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		code := http.StatusOK
		if sc, ok := resp.(interface {
			StatusCode() int
		}); ok {
			code = sc.StatusCode()
		}

		writeJSON(w, resp, code)
	}

	ro := &Router{
		hr:         hr,
		errorCodec: errorCodec,
		encoder:    okCodec,
		mws: []Middleware{
			middlewareRecoverer,
			middlewareCorrelationID(uuid),
			middlewareLogging,
		},
	}

	ro.Handle(http.MethodGet, "/", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, healthBody(), http.StatusOK)
	}))

	ro.Handle(http.MethodGet, "/health", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, healthBody(), http.StatusOK)
	}))

	return ro
}

func healthBody() map[string]string {
	return map[string]string{
		"status":       "HEALTHY",
		"current_time": time.Now().UTC().Format(healthTimeLayout),
	}
}

// Use appends middleware to the existing middleware stack.
func (r *Router) Use(mws ...Middleware) {
	r.mws = append(r.mws, mws...)
}

// GET registers a GET endpoint using the application Handler signature.
func (r *Router) GET(path string, h Handler, mws ...Middleware) {
	r.endpoint(http.MethodGet, path, h, mws...)
}

// POST registers a POST endpoint using the application Handler signature.
func (r *Router) POST(path string, h Handler, mws ...Middleware) {
	r.endpoint(http.MethodPost, path, h, mws...)
}

// Handle registers a raw http.Handler with the router.
func (r *Router) Handle(method, path string, h http.Handler, mws ...Middleware) {
	r.hr.Handler(method, path, Chain(h, append(r.mws, mws...)...))
}

func (r *Router) endpoint(method, path string, h Handler, mws ...Middleware) {
	r.hr.Handler(method, path, Chain(http.HandlerFunc(func(w http.ResponseWriter, re *http.Request) {
		resp, err := h(re.Context(), re)
		if err != nil {
			r.errorCodec(re.Context(), w, err)
			return
		}
		r.encoder(re.Context(), w, resp)
	}), append(r.mws, mws...)...))
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.hr.ServeHTTP(w, req)
}

func writeJSON(w http.ResponseWriter, data any, code int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("server: failed to encode data to json", "error", err)
	}
}
