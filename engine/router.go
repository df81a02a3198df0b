package engine

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"golang.org/x/time/rate"
)

// Handler is the signature implemented by all http handlers in this app.
// Returning the response as a value keeps control flow flat in the handlers
// themselves - no naked early returns after writing to the response writer.
type Handler func(r *http.Request, ps httprouter.Params) Response

// Response writes itself to the response writer. See responses.go for constructors.
type Response func(w http.ResponseWriter, r *http.Request)

type Router struct {
	router  *httprouter.Router
	limiter *rate.Limiter
}

func NewRouter() *Router {
	return &Router{router: httprouter.New()}
}

// SetWriteLimit caps the rate of requests accepted through HandleLimited.
// A zero or negative rps disables limiting.
func (r *Router) SetWriteLimit(rps int) {
	if rps <= 0 {
		r.limiter = nil
		return
	}
	r.limiter = rate.NewLimiter(rate.Limit(rps), rps)
}

func (r *Router) Handle(method, path string, fn Handler) {
	r.router.Handle(method, path, func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		start := time.Now()

		ww := &responseWrapper{ResponseWriter: w, status: 200}
		if resp := fn(req, ps); resp != nil {
			resp(ww, req)
		}
		slog.Info("http request", "url", req.URL.Path, "method", req.Method, "userAgent", req.UserAgent(), "latencyMS", time.Since(start).Milliseconds(), "status", ww.status)
	})
}

// HandleLimited registers a route behind the shared write rate limiter.
// The limiter is only a pressure valve; it is not a substitute for the
// conflict checks the write paths perform themselves.
func (r *Router) HandleLimited(method, path string, fn Handler) {
	r.Handle(method, path, func(req *http.Request, ps httprouter.Params) Response {
		if r.limiter != nil && !r.limiter.Allow() {
			return ClientErrorf(http.StatusTooManyRequests, "too many requests - slow down and retry")
		}
		return fn(req, ps)
	})
}

func (r *Router) ServeHTTP(w http.ResponseWriter, rr *http.Request) { r.router.ServeHTTP(w, rr) }

// Serve wires up the stdlib http server to the engine.
func (r *Router) Serve(addr string) Proc {
	return func(ctx context.Context) error {
		svr := &http.Server{Handler: r, Addr: addr}
		go func() {
			<-ctx.Done()
			slog.Warn("gracefully shutting down http server...")
			svr.Shutdown(context.Background())
		}()
		if err := svr.ListenAndServe(); err != nil {
			return err
		}
		slog.Info("the http server has shut down")
		return nil
	}
}

type responseWrapper struct {
	http.ResponseWriter
	status int
}

func (w *responseWrapper) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
