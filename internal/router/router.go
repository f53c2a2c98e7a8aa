package router

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Router wires HTTP handlers on top of gorilla/mux with custom 404 and 405
// handling. Paths are matched as sent; no clean-path redirects are issued.
type Router struct {
	mux *mux.Router
}

// New constructs a fresh Router.
func New() *Router {
	return &Router{mux: mux.NewRouter().SkipClean(true)}
}

// Preflight answers OPTIONS requests on every path with handler. It must be
// registered before other routes.
func (r *Router) Preflight(handler http.Handler) {
	if handler == nil {
		return
	}
	r.mux.MatcherFunc(func(req *http.Request, _ *mux.RouteMatch) bool {
		return req.Method == http.MethodOptions
	}).Handler(handler)
}

// Handle registers an exact path match. Without methods every method is
// accepted; otherwise other methods get the method-not-allowed handler.
func (r *Router) Handle(path string, handler http.Handler, methods ...string) {
	if path == "" || handler == nil {
		return
	}
	route := r.mux.Path(path).Handler(handler)
	if len(methods) > 0 {
		route.Methods(methods...)
	}
}

// HandleFunc registers an exact path match via a function.
func (r *Router) HandleFunc(path string, fn http.HandlerFunc, methods ...string) {
	if fn == nil {
		return
	}
	r.Handle(path, fn, methods...)
}

// HandleMatch registers handler for every path accepted by match.
func (r *Router) HandleMatch(match func(path string) bool, handler http.Handler, methods ...string) {
	if match == nil || handler == nil {
		return
	}
	route := r.mux.MatcherFunc(func(req *http.Request, _ *mux.RouteMatch) bool {
		return match(req.URL.Path)
	}).Handler(handler)
	if len(methods) > 0 {
		route.Methods(methods...)
	}
}

// NotFound sets the fallback handler.
func (r *Router) NotFound(handler http.Handler) {
	r.mux.NotFoundHandler = handler
}

// MethodNotAllowed sets the handler used when a path matches but its method
// does not.
func (r *Router) MethodNotAllowed(handler http.Handler) {
	r.mux.MethodNotAllowedHandler = handler
}

// ServeHTTP satisfies http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}
