package cbv

import (
	"context"
	"net/http"
	"strings"
	"sync"
)

// Route maps a path pattern to a handler.
//
// Patterns are slash-separated segments. A segment of the form {name} matches
// any non-empty segment and captures it as a kwarg, a segment * matches any
// non-empty segment and captures it as a positional arg, and every other
// segment must match exactly.
type Route struct {
	Name    string
	Pattern string
	Handler http.Handler

	segments []string
}

// Match is the result of resolving a path.
type Match struct {
	Route  *Route
	Args   Args
	Kwargs Kwargs
}

// Router dispatches requests to the first route matching the request path.
type Router struct {
	mtx    sync.RWMutex
	routes []*Route
}

// NewRouter returns an empty router.
func NewRouter() *Router {
	return &Router{}
}

// Handle registers a named route.
func (rt *Router) Handle(name, pattern string, h http.Handler) {
	rt.mtx.Lock()
	defer rt.mtx.Unlock()

	rt.routes = append(rt.routes, &Route{
		Name:     name,
		Pattern:  pattern,
		Handler:  h,
		segments: splitPath(pattern),
	})
}

// Routes returns the registered routes, in the order they're matched.
func (rt *Router) Routes() []*Route {
	rt.mtx.RLock()
	defer rt.mtx.RUnlock()

	return append([]*Route{}, rt.routes...)
}

// Resolve returns the match for the path, if any.
func (rt *Router) Resolve(path string) (*Match, bool) {
	rt.mtx.RLock()
	defer rt.mtx.RUnlock()

	segments := splitPath(path)
	for _, route := range rt.routes {
		if m, ok := route.match(segments); ok {
			return m, true
		}
	}
	return nil, false
}

// ServeHTTP dispatches the request to the matching route, or responds 404.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m, ok := rt.Resolve(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	r = r.WithContext(context.WithValue(r.Context(), matchContextKey{}, m))
	m.Route.Handler.ServeHTTP(w, r)
}

func (route *Route) match(segments []string) (*Match, bool) {
	if len(segments) != len(route.segments) {
		return nil, false
	}

	m := &Match{Route: route, Kwargs: Kwargs{}}
	for i, want := range route.segments {
		have := segments[i]
		switch {
		case want == "*" && have != "":
			m.Args = append(m.Args, have)
		case strings.HasPrefix(want, "{") && strings.HasSuffix(want, "}") && have != "":
			m.Kwargs[want[1:len(want)-1]] = have
		case want == have:
			// literal
		default:
			return nil, false
		}
	}
	return m, true
}

// splitPath keeps a trailing empty segment for paths ending in a slash, so
// that "/books/" and "/books" are different paths.
func splitPath(path string) []string {
	return strings.Split(strings.TrimPrefix(path, "/"), "/")
}

type matchContextKey struct{}

// MatchFromContext returns the route match stored in the context by the router.
func MatchFromContext(ctx context.Context) (*Match, bool) {
	m, ok := ctx.Value(matchContextKey{}).(*Match)
	return m, ok && m != nil
}
