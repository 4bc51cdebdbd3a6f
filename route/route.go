// Package route is an explicit request table keyed by exact method and
// path. Each route carries an ordered list of steps that run before its
// handler.
package route

import (
	"context"
	"net/http"
)

// Step inspects a request before the handler runs. It returns the request
// to pass on, possibly with an enriched context, and true to continue. A
// step returning false has already written the response.
type Step func(w http.ResponseWriter, r *http.Request) (*http.Request, bool)

type key struct {
	method string
	path   string
}

type entry struct {
	handler http.Handler
	steps   []Step
}

type Table struct {
	before   []Step
	routes   map[key]entry
	order    []key
	notFound http.Handler
}

// New returns a table whose before steps run for every matched route,
// ahead of the route's own steps. Unmatched requests skip them.
func New(before ...Step) *Table {
	return &Table{
		before:   before,
		routes:   make(map[key]entry),
		notFound: http.NotFoundHandler(),
	}
}

func (t *Table) Handle(method, path string, h http.Handler, steps ...Step) {
	k := key{method: method, path: path}
	if _, exists := t.routes[k]; exists {
		panic("route: duplicate route " + method + " " + path)
	}
	t.routes[k] = entry{handler: h, steps: steps}
	t.order = append(t.order, k)
}

func (t *Table) Get(path string, h http.Handler, steps ...Step) {
	t.Handle(http.MethodGet, path, h, steps...)
}

func (t *Table) NotFound(h http.Handler) {
	t.notFound = h
}

// ServeHTTP dispatches on exact method and path. A path registered for
// another method is answered by the not-found handler, not 405.
func (t *Table) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e, ok := t.routes[key{method: r.Method, path: r.URL.Path}]
	if !ok {
		t.notFound.ServeHTTP(w, r)
		return
	}

	r = Capture(r)
	r.Context().Value(patternKey{}).(*matched).pattern = r.Method + " " + r.URL.Path
	for _, steps := range [][]Step{t.before, e.steps} {
		for _, step := range steps {
			var next bool
			if r, next = step(w, r); !next {
				return
			}
		}
	}
	e.handler.ServeHTTP(w, r)
}

// Routes lists the registered routes as "METHOD path", in registration order.
func (t *Table) Routes() []string {
	out := make([]string, 0, len(t.order))
	for _, k := range t.order {
		out = append(out, k.method+" "+k.path)
	}
	return out
}

type patternKey struct{}

type matched struct {
	pattern string
}

// Capture prepares r so that middleware wrapping the table can read the
// matched route with Pattern once the table has served the request.
func Capture(r *http.Request) *http.Request {
	if _, ok := r.Context().Value(patternKey{}).(*matched); ok {
		return r
	}
	return r.WithContext(context.WithValue(r.Context(), patternKey{}, &matched{}))
}

// Pattern returns the route matched for a request prepared with Capture,
// or "unmatched".
func Pattern(r *http.Request) string {
	if m, ok := r.Context().Value(patternKey{}).(*matched); ok && m.pattern != "" {
		return m.pattern
	}
	return "unmatched"
}
