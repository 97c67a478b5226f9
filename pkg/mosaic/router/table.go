package router

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
)

// maxRedirects bounds redirect chains in Resolve.
const maxRedirects = 8

// Route maps a path pattern to a component, or to another path.
//
// Patterns use chi syntax: "/entities/{kind}", "/files/*".
type Route struct {
	Pattern   string
	Component string
	Redirect  string
}

// Match is the result of resolving a path.
type Match struct {
	// Pattern is the route pattern that matched.
	Pattern string
	// Component is the component to render.
	Component string
	// Params holds the named pattern parameters. A catch-all segment is
	// stored under "*".
	Params map[string]string
	// Path is the resolved path after redirects, without the query.
	Path string
	// Query holds the query string of the navigated path.
	Query url.Values
}

// Table is an immutable route table backed by a chi routing tree.
type Table struct {
	mux    *chi.Mux
	routes map[string]Route
	order  []Route
}

// NewTable builds a table. Each route needs a pattern and exactly one of
// Component or Redirect.
func NewTable(routes []Route) (t *Table, err error) {
	t = &Table{
		mux:    chi.NewRouter(),
		routes: make(map[string]Route, len(routes)),
	}
	for _, r := range routes {
		if r.Pattern == "" || (r.Component == "") == (r.Redirect == "") {
			return nil, &RouteError{Pattern: r.Pattern, Err: ErrInvalidRoute}
		}
		if _, dup := t.routes[r.Pattern]; dup {
			return nil, &RouteError{Pattern: r.Pattern, Err: fmt.Errorf("%w: duplicate pattern", ErrInvalidRoute)}
		}
		if err := t.add(r); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// add registers r with chi, which panics on malformed patterns.
func (t *Table) add(r Route) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &RouteError{Pattern: r.Pattern, Err: fmt.Errorf("%w: %v", ErrInvalidRoute, p)}
		}
	}()
	t.mux.Get(r.Pattern, http.NotFound)
	t.routes[r.Pattern] = r
	t.order = append(t.order, r)
	return nil
}

// Routes returns the routes in the order they were given.
func (t *Table) Routes() []Route {
	out := make([]Route, len(t.order))
	copy(out, t.order)
	return out
}

// Resolve maps path to a component, following redirects.
func (t *Table) Resolve(path string) (Match, error) {
	u, err := url.Parse(path)
	if err != nil {
		return Match{}, fmt.Errorf("parse path %q: %w", path, err)
	}
	query := u.Query()
	p := u.Path
	if p == "" {
		p = "/"
	}

	for i := 0; i <= maxRedirects; i++ {
		route, params, ok := t.match(p)
		if !ok {
			return Match{}, fmt.Errorf("%w: %s", ErrNoRoute, p)
		}
		if route.Redirect != "" {
			p = route.Redirect
			continue
		}
		return Match{
			Pattern:   route.Pattern,
			Component: route.Component,
			Params:    params,
			Path:      p,
			Query:     query,
		}, nil
	}
	return Match{}, fmt.Errorf("%w: %s", ErrRedirectLoop, path)
}

func (t *Table) match(path string) (Route, map[string]string, bool) {
	rctx := chi.NewRouteContext()
	if !t.mux.Match(rctx, http.MethodGet, path) || len(rctx.RoutePatterns) == 0 {
		return Route{}, nil, false
	}
	route, ok := t.routes[rctx.RoutePatterns[len(rctx.RoutePatterns)-1]]
	if !ok {
		return Route{}, nil, false
	}
	params := make(map[string]string, len(rctx.URLParams.Keys))
	for i, k := range rctx.URLParams.Keys {
		params[k] = rctx.URLParams.Values[i]
	}
	return route, params, true
}
