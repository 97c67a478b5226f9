package router_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/randalmurphal/mosaic/pkg/mosaic"
	"github.com/randalmurphal/mosaic/pkg/mosaic/bus"
	"github.com/randalmurphal/mosaic/pkg/mosaic/dom"
	"github.com/randalmurphal/mosaic/pkg/mosaic/router"
)

var routes = []router.Route{
	{Pattern: "/", Redirect: "/dashboard"},
	{Pattern: "/dashboard", Component: "dashboard"},
	{Pattern: "/entities", Component: "entities"},
	{Pattern: "/entities/{kind}", Component: "entityList"},
	{Pattern: "/loop", Redirect: "/loop2"},
	{Pattern: "/loop2", Redirect: "/loop"},
	{Pattern: "/*", Component: "notFound"},
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEngine() *mosaic.Engine {
	e := mosaic.New(
		mosaic.WithLogger(quiet()),
		mosaic.WithBus(bus.New(bus.StartUnhalted())),
	)
	for _, name := range []string{"dashboard", "entities", "notFound"} {
		e.Define(name, &mosaic.Markup{HTML: name})
	}
	e.Define("entityList", mosaic.RenderFunc(func(_ *mosaic.Instance, node *html.Node, data any) error {
		params := data.(map[string]string)
		return dom.SetInnerHTML(node, "list of "+params["kind"])
	}))
	return e
}

func outletNode(t *testing.T) *html.Node {
	t.Helper()
	doc, err := dom.Parse(`<html><body><main id="app"></main></body></html>`)
	require.NoError(t, err)
	n, err := dom.Query(doc, "#app")
	require.NoError(t, err)
	return n
}

func inner(t *testing.T, n *html.Node) string {
	t.Helper()
	s, err := dom.InnerHTML(n)
	require.NoError(t, err)
	return s
}

func TestResolve(t *testing.T) {
	table, err := router.NewTable(routes)
	require.NoError(t, err)

	tests := []struct {
		path      string
		component string
		pattern   string
		params    map[string]string
		resolved  string
	}{
		{"/dashboard", "dashboard", "/dashboard", map[string]string{}, "/dashboard"},
		{"/", "dashboard", "/dashboard", map[string]string{}, "/dashboard"},
		{"", "dashboard", "/dashboard", map[string]string{}, "/dashboard"},
		{"/entities", "entities", "/entities", map[string]string{}, "/entities"},
		{"/entities/product", "entityList", "/entities/{kind}", map[string]string{"kind": "product"}, "/entities/product"},
		{"/nope/at/all", "notFound", "/*", map[string]string{"*": "nope/at/all"}, "/nope/at/all"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			m, err := table.Resolve(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.component, m.Component)
			assert.Equal(t, tt.pattern, m.Pattern)
			assert.Equal(t, tt.params, m.Params)
			assert.Equal(t, tt.resolved, m.Path)
		})
	}
}

func TestResolveQuery(t *testing.T) {
	table, err := router.NewTable(routes)
	require.NoError(t, err)

	m, err := table.Resolve("/entities/order?page=2&sort=date")
	require.NoError(t, err)
	assert.Equal(t, "/entities/order", m.Path)
	assert.Equal(t, "2", m.Query.Get("page"))
	assert.Equal(t, "date", m.Query.Get("sort"))
}

func TestResolveErrors(t *testing.T) {
	table, err := router.NewTable(routes)
	require.NoError(t, err)
	_, err = table.Resolve("/loop")
	assert.ErrorIs(t, err, router.ErrRedirectLoop)

	noCatchAll, err := router.NewTable([]router.Route{{Pattern: "/a", Component: "a"}})
	require.NoError(t, err)
	_, err = noCatchAll.Resolve("/b")
	assert.ErrorIs(t, err, router.ErrNoRoute)
}

func TestNewTableInvalid(t *testing.T) {
	bad := [][]router.Route{
		{{Pattern: "", Component: "x"}},
		{{Pattern: "/x"}},
		{{Pattern: "/x", Component: "x", Redirect: "/y"}},
		{{Pattern: "/x", Component: "x"}, {Pattern: "/x", Component: "y"}},
		{{Pattern: "no-slash", Component: "x"}},
	}
	for _, rs := range bad {
		_, err := router.NewTable(rs)
		assert.ErrorIs(t, err, router.ErrInvalidRoute, "%+v", rs)
		var rerr *router.RouteError
		assert.ErrorAs(t, err, &rerr)
	}
}

func TestTableRoutes(t *testing.T) {
	table, err := router.NewTable(routes)
	require.NoError(t, err)
	assert.Equal(t, routes, table.Routes())
}

func TestNavigateRendersAndNotifies(t *testing.T) {
	e := newEngine()
	outlet := outletNode(t)
	r, err := router.New(e, routes, router.WithOutlet(outlet), router.WithLogger(quiet()))
	require.NoError(t, err)

	var events []string
	_, err = e.Bus().Subscribe("dashboard", bus.EventMap{
		router.EventLoad:   func(any) { events = append(events, "dashboard:load") },
		router.EventUnload: func(any) { events = append(events, "dashboard:unload") },
	})
	require.NoError(t, err)
	_, err = e.Bus().Subscribe("entityList", bus.EventMap{
		router.EventLoad: func(any) { events = append(events, "entityList:load") },
	})
	require.NoError(t, err)
	var after []router.Match
	_, err = e.Bus().Subscribe(router.DefaultTopic, bus.EventMap{
		router.EventAfter: func(p any) { after = append(after, p.(router.Match)) },
	})
	require.NoError(t, err)

	require.NoError(t, r.Navigate("/"))
	assert.Equal(t, "dashboard", inner(t, outlet))
	view, _ := dom.Attr(outlet, router.ViewAttr)
	assert.Equal(t, "dashboard", view)

	require.NoError(t, r.Navigate("/entities/product"))
	assert.Equal(t, "list of product", inner(t, outlet))

	assert.Equal(t, []string{"dashboard:load", "dashboard:unload", "entityList:load"}, events)
	require.Len(t, after, 2)
	assert.Equal(t, "/dashboard", after[0].Path)
	assert.Equal(t, "product", after[1].Params["kind"])

	inst, ok := e.Instance(outlet)
	require.True(t, ok)
	assert.Equal(t, "entityList", inst.Name())
}

func TestHistory(t *testing.T) {
	e := newEngine()
	outlet := outletNode(t)
	r, err := router.New(e, routes, router.WithOutlet(outlet))
	require.NoError(t, err)

	_, ok := r.Current()
	assert.False(t, ok)
	assert.ErrorIs(t, r.Reload(), router.ErrNotStarted)
	assert.ErrorIs(t, r.Back(), router.ErrNoHistory)

	require.NoError(t, r.Navigate("/dashboard"))
	require.NoError(t, r.Navigate("/dashboard"))
	assert.Len(t, r.History(), 1, "same path does not add an entry")

	require.NoError(t, r.Navigate("/entities"))
	require.NoError(t, r.Navigate("/entities/user"))
	assert.Len(t, r.History(), 3)

	require.NoError(t, r.Back())
	cur, ok := r.Current()
	require.True(t, ok)
	assert.Equal(t, "entities", cur.Component)
	assert.Equal(t, "entities", inner(t, outlet))

	require.NoError(t, r.Reload())
	assert.Equal(t, "entities", inner(t, outlet))
	assert.Len(t, r.History(), 2)
}

func TestNavigateErrors(t *testing.T) {
	e := newEngine()
	r, err := router.New(e, routes)
	require.NoError(t, err)
	assert.ErrorIs(t, r.Navigate("/dashboard"), router.ErrNoOutlet)

	r.SetOutlet(outletNode(t))
	assert.ErrorIs(t, r.Navigate("/loop"), router.ErrRedirectLoop)
	assert.Empty(t, r.History())
}

func TestNavigateUnknownComponentStillNotifies(t *testing.T) {
	e := newEngine()
	outlet := outletNode(t)
	r, err := router.New(e, []router.Route{{Pattern: "/x", Component: "ghost"}}, router.WithOutlet(outlet))
	require.NoError(t, err)

	err = r.Navigate("/x")
	assert.ErrorIs(t, err, mosaic.ErrUnknownComponent)
	assert.Len(t, e.Bus().Log(router.DefaultTopic, router.EventAfter), 1)
}

func TestResumeServerRenderedView(t *testing.T) {
	e := newEngine()
	doc, err := dom.Parse(`<html><body><main id="app" data-view="entityList"><p>list of user</p></main></body></html>`)
	require.NoError(t, err)
	outlet, err := dom.Query(doc, "#app")
	require.NoError(t, err)
	r, err := router.New(e, routes, router.WithOutlet(outlet), router.WithLogger(quiet()))
	require.NoError(t, err)

	var events []string
	var loaded router.Match
	_, err = e.Bus().Subscribe("entityList", bus.EventMap{
		mosaic.CreateEvent: func(any) { events = append(events, "create") },
		router.EventLoad: func(p any) {
			events = append(events, "load")
			loaded = p.(router.Match)
		},
	})
	require.NoError(t, err)

	ok, err := r.Resume("/entities/user")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"create", "load"}, events)
	assert.Equal(t, "user", loaded.Params["kind"])
	assert.Equal(t, "<p>list of user</p>", inner(t, outlet), "markup is kept")
	assert.Empty(t, e.Bus().Log(router.DefaultTopic, router.EventAfter))

	cur, ok := r.Current()
	require.True(t, ok)
	assert.Equal(t, "entityList", cur.Component)

	require.NoError(t, r.Navigate("/dashboard"))
	assert.Equal(t, []string{"create", "load"}, events)
	assert.Equal(t, []any{nil}, e.Bus().Log("entityList", router.EventUnload))
}

func TestResumeWithoutView(t *testing.T) {
	e := newEngine()
	r, err := router.New(e, routes, router.WithLogger(quiet()))
	require.NoError(t, err)
	_, err = r.Resume("/")
	assert.ErrorIs(t, err, router.ErrNoOutlet)

	r.SetOutlet(outletNode(t))
	ok, err := r.Resume("/")
	require.NoError(t, err)
	assert.False(t, ok)
	_, started := r.Current()
	assert.False(t, started)
}

func TestLinksAndFollow(t *testing.T) {
	e := newEngine()
	e.Define("menu", &mosaic.Markup{
		HTML: `<a href="/dashboard" data-load="dashboard">Home</a><a href="/plain">Plain</a><a href="/e" data-load="">Empty</a>`,
	})
	doc, err := dom.Parse(`<html><body><nav id="menu"></nav><main id="app"></main></body></html>`)
	require.NoError(t, err)
	menu, _ := dom.Query(doc, "#menu")
	outlet, _ := dom.Query(doc, "#app")
	require.NoError(t, e.Render("menu", menu, nil))

	links, err := router.Links(menu)
	require.NoError(t, err)
	require.Equal(t, []router.Link{{View: "dashboard", Href: "/dashboard"}}, links)

	r, err := router.New(e, routes, router.WithOutlet(outlet))
	require.NoError(t, err)
	require.NoError(t, r.Follow(links[0]))
	assert.Equal(t, "dashboard", inner(t, outlet))
	cur, _ := r.Current()
	assert.Equal(t, "/dashboard", cur.Path)
}

func TestRouterComponent(t *testing.T) {
	e := newEngine()
	r, err := router.New(e, routes, router.WithStart("/entities/invoice"), router.WithTopic("nav"))
	require.NoError(t, err)
	assert.Equal(t, "nav", r.Topic())

	e.Define("router", r.Definition())
	e.Define("layout", &mosaic.Markup{
		HTML: `<header>App</header><div class="-router"></div>`,
		Uses: []string{"router"},
	})

	app := outletNode(t)
	require.NoError(t, e.Render("layout", app, nil))

	outlet := r.Outlet()
	require.NotNil(t, outlet)
	assert.True(t, dom.HasClass(outlet, router.OutletClass))
	assert.Equal(t, "list of invoice", inner(t, outlet))

	page, ok := e.Instance(outlet)
	require.True(t, ok)
	require.NotNil(t, page.Parent())
	assert.Equal(t, "router", page.Parent().Name())
	assert.Len(t, e.Bus().Log("nav", router.EventAfter), 1)

	// Re-rendering the layout restores the current view in the new outlet.
	require.NoError(t, r.Navigate("/dashboard"))
	require.NoError(t, e.Render("layout", app, nil))
	assert.Equal(t, "dashboard", inner(t, r.Outlet()))
	assert.Len(t, r.History(), 2)
}
