// Package router maps paths to components and renders them into an outlet.
//
// Navigation notifies the previous view's topic with "unload", renders the
// new view, notifies its topic with "load" and finally notifies the router
// topic with "after" carrying the Match:
//
//	r, _ := router.New(engine, []router.Route{
//	    {Pattern: "/", Redirect: "/dashboard"},
//	    {Pattern: "/dashboard", Component: "dashboard"},
//	    {Pattern: "/entities/{kind}", Component: "entityList"},
//	    {Pattern: "/*", Component: "notFound"},
//	}, router.WithOutlet(outlet))
//	err := r.Navigate("/entities/product")
package router

import (
	"log/slog"

	"golang.org/x/net/html"

	"github.com/randalmurphal/mosaic/pkg/mosaic"
	"github.com/randalmurphal/mosaic/pkg/mosaic/dom"
)

// Events notified by the router.
const (
	EventUnload = "unload"
	EventLoad   = "load"
	EventAfter  = "after"
)

// ViewAttr is set on the outlet to the name of the rendered view.
const ViewAttr = "data-view"

// DefaultTopic is the topic "after" events are notified on.
const DefaultTopic = "router"

// Router navigates between views. Like the engine, it is not safe for
// concurrent use.
type Router struct {
	engine  *mosaic.Engine
	table   *Table
	outlet  *html.Node
	topic   string
	start   string
	logger  *slog.Logger
	render  func(name string, node *html.Node, data any) error
	history []Match
}

// Option configures a Router.
type Option func(*Router)

// WithOutlet sets the node views are rendered into.
func WithOutlet(node *html.Node) Option {
	return func(r *Router) {
		r.outlet = node
	}
}

// WithTopic sets the topic of "after" events. Default: "router".
func WithTopic(topic string) Option {
	return func(r *Router) {
		if topic != "" {
			r.topic = topic
		}
	}
}

// WithStart sets the path the router component navigates to when it
// mounts. Default: "/".
func WithStart(path string) Option {
	return func(r *Router) {
		if path != "" {
			r.start = path
		}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a router over engine.
func New(engine *mosaic.Engine, routes []Route, opts ...Option) (*Router, error) {
	table, err := NewTable(routes)
	if err != nil {
		return nil, err
	}
	r := &Router{
		engine: engine,
		table:  table,
		topic:  DefaultTopic,
		start:  "/",
		logger: slog.Default(),
		render: engine.Render,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Table returns the route table.
func (r *Router) Table() *Table {
	return r.table
}

// Topic returns the topic "after" events are notified on.
func (r *Router) Topic() string {
	return r.topic
}

// Outlet returns the node views are rendered into.
func (r *Router) Outlet() *html.Node {
	return r.outlet
}

// SetOutlet changes the node views are rendered into.
func (r *Router) SetOutlet(node *html.Node) {
	r.outlet = node
}

// Resolve maps path to a component without navigating.
func (r *Router) Resolve(path string) (Match, error) {
	return r.table.Resolve(path)
}

// Navigate resolves path and shows the result. A history entry is added
// unless path resolves to the current path.
func (r *Router) Navigate(path string) error {
	m, err := r.table.Resolve(path)
	if err != nil {
		r.logger.Warn("navigation failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return err
	}
	return r.visit(m)
}

// Show renders view for path without consulting the route table, as a
// link carrying data-load does.
func (r *Router) Show(view, path string) error {
	return r.visit(Match{Component: view, Path: path, Params: map[string]string{}})
}

func (r *Router) visit(m Match) error {
	if r.outlet == nil {
		return ErrNoOutlet
	}
	if cur, ok := r.Current(); !ok || cur.Path != m.Path {
		r.history = append(r.history, m)
	} else {
		r.history[len(r.history)-1] = m
	}
	return r.show(m)
}

// Resume adopts a view the server already rendered into the outlet. If
// the outlet names a view in ViewAttr, path becomes the current history
// entry and the view's topic is notified with "create" and "load",
// without rendering. It reports whether there was a view to adopt.
func (r *Router) Resume(path string) (bool, error) {
	if r.outlet == nil {
		return false, ErrNoOutlet
	}
	view, _ := dom.Attr(r.outlet, ViewAttr)
	if view == "" {
		return false, nil
	}

	m := Match{Component: view, Path: path, Params: map[string]string{}}
	if resolved, err := r.table.Resolve(path); err == nil && resolved.Component == view {
		m = resolved
	}
	r.history = append(r.history[:0], m)

	r.logger.Debug("resuming server-rendered view",
		slog.String("path", m.Path),
		slog.String("component", view),
	)
	b := r.engine.Bus()
	b.Notify(view, mosaic.CreateEvent, view, false)
	b.Notify(view, EventLoad, m, false)
	return true, nil
}

// Reload renders the current view again.
func (r *Router) Reload() error {
	m, ok := r.Current()
	if !ok {
		return ErrNotStarted
	}
	return r.show(m)
}

// Back returns to the previous history entry.
func (r *Router) Back() error {
	if len(r.history) < 2 {
		return ErrNoHistory
	}
	r.history = r.history[:len(r.history)-1]
	return r.show(r.history[len(r.history)-1])
}

// Current returns the entry being shown.
func (r *Router) Current() (Match, bool) {
	if len(r.history) == 0 {
		return Match{}, false
	}
	return r.history[len(r.history)-1], true
}

// History returns a copy of the navigation history, oldest first.
func (r *Router) History() []Match {
	out := make([]Match, len(r.history))
	copy(out, r.history)
	return out
}

func (r *Router) show(m Match) error {
	if r.outlet == nil {
		return ErrNoOutlet
	}
	b := r.engine.Bus()
	if prev, ok := dom.Attr(r.outlet, ViewAttr); ok && prev != "" {
		b.Notify(prev, EventUnload, nil, false)
	}
	dom.SetAttr(r.outlet, ViewAttr, m.Component)

	r.logger.Debug("navigating",
		slog.String("path", m.Path),
		slog.String("component", m.Component),
	)
	err := r.render(m.Component, r.outlet, m.Params)

	b.Notify(m.Component, EventLoad, m, false)
	b.Notify(r.topic, EventAfter, m, false)
	return err
}

// Link is an anchor that asks for a view directly.
type Link struct {
	View string
	Href string
}

// Links returns the anchors below node carrying a data-load attribute.
func Links(node *html.Node) ([]Link, error) {
	anchors, err := dom.QueryAll(node, "a[data-load]")
	if err != nil {
		return nil, err
	}
	links := make([]Link, 0, len(anchors))
	for _, a := range anchors {
		view, _ := dom.Attr(a, "data-load")
		if view == "" {
			continue
		}
		href, _ := dom.Attr(a, "href")
		links = append(links, Link{View: view, Href: href})
	}
	return links, nil
}

// Follow shows the view a link asks for.
func (r *Router) Follow(l Link) error {
	return r.Show(l.View, l.Href)
}
