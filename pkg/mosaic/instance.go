package mosaic

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/net/html"

	"github.com/randalmurphal/mosaic/pkg/mosaic/bus"
	"github.com/randalmurphal/mosaic/pkg/mosaic/dom"
	"github.com/randalmurphal/mosaic/pkg/mosaic/observability"
)

// Instance is one mounted component. It holds a non-owning reference to its
// container node; the document owns the node.
//
// Instances are created by the engine for every render and are never
// reused. All methods must be called on the engine's goroutine.
type Instance struct {
	id      uuid.UUID
	name    string
	node    *html.Node
	parent  *Instance
	engine  *Engine
	ctx     context.Context
	logger  *slog.Logger
	subs    []bus.Subscription
	mounted bool
}

func newInstance(ctx context.Context, e *Engine, parent *Instance, name string, node *html.Node) *Instance {
	id := uuid.New()
	return &Instance{
		id:      id,
		name:    name,
		node:    node,
		parent:  parent,
		engine:  e,
		ctx:     ctx,
		logger:  observability.EnrichLogger(e.logger, name, id.String()),
		mounted: true,
	}
}

// ID returns the instance's unique identifier.
func (i *Instance) ID() string {
	return i.id.String()
}

// Name returns the component name. It is also the instance's bus topic.
func (i *Instance) Name() string {
	return i.name
}

// Node returns the container node.
func (i *Instance) Node() *html.Node {
	return i.node
}

// Parent returns the instance whose markup contained this one, or nil for
// a top-level render.
func (i *Instance) Parent() *Instance {
	return i.parent
}

// Engine returns the engine that mounted the instance.
func (i *Instance) Engine() *Engine {
	return i.engine
}

// Logger returns a logger tagged with the component name and instance ID.
func (i *Instance) Logger() *slog.Logger {
	return i.logger
}

// Mounted reports whether the instance is still attached to its node.
func (i *Instance) Mounted() bool {
	return i.mounted
}

// Push notifies event on the component's topic.
func (i *Instance) Push(event string, payload any, firstTimeOnly bool) {
	i.engine.bus.Notify(i.name, event, payload, firstTimeOnly)
}

// Subscribe registers handlers on topic for the lifetime of the instance.
// Subscribing after unmount does nothing.
func (i *Instance) Subscribe(topic string, events bus.EventMap) error {
	if !i.mounted {
		return nil
	}
	subs, err := i.engine.bus.Subscribe(topic, events)
	if err != nil {
		return err
	}
	if !i.mounted {
		// A replayed handler unmounted us.
		i.engine.bus.UnsubscribeAll(subs)
		return nil
	}
	i.subs = append(i.subs, subs...)
	return nil
}

// Subscriptions returns a copy of the instance's live subscriptions.
func (i *Instance) Subscriptions() []bus.Subscription {
	out := make([]bus.Subscription, len(i.subs))
	copy(out, i.subs)
	return out
}

// SetHTML replaces the content of the container. Instances mounted inside
// the old content are unmounted first.
func (i *Instance) SetHTML(markup string) error {
	i.engine.teardown(i.node, false)
	return dom.SetInnerHTML(i.node, markup)
}

// QueryAll returns the nodes inside the container matching selector.
func (i *Instance) QueryAll(selector string) ([]*html.Node, error) {
	return dom.QueryAll(i.node, selector)
}

// Query returns the first node inside the container matching selector.
func (i *Instance) Query(selector string) (*html.Node, error) {
	return dom.Query(i.node, selector)
}

// Render mounts component name into node as a child of this instance.
// node must be strictly inside the container.
func (i *Instance) Render(name string, node *html.Node, data any) error {
	if node == nil {
		return &RenderError{Component: name, Op: "render", Err: ErrNilNode}
	}
	if node == i.node || !dom.Contains(i.node, node) {
		return &RenderError{Component: name, Op: "render", Err: ErrOutsideInstance}
	}
	return i.engine.render(i.ctx, i, name, node, data)
}
