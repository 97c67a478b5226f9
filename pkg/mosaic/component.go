package mosaic

import (
	"context"

	"golang.org/x/net/html"

	"github.com/randalmurphal/mosaic/pkg/mosaic/bus"
	"github.com/randalmurphal/mosaic/pkg/mosaic/dom"
)

// Component is a live component created for one render of one node.
//
// Render fills node with the component's markup. Child components named by
// Imports are rendered into the result afterwards, so Render only has to
// leave placeholders for them.
type Component interface {
	Render(inst *Instance, node *html.Node, data any) error
}

// Importer is implemented by components that contain child components.
// Each name is looked up as a placeholder class ("-" + name) in the
// rendered markup.
type Importer interface {
	Imports() []string
}

// Initializer is implemented by components with a mount hook. OnInit runs
// after the component and all of its children have rendered.
type Initializer interface {
	OnInit(inst *Instance)
}

// ListenerProvider is implemented by components that react to bus events.
// The returned handlers are subscribed after OnInit and removed when the
// instance is unmounted.
type ListenerProvider interface {
	Listeners(inst *Instance) Listeners
}

// Listeners maps topic to event handlers.
type Listeners map[string]bus.EventMap

// Definition creates components. A definition is registered once per name
// and creates a fresh Component for every render.
type Definition interface {
	New() Component
}

// DefinitionFunc adapts a constructor to Definition.
type DefinitionFunc func() Component

// New implements Definition.
func (f DefinitionFunc) New() Component {
	return f()
}

// RenderFunc is a stateless component that is also its own definition.
type RenderFunc func(inst *Instance, node *html.Node, data any) error

// Render implements Component.
func (f RenderFunc) Render(inst *Instance, node *html.Node, data any) error {
	return f(inst, node, data)
}

// New implements Definition.
func (f RenderFunc) New() Component {
	return f
}

// Markup is a declarative component: fixed HTML plus optional imports,
// mount hook and listeners.
//
// Example:
//
//	engine.Define("layout", &mosaic.Markup{
//	    HTML: `<nav class="-menu"></nav><main class="-router"></main>`,
//	    Uses: []string{"menu", "router"},
//	})
type Markup struct {
	HTML string
	Uses []string
	Init func(inst *Instance)
	On   func(inst *Instance) Listeners
}

// New implements Definition.
func (m *Markup) New() Component {
	return markupComponent{m}
}

type markupComponent struct {
	m *Markup
}

func (c markupComponent) Render(_ *Instance, node *html.Node, _ any) error {
	return dom.SetInnerHTML(node, c.m.HTML)
}

func (c markupComponent) Imports() []string {
	return c.m.Uses
}

func (c markupComponent) OnInit(inst *Instance) {
	if c.m.Init != nil {
		c.m.Init(inst)
	}
}

func (c markupComponent) Listeners(inst *Instance) Listeners {
	if c.m.On == nil {
		return nil
	}
	return c.m.On(inst)
}

// Loader resolves definitions that are not registered yet.
// Implementations may block; the engine calls Load off the dispatch
// goroutine when an Executor is configured.
type Loader interface {
	Load(ctx context.Context, name string) (Definition, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, name string) (Definition, error)

// Load implements Loader.
func (f LoaderFunc) Load(ctx context.Context, name string) (Definition, error) {
	return f(ctx, name)
}

// Executor runs tasks on the goroutine that owns the engine and its bus.
// Post returns false if the task will never run. *loop.Loop implements
// Executor.
type Executor interface {
	Post(task func()) bool
}
