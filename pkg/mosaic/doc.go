/*
Package mosaic composes HTML components and connects them through a
replaying event bus.

# Overview

A component is registered under a name. Rendering a name into a node
creates an Instance, lets the component fill the node with markup, then
renders every imported child component into the placeholders found in
that markup. Placeholders are elements carrying the class "-" + name:

	<nav class="-menu"></nav>
	<main class="-router"></main>

After its children have rendered, the component's OnInit hook runs and
its listeners are subscribed to the bus.

# Basic Usage

	engine := mosaic.New()
	engine.Define("layout", &mosaic.Markup{
	    HTML: `<nav class="-menu"></nav><main class="-content"></main>`,
	    Uses: []string{"menu", "content"},
	})
	engine.Define("menu", menuDefinition)
	engine.Define("content", contentDefinition)

	doc, _ := dom.Parse(page)
	app, _ := dom.Query(doc, "#app")
	if err := engine.Render("layout", app, nil); err != nil {
	    log.Println(err) // failed branches; the rest of the tree rendered
	}
	engine.Bus().Unhalt()

# Events

Every component pushes events on its own topic, which is its name:

	func (m *menu) OnInit(inst *mosaic.Instance) {
	    inst.Push("ready", nil, false)
	}

Listeners subscribe to any topic. Payloads published before a listener
subscribed are replayed to it, oldest first:

	func (m *menu) Listeners(inst *mosaic.Instance) mosaic.Listeners {
	    return mosaic.Listeners{
	        "router": {
	            "after": func(p any) { m.highlight(inst, p) },
	        },
	    }
	}

The engine's default bus starts halted. Notifications made while it is
halted are buffered and delivered by Unhalt, so a page can render
completely before any handler runs.

# Lifecycle

Rendering into a node first unmounts every instance at or below it and
removes their subscriptions. Engine.Unmount does the same without
rendering anything new.

# Lazy Loading

Names missing from the registry are resolved through a Loader. With an
Executor such as *loop.Loop, the load runs on its own goroutine and the
render resumes on the executor:

	l := loop.New()
	go l.Run(ctx)
	engine := mosaic.New(
	    mosaic.WithLoader(loader.NewDir(os.DirFS("views"))),
	    mosaic.WithExecutor(l),
	)

A load whose node is rendered again or unmounted before it completes is
discarded. The first time a definition is loaded the engine notifies
(name, "create", name) with firstTimeOnly set.

# Errors

Lookup, load, render and subscription failures are logged and returned as
*RenderError values joined with errors.Join. A failing branch never stops
its siblings or ancestors. Panics in component code are recovered as
*PanicError.
*/
package mosaic
