package router

import (
	"log/slog"

	"golang.org/x/net/html"

	"github.com/randalmurphal/mosaic/pkg/mosaic"
	"github.com/randalmurphal/mosaic/pkg/mosaic/dom"
)

// OutletClass marks the element the router component renders views into.
const OutletClass = "mosaic-outlet"

// Definition returns a component definition for r. The component renders
// an outlet element, makes it the router's outlet and navigates to the
// start path once mounted. Views become children of the router instance.
//
//	engine.Define("router", r.Definition())
func (r *Router) Definition() mosaic.Definition {
	return mosaic.DefinitionFunc(func() mosaic.Component {
		return &component{router: r}
	})
}

type component struct {
	router *Router
}

func (c *component) Render(inst *mosaic.Instance, node *html.Node, _ any) error {
	if err := dom.SetInnerHTML(node, `<div class="`+OutletClass+`"></div>`); err != nil {
		return err
	}
	outlet, err := dom.Query(node, "."+OutletClass)
	if err != nil {
		return err
	}
	c.router.outlet = outlet
	c.router.render = inst.Render
	return nil
}

func (c *component) OnInit(inst *mosaic.Instance) {
	path := c.router.start
	if cur, ok := c.router.Current(); ok {
		path = cur.Path
		if len(cur.Query) > 0 {
			path += "?" + cur.Query.Encode()
		}
	}
	if err := c.router.Navigate(path); err != nil {
		inst.Logger().Error("initial navigation failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}
