package loader

import (
	"bytes"
	"fmt"

	"golang.org/x/net/html"
	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/mosaic/pkg/mosaic"
	"github.com/randalmurphal/mosaic/pkg/mosaic/dom"
	"github.com/randalmurphal/mosaic/pkg/mosaic/template"
)

var frontMatterDelim = []byte("---")

// FrontMatter is the optional YAML header of a fragment.
type FrontMatter struct {
	// Imports lists the child components the markup has placeholders for.
	Imports []string `yaml:"imports"`
	// Defaults supplies template variables missing from the render data.
	Defaults map[string]any `yaml:"defaults"`
}

// Fragment is a view loaded from markup. It is a mosaic.Definition whose
// components expand ${var} references from the render data, then let the
// engine render the imported children.
type Fragment struct {
	Name   string
	Meta   FrontMatter
	Markup string

	expander *template.Expander
}

// ParseFragment parses src, an HTML fragment with optional front matter:
//
//	---
//	imports: [menu]
//	defaults:
//	  title: Dashboard
//	---
//	<h1>${title}</h1>
//	<nav class="-menu"></nav>
func ParseFragment(name string, src []byte, expander *template.Expander) (*Fragment, error) {
	if expander == nil {
		expander = template.NewExpander()
	}
	f := &Fragment{Name: name, expander: expander}

	body := src
	if header, rest, ok := splitFrontMatter(src); ok {
		if err := yaml.Unmarshal(header, &f.Meta); err != nil {
			return nil, fmt.Errorf("fragment %s: front matter: %w", name, err)
		}
		body = rest
	}
	f.Markup = string(body)
	return f, nil
}

// splitFrontMatter separates a leading "---" block from the markup.
func splitFrontMatter(src []byte) (header, rest []byte, ok bool) {
	trimmed := bytes.TrimPrefix(src, []byte("\ufeff"))
	if !bytes.HasPrefix(trimmed, frontMatterDelim) {
		return nil, src, false
	}
	lines := bytes.SplitAfter(trimmed, []byte("\n"))
	if len(lines) == 0 || !bytes.Equal(bytes.TrimSpace(lines[0]), frontMatterDelim) {
		return nil, src, false
	}
	offset := len(lines[0])
	for _, line := range lines[1:] {
		if bytes.Equal(bytes.TrimSpace(line), frontMatterDelim) {
			header = trimmed[len(lines[0]):offset]
			rest = trimmed[offset+len(line):]
			return header, rest, true
		}
		offset += len(line)
	}
	return nil, src, false
}

// New implements mosaic.Definition.
func (f *Fragment) New() mosaic.Component {
	return &fragmentComponent{f: f}
}

type fragmentComponent struct {
	f *Fragment
}

func (c *fragmentComponent) Render(_ *mosaic.Instance, node *html.Node, data any) error {
	vars := template.Merge(c.f.Meta.Defaults, template.Vars(data))
	out, err := c.f.expander.Expand(c.f.Markup, vars)
	if err != nil {
		return err
	}
	return dom.SetInnerHTML(node, out)
}

func (c *fragmentComponent) Imports() []string {
	return c.f.Meta.Imports
}
