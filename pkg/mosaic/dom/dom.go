// Package dom is mosaic's view of the document tree.
//
// Nodes are golang.org/x/net/html nodes. The package only offers what the
// composition engine and components need: parsing a page, replacing a
// node's content with markup, selector queries and serialization.
package dom

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrNilNode indicates an operation was given a nil node.
var ErrNilNode = errors.New("node is nil")

// PlaceholderPrefix is prepended to a component name to form the class
// that marks a placeholder for that component: <div class="-menu">.
const PlaceholderPrefix = "-"

// Parse parses a full HTML document.
func Parse(markup string) (*html.Node, error) {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

// SetInnerHTML replaces all children of node with the parsed markup.
// The markup is parsed in the context of node, as a browser would.
func SetInnerHTML(node *html.Node, markup string) error {
	if node == nil {
		return ErrNilNode
	}
	context := node
	if node.Type != html.ElementNode {
		// Fragments parsed outside an element behave like <body> content.
		context = &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	}
	children, err := html.ParseFragment(strings.NewReader(markup), context)
	if err != nil {
		return fmt.Errorf("parse fragment: %w", err)
	}
	Clear(node)
	for _, c := range children {
		node.AppendChild(c)
	}
	return nil
}

// Clear detaches every child of node.
func Clear(node *html.Node) {
	for c := node.FirstChild; c != nil; {
		next := c.NextSibling
		node.RemoveChild(c)
		c = next
	}
}

// InnerHTML serializes the children of node.
func InnerHTML(node *html.Node) (string, error) {
	if node == nil {
		return "", ErrNilNode
	}
	var buf bytes.Buffer
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", fmt.Errorf("render node: %w", err)
		}
	}
	return buf.String(), nil
}

// Render serializes node itself, including its descendants.
func Render(node *html.Node) (string, error) {
	if node == nil {
		return "", ErrNilNode
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, node); err != nil {
		return "", fmt.Errorf("render node: %w", err)
	}
	return buf.String(), nil
}

// QueryAll returns the descendants of node that match selector, in
// document order. node itself is never included.
func QueryAll(node *html.Node, selector string) ([]*html.Node, error) {
	if node == nil {
		return nil, ErrNilNode
	}
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("compile selector %q: %w", selector, err)
	}
	matches := sel.MatchAll(node)
	out := matches[:0]
	for _, m := range matches {
		if m != node {
			out = append(out, m)
		}
	}
	return out, nil
}

// Query returns the first descendant of node that matches selector, or nil.
func Query(node *html.Node, selector string) (*html.Node, error) {
	all, err := QueryAll(node, selector)
	if err != nil || len(all) == 0 {
		return nil, err
	}
	return all[0], nil
}

// Placeholders returns the placeholder nodes for component name below node.
func Placeholders(node *html.Node, name string) ([]*html.Node, error) {
	if node == nil {
		return nil, ErrNilNode
	}
	var out []*html.Node
	class := PlaceholderPrefix + name
	Walk(node, func(n *html.Node) bool {
		if n != node && n.Type == html.ElementNode && HasClass(n, class) {
			out = append(out, n)
		}
		return true
	})
	return out, nil
}

// Walk visits node and its descendants depth-first in document order.
// Returning false from fn skips the children of the visited node.
func Walk(node *html.Node, fn func(*html.Node) bool) {
	if node == nil {
		return
	}
	if !fn(node) {
		return
	}
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		Walk(c, fn)
	}
}

// Contains reports whether n is root or one of its descendants.
func Contains(root, n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n == root {
			return true
		}
	}
	return false
}

// Attr returns the value of the named attribute.
func Attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets the named attribute, replacing any previous value.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr removes the named attribute if present.
func RemoveAttr(n *html.Node, key string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

// HasClass reports whether the class attribute of n lists class.
func HasClass(n *html.Node, class string) bool {
	v, ok := Attr(n, "class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}
