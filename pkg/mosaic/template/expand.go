package template

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

var (
	// bracePattern matches ${name} and ${name.field.sub}.
	bracePattern = regexp.MustCompile(`\$\{\s*([a-zA-Z_][a-zA-Z0-9_]*(?:\.[a-zA-Z0-9_]+)*)\s*\}`)

	// dollarPattern matches $name where name is followed by a non-word character
	// or end of string.
	dollarPattern = regexp.MustCompile(`\$([a-zA-Z_][a-zA-Z0-9_]*)(?:\b|$)`)
)

// Raw is a value inserted without escaping.
type Raw string

// Expander substitutes placeholders in component markup. It holds no
// mutable state, so one value can serve concurrent renders.
type Expander struct {
	missingAction MissingAction
	dollarStyle   bool
	escape        bool
}

// NewExpander returns an Expander that escapes values, leaves unknown
// placeholders untouched and ignores bare $name unless opts say otherwise.
func NewExpander(opts ...Option) *Expander {
	e := &Expander{
		missingAction: MissingKeep,
		escape:        true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expand expands variable patterns in s using vars.
//
// Errors are only returned when MissingAction is MissingError and a
// variable is not found.
//
// Example:
//
//	exp := NewExpander()
//	out, err := exp.Expand(`<h1>${title}</h1>`, map[string]any{"title": "a < b"})
//	// out: "<h1>a &lt; b</h1>"
func (e *Expander) Expand(s string, vars map[string]any) (string, error) {
	if s == "" {
		return "", nil
	}

	var missing []string
	replace := func(match, name string) string {
		if val, ok := lookup(vars, name); ok {
			return e.format(val)
		}
		switch e.missingAction {
		case MissingEmpty:
			return ""
		case MissingError:
			missing = append(missing, name)
			return match
		default:
			return match
		}
	}

	result := bracePattern.ReplaceAllStringFunc(s, func(match string) string {
		return replace(match, bracePattern.FindStringSubmatch(match)[1])
	})
	if e.dollarStyle {
		result = dollarPattern.ReplaceAllStringFunc(result, func(match string) string {
			return replace(match, match[1:])
		})
	}

	if len(missing) > 0 {
		return result, &UndefinedVariableError{Names: missing}
	}
	return result, nil
}

// MustExpand is Expand for templates known to be complete.
func (e *Expander) MustExpand(s string, vars map[string]any) string {
	result, err := e.Expand(s, vars)
	if err != nil {
		panic(fmt.Sprintf("template: %v", err))
	}
	return result
}

func (e *Expander) format(val any) string {
	switch v := val.(type) {
	case Raw:
		return string(v)
	case nil:
		return ""
	}
	s := fmt.Sprintf("%v", val)
	if e.escape {
		return html.EscapeString(s)
	}
	return s
}

// lookup resolves a dotted name through nested maps.
func lookup(vars map[string]any, name string) (any, bool) {
	parts := strings.Split(name, ".")
	var cur any = vars
	for _, p := range parts {
		switch m := cur.(type) {
		case map[string]any:
			v, ok := m[p]
			if !ok {
				return nil, false
			}
			cur = v
		case map[string]string:
			v, ok := m[p]
			if !ok {
				return nil, false
			}
			cur = v
		default:
			return nil, false
		}
	}
	return cur, true
}

// Vars converts render data into expansion variables. Maps keyed by string
// are copied; nil yields an empty map; any other value is exposed as "data".
func Vars(data any) map[string]any {
	out := make(map[string]any)
	switch d := data.(type) {
	case nil:
	case map[string]any:
		for k, v := range d {
			out[k] = v
		}
	case map[string]string:
		for k, v := range d {
			out[k] = v
		}
	default:
		out["data"] = d
	}
	return out
}

// Merge returns defaults overlaid with vars. Neither input is modified.
func Merge(defaults, vars map[string]any) map[string]any {
	out := make(map[string]any, len(defaults)+len(vars))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range vars {
		out[k] = v
	}
	return out
}

// UndefinedVariableError lists the placeholders a MissingError expander
// could not resolve, in order of first appearance.
type UndefinedVariableError struct {
	Names []string
}

func (e *UndefinedVariableError) Error() string {
	noun := "variable"
	if len(e.Names) > 1 {
		noun = "variables"
	}
	return "undefined " + noun + ": " + strings.Join(e.Names, ", ")
}

var defaultExpander = NewExpander()

// Expand expands ${var} patterns in s with HTML escaping, keeping
// placeholders whose variable is missing.
func Expand(s string, vars map[string]any) string {
	// MissingKeep never errors.
	result, _ := defaultExpander.Expand(s, vars)
	return result
}
