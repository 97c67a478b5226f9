package template

// MissingAction selects what happens to a placeholder with no value.
type MissingAction int

const (
	// MissingKeep leaves "${name}" in the output. Default.
	MissingKeep MissingAction = iota
	// MissingEmpty drops the placeholder.
	MissingEmpty
	// MissingError fails with *UndefinedVariableError.
	MissingError
)

// ParseMissingAction maps "keep", "empty" or "error" to a MissingAction.
func ParseMissingAction(s string) (MissingAction, bool) {
	switch s {
	case "", "keep":
		return MissingKeep, true
	case "empty":
		return MissingEmpty, true
	case "error":
		return MissingError, true
	}
	return MissingKeep, false
}

// Option tunes an Expander.
type Option func(*Expander)

// WithMissingAction picks the handling for unknown names:
//
//	strict := NewExpander(WithMissingAction(MissingError))
func WithMissingAction(action MissingAction) Option {
	return func(e *Expander) {
		e.missingAction = action
	}
}

// WithDollarStyle also expands bare $name. Off by default since markup
// often carries literal prices.
func WithDollarStyle(enabled bool) Option {
	return func(e *Expander) {
		e.dollarStyle = enabled
	}
}

// WithEscape toggles HTML escaping of substituted values (on by default).
func WithEscape(enabled bool) Option {
	return func(e *Expander) {
		e.escape = enabled
	}
}
