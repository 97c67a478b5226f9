package mosaic

import (
	"errors"
	"fmt"

	"github.com/randalmurphal/mosaic/pkg/mosaic/dom"
)

// Sentinel errors for rendering.
var (
	// ErrUnknownComponent indicates no definition is registered under a name
	// and no loader could provide one.
	ErrUnknownComponent = errors.New("unknown component")

	// ErrNilNode indicates Render was called without a container node.
	ErrNilNode = dom.ErrNilNode

	// ErrSuperseded indicates a lazy load finished after its container was
	// rendered again or unmounted. The result is discarded.
	ErrSuperseded = errors.New("render superseded")

	// ErrExecutorClosed indicates a load completed but the executor refused
	// to run the rest of the render.
	ErrExecutorClosed = errors.New("executor closed")

	// ErrOutsideInstance indicates Instance.Render targeted a node that is
	// not strictly inside the instance's container.
	ErrOutsideInstance = errors.New("node is outside the instance")
)

// RenderError wraps a failure with the component and stage it happened in.
type RenderError struct {
	// Component is the name that was being rendered.
	Component string
	// Op is the stage that failed ("lookup", "load", "render", "init", "subscribe").
	Op string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *RenderError) Error() string {
	return fmt.Sprintf("component %s: %s: %v", e.Component, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *RenderError) Unwrap() error {
	return e.Err
}

// PanicError captures a panic raised by component code.
type PanicError struct {
	// Component is the component whose code panicked.
	Component string
	// Op is the hook that panicked ("render", "init", "listeners").
	Op string
	// Value is the value passed to panic().
	Value any
	// Stack is the stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("component %s panicked in %s: %v", e.Component, e.Op, e.Value)
}
