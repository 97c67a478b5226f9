package bus

import (
	"errors"
	"fmt"
)

// ErrNilHandler indicates a listener map contained a nil handler.
var ErrNilHandler = errors.New("handler is not callable")

// ConfigError reports an invalid listener map passed to Subscribe.
// No subscription from the batch is registered when it is returned.
type ConfigError struct {
	Topic string
	Event string
	Err   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("subscribe (%s) %s: %v", e.Topic, e.Event, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// PanicError captures a panic raised by a handler during delivery.
type PanicError struct {
	Topic string
	Event string
	// Value is the value passed to panic().
	Value any
	// Stack is the stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("handler for (%s) %s panicked: %v", e.Topic, e.Event, e.Value)
}
