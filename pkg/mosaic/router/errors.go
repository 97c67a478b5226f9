package router

import (
	"errors"
	"fmt"
)

// Sentinel errors for routing.
var (
	// ErrNoRoute indicates no pattern matches a path.
	ErrNoRoute = errors.New("no route matches path")

	// ErrRedirectLoop indicates redirects did not settle on a component.
	ErrRedirectLoop = errors.New("too many redirects")

	// ErrNoHistory indicates Back was called with nothing to go back to.
	ErrNoHistory = errors.New("no previous entry in history")

	// ErrNotStarted indicates Reload was called before any navigation.
	ErrNotStarted = errors.New("router has not navigated yet")

	// ErrNoOutlet indicates navigation was attempted without an outlet node.
	ErrNoOutlet = errors.New("router has no outlet")

	// ErrInvalidRoute indicates a route could not be added to the table.
	ErrInvalidRoute = errors.New("invalid route")
)

// RouteError wraps a failure with the pattern it concerns.
type RouteError struct {
	// Pattern is the route pattern.
	Pattern string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *RouteError) Error() string {
	return fmt.Sprintf("route %q: %v", e.Pattern, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *RouteError) Unwrap() error {
	return e.Err
}
