package workers

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownCapability = errors.New("unknown capability")
	ErrInvalidArguments  = errors.New("invalid arguments")
	ErrInvalidResult     = errors.New("invalid worker result")
	ErrNoEndpoint        = errors.New("no endpoint configured")
)

// InvocationError is returned when a capability call fails or the worker is unreachable.
type InvocationError struct {
	Capability Capability
	Mode       string
	Err        error
}

func (e *InvocationError) Error() string {
	if e.Mode == "" {
		return fmt.Sprintf("invoke %s: %v", e.Capability, e.Err)
	}
	return fmt.Sprintf("invoke %s (%s): %v", e.Capability, e.Mode, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }
