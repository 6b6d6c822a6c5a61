package avalon

import (
	"fmt"

	"github.com/pkg/errors"
)

// A ConfigurationError reports that a component cannot be built or cannot
// perform an operation with the wires and options it was given.
type ConfigurationError struct {
	Component string
	Reason    string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: configuration error: %s", e.Component, e.Reason)
}

// A ValidationError reports that the arguments of a call are invalid. The
// call is rejected and nothing is driven.
type ValidationError struct {
	Component string
	Reason    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: validation error: %s", e.Component, e.Reason)
}

// A ProtocolError reports a malformed bus sequence observed by a monitor.
// The monitor does not recover from it.
type ProtocolError struct {
	Component string
	Cycle     uint64
	Reason    string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: protocol error at cycle %d: %s",
		e.Component, e.Cycle, e.Reason)
}

// NewConfigurationError creates a ConfigurationError with a stack trace.
func NewConfigurationError(component, format string, args ...interface{}) error {
	return errors.WithStack(&ConfigurationError{
		Component: component,
		Reason:    fmt.Sprintf(format, args...),
	})
}

// NewValidationError creates a ValidationError with a stack trace.
func NewValidationError(component, format string, args ...interface{}) error {
	return errors.WithStack(&ValidationError{
		Component: component,
		Reason:    fmt.Sprintf(format, args...),
	})
}

// NewProtocolError creates a ProtocolError with a stack trace.
func NewProtocolError(
	component string,
	cycle uint64,
	format string,
	args ...interface{},
) error {
	return errors.WithStack(&ProtocolError{
		Component: component,
		Cycle:     cycle,
		Reason:    fmt.Sprintf(format, args...),
	})
}

// IsConfigurationError tells if the cause of err is a ConfigurationError.
func IsConfigurationError(err error) bool {
	_, ok := errors.Cause(err).(*ConfigurationError)
	return ok
}

// IsValidationError tells if the cause of err is a ValidationError.
func IsValidationError(err error) bool {
	_, ok := errors.Cause(err).(*ValidationError)
	return ok
}

// IsProtocolError tells if the cause of err is a ProtocolError.
func IsProtocolError(err error) bool {
	_, ok := errors.Cause(err).(*ProtocolError)
	return ok
}
