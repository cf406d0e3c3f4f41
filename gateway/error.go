package gateway

import (
	"fmt"

	"github.com/dogmatiq/processkit/command"
)

// DispatchFailedError is returned when a command could not be published.
type DispatchFailedError struct {
	Kind     command.Kind
	Attempts int
	Cause    error
}

func (e DispatchFailedError) Error() string {
	return fmt.Sprintf(
		"unable to dispatch %s command after %d attempt(s): %s",
		e.Kind,
		e.Attempts,
		e.Cause,
	)
}

// Unwrap returns the cause of the failure.
func (e DispatchFailedError) Unwrap() error {
	return e.Cause
}

// RemoteCommandError is returned when the process engine reports that a
// command failed.
type RemoteCommandError struct {
	Kind    command.Kind
	Code    command.ErrorCode
	Message string
}

func (e RemoteCommandError) Error() string {
	return fmt.Sprintf("%s command failed: %s: %s", e.Kind, e.Code, e.Message)
}

// Is returns true if target is a command.Error with the same code.
func (e RemoteCommandError) Is(target error) bool {
	t, ok := target.(command.Error)
	return ok && t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

// UnexpectedResultError is returned when the result of a command is not of
// the type expected for that kind of command.
type UnexpectedResultError struct {
	Kind   command.Kind
	Result command.Result
}

func (e UnexpectedResultError) Error() string {
	return fmt.Sprintf("unexpected %T result for %s command", e.Result, e.Kind)
}

// InvalidCommandError is returned when a command fails validation before it
// is dispatched.
type InvalidCommandError struct {
	Kind  command.Kind
	Cause error
}

func (e InvalidCommandError) Error() string {
	return fmt.Sprintf("invalid %s command: %s", e.Kind, e.Cause)
}

// Unwrap returns the validation error.
func (e InvalidCommandError) Unwrap() error {
	return e.Cause
}
