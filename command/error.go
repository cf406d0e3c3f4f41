package command

import (
	"errors"
	"fmt"
)

// ErrorCode is a machine-readable classification of a command failure.
type ErrorCode string

const (
	// Unsupported means the engine does not implement the command.
	Unsupported ErrorCode = "unsupported"

	// NotFound means the command refers to an entity that does not exist.
	NotFound ErrorCode = "not-found"

	// Invalid means the command failed validation.
	Invalid ErrorCode = "invalid"

	// Conflict means the command is not valid in the entity's current state.
	Conflict ErrorCode = "conflict"

	// Malformed means the command envelope could not be decoded.
	Malformed ErrorCode = "malformed"

	// Internal is used for any other failure.
	Internal ErrorCode = "internal"
)

// Error is an error with an associated ErrorCode.
//
// Handlers return an Error to control the code of the ErrorResult that is
// sent back to the caller.
type Error struct {
	Code    ErrorCode
	Message string
}

// Errorf returns a new Error with the given code.
func Errorf(code ErrorCode, f string, v ...any) Error {
	return Error{code, fmt.Sprintf(f, v...)}
}

func (e Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewErrorResult returns an ErrorResult describing err.
//
// If err is or wraps an Error its code is used, otherwise the code is
// Internal.
func NewErrorResult(err error) ErrorResult {
	var e Error
	if errors.As(err, &e) {
		return ErrorResult{e.Code, e.Message}
	}

	return ErrorResult{Internal, err.Error()}
}
