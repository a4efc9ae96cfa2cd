// Package programerr defines the stable error codes returned by the
// dataversion program. Every failure surfaced by the codec, the
// instruction decoder, the ownership gate or the processor maps to exactly
// one of these codes.
package programerr

import (
	"errors"
	"fmt"
)

// Code identifies a program error. Values are part of the external contract
// and must never be renumbered.
type Code uint32

const (
	CodeInvalidInstruction Code = iota
	CodeDeserializationFailure
	CodeAlreadyInitialized
	CodeIncorrectProgramID
	CodeUnsupportedVersion
	CodeNotInitialized
	CodeAccountDataTooSmall
)

var names = map[Code]string{
	CodeInvalidInstruction:     "InvalidInstruction",
	CodeDeserializationFailure: "DeserializationFailure",
	CodeAlreadyInitialized:     "AlreadyInitializedState",
	CodeIncorrectProgramID:     "IncorrectProgramId",
	CodeUnsupportedVersion:     "UnsupportedVersion",
	CodeNotInitialized:         "NotInitialized",
	CodeAccountDataTooSmall:    "AccountDataTooSmall",
}

// String returns the symbolic name of the code.
func (c Code) String() string {
	if name, ok := names[c]; ok {
		return name
	}
	return fmt.Sprintf("Code(%d)", uint32(c))
}

// Error is a program error with a stable code and a human-readable message.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Program errors
var (
	ErrInvalidInstruction     = &Error{CodeInvalidInstruction, "Invalid instruction"}
	ErrDeserializationFailure = &Error{CodeDeserializationFailure, "Error deserializing account data"}
	ErrAlreadyInitialized     = &Error{CodeAlreadyInitialized, "Account already initialized"}
	ErrIncorrectProgramID     = &Error{CodeIncorrectProgramID, "Incorrect program id for account"}
	ErrUnsupportedVersion     = &Error{CodeUnsupportedVersion, "Unsupported data version"}
	ErrNotInitialized         = &Error{CodeNotInitialized, "Account not initialized"}
	ErrAccountDataTooSmall    = &Error{CodeAccountDataTooSmall, "Account data too small for record"}
)

// Wrap attaches detail to a program error while keeping errors.Is matches
// against the sentinel.
func Wrap(sentinel *Error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

// CodeOf returns the code of the program error wrapped in err.
func CodeOf(err error) (Code, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code, true
	}
	return 0, false
}
