// protocol/errors.go
package protocol

import "errors"

// ServerError enumerates the error kinds a reply may carry. The set is part
// of the wire contract and shared with every client implementation.
type ServerError string

const (
	RoomAlreadyExists  ServerError = "RoomAlreadyExists"
	NotInARoom         ServerError = "NotInARoom"
	CantJoinRoom       ServerError = "CantJoinRoom"
	CantDeleteRoom     ServerError = "CantDeleteRoom"
	GameAlreadyStarted ServerError = "GameAlreadyStarted"
	GameNotStarted     ServerError = "GameNotStarted"
	InvalidOperator    ServerError = "InvalidOperator"
	InvalidRoles       ServerError = "InvalidRoles"
	ResponseTimeout    ServerError = "ResponseTimeout"
)

// Error is the structured error sent back to a requesting client. Message may
// be empty when the kind alone is enough.
type Error struct {
	Type    ServerError `json:"type"`
	Message string      `json:"message,omitempty"`
	cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Type)
	}
	return string(e.Type) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// NewError creates a protocol error of the given kind.
func NewError(kind ServerError, message string) *Error {
	return &Error{Type: kind, Message: message}
}

// WrapError creates a protocol error that preserves the underlying cause for
// logging while exposing only kind and message on the wire.
func WrapError(kind ServerError, message string, cause error) *Error {
	return &Error{Type: kind, Message: message, cause: cause}
}

// KindOf extracts the ServerError kind from err, or ok=false if err is not a
// protocol error.
func KindOf(err error) (ServerError, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Type, true
	}
	return "", false
}

// IsKind reports whether err is a protocol error of the given kind.
func IsKind(err error, kind ServerError) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
