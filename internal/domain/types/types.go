// Package types contains cross-cutting types shared across the client,
// chiefly the error taxonomy used by every workflow.
package types

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Callers branch with errors.Is.
var (
	// ErrValidation is detected client-side; no network call was made.
	ErrValidation = errors.New("validation error")

	// ErrAuth means the server rejected a login or registration.
	ErrAuth = errors.New("authentication rejected")

	// ErrAuthorization means an authenticated user hit a role-forbidden
	// destination. Resolved by silent redirect, never shown as text.
	ErrAuthorization = errors.New("not authorized")

	// ErrTransport means the backend was unreachable or the response unusable.
	ErrTransport = errors.New("server not reachable")

	// ErrConflict means the server rejected a mutation; the server message is
	// passed through verbatim when available.
	ErrConflict = errors.New("request rejected")
)

// Error couples a taxonomy kind with a user-facing message.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Message)
}

func (e *Error) Unwrap() error { return e.Kind }

// Constructors for each taxonomy kind.

func Validation(msg string) *Error    { return &Error{Kind: ErrValidation, Message: msg} }
func Auth(msg string) *Error          { return &Error{Kind: ErrAuth, Message: msg} }
func Authorization(msg string) *Error { return &Error{Kind: ErrAuthorization, Message: msg} }
func Transport(msg string) *Error     { return &Error{Kind: ErrTransport, Message: msg} }
func Conflict(msg string) *Error      { return &Error{Kind: ErrConflict, Message: msg} }

// UserMessage extracts the text to surface for err: the server-supplied or
// client-side message when present, otherwise the kind's generic text.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var te *Error
	if errors.As(err, &te) {
		if te.Message != "" {
			return te.Message
		}
		return te.Kind.Error()
	}
	return err.Error()
}
