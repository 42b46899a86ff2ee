package submission

import (
	"errors"
	"strings"
)

var (
	// ErrInFlight is returned when Submit is called while an attempt is running.
	ErrInFlight = errors.New("submission: attempt already in flight")
	// ErrMissingCredentialProvider signals an orchestrator built without a credential capability.
	ErrMissingCredentialProvider = errors.New("submission: credential provider is required")
	// ErrMissingDispatcher signals an orchestrator built without a dispatch capability.
	ErrMissingDispatcher = errors.New("submission: dispatcher is required")
)

// ErrorKind classifies a failed attempt.
type ErrorKind string

const (
	KindCredential ErrorKind = "credential_error"
	KindDispatch   ErrorKind = "dispatch_error"
)

// Error is the plain-data form of a collaborator failure.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func newError(kind ErrorKind, err error) *Error {
	message := ""
	if err != nil {
		message = strings.TrimSpace(err.Error())
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message == "" {
		return "submission: " + string(e.Kind)
	}
	return "submission: " + string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// AsError extracts an *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
