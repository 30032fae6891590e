package domain

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindInvalidInput        ErrorKind = "InvalidInput"
	KindNotFound            ErrorKind = "NotFound"
	KindUpstream4xx         ErrorKind = "Upstream4xx"
	KindUpstreamUnavailable ErrorKind = "UpstreamUnavailable"
	KindRateLimitExceeded   ErrorKind = "RateLimitExceeded"
	KindTimeout             ErrorKind = "Timeout"
	KindInternal            ErrorKind = "Internal"
)

// Error is the structured failure surfaced by the upstream client and the
// review service. Two errors match under errors.Is when their kinds match.
type Error struct {
	Kind    ErrorKind
	Message string

	// upstream HTTP status, 0 when no response was received
	Status int
	Err    error
}

var (
	ErrInvalidInput        = &Error{Kind: KindInvalidInput}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrUpstream4xx         = &Error{Kind: KindUpstream4xx}
	ErrUpstreamUnavailable = &Error{Kind: KindUpstreamUnavailable}
	ErrRateLimitExceeded   = &Error{Kind: KindRateLimitExceeded}
	ErrTimeout             = &Error{Kind: KindTimeout}
)

func NewError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func InvalidInput(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
