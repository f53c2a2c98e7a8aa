package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind classifies a submission failure so handlers can pick a status code
// without inspecting message text.
type Kind int

const (
	Unknown Kind = iota
	ConfigurationMissing
	MalformedInput
	FormDisabled
	DeliveryFailed
	RateLimited
	VerificationFailed
	StorageFailed
)

func (k Kind) String() string {
	switch k {
	case ConfigurationMissing:
		return "configuration missing"
	case MalformedInput:
		return "malformed input"
	case FormDisabled:
		return "form disabled"
	case DeliveryFailed:
		return "delivery failed"
	case RateLimited:
		return "rate limited"
	case VerificationFailed:
		return "verification failed"
	case StorageFailed:
		return "storage failed"
	default:
		return "unknown error"
	}
}

// Status returns the HTTP status code reported to the submitter.
func (k Kind) Status() int {
	switch k {
	case FormDisabled:
		return http.StatusServiceUnavailable
	case RateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadRequest
	}
}

// Error is a kinded error raised while handling a submission.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New returns an Error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf formats msg and returns an Error of the given kind.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to err. An empty msg reuses err's message.
func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf reports the kind of the first Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// StatusOf maps err to an HTTP status. Errors without a kind are treated as
// bad requests, matching how every submission failure is surfaced.
func StatusOf(err error) int {
	return KindOf(err).Status()
}
