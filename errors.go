package aigen

import (
	"errors"
	"fmt"
)

// ErrorKind classifies generation pipeline failures. Kinds up to
// KindGenerationFailed are surfaced to the caller; KindPersistenceFailed and
// KindParseFailed are recovered locally and only reported to the monitor.
type ErrorKind string

const (
	// KindUnsupportedModel means the model id did not resolve in the registry.
	KindUnsupportedModel ErrorKind = "unsupported_model"
	// KindUnauthenticated means no usable session credential was available.
	KindUnauthenticated ErrorKind = "unauthenticated"
	// KindQuotaExceeded means the plan's generation limit was reached.
	KindQuotaExceeded ErrorKind = "quota_exceeded"
	// KindGenerationFailed means the remote endpoint or provider rejected
	// the request.
	KindGenerationFailed ErrorKind = "generation_failed"
	// KindPersistenceFailed means the durable history write failed.
	KindPersistenceFailed ErrorKind = "persistence_failed"
	// KindParseFailed means locally cached history was malformed.
	KindParseFailed ErrorKind = "parse_failed"
)

// Error is the typed error returned by the generation pipeline.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates an Error with the given kind and formatted message.
func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates an Error wrapping an underlying cause.
func WrapError(kind ErrorKind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// IsKind reports whether err is (or wraps) an Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
