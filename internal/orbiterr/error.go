// Package orbiterr defines the closed error taxonomy every pipeline stage
// maps its native errors into before the chat pipeline sees them (spec §7).
package orbiterr

import (
	"errors"
	"fmt"
)

// Kind is one of the closed set of error categories the pipeline understands.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindAuth             Kind = "auth"
	KindForbidden        Kind = "forbidden"
	KindConfig           Kind = "config"
	KindUpstreamTransient Kind = "upstream_transient"
	KindUpstreamPermanent Kind = "upstream_permanent"
	KindBlocked          Kind = "blocked"
	KindCancelled        Kind = "cancelled"
)

// Error is the typed error every stage returns; it carries enough to pick an
// HTTP status and a retry decision without re-inspecting the wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// As is a thin convenience wrapper around errors.As for this package's type.
func As(err error) (*Error, bool) {
	var e *Error

	if errors.As(err, &e) {
		return e, true
	}

	return nil, false
}

// Retryable reports whether the spec's retry policy (§4.6) applies: only
// UpstreamTransient errors are retried; everything else is terminal.
func Retryable(err error) bool {
	e, ok := As(err)
	if !ok {
		return false
	}

	return e.Kind == KindUpstreamTransient
}

// HTTPStatus maps a Kind to the status spec §7 assigns it. Stages after the
// earliest fatal one never reach the HTTP layer directly; they are
// represented in-stream instead (see httpapi).
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return 400
	case KindAuth:
		return 401
	case KindForbidden:
		return 403
	case KindConfig:
		return 500
	case KindUpstreamPermanent:
		return 502
	case KindUpstreamTransient:
		return 503
	case KindBlocked:
		return 200
	case KindCancelled:
		return 499
	default:
		return 500
	}
}
