package provider

import (
	"errors"
	"fmt"
)

// ErrorKind classifies provider call failures.
type ErrorKind string

const (
	// KindTransport covers network failures and timeouts. The remote outcome
	// is unknown: callers should re-poll status instead of retrying uploads.
	KindTransport ErrorKind = "transport"

	// KindAuth means the provider rejected the request signature (HTTP 401).
	// Retrying cannot fix a bad secret.
	KindAuth ErrorKind = "auth"

	// KindDomain is any other non-2xx response with a structured error body.
	KindDomain ErrorKind = "domain"
)

// Error wraps a failed provider call with its classification and, for HTTP
// failures, the raw status and body for diagnostics.
type Error struct {
	Kind       ErrorKind
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("provider %s [%s]: %v", e.Op, e.Kind, e.Err)
	case e.Body != "":
		return fmt.Sprintf("provider %s [%s]: status %d: %s", e.Op, e.Kind, e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("provider %s [%s]: status %d", e.Op, e.Kind, e.StatusCode)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether blindly repeating the call is safe and useful.
func (e *Error) Retryable() bool { return e.Kind == KindTransport }

// IsKind reports whether err is a provider error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == kind
}

// IsAuth reports whether the provider rejected our request signature.
func IsAuth(err error) bool { return IsKind(err, KindAuth) }

// IsTransport reports whether the call failed before a response arrived.
func IsTransport(err error) bool { return IsKind(err, KindTransport) }
