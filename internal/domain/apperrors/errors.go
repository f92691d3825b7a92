// Package apperrors defines the tagged error kinds shared across the backend.
// Callers branch on Kind rather than on concrete error identity.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for transport mapping and retry decisions.
type Kind int

const (
	KindUnknown Kind = iota
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindRateLimited
	KindValidation
	KindUpstreamTransient
	KindUpstreamFatal
	KindDegraded
)

var kindNames = map[Kind]string{
	KindUnknown:           "unknown",
	KindAuthentication:    "authentication",
	KindAuthorization:     "authorization",
	KindNotFound:          "not_found",
	KindRateLimited:       "rate_limited",
	KindValidation:        "validation",
	KindUpstreamTransient: "upstream_transient",
	KindUpstreamFatal:     "upstream_fatal",
	KindDegraded:          "degraded",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error carries a Kind, the operation that failed and an optional cause.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an error of the given kind.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap attaches a kind to an existing error. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the outermost *Error in the chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Convenience constructors used by the services.

func NotFound(op, message string) *Error { return New(KindNotFound, op, message) }

func PermissionDenied(op, message string) *Error { return New(KindAuthorization, op, message) }

func Unauthenticated(op, message string) *Error { return New(KindAuthentication, op, message) }

func Validation(op, message string) *Error { return New(KindValidation, op, message) }
