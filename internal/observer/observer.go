// Package observer carries non-fatal pipeline errors to a registered sink.
//
// Conversion and allocation failures downgrade frame delivery instead of
// aborting it, so they are reported out of band: each failure is described
// by a Kind plus context and handed to the sink injected at pipeline
// construction. There is no process-wide mutable callback.
package observer

import (
	"fmt"
	"log/slog"
)

// Kind identifies a class of pipeline error.
type Kind string

// Kind constants for pipeline errors.
const (
	KindAllocationFailure     Kind = "ALLOCATION_FAILURE"
	KindUnsupportedConversion Kind = "UNSUPPORTED_CONVERSION"
	KindBackendUnavailable    Kind = "BACKEND_UNAVAILABLE"
	KindReleaseAfterExpiry    Kind = "RELEASE_AFTER_EXPIRY"
)

// Error is a coded, observable pipeline error.
type Error struct {
	Kind    Kind           `json:"kind"`
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
	Cause   error          `json:"-"`
}

// New creates an observable error.
func New(kind Kind, message string, context map[string]any) *Error {
	return &Error{Kind: kind, Message: message, Context: context}
}

// Wrap creates an observable error with an underlying cause.
func Wrap(kind Kind, message string, cause error, context map[string]any) *Error {
	return &Error{Kind: kind, Message: message, Context: context, Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Cause }

// Sink receives pipeline errors. Implementations must be safe for calls
// from the capture thread and must not block; delivery continues regardless
// of what the sink does.
type Sink interface {
	Observe(err *Error)
}

// Func adapts a plain function to a Sink.
type Func func(err *Error)

// Observe implements Sink.
func (f Func) Observe(err *Error) { f(err) }

// Nop returns a sink that discards every error, keeping call sites
// unconditional.
func Nop() Sink { return Func(func(*Error) {}) }

// Slog returns a sink that logs each error as a warning with its kind and
// context attached.
func Slog(logger *slog.Logger) Sink {
	return Func(func(err *Error) {
		args := []any{"kind", string(err.Kind)}
		for k, v := range err.Context {
			args = append(args, k, v)
		}
		if err.Cause != nil {
			args = append(args, "error", err.Cause)
		}
		logger.Warn(err.Message, args...)
	})
}
