// Package mtperr defines the closed error taxonomy that crosses every
// component boundary in the deterministic execution core. Kind strings
// are part of the wire contract (spec §7) and must never be renamed.
package mtperr

import "fmt"

// Kind is one of the closed set of error kinds the core may surface.
// The zero value is not a valid Kind.
type Kind string

const (
	GasExhausted         Kind = "GasExhausted"
	MemoryLimitExceeded  Kind = "MemoryLimitExceeded"
	InvalidDecimal       Kind = "InvalidDecimal"
	IntegerOverflow      Kind = "IntegerOverflow"
	InvalidEffect        Kind = "InvalidEffect"
	UndeclaredEffect     Kind = "UndeclaredEffect"
	InvalidSignature     Kind = "InvalidSignature"
	ForbiddenSyntax      Kind = "ForbiddenSyntax"
	DecimalDivByZero     Kind = "DecimalDivByZero"
	JSONDuplicateKey     Kind = "JsonDuplicateKey"
	DbReadFailed         Kind = "DbReadFailed"
	DbWriteFailed        Kind = "DbWriteFailed"
	HTTPTransportError   Kind = "HttpTransportError"
	HTTPResponseTooLarge Kind = "HttpResponseTooLarge"
	Cancelled            Kind = "Cancelled"
	Internal             Kind = "Internal"
)

// Error is the single concrete error type returned across package
// boundaries. It carries no stack trace, matching the wire contract's
// error envelope (spec §6): {error, message, details?}.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any

	// wrapped, if set, lets errors.Is/errors.As see through to a cause
	// (e.g. an *pgconn.PgError or *url.Error) without leaking it onto
	// the wire — Error() never prints it.
	wrapped error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.wrapped }

// Is reports whether target is an *Error with the same Kind, so that
// errors.Is(err, mtperr.New(mtperr.GasExhausted, "")) works as a kind
// check regardless of message or details.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New builds an *Error with no underlying cause.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error that keeps cause reachable via errors.Unwrap,
// without ever including cause's text in Message (callers decide what,
// if anything, of the underlying error is safe to surface).
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), wrapped: cause}
}

// WithDetails attaches structured details to the error envelope and
// returns the same *Error for chaining at the construction site.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// StatusCode maps a Kind to the HTTP status the response envelope uses
// when this error is fatal at the context level (spec §7): 500 for
// traps, 400 for guest-surfaced validation errors, never anything else.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case ForbiddenSyntax, JSONDuplicateKey, InvalidDecimal, IntegerOverflow:
		return 400
	default:
		return 500
	}
}
