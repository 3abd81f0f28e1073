// Package ferr defines the error taxonomy shared by every coordination
// component, mirroring the classification in spec §7 so that callers
// (and, eventually, an external transport shell) can branch on Kind
// without parsing message text.
package ferr

import "errors"

// Kind classifies a coordination failure. The zero value is never
// returned by this package's constructors.
type Kind string

const (
	NotFound            Kind = "not_found"
	Conflict            Kind = "conflict"
	PreconditionFailed  Kind = "precondition_failed"
	Timeout             Kind = "timeout"
	InvalidInput        Kind = "invalid_input"
	Unauthorized        Kind = "unauthorized"
	Forbidden           Kind = "forbidden"
	StorageUnavailable  Kind = "storage_unavailable"
	Internal            Kind = "internal"
	Cancelled           Kind = "cancelled"
	CursorRegression    Kind = "cursor_regression"
	NotHolder           Kind = "not_holder"
	StateConflict       Kind = "state_conflict"
)

// Error is the single error type returned across package boundaries in
// this module. Details carries caller-safe structured context (ids,
// paths, cycle members) — never secrets or full file contents, per
// spec §7's sensitive-data policy.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	Cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is supports errors.Is comparisons against a Kind sentinel created via New(kind, "").
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs an Error of the given Kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error that preserves cause for Unwrap/errors.Is chains.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithDetails attaches structured, caller-safe context to an Error and
// returns a new value (the receiver is not mutated).
func (e *Error) WithDetails(details map[string]any) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// KindOf extracts the Kind from err: the empty Kind when err is nil,
// Internal when err is not a *Error produced by this package.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Internal
}

// HTTPStatus maps a Kind to the HTTP status code spec §7 assigns it.
// This module never imports net/http itself — it exposes the mapping
// as a plain table for the (external) transport shell to consume.
var httpStatus = map[Kind]int{
	NotFound:           404,
	Conflict:           409,
	StateConflict:      409,
	NotHolder:          409,
	PreconditionFailed: 412,
	CursorRegression:   412,
	Timeout:            504,
	InvalidInput:       400,
	Unauthorized:       401,
	Forbidden:          403,
	StorageUnavailable: 503,
	Internal:           500,
	Cancelled:          499,
}

// HTTPStatus returns the status code spec §7 assigns to kind, or 500
// for an unrecognized kind.
func HTTPStatus(kind Kind) int {
	if code, ok := httpStatus[kind]; ok {
		return code
	}
	return 500
}

// Retryable reports whether the recovery policy in spec §7 treats this
// kind as internally retryable by the caller (StorageUnavailable and
// Timeout on transient paths).
func Retryable(kind Kind) bool {
	return kind == StorageUnavailable || kind == Timeout
}
