// Package faults defines the error taxonomy shared by every client component.
//
// None of these errors ever reach the embedding host: public operations log them
// and degrade to "no tracking" instead.
package faults

import (
	"errors"
	"fmt"
)

// Kind categorizes a failure.
type Kind string

const (
	// KindConfig covers a missing publishable key or a malformed consent/identify argument.
	KindConfig Kind = "config"
	// KindStorageUnavailable covers an inaccessible cookie jar or local store.
	KindStorageUnavailable Kind = "storage_unavailable"
	// KindTransport covers network failures and non-2xx responses.
	KindTransport Kind = "transport"
	// KindMalformedState covers corrupt persisted JSON.
	KindMalformedState Kind = "malformed_state"
)

// Error is a categorized failure with the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Sentinels for errors.Is comparisons.
var (
	ErrConfig             = &Error{Kind: KindConfig}
	ErrStorageUnavailable = &Error{Kind: KindStorageUnavailable}
	ErrTransport          = &Error{Kind: KindTransport}
	ErrMalformedState     = &Error{Kind: KindMalformedState}
)

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Config builds a KindConfig error.
func Config(op, format string, args ...any) error {
	return &Error{Kind: KindConfig, Op: op, Err: fmt.Errorf(format, args...)}
}

// StorageUnavailable wraps a storage failure.
func StorageUnavailable(op string, err error) error {
	return &Error{Kind: KindStorageUnavailable, Op: op, Err: err}
}

// Transport wraps a delivery failure.
func Transport(op string, err error) error {
	return &Error{Kind: KindTransport, Op: op, Err: err}
}

// MalformedState wraps a decode failure of persisted state.
func MalformedState(op string, err error) error {
	return &Error{Kind: KindMalformedState, Op: op, Err: err}
}

// KindOf returns the kind of err, or "" when err is not categorized.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
