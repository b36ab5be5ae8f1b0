package models

import (
	"errors"
	"fmt"
)

// Kind classifies core errors. Every failure crossing a component
// boundary is wrapped into one of these kinds; raw provider or driver
// errors never leak past the package that produced them.
type Kind string

const (
	// KindConfiguration indicates invalid configuration, such as a chunk
	// overlap that is not smaller than the chunk size.
	KindConfiguration Kind = "configuration"

	// KindDimensionMismatch indicates a chunk/embedding count mismatch or
	// a vector whose length differs from the store dimension.
	KindDimensionMismatch Kind = "dimension_mismatch"

	// KindDuplicateID indicates a chunk id collision on insert.
	KindDuplicateID Kind = "duplicate_id"

	// KindNotFound indicates a lookup of an unknown document id.
	KindNotFound Kind = "not_found"

	// KindProvider indicates an external capability failure (embedding,
	// generation, or the storage backend), including timeouts.
	KindProvider Kind = "provider"
)

// Error is the structured error type used throughout the core.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError creates a structured error with no underlying cause.
func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError wraps an underlying failure into a structured error.
func WrapError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// IsKind reports whether err or any error it wraps is a core error of
// the given kind.
func IsKind(err error, kind Kind) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Kind == kind
}

// KindOf returns the kind of err, or an empty Kind for errors that are
// not core errors.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}
