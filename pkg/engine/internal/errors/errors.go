// Package errors defines the error taxonomy of the execution engine.
// Concrete errors wrap one of the sentinels with additional context so that
// callers can classify failures with errors.Is.
package errors

import "errors"

var (
	// ErrIndex indicates an out-of-range index, such as a partition index
	// outside the node's output partitioning.
	ErrIndex = errors.New("index error")

	// ErrKey indicates a failed name resolution, such as an expression
	// referencing a column that does not exist in the schema.
	ErrKey = errors.New("key error")

	// ErrType indicates a type mismatch, either detected at expression
	// compile time or as a malformed evaluation result.
	ErrType = errors.New("type error")

	// ErrNotImplemented indicates an operation without an implementation for
	// the given input types.
	ErrNotImplemented = errors.New("not implemented")
)
