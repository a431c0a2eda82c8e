package common

import "github.com/cockroachdb/errors"

// Cursor contract errors.
var (
	// ErrUnsupported is returned by optional operations the receiver does not implement.
	ErrUnsupported = errors.New("operation not supported")

	// ErrIllegalState is returned when remove/update is called without a preceding next/peek.
	ErrIllegalState = errors.New("illegal state")

	// ErrNoSuchElement is returned by next/peek on an exhausted cursor.
	ErrNoSuchElement = errors.New("no such element")

	// ErrClosed is returned when a closed cursor is used again.
	ErrClosed = errors.New("cursor closed")
)

// Operator precondition errors.
var (
	// ErrUnsorted indicates an input of a sort-based operator violated its order.
	ErrUnsorted = errors.New("input not sorted")
)

// Tree errors.
var (
	// ErrNotFound indicates a remove of an absent key.
	ErrNotFound = errors.New("key not found")

	// ErrDuplicateKey is returned when a unique tree receives an existing key.
	ErrDuplicateKey = errors.New("key already exists")

	// ErrNotInitialized is returned by trees used before Initialize.
	ErrNotInitialized = errors.New("tree not initialized")

	// ErrInvalidCapacity is returned for capacity settings no split could satisfy.
	ErrInvalidCapacity = errors.New("invalid node capacity")

	// ErrEntryTooLarge is returned when a single entry exceeds what a node can hold.
	ErrEntryTooLarge = errors.New("entry exceeds node capacity")
)
