// Package container provides the paged object stores trees keep their nodes in.
//
// A container hands out opaque identifiers on Reserve and maps them to
// objects. Trees never reason about physical layout; they only Reserve, Get,
// Update and Remove by id.
package container

import (
	"github.com/cockroachdb/errors"
)

// ID identifies an object inside a container. NilID is never handed out.
type ID int64

// NilID marks the absence of an object, e.g. the end of a leaf chain.
const NilID ID = 0

// Container errors.
var (
	// ErrNoSuchID is returned for ids that were never reserved or were removed.
	ErrNoSuchID = errors.New("container: no such id")

	// ErrClosed is returned by operations on a closed container.
	ErrClosed = errors.New("container: closed")
)

// Container is a paged object store keyed by reserved identifiers.
type Container[T any] interface {
	// Reserve stores init under a fresh id.
	Reserve(init T) (ID, error)
	Get(id ID) (T, error)
	Update(id ID, v T) error
	Remove(id ID) error
	Close() error
}

// MetaStore is implemented by containers that can keep small named blobs
// next to their pages, such as a tree's root descriptor.
type MetaStore interface {
	GetMeta(name string) ([]byte, bool, error)
	PutMeta(name string, data []byte) error
}

// Flusher is implemented by containers that buffer writes.
type Flusher interface {
	Flush() error
}

// Codec turns objects into page bytes for persistent containers.
type Codec[T any] interface {
	Marshal(v T) ([]byte, error)
	Unmarshal(data []byte) (T, error)
}
