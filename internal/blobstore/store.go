// Package blobstore defines the content-addressed blob storage boundary
// chat-core's Message Store is built on: put/get by content hash, plus a
// small string-keyed label index used to anchor named chat heads. This
// package only defines the interface; see blobstore/memory for the
// in-memory implementation and blobstore/postgres for the persistent
// backend.
package blobstore

import (
	"context"

	"chatcore/internal/dag"
)

// Store is the external collaborator boundary every backend implements:
// an append-only content-addressed blob store with a separate mutable
// label index pointing at the latest blob for a name.
type Store interface {
	// Put writes bytes and returns their content address. Writing the
	// same bytes twice returns the same hash.
	Put(ctx context.Context, body []byte) (dag.Hash, error)

	// Get reads the bytes stored at a content address.
	Get(ctx context.Context, id dag.Hash) ([]byte, error)

	// GetByLabel resolves a label to the content hash it currently
	// points at. The zero Hash and ok=false indicate the label is unset.
	GetByLabel(ctx context.Context, name string) (id dag.Hash, ok bool, err error)

	// Label sets a label to point at a content hash, failing if the
	// label already exists (use ReplaceAtLabel to overwrite).
	Label(ctx context.Context, name string, id dag.Hash) error

	// ReplaceAtLabel unconditionally sets a label to point at a content
	// hash, creating it if absent.
	ReplaceAtLabel(ctx context.Context, name string, id dag.Hash) error
}
