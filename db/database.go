// Package db defines the persistent store contract (§4.D): named ordered
// key-value tables within one database file, with atomic multi-table
// commits, consistent read snapshots, and range deletion/iteration for
// reorg rollback and the optional serial-to-satpoint query.
package db

import (
	"errors"
	"io"
)

// ErrKeyNotFound is returned by Get when the key has no value in the
// store. Callers distinguish it from other I/O errors with errors.Is.
var ErrKeyNotFound = errors.New("db: key not found")

// KeyValueReader is the read-only half of the contract: Has checks
// existence without paying for a value copy, Get hands the value to a
// callback instead of returning it so a caller like chainstore's range
// decoder never allocates a throwaway copy of a value it's about to
// parse anyway.
type KeyValueReader interface {
	Has(key []byte) (bool, error)
	// Get invokes cb with the value if key exists. If it does not, Get
	// returns ErrKeyNotFound and cb is not called.
	Get(key []byte, cb func(value []byte) error) error
}

// KeyValueWriter is the write-only half: Put upserts a key, Delete
// removes a single one.
type KeyValueWriter interface {
	Put(key []byte, value []byte) error
	Delete(key []byte) error
}

// KeyValueRangeDeleter deletes every key in [start, end) in one call.
// Both stores implement it; chainstore's undo-log pruning and reorg
// rollback do not call it, and delete one key at a time with
// KeyValueWriter.Delete instead.
type KeyValueRangeDeleter interface {
	DeleteRange(start, end []byte) error
}

// Helper wraps the store's transaction boilerplate so chainstore's
// callers never open or commit a batch/snapshot by hand: Update wraps
// one write transaction, View wraps one read-only snapshot.
type Helper interface {
	// Update opens a write transaction, applies fn, and commits all-or-
	// nothing. If fn returns an error, the transaction is discarded and
	// no mutation becomes visible.
	Update(fn func(IndexedBatch) error) error
	// View opens a read-only snapshot unaffected by concurrent writers
	// and applies fn to it.
	View(fn func(Snapshot) error) error
}

// KeyValueStore represents a key-value data store that can handle the
// read/write/batch/snapshot/iterate operations the engine needs.
type KeyValueStore interface {
	KeyValueReader
	KeyValueWriter
	KeyValueRangeDeleter
	Batcher
	IndexedBatcher
	Snapshotter
	Iterable
	Helper
	io.Closer
}
