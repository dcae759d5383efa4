package db

import "io"

// Iterator walks a key range in byte-lexicographic order. Its caller in
// this module is the offline serial-to-satpoint scan over
// OUTPOINT_TO_RANGES; reorg rollback reads the undo log one height at a
// time with point lookups instead. Close must be called once the caller is
// done with it, or the underlying store's resources (file handles, the
// snapshot it was opened against) leak. Not safe for concurrent use by
// more than one goroutine, but independent iterators may run in parallel.
type Iterator interface {
	io.Closer

	// Valid reports whether the iterator currently sits on a record.
	Valid() bool

	// First repositions at the first key in range.
	First() bool

	// Next advances to the following key.
	Next() bool

	// Prev steps back to the preceding key.
	Prev() bool

	// Key returns the key at the current position. The slice is only
	// valid until the next positioning call.
	Key() []byte

	// Value returns the value at the current position.
	Value() ([]byte, error)

	// Seek positions at the first key >= key, or invalidates the
	// iterator if none exists.
	Seek(key []byte) bool
}

// Iterable produces Iterators scoped to a key prefix (a Bucket's own
// prefix, typically). withUpperBound asks the implementation to bound
// the scan at the prefix's successor so it never reads past the table
// boundary; pass nil prefix with withUpperBound=false to scan the whole
// keyspace (used only by offline tooling, never by the hot path).
type Iterable interface {
	NewIterator(prefix []byte, withUpperBound bool) (Iterator, error)
}
