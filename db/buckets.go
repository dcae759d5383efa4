package db

import (
	"encoding/binary"
	"slices"
)

// Bucket partitions the single physical keyspace into the logical tables
// of §3: each bucket is a one-byte prefix, so a prefix scan over a bucket
// never crosses into another table's keys.
type Bucket byte

const (
	// HeightToHash is HEIGHT_TO_HASH: u32 height -> 32-byte block hash.
	// The canonical chain; used for reorg detection.
	HeightToHash Bucket = iota

	// OutpointToRanges is OUTPOINT_TO_RANGES: outpoint -> ordered ranges.
	// The live output state; a row exists iff the output is unspent.
	OutpointToRanges

	// Statistics is STATISTICS: small enum -> counter (indexed_height,
	// outputs_indexed, ...).
	Statistics

	// HeightToUndo is the per-height undo log (§4.E, §9): the list of
	// (outpoint, original ranges) destroyed at that height, sufficient
	// to reconstruct them on rollback.
	HeightToUndo

	// SchemaMeta holds the version-tagged schema header (§6).
	SchemaMeta
)

// Int32Key encodes a u32 height as big-endian (so byte order matches
// numeric order, which HEIGHT_TO_HASH and HeightToUndo range scans rely
// on) and prefixes it with the bucket byte.
func (bu Bucket) Int32Key(height uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, height)
	return append([]byte{byte(bu)}, buf...)
}

// Key concatenates the bucket byte with arbitrary key fragments, e.g. an
// outpoint's 36-byte encoding for OutpointToRanges.
func (bu Bucket) Key(key ...[]byte) []byte {
	return append([]byte{byte(bu)}, slices.Concat(key...)...)
}

// Prefix returns the bucket's own byte as a one-element key, the prefix
// that bounds every key the bucket ever produces — used to scan or
// range-delete an entire table.
func (bu Bucket) Prefix() []byte {
	return []byte{byte(bu)}
}
