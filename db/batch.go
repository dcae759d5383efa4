package db

// DefaultBatchSize is a preallocation size, in bytes, for
// NewBatchWithSize/NewIndexedBatchWithSize. Nothing in this module
// passes it: the Update helper opens its batch with NewIndexedBatch,
// and batches never flush on their own before Write.
const DefaultBatchSize = 10 * (1 << 20)

// Batch accumulates Put/Delete/DeleteRange calls in memory and commits
// them atomically with Write — either the whole block's write set
// lands, or none of it does, which is what lets ConnectBlock treat a
// partially-applied block as impossible. Not safe for concurrent use
// by more than one goroutine; since satindex has a single writer this
// is never a constraint in practice.
type Batch interface {
	KeyValueWriter
	KeyValueRangeDeleter
	// Size reports the batch's accumulated, not-yet-written size.
	Size() int
	// Write commits the batch to the store.
	Write() error
	// Reset clears the batch for reuse.
	Reset()
}

// Batcher produces Batch instances, typically implemented by the store
// handle itself.
type Batcher interface {
	NewBatch() Batch
	NewBatchWithSize(size int) Batch
}

// IndexedBatch is a Batch that can also read — both the store's
// committed state and its own pending, unwritten mutations. The
// per-block write transaction (§4.F) needs this: a later input in the
// same block may spend an output an earlier transaction in the same
// block just created, so reads inside the transaction must see writes
// made earlier in that same transaction.
type IndexedBatch interface {
	Batch
	KeyValueReader
	Iterable
}

// IndexedBatcher produces IndexedBatch instances, the counterpart to
// Batcher.
type IndexedBatcher interface {
	NewIndexedBatch() IndexedBatch
	NewIndexedBatchWithSize(size int) IndexedBatch
}
