package chainstore

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/satindex/satindex/chaincfg/chainhash"
	"github.com/satindex/satindex/core"
	"github.com/satindex/satindex/db"
	"github.com/satindex/satindex/satrange"
)

// RO is the read-only capability chainstore needs from a transaction: a
// db.Snapshot and a db.IndexedBatch both satisfy it, so the same lookup
// helpers serve the query interface (over a snapshot) and the engine
// itself (over its own in-flight batch, which must see its own writes).
type RO interface {
	db.KeyValueReader
	db.Iterable
}

// RW adds the mutation capability the assignment engine needs; a
// db.IndexedBatch satisfies it.
type RW interface {
	RO
	db.KeyValueWriter
	db.KeyValueRangeDeleter
}

// GetRanges reads OUTPOINT_TO_RANGES[op]. ok is false if the output does
// not exist in the live set (either never minted, or already spent).
func GetRanges(r RO, op core.OutPoint) (ranges []satrange.Range, ok bool, err error) {
	key := OutpointKey(op)
	has, err := r.Has(key)
	if err != nil || !has {
		return nil, false, err
	}
	err = r.Get(key, func(value []byte) error {
		ranges, err = decodeRanges(value)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return ranges, true, nil
}

// PutRanges writes OUTPOINT_TO_RANGES[op], creating the row (possibly
// empty, for a zero-value output) or overwriting it in place.
func PutRanges(w RW, op core.OutPoint, ranges []satrange.Range) error {
	return w.Put(OutpointKey(op), encodeRanges(ranges))
}

// DeleteRanges removes OUTPOINT_TO_RANGES[op] and returns what it held,
// if anything — the caller needs the prior content to build the undo log
// entry (§4.E step 4a, step 2a).
func DeleteRanges(w RW, op core.OutPoint) (ranges []satrange.Range, existed bool, err error) {
	ranges, existed, err = GetRanges(w, op)
	if err != nil || !existed {
		return nil, existed, err
	}
	if err := w.Delete(OutpointKey(op)); err != nil {
		return nil, false, err
	}
	return ranges, true, nil
}

// PutHeightHash records HEIGHT_TO_HASH[height] = hash.
func PutHeightHash(w RW, height uint32, hash chainhash.Hash) error {
	return w.Put(db.HeightToHash.Int32Key(height), hash[:])
}

// GetHeightHash reads HEIGHT_TO_HASH[height].
func GetHeightHash(r RO, height uint32) (hash chainhash.Hash, ok bool, err error) {
	key := db.HeightToHash.Int32Key(height)
	has, err := r.Has(key)
	if err != nil || !has {
		return chainhash.Hash{}, false, err
	}
	err = r.Get(key, func(value []byte) error {
		if len(value) != chainhash.HashSize {
			return fmt.Errorf("chainstore: height-to-hash value has %d bytes, want %d", len(value), chainhash.HashSize)
		}
		copy(hash[:], value)
		return nil
	})
	return hash, err == nil, err
}

// DeleteHeightHash removes HEIGHT_TO_HASH[height], used only by reorg
// rollback (§3 lifecycle: "deleted only by reorganization rollback").
func DeleteHeightHash(w RW, height uint32) error {
	return w.Delete(db.HeightToHash.Int32Key(height))
}

// statKey identifies one STATISTICS counter.
type statKey byte

const (
	statIndexedHeight statKey = iota
	statOutputsIndexed
	statDestroyed
)

func (k statKey) key() []byte {
	return db.Statistics.Key([]byte{byte(k)})
}

// ErrNoIndexedHeight is returned by GetIndexedHeight before the first
// block has ever been committed.
var ErrNoIndexedHeight = errors.New("chainstore: no height indexed yet")

func getStat(r RO, k statKey) (uint64, bool, error) {
	key := k.key()
	has, err := r.Has(key)
	if err != nil || !has {
		return 0, false, err
	}
	var v uint64
	err = r.Get(key, func(value []byte) error {
		if len(value) != 8 {
			return fmt.Errorf("chainstore: counter value has %d bytes, want 8", len(value))
		}
		v = binary.BigEndian.Uint64(value)
		return nil
	})
	return v, err == nil, err
}

func putStat(w RW, k statKey, v uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return w.Put(k.key(), buf)
}

// GetIndexedHeight reads STATISTICS.indexed_height. ok is false before
// the first commit (the store has no committed height yet).
func GetIndexedHeight(r RO) (height uint32, ok bool, err error) {
	v, ok, err := getStat(r, statIndexedHeight)
	return uint32(v), ok, err
}

// SetIndexedHeight sets STATISTICS.indexed_height = height (§4.E step 5).
func SetIndexedHeight(w RW, height uint32) error {
	return putStat(w, statIndexedHeight, uint64(height))
}

// AddOutputsIndexed adjusts STATISTICS.outputs_indexed by delta, which may
// be negative (reorg rollback undoes outputs created by the disconnected
// block).
func AddOutputsIndexed(w RW, delta int64) error {
	cur, _, err := getStat(w, statOutputsIndexed)
	if err != nil {
		return err
	}
	return putStat(w, statOutputsIndexed, addClamped(cur, delta))
}

// GetOutputsIndexed reads the running total of OUTPOINT_TO_RANGES rows
// ever written (including ones later spent or displaced).
func GetOutputsIndexed(r RO) (uint64, error) {
	v, _, err := getStat(r, statOutputsIndexed)
	return v, err
}

// AddDestroyed adjusts the running total of destroyed base-unit serials
// (coinbase fee underpayment leftovers plus duplicate-txid displacement),
// the quantity the conservation testable property (§8.1) checks against.
func AddDestroyed(w RW, delta int64) error {
	cur, _, err := getStat(w, statDestroyed)
	if err != nil {
		return err
	}
	return putStat(w, statDestroyed, addClamped(cur, delta))
}

// GetDestroyed reads the running total destroyed-serial count.
func GetDestroyed(r RO) (uint64, error) {
	v, _, err := getStat(r, statDestroyed)
	return v, err
}

func addClamped(cur uint64, delta int64) uint64 {
	if delta < 0 && uint64(-delta) > cur {
		return 0
	}
	return uint64(int64(cur) + delta)
}
