package chainstore

import (
	"encoding/binary"
	"fmt"

	"github.com/satindex/satindex/core"
	"github.com/satindex/satindex/db"
	"github.com/satindex/satindex/satrange"
)

// UndoEntry is one row whose prior content must be restored when its
// block is rolled back: either an input's OUTPOINT_TO_RANGES row the
// engine deleted to build an input queue, or an output row a later
// duplicate-txid write overwrote and destroyed (§4.E steps 2a, 4).
type UndoEntry struct {
	Outpoint core.OutPoint
	Ranges   []satrange.Range
}

// BlockUndo is the minimum undo-log entry per height (§4.E, §9): the rows
// to restore, and the outpoints this height created so rollback knows
// which rows to remove before restoring (a row may be both — a
// duplicate-txid displacement both destroys an old row and creates a
// shadowing new one at the same key).
type BlockUndo struct {
	Destroyed []UndoEntry
	Created   []core.OutPoint

	// OutputsIndexed and DestroyedTotal are the exact STATISTICS deltas
	// this height applied at connect time, so rollback can subtract
	// them precisely rather than recomputing from Destroyed/Created
	// (which mixes spent-input relocations, that aren't destructions,
	// with genuine destructions).
	OutputsIndexed uint64
	DestroyedTotal uint64
}

// PutUndo writes the undo log for height.
func PutUndo(w RW, height uint32, undo BlockUndo) error {
	return w.Put(db.HeightToUndo.Int32Key(height), encodeBlockUndo(undo))
}

// GetUndo reads the undo log for height. ok is false if none was
// recorded (height was never connected, or its log already expired past
// the undo horizon — see coordinator.Config.UndoHorizon).
func GetUndo(r RO, height uint32) (undo BlockUndo, ok bool, err error) {
	key := db.HeightToUndo.Int32Key(height)
	has, err := r.Has(key)
	if err != nil || !has {
		return BlockUndo{}, false, err
	}
	err = r.Get(key, func(value []byte) error {
		undo, err = decodeBlockUndo(value)
		return err
	})
	return undo, err == nil, err
}

// DeleteUndo removes the undo log for height, once it has either been
// consumed by a rollback or aged past the retained horizon.
func DeleteUndo(w RW, height uint32) error {
	return w.Delete(db.HeightToUndo.Int32Key(height))
}

func encodeBlockUndo(undo BlockUndo) []byte {
	buf := appendUvarint(nil, uint64(len(undo.Destroyed)))
	for _, e := range undo.Destroyed {
		buf = append(buf, encodeOutpoint(e.Outpoint)...)
		ranges := encodeRanges(e.Ranges)
		buf = appendUvarint(buf, uint64(len(ranges)))
		buf = append(buf, ranges...)
	}
	buf = appendUvarint(buf, uint64(len(undo.Created)))
	for _, op := range undo.Created {
		buf = append(buf, encodeOutpoint(op)...)
	}
	buf = appendUvarint(buf, undo.OutputsIndexed)
	buf = appendUvarint(buf, undo.DestroyedTotal)
	return buf
}

func decodeBlockUndo(data []byte) (BlockUndo, error) {
	var undo BlockUndo

	destroyedCount, n := binary.Uvarint(data)
	if n <= 0 {
		return undo, fmt.Errorf("chainstore: malformed undo destroyed-count")
	}
	data = data[n:]

	undo.Destroyed = make([]UndoEntry, 0, destroyedCount)
	for i := uint64(0); i < destroyedCount; i++ {
		op, rest, err := decodeOutpoint(data)
		if err != nil {
			return undo, fmt.Errorf("undo entry %d: %w", i, err)
		}
		data = rest

		length, n := binary.Uvarint(data)
		if n <= 0 {
			return undo, fmt.Errorf("chainstore: malformed undo ranges-length at entry %d", i)
		}
		data = data[n:]
		if uint64(len(data)) < length {
			return undo, fmt.Errorf("chainstore: truncated undo ranges at entry %d", i)
		}
		ranges, err := decodeRanges(data[:length])
		if err != nil {
			return undo, fmt.Errorf("undo entry %d ranges: %w", i, err)
		}
		data = data[length:]
		undo.Destroyed = append(undo.Destroyed, UndoEntry{Outpoint: op, Ranges: ranges})
	}

	createdCount, n := binary.Uvarint(data)
	if n <= 0 {
		return undo, fmt.Errorf("chainstore: malformed undo created-count")
	}
	data = data[n:]

	undo.Created = make([]core.OutPoint, 0, createdCount)
	for i := uint64(0); i < createdCount; i++ {
		op, rest, err := decodeOutpoint(data)
		if err != nil {
			return undo, fmt.Errorf("created entry %d: %w", i, err)
		}
		data = rest
		undo.Created = append(undo.Created, op)
	}

	outputsIndexed, n := binary.Uvarint(data)
	if n <= 0 {
		return undo, fmt.Errorf("chainstore: malformed undo outputs-indexed total")
	}
	data = data[n:]
	undo.OutputsIndexed = outputsIndexed

	destroyedTotal, n := binary.Uvarint(data)
	if n <= 0 {
		return undo, fmt.Errorf("chainstore: malformed undo destroyed total")
	}
	undo.DestroyedTotal = destroyedTotal

	return undo, nil
}

func encodeOutpoint(op core.OutPoint) []byte {
	buf := make([]byte, 36)
	copy(buf[:32], op.Hash[:])
	binary.BigEndian.PutUint32(buf[32:], op.Index)
	return buf
}

func decodeOutpoint(data []byte) (core.OutPoint, []byte, error) {
	if len(data) < 36 {
		return core.OutPoint{}, nil, fmt.Errorf("chainstore: truncated outpoint")
	}
	var op core.OutPoint
	copy(op.Hash[:], data[:32])
	op.Index = binary.BigEndian.Uint32(data[32:36])
	return op, data[36:], nil
}
