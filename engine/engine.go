// Package engine implements the per-block assignment algorithm (§4.E):
// mapping input ranges to output ranges, aggregating coinbase fees, and
// destroying ranges on underpayment or duplicate-txid displacement. This
// is the algorithmic core of the indexer; everything else exists to feed
// it decoded blocks and persist its write sets.
package engine

import (
	"errors"
	"fmt"

	"github.com/satindex/satindex/chaincfg"
	"github.com/satindex/satindex/chainstore"
	"github.com/satindex/satindex/core"
	"github.com/satindex/satindex/satrange"
)

// ErrMissingOutpoint signals an invariant violation (§7): an input
// referenced an outpoint absent from OUTPOINT_TO_RANGES. This means
// either upstream data corruption or an indexer bug; the caller treats
// it as fatal and leaves the store at the last good commit.
var ErrMissingOutpoint = errors.New("engine: input outpoint not present in live range index")

// Stats summarizes one ConnectBlock call, used to maintain the
// STATISTICS table and to check the conservation testable property
// (§8.1): indexed ranges plus destroyed ranges must equal the
// cumulative subsidy.
type Stats struct {
	OutputsIndexed uint64
	Destroyed      uint64
}

// ConnectBlock applies block b, at height h, to the store via w (§4.E).
// params supplies the configured network's halving interval (regtest's
// differs from SubsidyHalvingInterval; §6). The caller must have already
// verified that b's previous hash matches the current tip (step 1's
// reorg check happens one layer up, in the coordinator, since it needs
// to read HEIGHT_TO_HASH before deciding whether to call ConnectBlock at
// all).
func ConnectBlock(w chainstore.RW, params chaincfg.Params, h uint32, b *core.Block) (Stats, error) {
	var stats Stats
	var undo chainstore.BlockUndo

	if len(b.Transactions) == 0 {
		return stats, fmt.Errorf("engine: block at height %d has no coinbase transaction", h)
	}

	coinbaseQueue := new(satrange.Queue)
	coinbaseQueue.PushBack(satrange.Range{
		Start: params.FirstSerial(h),
		End:   params.FirstSerial(h) + params.Subsidy(h),
	})

	// Outputs created earlier in this block have no pre-block row, so
	// spending one records nothing to restore; rollback removes them
	// through undo.Created.
	created := make(map[core.OutPoint]bool)
	for _, tx := range b.Transactions[1:] {
		inputQueue := new(satrange.Queue)

		for _, in := range tx.TxIn {
			ranges, ok, err := chainstore.GetRanges(w, in.PreviousOutPoint)
			if err != nil {
				return stats, err
			}
			if !ok {
				return stats, fmt.Errorf("%w: %s", ErrMissingOutpoint, in.PreviousOutPoint)
			}
			inputQueue.PushBackAll(ranges)

			if _, _, err := chainstore.DeleteRanges(w, in.PreviousOutPoint); err != nil {
				return stats, err
			}
			if !created[in.PreviousOutPoint] {
				undo.Destroyed = append(undo.Destroyed, chainstore.UndoEntry{
					Outpoint: in.PreviousOutPoint,
					Ranges:   ranges,
				})
			}
		}

		for i, out := range tx.TxOut {
			op := core.OutPoint{Hash: *tx.Hash(), Index: uint32(i)}
			created[op] = true
			ranges := inputQueue.PopFrontN(out.Value)
			if err := writeOutput(w, op, ranges, &stats, &undo); err != nil {
				return stats, err
			}
		}

		// Whatever remains in the input queue after every output has
		// been satisfied is fee: it flows to the coinbase, in the order
		// it remains (§3 invariant 3, §4.E step 2c).
		coinbaseQueue.PushBackAll(inputQueue.Drain())
	}

	coinbase := b.Transactions[0]
	for i, out := range coinbase.TxOut {
		op := core.OutPoint{Hash: *coinbase.Hash(), Index: uint32(i)}
		ranges := coinbaseQueue.PopFrontN(out.Value)
		if err := writeOutput(w, op, ranges, &stats, &undo); err != nil {
			return stats, err
		}
	}
	// Underpaying the subsidy is permitted: whatever is left in the
	// coinbase queue is destroyed (§4.E step 3). The serials keep their
	// identity but are never again held by any output.
	for _, r := range coinbaseQueue.Drain() {
		stats.Destroyed += r.Len()
	}

	undo.OutputsIndexed = stats.OutputsIndexed
	undo.DestroyedTotal = stats.Destroyed
	if err := chainstore.PutUndo(w, h, undo); err != nil {
		return stats, err
	}
	if err := chainstore.PutHeightHash(w, h, *b.Hash()); err != nil {
		return stats, err
	}
	if err := chainstore.SetIndexedHeight(w, h); err != nil {
		return stats, err
	}
	if err := chainstore.AddOutputsIndexed(w, int64(stats.OutputsIndexed)); err != nil {
		return stats, err
	}
	if err := chainstore.AddDestroyed(w, int64(stats.Destroyed)); err != nil {
		return stats, err
	}
	return stats, nil
}

// writeOutput writes OUTPOINT_TO_RANGES[op] = ranges, implementing
// duplicate-txid displacement (§4.E step 4): a pre-existing row at op is
// overwritten and its prior ranges destroyed. op is recorded as created
// at this height regardless, so rollback knows to remove it.
func writeOutput(w chainstore.RW, op core.OutPoint, ranges []satrange.Range, stats *Stats, undo *chainstore.BlockUndo) error {
	prior, existed, err := chainstore.GetRanges(w, op)
	if err != nil {
		return err
	}
	if existed {
		for _, r := range prior {
			stats.Destroyed += r.Len()
		}
		undo.Destroyed = append(undo.Destroyed, chainstore.UndoEntry{Outpoint: op, Ranges: prior})
	}
	if err := chainstore.PutRanges(w, op, ranges); err != nil {
		return err
	}
	undo.Created = append(undo.Created, op)
	stats.OutputsIndexed++
	return nil
}

// DisconnectBlock reverses ConnectBlock's effects for the block that was
// indexed at height h, using only the undo log recorded at connect time
// — the raw block is never needed again, which is the entire point of
// keeping an undo log instead of re-fetching and re-deriving it (§9).
func DisconnectBlock(w chainstore.RW, h uint32) error {
	undo, ok, err := chainstore.GetUndo(w, h)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("engine: no undo log recorded for height %d", h)
	}

	for _, op := range undo.Created {
		if _, _, err := chainstore.DeleteRanges(w, op); err != nil {
			return err
		}
	}
	for _, e := range undo.Destroyed {
		if err := chainstore.PutRanges(w, e.Outpoint, e.Ranges); err != nil {
			return err
		}
	}

	if err := chainstore.DeleteHeightHash(w, h); err != nil {
		return err
	}
	if err := chainstore.DeleteUndo(w, h); err != nil {
		return err
	}
	if err := chainstore.SetIndexedHeight(w, h-1); err != nil {
		return err
	}
	if err := chainstore.AddOutputsIndexed(w, -int64(undo.OutputsIndexed)); err != nil {
		return err
	}
	if err := chainstore.AddDestroyed(w, -int64(undo.DestroyedTotal)); err != nil {
		return err
	}
	return nil
}
