// Package query implements the read-only interface over the persistent
// store (§4.G): every exposed read takes a consistent snapshot, so query
// tasks never observe a partially-applied batch from the coordinator.
package query

import (
	"fmt"

	"github.com/satindex/satindex/chaincfg/chainhash"
	"github.com/satindex/satindex/chainstore"
	"github.com/satindex/satindex/core"
	"github.com/satindex/satindex/db"
	"github.com/satindex/satindex/node"
	"github.com/satindex/satindex/satrange"
)

// Satpoint locates a single base-unit serial: the output currently
// holding it, and its offset within the concatenation of that output's
// ranges (ordinal theory's usual satpoint notion).
type Satpoint struct {
	Outpoint core.OutPoint
	Offset   uint64
}

// Status summarizes indexing progress for operational visibility.
type Status struct {
	IndexedHeight      uint32
	IndexedHeightKnown bool
	ChainTipFromNode   uint32
}

// Reader serves the query interface over store (read snapshots only —
// it never writes) and source (to report the node's current tip
// alongside the indexed height).
type Reader struct {
	store  db.Helper
	source node.Source
}

// New builds a Reader. source may be nil; Status then reports
// ChainTipFromNode as unavailable (0) rather than failing, since the
// node is an external collaborator a query-only deployment may lack.
func New(store db.Helper, source node.Source) *Reader {
	return &Reader{store: store, source: source}
}

// OutputRanges returns the ranges held by op, and whether op currently
// exists in the live output set (§4.G output_ranges).
func (r *Reader) OutputRanges(op core.OutPoint) (ranges []satrange.Range, ok bool, err error) {
	err = r.store.View(func(snap db.Snapshot) error {
		ranges, ok, err = chainstore.GetRanges(snap, op)
		return err
	})
	return ranges, ok, err
}

// BlockHash returns the canonical hash recorded for height (§4.G
// block_hash).
func (r *Reader) BlockHash(height uint32) (hash chainhash.Hash, ok bool, err error) {
	err = r.store.View(func(snap db.Snapshot) error {
		hash, ok, err = chainstore.GetHeightHash(snap, height)
		return err
	})
	return hash, ok, err
}

// Status reports indexing progress (§4.G status).
func (r *Reader) Status() (Status, error) {
	var st Status
	err := r.store.View(func(snap db.Snapshot) error {
		height, ok, err := chainstore.GetIndexedHeight(snap)
		if err != nil {
			return err
		}
		st.IndexedHeight = height
		st.IndexedHeightKnown = ok
		return nil
	})
	if err != nil {
		return Status{}, err
	}
	if r.source != nil {
		tip, err := r.source.BestHeight()
		if err != nil {
			return Status{}, fmt.Errorf("query: node tip: %w", err)
		}
		st.ChainTipFromNode = tip
	}
	return st, nil
}

// SatpointOf scans OUTPOINT_TO_RANGES for the output currently holding
// serial (§4.G satpoint_of). This is the O(N) forward scan the spec
// accepts for offline tooling; a production deployment serving frequent
// lookups would add a secondary serial-range index instead.
func (r *Reader) SatpointOf(serial uint64) (sp Satpoint, found bool, err error) {
	err = r.store.View(func(snap db.Snapshot) error {
		it, err := snap.NewIterator(db.OutpointToRanges.Prefix(), true)
		if err != nil {
			return err
		}
		defer it.Close()

		for ok := it.First(); ok; ok = it.Next() {
			op, err := chainstore.DecodeOutpointKey(it.Key())
			if err != nil {
				return err
			}
			value, err := it.Value()
			if err != nil {
				return err
			}
			ranges, err := chainstore.DecodeRanges(value)
			if err != nil {
				return err
			}
			var offset uint64
			for _, rg := range ranges {
				if serial >= rg.Start && serial < rg.End {
					sp = Satpoint{Outpoint: op, Offset: offset + (serial - rg.Start)}
					found = true
					return nil
				}
				offset += rg.Len()
			}
		}
		return nil
	})
	return sp, found, err
}
