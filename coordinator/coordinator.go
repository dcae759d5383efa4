// Package coordinator drives the Index Coordinator loop (§4.F): resuming
// from the last committed height, fetching and applying blocks from the
// upstream node in batches, detecting and rolling back reorganizations,
// and pruning the undo log past its retained horizon.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/satindex/satindex/chaincfg"
	"github.com/satindex/satindex/chaincfg/chainhash"
	"github.com/satindex/satindex/chainstore"
	"github.com/satindex/satindex/db"
	"github.com/satindex/satindex/engine"
	"github.com/satindex/satindex/node"
)

// ErrWrongChain signals that the block the node reports at height 0 does
// not match the configured network's known genesis hash — almost always
// a misconfigured node URL pointed at the wrong network (mirrors the
// teacher's own genesis-hash comparison in blockchain/validate.go).
var ErrWrongChain = errors.New("coordinator: node's genesis block does not match configured chain")

// Config tunes the coordinator loop. All fields have the defaults noted;
// a config package maps these onto a YAML/viper file (see SPEC_FULL.md's
// ambient stack).
type Config struct {
	// BatchSize is the number of blocks applied per write transaction
	// (§4.F: "default order of hundreds of blocks").
	BatchSize uint32
	// PollInterval is how long Run sleeps after finding T == H (§4.F
	// step 2) before checking the node's tip again.
	PollInterval time.Duration
	// UndoHorizon is how many of the most recent heights retain an undo
	// log entry; older entries are pruned as the tip advances, bounding
	// reorg depth at the cost of not being able to unwind further back.
	UndoHorizon uint32
	// RetryBaseDelay, RetryMaxDelay and RetryBudget bound the transient
	// node-error backoff (§7: "retried with bounded exponential backoff;
	// never surfaced as fatal unless retry budget exhausted").
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	RetryBudget    time.Duration
}

// DefaultConfig returns the values the teacher's own defaults pattern
// would pick for an indexer of this shape.
func DefaultConfig() Config {
	return Config{
		BatchSize:      200,
		PollInterval:   10 * time.Second,
		UndoHorizon:    288, // roughly two days of mainnet blocks
		RetryBaseDelay: 500 * time.Millisecond,
		RetryMaxDelay:  30 * time.Second,
		RetryBudget:    10 * time.Minute,
	}
}

// ErrMalformedBlock signals a decode failure, which is fatal (§7): the
// indexer must not silently skip a block.
var ErrMalformedBlock = errors.New("coordinator: malformed block from upstream node")

// ErrBrokenChain signals that rollback walked all the way past height 0
// without finding a stored hash matching the node's — either the store's
// genesis entry is corrupt or the node is not serving the chain this
// store was built against.
var ErrBrokenChain = errors.New("coordinator: no common ancestor found during rollback")

// Coordinator owns the single write path into store.
type Coordinator struct {
	store  db.Helper
	source node.Source
	params chaincfg.Params
	cfg    Config

	// onBatchApplied, when set, is called after each successfully
	// connected block with its height and the store's cumulative
	// STATISTICS counters (§3); used to drive metrics without coupling
	// this package to a specific metrics backend.
	onBatchApplied func(height uint32, outputsIndexed, destroyedTotal uint64)
	// onTipObserved, when set, is called with the upstream node's best
	// height each time runBatch queries it.
	onTipObserved func(tip uint32)
	// onBatchDuration, when set, is called with the wall-clock duration
	// of one runBatch write transaction.
	onBatchDuration func(d time.Duration)
	// onReorg, when set, is called with the number of blocks
	// disconnected by a single rollbackToAncestor call.
	onReorg func(depth uint32)
}

// New builds a Coordinator over store (the persistent store, §4.D) and
// source (the upstream node, §4.F). params selects the network whose
// genesis hash and halving schedule govern this store (§6 CHAIN); a
// zero-valued params.GenesisHash (regtest) skips the genesis check.
func New(store db.Helper, source node.Source, params chaincfg.Params, cfg Config) *Coordinator {
	return &Coordinator{store: store, source: source, params: params, cfg: cfg}
}

// OnBatchApplied registers a hook invoked after each connected block
// with its height and the store's cumulative outputs-indexed/destroyed
// counters.
func (c *Coordinator) OnBatchApplied(fn func(height uint32, outputsIndexed, destroyedTotal uint64)) {
	c.onBatchApplied = fn
}

// OnTipObserved registers a hook invoked with the node's best height
// each time runBatch queries it.
func (c *Coordinator) OnTipObserved(fn func(tip uint32)) {
	c.onTipObserved = fn
}

// OnBatchDuration registers a hook invoked with the wall-clock duration
// of each runBatch write transaction.
func (c *Coordinator) OnBatchDuration(fn func(d time.Duration)) {
	c.onBatchDuration = fn
}

// OnReorg registers a hook invoked with the number of blocks
// disconnected by a single rollback.
func (c *Coordinator) OnReorg(fn func(depth uint32)) {
	c.onReorg = fn
}

// Run executes the coordinator loop (§4.F) until ctx is cancelled.
// Cancellation is honored between blocks and between batches, never
// mid-transaction-apply (§5): an in-flight batch either commits whole or
// is dropped entirely.
func (c *Coordinator) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		advanced, err := c.runBatch(ctx)
		if err != nil {
			return err
		}
		if advanced {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.PollInterval):
		}
	}
}

// runBatch applies at most one batch of blocks in a single write
// transaction (§4.F step 3-4). It reports advanced=false when the node's
// tip was already at or below the indexed height (step 2).
func (c *Coordinator) runBatch(ctx context.Context) (advanced bool, err error) {
	tip, err := retry(ctx, c.cfg, c.source.BestHeight)
	if err != nil {
		return false, fmt.Errorf("coordinator: query node tip: %w", err)
	}
	if c.onTipObserved != nil {
		c.onTipObserved(tip)
	}

	batchStart := time.Now()
	txErr := c.store.Update(func(w db.IndexedBatch) error {
		h, ok, err := chainstore.GetIndexedHeight(w)
		if err != nil {
			return err
		}
		if ok && tip <= h {
			advanced = false
			return nil
		}

		start := uint32(0)
		if ok {
			start = h + 1
		}
		end := tip
		if start+c.cfg.BatchSize-1 < end {
			end = start + c.cfg.BatchSize - 1
		}

		prefetcher := newBlockPrefetcher(c.source, c.cfg)

		for wStart := start; wStart <= end; wStart += prefetchWindow {
			if err := ctx.Err(); err != nil {
				return err
			}
			wEnd := end
			if wStart+prefetchWindow-1 < wEnd {
				wEnd = wStart + prefetchWindow - 1
			}
			if wStart == start {
				// First window: nothing prefetched it yet, block on it.
				prefetcher.run(ctx, wStart, wEnd)
			}

			// Kick off the next window's fetch+decode concurrently with
			// this window's apply loop below (§9's producer/consumer
			// split): by the time the consumer reaches the next window,
			// most of its blocks are already decoded and waiting in the
			// prefetcher's cache.
			var nextDone chan struct{}
			if wEnd < end {
				nextStart := wEnd + 1
				nextEnd := end
				if nextStart+prefetchWindow-1 < nextEnd {
					nextEnd = nextStart + prefetchWindow - 1
				}
				nextDone = make(chan struct{})
				go func(s, e uint32) {
					defer close(nextDone)
					prefetcher.run(ctx, s, e)
				}(nextStart, nextEnd)
			}

			for height := wStart; height <= wEnd; {
				if err := ctx.Err(); err != nil {
					return err
				}

				ancestor, reorged, err := c.checkReorg(ctx, w, height)
				if err != nil {
					return err
				}
				if reorged {
					// Resume forward from the common ancestor rather than
					// the height originally requested: the fork may have
					// replaced any number of blocks below it. The
					// prefetcher's fetch() falls back to a synchronous
					// fetch for heights outside what was prefetched.
					height = ancestor + 1
					continue
				}

				fb, err := prefetcher.fetch(ctx, height)
				if err != nil {
					return err
				}
				if err := c.connectHeight(w, height, fb); err != nil {
					return err
				}
				if height >= c.cfg.UndoHorizon {
					if err := chainstore.DeleteUndo(w, height-c.cfg.UndoHorizon); err != nil {
						return err
					}
				}
				if c.onBatchApplied != nil {
					outputsIndexed, err := chainstore.GetOutputsIndexed(w)
					if err != nil {
						return err
					}
					destroyedTotal, err := chainstore.GetDestroyed(w)
					if err != nil {
						return err
					}
					c.onBatchApplied(height, outputsIndexed, destroyedTotal)
				}
				height++
			}

			if nextDone != nil {
				<-nextDone
			}
		}
		advanced = true
		return nil
	})
	if c.onBatchDuration != nil {
		c.onBatchDuration(time.Since(batchStart))
	}
	if txErr != nil {
		return false, txErr
	}
	return advanced, nil
}

// checkReorg compares the node's hash for height-1 against the stored
// HEIGHT_TO_HASH entry. If they disagree, it rolls the store back to
// their common ancestor and reports reorged=true with that ancestor's
// height; the caller must resume connecting from ancestor+1.
func (c *Coordinator) checkReorg(ctx context.Context, w db.IndexedBatch, height uint32) (ancestor uint32, reorged bool, err error) {
	if height == 0 {
		return 0, false, nil
	}
	storedParent, ok, err := chainstore.GetHeightHash(w, height-1)
	if err != nil || !ok {
		return 0, false, err
	}
	nodeParent, err := retry(ctx, c.cfg, func() (chainhash.Hash, error) { return c.source.BlockHash(height - 1) })
	if err != nil {
		return 0, false, fmt.Errorf("coordinator: fetch parent hash at height %d: %w", height-1, err)
	}
	if nodeParent == storedParent {
		return 0, false, nil
	}
	ancestor, err = c.rollbackToAncestor(ctx, w, height-1)
	if err != nil {
		return 0, false, err
	}
	return ancestor, true, nil
}

// connectHeight applies fb, the already fetched-and-decoded block the
// node reports at height, assuming no reorg remains to be resolved at
// this point. Fetching and decoding happen ahead of this call, in the
// prefetcher's producer goroutines (§9); this is the single-consumer
// side of that split, and the only place that connects a block into w.
func (c *Coordinator) connectHeight(w db.IndexedBatch, height uint32, fb fetchedBlock) error {
	var zeroHash chainhash.Hash
	if height == 0 && c.params.GenesisHash != zeroHash && fb.hash != c.params.GenesisHash {
		return fmt.Errorf("%w: node reports %s, expected %s", ErrWrongChain, fb.hash, c.params.GenesisHash)
	}
	if _, err := engine.ConnectBlock(w, c.params, height, fb.block); err != nil {
		return fmt.Errorf("coordinator: apply block at height %d: %w", height, err)
	}
	return nil
}

// rollbackToAncestor walks the store backward from tip, disconnecting
// each block, until its stored hash matches what the node now reports
// for that height (§4.E "Reorganization"). It mutates w in place and
// returns the common-ancestor height.
func (c *Coordinator) rollbackToAncestor(ctx context.Context, w db.IndexedBatch, tip uint32) (uint32, error) {
	height := tip
	disconnected := uint32(0)
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		storedHash, ok, err := chainstore.GetHeightHash(w, height)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, ErrBrokenChain
		}
		nodeHash, err := retry(ctx, c.cfg, func() (chainhash.Hash, error) { return c.source.BlockHash(height) })
		if err != nil {
			return 0, fmt.Errorf("coordinator: fetch node hash at height %d during rollback: %w", height, err)
		}
		if nodeHash == storedHash {
			if c.onReorg != nil && disconnected > 0 {
				c.onReorg(disconnected)
			}
			return height, nil
		}
		if err := engine.DisconnectBlock(w, height); err != nil {
			return 0, fmt.Errorf("coordinator: disconnect block at height %d: %w", height, err)
		}
		disconnected++
		if height == 0 {
			return 0, ErrBrokenChain
		}
		height--
	}
}

// retry calls fn, retrying on error with bounded exponential backoff
// (§7) until it succeeds, ctx is cancelled, or cfg.RetryBudget elapses.
func retry[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	deadline := time.Now().Add(cfg.RetryBudget)
	delay := cfg.RetryBaseDelay
	for {
		v, err := fn()
		if err == nil {
			return v, nil
		}
		if time.Now().After(deadline) {
			var zero T
			return zero, fmt.Errorf("retry budget exhausted: %w", err)
		}
		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > cfg.RetryMaxDelay {
			delay = cfg.RetryMaxDelay
		}
	}
}
