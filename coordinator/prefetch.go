package coordinator

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/satindex/satindex/chaincfg/chainhash"
	"github.com/satindex/satindex/core"
)

// fetchedBlock is one producer result: the block's hash (needed for the
// HEIGHT_TO_HASH row and reorg comparisons) alongside its decoded body.
type fetchedBlock struct {
	hash  chainhash.Hash
	block *core.Block
}

// prefetchWindow is how many heights ahead of the height currently being
// applied the producer goroutines are allowed to run (§9: "parallelize
// at the batch boundary only for block fetching and decoding (producer)
// versus engine+commit (single consumer)"). Bounded rather than
// unbounded so a batch of hundreds of blocks doesn't hold hundreds of
// decoded blocks in memory at once.
const prefetchWindow = 16

// blockPrefetcher runs the producer side of the pipeline: it fetches and
// decodes blocks for a height range concurrently, ahead of the consumer
// (connectHeight) which pulls them out one at a time, in order. Decoding
// is pure CPU work and fetching is network I/O, so overlapping several
// of them hides round-trip latency to the upstream node; applying them
// to the store must still happen strictly in height order, which the
// cache-plus-pull structure here preserves without exposing the engine
// to any concurrency at all.
type blockPrefetcher struct {
	source fetcher
	cfg    Config
	cache  *lru.Cache[uint32, fetchResult]
}

type fetchResult struct {
	fb  fetchedBlock
	err error
}

// fetcher is the subset of node.Source the prefetcher needs; matches
// Coordinator.source so blockPrefetcher never imports the node package
// directly.
type fetcher interface {
	BlockHash(height uint32) (chainhash.Hash, error)
	Block(hash chainhash.Hash) ([]byte, error)
}

func newBlockPrefetcher(source fetcher, cfg Config) *blockPrefetcher {
	cache, _ := lru.New[uint32, fetchResult](prefetchWindow * 2)
	return &blockPrefetcher{source: source, cfg: cfg, cache: cache}
}

// run launches producer goroutines for every height in [start, end],
// bounded to prefetchWindow concurrent fetches, and blocks until they
// have all populated the cache. Each goroutine applies the same
// transient-retry policy as a direct fetch would (§7); a height whose
// retry budget is exhausted, or whose block fails to decode, still gets
// a cache entry — its error, surfaced only once the consumer reaches
// that height — so one bad height never aborts goroutines already
// fetching heights ahead of it.
func (p *blockPrefetcher) run(ctx context.Context, start, end uint32) {
	if end < start {
		return
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(prefetchWindow)
	for h := start; h <= end; h++ {
		height := h
		g.Go(func() error {
			fb, err := p.fetchOne(gctx, height)
			p.cache.Add(height, fetchResult{fb: fb, err: err})
			return nil
		})
	}
	_ = g.Wait()
}

// fetch returns the prefetched result for height, fetching it inline if
// it was never queued (e.g. a reorg moved the consumer outside the
// window that was prefetched).
func (p *blockPrefetcher) fetch(ctx context.Context, height uint32) (fetchedBlock, error) {
	if r, ok := p.cache.Get(height); ok {
		return r.fb, r.err
	}
	return p.fetchOne(ctx, height)
}

// fetchOne performs the full hash-fetch, block-fetch, decode sequence for
// one height, with the coordinator's usual retry-on-transient-error
// policy (§7) around each node round-trip and ErrMalformedBlock (fatal,
// not retried) around decode failures.
func (p *blockPrefetcher) fetchOne(ctx context.Context, height uint32) (fetchedBlock, error) {
	hash, err := retry(ctx, p.cfg, func() (chainhash.Hash, error) { return p.source.BlockHash(height) })
	if err != nil {
		return fetchedBlock{}, fmt.Errorf("coordinator: fetch hash at height %d: %w", height, err)
	}
	raw, err := retry(ctx, p.cfg, func() ([]byte, error) { return p.source.Block(hash) })
	if err != nil {
		return fetchedBlock{}, fmt.Errorf("coordinator: fetch block %s: %w", hash, err)
	}
	block, err := core.DecodeBlock(raw)
	if err != nil {
		return fetchedBlock{}, fmt.Errorf("%w: height %d: %v", ErrMalformedBlock, height, err)
	}
	return fetchedBlock{hash: hash, block: block}, nil
}
