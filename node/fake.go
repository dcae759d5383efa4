package node

import "github.com/satindex/satindex/chaincfg/chainhash"

// Chain is an in-memory Source over an ordered list of raw block bytes,
// used by coordinator and query tests in place of a live node. Reorg
// tests call Reorg to replace the tail of blocks, simulating the node
// switching to a new best chain; Append adds one block at the tip.
type Chain struct {
	blocks []chainBlock
}

type chainBlock struct {
	hash chainhash.Hash
	raw  []byte
}

// NewChain builds a Chain from raw block bytes in height order, hashing
// each via hashFn (core.DecodeBlock's own hash, supplied by the caller to
// avoid an import cycle back into core from tests that live in node).
func NewChain(raw [][]byte, hashFn func([]byte) chainhash.Hash) *Chain {
	c := &Chain{}
	for _, b := range raw {
		c.blocks = append(c.blocks, chainBlock{hash: hashFn(b), raw: b})
	}
	return c
}

// Append adds a new tip block.
func (c *Chain) Append(raw []byte, hashFn func([]byte) chainhash.Hash) {
	c.blocks = append(c.blocks, chainBlock{hash: hashFn(raw), raw: raw})
}

// Reorg replaces every block from height (inclusive) onward with a new
// chain segment, simulating the node adopting a competing fork.
func (c *Chain) Reorg(height uint32, raw [][]byte, hashFn func([]byte) chainhash.Hash) {
	c.blocks = c.blocks[:height]
	for _, b := range raw {
		c.blocks = append(c.blocks, chainBlock{hash: hashFn(b), raw: b})
	}
}

func (c *Chain) BestHeight() (uint32, error) {
	if len(c.blocks) == 0 {
		return 0, ErrNotFound
	}
	return uint32(len(c.blocks) - 1), nil
}

func (c *Chain) BlockHash(height uint32) (chainhash.Hash, error) {
	if int(height) >= len(c.blocks) {
		return chainhash.Hash{}, ErrNotFound
	}
	return c.blocks[height].hash, nil
}

func (c *Chain) Block(hash chainhash.Hash) ([]byte, error) {
	for _, b := range c.blocks {
		if b.hash == hash {
			return b.raw, nil
		}
	}
	return nil, ErrNotFound
}
