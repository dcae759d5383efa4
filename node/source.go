// Package node is the upstream-node boundary (§4.F): the two operations
// the coordinator needs to pull blocks in height order, and one concrete
// client against a Bitcoin Core-compatible JSON-RPC endpoint. The node's
// own correctness (proof-of-work, script validity, chain selection) is
// out of scope; this package only fetches what the node already agrees
// is canonical.
package node

import (
	"github.com/satindex/satindex/chaincfg/chainhash"
)

// Source is the upstream node interface the coordinator consumes (§4.F:
// "two operations suffice"). A production Source talks RPC; tests use
// Chain, an in-memory fake built over raw block bytes.
type Source interface {
	// BlockHash returns the hash of the block at height on the node's
	// current best chain. ErrNotFound if height exceeds the node's tip.
	BlockHash(height uint32) (chainhash.Hash, error)
	// Block returns the raw serialized block bytes for hash, suitable
	// for core.DecodeBlock.
	Block(hash chainhash.Hash) ([]byte, error)
	// BestHeight returns the node's current chain tip height.
	BestHeight() (uint32, error)
}

// ErrNotFound is returned by BlockHash when height is beyond the node's
// current tip (§4.F step 2: "If T == H, sleep briefly and retry" — the
// coordinator checks BestHeight first, so this mainly guards a race
// between that check and the fetch).
var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "node: block height not found on node's best chain" }
