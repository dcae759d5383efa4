package coordinator

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satindex/satindex/chaincfg"
	"github.com/satindex/satindex/chaincfg/chainhash"
	"github.com/satindex/satindex/chainstore"
	"github.com/satindex/satindex/core"
	"github.com/satindex/satindex/db/memstore"
	"github.com/satindex/satindex/node"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.BatchSize = 10
	cfg.RetryBaseDelay = time.Millisecond
	cfg.RetryMaxDelay = 5 * time.Millisecond
	cfg.RetryBudget = 200 * time.Millisecond
	return cfg
}

// buildCoinbaseBlock builds a single-coinbase-tx block extending
// prevHash. headerNonce varies the block header (and therefore its
// hash) so that two blocks built at the same height for competing forks
// never collide.
func buildCoinbaseBlock(t *testing.T, prevHash chainhash.Hash, headerNonce uint32, value uint64) []byte {
	t.Helper()
	var tx bytes.Buffer
	binary.Write(&tx, binary.LittleEndian, uint32(1))
	tx.WriteByte(1) // one input
	tx.Write(make([]byte, 32))
	binary.Write(&tx, binary.LittleEndian, uint32(0xffffffff))
	tx.WriteByte(0) // empty scriptSig
	binary.Write(&tx, binary.LittleEndian, uint32(0xffffffff))
	tx.WriteByte(1) // one output
	binary.Write(&tx, binary.LittleEndian, value)
	tx.WriteByte(0) // empty pkScript
	binary.Write(&tx, binary.LittleEndian, uint32(0))

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(1))
	buf.Write(prevHash[:])
	buf.Write(make([]byte, 32)) // merkle root, unused by the engine
	buf.Write(make([]byte, 8))  // timestamp, bits
	binary.Write(&buf, binary.LittleEndian, headerNonce)
	buf.WriteByte(1) // one tx
	buf.Write(tx.Bytes())
	return buf.Bytes()
}

func hashOf(raw []byte) chainhash.Hash {
	b, err := core.DecodeBlock(raw)
	if err != nil {
		panic(err)
	}
	return *b.Hash()
}

// buildChain extends parent with n blocks, using headerNonce values
// starting at nonceBase so forks built with a different nonceBase never
// collide in hash with the chain they are replacing.
func buildChain(t *testing.T, parent chainhash.Hash, n int, nonceBase uint32) [][]byte {
	t.Helper()
	var chain [][]byte
	prev := parent
	for h := 0; h < n; h++ {
		raw := buildCoinbaseBlock(t, prev, nonceBase+uint32(h), 5_000_000_000)
		chain = append(chain, raw)
		prev = hashOf(raw)
	}
	return chain
}

func TestRunAdvancesToTip(t *testing.T) {
	store := memstore.New()
	chain := buildChain(t, chainhash.Hash{}, 5, 0)
	source := node.NewChain(chain, hashOf)
	c := New(store, source, chaincfg.RegressionNetParams, testConfig())

	ctx := context.Background()
	for {
		advanced, err := c.runBatch(ctx)
		require.NoError(t, err, "runBatch")
		if !advanced {
			break
		}
	}

	height, ok, err := chainstore.GetIndexedHeight(store)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(4), height, "indexed height")
}

func TestRunHandlesReorg(t *testing.T) {
	store := memstore.New()
	chain := buildChain(t, chainhash.Hash{}, 3, 0) // heights 0,1,2
	source := node.NewChain(chain, hashOf)
	c := New(store, source, chaincfg.RegressionNetParams, testConfig())

	ctx := context.Background()
	for {
		advanced, err := c.runBatch(ctx)
		require.NoError(t, err, "initial sync runBatch")
		if !advanced {
			break
		}
	}

	// The node now prefers a competing fork rooted at the real genesis
	// (height 0, unchanged) that replaces heights 1-2 and extends one
	// block further than the original chain.
	genesisHash := hashOf(chain[0])
	fork := buildChain(t, genesisHash, 3, 100) // heights 1,2,3 on the new fork
	source.Reorg(1, fork, hashOf)

	for {
		advanced, err := c.runBatch(ctx)
		require.NoError(t, err, "post-reorg runBatch")
		if !advanced {
			break
		}
	}

	height, ok, err := chainstore.GetIndexedHeight(store)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(3), height, "indexed height after reorg")

	wantTip, err := source.BlockHash(3)
	require.NoError(t, err, "BlockHash")
	gotTip, ok, err := chainstore.GetHeightHash(store, 3)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, wantTip, gotTip, "stored tip hash")

	// Height 0 is unaffected by the reorg; its stored hash must be
	// untouched.
	gotGenesis, ok, err := chainstore.GetHeightHash(store, 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, genesisHash, gotGenesis, "genesis hash changed across reorg")
}
