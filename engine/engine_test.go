package engine

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satindex/satindex/chaincfg"
	"github.com/satindex/satindex/chaincfg/chainhash"
	"github.com/satindex/satindex/chainstore"
	"github.com/satindex/satindex/core"
	"github.com/satindex/satindex/db"
	"github.com/satindex/satindex/db/memstore"
	"github.com/satindex/satindex/satrange"
)

// buildLegacyTx builds a minimal non-segwit transaction for tests: one
// input per prevout and the given output values. Coinbases go through
// buildCoinbaseTx instead: a zero input count would be read by the
// decoder as a segwit marker.
func buildLegacyTx(prevouts []core.OutPoint, outValues []uint64) []byte {
	var buf bytes.Buffer
	writeU32 := func(v uint32) { binary.Write(&buf, binary.LittleEndian, v) }
	writeU64 := func(v uint64) { binary.Write(&buf, binary.LittleEndian, v) }
	writeVarInt := func(v uint64) { buf.WriteByte(byte(v)) }

	writeU32(1)
	writeVarInt(uint64(len(prevouts)))
	for _, op := range prevouts {
		buf.Write(op.Hash[:])
		writeU32(op.Index)
		writeVarInt(0)
		writeU32(0xffffffff)
	}
	writeVarInt(uint64(len(outValues)))
	for _, v := range outValues {
		writeU64(v)
		writeVarInt(0)
	}
	writeU32(0)
	return buf.Bytes()
}

// buildCoinbaseTx builds a coinbase transaction for tests: the single
// null-prevout input a coinbase carries, with height written into its
// scriptSig so coinbases built for different heights get distinct txids.
func buildCoinbaseTx(height uint32, outValues []uint64) []byte {
	var buf bytes.Buffer
	writeU32 := func(v uint32) { binary.Write(&buf, binary.LittleEndian, v) }
	writeU64 := func(v uint64) { binary.Write(&buf, binary.LittleEndian, v) }

	writeU32(1)
	buf.WriteByte(1)            // one input
	buf.Write(make([]byte, 32)) // null prev txid
	writeU32(0xffffffff)        // null prev index
	buf.WriteByte(4)            // scriptSig: the 4-byte height
	writeU32(height)
	writeU32(0xffffffff) // sequence
	buf.WriteByte(byte(len(outValues)))
	for _, v := range outValues {
		writeU64(v)
		buf.WriteByte(0) // empty pkScript
	}
	writeU32(0)
	return buf.Bytes()
}

func buildBlock(t *testing.T, prevHash chainhash.Hash, txs [][]byte) *core.Block {
	t.Helper()
	var buf bytes.Buffer
	buf.Write(make([]byte, 4)) // version
	buf.Write(prevHash[:])
	buf.Write(make([]byte, 32)) // merkle root, unused by the engine
	buf.Write(make([]byte, 12))
	buf.WriteByte(byte(len(txs)))
	for _, tx := range txs {
		buf.Write(tx)
	}
	block, err := core.DecodeBlock(buf.Bytes())
	require.NoError(t, err, "DecodeBlock")
	return block
}

// TestS1EmptyChainGenesis covers §8 scenario S1.
func TestS1EmptyChainGenesis(t *testing.T) {
	s := memstore.New()
	coinbase := buildCoinbaseTx(0, []uint64{5_000_000_000})
	block := buildBlock(t, chainhash.Hash{}, [][]byte{coinbase})

	err := s.Update(func(w db.IndexedBatch) error {
		_, err := ConnectBlock(w, chaincfg.MainNetParams, 0, block)
		return err
	})
	require.NoError(t, err, "ConnectBlock")

	op := core.OutPoint{Hash: *block.Transactions[0].Hash(), Index: 0}
	ranges, ok, err := GetRangesForTest(s, op)
	require.NoError(t, err)
	require.True(t, ok)
	want := []satrange.Range{{Start: 0, End: 5_000_000_000}}
	assertRangesEqual(t, ranges, want)
}

// TestS2TwoCoinbaseOutputs covers §8 scenario S2.
func TestS2TwoCoinbaseOutputs(t *testing.T) {
	s := memstore.New()
	coinbase := buildCoinbaseTx(1, []uint64{3, 5_000_000_000 - 3})
	block := buildBlock(t, chainhash.Hash{}, [][]byte{coinbase})

	err := s.Update(func(w db.IndexedBatch) error {
		_, err := ConnectBlock(w, chaincfg.MainNetParams, 1, block)
		return err
	})
	require.NoError(t, err, "ConnectBlock")

	cbHash := *block.Transactions[0].Hash()
	r0, _, _ := GetRangesForTest(s, core.OutPoint{Hash: cbHash, Index: 0})
	r1, _, _ := GetRangesForTest(s, core.OutPoint{Hash: cbHash, Index: 1})
	assertRangesEqual(t, r0, []satrange.Range{{Start: 5_000_000_000, End: 5_000_000_003}})
	assertRangesEqual(t, r1, []satrange.Range{{Start: 5_000_000_003, End: 10_000_000_000}})
}

// TestS3SpendNoFee covers §8 scenario S3.
func TestS3SpendNoFee(t *testing.T) {
	s := memstore.New()
	genCoinbase := buildCoinbaseTx(0, []uint64{5_000_000_000})
	genesis := buildBlock(t, chainhash.Hash{}, [][]byte{genCoinbase})

	genOp := core.OutPoint{Hash: *genesis.Transactions[0].Hash(), Index: 0}

	err := s.Update(func(w db.IndexedBatch) error {
		_, err := ConnectBlock(w, chaincfg.MainNetParams, 0, genesis)
		return err
	})
	require.NoError(t, err, "connect genesis")

	cb2 := buildCoinbaseTx(1, []uint64{5_000_000_000})
	spend := buildLegacyTx([]core.OutPoint{genOp}, []uint64{2, 3, 4_999_999_995})
	block2 := buildBlock(t, *genesis.Hash(), [][]byte{cb2, spend})

	err = s.Update(func(w db.IndexedBatch) error {
		_, err := ConnectBlock(w, chaincfg.MainNetParams, 1, block2)
		return err
	})
	require.NoError(t, err, "connect block2")

	spendHash := *block2.Transactions[1].Hash()
	r0, _, _ := GetRangesForTest(s, core.OutPoint{Hash: spendHash, Index: 0})
	r1, _, _ := GetRangesForTest(s, core.OutPoint{Hash: spendHash, Index: 1})
	r2, _, _ := GetRangesForTest(s, core.OutPoint{Hash: spendHash, Index: 2})
	assertRangesEqual(t, r0, []satrange.Range{{Start: 0, End: 2}})
	assertRangesEqual(t, r1, []satrange.Range{{Start: 2, End: 5}})
	assertRangesEqual(t, r2, []satrange.Range{{Start: 5, End: 5_000_000_000}})

	_, ok, _ := GetRangesForTest(s, genOp)
	assert.False(t, ok, "spent genesis output should no longer exist")
}

// TestS4SpendWithFee covers §8 scenario S4: the leftover after a
// transaction's outputs fall short of its inputs becomes a fee appended
// to the coinbase queue after its own subsidy range.
func TestS4SpendWithFee(t *testing.T) {
	s := memstore.New()
	genCoinbase := buildCoinbaseTx(0, []uint64{5_000_000_000})
	genesis := buildBlock(t, chainhash.Hash{}, [][]byte{genCoinbase})
	genOp := core.OutPoint{Hash: *genesis.Transactions[0].Hash(), Index: 0}

	err := s.Update(func(w db.IndexedBatch) error {
		_, err := ConnectBlock(w, chaincfg.MainNetParams, 0, genesis)
		return err
	})
	require.NoError(t, err, "connect genesis")

	// The spend leaves a fee of 5_000_000_000 - 5 = 4_999_999_995 base
	// units unclaimed by its own outputs; cb2 claims its own subsidy plus
	// that entire fee so both coinbase-queue ranges land in one output.
	fee := uint64(5_000_000_000 - 5)
	cb2 := buildCoinbaseTx(1, []uint64{5_000_000_000 + fee})
	spend := buildLegacyTx([]core.OutPoint{genOp}, []uint64{2, 3})
	block2 := buildBlock(t, *genesis.Hash(), [][]byte{cb2, spend})

	err = s.Update(func(w db.IndexedBatch) error {
		_, err := ConnectBlock(w, chaincfg.MainNetParams, 1, block2)
		return err
	})
	require.NoError(t, err, "connect block2")

	cbHash := *block2.Transactions[0].Hash()
	r0, _, _ := GetRangesForTest(s, core.OutPoint{Hash: cbHash, Index: 0})
	want := []satrange.Range{
		{Start: chaincfg.FirstSerial(1), End: chaincfg.FirstSerial(1) + chaincfg.Subsidy(1)},
		{Start: 5, End: 5_000_000_000},
	}
	assertRangesEqual(t, r0, want)
}

// TestS6DuplicateTxidDisplacement covers §8 scenario S6.
func TestS6DuplicateTxidDisplacement(t *testing.T) {
	s := memstore.New()
	cb1 := buildCoinbaseTx(0, []uint64{5_000_000_000})
	genesis := buildBlock(t, chainhash.Hash{}, [][]byte{cb1})
	err := s.Update(func(w db.IndexedBatch) error {
		_, err := ConnectBlock(w, chaincfg.MainNetParams, 0, genesis)
		return err
	})
	require.NoError(t, err, "connect genesis")
	cbHash := *genesis.Transactions[0].Hash()

	// Re-mint the exact same coinbase bytes at the next height so its
	// txid collides with the prior one.
	dup := buildBlock(t, *genesis.Hash(), [][]byte{cb1})
	var stats Stats
	err = s.Update(func(w db.IndexedBatch) error {
		var err error
		stats, err = ConnectBlock(w, chaincfg.MainNetParams, 1, dup)
		return err
	})
	require.NoError(t, err, "connect duplicate")

	assert.NotZero(t, stats.Destroyed, "expected duplicate-txid displacement to report destroyed ranges")
	ranges, ok, err := GetRangesForTest(s, core.OutPoint{Hash: cbHash, Index: 0})
	require.NoError(t, err)
	require.True(t, ok, "new row should exist")
	want := []satrange.Range{{Start: chaincfg.FirstSerial(1), End: chaincfg.FirstSerial(1) + chaincfg.Subsidy(1)}}
	assertRangesEqual(t, ranges, want)
}

// TestReorgInverse covers §8 scenario/property 5: connecting a block then
// disconnecting it restores the exact prior state.
func TestReorgInverse(t *testing.T) {
	s := memstore.New()
	genCoinbase := buildCoinbaseTx(0, []uint64{5_000_000_000})
	genesis := buildBlock(t, chainhash.Hash{}, [][]byte{genCoinbase})
	genOp := core.OutPoint{Hash: *genesis.Transactions[0].Hash(), Index: 0}

	err := s.Update(func(w db.IndexedBatch) error {
		_, err := ConnectBlock(w, chaincfg.MainNetParams, 0, genesis)
		return err
	})
	require.NoError(t, err, "connect genesis")

	before := snapshotState(t, s, []core.OutPoint{genOp})

	cb2 := buildCoinbaseTx(1, []uint64{5_000_000_000})
	spend := buildLegacyTx([]core.OutPoint{genOp}, []uint64{2, 3, 4_999_999_995})
	block2 := buildBlock(t, *genesis.Hash(), [][]byte{cb2, spend})
	spendHash := *block2.Transactions[1].Hash()
	cbHash := *block2.Transactions[0].Hash()

	err = s.Update(func(w db.IndexedBatch) error {
		_, err := ConnectBlock(w, chaincfg.MainNetParams, 1, block2)
		return err
	})
	require.NoError(t, err, "connect block2")

	err = s.Update(func(w db.IndexedBatch) error {
		return DisconnectBlock(w, 1)
	})
	require.NoError(t, err, "DisconnectBlock")

	after := snapshotState(t, s, []core.OutPoint{genOp})
	assert.Equal(t, before, after, "state after connect+disconnect")

	for _, op := range []core.OutPoint{
		{Hash: spendHash, Index: 0}, {Hash: spendHash, Index: 1}, {Hash: spendHash, Index: 2},
		{Hash: cbHash, Index: 0},
	} {
		_, ok, _ := GetRangesForTest(s, op)
		assert.False(t, ok, "output %s created by rolled-back block should be gone", op)
	}
	height, ok, err := chainstore.GetIndexedHeight(s)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(0), height, "indexed height after rollback")
}

type stateFingerprint struct {
	height    uint32
	destroyed uint64
	outputs   uint64
	ranges    string
}

func snapshotState(t *testing.T, s db.KeyValueStore, watch []core.OutPoint) stateFingerprint {
	t.Helper()
	height, _, err := chainstore.GetIndexedHeight(s)
	require.NoError(t, err, "GetIndexedHeight")
	destroyed, err := chainstore.GetDestroyed(s)
	require.NoError(t, err, "GetDestroyed")
	outputs, err := chainstore.GetOutputsIndexed(s)
	require.NoError(t, err, "GetOutputsIndexed")
	var buf bytes.Buffer
	for _, op := range watch {
		ranges, ok, err := GetRangesForTest(s, op)
		require.NoError(t, err, "GetRanges")
		buf.WriteString(op.String())
		buf.WriteByte(':')
		if ok {
			for _, r := range ranges {
				buf.WriteString(r.String())
			}
		} else {
			buf.WriteString("absent")
		}
		buf.WriteByte(';')
	}
	return stateFingerprint{height: height, destroyed: destroyed, outputs: outputs, ranges: buf.String()}
}

func GetRangesForTest(r chainstore.RO, op core.OutPoint) ([]satrange.Range, bool, error) {
	return chainstore.GetRanges(r, op)
}

func assertRangesEqual(t *testing.T, got, want []satrange.Range) {
	t.Helper()
	assert.Equal(t, want, got)
}
