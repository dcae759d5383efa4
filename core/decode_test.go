package core

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildLegacyTx builds a minimal non-segwit transaction with the given
// number of dummy inputs and output values, returning its wire bytes.
func buildLegacyTx(numIns int, outValues []uint64) []byte {
	var buf bytes.Buffer
	writeU32 := func(v uint32) { binary.Write(&buf, binary.LittleEndian, v) }
	writeU64 := func(v uint64) { binary.Write(&buf, binary.LittleEndian, v) }
	writeVarInt := func(v uint64) { buf.WriteByte(byte(v)) } // small values only, for tests

	writeU32(1) // version
	writeVarInt(uint64(numIns))
	for i := 0; i < numIns; i++ {
		buf.Write(make([]byte, 32)) // prev txid
		writeU32(0)                 // prev index
		writeVarInt(0)              // empty scriptSig
		writeU32(0xffffffff)        // sequence
	}
	writeVarInt(uint64(len(outValues)))
	for _, v := range outValues {
		writeU64(v)
		writeVarInt(0) // empty pkScript
	}
	writeU32(0) // locktime
	return buf.Bytes()
}

func buildBlock(txs [][]byte) []byte {
	var buf bytes.Buffer
	buf.Write(make([]byte, blockHeaderLen))
	buf.WriteByte(byte(len(txs))) // tx count varint (small)
	for _, tx := range txs {
		buf.Write(tx)
	}
	return buf.Bytes()
}

func TestDecodeBlockCoinbaseAndOneSpend(t *testing.T) {
	coinbase := buildLegacyTx(1, []uint64{5_000_000_000})
	spend := buildLegacyTx(1, []uint64{2, 3, 4_999_999_995})

	raw := buildBlock([][]byte{coinbase, spend})

	block, err := DecodeBlock(raw)
	require.NoError(t, err, "DecodeBlock")
	require.Len(t, block.Transactions, 2)

	cb := block.Coinbase()
	require.Len(t, cb.TxOut, 1)
	assert.Equal(t, uint64(5_000_000_000), cb.TxOut[0].Value, "coinbase output value")

	tx := block.Transactions[1]
	require.Len(t, tx.TxOut, 3)
	total := uint64(0)
	for _, o := range tx.TxOut {
		total += o.Value
	}
	assert.Equal(t, uint64(5_000_000_000), total, "spend output total")
}

func TestDecodeBlockRejectsTruncatedData(t *testing.T) {
	raw := make([]byte, blockHeaderLen-1)
	_, err := DecodeBlock(raw)
	assert.Error(t, err, "expected error decoding truncated header")
}
