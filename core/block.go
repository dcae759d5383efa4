// Package core decodes raw block bytes fetched from the upstream node
// into the in-memory view the assignment engine consumes. No script
// interpretation is performed; output values are taken verbatim.
package core

import (
	"encoding/binary"
	"fmt"

	"github.com/satindex/satindex/chaincfg/chainhash"
)

var byteOrder = binary.LittleEndian

const blockHeaderLen = 80

// BlockHeader holds the fixed-size fields of a block header.
type BlockHeader struct {
	Version    int32
	PrevBlock  chainhash.Hash
	MerkleRoot chainhash.Hash
	Timestamp  uint32
	Bits       uint32
	Nonce      uint32
}

// Hash computes the block hash (double-sha256 of the serialized header).
func (h *BlockHeader) Hash() chainhash.Hash {
	var buf [blockHeaderLen]byte
	byteOrder.PutUint32(buf[0:4], uint32(h.Version))
	copy(buf[4:36], h.PrevBlock[:])
	copy(buf[36:68], h.MerkleRoot[:])
	byteOrder.PutUint32(buf[68:72], h.Timestamp)
	byteOrder.PutUint32(buf[72:76], h.Bits)
	byteOrder.PutUint32(buf[76:80], h.Nonce)
	return chainhash.DoubleHashH(buf[:])
}

// Block is the decoded in-memory view of one block: its header and the
// ordered list of transactions it contains. Transactions[0] is always the
// coinbase.
type Block struct {
	Header       BlockHeader
	Transactions []*Tx

	height int32
	hash   chainhash.Hash
}

// Height returns the height recorded with SetHeight, or
// BlockHeightUnknown if none was (raw blocks do not self-describe their
// height under this model). The coordinator does not set it: it passes
// each block's height to the engine as a separate argument.
func (b *Block) Height() int32 { return b.height }

// SetHeight records the height this block was fetched at.
func (b *Block) SetHeight(h int32) { b.height = h }

// Hash returns the block's hash, computed once at decode time.
func (b *Block) Hash() *chainhash.Hash { return &b.hash }

// PreviousHash returns the hash of the block this one extends.
func (b *Block) PreviousHash() *chainhash.Hash { return &b.Header.PrevBlock }

// Coinbase returns the block's first transaction.
func (b *Block) Coinbase() *Tx {
	if len(b.Transactions) == 0 {
		return nil
	}
	return b.Transactions[0]
}

// DecodeBlock parses raw serialized block bytes (the standard bitcoin wire
// format, including optional segwit marker/witness data) into a Block.
// Witness data is parsed only far enough to find transaction boundaries;
// its content is discarded since the engine never interprets scripts.
func DecodeBlock(raw []byte) (*Block, error) {
	r := &byteReader{buf: raw}

	header, err := decodeHeader(r)
	if err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}

	txCount, err := r.readVarInt()
	if err != nil {
		return nil, fmt.Errorf("decode tx count: %w", err)
	}

	txs := make([]*Tx, 0, txCount)
	for i := uint64(0); i < txCount; i++ {
		tx, err := decodeTx(r)
		if err != nil {
			return nil, fmt.Errorf("decode tx %d: %w", i, err)
		}
		txs = append(txs, tx)
	}

	b := &Block{Header: *header, Transactions: txs, height: BlockHeightUnknown}
	b.hash = header.Hash()
	return b, nil
}

// BlockHeightUnknown is the sentinel height of a freshly decoded block
// before SetHeight records its real height.
const BlockHeightUnknown = int32(-1)

func decodeHeader(r *byteReader) (*BlockHeader, error) {
	raw, err := r.readBytes(blockHeaderLen)
	if err != nil {
		return nil, err
	}
	h := &BlockHeader{
		Version:   int32(byteOrder.Uint32(raw[0:4])),
		Timestamp: byteOrder.Uint32(raw[68:72]),
		Bits:      byteOrder.Uint32(raw[72:76]),
		Nonce:     byteOrder.Uint32(raw[76:80]),
	}
	copy(h.PrevBlock[:], raw[4:36])
	copy(h.MerkleRoot[:], raw[36:68])
	return h, nil
}
