package core

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/satindex/satindex/chaincfg/chainhash"
)

// OutPoint uniquely identifies one transaction output: a transaction id
// plus the index of the output within that transaction.
type OutPoint struct {
	Hash  chainhash.Hash
	Index uint32
}

func (o OutPoint) String() string {
	return fmt.Sprintf("%s:%d", o.Hash.String(), o.Index)
}

// TxIn is an input's reference to the output it spends. The coinbase's
// single input has no meaningful PreviousOutPoint and is never consulted
// by the engine.
type TxIn struct {
	PreviousOutPoint OutPoint
}

// TxOut is an output's value, in base units. No script interpretation is
// performed; the pkScript bytes are read only to advance the decoder past
// them and are not retained.
type TxOut struct {
	Value uint64
}

// Tx is a decoded transaction: its id and its ordered inputs and outputs.
type Tx struct {
	TxIn  []TxIn
	TxOut []TxOut

	hash       chainhash.Hash
	hasWitness bool
}

// Hash returns the transaction id (double-sha256 of the non-witness
// serialization, matching how base units are conventionally tracked
// independent of segwit malleability).
func (t *Tx) Hash() *chainhash.Hash { return &t.hash }

// decodeTx reads one transaction from r, handling the optional segwit
// marker/flag and per-input witness stacks.
func decodeTx(r *byteReader) (*Tx, error) {
	start := r.pos

	version, err := r.readBytes(4)
	if err != nil {
		return nil, err
	}

	hasWitness := false
	marker, err := r.peekByte()
	if err == nil && marker == 0x00 {
		flag, err := r.peekByteAt(1)
		if err == nil && flag != 0x00 {
			hasWitness = true
			if _, err := r.readBytes(2); err != nil {
				return nil, err
			}
		}
	}

	inCount, err := r.readVarInt()
	if err != nil {
		return nil, fmt.Errorf("input count: %w", err)
	}

	ins := make([]TxIn, 0, inCount)
	for i := uint64(0); i < inCount; i++ {
		var op OutPoint
		hashBytes, err := r.readBytes(chainhash.HashSize)
		if err != nil {
			return nil, err
		}
		copy(op.Hash[:], hashBytes)
		idxBytes, err := r.readBytes(4)
		if err != nil {
			return nil, err
		}
		op.Index = binary.LittleEndian.Uint32(idxBytes)

		if err := r.skipVarBytes(); err != nil { // scriptSig
			return nil, fmt.Errorf("scriptSig: %w", err)
		}
		if _, err := r.readBytes(4); err != nil { // sequence
			return nil, err
		}
		ins = append(ins, TxIn{PreviousOutPoint: op})
	}

	outCount, err := r.readVarInt()
	if err != nil {
		return nil, fmt.Errorf("output count: %w", err)
	}

	outs := make([]TxOut, 0, outCount)
	for i := uint64(0); i < outCount; i++ {
		valueBytes, err := r.readBytes(8)
		if err != nil {
			return nil, err
		}
		value := binary.LittleEndian.Uint64(valueBytes)
		if err := r.skipVarBytes(); err != nil { // pkScript
			return nil, fmt.Errorf("pkScript: %w", err)
		}
		outs = append(outs, TxOut{Value: value})
	}

	nonWitnessEnd := r.pos

	if hasWitness {
		for i := uint64(0); i < inCount; i++ {
			itemCount, err := r.readVarInt()
			if err != nil {
				return nil, fmt.Errorf("witness item count: %w", err)
			}
			for j := uint64(0); j < itemCount; j++ {
				if err := r.skipVarBytes(); err != nil {
					return nil, fmt.Errorf("witness item: %w", err)
				}
			}
		}
	}

	locktime, err := r.readBytes(4)
	if err != nil {
		return nil, err
	}

	// txid is computed over the non-witness serialization: version, inputs,
	// outputs, locktime, skipping the marker/flag and witness stacks.
	nonWitness := make([]byte, 0, (nonWitnessEnd-start)+4)
	nonWitness = append(nonWitness, version...)
	nonWitness = append(nonWitness, r.buf[skipMarkerFlag(r.buf, start, hasWitness):nonWitnessEnd]...)
	nonWitness = append(nonWitness, locktime...)

	tx := &Tx{TxIn: ins, TxOut: outs, hasWitness: hasWitness}
	tx.hash = chainhash.DoubleHashH(nonWitness)
	return tx, nil
}

func skipMarkerFlag(buf []byte, txStart int, hasWitness bool) int {
	if hasWitness {
		return txStart + 4 + 2
	}
	return txStart + 4
}

// byteReader is a minimal cursor over a raw block's bytes, providing the
// bitcoin wire primitives the decoder needs: fixed-width reads, CompactSize
// varints, and length-prefixed byte strings that are skipped rather than
// retained (scripts and witness data are never interpreted).
type byteReader struct {
	buf []byte
	pos int
}

var errShortRead = errors.New("unexpected end of block data")

func (r *byteReader) readBytes(n int) ([]byte, error) {
	if r.pos+n > len(r.buf) {
		return nil, errShortRead
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *byteReader) peekByte() (byte, error) {
	return r.peekByteAt(0)
}

func (r *byteReader) peekByteAt(offset int) (byte, error) {
	if r.pos+offset >= len(r.buf) {
		return 0, errShortRead
	}
	return r.buf[r.pos+offset], nil
}

// readVarInt decodes a bitcoin CompactSize integer.
func (r *byteReader) readVarInt() (uint64, error) {
	prefix, err := r.readBytes(1)
	if err != nil {
		return 0, err
	}
	switch prefix[0] {
	case 0xfd:
		b, err := r.readBytes(2)
		if err != nil {
			return 0, err
		}
		return uint64(binary.LittleEndian.Uint16(b)), nil
	case 0xfe:
		b, err := r.readBytes(4)
		if err != nil {
			return 0, err
		}
		return uint64(binary.LittleEndian.Uint32(b)), nil
	case 0xff:
		b, err := r.readBytes(8)
		if err != nil {
			return 0, err
		}
		return binary.LittleEndian.Uint64(b), nil
	default:
		return uint64(prefix[0]), nil
	}
}

// skipVarBytes reads a CompactSize length prefix and advances past that
// many bytes without retaining them.
func (r *byteReader) skipVarBytes() error {
	n, err := r.readVarInt()
	if err != nil {
		return err
	}
	_, err = r.readBytes(int(n))
	return err
}
