// Package chainstore implements the logical tables of §3 on top of the
// generic db.KeyValueStore: key encodings, range-list serialization, the
// statistics counters, and the undo log. It is the concrete realization
// of Persistent Store (§4.D) that the assignment engine and query
// interface both read and write through.
package chainstore

import (
	"encoding/binary"
	"fmt"

	"github.com/satindex/satindex/chaincfg/chainhash"
	"github.com/satindex/satindex/core"
	"github.com/satindex/satindex/db"
)

// OutpointKey encodes an outpoint as its 36-byte wire form (32-byte txid
// + 4-byte big-endian output index) under OutpointToRanges.
func OutpointKey(op core.OutPoint) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, op.Index)
	return db.OutpointToRanges.Key(op.Hash[:], buf)
}

// DecodeOutpointKey reverses OutpointKey, used by the query interface's
// satpoint scan (§4.G) which must recover the outpoint each row belongs
// to while iterating the table rather than looking one up by key.
func DecodeOutpointKey(key []byte) (core.OutPoint, error) {
	prefix := db.OutpointToRanges.Prefix()
	if len(key) != len(prefix)+chainhash.HashSize+4 {
		return core.OutPoint{}, fmt.Errorf("chainstore: outpoint key has %d bytes, want %d", len(key), len(prefix)+chainhash.HashSize+4)
	}
	key = key[len(prefix):]
	var op core.OutPoint
	copy(op.Hash[:], key[:chainhash.HashSize])
	op.Index = binary.BigEndian.Uint32(key[chainhash.HashSize:])
	return op, nil
}
