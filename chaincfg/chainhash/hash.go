// Package chainhash provides the 32-byte block/transaction hash type
// used throughout satindex: block header hashes (§3 "Block header
// record"), transaction ids (half of an Outpoint), and the genesis hash
// each chaincfg.Params carries for the coordinator's sanity check (§6).
package chainhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// HashSize is the number of bytes in a Hash.
const HashSize = 32

// Hash is a double-SHA256 digest, stored internally in the same
// byte order the hashing function produced it and displayed (via
// String) byte-reversed, matching the chain's own big-endian display
// convention for block and transaction hashes.
type Hash [HashSize]byte

// MaxHashStringSize is the longest hex string Decode accepts.
const MaxHashStringSize = HashSize * 2

// ErrHashStrSize is returned when a hex hash string exceeds
// MaxHashStringSize.
var ErrHashStrSize = fmt.Errorf("max hash string length is %v bytes", MaxHashStringSize)

// String renders the hash byte-reversed as a hex string, the display
// convention block explorers and RPC responses use for block and
// transaction ids.
func (hash Hash) String() string {
	for i := 0; i < HashSize/2; i++ {
		hash[i], hash[HashSize-1-i] = hash[HashSize-1-i], hash[i]
	}
	return hex.EncodeToString(hash[:])
}

// IsEqual reports whether hash and target hold the same value. Two nil
// pointers are considered equal.
func (hash *Hash) IsEqual(target *Hash) bool {
	if hash == nil && target == nil {
		return true
	}
	if hash == nil || target == nil {
		return false
	}
	return *hash == *target
}

// SetBytes copies newHash's bytes into hash, failing if the length
// does not match HashSize.
func (hash *Hash) SetBytes(newHash []byte) error {
	if len(newHash) != HashSize {
		return fmt.Errorf("invalid hash length %v, expected %v", len(newHash), HashSize)
	}
	copy(hash[:], newHash)
	return nil
}

// NewHash builds a Hash from a byte slice of exactly HashSize bytes.
func NewHash(b []byte) (*Hash, error) {
	var h Hash
	if err := h.SetBytes(b); err != nil {
		return nil, err
	}
	return &h, nil
}

// NewHashFromStr parses the byte-reversed hex string produced by
// String back into a Hash. A short string is zero-padded at the end,
// matching the node RPC's own lenient parsing.
func NewHashFromStr(s string) (*Hash, error) {
	h := new(Hash)
	if err := Decode(h, s); err != nil {
		return nil, err
	}
	return h, nil
}

// Decode parses src, a byte-reversed hex string, into dst.
func Decode(dst *Hash, src string) error {
	if len(src) > MaxHashStringSize {
		return ErrHashStrSize
	}

	var srcBytes []byte
	if len(src)%2 == 0 {
		srcBytes = []byte(src)
	} else {
		srcBytes = make([]byte, 1+len(src))
		srcBytes[0] = '0'
		copy(srcBytes[1:], src)
	}

	var reversed Hash
	if _, err := hex.Decode(reversed[HashSize-hex.DecodedLen(len(srcBytes)):], srcBytes); err != nil {
		return err
	}

	for i, b := range reversed[:HashSize/2] {
		dst[i], dst[HashSize-1-i] = reversed[HashSize-1-i], b
	}
	return nil
}

// HashH returns sha256(b) as a Hash.
func HashH(b []byte) Hash {
	return Hash(sha256.Sum256(b))
}

// DoubleHashH returns sha256(sha256(b)) as a Hash — the block and
// transaction hashing function the chain actually uses (§3, core/block.go's
// BlockHeader.Hash, core/tx.go's transaction id).
func DoubleHashH(b []byte) Hash {
	first := sha256.Sum256(b)
	return Hash(sha256.Sum256(first[:]))
}
