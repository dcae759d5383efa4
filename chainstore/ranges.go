package chainstore

import (
	"encoding/binary"
	"fmt"

	"github.com/satindex/satindex/satrange"
)

// encodeRanges serializes an ordered range list as a count prefix followed
// by (start, length) uvarint pairs per range (§9: "two variable-length
// integers" per range). A nil or empty slice still encodes to a valid
// zero-count row, distinguishing an output that exists but holds nothing
// from one absent entirely.
func encodeRanges(ranges []satrange.Range) []byte {
	buf := make([]byte, 0, 1+len(ranges)*10)
	buf = appendUvarint(buf, uint64(len(ranges)))
	for _, r := range ranges {
		buf = appendUvarint(buf, r.Start)
		buf = appendUvarint(buf, r.Len())
	}
	return buf
}

// DecodeRanges is decodeRanges exported for the query interface's raw
// table scan (§4.G), which reads row values straight off an iterator
// rather than through GetRanges.
func DecodeRanges(data []byte) ([]satrange.Range, error) {
	return decodeRanges(data)
}

func decodeRanges(data []byte) ([]satrange.Range, error) {
	count, n := binary.Uvarint(data)
	if n <= 0 {
		return nil, fmt.Errorf("chainstore: malformed range count")
	}
	data = data[n:]
	if count == 0 {
		return nil, nil
	}
	ranges := make([]satrange.Range, 0, count)
	for i := uint64(0); i < count; i++ {
		start, n := binary.Uvarint(data)
		if n <= 0 {
			return nil, fmt.Errorf("chainstore: malformed range start at entry %d", i)
		}
		data = data[n:]
		length, n := binary.Uvarint(data)
		if n <= 0 {
			return nil, fmt.Errorf("chainstore: malformed range length at entry %d", i)
		}
		data = data[n:]
		ranges = append(ranges, satrange.Range{Start: start, End: start + length})
	}
	return ranges, nil
}

func appendUvarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}
