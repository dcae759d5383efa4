package chainstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satindex/satindex/chaincfg/chainhash"
	"github.com/satindex/satindex/core"
	"github.com/satindex/satindex/db"
	"github.com/satindex/satindex/db/memstore"
	"github.com/satindex/satindex/satrange"
)

func txidN(n byte) core.OutPoint {
	var h chainhash.Hash
	h[0] = n
	return core.OutPoint{Hash: h, Index: 0}
}

func TestRangesRoundTrip(t *testing.T) {
	cases := [][]satrange.Range{
		nil,
		{},
		{{Start: 0, End: 5_000_000_000}},
		{{Start: 0, End: 2}, {Start: 2, End: 5}, {Start: 5, End: 5_000_000_000}},
	}
	for _, ranges := range cases {
		got, err := decodeRanges(encodeRanges(ranges))
		require.NoError(t, err, "decodeRanges")
		require.Len(t, got, len(ranges))
		for i := range ranges {
			assert.Equal(t, ranges[i], got[i], "entry %d", i)
		}
	}
}

func TestPutGetDeleteRanges(t *testing.T) {
	s := memstore.New()
	op := txidN(1)

	_, ok, err := GetRanges(s, op)
	require.NoError(t, err)
	assert.False(t, ok, "expected absent row")

	ranges := []satrange.Range{{Start: 0, End: 5_000_000_000}}
	require.NoError(t, PutRanges(s, op, ranges))

	got, ok, err := GetRanges(s, op)
	require.NoError(t, err)
	require.True(t, ok, "GetRanges after put")
	require.Len(t, got, 1)
	assert.Equal(t, ranges[0], got[0])

	prior, existed, err := DeleteRanges(s, op)
	require.NoError(t, err)
	require.True(t, existed)
	require.Len(t, prior, 1)
	assert.Equal(t, ranges[0], prior[0])

	_, ok, _ = GetRanges(s, op)
	assert.False(t, ok, "row should be gone after delete")
}

func TestZeroValueOutputRowExistsButEmpty(t *testing.T) {
	s := memstore.New()
	op := txidN(2)
	require.NoError(t, PutRanges(s, op, nil))

	ranges, ok, err := GetRanges(s, op)
	require.NoError(t, err)
	require.True(t, ok, "expected present-but-empty row")
	assert.Empty(t, ranges)
}

func TestHeightHashAndIndexedHeight(t *testing.T) {
	s := memstore.New()
	_, ok, err := GetIndexedHeight(s)
	require.NoError(t, err)
	assert.False(t, ok, "expected no indexed height yet")

	var h chainhash.Hash
	h[0] = 7
	err = s.Update(func(w db.IndexedBatch) error {
		if err := PutHeightHash(w, 0, h); err != nil {
			return err
		}
		return SetIndexedHeight(w, 0)
	})
	require.NoError(t, err)

	got, ok, err := GetHeightHash(s, 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, h, got)

	height, ok, err := GetIndexedHeight(s)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(0), height)
}

func TestUndoLogRoundTrip(t *testing.T) {
	s := memstore.New()
	undo := BlockUndo{
		Destroyed: []UndoEntry{
			{Outpoint: txidN(1), Ranges: []satrange.Range{{Start: 0, End: 5}}},
			{Outpoint: txidN(2), Ranges: nil},
		},
		Created: []core.OutPoint{txidN(3), txidN(4)},
	}
	err := s.Update(func(w db.IndexedBatch) error {
		return PutUndo(w, 100, undo)
	})
	require.NoError(t, err)

	got, ok, err := GetUndo(s, 100)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got.Destroyed, 2)
	require.Len(t, got.Created, 2)
	assert.Equal(t, undo.Destroyed[0].Outpoint, got.Destroyed[0].Outpoint)
	require.Len(t, got.Destroyed[0].Ranges, 1)
	assert.Equal(t, satrange.Range{Start: 0, End: 5}, got.Destroyed[0].Ranges[0])
}

func TestSchemaCheckInitializesThenAccepts(t *testing.T) {
	s := memstore.New()
	assert.NoError(t, CheckSchema(s), "first CheckSchema")
	assert.NoError(t, CheckSchema(s), "second CheckSchema (should be a no-op match)")
}
