package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satindex/satindex/chaincfg/chainhash"
	"github.com/satindex/satindex/chainstore"
	"github.com/satindex/satindex/core"
	"github.com/satindex/satindex/db"
	"github.com/satindex/satindex/db/memstore"
	"github.com/satindex/satindex/node"
	"github.com/satindex/satindex/satrange"
)

func opN(n byte, idx uint32) core.OutPoint {
	var h chainhash.Hash
	h[0] = n
	return core.OutPoint{Hash: h, Index: idx}
}

func setupStore(t *testing.T) *memstore.Store {
	t.Helper()
	s := memstore.New()
	err := s.Update(func(w db.IndexedBatch) error {
		if err := chainstore.PutRanges(w, opN(1, 0), []satrange.Range{{Start: 0, End: 5}}); err != nil {
			return err
		}
		if err := chainstore.PutRanges(w, opN(2, 0), []satrange.Range{{Start: 5, End: 8}, {Start: 100, End: 110}}); err != nil {
			return err
		}
		var h chainhash.Hash
		h[0] = 0xaa
		if err := chainstore.PutHeightHash(w, 0, h); err != nil {
			return err
		}
		return chainstore.SetIndexedHeight(w, 0)
	})
	require.NoError(t, err, "setup")
	return s
}

func TestOutputRanges(t *testing.T) {
	s := setupStore(t)
	r := New(s, nil)

	ranges, ok, err := r.OutputRanges(opN(1, 0))
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, ranges, 1)
	assert.Equal(t, satrange.Range{Start: 0, End: 5}, ranges[0])

	_, ok, err = r.OutputRanges(opN(9, 0))
	require.NoError(t, err)
	assert.False(t, ok, "expected absent outpoint")
}

func TestBlockHashAndStatus(t *testing.T) {
	s := setupStore(t)
	r := New(s, nil)

	hash, ok, err := r.BlockHash(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 0xaa, hash[0])

	_, ok, err = r.BlockHash(1)
	require.NoError(t, err)
	assert.False(t, ok, "BlockHash(1) should be absent")

	st, err := r.Status()
	require.NoError(t, err)
	assert.True(t, st.IndexedHeightKnown)
	assert.Equal(t, uint32(0), st.IndexedHeight)
}

func TestStatusReportsNodeTip(t *testing.T) {
	s := setupStore(t)
	source := node.NewChain(nil, func([]byte) chainhash.Hash { return chainhash.Hash{} })
	// Give the fake chain three blocks purely to have a nonzero tip;
	// content is irrelevant to Status.
	for i := 0; i < 3; i++ {
		source.Append([]byte{byte(i)}, func(b []byte) chainhash.Hash {
			var h chainhash.Hash
			h[0] = b[0]
			return h
		})
	}
	r := New(s, source)

	st, err := r.Status()
	require.NoError(t, err)
	assert.EqualValues(t, 2, st.ChainTipFromNode)
}

func TestSatpointOf(t *testing.T) {
	s := setupStore(t)
	r := New(s, nil)

	sp, found, err := r.SatpointOf(3)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, opN(1, 0), sp.Outpoint)
	assert.EqualValues(t, 3, sp.Offset)

	// Serial 107 falls in opN(2,0)'s second discontiguous range
	// [100,110); its offset is measured from the start of the
	// concatenation of that output's ranges, i.e. after the first
	// range's 3 units.
	sp, found, err = r.SatpointOf(107)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, opN(2, 0), sp.Outpoint)
	assert.EqualValues(t, 3+7, sp.Offset)

	_, found, err = r.SatpointOf(9999)
	require.NoError(t, err)
	assert.False(t, found, "SatpointOf(9999) should be not-found")
}
