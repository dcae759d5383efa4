package satrange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	r := Range{Start: 10, End: 20}

	left, right := Split(r, 3)
	assert.Equal(t, Range{10, 13}, left, "split(3) left")
	assert.Equal(t, Range{13, 20}, right, "split(3) right")

	left, right = Split(r, 100)
	assert.Equal(t, r, left, "split(100) left")
	assert.Zero(t, right.Len(), "split(100) right len")
}

func TestQueuePopFrontNSplitsFrontRange(t *testing.T) {
	var q Queue
	q.PushBack(Range{0, 10})
	q.PushBack(Range{100, 105})

	got := q.PopFrontN(3)
	assert.Equal(t, []Range{{0, 3}}, got, "pop(3)")
	require.Equal(t, uint64(12), q.TotalLen(), "remaining total")

	got = q.PopFrontN(7)
	assert.Equal(t, []Range{{3, 10}}, got, "pop(7)")

	got = q.PopFrontN(2)
	assert.Equal(t, []Range{{100, 102}}, got, "pop(2)")
}

func TestQueuePopFrontNSpansMultipleRanges(t *testing.T) {
	var q Queue
	q.PushBack(Range{0, 5})
	q.PushBack(Range{5, 10})
	q.PushBack(Range{20, 30})

	got := q.PopFrontN(12)
	assert.Equal(t, []Range{{0, 5}, {5, 10}, {20, 22}}, got, "pop(12)")
}

func TestQueuePopFrontNUnderflowDrains(t *testing.T) {
	var q Queue
	q.PushBack(Range{0, 5})

	got := q.PopFrontN(100)
	assert.Equal(t, []Range{{0, 5}}, got, "pop(100)")
	assert.Zero(t, q.Len(), "queue not drained")
}

func TestQueuePushBackDropsEmptyRange(t *testing.T) {
	var q Queue
	q.PushBack(Range{5, 5})
	assert.Zero(t, q.Len(), "empty range should not be pushed")
}

func TestQueueDrain(t *testing.T) {
	var q Queue
	q.PushBack(Range{0, 5})
	q.PushBack(Range{10, 15})

	got := q.Drain()
	assert.Equal(t, []Range{{0, 5}, {10, 15}}, got, "drain")
	assert.Zero(t, q.Len(), "queue not empty after drain")
}
