package chaincfg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubsidyHalving(t *testing.T) {
	cases := []struct {
		height uint32
		want   uint64
	}{
		{0, 5_000_000_000},
		{209_999, 5_000_000_000},
		{210_000, 2_500_000_000},
		{420_000, 1_250_000_000},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Subsidy(c.height), "Subsidy(%d)", c.height)
	}
}

func TestSubsidyExtinction(t *testing.T) {
	height := maxHalvings * SubsidyHalvingInterval
	assert.Zero(t, Subsidy(uint32(height)), "Subsidy(%d)", height)
}

// S5: at height 210_000, first_serial(210_000) == 210_000 * 5_000_000_000.
func TestFirstSerialScenarioS5(t *testing.T) {
	want := uint64(210_000) * 5_000_000_000
	assert.Equal(t, want, FirstSerial(210_000))
}

func TestFirstSerialMatchesLoop(t *testing.T) {
	loop := func(height uint32) uint64 {
		var total uint64
		for i := uint32(0); i < height; i++ {
			total += Subsidy(i)
		}
		return total
	}

	for _, h := range []uint32{0, 1, 2, 100, 209_999, 210_000, 210_001, 629_999, 630_000, 1_000_000} {
		assert.Equal(t, loop(h), FirstSerial(h), "FirstSerial(%d)", h)
	}
}

func TestFirstSerialMonotonic(t *testing.T) {
	prev := FirstSerial(0)
	for h := uint32(1); h <= 1000; h++ {
		cur := FirstSerial(h)
		assert.GreaterOrEqual(t, cur, prev, "FirstSerial not monotonic at height %d", h)
		prev = cur
	}
}
