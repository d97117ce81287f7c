package rank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculate_PartitionsWholeRange(t *testing.T) {
	// Every count in [1,100] must land in exactly one tier.
	for v := 1; v <= 100; v++ {
		info := Calculate(v)
		require.GreaterOrEqual(t, v, info.Current.MinVerses, "count %d below tier %s", v, info.Current.Level)
		require.LessOrEqual(t, v, info.Current.MaxVerses, "count %d above tier %s", v, info.Current.Level)
	}

	assert.Equal(t, "Peter", Calculate(16).Current.Level)
	assert.Equal(t, "John", Calculate(17).Current.Level)
}

func TestCalculate_ZeroVerses(t *testing.T) {
	info := Calculate(0)
	assert.Equal(t, "Nicodemus", info.Current.Level)
	assert.Equal(t, 0.0, info.Progress)
	assert.Equal(t, 1, info.VersesToNext)

	// Negative counts behave the same as zero.
	assert.Equal(t, info, Calculate(-5))
}

func TestCalculate_TerminalTier(t *testing.T) {
	info := Calculate(100)
	assert.Equal(t, "Solomon", info.Current.Level)
	assert.Equal(t, 100.0, info.Progress)
	assert.Equal(t, 0, info.VersesToNext)

	clamped := Calculate(150)
	assert.Equal(t, "Solomon", clamped.Current.Level)
	assert.Equal(t, 100.0, clamped.Progress)
	assert.Equal(t, 0, clamped.VersesToNext)
}

func TestCalculate_ProgressWithinTier(t *testing.T) {
	// John spans 17..27 (range 11); 25 verses is the 9th position.
	info := Calculate(25)
	assert.Equal(t, "John", info.Current.Level)
	assert.InDelta(t, 81.82, info.Progress, 0.001)
	assert.Equal(t, 3, info.VersesToNext)
}

func TestCalculate_BoundaryTransitions(t *testing.T) {
	cases := []struct {
		count int
		level string
	}{
		{1, "Nicodemus"},
		{3, "Nicodemus"},
		{4, "Thomas"},
		{8, "Thomas"},
		{9, "Peter"},
		{27, "John"},
		{28, "Paul"},
		{40, "Paul"},
		{41, "David"},
		{55, "David"},
		{56, "Daniel"},
		{75, "Daniel"},
		{76, "Solomon"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.level, Calculate(tc.count).Current.Level, "count %d", tc.count)
	}
}

func TestByLevelAndNext(t *testing.T) {
	tier, ok := ByLevel("Paul")
	require.True(t, ok)
	assert.Equal(t, 28, tier.MinVerses)

	next, ok := Next("Paul")
	require.True(t, ok)
	assert.Equal(t, "David", next.Level)

	_, ok = Next("Solomon")
	assert.False(t, ok)

	_, ok = ByLevel("Goliath")
	assert.False(t, ok)
}

func TestAll_ReturnsCopy(t *testing.T) {
	all := All()
	require.Len(t, all, 8)
	all[0].Level = "mutated"
	assert.Equal(t, "Nicodemus", All()[0].Level)
}

func TestValidateRejectsBrokenCatalogs(t *testing.T) {
	broken := []Tier{
		{Level: "A", MinVerses: 1, MaxVerses: 3, NextLevel: "B"},
		{Level: "B", MinVerses: 5, MaxVerses: 9},
	}
	assert.Error(t, validate(broken))

	twoTerminals := []Tier{
		{Level: "A", MinVerses: 1, MaxVerses: 3},
		{Level: "B", MinVerses: 4, MaxVerses: 9},
	}
	assert.Error(t, validate(twoTerminals))

	assert.NoError(t, validate(tiers))
}
