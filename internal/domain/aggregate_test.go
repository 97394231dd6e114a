package domain

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var aggGrid = Grid{CRS: CRSEquirectangular, West: 0, North: 1, Cell: 0.5, Width: 2, Height: 2}

func maskOf(fog, valid []bool) Mask {
	return Mask{Grid: aggGrid, Time: time.Now(), Fog: fog, Valid: valid}
}

func TestAccumulator_Fold(t *testing.T) {
	acc := NewAccumulator(aggGrid)

	require.NoError(t, acc.Fold(maskOf(
		[]bool{true, false, false, true},
		[]bool{true, true, true, true},
	)))
	require.NoError(t, acc.Fold(maskOf(
		[]bool{true, false, false, false},
		[]bool{true, true, false, true},
	)))

	fog, total := acc.Counts()
	assert.Equal(t, []float64{2, 0, 0, 1}, fog)
	assert.Equal(t, []float64{2, 2, 1, 2}, total)
	assert.Equal(t, 2, acc.Folded())
}

func TestAccumulator_InvalidPixelsDoNotCount(t *testing.T) {
	acc := NewAccumulator(aggGrid)

	// Fog=true on an invalid pixel must not leak into either count.
	require.NoError(t, acc.Fold(maskOf(
		[]bool{true, true, true, true},
		[]bool{false, false, false, false},
	)))

	fog, total := acc.Counts()
	assert.Equal(t, []float64{0, 0, 0, 0}, fog)
	assert.Equal(t, []float64{0, 0, 0, 0}, total)
}

func TestAccumulator_GridMismatch(t *testing.T) {
	acc := NewAccumulator(aggGrid)

	other := aggGrid
	other.Width = 3
	err := acc.Fold(Mask{Grid: other, Fog: make([]bool, 6), Valid: make([]bool, 6)})
	assert.ErrorIs(t, err, ErrGeometryMismatch)

	err = acc.Fold(Mask{Grid: aggGrid, Fog: make([]bool, 2), Valid: make([]bool, 2)})
	assert.ErrorIs(t, err, ErrGeometryMismatch)
}

func TestAccumulator_FoldOrderIndependent(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	masks := make([]Mask, 8)
	for i := range masks {
		fog := make([]bool, aggGrid.Pixels())
		valid := make([]bool, aggGrid.Pixels())
		for p := range fog {
			valid[p] = rng.Intn(4) > 0
			fog[p] = valid[p] && rng.Intn(2) == 0
		}
		masks[i] = maskOf(fog, valid)
	}

	reference := NewAccumulator(aggGrid)
	for _, m := range masks {
		require.NoError(t, reference.Fold(m))
	}
	refFog, refTotal := reference.Counts()

	for trial := 0; trial < 10; trial++ {
		acc := NewAccumulator(aggGrid)
		for _, i := range rng.Perm(len(masks)) {
			require.NoError(t, acc.Fold(masks[i]))
		}
		fog, total := acc.Counts()
		if diff := cmp.Diff(refFog, fog); diff != "" {
			t.Fatalf("fog counts differ under permutation (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(refTotal, total); diff != "" {
			t.Fatalf("total counts differ under permutation (-want +got):\n%s", diff)
		}
	}
}

func TestAccumulator_MergeMatchesSerialFold(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	masks := make([]Mask, 9)
	for i := range masks {
		fog := make([]bool, aggGrid.Pixels())
		valid := make([]bool, aggGrid.Pixels())
		for p := range fog {
			valid[p] = rng.Intn(5) > 0
			fog[p] = valid[p] && rng.Intn(3) == 0
		}
		masks[i] = maskOf(fog, valid)
	}

	serial := NewAccumulator(aggGrid)
	for _, m := range masks {
		require.NoError(t, serial.Fold(m))
	}

	// Partition into three partials, as parallel workers would.
	partials := []*Accumulator{
		NewAccumulator(aggGrid),
		NewAccumulator(aggGrid),
		NewAccumulator(aggGrid),
	}
	for i, m := range masks {
		require.NoError(t, partials[i%3].Fold(m))
	}
	merged := NewAccumulator(aggGrid)
	for _, p := range partials {
		require.NoError(t, merged.Merge(p))
	}

	serialFog, serialTotal := serial.Counts()
	mergedFog, mergedTotal := merged.Counts()
	assert.Equal(t, serialFog, mergedFog, "merged partials must be bit-identical to a serial fold")
	assert.Equal(t, serialTotal, mergedTotal)
	assert.Equal(t, serial.Folded(), merged.Folded())
}

func TestAccumulator_Percentage(t *testing.T) {
	fixed := time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(fixed))
	defer SetClock(nil)

	acc := NewAccumulator(aggGrid)
	require.NoError(t, acc.Fold(maskOf(
		[]bool{true, false, false, false},
		[]bool{true, true, false, true},
	)))
	require.NoError(t, acc.Fold(maskOf(
		[]bool{true, true, false, false},
		[]bool{true, true, false, true},
	)))
	require.NoError(t, acc.Fold(maskOf(
		[]bool{false, false, false, false},
		[]bool{true, true, false, true},
	)))

	out := acc.Percentage()
	assert.Equal(t, fixed, out.Time)

	pct, err := out.Band(PercentageBand)
	require.NoError(t, err)

	assert.InDelta(t, 100.0*2/3, pct[0], 1e-9)
	assert.InDelta(t, 100.0*1/3, pct[1], 1e-9)
	assert.InDelta(t, 0, pct[3], 1e-9, "observed but never foggy is an explicit zero")
	assert.True(t, IsNoData(pct[2]), "never observed must be no-data, not zero")
}

func TestAccumulator_PercentageEmptyRun(t *testing.T) {
	acc := NewAccumulator(aggGrid)

	pct, err := acc.Percentage().Band(PercentageBand)
	require.NoError(t, err)
	for i, v := range pct {
		assert.True(t, IsNoData(v), "pixel %d of an empty run must be no-data", i)
	}
}

func TestStats(t *testing.T) {
	img := RasterImage{
		Grid: aggGrid,
		Bands: map[string][]float64{
			PercentageBand: {25, 75, NoData(), 50},
		},
	}

	s, err := Stats(img, PercentageBand)
	require.NoError(t, err)

	assert.Equal(t, 3, s.Defined)
	assert.Equal(t, 4, s.Total)
	assert.InDelta(t, 50, s.Mean, 1e-9)
	assert.InDelta(t, 25, s.StdDev, 1e-9)
	assert.Equal(t, 25.0, s.Min)
	assert.Equal(t, 75.0, s.Max)
}

func TestStats_AllNoData(t *testing.T) {
	img := RasterImage{
		Grid:  aggGrid,
		Bands: map[string][]float64{PercentageBand: {NoData(), NoData(), NoData(), NoData()}},
	}

	s, err := Stats(img, PercentageBand)
	require.NoError(t, err)
	assert.Zero(t, s.Defined)
	assert.Zero(t, s.Mean)
}
