package domain

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// PercentageBand names the single band of the output raster.
const PercentageBand = "fog_percentage"

// Accumulator folds per-scene fog masks into per-pixel occurrence counts.
// fogCount increments where a valid observation saw fog; totalCount
// increments for every valid observation regardless of outcome. Counts are
// integers, so folding is exactly commutative and associative: any fold
// order, and any partition into partial accumulators merged at the end,
// produces bit-identical grids.
//
// An Accumulator is not safe for concurrent use; parallel pipelines give
// each worker its own and Merge the partials.
type Accumulator struct {
	grid   Grid
	fog    []uint32
	total  []uint32
	folded int
}

// NewAccumulator creates a zeroed accumulator on the run's target grid.
func NewAccumulator(grid Grid) *Accumulator {
	n := grid.Pixels()
	return &Accumulator{
		grid:  grid,
		fog:   make([]uint32, n),
		total: make([]uint32, n),
	}
}

// Fold adds one scene's mask to the counts. The mask must be on the
// accumulator grid; anything else indicates a normalizer bug upstream.
func (a *Accumulator) Fold(mask Mask) error {
	if !mask.Grid.Equal(a.grid) {
		return fmt.Errorf("fold mask from %s: %w: mask grid differs from accumulator grid",
			mask.Time.Format("2006-01-02T15:04:05Z07:00"), ErrGeometryMismatch)
	}
	if len(mask.Fog) != a.grid.Pixels() || len(mask.Valid) != a.grid.Pixels() {
		return fmt.Errorf("fold mask from %s: %w: mask length %d/%d, grid expects %d",
			mask.Time.Format("2006-01-02T15:04:05Z07:00"), ErrGeometryMismatch,
			len(mask.Fog), len(mask.Valid), a.grid.Pixels())
	}

	for i := range mask.Valid {
		if !mask.Valid[i] {
			continue
		}
		a.total[i]++
		if mask.Fog[i] {
			a.fog[i]++
		}
	}
	a.folded++
	return nil
}

// Merge adds another accumulator's counts into this one. Both must share
// the target grid. The other accumulator is left untouched.
func (a *Accumulator) Merge(other *Accumulator) error {
	if !other.grid.Equal(a.grid) {
		return fmt.Errorf("merge accumulators: %w: grids differ", ErrGeometryMismatch)
	}
	for i := range a.total {
		a.fog[i] += other.fog[i]
		a.total[i] += other.total[i]
	}
	a.folded += other.folded
	return nil
}

// Folded returns how many masks have been folded in.
func (a *Accumulator) Folded() int {
	return a.folded
}

// Counts returns copies of the fog and total observation count grids as
// float64 rasters, for inspection or export.
func (a *Accumulator) Counts() (fog, total []float64) {
	fog = make([]float64, len(a.fog))
	total = make([]float64, len(a.total))
	for i := range a.fog {
		fog[i] = float64(a.fog[i])
		total[i] = float64(a.total[i])
	}
	return fog, total
}

// Percentage derives the fog-occurrence-frequency raster:
// 100*fog/total per pixel where total > 0, the no-data sentinel
// elsewhere. A pixel with zero observations is explicitly undefined,
// never zero and never a division by zero.
func (a *Accumulator) Percentage() RasterImage {
	data := make([]float64, len(a.total))
	for i := range a.total {
		if a.total[i] == 0 {
			data[i] = NoData()
			continue
		}
		data[i] = 100 * float64(a.fog[i]) / float64(a.total[i])
	}
	return RasterImage{
		Grid:  a.grid,
		Time:  clock.Now().UTC(),
		Bands: map[string][]float64{PercentageBand: data},
	}
}

// RasterStats summarizes the defined pixels of a single-band raster.
type RasterStats struct {
	Defined int     `json:"defined"` // pixels with a value
	Total   int     `json:"total"`  // all pixels in the grid
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"std_dev"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// Stats computes summary statistics over the defined pixels of a band.
// With no defined pixels the numeric fields are zero and Defined is 0.
func Stats(img RasterImage, band string) (RasterStats, error) {
	data, err := img.Band(band)
	if err != nil {
		return RasterStats{}, err
	}

	defined := make([]float64, 0, len(data))
	for _, v := range data {
		if !IsNoData(v) {
			defined = append(defined, v)
		}
	}

	s := RasterStats{Defined: len(defined), Total: len(data)}
	if len(defined) == 0 {
		return s, nil
	}

	s.Mean, s.StdDev = stat.MeanStdDev(defined, nil)
	if len(defined) == 1 {
		s.StdDev = 0
	}
	s.Min, s.Max = defined[0], defined[0]
	for _, v := range defined[1:] {
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}
	return s, nil
}
