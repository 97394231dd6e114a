package pipeline

import (
	"context"
	"fmt"

	"github.com/jollygoodjacob/goes-fog-cover/internal/domain"
)

// Reprojector resamples a scene from its native projection onto a target
// grid, clipping to the grid extent. Target pixels outside the scene are
// no-data. Resampling must not introduce values beyond the source range.
type Reprojector interface {
	Reproject(ctx context.Context, img domain.RasterImage, target domain.Grid) (domain.RasterImage, error)
}

// Normalizer puts calibrated scenes onto the run's fixed target grid and
// verifies the geometry guarantees the aggregator depends on: every band
// of every normalized scene shares the identical grid.
type Normalizer struct {
	engine Reprojector
	target domain.Grid
	bands  domain.BandSet // calibrated band names
}

// NewNormalizer creates a Normalizer for one run's target grid. bands are
// the calibrated band names expected on incoming scenes.
func NewNormalizer(engine Reprojector, target domain.Grid, bands domain.BandSet) *Normalizer {
	return &Normalizer{engine: engine, target: target, bands: bands}
}

// Normalize reprojects a calibrated scene onto the target grid.
//
// Post-conditions checked on the engine's output: the grid equals the run
// target (anything else is a reprojector bug), and each required band
// carries exactly grid-sized data. Violations return an error unwrapping
// to domain.ErrGeometryMismatch and the scene is excluded. A scene whose
// required bands come back entirely no-data does not intersect the region
// and returns domain.ErrEmptyIntersection.
func (n *Normalizer) Normalize(ctx context.Context, img domain.RasterImage) (domain.RasterImage, error) {
	out, err := n.engine.Reproject(ctx, img, n.target)
	if err != nil {
		return domain.RasterImage{}, fmt.Errorf("reproject scene %s: %w", img.Time.Format("2006-01-02T15:04:05Z"), err)
	}

	if !out.Grid.Equal(n.target) {
		return domain.RasterImage{}, fmt.Errorf("scene %s: reprojected grid differs from target: %w",
			img.Time.Format("2006-01-02T15:04:05Z"), domain.ErrGeometryMismatch)
	}

	names := n.bands.Names()
	for _, name := range names {
		if _, err := out.Band(name); err != nil {
			return domain.RasterImage{}, err
		}
	}

	if out.AllNoData(names...) {
		return domain.RasterImage{}, domain.ErrEmptyIntersection
	}

	return out, nil
}
