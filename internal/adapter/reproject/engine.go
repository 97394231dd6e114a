// Package reproject implements the resampling engine behind
// pipeline.Reprojector: it maps every cell of the run's equirectangular
// target grid back into a scene's native projection and samples the
// source bands there.
//
// Two native projections are handled: the GOES-R ABI fixed grid
// (scan-angle geometry of a geostationary imager, GOES-R PUG volume 3
// section 5.1.2.8) and plain geographic grids. Inverse mapping keeps the
// engine free of holes and double-sampling artifacts regardless of the
// relative resolutions.
package reproject

import (
	"context"
	"fmt"
	"math"

	"github.com/jollygoodjacob/goes-fog-cover/internal/domain"
)

// GRS80 ellipsoid, the datum of the ABI fixed grid.
const (
	semiMajorM = 6378137.0
	semiPolarM = 6356752.31414
)

// Method selects the resampling kernel.
type Method int

const (
	// Nearest assigns each target cell the nearest source sample. It can
	// never invent values outside the source range, which aggregation
	// over temperature fields depends on.
	Nearest Method = iota

	// Bilinear blends the four surrounding source samples. Weights are
	// convex, so results stay within the local source range; neighbors
	// that are no-data are dropped and the weights renormalized.
	Bilinear
)

// Engine resamples scenes onto equirectangular target grids.
type Engine struct {
	method Method
}

// NewEngine creates an Engine with the given resampling method.
func NewEngine(method Method) *Engine {
	return &Engine{method: method}
}

// Reproject maps a scene onto the target grid, clipping to the target
// extent. Target cells outside the scene swath, off the visible disk, or
// backed only by no-data samples come back as no-data.
func (e *Engine) Reproject(_ context.Context, img domain.RasterImage, target domain.Grid) (domain.RasterImage, error) {
	if target.CRS != domain.CRSEquirectangular {
		return domain.RasterImage{}, fmt.Errorf("unsupported target CRS %q", target.CRS)
	}

	locate, err := locator(img)
	if err != nil {
		return domain.RasterImage{}, err
	}

	// Precompute the fractional source coordinate of every target cell;
	// it is shared by all bands.
	n := target.Pixels()
	srcRow := make([]float64, n)
	srcCol := make([]float64, n)
	for row := 0; row < target.Height; row++ {
		for col := 0; col < target.Width; col++ {
			i := target.Index(row, col)
			lon, lat := target.Center(row, col)
			srcRow[i], srcCol[i] = locate(lat, lon)
		}
	}

	out := domain.RasterImage{
		Grid:       target,
		Time:       img.Time,
		Projection: domain.Projection{CRS: domain.CRSEquirectangular},
		Bands:      make(map[string][]float64, len(img.Bands)),
	}

	for name := range img.Bands {
		src, err := img.Band(name)
		if err != nil {
			return domain.RasterImage{}, err
		}
		data := make([]float64, n)
		for i := 0; i < n; i++ {
			data[i] = e.sample(src, img.Grid, srcRow[i], srcCol[i])
		}
		out.Bands[name] = data
	}

	return out, nil
}

// locator returns the scene's inverse mapping: geographic coordinates to
// fractional source pixel (row, col). NaN coordinates mark unmappable
// points (off the visible disk).
func locator(img domain.RasterImage) (func(lat, lon float64) (row, col float64), error) {
	p := img.Projection

	if p.Geostationary() {
		if p.DX == 0 || p.DY == 0 {
			return nil, fmt.Errorf("geostationary scene %s: zero scan-angle increment", img.Time.Format("2006-01-02T15:04:05Z"))
		}
		return func(lat, lon float64) (float64, float64) {
			x, y, visible := fixedGridAngles(lat, lon, p.SatelliteLonDeg, p.SatelliteHeight)
			if !visible {
				return math.NaN(), math.NaN()
			}
			return (y - p.Y0) / p.DY, (x - p.X0) / p.DX
		}, nil
	}

	// Geographic source: the grid geometry is the geotransform.
	g := img.Grid
	if g.Cell == 0 {
		return nil, fmt.Errorf("scene %s: zero cell size", img.Time.Format("2006-01-02T15:04:05Z"))
	}
	return func(lat, lon float64) (float64, float64) {
		return (g.North-lat)/g.Cell - 0.5, (lon-g.West)/g.Cell - 0.5
	}, nil
}

// fixedGridAngles computes ABI fixed-grid scan angles (x east-west,
// y north-south, radians) for a geographic point, following the GOES-R
// product definition. visible is false when the point is beyond the limb
// as seen from the satellite.
func fixedGridAngles(latDeg, lonDeg, satLonDeg, satHeightM float64) (x, y float64, visible bool) {
	const e2 = 1 - (semiPolarM*semiPolarM)/(semiMajorM*semiMajorM) // first eccentricity squared

	lat := latDeg * math.Pi / 180
	dLon := (lonDeg - satLonDeg) * math.Pi / 180
	h := satHeightM + semiMajorM // satellite distance from earth center

	// Geocentric latitude and local earth radius on the ellipsoid.
	latC := math.Atan((semiPolarM * semiPolarM) / (semiMajorM * semiMajorM) * math.Tan(lat))
	rc := semiPolarM / math.Sqrt(1-e2*math.Cos(latC)*math.Cos(latC))

	// Satellite-centered coordinates of the surface point.
	sx := h - rc*math.Cos(latC)*math.Cos(dLon)
	sy := -rc * math.Cos(latC) * math.Sin(dLon)
	sz := rc * math.Sin(latC)

	// Limb test: the point must be on the near side of the ellipsoid.
	if h*(h-sx) < sy*sy+(semiMajorM*semiMajorM)/(semiPolarM*semiPolarM)*sz*sz {
		return 0, 0, false
	}

	r := math.Sqrt(sx*sx + sy*sy + sz*sz)
	return math.Asin(-sy / r), math.Atan(sz / sx), true
}

// sample reads the source band at a fractional (row, col) with the
// engine's kernel. Out-of-bounds and unmappable coordinates are no-data.
func (e *Engine) sample(src []float64, grid domain.Grid, row, col float64) float64 {
	if math.IsNaN(row) || math.IsNaN(col) {
		return domain.NoData()
	}

	if e.method == Nearest {
		r := int(math.Round(row))
		c := int(math.Round(col))
		if r < 0 || r >= grid.Height || c < 0 || c >= grid.Width {
			return domain.NoData()
		}
		return src[grid.Index(r, c)]
	}

	r0 := int(math.Floor(row))
	c0 := int(math.Floor(col))
	fr := row - float64(r0)
	fc := col - float64(c0)

	var sum, weight float64
	for dr := 0; dr <= 1; dr++ {
		for dc := 0; dc <= 1; dc++ {
			r := r0 + dr
			c := c0 + dc
			if r < 0 || r >= grid.Height || c < 0 || c >= grid.Width {
				continue
			}
			v := src[grid.Index(r, c)]
			if domain.IsNoData(v) {
				continue
			}
			w := (1 - math.Abs(float64(dr)-fr)) * (1 - math.Abs(float64(dc)-fc))
			sum += v * w
			weight += w
		}
	}
	if weight == 0 {
		return domain.NoData()
	}
	return sum / weight
}
