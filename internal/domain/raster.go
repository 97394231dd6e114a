package domain

import (
	"fmt"
	"math"
	"time"
)

// CRSEquirectangular is the target coordinate reference system for all
// normalized rasters: plain geographic lat/lon on WGS-84.
const CRSEquirectangular = "EPSG:4326"

// IsNoData reports whether a pixel value is the no-data sentinel.
// No-data is represented as NaN in band storage; code must never compare
// against NaN directly.
func IsNoData(v float64) bool {
	return math.IsNaN(v)
}

// NoData returns the no-data sentinel value.
func NoData() float64 {
	return math.NaN()
}

// Grid describes the pixel geometry of a raster: its CRS, the coordinate
// of the outer corner of the top-left pixel, the cell size in CRS units,
// and the pixel dimensions. Rows run north to south, columns west to east.
type Grid struct {
	CRS    string  `json:"crs"`
	West   float64 `json:"west"`  // x of the top-left corner
	North  float64 `json:"north"` // y of the top-left corner
	Cell   float64 `json:"cell"`  // cell size, CRS units per pixel (square pixels)
	Width  int     `json:"width"`
	Height int     `json:"height"`
}

// Equal reports whether two grids describe the identical pixel geometry.
// Origin and cell size are compared with a small tolerance to absorb
// floating-point noise from grid construction; dimensions and CRS must
// match exactly.
func (g Grid) Equal(other Grid) bool {
	const eps = 1e-9
	return g.CRS == other.CRS &&
		g.Width == other.Width &&
		g.Height == other.Height &&
		math.Abs(g.West-other.West) < eps &&
		math.Abs(g.North-other.North) < eps &&
		math.Abs(g.Cell-other.Cell) < eps
}

// Pixels returns the total pixel count.
func (g Grid) Pixels() int {
	return g.Width * g.Height
}

// Index returns the row-major offset of (row, col).
func (g Grid) Index(row, col int) int {
	return row*g.Width + col
}

// Center returns the CRS coordinate of the center of pixel (row, col).
func (g Grid) Center(row, col int) (x, y float64) {
	x = g.West + (float64(col)+0.5)*g.Cell
	y = g.North - (float64(row)+0.5)*g.Cell
	return x, y
}

// Bounds returns the outer extent of the grid as (west, south, east, north).
func (g Grid) Bounds() BBox {
	return BBox{
		West:  g.West,
		South: g.North - float64(g.Height)*g.Cell,
		East:  g.West + float64(g.Width)*g.Cell,
		North: g.North,
	}
}

// BBox is an axis-aligned geographic bounding box.
type BBox struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// Valid reports whether the box has positive area and sane ordering.
func (b BBox) Valid() bool {
	return b.West < b.East && b.South < b.North
}

// Polygon returns the box outline as a closed ring of (lon, lat) pairs,
// the shape the imagery catalog expects for spatial filtering.
func (b BBox) Polygon() [][2]float64 {
	return [][2]float64{
		{b.West, b.South},
		{b.East, b.South},
		{b.East, b.North},
		{b.West, b.North},
		{b.West, b.South},
	}
}

// GridForBBox constructs the fixed target grid covering a bounding box at
// the given cell size in degrees. The grid snaps outward so the box is
// fully covered; all scenes in a run normalize onto this one geometry.
func GridForBBox(box BBox, cellDeg float64) (Grid, error) {
	if !box.Valid() {
		return Grid{}, fmt.Errorf("invalid bounding box: %+v", box)
	}
	if cellDeg <= 0 {
		return Grid{}, fmt.Errorf("invalid cell size: %g", cellDeg)
	}
	width := int(math.Ceil((box.East-box.West)/cellDeg - 1e-9))
	height := int(math.Ceil((box.North-box.South)/cellDeg - 1e-9))
	if width < 1 || height < 1 {
		return Grid{}, fmt.Errorf("degenerate grid for box %+v at %g deg", box, cellDeg)
	}
	return Grid{
		CRS:    CRSEquirectangular,
		West:   box.West,
		North:  box.North,
		Cell:   cellDeg,
		Width:  width,
		Height: height,
	}, nil
}

// Projection carries the native projection of a scene as delivered by the
// catalog. For ABI fixed-grid scenes the geostationary parameters are set;
// for scenes already on a geographic grid only the CRS matters.
type Projection struct {
	CRS string `json:"crs"`

	// Geostationary parameters (GOES-R ABI fixed grid). Zero when the
	// scene is not in a geostationary projection.
	SatelliteLonDeg float64 `json:"satellite_lon_deg,omitempty"` // sub-satellite longitude
	SatelliteHeight float64 `json:"satellite_height_m,omitempty"` // perspective point height above ellipsoid, meters

	// Scan-angle geotransform: angle of the top-left sample and the
	// per-sample increment, radians. Used to map scan angles to pixels.
	X0 float64 `json:"x0,omitempty"`
	Y0 float64 `json:"y0,omitempty"`
	DX float64 `json:"dx,omitempty"`
	DY float64 `json:"dy,omitempty"`
}

// Geostationary reports whether the projection is a satellite fixed grid.
func (p Projection) Geostationary() bool {
	return p.SatelliteHeight > 0
}

// CalibrationParams converts raw digital counts to physical units:
// value = raw*Scale + Offset. Consumed once by Calibrate.
type CalibrationParams struct {
	Scale  float64 `json:"scale"`
	Offset float64 `json:"offset"`
}

// RasterImage is a georeferenced multi-band raster snapshot. Bands are
// stored row-major, one float64 slice per band name, all sharing the
// image grid. Images are treated as immutable: every pipeline stage
// returns a new image and never writes into its input.
type RasterImage struct {
	Grid        Grid                         `json:"grid"`
	Time        time.Time                    `json:"time"`
	Projection  Projection                   `json:"projection"`
	Bands       map[string][]float64         `json:"bands"`
	Calibration map[string]CalibrationParams `json:"calibration,omitempty"`
}

// Band returns the named band's data, or an error naming the band when it
// is absent or does not match the image grid.
func (r RasterImage) Band(name string) ([]float64, error) {
	data, ok := r.Bands[name]
	if !ok {
		return nil, fmt.Errorf("image %s: band %q not present", r.Time.Format(time.RFC3339), name)
	}
	if len(data) != r.Grid.Pixels() {
		return nil, &GeometryMismatchError{
			Band: name,
			Time: r.Time,
			Want: r.Grid.Pixels(),
			Got:  len(data),
		}
	}
	return data, nil
}

// AllNoData reports whether every pixel of every listed band is no-data,
// the signature of a scene that does not intersect the region of interest.
func (r RasterImage) AllNoData(bandNames ...string) bool {
	for _, name := range bandNames {
		data, ok := r.Bands[name]
		if !ok {
			continue
		}
		for _, v := range data {
			if !IsNoData(v) {
				return false
			}
		}
	}
	return true
}

// BandSet names the three channels the classifier consumes: the cloud-top
// temperature channel and the two channels whose difference forms the
// fog-discriminating BTD signal.
type BandSet struct {
	CTT    string `json:"ctt"`
	BTDNum string `json:"btd_num"`
	BTDDen string `json:"btd_den"`
}

// DefaultBandSet returns the ABI channels used by the fog product:
// C13 (10.3 um clean IR window) for cloud-top temperature, and
// C14 (11.2 um) minus C07 (3.9 um shortwave) for the BTD signal.
func DefaultBandSet() BandSet {
	return BandSet{CTT: "C13", BTDNum: "C14", BTDDen: "C07"}
}

// Names returns the band names in a stable order.
func (b BandSet) Names() []string {
	return []string{b.CTT, b.BTDNum, b.BTDDen}
}

// Calibrated returns the band set with each name carrying the
// brightness-temperature suffix applied by Calibrate.
func (b BandSet) Calibrated() BandSet {
	return BandSet{
		CTT:    b.CTT + calibratedSuffix,
		BTDNum: b.BTDNum + calibratedSuffix,
		BTDDen: b.BTDDen + calibratedSuffix,
	}
}

// Mask is a per-pixel binary fog decision for one scene. Fog and Valid are
// parallel to the grid; Valid=false marks pixels with no real observation
// (no-data input or outside the scene swath), which must stay
// distinguishable from "observed, not fog".
type Mask struct {
	Grid  Grid      `json:"grid"`
	Time  time.Time `json:"time"`
	Fog   []bool    `json:"fog"`
	Valid []bool    `json:"valid"`
}
