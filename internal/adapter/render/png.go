// Package render exports fog-percentage rasters for human inspection:
// a static PNG heatmap via gonum/plot and an interactive HTML heatmap
// via go-echarts.
package render

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/jollygoodjacob/goes-fog-cover/internal/domain"
)

// DisplayOptions control the color mapping of an exported raster.
type DisplayOptions struct {
	Title string
	Band  string

	// Min and Max bound the color ramp. For a percentage raster 0..100.
	Min float64
	Max float64

	// Colors is the number of ramp steps. Zero means a 12-step ramp.
	Colors int
}

// DefaultDisplay returns the display configuration for the standard
// fog-percentage product.
func DefaultDisplay() DisplayOptions {
	return DisplayOptions{
		Title: "Fog occurrence frequency (%)",
		Band:  domain.PercentageBand,
		Min:   0,
		Max:   100,
	}
}

// WritePNG renders a single-band raster as a PNG heatmap. No-data pixels
// are left blank.
func WritePNG(img domain.RasterImage, opts DisplayOptions, path string) error {
	grid, err := newPlotGrid(img, opts.Band)
	if err != nil {
		return err
	}

	steps := opts.Colors
	if steps <= 0 {
		steps = 12
	}

	heat := plotter.NewHeatMap(grid, palette.Heat(steps, 1))
	heat.Min = opts.Min
	heat.Max = opts.Max

	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = "longitude"
	p.Y.Label.Text = "latitude"
	p.Add(heat)

	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save heatmap %s: %w", path, err)
	}
	return nil
}

// plotGrid adapts a raster band to plotter.GridXYZ. gonum/plot indexes
// rows south to north, the raster north to south.
type plotGrid struct {
	grid domain.Grid
	data []float64
}

func newPlotGrid(img domain.RasterImage, band string) (plotGrid, error) {
	data, err := img.Band(band)
	if err != nil {
		return plotGrid{}, err
	}
	return plotGrid{grid: img.Grid, data: data}, nil
}

func (g plotGrid) Dims() (c, r int) {
	return g.grid.Width, g.grid.Height
}

func (g plotGrid) Z(c, r int) float64 {
	row := g.grid.Height - 1 - r
	return g.data[g.grid.Index(row, c)]
}

func (g plotGrid) X(c int) float64 {
	x, _ := g.grid.Center(0, c)
	return x
}

func (g plotGrid) Y(r int) float64 {
	_, y := g.grid.Center(g.grid.Height-1-r, 0)
	return y
}
