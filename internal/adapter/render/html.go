package render

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/jollygoodjacob/goes-fog-cover/internal/domain"
)

// viridisRamp is the default interactive-map color ramp, low to high.
var viridisRamp = []string{
	"#440154", "#482777", "#3e4989", "#31688e", "#26828e",
	"#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725",
}

// WriteHTML renders a single-band raster as an interactive go-echarts
// heatmap. No-data pixels are omitted from the series, so the chart shows
// them as gaps.
func WriteHTML(img domain.RasterImage, display DisplayOptions, path string) error {
	data, err := img.Band(display.Band)
	if err != nil {
		return err
	}

	grid := img.Grid
	cells := make([]opts.HeatMapData, 0, grid.Pixels())
	for row := 0; row < grid.Height; row++ {
		for col := 0; col < grid.Width; col++ {
			v := data[grid.Index(row, col)]
			if domain.IsNoData(v) {
				continue
			}
			// echarts rows count up from the bottom of the chart.
			cells = append(cells, opts.HeatMapData{
				Value: []interface{}{col, grid.Height - 1 - row, v},
			})
		}
	}

	xLabels := make([]string, grid.Width)
	for col := 0; col < grid.Width; col++ {
		lon, _ := grid.Center(0, col)
		xLabels[col] = strconv.FormatFloat(lon, 'f', 3, 64)
	}
	yLabels := make([]string, grid.Height)
	for row := 0; row < grid.Height; row++ {
		_, lat := grid.Center(grid.Height-1-row, 0)
		yLabels[row] = strconv.FormatFloat(lat, 'f', 3, 64)
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: display.Title,
			Width:     "900px",
			Height:    "700px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    display.Title,
			Subtitle: fmt.Sprintf("%s, %dx%d cells", img.Time.Format("2006-01"), grid.Width, grid.Height),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Name: "longitude", Data: xLabels}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Name: "latitude", Data: yLabels}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(display.Min),
			Max:        float32(display.Max),
			InRange:    &opts.VisualMapInRange{Color: viridisRamp},
		}),
	)
	hm.SetXAxis(xLabels).AddSeries(display.Band, cells)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := hm.Render(f); err != nil {
		f.Close()
		return fmt.Errorf("render heatmap %s: %w", path, err)
	}
	return f.Close()
}
