// Command mockcatalog serves synthetic GOES ABI scenes over the imagery
// catalog API, for local runs and integration testing without a real
// catalog. Scenes are generated deterministically from the seed, with a
// diurnal fog cycle over the requested region: coastal fog forms in the
// night and morning hours and burns off by afternoon.
//
// Usage:
//
//	go run ./cmd/mockcatalog -addr :8081 -collection goes18-abi-cmi -interval 1h
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jollygoodjacob/goes-fog-cover/internal/domain"
	"github.com/jollygoodjacob/goes-fog-cover/internal/observability"
)

// Synthetic calibration: raw counts relate to kelvin by bt = raw*scale + offset.
const (
	calScale  = 0.01
	calOffset = 150.0
)

func main() {
	addr := flag.String("addr", ":8081", "listen address")
	collection := flag.String("collection", "goes18-abi-cmi", "collection name to serve")
	interval := flag.Duration("interval", time.Hour, "time between generated scenes")
	cellDeg := flag.Float64("cell-deg", 0.02, "scene cell size in degrees")
	seed := flag.Int64("seed", 1, "generator seed, fixed for reproducible scenes")
	dropCalibration := flag.Float64("drop-calibration", 0, "fraction of scenes missing calibration metadata")
	flag.Parse()

	logger := observability.NewLogger("info", "text")

	gen := &generator{
		interval:        *interval,
		cellDeg:         *cellDeg,
		seed:            *seed,
		dropCalibration: *dropCalibration,
	}

	mux := http.NewServeMux()
	path := fmt.Sprintf("GET /v1/collections/%s/scenes", *collection)
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		gen.handleScenes(w, r, logger)
	})

	logger.Info("mock catalog listening", "addr", *addr, "collection", *collection, "interval", interval.String())
	if err := http.ListenAndServe(*addr, mux); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// Wire types matching the catalog API contract.

type queryResponse struct {
	Scenes []sceneJSON `json:"scenes"`
}

type sceneJSON struct {
	Time        time.Time                           `json:"time"`
	Grid        domain.Grid                         `json:"grid"`
	Projection  domain.Projection                   `json:"projection"`
	NoDataValue *float64                            `json:"nodata_value,omitempty"`
	Bands       map[string][]float64                `json:"bands"`
	Calibration map[string]domain.CalibrationParams `json:"calibration,omitempty"`
}

type generator struct {
	interval        time.Duration
	cellDeg         float64
	seed            int64
	dropCalibration float64
}

func (g *generator) handleScenes(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	q := r.URL.Query()

	start, err := time.Parse(time.RFC3339, q.Get("start"))
	if err != nil {
		http.Error(w, "invalid start", http.StatusBadRequest)
		return
	}
	end, err := time.Parse(time.RFC3339, q.Get("end"))
	if err != nil {
		http.Error(w, "invalid end", http.StatusBadRequest)
		return
	}
	box, err := polygonBounds(q.Get("polygon"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Scene swath: the requested region padded by a cell on each side.
	grid, err := domain.GridForBBox(domain.BBox{
		West:  box.West - g.cellDeg,
		South: box.South - g.cellDeg,
		East:  box.East + g.cellDeg,
		North: box.North + g.cellDeg,
	}, g.cellDeg)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var resp queryResponse
	for t := start.UTC(); t.Before(end); t = t.Add(g.interval) {
		resp.Scenes = append(resp.Scenes, g.scene(t, grid))
	}

	logger.Info("query served",
		"start", start.Format(time.RFC3339),
		"end", end.Format(time.RFC3339),
		"scenes", len(resp.Scenes),
		"grid", fmt.Sprintf("%dx%d", grid.Width, grid.Height),
	)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp) //nolint:errcheck // best-effort mock response
}

// scene synthesizes one acquisition. The same seed and timestamp always
// produce the same scene, so repeated runs aggregate identically.
func (g *generator) scene(t time.Time, grid domain.Grid) sceneJSON {
	rng := rand.New(rand.NewSource(g.seed ^ t.Unix()))

	n := grid.Pixels()
	ctt := make([]float64, n)
	num := make([]float64, n)
	den := make([]float64, n)

	// Fog favors the night and early morning; 14 UTC is roughly 6 am on
	// the US west coast.
	hour := t.Hour()
	night := hour >= 6 && hour <= 16

	for row := 0; row < grid.Height; row++ {
		for col := 0; col < grid.Width; col++ {
			i := grid.Index(row, col)
			lon, lat := grid.Center(row, col)

			switch {
			case rng.Float64() < 0.02:
				// Sensor dropout.
				ctt[i] = -9999
				num[i] = -9999
				den[i] = -9999
			case rng.Float64() < 0.1:
				// Cold cirrus deck.
				ctt[i] = toRaw(225 + 10*rng.Float64())
				num[i] = toRaw(226 + 10*rng.Float64())
				den[i] = toRaw(224 + 10*rng.Float64())
			case night && fogField(lat, lon, float64(hour)) > 0.5:
				// Marine stratus: warm top, strong positive 11-3.9 split.
				base := 278 + 4*rng.Float64()
				ctt[i] = toRaw(base)
				den[i] = toRaw(base - 12)
				num[i] = toRaw(base - 12 + 2.5 + rng.Float64())
			default:
				// Clear land or sea surface.
				base := 283 + 8*rng.Float64()
				ctt[i] = toRaw(base)
				den[i] = toRaw(base - 1)
				num[i] = toRaw(base - 1 + 0.5*rng.Float64())
			}
		}
	}

	noData := -9999.0
	s := sceneJSON{
		Time:        t,
		Grid:        grid,
		Projection:  domain.Projection{CRS: domain.CRSEquirectangular},
		NoDataValue: &noData,
		Bands: map[string][]float64{
			domain.DefaultBandSet().CTT:    ctt,
			domain.DefaultBandSet().BTDNum: num,
			domain.DefaultBandSet().BTDDen: den,
		},
	}

	if rng.Float64() >= g.dropCalibration {
		cal := domain.CalibrationParams{Scale: calScale, Offset: calOffset}
		s.Calibration = map[string]domain.CalibrationParams{
			domain.DefaultBandSet().CTT:    cal,
			domain.DefaultBandSet().BTDNum: cal,
			domain.DefaultBandSet().BTDDen: cal,
		}
	}
	return s
}

// fogField is a smooth spatial pattern in [0, 1]: fog hugs a synthetic
// coastline and thins with the hour of the morning.
func fogField(lat, lon, hour float64) float64 {
	spatial := 0.5 + 0.5*math.Sin(lat*9)*math.Cos(lon*7)
	burnoff := 1 - math.Abs(hour-11)/8
	if burnoff < 0 {
		burnoff = 0
	}
	return spatial * burnoff
}

func toRaw(kelvin float64) float64 {
	return math.Round((kelvin - calOffset) / calScale)
}

// polygonBounds computes the bounding box of a "lon lat,lon lat,..." ring.
func polygonBounds(s string) (domain.BBox, error) {
	if s == "" {
		return domain.BBox{}, fmt.Errorf("missing polygon parameter")
	}
	box := domain.BBox{West: math.Inf(1), South: math.Inf(1), East: math.Inf(-1), North: math.Inf(-1)}
	for _, pair := range strings.Split(s, ",") {
		fields := strings.Fields(pair)
		if len(fields) != 2 {
			return domain.BBox{}, fmt.Errorf("malformed polygon point %q", pair)
		}
		lon, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return domain.BBox{}, fmt.Errorf("malformed longitude %q", fields[0])
		}
		lat, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return domain.BBox{}, fmt.Errorf("malformed latitude %q", fields[1])
		}
		box.West = math.Min(box.West, lon)
		box.East = math.Max(box.East, lon)
		box.South = math.Min(box.South, lat)
		box.North = math.Max(box.North, lat)
	}
	if !box.Valid() {
		return domain.BBox{}, fmt.Errorf("degenerate polygon %q", s)
	}
	return box, nil
}
