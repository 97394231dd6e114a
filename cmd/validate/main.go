// Command validate checks the integrity of a published fog-cover run
// result, as written to the Kafka sink topic or captured from /v1/result
// exports. It verifies the raster geometry, the value domain of the
// percentage band, the embedded statistics, and the scene bookkeeping.
//
// Usage:
//
//	go run ./cmd/validate -result fog_cover_2024-01.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/jollygoodjacob/goes-fog-cover/internal/domain"
)

// resultRecord mirrors the sink wire format.
type resultRecord struct {
	Region        domain.BBox        `json:"region"`
	Start         time.Time          `json:"start"`
	End           time.Time          `json:"end"`
	GeneratedAt   time.Time          `json:"generated_at"`
	ScenesFetched int                `json:"scenes_fetched"`
	ScenesFolded  int                `json:"scenes_folded"`
	Exclusions    map[string]int     `json:"exclusions"`
	Stats         domain.RasterStats `json:"stats"`
	Grid          domain.Grid        `json:"grid"`
	NoDataValue   float64            `json:"nodata_value"`
	FogPercentage []float64          `json:"fog_percentage"`
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	resultPath := flag.String("result", "", "path to a run result JSON record")
	flag.Parse()

	if *resultPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*resultPath); code != 0 {
		os.Exit(code)
	}
}

func run(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read result: %v\n", err)
		return 1
	}

	var rec resultRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: decode result: %v\n", err)
		return 1
	}

	fmt.Println("=== Fog Cover Result Validation ===")
	fmt.Println()

	phases := []*phase{
		validateGeometry(&rec),
		validateValueDomain(&rec),
		validateStats(&rec),
		validateBookkeeping(&rec),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Window: %s to %s, %d/%d scenes folded, %dx%d grid\n",
		rec.Start.Format("2006-01-02"), rec.End.Format("2006-01-02"),
		rec.ScenesFolded, rec.ScenesFetched, rec.Grid.Width, rec.Grid.Height)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phase 1: Geometry ──
// The declared grid must be well-formed and match the band length.

func validateGeometry(rec *resultRecord) *phase {
	p := &phase{name: "Phase 1: Raster Geometry"}

	if rec.Grid.CRS != domain.CRSEquirectangular {
		p.errorf("grid CRS is %q, want %q", rec.Grid.CRS, domain.CRSEquirectangular)
	}
	if rec.Grid.Width <= 0 || rec.Grid.Height <= 0 {
		p.errorf("degenerate grid %dx%d", rec.Grid.Width, rec.Grid.Height)
	}
	if rec.Grid.Cell <= 0 {
		p.errorf("non-positive cell size %g", rec.Grid.Cell)
	}
	if got, want := len(rec.FogPercentage), rec.Grid.Pixels(); got != want {
		p.errorf("band has %d values, grid has %d pixels", got, want)
	}
	if !rec.Region.Valid() {
		p.errorf("region %+v is not a valid box", rec.Region)
	}
	return p
}

// ── Phase 2: Value Domain ──
// Every pixel is either the declared no-data value or a percentage.

func validateValueDomain(rec *resultRecord) *phase {
	p := &phase{name: "Phase 2: Value Domain"}

	for i, v := range rec.FogPercentage {
		if v == rec.NoDataValue {
			continue
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			p.errorf("pixel %d: non-finite value %g leaked onto the wire", i, v)
			continue
		}
		if v < 0 || v > 100 {
			p.errorf("pixel %d: %g outside [0, 100]", i, v)
		}
	}
	return p
}

// ── Phase 3: Statistics ──
// Recompute the summary from the band and compare with the embedded one.

func validateStats(rec *resultRecord) *phase {
	p := &phase{name: "Phase 3: Statistics Consistency"}

	band := make([]float64, len(rec.FogPercentage))
	for i, v := range rec.FogPercentage {
		if v == rec.NoDataValue {
			band[i] = domain.NoData()
			continue
		}
		band[i] = v
	}

	img := domain.RasterImage{
		Grid:  rec.Grid,
		Time:  rec.GeneratedAt,
		Bands: map[string][]float64{domain.PercentageBand: band},
	}
	recomputed, err := domain.Stats(img, domain.PercentageBand)
	if err != nil {
		p.errorf("recompute stats: %v", err)
		return p
	}

	if recomputed.Defined != rec.Stats.Defined {
		p.errorf("defined pixels: recomputed %d, record says %d", recomputed.Defined, rec.Stats.Defined)
	}
	if recomputed.Total != rec.Stats.Total {
		p.errorf("total pixels: recomputed %d, record says %d", recomputed.Total, rec.Stats.Total)
	}
	if !floatEq(recomputed.Mean, rec.Stats.Mean) {
		p.errorf("mean: recomputed %g, record says %g", recomputed.Mean, rec.Stats.Mean)
	}
	if !floatEq(recomputed.StdDev, rec.Stats.StdDev) {
		p.errorf("stddev: recomputed %g, record says %g", recomputed.StdDev, rec.Stats.StdDev)
	}
	if !floatEq(recomputed.Min, rec.Stats.Min) {
		p.errorf("min: recomputed %g, record says %g", recomputed.Min, rec.Stats.Min)
	}
	if !floatEq(recomputed.Max, rec.Stats.Max) {
		p.errorf("max: recomputed %g, record says %g", recomputed.Max, rec.Stats.Max)
	}
	return p
}

// ── Phase 4: Bookkeeping ──
// Scene counts must reconcile: fetched = folded + excluded.

func validateBookkeeping(rec *resultRecord) *phase {
	p := &phase{name: "Phase 4: Scene Bookkeeping"}

	if rec.ScenesFolded <= 0 {
		p.errorf("scenes_folded is %d; a published result needs at least one folded scene", rec.ScenesFolded)
	}
	if rec.ScenesFolded > rec.ScenesFetched {
		p.errorf("scenes_folded %d exceeds scenes_fetched %d", rec.ScenesFolded, rec.ScenesFetched)
	}

	excluded := 0
	for reason, n := range rec.Exclusions {
		if n <= 0 {
			p.errorf("exclusion reason %q has non-positive count %d", reason, n)
		}
		excluded += n
	}
	if rec.ScenesFolded+excluded != rec.ScenesFetched {
		p.errorf("counts do not reconcile: %d folded + %d excluded != %d fetched",
			rec.ScenesFolded, excluded, rec.ScenesFetched)
	}

	if !rec.End.After(rec.Start) {
		p.errorf("window end %s is not after start %s", rec.End.Format(time.RFC3339), rec.Start.Format(time.RFC3339))
	}
	if rec.GeneratedAt.Before(rec.Start) {
		p.errorf("generated_at %s precedes the window start", rec.GeneratedAt.Format(time.RFC3339))
	}
	return p
}

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
