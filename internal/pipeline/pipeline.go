package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jollygoodjacob/goes-fog-cover/internal/domain"
	"github.com/jollygoodjacob/goes-fog-cover/internal/observability"
)

// Catalog retrieves the time-ordered scenes intersecting a region polygon
// over a half-open interval [start, end).
type Catalog interface {
	Query(ctx context.Context, region [][2]float64, start, end time.Time) ([]domain.RasterImage, error)
}

// Options carries the run parameters the driver owns.
type Options struct {
	Region        domain.BBox
	Start         time.Time // inclusive
	End           time.Time // exclusive
	ResolutionDeg float64
	Bands         domain.BandSet
	Thresholds    domain.Thresholds
	Workers       int

	// KeepIntermediates retains each scene's BTD raster and fog mask on
	// the result for inspection. Off by default: a month of scenes is a
	// lot of rasters.
	KeepIntermediates bool
}

// SceneArtifacts are the per-scene intermediates retained when
// Options.KeepIntermediates is set.
type SceneArtifacts struct {
	Time time.Time
	BTD  domain.RasterImage
	Mask domain.Mask
}

// Result is the terminal output of one run.
type Result struct {
	// FogPercentage is the fog-occurrence-frequency raster: per pixel,
	// 100*fogCount/totalCount, no-data where nothing was observed.
	FogPercentage domain.RasterImage

	// FogCount and TotalCount expose the raw accumulation grids.
	FogCount   domain.RasterImage
	TotalCount domain.RasterImage

	// Stats summarizes the defined pixels of FogPercentage.
	Stats domain.RasterStats

	Region        domain.BBox
	Start, End    time.Time
	ScenesFetched int
	ScenesFolded  int

	// Exclusions tallies excluded scenes by reason.
	Exclusions map[string]int

	Intermediates []SceneArtifacts
}

// Driver sequences calibrate, normalize, classify per scene and folds the
// masks into the temporal aggregate. Scenes are independent, so they fan
// out to a worker pool; each worker owns a private accumulator and the
// partials merge at the end, which is bit-identical to a serial fold.
type Driver struct {
	catalog Catalog
	engine  Reprojector
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool
}

// NewDriver creates a Driver. The catalog and reprojection engine are the
// run's external collaborators.
func NewDriver(catalog Catalog, engine Reprojector, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Driver {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Driver{
		catalog: catalog,
		engine:  engine,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
	}
}

// CheckReadiness returns nil once the run has folded at least one scene.
func (d *Driver) CheckReadiness(_ context.Context) error {
	if !d.ready.Load() {
		return errors.New("run has not folded any scenes yet")
	}
	return nil
}

// Run executes one batch computation: query the catalog for the window,
// process every scene, and derive the percentage raster.
//
// Per-scene failures exclude that scene and the run continues; the
// exclusions are logged, counted in metrics, and reported on the Result.
// A catalog window with zero scenes fails with domain.ErrEmptyWindow
// before any aggregation; a run where every scene was excluded fails with
// domain.ErrNoValidImages.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	started := time.Now()
	d.metrics.PipelineRunning.Set(1)
	defer d.metrics.PipelineRunning.Set(0)
	defer func() {
		d.metrics.RunDuration.Observe(time.Since(started).Seconds())
	}()

	target, err := domain.GridForBBox(d.opts.Region, d.opts.ResolutionDeg)
	if err != nil {
		return nil, fmt.Errorf("build target grid: %w", err)
	}

	d.logger.Info("run started",
		"start", d.opts.Start.Format(time.RFC3339),
		"end", d.opts.End.Format(time.RFC3339),
		"grid_width", target.Width,
		"grid_height", target.Height,
		"workers", d.opts.Workers,
	)

	scenes, err := d.catalog.Query(ctx, d.opts.Region.Polygon(), d.opts.Start, d.opts.End)
	if err != nil {
		return nil, fmt.Errorf("query imagery catalog: %w", err)
	}
	if len(scenes) == 0 {
		return nil, fmt.Errorf("window %s to %s: %w",
			d.opts.Start.Format("2006-01-02"), d.opts.End.Format("2006-01-02"), domain.ErrEmptyWindow)
	}
	d.metrics.ScenesFetched.Add(float64(len(scenes)))

	merged, exclusions, artifacts, err := d.processAll(ctx, scenes, target)
	if err != nil {
		return nil, err
	}

	d.reportExclusions(exclusions, len(scenes))

	if merged.Folded() == 0 {
		return nil, fmt.Errorf("all %d scenes excluded: %w", len(scenes), domain.ErrNoValidImages)
	}

	percentage := merged.Percentage()
	stats, err := domain.Stats(percentage, domain.PercentageBand)
	if err != nil {
		return nil, fmt.Errorf("summarize output raster: %w", err)
	}

	fogCount, totalCount := merged.Counts()

	d.logger.Info("run complete",
		"scenes_fetched", len(scenes),
		"scenes_folded", merged.Folded(),
		"mean_fog_percent", stats.Mean,
		"defined_pixels", stats.Defined,
		"duration", time.Since(started).Round(time.Millisecond).String(),
	)

	return &Result{
		FogPercentage: percentage,
		FogCount: domain.RasterImage{
			Grid:  target,
			Time:  percentage.Time,
			Bands: map[string][]float64{"fog_count": fogCount},
		},
		TotalCount: domain.RasterImage{
			Grid:  target,
			Time:  percentage.Time,
			Bands: map[string][]float64{"total_count": totalCount},
		},
		Stats:         stats,
		Region:        d.opts.Region,
		Start:         d.opts.Start,
		End:           d.opts.End,
		ScenesFetched: len(scenes),
		ScenesFolded:  merged.Folded(),
		Exclusions:    exclusions,
		Intermediates: artifacts,
	}, nil
}

// workerState is the private state of one pipeline worker. Partial
// accumulators keep the fold lock-free; each scene is consumed from the
// feed channel exactly once, so no mask is folded twice or dropped.
type workerState struct {
	acc        *domain.Accumulator
	exclusions map[string]int
	artifacts  []SceneArtifacts
	err        error
}

func (d *Driver) processAll(ctx context.Context, scenes []domain.RasterImage, target domain.Grid) (*domain.Accumulator, map[string]int, []SceneArtifacts, error) {
	normalizer := NewNormalizer(d.engine, target, d.opts.Bands.Calibrated())

	feed := make(chan domain.RasterImage)
	states := make([]*workerState, d.opts.Workers)

	var wg sync.WaitGroup
	for w := 0; w < d.opts.Workers; w++ {
		state := &workerState{
			acc:        domain.NewAccumulator(target),
			exclusions: make(map[string]int),
		}
		states[w] = state

		wg.Add(1)
		go func() {
			defer wg.Done()
			// After a run-fatal error the worker keeps draining the feed
			// without processing, so the feeder can never block on a
			// channel nobody reads.
			for scene := range feed {
				if state.err != nil {
					continue
				}
				if err := d.processScene(ctx, scene, normalizer, state); err != nil {
					state.err = err
				}
			}
		}()
	}

	var cancelled error
	for _, scene := range scenes {
		if cancelled = ctx.Err(); cancelled != nil {
			break
		}
		select {
		case feed <- scene:
		case <-ctx.Done():
			cancelled = ctx.Err()
		}
	}
	close(feed)
	wg.Wait()

	if cancelled != nil {
		return nil, nil, nil, cancelled
	}

	merged := domain.NewAccumulator(target)
	exclusions := make(map[string]int)
	var artifacts []SceneArtifacts
	for _, state := range states {
		if state.err != nil {
			return nil, nil, nil, state.err
		}
		if err := merged.Merge(state.acc); err != nil {
			return nil, nil, nil, fmt.Errorf("merge partial accumulator: %w", err)
		}
		for reason, n := range state.exclusions {
			exclusions[reason] += n
		}
		artifacts = append(artifacts, state.artifacts...)
	}
	sort.Slice(artifacts, func(i, j int) bool { return artifacts[i].Time.Before(artifacts[j].Time) })

	return merged, exclusions, artifacts, nil
}

// processScene runs one scene through calibrate, normalize, classify, and
// fold. Exclusion conditions are tallied and swallowed; anything else is
// a run-fatal error.
func (d *Driver) processScene(ctx context.Context, scene domain.RasterImage, normalizer *Normalizer, state *workerState) error {
	start := time.Now()

	calibrated, err := domain.Calibrate(scene, d.opts.Bands)
	if err != nil {
		return d.exclude(scene, err, state)
	}

	normalized, err := normalizer.Normalize(ctx, calibrated)
	if err != nil {
		return d.exclude(scene, err, state)
	}

	mask, err := domain.Classify(normalized, d.opts.Bands.Calibrated(), d.opts.Thresholds)
	if err != nil {
		return d.exclude(scene, err, state)
	}

	if err := state.acc.Fold(mask); err != nil {
		return fmt.Errorf("fold scene %s: %w", scene.Time.Format(time.RFC3339), err)
	}

	if d.opts.KeepIntermediates {
		btd, err := domain.BTD(normalized, d.opts.Bands.Calibrated())
		if err != nil {
			return fmt.Errorf("derive btd for scene %s: %w", scene.Time.Format(time.RFC3339), err)
		}
		state.artifacts = append(state.artifacts, SceneArtifacts{Time: scene.Time, BTD: btd, Mask: mask})
	}

	d.metrics.ScenesProcessed.Inc()
	d.metrics.SceneDuration.Observe(time.Since(start).Seconds())
	d.ready.Store(true)
	return nil
}

// exclude classifies a per-scene failure, tallies it, and keeps the run
// going. Errors outside the exclusion taxonomy abort the run.
func (d *Driver) exclude(scene domain.RasterImage, err error, state *workerState) error {
	reason := exclusionReason(err)
	if reason == "" {
		return fmt.Errorf("process scene %s: %w", scene.Time.Format(time.RFC3339), err)
	}

	state.exclusions[reason]++
	d.metrics.ScenesExcluded.WithLabelValues(reason).Inc()

	// Empty intersections are expected for wide catalog queries; tallied
	// but not worth a warning per scene.
	if reason == observability.ReasonEmptyIntersection {
		d.logger.Debug("scene outside region", "scene", scene.Time.Format(time.RFC3339))
		return nil
	}

	d.logger.Warn("scene excluded",
		"scene", scene.Time.Format(time.RFC3339),
		"reason", reason,
		"error", err,
	)
	return nil
}

func exclusionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrMissingCalibration):
		return observability.ReasonMissingCalibration
	case errors.Is(err, domain.ErrGeometryMismatch):
		return observability.ReasonGeometryMismatch
	case errors.Is(err, domain.ErrEmptyIntersection):
		return observability.ReasonEmptyIntersection
	default:
		return ""
	}
}

// reportExclusions emits the run-level "N of M scenes excluded" warnings.
func (d *Driver) reportExclusions(exclusions map[string]int, total int) {
	for reason, n := range exclusions {
		d.logger.Warn(fmt.Sprintf("%d of %d scenes excluded: %s", n, total, reason),
			"reason", reason,
			"excluded", n,
			"fetched", total,
		)
	}
}
