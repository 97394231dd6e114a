// Command fogmap computes a monthly fog-occurrence-frequency raster from
// GOES ABI infrared scenes. It queries the imagery catalog for the
// configured window, runs each scene through calibration, reprojection,
// and spectral classification, folds the fog masks into per-pixel counts,
// and exports the resulting percentage raster.
//
// The process stays up after the run completes, serving /metrics,
// /readyz, and /v1/result until it receives SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/jollygoodjacob/goes-fog-cover/internal/adapter/catalog"
	httpadapter "github.com/jollygoodjacob/goes-fog-cover/internal/adapter/http"
	kafkaadapter "github.com/jollygoodjacob/goes-fog-cover/internal/adapter/kafka"
	"github.com/jollygoodjacob/goes-fog-cover/internal/adapter/render"
	"github.com/jollygoodjacob/goes-fog-cover/internal/adapter/reproject"
	"github.com/jollygoodjacob/goes-fog-cover/internal/config"
	"github.com/jollygoodjacob/goes-fog-cover/internal/domain"
	"github.com/jollygoodjacob/goes-fog-cover/internal/observability"
	"github.com/jollygoodjacob/goes-fog-cover/internal/pipeline"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	catalogClient := catalog.NewClient(cfg.CatalogURL, cfg.CatalogCollection, cfg.CatalogTimeout, metrics, logger)
	engine := reproject.NewEngine(reproject.Nearest)

	start, end := cfg.Window()
	driver := pipeline.NewDriver(catalogClient, engine, pipeline.Options{
		Region:            cfg.Region,
		Start:             start,
		End:               end,
		ResolutionDeg:     cfg.ResolutionDeg,
		Bands:             cfg.Bands,
		Thresholds:        cfg.Thresholds,
		Workers:           cfg.Workers,
		KeepIntermediates: cfg.KeepIntermediates,
	}, logger, metrics)

	var publisher *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		publisher = kafkaadapter.NewWriter(cfg, logger)
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaSinkTopic)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, driver, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		result, err := driver.Run(ctx)
		if err != nil {
			logger.Error("run failed", "error", err)
			return
		}
		export(ctx, cfg, logger, publisher, result)
		srv.SetResult(summarize(result))
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// export writes the configured outputs. Export failures are logged, not
// fatal: the computed result still serves over /v1/result.
func export(ctx context.Context, cfg *config.Config, logger *slog.Logger, publisher *kafkaadapter.Writer, result *pipeline.Result) {
	display := render.DefaultDisplay()

	if cfg.OutputPNG != "" {
		if err := render.WritePNG(result.FogPercentage, display, cfg.OutputPNG); err != nil {
			logger.Error("png export failed", "path", cfg.OutputPNG, "error", err)
		} else {
			logger.Info("png written", "path", cfg.OutputPNG)
		}
	}

	if cfg.OutputHTML != "" {
		if err := render.WriteHTML(result.FogPercentage, display, cfg.OutputHTML); err != nil {
			logger.Error("html export failed", "path", cfg.OutputHTML, "error", err)
		} else {
			logger.Info("html written", "path", cfg.OutputHTML)
		}
	}

	if publisher != nil {
		if err := publisher.Publish(ctx, result); err != nil {
			logger.Error("kafka publish failed", "error", err)
		}
	}
}

// runSummary is the compact run digest served by /v1/result.
type runSummary struct {
	Region        domain.BBox        `json:"region"`
	Start         time.Time          `json:"start"`
	End           time.Time          `json:"end"`
	ScenesFetched int                `json:"scenes_fetched"`
	ScenesFolded  int                `json:"scenes_folded"`
	Exclusions    map[string]int     `json:"exclusions,omitempty"`
	Stats         domain.RasterStats `json:"stats"`
}

func summarize(result *pipeline.Result) runSummary {
	return runSummary{
		Region:        result.Region,
		Start:         result.Start,
		End:           result.End,
		ScenesFetched: result.ScenesFetched,
		ScenesFolded:  result.ScenesFolded,
		Exclusions:    result.Exclusions,
		Stats:         result.Stats,
	}
}
