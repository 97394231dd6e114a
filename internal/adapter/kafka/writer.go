// Package kafka publishes completed fog-cover runs to a sink topic for
// downstream consumers.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/jollygoodjacob/goes-fog-cover/internal/config"
	"github.com/jollygoodjacob/goes-fog-cover/internal/domain"
	"github.com/jollygoodjacob/goes-fog-cover/internal/pipeline"
)

// sinkNoData stands in for NaN on the wire; JSON has no NaN literal.
const sinkNoData = -9999.0

// Writer produces run results to a Kafka topic.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish serializes one run result and writes it to the sink topic.
func (w *Writer) Publish(ctx context.Context, result *pipeline.Result) error {
	msg, err := serializeToMessage(result)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish run result: %w", err)
	}
	w.logger.Info("run result published",
		"key", string(msg.Key),
		"bytes", len(msg.Value),
	)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// resultRecord is the wire form of a run result. No-data pixels carry
// NoDataValue in the percentage band.
type resultRecord struct {
	Region        domain.BBox        `json:"region"`
	Start         time.Time          `json:"start"`
	End           time.Time          `json:"end"`
	GeneratedAt   time.Time          `json:"generated_at"`
	ScenesFetched int                `json:"scenes_fetched"`
	ScenesFolded  int                `json:"scenes_folded"`
	Exclusions    map[string]int     `json:"exclusions,omitempty"`
	Stats         domain.RasterStats `json:"stats"`
	Grid          domain.Grid        `json:"grid"`
	NoDataValue   float64            `json:"nodata_value"`
	FogPercentage []float64          `json:"fog_percentage"`
}

// serializeToMessage marshals a run result into a Kafka message keyed by
// the aggregation window.
func serializeToMessage(result *pipeline.Result) (kafkago.Message, error) {
	band, err := result.FogPercentage.Band(domain.PercentageBand)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize run result: %w", err)
	}

	percentage := make([]float64, len(band))
	for i, v := range band {
		if domain.IsNoData(v) {
			percentage[i] = sinkNoData
			continue
		}
		percentage[i] = v
	}

	record := resultRecord{
		Region:        result.Region,
		Start:         result.Start,
		End:           result.End,
		GeneratedAt:   result.FogPercentage.Time,
		ScenesFetched: result.ScenesFetched,
		ScenesFolded:  result.ScenesFolded,
		Exclusions:    result.Exclusions,
		Stats:         result.Stats,
		Grid:          result.FogPercentage.Grid,
		NoDataValue:   sinkNoData,
		FogPercentage: percentage,
	}

	data, err := json.Marshal(record)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize run result: %w", err)
	}

	key := fmt.Sprintf("fog-cover:%s", result.Start.UTC().Format("2006-01"))
	return kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "window_start", Value: []byte(result.Start.UTC().Format(time.RFC3339))},
			{Key: "window_end", Value: []byte(result.End.UTC().Format(time.RFC3339))},
			{Key: "generated_at", Value: []byte(result.FogPercentage.Time.Format(time.RFC3339))},
		},
	}, nil
}
