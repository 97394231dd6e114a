//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	kafkaadapter "github.com/jollygoodjacob/goes-fog-cover/internal/adapter/kafka"
	"github.com/jollygoodjacob/goes-fog-cover/internal/config"
	"github.com/jollygoodjacob/goes-fog-cover/internal/domain"
	"github.com/jollygoodjacob/goes-fog-cover/internal/pipeline"
)

const testSinkTopic = "test-fog-cover-results"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node Kafka in a container and returns its
// bootstrap address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("fog-cover-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// sinkRecord mirrors the published wire format.
type sinkRecord struct {
	Region        domain.BBox        `json:"region"`
	Start         time.Time          `json:"start"`
	End           time.Time          `json:"end"`
	ScenesFetched int                `json:"scenes_fetched"`
	ScenesFolded  int                `json:"scenes_folded"`
	Exclusions    map[string]int     `json:"exclusions"`
	Stats         domain.RasterStats `json:"stats"`
	Grid          domain.Grid        `json:"grid"`
	NoDataValue   float64            `json:"nodata_value"`
	FogPercentage []float64          `json:"fog_percentage"`
}

// TestPublishRunResult verifies the sink writer against real Kafka: one
// completed run round-trips through the topic with its raster, headers,
// and bookkeeping intact.
func TestPublishRunResult(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSinkTopic)

	cfg := &config.Config{
		KafkaBrokers:   []string{broker},
		KafkaSinkTopic: testSinkTopic,
	}

	grid := domain.Grid{CRS: domain.CRSEquirectangular, West: -123, North: 38.6, Cell: 0.2, Width: 3, Height: 2}
	generated := time.Date(2024, time.February, 2, 8, 0, 0, 0, time.UTC)
	result := &pipeline.Result{
		FogPercentage: domain.RasterImage{
			Grid: grid,
			Time: generated,
			Bands: map[string][]float64{
				domain.PercentageBand: {0, 25, 50, domain.NoData(), 100, 33.5},
			},
		},
		Stats:         domain.RasterStats{Defined: 5, Total: 6, Mean: 41.7, Min: 0, Max: 100},
		Region:        domain.BBox{West: -123, South: 38.2, East: -122.4, North: 38.6},
		Start:         time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:           time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC),
		ScenesFetched: 12,
		ScenesFolded:  11,
		Exclusions:    map[string]int{"missing_calibration": 1},
	}

	writer := kafkaadapter.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	require.NoError(t, writer.Publish(ctx, result))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
	defer readCancel()
	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	assert.Equal(t, "fog-cover:2024-01", string(msg.Key))

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "2024-01-01T00:00:00Z", headers["window_start"])
	assert.Equal(t, "2024-02-01T00:00:00Z", headers["window_end"])
	assert.Equal(t, "2024-02-02T08:00:00Z", headers["generated_at"])

	var record sinkRecord
	require.NoError(t, json.Unmarshal(msg.Value, &record))

	assert.Equal(t, result.Region, record.Region)
	assert.Equal(t, 12, record.ScenesFetched)
	assert.Equal(t, 11, record.ScenesFolded)
	assert.Equal(t, map[string]int{"missing_calibration": 1}, record.Exclusions)
	assert.Equal(t, grid, record.Grid)

	require.Len(t, record.FogPercentage, 6)
	assert.Equal(t, 50.0, record.FogPercentage[2])
	assert.Equal(t, record.NoDataValue, record.FogPercentage[3], "no-data pixel carries the declared sentinel")
	assert.Equal(t, 100.0, record.FogPercentage[4])
}
