package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jollygoodjacob/goes-fog-cover/internal/domain"
	"github.com/jollygoodjacob/goes-fog-cover/internal/pipeline"
)

func sampleResult() *pipeline.Result {
	grid := domain.Grid{CRS: domain.CRSEquirectangular, West: -123, North: 39, Cell: 0.5, Width: 2, Height: 1}
	generated := time.Date(2024, time.February, 2, 8, 0, 0, 0, time.UTC)
	return &pipeline.Result{
		FogPercentage: domain.RasterImage{
			Grid:  grid,
			Time:  generated,
			Bands: map[string][]float64{domain.PercentageBand: {33.5, domain.NoData()}},
		},
		Stats:         domain.RasterStats{Defined: 1, Total: 2, Mean: 33.5, Min: 33.5, Max: 33.5},
		Region:        domain.BBox{West: -123, South: 38.5, East: -122, North: 39},
		Start:         time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:           time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC),
		ScenesFetched: 10,
		ScenesFolded:  8,
		Exclusions:    map[string]int{"missing_calibration": 2},
	}
}

func TestSerializeToMessage(t *testing.T) {
	result := sampleResult()

	msg, err := serializeToMessage(result)
	require.NoError(t, err)

	assert.Equal(t, []byte("fog-cover:2024-01"), msg.Key)

	var record resultRecord
	require.NoError(t, json.Unmarshal(msg.Value, &record))
	assert.Equal(t, result.Region, record.Region)
	assert.Equal(t, 10, record.ScenesFetched)
	assert.Equal(t, 8, record.ScenesFolded)
	assert.Equal(t, map[string]int{"missing_calibration": 2}, record.Exclusions)
	assert.Equal(t, 33.5, record.FogPercentage[0])
	assert.Equal(t, record.NoDataValue, record.FogPercentage[1], "no-data pixels carry the declared sentinel")

	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "window_start", msg.Headers[0].Key)
	assert.Equal(t, []byte("2024-01-01T00:00:00Z"), msg.Headers[0].Value)
	assert.Equal(t, "window_end", msg.Headers[1].Key)
	assert.Equal(t, []byte("2024-02-01T00:00:00Z"), msg.Headers[1].Value)
	assert.Equal(t, "generated_at", msg.Headers[2].Key)
	assert.Equal(t, []byte("2024-02-02T08:00:00Z"), msg.Headers[2].Value)
}

func TestSerializeToMessage_MissingBand(t *testing.T) {
	result := sampleResult()
	result.FogPercentage.Bands = map[string][]float64{}

	_, err := serializeToMessage(result)
	assert.Error(t, err)
}
