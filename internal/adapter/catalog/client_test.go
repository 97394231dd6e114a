package catalog

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jollygoodjacob/goes-fog-cover/internal/domain"
	"github.com/jollygoodjacob/goes-fog-cover/internal/observability"
)

const (
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func testClient(baseURL string) *Client {
	return NewClient(baseURL, "goes18-abi-cmi", 5*time.Second,
		observability.NewMetricsForTesting(),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testRegion() [][2]float64 {
	return domain.BBox{West: -123, South: 37, East: -121, North: 39}.Polygon()
}

func TestClient_Query_Success(t *testing.T) {
	acquired := time.Date(2024, time.January, 15, 12, 0, 0, 0, time.UTC)
	noData := -999.0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/collections/goes18-abi-cmi/scenes", r.URL.Path)
		assert.Equal(t, "2024-01-01T00:00:00Z", r.URL.Query().Get("start"))
		assert.Equal(t, "2024-02-01T00:00:00Z", r.URL.Query().Get("end"))
		assert.Contains(t, r.URL.Query().Get("polygon"), "-123 37")

		resp := queryResponse{
			Scenes: []sceneJSON{
				{
					Time:        acquired,
					Grid:        domain.Grid{CRS: domain.CRSEquirectangular, West: -123, North: 39, Cell: 1, Width: 2, Height: 1},
					Projection:  domain.Projection{CRS: domain.CRSEquirectangular},
					NoDataValue: &noData,
					Bands: map[string][]float64{
						"C13": {2100, -999},
					},
					Calibration: map[string]domain.CalibrationParams{
						"C13": {Scale: 0.1, Offset: 50},
					},
				},
			},
		}
		w.Header().Set(headerContentType, contentTypeJSON)
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	images, err := c.Query(context.Background(), testRegion(), start, end)
	require.NoError(t, err)
	require.Len(t, images, 1)

	img := images[0]
	assert.Equal(t, acquired, img.Time)
	assert.Equal(t, 2, img.Grid.Width)
	assert.Equal(t, domain.CalibrationParams{Scale: 0.1, Offset: 50}, img.Calibration["C13"])

	band, err := img.Band("C13")
	require.NoError(t, err)
	assert.Equal(t, 2100.0, band[0])
	assert.True(t, domain.IsNoData(band[1]), "catalog no-data value maps to the domain sentinel")
}

func TestClient_Query_EmptyWindow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		require.NoError(t, json.NewEncoder(w).Encode(queryResponse{}))
	}))
	defer srv.Close()

	images, err := testClient(srv.URL).Query(context.Background(), testRegion(),
		time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)
	assert.Empty(t, images, "zero scenes is the catalog's answer, not a client error")
}

func TestClient_Query_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "index rebuilding", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Query(context.Background(), testRegion(),
		time.Now().Add(-time.Hour), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
	assert.Contains(t, err.Error(), "index rebuilding")
}

func TestClient_Query_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"scenes": [`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Query(context.Background(), testRegion(),
		time.Now().Add(-time.Hour), time.Now())
	assert.ErrorContains(t, err, "decode catalog response")
}

func TestClient_Query_ContextCancelled(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testClient(srv.URL).Query(ctx, testRegion(), time.Now().Add(-time.Hour), time.Now())
	assert.Error(t, err)
}

func TestEncodePolygon(t *testing.T) {
	got := encodePolygon([][2]float64{{-123, 37}, {-121, 37}, {-123, 37}})
	assert.Equal(t, "-123 37,-121 37,-123 37", got)
}
