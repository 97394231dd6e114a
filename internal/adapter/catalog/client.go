// Package catalog implements pipeline.Catalog against the imagery-catalog
// HTTP service, which indexes GOES ABI scenes and serves them filtered by
// region polygon and half-open time interval.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jollygoodjacob/goes-fog-cover/internal/domain"
	"github.com/jollygoodjacob/goes-fog-cover/internal/observability"
)

// Client queries the imagery catalog over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	collection string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a catalog client for one scene collection.
func NewClient(baseURL, collection string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		metrics:    metrics,
		logger:     logger,
	}
}

// Query fetches the scenes of the collection intersecting the region
// polygon within [start, end). The catalog returns scenes in acquisition
// order, each carrying raw bands, per-band calibration metadata, and its
// native projection.
func (c *Client) Query(ctx context.Context, region [][2]float64, start, end time.Time) ([]domain.RasterImage, error) {
	params := url.Values{
		"polygon": {encodePolygon(region)},
		"start":   {start.UTC().Format(time.RFC3339)},
		"end":     {end.UTC().Format(time.RFC3339)},
	}
	fullURL := fmt.Sprintf("%s/v1/collections/%s/scenes?%s",
		c.baseURL, url.PathEscape(c.collection), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create catalog request: %w", err)
	}

	began := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog query: %w", err)
	}
	defer resp.Body.Close()
	c.metrics.CatalogRequestDuration.Observe(time.Since(began).Seconds())

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("catalog API error: status %d: %s", resp.StatusCode, body)
	}

	var payload queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode catalog response: %w", err)
	}

	images := make([]domain.RasterImage, 0, len(payload.Scenes))
	for _, s := range payload.Scenes {
		images = append(images, s.toImage())
	}

	c.logger.Debug("catalog query complete",
		"collection", c.collection,
		"scenes", len(images),
		"duration", time.Since(began).Round(time.Millisecond).String(),
	)
	return images, nil
}

// encodePolygon renders a ring as "lon lat,lon lat,...".
func encodePolygon(ring [][2]float64) string {
	parts := make([]string, len(ring))
	for i, p := range ring {
		parts[i] = fmt.Sprintf("%g %g", p[0], p[1])
	}
	return strings.Join(parts, ",")
}

// Catalog API response types. JSON has no NaN, so the catalog declares a
// per-scene no-data value that the client maps to the domain sentinel.

type queryResponse struct {
	Scenes []sceneJSON `json:"scenes"`
}

type sceneJSON struct {
	Time        time.Time                           `json:"time"`
	Grid        domain.Grid                         `json:"grid"`
	Projection  domain.Projection                   `json:"projection"`
	NoDataValue *float64                            `json:"nodata_value,omitempty"`
	Bands       map[string][]float64                `json:"bands"`
	Calibration map[string]domain.CalibrationParams `json:"calibration"`
}

func (s sceneJSON) toImage() domain.RasterImage {
	img := domain.RasterImage{
		Grid:        s.Grid,
		Time:        s.Time,
		Projection:  s.Projection,
		Bands:       make(map[string][]float64, len(s.Bands)),
		Calibration: s.Calibration,
	}
	for name, data := range s.Bands {
		band := make([]float64, len(data))
		for i, v := range data {
			if s.NoDataValue != nil && v == *s.NoDataValue {
				band[i] = domain.NoData()
				continue
			}
			band[i] = v
		}
		img.Bands[name] = band
	}
	return img
}
