package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"skyrisk/internal/types"
)

// DefaultGeocodingURL is the Open-Meteo geocoding search endpoint.
const DefaultGeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"

type openMeteoGeocodeResponse struct {
	Results []types.GeocodeResult `json:"results"`
}

// GeocodingClient resolves place names through Open-Meteo.
type GeocodingClient struct {
	base    *BaseClient
	baseURL string
	logger  *slog.Logger
}

// NewGeocodingClient creates a GeocodingClient. An empty baseURL selects
// DefaultGeocodingURL.
func NewGeocodingClient(base *BaseClient, baseURL string, logger *slog.Logger) *GeocodingClient {
	if baseURL == "" {
		baseURL = DefaultGeocodingURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GeocodingClient{base: base, baseURL: baseURL, logger: logger}
}

// Search returns up to count matches for name. A response without a results
// field yields an empty slice.
func (c *GeocodingClient) Search(ctx context.Context, name string, count int) ([]types.GeocodeResult, error) {
	if count < 1 {
		count = 1
	}
	q := url.Values{}
	q.Set("name", name)
	q.Set("count", strconv.Itoa(count))
	q.Set("language", "en")
	q.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build geocoding request", err)
	}

	c.logger.DebugContext(ctx, "calling geocoding API", "name", name)

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamNetwork,
			fmt.Sprintf("geocoding API returned %d", resp.StatusCode),
			nil,
		)
	}

	var payload openMeteoGeocodeResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamMalformed, "failed to decode geocoding response", err)
	}
	if payload.Results == nil {
		return []types.GeocodeResult{}, nil
	}
	return payload.Results, nil
}

var _ types.Geocoder = (*GeocodingClient)(nil)
