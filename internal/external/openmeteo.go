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
	"time"

	"golang.org/x/sync/singleflight"

	"skyrisk/internal/types"
)

// DefaultForecastURL is the Open-Meteo forecast endpoint.
const DefaultForecastURL = "https://api.open-meteo.com/v1/forecast"

// dailyFields are the four daily aggregates requested from the forecast API.
const dailyFields = "temperature_2m_max,temperature_2m_min,precipitation_sum,windspeed_10m_max"

// maxResponseBytes bounds how much of an upstream body is decoded.
const maxResponseBytes = 2 << 20

// DefaultFetchTimeout bounds a shared upstream fetch, retries included.
const DefaultFetchTimeout = 30 * time.Second

// openMeteoForecastResponse mirrors the subset of the forecast payload we use.
// Values are pointers so JSON nulls (missing model data) can be told apart
// from zeros.
type openMeteoForecastResponse struct {
	Daily *struct {
		Time     []string   `json:"time"`
		TempMax  []*float64 `json:"temperature_2m_max"`
		TempMin  []*float64 `json:"temperature_2m_min"`
		PrecipMM []*float64 `json:"precipitation_sum"`
		WindMax  []*float64 `json:"windspeed_10m_max"`
	} `json:"daily"`
}

// ForecastClient fetches daily forecasts from Open-Meteo. Payloads are cached
// per rounded coordinate, so lookups for different dates at the same place
// share one upstream call.
type ForecastClient struct {
	base    *BaseClient
	baseURL string
	logger  *slog.Logger
	cache   *TTLCache[*openMeteoForecastResponse]
	group   singleflight.Group
	timeout time.Duration
}

// ForecastOption configures a ForecastClient.
type ForecastOption func(*ForecastClient)

// WithForecastCache sets the payload cache TTL. A non-positive TTL disables
// caching; concurrent identical requests are still collapsed.
func WithForecastCache(ttl time.Duration, now func() time.Time) ForecastOption {
	return func(c *ForecastClient) {
		if ttl <= 0 {
			c.cache = nil
			return
		}
		c.cache = NewTTLCache[*openMeteoForecastResponse](ttl, now)
	}
}

// WithFetchTimeout bounds each upstream fetch. The fetch is shared by every
// caller waiting on the same coordinate, so it does not inherit any single
// caller's cancellation.
func WithFetchTimeout(d time.Duration) ForecastOption {
	return func(c *ForecastClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewForecastClient creates a ForecastClient. An empty baseURL selects
// DefaultForecastURL.
func NewForecastClient(base *BaseClient, baseURL string, logger *slog.Logger, opts ...ForecastOption) *ForecastClient {
	if baseURL == "" {
		baseURL = DefaultForecastURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &ForecastClient{
		base:    base,
		baseURL: baseURL,
		logger:  logger,
		cache:   NewTTLCache[*openMeteoForecastResponse](DefaultForecastCacheTTL, nil),
		timeout: DefaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchForecast requests the multi-day forecast for a coordinate and returns
// the day whose label equals date. It returns (nil, nil) when the date is not
// in the returned window.
func (c *ForecastClient) FetchForecast(ctx context.Context, lat, lon float64, date string) (*types.ForecastRecord, error) {
	if err := types.ValidateCoordinates(lat, lon); err != nil {
		return nil, err
	}
	payload, err := c.payload(ctx, lat, lon)
	if err != nil {
		return nil, err
	}
	return extractDay(payload, date)
}

// SweepCache drops expired payloads. It is safe to call from a ticker.
func (c *ForecastClient) SweepCache() int {
	if c.cache == nil {
		return 0
	}
	return c.cache.Sweep()
}

func (c *ForecastClient) payload(ctx context.Context, lat, lon float64) (*openMeteoForecastResponse, error) {
	key := coordKey(lat, lon)
	if c.cache != nil {
		if p, ok := c.cache.Get(key); ok {
			c.logger.DebugContext(ctx, "forecast cache hit", "key", key)
			return p, nil
		}
	}

	ch := c.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		p, err := c.fetch(fetchCtx, types.Round4(lat), types.Round4(lon))
		if err != nil {
			return nil, err
		}
		if c.cache != nil {
			c.cache.Set(key, p)
		}
		return p, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*openMeteoForecastResponse), nil
	case <-ctx.Done():
		return nil, types.NewAppError(types.ErrCodeUpstreamNetwork, "forecast request abandoned", ctx.Err())
	}
}

func (c *ForecastClient) fetch(ctx context.Context, lat, lon float64) (*openMeteoForecastResponse, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("daily", dailyFields)
	q.Set("timezone", "auto")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build forecast request", err)
	}

	c.logger.DebugContext(ctx, "calling forecast API", "latitude", lat, "longitude", lon,
		"session_id", types.GetSessionID(ctx))

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeUpstreamNetwork,
			fmt.Sprintf("forecast API returned %d", resp.StatusCode),
			nil,
			map[string]any{"body": string(body)},
		)
	}

	var payload openMeteoForecastResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamMalformed, "failed to decode forecast response", err)
	}
	return &payload, nil
}

// extractDay locates date in daily.time and builds the matching record.
func extractDay(payload *openMeteoForecastResponse, date string) (*types.ForecastRecord, error) {
	if payload.Daily == nil || payload.Daily.Time == nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamMalformed, "forecast data unavailable", nil)
	}

	idx := -1
	for i, d := range payload.Daily.Time {
		if d == date {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, nil
	}

	d := payload.Daily
	tmax, err := valueAt(d.TempMax, idx, "temperature_2m_max")
	if err != nil {
		return nil, err
	}
	tmin, err := valueAt(d.TempMin, idx, "temperature_2m_min")
	if err != nil {
		return nil, err
	}
	precip, err := valueAt(d.PrecipMM, idx, "precipitation_sum")
	if err != nil {
		return nil, err
	}
	wind, err := valueAt(d.WindMax, idx, "windspeed_10m_max")
	if err != nil {
		return nil, err
	}

	return &types.ForecastRecord{
		Date:    date,
		TMax:    tmax,
		TMin:    tmin,
		Precip:  precip,
		WindMax: wind,
	}, nil
}

// valueAt rejects a null daily value rather than scoring it as zero.
func valueAt(series []*float64, idx int, field string) (float64, error) {
	if idx >= len(series) || series[idx] == nil {
		return 0, types.NewAppErrorWithDetails(
			types.ErrCodeUpstreamMalformed,
			"forecast response is missing a daily value",
			nil,
			map[string]any{"field": field, "index": idx},
		)
	}
	return *series[idx], nil
}

var _ types.ForecastGateway = (*ForecastClient)(nil)
