package external

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skyrisk/internal/types"
)

const forecastBody = `{
  "daily": {
    "time": ["2025-10-09", "2025-10-10", "2025-10-11"],
    "temperature_2m_max": [30.1, 36.0, 28.4],
    "temperature_2m_min": [18.0, -2.0, 17.5],
    "precipitation_sum": [0.0, 25.0, 1.2],
    "windspeed_10m_max": [9.0, 15.0, 7.7]
  }
}`

func newForecastServer(t *testing.T, body string, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newForecastClient(t *testing.T, url string, opts ...ForecastOption) *ForecastClient {
	t.Helper()
	return NewForecastClient(newTestClient(t, RetryPolicy{MaxRetries: 0}), url, nil, opts...)
}

func TestFetchForecast_QueryParameters(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		got = map[string]string{
			"path":      r.URL.Path,
			"latitude":  q.Get("latitude"),
			"longitude": q.Get("longitude"),
			"daily":     q.Get("daily"),
			"timezone":  q.Get("timezone"),
		}
		fmt.Fprint(w, forecastBody)
	}))
	defer srv.Close()

	c := newForecastClient(t, srv.URL+"/v1/forecast")
	_, err := c.FetchForecast(context.Background(), 40.41678, -3.70379, "2025-10-10")
	require.NoError(t, err)

	assert.Equal(t, "/v1/forecast", got["path"])
	assert.Equal(t, "40.4168", got["latitude"])
	assert.Equal(t, "-3.7038", got["longitude"])
	assert.Equal(t, "temperature_2m_max,temperature_2m_min,precipitation_sum,windspeed_10m_max", got["daily"])
	assert.Equal(t, "auto", got["timezone"])
}

func TestFetchForecast_MatchesExactDate(t *testing.T) {
	srv := newForecastServer(t, forecastBody, nil)
	c := newForecastClient(t, srv.URL)

	rec, err := c.FetchForecast(context.Background(), 10, 20, "2025-10-10")

	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, types.ForecastRecord{Date: "2025-10-10", TMax: 36, TMin: -2, Precip: 25, WindMax: 15}, *rec)
}

func TestFetchForecast_AbsentForDate(t *testing.T) {
	srv := newForecastServer(t, forecastBody, nil)
	c := newForecastClient(t, srv.URL)

	rec, err := c.FetchForecast(context.Background(), 10, 20, "2026-01-01")

	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestFetchForecast_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing daily", `{"latitude": 1}`},
		{"missing time", `{"daily": {"temperature_2m_max": [1]}}`},
		{"short value array", `{"daily": {"time": ["2025-10-10"], "temperature_2m_max": [], "temperature_2m_min": [1], "precipitation_sum": [1], "windspeed_10m_max": [1]}}`},
		{"null value", `{"daily": {"time": ["2025-10-10"], "temperature_2m_max": [1], "temperature_2m_min": [1], "precipitation_sum": [null], "windspeed_10m_max": [1]}}`},
		{"not json", `<html>oops</html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newForecastServer(t, tt.body, nil)
			c := newForecastClient(t, srv.URL)

			rec, err := c.FetchForecast(context.Background(), 10, 20, "2025-10-10")

			assert.Nil(t, rec)
			assert.True(t, types.HasCode(err, types.ErrCodeUpstreamMalformed), "got %v", err)
		})
	}
}

func TestFetchForecast_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error": true, "reason": "bad latitude"}`)
	}))
	defer srv.Close()

	_, err := newForecastClient(t, srv.URL).FetchForecast(context.Background(), 10, 20, "2025-10-10")

	assert.True(t, types.HasCode(err, types.ErrCodeUpstreamNetwork), "got %v", err)
}

func TestFetchForecast_InvalidCoordinates(t *testing.T) {
	var calls atomic.Int32
	srv := newForecastServer(t, forecastBody, &calls)
	c := newForecastClient(t, srv.URL)

	_, err := c.FetchForecast(context.Background(), 91, 0, "2025-10-10")

	assert.True(t, types.HasCode(err, types.ErrCodeValidationInvalidLat))
	assert.Zero(t, calls.Load())
}

func TestFetchForecast_CacheSharesPayloadAcrossDates(t *testing.T) {
	var calls atomic.Int32
	srv := newForecastServer(t, forecastBody, &calls)
	c := newForecastClient(t, srv.URL)
	ctx := context.Background()

	_, err := c.FetchForecast(ctx, 10.00001, 20, "2025-10-09")
	require.NoError(t, err)
	_, err = c.FetchForecast(ctx, 10.00002, 20, "2025-10-11")
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchForecast_CacheExpires(t *testing.T) {
	var calls atomic.Int32
	srv := newForecastServer(t, forecastBody, &calls)
	now := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	c := newForecastClient(t, srv.URL, WithForecastCache(time.Minute, clock))
	ctx := context.Background()

	_, err := c.FetchForecast(ctx, 1, 2, "2025-10-10")
	require.NoError(t, err)
	now = now.Add(2 * time.Minute)
	_, err = c.FetchForecast(ctx, 1, 2, "2025-10-10")
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 0, c.SweepCache())
}

func TestFetchForecast_CacheDisabled(t *testing.T) {
	var calls atomic.Int32
	srv := newForecastServer(t, forecastBody, &calls)
	c := newForecastClient(t, srv.URL, WithForecastCache(0, nil))

	for i := 0; i < 3; i++ {
		_, err := c.FetchForecast(context.Background(), 1, 2, "2025-10-10")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 0, c.SweepCache())
}

func TestFetchForecast_ConcurrentMissesCollapse(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		fmt.Fprint(w, forecastBody)
	}))
	defer srv.Close()

	c := newForecastClient(t, srv.URL)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.FetchForecast(context.Background(), 1, 2, "2025-10-10")
			assert.NoError(t, err)
		}()
	}
	// Let the goroutines pile up behind the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchForecast_NullValueFailsLookup(t *testing.T) {
	// A null means the model has no value for that day; scoring it as 0 mm
	// or 0 km/h would report a false "no risk".
	body := `{"daily": {"time": ["2025-10-10"], "temperature_2m_max": [null], "temperature_2m_min": [1], "precipitation_sum": [1], "windspeed_10m_max": [1]}}`
	srv := newForecastServer(t, body, nil)

	rec, err := newForecastClient(t, srv.URL).FetchForecast(context.Background(), 10, 20, "2025-10-10")

	assert.Nil(t, rec)
	require.True(t, types.HasCode(err, types.ErrCodeUpstreamMalformed), "got %v", err)
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "temperature_2m_max", appErr.Details["field"])
}

func TestFetchForecast_CancelledCallerDoesNotFailSharedFetch(t *testing.T) {
	var calls atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			close(entered)
		}
		<-release
		fmt.Fprint(w, forecastBody)
	}))
	defer srv.Close()
	defer close(release)

	c := newForecastClient(t, srv.URL, WithForecastCache(0, nil))

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.FetchForecast(firstCtx, 1, 2, "2025-10-10")
		firstErr <- err
	}()
	<-entered

	type result struct {
		rec *types.ForecastRecord
		err error
	}
	second := make(chan result, 1)
	go func() {
		rec, err := c.FetchForecast(context.Background(), 1, 2, "2025-10-10")
		second <- result{rec, err}
	}()
	// Give the second caller time to join the in-flight fetch.
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller did not return")
	}

	release <- struct{}{}
	select {
	case res := <-second:
		require.NoError(t, res.err)
		require.NotNil(t, res.rec)
		assert.Equal(t, 36.0, res.rec.TMax)
	case <-time.After(2 * time.Second):
		t.Fatal("second caller did not return")
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchForecast_SharedFetchTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := newForecastClient(t, srv.URL, WithFetchTimeout(50*time.Millisecond))

	_, err := c.FetchForecast(context.Background(), 1, 2, "2025-10-10")

	assert.True(t, types.HasCode(err, types.ErrCodeUpstreamNetwork), "got %v", err)
}
