package external

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skyrisk/internal/types"
)

func TestGeocodingSearch_Found(t *testing.T) {
	var query map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		query = map[string]string{"name": q.Get("name"), "count": q.Get("count"), "language": q.Get("language"), "format": q.Get("format")}
		fmt.Fprint(w, `{"results":[{"latitude":40.4168,"longitude":-3.7038,"name":"Madrid","country":"Spain","id":3117735}]}`)
	}))
	defer srv.Close()

	c := NewGeocodingClient(newTestClient(t, RetryPolicy{}), srv.URL, nil)
	res, err := c.Search(context.Background(), "São Paulo & co", 1)

	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, types.GeocodeResult{Latitude: 40.4168, Longitude: -3.7038, Name: "Madrid", Country: "Spain"}, res[0])
	assert.Equal(t, "São Paulo & co", query["name"])
	assert.Equal(t, "1", query["count"])
	assert.Equal(t, "en", query["language"])
	assert.Equal(t, "json", query["format"])
}

func TestGeocodingSearch_MissingResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"generationtime_ms":0.5}`)
	}))
	defer srv.Close()

	c := NewGeocodingClient(newTestClient(t, RetryPolicy{}), srv.URL, nil)
	res, err := c.Search(context.Background(), "Atlantis", 1)

	require.NoError(t, err)
	assert.Empty(t, res)
	assert.NotNil(t, res)
}

func TestGeocodingSearch_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   types.ErrorCode
	}{
		{"bad status", http.StatusBadRequest, `{}`, types.ErrCodeUpstreamNetwork},
		{"garbage", http.StatusOK, `not json`, types.ErrCodeUpstreamMalformed},
		{"server error", http.StatusServiceUnavailable, ``, types.ErrCodeUpstreamUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			c := NewGeocodingClient(newTestClient(t, RetryPolicy{}), srv.URL, nil)
			_, err := c.Search(context.Background(), "x", 1)

			assert.True(t, types.HasCode(err, tt.want), "got %v", err)
		})
	}
}

func TestNewClients_DefaultURLs(t *testing.T) {
	base := newTestClient(t, RetryPolicy{})
	assert.Equal(t, DefaultGeocodingURL, NewGeocodingClient(base, "", nil).baseURL)
	assert.Equal(t, DefaultForecastURL, NewForecastClient(base, "", nil).baseURL)
}
