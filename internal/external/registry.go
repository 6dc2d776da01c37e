package external

import (
	"log/slog"
	"net/http"
	"time"

	"skyrisk/internal/config"
)

// ClientRegistry holds the upstream clients. It is the single point of access
// for the rest of the application to the Open-Meteo services.
type ClientRegistry struct {
	Forecast *ForecastClient
	Geocoder *GeocodingClient
}

// RegistryOption is a functional option for configuring a ClientRegistry.
type RegistryOption func(*registryConfig)

type registryConfig struct {
	httpClient *http.Client
	baseOpts   []BaseClientOption
}

// WithHTTPClient overrides the HTTP client shared by all upstream clients.
func WithHTTPClient(c *http.Client) RegistryOption {
	return func(rc *registryConfig) {
		rc.httpClient = c
	}
}

// WithBaseClientOptions appends options applied to every BaseClient.
func WithBaseClientOptions(opts ...BaseClientOption) RegistryOption {
	return func(rc *registryConfig) {
		rc.baseOpts = append(rc.baseOpts, opts...)
	}
}

// NewClientRegistry builds the forecast and geocoding clients from cfg. Each
// client gets its own circuit breaker so a geocoding outage does not trip
// forecasts; they share one rate limiter because Open-Meteo's fair-use limit
// is per caller.
func NewClientRegistry(cfg config.UpstreamConfig, logger *slog.Logger, opts ...RegistryOption) *ClientRegistry {
	if logger == nil {
		logger = slog.Default()
	}

	rc := &registryConfig{}
	for _, opt := range opts {
		opt(rc)
	}
	if rc.httpClient == nil {
		rc.httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	policy := DefaultRetryPolicy()
	policy.MaxRetries = cfg.MaxRetries

	baseOpts := append([]BaseClientOption{WithLimiter(NewLimiter(cfg.RPS, cfg.Burst))}, rc.baseOpts...)
	forecastBase := NewBaseClient(rc.httpClient, "openmeteo-forecast", policy, cfg.UserAgent, baseOpts...)
	geocodeBase := NewBaseClient(rc.httpClient, "openmeteo-geocoding", policy, cfg.UserAgent, baseOpts...)

	logger.Info("initializing upstream clients",
		"forecast_url", cfg.ForecastURL,
		"geocoding_url", cfg.GeocodingURL,
		"rps", cfg.RPS,
		"cache_ttl", cfg.CacheTTL,
	)

	return &ClientRegistry{
		Forecast: NewForecastClient(forecastBase, cfg.ForecastURL, logger.With("client", "openmeteo-forecast"),
			WithForecastCache(cfg.CacheTTL, nil),
			WithFetchTimeout(fetchBudget(cfg, policy))),
		Geocoder: NewGeocodingClient(geocodeBase, cfg.GeocodingURL, logger.With("client", "openmeteo-geocoding")),
	}
}

// fetchBudget covers every attempt of one fetch plus the waits between them.
func fetchBudget(cfg config.UpstreamConfig, policy RetryPolicy) time.Duration {
	attempts := time.Duration(policy.MaxRetries + 1)
	return attempts*cfg.Timeout + time.Duration(policy.MaxRetries)*policy.MaxWait
}
