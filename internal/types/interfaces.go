package types

import (
	"context"
	"time"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// ClimatologySource supplies the monthly climatology record for a month index.
// The built-in demo table and the Postgres table both implement it.
type ClimatologySource interface {
	ForMonth(ctx context.Context, month int) (ClimatologyRecord, error)
	All(ctx context.Context) ([]ClimatologyRecord, error)
}

// ForecastGateway fetches the forecast day matching date for a coordinate.
// A nil record with a nil error means the date lies outside the forecast
// window; callers must not treat it as a failure.
type ForecastGateway interface {
	FetchForecast(ctx context.Context, lat, lon float64, date string) (*ForecastRecord, error)
}

// GeocodeResult is a single match returned by the geocoding service.
type GeocodeResult struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name"`
	Country   string  `json:"country"`
}

// Geocoder resolves free text to candidate places.
type Geocoder interface {
	Search(ctx context.Context, name string, count int) ([]GeocodeResult, error)
}
