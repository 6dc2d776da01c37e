package location

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"skyrisk/internal/types"
)

// CitySearcher resolves a city name to the geocoder's single best match.
type CitySearcher struct {
	geocoder types.Geocoder
	logger   *slog.Logger
}

// NewCitySearcher creates a CitySearcher.
func NewCitySearcher(geocoder types.Geocoder, logger *slog.Logger) *CitySearcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &CitySearcher{geocoder: geocoder, logger: logger}
}

// Search returns the first match for name, labelled "name, country".
// Blank names fail validation without calling the geocoder.
func (s *CitySearcher) Search(ctx context.Context, name string) (types.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return types.Location{}, types.NewAppErrorWithDetails(types.ErrCodeValidationMissingField,
			"city name is required", nil, map[string]any{"field": "city"})
	}

	results, err := s.geocoder.Search(ctx, name, 1)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) {
			return types.Location{}, err
		}
		return types.Location{}, types.NewAppError(types.ErrCodeUpstreamNetwork, "geocoding request failed", err)
	}
	if len(results) == 0 {
		s.logger.InfoContext(ctx, "city not found", "query", name, "session_id", types.GetSessionID(ctx))
		return types.Location{}, types.NewAppErrorWithDetails(types.ErrCodeNotFoundLocation,
			"city not found", nil, map[string]any{"query": name})
	}

	best := results[0]
	return types.Location{
		Latitude:    best.Latitude,
		Longitude:   best.Longitude,
		DisplayName: DisplayName(best),
	}, nil
}

// DisplayName formats a geocoding result as "name, country", dropping the
// country when the geocoder did not return one.
func DisplayName(r types.GeocodeResult) string {
	if r.Country == "" {
		return r.Name
	}
	return r.Name + ", " + r.Country
}
