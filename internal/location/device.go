// Package location resolves the coordinates a dashboard lookup runs against,
// either from a browser-reported device position or from a free-text city
// search.
package location

import (
	"context"

	"skyrisk/internal/types"
)

// MyLocationLabel is the display name given to device positions.
const MyLocationLabel = "My Location"

// Browser geolocation error codes (GeolocationPositionError.code).
const (
	GeoErrPermissionDenied    = 1
	GeoErrPositionUnavailable = 2
	GeoErrTimeout             = 3
)

// Coordinates is a raw device fix.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// PositionReport is what the browser sends after calling the Geolocation
// API: either a fix or an error code. Supported is false when the browser
// has no geolocation capability at all.
type PositionReport struct {
	Supported bool         `json:"supported"`
	Coords    *Coordinates `json:"coords,omitempty"`
	ErrorCode int          `json:"error_code,omitempty"`
}

// DeviceLocator turns a PositionReport into a Location.
type DeviceLocator struct{}

// NewDeviceLocator creates a DeviceLocator.
func NewDeviceLocator() *DeviceLocator {
	return &DeviceLocator{}
}

// Locate maps the report to a Location labelled "My Location" with
// coordinates rounded to 4 decimals, or to a geolocation AppError.
func (d *DeviceLocator) Locate(_ context.Context, report *PositionReport) (types.Location, error) {
	if report == nil || !report.Supported {
		return types.Location{}, types.NewAppError(types.ErrCodeGeoUnsupported, "geolocation is not supported", nil)
	}

	switch report.ErrorCode {
	case 0:
	case GeoErrPermissionDenied:
		return types.Location{}, types.NewAppError(types.ErrCodeGeoPermissionDenied, "location permission denied", nil)
	default:
		// Timeouts and unknown codes are reported as unavailable.
		return types.Location{}, types.NewAppErrorWithDetails(types.ErrCodeGeoPositionUnavailable,
			"location unavailable", nil, map[string]any{"error_code": report.ErrorCode})
	}

	if report.Coords == nil {
		return types.Location{}, types.NewAppError(types.ErrCodeGeoPositionUnavailable, "location unavailable", nil)
	}
	if err := types.ValidateCoordinates(report.Coords.Latitude, report.Coords.Longitude); err != nil {
		return types.Location{}, err
	}

	return types.Location{
		Latitude:    types.Round4(report.Coords.Latitude),
		Longitude:   types.Round4(report.Coords.Longitude),
		DisplayName: MyLocationLabel,
	}, nil
}
