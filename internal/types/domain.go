package types

import (
	"fmt"
	"math"
	"time"
)

// DateLayout is the calendar date format shared with the forecast API's
// daily.time labels and the dashboard's date input.
const DateLayout = "2006-01-02"

// Location is a resolved point with an optional human-readable label.
type Location struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	DisplayName string  `json:"display_name,omitempty"`
}

// Label returns the display name, or "lat, lon" when no name is set.
func (l Location) Label() string {
	if l.DisplayName != "" {
		return l.DisplayName
	}
	return fmt.Sprintf("%g, %g", l.Latitude, l.Longitude)
}

// ClimatologyRecord holds the expected seasonal extremes for one month.
// Month is zero-based (0 = January).
type ClimatologyRecord struct {
	Month  int     `json:"month"`
	TMax   float64 `json:"tmax_c"`
	TMin   float64 `json:"tmin_c"`
	Precip float64 `json:"precip_mm"`
	Wind   float64 `json:"wind_kmh"`
}

// ForecastRecord is the single forecast day matching a requested date.
type ForecastRecord struct {
	Date    string  `json:"date"`
	TMax    float64 `json:"tmax_c"`
	TMin    float64 `json:"tmin_c"`
	Precip  float64 `json:"precip_mm"`
	WindMax float64 `json:"wind_max_kmh"`
}

// RiskCategory names one independently scored risk.
type RiskCategory string

const (
	CategoryHot   RiskCategory = "hot"
	CategoryCold  RiskCategory = "cold"
	CategoryWet   RiskCategory = "wet"
	CategoryWindy RiskCategory = "windy"
)

// Categories lists every risk category in display order.
var Categories = []RiskCategory{CategoryHot, CategoryCold, CategoryWet, CategoryWindy}

// RiskScore pairs the climatology chance with the forecast risk for one
// category. ForecastPercent is nil when no forecast exists for the date,
// which is distinct from a zero risk.
type RiskScore struct {
	ClimatologyPercent int  `json:"climatology_percent"`
	ForecastPercent    *int `json:"forecast_percent"`
}

// ForecastAvailable reports whether the forecast score is present.
func (s RiskScore) ForecastAvailable() bool {
	return s.ForecastPercent != nil
}

// RiskResult holds the four category scores of one query.
type RiskResult struct {
	Hot   RiskScore `json:"hot"`
	Cold  RiskScore `json:"cold"`
	Wet   RiskScore `json:"wet"`
	Windy RiskScore `json:"windy"`
}

// Score returns the score for the given category.
func (r RiskResult) Score(c RiskCategory) RiskScore {
	switch c {
	case CategoryHot:
		return r.Hot
	case CategoryCold:
		return r.Cold
	case CategoryWet:
		return r.Wet
	case CategoryWindy:
		return r.Windy
	default:
		return RiskScore{}
	}
}

// ParseDate parses a YYYY-MM-DD calendar date in UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, NewAppError(ErrCodeValidationInvalidDate, "date must be formatted as YYYY-MM-DD", err)
	}
	return t, nil
}

// MonthIndex returns the zero-based month of a YYYY-MM-DD date.
func MonthIndex(date string) (int, error) {
	t, err := ParseDate(date)
	if err != nil {
		return 0, err
	}
	return int(t.Month()) - 1, nil
}

// ValidateCoordinates checks latitude and longitude ranges. NaN and
// infinities are rejected.
func ValidateCoordinates(lat, lon float64) error {
	if !(lat >= -90 && lat <= 90) {
		return NewAppErrorWithDetails(ErrCodeValidationInvalidLat, "latitude must be between -90 and 90", nil,
			coordinateDetails("latitude", lat))
	}
	if !(lon >= -180 && lon <= 180) {
		return NewAppErrorWithDetails(ErrCodeValidationInvalidLon, "longitude must be between -180 and 180", nil,
			coordinateDetails("longitude", lon))
	}
	return nil
}

// coordinateDetails echoes a rejected value. encoding/json cannot encode
// NaN or Inf, so those are reported as text.
func coordinateDetails(field string, v float64) map[string]any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return map[string]any{field: fmt.Sprint(v)}
	}
	return map[string]any{field: v}
}

// Round4 rounds to 4 decimal places (about 11 m), half away from zero.
func Round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
