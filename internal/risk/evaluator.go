// Package risk turns a month's climatology record and an optional forecast
// day into hot/cold/wet/windy percentages.
//
// Climatology chances are a 0/100 threshold base plus bounded jitter, clamped
// to 100 and floored. Forecast risks are the bare 0/100 threshold result, or
// nil when no forecast day matched the requested date.
package risk

import (
	"math"
	"math/rand/v2"

	"skyrisk/internal/types"
)

// MaxJitter is the exclusive upper bound of the noise added to a climatology
// base score.
const MaxJitter = 10

// Thresholds are the limits at or beyond which a category counts as a risk.
type Thresholds struct {
	HotC     float64 // tmax >= HotC
	ColdC    float64 // tmin <= ColdC
	WetMM    float64 // precip >= WetMM
	WindyKmh float64 // wind >= WindyKmh
}

// DefaultThresholds returns 35°C, 0°C, 20mm and 12km/h.
func DefaultThresholds() Thresholds {
	return Thresholds{
		HotC:     35,
		ColdC:    0,
		WetMM:    20,
		WindyKmh: 12,
	}
}

// JitterSource yields values in [0,1). Out-of-range values are clamped.
type JitterSource interface {
	Float64() float64
}

// randJitter draws from the math/rand/v2 global source.
type randJitter struct{}

func (randJitter) Float64() float64 { return rand.Float64() }

// FixedJitter always returns the same value. Useful for deterministic output.
type FixedJitter float64

// Float64 implements JitterSource.
func (f FixedJitter) Float64() float64 { return float64(f) }

// Evaluator scores climatology and forecast records. It is safe for
// concurrent use when its JitterSource is.
type Evaluator struct {
	thresholds Thresholds
	jitter     JitterSource
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithJitter replaces the default random jitter source.
func WithJitter(j JitterSource) Option {
	return func(e *Evaluator) {
		e.jitter = j
	}
}

// WithThresholds replaces the default thresholds.
func WithThresholds(t Thresholds) Option {
	return func(e *Evaluator) {
		e.thresholds = t
	}
}

// NewEvaluator returns an Evaluator with default thresholds and random jitter
// unless overridden.
func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{
		thresholds: DefaultThresholds(),
		jitter:     randJitter{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Thresholds returns the evaluator's thresholds.
func (e *Evaluator) Thresholds() Thresholds {
	return e.thresholds
}

// Evaluate scores every category. fc may be nil, in which case every forecast
// score is nil while climatology scores are still populated.
func (e *Evaluator) Evaluate(clim types.ClimatologyRecord, fc *types.ForecastRecord) types.RiskResult {
	t := e.thresholds
	result := types.RiskResult{
		Hot:   types.RiskScore{ClimatologyPercent: e.climatologyPercent(clim.TMax >= t.HotC)},
		Cold:  types.RiskScore{ClimatologyPercent: e.climatologyPercent(clim.TMin <= t.ColdC)},
		Wet:   types.RiskScore{ClimatologyPercent: e.climatologyPercent(clim.Precip >= t.WetMM)},
		Windy: types.RiskScore{ClimatologyPercent: e.climatologyPercent(clim.Wind >= t.WindyKmh)},
	}

	if fc != nil {
		result.Hot.ForecastPercent = forecastPercent(fc.TMax >= t.HotC)
		result.Cold.ForecastPercent = forecastPercent(fc.TMin <= t.ColdC)
		result.Wet.ForecastPercent = forecastPercent(fc.Precip >= t.WetMM)
		result.Windy.ForecastPercent = forecastPercent(fc.WindMax >= t.WindyKmh)
	}

	return result
}

func (e *Evaluator) climatologyPercent(hit bool) int {
	base := 0.0
	if hit {
		base = 100
	}
	score := math.Floor(base + e.noise())
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return int(score)
}

// noise returns a value in [0, MaxJitter).
func (e *Evaluator) noise() float64 {
	u := e.jitter.Float64()
	if math.IsNaN(u) || u < 0 {
		u = 0
	}
	if u >= 1 {
		u = math.Nextafter(1, 0)
	}
	return u * MaxJitter
}

func forecastPercent(hit bool) *int {
	v := 0
	if hit {
		v = 100
	}
	return &v
}
