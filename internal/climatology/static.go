// Package climatology provides the monthly climatology records consulted by
// the risk evaluator. The demo table ships with the binary; PostgresSource
// reads the same shape from a database so a real climate dataset can replace
// the demo values without touching the evaluator.
package climatology

import (
	"context"
	"fmt"

	"skyrisk/internal/types"
)

// MonthsPerYear is the number of records a complete source must provide.
const MonthsPerYear = 12

// demoTable is a simplified sample of seasonal extremes, indexed by month.
var demoTable = [MonthsPerYear]types.ClimatologyRecord{
	{Month: 0, TMax: 28, TMin: 15, Precip: 5, Wind: 8},
	{Month: 1, TMax: 30, TMin: 16, Precip: 3, Wind: 10},
	{Month: 2, TMax: 33, TMin: 18, Precip: 2, Wind: 9},
	{Month: 3, TMax: 36, TMin: 20, Precip: 0, Wind: 12},
	{Month: 4, TMax: 38, TMin: 22, Precip: 1, Wind: 11},
	{Month: 5, TMax: 40, TMin: 25, Precip: 0, Wind: 13},
	{Month: 6, TMax: 39, TMin: 24, Precip: 2, Wind: 10},
	{Month: 7, TMax: 37, TMin: 23, Precip: 5, Wind: 12},
	{Month: 8, TMax: 35, TMin: 21, Precip: 8, Wind: 9},
	{Month: 9, TMax: 32, TMin: 19, Precip: 10, Wind: 8},
	{Month: 10, TMax: 30, TMin: 17, Precip: 12, Wind: 7},
	{Month: 11, TMax: 28, TMin: 15, Precip: 15, Wind: 6},
}

// StaticSource serves the built-in demo table. It is immutable and safe for
// concurrent use.
type StaticSource struct {
	records [MonthsPerYear]types.ClimatologyRecord
}

// NewStaticSource returns a source backed by the demo table.
func NewStaticSource() *StaticSource {
	return &StaticSource{records: demoTable}
}

// NewStaticSourceFrom builds a source from caller-supplied records. Every
// month 0-11 must appear exactly once.
func NewStaticSourceFrom(records []types.ClimatologyRecord) (*StaticSource, error) {
	if len(records) != MonthsPerYear {
		return nil, fmt.Errorf("climatology: need %d records, got %d", MonthsPerYear, len(records))
	}
	var s StaticSource
	var seen [MonthsPerYear]bool
	for _, r := range records {
		if err := checkMonth(r.Month); err != nil {
			return nil, err
		}
		if seen[r.Month] {
			return nil, fmt.Errorf("climatology: duplicate record for month %d", r.Month)
		}
		seen[r.Month] = true
		s.records[r.Month] = r
	}
	return &s, nil
}

// ForMonth returns the record for a zero-based month index.
func (s *StaticSource) ForMonth(_ context.Context, month int) (types.ClimatologyRecord, error) {
	if err := checkMonth(month); err != nil {
		return types.ClimatologyRecord{}, err
	}
	return s.records[month], nil
}

// All returns the twelve records in month order.
func (s *StaticSource) All(_ context.Context) ([]types.ClimatologyRecord, error) {
	out := make([]types.ClimatologyRecord, MonthsPerYear)
	copy(out, s.records[:])
	return out, nil
}

func checkMonth(month int) error {
	if month < 0 || month >= MonthsPerYear {
		return types.NewAppErrorWithDetails(
			types.ErrCodeInternalClimatology,
			"month index out of range",
			nil,
			map[string]any{"month": month},
		)
	}
	return nil
}

var _ types.ClimatologySource = (*StaticSource)(nil)
