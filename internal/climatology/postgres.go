package climatology

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"skyrisk/internal/db"
	"skyrisk/internal/types"
)

// PostgresSource reads monthly records from the climatology_monthly table:
//
//	CREATE TABLE climatology_monthly (
//	    month     SMALLINT PRIMARY KEY CHECK (month BETWEEN 0 AND 11),
//	    tmax_c    DOUBLE PRECISION NOT NULL,
//	    tmin_c    DOUBLE PRECISION NOT NULL,
//	    precip_mm DOUBLE PRECISION NOT NULL,
//	    wind_kmh  DOUBLE PRECISION NOT NULL
//	);
type PostgresSource struct {
	db db.DBTX
}

// NewPostgresSource creates a PostgresSource backed by the given pool or tx.
func NewPostgresSource(conn db.DBTX) *PostgresSource {
	return &PostgresSource{db: conn}
}

// ForMonth returns the record for a zero-based month index.
func (s *PostgresSource) ForMonth(ctx context.Context, month int) (types.ClimatologyRecord, error) {
	if err := checkMonth(month); err != nil {
		return types.ClimatologyRecord{}, err
	}

	var r types.ClimatologyRecord
	err := s.db.QueryRow(ctx, `
		SELECT month, tmax_c, tmin_c, precip_mm, wind_kmh
		FROM climatology_monthly
		WHERE month = $1`, month,
	).Scan(&r.Month, &r.TMax, &r.TMin, &r.Precip, &r.Wind)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.ClimatologyRecord{}, types.NewAppErrorWithDetails(
			types.ErrCodeInternalClimatology,
			"no climatology record for month",
			err,
			map[string]any{"month": month},
		)
	}
	if err != nil {
		return types.ClimatologyRecord{}, types.NewAppError(types.ErrCodeInternalDB, "failed to query climatology", err)
	}
	return r, nil
}

// All returns every stored record ordered by month.
func (s *PostgresSource) All(ctx context.Context) ([]types.ClimatologyRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT month, tmax_c, tmin_c, precip_mm, wind_kmh
		FROM climatology_monthly
		ORDER BY month ASC`)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query climatology", err)
	}
	defer rows.Close()

	records := make([]types.ClimatologyRecord, 0, MonthsPerYear)
	for rows.Next() {
		var r types.ClimatologyRecord
		if err := rows.Scan(&r.Month, &r.TMax, &r.TMin, &r.Precip, &r.Wind); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan climatology row", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating climatology rows", err)
	}
	return records, nil
}

// Seed upserts the demo table. It is used by local setups that point
// CLIMATOLOGY_SOURCE at an empty database.
func (s *PostgresSource) Seed(ctx context.Context) error {
	for _, r := range demoTable {
		if _, err := s.db.Exec(ctx, `
			INSERT INTO climatology_monthly (month, tmax_c, tmin_c, precip_mm, wind_kmh)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (month) DO UPDATE
			SET tmax_c = EXCLUDED.tmax_c,
			    tmin_c = EXCLUDED.tmin_c,
			    precip_mm = EXCLUDED.precip_mm,
			    wind_kmh = EXCLUDED.wind_kmh`,
			r.Month, r.TMax, r.TMin, r.Precip, r.Wind,
		); err != nil {
			return types.NewAppError(types.ErrCodeInternalDB, "failed to seed climatology", err)
		}
	}
	return nil
}

// Check pings the table; it backs the /health probe.
func (s *PostgresSource) Check(ctx context.Context) error {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM climatology_monthly`).Scan(&n); err != nil {
		return err
	}
	if n < MonthsPerYear {
		return errors.New("climatology table is incomplete")
	}
	return nil
}

var _ types.ClimatologySource = (*PostgresSource)(nil)
