package postgres

import (
	"context"
	"time"

	"weighttracker/internal/domain"
)

// InsertMeasurement stores a measurement. Several measurements may share a date.
func (d *DB) InsertMeasurement(ctx context.Context, userID int64, date domain.Day, weight float64, notes string) (*domain.Measurement, error) {
	m := domain.Measurement{UserID: userID, Date: date, Weight: weight, Notes: notes}
	err := d.sql.QueryRowContext(ctx,
		"INSERT INTO weight_measurements (user_id, measurement_date, weight, notes) VALUES ($1, $2::date, $3, $4) RETURNING id, created_at",
		userID, date.String(), weight, notes,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &m, nil
}

// InsertMeasurementIfAbsent stores a measurement unless the user already has
// one on that date, and reports whether a row was written.
func (d *DB) InsertMeasurementIfAbsent(ctx context.Context, userID int64, date domain.Day, weight float64, notes string) (bool, error) {
	res, err := d.sql.ExecContext(ctx,
		`INSERT INTO weight_measurements (user_id, measurement_date, weight, notes)
		 SELECT $1::bigint, $2::date, $3::double precision, $4::text
		 WHERE NOT EXISTS (
		     SELECT 1 FROM weight_measurements WHERE user_id = $1::bigint AND measurement_date = $2::date
		 )`,
		userID, date.String(), weight, notes,
	)
	if err != nil {
		return false, mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, mapErr(err)
	}
	return n > 0, nil
}

// ListMeasurements returns all of a user's measurements ordered by date, then id.
func (d *DB) ListMeasurements(ctx context.Context, userID int64) ([]domain.Measurement, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT id, user_id, measurement_date, weight, notes, created_at FROM weight_measurements WHERE user_id = $1 ORDER BY measurement_date, id",
		userID,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close() //nolint:errcheck

	out := []domain.Measurement{}
	for rows.Next() {
		var (
			m   domain.Measurement
			day time.Time
		)
		if err := rows.Scan(&m.ID, &m.UserID, &day, &m.Weight, &m.Notes, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Date = domain.NewDay(day)
		out = append(out, m)
	}
	return out, mapErr(rows.Err())
}
