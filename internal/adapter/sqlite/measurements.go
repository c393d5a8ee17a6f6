package sqlite

import (
	"context"
	"time"

	"weighttracker/internal/domain"
)

// InsertMeasurement stores a measurement for userID on date.
func (s *Store) InsertMeasurement(ctx context.Context, userID int64, date domain.Day, weight float64, notes string) (*domain.Measurement, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO weight_measurements (user_id, measurement_date, weight, notes, created_at) VALUES (?, ?, ?, ?, ?)",
		userID, date.String(), weight, notes, unix(now),
	)
	if err != nil {
		return nil, mapErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &domain.Measurement{
		ID:        id,
		UserID:    userID,
		Date:      date,
		Weight:    weight,
		Notes:     notes,
		CreatedAt: fromUnix(unix(now)),
	}, nil
}

// InsertMeasurementIfAbsent inserts unless the user already has a row on
// date. The single statement runs on the only pool connection, so the check
// cannot race another insert.
func (s *Store) InsertMeasurementIfAbsent(ctx context.Context, userID int64, date domain.Day, weight float64, notes string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO weight_measurements (user_id, measurement_date, weight, notes, created_at)
		 SELECT ?1, ?2, ?3, ?4, ?5
		 WHERE NOT EXISTS (SELECT 1 FROM weight_measurements WHERE user_id = ?1 AND measurement_date = ?2)`,
		userID, date.String(), weight, notes, unix(time.Now()),
	)
	if err != nil {
		return false, mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListMeasurements returns the user's measurements ascending by date, then id.
func (s *Store) ListMeasurements(ctx context.Context, userID int64) ([]domain.Measurement, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user_id, measurement_date, weight, notes, created_at FROM weight_measurements WHERE user_id = ? ORDER BY measurement_date, id",
		userID,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close() //nolint:errcheck

	out := []domain.Measurement{}
	for rows.Next() {
		var (
			m       domain.Measurement
			day     string
			created int64
		)
		if err := rows.Scan(&m.ID, &m.UserID, &day, &m.Weight, &m.Notes, &created); err != nil {
			return nil, err
		}
		if m.Date, err = parseDay(day); err != nil {
			return nil, err
		}
		m.CreatedAt = fromUnix(created)
		out = append(out, m)
	}
	return out, rows.Err()
}
