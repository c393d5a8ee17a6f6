package sqlite

import (
	"context"
	"time"

	"weighttracker/internal/domain"
)

// InsertGoal stores a goal for userID.
func (s *Store) InsertGoal(ctx context.Context, userID int64, targetWeight float64, targetDate domain.Day, startWeight float64) (*domain.Goal, error) {
	now := fromUnix(unix(time.Now()))
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO goals (user_id, target_weight, target_date, start_weight, created_at) VALUES (?, ?, ?, ?, ?)",
		userID, targetWeight, targetDate.String(), startWeight, unix(now),
	)
	if err != nil {
		return nil, mapErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &domain.Goal{
		ID:           id,
		UserID:       userID,
		TargetWeight: targetWeight,
		TargetDate:   targetDate,
		StartWeight:  startWeight,
		CreatedAt:    now,
	}, nil
}

// ListGoals returns the user's goals by target date, latest first.
func (s *Store) ListGoals(ctx context.Context, userID int64) ([]domain.Goal, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user_id, target_weight, target_date, start_weight, created_at FROM goals WHERE user_id = ? ORDER BY target_date DESC, id DESC",
		userID,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close() //nolint:errcheck

	out := []domain.Goal{}
	for rows.Next() {
		var (
			g       domain.Goal
			td      string
			created int64
		)
		if err := rows.Scan(&g.ID, &g.UserID, &g.TargetWeight, &td, &g.StartWeight, &created); err != nil {
			return nil, err
		}
		if g.TargetDate, err = parseDay(td); err != nil {
			return nil, err
		}
		g.CreatedAt = fromUnix(created)
		out = append(out, g)
	}
	return out, rows.Err()
}
