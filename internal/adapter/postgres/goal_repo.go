package postgres

import (
	"context"
	"time"

	"weighttracker/internal/domain"
)

// InsertGoal stores a goal.
func (d *DB) InsertGoal(ctx context.Context, userID int64, targetWeight float64, targetDate domain.Day, startWeight float64) (*domain.Goal, error) {
	g := domain.Goal{UserID: userID, TargetWeight: targetWeight, TargetDate: targetDate, StartWeight: startWeight}
	err := d.sql.QueryRowContext(ctx,
		"INSERT INTO goals (user_id, target_weight, target_date, start_weight) VALUES ($1, $2, $3::date, $4) RETURNING id, created_at",
		userID, targetWeight, targetDate.String(), startWeight,
	).Scan(&g.ID, &g.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &g, nil
}

// ListGoals returns a user's goals, latest target date first.
func (d *DB) ListGoals(ctx context.Context, userID int64) ([]domain.Goal, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT id, user_id, target_weight, target_date, start_weight, created_at FROM goals WHERE user_id = $1 ORDER BY target_date DESC, id DESC",
		userID,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close() //nolint:errcheck

	out := []domain.Goal{}
	for rows.Next() {
		var (
			g  domain.Goal
			td time.Time
		)
		if err := rows.Scan(&g.ID, &g.UserID, &g.TargetWeight, &td, &g.StartWeight, &g.CreatedAt); err != nil {
			return nil, err
		}
		g.TargetDate = domain.NewDay(td)
		out = append(out, g)
	}
	return out, mapErr(rows.Err())
}
