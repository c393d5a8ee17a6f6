package domain

import (
	"context"
	"time"
)

// Goal is a target weight to reach by a date.
type Goal struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	TargetWeight float64   `json:"target_weight"`
	TargetDate   Day       `json:"target_date"`
	StartWeight  float64   `json:"start_weight"`
	CreatedAt    time.Time `json:"-"`
}

// GoalRepository is the port for goal persistence.
type GoalRepository interface {
	InsertGoal(ctx context.Context, userID int64, targetWeight float64, targetDate Day, startWeight float64) (*Goal, error)
	// ListGoals returns the user's goals by target date, latest first.
	ListGoals(ctx context.Context, userID int64) ([]Goal, error)
}
