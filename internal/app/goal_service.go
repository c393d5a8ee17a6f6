package app

import (
	"context"

	"weighttracker/internal/domain"
)

// GoalInput carries the fields of a new goal. StartWeight defaults to the
// latest measurement when nil.
type GoalInput struct {
	TargetWeight float64    `json:"target_weight"`
	TargetDate   domain.Day `json:"target_date"`
	StartWeight  *float64   `json:"start_weight"`
}

// GoalService encapsulates goal use cases.
type GoalService struct {
	goals        domain.GoalRepository
	measurements domain.MeasurementRepository
}

// NewGoalService creates a GoalService.
func NewGoalService(gr domain.GoalRepository, mr domain.MeasurementRepository) *GoalService {
	return &GoalService{goals: gr, measurements: mr}
}

// Create validates and stores a goal.
func (s *GoalService) Create(ctx context.Context, userID int64, in GoalInput) (*domain.Goal, error) {
	if err := validateWeight("target_weight", in.TargetWeight); err != nil {
		return nil, err
	}
	if in.TargetDate.IsZero() {
		return nil, domain.Invalid("target_date", "target_date is required")
	}

	var start float64
	if in.StartWeight != nil {
		if err := validateWeight("start_weight", *in.StartWeight); err != nil {
			return nil, err
		}
		start = *in.StartWeight
	} else {
		ms, err := s.measurements.ListMeasurements(ctx, userID)
		if err != nil {
			return nil, err
		}
		if len(ms) == 0 {
			return nil, domain.Invalid("start_weight", "start_weight is required when no measurements exist")
		}
		start = ms[len(ms)-1].Weight
	}
	return s.goals.InsertGoal(ctx, userID, in.TargetWeight, in.TargetDate, start)
}

// List returns the user's goals, latest target date first.
func (s *GoalService) List(ctx context.Context, userID int64) ([]domain.Goal, error) {
	return s.goals.ListGoals(ctx, userID)
}
