package app

import (
	"context"
	"time"

	"weighttracker/internal/domain"
)

const maxChartDays = 366

// TrendService computes summaries and chart series from a user's history.
type TrendService struct {
	measurements domain.MeasurementRepository
	now          func() time.Time
}

// NewTrendService creates a TrendService backed by the given repository.
func NewTrendService(mr domain.MeasurementRepository) *TrendService {
	return &TrendService{measurements: mr, now: time.Now}
}

// Summary returns the trend summary of user's whole history.
func (s *TrendService) Summary(ctx context.Context, user *domain.User) (domain.TrendSummary, error) {
	ms, err := s.measurements.ListMeasurements(ctx, user.ID)
	if err != nil {
		return domain.TrendSummary{}, err
	}
	return domain.Summarize(ms, user.HeightCM), nil
}

// DayPoint is a single data point returned by Daily.
type DayPoint struct {
	Day    string   `json:"day"`
	Weight *float64 `json:"weight"`
}

// Daily returns one point per calendar day for the last days days ending
// today, carrying the last weight recorded on that day, converted to unit.
func (s *TrendService) Daily(ctx context.Context, userID int64, days int, unit string) ([]DayPoint, error) {
	unit, err := domain.ParseUnit(unit)
	if err != nil {
		return nil, err
	}
	if days <= 0 {
		days = 1
	}
	if days > maxChartDays {
		days = maxChartDays
	}
	ms, err := s.measurements.ListMeasurements(ctx, userID)
	if err != nil {
		return nil, err
	}
	byDay := make(map[string]float64, len(ms))
	for _, m := range domain.InUnit(ms, unit) {
		// Ascending order: later rows for the same day win.
		byDay[m.Date.String()] = m.Weight
	}

	today := domain.NewDay(s.now().In(time.Local))
	points := make([]DayPoint, 0, days)
	for i := days - 1; i >= 0; i-- {
		key := today.AddDays(-i).String()
		p := DayPoint{Day: key}
		if w, ok := byDay[key]; ok {
			p.Weight = &w
		}
		points = append(points, p)
	}
	return points, nil
}
