package domain

import (
	"math"
	"sort"
)

// TrendSummary is the aggregate view of one user's measurement history.
type TrendSummary struct {
	AverageWeight     float64  `json:"average_weight"`
	BMI               *float64 `json:"bmi"`
	TrendSlope        float64  `json:"trend_slope"`
	TotalMeasurements int      `json:"total_measurements"`
	DateRange         *string  `json:"date_range"`
	CurrentStreak     int      `json:"current_streak"`
}

// Summarize computes the trend summary of a single user's measurements.
// The input need not be sorted. heightCM may be nil.
//
// The slope is regressed against the measurement index, not the calendar
// spacing between dates.
func Summarize(ms []Measurement, heightCM *float64) TrendSummary {
	var s TrendSummary
	if len(ms) == 0 {
		return s
	}

	sorted := make([]Measurement, len(ms))
	copy(sorted, ms)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	weights := make([]float64, len(sorted))
	var sum float64
	for i, m := range sorted {
		weights[i] = m.Weight
		sum += m.Weight
	}

	s.TotalMeasurements = len(sorted)
	s.AverageWeight = round(sum/float64(len(sorted)), 2)
	s.TrendSlope = round(indexSlope(weights), 4)

	first, last := sorted[0], sorted[len(sorted)-1]
	dr := first.Date.String() + " to " + last.Date.String()
	s.DateRange = &dr

	if heightCM != nil && *heightCM > 0 {
		m := *heightCM / 100
		bmi := round(last.Weight/(m*m), 2)
		s.BMI = &bmi
	}

	s.CurrentStreak = streak(sorted)
	return s
}

// indexSlope is the least-squares slope of ys against x = 0..n-1.
func indexSlope(ys []float64) float64 {
	n := len(ys)
	if n < 2 {
		return 0
	}
	xMean := float64(n-1) / 2
	var yMean float64
	for _, y := range ys {
		yMean += y
	}
	yMean /= float64(n)

	var num, den float64
	for i, y := range ys {
		dx := float64(i) - xMean
		num += dx * (y - yMean)
		den += dx * dx
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// streak counts the run of consecutive days ending at the last distinct
// date of sorted. Same-day rows count once.
func streak(sorted []Measurement) int {
	days := make([]Day, 0, len(sorted))
	for _, m := range sorted {
		if len(days) > 0 && days[len(days)-1].Equal(m.Date) {
			continue
		}
		days = append(days, m.Date)
	}
	if len(days) == 0 {
		return 0
	}
	run := 0
	for i := 1; i < len(days); i++ {
		if days[i-1].DaysUntil(days[i]) == 1 {
			run++
		} else {
			run = 0
		}
	}
	return run + 1
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
