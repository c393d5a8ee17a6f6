package domain

import (
	"context"
	"time"
)

// Measurement is a single body-weight entry for a calendar day.
type Measurement struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Date      Day       `json:"measurement_date"`
	Weight    float64   `json:"weight"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"-"`
}

// MeasurementRepository is the port for measurement persistence.
type MeasurementRepository interface {
	InsertMeasurement(ctx context.Context, userID int64, date Day, weight float64, notes string) (*Measurement, error)
	// InsertMeasurementIfAbsent inserts unless a row for (userID, date)
	// already exists, reporting whether a row was written.
	InsertMeasurementIfAbsent(ctx context.Context, userID int64, date Day, weight float64, notes string) (bool, error)
	// ListMeasurements returns the user's rows ascending by date, then id.
	ListMeasurements(ctx context.Context, userID int64) ([]Measurement, error)
}
