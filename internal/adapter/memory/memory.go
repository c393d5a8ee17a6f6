// Package memory implements an in-memory repository for development and testing.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"weighttracker/internal/domain"
)

// DB implements an in-memory database storage. All methods are safe for
// concurrent use and return copies, never pointers into the store.
type DB struct {
	mu           sync.Mutex
	users        []domain.User
	measurements []domain.Measurement
	goals        []domain.Goal

	userIDCounter        int64
	measurementIDCounter int64
	goalIDCounter        int64
}

// New creates a new in-memory database.
func New() *DB {
	return &DB{}
}

// Ensure interfaces are met.
var _ domain.UserRepository = (*DB)(nil)
var _ domain.MeasurementRepository = (*DB)(nil)
var _ domain.GoalRepository = (*DB)(nil)

// Ping always succeeds.
func (db *DB) Ping(context.Context) error { return nil }

// Close is a no-op.
func (db *DB) Close() error { return nil }

// --- UserRepository ---

// GetByUsername retrieves a user by username.
func (db *DB) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, nil
}

// GetByID retrieves a user by ID.
func (db *DB) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if i := db.userIndex(id); i >= 0 {
		u := db.users[i]
		return &u, nil
	}
	return nil, nil
}

// GetBySSOSubject retrieves the user provisioned for an identity provider
// subject.
func (db *DB) GetBySSOSubject(ctx context.Context, subject string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if subject == "" {
		return nil, nil
	}
	for _, u := range db.users {
		if u.SSOSubject == subject {
			return &u, nil
		}
	}
	return nil, nil
}

// Create creates a new user.
func (db *DB) Create(ctx context.Context, nu domain.NewUser) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.Username == nu.Username {
			return nil, fmt.Errorf("%w: username", domain.ErrDuplicateKey)
		}
		if u.Email == nu.Email {
			return nil, fmt.Errorf("%w: email", domain.ErrDuplicateKey)
		}
		if nu.SSOSubject != "" && u.SSOSubject == nu.SSOSubject {
			return nil, fmt.Errorf("%w: sso subject", domain.ErrDuplicateKey)
		}
	}

	db.userIDCounter++
	u := domain.User{
		ID:           db.userIDCounter,
		Username:     nu.Username,
		Email:        nu.Email,
		PasswordHash: nu.PasswordHash,
		HeightCM:     copyPtr(nu.HeightCM),
		Age:          copyPtr(nu.Age),
		SSOSubject:   nu.SSOSubject,
		CreatedAt:    time.Now().UTC(),
	}
	db.users = append(db.users, u)
	return &u, nil
}

// UpdateProfile replaces email, height and age of user id.
func (db *DB) UpdateProfile(ctx context.Context, id int64, p domain.Profile) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	i := db.userIndex(id)
	if i < 0 {
		return nil, domain.ErrNotFound
	}
	for _, u := range db.users {
		if u.ID != id && u.Email == p.Email {
			return nil, fmt.Errorf("%w: email", domain.ErrDuplicateKey)
		}
	}
	db.users[i].Email = p.Email
	db.users[i].HeightCM = copyPtr(p.HeightCM)
	db.users[i].Age = copyPtr(p.Age)
	u := db.users[i]
	return &u, nil
}

func (db *DB) userIndex(id int64) int {
	for i, u := range db.users {
		if u.ID == id {
			return i
		}
	}
	return -1
}

// --- MeasurementRepository ---

// InsertMeasurement adds a measurement.
func (db *DB) InsertMeasurement(ctx context.Context, userID int64, date domain.Day, weight float64, notes string) (*domain.Measurement, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.userIndex(userID) < 0 {
		return nil, fmt.Errorf("%w: user %d", domain.ErrNotFound, userID)
	}
	m := db.appendMeasurement(userID, date, weight, notes)
	return &m, nil
}

// InsertMeasurementIfAbsent adds a measurement unless the user already has
// one on that date. The check and insert happen under one lock.
func (db *DB) InsertMeasurementIfAbsent(ctx context.Context, userID int64, date domain.Day, weight float64, notes string) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.userIndex(userID) < 0 {
		return false, fmt.Errorf("%w: user %d", domain.ErrNotFound, userID)
	}
	for _, m := range db.measurements {
		if m.UserID == userID && m.Date.Equal(date) {
			return false, nil
		}
	}
	db.appendMeasurement(userID, date, weight, notes)
	return true, nil
}

func (db *DB) appendMeasurement(userID int64, date domain.Day, weight float64, notes string) domain.Measurement {
	db.measurementIDCounter++
	m := domain.Measurement{
		ID:        db.measurementIDCounter,
		UserID:    userID,
		Date:      date,
		Weight:    weight,
		Notes:     notes,
		CreatedAt: time.Now().UTC(),
	}
	db.measurements = append(db.measurements, m)
	return m
}

// ListMeasurements lists a user's measurements ordered by date, then id.
func (db *DB) ListMeasurements(ctx context.Context, userID int64) ([]domain.Measurement, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	result := []domain.Measurement{}
	for _, m := range db.measurements {
		if m.UserID == userID {
			result = append(result, m)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// --- GoalRepository ---

// InsertGoal adds a goal.
func (db *DB) InsertGoal(ctx context.Context, userID int64, targetWeight float64, targetDate domain.Day, startWeight float64) (*domain.Goal, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.userIndex(userID) < 0 {
		return nil, fmt.Errorf("%w: user %d", domain.ErrNotFound, userID)
	}
	db.goalIDCounter++
	g := domain.Goal{
		ID:           db.goalIDCounter,
		UserID:       userID,
		TargetWeight: targetWeight,
		TargetDate:   targetDate,
		StartWeight:  startWeight,
		CreatedAt:    time.Now().UTC(),
	}
	db.goals = append(db.goals, g)
	return &g, nil
}

// ListGoals lists a user's goals, latest target date first.
func (db *DB) ListGoals(ctx context.Context, userID int64) ([]domain.Goal, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	result := []domain.Goal{}
	for _, g := range db.goals {
		if g.UserID == userID {
			result = append(result, g)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].TargetDate.Equal(result[j].TargetDate) {
			return result[j].TargetDate.Before(result[i].TargetDate)
		}
		return result[i].ID > result[j].ID
	})
	return result, nil
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
