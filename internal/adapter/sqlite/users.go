package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"weighttracker/internal/domain"
)

const userColumns = "id, username, email, password_hash, height, age, sso_subject, created_at"

func scanUser(row *sql.Row) (*domain.User, error) {
	var (
		u       domain.User
		height  sql.NullFloat64
		age     sql.NullInt64
		subject sql.NullString
		created int64
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &height, &age, &subject, &created); err != nil {
		return nil, err
	}
	u.SSOSubject = subject.String
	if height.Valid {
		u.HeightCM = &height.Float64
	}
	if age.Valid {
		a := int(age.Int64)
		u.Age = &a
	}
	u.CreatedAt = fromUnix(created)
	return &u, nil
}

// GetByUsername retrieves a user by username. It returns nil, nil when no
// user matches.
func (s *Store) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE username = ?", username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, mapErr(err)
}

// GetByID retrieves a user by ID.
func (s *Store) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, mapErr(err)
}

// GetBySSOSubject retrieves the user provisioned for an identity provider
// subject.
func (s *Store) GetBySSOSubject(ctx context.Context, subject string) (*domain.User, error) {
	if subject == "" {
		return nil, nil
	}
	u, err := scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE sso_subject = ?", subject))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, mapErr(err)
}

// Create inserts a new user. A taken username, email or subject yields
// domain.ErrDuplicateKey.
func (s *Store) Create(ctx context.Context, nu domain.NewUser) (*domain.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		"INSERT INTO users (username, email, password_hash, height, age, sso_subject, created_at) VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING "+userColumns,
		nu.Username, nu.Email, nu.PasswordHash, nullFloat(nu.HeightCM), nullInt(nu.Age), nullString(nu.SSOSubject), unix(time.Now()),
	))
	if err != nil {
		return nil, mapErr(err)
	}
	return u, nil
}

// UpdateProfile replaces email, height and age of user id.
func (s *Store) UpdateProfile(ctx context.Context, id int64, p domain.Profile) (*domain.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		"UPDATE users SET email = ?, height = ?, age = ? WHERE id = ? RETURNING "+userColumns,
		p.Email, nullFloat(p.HeightCM), nullInt(p.Age), id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, mapErr(err)
	}
	return u, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
