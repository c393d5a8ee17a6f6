package postgres

import (
	"context"
	"database/sql"
	"errors"

	"weighttracker/internal/domain"
)

const userColumns = "id, username, email, password_hash, height, age, sso_subject, created_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u      domain.User
		height  sql.NullFloat64
		age     sql.NullInt64
		subject sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &height, &age, &subject, &u.CreatedAt); err != nil {
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
	return &u, nil
}

// GetByUsername retrieves a user by username. It returns nil, nil when no
// user matches.
func (d *DB) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	u, err := scanUser(d.sql.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = $1", username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, mapErr(err)
}

// GetByID retrieves a user by ID.
func (d *DB) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	u, err := scanUser(d.sql.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, mapErr(err)
}

// GetBySSOSubject retrieves the user provisioned for an identity provider
// subject.
func (d *DB) GetBySSOSubject(ctx context.Context, subject string) (*domain.User, error) {
	if subject == "" {
		return nil, nil
	}
	u, err := scanUser(d.sql.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE sso_subject = $1", subject))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, mapErr(err)
}

// Create inserts a new user. A taken username or email yields
// domain.ErrDuplicateKey.
func (d *DB) Create(ctx context.Context, nu domain.NewUser) (*domain.User, error) {
	u, err := scanUser(d.sql.QueryRowContext(ctx,
		"INSERT INTO users (username, email, password_hash, height, age, sso_subject) VALUES ($1, $2, $3, $4, $5, $6) RETURNING "+userColumns,
		nu.Username, nu.Email, nu.PasswordHash, nullFloat(nu.HeightCM), nullInt(nu.Age), nullString(nu.SSOSubject),
	))
	if err != nil {
		return nil, mapErr(err)
	}
	return u, nil
}

// UpdateProfile replaces email, height and age of user id.
func (d *DB) UpdateProfile(ctx context.Context, id int64, p domain.Profile) (*domain.User, error) {
	u, err := scanUser(d.sql.QueryRowContext(ctx,
		"UPDATE users SET email = $2, height = $3, age = $4 WHERE id = $1 RETURNING "+userColumns,
		id, p.Email, nullFloat(p.HeightCM), nullInt(p.Age),
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

// nullString stores "" as NULL so the unique index ignores password accounts.
func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
