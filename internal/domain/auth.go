// Package domain contains the core business entities and interfaces.
package domain

import (
	"context"
	"time"
)

// User represents a registered account.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	HeightCM     *float64  `json:"height"`
	Age          *int      `json:"age"`
	SSOSubject   string    `json:"-"` // identity provider subject; empty for password accounts
	CreatedAt    time.Time `json:"-"`
}

// NewUser holds the fields needed to create a User.
type NewUser struct {
	Username     string
	Email        string
	PasswordHash string
	HeightCM     *float64
	Age          *int
	SSOSubject   string
}

// Profile holds the user-editable fields of a User.
type Profile struct {
	Email    string
	HeightCM *float64
	Age      *int
}

// UserRepository defines the port for user persistence operations.
// The Get methods return (nil, nil) when no user matches.
type UserRepository interface {
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	GetBySSOSubject(ctx context.Context, subject string) (*User, error)
	Create(ctx context.Context, u NewUser) (*User, error)
	UpdateProfile(ctx context.Context, id int64, p Profile) (*User, error)
}
