// Package app holds the application services and business logic.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"weighttracker/internal/auth"
	"weighttracker/internal/domain"
)

// ErrInvalidCredentials indicates that the provided username or password was incorrect.
var ErrInvalidCredentials = fmt.Errorf("invalid username or password: %w", domain.ErrUnauthenticated)

const minPasswordLen = 8

// RegisterInput carries the fields of a registration request.
type RegisterInput struct {
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Height   *float64 `json:"height"`
	Age      *int     `json:"age"`
}

// AuthService handles registration, login and bearer token resolution.
type AuthService struct {
	users  domain.UserRepository
	hasher *auth.PasswordHasher
	tokens *auth.TokenManager
}

// NewAuthService creates a new authentication service.
func NewAuthService(users domain.UserRepository, hasher *auth.PasswordHasher, tokens *auth.TokenManager) *AuthService {
	return &AuthService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
	}
}

// Register validates in, hashes the password and stores a new user.
// A taken username or email yields domain.ErrDuplicateKey.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Username == "" {
		return nil, domain.Invalid("username", "username is required")
	}
	if err := validateEmail(in.Email); err != nil {
		return nil, err
	}
	if len(in.Password) < minPasswordLen {
		return nil, domain.Invalid("password", fmt.Sprintf("password must be at least %d characters", minPasswordLen))
	}
	if len(in.Password) > auth.MaxPasswordBytes {
		return nil, domain.Invalid("password", fmt.Sprintf("password must be at most %d bytes", auth.MaxPasswordBytes))
	}
	if err := validateBody(in.Height, in.Age); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	u, err := s.users.Create(ctx, domain.NewUser{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		HeightCM:     in.Height,
		Age:          in.Age,
	})
	if err != nil {
		return nil, fmt.Errorf("register %q: %w", in.Username, err)
	}
	slog.InfoContext(ctx, "user registered", "user_id", u.ID, "username", u.Username)
	return u, nil
}

// Login checks the credentials and issues a bearer token.
func (s *AuthService) Login(ctx context.Context, username, password string) (auth.Token, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return auth.Token{}, fmt.Errorf("login: %w", err)
	}
	if user == nil {
		s.hasher.VerifyNothing(password)
		return auth.Token{}, ErrInvalidCredentials
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return auth.Token{}, ErrInvalidCredentials
	}
	return s.tokens.Issue(user.Username)
}

// Authenticate resolves a bearer token to its user. A bad token and a
// token naming an unknown user both yield domain.ErrUnauthenticated.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	username, err := s.tokens.Verify(token)
	if err != nil {
		return nil, domain.ErrUnauthenticated
	}
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrStoreUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("resolve token subject: %w", err)
	}
	if user == nil {
		return nil, domain.ErrUnauthenticated
	}
	return user, nil
}

// UpdateProfile replaces the editable profile fields of a user.
func (s *AuthService) UpdateProfile(ctx context.Context, userID int64, p domain.Profile) (*domain.User, error) {
	p.Email = strings.TrimSpace(p.Email)
	if err := validateEmail(p.Email); err != nil {
		return nil, err
	}
	if err := validateBody(p.HeightCM, p.Age); err != nil {
		return nil, err
	}
	u, err := s.users.UpdateProfile(ctx, userID, p)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return u, nil
}

// SSOIdentity is the identity asserted by a verified ID token. Subject is
// the provider's stable identifier; Username and Email are only used to name
// the account on first login.
type SSOIdentity struct {
	Subject  string
	Username string
	Email    string
}

// LoginWithSSO issues a token for the account provisioned for id.Subject,
// creating it on first login. It never attaches to an existing account: a
// username or email already taken by another user yields
// domain.ErrDuplicateKey. SSO users have no password hash and so can never
// log in with a password.
func (s *AuthService) LoginWithSSO(ctx context.Context, id SSOIdentity) (auth.Token, error) {
	subject := strings.TrimSpace(id.Subject)
	if subject == "" {
		return auth.Token{}, domain.ErrUnauthenticated
	}
	user, err := s.users.GetBySSOSubject(ctx, subject)
	if err != nil {
		return auth.Token{}, fmt.Errorf("sso login: %w", err)
	}
	if user == nil {
		user, err = s.provisionSSOUser(ctx, subject, id)
		if err != nil {
			return auth.Token{}, err
		}
	}
	return s.tokens.Issue(user.Username)
}

func (s *AuthService) provisionSSOUser(ctx context.Context, subject string, id SSOIdentity) (*domain.User, error) {
	username := firstNonEmpty(id.Username, id.Email, subject)
	email := firstNonEmpty(id.Email, username)

	user, err := s.users.Create(ctx, domain.NewUser{Username: username, Email: email, SSOSubject: subject})
	if errors.Is(err, domain.ErrDuplicateKey) {
		// Either a concurrent first login for the same subject won, or the
		// name belongs to someone else.
		existing, lookupErr := s.users.GetBySSOSubject(ctx, subject)
		if lookupErr == nil && existing != nil {
			return existing, nil
		}
		return nil, fmt.Errorf("provision sso user %q: %w", username, err)
	}
	if err != nil {
		return nil, fmt.Errorf("provision sso user: %w", err)
	}
	slog.InfoContext(ctx, "sso user provisioned", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// IssueToken mints a token for an existing user without a password check.
// Used by the operator CLI.
func (s *AuthService) IssueToken(ctx context.Context, username string) (auth.Token, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return auth.Token{}, err
	}
	if user == nil {
		return auth.Token{}, fmt.Errorf("user %q: %w", username, domain.ErrNotFound)
	}
	return s.tokens.Issue(user.Username)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func validateEmail(email string) error {
	if email == "" || !strings.Contains(email, "@") {
		return domain.Invalid("email", "a valid email is required")
	}
	return nil
}

func validateBody(height *float64, age *int) error {
	if height != nil && *height <= 0 {
		return domain.Invalid("height", "height must be > 0")
	}
	if age != nil && *age <= 0 {
		return domain.Invalid("age", "age must be > 0")
	}
	return nil
}
