package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"weighttracker/internal/domain"
)

// DefaultTokenTTL is how long an issued token stays valid.
const DefaultTokenTTL = 30 * time.Minute

// MinSecretLen is the minimum signing key length in bytes.
const MinSecretLen = 32

// TokenType is reported alongside issued tokens.
const TokenType = "bearer"

// Token is a signed access token.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"-"`
}

// TokenManager issues and verifies HS256 bearer tokens. It is safe for
// concurrent use; the key never changes after construction.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager returns a manager signing with secret.
func NewTokenManager(secret string, ttl time.Duration) (*TokenManager, error) {
	if len(secret) < MinSecretLen {
		return nil, fmt.Errorf("secret key must be at least %d bytes", MinSecretLen)
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// TTL returns the lifetime of tokens from Issue.
func (m *TokenManager) TTL() time.Duration { return m.ttl }

// Issue signs a token for username that expires after the manager's TTL.
func (m *TokenManager) Issue(username string) (Token, error) {
	return m.IssueWithExpiry(username, m.now().Add(m.ttl))
}

// IssueWithExpiry signs a token for username expiring at expiresAt.
func (m *TokenManager) IssueWithExpiry(username string, expiresAt time.Time) (Token, error) {
	if strings.TrimSpace(username) == "" {
		return Token{}, errors.New("issue token: empty subject")
	}
	now := m.now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{AccessToken: signed, TokenType: TokenType, ExpiresAt: expiresAt}, nil
}

// Verify checks the signature and expiry of tokenString and returns its
// subject. Every failure is domain.ErrUnauthenticated.
func (m *TokenManager) Verify(tokenString string) (string, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !token.Valid {
		return "", domain.ErrUnauthenticated
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", domain.ErrUnauthenticated
	}
	return claims.Subject, nil
}
