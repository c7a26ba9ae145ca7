// Package sessions issues and validates the signed session tokens the
// authentication callback hands to clients. A token carries the principal
// id, email and the signup metadata needed for profile healing.
package sessions

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/stocktide/stocktide/internal/models"
)

var (
	ErrInvalidSession = errors.New("invalid session")
	ErrExpiredSession = errors.New("session expired")
)

// TokenSource signs and verifies session tokens with a shared HMAC secret.
type TokenSource struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenSource creates a token source. The secret must be at least 32
// bytes.
func NewTokenSource(secret []byte, ttl time.Duration) (*TokenSource, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("session secret must be 32 bytes")
	}

	if ttl <= 0 {
		return nil, fmt.Errorf("session TTL must be greater than 0")
	}

	return &TokenSource{secret: secret, ttl: ttl, now: time.Now}, nil
}

type sessionClaims struct {
	jwt.RegisteredClaims

	Email    string            `json:"email"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Issue signs a session token for the given principal. The signup metadata
// rides along so the resolver can heal a missing profile later without a
// second lookup against the auth provider.
func (s *TokenSource) Issue(principalID, email string, metadata map[string]string) (string, error) {
	now := s.now()

	claims := &sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principalID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Email:    email,
		Metadata: metadata,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return token, nil
}

// Parse validates a session token and converts it into a signed-in session
// event. Expired tokens return ErrExpiredSession, every other validation
// failure ErrInvalidSession.
func (s *TokenSource) Parse(token string) (*models.SessionEvent, error) {
	parsed, err := jwt.ParseWithClaims(token, &sessionClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredSession
		}
		log.Debug().Err(err).Msg("Session token parse error")
		return nil, ErrInvalidSession
	}

	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok || claims.Subject == "" {
		return nil, ErrInvalidSession
	}

	return &models.SessionEvent{
		Kind:        models.SessionSignedIn,
		PrincipalID: claims.Subject,
		Email:       claims.Email,
		Metadata:    claims.Metadata,
		OccurredAt:  s.now(),
	}, nil
}
