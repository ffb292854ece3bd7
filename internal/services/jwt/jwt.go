// Package jwt signs and verifies the short-lived state tokens carried through
// the OAuth redirect flow.
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrTokenNotFound    = errors.New("token not found")
	ErrProviderMismatch = errors.New("state issued for a different provider")
)

const (
	Issuer   = "advisory-service"
	Audience = "oauth-state"
)

// StateClaims is the payload of an OAuth state token.
type StateClaims struct {
	Provider string `json:"provider"`
	Redirect string `json:"redirect,omitempty"`
	jwt.RegisteredClaims
}

// StateSigner issues and parses HS256 state tokens.
type StateSigner struct {
	SecretKey []byte
	TTL       time.Duration
	now       func() time.Time
}

// NewStateSigner creates a signer with the given secret and lifetime.
func NewStateSigner(secret string, ttl time.Duration) *StateSigner {
	return &StateSigner{
		SecretKey: []byte(secret),
		TTL:       ttl,
		now:       time.Now,
	}
}

// Sign returns a state token bound to provider. redirect is an optional
// frontend path echoed back on the callback.
func (s *StateSigner) Sign(provider, redirect string) (string, error) {
	if len(s.SecretKey) == 0 {
		return "", fmt.Errorf("creating state token: %w", errors.New("empty secret"))
	}

	now := s.now()
	claims := &StateClaims{
		Provider: provider,
		Redirect: redirect,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Audience:  jwt.ClaimStrings{Audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(s.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(), // nonce
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.SecretKey)
	if err != nil {
		return "", fmt.Errorf("creating state token: %w", err)
	}
	return signed, nil
}

// Verify parses a state token and checks that it was issued for provider.
func (s *StateSigner) Verify(tokenString, provider string) (*StateClaims, error) {
	if tokenString == "" {
		return nil, ErrTokenNotFound
	}

	claims := &StateClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(Audience),
		jwt.WithTimeFunc(s.now),
	)

	_, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.SecretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if claims.Provider != provider {
		return nil, ErrProviderMismatch
	}
	return claims, nil
}
