// Package auth owns the identity lifecycle: social upserts, bearer sessions
// and profile completion.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nourabuild/advisory-service/internal/sdk/models"
	"github.com/nourabuild/advisory-service/internal/sdk/sqldb"
)

var (
	ErrInvalidSession  = errors.New("invalid session")
	ErrEmptyEmail      = errors.New("social profile has no email")
	ErrUnknownProvider = errors.New("unknown provider")
	ErrUserNotFound    = errors.New("user not found")
	ErrMobileTaken     = errors.New("mobile already registered")
)

const (
	// SessionTTL is the fixed lifetime of a session. Validation never extends it.
	SessionTTL = 30 * 24 * time.Hour

	tokenBytes = 32
)

// SocialProfile is the provider-agnostic shape every OAuth adapter produces.
type SocialProfile struct {
	ExternalID  string
	DisplayName string
	Email       string
	PictureURL  string
	Provider    models.Provider
}

type CompleteProfileInput struct {
	Mobile string
}

// LoginResult is what a successful login hands back to the client.
type LoginResult struct {
	User                   models.User
	Token                  string
	NeedsProfileCompletion bool
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

type Service struct {
	db  sqldb.Service
	now func() time.Time
}

func NewService(db sqldb.Service, opts ...Option) *Service {
	s := &Service{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOrUpdateUserFromSocial upserts the user keyed by email.
func (s *Service) CreateOrUpdateUserFromSocial(ctx context.Context, p SocialProfile) (models.User, error) {
	return upsertSocial(ctx, s.db, p)
}

func upsertSocial(ctx context.Context, st sqldb.Store, p SocialProfile) (models.User, error) {
	email := strings.ToLower(strings.TrimSpace(p.Email))
	if email == "" {
		return models.User{}, ErrEmptyEmail
	}
	if !p.Provider.Valid() {
		return models.User{}, ErrUnknownProvider
	}

	var picture *string
	if p.PictureURL != "" {
		picture = &p.PictureURL
	}

	existing, err := st.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		user, err := st.UpdateUserSocial(ctx, existing.ID, models.SocialUpdate{
			FullName:       p.DisplayName,
			ProfilePicture: picture,
			Provider:       p.Provider,
			ProviderID:     p.ExternalID,
		})
		if err != nil {
			return models.User{}, fmt.Errorf("update social user: %w", err)
		}
		return user, nil

	case sqldb.IsNotFound(err):
		provider := p.Provider
		externalID := p.ExternalID
		user, err := st.CreateUser(ctx, models.NewUser{
			FullName:          p.DisplayName,
			Email:             email,
			ProfilePicture:    picture,
			Provider:          &provider,
			ProviderID:        &externalID,
			IsVerified:        true,
			IsProfileComplete: false,
		})
		if err != nil {
			return models.User{}, fmt.Errorf("create social user: %w", err)
		}
		return user, nil

	default:
		return models.User{}, fmt.Errorf("lookup user by email: %w", err)
	}
}

// CreateSession issues a new bearer token for userID.
func (s *Service) CreateSession(ctx context.Context, userID string) (string, error) {
	return s.createSession(ctx, s.db, userID)
}

func (s *Service) createSession(ctx context.Context, st sqldb.Store, userID string) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}

	_, err = st.CreateSession(ctx, models.NewSession{
		UserID:    userID,
		Token:     token,
		ExpiresAt: s.now().Add(SessionTTL).UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return token, nil
}

// ValidateSession returns the user owning token while the session is unexpired.
func (s *Service) ValidateSession(ctx context.Context, token string) (models.User, error) {
	if token == "" {
		return models.User{}, ErrInvalidSession
	}

	user, err := s.db.GetUserBySessionToken(ctx, token, s.now())
	if err != nil {
		if sqldb.IsNotFound(err) {
			return models.User{}, ErrInvalidSession
		}
		return models.User{}, fmt.Errorf("validate session: %w", err)
	}
	return user, nil
}

// DeleteSession removes token. Unknown tokens are not an error.
func (s *Service) DeleteSession(ctx context.Context, token string) error {
	if err := s.db.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// CompleteProfile records the user's mobile and marks the profile complete.
func (s *Service) CompleteProfile(ctx context.Context, userID string, in CompleteProfileInput) (models.User, error) {
	user, err := s.db.CompleteUserProfile(ctx, userID, strings.TrimSpace(in.Mobile))
	if err != nil {
		switch {
		case sqldb.IsNotFound(err):
			return models.User{}, ErrUserNotFound
		case sqldb.IsDuplicateEntry(err):
			return models.User{}, ErrMobileTaken
		}
		return models.User{}, fmt.Errorf("complete profile: %w", err)
	}
	return user, nil
}

// NeedsProfileCompletion reports whether the user still has to supply a mobile.
func NeedsProfileCompletion(user models.User) bool {
	return !user.IsProfileComplete || user.Mobile == nil || *user.Mobile == ""
}

// LoginWithSocial upserts the user and opens a session in one transaction.
func (s *Service) LoginWithSocial(ctx context.Context, p SocialProfile) (LoginResult, error) {
	var res LoginResult
	err := s.db.InTx(ctx, func(tx sqldb.Store) error {
		user, err := upsertSocial(ctx, tx, p)
		if err != nil {
			return err
		}
		token, err := s.createSession(ctx, tx, user.ID)
		if err != nil {
			return err
		}
		res = LoginResult{User: user, Token: token, NeedsProfileCompletion: NeedsProfileCompletion(user)}
		return nil
	})
	if err != nil {
		return LoginResult{}, err
	}
	return res, nil
}

// LoginVerifiedMobile marks the user verified after a successful OTP check
// and opens a session, atomically.
func (s *Service) LoginVerifiedMobile(ctx context.Context, userID string) (LoginResult, error) {
	var res LoginResult
	err := s.db.InTx(ctx, func(tx sqldb.Store) error {
		user, err := tx.MarkUserVerified(ctx, userID)
		if err != nil {
			if sqldb.IsNotFound(err) {
				return ErrUserNotFound
			}
			return fmt.Errorf("mark verified: %w", err)
		}
		token, err := s.createSession(ctx, tx, user.ID)
		if err != nil {
			return err
		}
		res = LoginResult{User: user, Token: token, NeedsProfileCompletion: NeedsProfileCompletion(user)}
		return nil
	})
	if err != nil {
		return LoginResult{}, err
	}
	return res, nil
}

// SweepExpiredSessions deletes every session whose expiry has passed.
func (s *Service) SweepExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.db.DeleteExpiredSessions(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	return n, nil
}

func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
