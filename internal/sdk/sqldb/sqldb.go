// Package sqldb provides database operations for the advisory service.
//
// Two implementations satisfy Service: a Postgres one for production and an
// in-memory one for tests and local development. The process picks one at
// startup.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/nourabuild/advisory-service/internal/sdk/models"
)

// lib/pq errorCodeNames
// https://github.com/lib/pq/blob/master/error.go#L178
const (
	uniqueViolation     = "23505"
	undefinedTable      = "42P01"
	foreignKeyViolation = "23503"
	checkViolation      = "23514"
	notNullViolation    = "23502"
)

var (
	ErrDBNotFound          = sql.ErrNoRows
	ErrDBDuplicatedEntry   = errors.New("duplicated entry")
	ErrUndefinedTable      = errors.New("undefined table")
	ErrForeignKeyViolation = errors.New("foreign key violation")
	ErrCheckViolation      = errors.New("check constraint violation")
	ErrNotNullViolation    = errors.New("not null violation")
	ErrTransactionFailed   = errors.New("transaction failed")
	ErrStaleRow            = errors.New("row changed since it was read")
)

// Store is the set of repository operations. Both the top level Service and
// the transaction-scoped value passed to InTx implement it.
type Store interface {
	// User operations
	GetUserByID(ctx context.Context, userID string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUserByMobile(ctx context.Context, mobile string) (models.User, error)
	CreateUser(ctx context.Context, user models.NewUser) (models.User, error)
	UpdateUserSocial(ctx context.Context, userID string, update models.SocialUpdate) (models.User, error)
	MarkUserVerified(ctx context.Context, userID string) (models.User, error)
	CompleteUserProfile(ctx context.Context, userID, mobile string) (models.User, error)

	// Session operations
	CreateSession(ctx context.Context, session models.NewSession) (models.Session, error)
	GetUserBySessionToken(ctx context.Context, token string, now time.Time) (models.User, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	// Loan application operations
	CreateLoanApplication(ctx context.Context, app models.NewLoanApplication) (models.LoanApplication, error)
	GetLoanApplication(ctx context.Context, id string) (models.LoanApplication, error)
	ListLoanApplicationsByUser(ctx context.Context, userID string) ([]models.LoanApplication, error)
	// UpdateLoanApplicationStatus moves the row from one status to another and
	// returns ErrStaleRow when the stored status is no longer from.
	UpdateLoanApplicationStatus(ctx context.Context, id string, from, to models.ApplicationStatus, notes *string) (models.LoanApplication, error)
	UpdateLoanApplicationDocuments(ctx context.Context, id, documents string) (models.LoanApplication, error)

	// Consultation operations
	CreateConsultation(ctx context.Context, c models.NewConsultation) (models.Consultation, error)

	// Blog operations
	CreateBlogPost(ctx context.Context, post models.NewBlogPost) (models.BlogPost, error)
	ListPublishedBlogPosts(ctx context.Context, limit int) ([]models.BlogPost, error)
	GetBlogPostBySlug(ctx context.Context, slug string) (models.BlogPost, error)
	CountBlogPosts(ctx context.Context) (int, error)
}

// Service represents a service that interacts with a database.
type Service interface {
	Store

	// Health returns a map of health status information.
	// The keys and values in the map are service-specific.
	Health(ctx context.Context) map[string]string

	// InTx runs fn against a Store whose writes commit together. A non-nil
	// error from fn rolls every write back.
	InTx(ctx context.Context, fn func(Store) error) error

	// Close terminates the database connection.
	// It returns an error if the connection cannot be closed.
	Close() error
}

// ---------------------------------------------
// Helpers
// ---------------------------------------------

// isPgError checks if the error is a PostgreSQL error with the given code
func isPgError(err error, code string) bool {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == code
	}
	return false
}

// NullString creates a sql.NullString from a string pointer.
func NullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// NullBool creates a sql.NullBool from a bool pointer.
func NullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

// StringPtr returns a pointer to a string from sql.NullString.
func StringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

// BoolPtr returns a pointer to a bool from sql.NullBool.
func BoolPtr(nb sql.NullBool) *bool {
	if !nb.Valid {
		return nil
	}
	return &nb.Bool
}

// IsNotFound checks if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrDBNotFound)
}

// IsDuplicateEntry checks if the error is a duplicate entry error.
func IsDuplicateEntry(err error) bool {
	return errors.Is(err, ErrDBDuplicatedEntry) || isPgError(err, uniqueViolation)
}

// mapPgError translates constraint violations into package sentinels.
func mapPgError(err error) error {
	switch {
	case isPgError(err, uniqueViolation):
		return ErrDBDuplicatedEntry
	case isPgError(err, foreignKeyViolation):
		return ErrForeignKeyViolation
	case isPgError(err, checkViolation):
		return ErrCheckViolation
	case isPgError(err, notNullViolation):
		return ErrNotNullViolation
	case isPgError(err, undefinedTable):
		return ErrUndefinedTable
	}
	return err
}
