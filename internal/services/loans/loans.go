// Package loans manages loan applications and enforces their status lifecycle.
package loans

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nourabuild/advisory-service/internal/sdk/models"
	"github.com/nourabuild/advisory-service/internal/sdk/sqldb"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound            = errors.New("loan application not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidLoanType     = errors.New("invalid loan type")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrUnknownStatus       = errors.New("unknown status")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrDocumentsDisabled   = errors.New("document storage is not configured")
	ErrApplicationReadOnly = errors.New("application is closed")
	ErrNoDocument          = errors.New("no document attached")
)

// DocumentURLExpiry is how long a download link stays valid.
const DocumentURLExpiry = 15 * time.Minute

// Amounts are capped before parsing so a short input with a huge exponent
// cannot expand into millions of digits.
const (
	maxAmountLen = 32
	minAmountExp = -8
	maxAmountExp = 15
)

var maxAmount = decimal.New(1, maxAmountExp)

// DocumentStore persists uploaded files and returns an opaque reference.
type DocumentStore interface {
	StoreDocument(ctx context.Context, applicationID, filename, contentType string, r io.Reader) (string, error)
	DocumentURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	DeleteDocument(ctx context.Context, key string) error
}

// DocumentLink is a presigned download link.
type DocumentLink struct {
	URL       string
	ExpiresAt time.Time
}

type Service struct {
	db   sqldb.Service
	docs DocumentStore
}

// NewService builds the service. docs may be nil when object storage is off.
func NewService(db sqldb.Service, docs DocumentStore) *Service {
	return &Service{db: db, docs: docs}
}

type CreateInput struct {
	UserID        string
	LoanType      string
	LoanAmount    string
	BusinessType  *string
	MonthlyIncome *string
	ExistingLoans *bool
	PropertyValue *string
	Notes         *string
}

// Create validates in and inserts a draft application.
func (s *Service) Create(ctx context.Context, in CreateInput) (models.LoanApplication, error) {
	lt := models.LoanType(in.LoanType)
	if !lt.Valid() {
		return models.LoanApplication{}, ErrInvalidLoanType
	}

	amount, err := normalizeAmount(in.LoanAmount, true)
	if err != nil {
		return models.LoanApplication{}, fmt.Errorf("loanAmount: %w", err)
	}
	income, err := normalizeOptional(in.MonthlyIncome)
	if err != nil {
		return models.LoanApplication{}, fmt.Errorf("monthlyIncome: %w", err)
	}
	propertyValue, err := normalizeOptional(in.PropertyValue)
	if err != nil {
		return models.LoanApplication{}, fmt.Errorf("propertyValue: %w", err)
	}

	app, err := s.db.CreateLoanApplication(ctx, models.NewLoanApplication{
		UserID:        in.UserID,
		LoanType:      lt,
		LoanAmount:    amount,
		BusinessType:  in.BusinessType,
		MonthlyIncome: income,
		ExistingLoans: in.ExistingLoans,
		PropertyValue: propertyValue,
		Notes:         in.Notes,
	})
	if err != nil {
		if errors.Is(err, sqldb.ErrForeignKeyViolation) {
			return models.LoanApplication{}, ErrUserNotFound
		}
		return models.LoanApplication{}, fmt.Errorf("create application: %w", err)
	}
	return app, nil
}

func (s *Service) Get(ctx context.Context, id string) (models.LoanApplication, error) {
	app, err := s.db.GetLoanApplication(ctx, id)
	if err != nil {
		if sqldb.IsNotFound(err) {
			return models.LoanApplication{}, ErrNotFound
		}
		return models.LoanApplication{}, fmt.Errorf("get application: %w", err)
	}
	return app, nil
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]models.LoanApplication, error) {
	apps, err := s.db.ListLoanApplicationsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return apps, nil
}

// UpdateStatus moves an application to next when the lifecycle allows it.
// The write only lands if the status read is still current, so concurrent
// changes cannot both succeed.
func (s *Service) UpdateStatus(ctx context.Context, id, next string, notes *string) (models.LoanApplication, error) {
	status := models.ApplicationStatus(next)
	if !status.Valid() {
		return models.LoanApplication{}, ErrUnknownStatus
	}

	var updated models.LoanApplication
	err := s.db.InTx(ctx, func(tx sqldb.Store) error {
		cur, err := tx.GetLoanApplication(ctx, id)
		if err != nil {
			if sqldb.IsNotFound(err) {
				return ErrNotFound
			}
			return fmt.Errorf("get application: %w", err)
		}

		if !models.CanTransition(cur.Status, status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.Status, status)
		}

		updated, err = tx.UpdateLoanApplicationStatus(ctx, id, cur.Status, status, notes)
		if err != nil {
			if errors.Is(err, sqldb.ErrStaleRow) {
				return fmt.Errorf("%w: %s changed concurrently", ErrInvalidTransition, id)
			}
			return fmt.Errorf("update status: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.LoanApplication{}, err
	}
	return updated, nil
}

// AttachDocument uploads a file and records its reference on the application.
func (s *Service) AttachDocument(ctx context.Context, id, filename, contentType string, r io.Reader) (models.LoanApplication, error) {
	if s.docs == nil {
		return models.LoanApplication{}, ErrDocumentsDisabled
	}

	app, err := s.Get(ctx, id)
	if err != nil {
		return models.LoanApplication{}, err
	}
	if app.Status.Terminal() {
		return models.LoanApplication{}, ErrApplicationReadOnly
	}

	key, err := s.docs.StoreDocument(ctx, id, filename, contentType, r)
	if err != nil {
		return models.LoanApplication{}, fmt.Errorf("store document: %w", err)
	}

	updated, err := s.db.UpdateLoanApplicationDocuments(ctx, id, key)
	if err != nil {
		_ = s.docs.DeleteDocument(ctx, key)
		return models.LoanApplication{}, fmt.Errorf("record document: %w", err)
	}

	// The new reference is recorded; a failed cleanup only orphans the old object.
	if app.Documents != nil && *app.Documents != "" && *app.Documents != key {
		_ = s.docs.DeleteDocument(ctx, *app.Documents)
	}
	return updated, nil
}

// DocumentURL returns a presigned link to the application's document.
func (s *Service) DocumentURL(ctx context.Context, id string) (DocumentLink, error) {
	if s.docs == nil {
		return DocumentLink{}, ErrDocumentsDisabled
	}

	app, err := s.Get(ctx, id)
	if err != nil {
		return DocumentLink{}, err
	}
	if app.Documents == nil || *app.Documents == "" {
		return DocumentLink{}, ErrNoDocument
	}

	expiresAt := time.Now().Add(DocumentURLExpiry)
	u, err := s.docs.DocumentURL(ctx, *app.Documents, DocumentURLExpiry)
	if err != nil {
		return DocumentLink{}, fmt.Errorf("document url: %w", err)
	}
	return DocumentLink{URL: u, ExpiresAt: expiresAt}, nil
}

// normalizeAmount parses a numeric string and returns its canonical form.
func normalizeAmount(raw string, positive bool) (string, error) {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if raw == "" || len(raw) > maxAmountLen {
		return "", ErrInvalidAmount
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return "", ErrInvalidAmount
	}
	if exp := d.Exponent(); exp < minAmountExp || exp > maxAmountExp {
		return "", ErrInvalidAmount
	}
	if d.IsNegative() || (positive && !d.IsPositive()) || !d.LessThan(maxAmount) {
		return "", ErrInvalidAmount
	}
	return d.String(), nil
}

func normalizeOptional(raw *string) (*string, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	v, err := normalizeAmount(*raw, false)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
