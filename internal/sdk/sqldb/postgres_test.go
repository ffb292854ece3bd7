package sqldb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/nourabuild/advisory-service/internal/sdk/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefixed(t *testing.T) {
	assert.Equal(t, " u.id, u.email", prefixed("u.", "id, email"))
	assert.Equal(t, " u.id", prefixed("u.", "\n\tid"))

	got := prefixed("u.", userColumns)
	assert.Contains(t, got, " u.full_name,")
	assert.Contains(t, got, " u.updated_at")
	assert.NotContains(t, got, "\n")
}

func TestMapPgError(t *testing.T) {
	tests := []struct {
		code string
		want error
	}{
		{uniqueViolation, ErrDBDuplicatedEntry},
		{foreignKeyViolation, ErrForeignKeyViolation},
		{checkViolation, ErrCheckViolation},
		{notNullViolation, ErrNotNullViolation},
		{undefinedTable, ErrUndefinedTable},
	}
	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: tc.code})
			assert.ErrorIs(t, mapPgError(err), tc.want)
		})
	}

	other := errors.New("connection reset")
	assert.Equal(t, other, mapPgError(other))
	assert.True(t, IsDuplicateEntry(&pgconn.PgError{Code: uniqueViolation}))
}

// newTestPostgres connects to TEST_DATABASE_URL or skips the test.
func newTestPostgres(t *testing.T) Service {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	db, err := NewPostgres(ctx, dsn, "advisory_test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func uniqueEmail(prefix string) string {
	return prefix + "+" + uuid.NewString()[:8] + "@example.com"
}

func TestPostgresUsersAndSessions(t *testing.T) {
	ctx := context.Background()
	db := newTestPostgres(t)

	assert.Equal(t, "up", db.Health(ctx)["status"])

	email := uniqueEmail("asha")
	user, err := db.CreateUser(ctx, models.NewUser{FullName: "Asha", Email: email})
	require.NoError(t, err)

	_, err = db.CreateUser(ctx, models.NewUser{FullName: "Again", Email: email})
	assert.ErrorIs(t, err, ErrDBDuplicatedEntry)

	got, err := db.GetUserByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	now := time.Now()
	token := uuid.NewString()
	_, err = db.CreateSession(ctx, models.NewSession{UserID: user.ID, Token: token, ExpiresAt: now.Add(time.Hour)})
	require.NoError(t, err)

	byToken, err := db.GetUserBySessionToken(ctx, token, now)
	require.NoError(t, err)
	assert.Equal(t, user.ID, byToken.ID)

	_, err = db.CreateSession(ctx, models.NewSession{UserID: uuid.NewString(), Token: uuid.NewString(), ExpiresAt: now.Add(time.Hour)})
	assert.ErrorIs(t, err, ErrForeignKeyViolation)

	require.NoError(t, db.DeleteSession(ctx, token))
	_, err = db.GetUserBySessionToken(ctx, token, now)
	assert.True(t, IsNotFound(err))
}

func TestPostgresInTxRollsBack(t *testing.T) {
	ctx := context.Background()
	db := newTestPostgres(t)
	boom := errors.New("boom")
	email := uniqueEmail("temp")

	err := db.InTx(ctx, func(tx Store) error {
		if _, err := tx.CreateUser(ctx, models.NewUser{FullName: "Temp", Email: email}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = db.GetUserByEmail(ctx, email)
	assert.True(t, IsNotFound(err))
}

func TestPostgresLoanApplicationStatus(t *testing.T) {
	ctx := context.Background()
	db := newTestPostgres(t)

	user, err := db.CreateUser(ctx, models.NewUser{FullName: "Ravi", Email: uniqueEmail("ravi")})
	require.NoError(t, err)

	app, err := db.CreateLoanApplication(ctx, models.NewLoanApplication{
		UserID:     user.ID,
		LoanType:   models.LoanTypeBusiness,
		LoanAmount: "500000",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, app.Status)

	notes := "received"
	updated, err := db.UpdateLoanApplicationStatus(ctx, app.ID, models.StatusDraft, models.StatusSubmitted, &notes)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, updated.Status)

	// A second writer that read draft loses.
	_, err = db.UpdateLoanApplicationStatus(ctx, app.ID, models.StatusDraft, models.StatusSubmitted, nil)
	assert.ErrorIs(t, err, ErrStaleRow)

	_, err = db.UpdateLoanApplicationStatus(ctx, uuid.NewString(), models.StatusDraft, models.StatusSubmitted, nil)
	assert.True(t, IsNotFound(err))

	_, err = db.UpdateLoanApplicationStatus(ctx, "not-a-uuid", models.StatusDraft, models.StatusSubmitted, nil)
	assert.True(t, IsNotFound(err))

	_, err = db.CreateLoanApplication(ctx, models.NewLoanApplication{
		UserID:     uuid.NewString(),
		LoanType:   models.LoanTypeBusiness,
		LoanAmount: "1",
	})
	assert.ErrorIs(t, err, ErrForeignKeyViolation)
}
