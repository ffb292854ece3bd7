package sqldb

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/nourabuild/advisory-service/internal/sdk/models"
)

//go:embed schema.sql
var schemaSQL string

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

type pgStore struct {
	q querier
}

type pgService struct {
	*pgStore
	db       *sql.DB
	database string
}

// NewPostgres opens a pgx backed connection pool and applies the schema.
func NewPostgres(ctx context.Context, dsn, database string) (Service, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := &pgService{pgStore: &pgStore{q: db}, db: db, database: database}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *pgService) migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	return nil
}

// Health checks the health of the database connection by pinging the database.
// It returns a map with keys indicating various health statistics.
func (s *pgService) Health(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	if err := s.db.PingContext(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"

	dbStats := s.db.Stats()
	stats["open_connections"] = strconv.Itoa(dbStats.OpenConnections)
	stats["in_use"] = strconv.Itoa(dbStats.InUse)
	stats["idle"] = strconv.Itoa(dbStats.Idle)
	stats["wait_count"] = strconv.FormatInt(dbStats.WaitCount, 10)
	stats["wait_duration"] = dbStats.WaitDuration.String()
	stats["max_idle_closed"] = strconv.FormatInt(dbStats.MaxIdleClosed, 10)
	stats["max_lifetime_closed"] = strconv.FormatInt(dbStats.MaxLifetimeClosed, 10)

	if dbStats.OpenConnections > 20 {
		stats["message"] = "The database is experiencing heavy load."
	}

	if dbStats.WaitCount > 1000 {
		stats["message"] = "The database has a high number of wait events, indicating potential bottlenecks."
	}

	return stats
}

// InTx runs fn inside a single database transaction.
func (s *pgService) InTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrTransactionFailed, err)
	}

	if err := fn(&pgStore{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w: rollback: %v (cause: %w)", ErrTransactionFailed, rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrTransactionFailed, err)
	}
	return nil
}

// Close closes the database connection.
func (s *pgService) Close() error {
	return s.db.Close()
}

// ---------------------------------------------
// Users
// ---------------------------------------------

const userColumns = `
	id,
	full_name,
	mobile,
	email,
	profile_picture,
	provider,
	provider_id,
	is_verified,
	is_profile_complete,
	created_at,
	updated_at`

func scanUser(row rowScanner) (models.User, error) {
	var (
		user     models.User
		mobile   sql.NullString
		picture  sql.NullString
		provider sql.NullString
		extID    sql.NullString
	)
	err := row.Scan(
		&user.ID,
		&user.FullName,
		&mobile,
		&user.Email,
		&picture,
		&provider,
		&extID,
		&user.IsVerified,
		&user.IsProfileComplete,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return models.User{}, err
	}

	user.Mobile = StringPtr(mobile)
	user.ProfilePicture = StringPtr(picture)
	user.ProviderID = StringPtr(extID)
	if provider.Valid {
		p := models.Provider(provider.String)
		user.Provider = &p
	}
	return user, nil
}

func (s *pgStore) getUserBy(ctx context.Context, column, value, op string) (models.User, error) {
	query := `SELECT` + userColumns + ` FROM users WHERE ` + column + ` = $1`

	user, err := scanUser(s.q.QueryRowContext(ctx, query, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrDBNotFound
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// GetUserByID retrieves a user by their ID
func (s *pgStore) GetUserByID(ctx context.Context, userID string) (models.User, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return models.User{}, ErrDBNotFound
	}
	return s.getUserBy(ctx, "id", userID, "selecting user")
}

// GetUserByEmail retrieves a user by their email address
func (s *pgStore) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return s.getUserBy(ctx, "email", email, "selecting user by email")
}

// GetUserByMobile retrieves a user by their mobile number
func (s *pgStore) GetUserByMobile(ctx context.Context, mobile string) (models.User, error) {
	return s.getUserBy(ctx, "mobile", mobile, "selecting user by mobile")
}

// CreateUser inserts a new user into the database
func (s *pgStore) CreateUser(ctx context.Context, nu models.NewUser) (models.User, error) {
	query := `
		INSERT INTO users (id, full_name, mobile, email, profile_picture, provider, provider_id, is_verified, is_profile_complete)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING` + userColumns

	var provider sql.NullString
	if nu.Provider != nil {
		provider = sql.NullString{String: string(*nu.Provider), Valid: true}
	}

	user, err := scanUser(s.q.QueryRowContext(ctx, query,
		uuid.NewString(),
		nu.FullName,
		NullString(nu.Mobile),
		nu.Email,
		NullString(nu.ProfilePicture),
		provider,
		NullString(nu.ProviderID),
		nu.IsVerified,
		nu.IsProfileComplete,
	))
	if err != nil {
		return models.User{}, fmt.Errorf("creating user: %w", mapPgError(err))
	}
	return user, nil
}

// UpdateUserSocial refreshes the provider supplied fields of a user
func (s *pgStore) UpdateUserSocial(ctx context.Context, userID string, u models.SocialUpdate) (models.User, error) {
	query := `
		UPDATE users
		SET full_name = $2,
		    profile_picture = $3,
		    provider = $4,
		    provider_id = $5,
		    is_verified = TRUE,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING` + userColumns

	user, err := scanUser(s.q.QueryRowContext(ctx, query,
		userID,
		u.FullName,
		NullString(u.ProfilePicture),
		string(u.Provider),
		u.ProviderID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrDBNotFound
		}
		return models.User{}, fmt.Errorf("updating social profile: %w", mapPgError(err))
	}
	return user, nil
}

// MarkUserVerified flags a user as verified
func (s *pgStore) MarkUserVerified(ctx context.Context, userID string) (models.User, error) {
	query := `
		UPDATE users
		SET is_verified = TRUE,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING` + userColumns

	user, err := scanUser(s.q.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrDBNotFound
		}
		return models.User{}, fmt.Errorf("verifying user: %w", err)
	}
	return user, nil
}

// CompleteUserProfile stores the mobile number and marks the profile complete
func (s *pgStore) CompleteUserProfile(ctx context.Context, userID, mobile string) (models.User, error) {
	query := `
		UPDATE users
		SET mobile = $2,
		    is_profile_complete = TRUE,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING` + userColumns

	user, err := scanUser(s.q.QueryRowContext(ctx, query, userID, mobile))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrDBNotFound
		}
		return models.User{}, fmt.Errorf("completing profile: %w", mapPgError(err))
	}
	return user, nil
}

// ---------------------------------------------
// Sessions
// ---------------------------------------------

// CreateSession inserts a new session
func (s *pgStore) CreateSession(ctx context.Context, ns models.NewSession) (models.Session, error) {
	const query = `
		INSERT INTO sessions (token, user_id, expires_at)
		VALUES ($1, $2, $3)
		RETURNING user_id, token, expires_at, created_at
	`

	var session models.Session
	err := s.q.QueryRowContext(ctx, query, ns.Token, ns.UserID, ns.ExpiresAt).Scan(
		&session.UserID,
		&session.Token,
		&session.ExpiresAt,
		&session.CreatedAt,
	)
	if err != nil {
		return models.Session{}, fmt.Errorf("creating session: %w", mapPgError(err))
	}
	return session, nil
}

// GetUserBySessionToken returns the owner of a session that has not expired
func (s *pgStore) GetUserBySessionToken(ctx context.Context, token string, now time.Time) (models.User, error) {
	query := `
		SELECT` + prefixed("u.", userColumns) + `
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token = $1 AND s.expires_at > $2
	`

	user, err := scanUser(s.q.QueryRowContext(ctx, query, token, now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrDBNotFound
		}
		return models.User{}, fmt.Errorf("validating session: %w", err)
	}
	return user, nil
}

// DeleteSession removes a session by token. Missing tokens are not an error.
func (s *pgStore) DeleteSession(ctx context.Context, token string) error {
	const query = `DELETE FROM sessions WHERE token = $1`

	if _, err := s.q.ExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes all sessions that expired before now
func (s *pgStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	const query = `DELETE FROM sessions WHERE expires_at <= $1`

	result, err := s.q.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

// ---------------------------------------------
// Loan applications
// ---------------------------------------------

const applicationColumns = `
	id,
	user_id,
	loan_type,
	loan_amount,
	business_type,
	monthly_income,
	existing_loans,
	property_value,
	documents,
	status,
	notes,
	created_at,
	updated_at`

func scanApplication(row rowScanner) (models.LoanApplication, error) {
	var (
		app           models.LoanApplication
		businessType  sql.NullString
		monthlyIncome sql.NullString
		existingLoans sql.NullBool
		propertyValue sql.NullString
		documents     sql.NullString
		notes         sql.NullString
	)
	err := row.Scan(
		&app.ID,
		&app.UserID,
		&app.LoanType,
		&app.LoanAmount,
		&businessType,
		&monthlyIncome,
		&existingLoans,
		&propertyValue,
		&documents,
		&app.Status,
		&notes,
		&app.CreatedAt,
		&app.UpdatedAt,
	)
	if err != nil {
		return models.LoanApplication{}, err
	}

	app.BusinessType = StringPtr(businessType)
	app.MonthlyIncome = StringPtr(monthlyIncome)
	app.ExistingLoans = BoolPtr(existingLoans)
	app.PropertyValue = StringPtr(propertyValue)
	app.Documents = StringPtr(documents)
	app.Notes = StringPtr(notes)
	return app, nil
}

// CreateLoanApplication inserts a draft application
func (s *pgStore) CreateLoanApplication(ctx context.Context, na models.NewLoanApplication) (models.LoanApplication, error) {
	query := `
		INSERT INTO loan_applications (
			id, user_id, loan_type, loan_amount, business_type, monthly_income,
			existing_loans, property_value, documents, status, notes
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING` + applicationColumns

	app, err := scanApplication(s.q.QueryRowContext(ctx, query,
		uuid.NewString(),
		na.UserID,
		string(na.LoanType),
		na.LoanAmount,
		NullString(na.BusinessType),
		NullString(na.MonthlyIncome),
		NullBool(na.ExistingLoans),
		NullString(na.PropertyValue),
		NullString(na.Documents),
		string(models.StatusDraft),
		NullString(na.Notes),
	))
	if err != nil {
		return models.LoanApplication{}, fmt.Errorf("creating loan application: %w", mapPgError(err))
	}
	return app, nil
}

// GetLoanApplication retrieves an application by ID
func (s *pgStore) GetLoanApplication(ctx context.Context, id string) (models.LoanApplication, error) {
	if _, err := uuid.Parse(id); err != nil {
		return models.LoanApplication{}, ErrDBNotFound
	}

	query := `SELECT` + applicationColumns + ` FROM loan_applications WHERE id = $1`

	app, err := scanApplication(s.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.LoanApplication{}, ErrDBNotFound
		}
		return models.LoanApplication{}, fmt.Errorf("selecting loan application: %w", err)
	}
	return app, nil
}

// ListLoanApplicationsByUser lists a user's applications, newest first
func (s *pgStore) ListLoanApplicationsByUser(ctx context.Context, userID string) ([]models.LoanApplication, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return []models.LoanApplication{}, nil
	}

	query := `SELECT` + applicationColumns + `
		FROM loan_applications
		WHERE user_id = $1
		ORDER BY created_at DESC`

	rows, err := s.q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing loan applications: %w", err)
	}
	defer rows.Close()

	apps := []models.LoanApplication{}
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning loan application: %w", err)
		}
		apps = append(apps, app)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating loan applications: %w", err)
	}
	return apps, nil
}

// UpdateLoanApplicationStatus writes a new status only while the row still
// holds from. Nil notes keep the stored value.
func (s *pgStore) UpdateLoanApplicationStatus(ctx context.Context, id string, from, to models.ApplicationStatus, notes *string) (models.LoanApplication, error) {
	if _, err := uuid.Parse(id); err != nil {
		return models.LoanApplication{}, ErrDBNotFound
	}

	query := `
		UPDATE loan_applications
		SET status = $2,
		    notes = COALESCE($3, notes),
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND status = $4
		RETURNING` + applicationColumns

	app, err := scanApplication(s.q.QueryRowContext(ctx, query, id, string(to), NullString(notes), string(from)))
	if err == nil {
		return app, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.LoanApplication{}, fmt.Errorf("updating loan application status: %w", mapPgError(err))
	}

	// No row matched: either the id is unknown or another writer moved it.
	if _, getErr := s.GetLoanApplication(ctx, id); getErr != nil {
		return models.LoanApplication{}, getErr
	}
	return models.LoanApplication{}, ErrStaleRow
}

// UpdateLoanApplicationDocuments stores the document reference of an application
func (s *pgStore) UpdateLoanApplicationDocuments(ctx context.Context, id, documents string) (models.LoanApplication, error) {
	query := `
		UPDATE loan_applications
		SET documents = $2,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING` + applicationColumns

	app, err := scanApplication(s.q.QueryRowContext(ctx, query, id, documents))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.LoanApplication{}, ErrDBNotFound
		}
		return models.LoanApplication{}, fmt.Errorf("updating loan application documents: %w", err)
	}
	return app, nil
}

// ---------------------------------------------
// Consultations
// ---------------------------------------------

// CreateConsultation inserts a pending consultation booking
func (s *pgStore) CreateConsultation(ctx context.Context, nc models.NewConsultation) (models.Consultation, error) {
	const query = `
		INSERT INTO consultations (
			id, name, mobile, email, business_name, preferred_date,
			preferred_time, consultation_type, message, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, name, mobile, email, business_name, preferred_date,
		          preferred_time, consultation_type, message, status, created_at
	`

	var (
		c            models.Consultation
		businessName sql.NullString
		message      sql.NullString
	)
	err := s.q.QueryRowContext(ctx, query,
		uuid.NewString(),
		nc.Name,
		nc.Mobile,
		nc.Email,
		NullString(nc.BusinessName),
		nc.PreferredDate,
		nc.PreferredTime,
		nc.ConsultationType,
		NullString(nc.Message),
		models.ConsultationPending,
	).Scan(
		&c.ID,
		&c.Name,
		&c.Mobile,
		&c.Email,
		&businessName,
		&c.PreferredDate,
		&c.PreferredTime,
		&c.ConsultationType,
		&message,
		&c.Status,
		&c.CreatedAt,
	)
	if err != nil {
		return models.Consultation{}, fmt.Errorf("creating consultation: %w", mapPgError(err))
	}

	c.BusinessName = StringPtr(businessName)
	c.Message = StringPtr(message)
	return c, nil
}

// ---------------------------------------------
// Blog posts
// ---------------------------------------------

const blogColumns = `
	id,
	title,
	slug,
	excerpt,
	content,
	author,
	category,
	image_url,
	published,
	created_at`

func scanBlogPost(row rowScanner) (models.BlogPost, error) {
	var (
		post     models.BlogPost
		imageURL sql.NullString
	)
	err := row.Scan(
		&post.ID,
		&post.Title,
		&post.Slug,
		&post.Excerpt,
		&post.Content,
		&post.Author,
		&post.Category,
		&imageURL,
		&post.Published,
		&post.CreatedAt,
	)
	if err != nil {
		return models.BlogPost{}, err
	}
	post.ImageURL = StringPtr(imageURL)
	return post, nil
}

// CreateBlogPost inserts a blog post
func (s *pgStore) CreateBlogPost(ctx context.Context, np models.NewBlogPost) (models.BlogPost, error) {
	query := `
		INSERT INTO blog_posts (id, title, slug, excerpt, content, author, category, image_url, published, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, CURRENT_TIMESTAMP))
		RETURNING` + blogColumns

	var createdAt sql.NullTime
	if !np.CreatedAt.IsZero() {
		createdAt = sql.NullTime{Time: np.CreatedAt, Valid: true}
	}

	post, err := scanBlogPost(s.q.QueryRowContext(ctx, query,
		uuid.NewString(),
		np.Title,
		np.Slug,
		np.Excerpt,
		np.Content,
		np.Author,
		np.Category,
		NullString(np.ImageURL),
		np.Published,
		createdAt,
	))
	if err != nil {
		return models.BlogPost{}, fmt.Errorf("creating blog post: %w", mapPgError(err))
	}
	return post, nil
}

// ListPublishedBlogPosts lists at most limit published posts, newest first
func (s *pgStore) ListPublishedBlogPosts(ctx context.Context, limit int) ([]models.BlogPost, error) {
	query := `SELECT` + blogColumns + `
		FROM blog_posts
		WHERE published = TRUE
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := s.q.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("listing blog posts: %w", err)
	}
	defer rows.Close()

	posts := []models.BlogPost{}
	for rows.Next() {
		post, err := scanBlogPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning blog post: %w", err)
		}
		posts = append(posts, post)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating blog posts: %w", err)
	}
	return posts, nil
}

// GetBlogPostBySlug retrieves a published post by slug
func (s *pgStore) GetBlogPostBySlug(ctx context.Context, slug string) (models.BlogPost, error) {
	query := `SELECT` + blogColumns + ` FROM blog_posts WHERE slug = $1 AND published = TRUE`

	post, err := scanBlogPost(s.q.QueryRowContext(ctx, query, slug))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.BlogPost{}, ErrDBNotFound
		}
		return models.BlogPost{}, fmt.Errorf("selecting blog post: %w", err)
	}
	return post, nil
}

// CountBlogPosts returns the number of stored posts, published or not
func (s *pgStore) CountBlogPosts(ctx context.Context) (int, error) {
	var n int
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM blog_posts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting blog posts: %w", err)
	}
	return n, nil
}

// prefixed qualifies every column in a column list with prefix.
func prefixed(prefix, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = " " + prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ",")
}
