package sqldb

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nourabuild/advisory-service/internal/sdk/models"
)

// memState is everything the in-memory store holds. InTx works on a copy.
type memState struct {
	users         map[string]models.User
	sessions      map[string]models.Session
	applications  map[string]models.LoanApplication
	consultations map[string]models.Consultation
	posts         map[string]models.BlogPost
}

func newMemState() memState {
	return memState{
		users:         make(map[string]models.User),
		sessions:      make(map[string]models.Session),
		applications:  make(map[string]models.LoanApplication),
		consultations: make(map[string]models.Consultation),
		posts:         make(map[string]models.BlogPost),
	}
}

func (s memState) clone() memState {
	c := newMemState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.sessions {
		c.sessions[k] = v
	}
	for k, v := range s.applications {
		c.applications[k] = v
	}
	for k, v := range s.consultations {
		c.consultations[k] = v
	}
	for k, v := range s.posts {
		c.posts[k] = v
	}
	return c
}

type memService struct {
	mu    sync.RWMutex
	txMu  sync.Mutex
	state memState
	now   func() time.Time
}

// NewMemory returns an empty in-memory Service.
func NewMemory() Service {
	return &memService{state: newMemState(), now: time.Now}
}

func (m *memService) Health(context.Context) map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]string{
		"status":   "up",
		"message":  "It's healthy",
		"driver":   "memory",
		"users":    strconv.Itoa(len(m.state.users)),
		"sessions": strconv.Itoa(len(m.state.sessions)),
	}
}

// InTx stages fn's writes on a private copy of the state, so nothing is
// visible to other callers until fn returns nil. On commit only the rows fn
// touched are merged back; writes made outside the transaction meanwhile
// survive. Transactions are serialized with each other.
func (m *memService) InTx(ctx context.Context, fn func(Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.RLock()
	before := m.state.clone()
	m.mu.RUnlock()

	tx := &memService{state: before.clone(), now: m.now}
	if err := fn(tx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	mergeRows(m.state.users, before.users, tx.state.users)
	mergeRows(m.state.sessions, before.sessions, tx.state.sessions)
	mergeRows(m.state.applications, before.applications, tx.state.applications)
	mergeRows(m.state.consultations, before.consultations, tx.state.consultations)
	mergeRows(m.state.posts, before.posts, tx.state.posts)
	return nil
}

// mergeRows applies the difference between before and after to dst.
func mergeRows[K comparable, V comparable](dst, before, after map[K]V) {
	for k, v := range after {
		if old, ok := before[k]; !ok || old != v {
			dst[k] = v
		}
	}
	for k := range before {
		if _, ok := after[k]; !ok {
			delete(dst, k)
		}
	}
}

func (m *memService) Close() error { return nil }

// ---------------------------------------------
// Users
// ---------------------------------------------

func (m *memService) GetUserByID(_ context.Context, userID string) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.state.users[userID]
	if !ok {
		return models.User{}, ErrDBNotFound
	}
	return user, nil
}

func (m *memService) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.state.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, ErrDBNotFound
}

func (m *memService) GetUserByMobile(_ context.Context, mobile string) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.state.users {
		if u.Mobile != nil && *u.Mobile == mobile {
			return u, nil
		}
	}
	return models.User{}, ErrDBNotFound
}

// uniqueUserConflict reports whether another user already owns email or mobile.
func (m *memService) uniqueUserConflict(selfID, email string, mobile *string) bool {
	for id, u := range m.state.users {
		if id == selfID {
			continue
		}
		if email != "" && u.Email == email {
			return true
		}
		if mobile != nil && u.Mobile != nil && *u.Mobile == *mobile {
			return true
		}
	}
	return false
}

func (m *memService) CreateUser(_ context.Context, nu models.NewUser) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.state.users {
		if u.Email == nu.Email {
			return models.User{}, ErrDBDuplicatedEntry
		}
	}
	if m.uniqueUserConflict("", "", nu.Mobile) {
		return models.User{}, ErrDBDuplicatedEntry
	}

	now := m.now().UTC()
	user := models.User{
		ID:                uuid.NewString(),
		FullName:          nu.FullName,
		Mobile:            cloneString(nu.Mobile),
		Email:             nu.Email,
		ProfilePicture:    cloneString(nu.ProfilePicture),
		ProviderID:        cloneString(nu.ProviderID),
		IsVerified:        nu.IsVerified,
		IsProfileComplete: nu.IsProfileComplete,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if nu.Provider != nil {
		p := *nu.Provider
		user.Provider = &p
	}

	m.state.users[user.ID] = user
	return user, nil
}

func (m *memService) UpdateUserSocial(_ context.Context, userID string, u models.SocialUpdate) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.state.users[userID]
	if !ok {
		return models.User{}, ErrDBNotFound
	}

	provider := u.Provider
	providerID := u.ProviderID
	user.FullName = u.FullName
	user.ProfilePicture = cloneString(u.ProfilePicture)
	user.Provider = &provider
	user.ProviderID = &providerID
	user.IsVerified = true
	user.UpdatedAt = m.now().UTC()

	m.state.users[userID] = user
	return user, nil
}

func (m *memService) MarkUserVerified(_ context.Context, userID string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.state.users[userID]
	if !ok {
		return models.User{}, ErrDBNotFound
	}
	user.IsVerified = true
	user.UpdatedAt = m.now().UTC()

	m.state.users[userID] = user
	return user, nil
}

func (m *memService) CompleteUserProfile(_ context.Context, userID, mobile string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.state.users[userID]
	if !ok {
		return models.User{}, ErrDBNotFound
	}
	if m.uniqueUserConflict(userID, "", &mobile) {
		return models.User{}, ErrDBDuplicatedEntry
	}

	user.Mobile = &mobile
	user.IsProfileComplete = true
	user.UpdatedAt = m.now().UTC()

	m.state.users[userID] = user
	return user, nil
}

// ---------------------------------------------
// Sessions
// ---------------------------------------------

func (m *memService) CreateSession(_ context.Context, ns models.NewSession) (models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.state.users[ns.UserID]; !ok {
		return models.Session{}, ErrForeignKeyViolation
	}
	if _, ok := m.state.sessions[ns.Token]; ok {
		return models.Session{}, ErrDBDuplicatedEntry
	}

	session := models.Session{
		UserID:    ns.UserID,
		Token:     ns.Token,
		ExpiresAt: ns.ExpiresAt,
		CreatedAt: m.now().UTC(),
	}
	m.state.sessions[ns.Token] = session
	return session, nil
}

func (m *memService) GetUserBySessionToken(_ context.Context, token string, now time.Time) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.state.sessions[token]
	if !ok || !session.ExpiresAt.After(now) {
		return models.User{}, ErrDBNotFound
	}
	user, ok := m.state.users[session.UserID]
	if !ok {
		return models.User{}, ErrDBNotFound
	}
	return user, nil
}

func (m *memService) DeleteSession(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.state.sessions, token)
	return nil
}

func (m *memService) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for token, s := range m.state.sessions {
		if !s.ExpiresAt.After(now) {
			delete(m.state.sessions, token)
			n++
		}
	}
	return n, nil
}

// ---------------------------------------------
// Loan applications
// ---------------------------------------------

func (m *memService) CreateLoanApplication(_ context.Context, na models.NewLoanApplication) (models.LoanApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.state.users[na.UserID]; !ok {
		return models.LoanApplication{}, ErrForeignKeyViolation
	}

	now := m.now().UTC()
	app := models.LoanApplication{
		ID:            uuid.NewString(),
		UserID:        na.UserID,
		LoanType:      na.LoanType,
		LoanAmount:    na.LoanAmount,
		BusinessType:  cloneString(na.BusinessType),
		MonthlyIncome: cloneString(na.MonthlyIncome),
		ExistingLoans: cloneBool(na.ExistingLoans),
		PropertyValue: cloneString(na.PropertyValue),
		Documents:     cloneString(na.Documents),
		Status:        models.StatusDraft,
		Notes:         cloneString(na.Notes),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	m.state.applications[app.ID] = app
	return app, nil
}

func (m *memService) GetLoanApplication(_ context.Context, id string) (models.LoanApplication, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	app, ok := m.state.applications[id]
	if !ok {
		return models.LoanApplication{}, ErrDBNotFound
	}
	return app, nil
}

func (m *memService) ListLoanApplicationsByUser(_ context.Context, userID string) ([]models.LoanApplication, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	apps := []models.LoanApplication{}
	for _, app := range m.state.applications {
		if app.UserID == userID {
			apps = append(apps, app)
		}
	}
	sort.Slice(apps, func(i, j int) bool {
		return apps[i].CreatedAt.After(apps[j].CreatedAt)
	})
	return apps, nil
}

func (m *memService) UpdateLoanApplicationStatus(_ context.Context, id string, from, status models.ApplicationStatus, notes *string) (models.LoanApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	app, ok := m.state.applications[id]
	if !ok {
		return models.LoanApplication{}, ErrDBNotFound
	}
	if app.Status != from {
		return models.LoanApplication{}, ErrStaleRow
	}
	if !status.Valid() {
		return models.LoanApplication{}, ErrCheckViolation
	}

	app.Status = status
	if notes != nil {
		app.Notes = cloneString(notes)
	}
	app.UpdatedAt = m.now().UTC()

	m.state.applications[id] = app
	return app, nil
}

func (m *memService) UpdateLoanApplicationDocuments(_ context.Context, id, documents string) (models.LoanApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	app, ok := m.state.applications[id]
	if !ok {
		return models.LoanApplication{}, ErrDBNotFound
	}
	app.Documents = &documents
	app.UpdatedAt = m.now().UTC()

	m.state.applications[id] = app
	return app, nil
}

// ---------------------------------------------
// Consultations
// ---------------------------------------------

func (m *memService) CreateConsultation(_ context.Context, nc models.NewConsultation) (models.Consultation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := models.Consultation{
		ID:               uuid.NewString(),
		Name:             nc.Name,
		Mobile:           nc.Mobile,
		Email:            nc.Email,
		BusinessName:     cloneString(nc.BusinessName),
		PreferredDate:    nc.PreferredDate,
		PreferredTime:    nc.PreferredTime,
		ConsultationType: nc.ConsultationType,
		Message:          cloneString(nc.Message),
		Status:           models.ConsultationPending,
		CreatedAt:        m.now().UTC(),
	}

	m.state.consultations[c.ID] = c
	return c, nil
}

// ---------------------------------------------
// Blog posts
// ---------------------------------------------

func (m *memService) CreateBlogPost(_ context.Context, np models.NewBlogPost) (models.BlogPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.state.posts {
		if p.Slug == np.Slug {
			return models.BlogPost{}, ErrDBDuplicatedEntry
		}
	}

	createdAt := np.CreatedAt
	if createdAt.IsZero() {
		createdAt = m.now()
	}

	post := models.BlogPost{
		ID:        uuid.NewString(),
		Title:     np.Title,
		Slug:      np.Slug,
		Excerpt:   np.Excerpt,
		Content:   np.Content,
		Author:    np.Author,
		Category:  np.Category,
		ImageURL:  cloneString(np.ImageURL),
		Published: np.Published,
		CreatedAt: createdAt.UTC(),
	}

	m.state.posts[post.ID] = post
	return post, nil
}

func (m *memService) ListPublishedBlogPosts(_ context.Context, limit int) ([]models.BlogPost, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	posts := []models.BlogPost{}
	for _, p := range m.state.posts {
		if p.Published {
			posts = append(posts, p)
		}
	}
	sort.Slice(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})

	if limit >= 0 && len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

func (m *memService) GetBlogPostBySlug(_ context.Context, slug string) (models.BlogPost, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.state.posts {
		if p.Slug == slug && p.Published {
			return p, nil
		}
	}
	return models.BlogPost{}, ErrDBNotFound
}

func (m *memService) CountBlogPosts(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.state.posts), nil
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}
