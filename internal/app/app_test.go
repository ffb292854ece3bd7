package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nourabuild/advisory-service/internal/config"
	"github.com/nourabuild/advisory-service/internal/sdk/middleware"
	"github.com/nourabuild/advisory-service/internal/sdk/models"
	"github.com/nourabuild/advisory-service/internal/sdk/sqldb"
	"github.com/nourabuild/advisory-service/internal/services/auth"
	"github.com/nourabuild/advisory-service/internal/services/jwt"
	"github.com/nourabuild/advisory-service/internal/services/loans"
	"github.com/nourabuild/advisory-service/internal/services/oauth"
	"github.com/nourabuild/advisory-service/internal/services/otp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAdminKey  = "back-office-key"
	testFrontend  = "http://localhost:5173"
	testValidCode = "123456"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeOTP accepts testValidCode for any mobile it has issued to.
type fakeOTP struct {
	issued   map[string]int
	issueErr error
}

func (f *fakeOTP) Issue(_ context.Context, mobile string) error {
	if f.issueErr != nil {
		return f.issueErr
	}
	f.issued[mobile]++
	return nil
}

func (f *fakeOTP) Check(_ context.Context, mobile, code string) (bool, error) {
	if f.issued[mobile] == 0 {
		return false, otp.ErrNoCode
	}
	return code == testValidCode, nil
}

type fakeMailer struct {
	sent chan models.Consultation
	err  error
}

func (f *fakeMailer) SendConsultationConfirmation(_ context.Context, c models.Consultation) error {
	err := f.err
	f.sent <- c
	return err
}

type fakeProvider struct {
	name    models.Provider
	profile auth.SocialProfile
	err     error
}

func (p *fakeProvider) Name() models.Provider { return p.name }

func (p *fakeProvider) AuthCodeURL(state string) string {
	return "https://idp.example/authorize?state=" + url.QueryEscape(state)
}

func (p *fakeProvider) Exchange(_ context.Context, code, _ string) (auth.SocialProfile, error) {
	if p.err != nil {
		return auth.SocialProfile{}, p.err
	}
	if code == "" {
		return auth.SocialProfile{}, oauth.ErrExchangeFailed
	}
	return p.profile, nil
}

// fakeDocs keeps uploads in memory and hands out fake presigned links.
type fakeDocs struct {
	stored map[string][]byte
}

func (f *fakeDocs) StoreDocument(_ context.Context, id, filename, _ string, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	key := "applications/" + id + "/" + filename
	f.stored[key] = b
	return key, nil
}

func (f *fakeDocs) DocumentURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://objects.example.com/" + key + "?X-Amz-Signature=test", nil
}

func (f *fakeDocs) DeleteDocument(_ context.Context, key string) error {
	delete(f.stored, key)
	return nil
}

type testEnv struct {
	db       sqldb.Service
	router   *gin.Engine
	otp      *fakeOTP
	mailer   *fakeMailer
	provider *fakeProvider
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithDocs(t, nil)
}

func newTestEnvWithDocs(t *testing.T, docs loans.DocumentStore) *testEnv {
	t.Helper()

	db := sqldb.NewMemory()
	t.Cleanup(func() { _ = db.Close() })

	fo := &fakeOTP{issued: make(map[string]int)}
	mailer := &fakeMailer{sent: make(chan models.Consultation, 1)}
	provider := &fakeProvider{
		name: models.ProviderGoogle,
		profile: auth.SocialProfile{
			ExternalID:  "g-1",
			DisplayName: "Asha Rao",
			Email:       "asha@example.com",
			Provider:    models.ProviderGoogle,
		},
	}

	registry := oauth.NewRegistry(config.OAuth{})
	registry.Register(provider)

	a := NewApp(Deps{
		DB:     db,
		Auth:   auth.NewService(db),
		Loans:  loans.NewService(db, docs),
		OTP:    fo,
		OAuth:  registry,
		State:  jwt.NewStateSigner("state-secret", time.Minute),
		Mailer: mailer,
	}, Options{
		FrontendURL: testFrontend,
		AdminAPIKey: testAdminKey,
	})

	return &testEnv{db: db, router: a.RegisterRoutes(), otp: fo, mailer: mailer, provider: provider}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// login registers a user with a mobile and verifies it, returning the session.
func (e *testEnv) login(t *testing.T, email, mobile string) LoginResponse {
	t.Helper()

	w := e.do(t, http.MethodPost, "/api/users/register", map[string]any{
		"fullName": "Test User",
		"email":    email,
		"mobile":   mobile,
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = e.do(t, http.MethodPost, "/api/users/verify-otp", VerifyOTPRequest{Mobile: mobile, OTP: testValidCode}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[LoginResponse](t, w)
}

func TestRegisterAndVerifyOTP(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/users/register", map[string]any{
		"fullName": "Ravi Kumar",
		"email":    "Ravi@Example.com",
		"mobile":   "9876543210",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	reg := decode[RegisterResponse](t, w)
	assert.NotEmpty(t, reg.UserID)
	assert.True(t, reg.OTPSent)
	assert.Equal(t, 1, env.otp.issued["9876543210"])

	t.Run("duplicate email", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/users/register", map[string]any{
			"fullName": "Other",
			"email":    "ravi@example.com",
		}, nil)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, ErrUserExists, decode[ErrorResponse](t, w).Error)
	})

	t.Run("missing fields", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/users/register", map[string]any{"fullName": "No Email"}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decode[ErrorResponse](t, w)
		assert.Equal(t, ErrMissingFields, resp.Error)
		assert.Equal(t, "required", resp.Details["email"])
	})

	t.Run("malformed body", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/users/register", "{not json", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, ErrUnmarshal, decode[ErrorResponse](t, w).Error)
	})

	t.Run("wrong code", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/users/verify-otp", VerifyOTPRequest{Mobile: "9876543210", OTP: "000000"}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, ErrInvalidOTP, decode[ErrorResponse](t, w).Error)
	})

	t.Run("unknown mobile", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/users/verify-otp", VerifyOTPRequest{Mobile: "9000000000", OTP: testValidCode}, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("correct code logs in", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/users/verify-otp", VerifyOTPRequest{Mobile: "9876543210", OTP: testValidCode}, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		resp := decode[LoginResponse](t, w)
		assert.NotEmpty(t, resp.Token)
		assert.True(t, resp.User.IsVerified)
		assert.Equal(t, "ravi@example.com", resp.User.Email)
		assert.False(t, resp.NeedsProfileCompletion)
	})
}

func TestResendOTPRateLimited(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "asha@example.com", "9876543210")

	env.otp.issueErr = otp.ErrTooSoon
	w := env.do(t, http.MethodPost, "/api/users/resend-otp", ResendOTPRequest{Mobile: "9876543210"}, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, ErrOTPTooSoon, decode[ErrorResponse](t, w).Error)
}

func TestCurrentUserAndLogout(t *testing.T) {
	env := newTestEnv(t)
	session := env.login(t, "asha@example.com", "9876543210")

	w := env.do(t, http.MethodGet, "/api/auth/user", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/api/auth/user", nil, bearer("deadbeef"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/api/auth/user", nil, bearer(session.Token))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, session.User.ID, decode[UserResponse](t, w).User.ID)

	w = env.do(t, http.MethodPost, "/api/auth/logout", nil, bearer(session.Token))
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/auth/user", nil, bearer(session.Token))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSocialLoginAndCompleteProfile(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/auth/social-login", SocialLoginRequest{Provider: "github", Code: "abc"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrUnknownProvider, decode[ErrorResponse](t, w).Error)

	w = env.do(t, http.MethodPost, "/api/auth/social-login", SocialLoginRequest{Provider: "google", Code: "abc"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	login := decode[LoginResponse](t, w)
	assert.True(t, login.NeedsProfileCompletion)
	assert.True(t, login.User.IsVerified)

	w = env.do(t, http.MethodPost, "/api/auth/complete-profile", map[string]string{}, bearer(login.Token))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/auth/complete-profile", CompleteProfileRequest{Mobile: "12"}, bearer(login.Token))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrInvalidMobile, decode[ErrorResponse](t, w).Error)

	w = env.do(t, http.MethodPost, "/api/auth/complete-profile", CompleteProfileRequest{Mobile: "9876543210"}, bearer(login.Token))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	profile := decode[UserResponse](t, w)
	assert.False(t, profile.NeedsProfileCompletion)
	assert.True(t, profile.User.IsProfileComplete)

	t.Run("provider without email", func(t *testing.T) {
		env.provider.profile.Email = ""
		w := env.do(t, http.MethodPost, "/api/auth/social-login", SocialLoginRequest{Provider: "google", Code: "abc"}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, ErrProviderEmail, decode[ErrorResponse](t, w).Error)
	})
}

func TestOAuthRedirectFlow(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/auth/google?redirect=/dashboard", nil, nil)
	require.Equal(t, http.StatusFound, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)

	w = env.do(t, http.MethodGet, "/api/auth/google/callback?code=abc&state="+url.QueryEscape(state), nil, nil)
	require.Equal(t, http.StatusFound, w.Code)
	loc, err = url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/auth/callback", loc.Path)
	fragment, err := url.ParseQuery(loc.Fragment)
	require.NoError(t, err)
	assert.NotEmpty(t, fragment.Get("token"))
	assert.Equal(t, "true", fragment.Get("needsProfileCompletion"))
	assert.Equal(t, "/dashboard", fragment.Get("redirect"))

	t.Run("tampered state", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/auth/google/callback?code=abc&state=forged", nil, nil)
		require.Equal(t, http.StatusFound, w.Code)
		loc, err := url.Parse(w.Header().Get("Location"))
		require.NoError(t, err)
		fragment, err := url.ParseQuery(loc.Fragment)
		require.NoError(t, err)
		assert.Equal(t, ErrInvalidState, fragment.Get("error"))
		assert.Empty(t, fragment.Get("token"))
	})

	t.Run("open redirect dropped", func(t *testing.T) {
		assert.Empty(t, safeRedirect("//evil.example"))
		assert.Empty(t, safeRedirect("https://evil.example"))
		assert.Equal(t, "/apply", safeRedirect("/apply"))
	})
}

func TestLoanApplications(t *testing.T) {
	env := newTestEnv(t)
	owner := env.login(t, "asha@example.com", "9876543210")
	other := env.login(t, "ravi@example.com", "9123456789")
	ownerAuth := bearer(owner.Token)

	t.Run("requires session", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/loan-applications", map[string]any{"loanType": "business", "loanAmount": 100}, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("missing loanType creates nothing", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/loan-applications", map[string]any{"loanAmount": "500000"}, ownerAuth)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "required", decode[ErrorResponse](t, w).Details["loanType"])

		apps, err := env.db.ListLoanApplicationsByUser(context.Background(), owner.User.ID)
		require.NoError(t, err)
		assert.Empty(t, apps)
	})

	t.Run("invalid loan type", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/loan-applications", map[string]any{"loanType": "car", "loanAmount": "500000"}, ownerAuth)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, ErrInvalidLoanType, decode[ErrorResponse](t, w).Error)
	})

	t.Run("oversized amounts are rejected quickly", func(t *testing.T) {
		for _, body := range []map[string]any{
			{"loanType": "business", "loanAmount": "1e5000000"},
			{"loanType": "business", "loanAmount": "500000", "propertyValue": "1e5000000"},
			{"loanType": "business", "loanAmount": "500000", "monthlyIncome": "1" + strings.Repeat("0", 64)},
		} {
			start := time.Now()
			w := env.do(t, http.MethodPost, "/api/loan-applications", body, ownerAuth)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Equal(t, ErrInvalidAmount, decode[ErrorResponse](t, w).Error)
			assert.Less(t, time.Since(start), time.Second)
		}

		apps, err := env.db.ListLoanApplicationsByUser(context.Background(), owner.User.ID)
		require.NoError(t, err)
		assert.Empty(t, apps)
	})

	w := env.do(t, http.MethodPost, "/api/loan-applications", map[string]any{
		"loanType":      "business",
		"loanAmount":    500000,
		"monthlyIncome": "85,000",
		"existingLoans": false,
	}, ownerAuth)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[LoanApplicationResponse](t, w)
	assert.Equal(t, owner.User.ID, created.UserID)
	assert.Equal(t, models.StatusDraft, created.Status)
	assert.Equal(t, 25, created.Progress)
	assert.Equal(t, "500000", created.LoanAmount)
	require.NotNil(t, created.MonthlyIncome)
	assert.Equal(t, "85000", *created.MonthlyIncome)

	t.Run("get by id", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/loan-applications/"+created.ID, nil, ownerAuth)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, created.ID, decode[LoanApplicationResponse](t, w).ID)
	})

	t.Run("unknown id", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/loan-applications/does-not-exist", nil, ownerAuth)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, ErrApplicationMissing, decode[ErrorResponse](t, w).Error)
	})

	t.Run("hidden from other users", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/loan-applications/"+created.ID, nil, bearer(other.Token))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("list own applications only", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/users/"+owner.User.ID+"/loan-applications", nil, ownerAuth)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decode[[]LoanApplicationResponse](t, w), 1)

		w = env.do(t, http.MethodGet, "/api/users/"+owner.User.ID+"/loan-applications", nil, bearer(other.Token))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	statusPath := "/api/loan-applications/" + created.ID + "/status"
	admin := map[string]string{middleware.AdminKeyHeader: testAdminKey}

	t.Run("status change needs admin key", func(t *testing.T) {
		w := env.do(t, http.MethodPatch, statusPath, UpdateStatusRequest{Status: "submitted"}, ownerAuth)
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		w = env.do(t, http.MethodPatch, statusPath, UpdateStatusRequest{Status: "submitted"}, map[string]string{middleware.AdminKeyHeader: "wrong"})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("unknown status", func(t *testing.T) {
		w := env.do(t, http.MethodPatch, statusPath, UpdateStatusRequest{Status: "archived"}, admin)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, ErrUnknownStatus, decode[ErrorResponse](t, w).Error)
	})

	t.Run("skipping a step is rejected", func(t *testing.T) {
		w := env.do(t, http.MethodPatch, statusPath, UpdateStatusRequest{Status: "approved"}, admin)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, ErrInvalidTransition, decode[ErrorResponse](t, w).Error)
	})

	t.Run("owner submits then back office reviews", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/loan-applications/"+created.ID+"/submit", nil, ownerAuth)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, 50, decode[LoanApplicationResponse](t, w).Progress)

		notes := "documents verified"
		w = env.do(t, http.MethodPatch, statusPath, UpdateStatusRequest{Status: "under-review", Notes: &notes}, admin)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		got := decode[LoanApplicationResponse](t, w)
		assert.Equal(t, 75, got.Progress)
		require.NotNil(t, got.Notes)
		assert.Equal(t, notes, *got.Notes)

		w = env.do(t, http.MethodPatch, statusPath, UpdateStatusRequest{Status: "rejected"}, admin)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 0, decode[LoanApplicationResponse](t, w).Progress)

		w = env.do(t, http.MethodPatch, statusPath, UpdateStatusRequest{Status: "approved"}, admin)
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestUploadDocumentWithoutStorage(t *testing.T) {
	env := newTestEnv(t)
	owner := env.login(t, "asha@example.com", "9876543210")

	app, err := env.db.CreateLoanApplication(context.Background(), models.NewLoanApplication{
		UserID:     owner.User.ID,
		LoanType:   models.LoanTypeProperty,
		LoanAmount: "2500000",
	})
	require.NoError(t, err)

	w := uploadDocument(t, env, app.ID, owner.Token, "deed.pdf", "%PDF-1.4")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, ErrDocumentsOff, decode[ErrorResponse](t, w).Error)

	w = env.do(t, http.MethodGet, "/api/loan-applications/"+app.ID+"/documents", nil, bearer(owner.Token))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func uploadDocument(t *testing.T, env *testEnv, appID, token, filename, content string) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/loan-applications/"+appID+"/documents", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func TestDocuments(t *testing.T) {
	docs := &fakeDocs{stored: map[string][]byte{}}
	env := newTestEnvWithDocs(t, docs)
	owner := env.login(t, "asha@example.com", "9876543210")
	other := env.login(t, "ravi@example.com", "9123456789")

	app, err := env.db.CreateLoanApplication(context.Background(), models.NewLoanApplication{
		UserID:     owner.User.ID,
		LoanType:   models.LoanTypeProperty,
		LoanAmount: "2500000",
	})
	require.NoError(t, err)
	docPath := "/api/loan-applications/" + app.ID + "/documents"

	t.Run("nothing uploaded yet", func(t *testing.T) {
		w := env.do(t, http.MethodGet, docPath, nil, bearer(owner.Token))
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, ErrDocumentMissing, decode[ErrorResponse](t, w).Error)
	})

	w := uploadDocument(t, env, app.ID, owner.Token, "deed.pdf", "%PDF-1.4")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	first := decode[LoanApplicationResponse](t, w)
	require.NotNil(t, first.Documents)

	t.Run("owner gets a presigned link", func(t *testing.T) {
		w := env.do(t, http.MethodGet, docPath, nil, bearer(owner.Token))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		link := decode[DocumentLinkResponse](t, w)
		assert.Contains(t, link.URL, *first.Documents)
		assert.True(t, link.ExpiresAt.After(time.Now()))
	})

	t.Run("hidden from other users", func(t *testing.T) {
		w := env.do(t, http.MethodGet, docPath, nil, bearer(other.Token))
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, ErrApplicationMissing, decode[ErrorResponse](t, w).Error)
	})

	t.Run("requires session", func(t *testing.T) {
		w := env.do(t, http.MethodGet, docPath, nil, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("replacing drops the old object", func(t *testing.T) {
		w := uploadDocument(t, env, app.ID, owner.Token, "deed-signed.pdf", "%PDF-1.7")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		second := decode[LoanApplicationResponse](t, w)
		require.NotNil(t, second.Documents)

		assert.NotContains(t, docs.stored, *first.Documents)
		assert.Equal(t, []byte("%PDF-1.7"), docs.stored[*second.Documents])
	})
}

func TestCreateConsultation(t *testing.T) {
	env := newTestEnv(t)

	valid := map[string]any{
		"name":             "Asha Rao",
		"mobile":           "9876543210",
		"email":            "asha@example.com",
		"preferredDate":    "2026-11-02",
		"preferredTime":    "10:30",
		"consultationType": "video",
	}

	w := env.do(t, http.MethodPost, "/api/consultations", valid, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[models.Consultation](t, w)
	assert.Equal(t, models.ConsultationPending, created.Status)

	select {
	case sent := <-env.mailer.sent:
		assert.Equal(t, created.ID, sent.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("confirmation email was not sent")
	}

	t.Run("mail failure does not fail the booking", func(t *testing.T) {
		env.mailer.err = errors.New("smtp down")
		w := env.do(t, http.MethodPost, "/api/consultations", valid, nil)
		assert.Equal(t, http.StatusCreated, w.Code)
		<-env.mailer.sent
	})

	t.Run("invalid type", func(t *testing.T) {
		body := map[string]any{}
		for k, v := range valid {
			body[k] = v
		}
		body["consultationType"] = "carrier-pigeon"
		w := env.do(t, http.MethodPost, "/api/consultations", body, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, ErrConsultationType, decode[ErrorResponse](t, w).Error)
	})

	t.Run("missing name", func(t *testing.T) {
		body := map[string]any{}
		for k, v := range valid {
			body[k] = v
		}
		delete(body, "name")
		w := env.do(t, http.MethodPost, "/api/consultations", body, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "required", decode[ErrorResponse](t, w).Details["name"])
	})
}

func TestBlogPosts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, slug := range []string{"oldest", "middle", "newest"} {
		_, err := env.db.CreateBlogPost(ctx, models.NewBlogPost{
			Title:     slug,
			Slug:      slug,
			Published: true,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}
	_, err := env.db.CreateBlogPost(ctx, models.NewBlogPost{Title: "draft", Slug: "draft", CreatedAt: base.Add(time.Hour * 24)})
	require.NoError(t, err)

	w := env.do(t, http.MethodGet, "/api/blog-posts?limit=2", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	posts := decode[[]models.BlogPost](t, w)
	require.Len(t, posts, 2)
	assert.Equal(t, "newest", posts[0].Slug)
	assert.Equal(t, "middle", posts[1].Slug)

	w = env.do(t, http.MethodGet, "/api/blog-posts", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.BlogPost](t, w), 3)

	for _, bad := range []string{"0", "-1", "ten"} {
		w = env.do(t, http.MethodGet, "/api/blog-posts?limit="+bad, nil, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, bad)
	}

	w = env.do(t, http.MethodGet, "/api/blog-posts/middle", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "middle", decode[models.BlogPost](t, w).Title)

	w = env.do(t, http.MethodGet, "/api/blog-posts/draft", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		raw  string
		want int
		ok   bool
	}{
		{"", defaultBlogLimit, true},
		{"2", 2, true},
		{"500", maxBlogLimit, true},
		{"0", 0, false},
		{"abc", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseLimit(tt.raw)
		assert.Equal(t, tt.ok, ok, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestSeedBlogPosts(t *testing.T) {
	ctx := context.Background()
	db := sqldb.NewMemory()

	n, err := SeedBlogPosts(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, len(seedPosts), n)

	n, err = SeedBlogPosts(ctx, db)
	require.NoError(t, err)
	assert.Zero(t, n)

	count, err := db.CountBlogPosts(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(seedPosts), count)
}

func TestCalculateEMI(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/calculate-emi", map[string]any{
		"loanAmount":   1000000,
		"interestRate": 12,
		"tenure":       36,
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[CalculateEMIResponse](t, w)
	assert.Equal(t, 33214.0, res.MonthlyEMI)
	assert.Equal(t, 1195715.0, res.TotalAmount)
	assert.Equal(t, 195715.0, res.TotalInterest)

	w = env.do(t, http.MethodPost, "/api/calculate-emi", map[string]any{"loanAmount": 1000000, "interestRate": 12}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/calculate-emi", map[string]any{"loanAmount": -5, "interestRate": 12, "tenure": 12}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "must_be_positive", decode[ErrorResponse](t, w).Details["loanAmount"])

	overflow := map[string]any{"loanAmount": 1e308, "interestRate": 12, "tenure": 600}
	for _, path := range []string{"/api/calculate-emi", "/api/calculate-emi/schedule"} {
		w = env.do(t, http.MethodPost, path, overflow, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
		resp := decode[ErrorResponse](t, w)
		assert.Equal(t, ErrCalculation, resp.Error)
		assert.Equal(t, "result_out_of_range", resp.Details["loanAmount"])
	}

	w = env.do(t, http.MethodPost, "/api/calculate-emi/schedule", map[string]any{"loanAmount": 120000, "interestRate": 0, "tenure": 12}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	schedule := decode[ScheduleResponse](t, w)
	assert.Len(t, schedule.Installments, 12)
	assert.Equal(t, 10000.0, schedule.MonthlyEMI)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/health/liveness", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/health/readiness", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
