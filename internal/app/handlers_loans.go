package app

import (
	"errors"
	"net/http"

	sentrygo "github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/jinzhu/copier"
	"github.com/nourabuild/advisory-service/internal/sdk/middleware"
	"github.com/nourabuild/advisory-service/internal/sdk/models"
	"github.com/nourabuild/advisory-service/internal/services/loans"
	"github.com/nourabuild/advisory-service/internal/services/minio"
	"go.uber.org/zap"
)

func toApplicationResponse(app models.LoanApplication) (LoanApplicationResponse, error) {
	var resp LoanApplicationResponse
	if err := copier.Copy(&resp, &app); err != nil {
		return LoanApplicationResponse{}, err
	}
	resp.Progress = app.Status.Progress()
	return resp, nil
}

func (a *App) writeApplication(c *gin.Context, status int, handler string, app models.LoanApplication) {
	resp, err := toApplicationResponse(app)
	if err != nil {
		a.toSentry(c, handler, "response", sentrygo.LevelError, err)
		writeError(c, ErrRetrieveApps, nil)
		return
	}
	c.JSON(status, resp)
}

// loanErrorCode maps a loans service error to a response code. Unknown
// errors map to fallback.
func loanErrorCode(err error, fallback string) string {
	switch {
	case errors.Is(err, loans.ErrNotFound):
		return ErrApplicationMissing
	case errors.Is(err, loans.ErrUserNotFound):
		return ErrUserNotFound
	case errors.Is(err, loans.ErrInvalidLoanType):
		return ErrInvalidLoanType
	case errors.Is(err, loans.ErrInvalidAmount):
		return ErrInvalidAmount
	case errors.Is(err, loans.ErrUnknownStatus):
		return ErrUnknownStatus
	case errors.Is(err, loans.ErrInvalidTransition):
		return ErrInvalidTransition
	case errors.Is(err, loans.ErrApplicationReadOnly):
		return ErrApplicationClosed
	case errors.Is(err, loans.ErrDocumentsDisabled):
		return ErrDocumentsOff
	case errors.Is(err, loans.ErrNoDocument):
		return ErrDocumentMissing
	case errors.Is(err, minio.ErrTooLarge):
		return ErrDocumentTooLarge
	}
	return fallback
}

func (a *App) respondLoanError(c *gin.Context, handler string, err error, fallback string) {
	code := loanErrorCode(err, fallback)
	if code == fallback {
		a.toSentry(c, handler, "loans", sentrygo.LevelError, err)
	}
	writeError(c, code, nil)
}

// ownedApplication loads the application and hides it from anyone but its
// owner.
func (a *App) ownedApplication(c *gin.Context, handler string) (models.LoanApplication, bool) {
	user, err := middleware.GetUser(c)
	if err != nil {
		writeError(c, ErrUnauthorized, nil)
		return models.LoanApplication{}, false
	}

	app, err := a.loans.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.respondLoanError(c, handler, err, ErrRetrieveApps)
		return models.LoanApplication{}, false
	}
	if app.UserID != user.ID {
		writeError(c, ErrApplicationMissing, nil)
		return models.LoanApplication{}, false
	}
	return app, true
}

func (a *App) HandleCreateLoanApplication(c *gin.Context) {
	user, err := middleware.GetUser(c)
	if err != nil {
		writeError(c, ErrUnauthorized, nil)
		return
	}

	var req CreateLoanApplicationRequest
	if !bindJSON(c, &req) {
		return
	}

	app, err := a.loans.Create(c.Request.Context(), loans.CreateInput{
		UserID:        user.ID,
		LoanType:      req.LoanType,
		LoanAmount:    string(req.LoanAmount),
		BusinessType:  req.BusinessType,
		MonthlyIncome: req.MonthlyIncome.ptr(),
		ExistingLoans: req.ExistingLoans,
		PropertyValue: req.PropertyValue.ptr(),
		Notes:         req.Notes,
	})
	if err != nil {
		a.respondLoanError(c, "create_application", err, ErrCreateApplication)
		return
	}

	a.writeApplication(c, http.StatusCreated, "create_application", app)
}

func (a *App) HandleGetLoanApplication(c *gin.Context) {
	app, ok := a.ownedApplication(c, "get_application")
	if !ok {
		return
	}
	a.writeApplication(c, http.StatusOK, "get_application", app)
}

func (a *App) HandleListUserApplications(c *gin.Context) {
	apps, err := a.loans.ListByUser(c.Request.Context(), c.Param("userId"))
	if err != nil {
		a.toSentry(c, "list_applications", "db", sentrygo.LevelError, err)
		writeError(c, ErrRetrieveApps, nil)
		return
	}

	resp := make([]LoanApplicationResponse, 0, len(apps))
	for _, app := range apps {
		item, err := toApplicationResponse(app)
		if err != nil {
			a.toSentry(c, "list_applications", "response", sentrygo.LevelError, err)
			writeError(c, ErrRetrieveApps, nil)
			return
		}
		resp = append(resp, item)
	}

	c.JSON(http.StatusOK, resp)
}

// HandleUpdateApplicationStatus is the back-office status change.
func (a *App) HandleUpdateApplicationStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	app, err := a.loans.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status, req.Notes)
	if err != nil {
		a.respondLoanError(c, "update_status", err, ErrUpdateStatus)
		return
	}

	a.log.Info("application status changed",
		zap.String("application_id", app.ID),
		zap.String("status", string(app.Status)),
	)
	a.writeApplication(c, http.StatusOK, "update_status", app)
}

// HandleSubmitApplication lets the owner move a draft to submitted.
func (a *App) HandleSubmitApplication(c *gin.Context) {
	app, ok := a.ownedApplication(c, "submit_application")
	if !ok {
		return
	}

	updated, err := a.loans.UpdateStatus(c.Request.Context(), app.ID, string(models.StatusSubmitted), nil)
	if err != nil {
		a.respondLoanError(c, "submit_application", err, ErrUpdateStatus)
		return
	}

	a.writeApplication(c, http.StatusOK, "submit_application", updated)
}

func (a *App) HandleUploadDocument(c *gin.Context) {
	app, ok := a.ownedApplication(c, "upload_document")
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, minio.MaxDocumentSize+(1<<20))
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(c, ErrDocumentTooLarge, nil)
			return
		}
		writeError(c, ErrMissingFields, map[string]string{"file": "required"})
		return
	}
	if fh.Size > minio.MaxDocumentSize {
		writeError(c, ErrDocumentTooLarge, nil)
		return
	}

	f, err := fh.Open()
	if err != nil {
		a.toSentry(c, "upload_document", "open", sentrygo.LevelError, err)
		writeError(c, ErrUploadDocument, nil)
		return
	}
	defer f.Close()

	updated, err := a.loans.AttachDocument(c.Request.Context(), app.ID, fh.Filename, fh.Header.Get("Content-Type"), f)
	if err != nil {
		a.respondLoanError(c, "upload_document", err, ErrUploadDocument)
		return
	}

	a.writeApplication(c, http.StatusOK, "upload_document", updated)
}

// HandleGetDocument returns a presigned link to the owner's uploaded document.
func (a *App) HandleGetDocument(c *gin.Context) {
	app, ok := a.ownedApplication(c, "get_document")
	if !ok {
		return
	}

	link, err := a.loans.DocumentURL(c.Request.Context(), app.ID)
	if err != nil {
		a.respondLoanError(c, "get_document", err, ErrDocumentURL)
		return
	}

	c.JSON(http.StatusOK, DocumentLinkResponse{URL: link.URL, ExpiresAt: link.ExpiresAt})
}
