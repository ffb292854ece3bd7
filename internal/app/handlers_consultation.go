package app

import (
	"context"
	"net/http"
	"time"

	sentrygo "github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/nourabuild/advisory-service/internal/sdk/models"
	"go.uber.org/zap"
)

const confirmationTimeout = 15 * time.Second

func (a *App) HandleCreateConsultation(c *gin.Context) {
	var req CreateConsultationRequest
	if !bindJSON(c, &req) {
		return
	}

	if errCode, details := validateConsultationInput(&req); errCode != "" {
		writeError(c, errCode, details)
		return
	}

	consultation, err := a.db.CreateConsultation(c.Request.Context(), models.NewConsultation{
		Name:             req.Name,
		Mobile:           req.Mobile,
		Email:            req.Email,
		BusinessName:     req.BusinessName,
		PreferredDate:    req.PreferredDate,
		PreferredTime:    req.PreferredTime,
		ConsultationType: req.ConsultationType,
		Message:          req.Message,
	})
	if err != nil {
		a.toSentry(c, "create_consultation", "db", sentrygo.LevelError, err)
		writeError(c, ErrCreateConsultation, nil)
		return
	}

	if a.email != nil {
		ctx := context.WithoutCancel(c.Request.Context())
		go a.sendConfirmation(ctx, consultation)
	}

	c.JSON(http.StatusCreated, consultation)
}

// sendConfirmation runs after the response is written. Failures never reach
// the client.
func (a *App) sendConfirmation(ctx context.Context, consultation models.Consultation) {
	ctx, cancel := context.WithTimeout(ctx, confirmationTimeout)
	defer cancel()

	if err := a.email.SendConsultationConfirmation(ctx, consultation); err != nil {
		a.log.Warn("consultation confirmation failed",
			zap.String("consultation_id", consultation.ID),
			zap.Error(err),
		)
		a.sentry.WithScope(func(scope *sentrygo.Scope) {
			scope.SetTag("handler", "create_consultation")
			scope.SetExtra("consultation_id", consultation.ID)
			scope.SetLevel(sentrygo.LevelWarning)
			a.sentry.CaptureException(err)
		})
	}
}
