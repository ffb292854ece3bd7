package app

import (
	"context"

	"github.com/nourabuild/advisory-service/internal/sdk/models"
	"github.com/nourabuild/advisory-service/internal/sdk/sqldb"
	"github.com/nourabuild/advisory-service/internal/services/auth"
	"github.com/nourabuild/advisory-service/internal/services/jwt"
	"github.com/nourabuild/advisory-service/internal/services/loans"
	"github.com/nourabuild/advisory-service/internal/services/oauth"
	"github.com/nourabuild/advisory-service/internal/services/otp"
	"github.com/nourabuild/advisory-service/internal/services/sentry"
	"go.uber.org/zap"
)

// ConsultationMailer sends the booking confirmation email.
type ConsultationMailer interface {
	SendConsultationConfirmation(ctx context.Context, c models.Consultation) error
}

// Options are the HTTP-facing settings taken from config.
type Options struct {
	FrontendURL string
	CORSOrigins []string
	AdminAPIKey string
}

// Deps collects every collaborator the handlers use. Mailer may be nil.
type Deps struct {
	DB     sqldb.Service
	Auth   *auth.Service
	Loans  *loans.Service
	OTP    otp.Provider
	OAuth  *oauth.Registry
	State  *jwt.StateSigner
	Mailer ConsultationMailer
	Sentry *sentry.SentryService
	Log    *zap.Logger
}

type App struct {
	db     sqldb.Service
	auth   *auth.Service
	loans  *loans.Service
	otp    otp.Provider
	oauth  *oauth.Registry
	state  *jwt.StateSigner
	email  ConsultationMailer
	sentry *sentry.SentryService
	log    *zap.Logger
	opts   Options
}

func NewApp(d Deps, opts Options) *App {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &App{
		db:     d.DB,
		auth:   d.Auth,
		loans:  d.Loans,
		otp:    d.OTP,
		oauth:  d.OAuth,
		state:  d.State,
		email:  d.Mailer,
		sentry: d.Sentry,
		log:    log,
		opts:   opts,
	}
}
