package sentry

import (
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/nourabuild/advisory-service/internal/config"
	"go.uber.org/zap"
)

// SentryService provides Sentry error tracking functionality. Every method is
// a no-op when no DSN is configured.
type SentryService struct {
	initialized bool
}

// NewSentryService initializes the global Sentry client from cfg.
func NewSentryService(cfg config.Sentry, fallbackEnv string, log *zap.Logger) *SentryService {
	if cfg.DSN == "" {
		log.Info("SENTRY_DSN not set, Sentry disabled")
		return &SentryService{initialized: false}
	}

	environment := cfg.Environment
	if environment == "" {
		environment = fallbackEnv
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      environment,
		TracesSampleRate: 1.0,
		EnableTracing:    true,
	})
	if err != nil {
		log.Warn("Sentry initialization failed", zap.Error(err))
		return &SentryService{initialized: false}
	}

	log.Info("Sentry initialized")
	return &SentryService{initialized: true}
}

// Enabled reports whether events are actually sent.
func (s *SentryService) Enabled() bool {
	return s != nil && s.initialized
}

// CaptureException captures an error and sends it to Sentry
func (s *SentryService) CaptureException(err error) {
	if !s.Enabled() {
		return
	}
	sentry.CaptureException(err)
}

// Flush waits for all events to be sent to Sentry
func (s *SentryService) Flush(timeout time.Duration) bool {
	if !s.Enabled() {
		return true
	}
	return sentry.Flush(timeout)
}

// WithScope executes a function with a new Sentry scope
func (s *SentryService) WithScope(fn func(scope *sentry.Scope)) {
	if !s.Enabled() {
		return
	}
	sentry.WithScope(fn)
}
