package sentry

import (
	"errors"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/nourabuild/advisory-service/internal/config"
	"go.uber.org/zap"
)

func TestDisabledWithoutDSN(t *testing.T) {
	s := NewSentryService(config.Sentry{}, "test", zap.NewNop())
	if s.Enabled() {
		t.Fatal("expected sentry to be disabled without a DSN")
	}

	called := false
	s.WithScope(func(*sentry.Scope) { called = true })
	if called {
		t.Fatal("expected WithScope to be a no-op when disabled")
	}

	s.CaptureException(errors.New("boom"))
	if !s.Flush(time.Millisecond) {
		t.Fatal("expected Flush to report success when disabled")
	}
}

func TestNilServiceIsSafe(t *testing.T) {
	var s *SentryService
	s.CaptureException(errors.New("ignored"))
	if s.Enabled() {
		t.Fatal("expected nil service to be disabled")
	}
}
