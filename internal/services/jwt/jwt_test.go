package jwt

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const testSecret = "test-state-secret"

func TestSign(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := NewStateSigner(testSecret, time.Minute)
		state, err := srv.Sign("google", "/dashboard")
		if err != nil {
			t.Fatalf("Sign returned error: %v", err)
		}
		if state == "" {
			t.Fatal("expected non-empty state")
		}
	})

	t.Run("missing secret", func(t *testing.T) {
		srv := NewStateSigner("", time.Minute)

		_, err := srv.Sign("google", "")
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if !strings.Contains(err.Error(), "creating state token") {
			t.Fatalf("expected wrapped create error, got %v", err)
		}
	})

	t.Run("unique nonce", func(t *testing.T) {
		srv := NewStateSigner(testSecret, time.Minute)
		a, _ := srv.Sign("google", "")
		b, _ := srv.Sign("google", "")
		if a == b {
			t.Fatal("expected distinct state tokens")
		}
	})
}

func TestVerify(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := NewStateSigner(testSecret, time.Minute)
		state, err := srv.Sign("linkedin", "/apply")
		if err != nil {
			t.Fatalf("Sign returned error: %v", err)
		}

		claims, err := srv.Verify(state, "linkedin")
		if err != nil {
			t.Fatalf("Verify returned error: %v", err)
		}
		if claims.Redirect != "/apply" {
			t.Fatalf("expected redirect /apply, got %q", claims.Redirect)
		}
	})

	t.Run("empty token", func(t *testing.T) {
		srv := NewStateSigner(testSecret, time.Minute)

		_, err := srv.Verify("", "google")
		if !errors.Is(err, ErrTokenNotFound) {
			t.Fatalf("expected ErrTokenNotFound, got %v", err)
		}
	})

	t.Run("wrong provider", func(t *testing.T) {
		srv := NewStateSigner(testSecret, time.Minute)
		state, _ := srv.Sign("google", "")

		_, err := srv.Verify(state, "microsoft")
		if !errors.Is(err, ErrProviderMismatch) {
			t.Fatalf("expected ErrProviderMismatch, got %v", err)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		state, _ := NewStateSigner(testSecret, time.Minute).Sign("google", "")

		_, err := NewStateSigner("other-secret", time.Minute).Verify(state, "google")
		if !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("expired", func(t *testing.T) {
		srv := NewStateSigner(testSecret, time.Minute)
		state, _ := srv.Sign("google", "")

		srv.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
		_, err := srv.Verify(state, "google")
		if !errors.Is(err, ErrExpiredToken) {
			t.Fatalf("expected ErrExpiredToken, got %v", err)
		}
	})

	t.Run("garbage", func(t *testing.T) {
		srv := NewStateSigner(testSecret, time.Minute)

		_, err := srv.Verify("not-a-jwt", "google")
		if !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("expected ErrInvalidToken, got %v", err)
		}
	})
}
