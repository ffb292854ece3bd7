package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/nourabuild/advisory-service/internal/services/hash"
	"go.uber.org/zap"
)

const (
	CodeLength  = 6
	CodeTTL     = 5 * time.Minute
	MaxAttempts = 5
	Cooldown    = 60 * time.Second
)

// Sender delivers a freshly issued code.
type Sender interface {
	Send(ctx context.Context, mobile, code string) error
}

// ConsoleSender writes codes to the log. Development only.
type ConsoleSender struct {
	Log *zap.Logger
}

func (s ConsoleSender) Send(_ context.Context, mobile, code string) error {
	s.Log.Info("otp issued", zap.String("mobile", mobile), zap.String("code", code))
	return nil
}

// LocalProvider generates codes itself, stores only their bcrypt hash and
// hands delivery to a Sender.
type LocalProvider struct {
	store   CodeStore
	limiter Limiter
	sender  Sender
	hasher  *hash.HashService
}

func NewLocalProvider(store CodeStore, limiter Limiter, sender Sender, hasher *hash.HashService) *LocalProvider {
	return &LocalProvider{store: store, limiter: limiter, sender: sender, hasher: hasher}
}

func (p *LocalProvider) Issue(ctx context.Context, mobile string) error {
	if !IsValidMobile(mobile) {
		return ErrInvalidMobile
	}
	if p.limiter != nil {
		if err := p.limiter.Allow(ctx, mobile); err != nil {
			return err
		}
	}

	code, err := generateCode(CodeLength)
	if err != nil {
		return err
	}
	h, err := p.hasher.Hash(code)
	if err != nil {
		return err
	}
	if err := p.store.Save(ctx, mobile, h, CodeTTL); err != nil {
		return fmt.Errorf("store code: %w", err)
	}

	if err := p.sender.Send(ctx, mobile, code); err != nil {
		_ = p.store.Delete(ctx, mobile)
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return nil
}

// Check consumes one attempt. A correct code is single use.
func (p *LocalProvider) Check(ctx context.Context, mobile, code string) (bool, error) {
	entry, err := p.store.Get(ctx, mobile)
	if err != nil {
		if errors.Is(err, ErrNoCode) {
			return false, nil
		}
		return false, fmt.Errorf("load code: %w", err)
	}

	attempts, err := p.store.IncrAttempts(ctx, mobile)
	if err != nil {
		if errors.Is(err, ErrNoCode) {
			return false, nil
		}
		return false, fmt.Errorf("count attempt: %w", err)
	}
	if attempts > MaxAttempts {
		_ = p.store.Delete(ctx, mobile)
		return false, ErrTooManyAttempts
	}

	if !p.hasher.Check(code, entry.Hash) {
		return false, nil
	}

	if err := p.store.Delete(ctx, mobile); err != nil {
		return false, fmt.Errorf("consume code: %w", err)
	}
	return true, nil
}

func generateCode(length int) (string, error) {
	max := big.NewInt(1)
	for i := 0; i < length; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", length, n), nil
}
