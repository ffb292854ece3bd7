// Package otp issues and checks one-time codes that prove possession of a
// mobile number. Delivery and verification sit behind Provider so the SMS
// vendor can be swapped without touching the HTTP layer.
package otp

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrTooSoon          = errors.New("please wait before requesting another OTP")
	ErrBlocked          = errors.New("too many OTP requests; try again later")
	ErrTooManyAttempts  = errors.New("too many incorrect attempts")
	ErrNoCode           = errors.New("no active code")
	ErrInvalidMobile    = errors.New("invalid mobile number")
	ErrDeliveryFailed   = errors.New("otp delivery failed")
	ErrProviderRejected = errors.New("otp provider rejected the request")
)

// Provider issues a code to a mobile number and later checks a submitted code.
type Provider interface {
	Issue(ctx context.Context, mobile string) error
	Check(ctx context.Context, mobile, code string) (bool, error)
}

// Limiter decides whether another code may be issued to mobile now.
type Limiter interface {
	Allow(ctx context.Context, mobile string) error
}

// isAllDigit accepts ASCII digits only; other Unicode digits are rejected.
func isAllDigit(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

// IsValidMobile accepts ten digit local numbers and +E.164 numbers.
func IsValidMobile(mobile string) bool {
	mobile = strings.TrimSpace(mobile)
	if strings.HasPrefix(mobile, "+") {
		n := len(mobile) - 1
		return n >= 8 && n <= 15 && isAllDigit(mobile[1:])
	}
	return len(mobile) == 10 && isAllDigit(mobile)
}

// NormalizeMobile returns mobile in E.164, prefixing countryCode to local numbers.
func NormalizeMobile(mobile, countryCode string) (string, error) {
	mobile = strings.TrimSpace(mobile)
	if !IsValidMobile(mobile) {
		return "", ErrInvalidMobile
	}
	if strings.HasPrefix(mobile, "+") {
		return mobile, nil
	}
	return countryCode + mobile, nil
}
