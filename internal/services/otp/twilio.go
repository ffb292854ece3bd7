package otp

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/verify/v2"
	"go.uber.org/zap"
)

// verifyAPI is the slice of the Twilio Verify client the provider uses.
type verifyAPI interface {
	CreateVerification(serviceSid string, params *openapi.CreateVerificationParams) (*openapi.VerifyV2Verification, error)
	CreateVerificationCheck(serviceSid string, params *openapi.CreateVerificationCheckParams) (*openapi.VerifyV2VerificationCheck, error)
}

// TwilioProvider delegates code generation and checking to Twilio Verify.
type TwilioProvider struct {
	api         verifyAPI
	serviceSID  string
	countryCode string
	limiter     Limiter
	log         *zap.Logger
}

func NewTwilioProvider(accountSID, authToken, serviceSID, countryCode string, limiter Limiter, log *zap.Logger) *TwilioProvider {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioProvider{
		api:         client.VerifyV2,
		serviceSID:  serviceSID,
		countryCode: countryCode,
		limiter:     limiter,
		log:         log,
	}
}

func (p *TwilioProvider) Issue(ctx context.Context, mobile string) error {
	to, err := NormalizeMobile(mobile, p.countryCode)
	if err != nil {
		return err
	}
	if p.limiter != nil {
		if err := p.limiter.Allow(ctx, mobile); err != nil {
			return err
		}
	}

	channel := "sms"
	res, err := p.api.CreateVerification(p.serviceSID, &openapi.CreateVerificationParams{
		Channel: &channel,
		To:      &to,
	})
	if err != nil {
		p.log.Error("failed sending otp", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	if res.Status != nil {
		p.log.Info("sending otp status", zap.String("status", *res.Status))
	}
	return nil
}

func (p *TwilioProvider) Check(_ context.Context, mobile, code string) (bool, error) {
	to, err := NormalizeMobile(mobile, p.countryCode)
	if err != nil {
		return false, err
	}

	check, err := p.api.CreateVerificationCheck(p.serviceSID, &openapi.CreateVerificationCheckParams{
		Code: &code,
		To:   &to,
	})
	if err != nil {
		// Verify answers 404 once a verification expired or was used up.
		p.log.Warn("otp verification check failed", zap.Error(err))
		return false, fmt.Errorf("%w: %v", ErrProviderRejected, err)
	}
	return check.Valid != nil && *check.Valid, nil
}
