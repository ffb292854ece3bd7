package app

import (
	"errors"
	"net/http"
	"strings"

	sentrygo "github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/nourabuild/advisory-service/internal/sdk/models"
	"github.com/nourabuild/advisory-service/internal/sdk/sqldb"
	"github.com/nourabuild/advisory-service/internal/services/auth"
	"github.com/nourabuild/advisory-service/internal/services/otp"
	"go.uber.org/zap"
)

// bindJSON decodes the body and writes the error response on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		if details, ok := bindingDetails(err); ok {
			writeError(c, ErrMissingFields, details)
			return false
		}
		writeError(c, ErrUnmarshal, nil)
		return false
	}
	return true
}

// otpErrorCode maps an OTP collaborator error to a response code.
func otpErrorCode(err error) string {
	switch {
	case errors.Is(err, otp.ErrTooSoon):
		return ErrOTPTooSoon
	case errors.Is(err, otp.ErrBlocked):
		return ErrOTPBlocked
	case errors.Is(err, otp.ErrTooManyAttempts):
		return ErrOTPAttempts
	case errors.Is(err, otp.ErrInvalidMobile):
		return ErrInvalidMobile
	case errors.Is(err, otp.ErrDeliveryFailed):
		return ErrOTPDelivery
	case errors.Is(err, otp.ErrProviderRejected), errors.Is(err, otp.ErrNoCode):
		return ErrInvalidOTP
	}
	return ErrOTPVerify
}

func (a *App) HandleRegister(c *gin.Context) {
	var req RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	if errCode, details := validateRegisterInput(&req); errCode != "" {
		writeError(c, errCode, details)
		return
	}

	provider := models.ProviderNone
	user, err := a.db.CreateUser(c.Request.Context(), models.NewUser{
		FullName:          req.FullName,
		Email:             req.Email,
		Mobile:            req.Mobile,
		Provider:          &provider,
		IsVerified:        false,
		IsProfileComplete: req.Mobile != nil,
	})
	if err != nil {
		if sqldb.IsDuplicateEntry(err) {
			writeError(c, ErrUserExists, nil)
			return
		}
		a.toSentry(c, "register", "db", sentrygo.LevelError, err)
		writeError(c, ErrRegister, nil)
		return
	}

	resp := RegisterResponse{
		UserID:  user.ID,
		Message: "Registration successful",
	}

	if req.Mobile != nil {
		if err := a.otp.Issue(c.Request.Context(), *req.Mobile); err != nil {
			a.log.Warn("otp issue after registration failed", zap.String("user_id", user.ID), zap.Error(err))
			resp.Message = "Registration successful, request a new OTP to verify your mobile"
		} else {
			resp.OTPSent = true
			resp.Message = "Registration successful, OTP sent to your mobile"
		}
	}

	c.JSON(http.StatusCreated, resp)
}

func (a *App) HandleVerifyOTP(c *gin.Context) {
	var req VerifyOTPRequest
	if !bindJSON(c, &req) {
		return
	}
	req.Mobile = strings.TrimSpace(req.Mobile)
	req.OTP = strings.TrimSpace(req.OTP)

	user, err := a.db.GetUserByMobile(c.Request.Context(), req.Mobile)
	if err != nil {
		if sqldb.IsNotFound(err) {
			writeError(c, ErrUserNotFound, nil)
			return
		}
		a.toSentry(c, "verify_otp", "db", sentrygo.LevelError, err)
		writeError(c, ErrOTPVerify, nil)
		return
	}

	ok, err := a.otp.Check(c.Request.Context(), req.Mobile, req.OTP)
	if err != nil {
		code := otpErrorCode(err)
		if statusForError(code) >= http.StatusInternalServerError {
			a.toSentry(c, "verify_otp", "otp", sentrygo.LevelError, err)
		}
		writeError(c, code, nil)
		return
	}
	if !ok {
		writeError(c, ErrInvalidOTP, nil)
		return
	}

	res, err := a.auth.LoginVerifiedMobile(c.Request.Context(), user.ID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeError(c, ErrUserNotFound, nil)
			return
		}
		a.toSentry(c, "verify_otp", "session", sentrygo.LevelError, err)
		writeError(c, ErrCreateSession, nil)
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		User:                   res.User,
		Token:                  res.Token,
		NeedsProfileCompletion: res.NeedsProfileCompletion,
	})
}

func (a *App) HandleResendOTP(c *gin.Context) {
	var req ResendOTPRequest
	if !bindJSON(c, &req) {
		return
	}
	req.Mobile = strings.TrimSpace(req.Mobile)

	if _, err := a.db.GetUserByMobile(c.Request.Context(), req.Mobile); err != nil {
		if sqldb.IsNotFound(err) {
			writeError(c, ErrUserNotFound, nil)
			return
		}
		a.toSentry(c, "resend_otp", "db", sentrygo.LevelError, err)
		writeError(c, ErrOTPVerify, nil)
		return
	}

	if err := a.otp.Issue(c.Request.Context(), req.Mobile); err != nil {
		code := otpErrorCode(err)
		if statusForError(code) >= http.StatusInternalServerError {
			a.toSentry(c, "resend_otp", "otp", sentrygo.LevelError, err)
		}
		writeError(c, code, nil)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "OTP sent"})
}
