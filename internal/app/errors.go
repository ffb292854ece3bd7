package app

import (
	"errors"
	"net/http"
	"strings"

	sentrygo "github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	ErrUnmarshal          = "invalid_request_body"
	ErrMissingFields      = "missing_required_fields"
	ErrInvalidEmail       = "invalid_email"
	ErrInvalidMobile      = "invalid_mobile"
	ErrUserExists         = "user_already_exists"
	ErrUnauthorized       = "unauthorized"
	ErrForbidden          = "forbidden"
	ErrInvalidSession     = "invalid_session"
	ErrUserNotFound       = "user_not_found"
	ErrMobileTaken        = "mobile_already_registered"
	ErrRegister           = "internal_register_error"
	ErrCompleteProfile    = "internal_complete_profile_error"
	ErrCreateSession      = "internal_create_session_error"
	ErrLogout             = "internal_logout_error"
	ErrInvalidOTP         = "invalid_otp"
	ErrOTPTooSoon         = "otp_rate_limited"
	ErrOTPBlocked         = "otp_blocked"
	ErrOTPAttempts        = "otp_attempts_exceeded"
	ErrOTPDelivery        = "otp_delivery_failed"
	ErrOTPVerify          = "internal_otp_error"
	ErrUnknownProvider    = "unknown_provider"
	ErrInvalidState       = "invalid_oauth_state"
	ErrProviderExchange   = "provider_exchange_failed"
	ErrProviderEmail      = "provider_email_missing"
	ErrSocialLogin        = "internal_social_login_error"
	ErrInvalidLoanType    = "invalid_loan_type"
	ErrInvalidAmount      = "invalid_amount"
	ErrApplicationMissing = "application_not_found"
	ErrUnknownStatus      = "unknown_status"
	ErrInvalidTransition  = "invalid_status_transition"
	ErrApplicationClosed  = "application_closed"
	ErrCreateApplication  = "internal_create_application_error"
	ErrRetrieveApps       = "internal_retrieve_applications_error"
	ErrUpdateStatus       = "internal_update_status_error"
	ErrDocumentsOff       = "documents_unavailable"
	ErrDocumentTooLarge   = "document_too_large"
	ErrUploadDocument     = "internal_upload_document_error"
	ErrDocumentMissing    = "document_not_found"
	ErrDocumentURL        = "internal_document_url_error"
	ErrConsultationType   = "invalid_consultation_type"
	ErrCreateConsultation = "internal_create_consultation_error"
	ErrInvalidLimit       = "invalid_limit"
	ErrPostNotFound       = "post_not_found"
	ErrRetrievePosts      = "internal_retrieve_posts_error"
	ErrCalculation        = "invalid_calculation_input"
)

var errorStatusMap = map[string]int{
	ErrUnmarshal:          http.StatusBadRequest,
	ErrMissingFields:      http.StatusBadRequest,
	ErrInvalidEmail:       http.StatusBadRequest,
	ErrInvalidMobile:      http.StatusBadRequest,
	ErrUserExists:         http.StatusConflict,
	ErrUnauthorized:       http.StatusUnauthorized,
	ErrForbidden:          http.StatusForbidden,
	ErrInvalidSession:     http.StatusUnauthorized,
	ErrUserNotFound:       http.StatusNotFound,
	ErrMobileTaken:        http.StatusConflict,
	ErrRegister:           http.StatusInternalServerError,
	ErrCompleteProfile:    http.StatusInternalServerError,
	ErrCreateSession:      http.StatusInternalServerError,
	ErrLogout:             http.StatusInternalServerError,
	ErrInvalidOTP:         http.StatusBadRequest,
	ErrOTPTooSoon:         http.StatusTooManyRequests,
	ErrOTPBlocked:         http.StatusTooManyRequests,
	ErrOTPAttempts:        http.StatusTooManyRequests,
	ErrOTPDelivery:        http.StatusBadGateway,
	ErrOTPVerify:          http.StatusInternalServerError,
	ErrUnknownProvider:    http.StatusBadRequest,
	ErrInvalidState:       http.StatusBadRequest,
	ErrProviderExchange:   http.StatusBadRequest,
	ErrProviderEmail:      http.StatusBadRequest,
	ErrSocialLogin:        http.StatusInternalServerError,
	ErrInvalidLoanType:    http.StatusBadRequest,
	ErrInvalidAmount:      http.StatusBadRequest,
	ErrApplicationMissing: http.StatusNotFound,
	ErrUnknownStatus:      http.StatusBadRequest,
	ErrInvalidTransition:  http.StatusConflict,
	ErrApplicationClosed:  http.StatusConflict,
	ErrCreateApplication:  http.StatusInternalServerError,
	ErrRetrieveApps:       http.StatusInternalServerError,
	ErrUpdateStatus:       http.StatusInternalServerError,
	ErrDocumentsOff:       http.StatusServiceUnavailable,
	ErrDocumentTooLarge:   http.StatusRequestEntityTooLarge,
	ErrUploadDocument:     http.StatusInternalServerError,
	ErrDocumentMissing:    http.StatusNotFound,
	ErrDocumentURL:        http.StatusInternalServerError,
	ErrConsultationType:   http.StatusBadRequest,
	ErrCreateConsultation: http.StatusInternalServerError,
	ErrInvalidLimit:       http.StatusBadRequest,
	ErrPostNotFound:       http.StatusNotFound,
	ErrRetrievePosts:      http.StatusInternalServerError,
	ErrCalculation:        http.StatusBadRequest,
}

// errorMessages are the client-facing texts. They stay generic on purpose.
var errorMessages = map[string]string{
	ErrRegister:           "Registration failed",
	ErrInvalidSession:     "Invalid session",
	ErrUnauthorized:       "Authentication required",
	ErrForbidden:          "Access denied",
	ErrInvalidOTP:         "Invalid OTP",
	ErrOTPTooSoon:         "Please wait before requesting another OTP",
	ErrOTPBlocked:         "Too many OTP requests, try again later",
	ErrOTPAttempts:        "Too many incorrect attempts, request a new OTP",
	ErrUserExists:         "User already exists",
	ErrMobileTaken:        "Mobile number already registered",
	ErrUserNotFound:       "User not found",
	ErrApplicationMissing: "Application not found",
	ErrPostNotFound:       "Post not found",
	ErrDocumentMissing:    "No document uploaded",
	ErrInvalidTransition:  "Status change not allowed",
	ErrSocialLogin:        "Login failed",
	ErrProviderExchange:   "Login failed",
}

func statusForError(code string) int {
	if status, ok := errorStatusMap[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func messageForError(code string) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	switch status := statusForError(code); {
	case status >= 500:
		return "Something went wrong"
	case status == http.StatusNotFound:
		return "Not found"
	default:
		return "Invalid request"
	}
}

func writeError(c *gin.Context, code string, details map[string]string) {
	c.AbortWithStatusJSON(statusForError(code), ErrorResponse{
		Error:   code,
		Message: messageForError(code),
		Details: details,
	})
}

// bindingDetails turns validator failures into field -> rule details.
// It reports false when err is a malformed body rather than a failed rule.
func bindingDetails(err error) (map[string]string, bool) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, false
	}
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		details[lowerFirst(fe.Field())] = fe.Tag()
	}
	return details, true
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// toSentry reports a server-side failure to Sentry and the log.
func (a *App) toSentry(c *gin.Context, handler, errType string, level sentrygo.Level, err error) {
	a.log.Error("handler error",
		zap.String("handler", handler),
		zap.String("error_type", errType),
		zap.Error(err),
	)
	a.sentry.WithScope(func(scope *sentrygo.Scope) {
		scope.SetTag("handler", handler)
		scope.SetExtra("error_type", errType)
		scope.SetLevel(level)
		if reqID := c.GetHeader("X-Request-ID"); reqID != "" {
			scope.SetTag("request_id", reqID)
		}
		a.sentry.CaptureException(err)
	})
}
