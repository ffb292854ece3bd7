package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/nourabuild/advisory-service/internal/sdk/models"
	"github.com/nourabuild/advisory-service/internal/services/calculator"
	"github.com/shopspring/decimal"
)

// NumericString accepts either a JSON string or a JSON number and keeps the
// textual form, so amounts never pass through float64.
type NumericString string

func (n *NumericString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = NumericString(s)
		return nil
	}
	if _, err := decimal.NewFromString(string(b)); err != nil {
		return errors.New("expected a number or numeric string")
	}
	*n = NumericString(b)
	return nil
}

func (n *NumericString) ptr() *string {
	if n == nil || *n == "" {
		return nil
	}
	s := string(*n)
	return &s
}

// ---------------------------------------------
// Users and auth
// ---------------------------------------------

type RegisterRequest struct {
	FullName string  `json:"fullName" binding:"required"`
	Email    string  `json:"email" binding:"required"`
	Mobile   *string `json:"mobile"`
}

type RegisterResponse struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
	OTPSent bool   `json:"otpSent"`
}

type VerifyOTPRequest struct {
	Mobile string `json:"mobile" binding:"required"`
	OTP    string `json:"otp" binding:"required"`
}

type ResendOTPRequest struct {
	Mobile string `json:"mobile" binding:"required"`
}

type SocialLoginRequest struct {
	Provider    string `json:"provider" binding:"required"`
	Code        string `json:"code" binding:"required"`
	RedirectURI string `json:"redirectUri"`
}

type CompleteProfileRequest struct {
	Mobile string `json:"mobile"`
}

type LoginResponse struct {
	User                   models.User `json:"user"`
	Token                  string      `json:"token"`
	NeedsProfileCompletion bool        `json:"needsProfileCompletion"`
}

type UserResponse struct {
	User                   models.User `json:"user"`
	NeedsProfileCompletion bool        `json:"needsProfileCompletion"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// ---------------------------------------------
// Loan applications
// ---------------------------------------------

type CreateLoanApplicationRequest struct {
	LoanType      string         `json:"loanType" binding:"required"`
	LoanAmount    NumericString  `json:"loanAmount" binding:"required"`
	BusinessType  *string        `json:"businessType"`
	MonthlyIncome *NumericString `json:"monthlyIncome"`
	ExistingLoans *bool          `json:"existingLoans"`
	PropertyValue *NumericString `json:"propertyValue"`
	Notes         *string        `json:"notes"`
}

type UpdateStatusRequest struct {
	Status string  `json:"status" binding:"required"`
	Notes  *string `json:"notes"`
}

// LoanApplicationResponse is the stored row plus the display progress.
type LoanApplicationResponse struct {
	ID            string                   `json:"id"`
	UserID        string                   `json:"userId"`
	LoanType      models.LoanType          `json:"loanType"`
	LoanAmount    string                   `json:"loanAmount"`
	BusinessType  *string                  `json:"businessType"`
	MonthlyIncome *string                  `json:"monthlyIncome"`
	ExistingLoans *bool                    `json:"existingLoans"`
	PropertyValue *string                  `json:"propertyValue"`
	Documents     *string                  `json:"documents"`
	Status        models.ApplicationStatus `json:"status"`
	Notes         *string                  `json:"notes"`
	Progress      int                      `json:"progress"`
	CreatedAt     time.Time                `json:"createdAt"`
	UpdatedAt     time.Time                `json:"updatedAt"`
}

// DocumentLinkResponse is a short-lived download link for the uploaded file.
type DocumentLinkResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ---------------------------------------------
// Consultations, blog, calculator
// ---------------------------------------------

type CreateConsultationRequest struct {
	Name             string  `json:"name" binding:"required"`
	Mobile           string  `json:"mobile" binding:"required"`
	Email            string  `json:"email" binding:"required"`
	BusinessName     *string `json:"businessName"`
	PreferredDate    string  `json:"preferredDate" binding:"required"`
	PreferredTime    string  `json:"preferredTime" binding:"required"`
	ConsultationType string  `json:"consultationType" binding:"required"`
	Message          *string `json:"message"`
}

type CalculateEMIRequest struct {
	LoanAmount   *float64 `json:"loanAmount" binding:"required"`
	InterestRate *float64 `json:"interestRate" binding:"required"`
	Tenure       *int     `json:"tenure" binding:"required"`
}

type CalculateEMIResponse = calculator.Result

type ScheduleResponse = calculator.Schedule

// ---------------------------------------------
// Common
// ---------------------------------------------

type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

type LivenessResponse struct {
	Status     string `json:"status"`
	Host       string `json:"host"`
	GOMAXPROCS int    `json:"gomaxprocs"`
}
