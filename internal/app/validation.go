package app

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/nourabuild/advisory-service/internal/sdk/models"
	"github.com/nourabuild/advisory-service/internal/services/otp"
)

var fieldValidator = validator.New(validator.WithRequiredStructEnabled())

// validEmail expects an already trimmed and lowercased address.
func validEmail(email string) bool {
	return fieldValidator.Var(email, "required,email") == nil
}

func validateRegisterInput(req *RegisterRequest) (string, map[string]string) {
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	validationErrors := make(map[string]string)
	if req.FullName == "" {
		validationErrors["fullName"] = "required"
	}
	if req.Email == "" {
		validationErrors["email"] = "required"
	}
	if len(validationErrors) > 0 {
		return ErrMissingFields, validationErrors
	}

	if !validEmail(req.Email) {
		return ErrInvalidEmail, map[string]string{"email": "invalid_email_format"}
	}

	if req.Mobile != nil {
		m := strings.TrimSpace(*req.Mobile)
		if m == "" {
			req.Mobile = nil
		} else if !otp.IsValidMobile(m) {
			return ErrInvalidMobile, map[string]string{"mobile": "invalid_mobile_format"}
		} else {
			req.Mobile = &m
		}
	}

	return "", nil
}

func validateConsultationInput(req *CreateConsultationRequest) (string, map[string]string) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Mobile = strings.TrimSpace(req.Mobile)

	validationErrors := make(map[string]string)
	if req.Name == "" {
		validationErrors["name"] = "required"
	}
	if strings.TrimSpace(req.PreferredDate) == "" {
		validationErrors["preferredDate"] = "required"
	}
	if strings.TrimSpace(req.PreferredTime) == "" {
		validationErrors["preferredTime"] = "required"
	}
	if len(validationErrors) > 0 {
		return ErrMissingFields, validationErrors
	}

	if !validEmail(req.Email) {
		return ErrInvalidEmail, map[string]string{"email": "invalid_email_format"}
	}
	if !otp.IsValidMobile(req.Mobile) {
		return ErrInvalidMobile, map[string]string{"mobile": "invalid_mobile_format"}
	}
	if !models.ValidConsultationType(req.ConsultationType) {
		return ErrConsultationType, map[string]string{"consultationType": "one_of video phone in-person"}
	}

	return "", nil
}

func validateMobile(mobile string) (string, map[string]string) {
	if !otp.IsValidMobile(mobile) {
		return ErrInvalidMobile, map[string]string{"mobile": "invalid_mobile_format"}
	}
	return "", nil
}
