// Package mailtrap provides email sending functionality via Mailtrap API.
package mailtrap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/nourabuild/advisory-service/internal/config"
	"github.com/nourabuild/advisory-service/internal/sdk/models"
)

type MailtrapService struct {
	APIKey string
	URL    string
	From   EmailRecipient
	client *http.Client
}

func NewMailtrapService(cfg config.Mailtrap) *MailtrapService {
	return &MailtrapService{
		APIKey: cfg.APIKey,
		URL:    cfg.URL,
		From:   EmailRecipient{Email: cfg.FromEmail, Name: cfg.FromName},
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether an API key is configured.
func (m *MailtrapService) Enabled() bool {
	return m != nil && m.APIKey != ""
}

// EmailRecipient represents an email recipient
type EmailRecipient struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// EmailRequest represents the request payload for sending an email
type EmailRequest struct {
	From     EmailRecipient   `json:"from"`
	To       []EmailRecipient `json:"to"`
	Subject  string           `json:"subject"`
	HTML     string           `json:"html,omitempty"`
	Text     string           `json:"text,omitempty"`
	Category string           `json:"category,omitempty"`
}

var consultationHTML = template.Must(template.New("consultation").Parse(`
<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<title>Consultation Request Received</title>
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
	<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
		<h2>We received your consultation request</h2>
		<p>Hello {{.Name}},</p>
		<p>Thank you for booking a {{.ConsultationType}} consultation with us.</p>
		<p><strong>Preferred slot:</strong> {{.PreferredDate}} at {{.PreferredTime}}</p>
		<p>An advisor will call you on {{.Mobile}} to confirm the appointment.</p>
		<hr style="border: none; border-top: 1px solid #ddd; margin: 30px 0;">
		<p style="font-size: 12px; color: #666;">This is an automated message, please do not reply.</p>
	</div>
</body>
</html>
`))

// SendConsultationConfirmation emails the requester a summary of the booking.
func (m *MailtrapService) SendConsultationConfirmation(ctx context.Context, c models.Consultation) error {
	var html strings.Builder
	if err := consultationHTML.Execute(&html, c); err != nil {
		return fmt.Errorf("failed to render email: %w", err)
	}

	textBody := fmt.Sprintf(`
We received your consultation request

Hello %s,

Thank you for booking a %s consultation with us.
Preferred slot: %s at %s

An advisor will call you on %s to confirm the appointment.

---
This is an automated message, please do not reply.
	`, c.Name, c.ConsultationType, c.PreferredDate, c.PreferredTime, c.Mobile)

	emailReq := EmailRequest{
		From: m.From,
		To: []EmailRecipient{
			{
				Email: c.Email,
				Name:  c.Name,
			},
		},
		Subject:  "Your consultation request",
		HTML:     html.String(),
		Text:     textBody,
		Category: "consultation_confirmation",
	}

	return m.sendEmail(ctx, emailReq)
}

// sendEmail sends an email via the Mailtrap API
func (m *MailtrapService) sendEmail(ctx context.Context, emailReq EmailRequest) error {
	payload, err := json.Marshal(emailReq)
	if err != nil {
		return fmt.Errorf("failed to marshal email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.URL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+m.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("mailtrap API returned status: %d", resp.StatusCode)
	}

	return nil
}
