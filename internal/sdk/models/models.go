// Package models defines data models for the advisory service.
package models

import "time"

// Provider names the identity provider a user signed in with.
type Provider string

const (
	ProviderGoogle    Provider = "google"
	ProviderLinkedIn  Provider = "linkedin"
	ProviderMicrosoft Provider = "microsoft"
	ProviderNone      Provider = "none"
)

// Valid reports whether p is one of the known providers.
func (p Provider) Valid() bool {
	switch p {
	case ProviderGoogle, ProviderLinkedIn, ProviderMicrosoft, ProviderNone:
		return true
	}
	return false
}

// User represents a user in the system
type User struct {
	ID                string    `json:"id"`
	FullName          string    `json:"fullName"`
	Mobile            *string   `json:"mobile"`
	Email             string    `json:"email"`
	ProfilePicture    *string   `json:"profilePicture"`
	Provider          *Provider `json:"provider"`
	ProviderID        *string   `json:"providerId"`
	IsVerified        bool      `json:"isVerified"`
	IsProfileComplete bool      `json:"isProfileComplete"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

type NewUser struct {
	FullName          string
	Mobile            *string
	Email             string
	ProfilePicture    *string
	Provider          *Provider
	ProviderID        *string
	IsVerified        bool
	IsProfileComplete bool
}

// SocialUpdate carries the fields refreshed on every social login.
type SocialUpdate struct {
	FullName       string
	ProfilePicture *string
	Provider       Provider
	ProviderID     string
}

// Session is an opaque bearer credential bound to a user.
type Session struct {
	UserID    string    `json:"userId"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

type NewSession struct {
	UserID    string
	Token     string
	ExpiresAt time.Time
}

// Consultation is a booking request from the site's contact form.
type Consultation struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Mobile           string    `json:"mobile"`
	Email            string    `json:"email"`
	BusinessName     *string   `json:"businessName"`
	PreferredDate    string    `json:"preferredDate"`
	PreferredTime    string    `json:"preferredTime"`
	ConsultationType string    `json:"consultationType"`
	Message          *string   `json:"message"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"createdAt"`
}

const ConsultationPending = "pending"

var consultationTypes = map[string]struct{}{
	"video":     {},
	"phone":     {},
	"in-person": {},
}

// ValidConsultationType reports whether t is video, phone or in-person.
func ValidConsultationType(t string) bool {
	_, ok := consultationTypes[t]
	return ok
}

type NewConsultation struct {
	Name             string
	Mobile           string
	Email            string
	BusinessName     *string
	PreferredDate    string
	PreferredTime    string
	ConsultationType string
	Message          *string
}

// BlogPost is read-only marketing content.
type BlogPost struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	Excerpt   string    `json:"excerpt"`
	Content   string    `json:"content"`
	Author    string    `json:"author"`
	Category  string    `json:"category"`
	ImageURL  *string   `json:"imageUrl"`
	Published bool      `json:"published"`
	CreatedAt time.Time `json:"createdAt"`
}

type NewBlogPost struct {
	Title     string
	Slug      string
	Excerpt   string
	Content   string
	Author    string
	Category  string
	ImageURL  *string
	Published bool
	CreatedAt time.Time
}
