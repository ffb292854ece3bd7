package models

import "time"

// LoanType is the product a loan application is for.
type LoanType string

const (
	LoanTypeProperty   LoanType = "property"
	LoanTypeBusiness   LoanType = "business"
	LoanTypeCashCredit LoanType = "cash-credit"
)

// Valid reports whether t is a product the site offers.
func (t LoanType) Valid() bool {
	switch t {
	case LoanTypeProperty, LoanTypeBusiness, LoanTypeCashCredit:
		return true
	}
	return false
}

// ApplicationStatus is the lifecycle state of a loan application.
type ApplicationStatus string

const (
	StatusDraft       ApplicationStatus = "draft"
	StatusSubmitted   ApplicationStatus = "submitted"
	StatusUnderReview ApplicationStatus = "under-review"
	StatusApproved    ApplicationStatus = "approved"
	StatusRejected    ApplicationStatus = "rejected"
)

var statusProgress = map[ApplicationStatus]int{
	StatusDraft:       25,
	StatusSubmitted:   50,
	StatusUnderReview: 75,
	StatusApproved:    100,
	StatusRejected:    0,
}

// transitions lists the allowed next states for each state.
var transitions = map[ApplicationStatus][]ApplicationStatus{
	StatusDraft:       {StatusSubmitted},
	StatusSubmitted:   {StatusUnderReview},
	StatusUnderReview: {StatusApproved, StatusRejected},
}

// Valid reports whether s is one of the five known states.
func (s ApplicationStatus) Valid() bool {
	_, ok := statusProgress[s]
	return ok
}

// Progress is the display percentage clients show for s.
// Rejected applications do not progress and report 0.
func (s ApplicationStatus) Progress() int {
	return statusProgress[s]
}

// Terminal reports whether no transition leaves s.
func (s ApplicationStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether an application may move from one state to another.
func CanTransition(from, to ApplicationStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// LoanApplication is a multi-step application submitted by a user.
type LoanApplication struct {
	ID            string            `json:"id"`
	UserID        string            `json:"userId"`
	LoanType      LoanType          `json:"loanType"`
	LoanAmount    string            `json:"loanAmount"`
	BusinessType  *string           `json:"businessType"`
	MonthlyIncome *string           `json:"monthlyIncome"`
	ExistingLoans *bool             `json:"existingLoans"`
	PropertyValue *string           `json:"propertyValue"`
	Documents     *string           `json:"documents"`
	Status        ApplicationStatus `json:"status"`
	Notes         *string           `json:"notes"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

type NewLoanApplication struct {
	UserID        string
	LoanType      LoanType
	LoanAmount    string
	BusinessType  *string
	MonthlyIncome *string
	ExistingLoans *bool
	PropertyValue *string
	Documents     *string
	Notes         *string
}
