package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplicationStatusProgress(t *testing.T) {
	tests := []struct {
		status ApplicationStatus
		want   int
	}{
		{StatusDraft, 25},
		{StatusSubmitted, 50},
		{StatusUnderReview, 75},
		{StatusApproved, 100},
		{StatusRejected, 0},
		{ApplicationStatus("archived"), 0},
	}
	for _, tc := range tests {
		t.Run(string(tc.status), func(t *testing.T) {
			assert.Equal(t, tc.want, tc.status.Progress())
		})
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to ApplicationStatus
		want     bool
	}{
		{StatusDraft, StatusSubmitted, true},
		{StatusSubmitted, StatusUnderReview, true},
		{StatusUnderReview, StatusApproved, true},
		{StatusUnderReview, StatusRejected, true},
		{StatusDraft, StatusApproved, false},
		{StatusSubmitted, StatusDraft, false},
		{StatusApproved, StatusRejected, false},
		{StatusRejected, StatusUnderReview, false},
		{StatusDraft, StatusDraft, false},
	}
	for _, tc := range tests {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			assert.Equal(t, tc.want, CanTransition(tc.from, tc.to))
		})
	}
}

func TestStatusValidAndTerminal(t *testing.T) {
	assert.True(t, StatusUnderReview.Valid())
	assert.False(t, ApplicationStatus("pending").Valid())

	assert.True(t, StatusApproved.Terminal())
	assert.True(t, StatusRejected.Terminal())
	assert.False(t, StatusDraft.Terminal())
}

func TestLoanTypeValid(t *testing.T) {
	assert.True(t, LoanTypeCashCredit.Valid())
	assert.False(t, LoanType("car").Valid())
	assert.False(t, LoanType("").Valid())
}
