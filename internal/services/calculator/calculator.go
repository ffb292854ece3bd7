// Package calculator computes equated monthly installments.
package calculator

import (
	"errors"
	"math"
)

var (
	ErrInvalidAmount = errors.New("loan amount must be positive")
	ErrInvalidRate   = errors.New("interest rate must be between 0 and 100")
	ErrInvalidTenure = errors.New("tenure must be between 1 and 600 months")
	ErrOutOfRange    = errors.New("result is too large to represent")
)

const MaxTenureMonths = 600

type Result struct {
	MonthlyEMI    float64 `json:"monthlyEMI"`
	TotalInterest float64 `json:"totalInterest"`
	TotalAmount   float64 `json:"totalAmount"`
}

type Installment struct {
	Month     int     `json:"month"`
	EMI       float64 `json:"emi"`
	Principal float64 `json:"principal"`
	Interest  float64 `json:"interest"`
	Balance   float64 `json:"balance"`
}

type Schedule struct {
	Result
	Installments []Installment `json:"installments"`
}

func validate(principal, annualRate float64, months int) error {
	switch {
	case principal <= 0 || math.IsNaN(principal) || math.IsInf(principal, 0):
		return ErrInvalidAmount
	case annualRate < 0 || annualRate > 100 || math.IsNaN(annualRate):
		return ErrInvalidRate
	case months < 1 || months > MaxTenureMonths:
		return ErrInvalidTenure
	}
	return nil
}

// emi is the unrounded installment. r is the monthly rate as a fraction.
func emi(principal, r float64, months int) float64 {
	if r == 0 {
		return principal / float64(months)
	}
	f := math.Pow(1+r, float64(months))
	return principal * r * f / (f - 1)
}

// CalculateEMI applies EMI = P·r·(1+r)^n / ((1+r)^n − 1) with r = rate/12/100
// and rounds every figure to the nearest rupee.
func CalculateEMI(principal, annualRate float64, months int) (Result, error) {
	if err := validate(principal, annualRate, months); err != nil {
		return Result{}, err
	}

	e := emi(principal, annualRate/12/100, months)
	total := e * float64(months)
	if !finite(e, total, total-principal) {
		return Result{}, ErrOutOfRange
	}

	return Result{
		MonthlyEMI:    math.Round(e),
		TotalInterest: math.Round(total - principal),
		TotalAmount:   math.Round(total),
	}, nil
}

// AmortizationSchedule breaks the loan into monthly principal and interest
// parts. Per-row figures are rounded to paise; the final row clears the balance.
func AmortizationSchedule(principal, annualRate float64, months int) (Schedule, error) {
	res, err := CalculateEMI(principal, annualRate, months)
	if err != nil {
		return Schedule{}, err
	}

	r := annualRate / 12 / 100
	e := emi(principal, r, months)
	balance := principal

	rows := make([]Installment, 0, months)
	for m := 1; m <= months; m++ {
		interest := balance * r
		part := e - interest
		if m == months {
			part = balance
		}
		balance -= part

		row := Installment{
			Month:     m,
			EMI:       roundPaise(part + interest),
			Principal: roundPaise(part),
			Interest:  roundPaise(interest),
			Balance:   math.Abs(roundPaise(balance)),
		}
		if !finite(row.EMI, row.Principal, row.Interest, row.Balance) {
			return Schedule{}, ErrOutOfRange
		}
		rows = append(rows, row)
	}

	return Schedule{Result: res, Installments: rows}, nil
}

// finite reports whether every value is a real number, neither NaN nor ±Inf.
func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func roundPaise(v float64) float64 {
	return math.Round(v*100) / 100
}
