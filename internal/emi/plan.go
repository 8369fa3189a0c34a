// Package emi computes interest-free installment plans for checkout.
// Everything here is pure arithmetic; the storefront calls it on every
// slider move, so it must stay side-effect free and cheap.
package emi

import (
	"errors"
	"math"
)

// MinCartTotal is the smallest cart eligible for an installment plan.
const MinCartTotal = 500.0

// Processing fee is tiered by cart value; the boundary itself takes the
// lower rate.
const (
	feeTierBoundary = 3000.0
	feeRateLow      = 0.05
	feeRateHigh     = 0.10
)

// BillingCycleDays is the gap between consecutive installments.
const BillingCycleDays = 30

// Tenures lists the offered repayment lengths in months.
var Tenures = []int{3, 6, 9, 12, 18, 24}

var (
	ErrBelowMinimum       = errors.New("cart total below installment minimum")
	ErrInvalidDownPayment = errors.New("down payment percent must be between 0 and 100")
	ErrInvalidTenure      = errors.New("invalid tenure for installment plan")
	ErrInconsistentPlan   = errors.New("zero remaining principal without full down payment")
)

type Plan struct {
	CartTotal          float64 `json:"cart_total"`
	DownPaymentPercent int     `json:"down_payment_percent"`
	TenureMonths       int     `json:"tenure_months"`
	ProcessingFeeRate  float64 `json:"processing_fee_rate"`
	DownPaymentAmount  float64 `json:"down_payment_amount"`
	ProcessingFee      float64 `json:"processing_fee"`
	TotalDueNow        float64 `json:"total_due_now"`
	RemainingPrincipal float64 `json:"remaining_principal"`
	MonthlyInstallment float64 `json:"monthly_installment"`
}

// ComputePlan derives an installment plan from the cart total and the
// buyer's chosen parameters.
func ComputePlan(cartTotal float64, downPaymentPercent, tenureMonths int) (Plan, error) {
	if cartTotal < MinCartTotal {
		return Plan{}, ErrBelowMinimum
	}
	if downPaymentPercent < 0 || downPaymentPercent > 100 {
		return Plan{}, ErrInvalidDownPayment
	}
	if !validTenure(tenureMonths) {
		return Plan{}, ErrInvalidTenure
	}

	rate := feeRateLow
	if cartTotal > feeTierBoundary {
		rate = feeRateHigh
	}

	downPayment := round2(cartTotal * float64(downPaymentPercent) / 100)
	fee := round2(cartTotal * rate)
	remaining := round2(cartTotal - downPayment)
	monthly := round2(remaining / float64(tenureMonths))

	if remaining > 0 && monthly <= 0 {
		// Pathological rounding on a tiny remainder; the buyer has to
		// raise the down payment or shorten the tenure.
		return Plan{}, ErrInvalidTenure
	}
	if remaining <= 0 && downPaymentPercent < 100 {
		return Plan{}, ErrInconsistentPlan
	}

	return Plan{
		CartTotal:          cartTotal,
		DownPaymentPercent: downPaymentPercent,
		TenureMonths:       tenureMonths,
		ProcessingFeeRate:  rate,
		DownPaymentAmount:  downPayment,
		ProcessingFee:      fee,
		TotalDueNow:        round2(downPayment + fee),
		RemainingPrincipal: remaining,
		MonthlyInstallment: monthly,
	}, nil
}

func validTenure(months int) bool {
	for _, t := range Tenures {
		if t == months {
			return true
		}
	}
	return false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
