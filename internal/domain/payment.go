package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusSuccess PaymentStatus = "SUCCESS"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

// AmountScale is the number of fraction digits kept for payment amounts.
const AmountScale = 2

// maxAmount is the exclusive upper bound for an amount: 10 integer digits.
var maxAmount = decimal.New(1, 10)

type Payment struct {
	ID        string
	OrderID   int64
	UserID    int64
	Amount    decimal.Decimal
	Status    PaymentStatus
	Timestamp time.Time
	UpdatedAt time.Time
}

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch PaymentStatus(s) {
	case PaymentStatusPending, PaymentStatusSuccess, PaymentStatusFailed:
		return PaymentStatus(s), nil
	}
	return "", NewValidationError("unknown payment status %q", s)
}

func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusSuccess || s == PaymentStatusFailed
}

// ResolveStatus classifies a settlement by the parity of n: even numbers
// (zero and negative even values included) succeed, odd numbers fail.
func ResolveStatus(n int) PaymentStatus {
	if n%2 == 0 {
		return PaymentStatusSuccess
	}
	return PaymentStatusFailed
}

// CanTransition reports whether a payment may move from one status to another.
// FAILED -> FAILED is accepted so a compensating update stays idempotent.
func CanTransition(from, to PaymentStatus) bool {
	switch from {
	case PaymentStatusPending:
		return to.IsTerminal()
	case PaymentStatusSuccess:
		return to == PaymentStatusFailed
	case PaymentStatusFailed:
		return to == PaymentStatusFailed
	}
	return false
}

// NormalizeAmount validates an amount and rounds it to AmountScale digits.
// A missing amount is treated as zero.
func NormalizeAmount(amount *decimal.Decimal) (decimal.Decimal, error) {
	if amount == nil {
		return decimal.Zero, nil
	}
	if amount.IsNegative() {
		return decimal.Zero, NewValidationError("amount %s is negative", amount.String())
	}
	rounded := amount.Round(AmountScale)
	if rounded.GreaterThanOrEqual(maxAmount) {
		return decimal.Zero, NewValidationError("amount %s exceeds 10 integer digits", amount.String())
	}
	return rounded, nil
}
