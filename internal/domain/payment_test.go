package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveStatus(t *testing.T) {
	for _, n := range []int{0, 2, 42, 100, -2, -100} {
		assert.Equal(t, PaymentStatusSuccess, ResolveStatus(n), "n=%d", n)
	}
	for _, n := range []int{1, 3, 41, 99, -1, -3} {
		assert.Equal(t, PaymentStatusFailed, ResolveStatus(n), "n=%d", n)
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to PaymentStatus
		want     bool
	}{
		{PaymentStatusPending, PaymentStatusSuccess, true},
		{PaymentStatusPending, PaymentStatusFailed, true},
		{PaymentStatusPending, PaymentStatusPending, false},
		{PaymentStatusSuccess, PaymentStatusFailed, true},
		{PaymentStatusSuccess, PaymentStatusSuccess, false},
		{PaymentStatusSuccess, PaymentStatusPending, false},
		{PaymentStatusFailed, PaymentStatusFailed, true},
		{PaymentStatusFailed, PaymentStatusSuccess, false},
		{PaymentStatusFailed, PaymentStatusPending, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s->%s", tt.from, tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestParsePaymentStatus(t *testing.T) {
	s, err := ParsePaymentStatus("SUCCESS")
	require.NoError(t, err)
	assert.Equal(t, PaymentStatusSuccess, s)

	_, err = ParsePaymentStatus("success")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNormalizeAmount(t *testing.T) {
	got, err := NormalizeAmount(nil)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	amount := decimal.RequireFromString("150.005")
	got, err = NormalizeAmount(&amount)
	require.NoError(t, err)
	assert.Equal(t, "150.01", got.StringFixed(AmountScale))

	negative := decimal.RequireFromString("-0.01")
	_, err = NormalizeAmount(&negative)
	assert.ErrorIs(t, err, ErrValidation)

	huge := decimal.RequireFromString("10000000000")
	_, err = NormalizeAmount(&huge)
	assert.ErrorIs(t, err, ErrValidation)

	largest := decimal.RequireFromString("9999999999.99")
	got, err = NormalizeAmount(&largest)
	require.NoError(t, err)
	assert.True(t, got.Equal(largest))
}

func TestClassifyPublishError(t *testing.T) {
	assert.Nil(t, ClassifyPublishError(nil))

	terminal := ClassifyPublishError(errors.New("broker said no"))
	assert.Equal(t, PublishTerminal, terminal.Kind)

	interrupted := ClassifyPublishError(fmt.Errorf("write: %w", context.DeadlineExceeded))
	assert.Equal(t, PublishInterrupted, interrupted.Kind)
	assert.ErrorIs(t, interrupted, context.DeadlineExceeded)
	assert.True(t, IsPublishInterrupted(fmt.Errorf("wrapped: %w", interrupted)))

	canceled := ClassifyPublishError(context.Canceled)
	assert.Equal(t, PublishInterrupted, canceled.Kind)

	// an already tagged error keeps its kind
	tagged := &PublishError{Kind: PublishTerminal, Err: context.Canceled}
	assert.Same(t, tagged, ClassifyPublishError(fmt.Errorf("outer: %w", tagged)))
}
