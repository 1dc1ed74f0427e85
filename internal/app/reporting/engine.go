// Package reporting serves the read side: filtered, recency-first payment
// search and windowed amount totals.
package reporting

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kaimentalityy/InnoPaymentService/internal/criteria"
	"github.com/kaimentalityy/InnoPaymentService/internal/domain"
	"github.com/kaimentalityy/InnoPaymentService/internal/repository/payments_repo"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 1000
)

type SearchParams struct {
	UserID  *int64
	OrderID *int64
	Status  *domain.PaymentStatus
	Page    int
	Size    int
}

type Engine struct {
	collection payments_repo.Collection
	logger     *zap.Logger
}

func NewEngine(collection payments_repo.Collection, logger *zap.Logger) *Engine {
	return &Engine{collection: collection, logger: logger}
}

// Search returns payments matching every provided filter, newest first,
// skipping Page*Size records and returning at most Size of them.
func (e *Engine) Search(ctx context.Context, params SearchParams) ([]domain.Payment, error) {
	if params.Page < 0 {
		return nil, domain.NewValidationError("page must not be negative, got %d", params.Page)
	}
	if params.Size < 0 {
		return nil, domain.NewValidationError("size must not be negative, got %d", params.Size)
	}
	if params.Size > MaxPageSize {
		return nil, domain.NewValidationError("size must not exceed %d, got %d", MaxPageSize, params.Size)
	}
	if params.Size == 0 {
		return []domain.Payment{}, nil
	}
	if params.Page > math.MaxInt/params.Size {
		return []domain.Payment{}, nil
	}

	q := criteria.NewBuilder().
		UserID(params.UserID).
		OrderID(params.OrderID).
		Status(params.Status).
		OrderBy(criteria.FieldTimestamp, true).
		Page(params.Page, params.Size).
		Build()

	payments, err := e.collection.Find(ctx, q)
	if err != nil {
		e.logger.Error("Payment search failed", zap.Int("page", params.Page), zap.Int("size", params.Size), zap.Error(err))
		return nil, fmt.Errorf("failed to search payments: %w", err)
	}
	if payments == nil {
		payments = []domain.Payment{}
	}
	return payments, nil
}

// SumAmountInWindow totals the amount of payments created within
// [start, end], both ends inclusive. Bounds are compared as UTC instants.
func (e *Engine) SumAmountInWindow(ctx context.Context, start, end time.Time) (decimal.Decimal, error) {
	if start.After(end) {
		return decimal.Zero, domain.NewValidationError("window start %s is after end %s",
			start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
	}

	q := criteria.NewBuilder().Between(start, end).Build()
	total, err := e.collection.SumAmount(ctx, q)
	if err != nil {
		e.logger.Error("Payment total failed", zap.Time("start", start), zap.Time("end", end), zap.Error(err))
		return decimal.Zero, fmt.Errorf("failed to sum payment amounts: %w", err)
	}
	return total.Round(domain.AmountScale), nil
}
