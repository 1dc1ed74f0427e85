package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/kaimentalityy/InnoPaymentService/internal/criteria"
	"github.com/kaimentalityy/InnoPaymentService/internal/domain"
	"github.com/kaimentalityy/InnoPaymentService/internal/repository/payments_repo"
	"github.com/kaimentalityy/InnoPaymentService/internal/util"
)

type paymentRepository struct {
	mu       sync.RWMutex
	payments map[string]domain.Payment
	now      payments_repo.Clock
}

func NewPaymentRepository() *paymentRepository {
	return NewPaymentRepositoryWithClock(payments_repo.UTCNow)
}

func NewPaymentRepositoryWithClock(now payments_repo.Clock) *paymentRepository {
	return &paymentRepository{
		payments: make(map[string]domain.Payment),
		now:      now,
	}
}

func (r *paymentRepository) Create(ctx context.Context, orderID, userID int64, amount decimal.Decimal) (*domain.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}
	now := r.now().UTC()
	payment := domain.Payment{
		ID:        util.GenerateUUID(),
		OrderID:   orderID,
		UserID:    userID,
		Amount:    amount,
		Status:    domain.PaymentStatusPending,
		Timestamp: now,
		UpdatedAt: now,
	}

	r.mu.Lock()
	r.payments[payment.ID] = payment
	r.mu.Unlock()

	return &payment, nil
}

func (r *paymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("failed to get payment by id %s: %w", id, err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	payment, ok := r.payments[id]
	if !ok {
		return nil, fmt.Errorf("payment with id %s: %w", id, domain.ErrPaymentNotFound)
	}
	return &payment, nil
}

func (r *paymentRepository) UpdateStatus(ctx context.Context, id string, status domain.PaymentStatus) (*domain.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("failed to update payment status %s: %w", id, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	payment, ok := r.payments[id]
	if !ok {
		return nil, fmt.Errorf("payment with id %s not found for status update: %w", id, domain.ErrPaymentNotFound)
	}
	if !domain.CanTransition(payment.Status, status) {
		return nil, fmt.Errorf("payment %s %s -> %s: %w", id, payment.Status, status, domain.ErrInvalidTransition)
	}
	payment.Status = status
	payment.UpdatedAt = r.now().UTC()
	r.payments[id] = payment

	return &payment, nil
}

func (r *paymentRepository) Find(ctx context.Context, q criteria.Query) ([]domain.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("failed to search payments: %w", err)
	}
	matched := r.match(q)

	if q.Sort != nil && q.Sort.Field == criteria.FieldTimestamp {
		desc := q.Sort.Desc
		sort.SliceStable(matched, func(i, j int) bool {
			a, b := matched[i], matched[j]
			if !a.Timestamp.Equal(b.Timestamp) {
				if desc {
					return a.Timestamp.After(b.Timestamp)
				}
				return a.Timestamp.Before(b.Timestamp)
			}
			return a.ID < b.ID
		})
	}

	if q.Offset >= len(matched) {
		return []domain.Payment{}, nil
	}
	matched = matched[q.Offset:]
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

func (r *paymentRepository) SumAmount(ctx context.Context, q criteria.Query) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum payment amounts: %w", err)
	}
	total := decimal.Zero
	for _, p := range r.match(q) {
		total = total.Add(p.Amount)
	}
	return total, nil
}

func (r *paymentRepository) match(q criteria.Query) []domain.Payment {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]domain.Payment, 0, len(r.payments))
	for _, p := range r.payments {
		if q.Match(p) {
			matched = append(matched, p)
		}
	}
	// map order is random; callers without a Sort still get a stable order.
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	return matched
}
