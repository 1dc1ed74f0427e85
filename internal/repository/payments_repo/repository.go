package payments_repo

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kaimentalityy/InnoPaymentService/internal/criteria"
	"github.com/kaimentalityy/InnoPaymentService/internal/domain"
)

// PaymentRepository is the Payment Store boundary used by the orchestrator.
type PaymentRepository interface {
	Create(ctx context.Context, orderID, userID int64, amount decimal.Decimal) (*domain.Payment, error)
	GetByID(ctx context.Context, id string) (*domain.Payment, error)
	UpdateStatus(ctx context.Context, id string, status domain.PaymentStatus) (*domain.Payment, error)
}

// Collection is the read side the reporting engine queries.
type Collection interface {
	Find(ctx context.Context, q criteria.Query) ([]domain.Payment, error)
	SumAmount(ctx context.Context, q criteria.Query) (decimal.Decimal, error)
}

type Store interface {
	PaymentRepository
	Collection
}

// Clock lets tests pin creation timestamps.
type Clock func() time.Time

func UTCNow() time.Time {
	return time.Now().UTC()
}
