package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kaimentalityy/InnoPaymentService/internal/util"
)

const (
	EventTypeOrderCreate   = "ORDER_CREATE"
	EventTypePaymentCreate = "CREATE_PAYMENT"
)

// OrderCreatedEvent - событие, получаемое от Order Service
type OrderCreatedEvent struct {
	EventID        string           `json:"eventId"`
	EventType      string           `json:"eventType"`
	EventTimestamp string           `json:"eventTimestamp,omitempty"`
	OrderID        *int64           `json:"orderId"`
	UserID         int64            `json:"userId"`
	TotalAmount    *decimal.Decimal `json:"totalAmount"`
	Status         string           `json:"status,omitempty"`
	Items          []OrderItemEvent `json:"items,omitempty"`
}

type OrderItemEvent struct {
	ItemID   int64           `json:"itemId"`
	ItemName string          `json:"itemName"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

func (e *OrderCreatedEvent) Validate() error {
	if e.OrderID == nil {
		return NewValidationError("order ID cannot be null in OrderCreatedEvent")
	}
	return nil
}

// PaymentCreatedEvent - событие, публикуемое после расчета платежа
type PaymentCreatedEvent struct {
	EventID        string          `json:"eventId"`
	EventType      string          `json:"eventType"`
	EventTimestamp time.Time       `json:"eventTimestamp"`
	PaymentID      string          `json:"paymentId"`
	OrderID        int64           `json:"orderId"`
	UserID         int64           `json:"userId"`
	Amount         decimal.Decimal `json:"amount"`
	Status         PaymentStatus   `json:"status"`
}

// NewPaymentCreatedEvent snapshots p at the current instant.
func NewPaymentCreatedEvent(p *Payment) PaymentCreatedEvent {
	return PaymentCreatedEvent{
		EventID:        util.GenerateUUID(),
		EventType:      EventTypePaymentCreate,
		EventTimestamp: time.Now().UTC(),
		PaymentID:      p.ID,
		OrderID:        p.OrderID,
		UserID:         p.UserID,
		Amount:         p.Amount.Round(AmountScale),
		Status:         p.Status,
	}
}

// MarshalJSON writes amount as a JSON number with exactly AmountScale
// fraction digits.
func (e PaymentCreatedEvent) MarshalJSON() ([]byte, error) {
	type plain PaymentCreatedEvent
	return json.Marshal(struct {
		plain
		Amount json.Number `json:"amount"`
	}{
		plain:  plain(e),
		Amount: json.Number(e.Amount.StringFixed(AmountScale)),
	})
}

// WithDefaults fills the identity fields a producer may have left empty.
func (e PaymentCreatedEvent) WithDefaults() PaymentCreatedEvent {
	if e.EventID == "" {
		e.EventID = util.GenerateUUID()
	}
	if e.EventType == "" {
		e.EventType = EventTypePaymentCreate
	}
	if e.EventTimestamp.IsZero() {
		e.EventTimestamp = time.Now().UTC()
	}
	return e
}
