package payments

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kaimentalityy/InnoPaymentService/internal/domain"
	"github.com/kaimentalityy/InnoPaymentService/internal/repository/payments_repo"
)

// OutcomeResolver supplies the number whose parity settles a payment.
type OutcomeResolver interface {
	Next(ctx context.Context) (int, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event domain.PaymentCreatedEvent) error
}

type PaymentService interface {
	ProcessPayment(ctx context.Context, event domain.OrderCreatedEvent) error
	GetPayment(ctx context.Context, id string) (*domain.Payment, error)
}

type Options struct {
	// CompensationTimeout bounds the compensating status update, which runs
	// detached from the caller's cancellation.
	CompensationTimeout time.Duration
}

type paymentService struct {
	paymentRepo payments_repo.PaymentRepository
	resolver    OutcomeResolver
	publisher   EventPublisher
	opts        Options
	tracer      trace.Tracer
	logger      *zap.Logger
}

func NewPaymentService(
	paymentRepo payments_repo.PaymentRepository,
	resolver OutcomeResolver,
	publisher EventPublisher,
	opts Options,
	logger *zap.Logger,
) PaymentService {
	if opts.CompensationTimeout <= 0 {
		opts.CompensationTimeout = 5 * time.Second
	}
	return &paymentService{
		paymentRepo: paymentRepo,
		resolver:    resolver,
		publisher:   publisher,
		opts:        opts,
		tracer:      otel.Tracer("payments/orchestrator"),
		logger:      logger,
	}
}

// ProcessPayment drives one order event through create -> resolve -> update
// -> publish. Errors from the first three steps are returned untouched by any
// further step. When publishing fails the payment is forced to FAILED; an
// interrupted publish then returns nil, a terminal one returns the publish
// error.
func (s *paymentService) ProcessPayment(ctx context.Context, event domain.OrderCreatedEvent) (err error) {
	ctx, span := s.tracer.Start(ctx, "ProcessPayment")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := event.Validate(); err != nil {
		return err
	}
	amount, err := domain.NormalizeAmount(event.TotalAmount)
	if err != nil {
		return err
	}
	orderID := *event.OrderID
	span.SetAttributes(attribute.Int64("order.id", orderID))

	pending, err := s.paymentRepo.Create(ctx, orderID, event.UserID, amount)
	if err != nil {
		s.logger.Error("Failed to create pending payment", zap.Int64("order_id", orderID), zap.Error(err))
		return fmt.Errorf("failed to create payment for order %d: %w", orderID, err)
	}
	s.logger.Info("Payment created with PENDING status",
		zap.String("payment_id", pending.ID),
		zap.Int64("order_id", orderID),
		zap.Int64("user_id", event.UserID),
		zap.String("amount", amount.StringFixed(domain.AmountScale)),
	)

	n, err := s.resolver.Next(ctx)
	if err != nil {
		s.logger.Error("Failed to resolve payment outcome, payment stays PENDING",
			zap.String("payment_id", pending.ID),
			zap.Int64("order_id", orderID),
			zap.Error(err))
		return fmt.Errorf("failed to resolve outcome for payment %s: %w", pending.ID, err)
	}
	status := domain.ResolveStatus(n)

	updated, err := s.paymentRepo.UpdateStatus(ctx, pending.ID, status)
	if err != nil {
		s.logger.Error("Failed to update payment status",
			zap.String("payment_id", pending.ID),
			zap.String("status", string(status)),
			zap.Error(err))
		return fmt.Errorf("failed to update payment %s to %s: %w", pending.ID, status, err)
	}

	paymentEvent := domain.NewPaymentCreatedEvent(updated)
	if err := s.publisher.Publish(ctx, paymentEvent); err != nil {
		pubErr := domain.ClassifyPublishError(err)
		s.compensate(ctx, updated.ID, pubErr)
		if domain.IsPublishInterrupted(pubErr) {
			s.logger.Warn("Publishing payment event was interrupted, payment marked FAILED",
				zap.String("payment_id", updated.ID),
				zap.Int64("order_id", orderID),
				zap.Error(err))
			return nil
		}
		return fmt.Errorf("failed to publish payment event for payment %s: %w", updated.ID, pubErr)
	}

	s.logger.Info("Payment processed",
		zap.String("payment_id", updated.ID),
		zap.Int64("order_id", orderID),
		zap.String("status", string(updated.Status)),
	)
	return nil
}

// compensate forces the payment to FAILED after an unconfirmed publish. Its own
// failure is logged and not retried.
func (s *paymentService) compensate(ctx context.Context, paymentID string, cause *domain.PublishError) {
	compCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.CompensationTimeout)
	defer cancel()

	if _, err := s.paymentRepo.UpdateStatus(compCtx, paymentID, domain.PaymentStatusFailed); err != nil {
		s.logger.Error("Compensation failed, payment status may not reflect the undelivered event",
			zap.String("payment_id", paymentID),
			zap.Stringer("publish_failure", cause.Kind),
			zap.Error(err))
		return
	}
	s.logger.Warn("Payment marked FAILED after publish failure",
		zap.String("payment_id", paymentID),
		zap.Stringer("publish_failure", cause.Kind))
}

func (s *paymentService) GetPayment(ctx context.Context, id string) (*domain.Payment, error) {
	payment, err := s.paymentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment %s: %w", id, err)
	}
	return payment, nil
}
