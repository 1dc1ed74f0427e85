package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/kaimentalityy/InnoPaymentService/internal/app/payments"
	"github.com/kaimentalityy/InnoPaymentService/internal/domain"
	"github.com/kaimentalityy/InnoPaymentService/internal/idempotency"
	kafka_infra "github.com/kaimentalityy/InnoPaymentService/internal/infrastructure/kafka"
)

// OrderCreatedMessageHandler validates order-events records and hands
// ORDER_CREATE events to the payment service. Records that can never succeed
// (bad JSON, missing order ID, other event types) return nil so they are
// committed; processing failures return an error so the consumer retries.
func OrderCreatedMessageHandler(paymentService payments.PaymentService, seen idempotency.Store, logger *zap.Logger) kafka_infra.MessageHandler {
	if seen == nil {
		seen = idempotency.Noop{}
	}
	return func(ctx context.Context, msg kafka.Message) error {
		logger.Info("Received Kafka message for order processing",
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.String("key", string(msg.Key)),
		)

		var orderCreatedEvent domain.OrderCreatedEvent
		if err := json.Unmarshal(msg.Value, &orderCreatedEvent); err != nil {
			logger.Error("Failed to unmarshal Kafka message value to OrderCreatedEvent",
				zap.Error(err),
				zap.ByteString("value", msg.Value),
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
			)
			return nil
		}

		if orderCreatedEvent.EventType != domain.EventTypeOrderCreate {
			logger.Debug("Ignoring order event of unsupported type",
				zap.String("event_type", orderCreatedEvent.EventType),
				zap.String("event_id", orderCreatedEvent.EventID),
			)
			return nil
		}

		if err := orderCreatedEvent.Validate(); err != nil {
			logger.Error("Rejecting invalid OrderCreatedEvent",
				zap.String("event_id", orderCreatedEvent.EventID),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
			return nil
		}
		orderID := *orderCreatedEvent.OrderID

		key := orderCreatedEvent.EventID
		if key == "" {
			key = kafka_infra.HeaderValue(msg.Headers, kafka_infra.HeaderEventID)
		}
		if key == "" {
			key = idempotency.MessageKey(msg.Topic, msg.Partition, msg.Offset)
		}
		duplicate, err := seen.Seen(ctx, key)
		if err != nil {
			logger.Warn("Idempotency lookup failed, processing anyway", zap.String("key", key), zap.Error(err))
		}
		if duplicate {
			logger.Info("Skipping already processed order event",
				zap.String("key", key),
				zap.Int64("order_id", orderID),
			)
			return nil
		}

		logger.Info("Processing OrderCreatedEvent",
			zap.Int64("order_id", orderID),
			zap.Int64("user_id", orderCreatedEvent.UserID),
		)

		if err := paymentService.ProcessPayment(ctx, orderCreatedEvent); err != nil {
			if errors.Is(err, domain.ErrValidation) {
				logger.Error("Order event rejected by payment service",
					zap.Int64("order_id", orderID),
					zap.Error(err),
				)
				return nil
			}
			logger.Error("Failed to process order created event",
				zap.Int64("order_id", orderID),
				zap.Error(err),
			)
			return fmt.Errorf("failed to process order created event for order %d: %w", orderID, err)
		}

		if err := seen.Mark(ctx, key); err != nil {
			logger.Warn("Failed to record processed order event", zap.String("key", key), zap.Error(err))
		}

		logger.Info("Successfully processed order created event",
			zap.Int64("order_id", orderID),
		)
		return nil
	}
}
