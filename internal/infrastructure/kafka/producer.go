package kafka_infra

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/kaimentalityy/InnoPaymentService/internal/domain"
)

const (
	HeaderEventType = "event_type"
	HeaderEventID   = "event_id"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type ProducerConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
	MaxAttempts  int
}

// PaymentEventProducer publishes PaymentCreatedEvent snapshots. Writes are
// synchronous: Publish returns only after the broker acknowledged the message
// on all in-sync replicas or the writer gave up.
type PaymentEventProducer struct {
	writer messageWriter
	topic  string
	logger *zap.Logger
}

func NewPaymentEventProducer(cfg ProducerConfig, logger *zap.Logger) *PaymentEventProducer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Murmur2Balancer{},
		WriteTimeout: cfg.WriteTimeout,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  cfg.MaxAttempts,
		Async:        false,
		Logger:       kafka.LoggerFunc(func(msg string, args ...interface{}) { logger.Debug(fmt.Sprintf(msg, args...)) }),
		ErrorLogger:  kafka.LoggerFunc(func(msg string, args ...interface{}) { logger.Error(fmt.Sprintf(msg, args...)) }),
	}
	return newPaymentEventProducer(writer, cfg.Topic, logger)
}

func newPaymentEventProducer(writer messageWriter, topic string, logger *zap.Logger) *PaymentEventProducer {
	return &PaymentEventProducer{
		writer: writer,
		topic:  topic,
		logger: logger,
	}
}

// PartitionKey is the ordering key for all events of one order.
func PartitionKey(orderID int64) string {
	return strconv.FormatInt(orderID, 10)
}

// Publish sends one message keyed by the order id. Failures are returned as
// *domain.PublishError so callers can tell an interrupted send from a
// terminal one.
func (p *PaymentEventProducer) Publish(ctx context.Context, event domain.PaymentCreatedEvent) error {
	event = event.WithDefaults()
	msg, err := p.buildMessage(ctx, event)
	if err != nil {
		return &domain.PublishError{Kind: domain.PublishTerminal, Err: err}
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		pubErr := domain.ClassifyPublishError(err)
		p.logger.Error("Failed to send PAYMENT_CREATED event",
			zap.String("topic", p.topic),
			zap.String("key", string(msg.Key)),
			zap.String("payment_id", event.PaymentID),
			zap.Stringer("failure_kind", pubErr.Kind),
			zap.Error(err),
		)
		return pubErr
	}

	p.logger.Info("Successfully sent PAYMENT_CREATED event",
		zap.String("topic", p.topic),
		zap.String("key", string(msg.Key)),
		zap.String("payment_id", event.PaymentID),
		zap.String("event_id", event.EventID),
	)
	return nil
}

func (p *PaymentEventProducer) buildMessage(ctx context.Context, event domain.PaymentCreatedEvent) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal payment event %s: %w", event.EventID, err)
	}
	headers := []kafka.Header{
		{Key: HeaderEventType, Value: []byte(event.EventType)},
		{Key: HeaderEventID, Value: []byte(event.EventID)},
	}
	return kafka.Message{
		Key:     []byte(PartitionKey(event.OrderID)),
		Value:   value,
		Headers: InjectTraceHeaders(ctx, headers),
		Time:    event.EventTimestamp,
	}, nil
}

func (p *PaymentEventProducer) Close() error {
	if p.writer == nil {
		return nil
	}
	if err := p.writer.Close(); err != nil {
		p.logger.Error("Failed to close Kafka producer", zap.Error(err))
		return fmt.Errorf("failed to close Kafka producer: %w", err)
	}
	p.logger.Info("Kafka producer closed.")
	return nil
}
