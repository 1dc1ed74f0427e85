package kafka_infra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageHandler определяет контракт для обработчика Kafka-сообщений.
// Returning an error asks the consumer to redeliver the message.
type MessageHandler func(ctx context.Context, msg kafka.Message) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type ConsumerConfig struct {
	Brokers         []string
	Topic           string
	GroupID         string
	HandlerTimeout  time.Duration
	HandlerAttempts int
	RetryBackoff    time.Duration
}

type Consumer struct {
	reader  messageReader
	cfg     ConsumerConfig
	handler MessageHandler
	logger  *zap.Logger
}

func NewConsumer(cfg ConsumerConfig, handler MessageHandler, l *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
		Logger:         kafka.LoggerFunc(l.Sugar().Debugf),
		ErrorLogger:    kafka.LoggerFunc(l.Sugar().Errorf),
	})
	return newConsumer(reader, cfg, handler, l)
}

func newConsumer(reader messageReader, cfg ConsumerConfig, handler MessageHandler, l *zap.Logger) *Consumer {
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = 60 * time.Second
	}
	if cfg.HandlerAttempts < 1 {
		cfg.HandlerAttempts = 1
	}
	return &Consumer{
		reader:  reader,
		cfg:     cfg,
		handler: handler,
		logger:  l,
	}
}

// Consume fetches messages until ctx is cancelled. A message is committed
// after its handler succeeds, or after the handler failed on every attempt;
// the partition never stalls on a single message.
func (c *Consumer) Consume(ctx context.Context) error {
	c.logger.Info("Kafka consumer starting message consumption",
		zap.String("topic", c.cfg.Topic),
		zap.String("group_id", c.cfg.GroupID),
	)

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, kafka.ErrGroupClosed) {
				c.logger.Info("Consumer stopping due to context cancellation or reader closure.", zap.String("topic", c.cfg.Topic))
				return nil
			}
			c.logger.Error("Error fetching message from Kafka", zap.Error(err), zap.String("topic", c.cfg.Topic))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		if err := c.handle(ctx, m); err != nil {
			if ctx.Err() != nil {
				c.logger.Info("Shutdown interrupted message retries, leaving offset uncommitted",
					zap.String("topic", m.Topic),
					zap.Int("partition", m.Partition),
					zap.Int64("offset", m.Offset))
				return nil
			}
			c.logger.Error("Giving up on Kafka message after all attempts",
				zap.String("topic", m.Topic),
				zap.Int("partition", m.Partition),
				zap.Int64("offset", m.Offset),
				zap.String("key", string(m.Key)),
				zap.Int("attempts", c.cfg.HandlerAttempts),
				zap.Error(err))
		}

		// in-flight work is finished even when shutdown has begun
		commitCtx, cancelCommit := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if err := c.reader.CommitMessages(commitCtx, m); err != nil {
			c.logger.Error("Failed to commit offset for message",
				zap.String("topic", m.Topic),
				zap.Int("partition", m.Partition),
				zap.Int64("offset", m.Offset),
				zap.Error(err))
		}
		cancelCommit()
	}
}

func (c *Consumer) handle(ctx context.Context, m kafka.Message) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.RetryBackoff
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.cfg.HandlerAttempts-1)), ctx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		handleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.HandlerTimeout)
		defer cancel()
		handleCtx = ExtractTraceHeaders(handleCtx, m.Headers)

		if err := c.handler(handleCtx, m); err != nil {
			c.logger.Warn("Error handling Kafka message",
				zap.String("topic", m.Topic),
				zap.Int("partition", m.Partition),
				zap.Int64("offset", m.Offset),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return err
		}
		return nil
	}, policy)
}

func (c *Consumer) Close() error {
	if err := c.reader.Close(); err != nil {
		c.logger.Error("Failed to close Kafka consumer reader", zap.Error(err), zap.String("topic", c.cfg.Topic))
		return fmt.Errorf("failed to close Kafka consumer reader: %w", err)
	}
	c.logger.Info("Kafka consumer reader closed.", zap.String("topic", c.cfg.Topic))
	return nil
}
