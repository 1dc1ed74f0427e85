package kafka_infra

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// fakeReader serves queued messages, then blocks until ctx is done.
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
	drained   chan struct{}
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	return &fakeReader{queue: msgs, drained: make(chan struct{})}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		m := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	select {
	case <-r.drained:
	default:
		close(r.drained)
	}
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	offsets := make([]int64, len(r.committed))
	for i, m := range r.committed {
		offsets[i] = m.Offset
	}
	return offsets
}

func runUntilDrained(t *testing.T, c *Consumer, r *fakeReader) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Consume(ctx) }()

	select {
	case <-r.drained:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not drain the queue")
	}
	cancel()
	require.NoError(t, <-done)
}

func testConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Topic:           "order-events",
		GroupID:         "payment-service",
		HandlerTimeout:  time.Second,
		HandlerAttempts: 3,
		RetryBackoff:    time.Millisecond,
	}
}

func TestConsume_CommitsAfterSuccess(t *testing.T) {
	reader := newFakeReader(kafka.Message{Offset: 1}, kafka.Message{Offset: 2})
	var handled []int64
	handler := func(_ context.Context, m kafka.Message) error {
		handled = append(handled, m.Offset)
		return nil
	}
	c := newConsumer(reader, testConsumerConfig(), handler, zap.NewNop())

	runUntilDrained(t, c, reader)
	assert.Equal(t, []int64{1, 2}, handled)
	assert.Equal(t, []int64{1, 2}, reader.commits())
}

func TestConsume_RetriesThenSucceeds(t *testing.T) {
	reader := newFakeReader(kafka.Message{Offset: 7})
	attempts := 0
	handler := func(context.Context, kafka.Message) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	}
	c := newConsumer(reader, testConsumerConfig(), handler, zap.NewNop())

	runUntilDrained(t, c, reader)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []int64{7}, reader.commits())
}

func TestConsume_GivesUpAndCommits(t *testing.T) {
	reader := newFakeReader(kafka.Message{Offset: 3}, kafka.Message{Offset: 4})
	attempts := map[int64]int{}
	handler := func(_ context.Context, m kafka.Message) error {
		attempts[m.Offset]++
		if m.Offset == 3 {
			return errors.New("poison")
		}
		return nil
	}
	core, logs := observer.New(zapcore.InfoLevel)
	c := newConsumer(reader, testConsumerConfig(), handler, zap.New(core))

	runUntilDrained(t, c, reader)
	assert.Equal(t, 3, attempts[3])
	assert.Equal(t, 1, attempts[4])
	assert.Equal(t, []int64{3, 4}, reader.commits(), "a poison message does not stall the partition")
	assert.Equal(t, 1, logs.FilterMessage("Giving up on Kafka message after all attempts").Len())
}

func TestConsume_ShutdownDuringRetriesLeavesOffset(t *testing.T) {
	reader := newFakeReader(kafka.Message{Offset: 9})
	ctx, cancel := context.WithCancel(context.Background())
	handler := func(context.Context, kafka.Message) error {
		cancel()
		return errors.New("still failing")
	}
	cfg := testConsumerConfig()
	cfg.RetryBackoff = time.Second
	c := newConsumer(reader, cfg, handler, zap.NewNop())

	require.NoError(t, c.Consume(ctx))
	assert.Empty(t, reader.commits())
}

func TestConsume_HandlerContextOutlivesShutdown(t *testing.T) {
	reader := newFakeReader(kafka.Message{Offset: 1})
	ctx, cancel := context.WithCancel(context.Background())
	var handlerCtxErr error
	handler := func(hctx context.Context, _ kafka.Message) error {
		cancel()
		handlerCtxErr = hctx.Err()
		_, hasDeadline := hctx.Deadline()
		assert.True(t, hasDeadline)
		return nil
	}
	c := newConsumer(reader, testConsumerConfig(), handler, zap.NewNop())

	require.NoError(t, c.Consume(ctx))
	assert.NoError(t, handlerCtxErr)
	assert.Equal(t, []int64{1}, reader.commits(), "in-flight work is committed during shutdown")
}
