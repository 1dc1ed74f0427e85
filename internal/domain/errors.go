package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrValidation          = errors.New("validation failed")
	ErrInvalidTransition   = errors.New("invalid payment status transition")
	ErrResolverUnavailable = errors.New("outcome resolver unavailable")
)

func NewValidationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

type PublishErrorKind int

const (
	// PublishTerminal means the broker rejected the message or the writer
	// exhausted its attempts.
	PublishTerminal PublishErrorKind = iota
	// PublishInterrupted means the publish was cancelled or timed out while
	// waiting for the acknowledgement.
	PublishInterrupted
)

func (k PublishErrorKind) String() string {
	if k == PublishInterrupted {
		return "interrupted"
	}
	return "terminal"
}

type PublishError struct {
	Kind PublishErrorKind
	Err  error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %s: %v", e.Kind, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// ClassifyPublishError tags err as interrupted when it stems from context
// cancellation or a deadline, terminal otherwise.
func ClassifyPublishError(err error) *PublishError {
	if err == nil {
		return nil
	}
	var pubErr *PublishError
	if errors.As(err, &pubErr) {
		return pubErr
	}
	kind := PublishTerminal
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		kind = PublishInterrupted
	}
	return &PublishError{Kind: kind, Err: err}
}

func IsPublishInterrupted(err error) bool {
	var pubErr *PublishError
	return errors.As(err, &pubErr) && pubErr.Kind == PublishInterrupted
}
