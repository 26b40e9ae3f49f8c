package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTransient           = errors.New("transient failure")
	ErrTimeout             = errors.New("timeout")
	ErrInvalidInput        = errors.New("invalid input")
	ErrResourceExhausted   = errors.New("resource exhausted")
	ErrInternal            = errors.New("internal inconsistency")
	ErrNotFound            = errors.New("not found")
	ErrConfiguration       = errors.New("configuration error")
	ErrCancelled           = errors.New("cancelled")
	ErrAlreadyTerminal     = errors.New("episode already terminal")
	ErrInvalidTransition   = fmt.Errorf("%w: invalid status transition", ErrInternal)
	ErrAttemptsExhausted   = errors.New("retry attempts exhausted")
	ErrDependencyUnhealthy = errors.New("dependency unhealthy")
)

// Kind is the failure classification the retry policy keys on.
type Kind string

const (
	KindTransient          Kind = "transient_unavailable"
	KindTimeout            Kind = "timeout"
	KindInvalidInput       Kind = "invalid_input"
	KindResourceExhaustion Kind = "resource_exhaustion"
	KindInternal           Kind = "internal_inconsistency"
)

// Retryable reports whether failures of this kind are worth another attempt.
func (k Kind) Retryable() bool {
	switch k {
	case KindTransient, KindTimeout, KindResourceExhaustion:
		return true
	default:
		return false
	}
}

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps an error to its failure kind. Unknown errors are treated as
// transient so the retry policy gets a chance to recover them.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindTransient
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrConfiguration), errors.Is(err, ErrNotFound):
		return KindInvalidInput
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrResourceExhausted):
		return KindResourceExhaustion
	case errors.Is(err, ErrInternal):
		return KindInternal
	default:
		return KindTransient
	}
}

// IsCancellation reports whether an error stems from a cancel request rather
// than a stage failure.
func IsCancellation(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
