// Package retry decides whether a failed stage attempt runs again. It is the
// single decision point for retries; stage executors only classify errors.
package retry

import (
	"time"

	"tubecraft/internal/config"
	"tubecraft/internal/services"
)

const defaultMaxBackoff = 60 * time.Second

// Policy evaluates stage failures against the configured attempt budget.
type Policy struct {
	maxAttempts int
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

// Decision is the outcome of evaluating one failed attempt.
type Decision struct {
	Retry   bool
	Backoff time.Duration
	Kind    services.Kind
}

// NewPolicy constructs a policy from scheduler configuration.
func NewPolicy(cfg config.Scheduler) *Policy {
	maxAttempts := cfg.RetryMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	baseBackoff := time.Duration(cfg.RetryBackoffSeconds) * time.Second
	if baseBackoff <= 0 {
		baseBackoff = 2 * time.Second
	}
	return &Policy{
		maxAttempts: maxAttempts,
		baseBackoff: baseBackoff,
		maxBackoff:  defaultMaxBackoff,
	}
}

// MaxAttempts returns the per-stage attempt budget.
func (p *Policy) MaxAttempts() int {
	return p.maxAttempts
}

// Decide evaluates a failed attempt. attempt is the 1-based number of the
// attempt that just failed. Terminal error kinds never retry; retryable kinds
// retry until the attempt budget is spent, with exponential backoff.
func (p *Policy) Decide(err error, attempt int) Decision {
	kind := services.Classify(err)
	decision := Decision{Kind: kind}

	if services.IsCancellation(err) {
		return decision
	}
	if !kind.Retryable() {
		return decision
	}
	if attempt >= p.maxAttempts {
		return decision
	}

	decision.Retry = true
	decision.Backoff = p.backoff(attempt, kind)
	return decision
}

// backoff grows exponentially with the attempt number. Resource exhaustion
// doubles the delay on top of that to give the starved dependency room.
func (p *Policy) backoff(attempt int, kind services.Kind) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.baseBackoff
	for i := 1; i < attempt; i++ {
		if delay > p.maxBackoff/2 {
			delay = p.maxBackoff
			break
		}
		delay *= 2
	}
	if kind == services.KindResourceExhaustion {
		delay *= 2
	}
	if delay > p.maxBackoff {
		delay = p.maxBackoff
	}
	return delay
}
