package service

import (
	"context"
	"errors"
	"time"

	"electrohub/internal/features/orders/domain"

	"github.com/sethvargo/go-retry"
)

// RetryPolicy retries calls failing with domain.ErrBackendUnavailable using exponential backoff.
type RetryPolicy struct {
	MaxRetries uint64
	BaseDelay  time.Duration
}

// DefaultRetryPolicy retries three times starting at 50ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BaseDelay: 50 * time.Millisecond}
}

// Do runs fn until it succeeds, fails with a non-transient error, or retries run out.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.MaxRetries == 0 {
		return fn(ctx)
	}
	base := p.BaseDelay
	if base <= 0 {
		base = time.Millisecond
	}
	b := retry.NewExponential(base)
	b = retry.WithJitterPercent(20, b)
	b = retry.WithMaxRetries(p.MaxRetries, b)

	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := fn(ctx)
		if errors.Is(err, domain.ErrBackendUnavailable) {
			return retry.RetryableError(err)
		}
		return err
	})
}
