package fetch

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/vietddude/domainwatch/internal/core/domain"
)

// Retrying wraps a Fetcher with bounded fibonacci backoff for transient
// errors. Permanent failures pass through untouched on the first attempt.
type Retrying struct {
	next        Fetcher
	maxAttempts uint64
	base        time.Duration
}

// NewRetrying wraps next. maxAttempts <= 0 defaults to 3 retries; base <= 0
// defaults to 250ms.
func NewRetrying(next Fetcher, maxAttempts int, base time.Duration) *Retrying {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if base <= 0 {
		base = 250 * time.Millisecond
	}
	return &Retrying{next: next, maxAttempts: uint64(maxAttempts), base: base}
}

// Fetch retries transient failures and returns permanent ones immediately.
func (r *Retrying) Fetch(ctx context.Context, domainName string, section domain.Section) (*SectionData, error) {
	var data *SectionData

	backoff := retry.WithMaxRetries(r.maxAttempts, retry.NewFibonacci(r.base))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		data, err = r.next.Fetch(ctx, domainName, section)
		if err == nil || IsPermanent(err) {
			return err
		}
		return retry.RetryableError(err)
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}
