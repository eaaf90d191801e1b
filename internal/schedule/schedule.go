// Package schedule runs a sequence of fetches against a rate-limited
// service, spacing request initiations and reporting progress in order.
package schedule

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Result is the outcome of one item. Exactly one of Value or Err is
// meaningful. Skipped items were never started because the context ended.
type Result[K comparable, T any] struct {
	Key     K
	Value   T
	Err     error
	Skipped bool
}

// OK reports whether the item was fetched successfully.
func (r Result[K, T]) OK() bool {
	return r.Err == nil && !r.Skipped
}

// FetchFunc fetches one item.
type FetchFunc[K comparable, T any] func(ctx context.Context, key K) (T, error)

// ProgressFunc is called once per attempted item after it completes, with
// a 1-based index.
type ProgressFunc[K comparable] func(index, total int, key K)

// NewLimiter returns a limiter that admits one request per delay with no
// burst. A non-positive delay admits everything.
func NewLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

// Run fetches keys in order, one at a time. Successive fetches start at
// least delay apart; the first is not delayed and nothing waits after the
// last. A failed fetch is recorded in its Result and the run continues.
//
// When ctx ends before an item starts, that item and every later one are
// returned as Skipped without a progress callback, and Run returns
// ctx.Err(). The result slice always has one entry per key, in key order.
func Run[K comparable, T any](ctx context.Context, delay time.Duration, keys []K, fetch FetchFunc[K, T], onProgress ProgressFunc[K]) ([]Result[K, T], error) {
	results := make([]Result[K, T], len(keys))
	limiter := NewLimiter(delay)
	total := len(keys)

	for i, key := range keys {
		results[i].Key = key
		if err := Wait(ctx, limiter); err != nil {
			skipFrom(results, keys, i, err)
			return results, err
		}

		v, err := fetch(ctx, key)
		results[i].Value = v
		results[i].Err = err

		if onProgress != nil {
			onProgress(i+1, total, key)
		}
	}
	return results, nil
}

func skipFrom[K comparable, T any](results []Result[K, T], keys []K, from int, err error) {
	for j := from; j < len(keys); j++ {
		results[j] = Result[K, T]{Key: keys[j], Err: err, Skipped: true}
	}
}

// Wait blocks until limiter admits one request. A failure is reported as
// the context error, even when the limiter gives up before the deadline.
func Wait(ctx context.Context, limiter *rate.Limiter) error {
	if err := limiter.Wait(ctx); err != nil {
		return ctxErr(ctx, err)
	}
	return nil
}

// ctxErr maps a limiter failure onto the context error. The limiter fails
// early, before the context ends, when the next slot falls after the
// deadline.
func ctxErr(ctx context.Context, waitErr error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := ctx.Deadline(); ok {
		return context.DeadlineExceeded
	}
	return waitErr
}
