package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tradingbot/src/model"

	"github.com/jpillora/backoff"
	logger "github.com/sirupsen/logrus"
)

// RetryPolicy bounds how often and how patiently a transient call is repeated.
type RetryPolicy struct {
	Attempts int
	MinDelay time.Duration
	MaxDelay time.Duration
	Timeout  time.Duration // per attempt; zero means no deadline
}

// Retry runs fn until it succeeds, fails permanently, or runs out of attempts.
// Waits grow exponentially between MinDelay and MaxDelay.
func Retry(ctx context.Context, policy RetryPolicy, op string, log *logger.Entry, fn func(ctx context.Context) error) error {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}
	b := &backoff.Backoff{
		Min:    policy.MinDelay,
		Max:    policy.MaxDelay,
		Factor: 2,
		Jitter: false,
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = callOnce(ctx, policy.Timeout, fn)
		if err == nil {
			return nil
		}
		if !Retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		wait := b.Duration()
		if log != nil {
			log.WithError(err).
				WithField("op", op).
				WithField("attempt", attempt).
				WithField("wait", wait.String()).
				Warn("transient failure, retrying")
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: %w", op, ctx.Err())
		case <-timer.C:
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, attempts, err)
}

func callOnce(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(callCtx)
}

// Retryable reports whether an error may clear up on a later attempt.
func Retryable(err error) bool {
	switch {
	case errors.Is(err, model.ErrDataUnavailable),
		errors.Is(err, model.ErrInsufficientHistory),
		errors.Is(err, model.ErrConfiguration),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}
