package core

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Clock abstracts time.Now for deterministic tests.
type Clock interface {
	Now() time.Time
}

// FuncClock wraps a function to satisfy Clock.
type FuncClock func() time.Time

// Now implements the Clock interface.
func (f FuncClock) Now() time.Time { return f() }

// RealClock returns the wall clock.
func RealClock() Clock { return FuncClock(time.Now) }

// Sleeper abstracts waiting between iterations so tests can simulate elapsed time.
// Sleep returns early with the context error when ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// FuncSleeper wraps a function to satisfy Sleeper.
type FuncSleeper func(context.Context, time.Duration) error

// Sleep implements the Sleeper interface.
func (f FuncSleeper) Sleep(ctx context.Context, d time.Duration) error { return f(ctx, d) }

// TimerSleeper waits on a timer and wakes up when ctx is done.
func TimerSleeper() Sleeper {
	return FuncSleeper(func(ctx context.Context, d time.Duration) error {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	})
}

// BackoffStrategy holds retry parameters. Used for bootstrapping remote
// collaborators; the discovery loop relies on its fixed period instead.
type BackoffStrategy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
	Jitter      float64
	Sleeper     Sleeper
	Rand        func() float64
}

// DefaultBackoff returns a conservative exponential backoff configuration.
func DefaultBackoff() BackoffStrategy {
	return BackoffStrategy{
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		MaxAttempts: 5,
		Jitter:      0.2,
	}
}

// Retry executes fn with exponential backoff until it succeeds, shouldRetry
// rejects the error, attempts run out or ctx is done. It returns the number of
// attempts executed and the last error.
func (b BackoffStrategy) Retry(ctx context.Context, fn func(context.Context) error, shouldRetry func(error) bool) (int, error) {
	if b.MaxAttempts <= 0 {
		b.MaxAttempts = 1
	}
	if b.BaseDelay <= 0 {
		b.BaseDelay = 100 * time.Millisecond
	}
	if b.MaxDelay <= 0 {
		b.MaxDelay = time.Second
	}
	sleeper := b.Sleeper
	if sleeper == nil {
		sleeper = TimerSleeper()
	}
	rnd := b.Rand
	if rnd == nil {
		rnd = rand.Float64
	}
	for attempt := 1; attempt <= b.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return attempt, nil
		}
		if shouldRetry != nil && !shouldRetry(err) {
			return attempt, err
		}
		if attempt == b.MaxAttempts {
			return attempt, err
		}
		delay := b.nextDelay(attempt)
		if b.Jitter > 0 {
			delay += time.Duration(float64(delay) * b.Jitter * rnd())
		}
		if sleepErr := sleeper.Sleep(ctx, delay); sleepErr != nil {
			return attempt, err
		}
	}
	return b.MaxAttempts, nil
}

func (b BackoffStrategy) nextDelay(attempt int) time.Duration {
	delay := float64(b.BaseDelay) * math.Pow(2, float64(attempt-1))
	if max := float64(b.MaxDelay); delay > max {
		delay = max
	}
	return time.Duration(delay)
}
