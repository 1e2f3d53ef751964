package github

import (
	"context"
	"math/rand"
	"sync"
	"time"

	gh "github.com/google/go-github/v57/github"
	"github.com/sirupsen/logrus"
)

const (
	maxRetries   = 5
	initialDelay = time.Second
	maxDelay     = 60 * time.Second
)

// newTimer is swapped out in tests.
var newTimer = time.NewTimer

// timeNow is swapped out in tests.
var timeNow = time.Now

// rateState tracks the core rate-limit observation for one credential.
// Mutations are serialized; no I/O happens under the lock.
type rateState struct {
	mu        sync.Mutex
	remaining int
	reset     time.Time
	observed  bool
}

// observe records the rate-limit headers from a response.
func (r *rateState) observe(resp *gh.Response) {
	if resp == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remaining = resp.Rate.Remaining
	r.reset = resp.Rate.Reset.Time
	r.observed = true
}

// snapshot returns the current observation.
func (r *rateState) snapshot() (remaining int, reset time.Time, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remaining, r.reset, r.observed
}

// waitIfExhausted sleeps until the observed reset when no requests remain.
// The sleep happens outside the critical section.
func (r *rateState) waitIfExhausted(ctx context.Context, log *logrus.Entry) error {
	remaining, reset, ok := r.snapshot()
	if !ok || remaining > 0 {
		return nil
	}
	wait := reset.Sub(timeNow()) + jitter(time.Second)
	if wait <= 0 {
		return nil
	}
	log.WithFields(logrus.Fields{
		"reset_at": reset,
		"wait":     wait.Round(time.Second),
	}).Warn("rate limit exhausted, waiting for reset")
	return sleepCtx(ctx, wait)
}

// jitter returns a random duration in [0, d).
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(d)))
}

// backoffDelay computes the delay before the given attempt: exponential
// from 1s doubling to a 60s cap, with plus or minus 20 percent jitter.
func backoffDelay(attempt int) time.Duration {
	delay := initialDelay << uint(attempt)
	if delay > maxDelay {
		delay = maxDelay
	}
	spread := int64(delay) / 5
	if spread > 0 {
		delay += time.Duration(rand.Int63n(2*spread) - spread)
	}
	return delay
}

// sleepCtx sleeps for d unless the context expires first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := newTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
