// Package ratelimit throttles repeated actions per logical key, such as
// "login:<username>". Counts live in a counters.Counter so every process
// sharing the store sees the same buckets.
//
// A key moves Fresh -> Counting -> Locked and back to Fresh once its window
// expires or Clear is called.
package ratelimit

import (
	"context"
	"math"
	"time"

	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/logging"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/counters"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/models"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/timex"
)

// Auditor receives degraded-mode events. audit.Trail satisfies it.
type Auditor interface {
	LogSecurityEvent(ctx context.Context, eventType, actor string, meta map[string]any) error
}

// FailMode decides what Check and Attempt report while the counter store is
// unreachable.
type FailMode string

const (
	FailClosed FailMode = "closed"
	FailOpen   FailMode = "open"
)

type Limiter struct {
	counter  counters.Counter
	failOpen bool
	log      logging.Logger
	auditor  Auditor
	now      timex.Clock
}

type Option func(*Limiter)

// WithFailMode selects FailOpen or FailClosed. Anything else keeps the
// closed default.
func WithFailMode(mode FailMode) Option {
	return func(l *Limiter) { l.failOpen = mode == FailOpen }
}

func WithLogger(log logging.Logger) Option {
	return func(l *Limiter) { l.log = log }
}

func WithAuditor(a Auditor) Option {
	return func(l *Limiter) { l.auditor = a }
}

func WithClock(now timex.Clock) Option {
	return func(l *Limiter) { l.now = now }
}

func New(counter counters.Counter, opts ...Option) *Limiter {
	l := &Limiter{
		counter: counter,
		log:     logging.Nop(),
		now:     timex.UTCNow,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check reports whether key has fewer than maxAttempts hits in its current
// window. When the counter store fails, the returned decision follows the
// fail mode and err is non-nil.
func (l *Limiter) Check(ctx context.Context, key string, maxAttempts int) (bool, error) {
	b, err := l.counter.Get(ctx, key)
	if err != nil {
		l.degraded(ctx, "check", key, err)
		return l.failOpen, err
	}
	return b.Attempts < maxAttempts, nil
}

// Attempt records one attempt on key and reports whether it is within
// maxAttempts for the window. The decision is taken from the count the
// increment returned, so concurrent callers each see their own position and
// at most maxAttempts of them are allowed. A fresh bucket gets an expiry of
// now+window. When the counter store fails, allowed follows the fail mode
// and err is non-nil.
func (l *Limiter) Attempt(ctx context.Context, key string, maxAttempts int, window time.Duration) (allowed bool, attempts int, err error) {
	b, err := l.counter.Increment(ctx, key, window)
	if err != nil {
		l.degraded(ctx, "attempt", key, err)
		return l.failOpen, 0, err
	}
	return b.Attempts <= maxAttempts, b.Attempts, nil
}

// Hit records one attempt and returns the count within the window. A fresh
// bucket gets an expiry of now+window.
func (l *Limiter) Hit(ctx context.Context, key string, window time.Duration) (int, error) {
	b, err := l.counter.Increment(ctx, key, window)
	if err != nil {
		l.degraded(ctx, "hit", key, err)
		return 0, err
	}
	return b.Attempts, nil
}

func (l *Limiter) Clear(ctx context.Context, key string) error {
	if err := l.counter.Reset(ctx, key); err != nil {
		l.degraded(ctx, "clear", key, err)
		return err
	}
	return nil
}

// AvailableIn returns the whole seconds, rounded up, until the window of key
// expires, or 0 when the key has no active bucket.
func (l *Limiter) AvailableIn(ctx context.Context, key string) (int, error) {
	b, err := l.counter.Get(ctx, key)
	if err != nil {
		l.degraded(ctx, "available_in", key, err)
		return 0, err
	}
	return secondsLeft(b, l.now()), nil
}

func secondsLeft(b models.Bucket, now time.Time) int {
	if b.Attempts == 0 || b.Expired(now) {
		return 0
	}
	return int(math.Ceil(b.ExpiresAt.Sub(now).Seconds()))
}

func (l *Limiter) degraded(ctx context.Context, op, key string, err error) {
	mode := FailClosed
	if l.failOpen {
		mode = FailOpen
	}
	l.log.Error(ctx, "rate limiter counter store failed", "op", op, "key", key, "fail_mode", mode, "error", err)

	if l.auditor == nil {
		return
	}
	meta := map[string]any{"op": op, "key": key, "fail_mode": mode}
	// the audit sink escalates its own failures
	_ = l.auditor.LogSecurityEvent(ctx, models.EventRateLimiterDegraded, "system", meta)
}
