package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/logging"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/counters"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/models"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type brokenCounter struct{ err error }

func (c brokenCounter) Increment(context.Context, string, time.Duration) (models.Bucket, error) {
	return models.Bucket{}, c.err
}
func (c brokenCounter) Get(context.Context, string) (models.Bucket, error) {
	return models.Bucket{}, c.err
}
func (c brokenCounter) Reset(context.Context, string) error { return c.err }

type recordingAuditor struct {
	mu     sync.Mutex
	events []string
	meta   []map[string]any
}

func (a *recordingAuditor) LogSecurityEvent(_ context.Context, eventType, _ string, meta map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, eventType)
	a.meta = append(a.meta, meta)
	return nil
}

func newSQLLimiter(t *testing.T) (*Limiter, *testutil.Clock) {
	t.Helper()
	store := testutil.NewSQLiteStore(t)
	clock := testutil.NewClock()
	c := counters.NewSQLCounter(store.DB(), store.Dialect(), clock.Now)
	return New(c, WithClock(clock.Now)), clock
}

func TestLimiter_LocksAfterMaxAttempts(t *testing.T) {
	l, _ := newSQLLimiter(t)
	ctx := context.Background()
	const key = "login:alice"

	for i := 1; i <= 5; i++ {
		ok, err := l.Check(ctx, key, 5)
		require.NoError(t, err)
		assert.True(t, ok, "attempt %d", i)

		n, err := l.Hit(ctx, key, 15*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}

	ok, err := l.Check(ctx, key, 5)
	require.NoError(t, err)
	assert.False(t, ok)

	// other keys are unaffected
	ok, err = l.Check(ctx, "login:bob", 5)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLimiter_AvailableInDecreasesUntilExpiry(t *testing.T) {
	l, clock := newSQLLimiter(t)
	ctx := context.Background()
	const key = "login:alice"

	secs, err := l.AvailableIn(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 0, secs)

	for i := 0; i < 3; i++ {
		_, err := l.Hit(ctx, key, time.Minute)
		require.NoError(t, err)
	}

	first, err := l.AvailableIn(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 60, first)

	clock.Advance(20*time.Second + 500*time.Millisecond)
	second, err := l.AvailableIn(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 40, second)
	assert.Less(t, second, first)

	clock.Advance(40 * time.Second)
	last, err := l.AvailableIn(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 0, last)

	ok, err := l.Check(ctx, key, 3)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLimiter_ClearRestoresAccess(t *testing.T) {
	l, _ := newSQLLimiter(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := l.Hit(ctx, "k", time.Minute)
		require.NoError(t, err)
	}
	ok, err := l.Check(ctx, "k", 2)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, l.Clear(ctx, "k"))

	ok, err = l.Check(ctx, "k", 2)
	require.NoError(t, err)
	assert.True(t, ok)
	secs, err := l.AvailableIn(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 0, secs)
}

func TestLimiter_ConcurrentHits(t *testing.T) {
	l, _ := newSQLLimiter(t)
	ctx := context.Background()

	const hits = 20
	var wg sync.WaitGroup
	for i := 0; i < hits; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = l.Hit(ctx, "login:alice", time.Minute)
		}()
	}
	wg.Wait()

	ok, err := l.Check(ctx, "login:alice", hits)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = l.Check(ctx, "login:alice", hits+1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLimiter_AttemptCountsAndDecides(t *testing.T) {
	l, clock := newSQLLimiter(t)
	ctx := context.Background()
	const key = "login:alice"

	for i := 1; i <= 3; i++ {
		ok, n, err := l.Attempt(ctx, key, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "attempt %d", i)
		assert.Equal(t, i, n)
	}

	ok, n, err := l.Attempt(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 4, n)

	// rejected attempts do not push the window out
	secs, err := l.AvailableIn(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 60, secs)

	clock.Advance(time.Minute)
	ok, n, err = l.Attempt(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, n)
}

func TestLimiter_ConcurrentAttemptsAllowAtMostMax(t *testing.T) {
	l, _ := newSQLLimiter(t)
	ctx := context.Background()

	const (
		callers     = 30
		maxAttempts = 5
	)
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _, err := l.Attempt(ctx, "login:alice", maxAttempts, time.Minute)
			if err == nil && ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, maxAttempts, allowed)
}

func TestLimiter_FailModes(t *testing.T) {
	boom := errors.New("connection refused")

	tests := []struct {
		name   string
		mode   FailMode
		wantOK bool
	}{
		{name: "closed", mode: FailClosed, wantOK: false},
		{name: "open", mode: FailOpen, wantOK: true},
		{name: "unknown falls back to closed", mode: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			auditor := &recordingAuditor{}
			l := New(brokenCounter{err: boom},
				WithFailMode(tt.mode),
				WithLogger(logging.NewZapLogger(zap.New(core))),
				WithAuditor(auditor),
			)

			ok, err := l.Check(context.Background(), "login:alice", 5)
			require.ErrorIs(t, err, boom)
			assert.Equal(t, tt.wantOK, ok)

			entries := logs.FilterMessage("rate limiter counter store failed").All()
			require.Len(t, entries, 1)
			assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)

			require.Equal(t, []string{models.EventRateLimiterDegraded}, auditor.events)
			assert.Equal(t, "check", auditor.meta[0]["op"])
			assert.Equal(t, tt.mode == FailOpen, auditor.meta[0]["fail_mode"] == FailOpen)

			allowed, n, err := l.Attempt(context.Background(), "login:alice", 5, time.Minute)
			require.ErrorIs(t, err, boom)
			assert.Equal(t, tt.wantOK, allowed)
			assert.Zero(t, n)
		})
	}
}

func TestLimiter_StoreErrorsPropagate(t *testing.T) {
	boom := errors.New("boom")
	auditor := &recordingAuditor{}
	l := New(brokenCounter{err: boom}, WithAuditor(auditor))
	ctx := context.Background()

	_, err := l.Hit(ctx, "k", time.Minute)
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, l.Clear(ctx, "k"), boom)
	_, err = l.AvailableIn(ctx, "k")
	require.ErrorIs(t, err, boom)

	assert.Len(t, auditor.events, 3)
}
