package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/common"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/cryptox"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/auth"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/models"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogin_UnknownUser(t *testing.T) {
	env := newLoginEnv(t)
	ctx := context.Background()
	sess := env.anonymousSession(t)

	res, err := env.auth.Login(ctx, sess, LoginRequest{Username: "ghost", Password: "whatever"})
	require.ErrorIs(t, err, common.ErrInvalidCredentials)
	assert.Nil(t, res)
	assert.Equal(t, "invalid username or password", err.Error())

	assert.Equal(t, 1, env.attempts(t, "ghost"))

	entries := env.auditEvents(t, "ghost")
	require.Len(t, entries, 1)
	assert.Equal(t, models.EventLoginFailure, entries[0].EventType)
	assert.Equal(t, ReasonUnknownUser, entries[0].Metadata["reason"])

	assert.False(t, env.auth.Check(sess))
}

func TestLogin_Success(t *testing.T) {
	env := newLoginEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "alice", models.UserStatusActive)
	sess := env.anonymousSession(t)
	oldID, oldToken := sess.ID, sess.Token

	res, err := env.auth.Login(ctx, sess, LoginRequest{Username: "alice", Password: goodPassword})
	require.NoError(t, err)
	require.NotNil(t, res.User)
	assert.Equal(t, "alice", res.User.Username)
	assert.Equal(t, env.cfg.DefaultLandingPath, res.RedirectTo)
	assert.Empty(t, res.RememberToken)

	assert.True(t, env.auth.Check(sess))
	assert.NotEqual(t, oldID, sess.ID)
	assert.NotEqual(t, oldToken, sess.Token)
	assert.NotEmpty(t, sess.CSRFToken, "csrf token survives regeneration")

	// the pre-login session is gone, the new one is stored
	old, err := env.sessions.Load(ctx, oldToken)
	require.NoError(t, err)
	assert.True(t, old.New)
	stored, err := env.sessions.Load(ctx, sess.Token)
	require.NoError(t, err)
	require.True(t, stored.Authenticated())
	assert.Equal(t, user.ID, *stored.UserID)

	assert.Equal(t, 0, env.attempts(t, "alice"))

	entries := env.auditEvents(t, "alice")
	assert.Equal(t, []string{models.EventLoginSuccess}, eventTypes(entries))

	got := env.user(t, user.ID)
	require.NotNil(t, got.LastLogin)
	assert.True(t, got.LastLogin.Equal(env.clock.Now()))
}

func TestLogin_SuccessClearsEarlierFailures(t *testing.T) {
	env := newLoginEnv(t)
	ctx := context.Background()
	env.createUser(t, "alice", models.UserStatusActive)

	_, err := env.auth.Login(ctx, env.anonymousSession(t), LoginRequest{Username: "alice", Password: "nope"})
	require.ErrorIs(t, err, common.ErrInvalidCredentials)
	require.Equal(t, 1, env.attempts(t, "alice"))

	_, err = env.auth.Login(ctx, env.anonymousSession(t), LoginRequest{Username: "Alice ", Password: goodPassword})
	require.ErrorIs(t, err, common.ErrInvalidCredentials, "usernames are matched exactly")
	require.Equal(t, 2, env.attempts(t, "alice"), "but share a bucket regardless of case")

	_, err = env.auth.Login(ctx, env.anonymousSession(t), LoginRequest{Username: "alice", Password: goodPassword})
	require.NoError(t, err)
	assert.Equal(t, 0, env.attempts(t, "alice"))
}

func TestLogin_LockoutAfterMaxAttempts(t *testing.T) {
	env := newLoginEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "alice", models.UserStatusActive)
	require.Equal(t, 5, env.cfg.MaxLoginAttempts)

	for i := 1; i <= env.cfg.MaxLoginAttempts; i++ {
		_, err := env.auth.Login(ctx, env.anonymousSession(t), LoginRequest{Username: "alice", Password: "wrong"})
		require.ErrorIs(t, err, common.ErrInvalidCredentials, "attempt %d", i)
		env.clock.Advance(time.Second)
	}
	require.Equal(t, 5, env.attempts(t, "alice"))
	lookupsBefore := env.lookups.Load()

	sess := env.anonymousSession(t)
	_, err := env.auth.Login(ctx, sess, LoginRequest{Username: "alice", Password: goodPassword})

	var throttled *common.ThrottledError
	require.ErrorAs(t, err, &throttled)
	require.ErrorIs(t, err, common.ErrThrottled)
	// window opened by the first failure five seconds ago
	assert.Equal(t, int((15*time.Minute-5*time.Second)/time.Second), throttled.RetryAfter)
	assert.Equal(t, "Too many login attempts. Please try again in 15 minutes.", err.Error())

	assert.Equal(t, lookupsBefore, env.lookups.Load(), "no credential lookup while locked")
	assert.False(t, env.auth.Check(sess))
	assert.Nil(t, env.user(t, user.ID).LastLogin)

	events := eventTypes(env.auditEvents(t, "alice"))
	assert.Equal(t, []string{
		models.EventLoginFailure, models.EventLoginFailure, models.EventLoginFailure,
		models.EventLoginFailure, models.EventLoginFailure, models.EventRateLimitExceeded,
	}, events)

	// once the window passes the user can sign in again
	env.clock.Advance(15 * time.Minute)
	_, err = env.auth.Login(ctx, sess, LoginRequest{Username: "alice", Password: goodPassword})
	require.NoError(t, err)
}

func TestLogin_ParallelFailuresStopAtMaxAttempts(t *testing.T) {
	env := newLoginEnv(t)
	ctx := context.Background()
	env.createUser(t, "alice", models.UserStatusActive)

	const callers = 30
	sessions := make([]*models.Session, callers)
	for i := range sessions {
		sessions[i] = env.anonymousSession(t)
	}

	var (
		wg        sync.WaitGroup
		invalid   atomic.Int32
		throttled atomic.Int32
	)
	for _, sess := range sessions {
		wg.Add(1)
		go func(sess *models.Session) {
			defer wg.Done()
			_, err := env.auth.Login(ctx, sess, LoginRequest{Username: "alice", Password: "wrong"})
			switch {
			case errors.Is(err, common.ErrInvalidCredentials):
				invalid.Add(1)
			case errors.Is(err, common.ErrThrottled):
				throttled.Add(1)
			}
		}(sess)
	}
	wg.Wait()

	maxAttempts := int32(env.cfg.MaxLoginAttempts)
	assert.LessOrEqual(t, env.lookups.Load(), maxAttempts)
	assert.Equal(t, maxAttempts, invalid.Load())
	assert.Equal(t, callers-maxAttempts, throttled.Load())
}

func TestLogin_DisabledUserLooksUnknown(t *testing.T) {
	env := newLoginEnv(t)
	ctx := context.Background()
	env.createUser(t, "bob", models.UserStatusDisabled)

	_, errDisabled := env.auth.Login(ctx, env.anonymousSession(t), LoginRequest{Username: "bob", Password: goodPassword})
	_, errUnknown := env.auth.Login(ctx, env.anonymousSession(t), LoginRequest{Username: "carol", Password: goodPassword})

	require.ErrorIs(t, errDisabled, common.ErrInvalidCredentials)
	assert.Equal(t, errUnknown, errDisabled)
	assert.Equal(t, 1, env.attempts(t, "bob"))
	assert.Equal(t, 1, env.attempts(t, "carol"))

	entries := env.auditEvents(t, "bob")
	require.Len(t, entries, 1)
	assert.Equal(t, ReasonAccountDisabled, entries[0].Metadata["reason"])
}

func TestLogin_ValidationFailureIsNotCounted(t *testing.T) {
	env := newLoginEnv(t)
	ctx := context.Background()

	_, err := env.auth.Login(ctx, env.anonymousSession(t), LoginRequest{Username: "  ", Password: ""})
	var verr *common.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "username")
	assert.Contains(t, verr.Fields, "password")

	assert.Zero(t, env.lookups.Load())
	assert.Empty(t, env.auditEvents(t, ""))
}

func TestLogin_RehashesOutdatedHash(t *testing.T) {
	env := newLoginEnv(t)
	ctx := context.Background()

	oldHash, err := cryptox.HashBcrypt([]byte(goodPassword), env.cfg.BcryptCost+1)
	require.NoError(t, err)
	user := testutil.CreateUser(t, env.store, "alice", oldHash, models.UserStatusActive)

	_, err = env.auth.Login(ctx, env.anonymousSession(t), LoginRequest{Username: "alice", Password: goodPassword})
	require.NoError(t, err)

	newHash := env.user(t, user.ID).PasswordHash
	assert.NotEqual(t, oldHash, newHash)
	assert.False(t, env.toolkit.NeedsRehash(newHash))
	assert.True(t, env.toolkit.VerifyPassword(goodPassword, newHash))

	// both entries share a timestamp, so order is not guaranteed
	assert.ElementsMatch(t, []string{models.EventLoginSuccess, models.EventPasswordRehashed}, eventTypes(env.auditEvents(t, "alice")))
}

func TestLogin_IntendedURL(t *testing.T) {
	env := newLoginEnv(t)
	ctx := context.Background()
	env.createUser(t, "alice", models.UserStatusActive)

	sess := env.anonymousSession(t)
	env.auth.RememberIntendedURL(sess, "/stock/toner?page=2")

	res, err := env.auth.Login(ctx, sess, LoginRequest{Username: "alice", Password: goodPassword})
	require.NoError(t, err)
	assert.Equal(t, "/stock/toner?page=2", res.RedirectTo)
	assert.Empty(t, sess.IntendedURL)

	// single use
	assert.Equal(t, env.cfg.DefaultLandingPath, env.auth.IntendedURL(sess))
}

func TestRememberIntendedURL_RejectsForeignTargets(t *testing.T) {
	env := newLoginEnv(t)

	for _, target := range []string{"https://evil.example/", "//evil.example/x", "/\\evil.example", "stock", ""} {
		sess := &models.Session{}
		env.auth.RememberIntendedURL(sess, target)
		assert.Empty(t, sess.IntendedURL, target)
		assert.Equal(t, env.cfg.DefaultLandingPath, env.auth.IntendedURL(sess))
	}

	// a stored value that is not local never leaves the service
	sess := &models.Session{IntendedURL: "//evil.example"}
	assert.Equal(t, env.cfg.DefaultLandingPath, env.auth.IntendedURL(sess))
}

func TestLogin_RememberToken(t *testing.T) {
	env := newLoginEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "alice", models.UserStatusActive)

	res, err := env.auth.Login(ctx, env.anonymousSession(t), LoginRequest{Username: "alice", Password: goodPassword, Remember: true})
	require.NoError(t, err)
	require.NotEmpty(t, res.RememberToken)

	// a later visit with an expired session but the remember cookie
	env.clock.Advance(env.cfg.SessionLifetime + time.Hour)
	sess, err := env.sessions.Load(ctx, "")
	require.NoError(t, err)

	summary, err := env.auth.LoginFromRememberToken(ctx, sess, res.RememberToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, summary.ID)
	assert.True(t, env.auth.Check(sess))
	assert.True(t, sess.Remember)
	assert.True(t, sess.ExpiresAt.Equal(env.clock.Now().Add(env.cfg.RememberLifetime)))

	events := eventTypes(env.auditEvents(t, "alice"))
	assert.Equal(t, []string{models.EventLoginSuccess, models.EventRememberLogin}, events)
}

func TestLoginFromRememberToken_Rejects(t *testing.T) {
	env := newLoginEnv(t)
	ctx := context.Background()
	secret := []byte(env.cfg.SecretKey)
	now := env.clock.Now()

	active := env.createUser(t, "alice", models.UserStatusActive)
	disabled := env.createUser(t, "bob", models.UserStatusDisabled)

	sign := func(id int64, name string) string {
		tok, err := auth.GenerateRememberToken(id, name, secret, time.Hour, now)
		require.NoError(t, err)
		return tok
	}

	cases := map[string]string{
		"disabled user": sign(disabled.ID, "bob"),
		"renamed user":  sign(active.ID, "mallory"),
		"unknown user":  sign(9999, "ghost"),
		"garbage":       "not-a-token",
	}
	for name, tok := range cases {
		sess, err := env.sessions.Load(ctx, "")
		require.NoError(t, err)
		_, err = env.auth.LoginFromRememberToken(ctx, sess, tok)
		assert.ErrorIs(t, err, common.ErrInvalidToken, name)
		assert.False(t, sess.Authenticated(), name)
	}

	expired, err := auth.GenerateRememberToken(active.ID, "alice", secret, time.Minute, now.Add(-time.Hour))
	require.NoError(t, err)
	sess, err := env.sessions.Load(ctx, "")
	require.NoError(t, err)
	_, err = env.auth.LoginFromRememberToken(ctx, sess, expired)
	assert.ErrorIs(t, err, common.ErrTokenExpired)
}

func TestLogout(t *testing.T) {
	env := newLoginEnv(t)
	ctx := context.Background()
	env.createUser(t, "alice", models.UserStatusActive)

	sess := env.anonymousSession(t)
	_, err := env.auth.Login(ctx, sess, LoginRequest{Username: "alice", Password: goodPassword})
	require.NoError(t, err)
	require.NoError(t, env.sessions.Save(ctx, sess))
	token := sess.Token

	require.NoError(t, env.auth.Logout(ctx, sess))
	assert.False(t, env.auth.Check(sess))
	assert.NotEqual(t, token, sess.Token)
	assert.Empty(t, sess.Username)

	reloaded, err := env.sessions.Load(ctx, token)
	require.NoError(t, err)
	assert.False(t, reloaded.Authenticated())

	assert.ElementsMatch(t, []string{models.EventLoginSuccess, models.EventLogout}, eventTypes(env.auditEvents(t, "alice")))

	// logging out an anonymous session records nothing
	require.NoError(t, env.auth.Logout(ctx, sess))
	assert.Len(t, env.auditEvents(t, "alice"), 2)
}

func TestCheck_ExpiredSession(t *testing.T) {
	env := newLoginEnv(t)
	ctx := context.Background()
	env.createUser(t, "alice", models.UserStatusActive)

	sess := env.anonymousSession(t)
	_, err := env.auth.Login(ctx, sess, LoginRequest{Username: "alice", Password: goodPassword})
	require.NoError(t, err)
	require.True(t, env.auth.Check(sess))

	env.clock.Advance(env.cfg.SessionLifetime)
	assert.False(t, env.auth.Check(sess))
}

type stubLimiter struct {
	allowed bool
	err     error
}

func (l *stubLimiter) Attempt(context.Context, string, int, time.Duration) (bool, int, error) {
	return l.allowed, 0, l.err
}
func (l *stubLimiter) Clear(context.Context, string) error               { return nil }
func (l *stubLimiter) AvailableIn(context.Context, string) (int, error) { return 0, l.err }

func TestLogin_LimiterStoreDown(t *testing.T) {
	env := newLoginEnv(t)
	ctx := context.Background()
	env.createUser(t, "alice", models.UserStatusActive)
	boom := errors.New("redis: connection refused")

	closed := &stubLimiter{allowed: false, err: boom}
	env.auth.limiter = closed
	_, err := env.auth.Login(ctx, env.anonymousSession(t), LoginRequest{Username: "alice", Password: goodPassword})
	require.ErrorIs(t, err, common.ErrStoreUnavailable)
	assert.NotContains(t, err.Error(), "redis")
	assert.Zero(t, env.lookups.Load())

	open := &stubLimiter{allowed: true, err: boom}
	env.auth.limiter = open
	_, err = env.auth.Login(ctx, env.anonymousSession(t), LoginRequest{Username: "alice", Password: goodPassword})
	require.NoError(t, err)
}
