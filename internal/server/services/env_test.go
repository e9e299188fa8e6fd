package services

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/cryptox"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/dbx"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/logging"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/audit"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/config"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/counters"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/models"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/ratelimit"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/repositories/repomanager"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/repositories/users"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/security"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/testutil"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const goodPassword = "Toner-Ribbon-2026"

// countingManager counts username lookups so tests can tell whether a
// credential check happened.
type countingManager struct {
	repomanager.RepositoryManager
	lookups *atomic.Int32
}

func (m countingManager) Users(db dbx.DBTX) users.Repository {
	return countingUsers{Repository: m.RepositoryManager.Users(db), lookups: m.lookups}
}

type countingUsers struct {
	users.Repository
	lookups *atomic.Int32
}

func (u countingUsers) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	u.lookups.Add(1)
	return u.Repository.GetByUsername(ctx, username)
}

type loginEnv struct {
	store    *dbx.Store
	clock    *testutil.Clock
	cfg      *config.Config
	rm       repomanager.RepositoryManager
	lookups  *atomic.Int32
	toolkit  *security.Toolkit
	counter  *counters.SQLCounter
	trail    *audit.Trail
	sessions *SessionService
	auth     *AuthService
}

func newLoginEnv(t *testing.T) *loginEnv {
	t.Helper()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.PasswordAlgorithm = cryptox.AlgorithmBcrypt
	cfg.BcryptCost = bcrypt.MinCost

	store := testutil.NewSQLiteStore(t)
	clock := testutil.NewClock()
	lookups := &atomic.Int32{}
	rm := countingManager{
		RepositoryManager: repomanager.NewSQLRepositoryManager(store.Dialect()),
		lookups:           lookups,
	}

	toolkit := security.NewToolkit(cfg, security.WithClock(clock.Now))
	counter := counters.NewSQLCounter(store.DB(), store.Dialect(), clock.Now)
	trail := audit.NewTrail(store.DB(), rm, logging.Nop(), audit.WithClock(clock.Now))
	limiter := ratelimit.New(counter, ratelimit.WithClock(clock.Now), ratelimit.WithAuditor(trail))
	sessions := NewSessionService(store.DB(), rm, cfg, clock.Now)
	authSvc := NewAuthService(store.DB(), rm, sessions, toolkit, limiter, trail, logging.Nop(), cfg, clock.Now)

	return &loginEnv{
		store:    store,
		clock:    clock,
		cfg:      cfg,
		rm:       rm,
		lookups:  lookups,
		toolkit:  toolkit,
		counter:  counter,
		trail:    trail,
		sessions: sessions,
		auth:     authSvc,
	}
}

func (e *loginEnv) createUser(t *testing.T, username, status string) *models.User {
	t.Helper()
	hash, err := e.toolkit.HashPassword(goodPassword)
	require.NoError(t, err)
	return testutil.CreateUser(t, e.store, username, hash, status)
}

// anonymousSession returns a saved anonymous session, as the web layer
// would have after rendering the login form.
func (e *loginEnv) anonymousSession(t *testing.T) *models.Session {
	t.Helper()
	ctx := context.Background()
	sess, err := e.sessions.Load(ctx, "")
	require.NoError(t, err)
	_, err = e.toolkit.GenerateCSRFToken(sess)
	require.NoError(t, err)
	require.NoError(t, e.sessions.Save(ctx, sess))
	return sess
}

func (e *loginEnv) attempts(t *testing.T, username string) int {
	t.Helper()
	b, err := e.counter.Get(context.Background(), LimiterKey(username))
	require.NoError(t, err)
	return b.Attempts
}

func (e *loginEnv) auditEvents(t *testing.T, actor string) []*models.AuditEntry {
	t.Helper()
	entries, err := e.trail.List(context.Background(), models.AuditFilter{Actor: actor})
	require.NoError(t, err)
	return entries
}

func (e *loginEnv) user(t *testing.T, id int64) *models.User {
	t.Helper()
	u, err := e.rm.Users(e.store.DB()).GetByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

func eventTypes(entries []*models.AuditEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.EventType)
	}
	return out
}

