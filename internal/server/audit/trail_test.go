package audit

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/dbx"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/logging"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/models"
	auditrepo "github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/repositories/audit"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/repositories/repomanager"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/repositories/sessions"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/repositories/users"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type failingAuditRepo struct{ err error }

func (r failingAuditRepo) Append(context.Context, *models.AuditEntry) error { return r.err }
func (r failingAuditRepo) List(context.Context, models.AuditFilter) ([]*models.AuditEntry, error) {
	return nil, r.err
}

type fakeRepoManager struct{ audit auditrepo.Repository }

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository             { return nil }
func (m *fakeRepoManager) Sessions(dbx.DBTX) sessions.Repository       { return nil }
func (m *fakeRepoManager) Audit(dbx.DBTX) auditrepo.Repository         { return m.audit }

func newSQLiteTrail(t *testing.T) (*Trail, *testutil.Clock) {
	t.Helper()
	store := testutil.NewSQLiteStore(t)
	clock := testutil.NewClock()
	rm := repomanager.NewSQLRepositoryManager(store.Dialect())
	return NewTrail(store.DB(), rm, logging.Nop(), WithClock(clock.Now)), clock
}

func TestTrail_LogLogin(t *testing.T) {
	trail, clock := newSQLiteTrail(t)
	ctx := ContextWithClient(context.Background(), Client{IP: "10.1.2.3", UserAgent: "curl/8"})

	require.NoError(t, trail.LogLogin(ctx, "alice", false, "bad_password", map[string]any{"attempts": 1}))
	clock.Advance(time.Second)
	require.NoError(t, trail.LogLogin(ctx, "alice", true, "", nil))

	entries, err := trail.List(ctx, models.AuditFilter{Actor: "alice"})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	failure := entries[0]
	assert.Equal(t, models.EventLoginFailure, failure.EventType)
	assert.Equal(t, models.OutcomeFailure, failure.Outcome)
	assert.Equal(t, "bad_password", failure.Metadata["reason"])
	assert.EqualValues(t, 1, failure.Metadata["attempts"])
	assert.Equal(t, "10.1.2.3", failure.IPAddress)
	assert.Equal(t, "curl/8", failure.UserAgent)
	assert.NotEmpty(t, failure.ID)

	success := entries[1]
	assert.Equal(t, models.EventLoginSuccess, success.EventType)
	assert.Equal(t, models.OutcomeSuccess, success.Outcome)
	assert.NotContains(t, success.Metadata, "reason")
}

func TestTrail_LogLoginDoesNotMutateCallerMeta(t *testing.T) {
	trail, _ := newSQLiteTrail(t)
	meta := map[string]any{"k": "v"}

	require.NoError(t, trail.LogLogin(context.Background(), "bob", false, "unknown_user", meta))
	assert.Equal(t, map[string]any{"k": "v"}, meta)
}

func TestTrail_SecurityEventsAndLogout(t *testing.T) {
	trail, _ := newSQLiteTrail(t)
	ctx := context.Background()

	require.NoError(t, trail.LogSecurityEvent(ctx, models.EventCSRFFailure, "anonymous", map[string]any{"path": "/login"}))
	require.NoError(t, trail.LogSecurityEvent(ctx, models.EventPasswordRehashed, "alice", nil))
	require.NoError(t, trail.LogLogout(ctx, "alice", nil))

	csrf, err := trail.List(ctx, models.AuditFilter{EventType: models.EventCSRFFailure})
	require.NoError(t, err)
	require.Len(t, csrf, 1)
	assert.Equal(t, models.OutcomeFailure, csrf[0].Outcome)
	assert.Equal(t, "/login", csrf[0].Metadata["path"])

	rehash, err := trail.List(ctx, models.AuditFilter{EventType: models.EventPasswordRehashed})
	require.NoError(t, err)
	require.Len(t, rehash, 1)
	assert.Equal(t, models.OutcomeSuccess, rehash[0].Outcome)

	logout, err := trail.List(ctx, models.AuditFilter{EventType: models.EventLogout})
	require.NoError(t, err)
	require.Len(t, logout, 1)
	assert.Equal(t, "alice", logout[0].Actor)
}

func TestTrail_ConcurrentWriters(t *testing.T) {
	trail, _ := newSQLiteTrail(t)
	ctx := context.Background()

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = trail.LogLogin(ctx, "alice", false, "bad_password", nil)
		}()
	}
	wg.Wait()

	entries, err := trail.List(ctx, models.AuditFilter{Actor: "alice"})
	require.NoError(t, err)
	assert.Len(t, entries, writers)
}

func TestTrail_SinkFailureIsEscalated(t *testing.T) {
	boom := errors.New("disk I/O error")
	core, logs := observer.New(zapcore.InfoLevel)
	trail := NewTrail(nil, &fakeRepoManager{audit: failingAuditRepo{err: boom}}, logging.NewZapLogger(zap.New(core)))

	err := trail.LogLogin(context.Background(), "alice", false, "bad_password", nil)
	require.ErrorIs(t, err, boom)

	entries := logs.FilterMessage("audit sink unavailable, event not recorded").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, models.EventLoginFailure, entries[0].ContextMap()["event_type"])

	_, err = trail.List(context.Background(), models.AuditFilter{})
	require.ErrorIs(t, err, boom)
}

func TestClientFromContext(t *testing.T) {
	assert.Equal(t, Client{}, ClientFromContext(context.Background()))

	ctx := ContextWithClient(context.Background(), Client{IP: "::1"})
	assert.Equal(t, "::1", ClientFromContext(ctx).IP)
}
