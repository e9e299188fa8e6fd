// Package testutil holds fixtures shared by the server packages' tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/dbx"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/models"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/require"
)

// NewSQLiteStore opens a migrated SQLite database in a temp directory.
func NewSQLiteStore(t testing.TB) *dbx.Store {
	t.Helper()
	ctx := context.Background()

	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_pragma=busy_timeout(5000)"
	store, err := dbx.Open(ctx, "sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	m := repomanager.NewSQLRepositoryManager(store.Dialect())
	require.NoError(t, m.RunMigrations(ctx, store.DB()))
	return store
}

// CreateUser inserts a user with the given password hash.
func CreateUser(t testing.TB, store *dbx.Store, username, hash, status string) *models.User {
	t.Helper()
	now := time.Now().UTC()
	u := &models.User{
		Username:     username,
		PasswordHash: hash,
		DisplayName:  username,
		Role:         "staff",
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m := repomanager.NewSQLRepositoryManager(store.Dialect())
	u, err := m.Users(store.DB()).Create(context.Background(), u)
	require.NoError(t, err)
	return u
}

// Clock is a settable time source for tests.
type Clock struct {
	T time.Time
}

func NewClock() *Clock {
	return &Clock{T: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time { return c.T }

func (c *Clock) Advance(d time.Duration) { c.T = c.T.Add(d) }
