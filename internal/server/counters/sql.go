package counters

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/dbx"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/models"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/timex"
)

// SQLCounter keeps buckets in the rate_limits table. The increment is a
// single upsert statement, which both SQLite and PostgreSQL execute
// atomically per row.
type SQLCounter struct {
	db      dbx.DBTX
	dialect dbx.Dialect
	now     timex.Clock
}

func NewSQLCounter(db dbx.DBTX, dialect dbx.Dialect, now timex.Clock) *SQLCounter {
	if now == nil {
		now = timex.UTCNow
	}
	return &SQLCounter{db: db, dialect: dialect, now: now}
}

func (c *SQLCounter) Increment(ctx context.Context, key string, window time.Duration) (models.Bucket, error) {
	t := c.now()
	now := t.UnixMilli()
	expires := t.Add(window).UnixMilli()

	query := c.dialect.Rebind(
		`INSERT INTO rate_limits (bucket_key, attempts, expires_at) VALUES (?, 1, ?)
		 ON CONFLICT (bucket_key) DO UPDATE SET
		     attempts = CASE WHEN rate_limits.expires_at <= ? THEN 1 ELSE rate_limits.attempts + 1 END,
		     expires_at = CASE WHEN rate_limits.expires_at <= ? THEN excluded.expires_at ELSE rate_limits.expires_at END
		 RETURNING attempts, expires_at`)

	var (
		attempts  int
		expiresAt int64
	)
	err := c.db.QueryRowContext(ctx, query, key, expires, now, now).Scan(&attempts, &expiresAt)
	if err != nil {
		return models.Bucket{}, fmt.Errorf("db error: %w", err)
	}
	return models.Bucket{Key: key, Attempts: attempts, ExpiresAt: time.UnixMilli(expiresAt).UTC()}, nil
}

func (c *SQLCounter) Get(ctx context.Context, key string) (models.Bucket, error) {
	query := c.dialect.Rebind(`SELECT attempts, expires_at FROM rate_limits WHERE bucket_key = ?`)

	var (
		attempts  int
		expiresAt int64
	)
	err := c.db.QueryRowContext(ctx, query, key).Scan(&attempts, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Bucket{Key: key}, nil
		}
		return models.Bucket{}, fmt.Errorf("db error: %w", err)
	}

	b := models.Bucket{Key: key, Attempts: attempts, ExpiresAt: time.UnixMilli(expiresAt).UTC()}
	if b.Expired(c.now()) {
		return models.Bucket{Key: key}, nil
	}
	return b, nil
}

func (c *SQLCounter) Reset(ctx context.Context, key string) error {
	query := c.dialect.Rebind(`DELETE FROM rate_limits WHERE bucket_key = ?`)
	if _, err := c.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// PurgeExpired removes buckets whose window has passed.
func (c *SQLCounter) PurgeExpired(ctx context.Context) (int64, error) {
	query := c.dialect.Rebind(`DELETE FROM rate_limits WHERE expires_at <= ?`)
	res, err := c.db.ExecContext(ctx, query, c.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.RowsAffected()
}
