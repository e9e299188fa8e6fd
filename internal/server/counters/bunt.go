package counters

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/filex"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/models"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/timex"
	"github.com/tidwall/buntdb"
)

// BuntCounter keeps buckets in an embedded BuntDB file with native key
// expiry. BuntDB serialises write transactions, which makes the
// read-modify-write in Increment atomic.
type BuntCounter struct {
	db  *buntdb.DB
	now timex.Clock
}

// OpenBuntCounter opens path (":memory:" for a process-local store). The
// file's directory is created if needed.
func OpenBuntCounter(path string, now timex.Clock) (*BuntCounter, error) {
	if path != ":memory:" {
		if _, err := filex.EnsureParentDir(path); err != nil {
			return nil, fmt.Errorf("buntdb open: %w", err)
		}
	}
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("buntdb open: %w", err)
	}
	if now == nil {
		now = timex.UTCNow
	}
	return &BuntCounter{db: db, now: now}, nil
}

func (c *BuntCounter) Increment(_ context.Context, key string, window time.Duration) (models.Bucket, error) {
	var bucket models.Bucket

	err := c.db.Update(func(tx *buntdb.Tx) error {
		n, ttl, err := readBucket(tx, key)
		if err != nil {
			return err
		}
		if n == 0 {
			ttl = window
		}
		n++

		if _, _, err := tx.Set(key, strconv.Itoa(n), &buntdb.SetOptions{Expires: true, TTL: ttl}); err != nil {
			return err
		}
		bucket = models.Bucket{Key: key, Attempts: n, ExpiresAt: c.now().Add(ttl)}
		return nil
	})
	if err != nil {
		return models.Bucket{}, fmt.Errorf("buntdb error: %w", err)
	}
	return bucket, nil
}

func (c *BuntCounter) Get(_ context.Context, key string) (models.Bucket, error) {
	bucket := models.Bucket{Key: key}

	err := c.db.View(func(tx *buntdb.Tx) error {
		n, ttl, err := readBucket(tx, key)
		if err != nil || n == 0 {
			return err
		}
		bucket.Attempts = n
		bucket.ExpiresAt = c.now().Add(ttl)
		return nil
	})
	if err != nil {
		return models.Bucket{}, fmt.Errorf("buntdb error: %w", err)
	}
	return bucket, nil
}

func (c *BuntCounter) Reset(_ context.Context, key string) error {
	err := c.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(key)
		if errors.Is(err, buntdb.ErrNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("buntdb error: %w", err)
	}
	return nil
}

func (c *BuntCounter) Close() error {
	return c.db.Close()
}

// readBucket returns 0 attempts for missing, expired or TTL-less keys.
func readBucket(tx *buntdb.Tx, key string) (int, time.Duration, error) {
	val, err := tx.Get(key)
	if errors.Is(err, buntdb.ErrNotFound) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, err
	}

	ttl, err := tx.TTL(key)
	if err != nil || ttl <= 0 {
		return 0, 0, nil
	}

	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, 0, nil
	}
	return n, ttl, nil
}
