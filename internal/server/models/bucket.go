package models

import "time"

// Bucket is the rate-limit counter state of one key.
type Bucket struct {
	Key       string
	Attempts  int
	ExpiresAt time.Time
}

func (b Bucket) Expired(now time.Time) bool {
	return b.ExpiresAt.IsZero() || !now.Before(b.ExpiresAt)
}
