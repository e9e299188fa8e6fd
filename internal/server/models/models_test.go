package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUser_JSONOmitsPasswordHash(t *testing.T) {
	u := User{ID: 1, Username: "alice", PasswordHash: "$argon2id$secret", Status: UserStatusActive}

	b, err := json.Marshal(u)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "argon2id")
	assert.NotContains(t, string(b), "password")
	assert.True(t, u.Active())

	u.Status = UserStatusDisabled
	assert.False(t, u.Active())
}

func TestSession_AuthenticatedAndSummary(t *testing.T) {
	var nilSession *Session
	assert.False(t, nilSession.Authenticated())

	s := &Session{Username: "alice"}
	assert.False(t, s.Authenticated())
	assert.Nil(t, s.Summary())

	id := int64(7)
	s.UserID = &id
	require.True(t, s.Authenticated())
	assert.Equal(t, &SessionUser{ID: 7, Username: "alice"}, s.Summary())
}

func TestSession_Expired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := &Session{ExpiresAt: now}
	assert.True(t, s.Expired(now))
	assert.False(t, s.Expired(now.Add(-time.Second)))
}

func TestBucket_Expired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.True(t, Bucket{}.Expired(now))
	assert.True(t, Bucket{ExpiresAt: now}.Expired(now))
	assert.False(t, Bucket{ExpiresAt: now.Add(time.Minute)}.Expired(now))
}
