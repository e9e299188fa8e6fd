package services

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/common"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/dbx"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/config"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/models"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/repositories/repomanager"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/timex"
	"github.com/google/uuid"
)

const sessionTokenBytes = 32

// SessionService loads and persists server-side sessions. The client only
// ever holds the random token; rows are looked up by its SHA-256.
type SessionService struct {
	db               *sql.DB
	repomanager      repomanager.RepositoryManager
	lifetime         time.Duration
	rememberLifetime time.Duration
	now              timex.Clock
}

func NewSessionService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, now timex.Clock) *SessionService {
	if now == nil {
		now = timex.UTCNow
	}
	return &SessionService{
		db:               db,
		repomanager:      m,
		lifetime:         cfg.SessionLifetime,
		rememberLifetime: cfg.RememberLifetime,
		now:              now,
	}
}

// HashToken returns the lookup key stored for a session token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Load returns the session for token, or a new anonymous session when the
// token is empty, unknown or expired. A new session is only persisted by
// Save once something has been put on it.
func (s *SessionService) Load(ctx context.Context, token string) (*models.Session, error) {
	if token != "" {
		repo := s.repomanager.Sessions(s.db)
		sess, err := repo.GetByTokenHash(ctx, HashToken(token))
		switch {
		case err == nil && !sess.Expired(s.now()):
			sess.Token = token
			return sess, nil
		case err == nil:
			if err := repo.Delete(ctx, sess.ID); err != nil {
				return nil, fmt.Errorf("error deleting expired session: %w", err)
			}
		case !errors.Is(err, common.ErrorNotFound):
			return nil, fmt.Errorf("error loading session: %w", err)
		}
	}
	return s.newSession()
}

// Save persists sess if it has unsaved changes.
func (s *SessionService) Save(ctx context.Context, sess *models.Session) error {
	return s.save(ctx, s.db, sess)
}

func (s *SessionService) save(ctx context.Context, db dbx.DBTX, sess *models.Session) error {
	if !sess.Dirty {
		return nil
	}
	repo := s.repomanager.Sessions(db)
	if sess.New {
		if err := repo.Create(ctx, sess); err != nil {
			return fmt.Errorf("error creating session: %w", err)
		}
	} else if err := repo.Update(ctx, sess); err != nil {
		return fmt.Errorf("error updating session: %w", err)
	}
	sess.New = false
	sess.Dirty = false
	return nil
}

// regenerate gives sess a new id and token, dropping the old row. Everything
// else on the session is kept.
func (s *SessionService) regenerate(ctx context.Context, db dbx.DBTX, sess *models.Session) error {
	if !sess.New {
		if err := s.repomanager.Sessions(db).Delete(ctx, sess.ID); err != nil && !errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("error deleting session: %w", err)
		}
	}

	token, err := common.MakeRandHexString(sessionTokenBytes)
	if err != nil {
		return err
	}
	now := s.now()
	sess.ID = uuid.NewString()
	sess.Token = token
	sess.TokenHash = HashToken(token)
	sess.CreatedAt = now
	sess.ExpiresAt = now.Add(s.lifetimeFor(sess))
	sess.New = true
	sess.Dirty = true
	return nil
}

// Destroy removes the stored session. Unsaved sessions need no cleanup.
func (s *SessionService) Destroy(ctx context.Context, sess *models.Session) error {
	if sess.New {
		return nil
	}
	err := s.repomanager.Sessions(s.db).Delete(ctx, sess.ID)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return fmt.Errorf("error deleting session: %w", err)
	}
	return nil
}

// PurgeExpired deletes every session past its expiry.
func (s *SessionService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.repomanager.Sessions(s.db).DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("error purging sessions: %w", err)
	}
	return n, nil
}

func (s *SessionService) newSession() (*models.Session, error) {
	token, err := common.MakeRandHexString(sessionTokenBytes)
	if err != nil {
		return nil, err
	}
	now := s.now()
	return &models.Session{
		ID:        uuid.NewString(),
		Token:     token,
		TokenHash: HashToken(token),
		CreatedAt: now,
		ExpiresAt: now.Add(s.lifetime),
		New:       true,
	}, nil
}

func (s *SessionService) lifetimeFor(sess *models.Session) time.Duration {
	if sess.Remember {
		return s.rememberLifetime
	}
	return s.lifetime
}
