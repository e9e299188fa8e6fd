package services

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/common"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/dbx"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/logging"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/auth"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/config"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/models"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/repositories/repomanager"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/security"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/timex"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/validator"
)

// Reasons recorded on failed logins. They stay in the audit log and are
// never shown to the user.
const (
	ReasonUnknownUser     = "unknown_user"
	ReasonAccountDisabled = "account_disabled"
	ReasonBadPassword     = "bad_password"
)

var loginRules = validator.MustParse(map[string]string{
	"username": "required|max:150",
	"password": "required|max:1024",
})

// RateLimiter is the part of ratelimit.Limiter the login flow uses.
type RateLimiter interface {
	Attempt(ctx context.Context, key string, maxAttempts int, window time.Duration) (bool, int, error)
	Clear(ctx context.Context, key string) error
	AvailableIn(ctx context.Context, key string) (int, error)
}

// AuditTrail is the part of audit.Trail the login flow uses.
type AuditTrail interface {
	LogLogin(ctx context.Context, username string, success bool, reason string, meta map[string]any) error
	LogLogout(ctx context.Context, username string, meta map[string]any) error
	LogSecurityEvent(ctx context.Context, eventType, actor string, meta map[string]any) error
}

type LoginRequest struct {
	Username string
	Password string
	Remember bool
}

type LoginResult struct {
	User       *models.SessionUser
	RedirectTo string
	// RememberToken is set when the request asked to be remembered.
	RememberToken string
}

// AuthService runs login, logout and session checks against an explicit
// session object owned by the caller.
type AuthService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	sessions    *SessionService
	toolkit     *security.Toolkit
	limiter     RateLimiter
	trail       AuditTrail
	log         logging.Logger
	now         timex.Clock

	maxAttempts      int
	lockout          time.Duration
	landing          string
	secret           []byte
	rememberLifetime time.Duration
}

func NewAuthService(
	db *sql.DB,
	m repomanager.RepositoryManager,
	sessions *SessionService,
	toolkit *security.Toolkit,
	limiter RateLimiter,
	trail AuditTrail,
	log logging.Logger,
	cfg *config.Config,
	now timex.Clock,
) *AuthService {
	if now == nil {
		now = timex.UTCNow
	}
	return &AuthService{
		db:               db,
		repomanager:      m,
		sessions:         sessions,
		toolkit:          toolkit,
		limiter:          limiter,
		trail:            trail,
		log:              log,
		now:              now,
		maxAttempts:      cfg.MaxLoginAttempts,
		lockout:          cfg.LoginLockoutTime,
		landing:          cfg.DefaultLandingPath,
		secret:           []byte(cfg.SecretKey),
		rememberLifetime: cfg.RememberLifetime,
	}
}

// LimiterKey is the rate-limit bucket of a username.
func LimiterKey(username string) string {
	return "login:" + strings.ToLower(strings.TrimSpace(username))
}

// Login authenticates req and binds the user to sess. The caller has already
// checked the CSRF token. Expected failures come back as
// *common.ValidationError, *common.ThrottledError or
// common.ErrInvalidCredentials; store failures as common.ErrStoreUnavailable.
func (s *AuthService) Login(ctx context.Context, sess *models.Session, req LoginRequest) (*LoginResult, error) {
	req.Username = strings.TrimSpace(req.Username)

	v := validator.New()
	if !v.Check(map[string]any{"username": req.Username, "password": req.Password}, loginRules) {
		return nil, v.Err()
	}

	// The attempt is counted before the credentials are looked at, so parallel
	// requests cannot all pass the limit and then each record a failure.
	key := LimiterKey(req.Username)
	allowed, attempts, err := s.limiter.Attempt(ctx, key, s.maxAttempts, s.lockout)
	if err != nil && !allowed {
		return nil, common.ErrStoreUnavailable
	}
	if !allowed {
		return nil, s.throttled(ctx, key, req.Username)
	}

	user, err := s.repomanager.Users(s.db).GetByUsername(ctx, req.Username)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		s.log.Error(ctx, "user lookup failed", "error", err)
		return nil, common.ErrStoreUnavailable
	}

	switch {
	case user == nil:
		s.toolkit.DummyVerify(req.Password)
		return nil, s.failed(ctx, req.Username, ReasonUnknownUser, attempts)
	case !user.Active():
		s.toolkit.DummyVerify(req.Password)
		return nil, s.failed(ctx, req.Username, ReasonAccountDisabled, attempts)
	case !s.toolkit.VerifyPassword(req.Password, user.PasswordHash):
		return nil, s.failed(ctx, req.Username, ReasonBadPassword, attempts)
	}

	var newHash string
	if s.toolkit.NeedsRehash(user.PasswordHash) {
		if newHash, err = s.toolkit.HashPassword(req.Password); err != nil {
			s.log.Warn(ctx, "password rehash failed", "user_id", user.ID, "error", err)
			newHash = ""
		}
	}

	if err := s.establish(ctx, sess, user, req.Remember, newHash); err != nil {
		return nil, err
	}

	if err := s.limiter.Clear(ctx, key); err != nil {
		s.log.Warn(ctx, "could not clear login attempts", "key", key, "error", err)
	}
	_ = s.trail.LogLogin(ctx, user.Username, true, "", nil)
	if newHash != "" {
		_ = s.trail.LogSecurityEvent(ctx, models.EventPasswordRehashed, user.Username, nil)
	}

	res := &LoginResult{User: sess.Summary(), RedirectTo: s.IntendedURL(sess)}
	if req.Remember {
		res.RememberToken, err = auth.GenerateRememberToken(user.ID, user.Username, s.secret, s.rememberLifetime, s.now())
		if err != nil {
			s.log.Warn(ctx, "could not issue remember token", "user_id", user.ID, "error", err)
		}
	}
	return res, nil
}

// LoginFromRememberToken restores an authenticated session from a
// remember-me token. Tokens of unknown, disabled or renamed users are
// rejected with common.ErrInvalidToken.
func (s *AuthService) LoginFromRememberToken(ctx context.Context, sess *models.Session, token string) (*models.SessionUser, error) {
	claims, err := auth.ParseRememberToken(token, s.secret, s.now())
	if err != nil {
		return nil, err
	}
	id, _ := claims.UserID()

	user, err := s.repomanager.Users(s.db).GetByID(ctx, id)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrInvalidToken
	}
	if err != nil {
		s.log.Error(ctx, "user lookup failed", "error", err)
		return nil, common.ErrStoreUnavailable
	}
	if !user.Active() || user.Username != claims.Username {
		return nil, common.ErrInvalidToken
	}

	if err := s.establish(ctx, sess, user, true, ""); err != nil {
		return nil, err
	}
	_ = s.trail.LogSecurityEvent(ctx, models.EventRememberLogin, user.Username, map[string]any{"token_id": claims.ID})
	return sess.Summary(), nil
}

// Check reports whether sess carries an unexpired login.
func (s *AuthService) Check(sess *models.Session) bool {
	return sess.Authenticated() && !sess.Expired(s.now())
}

// Logout drops the stored session and resets sess to a fresh anonymous one.
func (s *AuthService) Logout(ctx context.Context, sess *models.Session) error {
	username := sess.Username
	wasAuthenticated := sess.Authenticated()

	if err := s.sessions.Destroy(ctx, sess); err != nil {
		s.log.Error(ctx, "session destroy failed", "error", err)
		return common.ErrStoreUnavailable
	}

	fresh, err := s.sessions.newSession()
	if err != nil {
		return err
	}
	*sess = *fresh

	if wasAuthenticated {
		_ = s.trail.LogLogout(ctx, username, nil)
	}
	return nil
}

// IntendedURL returns and clears the path saved before the login redirect,
// or the default landing page.
func (s *AuthService) IntendedURL(sess *models.Session) string {
	target := sess.IntendedURL
	if target != "" {
		sess.IntendedURL = ""
		sess.Dirty = true
	}
	if !IsLocalPath(target) {
		return s.landing
	}
	return target
}

// RememberIntendedURL stores path for IntendedURL. Anything but a local
// absolute path is ignored.
func (s *AuthService) RememberIntendedURL(sess *models.Session, path string) {
	if !IsLocalPath(path) {
		return
	}
	sess.IntendedURL = path
	sess.Dirty = true
}

// IsLocalPath accepts "/x" style paths and rejects anything that a browser
// could resolve to another host.
func IsLocalPath(p string) bool {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return false
	}
	u, err := url.Parse(p)
	return err == nil && u.Scheme == "" && u.Host == ""
}

// establish regenerates the session id and binds user to it, stamping the
// last login in the same transaction. sess is only changed on success.
func (s *AuthService) establish(ctx context.Context, sess *models.Session, user *models.User, remember bool, newHash string) error {
	next := *sess
	now := s.now()

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		next.Remember = remember
		if err := s.sessions.regenerate(ctx, tx, &next); err != nil {
			return err
		}
		uid := user.ID
		next.UserID = &uid
		next.Username = user.Username
		next.DisplayName = user.DisplayName
		next.Role = user.Role
		next.Email = user.Email
		next.LoginTime = &now

		if err := s.sessions.save(ctx, tx, &next); err != nil {
			return err
		}

		users := s.repomanager.Users(tx)
		if err := users.UpdateLastLogin(ctx, user.ID, now); err != nil {
			return err
		}
		if newHash != "" {
			return users.UpdatePasswordHash(ctx, user.ID, newHash, now)
		}
		return nil
	})
	if err != nil {
		s.log.Error(ctx, "establishing session failed", "user_id", user.ID, "error", err)
		return common.ErrStoreUnavailable
	}

	*sess = next
	return nil
}

func (s *AuthService) failed(ctx context.Context, username, reason string, attempts int) error {
	meta := map[string]any{}
	if attempts > 0 {
		meta["attempts"] = attempts
	}
	_ = s.trail.LogLogin(ctx, username, false, reason, meta)
	return common.ErrInvalidCredentials
}

func (s *AuthService) throttled(ctx context.Context, key, username string) error {
	secs, err := s.limiter.AvailableIn(ctx, key)
	if err != nil || secs <= 0 {
		secs = int(s.lockout / time.Second)
	}
	_ = s.trail.LogSecurityEvent(ctx, models.EventRateLimitExceeded, username, map[string]any{"retry_after": secs})
	return &common.ThrottledError{RetryAfter: secs}
}
