// Package security provides the stateless security toolkit used by the
// login flow: CSRF tokens bound to a session, password hashing, symmetric
// encryption, input sanitisation and random strings.
package security

import (
	"crypto/subtle"
	"html"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/common"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/cryptox"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/config"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/models"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/timex"
)

// csrfTokenBytes of entropy per CSRF token.
const csrfTokenBytes = 32

type Toolkit struct {
	csrfRotation string
	csrfTTL      time.Duration
	algorithm    string
	argon2       cryptox.Argon2Params
	bcryptCost   int
	now          timex.Clock

	dummyOnce sync.Once
	dummyHash string
}

type Option func(*Toolkit)

// WithClock replaces the time source.
func WithClock(now timex.Clock) Option {
	return func(t *Toolkit) { t.now = now }
}

// WithArgon2Params overrides the argon2id costs for new hashes.
func WithArgon2Params(p cryptox.Argon2Params) Option {
	return func(t *Toolkit) { t.argon2 = p }
}

func NewToolkit(cfg *config.Config, opts ...Option) *Toolkit {
	t := &Toolkit{
		csrfRotation: cfg.CSRFRotation,
		csrfTTL:      cfg.CSRFTokenTTL,
		algorithm:    cfg.PasswordAlgorithm,
		argon2:       cryptox.DefaultArgon2Params,
		bcryptCost:   cfg.BcryptCost,
		now:          timex.UTCNow,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// GenerateCSRFToken issues a token bound to sess. With per-session rotation
// an existing unexpired token is returned unchanged.
func (t *Toolkit) GenerateCSRFToken(sess *models.Session) (string, error) {
	if t.csrfRotation == config.CSRFPerSession && sess.CSRFToken != "" && !t.csrfExpired(sess) {
		return sess.CSRFToken, nil
	}
	return t.issueCSRFToken(sess)
}

// ValidateCSRFToken compares candidate with the session token in constant
// time. Missing, empty and expired tokens fail. With per-request rotation a
// successful check consumes the token and a fresh one is put on the session.
func (t *Toolkit) ValidateCSRFToken(sess *models.Session, candidate string) bool {
	if sess == nil || sess.CSRFToken == "" || candidate == "" {
		return false
	}
	if t.csrfExpired(sess) {
		return false
	}

	ok := subtle.ConstantTimeCompare([]byte(sess.CSRFToken), []byte(candidate)) == 1
	if ok && t.csrfRotation != config.CSRFPerSession {
		if _, err := t.issueCSRFToken(sess); err != nil {
			sess.CSRFToken = ""
			sess.CSRFIssuedAt = nil
			sess.Dirty = true
		}
	}
	return ok
}

func (t *Toolkit) issueCSRFToken(sess *models.Session) (string, error) {
	token, err := common.MakeRandHexString(csrfTokenBytes)
	if err != nil {
		return "", err
	}
	now := t.now()
	sess.CSRFToken = token
	sess.CSRFIssuedAt = &now
	sess.Dirty = true
	return token, nil
}

func (t *Toolkit) csrfExpired(sess *models.Session) bool {
	if sess.CSRFIssuedAt == nil {
		return true
	}
	return t.now().Sub(*sess.CSRFIssuedAt) > t.csrfTTL
}

// HashPassword hashes with the configured algorithm.
func (t *Toolkit) HashPassword(plain string) (string, error) {
	if t.algorithm == cryptox.AlgorithmBcrypt {
		return cryptox.HashBcrypt([]byte(plain), t.bcryptCost)
	}
	return cryptox.HashArgon2id([]byte(plain), t.argon2)
}

// VerifyPassword checks plain against a stored hash of either supported
// scheme. Unknown or malformed hashes never verify.
func (t *Toolkit) VerifyPassword(plain, hash string) bool {
	switch cryptox.Algorithm(hash) {
	case cryptox.AlgorithmArgon2id:
		ok, err := cryptox.VerifyArgon2id([]byte(plain), hash)
		return err == nil && ok
	case cryptox.AlgorithmBcrypt:
		return cryptox.VerifyBcrypt([]byte(plain), hash)
	default:
		return false
	}
}

// NeedsRehash reports whether hash was produced with a different scheme or
// cost than new hashes would be.
func (t *Toolkit) NeedsRehash(hash string) bool {
	switch cryptox.Algorithm(hash) {
	case cryptox.AlgorithmArgon2id:
		if t.algorithm != cryptox.AlgorithmArgon2id {
			return true
		}
		p, _, _, err := cryptox.ParseArgon2id(hash)
		if err != nil {
			return true
		}
		return p.Time != t.argon2.Time || p.Memory != t.argon2.Memory || p.Threads != t.argon2.Threads
	case cryptox.AlgorithmBcrypt:
		if t.algorithm != cryptox.AlgorithmBcrypt {
			return true
		}
		cost, err := cryptox.BcryptCost(hash)
		return err != nil || cost != t.bcryptCost
	default:
		return true
	}
}

// DummyVerify burns the same work as a real verification. It is used when
// there is no stored hash to compare against so response timing does not
// reveal whether the account exists.
func (t *Toolkit) DummyVerify(plain string) {
	t.dummyOnce.Do(func() {
		t.dummyHash, _ = t.HashPassword("dummy-password-for-timing")
	})
	_ = t.VerifyPassword(plain, t.dummyHash)
}

// Encrypt seals plaintext under key (AES-256-GCM, HKDF-derived key).
func (t *Toolkit) Encrypt(plaintext, key []byte) (string, error) {
	return cryptox.Encrypt(plaintext, key)
}

// Decrypt fails with cryptox.ErrDecrypt on any authentication failure.
func (t *Toolkit) Decrypt(ciphertext string, key []byte) ([]byte, error) {
	return cryptox.Decrypt(ciphertext, key)
}

// SanitizeInput neutralises raw user input for display: invalid UTF-8 and
// control characters other than tab and newlines are dropped, surrounding
// whitespace trimmed, and markup escaped.
func (t *Toolkit) SanitizeInput(raw string) string {
	s := strings.ToValidUTF8(raw, "")
	s = strings.Map(func(r rune) rune {
		if r == '\t' || r == '\n' || r == '\r' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return html.EscapeString(strings.TrimSpace(s))
}

// GenerateRandomString returns n characters from [A-Za-z0-9].
func (t *Toolkit) GenerateRandomString(n int) (string, error) {
	return common.MakeRandAlphaNumString(n)
}
