// Package config handles configuration for the server component,
// including defaults, JSON overlay, and command-line flags.
package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
)

// Values accepted by the enumerated settings.
const (
	CounterSQL    = "sql"
	CounterRedis  = "redis"
	CounterBuntDB = "buntdb"

	FailClosed = "closed"
	FailOpen   = "open"

	CSRFPerRequest = "per_request"
	CSRFPerSession = "per_session"
)

// Config holds runtime settings for the authentication server.
//
// Fields:
//   - HTTPAddr: bind address of the login endpoint.
//   - DatabaseDriver / DatabaseDSN: "sqlite" (modernc) or "postgres" (pgx) and its DSN.
//   - SecretKey: HMAC secret for remember-me tokens and the encryption key source.
//   - SessionLifetime / RememberLifetime: idle session lifetime and the
//     extended lifetime granted by "remember me".
//   - MaxLoginAttempts / LoginLockoutTime: MAX_LOGIN_ATTEMPTS and
//     LOGIN_LOCKOUT_TIME; the latter is also the rate-limit window.
//   - CounterBackend, RedisAddr, BuntDBPath: where rate-limit counters live.
//   - RateLimitFailMode: "closed" rejects attempts while the counter store is
//     unreachable, "open" lets them through.
//   - CSRFRotation / CSRFTokenTTL: token rotation policy and validity window.
//   - PasswordAlgorithm / BcryptCost: hashing scheme for new hashes.
//   - S3*: object storage for audit archives.
type Config struct {
	HTTPAddr           string        `validate:"required"`
	DatabaseDriver     string        `validate:"oneof=sqlite postgres"`
	DatabaseDSN        string        `validate:"required"`
	SecretKey          string        `validate:"required,min=8"`
	SessionLifetime    time.Duration `validate:"gt=0"`
	RememberLifetime   time.Duration `validate:"gt=0"`
	MaxLoginAttempts   int           `validate:"min=1"`
	LoginLockoutTime   time.Duration `validate:"gte=1s"`
	CounterBackend     string        `validate:"oneof=sql redis buntdb"`
	RedisAddr          string        `validate:"required_if=CounterBackend redis"`
	BuntDBPath         string        `validate:"required_if=CounterBackend buntdb"`
	RateLimitFailMode  string        `validate:"oneof=closed open"`
	CSRFRotation       string        `validate:"oneof=per_request per_session"`
	CSRFTokenTTL       time.Duration `validate:"gt=0"`
	PasswordAlgorithm  string        `validate:"oneof=argon2id bcrypt"`
	BcryptCost         int           `validate:"min=4,max=31"`
	LogFormat          string        `validate:"oneof=json text zap"`
	DefaultLandingPath string        `validate:"startswith=/"`
	SecureCookies      bool
	RequestTimeout     time.Duration `validate:"gt=0"`
	S3RootUser         string
	S3RootPassword     string
	S3Bucket           string
	S3Region           string
	S3BaseEndpoint     string
}

// LoadDefaults populates Config with development defaults.
// NOTE: SecretKey and the S3 credentials must be overridden in production.
func (c *Config) LoadDefaults() {
	c.HTTPAddr = ":8080"
	c.DatabaseDriver = "sqlite"
	c.DatabaseDSN = "file:inventory.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	c.SecretKey = "change-me-please"
	c.SessionLifetime = 2 * time.Hour
	c.RememberLifetime = 30 * 24 * time.Hour
	c.MaxLoginAttempts = 5
	c.LoginLockoutTime = 15 * time.Minute
	c.CounterBackend = CounterSQL
	c.RedisAddr = "127.0.0.1:6379"
	c.BuntDBPath = ":memory:"
	c.RateLimitFailMode = FailClosed
	c.CSRFRotation = CSRFPerRequest
	c.CSRFTokenTTL = time.Hour
	c.PasswordAlgorithm = "argon2id"
	c.BcryptCost = 12
	c.LogFormat = "json"
	c.DefaultLandingPath = "/dashboard"
	c.SecureCookies = false
	c.RequestTimeout = 10 * time.Second
	c.S3RootUser = "admin"
	c.S3RootPassword = "secretpassword"
	c.S3Bucket = "audit-archive"
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = "http://127.0.0.1:9000/"
}

// Validate checks the assembled configuration.
func (c *Config) Validate() error {
	return validator.New(validator.WithRequiredStructEnabled()).Struct(c)
}

// LoadConfig builds a Config from os.Args by applying defaults, then
// overlaying values from an optional JSON file and finally from flags.
func LoadConfig() *Config {
	return Load(os.Args[1:])
}

// Load is LoadConfig over an explicit argument list.
func Load(args []string) *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg, args)
	parseFlags(cfg, args)
	return cfg
}
