package config

import (
	"flag"
	"time"

	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/flagx"
)

var knownFlags = []string{
	"-a", "-driver", "-d", "-s", "-t", "-r", "-m", "-l",
	"-counter", "-redis", "-bunt", "-failmode", "-csrf", "-log",
	"-u", "-p", "-b", "-g", "-e",
}

// parseFlags populates Config fields from command-line flags.
//
// Supported flags:
//
//	-a string         HTTP bind address (e.g., ":8080")
//	-driver string    database driver: sqlite | postgres
//	-d string         database DSN
//	-s string         secret key
//	-t int            session lifetime, minutes
//	-r int            remember-me lifetime, minutes
//	-m int            MAX_LOGIN_ATTEMPTS
//	-l int            LOGIN_LOCKOUT_TIME, seconds
//	-counter string   rate-limit counter backend: sql | redis | buntdb
//	-redis string     Redis address
//	-bunt string      BuntDB file path (":memory:" for in-process)
//	-failmode string  rate limiter failure policy: closed | open
//	-csrf string      CSRF rotation: per_request | per_session
//	-log string       log format: json | text | zap
//	-u, -p, -b, -g, -e  S3 user, password, bucket, region, endpoint
//
// args is filtered with flagx.FilterArgs first so that flags owned by
// other components (for example -c) do not cause parse errors.
func parseFlags(config *Config, args []string) {
	args = flagx.FilterArgs(args, knownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDriver, "driver", config.DatabaseDriver, "database driver")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	sessionLifetime := fs.Int("t", int(config.SessionLifetime.Minutes()), "session lifetime (in minutes)")
	rememberLifetime := fs.Int("r", int(config.RememberLifetime.Minutes()), "remember-me lifetime (in minutes)")
	fs.IntVar(&config.MaxLoginAttempts, "m", config.MaxLoginAttempts, "max login attempts")
	lockout := fs.Int("l", int(config.LoginLockoutTime.Seconds()), "login lockout time (in seconds)")

	fs.StringVar(&config.CounterBackend, "counter", config.CounterBackend, "rate limit counter backend")
	fs.StringVar(&config.RedisAddr, "redis", config.RedisAddr, "redis address")
	fs.StringVar(&config.BuntDBPath, "bunt", config.BuntDBPath, "buntdb path")
	fs.StringVar(&config.RateLimitFailMode, "failmode", config.RateLimitFailMode, "rate limiter failure policy")
	fs.StringVar(&config.CSRFRotation, "csrf", config.CSRFRotation, "csrf token rotation policy")
	fs.StringVar(&config.LogFormat, "log", config.LogFormat, "log format")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.SessionLifetime = time.Duration(*sessionLifetime) * time.Minute
	config.RememberLifetime = time.Duration(*rememberLifetime) * time.Minute
	config.LoginLockoutTime = time.Duration(*lockout) * time.Second
}
