package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/flagx"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration so both "15m" and integer nanoseconds are accepted. Only
// keys present in the file override the current values.
type JsonConfig struct {
	HTTPAddr           *string         `json:"http_addr"`
	DatabaseDriver     *string         `json:"database_driver"`
	DatabaseDSN        *string         `json:"database_dsn"`
	SecretKey          *string         `json:"secret_key"`
	SessionLifetime    *timex.Duration `json:"session_lifetime"`
	RememberLifetime   *timex.Duration `json:"remember_lifetime"`
	MaxLoginAttempts   *int            `json:"max_login_attempts"`
	LoginLockoutTime   *timex.Duration `json:"login_lockout_time"`
	CounterBackend     *string         `json:"counter_backend"`
	RedisAddr          *string         `json:"redis_addr"`
	BuntDBPath         *string         `json:"buntdb_path"`
	RateLimitFailMode  *string         `json:"rate_limit_fail_mode"`
	CSRFRotation       *string         `json:"csrf_rotation"`
	CSRFTokenTTL       *timex.Duration `json:"csrf_token_ttl"`
	PasswordAlgorithm  *string         `json:"password_algorithm"`
	BcryptCost         *int            `json:"bcrypt_cost"`
	LogFormat          *string         `json:"log_format"`
	DefaultLandingPath *string         `json:"default_landing_path"`
	SecureCookies      *bool           `json:"secure_cookies"`
	RequestTimeout     *timex.Duration `json:"request_timeout"`
	S3RootUser         *string         `json:"s3_root_user"`
	S3RootPassword     *string         `json:"s3_root_password"`
	S3Bucket           *string         `json:"s3_bucket"`
	S3Region           *string         `json:"s3_region"`
	S3BaseEndpoint     *string         `json:"s3_base_endpoint"`
}

// parseJson loads the file named by -c/-config (if any) over config.
// If the file cannot be read or contains invalid JSON, the function panics.
func parseJson(config *Config, args []string) {
	jsonConfigFile := flagx.JsonConfigFlags(args)

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.DatabaseDriver, c.DatabaseDriver)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.SessionLifetime, c.SessionLifetime)
	setDuration(&config.RememberLifetime, c.RememberLifetime)
	setInt(&config.MaxLoginAttempts, c.MaxLoginAttempts)
	setDuration(&config.LoginLockoutTime, c.LoginLockoutTime)
	setString(&config.CounterBackend, c.CounterBackend)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.BuntDBPath, c.BuntDBPath)
	setString(&config.RateLimitFailMode, c.RateLimitFailMode)
	setString(&config.CSRFRotation, c.CSRFRotation)
	setDuration(&config.CSRFTokenTTL, c.CSRFTokenTTL)
	setString(&config.PasswordAlgorithm, c.PasswordAlgorithm)
	setInt(&config.BcryptCost, c.BcryptCost)
	setString(&config.LogFormat, c.LogFormat)
	setString(&config.DefaultLandingPath, c.DefaultLandingPath)
	if c.SecureCookies != nil {
		config.SecureCookies = *c.SecureCookies
	}
	setDuration(&config.RequestTimeout, c.RequestTimeout)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
