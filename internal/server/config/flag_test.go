package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{
			name: "all flags",
			args: []string{
				"-a", "127.0.0.1:9090", "-driver", "postgres", "-d", "db", "-s", "secret",
				"-t", "30", "-r", "60", "-m", "3", "-l", "120",
				"-counter", "redis", "-redis", "redis:6379", "-bunt", "/tmp/rl.db",
				"-failmode", "open", "-csrf", "per_session", "-log", "zap",
				"-u", "user", "-p", "password", "-b", "bucket", "-g", "us-west-1", "-e", "http://endpoint",
			},
			expected: &Config{
				HTTPAddr:          "127.0.0.1:9090",
				DatabaseDriver:    "postgres",
				DatabaseDSN:       "db",
				SecretKey:         "secret",
				SessionLifetime:   30 * time.Minute,
				RememberLifetime:  60 * time.Minute,
				MaxLoginAttempts:  3,
				LoginLockoutTime:  2 * time.Minute,
				CounterBackend:    "redis",
				RedisAddr:         "redis:6379",
				BuntDBPath:        "/tmp/rl.db",
				RateLimitFailMode: "open",
				CSRFRotation:      "per_session",
				LogFormat:         "zap",
				S3RootUser:        "user",
				S3RootPassword:    "password",
				S3Bucket:          "bucket",
				S3Region:          "us-west-1",
				S3BaseEndpoint:    "http://endpoint",
			},
		},
		{
			name:        "bad int",
			args:        []string{"-m", "five"},
			expectPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &Config{}

			if !tt.expectPanic {
				require.NotPanics(t, func() { parseFlags(config, tt.args) })
				assert.Empty(t, cmp.Diff(config, tt.expected))
			} else {
				require.Panics(t, func() { parseFlags(config, tt.args) })
			}
		})
	}
}

func TestParseFlags_IgnoresForeignFlags(t *testing.T) {
	var c Config
	c.LoadDefaults()

	parseFlags(&c, []string{"-c", "conf.json", "-m", "7", "-verbose"})
	assert.Equal(t, 7, c.MaxLoginAttempts)
	assert.Equal(t, 15*time.Minute, c.LoginLockoutTime)
}
