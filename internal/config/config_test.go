// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/holoauth/pkg/errutil"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func testLoader(path string, env map[string]string) *Loader {
	return &Loader{
		Path:   path,
		Getenv: func(k string) string { return env[k] },
	}
}

func TestLoad_DefaultsWithMemoryStore(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	path := writeFile(t, "config.yaml", "store:\n  driver: memory\n")

	cfg, err := testLoader(path, nil).Load(nil)
	require.NoError(t, err)

	d := Default()
	assert.Equal(t, d.HTTP, cfg.HTTP)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 60*time.Minute, cfg.Auth.ResetTTL)
	assert.Equal(t, 7, cfg.Auth.Lockout.Threshold)
}

func TestLoad_FileValues(t *testing.T) {
	path := writeFile(t, "config.yaml", `
http:
  addr: ":9090"
  request_timeout: 5s
log:
  format: text
  level: debug
store:
  driver: postgres
  database_url: postgres://db/auth
auth:
  token_ttl: 0
  reset_ttl: 30m
  hasher:
    time: 2
    memory: 19456
    threads: 1
  lockout:
    threshold: 5
    duration: 10m
ratelimit:
  driver: redis
  redis_url: redis://cache:6379/0
notify:
  driver: nats
  nats_url: nats://bus:4222
  subject: mail.reset
`)

	cfg, err := testLoader(path, nil).Load(nil)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, 5*time.Second, cfg.HTTP.RequestTimeout)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "postgres://db/auth", cfg.Store.DatabaseURL)
	assert.Zero(t, cfg.Auth.TokenTTL)
	assert.Equal(t, 30*time.Minute, cfg.Auth.ResetTTL)
	assert.Equal(t, uint32(19456), cfg.HasherParams().Memory)
	assert.Equal(t, 5, cfg.LockoutPolicy().Threshold)
	assert.Equal(t, 10*time.Minute, cfg.LockoutPolicy().Duration)
	assert.Equal(t, "redis://cache:6379/0", cfg.RateLimit.RedisURL)
	assert.Equal(t, "mail.reset", cfg.Notify.Subject)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "config.yaml", "store:\n  database_url: postgres://file/auth\n")

	cfg, err := testLoader(path, map[string]string{
		"DATABASE_URL":                "postgres://env/auth",
		"OTEL_EXPORTER_OTLP_ENDPOINT": "http://collector:4318",
	}).Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "postgres://env/auth", cfg.Store.DatabaseURL)
	assert.Equal(t, "http://collector:4318", cfg.Tracing.Endpoint)
}

func TestLoad_ChangedFlagsOverrideEverything(t *testing.T) {
	path := writeFile(t, "config.yaml", "http:\n  addr: \":9090\"\nstore:\n  driver: memory\nlog:\n  format: text\n")

	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--http-addr", "127.0.0.1:7000"}))

	cfg, err := testLoader(path, nil).Load(fs)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7000", cfg.HTTP.Addr)
	assert.Equal(t, "text", cfg.Log.Format, "unchanged flag must not reset file value")
}

func TestLoad_EnvFile(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	require.NoError(t, os.Unsetenv("DATABASE_URL"))

	envFile := writeFile(t, ".env", "DATABASE_URL=postgres://dotenv/auth\n")
	l := NewLoader(writeFile(t, "config.yaml", "{}\n"))
	l.EnvFiles = []string{filepath.Join(t.TempDir(), "missing.env"), envFile}

	cfg, err := l.Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "postgres://dotenv/auth", cfg.Store.DatabaseURL)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("explicit file missing", func(t *testing.T) {
		_, err := testLoader(filepath.Join(t.TempDir(), "nope.yaml"), nil).Load(nil)
		errutil.AssertErrorCode(t, err, "CONFIG_READ_FAILED")
	})

	t.Run("default file may be absent", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		_, err := testLoader("", map[string]string{"DATABASE_URL": "postgres://x/y"}).Load(nil)
		require.NoError(t, err)
	})

	t.Run("schema violation", func(t *testing.T) {
		path := writeFile(t, "config.yaml", "store:\n  driver: mysql\n")
		_, err := testLoader(path, nil).Load(nil)
		errutil.AssertErrorCode(t, err, "CONFIG_SCHEMA_VIOLATION")
		errutil.AssertErrorContext(t, err, "path", path)
	})

	t.Run("postgres without url", func(t *testing.T) {
		path := writeFile(t, "config.yaml", "store:\n  driver: postgres\n")
		_, err := testLoader(path, nil).Load(nil)
		errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
		errutil.AssertErrorContext(t, err, "key", "store.database_url")
	})
}

func TestExampleYAML_MatchesDefaults(t *testing.T) {
	data := ExampleYAML()
	require.NoError(t, ValidateYAML(data))

	path := writeFile(t, "config.yaml", string(data))
	cfg, err := testLoader(path, map[string]string{"DATABASE_URL": "postgres://x/y"}).Load(nil)
	require.NoError(t, err)

	want := Default()
	want.Store.DatabaseURL = "postgres://x/y"
	assert.Equal(t, want, *cfg)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		c := Default()
		c.Store.Driver = DriverMemory
		return c
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		key    string
	}{
		{"redis without url", func(c *Config) { c.RateLimit.Driver = DriverRedis }, "ratelimit.redis_url"},
		{"nats without url", func(c *Config) { c.Notify.Driver = DriverNATS }, "notify.nats_url"},
		{"unknown notify driver", func(c *Config) { c.Notify.Driver = "smtp" }, "notify.driver"},
		{"negative token ttl", func(c *Config) { c.Auth.TokenTTL = -time.Second }, "auth.token_ttl"},
		{"zero reset ttl", func(c *Config) { c.Auth.ResetTTL = 0 }, "auth.reset_ttl"},
		{"lockout without duration", func(c *Config) { c.Auth.Lockout.Duration = 0 }, "auth.lockout.duration"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"negative purge interval", func(c *Config) { c.Auth.PurgeInterval = -time.Minute }, "auth.purge_interval"},
		{"tls cert without key", func(c *Config) { c.HTTP.TLS.CertFile = "tls.crt" }, "http.tls"},
		{"tls self signed with files", func(c *Config) {
			c.HTTP.TLS = TLSConfig{CertFile: "tls.crt", KeyFile: "tls.key", SelfSigned: true}
		}, "http.tls"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(&c)
			err := c.Validate()
			errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
			errutil.AssertErrorContext(t, err, "key", tt.key)
		})
	}

	c := base()
	c.Auth.Lockout = LockoutConfig{}
	require.NoError(t, c.Validate(), "threshold 0 disables throttling")
}
