// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads holoauth configuration from defaults, an optional
// YAML file, .env files, environment variables and command-line flags, in
// that order of precedence (last wins).
package config

import (
	_ "embed"
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	koanfyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/holoauth/internal/auth"
	"github.com/holomush/holoauth/internal/notify"
	"github.com/holomush/holoauth/internal/xdg"
)

// Driver names.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverLog      = "log"
	DriverNATS     = "nats"
)

// Config is the full service configuration.
type Config struct {
	HTTP      HTTPConfig      `koanf:"http"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Log       LogConfig       `koanf:"log"`
	Store     StoreConfig     `koanf:"store"`
	Auth      AuthConfig      `koanf:"auth"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
	Notify    NotifyConfig    `koanf:"notify"`
	Tracing   TracingConfig   `koanf:"tracing"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr            string        `koanf:"addr" jsonschema:"description=API listen address as host:port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	RequestTimeout  time.Duration `koanf:"request_timeout" jsonschema:"description=Per-request deadline applied by the router"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	TLS             TLSConfig     `koanf:"tls"`
}

// TLSConfig enables HTTPS on the API listener. Either set both files or
// self_signed, which generates a certificate under the XDG certs dir.
type TLSConfig struct {
	CertFile   string `koanf:"cert_file"`
	KeyFile    string `koanf:"key_file"`
	SelfSigned bool   `koanf:"self_signed" jsonschema:"description=Generate and reuse a self-signed certificate for development"`
}

// Enabled reports whether the API listener should serve TLS.
func (t TLSConfig) Enabled() bool {
	return t.SelfSigned || t.CertFile != "" || t.KeyFile != ""
}

// MetricsConfig configures the observability listener.
type MetricsConfig struct {
	Addr string `koanf:"addr" jsonschema:"description=Metrics and health listen address; empty disables it"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Format string `koanf:"format" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// StoreConfig selects where users, tokens and resets live.
type StoreConfig struct {
	Driver      string `koanf:"driver" jsonschema:"enum=postgres,enum=memory"`
	DatabaseURL string `koanf:"database_url"`
	MaxConns    int32  `koanf:"max_conns" jsonschema:"minimum=0"`
	AutoMigrate bool   `koanf:"auto_migrate" jsonschema:"description=Apply pending migrations when serve starts"`
}

// HasherConfig tunes argon2id.
type HasherConfig struct {
	Time    uint32 `koanf:"time" jsonschema:"minimum=1"`
	Memory  uint32 `koanf:"memory" jsonschema:"minimum=8,description=Memory in KiB"`
	Threads uint8  `koanf:"threads" jsonschema:"minimum=1"`
}

// LockoutConfig configures login throttling.
type LockoutConfig struct {
	Threshold int           `koanf:"threshold" jsonschema:"minimum=0,description=Failures before lockout; 0 disables throttling"`
	Duration  time.Duration `koanf:"duration"`
}

// AuthConfig configures tokens, resets and hashing.
type AuthConfig struct {
	TokenTTL time.Duration `koanf:"token_ttl" jsonschema:"description=Access token lifetime; 0 means tokens never expire"`
	ResetTTL time.Duration `koanf:"reset_ttl"`
	Hasher   HasherConfig  `koanf:"hasher"`
	Lockout  LockoutConfig `koanf:"lockout"`
	// PurgeInterval is how often serve deletes expired tokens and resets.
	PurgeInterval time.Duration `koanf:"purge_interval" jsonschema:"description=How often serve purges expired rows; 0 disables"`
}

// RateLimitConfig selects the attempt store.
type RateLimitConfig struct {
	Driver   string `koanf:"driver" jsonschema:"enum=memory,enum=redis"`
	RedisURL string `koanf:"redis_url"`
}

// NotifyConfig selects how reset tokens are delivered.
type NotifyConfig struct {
	Driver  string `koanf:"driver" jsonschema:"enum=log,enum=nats"`
	NATSURL string `koanf:"nats_url"`
	Subject string `koanf:"subject"`
}

// TracingConfig configures OpenTelemetry span export.
type TracingConfig struct {
	Endpoint string `koanf:"endpoint" jsonschema:"description=OTLP/HTTP collector as host:port or URL; empty disables export"`
}

// Default returns the built-in configuration.
func Default() Config {
	params := auth.DefaultHasherParams()
	lockout := auth.DefaultLockoutPolicy()
	return Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    15 * time.Second,
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Metrics: MetricsConfig{Addr: "127.0.0.1:9100"},
		Log:     LogConfig{Format: "json", Level: "info"},
		Store:   StoreConfig{Driver: DriverPostgres},
		Auth: AuthConfig{
			TokenTTL: auth.DefaultAccessTokenTTL,
			ResetTTL: auth.DefaultResetTokenTTL,
			Hasher:   HasherConfig{Time: params.Time, Memory: params.Memory, Threads: params.Threads},
			Lockout:  LockoutConfig{Threshold: lockout.Threshold, Duration: lockout.Duration},

			PurgeInterval: time.Hour,
		},
		RateLimit: RateLimitConfig{Driver: DriverMemory},
		Notify:    NotifyConfig{Driver: DriverLog, Subject: notify.DefaultSubject},
	}
}

//go:embed config.example.yaml
var exampleYAML []byte

// ExampleYAML returns a commented config file holding the defaults.
func ExampleYAML() []byte {
	return append([]byte(nil), exampleYAML...)
}

// envKeys maps environment variables onto config keys.
var envKeys = map[string]string{
	"DATABASE_URL": "store.database_url",
	"REDIS_URL":    "ratelimit.redis_url",
	"NATS_URL":     "notify.nats_url",

	"OTEL_EXPORTER_OTLP_ENDPOINT": "tracing.endpoint",
}

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"http-addr":    "http.addr",
	"metrics-addr": "metrics.addr",
	"log-format":   "log.format",
	"log-level":    "log.level",
	"store-driver": "store.driver",
	"database-url": "store.database_url",
	"auto-migrate": "store.auto_migrate",
}

// Loader reads configuration. The zero value is not usable; use NewLoader.
type Loader struct {
	// Path is the config file. Empty means the XDG default, which may be absent.
	Path string
	// EnvFiles are loaded with godotenv if they exist. Variables already set
	// in the environment win.
	EnvFiles []string
	// Getenv reads environment variables.
	Getenv func(string) string
}

// NewLoader returns a Loader for path reading ./.env and the XDG .env file.
func NewLoader(path string) *Loader {
	return &Loader{
		Path:     path,
		EnvFiles: []string{".env", xdg.EnvFile()},
		Getenv:   os.Getenv,
	}
}

// Load builds the configuration. Only flags that were changed on the
// command line override file and environment values.
func (l *Loader) Load(flags *pflag.FlagSet) (*Config, error) {
	if err := l.loadEnvFiles(); err != nil {
		return nil, err
	}

	k := koanf.New(".")

	path, explicit := l.Path, l.Path != ""
	if !explicit {
		path = xdg.ConfigFile()
	}
	if err := l.loadFile(k, path, explicit); err != nil {
		return nil, err
	}

	for env, key := range envKeys {
		if v := l.Getenv(env); v != "" {
			if err := k.Set(key, v); err != nil {
				return nil, oops.Code("CONFIG_ENV_FAILED").With("env", env).Wrap(err)
			}
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_DECODE_FAILED").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (l *Loader) loadEnvFiles() error {
	for _, name := range l.EnvFiles {
		if _, err := os.Stat(name); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			return oops.Code("CONFIG_ENV_FILE_FAILED").With("path", name).Wrap(err)
		}
	}
	return nil
}

func (l *Loader) loadFile(k *koanf.Koanf, path string, required bool) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && !required {
		return nil
	}
	if err != nil {
		return oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
	}
	if err := ValidateYAML(data); err != nil {
		return oops.Code("CONFIG_INVALID").With("path", path).Wrap(err)
	}
	if err := k.Load(file.Provider(path), koanfyaml.Parser()); err != nil {
		return oops.Code("CONFIG_PARSE_FAILED").With("path", path).Wrap(err)
	}
	return nil
}

// Validate checks cross-field constraints the schema cannot express.
func (c *Config) Validate() error {
	invalid := func(key string, format string, args ...any) error {
		return oops.Code("CONFIG_INVALID").With("key", key).Errorf(format, args...)
	}

	if c.HTTP.Addr == "" {
		return invalid("http.addr", "http.addr is required")
	}
	if tls := c.HTTP.TLS; (tls.CertFile == "") != (tls.KeyFile == "") {
		return invalid("http.tls", "http.tls.cert_file and http.tls.key_file must be set together")
	} else if tls.SelfSigned && tls.CertFile != "" {
		return invalid("http.tls", "http.tls.self_signed cannot be combined with certificate files")
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return invalid("log.format", "log.format must be json or text, got %q", c.Log.Format)
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			return invalid("store.database_url", "store.database_url (or DATABASE_URL) is required for the postgres driver")
		}
	default:
		return invalid("store.driver", "unknown store driver %q", c.Store.Driver)
	}
	switch c.RateLimit.Driver {
	case DriverMemory:
	case DriverRedis:
		if c.RateLimit.RedisURL == "" {
			return invalid("ratelimit.redis_url", "ratelimit.redis_url (or REDIS_URL) is required for the redis driver")
		}
	default:
		return invalid("ratelimit.driver", "unknown ratelimit driver %q", c.RateLimit.Driver)
	}
	switch c.Notify.Driver {
	case DriverLog:
	case DriverNATS:
		if c.Notify.NATSURL == "" {
			return invalid("notify.nats_url", "notify.nats_url (or NATS_URL) is required for the nats driver")
		}
	default:
		return invalid("notify.driver", "unknown notify driver %q", c.Notify.Driver)
	}
	if c.Auth.TokenTTL < 0 {
		return invalid("auth.token_ttl", "auth.token_ttl cannot be negative")
	}
	if c.Auth.ResetTTL <= 0 {
		return invalid("auth.reset_ttl", "auth.reset_ttl must be positive")
	}
	if c.Auth.PurgeInterval < 0 {
		return invalid("auth.purge_interval", "auth.purge_interval cannot be negative")
	}
	if c.Auth.Lockout.Threshold > 0 && c.Auth.Lockout.Duration <= 0 {
		return invalid("auth.lockout.duration", "auth.lockout.duration must be positive when throttling is enabled")
	}
	return nil
}

// HasherParams converts the hasher settings.
func (c *Config) HasherParams() auth.HasherParams {
	return auth.HasherParams{Time: c.Auth.Hasher.Time, Memory: c.Auth.Hasher.Memory, Threads: c.Auth.Hasher.Threads}
}

// LockoutPolicy converts the lockout settings.
func (c *Config) LockoutPolicy() auth.LockoutPolicy {
	return auth.LockoutPolicy{Threshold: c.Auth.Lockout.Threshold, Duration: c.Auth.Lockout.Duration}
}

// BindFlags registers the flags that Load maps onto config keys.
func BindFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("http-addr", d.HTTP.Addr, "API listen address")
	fs.String("metrics-addr", d.Metrics.Addr, "metrics/health listen address (empty = disabled)")
	fs.String("log-format", d.Log.Format, "log format (json or text)")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	fs.String("store-driver", d.Store.Driver, "storage driver (postgres or memory)")
	fs.String("database-url", "", "PostgreSQL connection URL (default: $DATABASE_URL)")
	fs.Bool("auto-migrate", d.Store.AutoMigrate, "apply pending migrations on start")
}
