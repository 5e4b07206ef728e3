package goSession

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config is the full engine configuration. Start from [DefaultConfig] and override fields.
// Every field can also be set from GOSESSION_* environment variables via [ConfigFromEnv].
type Config struct {
	Backend       BackendConfig       `envPrefix:"BACKEND_"`
	Storage       StorageConfig       `envPrefix:"STORAGE_"`
	Validation    ValidationConfig    `envPrefix:"VALIDATION_"`
	Federated     FederatedConfig     `envPrefix:"FEDERATED_"`
	Revocation    RevocationConfig    `envPrefix:"REVOCATION_"`
	LoginThrottle LoginThrottleConfig `envPrefix:"THROTTLE_"`
	Audit         AuditConfig         `envPrefix:"AUDIT_"`
	Metrics       MetricsConfig       `envPrefix:"METRICS_"`
	Events        EventsConfig        `envPrefix:"EVENTS_"`
}

/*
====================================
BACKEND CONFIG
====================================
*/

// BackendConfig locates the bearer-token REST backend. An empty BaseURL disables user login
// and token validation unless a client is injected with [Builder.WithBackend].
type BackendConfig struct {
	BaseURL   string        `env:"URL"`
	Timeout   time.Duration `env:"TIMEOUT"`
	UserAgent string        `env:"USER_AGENT"`
}

/*
====================================
STORAGE CONFIG
====================================
*/

// StorageDriver selects the built-in session store.
type StorageDriver string

const (
	StorageRedis  StorageDriver = "redis"
	StorageFile   StorageDriver = "file"
	StorageMemory StorageDriver = "memory"
)

// StorageConfig configures the built-in store. It is ignored when a store is injected with
// [Builder.WithStore].
type StorageConfig struct {
	Driver      StorageDriver `env:"DRIVER"`
	RedisPrefix string        `env:"REDIS_PREFIX"`
	TokenKey    string        `env:"TOKEN_KEY"`
	UserKey     string        `env:"USER_KEY"`
	// TTL of zero keeps the persisted pair until logout.
	TTL      time.Duration `env:"TTL"`
	FilePath string        `env:"FILE_PATH"`
}

/*
====================================
VALIDATION CONFIG
====================================
*/

// ValidationConfig tunes bearer-token validation against GET /auth/me.
type ValidationConfig struct {
	Timeout time.Duration `env:"TIMEOUT"`
	// PeekJWTExpiry rejects JWT-shaped tokens whose exp has passed without a network call.
	PeekJWTExpiry bool          `env:"PEEK_JWT_EXPIRY"`
	Leeway        time.Duration `env:"LEEWAY"`
	// Interval revalidates an active apiToken session periodically. Zero disables it.
	Interval time.Duration `env:"INTERVAL"`
}

/*
====================================
FEDERATED CONFIG
====================================
*/

type FederatedConfig struct {
	// AdminRole is the role given to every admitted federated identity.
	AdminRole string `env:"ADMIN_ROLE"`
}

/*
====================================
REVOCATION CONFIG
====================================
*/

// FailPolicy decides what happens to a federated identity when the directory cannot be
// queried.
type FailPolicy int

const (
	// FailOpen admits the identity and audits the outage.
	FailOpen FailPolicy = iota
	// FailClosed refuses the identity as if it were disabled.
	FailClosed
)

func (p FailPolicy) String() string {
	if p == FailClosed {
		return "closed"
	}
	return "open"
}

// UnmarshalText accepts "open" or "closed".
func (p *FailPolicy) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "open", "fail_open", "":
		*p = FailOpen
	case "closed", "fail_closed":
		*p = FailClosed
	default:
		return fmt.Errorf("unknown fail policy %q", string(text))
	}
	return nil
}

func (p FailPolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// RevocationConfig configures the disabled-account gate.
type RevocationConfig struct {
	FailPolicy   FailPolicy    `env:"FAIL_POLICY"`
	QueryTimeout time.Duration `env:"QUERY_TIMEOUT"`
	// AuditMissingRecord emits directory_record_missing when an admitted identity has no
	// directory record.
	AuditMissingRecord bool `env:"AUDIT_MISSING_RECORD"`
	// RecheckInterval re-queries the directory for an active federated session. Zero disables it.
	RecheckInterval time.Duration `env:"RECHECK_INTERVAL"`
	// RedisPrefix namespaces directory hashes when the directory is Redis-backed.
	RedisPrefix string `env:"REDIS_PREFIX"`
	// DirectoryURL selects the HTTP directory when no directory is injected.
	DirectoryURL string `env:"DIRECTORY_URL"`
}

/*
====================================
LOGIN THROTTLE CONFIG
====================================
*/

// LoginThrottleConfig enables Redis-backed throttling of failed logins. It needs a Redis client.
type LoginThrottleConfig struct {
	Enabled     bool          `env:"ENABLED"`
	MaxAttempts int           `env:"MAX_ATTEMPTS"`
	Cooldown    time.Duration `env:"COOLDOWN"`
	RedisPrefix string        `env:"REDIS_PREFIX"`
}

/*
====================================
AUDIT / METRICS / EVENTS CONFIG
====================================
*/

type AuditConfig struct {
	Enabled    bool `env:"ENABLED"`
	BufferSize int  `env:"BUFFER_SIZE"`
	DropIfFull bool `env:"DROP_IF_FULL"`
}

type MetricsConfig struct {
	Enabled                 bool `env:"ENABLED"`
	EnableLatencyHistograms bool `env:"LATENCY_HISTOGRAMS"`
}

// EventsConfig sizes the [Engine.Changes] channel.
type EventsConfig struct {
	ChangeBuffer int `env:"CHANGE_BUFFER"`
}

/*
====================================
DEFAULTS
====================================
*/

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Backend: BackendConfig{
			Timeout:   10 * time.Second,
			UserAgent: "goSession/1",
		},
		Storage: StorageConfig{
			Driver:      StorageMemory,
			RedisPrefix: "gosession",
			TokenKey:    "token",
			UserKey:     "user",
		},
		Validation: ValidationConfig{
			Timeout:       10 * time.Second,
			PeekJWTExpiry: true,
			Leeway:        30 * time.Second,
		},
		Federated: FederatedConfig{
			AdminRole: "admin",
		},
		Revocation: RevocationConfig{
			FailPolicy:         FailOpen,
			QueryTimeout:       5 * time.Second,
			AuditMissingRecord: true,
			RedisPrefix:        "gosession:admins",
		},
		LoginThrottle: LoginThrottleConfig{
			Enabled:     false,
			MaxAttempts: 5,
			Cooldown:    15 * time.Minute,
			RedisPrefix: "gosession:throttle",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Events: EventsConfig{
			ChangeBuffer: 16,
		},
	}
}

func cloneConfig(cfg Config) Config {
	return cfg
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if c.Backend.BaseURL != "" {
		u, err := url.Parse(c.Backend.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.New("Backend BaseURL must be an absolute URL")
		}
	}
	if c.Backend.Timeout < 0 {
		return errors.New("Backend Timeout must be >= 0")
	}

	switch c.Storage.Driver {
	case StorageRedis, StorageMemory:
	case StorageFile:
		if strings.TrimSpace(c.Storage.FilePath) == "" {
			return errors.New("Storage FilePath is required for the file driver")
		}
	default:
		return fmt.Errorf("unsupported Storage Driver %q", c.Storage.Driver)
	}
	if c.Storage.TTL < 0 {
		return errors.New("Storage TTL must be >= 0")
	}
	if c.Storage.TokenKey == "" || c.Storage.UserKey == "" {
		return errors.New("Storage TokenKey and UserKey must be set")
	}
	if c.Storage.TokenKey == c.Storage.UserKey {
		return errors.New("Storage TokenKey and UserKey must differ")
	}

	if c.Validation.Timeout <= 0 {
		return errors.New("Validation Timeout must be > 0")
	}
	if c.Validation.Leeway < 0 || c.Validation.Leeway > 5*time.Minute {
		return errors.New("Validation Leeway must be between 0 and 5m")
	}
	if c.Validation.Interval < 0 {
		return errors.New("Validation Interval must be >= 0")
	}
	if c.Validation.Interval > 0 && c.Validation.Interval < time.Second {
		return errors.New("Validation Interval must be >= 1s when enabled")
	}

	if strings.TrimSpace(c.Federated.AdminRole) == "" {
		return errors.New("Federated AdminRole must be set")
	}

	if c.Revocation.FailPolicy != FailOpen && c.Revocation.FailPolicy != FailClosed {
		return errors.New("unsupported Revocation FailPolicy")
	}
	if c.Revocation.QueryTimeout <= 0 {
		return errors.New("Revocation QueryTimeout must be > 0")
	}
	if c.Revocation.RecheckInterval < 0 {
		return errors.New("Revocation RecheckInterval must be >= 0")
	}
	if c.Revocation.DirectoryURL != "" {
		u, err := url.Parse(c.Revocation.DirectoryURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.New("Revocation DirectoryURL must be an absolute URL")
		}
	}

	if c.LoginThrottle.Enabled {
		if c.LoginThrottle.MaxAttempts <= 0 {
			return errors.New("LoginThrottle MaxAttempts must be > 0")
		}
		if c.LoginThrottle.Cooldown <= 0 {
			return errors.New("LoginThrottle Cooldown must be > 0")
		}
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}
	if c.Events.ChangeBuffer <= 0 {
		return errors.New("Events ChangeBuffer must be > 0")
	}

	return nil
}
