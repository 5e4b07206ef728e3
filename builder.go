package goSession

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrEthical07/goSession/backend"
	"github.com/MrEthical07/goSession/directory"
	"github.com/MrEthical07/goSession/federated"
	"github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine].
//
// Builder instances are intended to be configured during initialization and used once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	store      session.Store
	backend    *backend.Client
	httpClient *http.Client
	provider   federated.Provider
	directory  directory.Directory
	auditSink  AuditSink
	logger     *slog.Logger
	now        func() time.Time

	built bool
}

// New returns a builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client used by the redis store driver, the login throttle and, when no
// other directory is configured, the admin directory.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore injects a session store. Storage.Driver is ignored.
func (b *Builder) WithStore(store session.Store) *Builder {
	b.store = store
	return b
}

// WithBackend injects a REST backend client. Backend.BaseURL is ignored.
func (b *Builder) WithBackend(client *backend.Client) *Builder {
	b.backend = client
	return b
}

// WithHTTPClient sets the transport for clients built from configuration.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithFederatedProvider enables admin sign-in and the federated watcher.
func (b *Builder) WithFederatedProvider(provider federated.Provider) *Builder {
	b.provider = provider
	return b
}

// WithDirectory sets the directory consulted before admitting a federated identity.
func (b *Builder) WithDirectory(dir directory.Directory) *Builder {
	b.directory = dir
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the structured logger. The default discards.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithClock overrides time.Now for token expiry peeks and validation latency.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and wires the engine. The engine is Unresolved until
// [Engine.Start].
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	// -------- SESSION STORE --------
	store := b.store
	if store == nil {
		switch cfg.Storage.Driver {
		case StorageRedis:
			if b.redis == nil {
				return nil, errors.New("redis storage driver requires redis client")
			}
			store = session.NewRedisStoreWithKeys(
				b.redis,
				cfg.Storage.RedisPrefix,
				cfg.Storage.TokenKey,
				cfg.Storage.UserKey,
				cfg.Storage.TTL,
			)
		case StorageFile:
			store = session.NewFileStore(cfg.Storage.FilePath)
		default:
			store = session.NewMemoryStore()
		}
	}

	// -------- BACKEND --------
	api := b.backend
	if api == nil && cfg.Backend.BaseURL != "" {
		client, err := backend.New(backend.Config{
			BaseURL:    cfg.Backend.BaseURL,
			HTTPClient: b.httpClient,
			Timeout:    cfg.Backend.Timeout,
			UserAgent:  cfg.Backend.UserAgent,
		})
		if err != nil {
			return nil, err
		}
		api = client
	}

	// -------- DIRECTORY --------
	dir := b.directory
	if dir == nil && cfg.Revocation.DirectoryURL != "" {
		d, err := directory.NewHTTPDirectory(directory.HTTPConfig{
			BaseURL:    cfg.Revocation.DirectoryURL,
			HTTPClient: b.httpClient,
			Timeout:    cfg.Revocation.QueryTimeout,
		})
		if err != nil {
			return nil, err
		}
		dir = d
	}
	if dir == nil && b.redis != nil && b.provider != nil {
		dir = directory.NewRedisDirectory(b.redis, cfg.Revocation.RedisPrefix)
	}
	if dir == nil && b.provider != nil {
		logger.Warn("no admin directory configured; federated identities are admitted without a disabled check")
	}

	// -------- LOGIN THROTTLE --------
	var limiter *rate.Limiter
	if cfg.LoginThrottle.Enabled {
		if b.redis == nil {
			return nil, errors.New("LoginThrottle requires redis client")
		}
		limiter = rate.New(b.redis, rate.Config{
			Prefix:      cfg.LoginThrottle.RedisPrefix,
			MaxAttempts: cfg.LoginThrottle.MaxAttempts,
			Cooldown:    cfg.LoginThrottle.Cooldown,
		})
	}

	sink := b.auditSink
	if sink == nil && cfg.Audit.Enabled {
		sink = audit.NewLogSink(logger)
	}

	engine := &Engine{
		config:    cloneConfig(cfg),
		logger:    logger,
		now:       now,
		store:     store,
		backend:   api,
		provider:  b.provider,
		directory: dir,
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, sink),
		metrics: NewMetrics(cfg.Metrics),
		changes: make(chan Session, cfg.Events.ChangeBuffer),
		stop:    make(chan struct{}),
	}
	engine.baseCtx, engine.cancel = context.WithCancel(context.Background())
	engine.flow = flows.New(engine.flowDeps(limiter))

	b.built = true

	return engine, nil
}

// flowDeps binds the flows to the engine's collaborators. Nil collaborators leave the matching
// funcs nil, which the flows report as not configured.
func (e *Engine) flowDeps(limiter *rate.Limiter) flows.Deps {
	cfg := e.config

	revocation := flows.RevocationDeps{
		Timeout:    cfg.Revocation.QueryTimeout,
		FailClosed: cfg.Revocation.FailPolicy == FailClosed,
	}
	if e.directory != nil {
		revocation.Lookup = e.directory.Lookup
	}

	validate := flows.ValidateDeps{
		Now:     e.now,
		Timeout: cfg.Validation.Timeout,
	}
	if cfg.Validation.PeekJWTExpiry {
		leeway := cfg.Validation.Leeway
		validate.TokenExpired = func(token string, now time.Time) bool {
			return jwt.Expired(token, now, leeway)
		}
	}

	var throttle flows.Throttle
	if limiter != nil {
		throttle = limiter
	}
	onThrottleError := func(err error) {
		e.logger.Warn("login throttle unavailable", "error", err)
	}

	deps := flows.Deps{
		Validate:   validate,
		Revocation: revocation,
		LoginUser: flows.LoginUserDeps{
			Throttle:        throttle,
			Commit:          e.commitUser,
			OnThrottleError: onThrottleError,
		},
		LoginAdmin: flows.LoginAdminDeps{
			Revocation:      revocation,
			AdminRole:       cfg.Federated.AdminRole,
			Throttle:        throttle,
			Commit:          e.commitAdmin,
			OnThrottleError: onThrottleError,
			OnSignOutError: func(err error) {
				e.logger.Warn("federated sign-out after refusal failed", "error", err)
			},
		},
	}

	if e.backend != nil {
		deps.Validate.FetchUser = e.backend.Me
		deps.LoginUser.Login = e.backend.Login
		deps.Logout.BackendLogout = e.backend.Logout
	} else {
		deps.Validate.FetchUser = func(context.Context, string) (session.UserRecord, error) {
			return session.UserRecord{}, ErrProviderNotConfigured
		}
	}

	if e.provider != nil {
		deps.LoginAdmin.SignIn = e.provider.SignIn
		deps.LoginAdmin.SignOut = e.provider.SignOut
		deps.Logout.SignOut = e.provider.SignOut
		deps.Watch = flows.WatchDeps{
			Subscribe:  e.provider.Subscribe,
			SignOut:    e.provider.SignOut,
			AdminRole:  cfg.Federated.AdminRole,
			Revocation: revocation,
			Observe:    e.observe,
		}
	}

	return deps
}
