package goSession

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/directory"
	"github.com/MrEthical07/goSession/federated"
	"github.com/MrEthical07/goSession/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestLoginAdminDisabledAccountRefused(t *testing.T) {
	h := newHarness(t, withFederated())
	h.dir.Put(directory.Record{Email: adminEmail, Disabled: true})
	h.start(t)

	res, err := h.engine.LoginAdmin(context.Background(), adminEmail, adminPassword)
	if !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}
	if res.Success || res.Error != "account disabled" {
		t.Fatalf("unexpected result %+v", res)
	}
	if h.provider.Current() != nil {
		t.Fatal("expected provider signed out")
	}
	if got := h.engine.Status(); got != StatusUnauthenticated {
		t.Fatalf("expected Unauthenticated, got %s", got)
	}
	ev := h.waitAudit(t, AuditFederatedBlocked)
	if ev.Email != adminEmail || ev.Success {
		t.Fatalf("unexpected audit event %+v", ev)
	}
}

func TestLoginAdminReplacesAPITokenSession(t *testing.T) {
	h := newHarness(t, withFederated(), withPersisted("tok123", &persistedUser))
	h.dir.Put(directory.Record{Email: adminEmail})
	h.start(t)
	h.engine.Wait()

	res, err := h.engine.LoginAdmin(context.Background(), adminEmail, adminPassword)
	if err != nil {
		t.Fatalf("login admin: %v", err)
	}
	if !res.Success || res.User.Role != "admin" || res.User.Name != "Admin" {
		t.Fatalf("unexpected result %+v", res.User)
	}

	s := h.engine.Session()
	if !s.Active() || s.Source != SourceFederated || s.User.AuthSource != SourceFederated {
		t.Fatalf("expected Active(federated), got %+v", s)
	}
	if rec := h.persisted(t); rec != nil {
		t.Fatalf("expected apiToken pair removed, got %+v", rec)
	}
	waitFor(t, "federated subscription", func() bool { return h.provider.Hub().Subscribers() == 1 })
	h.waitAudit(t, AuditLoginAdmin)
}

func TestLoginAdminWrongPassword(t *testing.T) {
	h := newHarness(t, withFederated())
	h.start(t)

	res, err := h.engine.LoginAdmin(context.Background(), adminEmail, "nope")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if res.Error != "invalid credentials" {
		t.Fatalf("unexpected result %+v", res)
	}
	if h.dir.Lookups() != 0 {
		t.Fatal("expected no directory query for a failed sign-in")
	}

	if _, err := h.engine.LoginAdmin(context.Background(), "ghost@x.com", adminPassword); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if _, err := h.engine.LoginAdmin(context.Background(), "not-an-email", adminPassword); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
}

func TestLoginAdminWithoutProvider(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	if _, err := h.engine.LoginAdmin(context.Background(), adminEmail, adminPassword); !errors.Is(err, ErrProviderNotConfigured) {
		t.Fatalf("expected ErrProviderNotConfigured, got %v", err)
	}
}

func TestDirectoryOutageFailClosed(t *testing.T) {
	h := newHarness(t, withFederated(), withConfig(func(c *Config) {
		c.Revocation.FailPolicy = FailClosed
	}))
	h.dir.SetError(errors.New("directory offline"))
	h.start(t)

	res, err := h.engine.LoginAdmin(context.Background(), adminEmail, adminPassword)
	if !errors.Is(err, ErrDirectoryUnavailable) {
		t.Fatalf("expected ErrDirectoryUnavailable, got %v", err)
	}
	if res.Success {
		t.Fatal("expected refused login")
	}
	if h.provider.Current() != nil {
		t.Fatal("expected provider signed out")
	}
	h.waitAudit(t, AuditDirectoryUnavailableFailClosed)
}

func TestDirectoryOutageFailOpen(t *testing.T) {
	h := newHarness(t, withFederated())
	h.dir.SetError(errors.New("directory offline"))
	h.start(t)

	if _, err := h.engine.LoginAdmin(context.Background(), adminEmail, adminPassword); err != nil {
		t.Fatalf("expected admission under fail-open, got %v", err)
	}
	if s := h.engine.Session(); !s.Active() || s.Source != SourceFederated {
		t.Fatalf("expected Active(federated), got %+v", s)
	}
	ev := h.waitAudit(t, AuditDirectoryUnavailableFailOpen)
	if ev.Error != ErrDirectoryUnavailable.Error() {
		t.Fatalf("unexpected audit error %q", ev.Error)
	}
}

func TestDirectoryMissingRecordAdmitsAndAudits(t *testing.T) {
	h := newHarness(t, withFederated())
	h.start(t)

	if _, err := h.engine.LoginAdmin(context.Background(), adminEmail, adminPassword); err != nil {
		t.Fatalf("login admin: %v", err)
	}
	h.waitAudit(t, AuditDirectoryRecordMissing)
	if got := h.engine.MetricsSnapshot().Counters[MetricDirectoryMissing]; got == 0 {
		t.Fatal("expected missing-record metric")
	}
}

func TestWatcherAdmitsAndSignsOutExternalIdentity(t *testing.T) {
	h := newHarness(t, withFederated())
	h.start(t)

	if _, err := h.provider.SignIn(context.Background(), adminEmail, adminPassword); err != nil {
		t.Fatalf("provider sign in: %v", err)
	}
	waitFor(t, "federated admission", func() bool {
		s := h.engine.Session()
		return s.Active() && s.Source == SourceFederated
	})
	if got := h.engine.Session().User.Role; got != "admin" {
		t.Fatalf("expected admin role, got %q", got)
	}

	if err := h.provider.SignOut(context.Background()); err != nil {
		t.Fatalf("provider sign out: %v", err)
	}
	waitFor(t, "federated sign-out", func() bool { return h.engine.Status() == StatusUnauthenticated })
	h.waitAudit(t, AuditFederatedSignedOut)
}

func TestWatcherRefusesDisabledIdentity(t *testing.T) {
	h := newHarness(t, withFederated())
	h.dir.Put(directory.Record{Email: adminEmail, Disabled: true})
	h.start(t)

	if _, err := h.provider.SignIn(context.Background(), adminEmail, adminPassword); err != nil {
		t.Fatalf("provider sign in: %v", err)
	}
	h.waitAudit(t, AuditFederatedBlocked)
	waitFor(t, "forced sign-out", func() bool { return h.provider.Current() == nil })

	if got := h.engine.Status(); got != StatusUnauthenticated {
		t.Fatalf("expected Unauthenticated, got %s", got)
	}
}

func TestWatcherRefusesIdentityWithoutEmail(t *testing.T) {
	h := newHarness(t, withFederated())
	h.start(t)
	waitFor(t, "federated subscription", func() bool { return h.provider.Hub().Subscribers() == 1 })

	h.provider.Hub().Publish(&federated.Identity{UID: "anon"})
	ev := h.waitAudit(t, AuditFederatedNoEmail)
	if ev.Success {
		t.Fatal("expected refusal audit")
	}
	waitFor(t, "forced sign-out", func() bool { return h.provider.Current() == nil })

	if got := h.engine.Status(); got != StatusUnauthenticated {
		t.Fatalf("expected Unauthenticated, got %s", got)
	}
	if h.engine.MetricsSnapshot().Counters[MetricFederatedAdmitted] != 0 {
		t.Fatal("identity without email must not be admitted")
	}
}

func TestProviderDisableEndsFederatedSession(t *testing.T) {
	h := newHarness(t, withFederated())
	h.start(t)

	if _, err := h.engine.LoginAdmin(context.Background(), adminEmail, adminPassword); err != nil {
		t.Fatalf("login admin: %v", err)
	}
	waitFor(t, "federated subscription", func() bool { return h.provider.Hub().Subscribers() == 1 })

	if err := h.provider.SetDisabled(adminEmail, true); err != nil {
		t.Fatalf("disable: %v", err)
	}
	waitFor(t, "session end", func() bool { return h.engine.Status() == StatusUnauthenticated })
}

func TestWatcherIgnoresSignInWhileAPITokenActive(t *testing.T) {
	h := newHarness(t, withFederated())
	h.start(t)

	if _, err := h.engine.LoginUser(context.Background(), "new@b.com", userPassword); err != nil {
		t.Fatalf("login: %v", err)
	}
	epoch := h.engine.Session().Epoch

	if _, err := h.provider.SignIn(context.Background(), adminEmail, adminPassword); err != nil {
		t.Fatalf("provider sign in: %v", err)
	}
	if err := h.provider.SignOut(context.Background()); err != nil {
		t.Fatalf("provider sign out: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	s := h.engine.Session()
	if !s.Active() || s.Source != SourceAPIToken || s.Epoch != epoch {
		t.Fatalf("expected apiToken session untouched, got %+v", s)
	}
	if h.dir.Lookups() != 0 {
		t.Fatalf("expected no directory query, got %d", h.dir.Lookups())
	}
}

func TestStartAdoptsSignedInProviderIdentity(t *testing.T) {
	h := newHarness(t, withFederated())
	h.dir.Put(directory.Record{Email: adminEmail})
	if _, err := h.provider.SignIn(context.Background(), adminEmail, adminPassword); err != nil {
		t.Fatalf("provider sign in: %v", err)
	}

	h.start(t)
	waitFor(t, "federated restore", func() bool {
		s := h.engine.Session()
		return s.Active() && s.Source == SourceFederated
	})
	if got := h.engine.MetricsSnapshot().Counters[MetricRestoreFederated]; got != 1 {
		t.Fatalf("expected federated restore metric, got %d", got)
	}
}

func TestUserLoginSignsOutFederatedIdentity(t *testing.T) {
	h := newHarness(t, withFederated())
	h.start(t)

	if _, err := h.engine.LoginAdmin(context.Background(), adminEmail, adminPassword); err != nil {
		t.Fatalf("login admin: %v", err)
	}
	if _, err := h.engine.LoginUser(context.Background(), "new@b.com", userPassword); err != nil {
		t.Fatalf("login user: %v", err)
	}

	if h.provider.Current() != nil {
		t.Fatal("expected federated identity signed out")
	}
	time.Sleep(50 * time.Millisecond)
	s := h.engine.Session()
	if !s.Active() || s.Source != SourceAPIToken {
		t.Fatalf("expected Active(apiToken) to survive the sign-out emission, got %+v", s)
	}
}

func TestLogoutFederated(t *testing.T) {
	h := newHarness(t, withFederated())
	h.start(t)

	if _, err := h.engine.LoginAdmin(context.Background(), adminEmail, adminPassword); err != nil {
		t.Fatalf("login admin: %v", err)
	}
	h.engine.Logout(context.Background())

	if got := h.engine.Status(); got != StatusUnauthenticated {
		t.Fatalf("expected Unauthenticated, got %s", got)
	}
	if h.provider.Current() != nil {
		t.Fatal("expected provider signed out")
	}
	if h.backend.logoutCalls.Load() != 0 {
		t.Fatal("expected no backend logout for a federated session")
	}
}

func TestRecheckRevocation(t *testing.T) {
	h := newHarness(t, withFederated())
	h.start(t)

	if err := h.engine.RecheckRevocation(context.Background()); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}

	if _, err := h.engine.LoginAdmin(context.Background(), adminEmail, adminPassword); err != nil {
		t.Fatalf("login admin: %v", err)
	}
	if err := h.engine.RecheckRevocation(context.Background()); err != nil {
		t.Fatalf("expected session kept, got %v", err)
	}

	h.dir.Put(directory.Record{Email: adminEmail, Disabled: true})
	if err := h.engine.RecheckRevocation(context.Background()); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}
	if got := h.engine.Status(); got != StatusUnauthenticated {
		t.Fatalf("expected Unauthenticated, got %s", got)
	}
	if h.provider.Current() != nil {
		t.Fatal("expected provider signed out")
	}
}

func TestLoginThrottleWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	h := newHarness(t, withRedis(rdb), withConfig(func(c *Config) {
		c.LoginThrottle.Enabled = true
		c.LoginThrottle.MaxAttempts = 2
		c.LoginThrottle.Cooldown = time.Minute
	}))
	h.start(t)

	for i := 0; i < 2; i++ {
		if _, err := h.engine.LoginUser(context.Background(), "a@b.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}
	res, err := h.engine.LoginUser(context.Background(), "a@b.com", userPassword)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if res.Success {
		t.Fatal("expected refused login")
	}
	if got := h.backend.loginCalls.Load(); got != 2 {
		t.Fatalf("expected throttled attempt to skip the backend, got %d calls", got)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := h.engine.LoginUser(context.Background(), "a@b.com", userPassword); err != nil {
		t.Fatalf("expected login after cooldown, got %v", err)
	}
	if got := h.engine.MetricsSnapshot().Counters[MetricLoginRateLimited]; got != 1 {
		t.Fatalf("expected 1 rate-limited login, got %d", got)
	}
}

func TestRedisDirectoryFallback(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	h := newHarness(t, withFederated(), withoutDirectory(), withRedis(rdb))
	if err := directory.NewRedisDirectory(rdb, "gosession:admins").SetDisabled(context.Background(), adminEmail, true); err != nil {
		t.Fatalf("seed directory: %v", err)
	}
	h.start(t)

	if _, err := h.engine.LoginAdmin(context.Background(), adminEmail, adminPassword); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled from the redis directory, got %v", err)
	}
}

func TestRedisStorageDriver(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	api := newFakeBackend(t)

	cfg := DefaultConfig()
	cfg.Storage.Driver = StorageRedis
	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithBackend(mustBackend(t, api.srv.URL)).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(engine.Close)
	if err := engine.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := engine.LoginUser(context.Background(), "new@b.com", userPassword); err != nil {
		t.Fatalf("login: %v", err)
	}
	token, err := mr.Get("gosession:token")
	if err != nil || token != "tok-new" {
		t.Fatalf("expected token in redis, got %q (%v)", token, err)
	}
	raw, err := mr.Get("gosession:user")
	if err != nil {
		t.Fatalf("user key: %v", err)
	}
	user, err := session.DecodeUser([]byte(raw))
	if err != nil || user.Email != "new@b.com" {
		t.Fatalf("unexpected persisted user %q (%v)", raw, err)
	}

	engine.Logout(context.Background())
	if mr.Exists("gosession:token") || mr.Exists("gosession:user") {
		t.Fatal("expected both keys removed")
	}
}

func TestBuildRejectsMissingRedis(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LoginThrottle.Enabled = true
	if _, err := New().WithConfig(cfg).Build(); err == nil {
		t.Fatal("expected throttle without redis to fail")
	}

	cfg = DefaultConfig()
	cfg.Storage.Driver = StorageRedis
	if _, err := New().WithConfig(cfg).Build(); err == nil {
		t.Fatal("expected redis driver without redis to fail")
	}

	b := New()
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	engine.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("expected reused builder to fail")
	}
}
