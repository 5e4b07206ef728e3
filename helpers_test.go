package goSession

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/backend"
	"github.com/MrEthical07/goSession/directory"
	"github.com/MrEthical07/goSession/federated"
	"github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/password"
	"github.com/MrEthical07/goSession/session"
	"github.com/redis/go-redis/v9"
)

const (
	adminEmail    = "admin@x.com"
	adminPassword = "s3cret-admin"
	userPassword  = "right-password"
)

var persistedUser = session.UserRecord{ID: "7", Email: "a@b.com", Name: "A", Role: "user"}

// fakeBackend serves /auth/login, /auth/me and /auth/logout.
type fakeBackend struct {
	srv *httptest.Server

	mu           sync.Mutex
	meStatus     int
	meBody       string
	meGate       chan struct{}
	meDelay      time.Duration
	logoutStatus int
	lastLogout   string

	meCalls     atomic.Int32
	loginCalls  atomic.Int32
	logoutCalls atomic.Int32
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	f := &fakeBackend{
		meStatus:     http.StatusOK,
		meBody:       `{"id":7,"email":"a@b.com","name":"A","role":"user"}`,
		logoutStatus: http.StatusOK,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/me", f.handleMe)
	mux.HandleFunc("/auth/login", f.handleLogin)
	mux.HandleFunc("/auth/logout", f.handleLogout)
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeBackend) setMe(status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meStatus = status
	f.meBody = body
}

func (f *fakeBackend) setMeDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meDelay = d
}

// gateMe holds every /auth/me request until the returned func is called.
func (f *fakeBackend) gateMe() (release func()) {
	gate := make(chan struct{})
	f.mu.Lock()
	f.meGate = gate
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (f *fakeBackend) handleMe(w http.ResponseWriter, r *http.Request) {
	f.meCalls.Add(1)
	f.mu.Lock()
	status, body, gate, delay := f.meStatus, f.meBody, f.meGate, f.meDelay
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
		f.mu.Lock()
		status, body = f.meStatus, f.meBody
		f.mu.Unlock()
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func (f *fakeBackend) handleLogin(w http.ResponseWriter, r *http.Request) {
	f.loginCalls.Add(1)
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	w.Header().Set("Content-Type", "application/json")
	switch {
	case req.Username == "missing@b.com":
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"success":false,"message":"No such user"}`)
	case req.Password != userPassword:
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"success":false,"message":"Invalid credentials"}`)
	default:
		_, _ = io.WriteString(w, `{"success":true,"data":{"access_token":"tok-new","user":{"id":9,"email":"`+req.Username+`","name":"New","role":"user"}}}`)
	}
}

func (f *fakeBackend) handleLogout(w http.ResponseWriter, r *http.Request) {
	f.logoutCalls.Add(1)
	f.mu.Lock()
	f.lastLogout = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	status := f.logoutStatus
	f.mu.Unlock()
	w.WriteHeader(status)
}

type harness struct {
	engine   *Engine
	store    *session.MemoryStore
	backend  *fakeBackend
	provider *federated.Local
	dir      *directory.StaticDirectory
	audit    *audit.ChannelSink
}

type harnessOptions struct {
	federated   bool
	noDirectory bool
	redis       redis.UniversalClient
	mutate      func(*Config)
	seed        func(*session.MemoryStore)
}

type harnessOption func(*harnessOptions)

func withFederated() harnessOption {
	return func(o *harnessOptions) { o.federated = true }
}

// withoutDirectory leaves directory selection to the builder.
func withoutDirectory() harnessOption {
	return func(o *harnessOptions) { o.noDirectory = true }
}

func withRedis(client redis.UniversalClient) harnessOption {
	return func(o *harnessOptions) { o.redis = client }
}

func withConfig(fn func(*Config)) harnessOption {
	return func(o *harnessOptions) { o.mutate = fn }
}

func withPersisted(token string, user *session.UserRecord) harnessOption {
	return func(o *harnessOptions) {
		o.seed = func(s *session.MemoryStore) { s.Seed(token, user) }
	}
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	var o harnessOptions
	for _, opt := range opts {
		opt(&o)
	}

	h := &harness{
		store:   session.NewMemoryStore(),
		backend: newFakeBackend(t),
		dir:     directory.NewStaticDirectory(),
		audit:   audit.NewChannelSink(256),
	}
	if o.seed != nil {
		o.seed(h.store)
	}

	cfg := DefaultConfig()
	cfg.Validation.Timeout = 2 * time.Second
	cfg.Revocation.QueryTimeout = time.Second
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false
	cfg.Metrics.Enabled = true
	cfg.Events.ChangeBuffer = 64
	if o.mutate != nil {
		o.mutate(&cfg)
	}

	b := New().
		WithConfig(cfg).
		WithStore(h.store).
		WithBackend(mustBackend(t, h.backend.srv.URL)).
		WithAuditSink(h.audit)

	if o.federated {
		provider, err := federated.NewLocal(federated.LocalConfig{
			Password: password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32},
		})
		if err != nil {
			t.Fatalf("new local: %v", err)
		}
		h.provider = provider
		if _, err := h.provider.AddAccount(adminEmail, adminPassword, "Admin"); err != nil {
			t.Fatalf("add account: %v", err)
		}
		b = b.WithFederatedProvider(h.provider)
		if !o.noDirectory {
			b = b.WithDirectory(h.dir)
		}
	}
	if o.redis != nil {
		b = b.WithRedis(o.redis)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	h.engine = engine
	t.Cleanup(engine.Close)
	return h
}

func mustBackend(t *testing.T, baseURL string) *backend.Client {
	t.Helper()
	client, err := backend.New(backend.Config{BaseURL: baseURL})
	if err != nil {
		t.Fatalf("backend client: %v", err)
	}
	return client
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.engine.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// waitAudit reads the sink until an event of eventType arrives.
func (h *harness) waitAudit(t *testing.T, eventType string) AuditEvent {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case ev := <-h.audit.Events():
			if ev.EventType == eventType {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for audit event %s", eventType)
		}
	}
}

func (h *harness) persisted(t *testing.T) *session.Record {
	t.Helper()
	rec, err := h.store.Read(context.Background())
	if err != nil {
		t.Fatalf("store read: %v", err)
	}
	return rec
}
