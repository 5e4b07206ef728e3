//go:build integration
// +build integration

package test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const (
	stubToken    = "integration-token"
	stubPassword = "integration-pass"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

// storeDrivers returns one fresh store per persistence driver.
func storeDrivers(t *testing.T) map[string]session.Store {
	t.Helper()
	_, rdb := newRedis(t)
	return map[string]session.Store{
		"memory": session.NewMemoryStore(),
		"file":   session.NewFileStore(filepath.Join(t.TempDir(), "session.json")),
		"redis":  session.NewRedisStore(rdb, "it", time.Hour),
	}
}

// newStubBackend serves a backend that accepts stubPassword for any identifier and revokes
// stubToken after revoke is called.
func newStubBackend(t *testing.T) (url string, revoke func()) {
	t.Helper()
	revoked := make(chan struct{})

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		if body.Password != stubPassword {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"success":false,"message":"Invalid credentials"}`)
			return
		}
		_, _ = io.WriteString(w, `{"success":true,"data":{"access_token":"`+stubToken+`","user":{"id":42,"email":"`+body.Username+`","name":"Integration","role":"user"}}}`)
	})
	mux.HandleFunc("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-revoked:
			w.WriteHeader(http.StatusUnauthorized)
			return
		default:
		}
		if r.Header.Get("Authorization") != "Bearer "+stubToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":42,"email":"it@example.com","name":"Integration","role":"user"}`)
	})
	mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	closed := false
	return srv.URL, func() {
		if !closed {
			closed = true
			close(revoked)
		}
	}
}

func newRedisEngine(t *testing.T, backendURL string, rdb redis.UniversalClient) *goSession.Engine {
	t.Helper()

	cfg := goSession.DefaultConfig()
	cfg.Backend.BaseURL = backendURL
	cfg.Storage.Driver = goSession.StorageRedis
	cfg.Validation.Timeout = 2 * time.Second

	engine, err := goSession.New().WithConfig(cfg).WithRedis(rdb).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	if err := engine.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return engine
}

func waitStatus(t *testing.T, engine *goSession.Engine, want goSession.Status) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if engine.Status() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for status %s, have %s", want, engine.Status())
}
