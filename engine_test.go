package goSession

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/session"
)

func TestStartRestoresBeforeValidationResolves(t *testing.T) {
	h := newHarness(t, withPersisted("tok123", &persistedUser))
	release := h.backend.gateMe()
	defer release()

	h.start(t)

	s := h.engine.Session()
	if !s.Active() || s.Source != SourceAPIToken {
		t.Fatalf("expected optimistic Active(apiToken), got %+v", s)
	}
	if s.Email() != "a@b.com" {
		t.Fatalf("expected a@b.com, got %q", s.Email())
	}
	if s.User.AuthSource != SourceAPIToken {
		t.Fatalf("user source mismatch: %q", s.User.AuthSource)
	}

	waitFor(t, "validation request", func() bool { return h.backend.meCalls.Load() == 1 })
	release()
	h.engine.Wait()

	if got := h.engine.Session(); !got.Active() || got.Email() != "a@b.com" {
		t.Fatalf("expected session kept after validation, got %+v", got)
	}
}

func TestBackgroundValidationRejectedTokenClearsSession(t *testing.T) {
	h := newHarness(t, withPersisted("tok123", &persistedUser))
	h.backend.setMe(http.StatusUnauthorized, `{"message":"token expired"}`)

	h.start(t)
	h.engine.Wait()

	s := h.engine.Session()
	if s.Status != StatusUnauthenticated || s.User != nil || s.Source != SourceNone {
		t.Fatalf("expected Unauthenticated, got %+v", s)
	}
	if rec := h.persisted(t); rec != nil {
		t.Fatalf("expected empty store, got %+v", rec)
	}
	ev := h.waitAudit(t, AuditTokenExpired)
	if ev.Success || ev.Email != "a@b.com" {
		t.Fatalf("unexpected audit event %+v", ev)
	}
	if got := h.engine.MetricsSnapshot().Counters[MetricValidateExpired]; got != 1 {
		t.Fatalf("expected 1 expired validation, got %d", got)
	}
}

func TestBackgroundValidationServerErrorClearsSession(t *testing.T) {
	h := newHarness(t, withPersisted("tok123", &persistedUser))
	h.backend.setMe(http.StatusBadGateway, `bad gateway`)

	h.start(t)
	h.engine.Wait()

	if got := h.engine.Status(); got != StatusUnauthenticated {
		t.Fatalf("expected non-2xx to invalidate the token, got %s", got)
	}
}

func TestValidationTimeoutKeepsRestoredSession(t *testing.T) {
	h := newHarness(t,
		withPersisted("tok123", &persistedUser),
		withConfig(func(c *Config) { c.Validation.Timeout = 50 * time.Millisecond }),
	)
	h.backend.mu.Lock()
	h.backend.meDelay = 2 * time.Second
	h.backend.mu.Unlock()

	h.start(t)
	before := h.engine.Session()
	h.engine.Wait()
	after := h.engine.Session()

	if !after.Active() || after.Email() != "a@b.com" || after.Epoch != before.Epoch {
		t.Fatalf("expected unchanged session, before=%+v after=%+v", before, after)
	}
	if rec := h.persisted(t); !rec.Complete() || rec.Token != "tok123" {
		t.Fatalf("expected store untouched, got %+v", rec)
	}
	if got := h.engine.MetricsSnapshot().Counters[MetricValidateKept]; got != 1 {
		t.Fatalf("expected 1 kept validation, got %d", got)
	}
}

func TestUndecodableValidationKeepsSession(t *testing.T) {
	h := newHarness(t, withPersisted("tok123", &persistedUser))
	h.backend.setMe(http.StatusOK, `<html>maintenance</html>`)

	h.start(t)
	h.engine.Wait()

	if !h.engine.Session().Active() {
		t.Fatal("expected session kept for an unparseable 2xx body")
	}
}

func TestValidationRefreshesPersistedUser(t *testing.T) {
	h := newHarness(t, withPersisted("tok123", &persistedUser))
	h.backend.setMe(http.StatusOK, `{"data":{"user":{"id":7,"email":"a@b.com","name":"Renamed","role":"editor"}}}`)

	h.start(t)
	h.engine.Wait()

	s := h.engine.Session()
	if s.User == nil || s.User.Name != "Renamed" || s.User.Role != "editor" {
		t.Fatalf("expected refreshed user, got %+v", s.User)
	}
	rec := h.persisted(t)
	if !rec.Complete() || rec.User.Name != "Renamed" {
		t.Fatalf("expected refreshed user persisted, got %+v", rec)
	}
}

func TestStartBareTokenValidatesBeforePublishing(t *testing.T) {
	h := newHarness(t, withPersisted("tok123", nil))

	h.start(t)

	s := h.engine.Session()
	if !s.Active() || s.Email() != "a@b.com" {
		t.Fatalf("expected Active after synchronous validation, got %+v", s)
	}
	if rec := h.persisted(t); !rec.Complete() || rec.User.ID != "7" {
		t.Fatalf("expected pair persisted, got %+v", rec)
	}
}

func TestStartBareTokenNetworkErrorStaysRestoring(t *testing.T) {
	h := newHarness(t, withPersisted("tok123", nil), withFederated())
	h.backend.srv.Close()

	h.start(t)

	if got := h.engine.Status(); got != StatusRestoring {
		t.Fatalf("expected Restoring, got %s", got)
	}
	if rec := h.persisted(t); rec == nil || rec.Token != "tok123" {
		t.Fatalf("expected token retained, got %+v", rec)
	}
	if got := h.provider.Hub().Subscribers(); got != 0 {
		t.Fatalf("expected no federated subscription, got %d", got)
	}
}

func TestStartBareTokenRecoversOnPeriodicValidation(t *testing.T) {
	h := newHarness(t,
		withPersisted("tok123", nil),
		withConfig(func(c *Config) {
			c.Validation.Timeout = 50 * time.Millisecond
			c.Validation.Interval = time.Second
		}),
	)
	h.backend.setMeDelay(300 * time.Millisecond)

	h.start(t)
	if got := h.engine.Status(); got != StatusRestoring {
		t.Fatalf("expected Restoring after timed-out validation, got %s", got)
	}

	h.backend.setMeDelay(0)
	waitFor(t, "recovered session", func() bool { return h.engine.Status() == StatusActive })

	s := h.engine.Session()
	if s.Source != SourceAPIToken || s.Email() != "a@b.com" {
		t.Fatalf("unexpected recovered session %+v", s)
	}
	if rec := h.persisted(t); !rec.Complete() || rec.Token != "tok123" || rec.User.ID != "7" {
		t.Fatalf("expected validated user persisted, got %+v", rec)
	}
	if got := h.backend.meCalls.Load(); got < 2 {
		t.Fatalf("expected a retry, got %d validation calls", got)
	}
}

func TestRevalidateRetriesBareTokenLeftRestoring(t *testing.T) {
	h := newHarness(t,
		withPersisted("tok123", nil),
		withFederated(),
		withConfig(func(c *Config) { c.Validation.Timeout = 50 * time.Millisecond }),
	)
	h.backend.setMeDelay(300 * time.Millisecond)
	h.start(t)

	if err := h.engine.Revalidate(context.Background()); !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork while backend is slow, got %v", err)
	}
	if got := h.engine.Status(); got != StatusRestoring {
		t.Fatalf("expected Restoring, got %s", got)
	}
	if rec := h.persisted(t); rec == nil || rec.Token != "tok123" {
		t.Fatalf("expected token retained, got %+v", rec)
	}

	h.backend.setMeDelay(0)
	h.backend.setMe(http.StatusUnauthorized, `{"message":"expired"}`)
	if err := h.engine.Revalidate(context.Background()); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	if rec := h.persisted(t); rec != nil {
		t.Fatalf("expected store cleared, got %+v", rec)
	}
	waitFor(t, "federated subscription", func() bool { return h.provider.Hub().Subscribers() == 1 })
	waitFor(t, "unauthenticated", func() bool { return h.engine.Status() == StatusUnauthenticated })
}

func TestStartBareTokenRejectedFallsThroughToFederated(t *testing.T) {
	h := newHarness(t, withPersisted("tok123", nil), withFederated())
	h.backend.setMe(http.StatusUnauthorized, `{"message":"expired"}`)

	h.start(t)

	if rec := h.persisted(t); rec != nil {
		t.Fatalf("expected store cleared, got %+v", rec)
	}
	waitFor(t, "federated subscription", func() bool { return h.provider.Hub().Subscribers() == 1 })
	waitFor(t, "unauthenticated", func() bool { return h.engine.Status() == StatusUnauthenticated })
}

func TestStartWithoutPersistedSessionOrProvider(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	if got := h.engine.Status(); got != StatusUnauthenticated {
		t.Fatalf("expected Unauthenticated, got %s", got)
	}
	if h.backend.meCalls.Load() != 0 {
		t.Fatal("expected no validation call")
	}
}

func TestStartTwice(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	if err := h.engine.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestStartAfterClose(t *testing.T) {
	h := newHarness(t)
	h.engine.Close()
	if err := h.engine.Start(context.Background()); !errors.Is(err, ErrEngineClosed) {
		t.Fatalf("expected ErrEngineClosed, got %v", err)
	}
}

func TestExpiredJWTRejectedWithoutNetwork(t *testing.T) {
	// {"alg":"none"}.{"exp":1}.
	expired := "eyJhbGciOiJub25lIn0.eyJleHAiOjF9.c2ln"
	h := newHarness(t, withPersisted(expired, &persistedUser))

	h.start(t)
	h.engine.Wait()

	if got := h.engine.Status(); got != StatusUnauthenticated {
		t.Fatalf("expected Unauthenticated, got %s", got)
	}
	if h.backend.meCalls.Load() != 0 {
		t.Fatal("expected local expiry check to skip the network")
	}
}

func TestLoginUserInvalidCredentials(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	res, err := h.engine.LoginUser(context.Background(), "a@b.com", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if res == nil || res.Success || res.Error != ErrInvalidCredentials.Error() {
		t.Fatalf("unexpected result %+v", res)
	}
	if h.store.Writes() != 0 || h.persisted(t) != nil {
		t.Fatal("expected store untouched")
	}
	if got := h.engine.Status(); got != StatusUnauthenticated {
		t.Fatalf("expected Unauthenticated, got %s", got)
	}
	var ae *AuthError
	if !errors.As(err, &ae) || ae.Status != http.StatusUnauthorized {
		t.Fatalf("expected AuthError with status 401, got %#v", err)
	}
}

func TestLoginUserStatusMapping(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	if _, err := h.engine.LoginUser(context.Background(), "missing@b.com", userPassword); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if _, err := h.engine.LoginUser(context.Background(), "", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for empty input, got %v", err)
	}
	if got := h.backend.loginCalls.Load(); got != 1 {
		t.Fatalf("expected empty input to skip the backend, got %d calls", got)
	}

	h.backend.srv.Close()
	if _, err := h.engine.LoginUser(context.Background(), "a@b.com", userPassword); !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
}

func TestLoginUserSuccessPersistsAndPublishes(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	drain(h.engine.Changes())

	res, err := h.engine.LoginUser(context.Background(), "new@b.com", userPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !res.Success || res.User == nil || res.User.AuthSource != SourceAPIToken {
		t.Fatalf("unexpected result %+v", res)
	}

	rec := h.persisted(t)
	if !rec.Complete() || rec.Token != "tok-new" || rec.User.Email != "new@b.com" {
		t.Fatalf("expected pair persisted, got %+v", rec)
	}

	select {
	case s := <-h.engine.Changes():
		if !s.Active() || s.Email() != "new@b.com" {
			t.Fatalf("unexpected change %+v", s)
		}
	case <-time.After(time.Second):
		t.Fatal("expected change notification")
	}
	h.waitAudit(t, AuditLoginUser)
}

func TestLateValidationCannotResurrectAfterLogout(t *testing.T) {
	h := newHarness(t, withPersisted("tok123", &persistedUser))
	release := h.backend.gateMe()

	h.start(t)
	waitFor(t, "validation request", func() bool { return h.backend.meCalls.Load() == 1 })

	h.engine.Logout(context.Background())
	release()
	h.engine.Wait()

	if got := h.engine.Status(); got != StatusUnauthenticated {
		t.Fatalf("expected session to stay cleared, got %s", got)
	}
	if rec := h.persisted(t); rec != nil {
		t.Fatalf("expected store to stay empty, got %+v", rec)
	}
	if got := h.engine.MetricsSnapshot().Counters[MetricValidateStale]; got != 1 {
		t.Fatalf("expected stale validation dropped, got %d", got)
	}
}

func TestLateRejectionDoesNotOverwriteNewLogin(t *testing.T) {
	h := newHarness(t, withPersisted("tok123", &persistedUser))
	release := h.backend.gateMe()
	h.backend.setMe(http.StatusUnauthorized, `{"message":"expired"}`)

	h.start(t)
	waitFor(t, "validation request", func() bool { return h.backend.meCalls.Load() == 1 })

	if _, err := h.engine.LoginUser(context.Background(), "new@b.com", userPassword); err != nil {
		t.Fatalf("login: %v", err)
	}
	release()
	h.engine.Wait()

	s := h.engine.Session()
	if !s.Active() || s.Email() != "new@b.com" {
		t.Fatalf("expected new login to survive, got %+v", s)
	}
	if rec := h.persisted(t); rec == nil || rec.Token != "tok-new" {
		t.Fatalf("expected new token persisted, got %+v", rec)
	}
}

func TestLogoutAPITokenAlwaysClears(t *testing.T) {
	h := newHarness(t, withPersisted("tok123", &persistedUser))
	h.backend.mu.Lock()
	h.backend.logoutStatus = http.StatusInternalServerError
	h.backend.mu.Unlock()

	h.start(t)
	h.engine.Wait()
	epoch := h.engine.Session().Epoch

	h.engine.Logout(context.Background())

	s := h.engine.Session()
	if s.Status != StatusUnauthenticated || s.User != nil {
		t.Fatalf("expected Unauthenticated, got %+v", s)
	}
	if s.Epoch <= epoch {
		t.Fatalf("expected epoch to advance, %d -> %d", epoch, s.Epoch)
	}
	if rec := h.persisted(t); rec != nil {
		t.Fatalf("expected empty store, got %+v", rec)
	}
	h.backend.mu.Lock()
	last := h.backend.lastLogout
	h.backend.mu.Unlock()
	if last != "tok123" {
		t.Fatalf("expected backend logout with the session token, got %q", last)
	}
	h.waitAudit(t, AuditLogout)
}

func TestLogoutWhenBackendUnreachable(t *testing.T) {
	h := newHarness(t, withPersisted("tok123", &persistedUser))
	h.start(t)
	h.engine.Wait()
	h.backend.srv.Close()

	h.engine.Logout(context.Background())

	if got := h.engine.Status(); got != StatusUnauthenticated {
		t.Fatalf("expected Unauthenticated, got %s", got)
	}
	if rec := h.persisted(t); rec != nil {
		t.Fatalf("expected empty store, got %+v", rec)
	}
}

func TestLogoutWithoutSession(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	h.engine.Logout(context.Background())

	if got := h.engine.Status(); got != StatusUnauthenticated {
		t.Fatalf("expected Unauthenticated, got %s", got)
	}
	if h.backend.logoutCalls.Load() != 0 {
		t.Fatal("expected no backend call without a token")
	}
}

func TestRevalidate(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	if err := h.engine.Revalidate(context.Background()); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady without a session, got %v", err)
	}

	if _, err := h.engine.LoginUser(context.Background(), "new@b.com", userPassword); err != nil {
		t.Fatalf("login: %v", err)
	}
	h.backend.setMe(http.StatusOK, `{"id":9,"email":"new@b.com","name":"New","role":"user"}`)
	if err := h.engine.Revalidate(context.Background()); err != nil {
		t.Fatalf("revalidate: %v", err)
	}

	h.backend.setMe(http.StatusForbidden, `{"message":"revoked"}`)
	if err := h.engine.Revalidate(context.Background()); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	if got := h.engine.Status(); got != StatusUnauthenticated {
		t.Fatalf("expected Unauthenticated, got %s", got)
	}
}

func TestPeriodicValidationClearsRevokedToken(t *testing.T) {
	h := newHarness(t, withPersisted("tok123", &persistedUser), withConfig(func(c *Config) {
		c.Validation.Interval = time.Second
	}))
	h.start(t)
	h.engine.Wait()
	if !h.engine.Session().Active() {
		t.Fatal("expected active session")
	}

	h.backend.setMe(http.StatusUnauthorized, `{"message":"expired"}`)
	waitFor(t, "periodic revalidation", func() bool { return h.engine.Status() == StatusUnauthenticated })
}

func TestOnChangeDeliversInOrder(t *testing.T) {
	h := newHarness(t, withPersisted("tok123", &persistedUser))
	h.backend.setMe(http.StatusUnauthorized, `{}`)

	var mu sync.Mutex
	var seen []Status
	h.engine.OnChange(func(s Session) {
		mu.Lock()
		seen = append(seen, s.Status)
		mu.Unlock()
	})

	h.start(t)
	h.engine.Wait()

	mu.Lock()
	defer mu.Unlock()
	want := []Status{StatusActive, StatusUnauthenticated}
	if len(seen) != len(want) {
		t.Fatalf("expected %v, got %v", want, seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, seen)
		}
	}
}

func TestStoreReadFailureTreatedAsEmpty(t *testing.T) {
	engine, err := New().WithStore(failingStore{}).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer engine.Close()

	if err := engine.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := engine.Status(); got != StatusUnauthenticated {
		t.Fatalf("expected Unauthenticated, got %s", got)
	}
}

func TestLoginUserPersistFailureLeavesStateUntouched(t *testing.T) {
	h := newHarness(t)
	engine, err := New().WithStore(failingStore{}).WithBackend(mustBackend(t, h.backend.srv.URL)).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer engine.Close()
	if err := engine.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	res, err := engine.LoginUser(context.Background(), "new@b.com", userPassword)
	if !errors.Is(err, ErrSessionPersistFailed) {
		t.Fatalf("expected ErrSessionPersistFailed, got %v", err)
	}
	if res.Success {
		t.Fatal("expected failed result")
	}
	if got := engine.Status(); got != StatusUnauthenticated {
		t.Fatalf("expected Unauthenticated, got %s", got)
	}
}

func TestMetricsSnapshotCarriesState(t *testing.T) {
	h := newHarness(t, withPersisted("tok123", &persistedUser))
	h.start(t)
	h.engine.Wait()

	snap := h.engine.MetricsSnapshot()
	if snap.Status != StatusActive || snap.Source != SourceAPIToken {
		t.Fatalf("unexpected state in snapshot: %s %s", snap.Status, snap.Source)
	}
	if snap.Counters[MetricRestoreOptimistic] != 1 || snap.Counters[MetricValidateSuccess] != 1 {
		t.Fatalf("unexpected counters %+v", snap.Counters)
	}
}

func TestCloseIsIdempotentAndClosesChanges(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	h.engine.Close()
	h.engine.Close()

	drain(h.engine.Changes())
	if _, ok := <-h.engine.Changes(); ok {
		t.Fatal("expected closed changes channel")
	}
}

type failingStore struct{}

var errStoreDown = errors.New("store down")

func (failingStore) Read(context.Context) (*session.Record, error) {
	return nil, errStoreDown
}

func (failingStore) Write(context.Context, string, session.UserRecord) error {
	return errStoreDown
}

func (failingStore) Clear(context.Context) error {
	return errStoreDown
}

func drain(ch <-chan Session) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
