package flows

import (
	"context"
	"sync"

	"github.com/MrEthical07/goSession/federated"
	"github.com/MrEthical07/goSession/session"
)

// WatchOutcome is what the watcher concluded from one provider emission.
type WatchOutcome struct {
	// Epoch is the session epoch observed before the directory query. The Engine drops the
	// outcome if the epoch moved meanwhile.
	Epoch uint64
	// Identity is nil for a signed-out emission.
	Identity *federated.Identity
	// User is the provisional federated user when admitted.
	User       *session.UserRecord
	Revocation RevocationResult
	// SignOutErr is set when a refused identity could not be signed out.
	SignOutErr error
}

// SignedIn reports whether the emission carried an identity.
func (o WatchOutcome) SignedIn() bool {
	return o.Identity != nil
}

// Admitted reports whether the identity passed the revocation gate.
func (o WatchOutcome) Admitted() bool {
	return o.Identity != nil && o.User != nil
}

// WatchDeps captures the federated watcher dependencies.
type WatchDeps struct {
	Subscribe  func() *federated.Subscription
	SignOut    func(context.Context) error
	AdminRole  string
	Revocation RevocationDeps
	// Observe returns the current epoch and whether signed-in emissions should be ignored
	// (an apiToken session takes precedence).
	Observe func() (epoch uint64, ignore bool)
}

// Watcher turns provider emissions into admission decisions.
type Watcher struct {
	deps WatchDeps
	wg   sync.WaitGroup
}

// NewWatcher returns a watcher. Nothing is subscribed until [Watcher.Subscribe].
func NewWatcher(deps WatchDeps) *Watcher {
	return &Watcher{deps: deps}
}

// Subscribe opens a provider subscription and calls onChange for each emission, in order, from
// one goroutine. The returned func releases the subscription; calling it again is a no-op.
func (w *Watcher) Subscribe(onChange func(WatchOutcome)) (unsubscribe func()) {
	sub := w.deps.Subscribe()
	ctx, cancel := context.WithCancel(context.Background())

	var once sync.Once
	unsubscribe = func() {
		once.Do(func() {
			cancel()
			sub.Close()
		})
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer cancel()
		for {
			select {
			case <-sub.Done():
				return
			case ev, ok := <-sub.Events():
				if !ok {
					return
				}
				out := w.handle(ctx, ev)
				select {
				case <-sub.Done():
					// Released while the directory was being asked.
					return
				default:
				}
				if out != nil {
					onChange(*out)
				}
			}
		}
	}()

	return unsubscribe
}

// Wait blocks until every subscription goroutine has exited.
func (w *Watcher) Wait() {
	w.wg.Wait()
}

func (w *Watcher) handle(ctx context.Context, ev federated.Event) *WatchOutcome {
	var epoch uint64
	var ignore bool
	if w.deps.Observe != nil {
		epoch, ignore = w.deps.Observe()
	}

	if !ev.SignedIn() {
		return &WatchOutcome{Epoch: epoch}
	}
	if ignore {
		return nil
	}

	identity := ev.Identity
	rev := RunRevocationCheck(ctx, identity.Email, w.deps.Revocation)
	if ctx.Err() != nil {
		// Unsubscribed mid-query; the failure is ours, not the directory's.
		return nil
	}
	out := &WatchOutcome{Epoch: epoch, Identity: identity, Revocation: rev}
	if !rev.Admitted() {
		if w.deps.SignOut != nil {
			out.SignOutErr = w.deps.SignOut(ctx)
		}
		return out
	}

	out.User = ProvisionalUser(identity, w.deps.AdminRole)
	return out
}

// ProvisionalUser builds the session user for a federated identity.
func ProvisionalUser(identity *federated.Identity, role string) *session.UserRecord {
	name := identity.DisplayName
	if name == "" {
		name = identity.Email
	}
	return &session.UserRecord{
		ID:    identity.UID,
		Email: identity.Email,
		Name:  name,
		Role:  role,
	}
}
