package goSession

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goSession/internal/flows"
)

// subscribe starts the federated watcher once. It is a no-op without a provider, when already
// subscribed, or after Close.
func (e *Engine) subscribe() {
	w := e.flow.Watcher()
	if w == nil {
		return
	}
	e.mu.Lock()
	if e.closed || e.unsubscribe != nil {
		e.mu.Unlock()
		return
	}
	// Reserve the slot before subscribing; the first emission may arrive immediately.
	e.unsubscribe = func() {}
	e.mu.Unlock()

	unsubscribe := w.Subscribe(e.applyWatch)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		unsubscribe()
		return
	}
	e.unsubscribe = unsubscribe
	e.mu.Unlock()
}

// applyWatch applies one watcher outcome unless the session moved on while the directory was
// being asked.
func (e *Engine) applyWatch(out flows.WatchOutcome) {
	ctx := context.Background()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	if out.Epoch != e.state.epoch {
		e.mu.Unlock()
		e.logger.Debug("dropping stale federated outcome", "signed_in", out.SignedIn())
		return
	}

	switch {
	case !out.SignedIn():
		e.applySignedOutLocked(ctx)

	case out.Admitted():
		if e.state.activeAPIToken() {
			e.mu.Unlock()
			return
		}
		user := userFromRecord(*out.User, SourceFederated)
		epoch := e.state.epoch
		same := e.state.activeFederated() && e.state.user.ID == user.ID
		if !same {
			epoch++
		}
		e.setLocked(activeState(SourceFederated, user, "", epoch))
		e.mu.Unlock()
		e.notify()

		e.auditRevocation(ctx, out.Revocation, user)
		if !same {
			e.metricInc(MetricFederatedAdmitted)
			e.emitAudit(ctx, AuditFederatedAdmitted, true, user, nil, nil)
		}

	default:
		refused := userFromRecord(*flows.ProvisionalUser(out.Identity, e.config.Federated.AdminRole), SourceFederated)
		if !e.state.activeAPIToken() {
			e.setLocked(unauthenticatedState(e.state.epoch + 1))
		}
		e.mu.Unlock()
		e.notify()

		if out.SignOutErr != nil {
			e.logger.Warn("federated sign-out after refusal failed", "error", out.SignOutErr)
		}
		e.auditRevocation(ctx, out.Revocation, refused)
	}
}

// applySignedOutLocked handles a signed-out emission. It releases e.mu.
func (e *Engine) applySignedOutLocked(ctx context.Context) {
	switch {
	case e.state.activeAPIToken():
		e.mu.Unlock()

	case e.state.activeFederated():
		prev := e.state.user
		e.setLocked(unauthenticatedState(e.state.epoch + 1))
		e.mu.Unlock()
		e.notify()
		e.metricInc(MetricFederatedSignedOut)
		e.logger.Info("federated identity signed out", "email", prev.Email)
		e.emitAudit(ctx, AuditFederatedSignedOut, true, prev, nil, nil)

	case e.state.status == StatusRestoring && e.state.token == "":
		e.setLocked(unauthenticatedState(e.state.epoch))
		e.mu.Unlock()
		e.notify()

	default:
		e.mu.Unlock()
	}
}

// auditRevocation records every gate outcome that is not a plain admit.
func (e *Engine) auditRevocation(ctx context.Context, rev flows.RevocationResult, user *User) {
	meta := map[string]string{"outcome": rev.Outcome.String()}
	switch rev.Outcome {
	case flows.RevocationBlocked:
		e.metricInc(MetricFederatedBlocked)
		e.logger.Warn("federated identity disabled in directory", "email", rev.Email)
		e.emitAudit(ctx, AuditFederatedBlocked, false, user, ErrAccountDisabled, meta)
	case flows.RevocationMissing:
		e.metricInc(MetricDirectoryMissing)
		if e.config.Revocation.AuditMissingRecord {
			e.emitAudit(ctx, AuditDirectoryRecordMissing, true, user, nil, meta)
		}
	case flows.RevocationNoEmail:
		e.metricInc(MetricFederatedBlocked)
		e.logger.Warn("federated identity without email refused", "uid", userID(user))
		e.emitAudit(ctx, AuditFederatedNoEmail, false, user,
			failureError("revocation", flows.FailureInvalidEmail, rev.Err), meta)
	case flows.RevocationUnavailableOpen:
		e.metricInc(MetricDirectoryUnavailable)
		e.logger.Warn("directory unavailable; admitting federated identity", "email", rev.Email, "error", rev.Err)
		e.emitAudit(ctx, AuditDirectoryUnavailableFailOpen, true, user,
			failureError("revocation", flows.FailureDirectoryUnavailable, rev.Err), meta)
	case flows.RevocationUnavailableClosed:
		e.metricInc(MetricDirectoryUnavailable)
		e.metricInc(MetricFederatedBlocked)
		e.logger.Warn("directory unavailable; refusing federated identity", "email", rev.Email, "error", rev.Err)
		e.emitAudit(ctx, AuditDirectoryUnavailableFailClosed, false, user,
			failureError("revocation", flows.FailureDirectoryUnavailable, rev.Err), meta)
	}
}

func userID(u *User) string {
	if u == nil {
		return ""
	}
	return u.ID
}

// RecheckRevocation asks the directory about the active federated session now and signs it
// out when the account was disabled since admission. It returns nil when the session is kept,
// including fail-open outages.
func (e *Engine) RecheckRevocation(ctx context.Context) error {
	e.mu.Lock()
	if !e.state.activeFederated() {
		e.mu.Unlock()
		return ErrEngineNotReady
	}
	user := *e.state.user
	epoch := e.state.epoch
	e.mu.Unlock()

	rev := e.flow.CheckRevocation(ctx, user.Email)
	if rev.Admitted() {
		if rev.Outcome == flows.RevocationUnavailableOpen {
			e.auditRevocation(ctx, rev, &user)
		}
		return nil
	}

	e.mu.Lock()
	if e.state.epoch != epoch || !e.state.activeFederated() {
		e.mu.Unlock()
		return nil
	}
	e.setLocked(unauthenticatedState(e.state.epoch + 1))
	e.mu.Unlock()
	e.notify()

	if e.provider != nil {
		if err := e.provider.SignOut(ctx); err != nil {
			e.logger.Warn("federated sign-out after refusal failed", "error", err)
		}
	}
	e.auditRevocation(ctx, rev, &user)
	return failureError("recheck", rev.Failure(), rev.Err)
}

// recheckLoop re-queries the directory for an active federated session every interval.
func (e *Engine) recheckLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-e.stop:
			return
		case <-ticker.C:
		}
		if err := e.RecheckRevocation(ctx); err != nil && !errors.Is(err, ErrEngineNotReady) {
			e.logger.Info("periodic directory recheck revoked session", "error", err)
		}
	}
}
