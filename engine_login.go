package goSession

import (
	"context"

	"github.com/MrEthical07/goSession/federated"
	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/session"
)

// LoginUser authenticates an end user against the REST backend. On success the token and user
// are persisted and the session becomes Active(apiToken) in one step.
//
// The returned LoginResult is always non-nil and is the display form of the outcome; err
// matches one of the taxonomy sentinels. The store is untouched on failure.
func (e *Engine) LoginUser(ctx context.Context, identifier, password string) (*LoginResult, error) {
	res := e.flow.LoginUser(ctx, identifier, password)
	if res.Failure != flows.FailureNone {
		err := failureError("login_user", res.Failure, res.Err)
		e.recordLoginFailure(ctx, res.Failure, SourceAPIToken, identifier, err)
		out := ResultFromError(err)
		return &out, err
	}

	user := userFromRecord(*res.User, SourceAPIToken)
	e.metricInc(MetricLoginUserSuccess)
	e.logger.Info("user signed in", "email", user.Email)
	e.emitAudit(ctx, AuditLoginUser, true, user, nil, nil)
	return &LoginResult{Success: true, User: user}, nil
}

// LoginAdmin signs in with the federated provider. The identity is admitted only after the
// directory confirms it is not disabled; a refused identity is signed out again and the error
// matches [ErrAccountDisabled] or, under [FailClosed], [ErrDirectoryUnavailable].
//
// A successful admin login replaces any apiToken session and removes its persisted pair.
func (e *Engine) LoginAdmin(ctx context.Context, email, password string) (*LoginResult, error) {
	res := e.flow.LoginAdmin(ctx, email, password)
	if res.Failure != flows.FailureNone {
		err := failureError("login_admin", res.Failure, res.Err)
		if res.Failure == flows.FailurePersist && e.provider != nil {
			if signOutErr := e.provider.SignOut(ctx); signOutErr != nil {
				e.logger.Warn("federated sign-out after failed commit failed", "error", signOutErr)
			}
		}
		if res.Identity != nil && !res.Revocation.Admitted() {
			refused := userFromRecord(*flows.ProvisionalUser(res.Identity, e.config.Federated.AdminRole), SourceFederated)
			e.metricInc(MetricLoginAdminFailure)
			e.auditRevocation(ctx, res.Revocation, refused)
		} else {
			e.recordLoginFailure(ctx, res.Failure, SourceFederated, email, err)
		}
		out := ResultFromError(err)
		return &out, err
	}

	user := userFromRecord(*res.User, SourceFederated)
	e.auditRevocation(ctx, res.Revocation, user)
	e.metricInc(MetricLoginAdminSuccess)
	e.logger.Info("admin signed in", "email", user.Email)
	e.emitAudit(ctx, AuditLoginAdmin, true, user, nil, nil)
	return &LoginResult{Success: true, User: user}, nil
}

func (e *Engine) recordLoginFailure(ctx context.Context, kind flows.FailureKind, source AuthSource, identifier string, err error) {
	switch {
	case kind == flows.FailureRateLimited:
		e.metricInc(MetricLoginRateLimited)
	case source == SourceFederated:
		e.metricInc(MetricLoginAdminFailure)
	default:
		e.metricInc(MetricLoginUserFailure)
	}
	e.logger.Info("login failed", "source", source.String(), "failure", kind.String())
	e.emitAudit(ctx, AuditLoginFailure, false, nil, err, map[string]string{
		"source":     string(source),
		"identifier": identifier,
	})
}

// commitUser persists the pair and publishes Active(apiToken) under one lock.
func (e *Engine) commitUser(ctx context.Context, token string, rec session.UserRecord) error {
	user := userFromRecord(rec, SourceAPIToken)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	if err := e.store.Write(ctx, token, rec); err != nil {
		e.mu.Unlock()
		e.metricInc(MetricStoreFailure)
		return err
	}
	wasFederated := e.state.activeFederated()
	e.setLocked(activeState(SourceAPIToken, user, token, e.state.epoch+1))
	e.mu.Unlock()
	e.notify()

	if wasFederated && e.provider != nil {
		// One session per process: the admin identity does not outlive its replacement.
		if err := e.provider.SignOut(ctx); err != nil {
			e.logger.Warn("federated sign-out on user login failed", "error", err)
		}
	}
	return nil
}

// commitAdmin drops any persisted apiToken pair and publishes Active(federated). Federated
// sessions are never persisted.
func (e *Engine) commitAdmin(ctx context.Context, identity *federated.Identity, rec session.UserRecord) error {
	user := userFromRecord(rec, SourceFederated)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	if err := e.store.Clear(ctx); err != nil {
		e.mu.Unlock()
		e.metricInc(MetricStoreFailure)
		return err
	}
	e.setLocked(activeState(SourceFederated, user, "", e.state.epoch+1))
	e.mu.Unlock()
	e.notify()

	e.logger.Debug("federated session committed", "uid", identity.UID)
	// Sign-outs and disables reported by the provider from now on end this session.
	e.subscribe()
	return nil
}
