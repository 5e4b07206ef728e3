package goSession

import (
	"context"
	"time"

	"github.com/MrEthical07/goSession/internal/flows"
)

// validationTrigger names what started a validation, for logs and audit metadata.
type validationTrigger string

const (
	triggerRestore  validationTrigger = "restore"
	triggerPeriodic validationTrigger = "periodic"
	triggerManual   validationTrigger = "manual"
)

// validateInBackground checks token against the backend without blocking the caller. The
// result is applied only if the session still carries token at epoch.
func (e *Engine) validateInBackground(token string, epoch uint64, trigger validationTrigger) {
	e.validations.Add(1)
	started := e.goBackground(func(ctx context.Context) {
		defer e.validations.Done()
		res := e.flow.Validate(ctx, token)
		e.applyValidation(ctx, token, epoch, res, trigger, false)
	})
	if !started {
		e.validations.Done()
	}
}

// applyValidation applies one validation result. It reports whether the result was current.
//
// With restoring set, an expired token leaves the state in Restoring so startup can continue
// to the federated step.
func (e *Engine) applyValidation(ctx context.Context, token string, epoch uint64, res flows.ValidateResult, trigger validationTrigger, restoring bool) bool {
	if res.Latency > 0 && e.metrics != nil {
		e.metrics.Observe(MetricValidateLatency, res.Latency)
	}

	if res.KeepSession() {
		e.mu.Lock()
		current := e.state.epoch == epoch && e.state.token == token
		e.mu.Unlock()
		e.metricInc(MetricValidateKept)
		e.logger.Warn("token validation inconclusive; keeping session",
			"trigger", string(trigger),
			"failure", res.Failure.String(),
			"error", res.Err,
		)
		return current
	}

	e.mu.Lock()
	if e.state.epoch != epoch || e.state.token != token {
		e.mu.Unlock()
		e.metricInc(MetricValidateStale)
		e.logger.Debug("dropping stale validation result", "trigger", string(trigger))
		return false
	}

	if res.Failure == flows.FailureNone {
		user := userFromRecord(res.User, SourceAPIToken)
		if err := e.store.Write(ctx, token, res.User); err != nil {
			e.metricInc(MetricStoreFailure)
			e.logger.Warn("persisting validated user failed", "error", err)
		}
		e.setLocked(activeState(SourceAPIToken, user, token, e.state.epoch))
		e.mu.Unlock()
		e.notify()
		e.metricInc(MetricValidateSuccess)
		return true
	}

	// The backend no longer accepts the token.
	prev := e.state.user
	if err := e.store.Clear(ctx); err != nil {
		e.metricInc(MetricStoreFailure)
		e.logger.Warn("clearing expired session failed", "error", err)
	}
	next := unauthenticatedState(e.state.epoch + 1)
	if restoring && e.state.status == StatusRestoring {
		next.status = StatusRestoring
	}
	e.setLocked(next)
	e.mu.Unlock()
	e.notify()

	e.metricInc(MetricValidateExpired)
	e.logger.Warn("session token rejected; session cleared",
		"trigger", string(trigger),
		"local", res.Local,
	)
	e.emitAudit(ctx, AuditTokenExpired, false, prev, failureError("validate", flows.FailureTokenExpired, res.Err), map[string]string{
		"trigger": string(trigger),
	})
	return true
}

// validatePending validates a bare token held in Restoring. Success publishes Active and
// persists the user; rejection clears the token and continues startup with the federated
// step; an inconclusive result keeps the token for the next attempt.
func (e *Engine) validatePending(ctx context.Context, token string, epoch uint64, trigger validationTrigger) flows.ValidateResult {
	res := e.flow.Validate(ctx, token)
	current := e.applyValidation(ctx, token, epoch, res, trigger, true)
	if current && res.Failure == flows.FailureTokenExpired {
		e.resolve(ctx, e.flow.Resolve(flows.ResolveInput{TokenRejected: true}))
	}
	return res
}

// Revalidate checks the current apiToken session against the backend now. It returns nil when
// the token is still accepted, an error matching [ErrTokenExpired] when the session was
// cleared, and [ErrNetwork] or [ErrServerUnavailable] when the check was inconclusive and the
// session kept. A bare token still Restoring after an inconclusive startup check is retried
// the same way startup would.
func (e *Engine) Revalidate(ctx context.Context) error {
	e.mu.Lock()
	active, pending := e.state.activeAPIToken(), e.state.pendingToken()
	token, epoch := e.state.token, e.state.epoch
	e.mu.Unlock()

	var res flows.ValidateResult
	switch {
	case pending:
		res = e.validatePending(ctx, token, epoch, triggerManual)
	case active:
		res = e.flow.Validate(ctx, token)
		e.applyValidation(ctx, token, epoch, res, triggerManual, false)
	default:
		return ErrEngineNotReady
	}
	return failureError("revalidate", res.Failure, res.Err)
}

// validationLoop revalidates an active apiToken session every interval, and retries a bare
// token left Restoring.
func (e *Engine) validationLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-e.stop:
			return
		case <-ticker.C:
		}
		e.mu.Lock()
		active, pending := e.state.activeAPIToken(), e.state.pendingToken()
		token, epoch := e.state.token, e.state.epoch
		e.mu.Unlock()
		switch {
		case pending:
			e.validatePending(ctx, token, epoch, triggerPeriodic)
		case active:
			res := e.flow.Validate(ctx, token)
			e.applyValidation(ctx, token, epoch, res, triggerPeriodic, false)
		}
	}
}
