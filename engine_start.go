package goSession

import (
	"context"

	"github.com/MrEthical07/goSession/internal/flows"
)

// Start resolves the session from persisted state and, when configured, the federated
// provider. It runs once per engine.
//
// A complete persisted pair is published as Active before any network call and validated in
// the background. A bare token is validated first; a rejected one is cleared and startup falls
// through to observing the federated provider. Start returns nil for every resolution outcome;
// errors only report misuse.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	switch {
	case e.closed:
		e.mu.Unlock()
		return ErrEngineClosed
	case e.started:
		e.mu.Unlock()
		return ErrAlreadyStarted
	}
	e.started = true
	e.mu.Unlock()

	rec, err := e.store.Read(ctx)
	if err != nil {
		e.metricInc(MetricStoreFailure)
		e.logger.Warn("reading persisted session failed; treating as empty", "error", err)
	}

	e.resolve(ctx, e.flow.Resolve(flows.ResolveInput{Record: rec, ReadErr: err}))
	e.startLoops()
	return nil
}

func (e *Engine) resolve(ctx context.Context, d flows.ResolveDecision) {
	switch d.Step {
	case flows.StepRestore:
		user := userFromRecord(*d.User, SourceAPIToken)
		e.mu.Lock()
		epoch := e.state.epoch
		ok := e.setLocked(activeState(SourceAPIToken, user, d.Token, epoch))
		e.mu.Unlock()
		e.notify()
		if !ok {
			return
		}
		e.metricInc(MetricRestoreOptimistic)
		e.emitAudit(ctx, AuditSessionRestored, true, user, nil, nil)
		// Published above before the validation goroutine exists.
		e.validateInBackground(d.Token, epoch, triggerRestore)

	case flows.StepValidateToken:
		e.mu.Lock()
		epoch := e.state.epoch
		ok := e.setLocked(sessionState{status: StatusRestoring, token: d.Token, epoch: epoch})
		e.mu.Unlock()
		e.notify()
		if !ok {
			return
		}
		e.validatePending(ctx, d.Token, epoch, triggerRestore)

	case flows.StepObserveFederated:
		e.mu.Lock()
		// A login may have won the race with startup; the watcher is still needed.
		if e.state.status == StatusUnresolved || e.state.status == StatusRestoring {
			e.setLocked(sessionState{status: StatusRestoring, epoch: e.state.epoch})
		}
		e.mu.Unlock()
		e.notify()
		e.metricInc(MetricRestoreFederated)
		e.subscribe()

	default:
		e.mu.Lock()
		if e.state.status == StatusActive {
			e.mu.Unlock()
			return
		}
		e.setLocked(unauthenticatedState(e.state.epoch))
		e.mu.Unlock()
		e.notify()
	}
}

// startLoops launches the optional periodic revalidation and directory recheck.
func (e *Engine) startLoops() {
	if interval := e.config.Validation.Interval; interval > 0 && e.backend != nil {
		e.goBackground(func(ctx context.Context) {
			e.validationLoop(ctx, interval)
		})
	}
	if interval := e.config.Revocation.RecheckInterval; interval > 0 && e.provider != nil && e.directory != nil {
		e.goBackground(func(ctx context.Context) {
			e.recheckLoop(ctx, interval)
		})
	}
}
