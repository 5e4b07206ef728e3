package goSession

import (
	"context"

	"github.com/MrEthical07/goSession/internal/flows"
)

// Logout ends the session whatever its source. Local state is cleared first, so the store is
// empty and the session Unauthenticated when Logout returns. The remote halves (backend token
// invalidation, provider sign-out) are best-effort and never fail a logout.
func (e *Engine) Logout(ctx context.Context) {
	e.mu.Lock()
	prev := e.state
	if err := e.store.Clear(ctx); err != nil {
		e.metricInc(MetricStoreFailure)
		e.logger.Warn("clearing persisted session on logout failed", "error", err)
	}
	e.setLocked(unauthenticatedState(prev.epoch + 1))
	e.mu.Unlock()
	e.notify()

	source := flows.LogoutNone
	switch {
	case prev.source == SourceFederated:
		source = flows.LogoutFederated
	case prev.source == SourceAPIToken, prev.token != "":
		source = flows.LogoutAPIToken
	}

	res := e.flow.Logout(ctx, source, prev.token)
	if source != flows.LogoutFederated && e.provider != nil && e.provider.Current() != nil {
		res.ProviderErr = e.flow.Logout(ctx, flows.LogoutFederated, "").ProviderErr
	}
	if res.BackendErr != nil {
		e.logger.Warn("backend logout failed; token discarded locally", "error", res.BackendErr)
	}
	if res.ProviderErr != nil {
		e.logger.Warn("federated sign-out failed", "error", res.ProviderErr)
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, AuditLogout, true, prev.user, nil, map[string]string{
		"source": prev.source.String(),
	})
}
