package flows

import "context"

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps    Deps
	watcher *Watcher
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	var w *Watcher
	if deps.Watch.Subscribe != nil {
		w = NewWatcher(deps.Watch)
	}
	return Service{deps: deps, watcher: w}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.LoginUser.Commit != nil || s.deps.LoginAdmin.Commit != nil
}

// Watcher returns nil when no federated provider is wired.
func (s Service) Watcher() *Watcher {
	return s.watcher
}

func (s Service) Resolve(in ResolveInput) ResolveDecision {
	in.FederatedConfigured = s.watcher != nil
	return RunResolve(in)
}

func (s Service) Validate(ctx context.Context, token string) ValidateResult {
	return RunValidate(ctx, token, s.deps.Validate)
}

func (s Service) CheckRevocation(ctx context.Context, email string) RevocationResult {
	return RunRevocationCheck(ctx, email, s.deps.Revocation)
}

func (s Service) LoginUser(ctx context.Context, identifier, password string) LoginResult {
	return RunLoginUser(ctx, identifier, password, s.deps.LoginUser)
}

func (s Service) LoginAdmin(ctx context.Context, email, password string) LoginResult {
	return RunLoginAdmin(ctx, email, password, s.deps.LoginAdmin)
}

func (s Service) Logout(ctx context.Context, source LogoutSource, token string) LogoutResult {
	return RunLogout(ctx, source, token, s.deps.Logout)
}
