package flows

import "context"

// LogoutSource selects the remote half of logout.
type LogoutSource int

const (
	LogoutNone LogoutSource = iota
	LogoutAPIToken
	LogoutFederated
)

// LogoutDeps captures the remote calls made after local state is already cleared.
type LogoutDeps struct {
	BackendLogout func(ctx context.Context, token string) error
	SignOut       func(ctx context.Context) error
}

// LogoutResult carries the errors of best-effort remote calls. They never fail a logout.
type LogoutResult struct {
	BackendErr  error
	ProviderErr error
}

// RunLogout invalidates the server-side half of a session. Local state is cleared by the
// Engine before this runs.
func RunLogout(ctx context.Context, source LogoutSource, token string, deps LogoutDeps) LogoutResult {
	var res LogoutResult
	switch source {
	case LogoutAPIToken:
		if deps.BackendLogout != nil && token != "" {
			res.BackendErr = deps.BackendLogout(ctx, token)
		}
	case LogoutFederated:
		if deps.SignOut != nil {
			res.ProviderErr = deps.SignOut(ctx)
		}
	}
	return res
}
