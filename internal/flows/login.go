package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/goSession/backend"
	"github.com/MrEthical07/goSession/federated"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/session"
)

// Throttle sources.
const (
	ThrottleUser  = "user"
	ThrottleAdmin = "admin"
)

// LoginResult is the flow-local login outcome.
type LoginResult struct {
	Failure FailureKind
	Err     error
	// Message is the backend's human-readable message, when it sent one.
	Message  string
	Token    string
	User     *session.UserRecord
	Identity *federated.Identity
	// Revocation is set by admin logins.
	Revocation RevocationResult
}

// Throttle is the optional credential-attempt limiter. A nil Throttle disables throttling.
type Throttle interface {
	Check(ctx context.Context, source, identifier string) error
	RecordFailure(ctx context.Context, source, identifier string) error
	Reset(ctx context.Context, source, identifier string) error
}

// LoginUserDeps captures backend login dependencies.
type LoginUserDeps struct {
	Login    func(ctx context.Context, username, password string) (*backend.LoginResponse, error)
	Throttle Throttle
	// Commit persists the pair and publishes Active(apiToken) in one step.
	Commit func(ctx context.Context, token string, user session.UserRecord) error
	// OnThrottleError observes throttle backend failures, which never block a login.
	OnThrottleError func(error)
}

// RunLoginUser authenticates against the REST backend.
func RunLoginUser(ctx context.Context, identifier, password string, deps LoginUserDeps) LoginResult {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return LoginResult{Failure: FailureInvalidCredentials}
	}
	if deps.Login == nil {
		return LoginResult{Failure: FailureNotConfigured}
	}

	if res, limited := checkThrottle(ctx, deps.Throttle, ThrottleUser, identifier, deps.OnThrottleError); limited {
		return res
	}

	resp, err := deps.Login(ctx, identifier, password)
	if err != nil {
		kind := ClassifyBackendError(err)
		if countsAsAttempt(kind) {
			recordFailure(ctx, deps.Throttle, ThrottleUser, identifier, deps.OnThrottleError)
		}
		return LoginResult{Failure: kind, Err: err, Message: backendMessage(err)}
	}

	resetThrottle(ctx, deps.Throttle, ThrottleUser, identifier, deps.OnThrottleError)

	if err := deps.Commit(ctx, resp.AccessToken, resp.User); err != nil {
		return LoginResult{Failure: FailurePersist, Err: err}
	}
	user := resp.User
	return LoginResult{Token: resp.AccessToken, User: &user, Message: resp.Message}
}

// LoginAdminDeps captures federated login dependencies.
type LoginAdminDeps struct {
	SignIn     func(ctx context.Context, email, password string) (*federated.Identity, error)
	SignOut    func(ctx context.Context) error
	Revocation RevocationDeps
	AdminRole  string
	Throttle   Throttle
	// Commit publishes Active(federated) and drops any persisted apiToken pair.
	Commit          func(ctx context.Context, identity *federated.Identity, user session.UserRecord) error
	OnThrottleError func(error)
	// OnSignOutError observes a failed forced sign-out.
	OnSignOutError func(error)
}

// RunLoginAdmin signs in with the federated provider and admits the identity only after the
// revocation gate passes.
func RunLoginAdmin(ctx context.Context, email, password string, deps LoginAdminDeps) LoginResult {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return LoginResult{Failure: FailureInvalidCredentials}
	}
	if deps.SignIn == nil {
		return LoginResult{Failure: FailureNotConfigured}
	}

	if res, limited := checkThrottle(ctx, deps.Throttle, ThrottleAdmin, email, deps.OnThrottleError); limited {
		return res
	}

	identity, err := deps.SignIn(ctx, email, password)
	if err != nil {
		kind := ClassifyProviderError(err)
		if countsAsAttempt(kind) {
			recordFailure(ctx, deps.Throttle, ThrottleAdmin, email, deps.OnThrottleError)
		}
		return LoginResult{Failure: kind, Err: err}
	}
	if identity == nil {
		return LoginResult{Failure: FailureServerUnavailable, Err: federated.ErrNoIdentity}
	}
	resetThrottle(ctx, deps.Throttle, ThrottleAdmin, email, deps.OnThrottleError)

	subject := identity.Email
	if subject == "" {
		subject = email
	}
	rev := RunRevocationCheck(ctx, subject, deps.Revocation)
	if !rev.Admitted() {
		if deps.SignOut != nil {
			if err := deps.SignOut(ctx); err != nil && deps.OnSignOutError != nil {
				deps.OnSignOutError(err)
			}
		}
		return LoginResult{Failure: rev.Failure(), Err: rev.Err, Identity: identity, Revocation: rev}
	}

	user := ProvisionalUser(identity, deps.AdminRole)
	if err := deps.Commit(ctx, identity, *user); err != nil {
		return LoginResult{Failure: FailurePersist, Err: err, Identity: identity, Revocation: rev}
	}
	return LoginResult{User: user, Identity: identity, Revocation: rev}
}

func checkThrottle(ctx context.Context, t Throttle, source, id string, onErr func(error)) (LoginResult, bool) {
	if t == nil {
		return LoginResult{}, false
	}
	err := t.Check(ctx, source, id)
	switch {
	case err == nil:
		return LoginResult{}, false
	case errors.Is(err, rate.ErrRateLimited):
		return LoginResult{Failure: FailureRateLimited, Err: err}, true
	default:
		if onErr != nil {
			onErr(err)
		}
		return LoginResult{}, false
	}
}

func recordFailure(ctx context.Context, t Throttle, source, id string, onErr func(error)) {
	if t == nil {
		return
	}
	if err := t.RecordFailure(ctx, source, id); err != nil && !errors.Is(err, rate.ErrRateLimited) && onErr != nil {
		onErr(err)
	}
}

func resetThrottle(ctx context.Context, t Throttle, source, id string, onErr func(error)) {
	if t == nil {
		return
	}
	if err := t.Reset(ctx, source, id); err != nil && onErr != nil {
		onErr(err)
	}
}

func backendMessage(err error) string {
	var se *backend.StatusError
	if errors.As(err, &se) {
		return se.Message
	}
	if errors.Is(err, backend.ErrLoginRejected) {
		msg := strings.TrimPrefix(err.Error(), backend.ErrLoginRejected.Error())
		return strings.TrimSpace(strings.TrimPrefix(msg, ":"))
	}
	return ""
}
