package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goSession/backend"
	"github.com/MrEthical07/goSession/session"
)

// ValidateResult is either the freshly fetched user or a classified failure.
//
// Failure is one of FailureNone, FailureTokenExpired, FailureNetwork or
// FailureServerUnavailable. Callers clear the session only for FailureTokenExpired.
type ValidateResult struct {
	Failure FailureKind
	Err     error
	User    session.UserRecord
	// Local is true when the token was rejected from its own exp claim without a network call.
	Local   bool
	Latency time.Duration
}

// KeepSession reports whether the caller must leave the current session untouched.
func (r ValidateResult) KeepSession() bool {
	return r.Failure == FailureNetwork || r.Failure == FailureServerUnavailable
}

// ValidateDeps captures token validation dependencies.
type ValidateDeps struct {
	FetchUser func(ctx context.Context, token string) (session.UserRecord, error)
	// TokenExpired peeks at a JWT-shaped token; nil disables the local check.
	TokenExpired func(token string, now time.Time) bool
	Now          func() time.Time
	Timeout      time.Duration
}

// RunValidate performs one validation attempt. There are no retries.
func RunValidate(ctx context.Context, token string, deps ValidateDeps) ValidateResult {
	now := time.Now
	if deps.Now != nil {
		now = deps.Now
	}
	start := now()

	if token == "" {
		return ValidateResult{Failure: FailureTokenExpired, Local: true}
	}
	if deps.TokenExpired != nil && deps.TokenExpired(token, start) {
		return ValidateResult{Failure: FailureTokenExpired, Local: true}
	}

	if deps.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deps.Timeout)
		defer cancel()
	}

	user, err := deps.FetchUser(ctx, token)
	latency := now().Sub(start)
	if err == nil {
		return ValidateResult{User: user, Latency: latency}
	}
	return ValidateResult{Failure: classifyValidateError(err), Err: err, Latency: latency}
}

// classifyValidateError: any non-2xx means the token is no longer accepted. A 2xx the client
// cannot decode keeps the session.
func classifyValidateError(err error) FailureKind {
	if isTransport(err) {
		return FailureNetwork
	}
	if backend.StatusOf(err) != 0 {
		return FailureTokenExpired
	}
	if errors.Is(err, backend.ErrDecode) {
		return FailureServerUnavailable
	}
	return FailureNetwork
}
