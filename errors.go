package goSession

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/goSession/backend"
	"github.com/MrEthical07/goSession/federated"
	"github.com/MrEthical07/goSession/internal/flows"
)

var (
	// ErrInvalidCredentials is returned for a wrong identifier or password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountNotFound is returned when the identity source has no such account.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountDisabled is returned when the directory or the provider disabled the account.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrTokenExpired means the backend no longer accepts the bearer token.
	ErrTokenExpired = errors.New("token expired")
	// ErrNetwork covers transport failures and timeouts.
	ErrNetwork = errors.New("network error")
	// ErrServerUnavailable covers 5xx responses and unparseable success bodies.
	ErrServerUnavailable = errors.New("server unavailable")
	// ErrDirectoryUnavailable is returned when the directory could not be queried and the
	// revocation policy is fail-closed.
	ErrDirectoryUnavailable = errors.New("directory unavailable")

	ErrInvalidEmail         = errors.New("invalid email")
	ErrRateLimited          = errors.New("too many attempts, try again later")
	ErrSessionPersistFailed = errors.New("session could not be persisted")

	ErrEngineNotReady        = errors.New("engine not ready")
	ErrAlreadyStarted        = errors.New("engine already started")
	ErrEngineClosed          = errors.New("engine closed")
	ErrProviderNotConfigured = errors.New("identity source not configured")
)

// AuthError carries a taxonomy sentinel (Kind) and the underlying cause. errors.Is matches
// both.
type AuthError struct {
	Kind   error
	Op     string
	Status int
	Code   string
	Err    error
}

func (e *AuthError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	switch {
	case e.Code != "":
		return fmt.Sprintf("%s (%s)", msg, e.Code)
	case e.Status != 0:
		return fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	return msg
}

func (e *AuthError) Unwrap() []error {
	if e == nil {
		return nil
	}
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

var failureErrors = map[flows.FailureKind]error{
	flows.FailureInvalidCredentials:   ErrInvalidCredentials,
	flows.FailureAccountNotFound:      ErrAccountNotFound,
	flows.FailureAccountDisabled:      ErrAccountDisabled,
	flows.FailureInvalidEmail:         ErrInvalidEmail,
	flows.FailureRateLimited:          ErrRateLimited,
	flows.FailureTokenExpired:         ErrTokenExpired,
	flows.FailureNetwork:              ErrNetwork,
	flows.FailureServerUnavailable:    ErrServerUnavailable,
	flows.FailureDirectoryUnavailable: ErrDirectoryUnavailable,
	flows.FailurePersist:              ErrSessionPersistFailed,
	flows.FailureNotConfigured:        ErrProviderNotConfigured,
}

var taxonomy = []error{
	ErrInvalidCredentials,
	ErrAccountNotFound,
	ErrAccountDisabled,
	ErrTokenExpired,
	ErrNetwork,
	ErrServerUnavailable,
	ErrDirectoryUnavailable,
	ErrInvalidEmail,
	ErrRateLimited,
	ErrSessionPersistFailed,
	ErrProviderNotConfigured,
}

func failureError(op string, kind flows.FailureKind, cause error) error {
	if kind == flows.FailureNone {
		return nil
	}
	sentinel, ok := failureErrors[kind]
	if !ok {
		sentinel = ErrServerUnavailable
	}
	return &AuthError{
		Kind:   sentinel,
		Op:     op,
		Status: statusOf(cause),
		Code:   federated.CodeOf(cause),
		Err:    cause,
	}
}

// Kind returns the taxonomy sentinel err matches, or nil.
func Kind(err error) error {
	if err == nil {
		return nil
	}
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	for _, sentinel := range taxonomy {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}
	return nil
}

// ResultFromError builds the display form of a login outcome.
func ResultFromError(err error) LoginResult {
	if err == nil {
		return LoginResult{Success: true}
	}
	if kind := Kind(err); kind != nil {
		return LoginResult{Error: kind.Error()}
	}
	return LoginResult{Error: err.Error()}
}

func statusOf(err error) int {
	var pe *federated.ProviderError
	if errors.As(err, &pe) {
		return pe.Status
	}
	return backend.StatusOf(err)
}
