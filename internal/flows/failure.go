package flows

import (
	"context"
	"errors"
	"net/http"

	"github.com/MrEthical07/goSession/backend"
	"github.com/MrEthical07/goSession/federated"
)

// FailureKind classifies flow failures. The Engine maps each kind to one sentinel error.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureInvalidCredentials
	FailureAccountNotFound
	FailureAccountDisabled
	FailureInvalidEmail
	FailureRateLimited
	FailureTokenExpired
	FailureNetwork
	FailureServerUnavailable
	FailureDirectoryUnavailable
	FailurePersist
	FailureNotConfigured
)

var failureNames = map[FailureKind]string{
	FailureNone:                 "none",
	FailureInvalidCredentials:   "invalid_credentials",
	FailureAccountNotFound:      "account_not_found",
	FailureAccountDisabled:      "account_disabled",
	FailureInvalidEmail:         "invalid_email",
	FailureRateLimited:          "rate_limited",
	FailureTokenExpired:         "token_expired",
	FailureNetwork:              "network",
	FailureServerUnavailable:    "server_unavailable",
	FailureDirectoryUnavailable: "directory_unavailable",
	FailurePersist:              "persist_failed",
	FailureNotConfigured:        "not_configured",
}

func (k FailureKind) String() string {
	if s, ok := failureNames[k]; ok {
		return s
	}
	return "unknown"
}

// providerFailures is the single translation table from federated provider codes to the
// session taxonomy.
var providerFailures = map[string]FailureKind{
	federated.CodeInvalidPassword:      FailureInvalidCredentials,
	federated.CodeInvalidCredentials:   FailureInvalidCredentials,
	federated.CodeMissingPassword:      FailureInvalidCredentials,
	federated.CodeWeakPassword:         FailureInvalidCredentials,
	federated.CodeEmailNotFound:        FailureAccountNotFound,
	federated.CodeInvalidEmail:         FailureInvalidEmail,
	federated.CodeUserDisabled:         FailureAccountDisabled,
	federated.CodeTooManyAttempts:      FailureRateLimited,
	federated.CodeNetworkRequestFailed: FailureNetwork,
	federated.CodeInternalError:        FailureServerUnavailable,
	federated.CodeServiceUnavailable:   FailureServerUnavailable,
}

// ClassifyProviderError maps a provider failure to the taxonomy. Unknown codes are treated as
// invalid credentials so nothing about the account leaks.
func ClassifyProviderError(err error) FailureKind {
	if err == nil {
		return FailureNone
	}
	if kind, ok := providerFailures[federated.CodeOf(err)]; ok {
		return kind
	}
	if isTransport(err) {
		return FailureNetwork
	}
	return FailureInvalidCredentials
}

// ClassifyBackendError maps a backend client failure to the taxonomy.
func ClassifyBackendError(err error) FailureKind {
	if err == nil {
		return FailureNone
	}
	if errors.Is(err, backend.ErrLoginRejected) {
		return FailureInvalidCredentials
	}
	if isTransport(err) {
		return FailureNetwork
	}
	if errors.Is(err, backend.ErrDecode) {
		return FailureServerUnavailable
	}

	status := backend.StatusOf(err)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return FailureInvalidCredentials
	case status == http.StatusNotFound:
		return FailureAccountNotFound
	case status == http.StatusTooManyRequests:
		return FailureRateLimited
	case status >= 500:
		return FailureServerUnavailable
	case status != 0:
		return FailureInvalidCredentials
	}
	return FailureServerUnavailable
}

func isTransport(err error) bool {
	return errors.Is(err, backend.ErrTransport) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

// countsAsAttempt reports whether a failure should consume throttle budget.
func countsAsAttempt(kind FailureKind) bool {
	return kind == FailureInvalidCredentials || kind == FailureAccountNotFound
}
