package federated

import (
	"errors"
	"fmt"
	"strings"
)

// Provider error codes. Values follow the identity-toolkit wire strings so REST responses
// map without translation.
const (
	CodeInvalidPassword       = "INVALID_PASSWORD"
	CodeInvalidCredentials    = "INVALID_LOGIN_CREDENTIALS"
	CodeMissingPassword       = "MISSING_PASSWORD"
	CodeWeakPassword          = "WEAK_PASSWORD"
	CodeEmailNotFound         = "EMAIL_NOT_FOUND"
	CodeInvalidEmail          = "INVALID_EMAIL"
	CodeUserDisabled          = "USER_DISABLED"
	CodeTooManyAttempts       = "TOO_MANY_ATTEMPTS_TRY_LATER"
	CodeNetworkRequestFailed  = "NETWORK_REQUEST_FAILED"
	CodeInternalError         = "INTERNAL_ERROR"
	CodeServiceUnavailable    = "SERVICE_UNAVAILABLE"
	CodeOperationNotSupported = "OPERATION_NOT_ALLOWED"
)

// ErrNoIdentity is returned when an operation needs a signed-in identity.
var ErrNoIdentity = errors.New("no signed-in identity")

// ProviderError captures a normalized provider failure.
type ProviderError struct {
	Provider  string
	Operation string
	Status    int
	Code      string
	Message   string
	Err       error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "federated provider error"
	}

	scope := "federated provider"
	if e.Provider != "" && e.Operation != "" {
		scope = fmt.Sprintf("%s %s", e.Provider, e.Operation)
	} else if e.Provider != "" {
		scope = e.Provider
	}

	switch {
	case e.Code != "" && e.Message != "" && e.Message != e.Code:
		return fmt.Sprintf("%s failed: %s (%s)", scope, e.Code, e.Message)
	case e.Code != "":
		return fmt.Sprintf("%s failed: %s", scope, e.Code)
	case e.Err != nil:
		return fmt.Sprintf("%s failed: %v", scope, e.Err)
	}
	return scope + " failed"
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// CodeOf extracts the provider code from err, or "" when err is not a [ProviderError].
func CodeOf(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// normalizeCode reduces wire messages such as "TOO_MANY_ATTEMPTS_TRY_LATER : Access ..." to
// the bare code.
func normalizeCode(message string) string {
	message = strings.TrimSpace(message)
	if i := strings.IndexAny(message, " :"); i >= 0 {
		message = message[:i]
	}
	return strings.ToUpper(message)
}
