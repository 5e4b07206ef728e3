package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goSession/directory"
)

// RevocationOutcome is the gate decision for one federated identity.
type RevocationOutcome int

const (
	// RevocationAdmit: a record exists and is not disabled.
	RevocationAdmit RevocationOutcome = iota + 1
	// RevocationMissing: no directory record; admitted.
	RevocationMissing
	// RevocationSkipped: no directory configured; admitted.
	RevocationSkipped
	// RevocationBlocked: the record is disabled.
	RevocationBlocked
	// RevocationUnavailableOpen: the query failed and the fail-open policy admitted.
	RevocationUnavailableOpen
	// RevocationUnavailableClosed: the query failed and the fail-closed policy refused.
	RevocationUnavailableClosed
	// RevocationNoEmail: the identity carries no email, so the directory cannot be asked.
	RevocationNoEmail
)

// ErrIdentityWithoutEmail is carried by a RevocationNoEmail result.
var ErrIdentityWithoutEmail = errors.New("federated identity has no email")

func (o RevocationOutcome) String() string {
	switch o {
	case RevocationAdmit:
		return "admit"
	case RevocationMissing:
		return "missing"
	case RevocationSkipped:
		return "skipped"
	case RevocationBlocked:
		return "blocked"
	case RevocationUnavailableOpen:
		return "unavailable_fail_open"
	case RevocationUnavailableClosed:
		return "unavailable_fail_closed"
	case RevocationNoEmail:
		return "no_email"
	}
	return "unknown"
}

// RevocationResult is the outcome plus the directory error, if any.
type RevocationResult struct {
	Outcome RevocationOutcome
	Email   string
	Err     error
}

// Admitted reports whether the identity may hold a session.
func (r RevocationResult) Admitted() bool {
	switch r.Outcome {
	case RevocationBlocked, RevocationUnavailableClosed, RevocationNoEmail:
		return false
	}
	return true
}

// Failure maps a refusal to the taxonomy.
func (r RevocationResult) Failure() FailureKind {
	switch r.Outcome {
	case RevocationBlocked:
		return FailureAccountDisabled
	case RevocationUnavailableClosed:
		return FailureDirectoryUnavailable
	case RevocationNoEmail:
		return FailureInvalidEmail
	}
	return FailureNone
}

// RevocationDeps captures the directory query and failure policy.
type RevocationDeps struct {
	// Lookup is nil when no directory is configured.
	Lookup     func(ctx context.Context, email string) (directory.Record, error)
	Timeout    time.Duration
	FailClosed bool
}

// RunRevocationCheck asks the directory whether email is disabled. The watcher and the admin
// login both use it so the two admission paths cannot diverge. An identity without an email is
// refused regardless of policy.
func RunRevocationCheck(ctx context.Context, email string, deps RevocationDeps) RevocationResult {
	email = directory.NormalizeEmail(email)
	if email == "" {
		return RevocationResult{Outcome: RevocationNoEmail, Err: ErrIdentityWithoutEmail}
	}
	if deps.Lookup == nil {
		return RevocationResult{Outcome: RevocationSkipped, Email: email}
	}

	if deps.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deps.Timeout)
		defer cancel()
	}

	rec, err := deps.Lookup(ctx, email)
	switch {
	case err == nil && rec.Disabled:
		return RevocationResult{Outcome: RevocationBlocked, Email: email}
	case err == nil:
		return RevocationResult{Outcome: RevocationAdmit, Email: email}
	case errors.Is(err, directory.ErrNotFound):
		return RevocationResult{Outcome: RevocationMissing, Email: email}
	case deps.FailClosed:
		return RevocationResult{Outcome: RevocationUnavailableClosed, Email: email, Err: err}
	default:
		return RevocationResult{Outcome: RevocationUnavailableOpen, Email: email, Err: err}
	}
}
