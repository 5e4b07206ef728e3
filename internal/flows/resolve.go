package flows

import (
	"strings"

	"github.com/MrEthical07/goSession/session"
)

// ResolveStep is the startup path chosen from the persisted record.
type ResolveStep int

const (
	// StepRestore publishes the cached pair immediately and validates in the background.
	StepRestore ResolveStep = iota + 1
	// StepValidateToken validates a bare token before publishing anything.
	StepValidateToken
	// StepObserveFederated subscribes to the federated provider.
	StepObserveFederated
	// StepUnauthenticated ends resolution with no session.
	StepUnauthenticated
)

func (s ResolveStep) String() string {
	switch s {
	case StepRestore:
		return "restore"
	case StepValidateToken:
		return "validate_token"
	case StepObserveFederated:
		return "observe_federated"
	case StepUnauthenticated:
		return "unauthenticated"
	}
	return "unknown"
}

// ResolveInput is what startup knows before any network call.
type ResolveInput struct {
	Record              *session.Record
	ReadErr             error
	FederatedConfigured bool
	// TokenRejected is set when a bare-token validation already failed, so resolution falls
	// through to the federated step.
	TokenRejected bool
}

// ResolveDecision is the first matching step and the data it needs.
type ResolveDecision struct {
	Step  ResolveStep
	Token string
	User  *session.UserRecord
}

// RunResolve picks the startup step in priority order; the first match wins. A store read
// error counts as nothing persisted.
func RunResolve(in ResolveInput) ResolveDecision {
	if in.ReadErr == nil && !in.TokenRejected && in.Record != nil && strings.TrimSpace(in.Record.Token) != "" {
		if in.Record.Complete() {
			user := *in.Record.User
			return ResolveDecision{Step: StepRestore, Token: in.Record.Token, User: &user}
		}
		return ResolveDecision{Step: StepValidateToken, Token: in.Record.Token}
	}
	if in.FederatedConfigured {
		return ResolveDecision{Step: StepObserveFederated}
	}
	return ResolveDecision{Step: StepUnauthenticated}
}
