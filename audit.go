package goSession

import (
	"context"
	"io"
	"log/slog"

	"github.com/MrEthical07/goSession/internal/audit"
)

type (
	// AuditEvent is one security-relevant session transition.
	AuditEvent = audit.Event
	// AuditSink receives audit events from the engine's dispatcher.
	AuditSink = audit.Sink
	NoOpSink  = audit.NoOpSink
)

// Audit event types.
const (
	AuditLoginUser                      = "login_user"
	AuditLoginAdmin                     = "login_admin"
	AuditLoginFailure                   = "login_failure"
	AuditSessionRestored                = "session_restored"
	AuditTokenExpired                   = "token_expired"
	AuditFederatedAdmitted              = "federated_session_admitted"
	AuditFederatedSignedOut             = "federated_signed_out"
	AuditFederatedBlocked               = "federated_session_blocked"
	AuditFederatedNoEmail               = "federated_identity_without_email"
	AuditDirectoryRecordMissing         = "directory_record_missing"
	AuditDirectoryUnavailableFailOpen   = "directory_unavailable_fail_open"
	AuditDirectoryUnavailableFailClosed = "directory_unavailable_fail_closed"
	AuditLogout                         = "logout"
)

func NewChannelSink(buffer int) *audit.ChannelSink {
	return audit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *audit.JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// NewLogSink writes audit events through logger; failures log at warn.
func NewLogSink(logger *slog.Logger) *audit.LogSink {
	return audit.NewLogSink(logger)
}

func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, user *User, err error, metadata map[string]string) {
	if e == nil || e.audit == nil {
		return
	}
	event := AuditEvent{
		EventType: eventType,
		Success:   success,
		Metadata:  metadata,
	}
	if user != nil {
		event.UserID = user.ID
		event.Email = user.Email
		event.Source = string(user.AuthSource)
	}
	if kind := Kind(err); kind != nil {
		event.Error = kind.Error()
	} else if err != nil {
		event.Error = err.Error()
	}
	e.audit.Emit(ctx, event)
}
