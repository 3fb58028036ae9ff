// Package audit is the best-effort audit trail. Entries are appended through
// a sink; a failed append is swallowed — the audit log never blocks or rolls
// back the operation it records.
package audit

import (
	"context"
	"time"

	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/kernel"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/logx"
)

// Event types recorded by the core flows.
const (
	EventSignUp          = "account.sign_up"
	EventSignIn          = "account.sign_in"
	EventEmailVerified   = "account.email_verified"
	EventInviteCreated   = "invitation.created"
	EventInviteAccepted  = "invitation.accepted"
	EventInviteCancelled = "invitation.cancelled"
	EventSeatAssigned    = "licensing.seat_assigned"
	EventSeatRevoked     = "licensing.seat_revoked"
	EventRoleChanged     = "directory.role_changed"
	EventUserDeactivated = "directory.user_deactivated"
)

// Entry is one audit record.
type Entry struct {
	Type        string          `json:"type"`
	TenantID    kernel.TenantID `json:"tenant_id"`
	ActorUserID kernel.UserID   `json:"actor_user_id,omitempty"`
	Details     map[string]any  `json:"details,omitempty"`
	At          time.Time       `json:"at"`
}

// Sink receives audit entries.
type Sink interface {
	Append(ctx context.Context, entry Entry) error
}

// Trail is the application-facing recorder.
type Trail struct {
	sink Sink
}

func NewTrail(sink Sink) *Trail {
	return &Trail{sink: sink}
}

// Record appends an entry, swallowing failures.
func (t *Trail) Record(ctx context.Context, eventType string, tenantID kernel.TenantID, actor kernel.UserID, details map[string]any) {
	entry := Entry{
		Type:        eventType,
		TenantID:    tenantID,
		ActorUserID: actor,
		Details:     details,
		At:          time.Now(),
	}
	if err := t.sink.Append(ctx, entry); err != nil {
		logx.WithError(err).WithField("event", eventType).Warn("audit append failed")
	}
}

// LogSink writes audit entries to the structured log.
type LogSink struct{}

func NewLogSink() *LogSink {
	return &LogSink{}
}

func (LogSink) Append(_ context.Context, entry Entry) error {
	logx.WithFields(logx.Fields{
		"event":     entry.Type,
		"tenant_id": entry.TenantID,
		"actor":     entry.ActorUserID,
		"details":   entry.Details,
	}).Info("audit")
	return nil
}
