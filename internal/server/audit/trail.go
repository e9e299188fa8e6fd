// Package audit records authentication and security events in the
// append-only audit log. When the log cannot be written the failure is
// escalated on the operational logger and returned, so callers can finish
// their own work regardless.
package audit

import (
	"context"
	"fmt"
	"maps"

	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/dbx"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/logging"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/models"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/repositories/repomanager"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/timex"
	"github.com/google/uuid"
)

// events that record something going right
var successEvents = map[string]bool{
	models.EventLoginSuccess:     true,
	models.EventLogout:           true,
	models.EventRememberLogin:    true,
	models.EventPasswordRehashed: true,
	models.EventUserCreated:      true,
}

type Trail struct {
	db          dbx.DBTX
	repomanager repomanager.RepositoryManager
	log         logging.Logger
	now         timex.Clock
}

type Option func(*Trail)

func WithClock(now timex.Clock) Option {
	return func(t *Trail) { t.now = now }
}

func NewTrail(db dbx.DBTX, m repomanager.RepositoryManager, log logging.Logger, opts ...Option) *Trail {
	t := &Trail{
		db:          db,
		repomanager: m,
		log:         log,
		now:         timex.UTCNow,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// LogLogin records a login attempt. reason is kept server-side only.
func (t *Trail) LogLogin(ctx context.Context, username string, success bool, reason string, meta map[string]any) error {
	event, outcome := models.EventLoginFailure, models.OutcomeFailure
	if success {
		event, outcome = models.EventLoginSuccess, models.OutcomeSuccess
	}
	if reason != "" {
		meta = withKey(meta, "reason", reason)
	}
	return t.append(ctx, event, username, outcome, meta)
}

func (t *Trail) LogLogout(ctx context.Context, username string, meta map[string]any) error {
	return t.append(ctx, models.EventLogout, username, models.OutcomeSuccess, meta)
}

// LogSecurityEvent records any other event type. The outcome is derived from
// the event type.
func (t *Trail) LogSecurityEvent(ctx context.Context, eventType, actor string, meta map[string]any) error {
	outcome := models.OutcomeFailure
	if successEvents[eventType] {
		outcome = models.OutcomeSuccess
	}
	return t.append(ctx, eventType, actor, outcome, meta)
}

// List returns entries for operational inspection.
func (t *Trail) List(ctx context.Context, f models.AuditFilter) ([]*models.AuditEntry, error) {
	entries, err := t.repomanager.Audit(t.db).List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}

func (t *Trail) append(ctx context.Context, event, actor, outcome string, meta map[string]any) error {
	client := ClientFromContext(ctx)
	e := &models.AuditEntry{
		ID:        uuid.NewString(),
		EventType: event,
		Actor:     actor,
		Outcome:   outcome,
		IPAddress: client.IP,
		UserAgent: client.UserAgent,
		Metadata:  meta,
		CreatedAt: t.now(),
	}

	if err := t.repomanager.Audit(t.db).Append(ctx, e); err != nil {
		t.log.Error(ctx, "audit sink unavailable, event not recorded",
			"event_type", event, "actor", actor, "outcome", outcome, "error", err)
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func withKey(meta map[string]any, k string, v any) map[string]any {
	out := make(map[string]any, len(meta)+1)
	maps.Copy(out, meta)
	out[k] = v
	return out
}
