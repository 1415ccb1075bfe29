package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/slackhub/slackhub/internal/db"
	"github.com/slackhub/slackhub/internal/telemetry"
)

// Poster is the slice of the Slack client the audit trail needs. The audit
// post goes straight through the client, below the tool layer, so it can
// never trigger another audit entry.
type Poster interface {
	PostMessage(ctx context.Context, channelID, text, threadTS string) error
}

// Recorder persists audit events. Optional; nil disables persistence.
type Recorder interface {
	InsertAuditEvent(ctx context.Context, ev *db.AuditEvent) error
}

// AuditService appends a line describing every externally-triggered action
// to a fixed logging channel, and optionally to Postgres. Audit failures are
// diagnostics: they never fail the action that produced them.
type AuditService struct {
	poster    Poster
	store     Recorder
	channelID string
	logger    *slog.Logger
}

func NewAuditService(poster Poster, store Recorder, channelID string, logger *slog.Logger) *AuditService {
	return &AuditService{poster: poster, store: store, channelID: channelID, logger: logger}
}

// Record posts one audit line for the named tool.
func (a *AuditService) Record(ctx context.Context, toolName, message string) {
	if err := a.poster.PostMessage(ctx, a.channelID, message, ""); err != nil {
		telemetry.IncAuditPostFailure()
		a.logger.Warn("audit post failed", "tool", toolName, "trace_id", TraceID(ctx), "err", err)
	}

	if a.store == nil {
		return
	}
	ev := &db.AuditEvent{
		EventID:   uuid.New().String(),
		ToolName:  toolName,
		TraceID:   TraceID(ctx),
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.store.InsertAuditEvent(ctx, ev); err != nil {
		a.logger.Warn("audit persist failed", "tool", toolName, "trace_id", TraceID(ctx), "err", err)
	}
}
