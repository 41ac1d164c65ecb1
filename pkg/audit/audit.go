// Package audit writes the immutable, append-only record of every state
// transition and decision attempt against a request.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukex/approvion/pkg/models"
	"github.com/dukex/approvion/pkg/persistence"
	"github.com/google/uuid"
)

// ErrWriteFailed is surfaced when an entry could not be durably appended.
// The engine treats it as fatal for the attempted transition.
var ErrWriteFailed = persistence.ErrAuditAppendFailed

// Writer appends audit entries through the persistence collaborator. Append
// is durable-before-return: the engine must not advance state until the
// append is acknowledged.
type Writer struct {
	repo   persistence.AuditRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewWriter(repo persistence.AuditRepository, logger *slog.Logger) *Writer {
	return &Writer{repo: repo, logger: logger, now: time.Now}
}

// Append records one entry, assigning its identifier and timestamp.
func (w *Writer) Append(ctx context.Context, entry *models.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = w.now().UTC()
	}

	if err := w.repo.Append(ctx, entry); err != nil {
		w.logger.ErrorContext(ctx, "Audit append failed",
			"request_id", entry.RequestID,
			"action", entry.Action,
			"error", err,
		)

		return err
	}

	return nil
}

// Trail returns a request's entries in append order.
func (w *Writer) Trail(ctx context.Context, requestID string) ([]*models.AuditEntry, error) {
	return w.repo.ListByRequest(ctx, requestID)
}

// Entry builds an audit entry for a user-performed action.
func Entry(request *models.Request, action models.AuditAction, actor models.Identity, description string, data map[string]any) *models.AuditEntry {
	return &models.AuditEntry{
		RequestID:       request.ID,
		Action:          action,
		Actor:           actor,
		ActorType:       models.ActorTypeUser,
		Description:     description,
		Data:            data,
		ResultingStatus: request.Status,
		ResultingStep:   request.CurrentStep,
	}
}

// SystemEntry builds an audit entry for an engine-performed action.
func SystemEntry(request *models.Request, action models.AuditAction, description string, data map[string]any) *models.AuditEntry {
	entry := Entry(request, action, models.SystemActor, description, data)
	entry.ActorType = models.ActorTypeSystem

	return entry
}
