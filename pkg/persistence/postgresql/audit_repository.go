package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dukex/approvion/pkg/models"
	"github.com/dukex/approvion/pkg/persistence"
)

// AuditRepository appends and reads audit entries. Rows are never updated or
// deleted; the schema enforces that with DO INSTEAD NOTHING rules.
type AuditRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(db *sql.DB, logger *slog.Logger) *AuditRepository {
	return &AuditRepository{db: db, logger: logger}
}

// Append durably inserts one entry. The INSERT is only acknowledged after
// commit, which is the durability point the engine relies on.
func (r *AuditRepository) Append(ctx context.Context, entry *models.AuditEntry) error {
	dataJSON, err := json.Marshal(entry.Data)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal entry data: %w", persistence.ErrAuditAppendFailed, err)
	}

	query := `
		INSERT INTO audit_entries (
			id, request_id, action, actor_id, actor_name, actor_type,
			description, data, resulting_status, resulting_step, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = r.db.ExecContext(ctx, query,
		entry.ID,
		entry.RequestID,
		string(entry.Action),
		nullString(entry.Actor.ID),
		nullString(entry.Actor.Name),
		string(entry.ActorType),
		nullString(entry.Description),
		dataJSON,
		string(entry.ResultingStatus),
		nullString(entry.ResultingStep),
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", persistence.ErrAuditAppendFailed, err)
	}

	return nil
}

// ListByRequest returns a request's entries in append order.
func (r *AuditRepository) ListByRequest(ctx context.Context, requestID string) ([]*models.AuditEntry, error) {
	query := `
		SELECT
			id
		  , request_id
		  , action
		  , actor_id
		  , actor_name
		  , actor_type
		  , description
		  , data
		  , resulting_status
		  , resulting_step
		  , created_at
		FROM audit_entries
		WHERE request_id = $1
		ORDER BY seq
	`

	rows, err := r.db.QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}

	defer func(ctx context.Context, r *AuditRepository) {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}(ctx, r)

	entries := make([]*models.AuditEntry, 0)

	for rows.Next() {
		var (
			entry                      models.AuditEntry
			actorID, actorName         sql.NullString
			description, resultingStep sql.NullString
			dataJSON                   []byte
		)

		err := rows.Scan(
			&entry.ID,
			&entry.RequestID,
			&entry.Action,
			&actorID,
			&actorName,
			&entry.ActorType,
			&description,
			&dataJSON,
			&entry.ResultingStatus,
			&resultingStep,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}

		entry.Actor.ID = actorID.String
		entry.Actor.Name = actorName.String
		entry.Description = description.String
		entry.ResultingStep = resultingStep.String

		if err := json.Unmarshal(dataJSON, &entry.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal entry data: %w", err)
		}

		entries = append(entries, &entry)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}

	return entries, nil
}
