package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/approvion/pkg/models"
	"github.com/dukex/approvion/pkg/persistence"
)

// RequestRepository handles request-related database operations.
type RequestRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRequestRepository creates a new request repository.
func NewRequestRepository(db *sql.DB, logger *slog.Logger) *RequestRepository {
	return &RequestRepository{db: db, logger: logger}
}

const requestColumns = `
	id
  , workflow_type
  , requester_id
  , requester_name
  , requester_email
  , title
  , description
  , priority
  , payload
  , status
  , current_step
  , slots
  , created_at
  , updated_at
  , submitted_at
  , completed_at
`

// Save upserts a request row.
func (r *RequestRepository) Save(ctx context.Context, request *models.Request) error {
	now := time.Now().UTC()
	request.UpdatedAt = now

	if request.CreatedAt.IsZero() {
		request.CreatedAt = now
	}

	payloadJSON, err := json.Marshal(request.Payload)
	if err != nil {
		return persistence.NewRequestError("Save", request.ID, fmt.Errorf("failed to marshal payload: %w", err))
	}

	slotsJSON, err := json.Marshal(request.Slots)
	if err != nil {
		return persistence.NewRequestError("Save", request.ID, fmt.Errorf("failed to marshal slots: %w", err))
	}

	query := `
		INSERT INTO requests (
			id, workflow_type, requester_id, requester_name, requester_email,
			title, description, priority, payload, status, current_step, slots,
			created_at, updated_at, submitted_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			payload = EXCLUDED.payload,
			status = EXCLUDED.status,
			current_step = EXCLUDED.current_step,
			slots = EXCLUDED.slots,
			updated_at = EXCLUDED.updated_at,
			submitted_at = EXCLUDED.submitted_at,
			completed_at = EXCLUDED.completed_at
	`

	_, err = r.db.ExecContext(ctx, query,
		request.ID,
		request.WorkflowType,
		request.Requester.ID,
		request.Requester.Name,
		nullString(request.Requester.Email),
		request.Title,
		nullString(request.Description),
		nullString(request.Priority),
		payloadJSON,
		string(request.Status),
		nullString(request.CurrentStep),
		slotsJSON,
		request.CreatedAt,
		request.UpdatedAt,
		request.SubmittedAt,
		request.CompletedAt,
	)
	if err != nil {
		return persistence.NewRequestError("Save", request.ID, err)
	}

	return nil
}

// GetByID returns a request by its ID.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*models.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = $1`

	request, err := r.scanRequest(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewRequestError("GetByID", id, persistence.ErrRequestNotFound)
		}

		return nil, persistence.NewRequestError("GetByID", id, err)
	}

	return request, nil
}

// ListByRequester returns a requester's requests, newest first.
func (r *RequestRepository) ListByRequester(ctx context.Context, requesterID string, status *models.RequestStatus) ([]*models.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE requester_id = $1`
	args := []any{requesterID}

	if status != nil {
		query += ` AND status = $2`
		args = append(args, string(*status))
	}

	query += ` ORDER BY created_at DESC`

	return r.queryRequests(ctx, query, args...)
}

// ListPendingByApprover returns requests holding a pending slot for the approver.
func (r *RequestRepository) ListPendingByApprover(ctx context.Context, approverID string) ([]*models.Request, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM requests
		WHERE status = $1
		  AND slots @> $2::jsonb
		ORDER BY created_at DESC
	`

	match, err := json.Marshal([]map[string]any{{
		"approver": map[string]any{"id": approverID},
		"decision": string(models.SlotDecisionPending),
	}})
	if err != nil {
		return nil, fmt.Errorf("failed to build slot match: %w", err)
	}

	return r.queryRequests(ctx, query, string(models.RequestStatusInReview), match)
}

// ListInReview returns requests currently waiting on approval slots.
func (r *RequestRepository) ListInReview(ctx context.Context) ([]*models.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE status = $1 ORDER BY created_at`

	return r.queryRequests(ctx, query, string(models.RequestStatusInReview))
}

func (r *RequestRepository) queryRequests(ctx context.Context, query string, args ...any) ([]*models.Request, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}

	defer func(ctx context.Context, r *RequestRepository) {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}(ctx, r)

	requests := make([]*models.Request, 0)

	for rows.Next() {
		request, err := r.scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}

		requests = append(requests, request)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating requests: %w", err)
	}

	return requests, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func (r *RequestRepository) scanRequest(row scannable) (*models.Request, error) {
	var (
		request                      models.Request
		email, description, priority sql.NullString
		currentStep                  sql.NullString
		payloadJSON, slotsJSON       []byte
		submittedAt, completedAt     sql.NullTime
	)

	err := row.Scan(
		&request.ID,
		&request.WorkflowType,
		&request.Requester.ID,
		&request.Requester.Name,
		&email,
		&request.Title,
		&description,
		&priority,
		&payloadJSON,
		&request.Status,
		&currentStep,
		&slotsJSON,
		&request.CreatedAt,
		&request.UpdatedAt,
		&submittedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	request.Requester.Email = email.String
	request.Description = description.String
	request.Priority = priority.String
	request.CurrentStep = currentStep.String

	if submittedAt.Valid {
		request.SubmittedAt = &submittedAt.Time
	}

	if completedAt.Valid {
		request.CompletedAt = &completedAt.Time
	}

	if err := json.Unmarshal(payloadJSON, &request.Payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	if err := json.Unmarshal(slotsJSON, &request.Slots); err != nil {
		return nil, fmt.Errorf("failed to unmarshal slots: %w", err)
	}

	return &request, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
