// Package persistence provides the storage abstraction the engine consumes:
// durable request records and an append-only audit trail.
package persistence

import (
	"context"

	"github.com/dukex/approvion/pkg/models"
)

// RequestRepository stores and retrieves workflow requests.
type RequestRepository interface {
	Save(ctx context.Context, request *models.Request) error
	GetByID(ctx context.Context, id string) (*models.Request, error)
	ListByRequester(ctx context.Context, requesterID string, status *models.RequestStatus) ([]*models.Request, error)

	// ListPendingByApprover returns requests holding a pending slot for the
	// given approver.
	ListPendingByApprover(ctx context.Context, approverID string) ([]*models.Request, error)

	// ListInReview returns requests currently waiting on approval slots,
	// used by the escalation sweep.
	ListInReview(ctx context.Context) ([]*models.Request, error)
}

// AuditRepository appends and reads immutable audit entries. Implementations
// must acknowledge durability before returning from Append and must never
// mutate or delete entries.
type AuditRepository interface {
	Append(ctx context.Context, entry *models.AuditEntry) error
	ListByRequest(ctx context.Context, requestID string) ([]*models.AuditEntry, error)
}

type Persistence interface {
	RequestRepository() RequestRepository
	AuditRepository() AuditRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
