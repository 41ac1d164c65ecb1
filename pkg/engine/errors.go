// Package engine provides standardized error types for engine operations.
package engine

import (
	"errors"

	"github.com/dukex/approvion/pkg/approval"
	"github.com/dukex/approvion/pkg/models"
	"github.com/dukex/approvion/pkg/persistence"
	"github.com/dukex/approvion/pkg/registry"
	"github.com/dukex/approvion/pkg/routing"
)

var (
	// ErrInvalidTransition indicates the request's current status or step
	// does not admit the attempted operation. Caller/race condition:
	// surfaced, not retried automatically.
	ErrInvalidTransition = errors.New("invalid transition for request state")

	// ErrNotRequester indicates someone other than the requester tried to
	// cancel a request.
	ErrNotRequester = errors.New("only the requester may cancel a request")

	// ErrUnknownActionHandler indicates a definition references an action
	// handler that was never registered. Operator/config bug.
	ErrUnknownActionHandler = errors.New("action handler not registered")

	// Collaborator errors surfaced through the engine's public operations.
	ErrUnknownWorkflow  = registry.ErrUnknownWorkflow
	ErrUnknownApprover  = approval.ErrUnknownApprover
	ErrAlreadyDecided   = approval.ErrAlreadyDecided
	ErrNoRouteMatched   = routing.ErrNoRouteMatched
	ErrRequestNotFound  = persistence.ErrRequestNotFound
	ErrAuditWriteFailed = persistence.ErrAuditAppendFailed
)

// IsValidationError checks if an error carries field-level validation detail.
func IsValidationError(err error) bool {
	var verr *models.ValidationError

	return errors.As(err, &verr)
}

// IsRoutingError checks if an error indicates a misconfigured routing rule set.
func IsRoutingError(err error) bool {
	return errors.Is(err, routing.ErrNoRouteMatched) || errors.Is(err, routing.ErrUnresolvableValue)
}
