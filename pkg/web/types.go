// Package web provides HTTP request and response types for the approval API.
package web

import "github.com/dukex/approvion/pkg/models"

// IdentityPayload carries a user reference in request bodies.
type IdentityPayload struct {
	ID    string `json:"id"    validate:"required"`
	Name  string `json:"name"  validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

func (p IdentityPayload) Identity() models.Identity {
	return models.Identity{ID: p.ID, Name: p.Name, Email: p.Email}
}

// CreateRequestRequest represents the request body for creating a new request.
type CreateRequestRequest struct {
	WorkflowType string          `json:"workflow_type" validate:"required"`
	Requester    IdentityPayload `json:"requester"     validate:"required"`
	Title        string          `json:"title"         validate:"required,min=3"`
	Description  string          `json:"description"`
	Priority     string          `json:"priority"      validate:"omitempty,oneof=low medium high urgent"`
	Payload      map[string]any  `json:"payload"       validate:"required"`
}

// DecideRequest represents the request body for recording an approval decision.
type DecideRequest struct {
	ApproverID string `json:"approver_id" validate:"required"`
	Decision   string `json:"decision"    validate:"required,oneof=approve reject"`
	Comment    string `json:"comment"`
}

// CancelRequestRequest represents the request body for cancelling a request.
// Only the requester may cancel.
type CancelRequestRequest struct {
	Actor IdentityPayload `json:"actor" validate:"required"`
}

// WorkflowResponse describes one registered workflow type.
type WorkflowResponse struct {
	Type        string `json:"type"`
	DisplayName string `json:"display_name"`
	Description string `json:"description,omitempty"`
}
