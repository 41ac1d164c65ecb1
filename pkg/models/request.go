// Package models defines the core domain models for approval workflow orchestration.
package models

import "time"

// RequestStatus represents the lifecycle state of a request.
type RequestStatus string

const (
	RequestStatusDraft     RequestStatus = "draft"     // Created, payload editable, not yet routed
	RequestStatusSubmitted RequestStatus = "submitted" // Validated, entering the first step
	RequestStatusInReview  RequestStatus = "in_review" // Waiting on approval slots
	RequestStatusApproved  RequestStatus = "approved"  // Terminal
	RequestStatusRejected  RequestStatus = "rejected"  // Terminal
	RequestStatusCompleted RequestStatus = "completed" // Terminal, post-approval actions done
	RequestStatusCancelled RequestStatus = "cancelled" // Terminal, withdrawn by requester
)

// IsTerminal reports whether no further transition is possible from s.
func (s RequestStatus) IsTerminal() bool {
	switch s {
	case RequestStatusApproved, RequestStatusRejected, RequestStatusCompleted, RequestStatusCancelled:
		return true
	default:
		return false
	}
}

// Identity names an actor in the system: a requester, an approver, or the engine itself.
type Identity struct {
	ID    string `json:"id"    validate:"required"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// SystemActor is the identity recorded for transitions the engine performs itself.
var SystemActor = Identity{ID: "system", Name: "WorkflowBot"}

// Request is a workflow instance flowing through its definition. The engine
// owns it exclusively while active; once terminal it is read-only history.
type Request struct {
	ID           string          `json:"id"`
	WorkflowType string          `json:"workflow_type" validate:"required"`
	Requester    Identity        `json:"requester"     validate:"required"`
	Title        string          `json:"title"         validate:"required"`
	Description  string          `json:"description,omitempty"`
	Priority     string          `json:"priority,omitempty"`
	Payload      map[string]any  `json:"payload"`
	Status       RequestStatus   `json:"status"`
	CurrentStep  string          `json:"current_step,omitempty"`
	Slots        []*ApprovalSlot `json:"slots,omitempty"` // Slots for the current approval step only
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	SubmittedAt  *time.Time      `json:"submitted_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// PendingSlots returns the slots of the current step still awaiting a decision.
func (r *Request) PendingSlots() []*ApprovalSlot {
	pending := make([]*ApprovalSlot, 0, len(r.Slots))

	for _, slot := range r.Slots {
		if slot.Decision == SlotDecisionPending {
			pending = append(pending, slot)
		}
	}

	return pending
}

// SlotFor returns the current-step slot held by the given approver, if any.
func (r *Request) SlotFor(approverID string) (*ApprovalSlot, bool) {
	for _, slot := range r.Slots {
		if slot.Approver.ID == approverID {
			return slot, true
		}
	}

	return nil, false
}
