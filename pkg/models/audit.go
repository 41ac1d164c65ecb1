package models

import "time"

// AuditAction identifies the kind of fact an audit entry records.
type AuditAction string

const (
	AuditRequestCreated    AuditAction = "request_created"
	AuditRequestSubmitted  AuditAction = "request_submitted"
	AuditRequestCancelled  AuditAction = "request_cancelled"
	AuditRequestCompleted  AuditAction = "request_completed"
	AuditRequestEscalated  AuditAction = "request_escalated"
	AuditApprovalRequested AuditAction = "approval_requested"
	AuditApprovalApproved  AuditAction = "approval_approved"
	AuditApprovalRejected  AuditAction = "approval_rejected"
	AuditStepCompleted     AuditAction = "workflow_step_completed"
	AuditStepFailed        AuditAction = "workflow_step_failed"
	AuditValidationFailed  AuditAction = "validation_failed"
	AuditDecisionFailed    AuditAction = "decision_failed"
	AuditNotificationSent  AuditAction = "notification_sent"
	AuditNotificationError AuditAction = "notification_failed"
)

// ActorType classifies who performed an audited action.
type ActorType string

const (
	ActorTypeUser   ActorType = "user"
	ActorTypeSystem ActorType = "system"
)

// AuditEntry is an immutable fact about one action or transition against a
// request. Entries are append-only; total ordering per request is creation
// order. No entry is ever edited or removed.
type AuditEntry struct {
	ID              string         `json:"id"`
	RequestID       string         `json:"request_id"`
	Action          AuditAction    `json:"action"`
	Actor           Identity       `json:"actor"`
	ActorType       ActorType      `json:"actor_type"`
	Description     string         `json:"description,omitempty"`
	Data            map[string]any `json:"data,omitempty"` // Snapshot of the payload fields relevant to the action
	ResultingStatus RequestStatus  `json:"resulting_status"`
	ResultingStep   string         `json:"resulting_step,omitempty"`
	Timestamp       time.Time      `json:"timestamp"`
}
