package models

import "time"

// SlotDecision represents the state of one approval slot.
type SlotDecision string

const (
	SlotDecisionPending   SlotDecision = "pending"
	SlotDecisionApproved  SlotDecision = "approved"
	SlotDecisionRejected  SlotDecision = "rejected"
	SlotDecisionCancelled SlotDecision = "cancelled" // Withdrawn without a decision (fail-fast or escalation)
)

// Decision is an approver's verdict on a request.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// SatisfactionPolicy decides when an approval step is resolved.
type SatisfactionPolicy string

const (
	PolicyAll SatisfactionPolicy = "all" // Every slot must approve
	PolicyAny SatisfactionPolicy = "any" // One approval resolves the step
)

// StepOutcome is the aggregate state of an approval step's slot set.
type StepOutcome string

const (
	OutcomePending   StepOutcome = "pending"
	OutcomeSatisfied StepOutcome = "satisfied"
	OutcomeRejected  StepOutcome = "rejected"
)

// ApprovalSlot is one required decision within an approval step instance.
// Slots are created fresh each time the step is entered and never outlive it.
type ApprovalSlot struct {
	Approver  Identity     `json:"approver"`
	Decision  SlotDecision `json:"decision"`
	Comment   string       `json:"comment,omitempty"`
	Step      string       `json:"step"`
	Level     int          `json:"level"`
	CreatedAt time.Time    `json:"created_at"`
	DecidedAt *time.Time   `json:"decided_at,omitempty"`
}
