// Package approval tracks the pending and decided approval slots of a
// request's current approval step and decides when the step is satisfied.
package approval

import (
	"errors"
	"fmt"
	"time"

	"github.com/dukex/approvion/pkg/models"
)

var (
	// ErrUnknownApprover indicates the approver holds no slot in the current step.
	ErrUnknownApprover = errors.New("approver holds no slot in the current step")

	// ErrAlreadyDecided indicates the approver's slot is no longer pending.
	// Duplicate decisions under retried notifications are rejected
	// idempotently instead of double-counted.
	ErrAlreadyDecided = errors.New("approval slot already decided")
)

// OpenStep creates one pending slot per approver, in routing order.
func OpenStep(stepName string, approvers []models.Identity, now time.Time) []*models.ApprovalSlot {
	slots := make([]*models.ApprovalSlot, 0, len(approvers))

	for i, approver := range approvers {
		slots = append(slots, &models.ApprovalSlot{
			Approver:  approver,
			Decision:  models.SlotDecisionPending,
			Step:      stepName,
			Level:     i + 1,
			CreatedAt: now,
		})
	}

	return slots
}

// Decide records one approver's decision in place and returns the step
// outcome under the given satisfaction policy.
//
// ALL policy fails fast: a single rejection rejects the step and the
// remaining pending slots are cancelled, not decided.
func Decide(
	slots []*models.ApprovalSlot,
	policy models.SatisfactionPolicy,
	approverID string,
	decision models.Decision,
	comment string,
	now time.Time,
) (models.StepOutcome, error) {
	slot := findSlot(slots, approverID)
	if slot == nil {
		return models.OutcomePending, fmt.Errorf("approver %q: %w", approverID, ErrUnknownApprover)
	}

	if slot.Decision != models.SlotDecisionPending {
		return models.OutcomePending, fmt.Errorf("approver %q: %w", approverID, ErrAlreadyDecided)
	}

	decidedAt := now
	slot.Comment = comment
	slot.DecidedAt = &decidedAt

	switch decision {
	case models.DecisionApprove:
		slot.Decision = models.SlotDecisionApproved
	case models.DecisionReject:
		slot.Decision = models.SlotDecisionRejected
	default:
		return models.OutcomePending, fmt.Errorf("unknown decision %q", decision)
	}

	return Outcome(slots, policy, now), nil
}

// Outcome computes the aggregate state of a slot set under a policy,
// cancelling pending slots when the step resolves early.
func Outcome(slots []*models.ApprovalSlot, policy models.SatisfactionPolicy, now time.Time) models.StepOutcome {
	approved := 0
	rejected := 0
	pending := 0

	for _, slot := range slots {
		switch slot.Decision {
		case models.SlotDecisionApproved:
			approved++
		case models.SlotDecisionRejected:
			rejected++
		case models.SlotDecisionPending:
			pending++
		}
	}

	switch policy {
	case models.PolicyAny:
		if approved > 0 {
			cancelPending(slots, now)

			return models.OutcomeSatisfied
		}

		if pending == 0 {
			return models.OutcomeRejected
		}
	case models.PolicyAll:
		if rejected > 0 {
			cancelPending(slots, now)

			return models.OutcomeRejected
		}

		if pending == 0 {
			return models.OutcomeSatisfied
		}
	}

	return models.OutcomePending
}

// CancelPending withdraws every still-pending slot, used when a step is
// escalated or the request is cancelled.
func CancelPending(slots []*models.ApprovalSlot, now time.Time) {
	cancelPending(slots, now)
}

func cancelPending(slots []*models.ApprovalSlot, now time.Time) {
	for _, slot := range slots {
		if slot.Decision == models.SlotDecisionPending {
			decidedAt := now
			slot.Decision = models.SlotDecisionCancelled
			slot.DecidedAt = &decidedAt
		}
	}
}

func findSlot(slots []*models.ApprovalSlot, approverID string) *models.ApprovalSlot {
	for _, slot := range slots {
		if slot.Approver.ID == approverID {
			return slot
		}
	}

	return nil
}
