package engine

import (
	"fmt"

	"github.com/dukex/approvion/pkg/models"
)

// TransitionEvent names the events that move a request between statuses.
type TransitionEvent string

const (
	EventSubmit        TransitionEvent = "submit"         // Requester submits the form step
	EventOpenApprovals TransitionEvent = "open_approvals" // Engine opens an approval step's slots
	EventStepSatisfied TransitionEvent = "step_satisfied" // Approval step met its policy
	EventStepRejected  TransitionEvent = "step_rejected"  // Approval step rejected or action failed
	EventEscalate      TransitionEvent = "escalate"       // Timed-out step re-routed
	EventResolve       TransitionEvent = "resolve"        // Terminal step reached
	EventCancel        TransitionEvent = "cancel"         // Requester withdrew
)

// transitionTable enumerates every legal (status, event) pair. Concrete
// target steps come from the StepSpec; the table guards legality so every
// transition the engine can take is enumerable and testable in isolation.
var transitionTable = map[models.RequestStatus]map[TransitionEvent]bool{
	models.RequestStatusDraft: {
		EventSubmit: true,
		EventCancel: true,
	},
	models.RequestStatusSubmitted: {
		EventOpenApprovals: true,
		EventStepSatisfied: true, // Action step chained directly after the form
		EventStepRejected:  true,
		EventResolve:       true,
		EventCancel:        true,
	},
	models.RequestStatusInReview: {
		EventOpenApprovals: true, // Next approval step, or escalation re-route
		EventStepSatisfied: true,
		EventStepRejected:  true,
		EventEscalate:      true,
		EventResolve:       true,
		EventCancel:        true,
	},
}

// guard returns ErrInvalidTransition when the event is not legal for the
// request's current status. Terminal statuses admit no event.
func guard(status models.RequestStatus, event TransitionEvent) error {
	if transitionTable[status][event] {
		return nil
	}

	return fmt.Errorf("%w: cannot %s from status %s", ErrInvalidTransition, event, status)
}
