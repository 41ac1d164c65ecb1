package models

import (
	"errors"
	"fmt"
	"time"
)

// StepKind classifies a workflow step.
type StepKind string

const (
	StepKindForm     StepKind = "form"     // Collects and validates requester input
	StepKindApproval StepKind = "approval" // Waits on routed approval slots
	StepKindAction   StepKind = "action"   // Runs a named side-effecting handler synchronously
)

// StepSpec is one unit of work within a workflow definition.
//
// A step with no OnSuccess target is terminal: completing it resolves the
// request to ResolvesTo (approved when unset). A rejection with no OnFailure
// target resolves to the global rejected terminal.
type StepSpec struct {
	Name string   `json:"name" validate:"required"`
	Kind StepKind `json:"kind" validate:"required,oneof=form approval action"`

	// Form steps.
	Fields []FieldSpec    `json:"fields,omitempty"`
	Schema map[string]any `json:"schema,omitempty"` // Optional JSON schema applied to the payload

	// Approval steps.
	Routing    *RuleSet           `json:"routing,omitempty"`
	Policy     SatisfactionPolicy `json:"policy,omitempty"`
	Timeout    time.Duration      `json:"timeout,omitempty"`
	EscalateTo *RuleSet           `json:"escalate_to,omitempty"` // Escalation is opt-in per step

	// Action steps.
	Handler string `json:"handler,omitempty"`

	OnSuccess  string        `json:"on_success,omitempty"`
	OnFailure  string        `json:"on_failure,omitempty"`
	Initial    bool          `json:"initial,omitempty"`
	ResolvesTo RequestStatus `json:"resolves_to,omitempty"`
}

// Terminal reports whether completing this step resolves the request.
func (s *StepSpec) Terminal() bool {
	return s.OnSuccess == ""
}

// TerminalStatus is the status a terminal step resolves to.
func (s *StepSpec) TerminalStatus() RequestStatus {
	if s.ResolvesTo != "" {
		return s.ResolvesTo
	}

	return RequestStatusApproved
}

// WorkflowDefinition is the declarative shape of one workflow type: an
// ordered sequence of steps. Immutable once registered.
type WorkflowDefinition struct {
	Type        string      `json:"type"         validate:"required"`
	DisplayName string      `json:"display_name" validate:"required"`
	Description string      `json:"description,omitempty"`
	Steps       []*StepSpec `json:"steps"        validate:"required,min=1"`

	// Prepare enriches the payload with derived values before the request is
	// stored (e.g. computed business days). Optional.
	Prepare func(payload map[string]any) map[string]any `json:"-"`

	// Summarize renders a human-readable summary used in notifications. Optional.
	Summarize func(payload map[string]any) string `json:"-"`
}

var (
	ErrNoInitialStep       = errors.New("definition must mark exactly one initial step")
	ErrNoTerminalStep      = errors.New("definition must contain at least one terminal step")
	ErrDuplicateStepName   = errors.New("step names must be unique within a definition")
	ErrUnresolvedTarget    = errors.New("transition target does not name a step")
	ErrIncompleteStepSpec  = errors.New("step spec is missing required configuration")
	ErrEscalationNoTimeout = errors.New("escalation target requires a timeout")
)

// Validate checks the structural invariants of a definition: unique step
// names, exactly one initial step, at least one terminal step, resolvable
// transition targets, and per-kind required configuration.
func (d *WorkflowDefinition) Validate() error {
	if len(d.Steps) == 0 {
		return fmt.Errorf("workflow %q: %w", d.Type, ErrNoTerminalStep)
	}

	byName := make(map[string]*StepSpec, len(d.Steps))
	initials := 0
	terminals := 0

	for _, step := range d.Steps {
		if _, dup := byName[step.Name]; dup {
			return fmt.Errorf("workflow %q step %q: %w", d.Type, step.Name, ErrDuplicateStepName)
		}

		byName[step.Name] = step

		if step.Initial {
			initials++
		}

		if step.Terminal() {
			terminals++
		}

		if err := step.validateKind(); err != nil {
			return fmt.Errorf("workflow %q step %q: %w", d.Type, step.Name, err)
		}
	}

	if initials != 1 {
		return fmt.Errorf("workflow %q: %w", d.Type, ErrNoInitialStep)
	}

	if terminals == 0 {
		return fmt.Errorf("workflow %q: %w", d.Type, ErrNoTerminalStep)
	}

	for _, step := range d.Steps {
		for _, target := range []string{step.OnSuccess, step.OnFailure} {
			if target == "" {
				continue
			}

			if _, ok := byName[target]; !ok {
				return fmt.Errorf("workflow %q step %q target %q: %w", d.Type, step.Name, target, ErrUnresolvedTarget)
			}
		}
	}

	return nil
}

func (s *StepSpec) validateKind() error {
	switch s.Kind {
	case StepKindForm:
		if len(s.Fields) == 0 {
			return fmt.Errorf("form step declares no fields: %w", ErrIncompleteStepSpec)
		}
	case StepKindApproval:
		if s.Routing == nil || (s.Policy != PolicyAll && s.Policy != PolicyAny) {
			return fmt.Errorf("approval step needs routing rules and a satisfaction policy: %w", ErrIncompleteStepSpec)
		}

		if s.EscalateTo != nil && s.Timeout <= 0 {
			return ErrEscalationNoTimeout
		}
	case StepKindAction:
		if s.Handler == "" {
			return fmt.Errorf("action step needs a handler name: %w", ErrIncompleteStepSpec)
		}
	default:
		return fmt.Errorf("unknown step kind %q: %w", s.Kind, ErrIncompleteStepSpec)
	}

	return nil
}

// StepByName returns the named step, or nil when absent.
func (d *WorkflowDefinition) StepByName(name string) *StepSpec {
	for _, step := range d.Steps {
		if step.Name == name {
			return step
		}
	}

	return nil
}

// InitialStep returns the step marked initial. Definitions are validated at
// registration, so a registered definition always has one.
func (d *WorkflowDefinition) InitialStep() *StepSpec {
	for _, step := range d.Steps {
		if step.Initial {
			return step
		}
	}

	return nil
}
