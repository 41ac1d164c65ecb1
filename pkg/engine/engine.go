package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/approvion/pkg/approval"
	"github.com/dukex/approvion/pkg/audit"
	"github.com/dukex/approvion/pkg/eventbus"
	"github.com/dukex/approvion/pkg/events"
	"github.com/dukex/approvion/pkg/lock"
	"github.com/dukex/approvion/pkg/models"
	"github.com/dukex/approvion/pkg/otelhelper"
	"github.com/dukex/approvion/pkg/persistence"
	"github.com/dukex/approvion/pkg/registry"
	"github.com/dukex/approvion/pkg/routing"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ActionHandler runs one action step synchronously. The returned map is
// merged into the request payload. Action steps never require external
// input: they complete or fail immediately, no partial state is persisted.
type ActionHandler func(ctx context.Context, request *models.Request) (map[string]any, error)

// Engine is the workflow state machine orchestrator. Given a request and its
// definition it decides the next legal transition, consults the routing
// evaluator to populate approval slots, the approval tracker to check step
// completion, records every transition through the audit writer, and
// publishes notification events as a side effect.
//
// A transition is atomic: the whole validate-route-record sequence completes
// and is durably recorded, or the request is left exactly at its prior
// committed state. Per-request serialization comes from the Locker, held
// across the read-modify-audit-write sequence.
type Engine struct {
	registry    *registry.Registry
	persistence persistence.Persistence
	audit       *audit.Writer
	publisher   eventbus.EventPublisher
	locker      lock.Locker
	actions     map[string]ActionHandler
	logger      *slog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

func New(
	reg *registry.Registry,
	persist persistence.Persistence,
	publisher eventbus.EventPublisher,
	locker lock.Locker,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		registry:    reg,
		persistence: persist,
		audit:       audit.NewWriter(persist.AuditRepository(), logger),
		publisher:   publisher,
		locker:      locker,
		actions:     make(map[string]ActionHandler),
		logger:      logger,
		tracer:      otel.Tracer("approvion/engine"),
		now:         time.Now,
	}
}

// RegisterAction binds a named action handler. Handlers are registered at
// startup wiring, alongside the workflow definitions that reference them.
func (e *Engine) RegisterAction(name string, handler ActionHandler) {
	e.actions[name] = handler
}

// txn accumulates the audit entries and notification events of one
// transition. Entries are appended and the request saved only when the whole
// in-memory transition succeeded; events are published after commit.
type txn struct {
	entries []*models.AuditEntry
	notes   []eventbus.Event
}

// CreateRequest validates the initial form payload against the workflow's
// definition and stores a new draft request.
func (e *Engine) CreateRequest(
	ctx context.Context,
	workflowType string,
	requester models.Identity,
	title, description, priority string,
	payload map[string]any,
) (*models.Request, error) {
	def, err := e.registry.Lookup(workflowType)
	if err != nil {
		return nil, err
	}

	initial := def.InitialStep()
	if err := e.validateForm(initial, payload); err != nil {
		return nil, err
	}

	if def.Prepare != nil {
		payload = def.Prepare(payload)
	}

	now := e.now().UTC()
	request := &models.Request{
		ID:           uuid.New().String(),
		WorkflowType: workflowType,
		Requester:    requester,
		Title:        title,
		Description:  description,
		Priority:     priority,
		Payload:      payload,
		Status:       models.RequestStatusDraft,
		CurrentStep:  initial.Name,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	state := &txn{entries: []*models.AuditEntry{
		audit.Entry(request, models.AuditRequestCreated, requester,
			fmt.Sprintf("Created %s request", workflowType),
			map[string]any{"workflow_type": workflowType},
		),
	}}

	if err := e.commit(ctx, request, state); err != nil {
		return nil, err
	}

	return request, nil
}

// Submit validates the request's current form step and advances it into the
// workflow: the following approval step's slots are routed and opened, or
// chained action steps run.
func (e *Engine) Submit(ctx context.Context, requestID string) (*models.Request, error) {
	ctx, span := e.tracer.Start(ctx, "engine.submit",
		trace.WithAttributes(attribute.String(otelhelper.RequestIDKey, requestID)))
	defer span.End()

	release, err := e.locker.Acquire(ctx, requestID)
	if err != nil {
		return nil, err
	}
	defer release()

	request, def, err := e.load(ctx, requestID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	prior := snapshot(request)

	if err := guard(request.Status, EventSubmit); err != nil {
		e.auditFailure(ctx, prior, models.AuditDecisionFailed, request.Requester, err)
		otelhelper.SetError(span, err)

		return nil, err
	}

	step := def.StepByName(request.CurrentStep)
	if step == nil || step.Kind != models.StepKindForm {
		err := fmt.Errorf("%w: current step %q is not a form step", ErrInvalidTransition, request.CurrentStep)
		e.auditFailure(ctx, prior, models.AuditDecisionFailed, request.Requester, err)

		return nil, err
	}

	if err := e.validateForm(step, request.Payload); err != nil {
		e.auditFailure(ctx, prior, models.AuditValidationFailed, request.Requester, err)
		otelhelper.SetError(span, err)

		return nil, err
	}

	now := e.now().UTC()
	request.Status = models.RequestStatusSubmitted
	request.SubmittedAt = &now

	state := &txn{
		entries: []*models.AuditEntry{
			audit.Entry(request, models.AuditRequestSubmitted, request.Requester,
				"Submitted request for approval", nil),
		},
		notes: []eventbus.Event{e.newRequestSubmitted(request, def)},
	}

	if err := e.leaveStep(ctx, request, def, step, state); err != nil {
		e.auditFailure(ctx, prior, models.AuditDecisionFailed, request.Requester, err)
		otelhelper.SetError(span, err)

		return nil, err
	}

	if err := e.commit(ctx, request, state); err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	e.publish(ctx, request, state)

	return request, nil
}

// Decide records one approver's decision on the request's current approval
// step and advances the workflow when the step resolves.
func (e *Engine) Decide(
	ctx context.Context,
	requestID, approverID string,
	decision models.Decision,
	comment string,
) (*models.Request, error) {
	ctx, span := e.tracer.Start(ctx, "engine.decide",
		trace.WithAttributes(
			attribute.String(otelhelper.RequestIDKey, requestID),
			attribute.String(otelhelper.ApproverIDKey, approverID),
		))
	defer span.End()

	release, err := e.locker.Acquire(ctx, requestID)
	if err != nil {
		return nil, err
	}
	defer release()

	request, def, err := e.load(ctx, requestID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	prior := snapshot(request)
	actor := models.Identity{ID: approverID}

	if slot, ok := request.SlotFor(approverID); ok {
		actor = slot.Approver
	}

	if err := guard(request.Status, EventStepSatisfied); err != nil {
		e.auditFailure(ctx, prior, models.AuditDecisionFailed, actor, err)
		otelhelper.SetError(span, err)

		return nil, err
	}

	step := def.StepByName(request.CurrentStep)
	if step == nil || step.Kind != models.StepKindApproval {
		err := fmt.Errorf("%w: current step %q is not an approval step", ErrInvalidTransition, request.CurrentStep)
		e.auditFailure(ctx, prior, models.AuditDecisionFailed, actor, err)

		return nil, err
	}

	now := e.now().UTC()

	outcome, err := approval.Decide(request.Slots, step.Policy, approverID, decision, comment, now)
	if err != nil {
		e.auditFailure(ctx, prior, models.AuditDecisionFailed, actor, err)
		otelhelper.SetError(span, err)

		return nil, err
	}

	action := models.AuditApprovalApproved
	description := "Approved request"

	if decision == models.DecisionReject {
		action = models.AuditApprovalRejected
		description = "Rejected request"
	}

	data := map[string]any{}
	if comment != "" {
		data["comments"] = comment
	}

	state := &txn{notes: []eventbus.Event{e.newApprovalDecided(request, actor, decision, comment)}}

	switch outcome {
	case models.OutcomeSatisfied:
		state.entries = append(state.entries, audit.Entry(request, action, actor, description, data))
		state.entries = append(state.entries, audit.SystemEntry(request, models.AuditStepCompleted,
			fmt.Sprintf("Completed workflow step: %s", step.Name),
			map[string]any{"step": step.Name, "outcome": string(outcome)},
		))

		if err := e.leaveStep(ctx, request, def, step, state); err != nil {
			e.auditFailure(ctx, prior, models.AuditDecisionFailed, actor, err)
			otelhelper.SetError(span, err)

			return nil, err
		}
	case models.OutcomeRejected:
		state.entries = append(state.entries, audit.Entry(request, action, actor, description, data))

		if err := e.failStep(ctx, request, def, step, state); err != nil {
			e.auditFailure(ctx, prior, models.AuditDecisionFailed, actor, err)
			otelhelper.SetError(span, err)

			return nil, err
		}
	case models.OutcomePending:
		state.entries = append(state.entries, audit.Entry(request, action, actor, description, data))
	}

	if err := e.commit(ctx, request, state); err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	e.publish(ctx, request, state)

	return request, nil
}

// TimeoutCheck escalates the request's current approval step when its
// timeout has elapsed with the outcome still pending. Escalation is opt-in:
// steps without an escalation target are held pending indefinitely. Returns
// whether an escalation happened.
func (e *Engine) TimeoutCheck(ctx context.Context, requestID string, now time.Time) (bool, error) {
	release, err := e.locker.Acquire(ctx, requestID)
	if err != nil {
		return false, err
	}
	defer release()

	request, def, err := e.load(ctx, requestID)
	if err != nil {
		return false, err
	}

	if guard(request.Status, EventEscalate) != nil {
		return false, nil
	}

	step := def.StepByName(request.CurrentStep)
	if step == nil || step.Kind != models.StepKindApproval || step.EscalateTo == nil || step.Timeout <= 0 {
		return false, nil
	}

	if approval.Outcome(request.Slots, step.Policy, now) != models.OutcomePending {
		return false, nil
	}

	enteredAt := stepEnteredAt(request)
	if enteredAt.IsZero() || now.Sub(enteredAt) < step.Timeout {
		return false, nil
	}

	approvers, err := routing.Evaluate(step.EscalateTo, request.Payload)
	if err != nil {
		return false, fmt.Errorf("escalation routing for step %q: %w", step.Name, err)
	}

	escalationTime := now.UTC()
	approval.CancelPending(request.Slots, escalationTime)
	request.Slots = approval.OpenStep(step.Name, approvers, escalationTime)

	state := &txn{
		entries: []*models.AuditEntry{
			audit.SystemEntry(request, models.AuditRequestEscalated,
				fmt.Sprintf("Escalated step %s after timeout", step.Name),
				map[string]any{"step": step.Name, "approvers": approverIDs(approvers)},
			),
		},
		notes: []eventbus.Event{e.newRequestEscalated(request, step.Name, approvers)},
	}

	for _, approver := range approvers {
		state.notes = append(state.notes, e.newApprovalRequested(request, def, approver, step.Name))
	}

	if err := e.commit(ctx, request, state); err != nil {
		return false, err
	}

	e.publish(ctx, request, state)

	return true, nil
}

// Cancel withdraws a non-terminal request. Only the requester may cancel.
func (e *Engine) Cancel(ctx context.Context, requestID string, actor models.Identity) (*models.Request, error) {
	release, err := e.locker.Acquire(ctx, requestID)
	if err != nil {
		return nil, err
	}
	defer release()

	request, _, err := e.load(ctx, requestID)
	if err != nil {
		return nil, err
	}

	prior := snapshot(request)

	if err := guard(request.Status, EventCancel); err != nil {
		e.auditFailure(ctx, prior, models.AuditDecisionFailed, actor, err)

		return nil, err
	}

	if actor.ID != request.Requester.ID {
		err := fmt.Errorf("%w: %s", ErrNotRequester, actor.ID)
		e.auditFailure(ctx, prior, models.AuditDecisionFailed, actor, err)

		return nil, err
	}

	now := e.now().UTC()
	approval.CancelPending(request.Slots, now)
	request.Status = models.RequestStatusCancelled
	request.CompletedAt = &now

	state := &txn{
		entries: []*models.AuditEntry{
			audit.Entry(request, models.AuditRequestCancelled, actor, "Cancelled request", nil),
		},
		notes: []eventbus.Event{e.newRequestCancelled(request)},
	}

	if err := e.commit(ctx, request, state); err != nil {
		return nil, err
	}

	e.publish(ctx, request, state)

	return request, nil
}

// GetRequest returns a request by its identifier.
func (e *Engine) GetRequest(ctx context.Context, requestID string) (*models.Request, error) {
	request, _, err := e.load(ctx, requestID)

	return request, err
}

// GetAuditTrail returns a request's audit entries in append order.
func (e *Engine) GetAuditTrail(ctx context.Context, requestID string) ([]*models.AuditEntry, error) {
	return e.audit.Trail(ctx, requestID)
}

// ListPendingApprovals returns the requests holding a pending slot for the approver.
func (e *Engine) ListPendingApprovals(ctx context.Context, approverID string) ([]*models.Request, error) {
	return e.persistence.RequestRepository().ListPendingByApprover(ctx, approverID)
}

// ListRequests returns a requester's requests, optionally filtered by status.
func (e *Engine) ListRequests(ctx context.Context, requesterID string, status *models.RequestStatus) ([]*models.Request, error) {
	return e.persistence.RequestRepository().ListByRequester(ctx, requesterID, status)
}

// ListInReview returns requests awaiting approval, for the escalation sweep.
func (e *Engine) ListInReview(ctx context.Context) ([]*models.Request, error) {
	return e.persistence.RequestRepository().ListInReview(ctx)
}

// leaveStep advances past a successfully completed step: it resolves the
// request when the step is terminal, otherwise enters the success target.
func (e *Engine) leaveStep(ctx context.Context, request *models.Request, def *models.WorkflowDefinition, step *models.StepSpec, state *txn) error {
	if step.Terminal() {
		return e.resolve(request, step.TerminalStatus(), state)
	}

	return e.enterStep(ctx, request, def, def.StepByName(step.OnSuccess), state)
}

// failStep advances past a rejected or failed step: failure target when
// declared, else the global rejection terminal.
func (e *Engine) failStep(ctx context.Context, request *models.Request, def *models.WorkflowDefinition, step *models.StepSpec, state *txn) error {
	if step.OnFailure == "" {
		return e.resolve(request, models.RequestStatusRejected, state)
	}

	return e.enterStep(ctx, request, def, def.StepByName(step.OnFailure), state)
}

// enterStep walks the request into a step, chaining synchronously through
// action steps until the workflow waits on input (form or approval step) or
// resolves.
func (e *Engine) enterStep(ctx context.Context, request *models.Request, def *models.WorkflowDefinition, step *models.StepSpec, state *txn) error {
	for hops := 0; ; hops++ {
		if hops > len(def.Steps) {
			return fmt.Errorf("workflow %q: step chain does not terminate", def.Type)
		}

		switch step.Kind {
		case models.StepKindForm:
			request.CurrentStep = step.Name

			return nil

		case models.StepKindApproval:
			return e.openApprovals(request, def, step, state)

		case models.StepKindAction:
			request.CurrentStep = step.Name

			result, err := e.runAction(ctx, request, step)
			if err != nil {
				state.entries = append(state.entries, audit.SystemEntry(request, models.AuditStepFailed,
					fmt.Sprintf("Action step %s failed: %v", step.Name, err),
					map[string]any{"step": step.Name},
				))

				if step.OnFailure == "" {
					return e.resolve(request, models.RequestStatusRejected, state)
				}

				step = def.StepByName(step.OnFailure)

				continue
			}

			for key, value := range result {
				request.Payload[key] = value
			}

			state.entries = append(state.entries, audit.SystemEntry(request, models.AuditStepCompleted,
				fmt.Sprintf("Completed workflow step: %s", step.Name),
				map[string]any{"step": step.Name},
			))

			if step.Terminal() {
				return e.resolve(request, step.TerminalStatus(), state)
			}

			step = def.StepByName(step.OnSuccess)

		default:
			return fmt.Errorf("workflow %q step %q: unknown step kind %q", def.Type, step.Name, step.Kind)
		}
	}
}

// openApprovals routes the step's approvers and opens one pending slot each.
func (e *Engine) openApprovals(request *models.Request, def *models.WorkflowDefinition, step *models.StepSpec, state *txn) error {
	if err := guard(request.Status, EventOpenApprovals); err != nil {
		return err
	}

	approvers, err := routing.Evaluate(step.Routing, request.Payload)
	if err != nil {
		return fmt.Errorf("routing for step %q: %w", step.Name, err)
	}

	now := e.now().UTC()
	request.Status = models.RequestStatusInReview
	request.CurrentStep = step.Name
	request.Slots = approval.OpenStep(step.Name, approvers, now)

	for _, approver := range approvers {
		state.entries = append(state.entries, audit.SystemEntry(request, models.AuditApprovalRequested,
			fmt.Sprintf("Requested approval from %s", approver.Name),
			map[string]any{"approver_id": approver.ID},
		))
		state.notes = append(state.notes, e.newApprovalRequested(request, def, approver, step.Name))
	}

	return nil
}

// resolve moves the request to a terminal status.
func (e *Engine) resolve(request *models.Request, status models.RequestStatus, state *txn) error {
	if err := guard(request.Status, EventResolve); err != nil {
		return err
	}

	now := e.now().UTC()
	request.Status = status
	request.CompletedAt = &now

	state.entries = append(state.entries, audit.SystemEntry(request, models.AuditRequestCompleted,
		fmt.Sprintf("Request %s", status), nil))
	state.notes = append(state.notes, e.newRequestCompleted(request))

	return nil
}

// runAction invokes the named handler of an action step.
func (e *Engine) runAction(ctx context.Context, request *models.Request, step *models.StepSpec) (map[string]any, error) {
	handler, ok := e.actions[step.Handler]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownActionHandler, step.Handler)
	}

	return handler(ctx, request)
}

// commit appends the transition's audit entries, then saves the request.
// The request must not be considered advanced until every append is
// acknowledged: an audit failure aborts the transition and the stored
// request stays at its prior committed state.
func (e *Engine) commit(ctx context.Context, request *models.Request, state *txn) error {
	for _, entry := range state.entries {
		if err := e.audit.Append(ctx, entry); err != nil {
			return fmt.Errorf("transition aborted: %w", err)
		}
	}

	request.UpdatedAt = e.now().UTC()

	if err := e.persistence.RequestRepository().Save(ctx, request); err != nil {
		return err
	}

	return nil
}

// publish delivers the transition's notification events after commit.
// Best-effort: failures are logged and recorded, never propagated.
func (e *Engine) publish(ctx context.Context, request *models.Request, state *txn) {
	if e.publisher == nil {
		return
	}

	for _, note := range state.notes {
		if err := e.publisher.Publish(ctx, request.ID, note); err != nil {
			e.logger.WarnContext(ctx, "Failed to publish notification event",
				"request_id", request.ID,
				"event_type", note.GetType(),
				"error", err,
			)

			entry := audit.SystemEntry(request, models.AuditNotificationError,
				fmt.Sprintf("Failed to publish %s notification", note.GetType()), nil)
			if auditErr := e.audit.Append(ctx, entry); auditErr != nil {
				e.logger.ErrorContext(ctx, "Failed to audit notification failure", "error", auditErr)
			}
		}
	}
}

// auditFailure records a failed transition attempt against the request's
// prior committed state, enabling forensic reconstruction of stuck requests.
func (e *Engine) auditFailure(ctx context.Context, prior *models.Request, action models.AuditAction, actor models.Identity, cause error) {
	entry := audit.Entry(prior, action, actor, cause.Error(), nil)
	if actor.ID == models.SystemActor.ID {
		entry.ActorType = models.ActorTypeSystem
	}

	if err := e.audit.Append(ctx, entry); err != nil {
		e.logger.ErrorContext(ctx, "Failed to audit transition failure",
			"request_id", prior.ID,
			"error", err,
		)
	}
}

func (e *Engine) load(ctx context.Context, requestID string) (*models.Request, *models.WorkflowDefinition, error) {
	request, err := e.persistence.RequestRepository().GetByID(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}

	def, err := e.registry.Lookup(request.WorkflowType)
	if err != nil {
		return nil, nil, err
	}

	return request, def, nil
}

// snapshot keeps the fields failure audits need from the prior committed state.
func snapshot(request *models.Request) *models.Request {
	prior := *request

	return &prior
}

// stepEnteredAt is when the current step's slots were opened.
func stepEnteredAt(request *models.Request) time.Time {
	if len(request.Slots) == 0 {
		return time.Time{}
	}

	return request.Slots[0].CreatedAt
}

func approverIDs(approvers []models.Identity) []string {
	ids := make([]string, 0, len(approvers))
	for _, a := range approvers {
		ids = append(ids, a.ID)
	}

	return ids
}

func (e *Engine) base(request *models.Request, eventType events.EventType) events.BaseEvent {
	return events.BaseEvent{
		ID:           uuid.New().String(),
		Type:         eventType,
		Timestamp:    e.now().UTC(),
		RequestID:    request.ID,
		WorkflowType: request.WorkflowType,
	}
}

func (e *Engine) newRequestSubmitted(request *models.Request, def *models.WorkflowDefinition) eventbus.Event {
	summary := ""
	if def.Summarize != nil {
		summary = def.Summarize(request.Payload)
	}

	return events.RequestSubmitted{
		BaseEvent: e.base(request, events.RequestSubmittedEvent),
		Requester: request.Requester,
		Summary:   summary,
	}
}

func (e *Engine) newApprovalRequested(request *models.Request, def *models.WorkflowDefinition, approver models.Identity, step string) eventbus.Event {
	summary := ""
	if def.Summarize != nil {
		summary = def.Summarize(request.Payload)
	}

	return events.ApprovalRequested{
		BaseEvent: e.base(request, events.ApprovalRequestedEvent),
		Approver:  approver,
		Step:      step,
		Summary:   summary,
	}
}

func (e *Engine) newApprovalDecided(request *models.Request, approver models.Identity, decision models.Decision, comment string) eventbus.Event {
	return events.ApprovalDecided{
		BaseEvent: e.base(request, events.ApprovalDecidedEvent),
		Approver:  approver,
		Decision:  decision,
		Comment:   comment,
	}
}

func (e *Engine) newRequestCompleted(request *models.Request) eventbus.Event {
	return events.RequestCompleted{
		BaseEvent: e.base(request, events.RequestCompletedEvent),
		Requester: request.Requester,
		Status:    request.Status,
	}
}

func (e *Engine) newRequestCancelled(request *models.Request) eventbus.Event {
	return events.RequestCancelled{
		BaseEvent: e.base(request, events.RequestCancelledEvent),
		Requester: request.Requester,
	}
}

func (e *Engine) newRequestEscalated(request *models.Request, step string, approvers []models.Identity) eventbus.Event {
	return events.RequestEscalated{
		BaseEvent: e.base(request, events.RequestEscalatedEvent),
		Step:      step,
		Approvers: approvers,
	}
}
