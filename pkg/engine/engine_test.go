package engine_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dukex/approvion/pkg/engine"
	"github.com/dukex/approvion/pkg/eventbus"
	"github.com/dukex/approvion/pkg/events"
	"github.com/dukex/approvion/pkg/lock"
	"github.com/dukex/approvion/pkg/models"
	"github.com/dukex/approvion/pkg/persistence"
	"github.com/dukex/approvion/pkg/persistence/file"
	"github.com/dukex/approvion/pkg/registry"
	"github.com/dukex/approvion/pkg/workflows"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var requester = models.Identity{ID: "EMP042", Name: "Alex Morgan", Email: "alex.morgan@company.com"}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, persist persistence.Persistence, publisher eventbus.EventPublisher) *engine.Engine {
	t.Helper()

	logger := testLogger()
	reg := registry.NewRegistry(logger)
	eng := engine.New(reg, persist, publisher, lock.NewKeyedMutex(), logger)
	require.NoError(t, workflows.RegisterAll(reg, eng))

	return eng
}

func newFileEngine(t *testing.T) *engine.Engine {
	t.Helper()

	return newTestEngine(t, file.NewPersistence(t.TempDir()), nil)
}

func createExpense(t *testing.T, eng *engine.Engine, amount float64) *models.Request {
	t.Helper()

	request, err := eng.CreateRequest(context.Background(), workflows.TypeExpense, requester,
		"Team offsite travel", "Quarterly offsite", "medium", map[string]any{
			"amount":      amount,
			"category":    "travel",
			"description": "Flights for the quarterly team offsite",
		})
	require.NoError(t, err)

	return request
}

func actions(trail []*models.AuditEntry) []models.AuditAction {
	result := make([]models.AuditAction, 0, len(trail))
	for _, entry := range trail {
		result = append(result, entry.Action)
	}

	return result
}

func countAction(trail []*models.AuditEntry, action models.AuditAction) int {
	count := 0

	for _, entry := range trail {
		if entry.Action == action {
			count++
		}
	}

	return count
}

func TestCreateRequest(t *testing.T) {
	t.Parallel()

	eng := newFileEngine(t)
	ctx := context.Background()

	request := createExpense(t, eng, 120.50)

	assert.NotEmpty(t, request.ID)
	assert.Equal(t, models.RequestStatusDraft, request.Status)
	assert.Equal(t, "expense_details", request.CurrentStep)
	assert.Empty(t, request.Slots)

	trail, err := eng.GetAuditTrail(ctx, request.ID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, models.AuditRequestCreated, trail[0].Action)
	assert.Equal(t, requester.ID, trail[0].Actor.ID)
	assert.Equal(t, models.ActorTypeUser, trail[0].ActorType)
}

func TestCreateRequest_UnknownWorkflow(t *testing.T) {
	t.Parallel()

	eng := newFileEngine(t)

	_, err := eng.CreateRequest(context.Background(), "vacation", requester, "title", "", "", map[string]any{})
	assert.ErrorIs(t, err, engine.ErrUnknownWorkflow)
}

func TestCreateRequest_ValidationCollectsAllFailures(t *testing.T) {
	t.Parallel()

	eng := newFileEngine(t)

	_, err := eng.CreateRequest(context.Background(), workflows.TypeExpense, requester,
		"Bad expense", "", "", map[string]any{
			"amount":      -5,
			"category":    "yachts",
			"description": "short",
		})
	require.Error(t, err)
	assert.True(t, engine.IsValidationError(err))

	var verr *models.ValidationError

	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 3)
}

func TestSubmit_RoutesByAmount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		amount    float64
		approvers []string
	}{
		{name: "below threshold", amount: 499.99, approvers: []string{"MGR001"}},
		{name: "at threshold", amount: 500.00, approvers: []string{"MGR001", "FIN001"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			eng := newFileEngine(t)
			ctx := context.Background()
			request := createExpense(t, eng, tt.amount)

			submitted, err := eng.Submit(ctx, request.ID)
			require.NoError(t, err)

			assert.Equal(t, models.RequestStatusInReview, submitted.Status)
			assert.Equal(t, "expense_review", submitted.CurrentStep)
			assert.NotNil(t, submitted.SubmittedAt)

			require.Len(t, submitted.Slots, len(tt.approvers))
			for i, approverID := range tt.approvers {
				assert.Equal(t, approverID, submitted.Slots[i].Approver.ID)
				assert.Equal(t, models.SlotDecisionPending, submitted.Slots[i].Decision)
			}

			trail, err := eng.GetAuditTrail(ctx, request.ID)
			require.NoError(t, err)
			assert.Equal(t, len(tt.approvers), countAction(trail, models.AuditApprovalRequested))
		})
	}
}

func TestSubmit_TwiceIsInvalidAndAudited(t *testing.T) {
	t.Parallel()

	eng := newFileEngine(t)
	ctx := context.Background()
	request := createExpense(t, eng, 100)

	_, err := eng.Submit(ctx, request.ID)
	require.NoError(t, err)

	_, err = eng.Submit(ctx, request.ID)
	assert.ErrorIs(t, err, engine.ErrInvalidTransition)

	// The failed attempt is recorded against the unchanged state.
	trail, err := eng.GetAuditTrail(ctx, request.ID)
	require.NoError(t, err)
	require.Equal(t, 1, countAction(trail, models.AuditDecisionFailed))

	current, err := eng.GetRequest(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusInReview, current.Status)
}

func TestDecide_AllApproversApprove(t *testing.T) {
	t.Parallel()

	eng := newFileEngine(t)
	ctx := context.Background()
	request := createExpense(t, eng, 750)

	_, err := eng.Submit(ctx, request.ID)
	require.NoError(t, err)

	afterFirst, err := eng.Decide(ctx, request.ID, "MGR001", models.DecisionApprove, "approved")
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusInReview, afterFirst.Status)

	final, err := eng.Decide(ctx, request.ID, "FIN001", models.DecisionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusApproved, final.Status)
	require.NotNil(t, final.CompletedAt)

	trail, err := eng.GetAuditTrail(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, []models.AuditAction{
		models.AuditRequestCreated,
		models.AuditRequestSubmitted,
		models.AuditApprovalRequested,
		models.AuditApprovalRequested,
		models.AuditApprovalApproved,
		models.AuditApprovalApproved,
		models.AuditStepCompleted,
		models.AuditRequestCompleted,
	}, actions(trail))

	// Append order never runs backwards in time.
	for i := 1; i < len(trail); i++ {
		assert.False(t, trail[i].Timestamp.Before(trail[i-1].Timestamp))
	}
}

func TestDecide_RejectionFailsFast(t *testing.T) {
	t.Parallel()

	eng := newFileEngine(t)
	ctx := context.Background()
	request := createExpense(t, eng, 750)

	_, err := eng.Submit(ctx, request.ID)
	require.NoError(t, err)

	final, err := eng.Decide(ctx, request.ID, "MGR001", models.DecisionReject, "no budget")
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusRejected, final.Status)

	// The finance slot is cancelled, not left pending.
	slot, ok := final.SlotFor("FIN001")
	require.True(t, ok)
	assert.Equal(t, models.SlotDecisionCancelled, slot.Decision)

	trail, err := eng.GetAuditTrail(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, countAction(trail, models.AuditApprovalRejected))

	// Nothing further is accepted on a terminal request.
	_, err = eng.Decide(ctx, request.ID, "FIN001", models.DecisionApprove, "")
	assert.ErrorIs(t, err, engine.ErrInvalidTransition)
}

func TestDecide_UnknownApprover(t *testing.T) {
	t.Parallel()

	eng := newFileEngine(t)
	ctx := context.Background()
	request := createExpense(t, eng, 100)

	_, err := eng.Submit(ctx, request.ID)
	require.NoError(t, err)

	_, err = eng.Decide(ctx, request.ID, "FIN001", models.DecisionApprove, "")
	assert.ErrorIs(t, err, engine.ErrUnknownApprover)

	trail, err := eng.GetAuditTrail(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, countAction(trail, models.AuditDecisionFailed))
}

func TestDecide_AlreadyDecided(t *testing.T) {
	t.Parallel()

	eng := newFileEngine(t)
	ctx := context.Background()
	request := createExpense(t, eng, 750)

	_, err := eng.Submit(ctx, request.ID)
	require.NoError(t, err)

	_, err = eng.Decide(ctx, request.ID, "MGR001", models.DecisionApprove, "")
	require.NoError(t, err)

	_, err = eng.Decide(ctx, request.ID, "MGR001", models.DecisionReject, "changed my mind")
	assert.ErrorIs(t, err, engine.ErrAlreadyDecided)

	current, err := eng.GetRequest(ctx, request.ID)
	require.NoError(t, err)

	slot, ok := current.SlotFor("MGR001")
	require.True(t, ok)
	assert.Equal(t, models.SlotDecisionApproved, slot.Decision)
}

// nextMonday returns a Monday at least a week out, so date validators that
// reject past dates stay satisfied regardless of when the test runs.
func nextMonday() time.Time {
	day := time.Now().AddDate(0, 0, 7)
	for day.Weekday() != time.Monday {
		day = day.AddDate(0, 0, 1)
	}

	return day
}

func TestPTO_BusinessDayRouting(t *testing.T) {
	t.Parallel()

	monday := nextMonday()

	tests := []struct {
		name      string
		end       time.Time
		approvers []string
	}{
		{name: "three business days", end: monday.AddDate(0, 0, 2), approvers: []string{"MGR001"}},
		{name: "six business days", end: monday.AddDate(0, 0, 7), approvers: []string{"MGR001", "HR001"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			eng := newFileEngine(t)
			ctx := context.Background()

			request, err := eng.CreateRequest(ctx, workflows.TypePTO, requester, "Vacation", "", "low", map[string]any{
				"start_date": monday.Format("2006-01-02"),
				"end_date":   tt.end.Format("2006-01-02"),
				"reason":     "family trip",
			})
			require.NoError(t, err)

			submitted, err := eng.Submit(ctx, request.ID)
			require.NoError(t, err)

			ids := make([]string, 0, len(submitted.Slots))
			for _, slot := range submitted.Slots {
				ids = append(ids, slot.Approver.ID)
			}

			assert.Equal(t, tt.approvers, ids)
		})
	}
}

func TestPTO_EndBeforeStartFailsValidation(t *testing.T) {
	t.Parallel()

	eng := newFileEngine(t)
	monday := nextMonday()

	_, err := eng.CreateRequest(context.Background(), workflows.TypePTO, requester, "Vacation", "", "", map[string]any{
		"start_date": monday.Format("2006-01-02"),
		"end_date":   monday.AddDate(0, 0, -3).Format("2006-01-02"),
	})
	assert.True(t, engine.IsValidationError(err))
}

func TestOnboarding_CompletesWithChecklist(t *testing.T) {
	t.Parallel()

	eng := newFileEngine(t)
	ctx := context.Background()

	request, err := eng.CreateRequest(ctx, workflows.TypeOnboarding, requester, "Onboard Jamie Lee", "", "high", map[string]any{
		"employee_name":  "Jamie Lee",
		"employee_email": "jamie.lee@company.com",
		"department":     "Engineering",
		"role":           "Senior Engineer",
		"start_date":     nextMonday().Format("2006-01-02"),
	})
	require.NoError(t, err)

	submitted, err := eng.Submit(ctx, request.ID)
	require.NoError(t, err)
	require.Len(t, submitted.Slots, 2)
	assert.Equal(t, "IT001", submitted.Slots[0].Approver.ID)
	assert.Equal(t, "HR001", submitted.Slots[1].Approver.ID)

	_, err = eng.Decide(ctx, request.ID, "IT001", models.DecisionApprove, "")
	require.NoError(t, err)

	final, err := eng.Decide(ctx, request.ID, "HR001", models.DecisionApprove, "")
	require.NoError(t, err)

	assert.Equal(t, models.RequestStatusCompleted, final.Status)
	assert.Equal(t, "generate_checklist", final.CurrentStep)

	checklist, ok := final.Payload["checklist"].([]workflows.ChecklistTask)
	require.True(t, ok)
	// Six base tasks plus three engineering-specific ones.
	assert.Len(t, checklist, 9)
	assert.Equal(t, 9, final.Payload["total_tasks"])

	trail, err := eng.GetAuditTrail(ctx, request.ID)
	require.NoError(t, err)
	// One for the approval step, one for the checklist action.
	assert.Equal(t, 2, countAction(trail, models.AuditStepCompleted))
}

func TestCancel(t *testing.T) {
	t.Parallel()

	eng := newFileEngine(t)
	ctx := context.Background()
	request := createExpense(t, eng, 750)

	_, err := eng.Submit(ctx, request.ID)
	require.NoError(t, err)

	_, err = eng.Cancel(ctx, request.ID, models.Identity{ID: "SOMEONE_ELSE"})
	assert.ErrorIs(t, err, engine.ErrNotRequester)

	cancelled, err := eng.Cancel(ctx, request.ID, requester)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusCancelled, cancelled.Status)

	for _, slot := range cancelled.Slots {
		assert.Equal(t, models.SlotDecisionCancelled, slot.Decision)
	}

	_, err = eng.Cancel(ctx, request.ID, requester)
	assert.ErrorIs(t, err, engine.ErrInvalidTransition)
}

func TestTimeoutCheck(t *testing.T) {
	t.Parallel()

	eng := newFileEngine(t)
	ctx := context.Background()
	request := createExpense(t, eng, 100)

	_, err := eng.Submit(ctx, request.ID)
	require.NoError(t, err)

	// Before the 72h step timeout nothing happens.
	escalated, err := eng.TimeoutCheck(ctx, request.ID, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, escalated)

	escalated, err = eng.TimeoutCheck(ctx, request.ID, time.Now().Add(73*time.Hour))
	require.NoError(t, err)
	assert.True(t, escalated)

	current, err := eng.GetRequest(ctx, request.ID)
	require.NoError(t, err)
	require.Len(t, current.Slots, 1)
	assert.Equal(t, "DIR001", current.Slots[0].Approver.ID)
	assert.Equal(t, models.SlotDecisionPending, current.Slots[0].Decision)

	trail, err := eng.GetAuditTrail(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, countAction(trail, models.AuditRequestEscalated))

	// The escalated approver can resolve the request.
	final, err := eng.Decide(ctx, request.ID, "DIR001", models.DecisionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusApproved, final.Status)
}

func TestTimeoutCheck_NoEscalationTargetHoldsPending(t *testing.T) {
	t.Parallel()

	eng := newFileEngine(t)
	ctx := context.Background()
	monday := nextMonday()

	request, err := eng.CreateRequest(ctx, workflows.TypePTO, requester, "Vacation", "", "", map[string]any{
		"start_date": monday.Format("2006-01-02"),
		"end_date":   monday.AddDate(0, 0, 2).Format("2006-01-02"),
	})
	require.NoError(t, err)

	_, err = eng.Submit(ctx, request.ID)
	require.NoError(t, err)

	// PTO review declares no escalation target; even a year later the step
	// just keeps waiting.
	escalated, err := eng.TimeoutCheck(ctx, request.ID, time.Now().AddDate(1, 0, 0))
	require.NoError(t, err)
	assert.False(t, escalated)
}

func TestConcurrentDecidesSerialize(t *testing.T) {
	t.Parallel()

	eng := newFileEngine(t)
	ctx := context.Background()
	request := createExpense(t, eng, 100)

	_, err := eng.Submit(ctx, request.ID)
	require.NoError(t, err)

	const attempts = 10

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)

	for range attempts {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if _, err := eng.Decide(ctx, request.ID, "MGR001", models.DecisionApprove, ""); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, succeeded)

	final, err := eng.GetRequest(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusApproved, final.Status)

	trail, err := eng.GetAuditTrail(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, countAction(trail, models.AuditApprovalApproved))
}

// flakyPersistence makes every audit append fail while tripped, proving the
// engine refuses to advance state it cannot record.
type flakyPersistence struct {
	persistence.Persistence

	mu   sync.Mutex
	fail bool
}

func (f *flakyPersistence) trip() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = true
}

func (f *flakyPersistence) failing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.fail
}

func (f *flakyPersistence) AuditRepository() persistence.AuditRepository {
	return &flakyAuditRepository{inner: f.Persistence.AuditRepository(), parent: f}
}

type flakyAuditRepository struct {
	inner  persistence.AuditRepository
	parent *flakyPersistence
}

func (r *flakyAuditRepository) Append(ctx context.Context, entry *models.AuditEntry) error {
	if r.parent.failing() {
		return persistence.ErrAuditAppendFailed
	}

	return r.inner.Append(ctx, entry)
}

func (r *flakyAuditRepository) ListByRequest(ctx context.Context, requestID string) ([]*models.AuditEntry, error) {
	return r.inner.ListByRequest(ctx, requestID)
}

func TestAuditAppendFailureAbortsTransition(t *testing.T) {
	t.Parallel()

	flaky := &flakyPersistence{Persistence: file.NewPersistence(t.TempDir())}
	eng := newTestEngine(t, flaky, nil)
	ctx := context.Background()

	request := createExpense(t, eng, 100)

	flaky.trip()

	_, err := eng.Submit(ctx, request.ID)
	assert.ErrorIs(t, err, engine.ErrAuditWriteFailed)

	// The stored request never left its prior committed state.
	current, err := eng.GetRequest(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusDraft, current.Status)
	assert.Empty(t, current.Slots)
}

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)

	return nil
}

func (p *recordingPublisher) types() []events.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()

	result := make([]events.EventType, 0, len(p.events))
	for _, event := range p.events {
		result = append(result, event.GetType())
	}

	return result
}

func TestLifecycleEventsPublished(t *testing.T) {
	t.Parallel()

	publisher := &recordingPublisher{}
	eng := newTestEngine(t, file.NewPersistence(t.TempDir()), publisher)
	ctx := context.Background()

	request := createExpense(t, eng, 750)

	_, err := eng.Submit(ctx, request.ID)
	require.NoError(t, err)

	_, err = eng.Decide(ctx, request.ID, "MGR001", models.DecisionApprove, "")
	require.NoError(t, err)

	_, err = eng.Decide(ctx, request.ID, "FIN001", models.DecisionApprove, "")
	require.NoError(t, err)

	assert.Equal(t, []events.EventType{
		events.RequestSubmittedEvent,
		events.ApprovalRequestedEvent,
		events.ApprovalRequestedEvent,
		events.ApprovalDecidedEvent,
		events.ApprovalDecidedEvent,
		events.RequestCompletedEvent,
	}, publisher.types())
}
