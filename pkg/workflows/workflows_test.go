package workflows_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/dukex/approvion/pkg/engine"
	"github.com/dukex/approvion/pkg/lock"
	"github.com/dukex/approvion/pkg/models"
	"github.com/dukex/approvion/pkg/persistence/file"
	"github.com/dukex/approvion/pkg/registry"
	"github.com/dukex/approvion/pkg/workflows"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefinitionsAreValid(t *testing.T) {
	t.Parallel()

	for _, def := range []*models.WorkflowDefinition{
		workflows.PTO(),
		workflows.Expense(),
		workflows.Onboarding(),
	} {
		assert.NoError(t, def.Validate(), def.Type)
	}
}

func TestRegisterAll(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	persist := file.NewPersistence(t.TempDir())
	reg := registry.NewRegistry(logger)
	eng := engine.New(reg, persist, nil, lock.NewKeyedMutex(), logger)

	require.NoError(t, workflows.RegisterAll(reg, eng))
	assert.ElementsMatch(t, []string{"pto", "expense", "onboarding"}, reg.Types())

	// The registry is frozen afterwards.
	err := reg.Register(workflows.PTO())
	assert.ErrorIs(t, err, registry.ErrRegistryFrozen)
}

func TestPTOPrepareDerivesBusinessDays(t *testing.T) {
	t.Parallel()

	def := workflows.PTO()
	require.NotNil(t, def.Prepare)

	payload := def.Prepare(map[string]any{
		"start_date": "2025-01-15",
		"end_date":   "2025-01-22",
	})
	assert.Equal(t, 6, payload["business_days"])

	// Unparseable dates leave the payload untouched; form validation reports them.
	payload = def.Prepare(map[string]any{"start_date": "soon"})
	_, ok := payload["business_days"]
	assert.False(t, ok)
}

func TestExpensePrepareNormalizesAmount(t *testing.T) {
	t.Parallel()

	def := workflows.Expense()
	require.NotNil(t, def.Prepare)

	payload := def.Prepare(map[string]any{"amount": "499.99"})
	assert.InDelta(t, 499.99, payload["amount"], 0.001)
}

func TestSummaries(t *testing.T) {
	t.Parallel()

	pto := workflows.PTO().Summarize(map[string]any{
		"start_date":    "2025-06-02",
		"end_date":      "2025-06-06",
		"business_days": 5,
		"reason":        "family trip",
	})
	assert.Contains(t, pto, "2025-06-02")
	assert.Contains(t, pto, "5 business days")
	assert.Contains(t, pto, "family trip")

	expense := workflows.Expense().Summarize(map[string]any{
		"amount":      499.99,
		"category":    "travel",
		"description": "Conference flights",
	})
	assert.Contains(t, expense, "$499.99")
	assert.Contains(t, expense, "travel")

	onboarding := workflows.Onboarding().Summarize(map[string]any{
		"employee_name":  "Jamie Lee",
		"employee_email": "jamie.lee@company.com",
		"department":     "Engineering",
		"start_date":     "2025-09-01",
	})
	assert.Contains(t, onboarding, "Jamie Lee")
	assert.Contains(t, onboarding, "Not specified")
}

func TestGenerateChecklist(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		department    string
		role          string
		expectedTasks int
	}{
		{name: "base tasks only", department: "Operations", role: "Analyst", expectedTasks: 6},
		{name: "engineering adds three", department: "Engineering", role: "Engineer", expectedTasks: 9},
		{name: "sales adds two", department: "Sales", role: "Account Exec", expectedTasks: 8},
		{name: "senior role adds one", department: "Marketing", role: "Marketing Director", expectedTasks: 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			request := &models.Request{
				ID: "req-1",
				Payload: map[string]any{
					"employee_name": "Jamie Lee",
					"department":    tt.department,
					"role":          tt.role,
				},
			}

			result, err := workflows.GenerateChecklist(context.Background(), request)
			require.NoError(t, err)

			checklist, ok := result["checklist"].([]workflows.ChecklistTask)
			require.True(t, ok)
			assert.Len(t, checklist, tt.expectedTasks)
			assert.Equal(t, tt.expectedTasks, result["total_tasks"])
			assert.Equal(t, 0, result["completed_tasks"])
		})
	}
}

func TestGenerateChecklistRequiresEmployeeName(t *testing.T) {
	t.Parallel()

	request := &models.Request{ID: "req-1", Payload: map[string]any{}}

	_, err := workflows.GenerateChecklist(context.Background(), request)
	assert.Error(t, err)
}
