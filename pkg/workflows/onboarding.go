package workflows

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dukex/approvion/pkg/models"
)

const TypeOnboarding = "onboarding"

// ChecklistHandlerName is the action handler the onboarding definition
// references for its checklist step.
const ChecklistHandlerName = "onboarding.checklist"

// ChecklistTask is one provisioning task generated for a new hire.
type ChecklistTask struct {
	Task           string  `json:"task"`
	Assignee       string  `json:"assignee"`
	Priority       string  `json:"priority"`
	EstimatedHours float64 `json:"estimated_hours"`
}

// Onboarding builds the employee onboarding workflow: form, a joint IT and
// HR approval, then an action step that generates the provisioning checklist
// once both have signed off.
func Onboarding() *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		Type:        TypeOnboarding,
		DisplayName: "Employee Onboarding",
		Description: "Onboard new employees with automated checklist",
		Steps: []*models.StepSpec{
			{
				Name:    "onboarding_details",
				Kind:    models.StepKindForm,
				Initial: true,
				Fields: []models.FieldSpec{
					{Name: "employee_name", Required: true, Validators: []models.FieldValidator{
						models.MinLength(2),
					}},
					{Name: "employee_email", Required: true, Validators: []models.FieldValidator{
						models.EmailAddress(),
					}},
					{Name: "department", Required: true},
					{Name: "start_date", Required: true, Validators: []models.FieldValidator{
						models.ISODate(),
						models.DateNotBefore(time.Now),
					}},
					{Name: "role", Required: false},
				},
				OnSuccess: "onboarding_review",
			},
			{
				Name:   "onboarding_review",
				Kind:   models.StepKindApproval,
				Policy: models.PolicyAll,
				Routing: &models.RuleSet{
					Policy: models.RoutingUnion,
					Rules: []models.Rule{
						{When: models.Predicate{Always: true}, Approvers: []models.Identity{IT, HR}},
					},
				},
				OnSuccess: "generate_checklist",
			},
			{
				Name:       "generate_checklist",
				Kind:       models.StepKindAction,
				Handler:    ChecklistHandlerName,
				ResolvesTo: models.RequestStatusCompleted,
			},
		},
		Summarize: summarizeOnboarding,
	}
}

// GenerateChecklist builds the provisioning checklist for an approved
// onboarding request, merged into the payload by the action step.
func GenerateChecklist(_ context.Context, request *models.Request) (map[string]any, error) {
	name, _ := request.Payload["employee_name"].(string)
	if name == "" {
		return nil, fmt.Errorf("payload is missing employee_name")
	}

	department, _ := request.Payload["department"].(string)
	department = strings.ToLower(department)
	role, _ := request.Payload["role"].(string)
	role = strings.ToLower(role)

	checklist := []ChecklistTask{
		{Task: "Create email account", Assignee: "IT", Priority: "high", EstimatedHours: 0.5},
		{Task: "Setup workstation", Assignee: "IT", Priority: "high", EstimatedHours: 2},
		{Task: "Provide building access badge", Assignee: "Facilities", Priority: "high", EstimatedHours: 0.5},
		{Task: "Complete new hire paperwork", Assignee: "HR", Priority: "high", EstimatedHours: 1},
		{Task: "Setup benefits enrollment", Assignee: "HR", Priority: "medium", EstimatedHours: 1},
		{Task: "Schedule orientation session", Assignee: "HR", Priority: "medium", EstimatedHours: 4},
	}

	if strings.Contains(department, "engineering") || strings.Contains(department, "dev") {
		checklist = append(checklist,
			ChecklistTask{Task: "Setup GitHub account", Assignee: "Engineering", Priority: "high", EstimatedHours: 0.5},
			ChecklistTask{Task: "Provide development environment access", Assignee: "Engineering", Priority: "high", EstimatedHours: 1},
			ChecklistTask{Task: "Assign onboarding buddy", Assignee: "Engineering Manager", Priority: "medium", EstimatedHours: 0},
		)
	}

	if strings.Contains(department, "sales") || strings.Contains(department, "marketing") {
		checklist = append(checklist,
			ChecklistTask{Task: "Setup CRM access", Assignee: "Sales Ops", Priority: "high", EstimatedHours: 0.5},
			ChecklistTask{Task: "Provide sales training materials", Assignee: "Sales Enablement", Priority: "medium", EstimatedHours: 1},
		)
	}

	for _, senior := range []string{"manager", "director", "vp"} {
		if strings.Contains(role, senior) {
			checklist = append(checklist,
				ChecklistTask{Task: "Setup conference room booking access", Assignee: "IT", Priority: "medium", EstimatedHours: 0.5})

			break
		}
	}

	return map[string]any{
		"checklist":       checklist,
		"total_tasks":     len(checklist),
		"completed_tasks": 0,
	}, nil
}

func summarizeOnboarding(payload map[string]any) string {
	role, _ := payload["role"].(string)
	if role == "" {
		role = "Not specified"
	}

	return fmt.Sprintf("New Employee Onboarding: %v. Email: %v. Department: %v. Role: %s. Start Date: %v",
		payload["employee_name"], payload["employee_email"], payload["department"], role, payload["start_date"])
}
