package workflows

import (
	"fmt"
	"time"

	"github.com/dukex/approvion/pkg/models"
)

const TypeExpense = "expense"

// ExpenseCategories are the reimbursable expense classes.
var ExpenseCategories = []string{"travel", "meals", "equipment", "software", "training", "other"}

const financeReviewThreshold = 500.0

// Expense builds the expense reimbursement workflow. The manager always
// reviews; finance joins at or above the threshold. The review step escalates
// to the director when nobody decides within the timeout.
func Expense() *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		Type:        TypeExpense,
		DisplayName: "Expense Reimbursement",
		Description: "Request reimbursement for business expenses",
		Steps: []*models.StepSpec{
			{
				Name:    "expense_details",
				Kind:    models.StepKindForm,
				Initial: true,
				Fields: []models.FieldSpec{
					{Name: "amount", Required: true, Validators: []models.FieldValidator{
						models.PositiveNumber(),
					}},
					{Name: "category", Required: true, Validators: []models.FieldValidator{
						models.OneOf(ExpenseCategories...),
					}},
					{Name: "description", Required: true, Validators: []models.FieldValidator{
						models.MinLength(10),
					}},
					{Name: "receipt_url", Required: false},
				},
				OnSuccess: "expense_review",
			},
			{
				Name:    "expense_review",
				Kind:    models.StepKindApproval,
				Policy:  models.PolicyAll,
				Timeout: 72 * time.Hour,
				Routing: &models.RuleSet{
					Policy: models.RoutingUnion,
					Rules: []models.Rule{
						{When: models.Predicate{Always: true}, Approvers: []models.Identity{Manager}},
						{
							When:      models.Predicate{Field: "amount", Op: models.OpGreaterOrEqual, Value: financeReviewThreshold},
							Approvers: []models.Identity{Finance},
						},
					},
				},
				EscalateTo: &models.RuleSet{
					Policy: models.RoutingFirstMatch,
					Rules: []models.Rule{
						{When: models.Predicate{Always: true}, Approvers: []models.Identity{Director}},
					},
				},
			},
		},
		Prepare:   prepareExpense,
		Summarize: summarizeExpense,
	}
}

// prepareExpense normalizes the amount to a float so routing comparisons and
// stored payloads agree regardless of how the client encoded it.
func prepareExpense(payload map[string]any) map[string]any {
	if amount, ok := models.ToNumber(payload["amount"]); ok {
		payload["amount"] = amount
	}

	return payload
}

func summarizeExpense(payload map[string]any) string {
	amount, _ := models.ToNumber(payload["amount"])
	category, _ := payload["category"].(string)
	description, _ := payload["description"].(string)

	summary := fmt.Sprintf("Expense Reimbursement: $%.2f. Category: %s. Description: %s",
		amount, category, description)

	if receipt, ok := payload["receipt_url"].(string); ok && receipt != "" {
		summary += fmt.Sprintf(". Receipt: %s", receipt)
	}

	return summary
}
