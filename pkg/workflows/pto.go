package workflows

import (
	"fmt"
	"time"

	"github.com/dukex/approvion/pkg/models"
	"github.com/dukex/approvion/pkg/routing"
)

const TypePTO = "pto"

// PTO builds the paid-time-off workflow: one form step, one approval step.
// The manager always reviews; HR joins when the request spans more than
// three business days.
func PTO() *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		Type:        TypePTO,
		DisplayName: "PTO Request",
		Description: "Request paid time off with manager approval",
		Steps: []*models.StepSpec{
			{
				Name:    "pto_details",
				Kind:    models.StepKindForm,
				Initial: true,
				Fields: []models.FieldSpec{
					{Name: "start_date", Required: true, Validators: []models.FieldValidator{
						models.ISODate(),
						models.DateNotBefore(time.Now),
					}},
					{Name: "end_date", Required: true, Validators: []models.FieldValidator{
						models.ISODate(),
						models.DateNotEarlierThan("start_date"),
					}},
					{Name: "reason", Required: false},
				},
				OnSuccess: "pto_review",
			},
			{
				Name:   "pto_review",
				Kind:   models.StepKindApproval,
				Policy: models.PolicyAll,
				Routing: &models.RuleSet{
					Policy: models.RoutingUnion,
					Rules: []models.Rule{
						{When: models.Predicate{Always: true}, Approvers: []models.Identity{Manager}},
						{
							When:      models.Predicate{Field: routing.DerivedBusinessDays, Op: models.OpGreaterThan, Value: 3},
							Approvers: []models.Identity{HR},
						},
					},
				},
			},
		},
		Prepare:   preparePTO,
		Summarize: summarizePTO,
	}
}

// preparePTO snapshots the business-day count into the payload so routing,
// audits, and notifications all see the same figure.
func preparePTO(payload map[string]any) map[string]any {
	start, err := models.ParseDate(payload["start_date"])
	if err != nil {
		return payload
	}

	end, err := models.ParseDate(payload["end_date"])
	if err != nil {
		return payload
	}

	payload["business_days"] = routing.BusinessDays(start, end)

	return payload
}

func summarizePTO(payload map[string]any) string {
	reason, _ := payload["reason"].(string)
	if reason == "" {
		reason = "Not specified"
	}

	days, _ := models.ToNumber(payload["business_days"])

	return fmt.Sprintf("PTO Request: %v to %v (%d business days). Reason: %s",
		payload["start_date"], payload["end_date"], int(days), reason)
}
