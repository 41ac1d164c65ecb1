// Package routing evaluates a request's routing rules into the ordered list
// of approvers the current approval step requires. Evaluation is a pure
// function of (rules, payload): the same payload always yields the same
// approver list in the same order.
package routing

import (
	"errors"
	"fmt"
	"time"

	"github.com/dukex/approvion/pkg/models"
)

// DerivedBusinessDays is the derived-value name predicates use to compare
// against the business-day span between the payload's start_date and
// end_date. Weekends are excluded.
const DerivedBusinessDays = "business_days"

var (
	// ErrNoRouteMatched indicates a misconfigured rule set: no rule matched
	// and no default approver set is configured. Surfaced, never retried.
	ErrNoRouteMatched = errors.New("no routing rule matched and no default approvers configured")

	// ErrUnresolvableValue indicates a predicate references a value the
	// payload cannot produce.
	ErrUnresolvableValue = errors.New("predicate value cannot be derived from payload")
)

// Evaluate computes the ordered, deduplicated approver list for a rule set.
func Evaluate(rules *models.RuleSet, payload map[string]any) ([]models.Identity, error) {
	approvers := make([]models.Identity, 0, 2)
	seen := make(map[string]bool)
	matched := false

	for _, rule := range rules.Rules {
		ok, err := matches(rule.When, payload)
		if err != nil {
			return nil, err
		}

		if !ok {
			continue
		}

		matched = true

		for _, approver := range rule.Approvers {
			if !seen[approver.ID] {
				seen[approver.ID] = true

				approvers = append(approvers, approver)
			}
		}

		if rules.Policy == models.RoutingFirstMatch {
			break
		}
	}

	if !matched {
		if len(rules.Default) == 0 {
			return nil, ErrNoRouteMatched
		}

		return rules.Default, nil
	}

	return approvers, nil
}

func matches(p models.Predicate, payload map[string]any) (bool, error) {
	if p.Always || p.Field == "" {
		return true, nil
	}

	value, err := resolve(p.Field, payload)
	if err != nil {
		return false, err
	}

	switch p.Op {
	case models.OpGreaterThan:
		return value > p.Value, nil
	case models.OpGreaterOrEqual:
		return value >= p.Value, nil
	case models.OpLessThan:
		return value < p.Value, nil
	case models.OpLessOrEqual:
		return value <= p.Value, nil
	case models.OpEqual:
		return value == p.Value, nil
	default:
		return false, fmt.Errorf("unknown comparison operator %q", p.Op)
	}
}

// resolve produces the numeric value a predicate compares against: a derived
// value, or a numeric payload field.
func resolve(field string, payload map[string]any) (float64, error) {
	if field == DerivedBusinessDays {
		return businessDaysFromPayload(payload)
	}

	raw, ok := payload[field]
	if !ok {
		return 0, fmt.Errorf("field %q: %w", field, ErrUnresolvableValue)
	}

	n, ok := models.ToNumber(raw)
	if !ok {
		return 0, fmt.Errorf("field %q is not numeric: %w", field, ErrUnresolvableValue)
	}

	return n, nil
}

func businessDaysFromPayload(payload map[string]any) (float64, error) {
	start, err := models.ParseDate(payload["start_date"])
	if err != nil {
		return 0, fmt.Errorf("start_date: %w", ErrUnresolvableValue)
	}

	end, err := models.ParseDate(payload["end_date"])
	if err != nil {
		return 0, fmt.Errorf("end_date: %w", ErrUnresolvableValue)
	}

	return float64(BusinessDays(start, end)), nil
}

// BusinessDays counts the weekdays in the inclusive range [start, end].
func BusinessDays(start, end time.Time) int {
	days := 0

	for current := start; !current.After(end); current = current.AddDate(0, 0, 1) {
		if wd := current.Weekday(); wd != time.Saturday && wd != time.Sunday {
			days++
		}
	}

	return days
}
