package models

// RoutingPolicy controls how matching rule buckets combine.
type RoutingPolicy string

const (
	// RoutingUnion collects the approvers of every matching rule, in rule
	// order (amount >= 500 yields manager and finance, not manager replaced
	// by finance).
	RoutingUnion RoutingPolicy = "union"

	// RoutingFirstMatch stops at the first matching rule.
	RoutingFirstMatch RoutingPolicy = "first_match"
)

// CompareOp is a comparison operator over a derived numeric value.
type CompareOp string

const (
	OpGreaterThan    CompareOp = "gt"
	OpGreaterOrEqual CompareOp = "gte"
	OpLessThan       CompareOp = "lt"
	OpLessOrEqual    CompareOp = "lte"
	OpEqual          CompareOp = "eq"
)

// Predicate is a boolean expression over payload-derived numeric values.
// The vocabulary is fixed: a predicate names either a numeric payload field
// or a well-known derived value (routing.DerivedBusinessDays). An empty
// predicate (Always) matches every payload.
type Predicate struct {
	Always bool      `json:"always,omitempty"`
	Field  string    `json:"field,omitempty"`
	Op     CompareOp `json:"op,omitempty"`
	Value  float64   `json:"value,omitempty"`
}

// Rule pairs a predicate with the approver set it routes to.
type Rule struct {
	When      Predicate  `json:"when"`
	Approvers []Identity `json:"approvers"`
}

// RuleSet is an ordered list of routing rules plus a combination policy and
// an optional default approver set used when no rule matches.
type RuleSet struct {
	Policy  RoutingPolicy `json:"policy"`
	Rules   []Rule        `json:"rules"`
	Default []Identity    `json:"default,omitempty"`
}
