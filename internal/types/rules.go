package types

/*
 * Domain types for rule evaluation.
 *
 * Provides Rule, Condition, and Action structures used by internal/rules for
 * compilation and evaluation, and by internal/translate as the strict schema
 * every translated rule must satisfy before reaching the engine. These types
 * are wire-format agnostic; HTTP DTO conversion happens at the server
 * boundary.
 *
 * Key types:
 *   - Rule: complete rule definition (scope, conditions, action, statistics)
 *   - Condition: single comparison against one record field
 *   - Action: tagged variant (flag, delete, modify, ready)
 *
 * Conditions are an ordered else-if chain: the first satisfied condition
 * selects the rule's action. They are NOT an AND group.
 */

// Scope determines which client contexts a rule applies to.
type Scope string

const (
	// ScopeGlobal rules apply to every client.
	ScopeGlobal Scope = "global"
	// ScopeClient rules apply only within their named client context and
	// take precedence over global rules touching the same fields.
	ScopeClient Scope = "client"
)

// Operator is the comparison operator of a single condition.
type Operator string

const (
	OpLt          Operator = "lt"
	OpGt          Operator = "gt"
	OpEq          Operator = "eq"
	OpNeq         Operator = "neq"
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
)

// ParseOperator validates a wire-format operator string.
// Rejects anything outside the enumerated set; the engine never sees
// free-form operator text.
func ParseOperator(s string) (Operator, bool) {
	switch Operator(s) {
	case OpLt, OpGt, OpEq, OpNeq, OpContains, OpNotContains:
		return Operator(s), true
	}
	return "", false
}

// ActionKind is the discriminant of the Action tagged variant.
type ActionKind string

const (
	// ActionFlag marks the record for review and sets its issue description.
	ActionFlag ActionKind = "flag"
	// ActionDelete removes the record from the batch's working set.
	ActionDelete ActionKind = "delete"
	// ActionModify writes TargetValue into TargetField of the working copy.
	ActionModify ActionKind = "modify"
	// ActionReady marks the record ready to load without changing data.
	ActionReady ActionKind = "ready"
)

// ParseActionKind validates a wire-format action string.
func ParseActionKind(s string) (ActionKind, bool) {
	switch ActionKind(s) {
	case ActionFlag, ActionDelete, ActionModify, ActionReady:
		return ActionKind(s), true
	}
	return "", false
}

// Action is what a matched rule does to a record. TargetField/TargetValue are
// meaningful only for ActionModify.
type Action struct {
	Kind        ActionKind `json:"kind"`
	TargetField string     `json:"target_field,omitempty"`
	TargetValue any        `json:"target_value,omitempty"`
}

// Condition is a single comparison with a record field.
type Condition struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

// Rule is a complete cleaning rule definition.
// Confidence is propagated from the translation collaborator (or the pattern
// fallback) so callers can gate low-confidence destructive actions.
type Rule struct {
	RuleID        RuleID      `json:"rule_id"`
	Name          string      `json:"name"`
	Description   string      `json:"description,omitempty"`
	Scope         Scope       `json:"scope"`
	ClientContext string      `json:"client_context,omitempty"`
	Conditions    []Condition `json:"conditions"`
	Action        Action      `json:"action"`
	IsPermanent   bool        `json:"is_permanent"`
	IsActive      bool        `json:"is_active"`
	Confidence    float64     `json:"confidence"`
	UsageCount    int         `json:"usage_count"`
	SuccessRate   float64     `json:"success_rate"`
}

// Fields returns the set of record fields this rule touches, in declaration
// order without duplicates. Override resolution suppresses global rules whose
// field set intersects a client rule's field set.
func (r *Rule) Fields() []string {
	seen := make(map[string]struct{}, len(r.Conditions))
	var out []string
	for _, c := range r.Conditions {
		if _, ok := seen[c.Field]; ok {
			continue
		}
		seen[c.Field] = struct{}{}
		out = append(out, c.Field)
	}
	return out
}
