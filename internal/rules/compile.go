// internal/rules/compile.go
package rules

import (
	"fmt"

	"github.com/dataherd/dataherd/internal/types"
)

/*
 * Rule compilation and validation.
 *
 * Compiles types.Rule to CompiledRule with validated schema invariants and
 * pre-coerced numeric thresholds. Enforcing invariants during compilation
 * moves error detection to rule creation time (translation boundary, rule
 * store writes) rather than evaluation time; the engine itself only ever sees
 * rules that already validated cleanly.
 *
 * Conditions keep their declaration order: evaluation is an else-if chain and
 * the first satisfied condition wins, so reordering would change semantics.
 */

// CompiledCondition is a pre-processed condition ready for evaluation.
// Threshold holds the pre-coerced numeric comparison value for lt/gt.
type CompiledCondition struct {
	Field     string
	Operator  types.Operator
	Value     any
	Threshold float64
	Numeric   bool
}

// CompiledRule is fully validated and ready for evaluation.
type CompiledRule struct {
	RuleID     types.RuleID
	Name       string
	Scope      types.Scope
	Conditions []CompiledCondition
	Action     types.Action
	Confidence float64
}

// Validate checks a rule against the schema invariants.
// Every violation wraps types.ErrValidation plus the specific invariant
// sentinel so callers learn exactly what failed.
func Validate(rule *types.Rule) error {
	switch rule.Scope {
	case types.ScopeGlobal:
	case types.ScopeClient:
		if rule.ClientContext == "" {
			return types.Validation(types.ErrClientScopeWithoutContext)
		}
	default:
		return types.Validation(types.ErrUnknownScope)
	}

	if len(rule.Conditions) == 0 {
		return types.Validation(types.ErrNoConditions)
	}
	if len(rule.Conditions) > types.MaxConditionsPerRule {
		return types.Validation(types.ErrTooManyConditions)
	}

	for i, cond := range rule.Conditions {
		if cond.Field == "" {
			return types.Validation(fmt.Errorf("condition %d: %w", i, types.ErrEmptyField))
		}
		if len(cond.Field) > types.MaxFieldNameLength {
			return types.Validation(fmt.Errorf("condition %d: %w", i, types.ErrFieldNameTooLong))
		}
		if _, ok := types.ParseOperator(string(cond.Operator)); !ok {
			return types.Validation(fmt.Errorf("condition %d: %w: %q", i, types.ErrUnknownOperator, cond.Operator))
		}
		if cond.Operator == types.OpLt || cond.Operator == types.OpGt {
			if _, ok := toFloat64(cond.Value); !ok {
				return types.Validation(fmt.Errorf("condition %d: %w", i, types.ErrNonNumericThreshold))
			}
		}
	}

	if _, ok := types.ParseActionKind(string(rule.Action.Kind)); !ok {
		return types.Validation(fmt.Errorf("%w: %q", types.ErrUnknownAction, rule.Action.Kind))
	}
	if rule.Action.Kind == types.ActionModify && rule.Action.TargetField == "" {
		return types.Validation(types.ErrModifyWithoutTarget)
	}

	return nil
}

// Compile validates and pre-processes a rule for evaluation.
func Compile(rule *types.Rule) (*CompiledRule, error) {
	if err := Validate(rule); err != nil {
		return nil, err
	}

	compiled := &CompiledRule{
		RuleID:     rule.RuleID,
		Name:       rule.Name,
		Scope:      rule.Scope,
		Action:     rule.Action,
		Confidence: rule.Confidence,
		Conditions: make([]CompiledCondition, 0, len(rule.Conditions)),
	}

	for _, cond := range rule.Conditions {
		cc := CompiledCondition{
			Field:    cond.Field,
			Operator: cond.Operator,
			Value:    cond.Value,
		}
		if cond.Operator == types.OpLt || cond.Operator == types.OpGt {
			// Validate already proved this coerces
			cc.Threshold, _ = toFloat64(cond.Value)
			cc.Numeric = true
		}
		compiled.Conditions = append(compiled.Conditions, cc)
	}

	return compiled, nil
}
