// internal/rules/evaluate.go
package rules

import (
	"fmt"

	"github.com/dataherd/dataherd/internal/types"
)

/*
 * Rule evaluation orchestration.
 *
 * Evaluates a resolved rule set against a batch of records and tabulates
 * ProposedChange value objects. The engine never mutates its input records;
 * it works on cloned field maps and leaves persistence to a single auditable
 * apply step in the processor.
 *
 * Evaluation flow per record:
 *   1. Rules run in resolved order (client overrides first, then surviving
 *      globals).
 *   2. Within a rule, conditions are an else-if chain: first satisfied
 *      condition selects the rule's action, remaining conditions are skipped.
 *   3. delete short-circuits: no later rule sees a deleted record.
 *   4. modify writes through to the working copy, so later rules in the same
 *      pass observe the modified value.
 *   5. lt/gt against a missing or non-numeric field never match; each such
 *      (record, field) pair surfaces once as a distinct unparseable flag.
 */

// ProposedChange is one effective action the engine proposes for a record.
type ProposedChange struct {
	RecordID   types.RecordID   `json:"record_id"`
	Field      string           `json:"field,omitempty"`
	Before     any              `json:"before,omitempty"`
	After      any              `json:"after,omitempty"`
	Action     types.ActionKind `json:"action"`
	RuleID     types.RuleID     `json:"rule_id"`
	RuleName   string           `json:"rule_name,omitempty"`
	Confidence float64          `json:"confidence"`
	Issue      string           `json:"issue,omitempty"`
}

// EvalResult is the outcome of one engine pass over a batch.
type EvalResult struct {
	Changes   []ProposedChange
	Untouched int
}

// Engine evaluates resolved rule sets against batches of records.
// Stateless; a single instance is shared by the processor.
type Engine struct{}

// NewEngine creates a rule engine instance.
func NewEngine() *Engine {
	return &Engine{}
}

// Evaluate runs the full pipeline: override resolution, compilation, and
// per-record evaluation. Records already deleted by an earlier commit are
// excluded from the working set. Input records are never mutated.
func (e *Engine) Evaluate(records []types.Record, rules []types.Rule, clientContext string) (EvalResult, error) {
	resolved := ResolveRuleSet(rules, clientContext)

	compiled := make([]*CompiledRule, 0, len(resolved))
	for i := range resolved {
		cr, err := Compile(&resolved[i])
		if err != nil {
			return EvalResult{}, fmt.Errorf("rule %q: %w", resolved[i].Name, err)
		}
		compiled = append(compiled, cr)
	}

	var result EvalResult
	for i := range records {
		rec := &records[i]
		if rec.Status == types.StatusDeleted {
			continue
		}
		changes := evaluateRecord(rec, compiled)
		if len(changes) == 0 {
			result.Untouched++
			continue
		}
		result.Changes = append(result.Changes, changes...)
	}
	return result, nil
}

// evaluateRecord runs every compiled rule against one record's working copy.
func evaluateRecord(rec *types.Record, rules []*CompiledRule) []ProposedChange {
	working := rec.Current.Clone()
	flaggedUnparseable := make(map[string]struct{})
	var changes []ProposedChange

	for _, rule := range rules {
		matchedIdx, unparseable := evaluateRule(rule, working)

		for _, field := range unparseable {
			if _, seen := flaggedUnparseable[field]; seen {
				continue
			}
			flaggedUnparseable[field] = struct{}{}
			changes = append(changes, ProposedChange{
				RecordID:   rec.RecordID,
				Field:      field,
				Before:     working[field],
				After:      working[field],
				Action:     types.ActionFlag,
				RuleID:     rule.RuleID,
				RuleName:   rule.Name,
				Confidence: rule.Confidence,
				Issue:      fmt.Sprintf("unparseable field %q", field),
			})
		}

		if matchedIdx < 0 {
			continue
		}

		cond := rule.Conditions[matchedIdx]
		switch rule.Action.Kind {
		case types.ActionFlag:
			changes = append(changes, ProposedChange{
				RecordID:   rec.RecordID,
				Field:      cond.Field,
				Before:     working[cond.Field],
				After:      working[cond.Field],
				Action:     types.ActionFlag,
				RuleID:     rule.RuleID,
				RuleName:   rule.Name,
				Confidence: rule.Confidence,
				Issue:      rule.Name,
			})

		case types.ActionDelete:
			changes = append(changes, ProposedChange{
				RecordID:   rec.RecordID,
				Field:      cond.Field,
				Before:     working[cond.Field],
				Action:     types.ActionDelete,
				RuleID:     rule.RuleID,
				RuleName:   rule.Name,
				Confidence: rule.Confidence,
			})
			// Deleted records leave the working set for all later rules
			return changes

		case types.ActionModify:
			before := working[rule.Action.TargetField]
			working[rule.Action.TargetField] = rule.Action.TargetValue
			changes = append(changes, ProposedChange{
				RecordID:   rec.RecordID,
				Field:      rule.Action.TargetField,
				Before:     before,
				After:      rule.Action.TargetValue,
				Action:     types.ActionModify,
				RuleID:     rule.RuleID,
				RuleName:   rule.Name,
				Confidence: rule.Confidence,
			})

		case types.ActionReady:
			changes = append(changes, ProposedChange{
				RecordID:   rec.RecordID,
				Field:      cond.Field,
				Before:     working[cond.Field],
				After:      working[cond.Field],
				Action:     types.ActionReady,
				RuleID:     rule.RuleID,
				RuleName:   rule.Name,
				Confidence: rule.Confidence,
			})
		}
	}

	return changes
}

// evaluateRule tries conditions in declaration order and returns the index of
// the first satisfied one, or -1. Unparseable numeric fields encountered
// along the way are collected regardless of the match outcome.
func evaluateRule(rule *CompiledRule, working types.FieldMap) (int, []string) {
	var unparseable []string
	matched := -1

	for i, cond := range rule.Conditions {
		value, present := working[cond.Field]
		if !present || value == nil {
			if cond.Numeric {
				unparseable = append(unparseable, cond.Field)
			}
			continue
		}

		target := cond.Value
		if cond.Numeric {
			// pre-coerced at compile time
			target = cond.Threshold
		}
		ok, failed := Compare(cond.Operator, value, target)
		if failed {
			unparseable = append(unparseable, cond.Field)
			continue
		}
		if ok {
			matched = i
			break
		}
	}

	return matched, unparseable
}
