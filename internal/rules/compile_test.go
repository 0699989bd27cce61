// internal/rules/compile_test.go
package rules

import (
	"errors"
	"strings"
	"testing"

	"github.com/dataherd/dataherd/internal/types"
)

func validRule() types.Rule {
	return types.Rule{
		RuleID: types.NewRuleID(),
		Name:   "underweight flag",
		Scope:  types.ScopeGlobal,
		Conditions: []types.Condition{
			{Field: "weight", Operator: types.OpLt, Value: 400.0},
		},
		Action:     types.Action{Kind: types.ActionFlag},
		IsActive:   true,
		Confidence: 0.9,
	}
}

func TestCompile_SimpleRule(t *testing.T) {
	rule := validRule()
	compiled, err := Compile(&rule)
	if err != nil {
		t.Fatalf("Compile() error = %v, want nil", err)
	}
	if len(compiled.Conditions) != 1 {
		t.Fatalf("len(Conditions) = %d, want 1", len(compiled.Conditions))
	}
	cond := compiled.Conditions[0]
	if !cond.Numeric {
		t.Error("Numeric = false, want true for lt")
	}
	if cond.Threshold != 400.0 {
		t.Errorf("Threshold = %v, want 400", cond.Threshold)
	}
}

func TestCompile_StringThresholdCoerces(t *testing.T) {
	rule := validRule()
	rule.Conditions[0].Value = "400"
	compiled, err := Compile(&rule)
	if err != nil {
		t.Fatalf("Compile() error = %v, want nil", err)
	}
	if compiled.Conditions[0].Threshold != 400.0 {
		t.Errorf("Threshold = %v, want 400", compiled.Conditions[0].Threshold)
	}
}

func TestValidate_Invariants(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*types.Rule)
		wantErr error
	}{
		{"no conditions", func(r *types.Rule) { r.Conditions = nil }, types.ErrNoConditions},
		{"client scope without context", func(r *types.Rule) { r.Scope = types.ScopeClient }, types.ErrClientScopeWithoutContext},
		{"unknown scope", func(r *types.Rule) { r.Scope = "regional" }, types.ErrUnknownScope},
		{"unknown operator", func(r *types.Rule) { r.Conditions[0].Operator = "matches" }, types.ErrUnknownOperator},
		{"unknown action", func(r *types.Rule) { r.Action.Kind = "explode" }, types.ErrUnknownAction},
		{"modify without target", func(r *types.Rule) {
			r.Action = types.Action{Kind: types.ActionModify}
		}, types.ErrModifyWithoutTarget},
		{"empty field", func(r *types.Rule) { r.Conditions[0].Field = "" }, types.ErrEmptyField},
		{"field name too long", func(r *types.Rule) {
			r.Conditions[0].Field = strings.Repeat("f", types.MaxFieldNameLength+1)
		}, types.ErrFieldNameTooLong},
		{"non-numeric threshold", func(r *types.Rule) {
			r.Conditions[0].Value = "heavy"
		}, types.ErrNonNumericThreshold},
		{"too many conditions", func(r *types.Rule) {
			conds := make([]types.Condition, types.MaxConditionsPerRule+1)
			for i := range conds {
				conds[i] = types.Condition{Field: "weight", Operator: types.OpEq, Value: i}
			}
			r.Conditions = conds
		}, types.ErrTooManyConditions},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := validRule()
			tt.mutate(&rule)
			err := Validate(&rule)
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !errors.Is(err, types.ErrValidation) {
				t.Errorf("error does not wrap ErrValidation: %v", err)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error does not wrap %v: %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_ClientScopeWithContext(t *testing.T) {
	rule := validRule()
	rule.Scope = types.ScopeClient
	rule.ClientContext = "Elanco"
	if err := Validate(&rule); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
}
