// internal/translate/patterns_test.go
package translate

import (
	"context"
	"testing"

	"github.com/dataherd/dataherd/internal/rules"
	"github.com/dataherd/dataherd/internal/types"
)

func translatePattern(t *testing.T, text, client string) []types.Rule {
	t.Helper()
	out, err := NewPatternTranslator().Translate(context.Background(), text, client)
	if err != nil {
		t.Fatalf("Translate() error = %v, want nil", err)
	}
	if len(out) == 0 {
		t.Fatal("Translate() returned no rules")
	}
	for i := range out {
		if err := rules.Validate(&out[i]); err != nil {
			t.Fatalf("rule %d fails validation: %v", i, err)
		}
	}
	return out
}

func TestPatternTranslator_WeightRange(t *testing.T) {
	out := translatePattern(t, "Flag any weights below 400 lbs or above 1500 lbs", "")

	if len(out) != 2 {
		t.Fatalf("len(rules) = %d, want 2", len(out))
	}
	low, high := out[0], out[1]
	if low.Conditions[0].Operator != types.OpLt || low.Conditions[0].Value != 400.0 {
		t.Errorf("low condition = %+v, want lt 400", low.Conditions[0])
	}
	if high.Conditions[0].Operator != types.OpGt || high.Conditions[0].Value != 1500.0 {
		t.Errorf("high condition = %+v, want gt 1500", high.Conditions[0])
	}
	if low.Action.Kind != types.ActionFlag {
		t.Errorf("action = %s, want flag", low.Action.Kind)
	}
	if low.Confidence != 0.7 {
		t.Errorf("confidence = %v, want 0.7", low.Confidence)
	}
}

func TestPatternTranslator_WeightDelete(t *testing.T) {
	out := translatePattern(t, "Remove records with weight below 100", "")

	if len(out) != 1 {
		t.Fatalf("len(rules) = %d, want 1", len(out))
	}
	if out[0].Action.Kind != types.ActionDelete {
		t.Errorf("action = %s, want delete", out[0].Action.Kind)
	}
	if out[0].Conditions[0].Value != 100.0 {
		t.Errorf("threshold = %v, want 100", out[0].Conditions[0].Value)
	}
}

func TestPatternTranslator_BreedStandardization(t *testing.T) {
	out := translatePattern(t, "Standardize breed names", "")

	if len(out) != len(knownBreeds) {
		t.Fatalf("len(rules) = %d, want one per known breed (%d)", len(out), len(knownBreeds))
	}
	first := out[0]
	if first.Action.Kind != types.ActionModify {
		t.Fatalf("action = %s, want modify", first.Action.Kind)
	}
	if first.Action.TargetField != "breed" || first.Action.TargetValue != "Angus" {
		t.Errorf("action = %+v, want modify breed to Angus", first.Action)
	}
	if len(first.Conditions) != 2 {
		t.Fatalf("len(conditions) = %d, want lowercase and uppercase variants", len(first.Conditions))
	}
	if first.Conditions[0].Value != "angus" || first.Conditions[1].Value != "ANGUS" {
		t.Errorf("conditions = %+v, want angus/ANGUS variants", first.Conditions)
	}
}

func TestPatternTranslator_MissingDate(t *testing.T) {
	out := translatePattern(t, "Flag records with missing birth dates", "")

	if len(out) != 1 {
		t.Fatalf("len(rules) = %d, want 1", len(out))
	}
	cond := out[0].Conditions[0]
	if cond.Field != "birth_date" || cond.Operator != types.OpEq || cond.Value != "" {
		t.Errorf("condition = %+v, want birth_date eq empty", cond)
	}
}

func TestPatternTranslator_DuplicatesLowConfidence(t *testing.T) {
	out := translatePattern(t, "Remove duplicate entries", "")

	var found bool
	for _, r := range out {
		if r.Action.Kind == types.ActionFlag && r.Confidence < 0.5 {
			found = true
		}
	}
	if !found {
		t.Errorf("rules = %+v, want a low-confidence review flag for duplicates", out)
	}
}

func TestPatternTranslator_UnrecognizedFallsBackToManualReview(t *testing.T) {
	out := translatePattern(t, "Do something mysterious to the data", "")

	if len(out) != 1 {
		t.Fatalf("len(rules) = %d, want 1", len(out))
	}
	if out[0].Confidence != 0.3 {
		t.Errorf("confidence = %v, want 0.3", out[0].Confidence)
	}
	if out[0].Action.Kind != types.ActionFlag {
		t.Errorf("action = %s, want flag", out[0].Action.Kind)
	}
}

func TestPatternTranslator_ClientContextSetsScope(t *testing.T) {
	out := translatePattern(t, "Flag weights below 450", "Elanco")

	for _, r := range out {
		if r.Scope != types.ScopeClient {
			t.Errorf("scope = %s, want client", r.Scope)
		}
		if r.ClientContext != "Elanco" {
			t.Errorf("client context = %q, want Elanco", r.ClientContext)
		}
	}
}

func TestService_RejectsEmptyAndOversizedText(t *testing.T) {
	svc := NewService(nil, discardLogger())

	if _, err := svc.Translate(context.Background(), "   ", ""); err == nil {
		t.Error("Translate(blank) = nil error, want validation failure")
	}

	long := make([]byte, types.MaxRuleTextLength+1)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := svc.Translate(context.Background(), string(long), ""); err == nil {
		t.Error("Translate(oversized) = nil error, want validation failure")
	}
}
