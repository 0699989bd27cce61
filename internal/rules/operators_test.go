// internal/rules/operators_test.go
package rules

import (
	"testing"

	"github.com/dataherd/dataherd/internal/types"
)

func TestCompare_NumericLessThan(t *testing.T) {
	tests := []struct {
		name        string
		value       any
		target      any
		matched     bool
		unparseable bool
	}{
		{"float below threshold", 350.0, 400.0, true, false},
		{"float at threshold", 400.0, 400.0, false, false},
		{"float above threshold", 470.0, 400.0, false, false},
		{"numeric string coerces", "350", 400.0, true, false},
		{"numeric string with spaces", " 350 ", 400.0, true, false},
		{"int value", 350, 400.0, true, false},
		{"non-numeric string", "heavy", 400.0, false, true},
		{"empty string", "", 400.0, false, true},
		{"whitespace string", "   ", 400.0, false, true},
		{"bool value", true, 400.0, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matched, unparseable := Compare(types.OpLt, tt.value, tt.target)
			if matched != tt.matched {
				t.Errorf("matched = %v, want %v", matched, tt.matched)
			}
			if unparseable != tt.unparseable {
				t.Errorf("unparseable = %v, want %v", unparseable, tt.unparseable)
			}
		})
	}
}

func TestCompare_NumericGreaterThan(t *testing.T) {
	matched, unparseable := Compare(types.OpGt, 1600.0, 1500.0)
	if !matched || unparseable {
		t.Errorf("Compare(gt, 1600, 1500) = (%v, %v), want (true, false)", matched, unparseable)
	}

	matched, unparseable = Compare(types.OpGt, 1500.0, 1500.0)
	if matched || unparseable {
		t.Errorf("Compare(gt, 1500, 1500) = (%v, %v), want (false, false)", matched, unparseable)
	}
}

func TestCompare_NonNumericTarget(t *testing.T) {
	// A bad condition value is a no-match, not an unparseable field
	matched, unparseable := Compare(types.OpLt, 350.0, "not a number")
	if matched || unparseable {
		t.Errorf("Compare(lt, 350, non-numeric target) = (%v, %v), want (false, false)", matched, unparseable)
	}
}

func TestCompare_Equality(t *testing.T) {
	tests := []struct {
		name    string
		op      types.Operator
		value   any
		target  any
		matched bool
	}{
		{"string equal", types.OpEq, "Angus", "Angus", true},
		{"string case sensitive", types.OpEq, "angus", "Angus", false},
		{"float int mix", types.OpEq, 470.0, 470, true},
		{"numeric string vs float", types.OpEq, "470", 470.0, true},
		{"nil both sides", types.OpEq, nil, nil, true},
		{"nil one side", types.OpEq, nil, "x", false},
		{"neq inverts", types.OpNeq, "Angus", "Hereford", true},
		{"neq equal values", types.OpNeq, "Angus", "Angus", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matched, unparseable := Compare(tt.op, tt.value, tt.target)
			if matched != tt.matched {
				t.Errorf("matched = %v, want %v", matched, tt.matched)
			}
			if unparseable {
				t.Error("unparseable = true, want false for equality operators")
			}
		})
	}
}

func TestCompare_Contains(t *testing.T) {
	tests := []struct {
		name    string
		op      types.Operator
		value   any
		target  any
		matched bool
	}{
		{"substring present", types.OpContains, "Black Angus", "Angus", true},
		{"substring absent", types.OpContains, "Hereford", "Angus", false},
		{"numeric rendered as text", types.OpContains, 470.0, "47", true},
		{"not_contains inverts", types.OpNotContains, "Hereford", "Angus", true},
		{"nil value never contains", types.OpContains, nil, "x", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matched, _ := Compare(tt.op, tt.value, tt.target)
			if matched != tt.matched {
				t.Errorf("matched = %v, want %v", matched, tt.matched)
			}
		})
	}
}

func TestToFloat64_JSONNumberAndScientific(t *testing.T) {
	if v, ok := toFloat64("4.7e2"); !ok || v != 470.0 {
		t.Errorf("toFloat64(4.7e2) = (%v, %v), want (470, true)", v, ok)
	}
	if _, ok := toFloat64(map[string]any{}); ok {
		t.Error("toFloat64(map) = ok, want not ok")
	}
}
