package types

import (
	"testing"
	"time"
)

func TestNewOperationID_Ordering(t *testing.T) {
	a := NewOperationID()
	time.Sleep(2 * time.Millisecond)
	b := NewOperationID()

	// UUIDv7 string order tracks creation order; supersession checks rely
	// on this
	if !(a < b) {
		t.Errorf("expected %s < %s", a, b)
	}
}

func TestOperationIDTime(t *testing.T) {
	before := time.Now().Add(-time.Second)
	id := NewOperationID()
	after := time.Now().Add(time.Second)

	ts := OperationIDTime(id)
	if ts.Before(before) || ts.After(after) {
		t.Errorf("OperationIDTime = %v, want within [%v, %v]", ts, before, after)
	}

	if !OperationIDTime("garbage").IsZero() {
		t.Error("OperationIDTime(garbage) not zero")
	}
}

func TestParseRuleID(t *testing.T) {
	id := NewRuleID()
	parsed, err := ParseRuleID(string(id))
	if err != nil {
		t.Fatalf("ParseRuleID(%s) error: %v", id, err)
	}
	if parsed != id {
		t.Errorf("parsed = %s, want %s", parsed, id)
	}

	if _, err := ParseRuleID("not-a-uuid"); err == nil {
		t.Error("ParseRuleID accepted a malformed id")
	}
}

func TestFieldMapClone(t *testing.T) {
	orig := FieldMap{"weight": 350.0, "breed": "angus"}
	clone := orig.Clone()
	clone["breed"] = "Angus"

	if orig["breed"] != "angus" {
		t.Errorf("clone write leaked into original: %v", orig["breed"])
	}
	if FieldMap(nil).Clone() != nil {
		t.Error("Clone(nil) != nil")
	}
}

func TestRuleFields_DedupedOrdered(t *testing.T) {
	r := Rule{
		Conditions: []Condition{
			{Field: "weight"},
			{Field: "breed"},
			{Field: "weight"},
		},
	}
	fields := r.Fields()
	if len(fields) != 2 || fields[0] != "weight" || fields[1] != "breed" {
		t.Errorf("Fields() = %v, want [weight breed]", fields)
	}
}
