// internal/rules/operators.go
package rules

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/dataherd/dataherd/internal/types"
)

/*
 * Operator comparison logic.
 *
 * Implements the six condition operators with type-aware comparison rules.
 * Numeric operators (lt/gt) fail closed: a missing or non-numeric field value
 * never matches, and the caller receives a distinct unparseable signal so the
 * engine can surface it as a flag instead of raising.
 *
 * Operators:
 *   - lt/gt: numeric comparison with string-to-number coercion
 *   - eq/neq: equality with numeric tolerance for float64/int mixing
 *   - contains/not_contains: substring matching over text coercion
 *
 * Why function-based: six operators via switch statement is cleaner than six
 * interface implementations with minimal behavior variation.
 */

// Compare applies the operator to a record field value and a condition value.
// The second return reports an unparseable numeric field (lt/gt against a
// value that cannot be read as a number); matched is always false in that
// case.
func Compare(op types.Operator, value, target any) (matched, unparseable bool) {
	switch op {
	case types.OpLt:
		return compareNumeric(value, target, func(a, b float64) bool { return a < b })
	case types.OpGt:
		return compareNumeric(value, target, func(a, b float64) bool { return a > b })
	case types.OpEq:
		return compareEqual(value, target), false
	case types.OpNeq:
		return !compareEqual(value, target), false
	case types.OpContains:
		return compareContains(value, target), false
	case types.OpNotContains:
		return !compareContains(value, target), false
	default:
		return false, false
	}
}

// compareNumeric coerces both sides to float64 and applies cmp.
// A non-numeric field value is unparseable; a non-numeric condition value is
// caught at compile time and treated as no-match here.
func compareNumeric(value, target any, cmp func(a, b float64) bool) (bool, bool) {
	v, ok := toFloat64(value)
	if !ok {
		return false, true
	}
	t, ok := toFloat64(target)
	if !ok {
		return false, false
	}
	return cmp(v, t), false
}

// compareEqual performs equality comparison with numeric type coercion.
// Handles float64/int/int64 mixing from JSON unmarshaling.
func compareEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if na, oka := toFloat64(a); oka {
		if nb, okb := toFloat64(b); okb {
			return na == nb
		}
	}
	return toText(a) == toText(b)
}

// compareContains checks substring membership over text coercion.
// Non-string values are rendered as text first so "470" contains "47" holds
// regardless of the JSON numeric type.
func compareContains(value, target any) bool {
	if value == nil || target == nil {
		return false
	}
	return strings.Contains(toText(value), toText(target))
}

// toFloat64 converts value to float64 if it reads as a number.
// Accepts float64/int/int64 from JSON and numeric strings (trimmed; an empty
// or whitespace-only string is not a valid number).
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// toText renders any scalar as its string form for equality and containment.
func toText(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case bool:
		if s {
			return "true"
		}
		return "false"
	case json.Number:
		return s.String()
	default:
		return ""
	}
}
