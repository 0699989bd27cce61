package translate

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dataherd/dataherd/internal/types"
)

/*
 * Deterministic pattern parser for common cattle-data rule phrasings.
 *
 * Covers the rule shapes operators actually type: weight thresholds, breed
 * name standardization, missing birth dates, and duplicate mentions. Anything
 * it cannot read yields a single low-confidence manual-review flag so the
 * request never dead-ends. Confidence scores are fixed per pattern; only the
 * LLM path reports its own.
 */

// knownBreeds is the standardization target list. Lowercase and uppercase
// variants of each entry are rewritten to this casing.
var knownBreeds = []string{
	"Angus", "Hereford", "Holstein", "Charolais", "Simmental", "Limousin",
}

var numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// PatternTranslator parses rule text without external collaborators.
type PatternTranslator struct{}

func NewPatternTranslator() *PatternTranslator {
	return &PatternTranslator{}
}

// Translate never fails: unrecognized text produces a manual-review rule.
func (p *PatternTranslator) Translate(_ context.Context, ruleText, clientContext string) ([]types.Rule, error) {
	lower := strings.ToLower(ruleText)
	scope := scopeFor(clientContext)

	var out []types.Rule
	out = append(out, weightRules(ruleText, lower, scope, clientContext)...)
	out = append(out, breedRules(lower, scope, clientContext)...)
	out = append(out, dateRules(lower, scope, clientContext)...)
	out = append(out, duplicateRules(lower, scope, clientContext)...)

	if len(out) == 0 {
		out = append(out, types.Rule{
			RuleID:        types.NewRuleID(),
			Name:          "manual review",
			Description:   fmt.Sprintf("Manual review required for: %s", truncate(ruleText, 100)),
			Scope:         scope,
			ClientContext: clientContext,
			Conditions: []types.Condition{
				{Field: "lot_id", Operator: types.OpNeq, Value: ""},
			},
			Action:     types.Action{Kind: types.ActionFlag},
			IsActive:   true,
			Confidence: 0.3,
		})
	}
	return out, nil
}

// weightRules reads threshold phrasings like "flag weights below 400 lbs or
// above 1500 lbs" and "delete records with weight below 200".
func weightRules(ruleText, lower string, scope types.Scope, clientContext string) []types.Rule {
	if !strings.Contains(lower, "weight") {
		return nil
	}

	kind := types.ActionFlag
	if strings.Contains(lower, "delete") || strings.Contains(lower, "remove") {
		kind = types.ActionDelete
	} else if !containsAny(lower, "flag", "validate", "check", "mark") {
		return nil
	}

	numbers := extractNumbers(ruleText)
	below := strings.Contains(lower, "below") || strings.Contains(lower, "under") || strings.Contains(lower, "less than")
	above := strings.Contains(lower, "above") || strings.Contains(lower, "over") || strings.Contains(lower, "more than")

	var out []types.Rule
	build := func(op types.Operator, threshold float64, phrase string) types.Rule {
		return types.Rule{
			RuleID:        types.NewRuleID(),
			Name:          fmt.Sprintf("weight %s %s", phrase, formatNumber(threshold)),
			Description:   fmt.Sprintf("%s records with weight %s %s lbs", kind, phrase, formatNumber(threshold)),
			Scope:         scope,
			ClientContext: clientContext,
			Conditions: []types.Condition{
				{Field: "weight", Operator: op, Value: threshold},
			},
			Action:     types.Action{Kind: kind},
			IsActive:   true,
			Confidence: 0.7,
		}
	}

	switch {
	case below && above && len(numbers) >= 2:
		out = append(out,
			build(types.OpLt, numbers[0], "below"),
			build(types.OpGt, numbers[1], "above"))
	case below && len(numbers) >= 1:
		out = append(out, build(types.OpLt, numbers[0], "below"))
	case above && len(numbers) >= 1:
		out = append(out, build(types.OpGt, numbers[len(numbers)-1], "above"))
	}
	return out
}

// breedRules emits one modify rule per known breed, catching the lowercase
// and uppercase variants. Equality is case-sensitive, so a properly cased
// value matches nothing and stays untouched.
func breedRules(lower string, scope types.Scope, clientContext string) []types.Rule {
	if !strings.Contains(lower, "breed") || !strings.Contains(lower, "standard") {
		return nil
	}

	out := make([]types.Rule, 0, len(knownBreeds))
	for _, breed := range knownBreeds {
		out = append(out, types.Rule{
			RuleID:        types.NewRuleID(),
			Name:          fmt.Sprintf("standardize breed %s", breed),
			Description:   fmt.Sprintf("Rewrite case variants of %q to the standard form", breed),
			Scope:         scope,
			ClientContext: clientContext,
			Conditions: []types.Condition{
				{Field: "breed", Operator: types.OpEq, Value: strings.ToLower(breed)},
				{Field: "breed", Operator: types.OpEq, Value: strings.ToUpper(breed)},
			},
			Action: types.Action{
				Kind:        types.ActionModify,
				TargetField: "breed",
				TargetValue: breed,
			},
			IsActive:   true,
			Confidence: 0.8,
		})
	}
	return out
}

// dateRules flags empty birth dates when the text mentions date validity or
// missing dates.
func dateRules(lower string, scope types.Scope, clientContext string) []types.Rule {
	if !strings.Contains(lower, "date") {
		return nil
	}
	if !containsAny(lower, "valid", "format", "missing", "empty") {
		return nil
	}

	return []types.Rule{{
		RuleID:        types.NewRuleID(),
		Name:          "missing birth date",
		Description:   "Flag records with an empty birth_date",
		Scope:         scope,
		ClientContext: clientContext,
		Conditions: []types.Condition{
			{Field: "birth_date", Operator: types.OpEq, Value: ""},
		},
		Action:     types.Action{Kind: types.ActionFlag},
		IsActive:   true,
		Confidence: 0.7,
	}}
}

// duplicateRules cannot deduplicate across records from a per-record
// condition, so duplicate mentions become a low-confidence review flag.
func duplicateRules(lower string, scope types.Scope, clientContext string) []types.Rule {
	if !strings.Contains(lower, "duplicate") {
		return nil
	}

	return []types.Rule{{
		RuleID:        types.NewRuleID(),
		Name:          "possible duplicate lot ids",
		Description:   "Review batch for duplicate lot_id entries",
		Scope:         scope,
		ClientContext: clientContext,
		Conditions: []types.Condition{
			{Field: "lot_id", Operator: types.OpNeq, Value: ""},
		},
		Action:     types.Action{Kind: types.ActionFlag},
		IsActive:   true,
		Confidence: 0.4,
	}}
}

func extractNumbers(s string) []float64 {
	matches := numberPattern.FindAllString(s, -1)
	out := make([]float64, 0, len(matches))
	for _, m := range matches {
		if f, err := strconv.ParseFloat(m, 64); err == nil {
			out = append(out, f)
		}
	}
	return out
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
