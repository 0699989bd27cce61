// internal/rules/resolve.go
package rules

import "github.com/dataherd/dataherd/internal/types"

/*
 * Client-override resolution.
 *
 * Partitions a merged rule set into client-scoped rules (matching the request
 * context) and global rules, then suppresses every global rule whose field
 * set intersects a field covered by a client rule. The client rule's
 * condition and action replace the global one entirely for those fields; the
 * global rule is not also applied.
 *
 * Resolution is deterministic: declaration order is preserved within each
 * partition and client rules always evaluate before the surviving globals.
 * Rules scoped to a different client are dropped outright.
 */

// ResolveRuleSet returns the effective rule set for a client context.
// Inactive rules are excluded before partitioning.
func ResolveRuleSet(rules []types.Rule, clientContext string) []types.Rule {
	var client, global []types.Rule
	covered := make(map[string]struct{})

	for _, r := range rules {
		if !r.IsActive {
			continue
		}
		switch r.Scope {
		case types.ScopeClient:
			if clientContext == "" || r.ClientContext != clientContext {
				continue
			}
			client = append(client, r)
			for _, f := range r.Fields() {
				covered[f] = struct{}{}
			}
		case types.ScopeGlobal:
			global = append(global, r)
		}
	}

	resolved := make([]types.Rule, 0, len(client)+len(global))
	resolved = append(resolved, client...)
	for _, g := range global {
		if overridden(&g, covered) {
			continue
		}
		resolved = append(resolved, g)
	}
	return resolved
}

// overridden reports whether any field the global rule touches is covered by
// a client-scoped rule.
func overridden(rule *types.Rule, covered map[string]struct{}) bool {
	for _, f := range rule.Fields() {
		if _, ok := covered[f]; ok {
			return true
		}
	}
	return false
}
