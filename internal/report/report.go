// Package report aggregates the operation log and rule stats into cleaning
// summaries. Read-only: it never writes through the stores it consumes.
package report

import (
	"context"
	"sort"
	"time"

	"github.com/dataherd/dataherd/internal/store"
	"github.com/dataherd/dataherd/internal/types"
)

// Summary is one aggregated view over the operation log.
type Summary struct {
	GeneratedAt     time.Time       `json:"generated_at"`
	TotalOperations int             `json:"total_operations"`
	Commits         int             `json:"commits"`
	Rollbacks       int             `json:"rollbacks"`
	ByResult        map[string]int  `json:"by_result"`
	Flagged         int             `json:"flagged"`
	Modified        int             `json:"modified"`
	Deleted         int             `json:"deleted"`
	RolledBack      int             `json:"rolled_back"`
	Clients         []ClientSummary `json:"clients"`
	Rules           []RuleSummary   `json:"rules"`
}

// ClientSummary breaks operations down by the owning batch's client context.
type ClientSummary struct {
	ClientContext string `json:"client_context"`
	Operations    int    `json:"operations"`
	Changes       int    `json:"changes"`
}

// RuleSummary is one rule's usage profile.
type RuleSummary struct {
	RuleID      types.RuleID `json:"rule_id"`
	Name        string       `json:"name"`
	Scope       types.Scope  `json:"scope"`
	IsActive    bool         `json:"is_active"`
	IsPermanent bool         `json:"is_permanent"`
	UsageCount  int          `json:"usage_count"`
	SuccessRate float64      `json:"success_rate"`
}

// Builder assembles summaries from the stores.
type Builder struct {
	ops     *store.OperationStore
	batches *store.BatchStore
	rules   *store.RuleStore
}

func NewBuilder(ops *store.OperationStore, batches *store.BatchStore, rules *store.RuleStore) *Builder {
	return &Builder{ops: ops, batches: batches, rules: rules}
}

// Build aggregates operations matching the filter plus the full rule table.
func (b *Builder) Build(ctx context.Context, filter store.OperationFilter) (Summary, error) {
	ops, err := b.ops.List(ctx, filter)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{
		GeneratedAt: time.Now().UTC(),
		ByResult:    make(map[string]int),
	}
	clients := make(map[string]*ClientSummary)
	batchClient := make(map[types.BatchID]string)

	for i := range ops {
		op := &ops[i]
		summary.TotalOperations++
		summary.ByResult[string(op.Result)]++
		switch op.Type {
		case types.OpTypeCommit:
			summary.Commits++
		case types.OpTypeRollback:
			summary.Rollbacks++
		}
		for _, d := range op.RecordDiffs {
			switch types.ActionKind(d.Action) {
			case types.ActionFlag:
				summary.Flagged++
			case types.ActionModify:
				summary.Modified++
			case types.ActionDelete:
				summary.Deleted++
			}
			if d.Action == "rollback" {
				summary.RolledBack++
			}
		}

		clientCtx, ok := batchClient[op.BatchID]
		if !ok {
			batch, err := b.batches.GetBatch(ctx, op.BatchID)
			if err != nil {
				// Batch rows can outlive retention while the log stays
				clientCtx = ""
			} else {
				clientCtx = batch.ClientContext
			}
			batchClient[op.BatchID] = clientCtx
		}
		cs, ok := clients[clientCtx]
		if !ok {
			cs = &ClientSummary{ClientContext: clientCtx}
			clients[clientCtx] = cs
		}
		cs.Operations++
		cs.Changes += len(op.RecordDiffs)
	}

	for _, cs := range clients {
		summary.Clients = append(summary.Clients, *cs)
	}
	sort.Slice(summary.Clients, func(i, j int) bool {
		return summary.Clients[i].ClientContext < summary.Clients[j].ClientContext
	})

	allRules, err := b.rules.List(ctx)
	if err != nil {
		return Summary{}, err
	}
	for _, r := range allRules {
		summary.Rules = append(summary.Rules, RuleSummary{
			RuleID:      r.RuleID,
			Name:        r.Name,
			Scope:       r.Scope,
			IsActive:    r.IsActive,
			IsPermanent: r.IsPermanent,
			UsageCount:  r.UsageCount,
			SuccessRate: r.SuccessRate,
		})
	}

	return summary, nil
}
