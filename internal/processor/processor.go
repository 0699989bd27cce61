// Package processor drives the preview, commit, and rollback lifecycle over
// batches of lot records. Previews are pure; commits and rollbacks mutate
// records and append to the operation log in one transaction, serialized
// per batch.
package processor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dataherd/dataherd/internal/rules"
	"github.com/dataherd/dataherd/internal/store"
	"github.com/dataherd/dataherd/internal/translate"
	"github.com/dataherd/dataherd/internal/types"
)

// Processor wires the translation boundary, rule engine, and stores into
// the cleaning lifecycle.
type Processor struct {
	engine     *rules.Engine
	translator translate.Translator
	ruleStore  *store.RuleStore
	batchStore *store.BatchStore
	opStore    *store.OperationStore
	applier    *store.Applier
	locks      *batchLocks
	cache      *previewCache
	log        *slog.Logger
}

// New builds a Processor. ttl bounds preview reuse; zero selects the
// default.
func New(
	translator translate.Translator,
	ruleStore *store.RuleStore,
	batchStore *store.BatchStore,
	opStore *store.OperationStore,
	applier *store.Applier,
	ttl time.Duration,
	log *slog.Logger,
) *Processor {
	return &Processor{
		engine:     rules.NewEngine(),
		translator: translator,
		ruleStore:  ruleStore,
		batchStore: batchStore,
		opStore:    opStore,
		applier:    applier,
		locks:      newBatchLocks(),
		cache:      newPreviewCache(ttl),
		log:        log,
	}
}

// PreviewResult is the outcome of a dry evaluation run.
type PreviewResult struct {
	BatchID      types.BatchID          `json:"batch_id"`
	Changes      []rules.ProposedChange `json:"changes"`
	Issues       []string               `json:"issues"`
	Confidence   float64                `json:"confidence"`
	Untouched    int                    `json:"untouched"`
	TotalRecords int                    `json:"total_records"`
}

// CommitResult reports an applied commit.
type CommitResult struct {
	OperationID    types.OperationID `json:"operation_id"`
	ChangesApplied int               `json:"changes_applied"`
	RecordsUpdated int               `json:"records_updated"`
}

// RollbackResult reports a reversed commit.
type RollbackResult struct {
	OperationID       types.OperationID `json:"operation_id"`
	ParentOperationID types.OperationID `json:"parent_operation_id"`
	RestoredCount     int               `json:"restored_count"`
}

// Preview translates the rule text, merges stored permanent and client rules,
// and evaluates the batch without touching persistent state. The result is
// cached so an immediately following Commit with the same rule text skips
// recomputation.
func (p *Processor) Preview(ctx context.Context, batchID types.BatchID, ruleText, clientContext string) (PreviewResult, error) {
	entry, _, err := p.evaluate(ctx, batchID, ruleText, clientContext)
	if err != nil {
		return PreviewResult{}, err
	}
	p.cache.put(batchID, entry)
	return entry.toResult(batchID), nil
}

// Commit applies the proposed changes for the rule text to the batch and
// appends a commit operation, all in one transaction. A fresh matching
// preview is reused; otherwise the pipeline reruns. persistPermanently
// additionally saves the translated rules for future evaluations.
func (p *Processor) Commit(ctx context.Context, batchID types.BatchID, ruleText, clientContext, operatorID string, persistPermanently bool) (CommitResult, error) {
	lock, ok := p.locks.tryAcquire(batchID)
	if !ok {
		return CommitResult{}, fmt.Errorf("batch %s: %w", batchID, types.ErrBusy)
	}
	defer lock.Unlock()

	entry := p.cache.lookup(batchID, ruleText, clientContext)
	if entry == nil {
		var err error
		entry, _, err = p.evaluate(ctx, batchID, ruleText, clientContext)
		if err != nil {
			return CommitResult{}, err
		}
	}

	records, err := p.batchStore.ListRecords(ctx, batchID)
	if err != nil {
		return CommitResult{}, err
	}

	updates, diffs := buildUpdates(records, entry.result.Changes)

	op := types.Operation{
		OperationID:     types.NewOperationID(),
		BatchID:         batchID,
		OperatorID:      operatorID,
		Type:            types.OpTypeCommit,
		RuleSetSnapshot: entry.ruleSet,
		RecordDiffs:     diffs,
		Result:          types.ResultSuccess,
	}
	if err := p.applier.Apply(ctx, op, updates); err != nil {
		return CommitResult{}, err
	}
	p.cache.invalidate(batchID)

	unsaved := make(map[types.RuleID]struct{}, len(entry.translated))
	for _, r := range entry.translated {
		unsaved[r.RuleID] = struct{}{}
	}
	if persistPermanently {
		for i := range entry.translated {
			rule := entry.translated[i]
			rule.IsPermanent = true
			if err := p.ruleStore.Save(ctx, rule); err != nil {
				p.log.Error("persist translated rule", "rule_id", rule.RuleID, "error", err)
				continue
			}
			delete(unsaved, rule.RuleID)
		}
	}
	p.recordUsage(ctx, batchID, entry.result.Changes, unsaved)

	p.log.Info("commit applied",
		"batch_id", batchID, "operation_id", op.OperationID,
		"changes", len(entry.result.Changes), "records", len(updates))

	return CommitResult{
		OperationID:    op.OperationID,
		ChangesApplied: len(entry.result.Changes),
		RecordsUpdated: len(updates),
	}, nil
}

// Rollback reverses a commit: every record the commit touched returns to its
// original data. Only the most recent commit of a batch can be rolled back;
// a superseded target is a conflict, not a partial rewind.
func (p *Processor) Rollback(ctx context.Context, batchID types.BatchID, operationID types.OperationID) (RollbackResult, error) {
	lock, ok := p.locks.tryAcquire(batchID)
	if !ok {
		return RollbackResult{}, fmt.Errorf("batch %s: %w", batchID, types.ErrBusy)
	}
	defer lock.Unlock()

	target, err := p.opStore.Get(ctx, operationID)
	if err != nil {
		return RollbackResult{}, err
	}
	if target.BatchID != batchID {
		return RollbackResult{}, fmt.Errorf("operation %s does not belong to batch %s: %w", operationID, batchID, types.ErrNotFound)
	}
	if target.Type != types.OpTypeCommit {
		return RollbackResult{}, fmt.Errorf("operation %s is a %s, only commits roll back: %w", operationID, target.Type, types.ErrConflict)
	}
	superseded, err := p.opStore.Superseded(ctx, batchID, operationID)
	if err != nil {
		return RollbackResult{}, err
	}
	if superseded {
		return RollbackResult{}, fmt.Errorf("operation %s is superseded by a later commit: %w", operationID, types.ErrConflict)
	}

	touched := make(map[types.RecordID]struct{})
	for _, d := range target.RecordDiffs {
		touched[d.RecordID] = struct{}{}
	}

	var updates []store.RecordUpdate
	var diffs []types.RecordDiff
	for id := range touched {
		rec, err := p.batchStore.GetRecord(ctx, batchID, id)
		if err != nil {
			return RollbackResult{}, err
		}
		updates = append(updates, store.RecordUpdate{
			RecordID: id,
			Current:  rec.Original.Clone(),
			Status:   types.StatusRolledBack,
		})
		diffs = append(diffs, types.RecordDiff{RecordID: id, Action: "rollback"})
	}
	sort.Slice(updates, func(i, j int) bool { return updates[i].RecordID < updates[j].RecordID })
	sort.Slice(diffs, func(i, j int) bool { return diffs[i].RecordID < diffs[j].RecordID })

	op := types.Operation{
		OperationID:       types.NewOperationID(),
		BatchID:           batchID,
		ParentOperationID: operationID,
		OperatorID:        target.OperatorID,
		Type:              types.OpTypeRollback,
		RecordDiffs:       diffs,
		Result:            types.ResultSuccess,
	}
	if err := p.applier.Apply(ctx, op, updates); err != nil {
		return RollbackResult{}, err
	}
	p.cache.invalidate(batchID)

	p.log.Info("rollback applied",
		"batch_id", batchID, "operation_id", op.OperationID,
		"parent", operationID, "restored", len(updates))

	return RollbackResult{
		OperationID:       op.OperationID,
		ParentOperationID: operationID,
		RestoredCount:     len(updates),
	}, nil
}

// evaluate is the shared pipeline behind Preview and a cache-miss Commit.
// The batch generation is snapshotted before the record read: previews run
// unlocked, so a commit can land between the read and the cache insert, and
// the entry must stay stamped with the pre-commit state it saw.
func (p *Processor) evaluate(ctx context.Context, batchID types.BatchID, ruleText, clientContext string) (*previewEntry, []types.Record, error) {
	gen := p.cache.currentGen(batchID)
	if _, err := p.batchStore.GetBatch(ctx, batchID); err != nil {
		return nil, nil, err
	}
	records, err := p.batchStore.ListRecords(ctx, batchID)
	if err != nil {
		return nil, nil, err
	}

	translated, err := p.translator.Translate(ctx, ruleText, clientContext)
	if err != nil {
		return nil, nil, err
	}

	merged, err := p.mergeStoredRules(ctx, translated, clientContext)
	if err != nil {
		return nil, nil, err
	}

	result, err := p.engine.Evaluate(records, merged, clientContext)
	if err != nil {
		return nil, nil, err
	}

	return &previewEntry{
		ruleText:      ruleText,
		clientContext: clientContext,
		ruleSet:       rules.ResolveRuleSet(merged, clientContext),
		translated:    translated,
		result:        result,
		totalRecords:  len(records),
		generation:    gen,
	}, records, nil
}

// mergeStoredRules joins translated rules with stored client and permanent
// rules, deduplicated by rule ID. Translated rules come first so a repeated
// preview of a persisted rule does not double-apply it.
func (p *Processor) mergeStoredRules(ctx context.Context, translated []types.Rule, clientContext string) ([]types.Rule, error) {
	merged := make([]types.Rule, 0, len(translated))
	seen := make(map[types.RuleID]struct{})
	add := func(rs []types.Rule) {
		for _, r := range rs {
			if _, dup := seen[r.RuleID]; dup {
				continue
			}
			seen[r.RuleID] = struct{}{}
			merged = append(merged, r)
		}
	}
	add(translated)

	if clientContext != "" {
		clientRules, err := p.ruleStore.ListForClient(ctx, clientContext)
		if err != nil {
			return nil, err
		}
		add(clientRules)
	}
	permanent, err := p.ruleStore.ListPermanent(ctx)
	if err != nil {
		return nil, err
	}
	add(permanent)

	return merged, nil
}

// recordUsage updates per-rule stats after a commit. Rules in skip never got
// a store row, so applications cannot reference them. Stats are advisory, so
// failures log and continue rather than failing the committed operation.
func (p *Processor) recordUsage(ctx context.Context, batchID types.BatchID, changes []rules.ProposedChange, skip map[types.RuleID]struct{}) {
	counts := make(map[types.RuleID]int)
	for _, c := range changes {
		if _, transient := skip[c.RuleID]; transient {
			continue
		}
		counts[c.RuleID]++
	}
	for id, n := range counts {
		if err := p.ruleStore.RecordUsage(ctx, id, batchID, true, n); err != nil {
			p.log.Error("record rule usage", "rule_id", id, "error", err)
		}
	}
}

// buildUpdates folds proposed changes into final per-record states.
// Precedence when one record accumulates several actions: deleted beats
// modified beats flagged. A ready action clears outstanding flags when
// nothing stronger happened.
func buildUpdates(records []types.Record, changes []rules.ProposedChange) ([]store.RecordUpdate, []types.RecordDiff) {
	byID := make(map[types.RecordID]*types.Record, len(records))
	for i := range records {
		byID[records[i].RecordID] = &records[i]
	}

	type pending struct {
		current  types.FieldMap
		issues   []string
		modified bool
		deleted  bool
		ready    bool
	}
	pendings := make(map[types.RecordID]*pending)
	order := make([]types.RecordID, 0, len(changes))
	diffs := make([]types.RecordDiff, 0, len(changes))

	for _, c := range changes {
		rec, ok := byID[c.RecordID]
		if !ok {
			continue
		}
		pd, ok := pendings[c.RecordID]
		if !ok {
			pd = &pending{current: rec.Current.Clone()}
			pendings[c.RecordID] = pd
			order = append(order, c.RecordID)
		}

		diffs = append(diffs, types.RecordDiff{
			RecordID: c.RecordID,
			Field:    c.Field,
			Before:   c.Before,
			After:    c.After,
			Action:   string(c.Action),
		})

		switch c.Action {
		case types.ActionDelete:
			pd.deleted = true
		case types.ActionModify:
			pd.current[c.Field] = c.After
			pd.modified = true
		case types.ActionFlag:
			if c.Issue != "" {
				pd.issues = append(pd.issues, c.Issue)
			}
		case types.ActionReady:
			pd.ready = true
		}
	}

	updates := make([]store.RecordUpdate, 0, len(order))
	for _, id := range order {
		pd := pendings[id]
		u := store.RecordUpdate{
			RecordID:         id,
			Current:          pd.current,
			IssueDescription: strings.Join(pd.issues, "; "),
		}
		switch {
		case pd.deleted:
			u.Status = types.StatusDeleted
		case pd.modified:
			u.Status = types.StatusModified
		case len(pd.issues) > 0:
			u.Status = types.StatusFlagged
		default:
			u.Status = types.StatusOriginal
			if pd.ready {
				u.IssueDescription = ""
			}
		}
		updates = append(updates, u)
	}
	return updates, diffs
}

func (e *previewEntry) toResult(batchID types.BatchID) PreviewResult {
	res := PreviewResult{
		BatchID:      batchID,
		Changes:      e.result.Changes,
		Untouched:    e.result.Untouched,
		TotalRecords: e.totalRecords,
	}
	var sum float64
	for _, c := range e.result.Changes {
		sum += c.Confidence
		if c.Issue != "" {
			res.Issues = append(res.Issues, fmt.Sprintf("%s: %s", c.RecordID, c.Issue))
		}
	}
	if n := len(e.result.Changes); n > 0 {
		res.Confidence = sum / float64(n)
	}
	return res
}
