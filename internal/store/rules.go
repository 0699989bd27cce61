package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dataherd/dataherd/internal/core/db"
	"github.com/dataherd/dataherd/internal/rules"
	"github.com/dataherd/dataherd/internal/types"
)

// RuleStore persists cleaning rules and their usage statistics.
type RuleStore struct {
	q *db.Queries
}

func NewRuleStore(q *db.Queries) *RuleStore {
	return &RuleStore{q: q}
}

// Save validates and upserts a rule. A rule that already exists keeps its
// usage_count and success_rate; everything else is replaced.
func (s *RuleStore) Save(ctx context.Context, rule types.Rule) error {
	if err := rules.Validate(&rule); err != nil {
		return err
	}

	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		return fmt.Errorf("serialize conditions: %w", err)
	}
	action, err := json.Marshal(rule.Action)
	if err != nil {
		return fmt.Errorf("serialize action: %w", err)
	}

	ts := now()
	_, err = s.q.Exec(ctx, "save-rule",
		string(rule.RuleID), rule.Name, rule.Description,
		string(rule.Scope), rule.ClientContext,
		string(conditions), string(action),
		rule.IsPermanent, rule.IsActive, rule.Confidence,
		rule.UsageCount, rule.SuccessRate,
		ts, ts,
	)
	if err != nil {
		return errors.Join(types.ErrPersistence, fmt.Errorf("save rule %s: %w", rule.RuleID, err))
	}
	return nil
}

// Get fetches one rule by ID.
func (s *RuleStore) Get(ctx context.Context, id types.RuleID) (types.Rule, error) {
	var row ruleRow
	err := s.q.Get(ctx, "get-rule", &row, string(id))
	if errors.Is(err, sql.ErrNoRows) {
		return types.Rule{}, fmt.Errorf("rule %s: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return types.Rule{}, errors.Join(types.ErrPersistence, err)
	}
	return row.toRule()
}

// ListForClient returns active client-scoped rules for the given context.
func (s *RuleStore) ListForClient(ctx context.Context, clientContext string) ([]types.Rule, error) {
	return s.list(ctx, "list-rules-for-client", clientContext)
}

// List returns every rule, active or not, oldest first.
func (s *RuleStore) List(ctx context.Context) ([]types.Rule, error) {
	return s.list(ctx, "list-rules")
}

// ListPermanent returns active permanent rules across all scopes. Permanent
// rules join every evaluation regardless of client context (client-scoped
// permanents are still filtered by context at resolution time).
func (s *RuleStore) ListPermanent(ctx context.Context) ([]types.Rule, error) {
	return s.list(ctx, "list-permanent-rules")
}

func (s *RuleStore) list(ctx context.Context, query string, args ...any) ([]types.Rule, error) {
	var rows []ruleRow
	if err := s.q.Select(ctx, query, &rows, args...); err != nil {
		return nil, errors.Join(types.ErrPersistence, err)
	}
	out := make([]types.Rule, 0, len(rows))
	for i := range rows {
		rule, err := rows[i].toRule()
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, nil
}

// Deactivate soft-deletes a rule. Historic operations keep referencing it
// through their rule set snapshots.
func (s *RuleStore) Deactivate(ctx context.Context, id types.RuleID) error {
	res, err := s.q.Exec(ctx, "deactivate-rule", now(), string(id))
	if err != nil {
		return errors.Join(types.ErrPersistence, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("rule %s: %w", id, types.ErrNotFound)
	}
	return nil
}

// RecordUsage logs one application of a rule and recomputes the rule's
// aggregate stats from the applications table.
func (s *RuleStore) RecordUsage(ctx context.Context, id types.RuleID, batchID types.BatchID, success bool, changesMade int) error {
	_, err := s.q.Exec(ctx, "insert-rule-application",
		uuid.Must(uuid.NewV7()).String(), string(id), string(batchID),
		success, changesMade, now(),
	)
	if err != nil {
		return errors.Join(types.ErrPersistence, fmt.Errorf("record usage for rule %s: %w", id, err))
	}

	var stats struct {
		Applications int `db:"applications"`
		Successes    int `db:"successes"`
	}
	if err := s.q.Get(ctx, "rule-application-stats", &stats, string(id)); err != nil {
		return errors.Join(types.ErrPersistence, err)
	}

	rate := 0.0
	if stats.Applications > 0 {
		rate = float64(stats.Successes) / float64(stats.Applications)
	}
	if _, err := s.q.Exec(ctx, "update-rule-stats", stats.Applications, rate, now(), string(id)); err != nil {
		return errors.Join(types.ErrPersistence, err)
	}
	return nil
}
