package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dataherd/dataherd/internal/core/db"
	"github.com/dataherd/dataherd/internal/types"
)

// RecordUpdate is one record mutation applied alongside an operation-log
// entry. Original data is never touched; only the working copy moves.
type RecordUpdate struct {
	RecordID         types.RecordID
	Current          types.FieldMap
	Status           types.RecordStatus
	IssueDescription string
}

// Applier writes commits and rollbacks. Record mutations and the audit entry
// land in one transaction so a batch can never hold changes the operation
// log does not explain.
type Applier struct {
	q *db.Queries
}

func NewApplier(q *db.Queries) *Applier {
	return &Applier{q: q}
}

// Apply mutates the operation's batch records and appends the operation
// atomically. On any failure the whole transaction rolls back and the error
// carries ErrPersistence.
func (a *Applier) Apply(ctx context.Context, op types.Operation, updates []RecordUpdate) error {
	updateRecord, err := a.q.Raw("update-record")
	if err != nil {
		return err
	}
	insertOperation, err := a.q.Raw("insert-operation")
	if err != nil {
		return err
	}

	ruleSet, err := op.MarshalRuleSet()
	if err != nil {
		return fmt.Errorf("serialize rule set: %w", err)
	}
	diffs, err := op.MarshalDiffs()
	if err != nil {
		return fmt.Errorf("serialize diffs: %w", err)
	}
	failures := []byte("[]")
	if len(op.FailureReasons) > 0 {
		if failures, err = json.Marshal(op.FailureReasons); err != nil {
			return fmt.Errorf("serialize failure reasons: %w", err)
		}
	}

	tx, err := a.q.DB().BeginTxx(ctx, nil)
	if err != nil {
		return errors.Join(types.ErrPersistence, err)
	}
	defer tx.Rollback()

	ts := now()
	for i := range updates {
		u := &updates[i]
		current, err := json.Marshal(u.Current)
		if err != nil {
			return fmt.Errorf("record %s: serialize fields: %w", u.RecordID, err)
		}
		res, err := tx.ExecContext(ctx, updateRecord,
			string(current), string(u.Status), u.IssueDescription, ts,
			string(op.BatchID), string(u.RecordID))
		if err != nil {
			return errors.Join(types.ErrPersistence, fmt.Errorf("update record %s: %w", u.RecordID, err))
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("record %s in batch %s: %w", u.RecordID, op.BatchID, types.ErrNotFound)
		}
	}

	if _, err := tx.ExecContext(ctx, insertOperation,
		string(op.OperationID), string(op.BatchID), string(op.ParentOperationID),
		op.OperatorID, string(op.Type),
		string(ruleSet), string(diffs),
		string(op.Result), string(failures), ts); err != nil {
		return errors.Join(types.ErrPersistence, fmt.Errorf("append operation %s: %w", op.OperationID, err))
	}

	if err := tx.Commit(); err != nil {
		return errors.Join(types.ErrPersistence, err)
	}
	return nil
}
