package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dataherd/dataherd/internal/core/db"
	"github.com/dataherd/dataherd/internal/types"
)

// OperationFilter narrows an operation-log listing. Zero values match
// everything.
type OperationFilter struct {
	BatchID    types.BatchID
	OperatorID string
	Since      time.Time
	Until      time.Time
}

// OperationStore reads the append-only operation log. Writes happen through
// Applier so that log entries and record mutations share one transaction.
type OperationStore struct {
	q *db.Queries
}

func NewOperationStore(q *db.Queries) *OperationStore {
	return &OperationStore{q: q}
}

// Get fetches one operation by ID.
func (s *OperationStore) Get(ctx context.Context, id types.OperationID) (types.Operation, error) {
	var row operationRow
	err := s.q.Get(ctx, "get-operation", &row, string(id))
	if errors.Is(err, sql.ErrNoRows) {
		return types.Operation{}, fmt.Errorf("operation %s: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return types.Operation{}, errors.Join(types.ErrPersistence, err)
	}
	return row.toOperation()
}

// LatestCommit returns the most recent commit for a batch, or ErrNotFound
// when the batch has never been committed. UUIDv7 operation IDs sort in
// creation order, so ORDER BY operation_id is ORDER BY time.
func (s *OperationStore) LatestCommit(ctx context.Context, batchID types.BatchID) (types.Operation, error) {
	var row operationRow
	err := s.q.Get(ctx, "latest-commit", &row, string(batchID))
	if errors.Is(err, sql.ErrNoRows) {
		return types.Operation{}, fmt.Errorf("no commit for batch %s: %w", batchID, types.ErrNotFound)
	}
	if err != nil {
		return types.Operation{}, errors.Join(types.ErrPersistence, err)
	}
	return row.toOperation()
}

// Superseded reports whether any later commit exists for the batch.
func (s *OperationStore) Superseded(ctx context.Context, batchID types.BatchID, opID types.OperationID) (bool, error) {
	var count int
	if err := s.q.Get(ctx, "count-commits-after", &count, string(batchID), string(opID)); err != nil {
		return false, errors.Join(types.ErrPersistence, err)
	}
	return count > 0, nil
}

// List returns operations matching the filter, newest first, capped at the
// query's built-in limit.
func (s *OperationStore) List(ctx context.Context, f OperationFilter) ([]types.Operation, error) {
	since, until := "", ""
	if !f.Since.IsZero() {
		since = f.Since.UTC().Format(time.RFC3339)
	}
	if !f.Until.IsZero() {
		until = f.Until.UTC().Format(time.RFC3339)
	}

	var rows []operationRow
	err := s.q.Select(ctx, "list-operations", &rows,
		string(f.BatchID), string(f.BatchID),
		f.OperatorID, f.OperatorID,
		since, since,
		until, until,
	)
	if err != nil {
		return nil, errors.Join(types.ErrPersistence, err)
	}

	out := make([]types.Operation, 0, len(rows))
	for i := range rows {
		op, err := rows[i].toOperation()
		if err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	return out, nil
}
