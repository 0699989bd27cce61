package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dataherd/dataherd/internal/core/db"
	"github.com/dataherd/dataherd/internal/types"
)

// BatchStore persists batches and their lot records.
type BatchStore struct {
	q *db.Queries
}

func NewBatchStore(q *db.Queries) *BatchStore {
	return &BatchStore{q: q}
}

// CreateBatch inserts a batch and all of its records in one transaction.
// Every record starts in status original with Current == Original.
func (s *BatchStore) CreateBatch(ctx context.Context, batch types.Batch, records []types.Record) error {
	if len(records) > types.MaxBatchRecords {
		return types.Validation(fmt.Errorf("batch of %d records exceeds limit of %d", len(records), types.MaxBatchRecords))
	}

	insertBatch, err := s.q.Raw("insert-batch")
	if err != nil {
		return err
	}
	insertRecord, err := s.q.Raw("insert-record")
	if err != nil {
		return err
	}

	tx, err := s.q.DB().BeginTxx(ctx, nil)
	if err != nil {
		return errors.Join(types.ErrPersistence, err)
	}
	defer tx.Rollback()

	ts := now()
	if _, err := tx.ExecContext(ctx, insertBatch,
		string(batch.BatchID), batch.ClientContext, len(records), ts); err != nil {
		return errors.Join(types.ErrPersistence, fmt.Errorf("insert batch %s: %w", batch.BatchID, err))
	}

	for i := range records {
		rec := &records[i]
		data, err := json.Marshal(rec.Original)
		if err != nil {
			return fmt.Errorf("record %s: serialize fields: %w", rec.RecordID, err)
		}
		if _, err := tx.ExecContext(ctx, insertRecord,
			string(batch.BatchID), string(rec.RecordID),
			string(data), string(data), string(types.StatusOriginal), "", ts); err != nil {
			return errors.Join(types.ErrPersistence, fmt.Errorf("insert record %s: %w", rec.RecordID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Join(types.ErrPersistence, err)
	}
	return nil
}

// GetBatch fetches batch metadata.
func (s *BatchStore) GetBatch(ctx context.Context, id types.BatchID) (types.Batch, error) {
	var row batchRow
	err := s.q.Get(ctx, "get-batch", &row, string(id))
	if errors.Is(err, sql.ErrNoRows) {
		return types.Batch{}, fmt.Errorf("batch %s: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return types.Batch{}, errors.Join(types.ErrPersistence, err)
	}
	return row.toBatch(), nil
}

// ListRecords returns every record in a batch, ordered by record ID.
func (s *BatchStore) ListRecords(ctx context.Context, id types.BatchID) ([]types.Record, error) {
	var rows []recordRow
	if err := s.q.Select(ctx, "list-records", &rows, string(id)); err != nil {
		return nil, errors.Join(types.ErrPersistence, err)
	}
	out := make([]types.Record, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].toRecord()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// GetRecord fetches one record.
func (s *BatchStore) GetRecord(ctx context.Context, batchID types.BatchID, recordID types.RecordID) (types.Record, error) {
	var row recordRow
	err := s.q.Get(ctx, "get-record", &row, string(batchID), string(recordID))
	if errors.Is(err, sql.ErrNoRows) {
		return types.Record{}, fmt.Errorf("record %s in batch %s: %w", recordID, batchID, types.ErrNotFound)
	}
	if err != nil {
		return types.Record{}, errors.Join(types.ErrPersistence, err)
	}
	return row.toRecord()
}
