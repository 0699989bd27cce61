// Package store persists rules, batches, lot records, and the append-only
// operation log over the named-query layer in internal/core/db.
//
// Serialized columns (rule conditions/actions, record field maps, operation
// snapshots) are write-once/read-many JSON payloads; everything queried by
// the API is a proper column. Timestamps travel as RFC3339 strings so the
// same store code runs on SQLite and PostgreSQL.
package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dataherd/dataherd/internal/types"
)

type ruleRow struct {
	RuleID        string  `db:"rule_id"`
	Name          string  `db:"name"`
	Description   string  `db:"description"`
	Scope         string  `db:"scope"`
	ClientContext string  `db:"client_context"`
	Conditions    string  `db:"conditions"`
	Action        string  `db:"action"`
	IsPermanent   bool    `db:"is_permanent"`
	IsActive      bool    `db:"is_active"`
	Confidence    float64 `db:"confidence"`
	UsageCount    int     `db:"usage_count"`
	SuccessRate   float64 `db:"success_rate"`
	CreatedAt     string  `db:"created_at"`
	UpdatedAt     string  `db:"updated_at"`
}

func (r *ruleRow) toRule() (types.Rule, error) {
	rule := types.Rule{
		RuleID:        types.RuleID(r.RuleID),
		Name:          r.Name,
		Description:   r.Description,
		Scope:         types.Scope(r.Scope),
		ClientContext: r.ClientContext,
		IsPermanent:   r.IsPermanent,
		IsActive:      r.IsActive,
		Confidence:    r.Confidence,
		UsageCount:    r.UsageCount,
		SuccessRate:   r.SuccessRate,
	}
	if err := json.Unmarshal([]byte(r.Conditions), &rule.Conditions); err != nil {
		return types.Rule{}, fmt.Errorf("rule %s: malformed conditions: %w", r.RuleID, err)
	}
	if err := json.Unmarshal([]byte(r.Action), &rule.Action); err != nil {
		return types.Rule{}, fmt.Errorf("rule %s: malformed action: %w", r.RuleID, err)
	}
	return rule, nil
}

type recordRow struct {
	BatchID          string `db:"batch_id"`
	RecordID         string `db:"record_id"`
	OriginalData     string `db:"original_data"`
	CurrentData      string `db:"current_data"`
	Status           string `db:"status"`
	IssueDescription string `db:"issue_description"`
}

func (r *recordRow) toRecord() (types.Record, error) {
	rec := types.Record{
		RecordID:         types.RecordID(r.RecordID),
		BatchID:          types.BatchID(r.BatchID),
		Status:           types.RecordStatus(r.Status),
		IssueDescription: r.IssueDescription,
	}
	if err := json.Unmarshal([]byte(r.OriginalData), &rec.Original); err != nil {
		return types.Record{}, fmt.Errorf("record %s: malformed original_data: %w", r.RecordID, err)
	}
	if err := json.Unmarshal([]byte(r.CurrentData), &rec.Current); err != nil {
		return types.Record{}, fmt.Errorf("record %s: malformed current_data: %w", r.RecordID, err)
	}
	return rec, nil
}

type batchRow struct {
	BatchID       string `db:"batch_id"`
	ClientContext string `db:"client_context"`
	RecordCount   int    `db:"record_count"`
	CreatedAt     string `db:"created_at"`
}

func (b *batchRow) toBatch() types.Batch {
	batch := types.Batch{
		BatchID:       types.BatchID(b.BatchID),
		ClientContext: b.ClientContext,
		RecordCount:   b.RecordCount,
	}
	if t, err := time.Parse(time.RFC3339, b.CreatedAt); err == nil {
		batch.CreatedAt = t
	}
	return batch
}

type operationRow struct {
	OperationID       string `db:"operation_id"`
	BatchID           string `db:"batch_id"`
	ParentOperationID string `db:"parent_operation_id"`
	OperatorID        string `db:"operator_id"`
	OperationType     string `db:"operation_type"`
	RuleSetSnapshot   string `db:"rule_set_snapshot"`
	RecordDiffs       string `db:"record_diffs"`
	Result            string `db:"result"`
	FailureReasons    string `db:"failure_reasons"`
	CreatedAt         string `db:"created_at"`
}

func (o *operationRow) toOperation() (types.Operation, error) {
	op := types.Operation{
		OperationID:       types.OperationID(o.OperationID),
		BatchID:           types.BatchID(o.BatchID),
		ParentOperationID: types.OperationID(o.ParentOperationID),
		OperatorID:        o.OperatorID,
		Type:              types.OperationType(o.OperationType),
		Result:            types.OperationResult(o.Result),
	}
	if err := json.Unmarshal([]byte(o.RuleSetSnapshot), &op.RuleSetSnapshot); err != nil {
		return types.Operation{}, fmt.Errorf("operation %s: malformed rule_set_snapshot: %w", o.OperationID, err)
	}
	if err := json.Unmarshal([]byte(o.RecordDiffs), &op.RecordDiffs); err != nil {
		return types.Operation{}, fmt.Errorf("operation %s: malformed record_diffs: %w", o.OperationID, err)
	}
	if o.FailureReasons != "" {
		if err := json.Unmarshal([]byte(o.FailureReasons), &op.FailureReasons); err != nil {
			return types.Operation{}, fmt.Errorf("operation %s: malformed failure_reasons: %w", o.OperationID, err)
		}
	}
	if t, err := time.Parse(time.RFC3339, o.CreatedAt); err == nil {
		op.Timestamp = t
	}
	return op, nil
}

// now returns the storage form of the current time.
func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
