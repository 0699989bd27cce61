// Package types provides domain models shared across DataHerd components.
//
// Hand-written types only: records, batches, operations, and the rule schema
// live here so that internal/rules, internal/store, and internal/processor
// agree on one vocabulary without import cycles. Wire-format conversion (HTTP
// DTOs) happens at the server boundary.
package types

import (
	"encoding/json"
	"time"
)

// BatchID identifies a batch of lot records.
type BatchID string

// RecordID identifies a single lot record. Unique within a batch.
type RecordID string

// RuleID represents a UUIDv7 rule identifier.
type RuleID string

// OperationID represents a UUIDv7 audit-trail entry identifier.
// UUIDv7 time-ordering keeps sequential operations clustered in B-tree indexes.
type OperationID string

// FieldMap is one lot record's field->value data. Values carry whatever JSON
// produced (string, float64, bool, nil); the rule engine coerces at the
// comparison site, never here.
type FieldMap map[string]any

// Clone returns a shallow copy. Field values are JSON scalars, so a shallow
// copy is a full copy for engine purposes.
func (f FieldMap) Clone() FieldMap {
	if f == nil {
		return nil
	}
	out := make(FieldMap, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// RecordStatus is the per-record lifecycle state machine:
// original -> {flagged, modified, deleted} -> rolled_back.
type RecordStatus string

const (
	StatusOriginal   RecordStatus = "original"
	StatusFlagged    RecordStatus = "flagged"
	StatusModified   RecordStatus = "modified"
	StatusDeleted    RecordStatus = "deleted"
	StatusRolledBack RecordStatus = "rolled_back"
)

// Record is a single lot entry within a batch.
// Original is the immutable snapshot captured at load time; Current is the
// working copy the cleaning lifecycle mutates.
type Record struct {
	RecordID         RecordID     `db:"record_id" json:"record_id"`
	BatchID          BatchID      `db:"batch_id" json:"batch_id"`
	Original         FieldMap     `json:"original_data"`
	Current          FieldMap     `json:"current_data"`
	Status           RecordStatus `db:"status" json:"status"`
	IssueDescription string       `db:"issue_description" json:"issue_description,omitempty"`
}

// Batch groups lot records processed together.
type Batch struct {
	BatchID       BatchID   `db:"batch_id" json:"batch_id"`
	ClientContext string    `db:"client_context" json:"client_context"`
	RecordCount   int       `db:"record_count" json:"record_count"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// OperationType distinguishes audit-trail entries. Previews are ephemeral and
// never persisted; only commits and rollbacks reach the operations table.
type OperationType string

const (
	OpTypePreview  OperationType = "preview"
	OpTypeCommit   OperationType = "commit"
	OpTypeRollback OperationType = "rollback"
)

// OperationResult summarizes how an operation ended.
type OperationResult string

const (
	ResultSuccess        OperationResult = "success"
	ResultPartialFailure OperationResult = "partial_failure"
	ResultFailure        OperationResult = "failure"
)

// RecordDiff is one record-level change inside an operation's audit payload.
type RecordDiff struct {
	RecordID RecordID `json:"record_id"`
	Field    string   `json:"field,omitempty"`
	Before   any      `json:"before,omitempty"`
	After    any      `json:"after,omitempty"`
	Action   string   `json:"action"`
}

// Operation is one append-only audit-trail entry. RuleSetSnapshot and
// RecordDiffs are stored serialized (write-once, read-many payloads); a
// rollback entry references the commit it reverses via ParentOperationID
// rather than mutating it.
type Operation struct {
	OperationID       OperationID     `db:"operation_id" json:"operation_id"`
	BatchID           BatchID         `db:"batch_id" json:"batch_id"`
	ParentOperationID OperationID     `db:"parent_operation_id" json:"parent_operation_id,omitempty"`
	OperatorID        string          `db:"operator_id" json:"operator_id"`
	Type              OperationType   `db:"operation_type" json:"operation_type"`
	RuleSetSnapshot   []Rule          `json:"rule_set_snapshot"`
	RecordDiffs       []RecordDiff    `json:"record_diffs"`
	Result            OperationResult `db:"result" json:"result"`
	FailureReasons    []string        `json:"failure_reasons,omitempty"`
	Timestamp         time.Time       `db:"created_at" json:"timestamp"`
}

// MarshalDiffs serializes record diffs for the operations table.
func (o *Operation) MarshalDiffs() ([]byte, error) {
	if o.RecordDiffs == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(o.RecordDiffs)
}

// MarshalRuleSet serializes the resolved rule set for the operations table.
func (o *Operation) MarshalRuleSet() ([]byte, error) {
	if o.RuleSetSnapshot == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(o.RuleSetSnapshot)
}

// Resource limits enforced before evaluation to keep request costs bounded.
const (
	// MaxBatchRecords caps a single bulk load. Larger herds ship in
	// multiple batches.
	MaxBatchRecords = 50000

	// MaxConditionsPerRule bounds the else-if chain a translated rule may
	// carry; translation output beyond this is rejected, not truncated.
	MaxConditionsPerRule = 32

	// MaxRuleTextLength bounds the natural-language input forwarded to the
	// translation collaborator.
	MaxRuleTextLength = 4096

	// MaxFieldNameLength keeps field names index-friendly.
	MaxFieldNameLength = 128
)
