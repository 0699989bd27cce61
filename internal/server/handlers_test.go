// internal/server/handlers_test.go
package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataherd/dataherd/internal/core/db"
	"github.com/dataherd/dataherd/internal/processor"
	"github.com/dataherd/dataherd/internal/report"
	"github.com/dataherd/dataherd/internal/store"
	"github.com/dataherd/dataherd/internal/translate"
	"github.com/dataherd/dataherd/internal/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestServer wires the full stack over in-memory sqlite with pattern-only
// translation.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	conn, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetMaxOpenConns(1)

	require.NoError(t, db.MigrateUp(conn))
	q, err := db.LoadQueries(conn)
	require.NoError(t, err)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ruleStore := store.NewRuleStore(q)
	batchStore := store.NewBatchStore(q)
	opStore := store.NewOperationStore(q)

	proc := processor.New(
		translate.NewService(nil, log),
		ruleStore, batchStore, opStore, store.NewApplier(q), 0, log)

	return New(Config{Host: "127.0.0.1", Port: 0}, proc,
		ruleStore, batchStore, opStore,
		report.NewBuilder(opStore, batchStore, ruleStore), log)
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createTestBatch(t *testing.T, router *gin.Engine, batchID, client string) {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/api/batches", gin.H{
		"batch_id":       batchID,
		"client_context": client,
		"records": []gin.H{
			{"lot_id": "lot-1", "weight": 350.0, "breed": "angus"},
			{"lot_id": "lot-2", "weight": 800.0, "breed": "Hereford"},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestHealth(t *testing.T) {
	router := newTestServer(t).Router()
	w := doJSON(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateBatch(t *testing.T) {
	router := newTestServer(t).Router()
	createTestBatch(t, router, "batch-1", "Elanco")

	// Duplicate batch id fails on the primary key
	w := doJSON(t, router, http.MethodPost, "/api/batches", gin.H{
		"batch_id": "batch-1",
		"records":  []gin.H{{"lot_id": "lot-9"}},
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestCreateBatch_DuplicateLotID(t *testing.T) {
	router := newTestServer(t).Router()
	w := doJSON(t, router, http.MethodPost, "/api/batches", gin.H{
		"batch_id": "batch-1",
		"records": []gin.H{
			{"lot_id": "lot-1", "weight": 350.0},
			{"lot_id": "lot-1", "weight": 800.0},
		},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestCreateBatch_MissingFields(t *testing.T) {
	router := newTestServer(t).Router()
	w := doJSON(t, router, http.MethodPost, "/api/batches", gin.H{"batch_id": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPreviewEndpoint(t *testing.T) {
	router := newTestServer(t).Router()
	createTestBatch(t, router, "batch-1", "")

	w := doJSON(t, router, http.MethodPost, "/api/preview", gin.H{
		"batch_id":  "batch-1",
		"rule_text": "Flag weights below 400",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result processor.PreviewResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Len(t, result.Changes, 1)
	assert.Equal(t, types.RecordID("lot-1"), result.Changes[0].RecordID)
	assert.Equal(t, 2, result.TotalRecords)
}

func TestPreviewEndpoint_UnknownBatch(t *testing.T) {
	router := newTestServer(t).Router()
	w := doJSON(t, router, http.MethodPost, "/api/preview", gin.H{
		"batch_id":  "nope",
		"rule_text": "anything",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCommitAndRollbackEndpoints(t *testing.T) {
	router := newTestServer(t).Router()
	createTestBatch(t, router, "batch-1", "")

	w := doJSON(t, router, http.MethodPost, "/api/commit", gin.H{
		"batch_id":    "batch-1",
		"rule_text":   "Flag weights below 400",
		"operator_id": "tester",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var commit struct {
		OperationID string `json:"operation_id"`
		Changes     int    `json:"changes_applied"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &commit))
	require.NotEmpty(t, commit.OperationID)
	assert.Equal(t, 1, commit.Changes)

	w = doJSON(t, router, http.MethodPost, "/api/rollback", gin.H{
		"batch_id":     "batch-1",
		"operation_id": commit.OperationID,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var rollback struct {
		RestoredCount int `json:"restored_count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rollback))
	assert.Equal(t, 1, rollback.RestoredCount)

	// A later commit supersedes the first one
	w = doJSON(t, router, http.MethodPost, "/api/commit", gin.H{
		"batch_id":    "batch-1",
		"rule_text":   "Flag weights below 300",
		"operator_id": "tester",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/rollback", gin.H{
		"batch_id":     "batch-1",
		"operation_id": commit.OperationID,
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRollbackEndpoint_UnknownOperation(t *testing.T) {
	router := newTestServer(t).Router()
	createTestBatch(t, router, "batch-1", "")

	w := doJSON(t, router, http.MethodPost, "/api/rollback", gin.H{
		"batch_id":     "batch-1",
		"operation_id": string(types.NewOperationID()),
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSaveRuleEndpoint(t *testing.T) {
	router := newTestServer(t).Router()

	w := doJSON(t, router, http.MethodPost, "/api/rules", gin.H{
		"name":           "elanco floor",
		"scope":          "client",
		"client_context": "Elanco",
		"conditions":     []gin.H{{"field": "weight", "operator": "lt", "value": 450}},
		"action":         gin.H{"kind": "flag"},
		"is_permanent":   true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		RuleID string `json:"rule_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.RuleID)

	w = doJSON(t, router, http.MethodGet, "/api/rules/Elanco", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listed struct {
		Rules []types.Rule `json:"rules"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.Len(t, listed.Rules, 1)

	w = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/rules/%s/deactivate", created.RuleID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, router, http.MethodGet, "/api/rules/Elanco", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.Empty(t, listed.Rules)
}

func TestSaveRuleEndpoint_InvalidRule(t *testing.T) {
	router := newTestServer(t).Router()

	// client scope without context fails validation with 422
	w := doJSON(t, router, http.MethodPost, "/api/rules", gin.H{
		"name":       "broken",
		"scope":      "client",
		"conditions": []gin.H{{"field": "weight", "operator": "lt", "value": 450}},
		"action":     gin.H{"kind": "flag"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestDeactivateEndpoint_BadID(t *testing.T) {
	router := newTestServer(t).Router()
	w := doJSON(t, router, http.MethodPost, "/api/rules/not-a-uuid/deactivate", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOperationsEndpoint(t *testing.T) {
	router := newTestServer(t).Router()
	createTestBatch(t, router, "batch-1", "")

	w := doJSON(t, router, http.MethodPost, "/api/commit", gin.H{
		"batch_id":    "batch-1",
		"rule_text":   "Flag weights below 400",
		"operator_id": "tester",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/operations?batch_id=batch-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listed struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.Equal(t, 1, listed.Count)

	w = doJSON(t, router, http.MethodGet, "/api/operations?batch_id=other", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.Zero(t, listed.Count)

	w = doJSON(t, router, http.MethodGet, "/api/operations?start_date=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportEndpoints(t *testing.T) {
	router := newTestServer(t).Router()
	createTestBatch(t, router, "batch-1", "Elanco")

	w := doJSON(t, router, http.MethodPost, "/api/commit", gin.H{
		"batch_id":    "batch-1",
		"rule_text":   "Flag weights below 400",
		"operator_id": "tester",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/report", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var summary report.Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.Commits)
	assert.Equal(t, 1, summary.Flagged)
	require.Len(t, summary.Clients, 1)
	assert.Equal(t, "Elanco", summary.Clients[0].ClientContext)

	w = doJSON(t, router, http.MethodGet, "/api/report/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")
	assert.NotEmpty(t, w.Body.Bytes())
}
