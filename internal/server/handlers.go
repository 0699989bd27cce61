package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dataherd/dataherd/internal/report"
	"github.com/dataherd/dataherd/internal/store"
	"github.com/dataherd/dataherd/internal/types"
)

type previewRequest struct {
	BatchID       string `json:"batch_id" binding:"required"`
	RuleText      string `json:"rule_text" binding:"required"`
	ClientContext string `json:"client_context"`
}

func (s *Server) handlePreview(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	result, err := s.proc.Preview(c.Request.Context(), types.BatchID(req.BatchID), req.RuleText, req.ClientContext)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type commitRequest struct {
	BatchID            string `json:"batch_id" binding:"required"`
	RuleText           string `json:"rule_text" binding:"required"`
	ClientContext      string `json:"client_context"`
	OperatorID         string `json:"operator_id" binding:"required"`
	PersistPermanently bool   `json:"persist_permanently"`
}

func (s *Server) handleCommit(c *gin.Context) {
	var req commitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	result, err := s.proc.Commit(c.Request.Context(),
		types.BatchID(req.BatchID), req.RuleText, req.ClientContext,
		req.OperatorID, req.PersistPermanently)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":          "committed",
		"operation_id":    result.OperationID,
		"changes_applied": result.ChangesApplied,
		"records_updated": result.RecordsUpdated,
	})
}

type rollbackRequest struct {
	BatchID     string `json:"batch_id" binding:"required"`
	OperationID string `json:"operation_id" binding:"required"`
}

func (s *Server) handleRollback(c *gin.Context) {
	var req rollbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	result, err := s.proc.Rollback(c.Request.Context(), types.BatchID(req.BatchID), types.OperationID(req.OperationID))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":         "rolled_back",
		"operation_id":   result.OperationID,
		"restored_count": result.RestoredCount,
	})
}

type createBatchRequest struct {
	BatchID       string           `json:"batch_id" binding:"required"`
	ClientContext string           `json:"client_context"`
	Records       []types.FieldMap `json:"records" binding:"required"`
}

func (s *Server) handleCreateBatch(c *gin.Context) {
	var req createBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	records := make([]types.Record, 0, len(req.Records))
	seen := make(map[types.RecordID]struct{}, len(req.Records))
	for i, fields := range req.Records {
		id := types.RecordID(fmt.Sprintf("row-%05d", i+1))
		if v, ok := fields["lot_id"].(string); ok && v != "" {
			id = types.RecordID(v)
		}
		if _, dup := seen[id]; dup {
			s.renderError(c, types.Validation(fmt.Errorf("duplicate lot_id %q in upload", id)))
			return
		}
		seen[id] = struct{}{}
		records = append(records, types.Record{
			RecordID: id,
			BatchID:  types.BatchID(req.BatchID),
			Original: fields,
			Current:  fields.Clone(),
			Status:   types.StatusOriginal,
		})
	}

	batch := types.Batch{
		BatchID:       types.BatchID(req.BatchID),
		ClientContext: req.ClientContext,
	}
	if err := s.batches.CreateBatch(c.Request.Context(), batch, records); err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"batch_id":     req.BatchID,
		"record_count": len(records),
	})
}

type saveRuleRequest struct {
	Name          string            `json:"name" binding:"required"`
	Description   string            `json:"description"`
	Scope         string            `json:"scope" binding:"required"`
	ClientContext string            `json:"client_context"`
	Conditions    []types.Condition `json:"conditions" binding:"required"`
	Action        types.Action      `json:"action" binding:"required"`
	IsPermanent   bool              `json:"is_permanent"`
	Confidence    float64           `json:"confidence"`
}

func (s *Server) handleSaveRule(c *gin.Context) {
	var req saveRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	confidence := req.Confidence
	if confidence <= 0 || confidence > 1 {
		confidence = 1.0
	}
	rule := types.Rule{
		RuleID:        types.NewRuleID(),
		Name:          req.Name,
		Description:   req.Description,
		Scope:         types.Scope(req.Scope),
		ClientContext: req.ClientContext,
		Conditions:    req.Conditions,
		Action:        req.Action,
		IsPermanent:   req.IsPermanent,
		IsActive:      true,
		Confidence:    confidence,
	}
	if err := s.rules.Save(c.Request.Context(), rule); err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"rule_id": rule.RuleID})
}

func (s *Server) handleDeactivateRule(c *gin.Context) {
	id, err := types.ParseRuleID(c.Param("id"))
	if err != nil {
		badRequest(c, err)
		return
	}
	if err := s.rules.Deactivate(c.Request.Context(), id); err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rule_id": id, "is_active": false})
}

func (s *Server) handleListRules(c *gin.Context) {
	clientContext := c.Param("id")
	clientRules, err := s.rules.ListForClient(c.Request.Context(), clientContext)
	if err != nil {
		s.renderError(c, err)
		return
	}
	permanent, err := s.rules.ListPermanent(c.Request.Context())
	if err != nil {
		s.renderError(c, err)
		return
	}

	seen := make(map[types.RuleID]struct{}, len(clientRules))
	for _, r := range clientRules {
		seen[r.RuleID] = struct{}{}
	}
	merged := clientRules
	for _, r := range permanent {
		if _, dup := seen[r.RuleID]; dup {
			continue
		}
		merged = append(merged, r)
	}
	c.JSON(http.StatusOK, gin.H{"client_context": clientContext, "rules": merged})
}

func (s *Server) handleListOperations(c *gin.Context) {
	filter, err := operationFilterFromQuery(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	ops, err := s.ops.List(c.Request.Context(), filter)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"operations": ops, "count": len(ops)})
}

func (s *Server) handleReport(c *gin.Context) {
	filter, err := operationFilterFromQuery(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	summary, err := s.reports.Build(c.Request.Context(), filter)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleReportExport(c *gin.Context) {
	filter, err := operationFilterFromQuery(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	summary, err := s.reports.Build(c.Request.Context(), filter)
	if err != nil {
		s.renderError(c, err)
		return
	}
	payload, err := report.ExportXLSX(summary)
	if err != nil {
		s.renderError(c, err)
		return
	}
	filename := fmt.Sprintf("dataherd-report-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", payload)
}

func operationFilterFromQuery(c *gin.Context) (store.OperationFilter, error) {
	filter := store.OperationFilter{
		BatchID:    types.BatchID(c.Query("batch_id")),
		OperatorID: c.Query("operator_id"),
	}
	if v := c.Query("start_date"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return store.OperationFilter{}, fmt.Errorf("start_date: %w", err)
		}
		filter.Since = t
	}
	if v := c.Query("end_date"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return store.OperationFilter{}, fmt.Errorf("end_date: %w", err)
		}
		filter.Until = t
	}
	return filter, nil
}

// parseDate accepts date-only and full RFC3339 timestamps.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, errors.New("expected YYYY-MM-DD or RFC3339")
	}
	return t, nil
}
