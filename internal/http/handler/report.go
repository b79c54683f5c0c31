package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"closeout.app/engine/internal/http/dto"
	"closeout.app/engine/internal/model"
	"closeout.app/engine/internal/service"
	"closeout.app/engine/internal/store"
)

// ReportHandler is the operator-facing API: inspect reports, drive the
// fill/edit dialogue, approve or close. Every route sits behind the
// admin API key.
type ReportHandler struct {
	reports     store.ReportStore
	previews    service.PreviewService
	edits       service.EditService
	approvals   service.ApprovalService
	adminAPIKey string
}

func NewReportHandler(
	reports store.ReportStore,
	previews service.PreviewService,
	edits service.EditService,
	approvals service.ApprovalService,
	adminAPIKey string,
) *ReportHandler {
	return &ReportHandler{
		reports:     reports,
		previews:    previews,
		edits:       edits,
		approvals:   approvals,
		adminAPIKey: adminAPIKey,
	}
}

// List returns reports, optionally filtered by status.
func (h *ReportHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	var status *model.ReportStatus
	if raw := c.Query("status"); raw != "" {
		parsed, ok := parseReportStatus(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
			return
		}
		status = &parsed
	}

	reports, err := h.reports.List(ctx, status)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list reports", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list reports"})
		return
	}

	resp := dto.ListReportsResponse{
		Reports: make([]dto.ReportResponse, len(reports)),
	}
	for i := range reports {
		resp.Reports[i] = *dto.ToReportResponse(&reports[i])
	}

	c.JSON(http.StatusOK, resp)
}

// Get returns a single report by id.
func (h *ReportHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	reportID, ok := reportIDParam(c)
	if !ok {
		return
	}

	report, err := h.reports.GetByID(ctx, reportID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
			return
		}
		slog.ErrorContext(ctx, "failed to get report", "error", err, "report_id", reportID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get report"})
		return
	}

	c.JSON(http.StatusOK, dto.ToReportResponse(report))
}

// Preview renders the canonical preview, recomputed from the current row.
func (h *ReportHandler) Preview(c *gin.Context) {
	ctx := c.Request.Context()

	reportID, ok := reportIDParam(c)
	if !ok {
		return
	}

	preview, err := h.previews.Render(ctx, reportID)
	if err != nil {
		if errors.Is(err, service.ErrReportNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
			return
		}
		slog.ErrorContext(ctx, "failed to render preview", "error", err, "report_id", reportID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to render preview"})
		return
	}

	c.JSON(http.StatusOK, dto.ToPreviewResponse(preview))
}

// StartEdit opens an edit session: sequential fill when no field is
// named, jump-to-field otherwise.
func (h *ReportHandler) StartEdit(c *gin.Context) {
	ctx := c.Request.Context()

	reportID, ok := reportIDParam(c)
	if !ok {
		return
	}

	var req dto.StartEditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: operator_id is required"})
		return
	}

	var field *model.ReportField
	if req.Field != nil {
		f := model.ReportField(*req.Field)
		field = &f
	}

	step, err := h.edits.Start(ctx, reportID, req.OperatorID, field)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrReportNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
		case errors.Is(err, service.ErrAlreadyProcessed):
			c.JSON(http.StatusConflict, gin.H{"error": "report already processed"})
		case errors.Is(err, service.ErrUnknownField):
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown report field"})
		default:
			slog.ErrorContext(ctx, "failed to start edit session", "error", err, "report_id", reportID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start edit session"})
		}
		return
	}

	c.JSON(http.StatusOK, dto.ToEditStepResponse(step))
}

// SubmitField commits one field value and returns the next step of the
// dialogue.
func (h *ReportHandler) SubmitField(c *gin.Context) {
	ctx := c.Request.Context()

	reportID, ok := reportIDParam(c)
	if !ok {
		return
	}

	var req dto.SubmitFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: operator_id and field are required"})
		return
	}

	step, err := h.edits.Submit(ctx, reportID, req.OperatorID, model.ReportField(req.Field), req.Value)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrReportNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
		case errors.Is(err, service.ErrNoSession):
			c.JSON(http.StatusNotFound, gin.H{"error": "no active edit session"})
		case errors.Is(err, service.ErrAlreadyProcessed):
			c.JSON(http.StatusConflict, gin.H{"error": "report already processed"})
		case errors.Is(err, service.ErrFieldMismatch):
			c.JSON(http.StatusConflict, gin.H{"error": "submitted field does not match the active prompt"})
		case errors.Is(err, service.ErrUnknownField):
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown report field"})
		default:
			slog.ErrorContext(ctx, "failed to submit field", "error", err, "report_id", reportID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to submit field"})
		}
		return
	}

	c.JSON(http.StatusOK, dto.ToEditStepResponse(step))
}

// CancelEdit drops the edit session. Committed field values stay.
func (h *ReportHandler) CancelEdit(c *gin.Context) {
	ctx := c.Request.Context()

	reportID, ok := reportIDParam(c)
	if !ok {
		return
	}

	operatorID := c.Query("operator_id")
	if operatorID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "operator_id is required"})
		return
	}

	if err := h.edits.Cancel(ctx, reportID, operatorID); err != nil {
		switch {
		case errors.Is(err, service.ErrNoSession):
			c.JSON(http.StatusNotFound, gin.H{"error": "no active edit session"})
		default:
			slog.ErrorContext(ctx, "failed to cancel edit session", "error", err, "report_id", reportID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to cancel edit session"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

// Approve runs the delivery fan-out and returns the per-step summary.
func (h *ReportHandler) Approve(c *gin.Context) {
	ctx := c.Request.Context()

	reportID, ok := reportIDParam(c)
	if !ok {
		return
	}

	var req dto.ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: operator_id is required"})
		return
	}

	summary, err := h.approvals.Approve(ctx, reportID, req.OperatorID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrReportNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
		case errors.Is(err, service.ErrAlreadyProcessed):
			c.JSON(http.StatusConflict, gin.H{"error": "report already processed"})
		case errors.Is(err, service.ErrNotReviewed):
			c.JSON(http.StatusConflict, gin.H{"error": "report has not been reviewed"})
		case errors.Is(err, service.ErrClientDeliveryFailed):
			c.JSON(http.StatusBadGateway, gin.H{"error": "client delivery failed, report not approved"})
		default:
			slog.ErrorContext(ctx, "failed to approve report", "error", err, "report_id", reportID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to approve report"})
		}
		return
	}

	c.JSON(http.StatusOK, dto.ToFanoutSummaryResponse(summary))
}

// Close cancels the report without producing anything.
func (h *ReportHandler) Close(c *gin.Context) {
	ctx := c.Request.Context()

	reportID, ok := reportIDParam(c)
	if !ok {
		return
	}

	var req dto.CloseReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: operator_id is required"})
		return
	}

	report, err := h.approvals.CloseWithoutReport(ctx, reportID, req.OperatorID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrReportNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
		case errors.Is(err, service.ErrAlreadyProcessed):
			c.JSON(http.StatusConflict, gin.H{"error": "report already processed"})
		default:
			slog.ErrorContext(ctx, "failed to close report", "error", err, "report_id", reportID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to close report"})
		}
		return
	}

	c.JSON(http.StatusOK, dto.ToReportResponse(report))
}

// RequireAdminAPIKey middleware checks for valid admin API key
func (h *ReportHandler) RequireAdminAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.adminAPIKey == "" {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "admin API not configured"})
			c.Abort()
			return
		}

		apiKey := c.GetHeader("X-Admin-API-Key")
		if apiKey == "" {
			apiKey = c.GetHeader("Authorization")
			if len(apiKey) > 7 && apiKey[:7] == "Bearer " {
				apiKey = apiKey[7:]
			}
		}

		if apiKey != h.adminAPIKey {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing API key"})
			c.Abort()
			return
		}

		c.Next()
	}
}

func reportIDParam(c *gin.Context) (int64, bool) {
	reportID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report id"})
		return 0, false
	}
	return reportID, true
}

func parseReportStatus(raw string) (model.ReportStatus, bool) {
	switch model.ReportStatus(raw) {
	case model.ReportStatusPendingFields,
		model.ReportStatusReviewed,
		model.ReportStatusApprovedSent,
		model.ReportStatusApprovedNoSend,
		model.ReportStatusCancelled:
		return model.ReportStatus(raw), true
	}
	return "", false
}
