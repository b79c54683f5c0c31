package webhook

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"closeout.app/engine/common/logger"
	"closeout.app/engine/internal/http/dto"
	"closeout.app/engine/internal/service"
)

// TrackerWebhookHandler receives close events from the workflow layer
// that watches the issue tracker. It is the only unauthenticated-ish
// entry point, so it carries its own shared-secret check.
type TrackerWebhookHandler struct {
	intake service.IntakeService
	secret string
}

func NewTrackerWebhookHandler(intake service.IntakeService, secret string) *TrackerWebhookHandler {
	return &TrackerWebhookHandler{
		intake: intake,
		secret: secret,
	}
}

func (h *TrackerWebhookHandler) HandleClose(c *gin.Context) {
	ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{
		Component: "engine.http.webhook.tracker",
	})

	token := c.GetHeader("X-Webhook-Token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing webhook token"})
		return
	}
	if token != h.secret {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook token"})
		return
	}

	var req dto.CloseEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "malformed close event payload", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	// Everything logged from here on carries the issue id.
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ExternalIssueID: logger.Ptr(req.ExternalIssueID),
	})

	result, err := h.intake.Ingest(ctx, service.IntakeParams{
		ExternalIssueID: req.ExternalIssueID,
		SequenceNumber:  req.SequenceNumber,
		ProjectKey:      req.ProjectID,
		Title:           req.Title,
		Description:     req.Description,
		ClosedBy:        req.ClosedBy.Name(),
		ClosedByEmail:   req.ClosedBy.Email,
		ClosedAt:        req.ClosedAt,
		LinkageID:       req.LinkageID,
	})
	if err != nil {
		// Full detail stays in the log; the response body never carries
		// internal error text.
		slog.ErrorContext(ctx, "failed to process close event",
			"error", err,
			"external_issue_id", req.ExternalIssueID,
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process event"})
		return
	}

	slog.InfoContext(ctx, "tracker webhook processed",
		"report_id", result.Report.ID,
		"external_issue_id", result.Report.ExternalIssueID,
		"sequence_number", result.Report.SequenceNumber,
		"duplicated", result.Duplicated,
	)

	c.JSON(http.StatusOK, dto.CloseEventResponse{
		Status:         "processed",
		ReportID:       result.Report.ID,
		SequenceNumber: result.Report.SequenceNumber,
	})
}
