package dto

import (
	"time"

	"closeout.app/engine/internal/model"
	"closeout.app/engine/internal/service"
)

// CloseEventRequest is the payload the workflow layer posts when a
// tracker issue is closed. Only the external issue id is mandatory;
// everything else is best effort.
type CloseEventRequest struct {
	ExternalIssueID string     `json:"external_issue_id" binding:"required"`
	SequenceNumber  int64      `json:"sequence_number"`
	ProjectID       string     `json:"project_id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	ClosedBy        CloseActor `json:"closed_by"`
	ClosedAt        time.Time  `json:"closed_at"`
	LinkageID       *int64     `json:"linkage_id,omitempty"`
}

type CloseActor struct {
	DisplayName string `json:"display_name"`
	FirstName   string `json:"first_name"`
	Email       string `json:"email"`
}

// Name prefers the full display name and falls back to the bare first
// name some tracker accounts carry instead.
func (a CloseActor) Name() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.FirstName
}

type CloseEventResponse struct {
	Status         string `json:"status"`
	ReportID       int64  `json:"report_id"`
	SequenceNumber int64  `json:"sequence_number"`
}

type ReportResponse struct {
	ID              int64      `json:"id"`
	ExternalIssueID string     `json:"external_issue_id"`
	SequenceNumber  int64      `json:"sequence_number"`
	ProjectKey      string     `json:"project_key"`
	Title           string     `json:"title"`
	ReportText      string     `json:"report_text"`
	Duration        *string    `json:"duration,omitempty"`
	WorkMode        *string    `json:"work_mode,omitempty"`
	Company         *string    `json:"company,omitempty"`
	Workers         []string   `json:"workers,omitempty"`
	HasClientLink   bool       `json:"has_client_link"`
	JournalEntryID  *int64     `json:"journal_entry_id,omitempty"`
	Status          string     `json:"status"`
	MissingFields   []string   `json:"missing_fields,omitempty"`
	ClosedBy        string     `json:"closed_by"`
	ClosedAt        time.Time  `json:"closed_at"`
	SentAt          *time.Time `json:"sent_at,omitempty"`
	EscalationLevel int        `json:"escalation_level"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func ToReportResponse(r *model.Report) *ReportResponse {
	resp := &ReportResponse{
		ID:              r.ID,
		ExternalIssueID: r.ExternalIssueID,
		SequenceNumber:  r.SequenceNumber,
		ProjectKey:      r.ProjectKey,
		Title:           r.Title,
		ReportText:      r.ReportText,
		Duration:        r.Duration,
		Company:         r.Company,
		Workers:         r.Workers,
		HasClientLink:   r.HasClientLink(),
		JournalEntryID:  r.JournalEntryID,
		Status:          string(r.Status),
		MissingFields:   fieldNames(r.MissingFields()),
		ClosedBy:        r.ClosedBy,
		ClosedAt:        r.ClosedAt,
		SentAt:          r.SentAt,
		EscalationLevel: r.EscalationLevel,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if r.WorkMode != nil {
		mode := string(*r.WorkMode)
		resp.WorkMode = &mode
	}
	return resp
}

type ListReportsResponse struct {
	Reports []ReportResponse `json:"reports"`
}

type PreviewResponse struct {
	Report        *ReportResponse `json:"report"`
	Summary       string          `json:"summary"`
	Text          string          `json:"text"`
	MissingFields []string        `json:"missing_fields,omitempty"`
}

func ToPreviewResponse(p *service.Preview) *PreviewResponse {
	return &PreviewResponse{
		Report:        ToReportResponse(p.Report),
		Summary:       p.Summary,
		Text:          p.Text,
		MissingFields: fieldNames(p.Missing),
	}
}

type StartEditRequest struct {
	OperatorID string  `json:"operator_id" binding:"required"`
	Field      *string `json:"field,omitempty"`
}

type SubmitFieldRequest struct {
	OperatorID string `json:"operator_id" binding:"required"`
	Field      string `json:"field" binding:"required"`
	Value      string `json:"value"`
}

// EditStepResponse tells the operator client what to render next: a
// prompt for a field, a re-prompt after invalid input, or the preview.
type EditStepResponse struct {
	Kind    string           `json:"kind"`
	Field   string           `json:"field,omitempty"`
	Message string           `json:"message,omitempty"`
	Preview *PreviewResponse `json:"preview,omitempty"`
}

func ToEditStepResponse(step *service.EditStep) *EditStepResponse {
	resp := &EditStepResponse{
		Kind:    string(step.Kind),
		Field:   string(step.Field),
		Message: step.Message,
	}
	if step.Preview != nil {
		resp.Preview = ToPreviewResponse(step.Preview)
	}
	return resp
}

type ApproveRequest struct {
	OperatorID string `json:"operator_id" binding:"required"`
}

type CloseReportRequest struct {
	OperatorID string `json:"operator_id" binding:"required"`
}

type StepOutcomeResponse struct {
	Step   string `json:"step"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

type FanoutSummaryResponse struct {
	Report *ReportResponse       `json:"report"`
	Steps  []StepOutcomeResponse `json:"steps"`
}

func ToFanoutSummaryResponse(s *service.FanoutSummary) *FanoutSummaryResponse {
	resp := &FanoutSummaryResponse{
		Report: ToReportResponse(s.Report),
		Steps:  make([]StepOutcomeResponse, len(s.Steps)),
	}
	for i, step := range s.Steps {
		resp.Steps[i] = StepOutcomeResponse{Step: step.Step, OK: step.OK, Detail: step.Detail}
	}
	return resp
}

func fieldNames(fields []model.ReportField) []string {
	if len(fields) == 0 {
		return nil
	}
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}
	return names
}
