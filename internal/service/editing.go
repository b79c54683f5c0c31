package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"closeout.app/engine/common/logger"
	"closeout.app/engine/internal/model"
	"closeout.app/engine/internal/session"
	"closeout.app/engine/internal/store"
)

type EditStepKind string

const (
	// StepPrompt asks the operator for the named field.
	StepPrompt EditStepKind = "prompt"
	// StepReprompt repeats the same field after a value that failed
	// validation. The dialogue does not advance.
	StepReprompt EditStepKind = "reprompt"
	// StepPreview ends the dialogue on the canonical preview.
	StepPreview EditStepKind = "preview"
)

// EditStep is what the operator sees next after any edit action.
type EditStep struct {
	Kind    EditStepKind      `json:"kind"`
	Field   model.ReportField `json:"field,omitempty"`
	Message string            `json:"message,omitempty"`
	Preview *Preview          `json:"preview,omitempty"`
}

// EditService drives the field-editing dialogue. A session either walks
// the unset fields in fill order or targets one explicitly chosen field;
// in the latter case a single commit always lands back on the preview.
type EditService interface {
	Start(ctx context.Context, reportID int64, operatorID string, field *model.ReportField) (*EditStep, error)
	Submit(ctx context.Context, reportID int64, operatorID string, field model.ReportField, value string) (*EditStep, error)
	Cancel(ctx context.Context, reportID int64, operatorID string) error
}

type editService struct {
	reports  store.ReportStore
	sessions session.Store
	previews PreviewService
	logger   *slog.Logger
}

func NewEditService(reports store.ReportStore, sessions session.Store, previews PreviewService, logger *slog.Logger) EditService {
	if logger == nil {
		logger = slog.Default()
	}
	return &editService{
		reports:  reports,
		sessions: sessions,
		previews: previews,
		logger:   logger,
	}
}

func (s *editService) Start(ctx context.Context, reportID int64, operatorID string, field *model.ReportField) (*EditStep, error) {
	if operatorID == "" {
		return nil, fmt.Errorf("operator id is required")
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ReportID:   logger.Ptr(reportID),
		OperatorID: logger.Ptr(operatorID),
	})

	report, err := s.getEditable(ctx, reportID)
	if err != nil {
		return nil, err
	}

	st := &session.State{
		ReportID:   report.ID,
		OperatorID: operatorID,
		StartedAt:  time.Now(),
	}

	if field != nil {
		if !editableField(*field) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, *field)
		}
		st.Phase = session.PhaseEditing
		st.TargetField = *field
	} else {
		next, ok := nextMissing(report)
		if !ok {
			// Nothing left to fill: land straight on the preview.
			return s.finishToPreview(ctx, report.ID, operatorID)
		}
		st.Phase = session.PhaseFilling
		st.TargetField = next
	}

	if err := s.sessions.Save(ctx, st); err != nil {
		return nil, fmt.Errorf("saving edit session: %w", err)
	}

	s.logger.InfoContext(ctx, "edit session started",
		"report_id", report.ID,
		"operator_id", operatorID,
		"phase", st.Phase,
		"field", st.TargetField,
	)

	return promptFor(st.TargetField), nil
}

func (s *editService) Submit(ctx context.Context, reportID int64, operatorID string, field model.ReportField, value string) (*EditStep, error) {
	if operatorID == "" {
		return nil, fmt.Errorf("operator id is required")
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ReportID:   logger.Ptr(reportID),
		OperatorID: logger.Ptr(operatorID),
	})

	st, err := s.sessions.Get(ctx, reportID, operatorID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("loading edit session: %w", err)
	}

	report, err := s.getEditable(ctx, reportID)
	if err != nil {
		return nil, err
	}

	// Guards against a stale submit racing a newer prompt.
	if field != "" && field != st.TargetField {
		return nil, fmt.Errorf("%w: prompted for %s, got %s", ErrFieldMismatch, st.TargetField, field)
	}

	if err := s.commitField(ctx, report, st.TargetField, value); err != nil {
		if msg := validationMessage(st.TargetField, err); msg != "" {
			return &EditStep{Kind: StepReprompt, Field: st.TargetField, Message: msg}, nil
		}
		return nil, err
	}

	return s.advance(ctx, report, st)
}

func (s *editService) Cancel(ctx context.Context, reportID int64, operatorID string) error {
	if _, err := s.sessions.Get(ctx, reportID, operatorID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return ErrNoSession
		}
		return fmt.Errorf("loading edit session: %w", err)
	}

	if err := s.sessions.Delete(ctx, reportID, operatorID); err != nil {
		return fmt.Errorf("deleting edit session: %w", err)
	}

	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrReportNotFound
		}
		return fmt.Errorf("fetching report: %w", err)
	}

	// Committed field edits stay. Only the dialogue and the reviewed mark
	// are discarded.
	if report.Status == model.ReportStatusReviewed {
		if err := s.reports.SetStatus(ctx, reportID, model.ReportStatusPendingFields); err != nil {
			return fmt.Errorf("resetting report status: %w", err)
		}
	}

	s.logger.InfoContext(ctx, "edit session cancelled",
		"report_id", reportID,
		"operator_id", operatorID,
	)
	return nil
}

// advance is the single transition rule of the dialogue: a commit in the
// editing phase always lands on the preview; a commit in the filling
// phase moves to the next unset field and lands on the preview only when
// none remain.
func (s *editService) advance(ctx context.Context, report *model.Report, st *session.State) (*EditStep, error) {
	if st.Phase == session.PhaseEditing {
		return s.finishToPreview(ctx, report.ID, st.OperatorID)
	}

	next, ok := nextMissing(report)
	if !ok {
		return s.finishToPreview(ctx, report.ID, st.OperatorID)
	}

	st.TargetField = next
	if err := s.sessions.Save(ctx, st); err != nil {
		return nil, fmt.Errorf("saving edit session: %w", err)
	}
	return promptFor(next), nil
}

func (s *editService) finishToPreview(ctx context.Context, reportID int64, operatorID string) (*EditStep, error) {
	if err := s.sessions.Delete(ctx, reportID, operatorID); err != nil {
		s.logger.WarnContext(ctx, "deleting edit session failed",
			"report_id", reportID,
			"operator_id", operatorID,
			"error", err,
		)
	}

	preview, err := s.previews.Render(ctx, reportID)
	if err != nil {
		return nil, err
	}
	return &EditStep{Kind: StepPreview, Preview: preview}, nil
}

func (s *editService) commitField(ctx context.Context, report *model.Report, field model.ReportField, value string) error {
	reports := s.reports

	switch field {
	case model.FieldDuration:
		canonical, err := ParseDuration(value)
		if err != nil {
			return err
		}
		if err := reports.SetDuration(ctx, report.ID, canonical); err != nil {
			return fmt.Errorf("saving duration: %w", err)
		}
		report.Duration = &canonical

	case model.FieldWorkMode:
		mode, err := parseWorkMode(value)
		if err != nil {
			return err
		}
		if err := reports.SetWorkMode(ctx, report.ID, mode); err != nil {
			return fmt.Errorf("saving work mode: %w", err)
		}
		report.WorkMode = &mode

	case model.FieldCompany:
		company := strings.TrimSpace(value)
		if company == "" {
			return ErrEmptyValue
		}
		if err := reports.SetCompany(ctx, report.ID, company); err != nil {
			return fmt.Errorf("saving company: %w", err)
		}
		report.Company = &company

	case model.FieldWorkers:
		workers := parseWorkers(value)
		if len(workers) == 0 {
			return ErrEmptyValue
		}
		if err := reports.SetWorkers(ctx, report.ID, workers); err != nil {
			return fmt.Errorf("saving workers: %w", err)
		}
		report.Workers = workers

	case model.FieldReportText:
		text := strings.TrimSpace(value)
		if text == "" {
			return ErrEmptyValue
		}
		if err := reports.SetReportText(ctx, report.ID, text); err != nil {
			return fmt.Errorf("saving report text: %w", err)
		}
		report.ReportText = text

	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}

	s.logger.InfoContext(ctx, "report field committed",
		"report_id", report.ID,
		"field", field,
	)
	return nil
}

func (s *editService) getEditable(ctx context.Context, reportID int64) (*model.Report, error) {
	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("fetching report: %w", err)
	}
	if report.Status.IsTerminal() {
		return nil, ErrAlreadyProcessed
	}
	return report, nil
}

// validationMessage maps operator input errors to the re-prompt text.
// Empty for infrastructure errors, which propagate instead.
func validationMessage(field model.ReportField, err error) string {
	switch {
	case errors.Is(err, ErrInvalidDuration):
		return "Не удалось распознать длительность. Примеры: 1:30, 90, 2ч 15м, 45м."
	case errors.Is(err, ErrInvalidWorkMode):
		return "Не удалось распознать формат работы. Укажите: выезд или удалённо."
	case errors.Is(err, ErrEmptyValue):
		return fmt.Sprintf("Поле «%s» не может быть пустым.", fieldLabel(field))
	}
	return ""
}

func nextMissing(report *model.Report) (model.ReportField, bool) {
	for _, f := range model.FillOrder {
		if !report.FieldSet(f) {
			return f, true
		}
	}
	return "", false
}

func editableField(f model.ReportField) bool {
	switch f {
	case model.FieldDuration, model.FieldWorkMode, model.FieldCompany, model.FieldWorkers, model.FieldReportText:
		return true
	}
	return false
}

func promptFor(field model.ReportField) *EditStep {
	return &EditStep{Kind: StepPrompt, Field: field, Message: promptMessage(field)}
}

func promptMessage(field model.ReportField) string {
	switch field {
	case model.FieldDuration:
		return "Укажите длительность работ (например: 1:30, 90, 2ч 15м, 45м)."
	case model.FieldWorkMode:
		return "Укажите формат работы: выезд или удалённо."
	case model.FieldCompany:
		return "Укажите название компании."
	case model.FieldWorkers:
		return "Перечислите исполнителей через запятую."
	case model.FieldReportText:
		return "Отправьте новый текст отчёта."
	}
	return ""
}

func parseWorkMode(raw string) (model.WorkMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "on_site", "onsite", "on-site", "выезд", "офис":
		return model.WorkModeOnSite, nil
	case "remote", "удаленно", "удалённо", "дистанционно":
		return model.WorkModeRemote, nil
	case "":
		return "", ErrEmptyValue
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidWorkMode, raw)
}

func parseWorkers(raw string) []string {
	parts := strings.Split(raw, ",")
	workers := make([]string, 0, len(parts))
	for _, p := range parts {
		if name := strings.TrimSpace(p); name != "" {
			workers = append(workers, name)
		}
	}
	return dedupeNames(workers)
}
