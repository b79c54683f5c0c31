package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"closeout.app/engine/internal/model"
	"closeout.app/engine/internal/store"
)

const dateLayout = "02.01.2006"

// Preview is the canonical rendering of a report. It is recomputed from
// the stored row on every call, never cached, so edits can never diverge
// from what the operator ships.
type Preview struct {
	Report  *model.Report       `json:"report"`
	Text    string              `json:"text"`
	Summary string              `json:"summary"`
	Missing []model.ReportField `json:"missing,omitempty"`
}

type PreviewService interface {
	Render(ctx context.Context, reportID int64) (*Preview, error)
}

type previewService struct {
	reports store.ReportStore
	logger  *slog.Logger
}

func NewPreviewService(reports store.ReportStore, logger *slog.Logger) PreviewService {
	if logger == nil {
		logger = slog.Default()
	}
	return &previewService{reports: reports, logger: logger}
}

func (s *previewService) Render(ctx context.Context, reportID int64) (*Preview, error) {
	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("fetching report: %w", err)
	}

	if report.Status == model.ReportStatusPendingFields {
		if err := s.reports.SetStatus(ctx, report.ID, model.ReportStatusReviewed); err != nil {
			return nil, fmt.Errorf("marking report reviewed: %w", err)
		}
		report.Status = model.ReportStatusReviewed
	}

	return &Preview{
		Report:  report,
		Text:    report.ReportText,
		Summary: buildSummary(report),
		Missing: report.MissingFields(),
	}, nil
}

func buildSummary(report *model.Report) string {
	lines := []string{
		fmt.Sprintf("Отчёт #%d", report.SequenceNumber),
		"Дата: " + report.ClosedAt.Format(dateLayout),
		"Компания: " + orDash(report.Company),
		"Исполнители: " + workersLine(report.Workers),
		"Длительность: " + orDash(report.Duration),
		"Формат: " + workModeLabel(report.WorkMode),
	}

	if missing := report.MissingFields(); len(missing) > 0 {
		lines = append(lines, "Не заполнено: "+fieldList(missing))
	}

	if report.ReportText != "" {
		lines = append(lines, "", report.ReportText)
	}

	return strings.Join(lines, "\n")
}

func orDash(v *string) string {
	if v == nil || *v == "" {
		return "—"
	}
	return *v
}

func workersLine(workers []string) string {
	if len(workers) == 0 {
		return "—"
	}
	return strings.Join(workers, ", ")
}

func workModeLabel(mode *model.WorkMode) string {
	if mode == nil {
		return "—"
	}
	switch *mode {
	case model.WorkModeOnSite:
		return "выезд"
	case model.WorkModeRemote:
		return "удалённо"
	}
	return string(*mode)
}

func fieldLabel(f model.ReportField) string {
	switch f {
	case model.FieldDuration:
		return "длительность"
	case model.FieldWorkMode:
		return "формат работы"
	case model.FieldCompany:
		return "компания"
	case model.FieldWorkers:
		return "исполнители"
	case model.FieldReportText:
		return "текст отчёта"
	}
	return string(f)
}

func fieldList(fields []model.ReportField) string {
	labels := make([]string, len(fields))
	for i, f := range fields {
		labels[i] = fieldLabel(f)
	}
	return strings.Join(labels, ", ")
}
