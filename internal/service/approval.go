package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"closeout.app/engine/common/id"
	"closeout.app/engine/internal/chat"
	"closeout.app/engine/internal/model"
	"closeout.app/engine/internal/sheets"
	"closeout.app/engine/internal/store"
)

// Fan-out step names as they appear in summaries and logs.
const (
	StepClientDelivery  = "client_delivery"
	StepJournalEntry    = "journal_entry"
	StepSpreadsheetSync = "spreadsheet_sync"
	StepGroupNotify     = "group_notify"
)

// StepOutcome records how one fan-out step went. Detail carries the
// operator-facing text for failures; raw errors only go to the log.
type StepOutcome struct {
	Step   string `json:"step"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// FanoutSummary tells the operator what actually happened on approval so
// failed non-critical steps can be retried by hand.
type FanoutSummary struct {
	Report *model.Report `json:"report"`
	Steps  []StepOutcome `json:"steps"`
}

// ApprovalService executes the terminal transition and its side effects.
// Client delivery is the only critical step; journal write, spreadsheet
// sync and the group announcement fail soft and are reported in the
// summary. The terminal status write comes last and is conditional, so a
// report can be finalized exactly once.
type ApprovalService interface {
	Approve(ctx context.Context, reportID int64, operatorID string) (*FanoutSummary, error)
	CloseWithoutReport(ctx context.Context, reportID int64, operatorID string) (*model.Report, error)
}

type approvalService struct {
	reports        store.ReportStore
	txRunner       TxRunner
	chat           chat.Transport
	sheets         sheets.Client
	groupChannelID string
	logger         *slog.Logger
}

func NewApprovalService(
	reports store.ReportStore,
	txRunner TxRunner,
	chatTransport chat.Transport,
	sheetsClient sheets.Client,
	groupChannelID string,
	logger *slog.Logger,
) ApprovalService {
	if logger == nil {
		logger = slog.Default()
	}
	return &approvalService{
		reports:        reports,
		txRunner:       txRunner,
		chat:           chatTransport,
		sheets:         sheetsClient,
		groupChannelID: groupChannelID,
		logger:         logger,
	}
}

func (s *approvalService) Approve(ctx context.Context, reportID int64, operatorID string) (*FanoutSummary, error) {
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
	if report.Status != model.ReportStatusReviewed {
		return nil, ErrNotReviewed
	}

	summary := &FanoutSummary{Report: report}

	// Client delivery aborts the whole approval on failure: the report
	// stays reviewed and the operator retries. Everything after it fails
	// soft.
	delivered := false
	if report.HasClientLink() {
		if _, err := s.chat.SendMessage(ctx, *report.ClientChannelID, report.ReportText, report.ClientMessageID); err != nil {
			s.logger.ErrorContext(ctx, "client delivery failed, approval aborted",
				"report_id", report.ID,
				"channel_id", *report.ClientChannelID,
				"error", err,
			)
			return nil, fmt.Errorf("%w: %v", ErrClientDeliveryFailed, err)
		}
		delivered = true
		summary.Steps = append(summary.Steps, StepOutcome{Step: StepClientDelivery, OK: true})
	}

	summary.Steps = append(summary.Steps, s.writeJournal(ctx, report))
	if s.sheets != nil {
		summary.Steps = append(summary.Steps, s.syncSpreadsheet(ctx, report))
	}
	if s.groupChannelID != "" {
		summary.Steps = append(summary.Steps, s.notifyGroup(ctx, report))
	}

	target := model.ReportStatusApprovedNoSend
	var sentAt *time.Time
	if delivered {
		target = model.ReportStatusApprovedSent
		now := time.Now()
		sentAt = &now
	}

	ok, err := s.reports.Finalize(ctx, report.ID, target, sentAt)
	if err != nil {
		return nil, fmt.Errorf("finalizing report: %w", err)
	}
	if !ok {
		// Someone else finished this report while the fan-out ran.
		return nil, ErrAlreadyProcessed
	}

	report.Status = target
	report.SentAt = sentAt

	s.logger.InfoContext(ctx, "report approved",
		"report_id", report.ID,
		"status", target,
		"operator_id", operatorID,
		"failed_steps", failedSteps(summary.Steps),
	)

	return summary, nil
}

func (s *approvalService) CloseWithoutReport(ctx context.Context, reportID int64, operatorID string) (*model.Report, error) {
	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("fetching report: %w", err)
	}

	// Only the status write. No journal entry, no delivery, no fan-out.
	ok, err := s.reports.Finalize(ctx, report.ID, model.ReportStatusCancelled, nil)
	if err != nil {
		return nil, fmt.Errorf("cancelling report: %w", err)
	}
	if !ok {
		return nil, ErrAlreadyProcessed
	}

	report.Status = model.ReportStatusCancelled

	s.logger.InfoContext(ctx, "report closed without sending",
		"report_id", report.ID,
		"operator_id", operatorID,
	)

	return report, nil
}

func (s *approvalService) writeJournal(ctx context.Context, report *model.Report) StepOutcome {
	entry := &model.JournalEntry{
		ID:          id.New(),
		ReportID:    report.ID,
		EntryDate:   report.ClosedAt,
		Company:     deref(report.Company),
		Duration:    deref(report.Duration),
		Description: report.ReportText,
		WorkMode:    derefMode(report.WorkMode),
		Workers:     report.Workers,
	}

	err := s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		if err := sp.Journal().Create(ctx, entry); err != nil {
			return fmt.Errorf("creating journal entry: %w", err)
		}
		if err := sp.Reports().SetJournalEntry(ctx, report.ID, entry.ID); err != nil {
			return fmt.Errorf("linking journal entry: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "journal write failed",
			"report_id", report.ID,
			"error", err,
		)
		return StepOutcome{Step: StepJournalEntry, OK: false, Detail: "Запись в журнале не создана. Добавьте её вручную."}
	}

	report.JournalEntryID = &entry.ID
	return StepOutcome{Step: StepJournalEntry, OK: true}
}

func (s *approvalService) syncSpreadsheet(ctx context.Context, report *model.Report) StepOutcome {
	entry := sheets.Entry{
		EntryDate:      report.ClosedAt,
		SequenceNumber: report.SequenceNumber,
		Company:        deref(report.Company),
		Duration:       deref(report.Duration),
		WorkMode:       workModeLabel(report.WorkMode),
		Workers:        report.Workers,
		Description:    report.ReportText,
	}

	if err := s.sheets.Push(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "spreadsheet sync failed",
			"report_id", report.ID,
			"error", err,
		)
		return StepOutcome{Step: StepSpreadsheetSync, OK: false, Detail: "Таблица не обновлена. Добавьте строку вручную."}
	}
	return StepOutcome{Step: StepSpreadsheetSync, OK: true}
}

func (s *approvalService) notifyGroup(ctx context.Context, report *model.Report) StepOutcome {
	if _, err := s.chat.SendMessage(ctx, s.groupChannelID, groupAnnouncement(report), nil); err != nil {
		s.logger.WarnContext(ctx, "group notification failed",
			"report_id", report.ID,
			"error", err,
		)
		return StepOutcome{Step: StepGroupNotify, OK: false, Detail: "Уведомление в общий канал не отправлено."}
	}
	return StepOutcome{Step: StepGroupNotify, OK: true}
}

func groupAnnouncement(report *model.Report) string {
	lines := []string{
		fmt.Sprintf("Работа по отчёту #%d завершена.", report.SequenceNumber),
		"Компания: " + orDash(report.Company),
		"Исполнители: " + workersLine(report.Workers),
		"Длительность: " + orDash(report.Duration),
		"Формат: " + workModeLabel(report.WorkMode),
	}
	if report.JournalEntryID != nil {
		lines = append(lines, fmt.Sprintf("Журнал: запись %d", *report.JournalEntryID))
	}
	return strings.Join(lines, "\n")
}

func failedSteps(steps []StepOutcome) []string {
	var failed []string
	for _, st := range steps {
		if !st.OK {
			failed = append(failed, st.Step)
		}
	}
	return failed
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func derefMode(m *model.WorkMode) model.WorkMode {
	if m == nil {
		return ""
	}
	return *m
}
