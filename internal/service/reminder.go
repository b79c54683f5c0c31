package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"closeout.app/engine/common/logger"
	"closeout.app/engine/internal/chat"
	"closeout.app/engine/internal/model"
	"closeout.app/engine/internal/store"
)

// Escalation ladder: level 1 after an hour, 2 after three, 3 after six,
// then one more level per further six hours so stale reports keep
// resurfacing instead of going quiet.
const (
	firstReminderAfter  = 1 * time.Hour
	secondReminderAfter = 3 * time.Hour
	thirdReminderAfter  = 6 * time.Hour
	repeatCadence       = 6 * time.Hour
)

type ReminderStats struct {
	Scanned  int
	Notified int
	Failed   int
}

// ReminderService performs one sweep over overdue reports. Each report
// is handled in isolation: a delivery failure for one never aborts the
// rest of the batch, and a level fires at most once.
type ReminderService interface {
	Run(ctx context.Context) (*ReminderStats, error)
}

type reminderService struct {
	reports      store.ReportStore
	mappings     store.MappingStore
	chat         chat.Transport
	adminChatIDs []string
	logger       *slog.Logger
}

func NewReminderService(
	reports store.ReportStore,
	mappings store.MappingStore,
	chatTransport chat.Transport,
	adminChatIDs []string,
	logger *slog.Logger,
) ReminderService {
	if logger == nil {
		logger = slog.Default()
	}
	return &reminderService{
		reports:      reports,
		mappings:     mappings,
		chat:         chatTransport,
		adminChatIDs: adminChatIDs,
		logger:       logger,
	}
}

func (s *reminderService) Run(ctx context.Context) (*ReminderStats, error) {
	now := time.Now()

	reports, err := s.reports.ListOverdue(ctx, now.Add(-firstReminderAfter))
	if err != nil {
		return nil, fmt.Errorf("listing overdue reports: %w", err)
	}

	stats := &ReminderStats{Scanned: len(reports)}
	for i := range reports {
		report := &reports[i]

		level := escalationLevel(now.Sub(report.ClosedAt))
		if level <= report.EscalationLevel {
			continue
		}

		rctx := logger.WithLogFields(ctx, logger.LogFields{
			ReportID: logger.Ptr(report.ID),
		})
		if err := s.remind(rctx, report, level, now); err != nil {
			stats.Failed++
			s.logger.ErrorContext(rctx, "reminder failed",
				"report_id", report.ID,
				"level", level,
				"error", err,
			)
			continue
		}
		stats.Notified++
	}

	return stats, nil
}

func (s *reminderService) remind(ctx context.Context, report *model.Report, level int, now time.Time) error {
	recipients := s.recipients(ctx, report)
	if len(recipients) == 0 {
		return fmt.Errorf("no reminder recipients configured")
	}

	text := reminderText(report, level, now)

	sent := 0
	for _, channelID := range recipients {
		if _, err := s.chat.SendMessage(ctx, channelID, text, nil); err != nil {
			s.logger.WarnContext(ctx, "reminder delivery failed",
				"report_id", report.ID,
				"channel_id", channelID,
				"error", err,
			)
			continue
		}
		sent++
	}
	if sent == 0 {
		return fmt.Errorf("no reminder recipient reachable")
	}

	// The level only moves once someone was actually told, so an
	// undeliverable reminder fires again next tick.
	if err := s.reports.SetEscalation(ctx, report.ID, level, now); err != nil {
		return fmt.Errorf("recording escalation: %w", err)
	}
	report.EscalationLevel = level
	report.LastReminderAt = &now

	s.logger.InfoContext(ctx, "reminder sent",
		"report_id", report.ID,
		"level", level,
		"recipients", sent,
	)
	return nil
}

func (s *reminderService) recipients(ctx context.Context, report *model.Report) []string {
	if report.ClosedByEmail != "" {
		chatUserID, found, err := s.mappings.ResolveOperator(ctx, report.ClosedByEmail)
		if err != nil {
			s.logger.WarnContext(ctx, "operator mapping lookup failed",
				"report_id", report.ID,
				"email", report.ClosedByEmail,
				"error", err,
			)
		} else if found {
			return []string{chatUserID}
		}
	}

	// No identity mapping: broadcast to every admin rather than dropping
	// the reminder.
	return s.adminChatIDs
}

func escalationLevel(elapsed time.Duration) int {
	switch {
	case elapsed < firstReminderAfter:
		return 0
	case elapsed < secondReminderAfter:
		return 1
	case elapsed < thirdReminderAfter:
		return 2
	default:
		return 3 + int((elapsed-thirdReminderAfter)/repeatCadence)
	}
}

func reminderText(report *model.Report, level int, now time.Time) string {
	waited := FormatDuration(int(now.Sub(report.ClosedAt).Minutes()))

	lines := []string{
		fmt.Sprintf("Напоминание: отчёт #%d ждёт обработки уже %s.", report.SequenceNumber, waited),
	}
	if report.Title != "" {
		lines = append(lines, "Задача: "+report.Title)
	}
	if missing := report.MissingFields(); len(missing) > 0 {
		lines = append(lines, "Не заполнено: "+fieldList(missing))
	}
	if level >= 3 {
		lines = append(lines, "Отчёт сильно просрочен. Обработайте его или закройте без отправки.")
	}
	return strings.Join(lines, "\n")
}
