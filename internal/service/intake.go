package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"closeout.app/engine/common/id"
	"closeout.app/engine/common/logger"
	"closeout.app/engine/internal/chat"
	"closeout.app/engine/internal/model"
	"closeout.app/engine/internal/store"
)

// linkageMarkerRe matches the marker the workflow tooling writes into
// issue descriptions to tie a task back to the client conversation that
// raised it ("linkage_id: 42").
var linkageMarkerRe = regexp.MustCompile(`(?i)linkage_id:\s*(\d+)`)

type IntakeParams struct {
	ExternalIssueID string
	SequenceNumber  int64
	ProjectKey      string
	Title           string
	Description     string
	ClosedBy        string
	ClosedByEmail   string
	ClosedAt        time.Time
	LinkageID       *int64
}

type IntakeResult struct {
	Report     *model.Report
	Duplicated bool
}

// IntakeService turns a tracker close event into a report exactly once.
type IntakeService interface {
	Ingest(ctx context.Context, params IntakeParams) (*IntakeResult, error)
}

type intakeService struct {
	clientLinks       store.ClientLinkStore
	txRunner          TxRunner
	autofill          AutofillEngine
	chat              chat.Transport
	operatorChannelID string
	logger            *slog.Logger
}

func NewIntakeService(
	clientLinks store.ClientLinkStore,
	txRunner TxRunner,
	autofill AutofillEngine,
	chatTransport chat.Transport,
	operatorChannelID string,
	logger *slog.Logger,
) IntakeService {
	if logger == nil {
		logger = slog.Default()
	}
	return &intakeService{
		clientLinks:       clientLinks,
		txRunner:          txRunner,
		autofill:          autofill,
		chat:              chatTransport,
		operatorChannelID: operatorChannelID,
		logger:            logger,
	}
}

func (s *intakeService) Ingest(ctx context.Context, params IntakeParams) (*IntakeResult, error) {
	if params.ExternalIssueID == "" {
		return nil, fmt.Errorf("external_issue_id is required")
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ExternalIssueID: &params.ExternalIssueID,
		EventType:       logger.Ptr("issue_closed"),
		Component:       "engine.service.intake",
	})

	closedAt := params.ClosedAt
	if closedAt.IsZero() {
		closedAt = time.Now()
	}

	channelID, messageID, err := s.resolveLinkage(ctx, params)
	if err != nil {
		return nil, err
	}

	var (
		report  *model.Report
		created bool
	)

	if err := s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		fresh := &model.Report{
			ID:              id.New(),
			ExternalIssueID: params.ExternalIssueID,
			SequenceNumber:  params.SequenceNumber,
			ProjectKey:      strings.TrimSpace(params.ProjectKey),
			Title:           strings.TrimSpace(params.Title),
			Description:     strings.TrimSpace(params.Description),
			ClientChannelID: channelID,
			ClientMessageID: messageID,
			Status:          model.ReportStatusPendingFields,
			ClosedBy:        strings.TrimSpace(params.ClosedBy),
			ClosedByEmail:   strings.ToLower(strings.TrimSpace(params.ClosedByEmail)),
			ClosedAt:        closedAt,
		}

		var err error
		report, created, err = sp.Reports().CreateOrGet(ctx, fresh)
		if err != nil {
			return fmt.Errorf("creating report: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if !created {
		s.logger.InfoContext(ctx, "duplicate close event deduped",
			"report_id", report.ID,
			"external_issue_id", report.ExternalIssueID,
		)
		return &IntakeResult{Report: report, Duplicated: true}, nil
	}

	// Enrichment runs after the row is committed so a crash mid-autofill
	// still leaves a report the operator can finish by hand.
	enriched := s.autofill.Enrich(ctx, report)

	s.notifyOperator(ctx, report, enriched.Priority)

	s.logger.InfoContext(ctx, "close event processed",
		"report_id", report.ID,
		"external_issue_id", report.ExternalIssueID,
		"sequence_number", report.SequenceNumber,
	)

	return &IntakeResult{Report: report, Duplicated: false}, nil
}

func (s *intakeService) resolveLinkage(ctx context.Context, params IntakeParams) (channelID, messageID *string, err error) {
	linkageID := params.LinkageID
	if linkageID == nil {
		linkageID = scanLinkageMarker(params.Description)
	}
	if linkageID == nil {
		return nil, nil, nil
	}

	link, err := s.clientLinks.GetByID(ctx, *linkageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logger.WarnContext(ctx, "linkage id does not resolve, continuing without client link",
				"linkage_id", *linkageID,
				"external_issue_id", params.ExternalIssueID,
			)
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("resolving client link: %w", err)
	}

	return &link.ChannelID, &link.MessageID, nil
}

func scanLinkageMarker(description string) *int64 {
	m := linkageMarkerRe.FindStringSubmatch(description)
	if m == nil {
		return nil
	}
	linkageID, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return nil
	}
	return &linkageID
}

func (s *intakeService) notifyOperator(ctx context.Context, report *model.Report, priority string) {
	if s.operatorChannelID == "" {
		return
	}

	lines := []string{headline(report)}
	if report.Company != nil && *report.Company != "" {
		lines = append(lines, "Компания: "+*report.Company)
	} else if report.ProjectKey != "" {
		lines = append(lines, "Проект: "+report.ProjectKey)
	}
	if priority != "" {
		lines = append(lines, "Приоритет: "+priority)
	}
	if report.ClosedBy != "" {
		lines = append(lines, "Закрыл: "+report.ClosedBy)
	}
	lines = append(lines, "", "Действия: заполнить поля, предпросмотр, отправить, закрыть без отчёта.")

	if _, err := s.chat.SendMessage(ctx, s.operatorChannelID, strings.Join(lines, "\n"), nil); err != nil {
		s.logger.WarnContext(ctx, "operator notification failed",
			"report_id", report.ID,
			"error", err,
		)
	}
}

func headline(report *model.Report) string {
	if report.Title == "" {
		return fmt.Sprintf("Закрыта задача #%d", report.SequenceNumber)
	}
	return fmt.Sprintf("Закрыта задача #%d: %s", report.SequenceNumber, report.Title)
}
