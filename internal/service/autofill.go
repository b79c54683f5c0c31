package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"closeout.app/engine/common/logger"
	"closeout.app/engine/internal/model"
	"closeout.app/engine/internal/store"
	"closeout.app/engine/internal/tracker"
)

// reportHeader opens every generated report text.
const reportHeader = "Отчёт о выполненной работе"

const commentTimeLayout = "02.01.2006 15:04"

// AutofillResult carries upstream context that is useful to the caller
// but has no column on the report row.
type AutofillResult struct {
	// Priority is the tracker priority label value, empty when the issue
	// fetch failed or no label is set.
	Priority string
}

// AutofillEngine fills company, workers and report text on a freshly
// created report. Enrich never fails: whatever cannot be resolved stays
// empty with a logged warning, so intake always completes.
type AutofillEngine interface {
	Enrich(ctx context.Context, report *model.Report) AutofillResult
}

type autofillEngine struct {
	tracker           tracker.Client
	reports           store.ReportStore
	mappings          store.MappingStore
	minDescriptionLen int
	logger            *slog.Logger
}

func NewAutofillEngine(
	trackerClient tracker.Client,
	reports store.ReportStore,
	mappings store.MappingStore,
	minDescriptionLen int,
	logger *slog.Logger,
) AutofillEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &autofillEngine{
		tracker:           trackerClient,
		reports:           reports,
		mappings:          mappings,
		minDescriptionLen: minDescriptionLen,
		logger:            logger,
	}
}

func (e *autofillEngine) Enrich(ctx context.Context, report *model.Report) AutofillResult {
	var result AutofillResult

	var issue *tracker.Issue
	if e.tracker != nil {
		var err error
		issue, err = e.tracker.GetIssue(ctx, report.ProjectKey, report.SequenceNumber)
		if err != nil {
			e.logger.WarnContext(ctx, "issue fetch failed, autofill degrades to payload data",
				"report_id", report.ID,
				"external_issue_id", report.ExternalIssueID,
				"error", err,
			)
			issue = nil
		}
	}
	if issue != nil {
		result.Priority = issue.Priority()
	}

	company := e.resolveCompany(ctx, report)
	workers := e.resolveWorkers(ctx, report, issue)
	text := e.generateReportText(ctx, report)

	if err := e.reports.UpdateAutofill(ctx, report.ID, company, workers, text); err != nil {
		e.logger.WarnContext(ctx, "persisting autofill failed, report stays operator-fillable",
			"report_id", report.ID,
			"error", err,
		)
		return result
	}

	report.Company = company
	report.Workers = workers
	report.ReportText = text

	e.logger.DebugContext(ctx, "autofill complete",
		"report_id", report.ID,
		"workers", len(workers),
		"text", logger.Truncate(text, 200),
	)

	return result
}

func (e *autofillEngine) resolveCompany(ctx context.Context, report *model.Report) *string {
	if report.ProjectKey == "" {
		return nil
	}

	name, found, err := e.mappings.ResolveCompany(ctx, report.ProjectKey)
	if err != nil {
		e.logger.WarnContext(ctx, "company mapping lookup failed",
			"report_id", report.ID,
			"project_key", report.ProjectKey,
			"error", err,
		)
		return nil
	}
	if !found {
		// No mapping yet: the raw project key is still a usable display value.
		name = report.ProjectKey
	}
	return &name
}

func (e *autofillEngine) resolveWorkers(ctx context.Context, report *model.Report, issue *tracker.Issue) []string {
	var workers []string
	if issue != nil {
		for _, username := range issue.Assignees {
			display, found, err := e.mappings.ResolveWorker(ctx, username)
			if err != nil {
				e.logger.WarnContext(ctx, "worker mapping lookup failed",
					"report_id", report.ID,
					"username", username,
					"error", err,
				)
				continue
			}
			if !found {
				e.logger.WarnContext(ctx, "assignee has no worker mapping",
					"report_id", report.ID,
					"username", username,
				)
				continue
			}
			workers = append(workers, display)
		}
	}

	// An empty list is worse than a guess: the closing actor did the work
	// often enough to be the default.
	if len(workers) == 0 && report.ClosedBy != "" {
		workers = []string{report.ClosedBy}
	}

	return dedupeNames(workers)
}

func (e *autofillEngine) generateReportText(ctx context.Context, report *model.Report) string {
	lines := []string{reportHeader}

	if report.Title != "" {
		lines = append(lines, report.Title)
	}

	if desc := strings.TrimSpace(report.Description); utf8.RuneCountInString(desc) >= e.minDescriptionLen {
		lines = append(lines, "", desc)
	}

	lines = append(lines, e.commentLines(ctx, report)...)

	// Header alone means upstream had nothing to tell the client. A
	// header+title pair is already a valid report.
	if len(lines) == 1 {
		return ""
	}
	return strings.Join(lines, "\n")
}

func (e *autofillEngine) commentLines(ctx context.Context, report *model.Report) []string {
	if e.tracker == nil {
		return nil
	}

	comments, err := e.tracker.ListComments(ctx, report.ProjectKey, report.SequenceNumber)
	if err != nil {
		e.logger.WarnContext(ctx, "comment fetch failed, report text built without discussion",
			"report_id", report.ID,
			"error", err,
		)
		return nil
	}
	if len(comments) == 0 {
		return nil
	}

	// One roster fetch covers every comment in this pass.
	members := map[string]string{}
	roster, err := e.tracker.ListProjectMembers(ctx, report.ProjectKey)
	if err != nil {
		e.logger.WarnContext(ctx, "member fetch failed, comment authors fall back to mappings",
			"report_id", report.ID,
			"error", err,
		)
	} else {
		for _, m := range roster {
			if m.Name != "" {
				members[m.Username] = m.Name
			}
		}
	}

	lines := []string{"", "Комментарии:"}
	for _, c := range comments {
		author := e.resolveCommentAuthor(ctx, c, members)
		lines = append(lines, fmt.Sprintf("— %s (%s): %s", author, c.CreatedAt.Format(commentTimeLayout), strings.TrimSpace(c.Body)))
	}
	return lines
}

func (e *autofillEngine) resolveCommentAuthor(ctx context.Context, c tracker.Comment, members map[string]string) string {
	if name, ok := members[c.AuthorUsername]; ok {
		return name
	}
	if display, found, err := e.mappings.ResolveWorker(ctx, c.AuthorUsername); err == nil && found {
		return display
	}
	if c.AuthorName != "" {
		return c.AuthorName
	}
	return c.AuthorUsername
}

func dedupeNames(names []string) []string {
	if len(names) < 2 {
		return names
	}
	seen := make(map[string]struct{}, len(names))
	out := names[:0]
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
