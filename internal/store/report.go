package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"closeout.app/engine/core/db"
	"closeout.app/engine/internal/model"
)

const reportColumns = `id, external_issue_id, sequence_number, project_key, title, description,
	report_text, duration, work_mode, company, workers, client_channel_id, client_message_id,
	journal_entry_id, status, closed_by, closed_by_email, closed_at, sent_at,
	escalation_level, last_reminder_at, created_at, updated_at`

type reportStore struct {
	q db.Querier
}

func newReportStore(q db.Querier) ReportStore {
	return &reportStore{q: q}
}

func (s *reportStore) CreateOrGet(ctx context.Context, report *model.Report) (*model.Report, bool, error) {
	row := s.q.QueryRow(ctx, `
		INSERT INTO reports (
			id, external_issue_id, sequence_number, project_key, title, description, report_text,
			duration, work_mode, company, workers, client_channel_id, client_message_id,
			status, closed_by, closed_by_email, closed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (external_issue_id) DO NOTHING
		RETURNING `+reportColumns,
		report.ID,
		report.ExternalIssueID,
		report.SequenceNumber,
		report.ProjectKey,
		report.Title,
		report.Description,
		report.ReportText,
		report.Duration,
		workModePtr(report.WorkMode),
		report.Company,
		report.Workers,
		report.ClientChannelID,
		report.ClientMessageID,
		string(report.Status),
		report.ClosedBy,
		report.ClosedByEmail,
		report.ClosedAt,
	)

	created, err := scanReport(row)
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}

	// Conflict path: another delivery won the insert, hand back its row.
	existing, err := s.GetByExternalIssueID(ctx, report.ExternalIssueID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *reportStore) GetByID(ctx context.Context, id int64) (*model.Report, error) {
	row := s.q.QueryRow(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1`, id)
	report, err := scanReport(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return report, nil
}

func (s *reportStore) GetByExternalIssueID(ctx context.Context, externalIssueID string) (*model.Report, error) {
	row := s.q.QueryRow(ctx, `SELECT `+reportColumns+` FROM reports WHERE external_issue_id = $1`, externalIssueID)
	report, err := scanReport(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return report, nil
}

func (s *reportStore) List(ctx context.Context, status *model.ReportStatus) ([]model.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports ORDER BY created_at DESC`
	args := []any{}
	if status != nil {
		query = `SELECT ` + reportColumns + ` FROM reports WHERE status = $1 ORDER BY created_at DESC`
		args = append(args, string(*status))
	}

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectReports(rows)
}

func (s *reportStore) UpdateAutofill(ctx context.Context, id int64, company *string, workers []string, reportText string) error {
	_, err := s.q.Exec(ctx, `
		UPDATE reports
		SET company = $2, workers = $3, report_text = $4, updated_at = now()
		WHERE id = $1`,
		id, company, workers, reportText,
	)
	return err
}

func (s *reportStore) SetDuration(ctx context.Context, id int64, duration string) error {
	return s.setColumn(ctx, id, "duration", duration)
}

func (s *reportStore) SetWorkMode(ctx context.Context, id int64, mode model.WorkMode) error {
	return s.setColumn(ctx, id, "work_mode", string(mode))
}

func (s *reportStore) SetCompany(ctx context.Context, id int64, company string) error {
	return s.setColumn(ctx, id, "company", company)
}

func (s *reportStore) SetWorkers(ctx context.Context, id int64, workers []string) error {
	_, err := s.q.Exec(ctx, `UPDATE reports SET workers = $2, updated_at = now() WHERE id = $1`, id, workers)
	return err
}

func (s *reportStore) SetReportText(ctx context.Context, id int64, text string) error {
	return s.setColumn(ctx, id, "report_text", text)
}

func (s *reportStore) SetStatus(ctx context.Context, id int64, status model.ReportStatus) error {
	return s.setColumn(ctx, id, "status", string(status))
}

func (s *reportStore) SetJournalEntry(ctx context.Context, id int64, journalEntryID int64) error {
	_, err := s.q.Exec(ctx, `UPDATE reports SET journal_entry_id = $2, updated_at = now() WHERE id = $1`, id, journalEntryID)
	return err
}

func (s *reportStore) Finalize(ctx context.Context, id int64, status model.ReportStatus, sentAt *time.Time) (bool, error) {
	tag, err := s.q.Exec(ctx, `
		UPDATE reports
		SET status = $2, sent_at = $3, updated_at = now()
		WHERE id = $1
		  AND status NOT IN ('approved_sent', 'approved_no_send', 'cancelled')`,
		id, string(status), sentAt,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *reportStore) ListOverdue(ctx context.Context, cutoff time.Time) ([]model.Report, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+reportColumns+`
		FROM reports
		WHERE status NOT IN ('approved_sent', 'approved_no_send', 'cancelled')
		  AND closed_at <= $1
		ORDER BY closed_at ASC`,
		cutoff,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectReports(rows)
}

func (s *reportStore) SetEscalation(ctx context.Context, id int64, level int, remindedAt time.Time) error {
	_, err := s.q.Exec(ctx, `
		UPDATE reports
		SET escalation_level = $2, last_reminder_at = $3, updated_at = now()
		WHERE id = $1`,
		id, level, remindedAt,
	)
	return err
}

func (s *reportStore) setColumn(ctx context.Context, id int64, column, value string) error {
	// column is always one of the fixed names above, never caller input.
	_, err := s.q.Exec(ctx, `UPDATE reports SET `+column+` = $2, updated_at = now() WHERE id = $1`, id, value)
	return err
}

func collectReports(rows pgx.Rows) ([]model.Report, error) {
	var reports []model.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *report)
	}
	return reports, rows.Err()
}

func scanReport(row pgx.Row) (*model.Report, error) {
	var (
		r        model.Report
		workMode *string
	)
	err := row.Scan(
		&r.ID,
		&r.ExternalIssueID,
		&r.SequenceNumber,
		&r.ProjectKey,
		&r.Title,
		&r.Description,
		&r.ReportText,
		&r.Duration,
		&workMode,
		&r.Company,
		&r.Workers,
		&r.ClientChannelID,
		&r.ClientMessageID,
		&r.JournalEntryID,
		&r.Status,
		&r.ClosedBy,
		&r.ClosedByEmail,
		&r.ClosedAt,
		&r.SentAt,
		&r.EscalationLevel,
		&r.LastReminderAt,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if workMode != nil {
		mode := model.WorkMode(*workMode)
		r.WorkMode = &mode
	}

	return &r, nil
}

func workModePtr(mode *model.WorkMode) *string {
	if mode == nil {
		return nil
	}
	s := string(*mode)
	return &s
}
