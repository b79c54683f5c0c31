package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"closeout.app/engine/core/db"
	"closeout.app/engine/internal/model"
)

const journalColumns = `id, report_id, entry_date, company, duration, description, work_mode, workers, created_at`

type journalStore struct {
	q db.Querier
}

func newJournalStore(q db.Querier) JournalStore {
	return &journalStore{q: q}
}

func (s *journalStore) Create(ctx context.Context, entry *model.JournalEntry) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO journal_entries (id, report_id, entry_date, company, duration, description, work_mode, workers)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID,
		entry.ReportID,
		entry.EntryDate,
		entry.Company,
		entry.Duration,
		entry.Description,
		string(entry.WorkMode),
		entry.Workers,
	)
	return err
}

func (s *journalStore) GetByID(ctx context.Context, id int64) (*model.JournalEntry, error) {
	row := s.q.QueryRow(ctx, `SELECT `+journalColumns+` FROM journal_entries WHERE id = $1`, id)
	entry, err := scanJournalEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return entry, nil
}

func (s *journalStore) ListByReport(ctx context.Context, reportID int64) ([]model.JournalEntry, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+journalColumns+`
		FROM journal_entries
		WHERE report_id = $1
		ORDER BY created_at ASC`,
		reportID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.JournalEntry
	for rows.Next() {
		entry, err := scanJournalEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

func scanJournalEntry(row pgx.Row) (*model.JournalEntry, error) {
	var e model.JournalEntry
	err := row.Scan(
		&e.ID,
		&e.ReportID,
		&e.EntryDate,
		&e.Company,
		&e.Duration,
		&e.Description,
		&e.WorkMode,
		&e.Workers,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
