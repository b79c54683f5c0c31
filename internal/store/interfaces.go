package store

import (
	"context"
	"errors"
	"time"

	"closeout.app/engine/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ReportStore defines the contract for report data access
type ReportStore interface {
	// CreateOrGet inserts the report keyed by its external issue id, or
	// returns the existing row untouched when one is already there. The
	// boolean reports whether a new row was created.
	CreateOrGet(ctx context.Context, report *model.Report) (*model.Report, bool, error)
	GetByID(ctx context.Context, id int64) (*model.Report, error)
	GetByExternalIssueID(ctx context.Context, externalIssueID string) (*model.Report, error)
	List(ctx context.Context, status *model.ReportStatus) ([]model.Report, error)

	// UpdateAutofill writes the derived fields in one statement after the
	// enrichment pass.
	UpdateAutofill(ctx context.Context, id int64, company *string, workers []string, reportText string) error

	SetDuration(ctx context.Context, id int64, duration string) error
	SetWorkMode(ctx context.Context, id int64, mode model.WorkMode) error
	SetCompany(ctx context.Context, id int64, company string) error
	SetWorkers(ctx context.Context, id int64, workers []string) error
	SetReportText(ctx context.Context, id int64, text string) error

	SetStatus(ctx context.Context, id int64, status model.ReportStatus) error
	SetJournalEntry(ctx context.Context, id int64, journalEntryID int64) error

	// Finalize moves the report into a terminal status, but only if it is
	// not terminal already. Returns false when another actor got there
	// first.
	Finalize(ctx context.Context, id int64, status model.ReportStatus, sentAt *time.Time) (bool, error)

	// ListOverdue returns non-terminal reports whose close timestamp is at
	// or before the cutoff, oldest first.
	ListOverdue(ctx context.Context, cutoff time.Time) ([]model.Report, error)
	SetEscalation(ctx context.Context, id int64, level int, remindedAt time.Time) error
}

// JournalStore defines the contract for the append-only work journal
type JournalStore interface {
	Create(ctx context.Context, entry *model.JournalEntry) error
	GetByID(ctx context.Context, id int64) (*model.JournalEntry, error)
	ListByReport(ctx context.Context, reportID int64) ([]model.JournalEntry, error)
}

// ClientLinkStore defines the contract for client conversation linkage
type ClientLinkStore interface {
	GetByID(ctx context.Context, id int64) (*model.ClientLink, error)
	Create(ctx context.Context, link *model.ClientLink) error
}

// MappingStore resolves tracker-side identifiers to display and routing
// values. Each resolver reports whether a mapping row existed so callers
// can apply their own fallbacks.
type MappingStore interface {
	ResolveCompany(ctx context.Context, projectKey string) (string, bool, error)
	ResolveWorker(ctx context.Context, trackerUsername string) (string, bool, error)
	ResolveOperator(ctx context.Context, email string) (string, bool, error)

	SetCompanyMapping(ctx context.Context, projectKey, companyName string) error
	SetWorkerMapping(ctx context.Context, trackerUsername, displayName string) error
	SetOperatorMapping(ctx context.Context, email, chatUserID string) error
}
