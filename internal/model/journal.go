package model

import "time"

// JournalEntry is the append-only audit record written when a report is
// approved. Entries survive report-side churn and are never updated.
type JournalEntry struct {
	ID       int64 `json:"id"`
	ReportID int64 `json:"report_id"`

	// EntryDate is the date the work was completed, taken from the
	// upstream close timestamp rather than the approval time.
	EntryDate time.Time `json:"entry_date"`

	Company     string   `json:"company"`
	Duration    string   `json:"duration"`
	Description string   `json:"description"`
	WorkMode    WorkMode `json:"work_mode"`
	Workers     []string `json:"workers"`

	CreatedAt time.Time `json:"created_at"`
}
