package model

import "time"

type ReportStatus string

type WorkMode string

type ReportField string

const (
	// ReportStatusPendingFields is the intake state: autofill ran, work
	// metadata may still be missing, nothing has been sent anywhere.
	ReportStatusPendingFields ReportStatus = "pending_fields"
	// ReportStatusReviewed means an operator has seen the assembled preview.
	ReportStatusReviewed ReportStatus = "reviewed"

	ReportStatusApprovedSent   ReportStatus = "approved_sent"
	ReportStatusApprovedNoSend ReportStatus = "approved_no_send"
	ReportStatusCancelled      ReportStatus = "cancelled"
)

const (
	WorkModeOnSite WorkMode = "on_site"
	WorkModeRemote WorkMode = "remote"
)

const (
	FieldDuration   ReportField = "duration"
	FieldWorkMode   ReportField = "work_mode"
	FieldCompany    ReportField = "company"
	FieldWorkers    ReportField = "workers"
	FieldReportText ReportField = "report_text"
)

// FillOrder is the sequence the guided fill walks through. ReportText is
// excluded: autofill always assigns it, so it is only reachable by a
// direct edit.
var FillOrder = []ReportField{FieldDuration, FieldWorkMode, FieldCompany, FieldWorkers}

// Report is the unit of work the whole engine revolves around: one closed
// tracker issue on its way to becoming a delivered client report.
type Report struct {
	ID              int64  `json:"id"`
	ExternalIssueID string `json:"external_issue_id"`
	SequenceNumber  int64  `json:"sequence_number"`
	ProjectKey      string `json:"project_key"`

	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	ReportText  string `json:"report_text"`

	Duration *string   `json:"duration,omitempty"`
	WorkMode *WorkMode `json:"work_mode,omitempty"`
	Company  *string   `json:"company,omitempty"`
	Workers  []string  `json:"workers,omitempty"`

	// Client linkage resolved at intake. Both empty when the task did not
	// originate from a client conversation.
	ClientChannelID *string `json:"client_channel_id,omitempty"`
	ClientMessageID *string `json:"client_message_id,omitempty"`

	JournalEntryID *int64 `json:"journal_entry_id,omitempty"`

	Status ReportStatus `json:"status"`

	ClosedBy      string     `json:"closed_by"`
	ClosedByEmail string     `json:"closed_by_email,omitempty"`
	ClosedAt      time.Time  `json:"closed_at"`
	SentAt        *time.Time `json:"sent_at,omitempty"`

	EscalationLevel int        `json:"escalation_level"`
	LastReminderAt  *time.Time `json:"last_reminder_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s ReportStatus) IsTerminal() bool {
	return s == ReportStatusApprovedSent || s == ReportStatusApprovedNoSend || s == ReportStatusCancelled
}

func (r *Report) HasClientLink() bool {
	return r.ClientChannelID != nil && *r.ClientChannelID != ""
}

// MissingFields returns the fill-order fields that have no value yet.
func (r *Report) MissingFields() []ReportField {
	var missing []ReportField
	for _, f := range FillOrder {
		if !r.FieldSet(f) {
			missing = append(missing, f)
		}
	}
	return missing
}

func (r *Report) FieldSet(f ReportField) bool {
	switch f {
	case FieldDuration:
		return r.Duration != nil && *r.Duration != ""
	case FieldWorkMode:
		return r.WorkMode != nil && *r.WorkMode != ""
	case FieldCompany:
		return r.Company != nil && *r.Company != ""
	case FieldWorkers:
		return len(r.Workers) > 0
	case FieldReportText:
		return r.ReportText != ""
	}
	return false
}
