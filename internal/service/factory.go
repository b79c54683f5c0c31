package service

import (
	"closeout.app/engine/core/config"
	"closeout.app/engine/internal/chat"
	"closeout.app/engine/internal/session"
	"closeout.app/engine/internal/sheets"
	"closeout.app/engine/internal/store"
	"closeout.app/engine/internal/tracker"
)

type Services struct {
	stores   *store.Stores
	txRunner TxRunner
	sessions session.Store
	tracker  tracker.Client
	chat     chat.Transport
	sheets   sheets.Client
	cfg      config.Config
}

func NewServices(
	stores *store.Stores,
	txRunner TxRunner,
	sessions session.Store,
	trackerClient tracker.Client,
	chatTransport chat.Transport,
	sheetsClient sheets.Client,
	cfg config.Config,
) *Services {
	return &Services{
		stores:   stores,
		txRunner: txRunner,
		sessions: sessions,
		tracker:  trackerClient,
		chat:     chatTransport,
		sheets:   sheetsClient,
		cfg:      cfg,
	}
}

func (s *Services) Intake() IntakeService {
	return NewIntakeService(s.stores.ClientLinks(), s.txRunner, s.Autofill(), s.chat, s.cfg.Chat.OperatorChannelID, nil)
}

func (s *Services) Autofill() AutofillEngine {
	return NewAutofillEngine(s.tracker, s.stores.Reports(), s.stores.Mappings(), s.cfg.Reports.MinDescriptionLen, nil)
}

func (s *Services) Previews() PreviewService {
	return NewPreviewService(s.stores.Reports(), nil)
}

func (s *Services) Edits() EditService {
	return NewEditService(s.stores.Reports(), s.sessions, s.Previews(), nil)
}

func (s *Services) Approvals() ApprovalService {
	return NewApprovalService(s.stores.Reports(), s.txRunner, s.chat, s.sheets, s.cfg.Chat.GroupChannelID, nil)
}

func (s *Services) Reminders() ReminderService {
	return NewReminderService(s.stores.Reports(), s.stores.Mappings(), s.chat, s.cfg.Reminders.AdminChatIDs, nil)
}
