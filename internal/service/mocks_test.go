package service_test

import (
	"context"
	"fmt"
	"time"

	"closeout.app/engine/internal/model"
	"closeout.app/engine/internal/service"
	"closeout.app/engine/internal/session"
	"closeout.app/engine/internal/sheets"
	"closeout.app/engine/internal/store"
	"closeout.app/engine/internal/tracker"
)

// mockReportStore is map-backed by default so multi-step flows (fill a
// field, re-read, fill the next) behave like rows in a database. Any
// method can still be overridden through its fn field.
type mockReportStore struct {
	reports map[int64]*model.Report

	createOrGetFn  func(ctx context.Context, report *model.Report) (*model.Report, bool, error)
	getByIDFn      func(ctx context.Context, id int64) (*model.Report, error)
	listFn         func(ctx context.Context, status *model.ReportStatus) ([]model.Report, error)
	updAutofillFn  func(ctx context.Context, id int64, company *string, workers []string, reportText string) error
	setDurationFn  func(ctx context.Context, id int64, duration string) error
	setStatusFn    func(ctx context.Context, id int64, status model.ReportStatus) error
	finalizeFn     func(ctx context.Context, id int64, status model.ReportStatus, sentAt *time.Time) (bool, error)
	listOverdueFn  func(ctx context.Context, cutoff time.Time) ([]model.Report, error)
	setEscalatonFn func(ctx context.Context, id int64, level int, remindedAt time.Time) error

	createOrGetCalls int
	finalizeCalls    int
	statusWrites     []model.ReportStatus
	escalationWrites []int
}

func (m *mockReportStore) seed(report *model.Report) {
	if m.reports == nil {
		m.reports = map[int64]*model.Report{}
	}
	m.reports[report.ID] = report
}

func (m *mockReportStore) CreateOrGet(ctx context.Context, report *model.Report) (*model.Report, bool, error) {
	m.createOrGetCalls++
	if m.createOrGetFn != nil {
		return m.createOrGetFn(ctx, report)
	}
	for _, existing := range m.reports {
		if existing.ExternalIssueID == report.ExternalIssueID {
			cp := *existing
			return &cp, false, nil
		}
	}
	m.seed(report)
	cp := *report
	return &cp, true, nil
}

func (m *mockReportStore) GetByID(ctx context.Context, id int64) (*model.Report, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	r, ok := m.reports[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *mockReportStore) GetByExternalIssueID(ctx context.Context, externalIssueID string) (*model.Report, error) {
	for _, r := range m.reports {
		if r.ExternalIssueID == externalIssueID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockReportStore) List(ctx context.Context, status *model.ReportStatus) ([]model.Report, error) {
	if m.listFn != nil {
		return m.listFn(ctx, status)
	}
	var out []model.Report
	for _, r := range m.reports {
		if status == nil || r.Status == *status {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *mockReportStore) UpdateAutofill(ctx context.Context, id int64, company *string, workers []string, reportText string) error {
	if m.updAutofillFn != nil {
		return m.updAutofillFn(ctx, id, company, workers, reportText)
	}
	if r, ok := m.reports[id]; ok {
		r.Company = company
		r.Workers = workers
		r.ReportText = reportText
	}
	return nil
}

func (m *mockReportStore) SetDuration(ctx context.Context, id int64, duration string) error {
	if m.setDurationFn != nil {
		return m.setDurationFn(ctx, id, duration)
	}
	if r, ok := m.reports[id]; ok {
		r.Duration = &duration
	}
	return nil
}

func (m *mockReportStore) SetWorkMode(ctx context.Context, id int64, mode model.WorkMode) error {
	if r, ok := m.reports[id]; ok {
		r.WorkMode = &mode
	}
	return nil
}

func (m *mockReportStore) SetCompany(ctx context.Context, id int64, company string) error {
	if r, ok := m.reports[id]; ok {
		r.Company = &company
	}
	return nil
}

func (m *mockReportStore) SetWorkers(ctx context.Context, id int64, workers []string) error {
	if r, ok := m.reports[id]; ok {
		r.Workers = workers
	}
	return nil
}

func (m *mockReportStore) SetReportText(ctx context.Context, id int64, text string) error {
	if r, ok := m.reports[id]; ok {
		r.ReportText = text
	}
	return nil
}

func (m *mockReportStore) SetStatus(ctx context.Context, id int64, status model.ReportStatus) error {
	m.statusWrites = append(m.statusWrites, status)
	if m.setStatusFn != nil {
		return m.setStatusFn(ctx, id, status)
	}
	if r, ok := m.reports[id]; ok {
		r.Status = status
	}
	return nil
}

func (m *mockReportStore) SetJournalEntry(ctx context.Context, id int64, journalEntryID int64) error {
	if r, ok := m.reports[id]; ok {
		r.JournalEntryID = &journalEntryID
	}
	return nil
}

func (m *mockReportStore) Finalize(ctx context.Context, id int64, status model.ReportStatus, sentAt *time.Time) (bool, error) {
	m.finalizeCalls++
	if m.finalizeFn != nil {
		return m.finalizeFn(ctx, id, status, sentAt)
	}
	r, ok := m.reports[id]
	if !ok {
		return false, nil
	}
	if r.Status.IsTerminal() {
		return false, nil
	}
	r.Status = status
	r.SentAt = sentAt
	return true, nil
}

func (m *mockReportStore) ListOverdue(ctx context.Context, cutoff time.Time) ([]model.Report, error) {
	if m.listOverdueFn != nil {
		return m.listOverdueFn(ctx, cutoff)
	}
	var out []model.Report
	for _, r := range m.reports {
		if !r.Status.IsTerminal() && !r.ClosedAt.After(cutoff) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *mockReportStore) SetEscalation(ctx context.Context, id int64, level int, remindedAt time.Time) error {
	m.escalationWrites = append(m.escalationWrites, level)
	if m.setEscalatonFn != nil {
		return m.setEscalatonFn(ctx, id, level, remindedAt)
	}
	if r, ok := m.reports[id]; ok {
		r.EscalationLevel = level
		at := remindedAt
		r.LastReminderAt = &at
	}
	return nil
}

type mockJournalStore struct {
	createFn    func(ctx context.Context, entry *model.JournalEntry) error
	entries     []model.JournalEntry
	createCalls int
}

func (m *mockJournalStore) Create(ctx context.Context, entry *model.JournalEntry) error {
	m.createCalls++
	if m.createFn != nil {
		return m.createFn(ctx, entry)
	}
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *mockJournalStore) GetByID(ctx context.Context, id int64) (*model.JournalEntry, error) {
	for i := range m.entries {
		if m.entries[i].ID == id {
			return &m.entries[i], nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockJournalStore) ListByReport(ctx context.Context, reportID int64) ([]model.JournalEntry, error) {
	var out []model.JournalEntry
	for _, e := range m.entries {
		if e.ReportID == reportID {
			out = append(out, e)
		}
	}
	return out, nil
}

type mockClientLinkStore struct {
	getByIDFn func(ctx context.Context, id int64) (*model.ClientLink, error)
}

func (m *mockClientLinkStore) GetByID(ctx context.Context, id int64) (*model.ClientLink, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, store.ErrNotFound
}

func (m *mockClientLinkStore) Create(ctx context.Context, link *model.ClientLink) error {
	return nil
}

type mockMappingStore struct {
	resolveCompanyFn  func(ctx context.Context, projectKey string) (string, bool, error)
	resolveWorkerFn   func(ctx context.Context, trackerUsername string) (string, bool, error)
	resolveOperatorFn func(ctx context.Context, email string) (string, bool, error)
}

func (m *mockMappingStore) ResolveCompany(ctx context.Context, projectKey string) (string, bool, error) {
	if m.resolveCompanyFn != nil {
		return m.resolveCompanyFn(ctx, projectKey)
	}
	return "", false, nil
}

func (m *mockMappingStore) ResolveWorker(ctx context.Context, trackerUsername string) (string, bool, error) {
	if m.resolveWorkerFn != nil {
		return m.resolveWorkerFn(ctx, trackerUsername)
	}
	return "", false, nil
}

func (m *mockMappingStore) ResolveOperator(ctx context.Context, email string) (string, bool, error) {
	if m.resolveOperatorFn != nil {
		return m.resolveOperatorFn(ctx, email)
	}
	return "", false, nil
}

func (m *mockMappingStore) SetCompanyMapping(ctx context.Context, projectKey, companyName string) error {
	return nil
}

func (m *mockMappingStore) SetWorkerMapping(ctx context.Context, trackerUsername, displayName string) error {
	return nil
}

func (m *mockMappingStore) SetOperatorMapping(ctx context.Context, email, chatUserID string) error {
	return nil
}

// mockSessionStore keeps sessions in memory, like the redis store minus
// the TTL.
type mockSessionStore struct {
	states  map[string]*session.State
	getErr  error
	saveErr error

	deleteCalls int
}

func sessionKey(reportID int64, operatorID string) string {
	return fmt.Sprintf("%d:%s", reportID, operatorID)
}

func (m *mockSessionStore) Get(ctx context.Context, reportID int64, operatorID string) (*session.State, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	st, ok := m.states[sessionKey(reportID, operatorID)]
	if !ok {
		return nil, session.ErrNotFound
	}
	cp := *st
	return &cp, nil
}

func (m *mockSessionStore) Save(ctx context.Context, state *session.State) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	if m.states == nil {
		m.states = map[string]*session.State{}
	}
	cp := *state
	m.states[sessionKey(state.ReportID, state.OperatorID)] = &cp
	return nil
}

func (m *mockSessionStore) Delete(ctx context.Context, reportID int64, operatorID string) error {
	m.deleteCalls++
	delete(m.states, sessionKey(reportID, operatorID))
	return nil
}

type sentMessage struct {
	channelID string
	text      string
	replyTo   *string
}

type mockChatTransport struct {
	sendFn func(ctx context.Context, channelID, text string, replyTo *string) (string, error)
	sent   []sentMessage
}

func (m *mockChatTransport) SendMessage(ctx context.Context, channelID, text string, replyTo *string) (string, error) {
	if m.sendFn != nil {
		id, err := m.sendFn(ctx, channelID, text, replyTo)
		if err != nil {
			return "", err
		}
		m.sent = append(m.sent, sentMessage{channelID: channelID, text: text, replyTo: replyTo})
		return id, nil
	}
	m.sent = append(m.sent, sentMessage{channelID: channelID, text: text, replyTo: replyTo})
	return "msg-1", nil
}

type mockSheetsClient struct {
	pushFn    func(ctx context.Context, entry sheets.Entry) error
	pushed    []sheets.Entry
	pushCalls int
}

func (m *mockSheetsClient) Push(ctx context.Context, entry sheets.Entry) error {
	m.pushCalls++
	if m.pushFn != nil {
		return m.pushFn(ctx, entry)
	}
	m.pushed = append(m.pushed, entry)
	return nil
}

type mockTrackerClient struct {
	getIssueFn     func(ctx context.Context, projectKey string, issueIID int64) (*tracker.Issue, error)
	listCommentsFn func(ctx context.Context, projectKey string, issueIID int64) ([]tracker.Comment, error)
	listMembersFn  func(ctx context.Context, projectKey string) ([]tracker.Member, error)

	memberCalls int
}

func (m *mockTrackerClient) GetIssue(ctx context.Context, projectKey string, issueIID int64) (*tracker.Issue, error) {
	if m.getIssueFn != nil {
		return m.getIssueFn(ctx, projectKey, issueIID)
	}
	return &tracker.Issue{}, nil
}

func (m *mockTrackerClient) ListComments(ctx context.Context, projectKey string, issueIID int64) ([]tracker.Comment, error) {
	if m.listCommentsFn != nil {
		return m.listCommentsFn(ctx, projectKey, issueIID)
	}
	return nil, nil
}

func (m *mockTrackerClient) ListProjectMembers(ctx context.Context, projectKey string) ([]tracker.Member, error) {
	m.memberCalls++
	if m.listMembersFn != nil {
		return m.listMembersFn(ctx, projectKey)
	}
	return nil, nil
}

type mockStoreProvider struct {
	reports     store.ReportStore
	journal     store.JournalStore
	clientLinks store.ClientLinkStore
	mappings    store.MappingStore
}

func (m *mockStoreProvider) Reports() store.ReportStore {
	return m.reports
}

func (m *mockStoreProvider) Journal() store.JournalStore {
	return m.journal
}

func (m *mockStoreProvider) ClientLinks() store.ClientLinkStore {
	return m.clientLinks
}

func (m *mockStoreProvider) Mappings() store.MappingStore {
	return m.mappings
}

type mockTxRunner struct {
	provider *mockStoreProvider
	withTxFn func(ctx context.Context, fn func(stores service.StoreProvider) error) error
}

func (m *mockTxRunner) WithTx(ctx context.Context, fn func(stores service.StoreProvider) error) error {
	if m.withTxFn != nil {
		return m.withTxFn(ctx, fn)
	}
	if m.provider != nil {
		return fn(m.provider)
	}
	return fn(&mockStoreProvider{})
}
