package service_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"closeout.app/engine/common/id"
	"closeout.app/engine/internal/model"
	"closeout.app/engine/internal/service"
	"closeout.app/engine/internal/sheets"
)

var _ = Describe("ApprovalService", func() {
	var (
		ctx        context.Context
		reports    *mockReportStore
		journal    *mockJournalStore
		chatMock   *mockChatTransport
		sheetsMock *mockSheetsClient
		svc        service.ApprovalService
	)

	const operatorID = "op-1"

	newReviewed := func(withLink bool) *model.Report {
		duration, company := "2 часа", "ООО Акме"
		mode := model.WorkModeOnSite
		r := &model.Report{
			ID:              11,
			ExternalIssueID: "X-11",
			SequenceNumber:  11,
			Title:           "Printer setup",
			Status:          model.ReportStatusReviewed,
			Duration:        &duration,
			Company:         &company,
			WorkMode:        &mode,
			Workers:         []string{"Иван Петров"},
			ReportText:      "Отчёт о выполненной работе\nPrinter setup",
			ClosedBy:        "Ivan Petrov",
			ClosedAt:        time.Date(2026, 2, 10, 14, 30, 0, 0, time.UTC),
		}
		if withLink {
			ch, msg := "client-ch", "msg-7"
			r.ClientChannelID, r.ClientMessageID = &ch, &msg
		}
		return r
	}

	stepNames := func(summary *service.FanoutSummary) []string {
		names := make([]string, len(summary.Steps))
		for i, st := range summary.Steps {
			names[i] = st.Step
		}
		return names
	}

	stepByName := func(summary *service.FanoutSummary, name string) service.StepOutcome {
		for _, st := range summary.Steps {
			if st.Step == name {
				return st
			}
		}
		Fail("no step named " + name)
		return service.StepOutcome{}
	}

	BeforeEach(func() {
		ctx = context.Background()

		err := id.Init(1)
		Expect(err).NotTo(HaveOccurred())

		reports = &mockReportStore{}
		journal = &mockJournalStore{}
		chatMock = &mockChatTransport{}
		sheetsMock = &mockSheetsClient{}

		txRunner := &mockTxRunner{provider: &mockStoreProvider{reports: reports, journal: journal}}
		svc = service.NewApprovalService(reports, txRunner, chatMock, sheetsMock, "group-ch", nil)
	})

	Describe("Approve", func() {
		It("delivers to the client and runs the full fan-out", func() {
			reports.seed(newReviewed(true))

			summary, err := svc.Approve(ctx, 11, operatorID)
			Expect(err).NotTo(HaveOccurred())

			Expect(stepNames(summary)).To(Equal([]string{
				service.StepClientDelivery,
				service.StepJournalEntry,
				service.StepSpreadsheetSync,
				service.StepGroupNotify,
			}))
			for _, st := range summary.Steps {
				Expect(st.OK).To(BeTrue(), st.Step)
			}

			Expect(summary.Report.Status).To(Equal(model.ReportStatusApprovedSent))
			Expect(summary.Report.SentAt).NotTo(BeNil())
			Expect(summary.Report.JournalEntryID).NotTo(BeNil())

			// Client message is the report text, threaded onto the original
			// client request.
			Expect(chatMock.sent[0].channelID).To(Equal("client-ch"))
			Expect(chatMock.sent[0].text).To(Equal("Отчёт о выполненной работе\nPrinter setup"))
			Expect(chatMock.sent[0].replyTo).NotTo(BeNil())
			Expect(*chatMock.sent[0].replyTo).To(Equal("msg-7"))

			Expect(journal.entries).To(HaveLen(1))
			Expect(journal.entries[0].ReportID).To(Equal(int64(11)))
			Expect(journal.entries[0].Company).To(Equal("ООО Акме"))
			Expect(journal.entries[0].Duration).To(Equal("2 часа"))
			Expect(journal.entries[0].Workers).To(Equal([]string{"Иван Петров"}))

			Expect(sheetsMock.pushed).To(HaveLen(1))
			Expect(sheetsMock.pushed[0].SequenceNumber).To(Equal(int64(11)))
			Expect(sheetsMock.pushed[0].WorkMode).To(Equal("выезд"))

			Expect(chatMock.sent[1].channelID).To(Equal("group-ch"))
			Expect(chatMock.sent[1].text).To(ContainSubstring("Работа по отчёту #11 завершена."))
			Expect(chatMock.sent[1].text).To(ContainSubstring("Журнал: запись"))
		})

		It("finishes as approved_no_send when there is no client link", func() {
			reports.seed(newReviewed(false))

			summary, err := svc.Approve(ctx, 11, operatorID)
			Expect(err).NotTo(HaveOccurred())

			Expect(stepNames(summary)).To(Equal([]string{
				service.StepJournalEntry,
				service.StepSpreadsheetSync,
				service.StepGroupNotify,
			}))
			Expect(summary.Report.Status).To(Equal(model.ReportStatusApprovedNoSend))
			Expect(summary.Report.SentAt).To(BeNil())
		})

		It("aborts on client delivery failure with nothing written", func() {
			reports.seed(newReviewed(true))
			chatMock.sendFn = func(_ context.Context, _, _ string, _ *string) (string, error) {
				return "", errors.New("channel archived")
			}

			_, err := svc.Approve(ctx, 11, operatorID)
			Expect(errors.Is(err, service.ErrClientDeliveryFailed)).To(BeTrue())

			Expect(journal.createCalls).To(BeZero())
			Expect(sheetsMock.pushCalls).To(BeZero())
			Expect(reports.finalizeCalls).To(BeZero())

			r, err := reports.GetByID(ctx, 11)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Status).To(Equal(model.ReportStatusReviewed))
		})

		It("completes the approval when the journal write fails", func() {
			reports.seed(newReviewed(true))
			journal.createFn = func(_ context.Context, _ *model.JournalEntry) error {
				return errors.New("deadlock detected")
			}

			summary, err := svc.Approve(ctx, 11, operatorID)
			Expect(err).NotTo(HaveOccurred())

			st := stepByName(summary, service.StepJournalEntry)
			Expect(st.OK).To(BeFalse())
			Expect(st.Detail).To(Equal("Запись в журнале не создана. Добавьте её вручную."))
			Expect(summary.Report.Status).To(Equal(model.ReportStatusApprovedSent))
		})

		It("completes the approval when the spreadsheet sync fails", func() {
			reports.seed(newReviewed(true))
			sheetsMock.pushFn = func(_ context.Context, _ sheets.Entry) error {
				return errors.New("quota exceeded")
			}

			summary, err := svc.Approve(ctx, 11, operatorID)
			Expect(err).NotTo(HaveOccurred())

			st := stepByName(summary, service.StepSpreadsheetSync)
			Expect(st.OK).To(BeFalse())
			Expect(st.Detail).To(Equal("Таблица не обновлена. Добавьте строку вручную."))
			Expect(summary.Report.Status).To(Equal(model.ReportStatusApprovedSent))
		})

		It("completes the approval when the group announcement fails", func() {
			reports.seed(newReviewed(true))
			chatMock.sendFn = func(_ context.Context, channelID, _ string, _ *string) (string, error) {
				if channelID == "group-ch" {
					return "", errors.New("gateway timeout")
				}
				return "msg-1", nil
			}

			summary, err := svc.Approve(ctx, 11, operatorID)
			Expect(err).NotTo(HaveOccurred())

			st := stepByName(summary, service.StepGroupNotify)
			Expect(st.OK).To(BeFalse())
			Expect(st.Detail).To(Equal("Уведомление в общий канал не отправлено."))
			Expect(summary.Report.Status).To(Equal(model.ReportStatusApprovedSent))
		})

		It("skips the spreadsheet step when no sheets client is wired", func() {
			reports.seed(newReviewed(false))
			txRunner := &mockTxRunner{provider: &mockStoreProvider{reports: reports, journal: journal}}
			svc = service.NewApprovalService(reports, txRunner, chatMock, nil, "group-ch", nil)

			summary, err := svc.Approve(ctx, 11, operatorID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stepNames(summary)).NotTo(ContainElement(service.StepSpreadsheetSync))
		})

		It("skips the announcement when no group channel is configured", func() {
			reports.seed(newReviewed(false))
			txRunner := &mockTxRunner{provider: &mockStoreProvider{reports: reports, journal: journal}}
			svc = service.NewApprovalService(reports, txRunner, chatMock, sheetsMock, "", nil)

			summary, err := svc.Approve(ctx, 11, operatorID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stepNames(summary)).NotTo(ContainElement(service.StepGroupNotify))
			Expect(chatMock.sent).To(BeEmpty())
		})

		It("refuses to run the fan-out twice", func() {
			reports.seed(newReviewed(true))

			_, err := svc.Approve(ctx, 11, operatorID)
			Expect(err).NotTo(HaveOccurred())

			sentBefore := len(chatMock.sent)

			_, err = svc.Approve(ctx, 11, operatorID)
			Expect(errors.Is(err, service.ErrAlreadyProcessed)).To(BeTrue())

			Expect(journal.createCalls).To(Equal(1))
			Expect(sheetsMock.pushCalls).To(Equal(1))
			Expect(chatMock.sent).To(HaveLen(sentBefore))
		})

		It("refuses a report nobody has reviewed", func() {
			r := newReviewed(false)
			r.Status = model.ReportStatusPendingFields
			reports.seed(r)

			_, err := svc.Approve(ctx, 11, operatorID)
			Expect(errors.Is(err, service.ErrNotReviewed)).To(BeTrue())
		})

		It("reports a lost finalize race as already processed", func() {
			reports.seed(newReviewed(false))
			reports.finalizeFn = func(_ context.Context, _ int64, _ model.ReportStatus, _ *time.Time) (bool, error) {
				return false, nil
			}

			_, err := svc.Approve(ctx, 11, operatorID)
			Expect(errors.Is(err, service.ErrAlreadyProcessed)).To(BeTrue())
		})

		It("fails on a report that does not exist", func() {
			_, err := svc.Approve(ctx, 404, operatorID)
			Expect(errors.Is(err, service.ErrReportNotFound)).To(BeTrue())
		})
	})

	Describe("CloseWithoutReport", func() {
		It("cancels the report with no side effects", func() {
			r := newReviewed(true)
			r.Status = model.ReportStatusPendingFields
			reports.seed(r)

			closed, err := svc.CloseWithoutReport(ctx, 11, operatorID)
			Expect(err).NotTo(HaveOccurred())
			Expect(closed.Status).To(Equal(model.ReportStatusCancelled))

			Expect(journal.createCalls).To(BeZero())
			Expect(sheetsMock.pushCalls).To(BeZero())
			Expect(chatMock.sent).To(BeEmpty())
		})

		It("works from the reviewed state as well", func() {
			reports.seed(newReviewed(false))

			closed, err := svc.CloseWithoutReport(ctx, 11, operatorID)
			Expect(err).NotTo(HaveOccurred())
			Expect(closed.Status).To(Equal(model.ReportStatusCancelled))
		})

		It("refuses a report that is already finished", func() {
			r := newReviewed(false)
			r.Status = model.ReportStatusApprovedNoSend
			reports.seed(r)

			_, err := svc.CloseWithoutReport(ctx, 11, operatorID)
			Expect(errors.Is(err, service.ErrAlreadyProcessed)).To(BeTrue())
		})

		It("fails on a report that does not exist", func() {
			_, err := svc.CloseWithoutReport(ctx, 404, operatorID)
			Expect(errors.Is(err, service.ErrReportNotFound)).To(BeTrue())
		})
	})
})
