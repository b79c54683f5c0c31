package webhook_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"log/slog"

	"closeout.app/engine/internal/http/handler/webhook"
	"closeout.app/engine/internal/model"
	"closeout.app/engine/internal/service"
)

type fakeIntakeService struct {
	ingestFn func(ctx context.Context, params service.IntakeParams) (*service.IntakeResult, error)
	params   *service.IntakeParams
	calls    int
}

func (f *fakeIntakeService) Ingest(ctx context.Context, params service.IntakeParams) (*service.IntakeResult, error) {
	f.calls++
	f.params = &params
	if f.ingestFn != nil {
		return f.ingestFn(ctx, params)
	}
	return &service.IntakeResult{
		Report: &model.Report{
			ID:              12345,
			ExternalIssueID: params.ExternalIssueID,
			SequenceNumber:  params.SequenceNumber,
			Status:          model.ReportStatusPendingFields,
		},
	}, nil
}

var _ = Describe("TrackerWebhookHandler", func() {
	var (
		router *gin.Engine
		buf    *bytes.Buffer
		intake *fakeIntakeService
	)

	validBody := func() []byte {
		payload, err := json.Marshal(map[string]interface{}{
			"external_issue_id": "X-999",
			"sequence_number":   999,
			"project_id":        "acme-support",
			"title":             "Printer setup",
			"description":       "Install drivers",
			"closed_by": map[string]interface{}{
				"display_name": "Ivan Petrov",
				"first_name":   "Ivan",
				"email":        "ivan@example.com",
			},
			"closed_at":  "2026-02-10T14:30:00Z",
			"linkage_id": 42,
		})
		Expect(err).NotTo(HaveOccurred())
		return payload
	}

	post := func(token string, body []byte) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/tracker", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("X-Webhook-Token", token)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		buf = &bytes.Buffer{}
		slog.SetDefault(slog.New(slog.NewJSONHandler(buf, nil)))

		intake = &fakeIntakeService{}
		h := webhook.NewTrackerWebhookHandler(intake, "secret")
		router.POST("/webhooks/tracker", h.HandleClose)
	})

	It("accepts a valid close event", func() {
		w := post("secret", validBody())

		Expect(w.Code).To(Equal(http.StatusOK))

		var resp map[string]interface{}
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp["status"]).To(Equal("processed"))
		Expect(resp["report_id"]).To(BeNumerically("==", 12345))
		Expect(resp["sequence_number"]).To(BeNumerically("==", 999))

		logStr := buf.String()
		Expect(logStr).To(ContainSubstring("tracker webhook processed"))
		Expect(logStr).To(ContainSubstring(`"report_id":12345`))
		Expect(logStr).To(ContainSubstring(`"external_issue_id":"X-999"`))
		Expect(logStr).To(ContainSubstring(`"duplicated":false`))
	})

	It("maps the payload onto intake params", func() {
		post("secret", validBody())

		Expect(intake.params).NotTo(BeNil())
		Expect(intake.params.ExternalIssueID).To(Equal("X-999"))
		Expect(intake.params.SequenceNumber).To(Equal(int64(999)))
		Expect(intake.params.ProjectKey).To(Equal("acme-support"))
		Expect(intake.params.ClosedBy).To(Equal("Ivan Petrov"))
		Expect(intake.params.ClosedByEmail).To(Equal("ivan@example.com"))
		Expect(intake.params.LinkageID).NotTo(BeNil())
		Expect(*intake.params.LinkageID).To(Equal(int64(42)))
	})

	It("falls back to the first name when there is no display name", func() {
		payload, err := json.Marshal(map[string]interface{}{
			"external_issue_id": "X-999",
			"sequence_number":   999,
			"closed_by":         map[string]interface{}{"first_name": "Ivan"},
		})
		Expect(err).NotTo(HaveOccurred())

		w := post("secret", payload)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(intake.params.ClosedBy).To(Equal("Ivan"))
	})

	It("rejects a request without a token", func() {
		w := post("", validBody())

		Expect(w.Code).To(Equal(http.StatusUnauthorized))
		Expect(w.Body.String()).To(ContainSubstring("missing webhook token"))
		Expect(intake.calls).To(BeZero())
	})

	It("rejects a wrong token", func() {
		w := post("wrong", validBody())

		Expect(w.Code).To(Equal(http.StatusUnauthorized))
		Expect(w.Body.String()).To(ContainSubstring("invalid webhook token"))
		Expect(intake.calls).To(BeZero())
	})

	It("rejects a body that is not json", func() {
		w := post("secret", []byte("not json"))

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(w.Body.String()).To(ContainSubstring("invalid payload"))
	})

	It("rejects a payload without the external issue id", func() {
		payload, err := json.Marshal(map[string]interface{}{
			"sequence_number": 999,
			"title":           "Printer setup",
		})
		Expect(err).NotTo(HaveOccurred())

		w := post("secret", payload)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(intake.calls).To(BeZero())
	})

	It("answers 500 with a generic body when intake fails", func() {
		intake.ingestFn = func(_ context.Context, _ service.IntakeParams) (*service.IntakeResult, error) {
			return nil, errors.New("pq: connection refused")
		}

		w := post("secret", validBody())

		Expect(w.Code).To(Equal(http.StatusInternalServerError))
		Expect(w.Body.String()).To(ContainSubstring("failed to process event"))
		Expect(w.Body.String()).NotTo(ContainSubstring("pq:"))
		Expect(buf.String()).To(ContainSubstring("failed to process close event"))
	})

	It("answers 200 for a replayed event", func() {
		intake.ingestFn = func(_ context.Context, params service.IntakeParams) (*service.IntakeResult, error) {
			return &service.IntakeResult{
				Report: &model.Report{
					ID:              12345,
					ExternalIssueID: params.ExternalIssueID,
					SequenceNumber:  params.SequenceNumber,
					Status:          model.ReportStatusPendingFields,
				},
				Duplicated: true,
			}, nil
		}

		w := post("secret", validBody())

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(buf.String()).To(ContainSubstring(`"duplicated":true`))
	})
})
