package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/patient-support-platform/internal/documents"
	"github.com/wolfman30/patient-support-platform/internal/intake"
	"github.com/wolfman30/patient-support-platform/internal/observability/metrics"
	"github.com/wolfman30/patient-support-platform/internal/salesforce"
)

const completeReferral = `{
	"External_Referral_Id__c": "REF-100",
	"Source__c": "Fax",
	"Document_Page_Count__c": 6,
	"Patient__c": {
		"resourceType": "Patient",
		"name": [{"text": "Jane Doe"}],
		"telecom": [{"system": "phone", "value": "555-123-4567"}],
		"birthDate": "1980-02-03",
		"address": [{"text": "1 Main St, Austin, TX 78701"}]
	},
	"Coverage__c": {"subscriberId": "W123", "status": "active", "payor": [{"display": "Aetna"}]},
	"Practitioner__c": {"name": [{"text": "Dr. Lee"}], "identifier": [{"system": "NPI", "value": "1234567890"}]},
	"MedicationRequest__c": {
		"medicationCodeableConcept": {"text": "Humira"},
		"reasonCode": [{"coding": [{"code": "M05.79", "display": "RA"}]}]
	},
	"ServiceRequest__c": {"id": "SR123", "priority": "urgent"}
}`

type fakeDownloader struct {
	byVersion  []string
	byDocument []string
	result     *salesforce.DownloadResult
	err        error
	panicMsg   string
}

func (f *fakeDownloader) DownloadByVersionID(_ context.Context, id string) (*salesforce.DownloadResult, error) {
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	f.byVersion = append(f.byVersion, id)
	return f.result, f.err
}

func (f *fakeDownloader) DownloadByDocumentID(_ context.Context, id string) (*salesforce.DownloadResult, error) {
	f.byDocument = append(f.byDocument, id)
	return f.result, f.err
}

type fakeAuditor struct {
	received         []string
	downloads        []string
	downloadVersions []string
	pushed           []string
	err              error
}

func (a *fakeAuditor) LogReferralReceived(_ context.Context, referralID, _, _, _ string, _ []string, _ bool) error {
	a.received = append(a.received, referralID)
	return a.err
}

func (a *fakeAuditor) LogDocumentDownloaded(_ context.Context, referralID, versionID, _ string, _ int) error {
	a.downloads = append(a.downloads, referralID)
	a.downloadVersions = append(a.downloadVersions, versionID)
	return a.err
}

func (a *fakeAuditor) LogStatusPushed(_ context.Context, salesforceID, _, _ string, _ bool) error {
	a.pushed = append(a.pushed, salesforceID)
	return a.err
}

type fakeNotifier struct {
	forms []*intake.StartForm
	err   error
}

func (n *fakeNotifier) NotifyIncomplete(_ context.Context, form *intake.StartForm) error {
	n.forms = append(n.forms, form)
	return n.err
}

type failingRepo struct{}

func (failingRepo) Save(context.Context, *intake.StartForm) (string, error) {
	return "", errors.New("db down")
}

func (failingRepo) Get(context.Context, string) (*intake.StartForm, error) {
	return nil, errors.New("db down")
}

type webhookResult struct {
	Success    bool             `json:"success"`
	ReferralID string           `json:"referralId"`
	Status     string           `json:"status"`
	Message    string           `json:"message"`
	Data       intake.StartForm `json:"data"`
	Error      string           `json:"error"`
	Details    any              `json:"details"`
}

func postWebhook(t *testing.T, h *SalesforceWebhookHandler, body []byte, signature string) (*httptest.ResponseRecorder, webhookResult) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/salesforce", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set(salesforce.SignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	h.Handle(rec, req)

	var result webhookResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result), rec.Body.String())
	return rec, result
}

func TestSalesforceWebhook_ValidSignature(t *testing.T) {
	repo := intake.NewInMemoryRepository()
	audit := &fakeAuditor{}
	notifier := &fakeNotifier{}
	h := NewSalesforceWebhookHandler(SalesforceWebhookConfig{
		Secret:     "shh",
		Repository: repo,
		Audit:      audit,
		Notifier:   notifier,
		Metrics:    metrics.NewReferralMetrics(prometheus.NewRegistry()),
	})

	body := []byte(completeReferral)
	rec, result := postWebhook(t, h, body, salesforce.SignPayload("shh", body))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, result.Success)
	assert.Equal(t, "REF-100", result.ReferralID)
	assert.Equal(t, "new", result.Status)
	assert.Equal(t, "Referral received and processed", result.Message)
	assert.Equal(t, "Jane Doe", result.Data.PatientName)
	assert.Equal(t, "02/03/1980", result.Data.Patient.DOB)
	assert.Equal(t, intake.PriorityHigh, result.Data.Priority)
	assert.Equal(t, 6, result.Data.PagesReceived)
	assert.Equal(t, "SR123", result.Data.SalesforceID)
	assert.Empty(t, result.Data.MissingInfo)
	assert.Equal(t, intake.DefaultNextAction, result.Data.NextAction)

	stored, err := repo.Get(context.Background(), "REF-100")
	require.NoError(t, err)
	assert.Equal(t, intake.StatusNew, stored.Status)
	assert.Equal(t, []string{"REF-100"}, audit.received)
	assert.Empty(t, notifier.forms)
}

func TestSalesforceWebhook_MutatedBodyRejected(t *testing.T) {
	repo := intake.NewInMemoryRepository()
	h := NewSalesforceWebhookHandler(SalesforceWebhookConfig{Secret: "shh", Repository: repo})

	body := []byte(completeReferral)
	signature := salesforce.SignPayload("shh", body)
	mutated := append([]byte{}, body...)
	mutated[len(mutated)-2] = ' '

	rec, result := postWebhook(t, h, mutated, signature)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid signature", result.Error)

	rec, _ = postWebhook(t, h, body, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	_, err := repo.Get(context.Background(), "REF-100")
	assert.True(t, errors.Is(err, intake.ErrFormNotFound))
}

func TestSalesforceWebhook_NoSecretAcceptsAnySignature(t *testing.T) {
	h := NewSalesforceWebhookHandler(SalesforceWebhookConfig{Repository: intake.NewInMemoryRepository()})

	rec, _ := postWebhook(t, h, []byte(completeReferral), "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = postWebhook(t, h, []byte(completeReferral), "not-a-real-signature")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSalesforceWebhook_DownloadFailureStillSucceeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`[{"errorCode":"NOT_FOUND"}]`))
	}))
	defer srv.Close()

	client := salesforce.NewClient(salesforce.ClientConfig{
		Tokens: salesforce.NewTokenStore(salesforce.TokenStoreConfig{InstanceURL: srv.URL, AccessToken: "token"}),
	})
	fetcher := salesforce.NewDocumentFetcher(client, documents.NewLocalStore(t.TempDir(), "/referrals", nil, nil), nil)
	h := NewSalesforceWebhookHandler(SalesforceWebhookConfig{
		Documents:  fetcher,
		Repository: intake.NewInMemoryRepository(),
	})

	var bundle map[string]any
	require.NoError(t, json.Unmarshal([]byte(completeReferral), &bundle))
	bundle["ContentVersionId__c"] = "068MISSING"
	body, _ := json.Marshal(bundle)

	rec, result := postWebhook(t, h, body, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "new", result.Status)
	assert.Empty(t, result.Data.PDFPath)
	assert.NotContains(t, rec.Body.String(), "pdfPath")
}

func TestSalesforceWebhook_DocumentLookupOrder(t *testing.T) {
	downloader := &fakeDownloader{result: &salesforce.DownloadResult{Path: "/referrals/a-068a.pdf", Title: "a", Size: 3}}
	audit := &fakeAuditor{}
	h := NewSalesforceWebhookHandler(SalesforceWebhookConfig{
		Documents:  downloader,
		Repository: intake.NewInMemoryRepository(),
		Audit:      audit,
	})

	_, result := postWebhook(t, h, []byte(`{"ContentVersionId__c":"068A","ContentDocumentId__c":"069A","ServiceRequest__c":{"id":"SR1"}}`), "")
	assert.Equal(t, []string{"068A"}, downloader.byVersion)
	assert.Empty(t, downloader.byDocument)
	assert.Equal(t, "/referrals/a-068a.pdf", result.Data.PDFPath)
	assert.Equal(t, []string{"SF-SR1"}, audit.downloads)

	_, _ = postWebhook(t, h, []byte(`{"ContentDocumentId__c":"069A"}`), "")
	assert.Equal(t, []string{"069A"}, downloader.byDocument)

	_, _ = postWebhook(t, h, []byte(`{}`), "")
	assert.Len(t, downloader.byVersion, 1)
	assert.Len(t, downloader.byDocument, 1)
}

func TestSalesforceWebhook_AuditsResolvedVersionID(t *testing.T) {
	downloader := &fakeDownloader{result: &salesforce.DownloadResult{VersionID: "068Latest", Path: "/referrals/a-068Latest.pdf", Size: 3}}
	audit := &fakeAuditor{}
	h := NewSalesforceWebhookHandler(SalesforceWebhookConfig{
		Documents:  downloader,
		Repository: intake.NewInMemoryRepository(),
		Audit:      audit,
	})

	_, result := postWebhook(t, h, []byte(`{"ContentDocumentId__c":"069A","ServiceRequest__c":{"id":"SR2"}}`), "")
	assert.Equal(t, []string{"069A"}, downloader.byDocument)
	assert.Equal(t, "/referrals/a-068Latest.pdf", result.Data.PDFPath)
	assert.Equal(t, []string{"068Latest"}, audit.downloadVersions)
}

func TestSalesforceWebhook_IncompleteReferral(t *testing.T) {
	notifier := &fakeNotifier{err: errors.New("mail down")}
	audit := &fakeAuditor{err: errors.New("audit down")}
	h := NewSalesforceWebhookHandler(SalesforceWebhookConfig{
		Repository: intake.NewInMemoryRepository(),
		Audit:      audit,
		Notifier:   notifier,
	})

	rec, result := postWebhook(t, h, []byte(`{"ServiceRequest__c":{"id":"SR123"},"Patient__c":{"name":[{"text":"Jane Doe"}],"birthDate":"2021-03-05"}}`), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "SF-SR123", result.ReferralID)
	assert.Equal(t, "incomplete", result.Status)
	assert.Equal(t, intake.IncompleteNextAction, result.Data.NextAction)
	assert.Equal(t, []string{
		"Patient contact (phone or email)",
		"Patient address",
		"Insurance carrier",
		"Insurance policy number",
		"Medication name",
		"Diagnosis code",
		"Prescriber name",
		"Prescriber NPI",
	}, result.Data.MissingInfo)
	assert.Nil(t, result.Data.Insurance)
	require.Len(t, notifier.forms, 1)
	assert.Equal(t, "SF-SR123", notifier.forms[0].ID)
}

func TestSalesforceWebhook_InvalidPayload(t *testing.T) {
	h := NewSalesforceWebhookHandler(SalesforceWebhookConfig{Repository: intake.NewInMemoryRepository()})

	for _, body := range []string{`not json`, `[]`, `{"Patient__c":{"resourceType":"Coverage"}}`} {
		rec, result := postWebhook(t, h, []byte(body), "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "Invalid payload", result.Error)
		assert.NotEmpty(t, result.Details)
	}
}

func TestSalesforceWebhook_PersistFailure(t *testing.T) {
	h := NewSalesforceWebhookHandler(SalesforceWebhookConfig{Repository: failingRepo{}})

	rec, result := postWebhook(t, h, []byte(completeReferral), "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to process webhook", result.Error)
	assert.NotContains(t, rec.Body.String(), "db down")
}

func TestSalesforceWebhook_PanicRecovered(t *testing.T) {
	h := NewSalesforceWebhookHandler(SalesforceWebhookConfig{
		Documents:  &fakeDownloader{panicMsg: "boom"},
		Repository: intake.NewInMemoryRepository(),
	})

	rec, result := postWebhook(t, h, []byte(`{"ContentVersionId__c":"068A"}`), "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to process webhook", result.Error)
	assert.NotEmpty(t, result.Details)
}

func TestSalesforceWebhook_Probe(t *testing.T) {
	h := NewSalesforceWebhookHandler(SalesforceWebhookConfig{Repository: intake.NewInMemoryRepository()})
	rec := httptest.NewRecorder()
	h.Probe(rec, httptest.NewRequest(http.MethodGet, "/api/webhooks/salesforce", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"active","acceptedMethods":["POST"]}`, rec.Body.String())
}
