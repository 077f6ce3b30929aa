package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/patient-support-platform/internal/intake"
	"github.com/wolfman30/patient-support-platform/internal/observability/metrics"
	"github.com/wolfman30/patient-support-platform/internal/salesforce"
	"github.com/wolfman30/patient-support-platform/pkg/logging"
)

var salesforceWebhookTracer = otel.Tracer("patient_support.internal.http.salesforce_webhook")

const defaultWebhookMaxBytes = 5 << 20

// DocumentDownloader fetches a referral attachment from Salesforce Files.
type DocumentDownloader interface {
	DownloadByVersionID(ctx context.Context, versionID string) (*salesforce.DownloadResult, error)
	DownloadByDocumentID(ctx context.Context, documentID string) (*salesforce.DownloadResult, error)
}

// ReferralAuditor records the intake audit trail.
type ReferralAuditor interface {
	LogReferralReceived(ctx context.Context, referralID, salesforceID, status, priority string, missing []string, hasDocument bool) error
	LogDocumentDownloaded(ctx context.Context, referralID, versionID, path string, size int) error
}

// IncompleteReferralNotifier alerts staff about referrals with missing data.
type IncompleteReferralNotifier interface {
	NotifyIncomplete(ctx context.Context, form *intake.StartForm) error
}

// SalesforceWebhookConfig wires the referral webhook. Only Repository is
// required; every other collaborator is optional.
type SalesforceWebhookConfig struct {
	Secret       string
	Documents    DocumentDownloader
	Repository   intake.Repository
	Audit        ReferralAuditor
	Notifier     IncompleteReferralNotifier
	Metrics      *metrics.ReferralMetrics
	Logger       *logging.Logger
	MaxBodyBytes int64
}

// SalesforceWebhookHandler ingests Health Cloud referral webhooks.
type SalesforceWebhookHandler struct {
	secret       string
	documents    DocumentDownloader
	repo         intake.Repository
	audit        ReferralAuditor
	notifier     IncompleteReferralNotifier
	metrics      *metrics.ReferralMetrics
	logger       *logging.Logger
	maxBodyBytes int64
}

// NewSalesforceWebhookHandler creates the webhook handler.
func NewSalesforceWebhookHandler(cfg SalesforceWebhookConfig) *SalesforceWebhookHandler {
	if cfg.Repository == nil {
		panic("handlers: referral repository required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	maxBytes := cfg.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = defaultWebhookMaxBytes
	}
	return &SalesforceWebhookHandler{
		secret:       strings.TrimSpace(cfg.Secret),
		documents:    cfg.Documents,
		repo:         cfg.Repository,
		audit:        cfg.Audit,
		notifier:     cfg.Notifier,
		metrics:      cfg.Metrics,
		logger:       logger,
		maxBodyBytes: maxBytes,
	}
}

type webhookResponse struct {
	Success    bool              `json:"success"`
	ReferralID string            `json:"referralId"`
	Status     intake.Status     `json:"status"`
	Message    string            `json:"message"`
	Data       *intake.StartForm `json:"data"`
}

// Probe handles GET /api/webhooks/salesforce.
func (h *SalesforceWebhookHandler) Probe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "active",
		"acceptedMethods": []string{http.MethodPost},
	})
}

// Handle handles POST /api/webhooks/salesforce.
func (h *SalesforceWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx, span := salesforceWebhookTracer.Start(r.Context(), "salesforce.webhook")
	defer span.End()
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("panic: %v", rec)
			h.logger.Error("salesforce webhook panicked", "error", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "panic")
			h.metrics.ObserveWebhook("error", time.Since(start).Seconds())
			jsonErrorDetails(w, "Failed to process webhook", "internal error", http.StatusInternalServerError)
		}
	}()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		h.logger.Warn("salesforce webhook body unreadable", "error", err)
		span.RecordError(err)
		h.metrics.ObserveWebhook("invalid", time.Since(start).Seconds())
		jsonErrorDetails(w, "Invalid payload", "request body could not be read", http.StatusBadRequest)
		return
	}

	if err := salesforce.VerifySignature(h.secret, body, r.Header.Get(salesforce.SignatureHeader)); err != nil {
		h.logger.Warn("invalid salesforce webhook signature", "error", err)
		span.RecordError(err)
		h.metrics.ObserveWebhook("rejected", time.Since(start).Seconds())
		jsonError(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	payload, err := salesforce.ParseWebhook(body)
	if err != nil {
		h.logger.Warn("invalid salesforce webhook payload", "error", err)
		span.RecordError(err)
		h.metrics.ObserveWebhook("invalid", time.Since(start).Seconds())
		jsonErrorDetails(w, "Invalid payload", err.Error(), http.StatusBadRequest)
		return
	}

	download := h.downloadDocument(ctx, payload)
	var pdfPath string
	if download != nil {
		pdfPath = download.Path
	}

	form := intake.TransformSalesforceToStartForm(payload, pdfPath)
	validation := intake.ApplyValidation(form)
	span.SetAttributes(
		attribute.String("patient_support.referral_id", form.ID),
		attribute.String("patient_support.referral_status", string(form.Status)),
		attribute.Bool("patient_support.referral_valid", validation.Valid),
	)

	log := h.logger.WithReferral(form.ID, form.SalesforceID)
	if _, err := h.repo.Save(ctx, form); err != nil {
		log.Error("failed to persist referral", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		h.metrics.ObserveWebhook("error", time.Since(start).Seconds())
		jsonErrorDetails(w, "Failed to process webhook", "referral could not be stored", http.StatusInternalServerError)
		return
	}

	h.recordSideEffects(ctx, log, form, download)

	outcome := "complete"
	if !validation.Valid {
		outcome = "incomplete"
	}
	h.metrics.ObserveWebhook(outcome, time.Since(start).Seconds())
	log.Info("salesforce referral processed",
		"status", form.Status,
		"priority", form.Priority,
		"priority_defaulted", form.PriorityDefaulted,
		"missing", len(form.MissingInfo),
		"has_document", form.PDFPath != "",
	)

	writeJSON(w, http.StatusOK, webhookResponse{
		Success:    true,
		ReferralID: form.ID,
		Status:     form.Status,
		Message:    "Referral received and processed",
		Data:       form,
	})
}

// downloadDocument fetches the attachment by version id, else by document id.
// Failures are logged and yield nil.
func (h *SalesforceWebhookHandler) downloadDocument(ctx context.Context, payload *salesforce.WebhookPayload) *salesforce.DownloadResult {
	if h.documents == nil {
		return nil
	}
	versionID := strings.TrimSpace(payload.ContentVersionID)
	documentID := strings.TrimSpace(payload.ContentDocumentID)

	var (
		result *salesforce.DownloadResult
		err    error
	)
	switch {
	case versionID != "":
		result, err = h.documents.DownloadByVersionID(ctx, versionID)
	case documentID != "":
		result, err = h.documents.DownloadByDocumentID(ctx, documentID)
	default:
		return nil
	}
	if err != nil {
		h.logger.Warn("referral document download failed",
			"error", err,
			"content_version_id", versionID,
			"content_document_id", documentID,
			"configuration_error", isConfigurationError(err),
		)
		h.metrics.ObserveDownload("failed")
		return nil
	}
	h.metrics.ObserveDownload("ok")
	return result
}

func (h *SalesforceWebhookHandler) recordSideEffects(ctx context.Context, log *logging.Logger, form *intake.StartForm, download *salesforce.DownloadResult) {
	if h.audit != nil {
		if download != nil {
			if err := h.audit.LogDocumentDownloaded(ctx, form.ID, download.VersionID, download.Path, download.Size); err != nil {
				log.Error("failed to audit document download", "error", err)
			}
		}
		if err := h.audit.LogReferralReceived(ctx, form.ID, form.SalesforceID, string(form.Status), string(form.Priority), form.MissingInfo, form.PDFPath != ""); err != nil {
			log.Error("failed to audit referral", "error", err)
		}
	}
	if h.notifier != nil && form.Status == intake.StatusIncomplete {
		if err := h.notifier.NotifyIncomplete(ctx, form); err != nil {
			log.Error("failed to send incomplete referral alert", "error", err)
		}
	}
}

func isConfigurationError(err error) bool {
	var cfgErr *salesforce.ConfigurationError
	return errors.As(err, &cfgErr)
}
