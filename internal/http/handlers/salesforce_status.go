package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/wolfman30/patient-support-platform/internal/observability/metrics"
	"github.com/wolfman30/patient-support-platform/internal/salesforce"
	"github.com/wolfman30/patient-support-platform/pkg/logging"
)

// StatusPusher mirrors internal status changes into Salesforce.
type StatusPusher interface {
	PushStatusUpdate(ctx context.Context, update salesforce.StatusUpdate) (*salesforce.StatusUpdateResult, error)
	IntegrationStatus() salesforce.IntegrationStatus
}

// ConnectionTester probes the Salesforce API.
type ConnectionTester interface {
	TestConnection(ctx context.Context) bool
}

// StatusAuditor records status pushes.
type StatusAuditor interface {
	LogStatusPushed(ctx context.Context, salesforceID, internalStatus, salesforceStatus string, tokenRefreshed bool) error
}

// SalesforceStatusHandler exposes status egress and integration health.
type SalesforceStatusHandler struct {
	pusher  StatusPusher
	tester  ConnectionTester
	audit   StatusAuditor
	metrics *metrics.ReferralMetrics
	logger  *logging.Logger
}

func NewSalesforceStatusHandler(pusher StatusPusher, tester ConnectionTester, audit StatusAuditor, m *metrics.ReferralMetrics, logger *logging.Logger) *SalesforceStatusHandler {
	if pusher == nil {
		panic("handlers: status pusher required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SalesforceStatusHandler{
		pusher:  pusher,
		tester:  tester,
		audit:   audit,
		metrics: m,
		logger:  logger,
	}
}

type statusPushResponse struct {
	Success          bool   `json:"success"`
	SalesforceStatus string `json:"salesforceStatus"`
	StatusDefaulted  bool   `json:"statusDefaulted"`
}

type statusPushFailure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// Push handles POST /api/salesforce/status.
func (h *SalesforceStatusHandler) Push(w http.ResponseWriter, r *http.Request) {
	var update salesforce.StatusUpdate
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&update); err != nil {
		jsonErrorDetails(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(update.SalesforceID) == "" {
		jsonError(w, "salesforceId is required", http.StatusBadRequest)
		return
	}

	result, err := h.pusher.PushStatusUpdate(r.Context(), update)
	if err != nil {
		h.writePushError(w, update, err)
		return
	}

	label := "ok"
	if result.TokenRefreshed {
		label = "refreshed"
	}
	h.metrics.ObserveStatusPush(label)
	if h.audit != nil {
		if err := h.audit.LogStatusPushed(r.Context(), result.SalesforceID, update.Status, result.SalesforceStatus, result.TokenRefreshed); err != nil {
			h.logger.Error("failed to audit status push", "error", err, "salesforce_id", result.SalesforceID)
		}
	}

	writeJSON(w, http.StatusOK, statusPushResponse{
		Success:          true,
		SalesforceStatus: result.SalesforceStatus,
		StatusDefaulted:  result.StatusDefaulted,
	})
}

func (h *SalesforceStatusHandler) writePushError(w http.ResponseWriter, update salesforce.StatusUpdate, err error) {
	var cfgErr *salesforce.ConfigurationError
	switch {
	case errors.Is(err, salesforce.ErrSyncDisabled):
		h.metrics.ObserveStatusPush("disabled")
		writeJSON(w, http.StatusServiceUnavailable, statusPushFailure{Error: "Salesforce sync is disabled"})
	case errors.Is(err, salesforce.ErrMissingRecordID):
		writeJSON(w, http.StatusBadRequest, statusPushFailure{Error: "salesforceId is required"})
	case errors.As(err, &cfgErr):
		h.metrics.ObserveStatusPush("unconfigured")
		h.logger.Error("salesforce status push not configured", "missing", cfgErr.Missing)
		writeJSON(w, http.StatusServiceUnavailable, statusPushFailure{Error: "Salesforce is not configured", Details: cfgErr.Missing})
	default:
		h.metrics.ObserveStatusPush("failed")
		h.logger.Error("salesforce status push failed", "error", err, "salesforce_id", update.SalesforceID)
		details := any(err.Error())
		if upErr, ok := salesforce.IsUpstreamUpdateError(err); ok {
			details = upstreamDetails(upErr.Body)
		}
		writeJSON(w, http.StatusBadGateway, statusPushFailure{Error: "Failed to update Salesforce", Details: details})
	}
}

// upstreamDetails returns the Salesforce error body as JSON when it parses.
func upstreamDetails(body string) any {
	if json.Valid([]byte(body)) {
		return json.RawMessage(body)
	}
	return body
}

type integrationStatusResponse struct {
	Enabled    bool `json:"enabled"`
	Configured bool `json:"configured"`
	Connected  bool `json:"connected"`
}

// Status handles GET /api/salesforce/status.
func (h *SalesforceStatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	status := h.pusher.IntegrationStatus()
	resp := integrationStatusResponse{Enabled: status.Enabled, Configured: status.Configured}
	if status.Configured && h.tester != nil {
		resp.Connected = h.tester.TestConnection(r.Context())
	}
	writeJSON(w, http.StatusOK, resp)
}
