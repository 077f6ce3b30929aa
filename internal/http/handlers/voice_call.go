package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wolfman30/patient-support-platform/internal/observability/metrics"
	"github.com/wolfman30/patient-support-platform/internal/voice"
	"github.com/wolfman30/patient-support-platform/pkg/logging"
)

// CallInitiator starts an outbound call with the telephony provider.
type CallInitiator interface {
	Configured() bool
	InitiateCall(ctx context.Context, req voice.CallRequest) (*voice.CallResponse, error)
}

// VoiceCallHandler is a pass-through to the outbound call API.
type VoiceCallHandler struct {
	calls   CallInitiator
	metrics *metrics.ReferralMetrics
	logger  *logging.Logger
}

func NewVoiceCallHandler(calls CallInitiator, m *metrics.ReferralMetrics, logger *logging.Logger) *VoiceCallHandler {
	if calls == nil {
		panic("handlers: call initiator required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &VoiceCallHandler{calls: calls, metrics: m, logger: logger}
}

// Outbound handles POST /api/calls/outbound.
func (h *VoiceCallHandler) Outbound(w http.ResponseWriter, r *http.Request) {
	var req voice.CallRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		jsonErrorDetails(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	if voice.NormalizePhone(req.PhoneNumber) == "" {
		jsonError(w, "Phone number is required", http.StatusBadRequest)
		return
	}
	if !h.calls.Configured() {
		h.logger.Error("outbound call requested but voice calling is not configured")
		h.metrics.ObserveCall("unconfigured")
		jsonError(w, "Voice calling is not configured", http.StatusInternalServerError)
		return
	}

	resp, err := h.calls.InitiateCall(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, voice.ErrMissingPhone):
			jsonError(w, "Phone number is required", http.StatusBadRequest)
		case errors.Is(err, voice.ErrNotConfigured):
			h.metrics.ObserveCall("unconfigured")
			jsonError(w, "Voice calling is not configured", http.StatusInternalServerError)
		default:
			h.logger.Error("outbound call failed", "error", err, "to", logging.MaskPhone(req.PhoneNumber))
			h.metrics.ObserveCall("failed")
			jsonErrorDetails(w, "Failed to initiate call", err.Error(), http.StatusBadGateway)
		}
		return
	}

	h.metrics.ObserveCall("relayed")
	contentType := resp.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}
