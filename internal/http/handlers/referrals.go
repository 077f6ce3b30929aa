package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/patient-support-platform/internal/intake"
	"github.com/wolfman30/patient-support-platform/pkg/logging"
)

// ReferralsHandler serves stored start forms.
type ReferralsHandler struct {
	repo   intake.Repository
	logger *logging.Logger
}

func NewReferralsHandler(repo intake.Repository, logger *logging.Logger) *ReferralsHandler {
	if repo == nil {
		panic("handlers: referral repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ReferralsHandler{repo: repo, logger: logger}
}

// Get handles GET /api/referrals/{id}.
func (h *ReferralsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		jsonError(w, "Referral id is required", http.StatusBadRequest)
		return
	}
	form, err := h.repo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, intake.ErrFormNotFound) {
			jsonError(w, "Referral not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load referral", "error", err, "referral_id", id)
		jsonError(w, "Failed to load referral", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, form)
}
