package handlers

import (
	"encoding/json"
	"net/http"
)

// errorResponse is the JSON body for every error reply.
type errorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func jsonErrorDetails(w http.ResponseWriter, msg string, details any, status int) {
	writeJSON(w, status, errorResponse{Error: msg, Details: details})
}
