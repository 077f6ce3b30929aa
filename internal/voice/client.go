package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wolfman30/patient-support-platform/pkg/logging"
)

const (
	defaultBaseURL     = "https://api.elevenlabs.io"
	outboundCallPath   = "/v1/convai/twilio/outbound-call"
	defaultCallTimeout = 15 * time.Second
	maxRelayBytes      = 1 << 20
)

var (
	// ErrNotConfigured is returned when the API key, agent or phone-number id is missing.
	ErrNotConfigured = errors.New("voice: calling is not configured")

	// ErrMissingPhone is returned when a call request has no usable number.
	ErrMissingPhone = errors.New("voice: phone number is required")
)

// Config controls the outbound call client.
type Config struct {
	BaseURL       string
	APIKey        string
	AgentID       string
	PhoneNumberID string
	Timeout       time.Duration
	HTTPClient    *http.Client
	Logger        *logging.Logger
}

// CallRequest is the inbound request to start a call.
type CallRequest struct {
	PhoneNumber string         `json:"phoneNumber"`
	PatientName string         `json:"patientName"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// CallResponse is the upstream response, relayed as-is.
type CallResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

type outboundCallPayload struct {
	AgentID            string               `json:"agent_id"`
	AgentPhoneNumberID string               `json:"agent_phone_number_id"`
	ToNumber           string               `json:"to_number"`
	ClientData         initiationClientData `json:"conversation_initiation_client_data"`
}

type initiationClientData struct {
	DynamicVariables map[string]any `json:"dynamic_variables"`
}

// Client starts outbound calls through the ElevenLabs Twilio integration.
type Client struct {
	baseURL       string
	apiKey        string
	agentID       string
	phoneNumberID string
	httpClient    *http.Client
	logger        *logging.Logger
}

// New creates a client. Missing credentials are reported per call, not here.
func New(cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultCallTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL:       baseURL,
		apiKey:        strings.TrimSpace(cfg.APIKey),
		agentID:       strings.TrimSpace(cfg.AgentID),
		phoneNumberID: strings.TrimSpace(cfg.PhoneNumberID),
		httpClient:    httpClient,
		logger:        logger,
	}
}

// Configured reports whether the API key, agent id and phone-number id are set.
func (c *Client) Configured() bool {
	return c != nil && c.apiKey != "" && c.agentID != "" && c.phoneNumberID != ""
}

// InitiateCall forwards one outbound-call request. Any upstream HTTP response,
// including errors, is returned for relaying; only transport failures error.
func (c *Client) InitiateCall(ctx context.Context, req CallRequest) (*CallResponse, error) {
	to := NormalizePhone(req.PhoneNumber)
	if to == "" {
		return nil, ErrMissingPhone
	}
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	vars := map[string]any{"patient_name": req.PatientName}
	for k, v := range req.Metadata {
		vars[k] = v
	}
	body, err := json.Marshal(outboundCallPayload{
		AgentID:            c.agentID,
		AgentPhoneNumberID: c.phoneNumberID,
		ToNumber:           to,
		ClientData:         initiationClientData{DynamicVariables: vars},
	})
	if err != nil {
		return nil, fmt.Errorf("voice: marshal call request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+outboundCallPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("voice: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("voice: call request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxRelayBytes))
	if err != nil {
		return nil, fmt.Errorf("voice: read response: %w", err)
	}

	c.logger.Info("outbound call requested",
		"to", logging.MaskPhone(to),
		"status", resp.StatusCode,
	)
	return &CallResponse{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        respBody,
	}, nil
}
