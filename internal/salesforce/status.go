package salesforce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wolfman30/patient-support-platform/pkg/logging"
)

// referralObject is the sObject that carries referral status in Health Cloud.
const referralObject = "ServiceRequest"

// maxStatusPushAttempts bounds the PATCH to the first try plus one retry after
// a token refresh.
const maxStatusPushAttempts = 2

var statusMap = map[string]string{
	"new":                    "draft",
	"reviewing":              "active",
	"benefits-investigation": "active",
	"complete":               "completed",
	"incomplete":             "on-hold",
}

// MapStatus converts an internal referral status to the Salesforce
// ServiceRequest status. Unknown values map to "active" and report defaulted.
func MapStatus(internal string) (status string, defaulted bool) {
	if mapped, ok := statusMap[strings.ToLower(strings.TrimSpace(internal))]; ok {
		return mapped, false
	}
	return "active", true
}

// StatusUpdate is an internal status change to mirror into Salesforce.
type StatusUpdate struct {
	SalesforceID          string `json:"salesforceId"`
	Status                string `json:"status"`
	InvestigationComplete bool   `json:"investigationComplete"`
	PARequired            bool   `json:"paRequired"`
	PAStatus              string `json:"paStatus,omitempty"`
	EnrollmentStatus      string `json:"enrollmentStatus,omitempty"`
	Notes                 string `json:"notes,omitempty"`
}

// StatusUpdateResult describes a successful push.
type StatusUpdateResult struct {
	SalesforceID     string `json:"salesforceId"`
	SalesforceStatus string `json:"salesforceStatus"`
	StatusDefaulted  bool   `json:"statusDefaulted"`
	TokenRefreshed   bool   `json:"tokenRefreshed"`
}

// IntegrationStatus reports whether status egress can run.
type IntegrationStatus struct {
	Enabled    bool `json:"enabled"`
	Configured bool `json:"configured"`
}

type statusPatch struct {
	Status                string `json:"Status"`
	InternalStatus        string `json:"Internal_Status__c"`
	InvestigationComplete bool   `json:"Benefits_Investigation_Complete__c"`
	PARequired            bool   `json:"PA_Required__c"`
	PAStatus              string `json:"PA_Status__c"`
	EnrollmentStatus      string `json:"Enrollment_Status__c"`
	LastSyncDate          string `json:"Last_Sync_Date__c"`
	Notes                 string `json:"Notes__c,omitempty"`
}

// StatusPusher pushes referral status changes back to Salesforce.
type StatusPusher struct {
	client  *Client
	enabled bool
	now     func() time.Time
	logger  *logging.Logger
}

// NewStatusPusher creates a pusher. enabled mirrors SALESFORCE_SYNC_ENABLED.
func NewStatusPusher(client *Client, enabled bool, logger *logging.Logger) *StatusPusher {
	if logger == nil {
		logger = logging.Default()
	}
	return &StatusPusher{
		client:  client,
		enabled: enabled,
		now:     time.Now,
		logger:  logger,
	}
}

// IntegrationStatus reports enabled/configured without any network call.
func (p *StatusPusher) IntegrationStatus() IntegrationStatus {
	creds := p.client.tokens.Snapshot()
	return IntegrationStatus{
		Enabled:    p.enabled,
		Configured: creds.InstanceURL != "" && creds.ClientID != "" && creds.AccessToken != "",
	}
}

// PushStatusUpdate PATCHes the referral record. A 401 triggers one token
// refresh and one retry of the PATCH; if either fails the original 401 error
// is returned.
func (p *StatusPusher) PushStatusUpdate(ctx context.Context, update StatusUpdate) (*StatusUpdateResult, error) {
	if !p.enabled {
		return nil, ErrSyncDisabled
	}
	recordID := strings.TrimSpace(update.SalesforceID)
	if recordID == "" {
		return nil, ErrMissingRecordID
	}

	mapped, defaulted := MapStatus(update.Status)
	if defaulted {
		p.logger.Warn("unrecognized internal status, defaulting salesforce status",
			"internal_status", update.Status,
			"salesforce_status", mapped,
		)
	}
	body, err := json.Marshal(statusPatch{
		Status:                mapped,
		InternalStatus:        update.Status,
		InvestigationComplete: update.InvestigationComplete,
		PARequired:            update.PARequired,
		PAStatus:              update.PAStatus,
		EnrollmentStatus:      update.EnrollmentStatus,
		LastSyncDate:          p.now().UTC().Format(time.RFC3339),
		Notes:                 update.Notes,
	})
	if err != nil {
		return nil, fmt.Errorf("salesforce: failed to marshal status update: %w", err)
	}

	result := &StatusUpdateResult{
		SalesforceID:     recordID,
		SalesforceStatus: mapped,
		StatusDefaulted:  defaulted,
	}

	var firstErr error
	for attempt := 1; attempt <= maxStatusPushAttempts; attempt++ {
		creds, err := p.client.credentials()
		if err != nil {
			return nil, err
		}
		endpoint := p.client.dataURL(creds.InstanceURL, fmt.Sprintf("sobjects/%s/%s", referralObject, url.PathEscape(recordID)))

		resp, err := p.client.do(ctx, "status.patch", http.MethodPatch, endpoint, creds.AccessToken, body)
		if err != nil {
			if firstErr != nil {
				p.logger.Error("salesforce status retry failed", "record_id", recordID, "error", err)
				return nil, firstErr
			}
			return nil, err
		}
		if resp.ok() {
			p.logger.Info("salesforce status updated",
				"record_id", recordID,
				"internal_status", update.Status,
				"salesforce_status", mapped,
				"attempt", attempt,
			)
			return result, nil
		}

		updateErr := &UpstreamUpdateError{RecordID: recordID, StatusCode: resp.StatusCode, Body: string(resp.Body)}
		if firstErr != nil {
			p.logger.Error("salesforce status retry failed", "record_id", recordID, "error", updateErr)
			return nil, firstErr
		}
		if resp.StatusCode != http.StatusUnauthorized {
			return nil, updateErr
		}

		firstErr = updateErr
		if _, err := p.client.tokens.Refresh(ctx, creds.AccessToken); err != nil {
			p.logger.Error("salesforce token refresh failed", "record_id", recordID, "error", err)
			return nil, firstErr
		}
		result.TokenRefreshed = true
	}
	return nil, firstErr
}

// IsUpstreamUpdateError reports whether err carries a Salesforce rejection.
func IsUpstreamUpdateError(err error) (*UpstreamUpdateError, bool) {
	var upErr *UpstreamUpdateError
	if errors.As(err, &upErr) {
		return upErr, true
	}
	return nil, false
}
