// Package compliance records the PHI access trail for referral intake.
package compliance

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditEventType represents the type of compliance event.
type AuditEventType string

const (
	// EventReferralReceived is logged when a referral webhook is accepted.
	EventReferralReceived AuditEventType = "referral.received"
	// EventDocumentDownloaded is logged when a referral attachment is stored.
	EventDocumentDownloaded AuditEventType = "referral.document_downloaded"
	// EventStatusPushed is logged when a status update is sent to Salesforce.
	EventStatusPushed AuditEventType = "referral.status_pushed"
)

// AuditEvent represents an immutable compliance audit record. Details never
// carry patient demographics.
type AuditEvent struct {
	ID           string          `json:"id"`
	EventType    AuditEventType  `json:"event_type"`
	ReferralID   string          `json:"referral_id,omitempty"`
	SalesforceID string          `json:"salesforce_id,omitempty"`
	Actor        string          `json:"actor,omitempty"`
	Details      json.RawMessage `json:"details,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// AuditDetails contains event-specific details.
type AuditDetails struct {
	// For referral received
	Status      string   `json:"status,omitempty"`
	Priority    string   `json:"priority,omitempty"`
	MissingInfo []string `json:"missing_info,omitempty"`
	HasDocument bool     `json:"has_document,omitempty"`

	// For document downloaded
	ContentVersionID string `json:"content_version_id,omitempty"`
	DocumentPath     string `json:"document_path,omitempty"`
	DocumentBytes    int    `json:"document_bytes,omitempty"`

	// For status pushed
	InternalStatus   string `json:"internal_status,omitempty"`
	SalesforceStatus string `json:"salesforce_status,omitempty"`
	TokenRefreshed   bool   `json:"token_refreshed,omitempty"`
}

// AuditService handles compliance audit logging. A nil service drops events.
type AuditService struct {
	db *sql.DB
}

// NewAuditService creates a new audit service.
func NewAuditService(db *sql.DB) *AuditService {
	return &AuditService{db: db}
}

// LogEvent records a compliance audit event.
func (s *AuditService) LogEvent(ctx context.Context, event AuditEvent) error {
	if s == nil || s.db == nil {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if event.Actor == "" {
		event.Actor = "system"
	}

	query := `
		INSERT INTO audit_events (
			id, event_type, referral_id, salesforce_id, actor, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		string(event.EventType),
		nullString(event.ReferralID),
		nullString(event.SalesforceID),
		event.Actor,
		[]byte(event.Details),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("compliance: failed to log audit event: %w", err)
	}

	return nil
}

// LogReferralReceived logs an accepted referral webhook.
func (s *AuditService) LogReferralReceived(ctx context.Context, referralID, salesforceID, status, priority string, missing []string, hasDocument bool) error {
	details := AuditDetails{
		Status:      status,
		Priority:    priority,
		MissingInfo: missing,
		HasDocument: hasDocument,
	}
	detailsJSON, _ := json.Marshal(details)

	return s.LogEvent(ctx, AuditEvent{
		EventType:    EventReferralReceived,
		ReferralID:   referralID,
		SalesforceID: salesforceID,
		Actor:        "salesforce",
		Details:      detailsJSON,
	})
}

// LogDocumentDownloaded logs a stored referral attachment.
func (s *AuditService) LogDocumentDownloaded(ctx context.Context, referralID, versionID, path string, size int) error {
	details := AuditDetails{
		ContentVersionID: versionID,
		DocumentPath:     path,
		DocumentBytes:    size,
	}
	detailsJSON, _ := json.Marshal(details)

	return s.LogEvent(ctx, AuditEvent{
		EventType:  EventDocumentDownloaded,
		ReferralID: referralID,
		Details:    detailsJSON,
	})
}

// LogStatusPushed logs a status update accepted by Salesforce.
func (s *AuditService) LogStatusPushed(ctx context.Context, salesforceID, internalStatus, salesforceStatus string, tokenRefreshed bool) error {
	details := AuditDetails{
		InternalStatus:   internalStatus,
		SalesforceStatus: salesforceStatus,
		TokenRefreshed:   tokenRefreshed,
	}
	detailsJSON, _ := json.Marshal(details)

	return s.LogEvent(ctx, AuditEvent{
		EventType:    EventStatusPushed,
		SalesforceID: salesforceID,
		Details:      detailsJSON,
	})
}

// QueryEvents retrieves audit events with filters.
func (s *AuditService) QueryEvents(ctx context.Context, filter AuditFilter) ([]AuditEvent, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := `
		SELECT id, event_type, referral_id, salesforce_id, actor, details, created_at
		FROM audit_events
		WHERE 1 = 1
	`
	var args []interface{}
	argIdx := 1

	if filter.ReferralID != "" {
		query += fmt.Sprintf(" AND referral_id = $%d", argIdx)
		args = append(args, filter.ReferralID)
		argIdx++
	}
	if filter.EventType != "" {
		query += fmt.Sprintf(" AND event_type = $%d", argIdx)
		args = append(args, string(filter.EventType))
		argIdx++
	}
	if !filter.StartTime.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, filter.StartTime)
		argIdx++
	}
	if !filter.EndTime.IsZero() {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, filter.EndTime)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("compliance: failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var e AuditEvent
		var eventType string
		var referralID, salesforceID sql.NullString
		var details []byte
		if err := rows.Scan(&e.ID, &eventType, &referralID, &salesforceID, &e.Actor, &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("compliance: failed to scan audit event: %w", err)
		}
		e.EventType = AuditEventType(eventType)
		e.ReferralID = referralID.String
		e.SalesforceID = salesforceID.String
		e.Details = details
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("compliance: failed to iterate audit events: %w", err)
	}

	return events, nil
}

// AuditFilter specifies criteria for querying audit events.
type AuditFilter struct {
	ReferralID string
	EventType  AuditEventType
	StartTime  time.Time
	EndTime    time.Time
	Limit      int
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
