package salesforce

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidSignature is returned when a webhook signature is missing or does not match.
	ErrInvalidSignature = errors.New("salesforce: invalid webhook signature")

	// ErrInvalidPayload is returned when a webhook body cannot be read as a referral bundle.
	ErrInvalidPayload = errors.New("salesforce: invalid webhook payload")

	// ErrSyncDisabled is returned when status egress is switched off.
	ErrSyncDisabled = errors.New("salesforce: status sync is disabled")

	// ErrMissingRecordID is returned when a status update has no Salesforce record id.
	ErrMissingRecordID = errors.New("salesforce: record id is required")
)

// ConfigurationError reports credentials or URLs that are required but not set.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return "salesforce: missing configuration: " + strings.Join(e.Missing, ", ")
}

// MetadataFetchError is returned when ContentVersion metadata cannot be fetched.
type MetadataFetchError struct {
	VersionID  string
	StatusCode int
	Body       string
}

func (e *MetadataFetchError) Error() string {
	return fmt.Sprintf("salesforce: fetch metadata for %s failed (status %d): %s", e.VersionID, e.StatusCode, e.Body)
}

// ContentFetchError is returned when ContentVersion binary data cannot be fetched.
type ContentFetchError struct {
	VersionID  string
	StatusCode int
	Body       string
}

func (e *ContentFetchError) Error() string {
	return fmt.Sprintf("salesforce: fetch content for %s failed (status %d): %s", e.VersionID, e.StatusCode, e.Body)
}

// ResponseTooLargeError is returned when a response body exceeds the client's
// read limit. Nothing is stored for such a response.
type ResponseTooLargeError struct {
	Operation string
	Limit     int64
}

func (e *ResponseTooLargeError) Error() string {
	return fmt.Sprintf("salesforce: %s response exceeds %d bytes", e.Operation, e.Limit)
}

// ContentSizeMismatchError is returned when VersionData does not match the
// ContentSize reported in the version metadata.
type ContentSizeMismatchError struct {
	VersionID string
	Expected  int64
	Received  int64
}

func (e *ContentSizeMismatchError) Error() string {
	return fmt.Sprintf("salesforce: content for %s is %d bytes, metadata reports %d", e.VersionID, e.Received, e.Expected)
}

// NoVersionFoundError is returned when a ContentDocument has no latest version.
type NoVersionFoundError struct {
	DocumentID string
}

func (e *NoVersionFoundError) Error() string {
	return fmt.Sprintf("salesforce: no content version found for document %s", e.DocumentID)
}

// UpstreamUpdateError is returned when a record update is rejected by Salesforce.
type UpstreamUpdateError struct {
	RecordID   string
	StatusCode int
	Body       string
}

func (e *UpstreamUpdateError) Error() string {
	return fmt.Sprintf("salesforce: update %s failed (status %d): %s", e.RecordID, e.StatusCode, e.Body)
}
