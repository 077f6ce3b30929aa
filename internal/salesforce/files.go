package salesforce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/wolfman30/patient-support-platform/pkg/logging"
)

// DocumentWriter persists a downloaded attachment and returns its public path.
type DocumentWriter interface {
	Save(ctx context.Context, filename string, data []byte) (string, error)
}

// DownloadResult describes a saved referral attachment.
type DownloadResult struct {
	VersionID string `json:"versionId"`
	Path      string `json:"path"`
	Title     string `json:"title"`
	Size      int    `json:"size"`
}

// contentVersion is the subset of ContentVersion metadata we read.
type contentVersion struct {
	ID                string `json:"Id"`
	Title             string `json:"Title"`
	FileExtension     string `json:"FileExtension"`
	ContentSize       int64  `json:"ContentSize"`
	ContentDocumentID string `json:"ContentDocumentId"`
}

type queryResult struct {
	TotalSize int `json:"totalSize"`
	Records   []struct {
		ID string `json:"Id"`
	} `json:"records"`
}

// DocumentFetcher downloads referral attachments from Salesforce Files.
type DocumentFetcher struct {
	client *Client
	writer DocumentWriter
	logger *logging.Logger
}

// NewDocumentFetcher creates a fetcher that stores files through writer.
func NewDocumentFetcher(client *Client, writer DocumentWriter, logger *logging.Logger) *DocumentFetcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &DocumentFetcher{client: client, writer: writer, logger: logger}
}

// DownloadByVersionID fetches ContentVersion metadata and binary data for
// versionID and writes it as "<title-slug>-<versionID>.<ext>".
func (f *DocumentFetcher) DownloadByVersionID(ctx context.Context, versionID string) (*DownloadResult, error) {
	versionID = strings.TrimSpace(versionID)
	if versionID == "" {
		return nil, errors.New("salesforce: content version id is required")
	}
	creds, err := f.client.credentials()
	if err != nil {
		return nil, err
	}
	if f.writer == nil {
		return nil, &ConfigurationError{Missing: []string{"REFERRAL_DOCUMENTS_DIR"}}
	}

	versionPath := "sobjects/ContentVersion/" + url.PathEscape(versionID)

	metaResp, err := f.client.do(ctx, "content_version.metadata", http.MethodGet, f.client.dataURL(creds.InstanceURL, versionPath), creds.AccessToken, nil)
	if err != nil {
		return nil, err
	}
	if !metaResp.ok() {
		return nil, &MetadataFetchError{VersionID: versionID, StatusCode: metaResp.StatusCode, Body: string(metaResp.Body)}
	}
	var meta contentVersion
	if err := json.Unmarshal(metaResp.Body, &meta); err != nil {
		return nil, fmt.Errorf("salesforce: failed to decode content version metadata: %w", err)
	}

	dataResp, err := f.client.do(ctx, "content_version.data", http.MethodGet, f.client.dataURL(creds.InstanceURL, versionPath+"/VersionData"), creds.AccessToken, nil)
	if err != nil {
		return nil, err
	}
	if !dataResp.ok() {
		return nil, &ContentFetchError{VersionID: versionID, StatusCode: dataResp.StatusCode, Body: string(dataResp.Body)}
	}
	if received := int64(len(dataResp.Body)); meta.ContentSize > 0 && received != meta.ContentSize {
		return nil, &ContentSizeMismatchError{VersionID: versionID, Expected: meta.ContentSize, Received: received}
	}

	ext := SanitizeTitle(strings.TrimPrefix(strings.TrimSpace(meta.FileExtension), "."))
	if ext == "" {
		ext = "pdf"
	}
	slug := SanitizeTitle(meta.Title)
	if slug == "" {
		slug = "referral"
	}
	// Version ids are case-sensitive, so they are made path-safe without lowercasing.
	filename := fmt.Sprintf("%s-%s.%s", slug, unsafeFilenameChars.ReplaceAllString(versionID, "-"), ext)

	publicPath, err := f.writer.Save(ctx, filename, dataResp.Body)
	if err != nil {
		return nil, fmt.Errorf("salesforce: failed to store document: %w", err)
	}

	f.logger.Info("referral document downloaded",
		"content_version_id", versionID,
		"path", publicPath,
		"bytes", len(dataResp.Body),
	)

	return &DownloadResult{
		VersionID: versionID,
		Path:      publicPath,
		Title:     meta.Title,
		Size:      len(dataResp.Body),
	}, nil
}

// DownloadByDocumentID resolves the latest ContentVersion of a ContentDocument
// and downloads it.
func (f *DocumentFetcher) DownloadByDocumentID(ctx context.Context, documentID string) (*DownloadResult, error) {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return nil, errors.New("salesforce: content document id is required")
	}
	creds, err := f.client.credentials()
	if err != nil {
		return nil, err
	}

	soql := fmt.Sprintf("SELECT Id FROM ContentVersion WHERE ContentDocumentId = '%s' AND IsLatest = true LIMIT 1", escapeSOQL(documentID))
	endpoint := f.client.dataURL(creds.InstanceURL, "query") + "?" + url.Values{"q": {soql}}.Encode()

	resp, err := f.client.do(ctx, "content_version.query", http.MethodGet, endpoint, creds.AccessToken, nil)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, fmt.Errorf("salesforce: API error (status %d): %s", resp.StatusCode, string(resp.Body))
	}
	var result queryResult
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, fmt.Errorf("salesforce: failed to decode query response: %w", err)
	}
	if len(result.Records) == 0 || strings.TrimSpace(result.Records[0].ID) == "" {
		return nil, &NoVersionFoundError{DocumentID: documentID}
	}

	return f.DownloadByVersionID(ctx, result.Records[0].ID)
}

// TestConnection reports whether the Files API is reachable with the current credentials.
func (f *DocumentFetcher) TestConnection(ctx context.Context) bool {
	return f.client.TestConnection(ctx)
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// SanitizeTitle turns a document title into a lowercase filesystem-safe slug.
func SanitizeTitle(title string) string {
	return strings.ToLower(unsafeFilenameChars.ReplaceAllString(title, "-"))
}

func escapeSOQL(value string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(value)
}
