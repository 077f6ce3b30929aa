package salesforce

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wolfman30/patient-support-platform/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultAPIVersion = "v59.0"
	defaultTimeout    = 30 * time.Second

	// maxResponseBytes bounds document downloads and error bodies. Larger
	// responses fail with ResponseTooLargeError rather than being cut short.
	maxResponseBytes = 50 << 20
)

// Client talks to the Salesforce REST API using credentials from a TokenStore.
type Client struct {
	tokens     *TokenStore
	apiVersion string
	httpClient *http.Client
	logger     *logging.Logger
	tracer     trace.Tracer
	maxBody    int64
}

// ClientConfig configures the REST client.
type ClientConfig struct {
	Tokens     *TokenStore
	APIVersion string // e.g. "v59.0"
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *logging.Logger
}

// NewClient creates a REST client. A nil token store yields a client whose
// operations all fail with ConfigurationError.
func NewClient(cfg ClientConfig) *Client {
	apiVersion := strings.TrimSpace(cfg.APIVersion)
	if apiVersion == "" {
		apiVersion = defaultAPIVersion
	}
	if !strings.HasPrefix(apiVersion, "v") {
		apiVersion = "v" + apiVersion
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		tokens:     cfg.Tokens,
		apiVersion: apiVersion,
		httpClient: httpClient,
		logger:     logger,
		tracer:     otel.Tracer("patient_support.internal.salesforce"),
		maxBody:    maxResponseBytes,
	}
}

// Tokens exposes the credential holder backing this client.
func (c *Client) Tokens() *TokenStore {
	return c.tokens
}

// credentials reads the instance URL and access token for one operation.
func (c *Client) credentials() (Credentials, error) {
	creds := c.tokens.Snapshot()
	var missing []string
	if creds.InstanceURL == "" {
		missing = append(missing, "SALESFORCE_INSTANCE_URL")
	}
	if creds.AccessToken == "" {
		missing = append(missing, "SALESFORCE_ACCESS_TOKEN")
	}
	if len(missing) > 0 {
		return creds, &ConfigurationError{Missing: missing}
	}
	return creds, nil
}

func (c *Client) dataURL(instanceURL string, path string) string {
	return fmt.Sprintf("%s/services/data/%s/%s", instanceURL, c.apiVersion, strings.TrimPrefix(path, "/"))
}

type apiResponse struct {
	StatusCode int
	Body       []byte
}

func (r *apiResponse) ok() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// do issues one authenticated request and reads the whole (bounded) body.
func (c *Client) do(ctx context.Context, operation, method, endpoint, accessToken string, body []byte) (*apiResponse, error) {
	ctx, span := c.tracer.Start(ctx, "salesforce."+operation)
	defer span.End()
	span.SetAttributes(attribute.String("http.method", method))

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("salesforce: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return nil, fmt.Errorf("salesforce: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("salesforce: read response: %w", err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if int64(len(respBody)) > c.maxBody {
		tooLarge := &ResponseTooLargeError{Operation: operation, Limit: c.maxBody}
		span.RecordError(tooLarge)
		span.SetStatus(codes.Error, "response too large")
		return nil, tooLarge
	}
	if resp.StatusCode >= 400 {
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
	}
	return &apiResponse{StatusCode: resp.StatusCode, Body: respBody}, nil
}

// TestConnection probes the REST API root. It never returns an error; any
// configuration or transport failure reports false.
func (c *Client) TestConnection(ctx context.Context) bool {
	creds, err := c.credentials()
	if err != nil {
		return false
	}
	resp, err := c.do(ctx, "probe", http.MethodGet, c.dataURL(creds.InstanceURL, ""), creds.AccessToken, nil)
	if err != nil {
		c.logger.Warn("salesforce connection probe failed", "error", err)
		return false
	}
	return resp.ok()
}
