// Command webhook-lambda relays Salesforce referral webhooks from API Gateway
// to the API service so the public edge never holds Salesforce credentials.
package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/wolfman30/patient-support-platform/internal/salesforce"
	"github.com/wolfman30/patient-support-platform/pkg/logging"
)

const (
	webhookPath        = "/api/webhooks/salesforce"
	maxUpstreamBody    = 1 << 20
	defaultUpstreamTTL = 10 * time.Second
)

// forwardedHeaders are copied verbatim so the API can verify the signature.
var forwardedHeaders = []string{
	"content-type",
	strings.ToLower(salesforce.SignatureHeader),
	"x-request-id",
}

type config struct {
	upstreamBaseURL string
	upstreamTimeout time.Duration
}

func loadConfig() (config, error) {
	baseURL := strings.TrimSpace(os.Getenv("UPSTREAM_BASE_URL"))
	if baseURL == "" {
		return config{}, errors.New("UPSTREAM_BASE_URL is required")
	}

	timeout := defaultUpstreamTTL
	if raw := strings.TrimSpace(os.Getenv("UPSTREAM_TIMEOUT")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return config{}, fmt.Errorf("invalid UPSTREAM_TIMEOUT: %w", err)
		}
		timeout = parsed
	}

	return config{
		upstreamBaseURL: strings.TrimRight(baseURL, "/"),
		upstreamTimeout: timeout,
	}, nil
}

type forwarder struct {
	cfg    config
	client *http.Client
	logger *logging.Logger
}

func main() {
	logger := logging.New(os.Getenv("LOG_LEVEL"))
	cfg, err := loadConfig()
	if err != nil {
		logger.Error("webhook lambda misconfigured", "error", err)
		os.Exit(1)
	}

	f := &forwarder{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.upstreamTimeout},
		logger: logger,
	}
	lambda.Start(f.handle)
}

func (f *forwarder) handle(ctx context.Context, evt events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	method := strings.ToUpper(strings.TrimSpace(evt.RequestContext.HTTP.Method))
	path := strings.TrimSpace(evt.RawPath)
	if path == "" {
		path = strings.TrimSpace(evt.RequestContext.HTTP.Path)
	}
	path = strings.TrimRight(path, "/")

	if path == "/health" {
		return jsonResponse(http.StatusOK, `{"status":"ok"}`), nil
	}
	if path != webhookPath {
		return jsonResponse(http.StatusNotFound, `{"error":"Not found"}`), nil
	}
	if method != http.MethodPost {
		return jsonResponse(http.StatusMethodNotAllowed, `{"error":"Method not allowed"}`), nil
	}

	body, err := decodeBody(evt)
	if err != nil {
		return jsonResponse(http.StatusBadRequest, `{"error":"Invalid payload"}`), nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, f.cfg.upstreamTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, f.cfg.upstreamBaseURL+webhookPath, bytes.NewReader(body))
	if err != nil {
		f.logger.Error("build upstream request failed", "error", err)
		return jsonResponse(http.StatusInternalServerError, `{"error":"Internal error"}`), nil
	}
	for _, name := range forwardedHeaders {
		copyHeader(req.Header, evt.Headers, name)
	}
	if reqID := strings.TrimSpace(evt.RequestContext.RequestID); reqID != "" && req.Header.Get("X-Request-ID") == "" {
		req.Header.Set("X-Request-ID", reqID)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Error("upstream webhook call failed", "error", err)
		return jsonResponse(http.StatusBadGateway, `{"error":"Upstream unavailable"}`), nil
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
	f.logger.Info("salesforce webhook forwarded", "status", resp.StatusCode, "bytes", len(body))

	out := events.APIGatewayV2HTTPResponse{
		StatusCode: resp.StatusCode,
		Body:       string(respBody),
		Headers:    map[string]string{},
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		out.Headers["content-type"] = ct
	}
	return out, nil
}

func jsonResponse(status int, body string) events.APIGatewayV2HTTPResponse {
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Body:       body,
		Headers:    map[string]string{"content-type": "application/json"},
	}
}

func decodeBody(evt events.APIGatewayV2HTTPRequest) ([]byte, error) {
	if !evt.IsBase64Encoded {
		return []byte(evt.Body), nil
	}
	return base64.StdEncoding.DecodeString(evt.Body)
}

func headerValue(headers map[string]string, key string) string {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func copyHeader(dst http.Header, src map[string]string, header string) {
	if value := strings.TrimSpace(headerValue(src, header)); value != "" {
		dst.Set(header, value)
	}
}
