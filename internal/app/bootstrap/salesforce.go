package bootstrap

import (
	"net/http"

	appconfig "github.com/wolfman30/patient-support-platform/internal/config"
	"github.com/wolfman30/patient-support-platform/internal/documents"
	"github.com/wolfman30/patient-support-platform/internal/salesforce"
	"github.com/wolfman30/patient-support-platform/pkg/logging"
)

// Salesforce groups the collaborators that share one credential store.
type Salesforce struct {
	Tokens  *salesforce.TokenStore
	Client  *salesforce.Client
	Fetcher *salesforce.DocumentFetcher
	Pusher  *salesforce.StatusPusher
}

// BuildSalesforce wires the Health Cloud client from config. Missing
// credentials are not an error here; each operation reports them when used.
func BuildSalesforce(cfg *appconfig.Config, docs salesforce.DocumentWriter, httpClient *http.Client, logger *logging.Logger) *Salesforce {
	logger = logger.WithComponent("salesforce")
	if cfg == nil {
		cfg = &appconfig.Config{}
	}
	tokens := salesforce.NewTokenStore(salesforce.TokenStoreConfig{
		InstanceURL:  cfg.SalesforceInstanceURL,
		ClientID:     cfg.SalesforceClientID,
		ClientSecret: cfg.SalesforceClientSecret,
		AccessToken:  cfg.SalesforceAccessToken,
		RefreshToken: cfg.SalesforceRefreshToken,
		HTTPClient:   httpClient,
		Logger:       logger,
	})
	client := salesforce.NewClient(salesforce.ClientConfig{
		Tokens:     tokens,
		APIVersion: cfg.SalesforceAPIVersion,
		HTTPClient: httpClient,
		Timeout:    cfg.SalesforceTimeout,
		Logger:     logger,
	})
	sf := &Salesforce{
		Tokens: tokens,
		Client: client,
		Pusher: salesforce.NewStatusPusher(client, cfg.SalesforceSyncEnabled, logger),
	}
	if docs != nil {
		sf.Fetcher = salesforce.NewDocumentFetcher(client, docs, logger)
	}

	status := sf.Pusher.IntegrationStatus()
	logger.Info("salesforce integration configured",
		"configured", status.Configured,
		"sync_enabled", status.Enabled,
		"webhook_signed", cfg.SalesforceWebhookSecret != "",
	)
	return sf
}

// BuildDocumentStore creates the local referral document directory, mirrored to
// S3 when a bucket and client are provided.
func BuildDocumentStore(cfg *appconfig.Config, s3Client documents.S3API, logger *logging.Logger) *documents.LocalStore {
	var mirror *documents.S3Mirror
	if cfg.ReferralDocumentsBucket != "" && s3Client != nil {
		mirror = documents.NewS3Mirror(s3Client, cfg.ReferralDocumentsBucket)
	}
	return documents.NewLocalStore(cfg.ReferralDocumentsDir, cfg.ReferralDocumentsPublicPath, mirror, logger)
}
