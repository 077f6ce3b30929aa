package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port                string
	Env                 string
	PublicBaseURL       string
	LogLevel            string
	CORSAllowedOrigins  []string
	DatabaseURL         string
	RedisAddr           string
	RedisPassword       string
	RedisTLS            bool
	ReferralCacheTTL    time.Duration
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Salesforce Health Cloud Configuration
	SalesforceInstanceURL   string
	SalesforceClientID      string
	SalesforceClientSecret  string
	SalesforceAccessToken   string
	SalesforceRefreshToken  string
	SalesforceWebhookSecret string
	SalesforceSyncEnabled   bool
	SalesforceAPIVersion    string
	SalesforceTimeout       time.Duration

	// Referral document storage
	ReferralDocumentsDir        string
	ReferralDocumentsPublicPath string
	ReferralDocumentsBucket     string

	// ElevenLabs Conversational AI Configuration
	ElevenLabsAPIKey        string
	ElevenLabsAgentID       string
	ElevenLabsPhoneNumberID string
	ElevenLabsBaseURL       string

	// Intake alert email configuration
	EmailProvider     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	IntakeAlertEmail  string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:                getEnv("PORT", "8080"),
		Env:                 getEnv("ENV", "development"),
		PublicBaseURL:       getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		RedisAddr:           getEnv("REDIS_ADDR", ""),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisTLS:            getEnvAsBool("REDIS_TLS", false),
		ReferralCacheTTL:    getEnvAsDuration("REFERRAL_CACHE_TTL", 72*time.Hour),
		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		// Salesforce Health Cloud Configuration
		SalesforceInstanceURL:   strings.TrimRight(getEnv("SALESFORCE_INSTANCE_URL", ""), "/"),
		SalesforceClientID:      getEnv("SALESFORCE_CLIENT_ID", ""),
		SalesforceClientSecret:  getEnv("SALESFORCE_CLIENT_SECRET", ""),
		SalesforceAccessToken:   getEnv("SALESFORCE_ACCESS_TOKEN", ""),
		SalesforceRefreshToken:  getEnv("SALESFORCE_REFRESH_TOKEN", ""),
		SalesforceWebhookSecret: getEnv("SALESFORCE_WEBHOOK_SECRET", ""),
		SalesforceSyncEnabled:   getEnvAsBool("SALESFORCE_SYNC_ENABLED", false),
		SalesforceAPIVersion:    getEnv("SALESFORCE_API_VERSION", "v59.0"),
		SalesforceTimeout:       getEnvAsDuration("SALESFORCE_TIMEOUT", 30*time.Second),

		// Referral document storage
		ReferralDocumentsDir:        getEnv("REFERRAL_DOCUMENTS_DIR", "public/referrals"),
		ReferralDocumentsPublicPath: getEnv("REFERRAL_DOCUMENTS_PUBLIC_PATH", "/referrals"),
		ReferralDocumentsBucket:     getEnv("REFERRAL_DOCUMENTS_BUCKET", ""),

		// ElevenLabs Conversational AI Configuration
		ElevenLabsAPIKey:        getEnv("ELEVENLABS_API_KEY", ""),
		ElevenLabsAgentID:       getEnv("ELEVENLABS_AGENT_ID", ""),
		ElevenLabsPhoneNumberID: getEnv("ELEVENLABS_PHONE_NUMBER_ID", ""),
		ElevenLabsBaseURL:       getEnv("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io"),

		// Intake alert email configuration
		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "sendgrid"))),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Patient Support Intake"),
		IntakeAlertEmail:  getEnv("INTAKE_ALERT_EMAIL", ""),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping blank entries.
func getEnvAsList(key string) []string {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
