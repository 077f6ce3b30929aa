package router

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/patient-support-platform/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/patient-support-platform/internal/http/middleware"
	"github.com/wolfman30/patient-support-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	SalesforceWebhook  *handlers.SalesforceWebhookHandler
	SalesforceStatus   *handlers.SalesforceStatusHandler
	VoiceCalls         *handlers.VoiceCallHandler
	Referrals          *handlers.ReferralsHandler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// RateLimiter guards the outward-facing POST endpoints when set.
	RateLimiter *httpmiddleware.RateLimiter

	// DocumentsDir is served under DocumentsPublicPath when both are set.
	DocumentsDir        string
	DocumentsPublicPath string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	limited := func(h http.HandlerFunc) http.Handler {
		if cfg.RateLimiter == nil {
			return h
		}
		return cfg.RateLimiter.Middleware(h)
	}

	r.Get("/health", handlers.HealthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api", func(api chi.Router) {
		if cfg.SalesforceWebhook != nil {
			api.Get("/webhooks/salesforce", cfg.SalesforceWebhook.Probe)
			api.Method(http.MethodPost, "/webhooks/salesforce", limited(cfg.SalesforceWebhook.Handle))
		}
		if cfg.SalesforceStatus != nil {
			api.Get("/salesforce/status", cfg.SalesforceStatus.Status)
			api.Method(http.MethodPost, "/salesforce/status", limited(cfg.SalesforceStatus.Push))
		}
		if cfg.VoiceCalls != nil {
			api.Method(http.MethodPost, "/calls/outbound", limited(cfg.VoiceCalls.Outbound))
		}
		if cfg.Referrals != nil {
			api.Get("/referrals/{id}", cfg.Referrals.Get)
		}
	})

	mountDocuments(r, cfg.DocumentsDir, cfg.DocumentsPublicPath)

	return r
}

// mountDocuments serves downloaded referral documents as static files.
func mountDocuments(r chi.Router, dir, publicPath string) {
	dir = strings.TrimSpace(dir)
	publicPath = "/" + strings.Trim(strings.TrimSpace(publicPath), "/")
	if dir == "" || publicPath == "/" {
		return
	}
	fs := http.StripPrefix(publicPath+"/", http.FileServer(http.Dir(dir)))
	r.Get(publicPath+"/*", fs.ServeHTTP)
}
