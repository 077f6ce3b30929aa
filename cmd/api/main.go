package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/patient-support-platform/cmd/mainconfig"
	"github.com/wolfman30/patient-support-platform/internal/api/router"
	"github.com/wolfman30/patient-support-platform/internal/app/bootstrap"
	"github.com/wolfman30/patient-support-platform/internal/compliance"
	appconfig "github.com/wolfman30/patient-support-platform/internal/config"
	"github.com/wolfman30/patient-support-platform/internal/documents"
	"github.com/wolfman30/patient-support-platform/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/patient-support-platform/internal/http/middleware"
	"github.com/wolfman30/patient-support-platform/internal/intake"
	"github.com/wolfman30/patient-support-platform/internal/notify"
	"github.com/wolfman30/patient-support-platform/internal/observability/metrics"
	"github.com/wolfman30/patient-support-platform/internal/voice"
	"github.com/wolfman30/patient-support-platform/pkg/logging"
)

const (
	rateLimitPerSecond = 5
	rateLimitBurst     = 20
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting patient-support-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) error {
	pool, err := bootstrap.BuildPostgresPool(ctx, cfg)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}
	auditSvc, sqlDB := bootstrap.BuildAuditService(pool)
	if sqlDB != nil {
		defer sqlDB.Close()
	}

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer redisClient.Close()
	}
	repo := bootstrap.BuildRepository(cfg, pool, redisClient, logger)

	s3Client, sesClient, err := setupAWS(ctx, cfg)
	if err != nil {
		return err
	}

	metricsHandler, referralMetrics := setupReferralMetrics()
	limiter := httpmiddleware.NewRateLimiter(rateLimitPerSecond, rateLimitBurst)
	go limiter.RunEviction(ctx, time.Minute, 10*time.Minute)

	handler := buildHandler(deps{
		cfg:            cfg,
		logger:         logger,
		repo:           repo,
		audit:          auditSvc,
		s3:             s3Client,
		ses:            sesClient,
		metrics:        referralMetrics,
		metricsHandler: metricsHandler,
		limiter:        limiter,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// setupAWS converts the optional SDK clients to the narrow interfaces the
// document store and email sender take, keeping absent clients as nil.
func setupAWS(ctx context.Context, cfg *appconfig.Config) (documents.S3API, notify.SESAPI, error) {
	clients, err := mainconfig.LoadAWSClients(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	var (
		s3Client  documents.S3API
		sesClient notify.SESAPI
	)
	if clients.S3 != nil {
		s3Client = clients.S3
	}
	if clients.SES != nil {
		sesClient = clients.SES
	}
	return s3Client, sesClient, nil
}

func setupReferralMetrics() (http.Handler, *metrics.ReferralMetrics) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), metrics.NewReferralMetrics(registry)
}

type deps struct {
	cfg            *appconfig.Config
	logger         *logging.Logger
	repo           intake.Repository
	audit          *compliance.AuditService
	s3             documents.S3API
	ses            notify.SESAPI
	metrics        *metrics.ReferralMetrics
	metricsHandler http.Handler
	limiter        *httpmiddleware.RateLimiter
	httpClient     *http.Client
}

func buildHandler(d deps) http.Handler {
	cfg, logger := d.cfg, d.logger

	store := bootstrap.BuildDocumentStore(cfg, d.s3, logger)
	sf := bootstrap.BuildSalesforce(cfg, store, d.httpClient, logger)

	webhookCfg := handlers.SalesforceWebhookConfig{
		Secret:     cfg.SalesforceWebhookSecret,
		Documents:  sf.Fetcher,
		Repository: d.repo,
		Metrics:    d.metrics,
		Logger:     logger,
	}
	var statusAudit handlers.StatusAuditor
	if d.audit != nil {
		webhookCfg.Audit = d.audit
		statusAudit = d.audit
	}
	email := bootstrap.BuildEmailSender(cfg, d.ses, logger)
	if notifier := bootstrap.BuildReferralNotifier(cfg, email, logger); notifier != nil {
		webhookCfg.Notifier = notifier
	}

	calls := voice.New(voice.Config{
		BaseURL:       cfg.ElevenLabsBaseURL,
		APIKey:        cfg.ElevenLabsAPIKey,
		AgentID:       cfg.ElevenLabsAgentID,
		PhoneNumberID: cfg.ElevenLabsPhoneNumberID,
		HTTPClient:    d.httpClient,
		Logger:        logger,
	})
	if !calls.Configured() {
		logger.Warn("ElevenLabs not configured; outbound calls will be rejected")
	}

	return router.New(&router.Config{
		Logger:              logger,
		SalesforceWebhook:   handlers.NewSalesforceWebhookHandler(webhookCfg),
		SalesforceStatus:    handlers.NewSalesforceStatusHandler(sf.Pusher, sf.Client, statusAudit, d.metrics, logger),
		VoiceCalls:          handlers.NewVoiceCallHandler(calls, d.metrics, logger),
		Referrals:           handlers.NewReferralsHandler(d.repo, logger),
		MetricsHandler:      d.metricsHandler,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		RateLimiter:         d.limiter,
		DocumentsDir:        store.Dir(),
		DocumentsPublicPath: store.PublicPath(),
	})
}
