package bootstrap

import (
	appconfig "github.com/wolfman30/patient-support-platform/internal/config"
	"github.com/wolfman30/patient-support-platform/internal/notify"
	"github.com/wolfman30/patient-support-platform/pkg/logging"
)

// BuildEmailSender selects the intake alert transport from EMAIL_PROVIDER. A
// provider without credentials falls back to the logging stub.
func BuildEmailSender(cfg *appconfig.Config, ses notify.SESAPI, logger *logging.Logger) notify.EmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil {
		return notify.NewStubEmailSender(logger)
	}

	switch cfg.EmailProvider {
	case "ses":
		if sender := notify.NewSESSender(ses, notify.SESConfig{
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); sender != nil {
			logger.Info("email provider configured", "provider", "ses")
			return sender
		}
	case "", "sendgrid":
		if sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); sender != nil {
			logger.Info("email provider configured", "provider", "sendgrid")
			return sender
		}
	default:
		logger.Warn("unknown email provider", "provider", cfg.EmailProvider)
	}
	logger.Warn("email provider not configured; alerts are logged only", "provider", cfg.EmailProvider)
	return notify.NewStubEmailSender(logger)
}

// BuildReferralNotifier returns the incomplete-referral notifier, or nil when
// INTAKE_ALERT_EMAIL is unset.
func BuildReferralNotifier(cfg *appconfig.Config, sender notify.EmailSender, logger *logging.Logger) *notify.ReferralNotifier {
	if cfg == nil || cfg.IntakeAlertEmail == "" {
		return nil
	}
	return notify.NewReferralNotifier(sender, cfg.IntakeAlertEmail, logger)
}
