package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/wolfman30/patient-support-platform/internal/intake"
	"github.com/wolfman30/patient-support-platform/pkg/logging"
)

const referralAlertCategory = "referral-incomplete"

// ReferralNotifier alerts the intake team about referrals that need follow-up.
type ReferralNotifier struct {
	email     EmailSender
	recipient string
	logger    *logging.Logger
}

// NewReferralNotifier creates a notifier that mails recipient. With no sender or
// recipient every notification is skipped.
func NewReferralNotifier(email EmailSender, recipient string, logger *logging.Logger) *ReferralNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &ReferralNotifier{
		email:     email,
		recipient: strings.TrimSpace(recipient),
		logger:    logger,
	}
}

// Enabled reports whether alerts will be sent.
func (n *ReferralNotifier) Enabled() bool {
	return n != nil && n.email != nil && n.recipient != ""
}

// NotifyIncomplete emails a summary of the missing items on form. Complete
// forms are ignored.
func (n *ReferralNotifier) NotifyIncomplete(ctx context.Context, form *intake.StartForm) error {
	if !n.Enabled() {
		return nil
	}
	if form == nil || form.Status != intake.StatusIncomplete {
		return nil
	}

	subject := fmt.Sprintf("Incomplete referral %s: %d item(s) missing", form.ID, len(form.MissingInfo))

	var text strings.Builder
	fmt.Fprintf(&text, "Referral %s needs additional information before review.\n\n", form.ID)
	if form.SalesforceID != "" {
		fmt.Fprintf(&text, "Salesforce record: %s\n", form.SalesforceID)
	}
	fmt.Fprintf(&text, "Source: %s\nReceived: %s\nPriority: %s\n\nMissing:\n", form.Source, form.ReceivedAt, form.Priority)
	for _, item := range form.MissingInfo {
		fmt.Fprintf(&text, "- %s\n", item)
	}
	fmt.Fprintf(&text, "\nNext action: %s\n", form.NextAction)

	var htmlBody strings.Builder
	fmt.Fprintf(&htmlBody, "<p>Referral <strong>%s</strong> needs additional information before review.</p><ul>", html.EscapeString(form.ID))
	for _, item := range form.MissingInfo {
		fmt.Fprintf(&htmlBody, "<li>%s</li>", html.EscapeString(item))
	}
	fmt.Fprintf(&htmlBody, "</ul><p>Next action: %s</p>", html.EscapeString(form.NextAction))

	if err := n.email.Send(ctx, EmailMessage{
		To:       n.recipient,
		Subject:  subject,
		Body:     text.String(),
		HTML:     htmlBody.String(),
		Category: referralAlertCategory,
	}); err != nil {
		n.logger.Error("notify: incomplete referral alert failed", "error", err, "referral_id", form.ID)
		return fmt.Errorf("notify: incomplete referral alert: %w", err)
	}
	n.logger.Info("notify: incomplete referral alert sent", "referral_id", form.ID, "missing", len(form.MissingInfo))
	return nil
}
