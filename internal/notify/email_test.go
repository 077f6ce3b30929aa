package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
)

func TestNewSendGridSender_NilWithoutAPIKey(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{
		APIKey:    "",
		FromEmail: "test@example.com",
	}, nil)

	if sender != nil {
		t.Error("expected nil sender when API key is empty")
	}
}

func TestNewSendGridSender_DefaultFromName(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{
		APIKey:    "test-key",
		FromEmail: "test@example.com",
		FromName:  "",
	}, nil)

	if sender == nil {
		t.Fatal("expected non-nil sender")
	}
	if sender.fromName != "Patient Support Intake" {
		t.Errorf("expected default from name 'Patient Support Intake', got %q", sender.fromName)
	}
}

func TestNewSendGridSender_CustomFromName(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{
		APIKey:    "test-key",
		FromEmail: "test@example.com",
		FromName:  "Custom Name",
	}, nil)

	if sender == nil {
		t.Fatal("expected non-nil sender")
	}
	if sender.fromName != "Custom Name" {
		t.Errorf("expected from name 'Custom Name', got %q", sender.fromName)
	}
}

func TestSendGridSender_Send_NilClient(t *testing.T) {
	sender := &SendGridSender{
		client: nil,
	}

	err := sender.Send(context.Background(), EmailMessage{
		To:      "recipient@example.com",
		Subject: "Test",
		Body:    "Test body",
	})

	if err == nil {
		t.Error("expected error when client is nil")
	}
}

func TestStubEmailSender_Send(t *testing.T) {
	sender := NewStubEmailSender(nil)

	err := sender.Send(context.Background(), EmailMessage{
		To:      "recipient@example.com",
		Subject: "Test Subject",
		Body:    "Test body",
	})

	if err != nil {
		t.Errorf("stub sender should not return error, got: %v", err)
	}
}

type mockSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (m *mockSES) SendEmail(_ context.Context, params *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	m.input = params
	if m.err != nil {
		return nil, m.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESSender_Send(t *testing.T) {
	mock := &mockSES{}
	sender := NewSESSender(mock, SESConfig{FromEmail: "intake@example.com"}, nil)

	err := sender.Send(context.Background(), EmailMessage{
		To:       "team@example.com",
		Subject:  "Hello",
		Body:     "text",
		HTML:     "<p>html</p>",
		Category: "referral-incomplete",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := aws.ToString(mock.input.FromEmailAddress); got != `"Patient Support Intake" <intake@example.com>` {
		t.Errorf("unexpected from: %s", got)
	}
	if got := mock.input.Destination.ToAddresses; len(got) != 1 || got[0] != "team@example.com" {
		t.Errorf("unexpected to: %v", got)
	}
	if aws.ToString(mock.input.Content.Simple.Body.Text.Data) != "text" {
		t.Error("expected text body")
	}
	if aws.ToString(mock.input.Content.Simple.Body.Html.Data) != "<p>html</p>" {
		t.Error("expected html body")
	}
	if tags := mock.input.EmailTags; len(tags) != 1 || aws.ToString(tags[0].Value) != "referral-incomplete" {
		t.Errorf("expected category tag, got %v", tags)
	}
}

func TestSESSender_NamedRecipient(t *testing.T) {
	mock := &mockSES{}
	sender := NewSESSender(mock, SESConfig{FromEmail: "intake@example.com", FromName: "Intake"}, nil)

	if err := sender.Send(context.Background(), EmailMessage{To: "team@example.com", ToName: "Intake Team", Body: "x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := mock.input.Destination.ToAddresses[0]; got != `"Intake Team" <team@example.com>` {
		t.Errorf("unexpected to: %s", got)
	}
	if mock.input.EmailTags != nil {
		t.Errorf("expected no tags without category, got %v", mock.input.EmailTags)
	}
}

func TestSenders_RejectMissingRecipient(t *testing.T) {
	mock := &mockSES{}
	senders := map[string]EmailSender{
		"ses":      NewSESSender(mock, SESConfig{FromEmail: "intake@example.com"}, nil),
		"sendgrid": NewSendGridSender(SendGridConfig{APIKey: "SG.key", FromEmail: "intake@example.com"}, nil),
		"stub":     NewStubEmailSender(nil),
	}
	for name, sender := range senders {
		if err := sender.Send(context.Background(), EmailMessage{To: "  ", Body: "x"}); !errors.Is(err, ErrMissingRecipient) {
			t.Errorf("%s: expected ErrMissingRecipient, got %v", name, err)
		}
	}
	if mock.input != nil {
		t.Error("expected SES not to be called")
	}
}

func TestSESSender_SendError(t *testing.T) {
	sender := NewSESSender(&mockSES{err: errors.New("throttled")}, SESConfig{FromEmail: "intake@example.com"}, nil)
	if err := sender.Send(context.Background(), EmailMessage{To: "team@example.com", Body: "x"}); err == nil {
		t.Error("expected error from SES")
	}
}

func TestNewSESSender_NilClient(t *testing.T) {
	if NewSESSender(nil, SESConfig{}, nil) != nil {
		t.Error("expected nil sender without client")
	}
}
