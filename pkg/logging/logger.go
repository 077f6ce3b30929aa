package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger so referral components share one JSON format and
// one PHI redaction policy.
type Logger struct {
	*slog.Logger
}

const redacted = "[redacted]"

// phiKeys are attribute keys whose values are patient identifiers. Phone
// numbers keep their last four digits so call attempts stay traceable.
var phiKeys = map[string]bool{
	"patient_name":  true,
	"first_name":    true,
	"last_name":     true,
	"date_of_birth": true,
	"dob":           true,
	"member_id":     true,
	"ssn":           true,
	"address":       true,
}

var phoneKeys = map[string]bool{
	"phone":         true,
	"patient_phone": true,
	"to_number":     true,
}

// New creates a JSON logger on stdout at the given level.
func New(level string) *Logger {
	return NewWithWriter(level, os.Stdout)
}

// NewWithWriter is New with an explicit sink.
func NewWithWriter(level string, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{
		Level:       ParseLevel(level),
		ReplaceAttr: redactPHI,
	}
	return &Logger{Logger: slog.New(slog.NewJSONHandler(w, opts))}
}

// ParseLevel maps LOG_LEVEL values onto slog levels, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Default returns a logger with default settings
func Default() *Logger {
	return New("info")
}

// WithComponent returns a child logger tagged with the given component name.
func (l *Logger) WithComponent(component string) *Logger {
	if l == nil {
		l = Default()
	}
	return &Logger{Logger: l.Logger.With("component", component)}
}

// WithReferral tags every record with the referral and Salesforce record ids.
// Empty ids are omitted.
func (l *Logger) WithReferral(referralID, salesforceID string) *Logger {
	if l == nil {
		l = Default()
	}
	var args []any
	if referralID != "" {
		args = append(args, "referral_id", referralID)
	}
	if salesforceID != "" {
		args = append(args, "salesforce_id", salesforceID)
	}
	if len(args) == 0 {
		return l
	}
	return &Logger{Logger: l.Logger.With(args...)}
}

func redactPHI(_ []string, a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)
	switch {
	case phiKeys[key]:
		return slog.String(a.Key, redacted)
	case phoneKeys[key]:
		return slog.String(a.Key, MaskPhone(a.Value.String()))
	}
	return a
}

// MaskPhone keeps only the last four digits of a phone number for logging.
func MaskPhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if len(phone) <= 4 {
		return "****"
	}
	return "***" + phone[len(phone)-4:]
}
