package notify

import (
	"context"
	"log/slog"
)

// LogMailer writes notifications to the log instead of delivering them.
// Used in development when no SMTP relay is configured.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, n Notification) error {
	m.logger.Info("mail not delivered, no SMTP relay configured",
		"kind", n.Kind,
		"recipients", n.Recipients,
		"subject", n.Subject,
	)
	return nil
}
