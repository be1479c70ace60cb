package mail

import (
	"context"
	"log/slog"
)

// LogSender writes messages to the log instead of delivering them. Meant for local development.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger.With("component", "mail_log")}
}

// Send logs the message envelope and its text body.
func (s *LogSender) Send(ctx context.Context, msg *Message) error {
	to := Recipients(msg.To...)
	if len(to) == 0 {
		return ErrNoRecipients
	}
	s.logger.InfoContext(ctx, "mail not delivered (log driver)",
		"to", to,
		"subject", msg.Subject,
		"text", msg.Text,
		"html_bytes", len(msg.HTML),
	)
	return nil
}
