package mailer

import (
	"context"
	"log/slog"

	"github.com/popmap/popmap-api/internal/core"
)

// LogTransport writes messages to the application log instead of sending
// them. It is the development default.
type LogTransport struct {
	logger *slog.Logger
}

// NewLogTransport builds the log transport.
func NewLogTransport(logger *slog.Logger) *LogTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogTransport{logger: logger.With("component", "mail_log")}
}

// Send implements core.Mailer.
func (l *LogTransport) Send(ctx context.Context, msg *core.MailMessage) error {
	l.logger.InfoContext(ctx, "outbound email",
		"to", msg.To, "to_name", msg.ToName, "subject", msg.Subject,
		"body", msg.TextBody)
	return nil
}
