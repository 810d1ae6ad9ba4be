package mail

import (
	"context"
	"log/slog"
)

// LogNotifier writes messages to a structured logger instead of sending
// them. Useful in development, where the token links end up in the log.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier backed by logger, or slog.Default()
// when logger is nil.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, to, subject, body string) error {
	n.logger.InfoContext(ctx, "mail",
		slog.String("to", to),
		slog.String("subject", subject),
		slog.String("body", body),
	)
	return nil
}
