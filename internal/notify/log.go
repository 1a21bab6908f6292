package notify

import (
	"context"

	"go.uber.org/zap"
)

// Compile-time interface guard.
var _ Transport = (*LogTransport)(nil)

// LogTransport writes messages to the log instead of sending them. It stands
// in for SMTP when no mail server is configured.
type LogTransport struct {
	logger *zap.Logger
}

// NewLogTransport creates a LogTransport.
func NewLogTransport(logger *zap.Logger) *LogTransport {
	return &LogTransport{logger: logger}
}

// Send logs msg at warn level so it stands out from poll chatter.
func (t *LogTransport) Send(_ context.Context, msg Message) error {
	t.logger.Warn("notification (mail disabled)",
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body),
	)
	return nil
}
