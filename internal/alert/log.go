package alert

import (
	"context"

	"go.uber.org/zap"

	"github.com/proletto/opportunity-engine/internal/scraper"
)

// LogSink writes alerts to the process log. It is the default sink for
// deployments without Slack credentials.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink builds a LogSink.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Alert logs the message at a level matching the alert severity.
func (s *LogSink) Alert(_ context.Context, message string, level scraper.AlertLevel) error {
	switch level {
	case scraper.AlertError:
		s.logger.Error(message)
	case scraper.AlertWarning:
		s.logger.Warn(message)
	default:
		s.logger.Info(message)
	}
	return nil
}
