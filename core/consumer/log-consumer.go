package consumer

import (
	"go.uber.org/zap"

	"github.com/richd0tcom/sensordocs/internal/domain"
)

// LogConsumer reports each processed batch to a logger.
type LogConsumer struct {
	name   string
	logger *zap.Logger
}

func NewLogConsumer(name string, logger *zap.Logger) *LogConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogConsumer{name: name, logger: logger.Named(name)}
}

func (l *LogConsumer) Process(report domain.BatchReport) error {
	failed := report.Failed()
	l.logger.Info("batch processed",
		zap.Int("received", report.Received),
		zap.Int("dropped", report.Dropped),
		zap.Int("documents", len(report.Documents)),
		zap.Int("failed", len(failed)))

	for _, d := range report.Documents {
		if d.Err != nil {
			l.logger.Warn("document not written",
				zap.Stringer("key", d.ID),
				zap.Int("attempts", d.Attempts),
				zap.Error(d.Err))
			continue
		}
		l.logger.Debug("document written",
			zap.Stringer("key", d.ID),
			zap.String("mode", string(d.Mode)),
			zap.Int64("version", d.Version),
			zap.Int("attempts", d.Attempts))
	}
	return nil
}
