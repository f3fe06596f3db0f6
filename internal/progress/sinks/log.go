package sinks

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/quote-crawler/internal/progress"
)

// LogSink writes one structured log line per crawl event. Page and crawl
// errors are logged at warn level, everything else at debug.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wraps logger as a progress sink.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger.Named("crawl_events")}
}

// Consume logs each event in the batch.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		level := zapcore.DebugLevel
		switch evt.Stage {
		case progress.StagePageError, progress.StageCrawlError:
			level = zapcore.WarnLevel
		case progress.StageCrawlStart, progress.StageCrawlDone:
			level = zapcore.InfoLevel
		}
		fields := []zap.Field{
			zap.String("crawl_id", evt.CrawlUUID().String()),
			zap.String("stage", string(evt.Stage)),
			zap.String("work_id", evt.WorkID),
			zap.Time("ts", evt.TS),
		}
		if evt.Page > 0 {
			fields = append(fields, zap.Int("page", evt.Page))
		}
		if evt.Quotes > 0 {
			fields = append(fields, zap.Int("quotes", evt.Quotes))
		}
		if evt.Dur > 0 {
			fields = append(fields, zap.Duration("dur", evt.Dur))
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		if ce := s.logger.Check(level, "crawl event"); ce != nil {
			ce.Write(fields...)
		}
	}
	return nil
}

// Close is a no-op.
func (s *LogSink) Close(context.Context) error {
	return nil
}
