package downloader

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const logProgressInterval = 2 * time.Second

// logSink reports progress as structured log lines, at most one progress line
// per task every logProgressInterval.
type logSink struct {
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	lastLog map[string]time.Time
	started map[string]time.Time
}

func newLogSink(logger *zap.Logger) *logSink {
	return &logSink{
		logger:  logger,
		now:     time.Now,
		lastLog: make(map[string]time.Time),
		started: make(map[string]time.Time),
	}
}

func (s *logSink) Handle(e Event) {
	now := s.now()
	fields := []zap.Field{
		zap.String("task", e.Task),
		zap.String("downloaded", humanBytes(e.Downloaded)),
	}
	if e.Expected > 0 {
		fields = append(fields, zap.String("expected", humanBytes(e.Expected)))
	}

	switch e.Kind {
	case EventStart:
		s.mu.Lock()
		s.started[e.Task] = now
		s.lastLog[e.Task] = now
		s.mu.Unlock()
		s.logger.Info("Download started", fields...)
	case EventProgress:
		s.mu.Lock()
		due := now.Sub(s.lastLog[e.Task]) >= logProgressInterval
		if due {
			s.lastLog[e.Task] = now
		}
		started := s.started[e.Task]
		s.mu.Unlock()
		if !due {
			return
		}
		if pct, ok := e.Percent(); ok {
			fields = append(fields, zap.String("percent", formatPercent(pct)))
		}
		fields = append(fields, zap.String("rate", formatRate(e.Downloaded, now.Sub(started))))
		s.logger.Info("Downloading", fields...)
	case EventDone:
		s.mu.Lock()
		started := s.started[e.Task]
		s.mu.Unlock()
		fields = append(fields, zap.String("elapsed", formatDurationShort(now.Sub(started))))
		s.logger.Info("Download finished", fields...)
	case EventFailed:
		s.logger.Warn("Download stopped", append(fields, zap.Error(e.Err))...)
	}
}
