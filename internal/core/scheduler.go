package core

import (
	"context"
	"log/slog"
	"time"
)

// StartSessionSweeper removes idle sessions every interval until ctx is
// cancelled. Run it in its own goroutine.
func (s *Service) StartSessionSweeper(ctx context.Context, interval time.Duration) {
	slog.Info("session sweeper started", "interval", interval, "idle_timeout", s.sessions.idle)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session sweeper stopped")
			return
		case <-ticker.C:
			s.sweepSessions()
		}
	}
}

func (s *Service) sweepSessions() {
	start := time.Now()
	removed := s.sessions.Sweep()
	if removed == 0 {
		return
	}
	slog.Info("expired sessions removed",
		"removed", removed,
		"remaining", s.sessions.Len(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
