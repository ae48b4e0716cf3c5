package orchestration

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// DefaultPauseCheckTimeout bounds the wait for a pause signal at each checkpoint.
const DefaultPauseCheckTimeout = time.Second

// PausePoint is the cooperative checkpoint a preemptible orchestration calls
// between units of work.
type PausePoint struct {
	PauseEvent  string
	ResumeEvent string
	Timeout     time.Duration
}

// Check waits briefly for a pause signal. If none arrives it returns false.
// Otherwise it suspends until a resume signal stamped no earlier than the
// pause arrives, discarding older resume signals, and returns true.
func (p PausePoint) Check(ctx context.Context, w EventWaiter, logger *slog.Logger) (bool, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultPauseCheckTimeout
	}

	var pausedAt time.Time
	err := w.WaitForExternalEvent(ctx, p.PauseEvent, timeout, &pausedAt)
	if errors.Is(err, ErrEventTimeout) {
		logger.Debug("no pause signal")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	logger.Info("paused", "paused_at", pausedAt)

	for {
		var resumedAt time.Time
		if err := w.WaitForExternalEvent(ctx, p.ResumeEvent, 0, &resumedAt); err != nil {
			return true, err
		}
		if resumedAt.Before(pausedAt) {
			logger.Warn("discarding stale resume signal", "paused_at", pausedAt, "resumed_at", resumedAt)
			continue
		}
		logger.Info("resuming", "resumed_at", resumedAt)
		return true, nil
	}
}
