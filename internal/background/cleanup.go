package background

import (
	"context"
	"log/slog"
	"time"
)

// SessionSweeper hard-deletes sessions that expired before the retention cutoff.
type SessionSweeper interface {
	CleanupExpired(ctx context.Context, retention time.Duration) (int64, error)
}

// CleanupManager periodically sweeps expired sessions out of the database.
// Revocation and expiry are logical; this sweep is the only physical delete,
// so the audit-relevant history stays queryable for the retention window.
type CleanupManager struct {
	sessions  SessionSweeper
	logger    *slog.Logger
	interval  time.Duration
	retention time.Duration
	stopCh    chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	sessions SessionSweeper,
	logger *slog.Logger,
	interval time.Duration,
	retention time.Duration,
) *CleanupManager {
	return &CleanupManager{
		sessions:  sessions,
		logger:    logger,
		interval:  interval,
		retention: retention,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runSweep(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runSweep(ctx)
		case <-cm.stopCh:
			cm.logger.Info("session cleanup stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("session cleanup context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runSweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	deleted, err := cm.sessions.CleanupExpired(sweepCtx, cm.retention)
	if err != nil {
		cm.logger.Error("session sweep failed", slog.Any("error", err))
		return
	}

	if deleted > 0 {
		cm.logger.Info("session sweep completed", slog.Int64("rows_deleted", deleted))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
