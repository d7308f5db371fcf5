package prediction

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// startMaintenance launches a background goroutine that periodically
// deletes forecasts generated longer ago than the retention window.
// A zero interval or retention disables pruning.
func (m *Module) startMaintenance() {
	if m.cfg.MaintenanceInterval <= 0 || m.cfg.Retention <= 0 {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.cfg.MaintenanceInterval)
		defer ticker.Stop()

		for {
			select {
			case <-m.ctx.Done():
				return
			case <-ticker.C:
				m.runMaintenance(m.ctx)
			}
		}
	}()
}

// runMaintenance executes a single maintenance cycle and returns the
// number of pruned forecasts.
func (m *Module) runMaintenance(parent context.Context) int64 {
	if m.store == nil || m.cfg.Retention <= 0 {
		return 0
	}
	ctx, cancel := context.WithTimeout(parent, 30*time.Second)
	defer cancel()

	cutoff := m.now().UTC().Add(-m.cfg.Retention)
	deleted, err := m.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		m.logger.Warn("failed to prune old forecasts", zap.Error(err))
		return 0
	}
	if deleted > 0 {
		m.logger.Info("pruned old forecasts",
			zap.Int64("count", deleted),
			zap.Time("cutoff", cutoff),
		)
		m.publish(ctx, TopicForecastsPruned, deleted)
	}
	return deleted
}
