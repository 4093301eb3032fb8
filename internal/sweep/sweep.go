// Package sweep runs scheduled maintenance: evicting dead connection
// entries and pruning old read notifications.
package sweep

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/adhocore/gronx"

	"chatrelay/pkg/config"
	"chatrelay/pkg/logger"
	"chatrelay/pkg/registry"
	"chatrelay/pkg/state"
	"chatrelay/pkg/store"
)

const defaultCron = "*/10 * * * *"

// Start launches the sweep scheduler if enabled and returns a cancel
// func. A disabled sweep returns a no-op cancel.
func Start(ctx context.Context, cfg config.SweepConfig, reg registry.Registry) (context.CancelFunc, error) {
	if !cfg.Enabled {
		logger.Info("sweep_disabled")
		return func() {}, nil
	}

	sweepPath := state.PathsVar.Sweep
	if sweepPath != "" {
		if err := os.MkdirAll(sweepPath, 0o700); err != nil {
			logger.Error("sweep_path_create_failed", "path", sweepPath, "error", err)
			return nil, err
		}
	}

	cronExpr := cfg.Cron
	if cronExpr == "" {
		cronExpr = defaultCron
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("sweep_invalid_cron", "cron", cfg.Cron)
		return nil, fmt.Errorf("invalid sweep cron expression: %s", cfg.Cron)
	}

	logger.Info("sweep_enabled", "cron", cronExpr, "notification_age", cfg.NotificationAge.Duration().String())
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cfg, reg, cronExpr)
	return cancel, nil
}

// runScheduler computes the next cron tick with gronx and sleeps until
// it, firing one sweep per tick.
func runScheduler(ctx context.Context, cfg config.SweepConfig, reg registry.Registry, cronExpr string) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("sweep_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("sweep_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		wait := time.Until(next)
		if wait <= 0 {
			RunOnce(cfg, reg)
			// small sleep to avoid a tight loop on clock skew
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(wait):
			RunOnce(cfg, reg)
		case <-ctx.Done():
			logger.Info("sweep_scheduler_stopping")
			return
		}
	}
}

// RunOnce executes one sweep pass. Enumerating the registry evicts
// entries whose transport has died without a clean disconnect; the
// notification prune drops read notifications past the configured age.
func RunOnce(cfg config.SweepConfig, reg registry.Registry) {
	start := time.Now()
	live := len(reg.List())

	purged := 0
	if age := cfg.NotificationAge.Duration(); age > 0 {
		cutoff := time.Now().UTC().Add(-age).UnixNano()
		n, err := store.PurgeReadNotificationsBefore(cutoff)
		if err != nil {
			logger.Error("sweep_notification_purge_failed", "error", err)
		} else {
			purged = n
		}
	}

	logger.Info("sweep_run_complete",
		"live_connections", live,
		"notifications_purged", purged,
		"elapsed", time.Since(start).String())
}
