// Package retention drops terminal upload records on a cron schedule so a
// long-running daemon does not accumulate them without bound.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"hubsync/pkg/config"
	"hubsync/pkg/logger"
	"hubsync/pkg/session"
)

// DefaultPeriod is how long finished upload records are kept when the
// config does not say otherwise.
const DefaultPeriod = 24 * time.Hour

// defaultCron runs the sweep daily at 02:00.
const defaultCron = "0 2 * * *"

// Start starts the sweep scheduler if enabled. Returns a cancel func.
func Start(ctx context.Context, cfg *config.Config, store *session.Store) (context.CancelFunc, error) {
	if !cfg.Retention.Enabled {
		logger.Info("retention_disabled")
		return func() {}, nil
	}

	period, err := ResolvePeriod(cfg.Retention.Period)
	if err != nil {
		logger.Error("retention_invalid_period", "period", cfg.Retention.Period, "error", err)
		return nil, err
	}

	cronExpr := cfg.Retention.Cron
	if cronExpr == "" {
		cronExpr = defaultCron
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("retention_invalid_cron", "cron", cfg.Retention.Cron)
		return nil, fmt.Errorf("invalid retention cron expression: %s", cfg.Retention.Cron)
	}

	logger.Info("retention_enabled", "cron", cronExpr, "period", period)
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, store, cronExpr, period)
	return cancel, nil
}

// ResolvePeriod parses the configured keep duration, e.g. "24h" or "90m".
func ResolvePeriod(s string) (time.Duration, error) {
	if s == "" {
		return DefaultPeriod, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid retention period %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("retention period must be positive, got %q", s)
	}
	return d, nil
}

// runScheduler computes the next cron tick with gronx and sleeps until it.
// Full cron syntax is supported; a tick that lands in the past runs at once.
func runScheduler(ctx context.Context, store *session.Store, cronExpr string, period time.Duration) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("retention_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		wait := time.Until(next)
		if wait <= 0 {
			runOnce(store, period)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(wait):
			runOnce(store, period)
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		}
	}
}

func runOnce(store *session.Store, period time.Duration) {
	removed := store.SweepUploads(period)
	logger.Info("retention_sweep_done", "removed", removed, "period", period)
}
