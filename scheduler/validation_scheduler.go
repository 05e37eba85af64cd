// Package scheduler
package scheduler

import (
	"context"
	"io"
	"log"
	"os"
	"time"

	businessflow "github.com/credfix/commission-engine/business_flow"
	"github.com/credfix/commission-engine/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ValidationScheduler periodically runs the commission validator's backfill so
// gaps left by the live path never linger longer than one interval.
type ValidationScheduler struct {
	validator businessflow.ValidatorFlow
	logger    *log.Logger
	interval  time.Duration
}

func NewValidationScheduler(validator businessflow.ValidatorFlow, cfg config.SchedulerConfig, logCfg config.LoggingConfig) *ValidationScheduler {
	interval := cfg.ValidationInterval
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	s := &ValidationScheduler{
		validator: validator,
		interval:  interval,
	}
	s.initLogger(cfg.LogPath, logCfg)

	return s
}

// initLogger configures a logger that writes to stdout and a rotated file
func (s *ValidationScheduler) initLogger(logPath string, logCfg config.LoggingConfig) {
	if logPath == "" {
		s.logger = log.New(os.Stdout, "validator ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
		return
	}

	rotated := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    logCfg.MaxSize,
		MaxBackups: logCfg.MaxBackups,
		MaxAge:     logCfg.MaxAge,
		Compress:   logCfg.Compress,
	}
	mw := io.MultiWriter(os.Stdout, rotated)
	s.logger = log.New(mw, "validator ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
}

// Start launches the scheduler loop in a background goroutine and returns a stop function
func (s *ValidationScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				s.logger.Printf("validation scheduler stopped")
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	return cancel
}

// runOnce executes one backfill pass. A run already holding the lock is
// normal when multiple instances share the schedule.
func (s *ValidationScheduler) runOnce(ctx context.Context) {
	start := time.Now()
	stats, err := s.validator.Backfill(ctx)
	if err != nil {
		if businessflow.IsValidationLocked(err) {
			s.logger.Printf("backfill skipped: another run holds the lock")
			return
		}
		s.logger.Printf("backfill error: %v", err)
		return
	}

	s.logger.Printf("backfill completed in %s: events=%d created=%d duplicates=%d ineligible=%d failures=%d",
		time.Since(start).Round(time.Millisecond),
		stats.EventsProcessed, stats.EntriesCreated, stats.Duplicates, stats.Ineligible, stats.Failures)
}
