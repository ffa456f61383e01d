// Package sweeper periodically deletes user tokens that have outlived
// their context's validity window. Expired tokens are already invisible
// to every query; the sweeper just keeps the table from growing forever.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aidarbek/user-accounts/internal/metrics"
	"github.com/robfig/cron/v3"
)

// tokenPurger is the subset of TokenRepository the sweeper needs.
type tokenPurger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

type Sweeper struct {
	tokens   tokenPurger
	logger   *slog.Logger
	schedule string
	cron     *cron.Cron
}

func New(tokens tokenPurger, logger *slog.Logger, schedule string) *Sweeper {
	return &Sweeper{
		tokens:   tokens,
		logger:   logger.With("component", "sweeper"),
		schedule: schedule,
		cron:     cron.New(),
	}
}

// Start registers the sweep on the cron schedule and begins running it.
func (s *Sweeper) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.schedule, func() { s.Sweep(ctx) }); err != nil {
		return fmt.Errorf("register sweep schedule: %w", err)
	}
	s.cron.Start()
	s.logger.Info("sweeper started", "schedule", s.schedule)
	return nil
}

// Stop halts the schedule and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("sweeper stopped")
}

// Sweep runs one purge cycle.
func (s *Sweeper) Sweep(ctx context.Context) {
	start := time.Now()

	purged, err := s.tokens.DeleteExpired(ctx)
	if err != nil {
		s.logger.Error("sweep expired tokens", "error", err)
		return
	}

	metrics.TokensPurgedTotal.Add(float64(purged))
	metrics.SweepDuration.Observe(time.Since(start).Seconds())

	if purged > 0 {
		s.logger.Info("swept expired tokens", "purged", purged)
	}
}
