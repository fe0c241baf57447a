// Package scheduler wires up the cron job that periodically prunes stored
// suggestions for listings that are no longer active.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/tom2tomtomtom/refer-ify-sub000/internal/suggestion"
)

// Scheduler wraps robfig/cron and manages the prune sweep.
type Scheduler struct {
	cron        *cron.Cron
	suggestions *suggestion.Store
	logger      *slog.Logger
	spec        string // cron spec, e.g. "@daily"
}

// New creates a Scheduler firing on the given cron spec.
func New(suggestions *suggestion.Store, logger *slog.Logger, spec string) *Scheduler {
	return &Scheduler{
		cron:        cron.New(cron.WithLogger(cron.DefaultLogger)),
		suggestions: suggestions,
		logger:      logger,
		spec:        spec,
	}
}

// Start registers the job and starts the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.runPrune(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	s.logger.Info("prune scheduler started", "spec", s.spec)
	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info("prune scheduler stopped")
}

func (s *Scheduler) runPrune(ctx context.Context) {
	if err := s.suggestions.PruneInactive(ctx); err != nil {
		s.logger.Error("suggestion prune sweep failed", "err", err)
	}
}
