package budget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/finwiz/internal/service"
	"golang.org/x/sync/errgroup"
)

// Scheduler runs the engine for every user on a fixed interval.
type Scheduler struct {
	engine      *Engine
	users       service.UserRepository
	logger      *slog.Logger
	interval    time.Duration
	concurrency int
}

// NewScheduler creates a scheduler. Concurrency below one runs users one at a time.
func NewScheduler(engine *Engine, users service.UserRepository, interval time.Duration, concurrency int) *Scheduler {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Scheduler{
		engine:      engine,
		users:       users,
		interval:    interval,
		concurrency: concurrency,
		logger:      slog.Default().With("component", "scheduler"),
	}
}

// RunOnce projects every user. A failing user does not stop the others;
// all failures are returned together.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	ids, err := s.users.ListUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	var (
		mu   sync.Mutex
		errs []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if _, err := s.engine.Project(gctx, id, false); err != nil {
				s.logger.Error("Projection failed", "user_id", id, "error", err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("user %d: %w", id, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("Projection round complete", "users", len(ids), "failed", len(errs))
	return errors.Join(errs...)
}

// Run projects every user immediately and then on each tick until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("scheduler interval must be positive, got %s", s.interval)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("Projection round had failures", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
