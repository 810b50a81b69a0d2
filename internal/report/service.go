package report

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/alainabartfeld/strava-activities/internal/domain"
	"github.com/alainabartfeld/strava-activities/internal/snapshot"
)

// LatestResolver finds the newest snapshot.
type LatestResolver interface {
	Latest(ctx context.Context) (snapshot.Entry, bool, error)
}

// Service serves reports from the latest snapshot, reloading the engine whenever a newer
// snapshot shows up in the catalog.
type Service struct {
	resolver LatestResolver
	opts     options

	mu     sync.RWMutex
	engine *Engine
}

// NewService constructs a Service.
func NewService(resolver LatestResolver, opts ...Option) *Service {
	return &Service{resolver: resolver, opts: buildOptions(opts)}
}

// Latest returns the snapshot the next query will run against.
func (s *Service) Latest(ctx context.Context) (snapshot.Entry, error) {
	var entry snapshot.Entry
	err := s.withEngine(ctx, func(e *Engine) error {
		entry = e.Snapshot()
		return nil
	})
	return entry, err
}

// Run executes one report against the latest snapshot.
func (s *Service) Run(ctx context.Context, name string, year int) (Result, error) {
	var res Result
	err := s.withEngine(ctx, func(e *Engine) error {
		var err error
		res, err = e.Run(ctx, name, year)
		return err
	})
	return res, err
}

// RunAll executes the whole battery against the latest snapshot.
func (s *Service) RunAll(ctx context.Context, year int) ([]Result, error) {
	var results []Result
	err := s.withEngine(ctx, func(e *Engine) error {
		var err error
		results, err = e.RunAll(ctx, year)
		return err
	})
	return results, err
}

// ListActivities pages through the latest snapshot's activities.
func (s *Service) ListActivities(ctx context.Context, filter ActivityFilter) ([]domain.ActivitySummary, *domain.Cursor, error) {
	var (
		items []domain.ActivitySummary
		next  *domain.Cursor
	)
	err := s.withEngine(ctx, func(e *Engine) error {
		var err error
		items, next, err = e.ListActivities(ctx, filter)
		return err
	})
	return items, next, err
}

// Close releases the loaded engine.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		return nil
	}
	err := s.engine.Close()
	s.engine = nil
	return err
}

func (s *Service) withEngine(ctx context.Context, fn func(*Engine) error) error {
	if err := s.refresh(ctx); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.engine == nil {
		return snapshot.ErrNoSnapshot
	}
	return fn(s.engine)
}

// refresh rescans the catalog and swaps in a new engine when the latest snapshot changed.
func (s *Service) refresh(ctx context.Context) error {
	entry, ok, err := s.resolver.Latest(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return snapshot.ErrNoSnapshot
	}

	s.mu.RLock()
	current := s.engine != nil && s.engine.Snapshot().Path == entry.Path
	s.mu.RUnlock()
	if current {
		return nil
	}

	engine, err := Open(ctx, entry, WithLogger(s.opts.logger))
	if err != nil {
		return err
	}

	s.mu.Lock()
	old := s.engine
	s.engine = engine
	s.mu.Unlock()

	if old != nil {
		s.opts.logger.Info("query engine reloaded",
			zap.String("previous", old.Snapshot().Path),
			zap.String("current", entry.Path),
		)
		_ = old.Close()
	}
	return nil
}
