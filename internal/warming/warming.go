// Package warming periodically resolves tracked queries through the normal
// resolver path so popular locations are refreshed before users ask. It never
// bypasses the TTL decision and never evicts anything.
package warming

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/kjstillabower/location-gateway/internal/models"
	"github.com/kjstillabower/location-gateway/internal/observability"
)

// Resolver is implemented by service.Gateway.
type Resolver interface {
	Location(ctx context.Context, query string) (models.Location, error)
	Records(ctx context.Context, category models.Category, loc models.Location) (any, error)
	Categories() []models.Category
}

// Warmer resolves a list of queries and every category for each.
type Warmer struct {
	resolver Resolver
	logger   *zap.Logger
}

func NewWarmer(resolver Resolver, logger *zap.Logger) *Warmer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Warmer{resolver: resolver, logger: logger}
}

// Warm resolves each query concurrently. Returns the joined errors of every
// failed query or category.
func (w *Warmer) Warm(ctx context.Context, queries []string) error {
	start := time.Now()
	observability.WarmingRunsTotal.Inc()
	w.logger.Info("warming locations", zap.Int("queries", len(queries)))
	ctx = observability.ContextWithLogger(ctx, w.logger)

	var wg sync.WaitGroup
	errCh := make(chan error, len(queries))
	for _, q := range queries {
		q := q
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.warmOne(ctx, q); err != nil {
				errCh <- err
			}
		}()
	}
	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	duration := time.Since(start).Seconds()
	observability.WarmingDurationSeconds.Observe(duration)
	w.logger.Info("warming complete", zap.Int("queries", len(queries)), zap.Int("errors", len(errs)), zap.Float64("duration_seconds", duration))
	if len(errs) > 0 {
		observability.WarmingErrorsTotal.Inc()
		return fmt.Errorf("warming: %w", errors.Join(errs...))
	}
	return nil
}

func (w *Warmer) warmOne(ctx context.Context, query string) error {
	loc, err := w.resolver.Location(ctx, query)
	if err != nil {
		return fmt.Errorf("warm %s: %w", query, err)
	}
	var errs []error
	for _, c := range w.resolver.Categories() {
		if _, err := w.resolver.Records(ctx, c, loc); err != nil {
			errs = append(errs, fmt.Errorf("warm %s %s: %w", query, c, err))
		}
	}
	return errors.Join(errs...)
}

// Scheduler runs a Warmer on a fixed interval.
type Scheduler struct {
	scheduler *gocron.Scheduler
	warmer    *Warmer
	queries   []string
	interval  time.Duration
	timeout   time.Duration
}

// NewScheduler returns a scheduler that warms queries every interval, giving
// each run at most timeout.
func NewScheduler(warmer *Warmer, queries []string, interval, timeout time.Duration) *Scheduler {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		warmer:    warmer,
		queries:   queries,
		interval:  interval,
		timeout:   timeout,
	}
}

// Start schedules the job (first run immediately) and starts the scheduler.
// It is a no-op when there is nothing to warm or the interval is not positive.
func (s *Scheduler) Start() error {
	if len(s.queries) == 0 || s.interval <= 0 {
		s.warmer.logger.Info("warming disabled", zap.Int("queries", len(s.queries)), zap.Duration("interval", s.interval))
		return nil
	}
	_, err := s.scheduler.Every(s.interval).SingletonMode().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.warmer.Warm(ctx, s.queries); err != nil {
			s.warmer.logger.Warn("periodic warming failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule warming: %w", err)
	}
	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future runs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
