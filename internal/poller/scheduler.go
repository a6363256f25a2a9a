package poller

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PollExecutor is called by the scheduler for each storage due for a poll.
type PollExecutor func(ctx context.Context, storageID string)

// Scheduler polls configured storages on a periodic interval using a
// semaphore-bounded worker pool.
type Scheduler struct {
	sources  SourceLister
	executor PollExecutor
	interval time.Duration
	workers  int
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler that dispatches storages to the executor.
func NewScheduler(sources SourceLister, executor PollExecutor, interval time.Duration, workers int, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		sources:  sources,
		executor: executor,
		interval: interval,
		workers:  workers,
		logger:   logger,
	}
}

// Start begins the scheduling loop and returns immediately.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		// Run immediately on start, then on each tick.
		s.tick()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

// Stop signals the scheduler to stop and waits for in-flight polls.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Running reports whether the scheduler loop is active.
func (s *Scheduler) Running() bool {
	return s.ctx != nil && s.ctx.Err() == nil
}

// tick loads the configured storages and dispatches them to the pool.
func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(s.ctx, s.interval)
	defer cancel()

	ids, err := s.sources.ListStorageIDs(ctx)
	if err != nil {
		s.logger.Warn("scheduler: failed to list alert sources", zap.Error(err))
		return
	}
	if len(ids) == 0 {
		return
	}

	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup

dispatch:
	for _, id := range ids {
		select {
		case <-s.ctx.Done():
			break dispatch
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(storageID string) {
			defer wg.Done()
			defer func() { <-sem }()
			s.executor(ctx, storageID)
		}(id)
	}

	wg.Wait()
}
