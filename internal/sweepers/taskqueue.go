// Package sweepers runs periodic background loops: orphaned task recovery
// and scan scheduling.
package sweepers

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Recoverer returns tasks abandoned by crashed workers to the queue
type Recoverer interface {
	RecoverOrphanedTasks(ctx context.Context, staleAfter time.Duration) (recovered, failed int, err error)
}

// TaskQueueSweeper requeues tasks stuck in processing longer than staleAfter.
// The first pass runs at start so tasks left behind by a crashed replica are
// picked up without waiting a full interval.
type TaskQueueSweeper struct {
	queue      Recoverer
	staleAfter time.Duration
	logger     *zerolog.Logger
	loop       *loop
}

// NewTaskQueueSweeper creates a sweeper running every interval
func NewTaskQueueSweeper(queue Recoverer, logger *zerolog.Logger, interval, staleAfter time.Duration) *TaskQueueSweeper {
	return &TaskQueueSweeper{
		queue:      queue,
		staleAfter: staleAfter,
		logger:     logger,
		loop:       newLoop("task_queue", interval, logger),
	}
}

// Start blocks until the context is cancelled or Stop is called
func (s *TaskQueueSweeper) Start(ctx context.Context) {
	s.logger.Info().
		Dur("interval", s.loop.interval).
		Dur("stale_after", s.staleAfter).
		Msg("Starting task queue sweeper")
	s.loop.run(ctx, s.RecoverOrphanedTasks)
}

// Stop is safe to call more than once
func (s *TaskQueueSweeper) Stop() {
	s.loop.stop()
}

// RecoverOrphanedTasks runs one recovery pass
func (s *TaskQueueSweeper) RecoverOrphanedTasks(ctx context.Context) error {
	recovered, failed, err := s.queue.RecoverOrphanedTasks(ctx, s.staleAfter)
	if err != nil {
		return fmt.Errorf("failed to recover orphaned tasks: %w", err)
	}
	if recovered+failed > 0 {
		s.logger.Info().
			Int("recovered", recovered).
			Int("failed", failed).
			Msg("Recovered orphaned tasks")
	}
	return nil
}
