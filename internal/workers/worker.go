// Package workers runs queued tasks. Each worker goroutine polls the task
// queue, claims due tasks and dispatches them to the registered handler.
package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/prisvakt/compliance-service/internal/taskqueue"
)

// Queue is the part of the task queue a worker uses
type Queue interface {
	ClaimTasks(ctx context.Context, input taskqueue.ClaimTasksInput) taskqueue.ClaimTasksResult
	CompleteTask(ctx context.Context, taskID string, result interface{}) error
	FailTask(ctx context.Context, taskID, errorMessage string, shouldRetry bool) error
}

// Handler runs one task. The returned value is stored as the task result.
type Handler func(ctx context.Context, payload []byte) (interface{}, error)

type WorkerConfig struct {
	WorkerID   string
	TaskTypes  []string
	MaxTasks   int
	NumWorkers int
	PollDelay  time.Duration
}

type Worker struct {
	queue    Queue
	config   WorkerConfig
	logger   zerolog.Logger
	handlers map[string]Handler
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func New(queue Queue, config WorkerConfig, logger *zerolog.Logger) *Worker {
	if config.NumWorkers <= 0 {
		config.NumWorkers = 1
	}
	if config.MaxTasks <= 0 {
		config.MaxTasks = 1
	}
	if config.PollDelay <= 0 {
		config.PollDelay = 5 * time.Second
	}
	if len(config.TaskTypes) == 0 {
		config.TaskTypes = taskqueue.TaskTypes
	}
	return &Worker{
		queue:    queue,
		config:   config,
		logger:   logger.With().Str("component", "worker").Str("worker_id", config.WorkerID).Logger(),
		handlers: make(map[string]Handler),
		stopChan: make(chan struct{}),
	}
}

func (w *Worker) RegisterHandler(taskType string, handler Handler) {
	w.handlers[taskType] = handler
}

func (w *Worker) Start(ctx context.Context) {
	w.logger.Info().
		Strs("task_types", w.config.TaskTypes).
		Int("goroutines", w.config.NumWorkers).
		Msg("Starting worker")

	for i := 0; i < w.config.NumWorkers; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}
}

// Stop signals every goroutine and waits for in-flight tasks to finish
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.logger.Info().Msg("Worker stopping, waiting for in-flight tasks")
	w.wg.Wait()
	w.logger.Info().Msg("Worker stopped")
}

func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()
	workerID := fmt.Sprintf("%s-%d", w.config.WorkerID, workerNum)

	ticker := time.NewTicker(w.config.PollDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.processTasks(ctx, workerID)
		}
	}
}

func (w *Worker) processTasks(ctx context.Context, workerID string) {
	claimResult := w.queue.ClaimTasks(ctx, taskqueue.ClaimTasksInput{
		WorkerID:  workerID,
		TaskTypes: w.config.TaskTypes,
		MaxTasks:  w.config.MaxTasks,
	})
	if claimResult.Err != nil {
		w.logger.Error().Err(claimResult.Err).Msg("Failed to claim tasks")
		return
	}

	for _, task := range claimResult.Tasks {
		w.processTask(ctx, workerID, task)
	}
}

func (w *Worker) processTask(ctx context.Context, workerID string, task taskqueue.ClaimedTask) {
	logger := w.logger.With().
		Str("goroutine", workerID).
		Str("task_id", task.ID).
		Str("task_type", task.TaskType).
		Logger()

	handler, exists := w.handlers[task.TaskType]
	if !exists {
		logger.Warn().Msg("No handler for task type")
		if err := w.queue.FailTask(ctx, task.ID, "no handler registered", false); err != nil {
			logger.Error().Err(err).Msg("Failed to mark task as failed")
		}
		return
	}

	start := time.Now()
	result, err := handler(ctx, task.Payload)
	if err != nil {
		retry := !IsPermanent(err)
		logger.Error().Err(err).Bool("retry", retry).Int("retry_count", task.RetryCount).Msg("Task failed")
		// the worker may be shutting down; record the failure regardless
		if ferr := w.queue.FailTask(context.WithoutCancel(ctx), task.ID, err.Error(), retry); ferr != nil {
			logger.Error().Err(ferr).Msg("Failed to mark task as failed")
		}
		return
	}

	if err := w.queue.CompleteTask(context.WithoutCancel(ctx), task.ID, result); err != nil {
		logger.Error().Err(err).Msg("Failed to mark task as completed")
		return
	}
	logger.Info().Dur("duration", time.Since(start)).Msg("Task completed")
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
