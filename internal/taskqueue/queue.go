// Package taskqueue is a Postgres-backed work queue. Tasks are claimed with
// FOR UPDATE SKIP LOCKED so any number of replicas can poll the same table.
package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrTaskNotFound is returned when a task id does not exist
var ErrTaskNotFound = errors.New("task not found")

type TaskQueue struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *TaskQueue {
	return &TaskQueue{pool: pool}
}

type ScheduleTaskInput struct {
	TaskType    string
	Payload     interface{}
	Priority    int
	ScheduledAt *time.Time
	MaxRetries  int
	// Dedupe skips the insert when an identical task is already pending or
	// processing.
	Dedupe bool
}

type ScheduleTaskResult struct {
	ID        string
	Duplicate bool
	Err       error
}

func (q *TaskQueue) ScheduleTask(ctx context.Context, input ScheduleTaskInput) ScheduleTaskResult {
	payload, err := json.Marshal(input.Payload)
	if err != nil {
		return ScheduleTaskResult{Err: err}
	}

	maxRetries := 3
	if input.MaxRetries > 0 {
		maxRetries = input.MaxRetries
	}

	scheduledFor := time.Now().UTC()
	if input.ScheduledAt != nil {
		scheduledFor = *input.ScheduledAt
	}

	id := uuid.NewString()
	tag, err := q.pool.Exec(ctx, `
		INSERT INTO task_queue (id, task_type, payload, priority, scheduled_for, max_retries)
		SELECT $1::uuid, $2::text, $3::jsonb, $4::integer, $5::timestamptz, $6::integer
		WHERE NOT $7::boolean OR NOT EXISTS (
			SELECT 1 FROM task_queue
			WHERE task_type = $2
			  AND payload = $3::jsonb
			  AND status IN ('pending', 'processing')
		)
	`, id, input.TaskType, string(payload), input.Priority, scheduledFor, maxRetries, input.Dedupe)
	if err != nil {
		return ScheduleTaskResult{Err: err}
	}
	if tag.RowsAffected() == 0 {
		return ScheduleTaskResult{Duplicate: true}
	}

	return ScheduleTaskResult{ID: id}
}

type ClaimTasksInput struct {
	WorkerID  string
	TaskTypes []string
	MaxTasks  int
}

type ClaimTasksResult struct {
	Tasks []ClaimedTask
	Err   error
}

// ClaimTasks moves up to MaxTasks due tasks to processing and returns them
func (q *TaskQueue) ClaimTasks(ctx context.Context, input ClaimTasksInput) ClaimTasksResult {
	maxTasks := input.MaxTasks
	if maxTasks <= 0 {
		maxTasks = 1
	}

	rows, err := q.pool.Query(ctx, `
		UPDATE task_queue t
		SET status = 'processing', worker_id = $1, started_at = NOW(), updated_at = NOW()
		WHERE t.id IN (
			SELECT id FROM task_queue
			WHERE status = 'pending'
			  AND scheduled_for <= NOW()
			  AND task_type = ANY($2)
			ORDER BY priority DESC, scheduled_for
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING t.id::text, t.task_type, t.payload, t.retry_count
	`, input.WorkerID, input.TaskTypes, maxTasks)
	if err != nil {
		return ClaimTasksResult{Err: err}
	}
	defer rows.Close()

	tasks := make([]ClaimedTask, 0)
	for rows.Next() {
		var task ClaimedTask
		var payload []byte
		if err := rows.Scan(&task.ID, &task.TaskType, &payload, &task.RetryCount); err != nil {
			return ClaimTasksResult{Err: err}
		}
		task.Payload = payload
		tasks = append(tasks, task)
	}

	return ClaimTasksResult{Tasks: tasks, Err: rows.Err()}
}

func (q *TaskQueue) CompleteTask(ctx context.Context, taskID string, result interface{}) error {
	var resultJSON *string
	if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			return err
		}
		s := string(data)
		resultJSON = &s
	}

	_, err := q.pool.Exec(ctx, `
		UPDATE task_queue
		SET status = 'completed', completed_at = NOW(), result = $2::jsonb,
		    error_message = NULL, updated_at = NOW()
		WHERE id = $1
	`, taskID, resultJSON)
	return err
}

// FailTask records a failure. A retryable failure with retries left goes back
// to pending with a quadratic delay; anything else is final.
func (q *TaskQueue) FailTask(ctx context.Context, taskID, errorMessage string, shouldRetry bool) error {
	_, err := q.pool.Exec(ctx, `
		UPDATE task_queue
		SET status = CASE WHEN $3::boolean AND retry_count < max_retries THEN 'pending' ELSE 'failed' END,
		    retry_count = CASE WHEN $3 AND retry_count < max_retries THEN retry_count + 1 ELSE retry_count END,
		    scheduled_for = CASE WHEN $3 AND retry_count < max_retries
		        THEN NOW() + make_interval(secs => 30 * (retry_count + 1) * (retry_count + 1))
		        ELSE scheduled_for END,
		    failed_at = CASE WHEN $3 AND retry_count < max_retries THEN failed_at ELSE NOW() END,
		    worker_id = NULL,
		    error_message = $2,
		    updated_at = NOW()
		WHERE id = $1
	`, taskID, errorMessage, shouldRetry)
	return err
}

// RecoverOrphanedTasks returns processing tasks whose worker went away
// (started more than staleAfter ago) to pending, or fails them when they
// have no retries left.
func (q *TaskQueue) RecoverOrphanedTasks(ctx context.Context, staleAfter time.Duration) (recovered, failed int, err error) {
	err = q.pool.QueryRow(ctx, `
		WITH stale AS (
			UPDATE task_queue
			SET status = CASE WHEN retry_count < max_retries THEN 'pending' ELSE 'failed' END,
			    retry_count = retry_count + 1,
			    failed_at = CASE WHEN retry_count < max_retries THEN failed_at ELSE NOW() END,
			    worker_id = NULL,
			    error_message = 'worker lost',
			    updated_at = NOW()
			WHERE status = 'processing' AND started_at < NOW() - make_interval(secs => $1)
			RETURNING status
		)
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'failed')
		FROM stale
	`, staleAfter.Seconds()).Scan(&recovered, &failed)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to recover orphaned tasks: %w", err)
	}
	return recovered, failed, nil
}

// CleanupOldTasks deletes finished tasks older than daysToKeep
func (q *TaskQueue) CleanupOldTasks(ctx context.Context, daysToKeep int) (int, error) {
	tag, err := q.pool.Exec(ctx, `
		DELETE FROM task_queue
		WHERE status IN ('completed', 'failed', 'cancelled')
		  AND updated_at < NOW() - make_interval(days => $1)
	`, daysToKeep)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (q *TaskQueue) CancelTask(ctx context.Context, taskID string) error {
	tag, err := q.pool.Exec(ctx, `
		UPDATE task_queue
		SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, taskID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (q *TaskQueue) GetTask(ctx context.Context, taskID string) (*Task, error) {
	if _, err := uuid.Parse(taskID); err != nil {
		return nil, ErrTaskNotFound
	}

	var task Task
	var payload, result []byte
	err := q.pool.QueryRow(ctx, `
		SELECT id::text, task_type, payload, priority, status,
		       scheduled_for, started_at, completed_at, failed_at,
		       worker_id, retry_count, max_retries, error_message, result,
		       created_at, updated_at
		FROM task_queue
		WHERE id = $1
	`, taskID).Scan(
		&task.ID, &task.TaskType, &payload, &task.Priority, &task.Status,
		&task.ScheduledFor, &task.StartedAt, &task.CompletedAt, &task.FailedAt,
		&task.WorkerID, &task.RetryCount, &task.MaxRetries, &task.ErrorMessage, &result,
		&task.CreatedAt, &task.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	task.Payload = payload
	task.Result = result
	return &task, nil
}
