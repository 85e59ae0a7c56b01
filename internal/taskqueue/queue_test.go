package taskqueue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/prisvakt/compliance-service/internal/database"
)

func setupQueue(ctx context.Context, t *testing.T) *TaskQueue {
	t.Helper()

	container, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { container.Terminate(context.Background()) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := database.NewPool(ctx, database.PoolConfig{URL: connStr, MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, database.Migrate(ctx, pool))
	return New(pool)
}

func TestTaskQueueIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	q := setupQueue(ctx, t)

	t.Run("schedule dedupes pending tasks", func(t *testing.T) {
		input := ScheduleTaskInput{
			TaskType: TaskTypeScanShop,
			Payload:  ScanShopPayload{Shop: "demo.myshop.no"},
			Dedupe:   true,
		}
		first := q.ScheduleTask(ctx, input)
		require.NoError(t, first.Err)
		assert.NotEmpty(t, first.ID)

		second := q.ScheduleTask(ctx, input)
		require.NoError(t, second.Err)
		assert.True(t, second.Duplicate)

		input.Dedupe = false
		third := q.ScheduleTask(ctx, input)
		require.NoError(t, third.Err)
		assert.False(t, third.Duplicate)
	})

	t.Run("claim complete and fail", func(t *testing.T) {
		claimed := q.ClaimTasks(ctx, ClaimTasksInput{WorkerID: "w-0", TaskTypes: []string{TaskTypeScanShop}, MaxTasks: 10})
		require.NoError(t, claimed.Err)
		require.Len(t, claimed.Tasks, 2)

		// nothing left to claim
		again := q.ClaimTasks(ctx, ClaimTasksInput{WorkerID: "w-1", TaskTypes: []string{TaskTypeScanShop}, MaxTasks: 10})
		require.NoError(t, again.Err)
		assert.Empty(t, again.Tasks)

		done := claimed.Tasks[0]
		require.NoError(t, q.CompleteTask(ctx, done.ID, map[string]int{"variants": 3}))
		task, err := q.GetTask(ctx, done.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, task.Status)
		assert.JSONEq(t, `{"shop":"demo.myshop.no"}`, string(task.Payload))
		assert.JSONEq(t, `{"variants":3}`, string(task.Result))

		retried := claimed.Tasks[1]
		require.NoError(t, q.FailTask(ctx, retried.ID, "timeout", true))
		task, err = q.GetTask(ctx, retried.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusPending, task.Status)
		assert.Equal(t, 1, task.RetryCount)
		assert.True(t, task.ScheduledFor.After(time.Now().Add(10*time.Second)))

		require.NoError(t, q.FailTask(ctx, retried.ID, "bad payload", false))
		task, err = q.GetTask(ctx, retried.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, task.Status)
		require.NotNil(t, task.ErrorMessage)
		assert.Equal(t, "bad payload", *task.ErrorMessage)
	})

	t.Run("recover orphaned tasks", func(t *testing.T) {
		scheduled := q.ScheduleTask(ctx, ScheduleTaskInput{TaskType: TaskTypeCleanup, Payload: CleanupPayload{}})
		require.NoError(t, scheduled.Err)
		claimed := q.ClaimTasks(ctx, ClaimTasksInput{WorkerID: "w-0", TaskTypes: []string{TaskTypeCleanup}, MaxTasks: 1})
		require.NoError(t, claimed.Err)
		require.Len(t, claimed.Tasks, 1)

		recovered, failed, err := q.RecoverOrphanedTasks(ctx, time.Hour)
		require.NoError(t, err)
		assert.Zero(t, recovered+failed)

		_, err = q.pool.Exec(ctx, `UPDATE task_queue SET started_at = NOW() - INTERVAL '2 hours' WHERE id = $1`, scheduled.ID)
		require.NoError(t, err)

		recovered, failed, err = q.RecoverOrphanedTasks(ctx, time.Hour)
		require.NoError(t, err)
		assert.Equal(t, 1, recovered)
		assert.Equal(t, 0, failed)
	})

	t.Run("cancel and cleanup", func(t *testing.T) {
		scheduled := q.ScheduleTask(ctx, ScheduleTaskInput{
			TaskType: TaskTypeRecheckVariant,
			Payload:  RecheckVariantPayload{Shop: "demo.myshop.no", ProductID: "1", VariantID: "11"},
		})
		require.NoError(t, scheduled.Err)
		require.NoError(t, q.CancelTask(ctx, scheduled.ID))
		assert.ErrorIs(t, q.CancelTask(ctx, scheduled.ID), ErrTaskNotFound)

		_, err := q.pool.Exec(ctx, `UPDATE task_queue SET updated_at = NOW() - INTERVAL '30 days' WHERE status <> 'pending'`)
		require.NoError(t, err)

		removed, err := q.CleanupOldTasks(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, 3, removed)

		_, err = q.GetTask(ctx, scheduled.ID)
		assert.ErrorIs(t, err, ErrTaskNotFound)
		_, err = q.GetTask(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})
}
