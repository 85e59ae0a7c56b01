package sweepers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prisvakt/compliance-service/internal/database"
	"github.com/prisvakt/compliance-service/internal/taskqueue"
)

type fakeShops struct {
	scannedBefore time.Time
	shops         []database.Shop
}

func (f *fakeShops) ActiveShops(_ context.Context, scannedBefore time.Time) ([]database.Shop, error) {
	f.scannedBefore = scannedBefore
	return f.shops, nil
}

type fakeScheduler struct {
	inputs     []taskqueue.ScheduleTaskInput
	duplicates map[string]bool
}

func (f *fakeScheduler) ScheduleTask(_ context.Context, input taskqueue.ScheduleTaskInput) taskqueue.ScheduleTaskResult {
	f.inputs = append(f.inputs, input)
	if p, ok := input.Payload.(taskqueue.ScanShopPayload); ok && f.duplicates[p.Shop] {
		return taskqueue.ScheduleTaskResult{Duplicate: true}
	}
	return taskqueue.ScheduleTaskResult{ID: "id"}
}

func TestScanSchedulerPass(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	logger := zerolog.Nop()
	shops := &fakeShops{shops: []database.Shop{{Domain: "a.myshop.no"}, {Domain: "b.myshop.no"}}}
	queue := &fakeScheduler{duplicates: map[string]bool{"b.myshop.no": true}}

	s := NewScanScheduler(shops, queue, ScanSchedulerConfig{ScanInterval: 6 * time.Hour, CleanupInterval: 24 * time.Hour}, &logger)
	s.clock = func() time.Time { return now }

	scheduled, err := s.SchedulePass(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, scheduled)
	assert.Equal(t, now.Add(-6*time.Hour), shops.scannedBefore)
	require.Len(t, queue.inputs, 3)
	assert.Equal(t, taskqueue.TaskTypeScanShop, queue.inputs[0].TaskType)
	assert.True(t, queue.inputs[0].Dedupe)
	assert.Equal(t, taskqueue.TaskTypeCleanup, queue.inputs[2].TaskType)

	// cleanup is not due again within the interval
	now = now.Add(time.Hour)
	_, err = s.SchedulePass(context.Background())
	require.NoError(t, err)
	assert.Len(t, queue.inputs, 5)

	now = now.Add(24 * time.Hour)
	_, err = s.SchedulePass(context.Background())
	require.NoError(t, err)
	assert.Len(t, queue.inputs, 8)
}

type fakeRecoverer struct {
	staleAfter time.Duration
	err        error
}

func (f *fakeRecoverer) RecoverOrphanedTasks(_ context.Context, staleAfter time.Duration) (int, int, error) {
	f.staleAfter = staleAfter
	return 2, 1, f.err
}

func TestTaskQueueSweeper(t *testing.T) {
	logger := zerolog.Nop()
	recoverer := &fakeRecoverer{}
	s := NewTaskQueueSweeper(recoverer, &logger, time.Minute, 30*time.Minute)

	require.NoError(t, s.RecoverOrphanedTasks(context.Background()))
	assert.Equal(t, 30*time.Minute, recoverer.staleAfter)

	recoverer.err = errors.New("connection refused")
	assert.ErrorContains(t, s.RecoverOrphanedTasks(context.Background()), "connection refused")
}

func TestSweeperStops(t *testing.T) {
	logger := zerolog.Nop()
	s := NewTaskQueueSweeper(&fakeRecoverer{}, &logger, time.Millisecond, time.Minute)

	done := make(chan struct{})
	go func() {
		s.Start(context.Background())
		close(done)
	}()
	s.Stop()
	s.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestSweeperRunsPassOnStart(t *testing.T) {
	logger := zerolog.Nop()
	recoverer := &fakeRecoverer{}
	s := NewTaskQueueSweeper(recoverer, &logger, time.Hour, 10*time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Start(ctx)

	assert.Equal(t, 10*time.Minute, recoverer.staleAfter)
}
