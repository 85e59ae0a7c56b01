package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prisvakt/compliance-service/internal/compliance"
	"github.com/prisvakt/compliance-service/internal/database"
	"github.com/prisvakt/compliance-service/internal/jobs"
	"github.com/prisvakt/compliance-service/internal/scanner"
	"github.com/prisvakt/compliance-service/internal/taskqueue"
)

type failure struct {
	message string
	retry   bool
}

type fakeQueue struct {
	mu        sync.Mutex
	pending   []taskqueue.ClaimedTask
	completed map[string]interface{}
	failed    map[string]failure
}

func newFakeQueue(tasks ...taskqueue.ClaimedTask) *fakeQueue {
	return &fakeQueue{
		pending:   tasks,
		completed: make(map[string]interface{}),
		failed:    make(map[string]failure),
	}
}

func (q *fakeQueue) ClaimTasks(_ context.Context, input taskqueue.ClaimTasksInput) taskqueue.ClaimTasksResult {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := min(input.MaxTasks, len(q.pending))
	claimed := q.pending[:n]
	q.pending = q.pending[n:]
	return taskqueue.ClaimTasksResult{Tasks: claimed}
}

func (q *fakeQueue) CompleteTask(_ context.Context, taskID string, result interface{}) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.completed[taskID] = result
	return nil
}

func (q *fakeQueue) FailTask(_ context.Context, taskID, message string, retry bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failed[taskID] = failure{message: message, retry: retry}
	return nil
}

func (q *fakeQueue) done() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.completed) + len(q.failed)
}

type fakeScanner struct {
	scanErr error
}

func (f *fakeScanner) ScanShop(_ context.Context, domain string) (*scanner.ScanResult, error) {
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	return &scanner.ScanResult{Shop: domain, Variants: 3, Evaluated: 3}, nil
}

func (f *fakeScanner) RecheckVariant(_ context.Context, domain, productID, variantID string) (*database.EvaluationRecord, error) {
	if productID == "missing" {
		return nil, database.ErrNotFound
	}
	return &database.EvaluationRecord{
		VariantKey: compliance.VariantKey{Shop: domain, ProductID: productID, VariantID: variantID},
		Evaluation: compliance.Evaluation{IsCompliant: true},
	}, nil
}

type fakeRetention struct{}

func (fakeRetention) Run(context.Context) (*jobs.RetentionResult, error) {
	return &jobs.RetentionResult{ObservationsDeleted: 5}, nil
}

func task(id, taskType, payload string) taskqueue.ClaimedTask {
	return taskqueue.ClaimedTask{ID: id, TaskType: taskType, Payload: []byte(payload)}
}

func TestWorkerProcessesTasks(t *testing.T) {
	queue := newFakeQueue(
		task("t1", taskqueue.TaskTypeScanShop, `{"shop":"demo.myshop.no"}`),
		task("t2", taskqueue.TaskTypeRecheckVariant, `{"shop":"demo.myshop.no","productId":"1","variantId":"11"}`),
		task("t3", taskqueue.TaskTypeCleanup, `{}`),
		task("t4", "reindex", `{}`),
		task("t5", taskqueue.TaskTypeScanShop, `not json`),
		task("t6", taskqueue.TaskTypeRecheckVariant, `{"shop":"demo.myshop.no","productId":"missing","variantId":"11"}`),
	)

	logger := zerolog.Nop()
	w := New(queue, WorkerConfig{WorkerID: "test", MaxTasks: 2, NumWorkers: 2, PollDelay: 5 * time.Millisecond}, &logger)
	Register(w, &fakeScanner{}, fakeRetention{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	require.Eventually(t, func() bool { return queue.done() == 6 }, 2*time.Second, 5*time.Millisecond)
	w.Stop()

	assert.Len(t, queue.completed, 3)
	scan, ok := queue.completed["t1"].(*scanner.ScanResult)
	require.True(t, ok)
	assert.Equal(t, 3, scan.Variants)
	assert.Equal(t, int64(5), queue.completed["t3"].(*jobs.RetentionResult).ObservationsDeleted)

	assert.Equal(t, failure{message: "no handler registered", retry: false}, queue.failed["t4"])
	assert.False(t, queue.failed["t5"].retry)
	assert.False(t, queue.failed["t6"].retry)
}

func TestScanShopHandlerRetries(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantPermanent bool
	}{
		{name: "locked", err: scanner.ErrScanInProgress, wantPermanent: false},
		{name: "commerce outage", err: errors.New("503"), wantPermanent: false},
		{name: "unknown shop", err: database.ErrNotFound, wantPermanent: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewScanShopHandler(&fakeScanner{scanErr: tt.err})
			_, err := handler(context.Background(), []byte(`{"shop":"demo.myshop.no"}`))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.wantPermanent, IsPermanent(err))
		})
	}
}

func TestPermanent(t *testing.T) {
	assert.NoError(t, Permanent(nil))
	assert.False(t, IsPermanent(errors.New("x")))
	assert.True(t, IsPermanent(Permanent(errors.New("x"))))
}
