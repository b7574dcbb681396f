package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/tcthien/ada-wacg-compliance-sub004/internal/common"
	"github.com/tcthien/ada-wacg-compliance-sub004/internal/interfaces"
	"github.com/tcthien/ada-wacg-compliance-sub004/internal/models"
	badgerstore "github.com/tcthien/ada-wacg-compliance-sub004/internal/storage/badger"
)

const testQueue = "test-queue"

type testPayload struct {
	Value string `json:"value"`
}

func newTestManager(t *testing.T, concurrency int) (*Manager, interfaces.JobStorage) {
	t.Helper()

	logger := arbor.NewLogger()
	storageManager, err := badgerstore.NewManager(logger, &common.BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { storageManager.Close() })

	manager := NewManager(storageManager.JobStorage(), logger, common.QueueConfig{
		Concurrency:  concurrency,
		PollInterval: "5ms",
	})
	return manager, storageManager.JobStorage()
}

// waitFor polls the condition until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestEnqueueAndProcess(t *testing.T) {
	manager, _ := newTestManager(t, 1)

	var processed atomic.Int32
	manager.RegisterProcessor(testQueue, func(ctx context.Context, job *models.Job) error {
		processed.Add(1)
		return nil
	})

	ctx := context.Background()
	_, err := manager.Enqueue(ctx, testQueue, testPayload{Value: "a"}, models.EnqueueOptions{})
	require.NoError(t, err)

	require.NoError(t, manager.Start(ctx))
	defer manager.Stop()

	waitFor(t, 2*time.Second, func() bool { return processed.Load() == 1 })
}

func TestFIFOWithinQueue(t *testing.T) {
	manager, _ := newTestManager(t, 1)

	var mu sync.Mutex
	var order []string
	manager.RegisterProcessor(testQueue, func(ctx context.Context, job *models.Job) error {
		var p testPayload
		require.NoError(t, json.Unmarshal(job.Payload, &p))
		mu.Lock()
		order = append(order, p.Value)
		mu.Unlock()
		return nil
	})

	ctx := context.Background()
	for _, v := range []string{"1", "2", "3", "4"} {
		_, err := manager.Enqueue(ctx, testQueue, testPayload{Value: v}, models.EnqueueOptions{})
		require.NoError(t, err)
	}

	require.NoError(t, manager.Start(ctx))
	defer manager.Stop()

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 4
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"1", "2", "3", "4"}, order)
}

func TestRetryWithBackoffThenPermanentFailure(t *testing.T) {
	manager, storage := newTestManager(t, 1)

	var attempts atomic.Int32
	manager.RegisterProcessor(testQueue, func(ctx context.Context, job *models.Job) error {
		attempts.Add(1)
		return errors.New("handler always fails")
	})

	var hookFired atomic.Bool
	manager.OnPermanentFailure(testQueue, func(ctx context.Context, job *models.Job, lastErr error) {
		hookFired.Store(true)
		assert.Equal(t, "handler always fails", lastErr.Error())
	})

	ctx := context.Background()
	jobID, err := manager.Enqueue(ctx, testQueue, testPayload{Value: "x"}, models.EnqueueOptions{
		Attempts: 2,
		Backoff:  models.BackoffOptions{Strategy: models.BackoffFixed, InitialMs: 10},
	})
	require.NoError(t, err)

	require.NoError(t, manager.Start(ctx))
	defer manager.Stop()

	waitFor(t, 3*time.Second, func() bool { return hookFired.Load() })
	assert.Equal(t, int32(2), attempts.Load())

	job, err := storage.GetJob(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStateFailed, job.State)
	assert.Equal(t, 2, job.AttemptsMade)
	assert.Contains(t, job.LastError, "handler always fails")

	failed, err := manager.FailedJobs(ctx, testQueue)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, jobID, failed[0].ID)
}

func TestDelayedJobWaitsUntilDue(t *testing.T) {
	manager, storage := newTestManager(t, 1)

	var processed atomic.Bool
	manager.RegisterProcessor(testQueue, func(ctx context.Context, job *models.Job) error {
		processed.Store(true)
		return nil
	})

	ctx := context.Background()
	jobID, err := manager.Enqueue(ctx, testQueue, testPayload{Value: "later"}, models.EnqueueOptions{DelayMs: 150})
	require.NoError(t, err)

	job, err := storage.GetJob(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStateDelayed, job.State)

	require.NoError(t, manager.Start(ctx))
	defer manager.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.False(t, processed.Load(), "job must not run before its delay elapses")

	waitFor(t, 2*time.Second, func() bool { return processed.Load() })
}

func TestRequeueActiveOnStart(t *testing.T) {
	manager, storage := newTestManager(t, 1)
	ctx := context.Background()

	jobID, err := manager.Enqueue(ctx, testQueue, testPayload{Value: "stranded"}, models.EnqueueOptions{})
	require.NoError(t, err)

	// Simulate a crash mid-processing: claim the job so it sits active.
	claimed, err := storage.ClaimNext(ctx, testQueue, time.Now().UTC())
	require.NoError(t, err)
	require.Equal(t, jobID, claimed.ID)
	require.Equal(t, models.JobStateActive, claimed.State)

	var processed atomic.Bool
	manager.RegisterProcessor(testQueue, func(ctx context.Context, job *models.Job) error {
		processed.Store(true)
		return nil
	})

	require.NoError(t, manager.Start(ctx))
	defer manager.Stop()

	waitFor(t, 2*time.Second, func() bool { return processed.Load() })
}

func TestTrimCompletedJobs(t *testing.T) {
	manager, storage := newTestManager(t, 1)

	manager.RegisterProcessor(testQueue, func(ctx context.Context, job *models.Job) error {
		return nil
	})

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := manager.Enqueue(ctx, testQueue, testPayload{Value: "n"}, models.EnqueueOptions{RemoveOnComplete: 2})
		require.NoError(t, err)
	}

	require.NoError(t, manager.Start(ctx))
	defer manager.Stop()

	waitFor(t, 3*time.Second, func() bool {
		waiting, err := storage.ListByState(ctx, testQueue, models.JobStateWaiting)
		if err != nil || len(waiting) > 0 {
			return false
		}
		completed, err := storage.ListByState(ctx, testQueue, models.JobStateCompleted)
		return err == nil && len(completed) == 2
	})
}

func TestStopWaitsForInFlightJob(t *testing.T) {
	manager, storage := newTestManager(t, 1)

	release := make(chan struct{})
	var started atomic.Bool
	manager.RegisterProcessor(testQueue, func(ctx context.Context, job *models.Job) error {
		started.Store(true)
		<-release
		return nil
	})

	ctx := context.Background()
	jobID, err := manager.Enqueue(ctx, testQueue, testPayload{Value: "slow"}, models.EnqueueOptions{})
	require.NoError(t, err)

	require.NoError(t, manager.Start(ctx))
	waitFor(t, 2*time.Second, func() bool { return started.Load() })

	done := make(chan struct{})
	go func() {
		manager.Stop()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Stop returned while a job was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	<-done

	job, err := storage.GetJob(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStateCompleted, job.State)
}
