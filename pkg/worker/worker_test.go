package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerManager_ProcessesJobs(t *testing.T) {
	w := NewWorkerManager(10, 4, nil)

	var sum atomic.Int64
	var wg sync.WaitGroup
	w.SetWorker(func(_ int, job interface{}) {
		sum.Add(int64(job.(int)))
		wg.Done()
	})

	done := make(chan error, 1)
	go func() { done <- w.Start() }()

	wg.Add(100)
	for i := 1; i <= 100; i++ {
		require.NoError(t, w.Enqueue(context.Background(), i))
	}
	wg.Wait()
	assert.Equal(t, int64(5050), sum.Load())

	w.Exit()
	w.Exit()
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("workers did not stop")
	}
}

func TestWorkerManager_EnqueueAfterExit(t *testing.T) {
	w := NewWorkerManager(0, 1, nil)
	w.Exit()
	assert.ErrorIs(t, w.Enqueue(context.Background(), 1), ErrStopped)
}

func TestWorkerManager_EnqueueRespectsContext(t *testing.T) {
	w := NewWorkerManager(0, 1, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, w.Enqueue(ctx, 1), context.DeadlineExceeded)
}

func TestWorkerManager_StartWithoutHandler(t *testing.T) {
	w := NewWorkerManager(1, 1, nil)
	assert.Error(t, w.Start())
}

func TestWorkerManager_UnreadCount(t *testing.T) {
	w := NewWorkerManager(4, 2, nil)
	assert.Equal(t, 2, w.Size())
	assert.Equal(t, int64(0), w.GetUnreadCount())

	require.NoError(t, w.Enqueue(context.Background(), 1))
	require.NoError(t, w.Enqueue(context.Background(), 2))
	assert.Equal(t, int64(2), w.GetUnreadCount())
}
