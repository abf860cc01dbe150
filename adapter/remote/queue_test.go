package remote

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQueueRunsTasksInSubmissionOrder(t *testing.T) {
	q := NewQueue(8)
	defer q.Close()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = Submit(q, context.Background(), func(ctx context.Context) (struct{}, error) {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return struct{}{}, nil
			})
		}()
		wg.Wait() // force strict submission order across goroutines
	}

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestQueueFailingTaskDoesNotBlockNextTask(t *testing.T) {
	q := NewQueue(8)
	defer q.Close()

	_, err := Submit(q, context.Background(), func(ctx context.Context) (int, error) {
		return 0, errors.New("boom")
	})
	assert.Error(t, err)

	v, err := Submit(q, context.Background(), func(ctx context.Context) (int, error) {
		return 7, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestDedupCoalescesConcurrentIdenticalCalls(t *testing.T) {
	q := NewQueue(8)
	defer q.Close()

	var calls int
	var mu sync.Mutex
	release := make(chan struct{})
	var wg sync.WaitGroup
	var ready sync.WaitGroup
	var startOnce sync.Once
	started := make(chan struct{})

	for i := 0; i < 10; i++ {
		wg.Add(1)
		ready.Add(1)
		go func() {
			defer wg.Done()
			ready.Done()
			_, _ = q.Dedup("same-key", func() (interface{}, error) {
				mu.Lock()
				calls++
				mu.Unlock()
				startOnce.Do(func() { close(started) })
				<-release
				return nil, nil
			})
		}()
	}

	// Hold the in-flight call open until every goroutine has reached Dedup,
	// so all ten calls overlap it.
	<-started
	ready.Wait()
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.Equal(t, 1, calls)
}
