package remote

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Queue is a process-wide FIFO worker loop: tasks submitted to Submit run
// strictly in submission order, one at a time, and a failing task never
// blocks the next one from starting (spec.md §4.5 "Queued remote adapter").
//
// This is the module's one cross-store ordering primitive; multiple
// CollectionAdapter/SingleAdapter instances built with NewQueuedClient
// share the same Queue and therefore interleave FIFO across stores, not
// just within one store.
type Queue struct {
	tasks chan func()
	done  chan struct{}

	// dedup collapses concurrent calls sharing a key, grounded on the
	// request-coalescing pattern the store coordinator otherwise
	// implements itself (spec.md §4.6/4.7 "get: request deduplication").
	// It is reached only through Dedup; QueuedClient.Do does not use it.
	dedup singleflight.Group
}

// NewQueue starts a Queue with the given worker buffer size. A Queue must
// be disposed with Close when no longer needed.
func NewQueue(bufferSize int) *Queue {
	q := &Queue{
		tasks: make(chan func(), bufferSize),
		done:  make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *Queue) run() {
	for {
		select {
		case task := <-q.tasks:
			task()
		case <-q.done:
			return
		}
	}
}

// Submit enqueues fn and blocks until fn has run, returning its result.
// Submit itself may be called concurrently; ordering is determined by the
// order in which the queue's single worker goroutine drains q.tasks.
func Submit[T any](q *Queue, ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	resultCh := make(chan struct {
		v   T
		err error
	}, 1)

	select {
	case q.tasks <- func() {
		v, err := fn(ctx)
		resultCh <- struct {
			v   T
			err error
		}{v, err}
	}:
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	select {
	case res := <-resultCh:
		return res.v, res.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Dedup coalesces concurrent calls sharing the same key so only one
// underlying call executes; all callers receive its result.
func (q *Queue) Dedup(key string, fn func() (interface{}, error)) (interface{}, error) {
	v, err, _ := q.dedup.Do(key, fn)
	return v, err
}

// Close stops the worker goroutine. Safe to call once.
func (q *Queue) Close() {
	close(q.done)
}
