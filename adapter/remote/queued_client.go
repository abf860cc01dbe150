package remote

import "context"

// QueuedClient routes every Do call through a shared Queue, giving FIFO
// ordering across every adapter built from it (spec.md §4.5 "Queued remote
// adapter"). Construct collection/single adapters with a QueuedClient as
// CollectionConfig.Transport/SingleConfig.Transport to opt a store into this
// behavior.
type QueuedClient struct {
	inner *Client
	queue *Queue
}

// NewQueuedClient wraps client so every request submitted through it runs
// on queue's single worker goroutine, in submission order.
func NewQueuedClient(client *Client, queue *Queue) *QueuedClient {
	return &QueuedClient{inner: client, queue: queue}
}

// Do submits one request onto the shared queue and waits for its result.
func (q *QueuedClient) Do(ctx context.Context, method string, urlStr string, body interface{}) (RawResponse, error) {
	return Submit(q.queue, ctx, func(ctx context.Context) (RawResponse, error) {
		return q.inner.Do(ctx, method, urlStr, body)
	})
}
