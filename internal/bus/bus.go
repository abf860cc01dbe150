// Package bus implements the path-indexed subscriber fan-out described in
// spec.md §4.1 (C1). It is grounded on the channel-keyed publisher registries
// in the teacher's streaming layer (internal/streams/publishers.go,
// internal/store/relay_feature_store.go): a small set of buckets, each
// holding the listeners that care about one key, so a change only has to
// walk the buckets it could possibly affect.
package bus

import (
	"sync"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/pathstate/engine/path"
)

// Listener is a nullary side-effecting callback invoked when a subscribed
// path is touched by a change.
type Listener func()

// Unsubscribe removes a subscription. It is idempotent: calling it more than
// once has no effect.
type Unsubscribe func()

// Bus routes change notifications to subscribers by path-prefix overlap.
// The bus serializes its own bookkeeping with its own mutex and invokes
// listeners outside it; callers need not hold any other lock.
type Bus struct {
	mu      sync.Mutex
	loggers ldlog.Loggers

	root []*subscription

	// buckets maps a first-segment's string form to every non-root
	// subscription whose first segment renders to it. String() is used as
	// the map key; paths built through path.FromKey already record "3" as
	// the integer segment 3, and a String("3")/Int(3) pair that shares a
	// bucket is still told apart by Overlaps (path.Segment.Equal).
	buckets map[string][]*subscription

	nextID uint64

	onFirstSubscribe func()
	firstSubscribed  bool
}

type subscription struct {
	id   uint64
	path path.Path
	fn   Listener
}

// Option configures a Bus at construction time.
type Option func(*Bus)

// WithLoggers attaches a Loggers instance used to report listener panics.
func WithLoggers(loggers ldlog.Loggers) Option {
	return func(b *Bus) { b.loggers = loggers }
}

// WithOnFirstSubscribe registers a hook that fires exactly once, the moment
// the bus receives its first-ever subscription.
func WithOnFirstSubscribe(hook func()) Option {
	return func(b *Bus) { b.onFirstSubscribe = hook }
}

// New creates an empty Bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		buckets: make(map[string][]*subscription),
		loggers: ldlog.NewDisabledLoggers(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers listener for path p and returns a token that removes
// the exact registration when invoked.
func (b *Bus) Subscribe(p path.Path, listener Listener) Unsubscribe {
	b.mu.Lock()
	b.nextID++
	sub := &subscription{id: b.nextID, path: p, fn: listener}

	first, ok := p.FirstSegment()
	if !ok {
		b.root = append(b.root, sub)
	} else {
		key := first.String()
		b.buckets[key] = append(b.buckets[key], sub)
	}

	fireHook := !b.firstSubscribed && b.onFirstSubscribe != nil
	b.firstSubscribed = true
	b.mu.Unlock()

	if fireHook {
		b.onFirstSubscribe()
	}

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(sub) })
	}
}

func (b *Bus) remove(target *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	first, ok := target.path.FirstSegment()
	if !ok {
		b.root = removeSub(b.root, target)
		return
	}
	key := first.String()
	b.buckets[key] = removeSub(b.buckets[key], target)
	if len(b.buckets[key]) == 0 {
		delete(b.buckets, key)
	}
}

func removeSub(list []*subscription, target *subscription) []*subscription {
	for i, s := range list {
		if s == target {
			out := make([]*subscription, 0, len(list)-1)
			out = append(out, list[:i]...)
			return append(out, list[i+1:]...)
		}
	}
	return list
}

// Notify invokes, at most once each, every listener whose subscribed path
// overlaps any path in changed. A change path of path.Root() ([]) notifies
// every subscriber; any subscription at path.Root() is notified by every change.
func (b *Bus) Notify(changed []path.Path) {
	b.mu.Lock()
	matched := b.collect(changed)
	b.mu.Unlock()

	for _, sub := range matched {
		b.invoke(sub)
	}
}

// collect must be called with b.mu held. It returns the deduplicated set of
// matching subscriptions without invoking any listener, so that a listener
// mutating the bus mid-notify (a legal reentrant subscribe/unsubscribe) never
// observes a half-built snapshot.
func (b *Bus) collect(changed []path.Path) []*subscription {
	seen := make(map[uint64]bool)
	var matched []*subscription

	add := func(sub *subscription) {
		if !seen[sub.id] {
			seen[sub.id] = true
			matched = append(matched, sub)
		}
	}

	hasRootChange := false
	for _, c := range changed {
		if c.IsRoot() {
			hasRootChange = true
		}
	}

	// Root subscriptions match every change; every subscription matches a root change.
	for _, c := range changed {
		for _, sub := range b.root {
			if sub.path.Overlaps(c) {
				add(sub)
			}
		}
	}

	if hasRootChange {
		for _, bucket := range b.buckets {
			for _, sub := range bucket {
				add(sub)
			}
		}
		return matched
	}

	for _, c := range changed {
		first, ok := c.FirstSegment()
		if !ok {
			continue
		}
		for _, sub := range b.buckets[first.String()] {
			if sub.path.Overlaps(c) {
				add(sub)
			}
		}
	}

	return matched
}

func (b *Bus) invoke(sub *subscription) {
	defer func() {
		if r := recover(); r != nil {
			b.loggers.Errorf("subscriber at path %q panicked: %v", sub.path.String(), r)
		}
	}()
	sub.fn()
}

// Len reports the total number of live subscriptions, for tests and diagnostics.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.root)
	for _, bucket := range b.buckets {
		n += len(bucket)
	}
	return n
}
