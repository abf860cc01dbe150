// Package store implements the two store coordinators (spec.md §4.6 C6 and
// §4.7 C7): the managers that combine the cache, optimistic mutation with
// rollback, request deduplication, and adapter composition into the
// consumer-facing get/set/patch/delete/clear surface.
//
// Grounded on the single-flight upsert and notify-after-commit sequencing
// in internal/store/relay_feature_store.go, generalized from "one feature
// store keyed by flag key" to "one generic single-value or collection
// store keyed by caller-supplied parameters".
//
// Deviation from spec.md §5: the source's scheduling model is
// single-threaded cooperative, so no internal locking is specified. Go has
// real OS threads, so every store here guards its state with a mutex; the
// mutex is held only across in-memory bookkeeping; it is always released
// before an adapter call is awaited, matching the spec's "suspension
// occurs only inside adapter calls" rule.
package store

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pathstate/engine/adapter"
	"github.com/pathstate/engine/config"
	"github.com/pathstate/engine/engineerrors"
	"github.com/pathstate/engine/internal/bus"
	"github.com/pathstate/engine/internal/cache"
	"github.com/pathstate/engine/internal/netstatus"
	"github.com/pathstate/engine/internal/proxy"
	"github.com/pathstate/engine/internal/txn"
	"github.com/pathstate/engine/logging"
	"github.com/pathstate/engine/path"
	"github.com/pathstate/engine/record"
	"github.com/pathstate/engine/status"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// ErrorHook mirrors config.ErrorHook's shape for a single store's onError,
// invoked before the global hook (spec.md §7 "per-store and global onError").
type ErrorHook func(err error, operation string, meta engineerrors.Meta)

// SingleOptions configures a Single store at construction time.
type SingleOptions struct {
	Cache   *cache.Cache
	TTL     time.Duration
	OnError ErrorHook
	Loggers ldlog.Loggers

	// ReloadOnReconnect, ReloadOnFocus, and ReloadInterval configure the
	// store's own netstatus.Monitor, whose Reload callback re-issues the
	// most recent Get (spec.md §4.3). Leave all three zero to skip
	// creating a monitor.
	ReloadOnReconnect bool
	ReloadOnFocus     bool
	ReloadInterval    time.Duration
}

// Single coordinates C1-C5 for one entity (spec.md §4.6, C6).
type Single[T any] struct {
	mu sync.Mutex

	storeID string
	ad      adapter.SingleAdapter[T]
	bus     *bus.Bus

	c   *cache.Cache
	ttl time.Duration

	value    T
	hasValue bool
	st       status.Status

	lastParams adapter.Params

	dedup   singleflight.Group
	onError ErrorHook
	loggers ldlog.Loggers
	monitor *netstatus.Monitor

	unsubscribePush func()
}

// NewSingle constructs a Single store. If opts.Cache is nil, a fresh
// private cache is created (spec.md §9 "expose as explicit context objects
// passed to store constructors").
func NewSingle[T any](storeID string, ad adapter.SingleAdapter[T], opts SingleOptions) *Single[T] {
	c := opts.Cache
	if c == nil {
		c = cache.New()
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	loggers := opts.Loggers
	if (loggers == ldlog.Loggers{}) {
		loggers = logging.ForComponent(logging.MakeDefaultLoggers(), storeID)
	}

	s := &Single[T]{
		storeID: storeID,
		ad:      ad,
		bus:     bus.New(bus.WithLoggers(loggers)),
		c:       c,
		ttl:     ttl,
		onError: opts.OnError,
		loggers: loggers,
	}

	if opts.ReloadOnReconnect || opts.ReloadOnFocus || opts.ReloadInterval > 0 {
		s.monitor = netstatus.New(netstatus.Options{
			ReloadOnReconnect: opts.ReloadOnReconnect,
			ReloadOnFocus:     opts.ReloadOnFocus,
			ReloadInterval:    opts.ReloadInterval,
			Reload: func() {
				_, _ = s.Get(context.Background(), s.LastParams())
			},
		})
	}

	if ad.PersistLoad != nil {
		if v, found, err := ad.PersistLoad(context.Background()); err == nil && found {
			s.value = v
			s.hasValue = true
		} else if err != nil {
			s.loggers.Warnf("%s: persist load failed: %v", storeID, err)
		}
	}

	// A push event is treated as authoritative the instant it arrives: it
	// overwrites in-memory state directly, bypassing the cache and the
	// optimistic/rollback machinery entirely, even if an optimistic
	// mutation is in flight. The mutation's own reconciliation or rollback
	// then lands on top of whatever the push left behind and re-notifies,
	// so the two never corrupt each other's view of "current" value.
	if ad.Subscribe != nil {
		s.unsubscribePush = ad.Subscribe(func(v T) {
			s.commit(v)
		})
	}

	return s
}

// Value returns the current in-memory value and whether it is present.
func (s *Single[T]) Value() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.hasValue
}

// Status returns the current store status snapshot.
func (s *Single[T]) Status() status.Status {
	if s.monitor != nil {
		return s.monitor.Status()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st
}

// LastParams returns the parameters used by the most recent Get call, for
// a netstatus.Monitor's Reload callback to re-issue the same fetch on
// reconnect/focus/interval (spec.md §4.3 "invoke the reload callback with
// the last parameters used").
func (s *Single[T]) LastParams() adapter.Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastParams
}

// Subscribe registers listener for changes touching p (spec.md §4.1).
func (s *Single[T]) Subscribe(p path.Path, listener bus.Listener) bus.Unsubscribe {
	return s.bus.Subscribe(p, listener)
}

// Root returns a lazy observation proxy (spec.md §4.2, C2) over this store's
// value. The returned handle's Resolver re-reads s.Value on every traversal,
// so it never goes stale across a Set/Patch/push and needs no disposal of
// its own — only the store it closes over does.
func (s *Single[T]) Root() *proxy.Handle {
	return proxy.NewRoot(func(p path.Path) (interface{}, bool) {
		v, ok := s.Value()
		if !ok {
			return nil, false
		}
		if p.IsRoot() {
			return v, true
		}
		return record.ResolvePath(v, p)
	})
}

// SubscribeStatus registers a status-only listener, independent of data
// subscriptions (spec.md §4.3).
func (s *Single[T]) SubscribeStatus(listener netstatus.StatusListener) netstatus.Unsubscribe {
	if s.monitor == nil {
		return func() {}
	}
	return s.monitor.SubscribeStatus(listener)
}

func (s *Single[T]) setStatus(partial status.Partial) {
	if s.monitor != nil {
		s.monitor.SetStatus(partial)
		return
	}
	s.mu.Lock()
	s.st = s.st.Merge(partial)
	s.mu.Unlock()
}

func (s *Single[T]) commit(v T) {
	s.mu.Lock()
	s.value = v
	s.hasValue = true
	s.mu.Unlock()
	s.setStatus(status.Partial{LastUpdated: status.TimePtr(time.Now()), ClearError: true})
	s.bus.Notify([]path.Path{path.Root()})
}

// reportError runs the per-store hook, then the global hook, with the same
// arguments (spec.md §7 "onError (per-store) runs first ... then the
// global onError runs with the same arguments").
func (s *Single[T]) reportError(err error, operation string, params adapter.Params, rollback interface{}) {
	meta := engineerrors.Meta{Operation: operation, Params: map[string]interface{}(params), RollbackData: rollback}
	if s.onError != nil {
		s.onError(err, operation, meta)
	}
	if hook := config.Current().OnError; hook != nil {
		hook(err, operation, meta)
	}
	s.setStatus(status.Partial{Error: err})
}

// Get fetches the value, sharing one in-flight request across concurrent
// callers with identical params and consulting the cache first (spec.md
// §4.6 "get").
func (s *Single[T]) Get(ctx context.Context, params adapter.Params) (T, error) {
	force, _ := params["_force"].(bool)
	key := s.storeID + ":" + params.CacheKey()

	s.mu.Lock()
	s.lastParams = params
	s.mu.Unlock()

	if !force {
		if res, ok := s.c.Get(key, s.ttl); ok {
			data := res.Data.(T)
			if res.Stale {
				go s.revalidate(context.Background(), key, params)
			}
			s.commit(data)
			return data, nil
		}
	}

	return s.fetch(ctx, key, params, true)
}

func (s *Single[T]) revalidate(ctx context.Context, key string, params adapter.Params) {
	s.setStatus(status.Partial{IsRevalidating: status.BoolPtr(true)})
	defer s.setStatus(status.Partial{IsRevalidating: status.BoolPtr(false)})
	_, _ = s.fetch(ctx, key, params, false)
}

func (s *Single[T]) fetch(ctx context.Context, key string, params adapter.Params, foreground bool) (T, error) {
	var zero T
	if s.ad.Get == nil {
		err := &engineerrors.ConfigError{Operation: "get"}
		if foreground {
			s.reportError(err, "get", params, nil)
		}
		return zero, err
	}

	if foreground {
		s.setStatus(status.Partial{IsLoading: status.BoolPtr(true)})
		defer s.setStatus(status.Partial{IsLoading: status.BoolPtr(false)})
	}

	result, err, _ := s.dedup.Do(key, func() (interface{}, error) {
		data, err := s.ad.Get(ctx, params)
		if err != nil {
			return nil, err
		}
		s.c.Set(key, data)
		return data, nil
	})
	if err != nil {
		s.reportError(err, "get", params, nil)
		return zero, err
	}

	data := result.(T)
	s.commit(data)
	return data, nil
}

// Set optimistically replaces the value, reconciling from the adapter's
// returned value on success or restoring the prior value on failure
// (spec.md §4.6 "set").
func (s *Single[T]) Set(ctx context.Context, value T) (T, error) {
	if s.ad.Set == nil {
		var zero T
		err := &engineerrors.ConfigError{Operation: "set"}
		s.reportError(err, "set", nil, nil)
		return zero, err
	}

	s.mu.Lock()
	snapshot := txn.Begin(s.value)
	hadValue := s.hasValue
	s.value = value
	s.hasValue = true
	s.mu.Unlock()
	s.bus.Notify([]path.Path{path.Root()})

	reconciled, err := s.ad.Set(ctx, value, nil)
	v, ok := snapshot.Resolve(txn.Outcome[T]{Reconciled: reconciled, Err: err})
	if !ok {
		s.mu.Lock()
		s.value = v
		s.hasValue = hadValue
		s.mu.Unlock()
		s.bus.Notify([]path.Path{path.Root()})
		s.reportError(err, "set", nil, snapshot.Snapshot)
		var zero T
		return zero, err
	}

	s.persistSave(ctx, v)
	s.commit(v)
	return v, nil
}

// Patch optimistically merges partial into the value via record.MergePatch
// semantics, reconciling or rolling back (spec.md §4.6 "patch"). Both the
// optimistic apply and the final commit notify the precise top-level keys
// the merge touched, falling back to the root path on rollback since a
// restored snapshot cannot be expressed as a set of changed keys.
func (s *Single[T]) Patch(ctx context.Context, partial map[string]interface{}) (T, error) {
	var zero T
	if s.ad.Patch == nil {
		err := &engineerrors.ConfigError{Operation: "patch"}
		s.reportError(err, "patch", nil, nil)
		return zero, err
	}

	s.mu.Lock()
	if !s.hasValue {
		s.mu.Unlock()
		err := &engineerrors.NotFoundError{ID: s.storeID}
		s.reportError(err, "patch", nil, nil)
		return zero, err
	}
	base := s.value
	snapshot := txn.Begin(base)
	s.mu.Unlock()

	rawPartial, err := record.ToPartial(partial)
	if err != nil {
		s.reportError(err, "patch", nil, nil)
		return zero, err
	}
	merged, changed, err := record.MergePatch(base, rawPartial)
	if err != nil {
		s.reportError(err, "patch", nil, nil)
		return zero, err
	}

	s.mu.Lock()
	s.value = merged
	s.mu.Unlock()
	s.bus.Notify(patchPaths(changed))

	reconciled, patchErr := s.ad.Patch(ctx, partial, nil)
	v, ok := snapshot.Resolve(txn.Outcome[T]{Reconciled: reconciled, Err: patchErr})
	if !ok {
		s.mu.Lock()
		s.value = v
		s.mu.Unlock()
		s.bus.Notify([]path.Path{path.Root()})
		s.reportError(patchErr, "patch", nil, snapshot.Snapshot)
		return zero, patchErr
	}

	s.persistSave(ctx, v)
	s.mu.Lock()
	s.value = v
	s.hasValue = true
	s.mu.Unlock()
	s.setStatus(status.Partial{LastUpdated: status.TimePtr(time.Now()), ClearError: true})
	s.bus.Notify(patchPaths(changed))
	return v, nil
}

// patchPaths renders the notification set for a set of changed top-level
// keys, falling back to the root path when the merge touched nothing
// identifiable (spec.md §4.6 "fall back to [] on adapter-returned full
// replacement").
func patchPaths(changed []string) []path.Path {
	if len(changed) == 0 {
		return []path.Path{path.Root()}
	}
	out := make([]path.Path, len(changed))
	for i, k := range changed {
		out[i] = path.Root().Child(path.FromKey(k))
	}
	return out
}

// Delete optimistically clears the value, restoring it on adapter failure
// (spec.md §4.6 "delete").
func (s *Single[T]) Delete(ctx context.Context, params adapter.Params) error {
	if s.ad.Delete == nil {
		err := &engineerrors.ConfigError{Operation: "delete"}
		s.reportError(err, "delete", params, nil)
		return err
	}

	s.mu.Lock()
	snapshot := txn.Begin(s.value)
	hadValue := s.hasValue
	s.value = *new(T)
	s.hasValue = false
	s.mu.Unlock()
	s.bus.Notify([]path.Path{path.Root()})

	err := s.ad.Delete(ctx, params)
	if err != nil {
		s.mu.Lock()
		s.value = snapshot.Snapshot
		s.hasValue = hadValue
		s.mu.Unlock()
		s.bus.Notify([]path.Path{path.Root()})
		s.reportError(err, "delete", params, snapshot.Snapshot)
		return err
	}

	s.persistClear(ctx)
	s.setStatus(status.Partial{LastUpdated: status.TimePtr(time.Now())})
	return nil
}

// Clear synchronously nulls out the value and notifies (spec.md §4.6 "clear").
func (s *Single[T]) Clear() {
	s.mu.Lock()
	s.value = *new(T)
	s.hasValue = false
	s.mu.Unlock()
	s.bus.Notify([]path.Path{path.Root()})
}

func (s *Single[T]) persistSave(ctx context.Context, v T) {
	if s.ad.PersistSave == nil {
		return
	}
	if err := s.ad.PersistSave(ctx, v); err != nil {
		s.loggers.Warnf("%s: persist save failed: %v", s.storeID, err)
	}
}

func (s *Single[T]) persistClear(ctx context.Context) {
	if s.ad.PersistSave == nil {
		return
	}
	if err := s.ad.PersistSave(ctx, *new(T)); err != nil {
		s.loggers.Warnf("%s: persist clear failed: %v", s.storeID, err)
	}
}

// Dispose releases the monitor's listeners and timers, and any push
// subscription (spec.md §3.3 "Disposal releases status-monitor listeners
// and push-stream resources").
func (s *Single[T]) Dispose() {
	if s.monitor != nil {
		s.monitor.Dispose()
	}
	if s.unsubscribePush != nil {
		s.unsubscribePush()
	}
}
