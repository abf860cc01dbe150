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

// CollectionOptions configures a Collection store at construction time.
type CollectionOptions struct {
	Cache   *cache.Cache
	TTL     time.Duration
	OnError ErrorHook
	Loggers ldlog.Loggers

	ReloadOnReconnect bool
	ReloadOnFocus     bool
	ReloadInterval    time.Duration

	// MaxPushAppendItems bounds a PushAppend list: once the bound is
	// reached, the oldest entry is dropped to make room for the newest
	// (spec.md §4.7 "subject to dedupe and a max bound"). Zero means
	// unbounded.
	MaxPushAppendItems int
}

// Collection coordinates C1-C5 for a keyed, ordered set of records (spec.md
// §4.7, C7). T's identity comes from record.Identifiable; ids are normalized
// to their string form at every storage boundary (spec.md "Id
// normalization").
type Collection[T record.Identifiable] struct {
	mu sync.Mutex

	storeID string
	ad      adapter.CollectionAdapter[T]
	bus     *bus.Bus

	c   *cache.Cache
	ttl time.Duration

	items map[string]T
	order []string

	st         status.Status
	lastParams adapter.Params

	dedup        singleflight.Group
	onError      ErrorHook
	loggers      ldlog.Loggers
	monitor      *netstatus.Monitor
	maxPushItems int

	unsubscribePush func()
}

// NewCollection constructs a Collection store, warm-starting from the
// durable adapter and subscribing to the push adapter, if either is
// configured.
func NewCollection[T record.Identifiable](storeID string, ad adapter.CollectionAdapter[T], opts CollectionOptions) *Collection[T] {
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

	s := &Collection[T]{
		storeID:      storeID,
		ad:           ad,
		bus:          bus.New(bus.WithLoggers(loggers)),
		c:            c,
		ttl:          ttl,
		items:        make(map[string]T),
		onError:      opts.OnError,
		loggers:      loggers,
		maxPushItems: opts.MaxPushAppendItems,
	}

	if opts.ReloadOnReconnect || opts.ReloadOnFocus || opts.ReloadInterval > 0 {
		s.monitor = netstatus.New(netstatus.Options{
			ReloadOnReconnect: opts.ReloadOnReconnect,
			ReloadOnFocus:     opts.ReloadOnFocus,
			ReloadInterval:    opts.ReloadInterval,
			Reload: func() {
				_, _ = s.GetAll(context.Background(), s.LastParams())
			},
		})
	}

	if ad.PersistLoad != nil {
		if values, found, err := ad.PersistLoad(context.Background()); err == nil && found {
			s.items, s.order = normalize(values)
		} else if err != nil {
			s.loggers.Warnf("%s: persist load failed: %v", storeID, err)
		}
	}

	// Push payloads rewrite in-memory state directly, bypassing the cache
	// and the optimistic/rollback machinery entirely (spec.md §4.7 "Push
	// integration"), the same authoritative-overwrite rule the single-value
	// store applies.
	if ad.Subscribe != nil {
		s.unsubscribePush = ad.Subscribe(func(ev adapter.PushEvent[T]) {
			s.applyPush(ev)
		})
	}

	return s
}

func normalize[T record.Identifiable](values []T) (map[string]T, []string) {
	items := make(map[string]T, len(values))
	order := make([]string, 0, len(values))
	for _, v := range values {
		id := v.ID()
		if _, exists := items[id]; !exists {
			order = append(order, id)
		}
		items[id] = v
	}
	return items, order
}

// Values returns the current records in their stored order.
func (s *Collection[T]) Values() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Collection[T]) snapshotLocked() []T {
	out := make([]T, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id])
	}
	return out
}

// Get returns one record by id, if present.
func (s *Collection[T]) Get(id string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.items[id]
	return v, ok
}

// Status returns the current store status snapshot.
func (s *Collection[T]) Status() status.Status {
	if s.monitor != nil {
		return s.monitor.Status()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st
}

// LastParams returns the parameters used by the most recent list fetch.
func (s *Collection[T]) LastParams() adapter.Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastParams
}

// Subscribe registers listener for changes touching p (spec.md §4.1). p is
// typically path.Root() for the whole list, path.Of(id) for one record, or
// path.Of(id, field) for one field.
func (s *Collection[T]) Subscribe(p path.Path, listener bus.Listener) bus.Unsubscribe {
	return s.bus.Subscribe(p, listener)
}

// Root returns a lazy observation proxy (spec.md §4.2, C2) over this
// collection's state. path.Root() resolves to the ordered record list; a
// one-segment path resolves to the record whose id equals that segment's
// string form; longer paths resolve into that record's own fields.
func (s *Collection[T]) Root() *proxy.Handle {
	return proxy.NewRoot(func(p path.Path) (interface{}, bool) {
		if p.IsRoot() {
			return s.Values(), true
		}
		first, _ := p.FirstSegment()
		v, ok := s.Get(first.String())
		if !ok {
			return nil, false
		}
		if rest := p[1:]; len(rest) > 0 {
			return record.ResolvePath(v, rest)
		}
		return v, true
	})
}

// Entry pairs a record's id with a lazy handle into that one record,
// matching the "(id, per-id proxy) pairs in insertion order" iteration
// contract over a collection root (spec.md §4.2 "Edge cases").
type Entry struct {
	ID     string
	Handle *proxy.Handle
}

// Entries returns one Entry per record, in the collection's current
// insertion order.
func (s *Collection[T]) Entries() []Entry {
	s.mu.Lock()
	ids := append([]string(nil), s.order...)
	s.mu.Unlock()

	root := s.Root()
	out := make([]Entry, len(ids))
	for i, id := range ids {
		out[i] = Entry{ID: id, Handle: root.Get(id)}
	}
	return out
}

// SubscribeStatus registers a status-only listener.
func (s *Collection[T]) SubscribeStatus(listener netstatus.StatusListener) netstatus.Unsubscribe {
	if s.monitor == nil {
		return func() {}
	}
	return s.monitor.SubscribeStatus(listener)
}

func (s *Collection[T]) setStatus(partial status.Partial) {
	if s.monitor != nil {
		s.monitor.SetStatus(partial)
		return
	}
	s.mu.Lock()
	s.st = s.st.Merge(partial)
	s.mu.Unlock()
}

func (s *Collection[T]) reportError(err error, operation string, params adapter.Params, rollback interface{}) {
	meta := engineerrors.Meta{Operation: operation, Params: map[string]interface{}(params), RollbackData: rollback}
	if s.onError != nil {
		s.onError(err, operation, meta)
	}
	if hook := config.Current().OnError; hook != nil {
		hook(err, operation, meta)
	}
	s.setStatus(status.Partial{Error: err})
}

func (s *Collection[T]) listKey(params adapter.Params) string {
	return s.storeID + ":list:" + params.CacheKey()
}

func (s *Collection[T]) itemKey(id string) string {
	return s.storeID + ":item:" + id
}

// GetAll fetches the whole list, sharing one in-flight request across
// concurrent callers with identical params and consulting the cache first
// (spec.md §4.7 "get").
func (s *Collection[T]) GetAll(ctx context.Context, params adapter.Params) ([]T, error) {
	force, _ := params["_force"].(bool)
	key := s.listKey(params)

	s.mu.Lock()
	s.lastParams = params
	s.mu.Unlock()

	if !force {
		if res, ok := s.c.Get(key, s.ttl); ok {
			values := res.Data.([]T)
			if res.Stale {
				go s.revalidateList(context.Background(), key, params)
			}
			s.replaceAll(values)
			return s.Values(), nil
		}
	}

	return s.fetchList(ctx, key, params, true)
}

func (s *Collection[T]) revalidateList(ctx context.Context, key string, params adapter.Params) {
	s.setStatus(status.Partial{IsRevalidating: status.BoolPtr(true)})
	defer s.setStatus(status.Partial{IsRevalidating: status.BoolPtr(false)})
	_, _ = s.fetchList(ctx, key, params, false)
}

func (s *Collection[T]) fetchList(ctx context.Context, key string, params adapter.Params, foreground bool) ([]T, error) {
	if s.ad.GetAll == nil {
		err := &engineerrors.ConfigError{Operation: "getAll"}
		if foreground {
			s.reportError(err, "getAll", params, nil)
		}
		return nil, err
	}

	if foreground {
		s.setStatus(status.Partial{IsLoading: status.BoolPtr(true)})
		defer s.setStatus(status.Partial{IsLoading: status.BoolPtr(false)})
	}

	result, err, _ := s.dedup.Do(key, func() (interface{}, error) {
		values, err := s.ad.GetAll(ctx, params)
		if err != nil {
			return nil, err
		}
		s.c.Set(key, values)
		return values, nil
	})
	if err != nil {
		s.reportError(err, "getAll", params, nil)
		return nil, err
	}

	values := result.([]T)
	s.replaceAll(values)
	s.setStatus(status.Partial{LastUpdated: status.TimePtr(time.Now()), ClearError: true})
	return s.Values(), nil
}

func (s *Collection[T]) replaceAll(values []T) {
	items, order := normalize(values)
	s.mu.Lock()
	s.items = items
	s.order = order
	s.mu.Unlock()
	s.bus.Notify([]path.Path{path.Root()})
}

// GetOne fetches a single record and merges it into the collection: an
// existing id is updated in place preserving order, a new id is appended to
// the end (spec.md §4.7 "getOne").
func (s *Collection[T]) GetOne(ctx context.Context, id string, params adapter.Params) (T, error) {
	var zero T
	if s.ad.GetOne == nil {
		err := &engineerrors.ConfigError{Operation: "getOne"}
		s.reportError(err, "getOne", params, nil)
		return zero, err
	}

	key := s.itemKey(id)
	force, _ := params["_force"].(bool)
	if !force {
		if res, ok := s.c.Get(key, s.ttl); ok {
			v := res.Data.(T)
			if res.Stale {
				go s.revalidateOne(context.Background(), id, params)
			}
			s.mergeOne(v)
			return v, nil
		}
	}

	v, err := s.ad.GetOne(ctx, id, params)
	if err != nil {
		s.reportError(err, "getOne", params, nil)
		return zero, err
	}
	s.c.Set(key, v)
	s.mergeOne(v)
	return v, nil
}

func (s *Collection[T]) revalidateOne(ctx context.Context, id string, params adapter.Params) {
	v, err := s.ad.GetOne(ctx, id, params)
	if err != nil {
		s.reportError(err, "getOne", params, nil)
		return
	}
	s.c.Set(s.itemKey(id), v)
	s.mergeOne(v)
}

func (s *Collection[T]) mergeOne(v T) {
	id := v.ID()
	s.mu.Lock()
	_, existed := s.items[id]
	s.items[id] = v
	if !existed {
		s.order = append(s.order, id)
	}
	s.mu.Unlock()

	if existed {
		s.bus.Notify([]path.Path{path.Of(id)})
		return
	}
	s.bus.Notify([]path.Path{path.Root()})
}

// Create appends a server-assigned record. It is never optimistic since the
// server assigns ids (spec.md §4.7 "create").
func (s *Collection[T]) Create(ctx context.Context, value T, params adapter.Params) (T, error) {
	var zero T
	if s.ad.Create == nil {
		err := &engineerrors.ConfigError{Operation: "create"}
		s.reportError(err, "create", params, nil)
		return zero, err
	}

	created, err := s.ad.Create(ctx, value, params)
	if err != nil {
		s.reportError(err, "create", params, nil)
		return zero, err
	}

	id := created.ID()
	s.mu.Lock()
	s.items[id] = created
	s.order = append(s.order, id)
	s.mu.Unlock()

	s.c.ClearPrefix(s.storeID + ":list:")
	s.persistSave(ctx)
	s.setStatus(status.Partial{LastUpdated: status.TimePtr(time.Now()), ClearError: true})
	s.bus.Notify([]path.Path{path.Root()})
	return created, nil
}

// Patch optimistically merges partial into the record at id, reconciling or
// rolling back (spec.md §4.7 "patch").
func (s *Collection[T]) Patch(ctx context.Context, id string, partial map[string]interface{}) (T, error) {
	var zero T
	if s.ad.Patch == nil {
		err := &engineerrors.ConfigError{Operation: "patch"}
		s.reportError(err, "patch", nil, nil)
		return zero, err
	}

	s.mu.Lock()
	previous, ok := s.items[id]
	s.mu.Unlock()
	if !ok {
		err := &engineerrors.NotFoundError{ID: id}
		s.reportError(err, "patch", nil, nil)
		return zero, err
	}
	snapshot := txn.Begin(previous)

	rawPartial, err := record.ToPartial(partial)
	if err != nil {
		s.reportError(err, "patch", nil, nil)
		return zero, err
	}
	merged, changed, err := record.MergePatch(previous, rawPartial)
	if err != nil {
		s.reportError(err, "patch", nil, nil)
		return zero, err
	}

	s.mu.Lock()
	s.items[id] = merged
	s.mu.Unlock()
	s.c.Clear(s.itemKey(id))
	s.bus.Notify(fieldPaths(id, changed))

	reconciled, patchErr := s.ad.Patch(ctx, id, partial, nil)
	v, ok2 := snapshot.Resolve(txn.Outcome[T]{Reconciled: reconciled, Err: patchErr})
	if !ok2 {
		s.mu.Lock()
		s.items[id] = v
		s.mu.Unlock()
		s.bus.Notify([]path.Path{path.Of(id)})
		s.reportError(patchErr, "patch", nil, snapshot.Snapshot)
		return zero, patchErr
	}

	s.mu.Lock()
	s.items[id] = v
	s.mu.Unlock()
	s.persistSave(ctx)
	s.setStatus(status.Partial{LastUpdated: status.TimePtr(time.Now()), ClearError: true})
	s.bus.Notify([]path.Path{path.Of(id)})
	return v, nil
}

// fieldPaths renders the notification set for a patch's changed top-level
// keys: one [id, field] path per changed key, falling back to [id] when the
// merge touched nothing identifiable.
func fieldPaths(id string, changed []string) []path.Path {
	if len(changed) == 0 {
		return []path.Path{path.Of(id)}
	}
	out := make([]path.Path, len(changed))
	for i, k := range changed {
		out[i] = path.Of(id).Child(path.FromKey(k))
	}
	return out
}

// Delete optimistically removes the record at id, restoring it (with its
// original list position) on adapter failure (spec.md §4.7 "delete").
func (s *Collection[T]) Delete(ctx context.Context, id string, params adapter.Params) error {
	if s.ad.Delete == nil {
		err := &engineerrors.ConfigError{Operation: "delete"}
		s.reportError(err, "delete", params, nil)
		return err
	}

	s.mu.Lock()
	previous, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		err := &engineerrors.NotFoundError{ID: id}
		s.reportError(err, "delete", params, nil)
		return err
	}
	index := indexOf(s.order, id)
	delete(s.items, id)
	s.order = removeAt(s.order, index)
	s.mu.Unlock()

	s.c.ClearPrefix(s.storeID + ":")
	s.bus.Notify([]path.Path{path.Root()})

	if err := s.ad.Delete(ctx, id, params); err != nil {
		s.mu.Lock()
		s.items[id] = previous
		s.order = insertAt(s.order, index, id)
		s.mu.Unlock()
		s.bus.Notify([]path.Path{path.Root()})
		s.reportError(err, "delete", params, previous)
		return err
	}

	s.persistSave(ctx)
	s.setStatus(status.Partial{LastUpdated: status.TimePtr(time.Now()), ClearError: true})
	return nil
}

// Clear drops every record, invalidates every cache entry for this store,
// and notifies the root (spec.md §4.7 "clear").
func (s *Collection[T]) Clear() {
	s.mu.Lock()
	s.items = make(map[string]T)
	s.order = nil
	s.mu.Unlock()

	s.c.ClearPrefix(s.storeID + ":")
	s.persistSave(context.Background())
	s.bus.Notify([]path.Path{path.Root()})
}

func (s *Collection[T]) persistSave(ctx context.Context) {
	if s.ad.PersistSave == nil {
		return
	}
	if err := s.ad.PersistSave(ctx, s.Values()); err != nil {
		s.loggers.Warnf("%s: persist save failed: %v", s.storeID, err)
	}
}

// applyPush rewrites in-memory state for one push event, per the store's
// configured PushMode. It never touches the cache or the optimistic/rollback
// machinery (spec.md §4.7 "Push integration").
func (s *Collection[T]) applyPush(ev adapter.PushEvent[T]) {
	switch ev.Mode {
	case adapter.PushReplace:
		items, order := normalize(ev.Items)
		s.mu.Lock()
		s.items = items
		s.order = order
		s.mu.Unlock()
		s.bus.Notify([]path.Path{path.Root()})

	case adapter.PushAppend:
		for _, v := range ev.Items {
			id := v.ID()
			s.mu.Lock()
			if _, exists := s.items[id]; exists {
				s.mu.Unlock()
				continue
			}
			s.items[id] = v
			s.order = append(s.order, id)
			if s.maxPushItems > 0 && len(s.order) > s.maxPushItems {
				oldest := s.order[0]
				s.order = s.order[1:]
				delete(s.items, oldest)
			}
			s.mu.Unlock()
		}
		s.bus.Notify([]path.Path{path.Root()})

	case adapter.PushUpsert:
		for _, v := range ev.Items {
			s.mergeOne(v)
		}
	}

	s.setStatus(status.Partial{LastUpdated: status.TimePtr(time.Now())})
}

func indexOf(order []string, id string) int {
	for i, v := range order {
		if v == id {
			return i
		}
	}
	return -1
}

func removeAt(order []string, index int) []string {
	if index < 0 {
		return order
	}
	out := make([]string, 0, len(order)-1)
	out = append(out, order[:index]...)
	return append(out, order[index+1:]...)
}

func insertAt(order []string, index int, id string) []string {
	if index < 0 || index > len(order) {
		return append(order, id)
	}
	out := make([]string, 0, len(order)+1)
	out = append(out, order[:index]...)
	out = append(out, id)
	return append(out, order[index:]...)
}

// Dispose releases the monitor's listeners and timers, and any push
// subscription.
func (s *Collection[T]) Dispose() {
	if s.monitor != nil {
		s.monitor.Dispose()
	}
	if s.unsubscribePush != nil {
		s.unsubscribePush()
	}
}
