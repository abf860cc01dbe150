package store

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathstate/engine/adapter"
	"github.com/pathstate/engine/engineerrors"
	"github.com/pathstate/engine/internal/cache"
	"github.com/pathstate/engine/path"
)

type item struct {
	IDValue string `json:"id"`
	Name    string `json:"name"`
	Count   int    `json:"count"`
}

func (it item) ID() string { return it.IDValue }

func TestCollectionGetAllFetchesOnceAndCaches(t *testing.T) {
	var calls int32
	ad := adapter.CollectionAdapter[item]{
		GetAll: func(ctx context.Context, params adapter.Params) ([]item, error) {
			atomic.AddInt32(&calls, 1)
			return []item{{IDValue: "1", Name: "a"}, {IDValue: "2", Name: "b"}}, nil
		},
	}
	s := NewCollection("items", ad, CollectionOptions{TTL: time.Minute})

	values, err := s.GetAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, values, 2)
	assert.Equal(t, "1", values[0].ID())
	assert.Equal(t, "2", values[1].ID())

	_, err = s.GetAll(context.Background(), nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestCollectionGetAllRevalidatesStaleEntry(t *testing.T) {
	now := time.Unix(0, 0)
	c := cache.New(cache.WithClock(func() time.Time { return now }))

	var calls int32
	done := make(chan struct{})
	ad := adapter.CollectionAdapter[item]{
		GetAll: func(ctx context.Context, params adapter.Params) ([]item, error) {
			n := atomic.AddInt32(&calls, 1)
			if n == 2 {
				defer close(done)
			}
			return []item{{IDValue: "1", Count: int(n)}}, nil
		},
	}
	s := NewCollection("items", ad, CollectionOptions{Cache: c, TTL: 60 * time.Second})

	values, err := s.GetAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, values[0].Count)

	now = now.Add(45 * time.Second)
	values, err = s.GetAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, values[0].Count, "stale read returns the cached value")

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected background revalidation")
	}
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestCollectionGetOneUpdatesInPlacePreservingOrder(t *testing.T) {
	ad := adapter.CollectionAdapter[item]{
		GetAll: func(ctx context.Context, params adapter.Params) ([]item, error) {
			return []item{{IDValue: "1", Name: "a"}, {IDValue: "2", Name: "b"}}, nil
		},
		GetOne: func(ctx context.Context, id string, params adapter.Params) (item, error) {
			return item{IDValue: id, Name: "updated"}, nil
		},
	}
	s := NewCollection("items", ad, CollectionOptions{TTL: time.Minute})
	_, err := s.GetAll(context.Background(), nil)
	require.NoError(t, err)

	_, err = s.GetOne(context.Background(), "1", nil)
	require.NoError(t, err)

	values := s.Values()
	require.Len(t, values, 2)
	assert.Equal(t, "1", values[0].ID())
	assert.Equal(t, "updated", values[0].Name)
	assert.Equal(t, "2", values[1].ID())
}

func TestCollectionGetOneAppendsNewIdToEnd(t *testing.T) {
	ad := adapter.CollectionAdapter[item]{
		GetOne: func(ctx context.Context, id string, params adapter.Params) (item, error) {
			return item{IDValue: id, Name: "fresh"}, nil
		},
	}
	s := NewCollection("items", ad, CollectionOptions{})

	_, err := s.GetOne(context.Background(), "new", nil)
	require.NoError(t, err)

	values := s.Values()
	require.Len(t, values, 1)
	assert.Equal(t, "new", values[0].ID())
}

func TestCollectionCreateAppendsAndInvalidatesListCache(t *testing.T) {
	var listCalls int32
	ad := adapter.CollectionAdapter[item]{
		GetAll: func(ctx context.Context, params adapter.Params) ([]item, error) {
			atomic.AddInt32(&listCalls, 1)
			return []item{{IDValue: "1"}}, nil
		},
		Create: func(ctx context.Context, value item, params adapter.Params) (item, error) {
			return item{IDValue: "server-assigned", Name: value.Name}, nil
		},
	}
	s := NewCollection("items", ad, CollectionOptions{TTL: time.Minute})
	_, err := s.GetAll(context.Background(), nil)
	require.NoError(t, err)

	created, err := s.Create(context.Background(), item{Name: "new"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "server-assigned", created.ID())

	values := s.Values()
	require.Len(t, values, 2)
	assert.Equal(t, "server-assigned", values[1].ID())

	_, err = s.GetAll(context.Background(), nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&listCalls), "list cache was invalidated by create")
}

func TestCollectionPatchNotifiesFieldPathsThenRecordPath(t *testing.T) {
	ad := adapter.CollectionAdapter[item]{
		GetAll: func(ctx context.Context, params adapter.Params) ([]item, error) {
			return []item{{IDValue: "1", Name: "a", Count: 1}}, nil
		},
		Patch: func(ctx context.Context, id string, partial map[string]interface{}, params adapter.Params) (item, error) {
			return item{IDValue: id, Name: "a", Count: 2}, nil
		},
	}
	s := NewCollection("items", ad, CollectionOptions{TTL: time.Minute})
	_, err := s.GetAll(context.Background(), nil)
	require.NoError(t, err)

	var fieldNotified, recordNotified int
	s.Subscribe(path.Of("1", "count"), func() { fieldNotified++ })
	s.Subscribe(path.Of("1"), func() { recordNotified++ })

	v, err := s.Patch(context.Background(), "1", map[string]interface{}{"count": 2})
	require.NoError(t, err)
	assert.Equal(t, 2, v.Count)
	assert.GreaterOrEqual(t, fieldNotified, 1)
	assert.GreaterOrEqual(t, recordNotified, 1)
}

func TestCollectionPatchOnAbsentIdReturnsNotFoundError(t *testing.T) {
	ad := adapter.CollectionAdapter[item]{
		Patch: func(ctx context.Context, id string, partial map[string]interface{}, params adapter.Params) (item, error) {
			return item{}, nil
		},
	}
	s := NewCollection("items", ad, CollectionOptions{})

	_, err := s.Patch(context.Background(), "missing", map[string]interface{}{"count": 1})
	var notFound *engineerrors.NotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestCollectionPatchRollsBackOnFailure(t *testing.T) {
	ad := adapter.CollectionAdapter[item]{
		GetAll: func(ctx context.Context, params adapter.Params) ([]item, error) {
			return []item{{IDValue: "1", Count: 1}}, nil
		},
		Patch: func(ctx context.Context, id string, partial map[string]interface{}, params adapter.Params) (item, error) {
			return item{}, errors.New("boom")
		},
	}
	s := NewCollection("items", ad, CollectionOptions{TTL: time.Minute})
	_, err := s.GetAll(context.Background(), nil)
	require.NoError(t, err)

	_, err = s.Patch(context.Background(), "1", map[string]interface{}{"count": 99})
	assert.Error(t, err)

	v, ok := s.Get("1")
	require.True(t, ok)
	assert.Equal(t, 1, v.Count, "rolled back to the pre-patch value")
}

func TestCollectionDeleteReinsertsAtCapturedIndexOnFailure(t *testing.T) {
	ad := adapter.CollectionAdapter[item]{
		GetAll: func(ctx context.Context, params adapter.Params) ([]item, error) {
			return []item{{IDValue: "1"}, {IDValue: "2"}, {IDValue: "3"}}, nil
		},
		Delete: func(ctx context.Context, id string, params adapter.Params) error {
			return errors.New("boom")
		},
	}
	s := NewCollection("items", ad, CollectionOptions{TTL: time.Minute})
	_, err := s.GetAll(context.Background(), nil)
	require.NoError(t, err)

	err = s.Delete(context.Background(), "2", nil)
	assert.Error(t, err)

	values := s.Values()
	require.Len(t, values, 3)
	assert.Equal(t, []string{"1", "2", "3"}, idsOf(values))
}

func TestCollectionDeleteRemovesOnSuccess(t *testing.T) {
	ad := adapter.CollectionAdapter[item]{
		GetAll: func(ctx context.Context, params adapter.Params) ([]item, error) {
			return []item{{IDValue: "1"}, {IDValue: "2"}}, nil
		},
		Delete: func(ctx context.Context, id string, params adapter.Params) error {
			return nil
		},
	}
	s := NewCollection("items", ad, CollectionOptions{TTL: time.Minute})
	_, err := s.GetAll(context.Background(), nil)
	require.NoError(t, err)

	require.NoError(t, s.Delete(context.Background(), "1", nil))

	values := s.Values()
	require.Len(t, values, 1)
	assert.Equal(t, "2", values[0].ID())
}

func TestCollectionClearDropsEverything(t *testing.T) {
	ad := adapter.CollectionAdapter[item]{
		GetAll: func(ctx context.Context, params adapter.Params) ([]item, error) {
			return []item{{IDValue: "1"}}, nil
		},
	}
	s := NewCollection("items", ad, CollectionOptions{TTL: time.Minute})
	_, err := s.GetAll(context.Background(), nil)
	require.NoError(t, err)

	s.Clear()
	assert.Empty(t, s.Values())
}

func TestCollectionPushReplaceOverwritesList(t *testing.T) {
	var onEvent func(adapter.PushEvent[item])
	ad := adapter.CollectionAdapter[item]{
		Subscribe: func(fn func(adapter.PushEvent[item])) func() {
			onEvent = fn
			return func() {}
		},
	}
	s := NewCollection("items", ad, CollectionOptions{})
	require.NotNil(t, onEvent)

	onEvent(adapter.PushEvent[item]{Mode: adapter.PushReplace, Items: []item{{IDValue: "a"}, {IDValue: "b"}}})

	assert.Equal(t, []string{"a", "b"}, idsOf(s.Values()))
}

func TestCollectionPushUpsertUpdatesExistingPreservingOrder(t *testing.T) {
	var onEvent func(adapter.PushEvent[item])
	ad := adapter.CollectionAdapter[item]{
		GetAll: func(ctx context.Context, params adapter.Params) ([]item, error) {
			return []item{{IDValue: "1", Count: 1}, {IDValue: "2", Count: 1}}, nil
		},
		Subscribe: func(fn func(adapter.PushEvent[item])) func() {
			onEvent = fn
			return func() {}
		},
	}
	s := NewCollection("items", ad, CollectionOptions{TTL: time.Minute})
	_, err := s.GetAll(context.Background(), nil)
	require.NoError(t, err)

	onEvent(adapter.PushEvent[item]{Mode: adapter.PushUpsert, Items: []item{{IDValue: "1", Count: 99}}})

	values := s.Values()
	assert.Equal(t, []string{"1", "2"}, idsOf(values))
	assert.Equal(t, 99, values[0].Count)
}

func TestCollectionPushAppendDedupesAndBoundsSize(t *testing.T) {
	var onEvent func(adapter.PushEvent[item])
	ad := adapter.CollectionAdapter[item]{
		Subscribe: func(fn func(adapter.PushEvent[item])) func() {
			onEvent = fn
			return func() {}
		},
	}
	s := NewCollection("items", ad, CollectionOptions{MaxPushAppendItems: 2})
	require.NotNil(t, onEvent)

	onEvent(adapter.PushEvent[item]{Mode: adapter.PushAppend, Items: []item{{IDValue: "1"}}})
	onEvent(adapter.PushEvent[item]{Mode: adapter.PushAppend, Items: []item{{IDValue: "1"}}}) // duplicate, ignored
	onEvent(adapter.PushEvent[item]{Mode: adapter.PushAppend, Items: []item{{IDValue: "2"}}})
	onEvent(adapter.PushEvent[item]{Mode: adapter.PushAppend, Items: []item{{IDValue: "3"}}}) // evicts "1"

	assert.Equal(t, []string{"2", "3"}, idsOf(s.Values()))
}

func TestCollectionPersistLoadWarmsStateAtConstruction(t *testing.T) {
	ad := adapter.CollectionAdapter[item]{
		PersistLoad: func(ctx context.Context) ([]item, bool, error) {
			return []item{{IDValue: "1", Name: "warm"}}, true, nil
		},
	}
	s := NewCollection("items", ad, CollectionOptions{})

	values := s.Values()
	require.Len(t, values, 1)
	assert.Equal(t, "warm", values[0].Name)
}

func TestEntriesYieldsPerIdProxiesInInsertionOrder(t *testing.T) {
	ad := adapter.CollectionAdapter[item]{
		GetAll: func(ctx context.Context, params adapter.Params) ([]item, error) {
			return []item{{IDValue: "1", Name: "ann"}, {IDValue: "2", Name: "bob"}}, nil
		},
	}
	s := NewCollection("items", ad, CollectionOptions{TTL: time.Minute})
	_, err := s.GetAll(context.Background(), nil)
	require.NoError(t, err)

	entries := s.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "1", entries[0].ID)
	assert.Equal(t, "2", entries[1].ID)

	name, ok := entries[0].Handle.Get("name").Value()
	assert.True(t, ok)
	assert.Equal(t, "ann", name)
}

func TestRootProxyResolvesOneRecordsFieldLiveAcrossPatch(t *testing.T) {
	items := map[string]item{"1": {IDValue: "1", Name: "ann", Count: 1}}
	ad := adapter.CollectionAdapter[item]{
		GetAll: func(ctx context.Context, params adapter.Params) ([]item, error) {
			out := make([]item, 0, len(items))
			for _, v := range items {
				out = append(out, v)
			}
			return out, nil
		},
		Patch: func(ctx context.Context, id string, partial map[string]interface{}, params adapter.Params) (item, error) {
			v := items[id]
			v.Count = 2
			items[id] = v
			return v, nil
		},
	}
	s := NewCollection("items", ad, CollectionOptions{TTL: time.Minute})
	_, err := s.GetAll(context.Background(), nil)
	require.NoError(t, err)

	count := s.Root().Get("1").Get("count")

	var notified bool
	unsubscribe := s.Subscribe(count.Path(), func() { notified = true })
	defer unsubscribe()

	_, err = s.Patch(context.Background(), "1", map[string]interface{}{"count": 2})
	require.NoError(t, err)
	assert.True(t, notified)

	v, ok := count.Value()
	assert.True(t, ok)
	assert.Equal(t, float64(2), v)
}

func idsOf(values []item) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v.ID()
	}
	return out
}
