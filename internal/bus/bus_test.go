package bus

import (
	"testing"

	"github.com/pathstate/engine/path"
	"github.com/stretchr/testify/assert"
)

func TestOverlapRule(t *testing.T) {
	b := New()

	var fired []string
	record := func(name string) Listener {
		return func() { fired = append(fired, name) }
	}

	b.Subscribe(path.Root(), record("root"))
	b.Subscribe(path.Of("u1"), record("u1"))
	b.Subscribe(path.Of("u1", "name"), record("u1.name"))
	b.Subscribe(path.Of("u1", "email"), record("u1.email"))
	b.Subscribe(path.Of("u2"), record("u2"))

	b.Notify([]path.Path{path.Of("u1", "name")})

	assert.ElementsMatch(t, []string{"root", "u1", "u1.name"}, fired)
}

func TestUnsubscribeIsImmediateAndIdempotent(t *testing.T) {
	b := New()
	calls := 0
	unsub := b.Subscribe(path.Of("x"), func() { calls++ })

	b.Notify([]path.Path{path.Of("x")})
	assert.Equal(t, 1, calls)

	unsub()
	unsub() // idempotent

	b.Notify([]path.Path{path.Of("x")})
	assert.Equal(t, 1, calls)
}

func TestNotifyFiresEachMatchingListenerAtMostOnce(t *testing.T) {
	b := New()
	calls := 0
	b.Subscribe(path.Of("u1"), func() { calls++ })

	// Two changed paths under the same subscription both overlap it.
	b.Notify([]path.Path{path.Of("u1", "name"), path.Of("u1", "email")})

	assert.Equal(t, 1, calls)
}

func TestRootChangeNotifiesEverySubscriber(t *testing.T) {
	b := New()
	var n int
	b.Subscribe(path.Of("a"), func() { n++ })
	b.Subscribe(path.Of("b", "c"), func() { n++ })
	b.Subscribe(path.Root(), func() { n++ })

	b.Notify([]path.Path{path.Root()})

	assert.Equal(t, 3, n)
}

func TestOnFirstSubscribeFiresExactlyOnce(t *testing.T) {
	fires := 0
	b := New(WithOnFirstSubscribe(func() { fires++ }))

	b.Subscribe(path.Of("a"), func() {})
	b.Subscribe(path.Of("b"), func() {})

	assert.Equal(t, 1, fires)
}

func TestListenerPanicDoesNotStopOtherListeners(t *testing.T) {
	b := New()
	ran := false
	b.Subscribe(path.Of("a"), func() { panic("boom") })
	b.Subscribe(path.Of("a"), func() { ran = true })

	assert.NotPanics(t, func() {
		b.Notify([]path.Path{path.Of("a")})
	})
	assert.True(t, ran)
}

func TestReentrantNotifyIsPermitted(t *testing.T) {
	b := New()
	inner := 0
	b.Subscribe(path.Of("b"), func() { inner++ })
	b.Subscribe(path.Of("a"), func() {
		b.Notify([]path.Path{path.Of("b")})
	})

	b.Notify([]path.Path{path.Of("a")})
	assert.Equal(t, 1, inner)
}

func TestNumericStringSegmentsCollideInBuckets(t *testing.T) {
	b := New()
	calls := 0
	b.Subscribe(path.Of(3), func() { calls++ })

	b.Notify([]path.Path{path.Of("3")})

	assert.Equal(t, 1, calls)
}
