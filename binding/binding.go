// Package binding implements the minimal host-facing surface spec.md §6
// calls for: "subscribe(subscribable, onChange) -> unsubscribe" and
// "getSnapshot(subscribable) -> value", specified so that any render-loop
// primitive (a host's "external store" hook, a manual polling loop, a test
// harness) can drive a store or a proxy handle uniformly. Everything else
// about the UI layer — how a host schedules re-renders, which framework
// calls these two operations — is explicitly out of scope (spec.md §2);
// this package only supplies the adapters a host would otherwise have to
// hand-write per store type.
package binding

import (
	"github.com/pathstate/engine/internal/bus"
	"github.com/pathstate/engine/internal/proxy"
	"github.com/pathstate/engine/path"
)

// Subscribable is anything the binding can subscribe to and snapshot: a
// root store (subscribing at path.Root(), per spec.md §6) or a proxy
// handle (subscribing at its recorded path).
type Subscribable interface {
	Path() path.Path
	Subscribe(listener bus.Listener) bus.Unsubscribe
	Snapshot() (interface{}, bool)
}

// Subscribe registers onChange against s and returns an unsubscribe
// function (spec.md §6 "subscribe(subscribable, onChange) -> unsubscribe").
func Subscribe(s Subscribable, onChange bus.Listener) bus.Unsubscribe {
	return s.Subscribe(onChange)
}

// GetSnapshot returns s's current value (spec.md §6 "getSnapshot(subscribable)
// -> value"): for a root store, its .value; for a proxy, the value resolved
// by its recorded path.
func GetSnapshot(s Subscribable) (interface{}, bool) {
	return s.Snapshot()
}

// rootSubscribable adapts a store's own Subscribe/snapshot surface to
// Subscribable without requiring every generic store type to implement this
// package's interface directly (Go's type system cannot express "any
// store[T] for any T" as a single non-generic interface).
type rootSubscribable struct {
	subscribe func(bus.Listener) bus.Unsubscribe
	snapshot  func() (interface{}, bool)
}

func (r rootSubscribable) Path() path.Path { return path.Root() }

func (r rootSubscribable) Subscribe(listener bus.Listener) bus.Unsubscribe {
	return r.subscribe(listener)
}

func (r rootSubscribable) Snapshot() (interface{}, bool) {
	return r.snapshot()
}

// rootStore is the minimal slice of store.Single[T] and store.Collection[T]
// that FromSingle/FromCollection need. Depending on this narrow interface
// rather than the concrete generic types sidesteps the fact that Go cannot
// express "any store[T] for any T" as a single non-generic interface, and
// keeps this package usable against any type that happens to expose the
// same root-level subscribe surface.
type rootStore interface {
	Subscribe(p path.Path, listener bus.Listener) bus.Unsubscribe
}

// FromSingle adapts a single-value store to Subscribable. value should
// return the store's current snapshot, typically s.Value.
func FromSingle(s rootStore, value func() (interface{}, bool)) Subscribable {
	return rootSubscribable{
		subscribe: func(listener bus.Listener) bus.Unsubscribe { return s.Subscribe(path.Root(), listener) },
		snapshot:  value,
	}
}

// FromCollection adapts a collection store to Subscribable. values should
// return the store's current ordered record list, typically s.Values.
func FromCollection[T any](s rootStore, values func() []T) Subscribable {
	return rootSubscribable{
		subscribe: func(listener bus.Listener) bus.Unsubscribe { return s.Subscribe(path.Root(), listener) },
		snapshot:  func() (interface{}, bool) { return values(), true },
	}
}

// proxySubscribable adapts a proxy.Handle plus the bus of the store it was
// derived from: the handle itself only knows how to resolve its value
// (spec.md §4.2 "Laziness"), not how to subscribe, since subscribing is a
// property of the owning store, not of any one path into it.
type proxySubscribable struct {
	handle *proxy.Handle
	source *bus.Bus
}

func (p proxySubscribable) Path() path.Path { return p.handle.Path() }

func (p proxySubscribable) Subscribe(listener bus.Listener) bus.Unsubscribe {
	return p.source.Subscribe(p.handle.Path(), listener)
}

func (p proxySubscribable) Snapshot() (interface{}, bool) {
	return p.handle.Value()
}

// FromProxy adapts a proxy handle to Subscribable, given the bus of the
// store it was derived from.
func FromProxy(h *proxy.Handle, source *bus.Bus) Subscribable {
	return proxySubscribable{handle: h, source: source}
}
