// Package proxy implements the lazily-materialized observation handle
// described in spec.md §4.2 (C2): a recursive, path-tracking wrapper over a
// live store that re-resolves from the root on every read instead of
// caching a reference, so it never goes stale across a mutation and never
// needs cycle bookkeeping (spec.md §9 "Cyclic state. None allowed.").
//
// Go has no dynamic property access, so the "prototype-like object with
// dynamic property access" of the source system (spec.md §9) becomes a
// Handle type carrying the recorded path vector, with explicit Get/Index
// traversal methods instead of an index operator, and a generic Value[T]
// function for typed reads.
package proxy

import "github.com/pathstate/engine/path"

// Resolver navigates fresh from a store's root down to p and reports
// whether a value exists there. It is supplied once, by the owning store,
// and closed over by every Handle derived from that store's root.
type Resolver func(p path.Path) (value interface{}, present bool)

// Handle is a lazy, path-tracking view over one location in a store's state
// tree. It holds no data of its own; every read re-navigates through its
// Resolver. The zero value is not usable — construct with NewRoot.
type Handle struct {
	path     path.Path
	resolver Resolver
}

// NewRoot creates the root handle (path.Root()) for a store.
func NewRoot(resolver Resolver) *Handle {
	return &Handle{path: path.Root(), resolver: resolver}
}

// Path returns the path this handle was traversed to.
func (h *Handle) Path() path.Path { return h.path }

// IsEngineProxy is the identity marker from spec.md §4.2 ("Every proxy
// exposes an internal marker distinguishing it from plain state objects").
// External code should type-assert against the Marker interface rather than
// relying on structural shape.
func (h *Handle) IsEngineProxy() bool { return true }

// Marker is implemented only by *Handle; use this for the "is this a
// proxy" check the spec calls for, instead of structural typing.
type Marker interface {
	IsEngineProxy() bool
}

var _ Marker = (*Handle)(nil)

// Get traverses into a string-keyed child. Per spec.md §4.2 "Numeric-string
// coercion", a decimal string with no leading zero is recorded as an
// integer segment; this makes h.Get("3") and h.Index(3) produce identical
// paths (spec.md §8 property 8).
func (h *Handle) Get(key string) *Handle {
	return h.Child(path.FromKey(key))
}

// Index traverses into an integer-keyed child, e.g. a list element.
func (h *Handle) Index(i int) *Handle {
	return h.Child(path.Int(i))
}

// Child returns a new handle extending this one by seg. Creation is purely
// structural — no lookup happens until Value is called (spec.md §4.2
// "Laziness").
func (h *Handle) Child(seg path.Segment) *Handle {
	return &Handle{path: h.path.Child(seg), resolver: h.resolver}
}

// Value resolves the handle's current value by navigating fresh from the
// store root. present is false for a currently-absent segment (spec.md
// §4.2 "Hole traversal") — the handle itself remains valid and its
// subscription still fires once that segment materializes.
func (h *Handle) Value() (value interface{}, present bool) {
	return h.resolver(h.path)
}

// Value is the generic free-function form: it resolves h and attempts to
// assert the result to T, returning the
// zero value and false if the value is absent or of a different type. This
// is the generic-Go analogue of the source's automatic primitive coercion
// via valueOf/toString hooks (spec.md §4.2 "Primitive leaves").
func Value[T any](h *Handle) (T, bool) {
	var zero T
	raw, present := h.Value()
	if !present {
		return zero, false
	}
	typed, ok := raw.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}
