// Package adapter defines the uniform contract that plugs remote, push, and
// durable backings into a store (spec.md §4.5, C5): each adapter kind is a
// plain bag of optional asynchronous operations, and a store configuration
// composes several such bags with "last write wins" semantics.
//
// Grounded on the functional-options composition used for relay.Config and
// httpconfig.HTTPConfig in the companion example pack (small option structs
// merged field-by-field in caller-visible order), generalized here to merge
// whole operation bags instead of scalar fields.
package adapter

import (
	"context"
	"encoding/json"

	"github.com/pathstate/engine/record"
)

// Params is the parameter bag passed to every adapter operation. It is a
// plain map so callers can thread identifiers, query parameters, or a
// precomputed URL template path var without the engine knowing their shape.
// The reserved key "_force" reaches adapters unchanged: CacheKey ignores it,
// and remote.BuildURL strips it before building a request URL (spec.md §9
// "normalize and strip it exactly once").
type Params map[string]interface{}

// Clone returns a shallow copy of p, safe for a callee to mutate.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// CacheKey returns a stable serialization of p suitable for use as a cache
// or dedup key (spec.md §4.7 "stable serialization sorts keys to guarantee
// cache coherence"). encoding/json already sorts map keys when marshaling,
// so this is a direct application of that guarantee rather than a
// hand-rolled canonicalization.
func (p Params) CacheKey() string {
	without := p.Clone()
	delete(without, "_force")
	raw, err := json.Marshal(without)
	if err != nil {
		return ""
	}
	return string(raw)
}

// SingleAdapter is the operation bag for a single-value store (C6). Every
// field is independently optional; a store invoking an unset operation
// raises a ConfigError synchronously (spec.md §7).
type SingleAdapter[T any] struct {
	Get   func(ctx context.Context, params Params) (T, error)
	Set   func(ctx context.Context, value T, params Params) (T, error)
	Patch func(ctx context.Context, partial map[string]interface{}, params Params) (T, error)
	Delete func(ctx context.Context, params Params) error

	// Persist mirrors in-memory state to a durable.KV-backed store. It is
	// independent of Get/Set/Patch/Delete so a durable adapter can be
	// composed alongside a remote or push adapter purely for warm-start
	// and mirroring (spec.md §4.5 "persist sub-object").
	PersistLoad func(ctx context.Context) (T, bool, error)
	PersistSave func(ctx context.Context, value T) error

	// Subscribe wires a push adapter's event stream into the store. It
	// returns an unsubscribe function.
	Subscribe func(onEvent func(T)) (unsubscribe func())
}

// CollectionAdapter is the operation bag for a keyed collection store (C7).
// T must expose a stable identifier via record.Identifiable so the store can
// key optimistic updates, cache entries, and push upserts.
type CollectionAdapter[T record.Identifiable] struct {
	GetAll func(ctx context.Context, params Params) ([]T, error)
	GetOne func(ctx context.Context, id string, params Params) (T, error)
	Create func(ctx context.Context, value T, params Params) (T, error)
	Patch  func(ctx context.Context, id string, partial map[string]interface{}, params Params) (T, error)
	Delete func(ctx context.Context, id string, params Params) error

	PersistLoad func(ctx context.Context) ([]T, bool, error)
	PersistSave func(ctx context.Context, values []T) error

	Subscribe func(onEvent func(PushEvent[T])) (unsubscribe func())
}

// PushMode determines how a push payload mutates a collection's in-memory
// list (spec.md §4.5).
type PushMode int

const (
	// PushReplace replaces the entire list with the event payload.
	PushReplace PushMode = iota
	// PushAppend appends the event's items, subject to dedupe and a max bound.
	PushAppend
	// PushUpsert inserts or replaces each of the event's items by identifier.
	PushUpsert
)

// PushEvent is one message delivered by a collection's push adapter.
type PushEvent[T record.Identifiable] struct {
	Mode  PushMode
	Items []T // the full replacement list (PushReplace) or the items to apply in order (PushAppend/PushUpsert)
}

// ComposeSingle merges SingleAdapter bags left to right: for each operation,
// the last non-nil value wins (spec.md §4.5 "Composition rule").
func ComposeSingle[T any](adapters ...SingleAdapter[T]) SingleAdapter[T] {
	var out SingleAdapter[T]
	for _, a := range adapters {
		if a.Get != nil {
			out.Get = a.Get
		}
		if a.Set != nil {
			out.Set = a.Set
		}
		if a.Patch != nil {
			out.Patch = a.Patch
		}
		if a.Delete != nil {
			out.Delete = a.Delete
		}
		if a.PersistLoad != nil {
			out.PersistLoad = a.PersistLoad
		}
		if a.PersistSave != nil {
			out.PersistSave = a.PersistSave
		}
		if a.Subscribe != nil {
			out.Subscribe = a.Subscribe
		}
	}
	return out
}

// ComposeCollection merges CollectionAdapter bags left to right under the
// same last-write-wins rule as ComposeSingle.
func ComposeCollection[T record.Identifiable](adapters ...CollectionAdapter[T]) CollectionAdapter[T] {
	var out CollectionAdapter[T]
	for _, a := range adapters {
		if a.GetAll != nil {
			out.GetAll = a.GetAll
		}
		if a.GetOne != nil {
			out.GetOne = a.GetOne
		}
		if a.Create != nil {
			out.Create = a.Create
		}
		if a.Patch != nil {
			out.Patch = a.Patch
		}
		if a.Delete != nil {
			out.Delete = a.Delete
		}
		if a.PersistLoad != nil {
			out.PersistLoad = a.PersistLoad
		}
		if a.PersistSave != nil {
			out.PersistSave = a.PersistSave
		}
		if a.Subscribe != nil {
			out.Subscribe = a.Subscribe
		}
	}
	return out
}
