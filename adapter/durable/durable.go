// Package durable implements the durable adapter contract from spec.md
// §4.5: a synchronous key-value provider interface (the abstract
// collaborator the spec deliberately leaves to the host), plus a generic
// Persist helper that composes with other adapters to mirror in-memory
// state on every successful mutation (spec.md "persist sub-object with
// load()/save()").
//
// Reference implementations (memkv, boltkv) are provided so the module is
// runnable end-to-end without a host-supplied store, grounded on the
// MemoryStore/BoltStore pair in the companion example pack's
// internal/store/bolt.go.
package durable

import (
	"encoding/json"

	"github.com/pathstate/engine/engineerrors"
)

// KV is the synchronous key-value contract a durable backing must satisfy.
// It intentionally mirrors localStorage/sessionStorage-shaped hosts: get,
// set, and remove, each taking and returning raw bytes so the durable
// package owns JSON encoding rather than the host.
type KV interface {
	Get(key string) (value []byte, found bool, err error)
	Set(key string, value []byte) error
	Remove(key string) error
}

// Persist composes a KV store with a single JSON-serializable value,
// providing the Load/Save pair spec.md calls the "persist sub-object".
type Persist[T any] struct {
	kv  KV
	key string
}

// NewPersist creates a Persist helper bound to one storage key.
func NewPersist[T any](kv KV, key string) Persist[T] {
	return Persist[T]{kv: kv, key: key}
}

// Load reads and decodes the value at the bound key. found is false if the
// key has never been written. A decode failure is reported as a QuotaError
// (spec.md treats durable-layer failures as non-fatal to in-memory state).
func (p Persist[T]) Load() (value T, found bool, err error) {
	raw, found, err := p.kv.Get(p.key)
	if err != nil {
		return value, false, &engineerrors.QuotaError{Key: p.key, Cause: err}
	}
	if !found {
		return value, false, nil
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		return value, false, &engineerrors.QuotaError{Key: p.key, Cause: err}
	}
	return value, true, nil
}

// Save encodes and writes value at the bound key. Per spec.md §7 QuotaError
// policy, a write failure is returned to the caller (who logs it) but never
// rolls back the in-memory state that triggered it.
func (p Persist[T]) Save(value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return &engineerrors.QuotaError{Key: p.key, Cause: err}
	}
	if err := p.kv.Set(p.key, raw); err != nil {
		return &engineerrors.QuotaError{Key: p.key, Cause: err}
	}
	return nil
}

// Clear removes the bound key entirely.
func (p Persist[T]) Clear() error {
	if err := p.kv.Remove(p.key); err != nil {
		return &engineerrors.QuotaError{Key: p.key, Cause: err}
	}
	return nil
}
