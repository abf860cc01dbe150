// Package record defines the constraints that collection and single-value
// stores place on the application types they hold (spec.md §3.1 "Entity
// record") and the structural merge/patch helpers those stores use for
// optimistic partial updates.
package record

import (
	"encoding/json"

	"github.com/pathstate/engine/path"
)

// Identifiable is satisfied by any record type a Collection store can hold.
// ID must return the record's identity in its canonical string form, even
// when the underlying field is numeric (spec.md §4.7 "Id normalization").
type Identifiable interface {
	ID() string
}

// Clone deep-copies a record via a JSON round-trip. This is how the stores
// take an independent rollback snapshot before an optimistic apply (spec.md
// §3.2 "After a failed optimistic mutation... byte-for-byte"), since Go has
// no generic structural-clone builtin and the records here are always
// JSON-serializable by contract with the remote adapter.
func Clone[T any](v T) (T, error) {
	var out T
	data, err := json.Marshal(v)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, err
	}
	return out, nil
}

// MergePatch applies partial on top of base by marshaling both to JSON
// objects and overwriting base's top-level keys with partial's, then
// decoding back into T. It returns the set of top-level keys that changed
// value (by serialized form), which the collection store uses to compute
// precise per-field notification paths (spec.md §4.7 step 4).
func MergePatch[T any](base T, partial map[string]json.RawMessage) (T, []string, error) {
	var out T

	baseData, err := json.Marshal(base)
	if err != nil {
		return out, nil, err
	}

	var baseMap map[string]json.RawMessage
	if err := json.Unmarshal(baseData, &baseMap); err != nil {
		return out, nil, err
	}
	if baseMap == nil {
		baseMap = map[string]json.RawMessage{}
	}

	var changed []string
	for k, v := range partial {
		if old, ok := baseMap[k]; !ok || !rawEqual(old, v) {
			changed = append(changed, k)
		}
		baseMap[k] = v
	}

	merged, err := json.Marshal(baseMap)
	if err != nil {
		return out, nil, err
	}
	if err := json.Unmarshal(merged, &out); err != nil {
		return out, nil, err
	}
	return out, changed, nil
}

func rawEqual(a, b json.RawMessage) bool {
	return string(a) == string(b)
}

// ResolvePath navigates a JSON-serializable value field by field along p,
// the way the observation proxy's Resolver does over a store's live state
// (spec.md §4.2): v is marshaled to its generic JSON shape once, then each
// segment indexes into the resulting map or slice. It reports false for any
// segment that does not resolve, matching the proxy's "hole traversal"
// contract rather than panicking on a missing field or out-of-range index.
func ResolvePath(v interface{}, p path.Path) (interface{}, bool) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	var cur interface{}
	if err := json.Unmarshal(data, &cur); err != nil {
		return nil, false
	}

	for _, seg := range p {
		switch node := cur.(type) {
		case map[string]interface{}:
			next, ok := node[seg.String()]
			if !ok {
				return nil, false
			}
			cur = next
		case []interface{}:
			if !seg.IsInt() {
				return nil, false
			}
			i := seg.Int()
			if i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// ToPartial converts any JSON-serializable partial value (typically a struct
// with only the changed fields set, or a map[string]any) into the
// map[string]json.RawMessage form MergePatch expects.
func ToPartial(v interface{}) (map[string]json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
