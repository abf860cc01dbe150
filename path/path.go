// Package path implements the structural path vectors used to address
// locations in a store's state tree and to route change notifications
// through the subscriber bus (internal/bus).
//
// A Path is never a pointer into the tree: it re-resolves from the store
// root on every read, which is what lets the observation proxy (internal/proxy)
// stay consistent across mutations without any cycle bookkeeping.
package path

import "strconv"

// Segment is one element of a Path: either a string key or a non-negative
// integer index. Exactly one of the two forms is meaningful at a time;
// IsInt reports which.
type Segment struct {
	str   string
	index int
	isInt bool
}

// String builds a string segment.
func String(s string) Segment {
	return Segment{str: s}
}

// Int builds an integer segment.
func Int(i int) Segment {
	return Segment{index: i, isInt: true}
}

// FromKey builds a Segment the way traversal of a dynamic property name does:
// a decimal string with no leading zero (other than "0" itself) is recorded
// as an integer segment, everything else is recorded verbatim as a string.
// This is the coercion rule a generic Go index operator cannot express on its
// own, so it lives here instead (spec.md Design Notes, §9).
func FromKey(key string) Segment {
	if n, ok := parseCanonicalInt(key); ok {
		return Int(n)
	}
	return String(key)
}

func parseCanonicalInt(key string) (int, bool) {
	if key == "" {
		return 0, false
	}
	if key == "0" {
		return 0, true
	}
	if key[0] == '0' {
		return 0, false // leading zero disqualifies, e.g. "007"
	}
	for _, r := range key {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(key)
	if err != nil {
		return 0, false
	}
	return n, true
}

// IsInt reports whether this segment is an integer index.
func (s Segment) IsInt() bool { return s.isInt }

// Int returns the integer value; only meaningful when IsInt() is true.
func (s Segment) Int() int { return s.index }

// String returns the segment rendered as a string, regardless of kind.
func (s Segment) String() string {
	if s.isInt {
		return strconv.Itoa(s.index)
	}
	return s.str
}

// Equal reports whether two segments address the same location. Segments
// compare by kind-and-value, so Int(3) and String("3") are distinct:
// normalization to Int happens once, at traversal time (FromKey), not here.
func (s Segment) Equal(other Segment) bool {
	if s.isInt != other.isInt {
		return false
	}
	if s.isInt {
		return s.index == other.index
	}
	return s.str == other.str
}

// Path is an ordered sequence of segments. The zero value Path{} (nil slice)
// is the root path and overlaps every other path (see Overlaps).
type Path []Segment

// Root is the empty path, denoting the store root.
func Root() Path { return nil }

// Of is a convenience constructor from key-like values (string or int).
// Unrecognized element types are rendered with their default string form.
func Of(elems ...interface{}) Path {
	p := make(Path, 0, len(elems))
	for _, e := range elems {
		switch v := e.(type) {
		case string:
			p = append(p, FromKey(v))
		case int:
			p = append(p, Int(v))
		case Segment:
			p = append(p, v)
		default:
			p = append(p, String(toString(v)))
		}
	}
	return p
}

func toString(v interface{}) string {
	if s, ok := v.(interface{ String() string }); ok {
		return s.String()
	}
	return ""
}

// Child returns a new path extending p by one segment. p itself is never
// mutated (Paths are treated as immutable value vectors once constructed).
func (p Path) Child(seg Segment) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = seg
	return out
}

// IsRoot reports whether this is the empty path.
func (p Path) IsRoot() bool { return len(p) == 0 }

// Equal reports whether two paths have identical segments in the same order.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if !p[i].Equal(other[i]) {
			return false
		}
	}
	return true
}

// isPrefixOf reports whether p is a prefix of other (including equality).
func (p Path) isPrefixOf(other Path) bool {
	if len(p) > len(other) {
		return false
	}
	for i := range p {
		if !p[i].Equal(other[i]) {
			return false
		}
	}
	return true
}

// Overlaps implements the bus's overlap rule (spec.md §4.1): P overlaps C iff
// one is a prefix of the other, including equality. The root path overlaps,
// and is overlapped by, every path.
func (p Path) Overlaps(c Path) bool {
	return p.isPrefixOf(c) || c.isPrefixOf(p)
}

// FirstSegment returns the first segment and true, or the zero Segment and
// false if the path is root. Used by the bus to bucket subscriptions by
// first-segment value for O(1) skip-ahead (spec.md §4.1 "Index structure").
func (p Path) FirstSegment() (Segment, bool) {
	if len(p) == 0 {
		return Segment{}, false
	}
	return p[0], true
}

// String renders the path in a debug-friendly dotted/bracketed form, e.g. "u1.name" or "[3].x".
func (p Path) String() string {
	out := ""
	for i, seg := range p {
		if seg.IsInt() {
			out += "[" + seg.String() + "]"
			continue
		}
		if i > 0 {
			out += "."
		}
		out += seg.String()
	}
	return out
}
