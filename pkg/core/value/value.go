//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package value implements the tagged-union value universe that Rego
// programs evaluate over: scalars, composites, and the Undefined sentinel
// described in spec.md §3.1.
//
// Values are logically immutable once handed to evaluation. Implementations
// may share substructure by reference (an Array's backing slice, an
// Object's entries), but nothing in this package mutates a Value after
// construction; every constructor returns a new Value.
package value

import (
	"fmt"
	"sort"
)

// Kind identifies which variant of the tagged union a Value holds.
type Kind uint8

const (
	KindUndefined Kind = iota
	KindNull
	KindBool
	KindInt64
	KindFloat64
	KindString
	KindArray
	KindSet
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindInt64, KindFloat64:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindSet:
		return "set"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// entry is one key/value pair of an Object, kept in insertion order.
type entry struct {
	key Value
	val Value
}

// Value is the tagged union described in spec.md §3.1.
//
// The zero Value is Undefined. Use the New* constructors to build scalars
// and composites; use Undefined() for the sentinel explicitly.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	arr  []Value
	// set and obj share the same backing (ordered entries); for a Set the
	// val field of each entry equals its key.
	entries []entry
}

// Undefined returns the Undefined sentinel. Undefined is never a member
// of a collection: Array/Set/Object constructors detect it and propagate
// Undefined for the whole collection, per spec.md §9.
func Undefined() Value { return Value{kind: KindUndefined} }

// Null returns the Rego null value.
func Null() Value { return Value{kind: KindNull} }

// NewBool returns a boolean value.
func NewBool(b bool) Value { return Value{kind: KindBool, b: b} }

// NewInt returns an integer-valued number.
func NewInt(i int64) Value { return Value{kind: KindInt64, i: i} }

// NewFloat returns a floating-point number.
func NewFloat(f float64) Value { return Value{kind: KindFloat64, f: f} }

// NewString returns a string value.
func NewString(s string) Value { return Value{kind: KindString, s: s} }

// NewArray returns an ordered array. If any element is Undefined, the
// whole array collapses to Undefined (spec.md §9).
func NewArray(elems ...Value) Value {
	for _, e := range elems {
		if e.kind == KindUndefined {
			return Undefined()
		}
	}
	cp := make([]Value, len(elems))
	copy(cp, elems)
	return Value{kind: KindArray, arr: cp}
}

// NewSet returns a set built from elems, deduplicated and sorted into the
// stable Rego order. If any element is Undefined, the result is Undefined.
func NewSet(elems ...Value) Value {
	for _, e := range elems {
		if e.kind == KindUndefined {
			return Undefined()
		}
	}
	var es []entry
	for _, e := range elems {
		es = appendSetEntry(es, e)
	}
	return Value{kind: KindSet, entries: es}
}

func appendSetEntry(es []entry, v Value) []entry {
	idx := sort.Search(len(es), func(i int) bool { return Compare(es[i].key, v) >= 0 })
	if idx < len(es) && Equal(es[idx].key, v) {
		return es
	}
	es = append(es, entry{})
	copy(es[idx+1:], es[idx:])
	es[idx] = entry{key: v, val: v}
	return es
}

// NewObject returns an object from the given key/value pairs, preserving
// insertion order except that duplicate keys keep the last value written
// at the position of its first occurrence. If any key or value is
// Undefined, the result is Undefined.
func NewObject(pairs ...[2]Value) Value {
	var es []entry
	for _, p := range pairs {
		if p[0].kind == KindUndefined || p[1].kind == KindUndefined {
			return Undefined()
		}
		es = setObjectEntry(es, p[0], p[1])
	}
	return Value{kind: KindObject, entries: es}
}

func setObjectEntry(es []entry, k, v Value) []entry {
	for i := range es {
		if Equal(es[i].key, k) {
			es[i].val = v
			return es
		}
	}
	return append(es, entry{key: k, val: v})
}

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// IsUndefined reports whether v is the Undefined sentinel.
func (v Value) IsUndefined() bool { return v.kind == KindUndefined }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Bool returns the boolean payload; valid only when Kind()==KindBool.
func (v Value) Bool() bool { return v.b }

// Int returns the integer payload; valid only when Kind()==KindInt64.
func (v Value) Int() int64 { return v.i }

// Float returns the float payload; valid only when Kind()==KindFloat64.
func (v Value) Float() float64 { return v.f }

// Number returns the numeric payload as a float64 regardless of whether
// it was stored as Int64 or Float64.
func (v Value) Number() float64 {
	if v.kind == KindInt64 {
		return float64(v.i)
	}
	return v.f
}

// String returns the string payload for a string, and a printable
// rendering of v for every other kind.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindInt64:
		return fmt.Sprintf("%d", v.i)
	case KindFloat64:
		return fmt.Sprintf("%g", v.f)
	default:
		j, _ := v.MarshalJSON()
		return string(j)
	}
}

// Len returns the number of elements/entries for Array, Set, and Object;
// zero otherwise.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.arr)
	case KindSet, KindObject:
		return len(v.entries)
	default:
		return 0
	}
}

// Elems returns a copy of the array's elements; nil for other kinds.
func (v Value) Elems() []Value {
	if v.kind != KindArray {
		return nil
	}
	cp := make([]Value, len(v.arr))
	copy(cp, v.arr)
	return cp
}

// SetElems returns the set's elements in stable sorted order; nil for
// other kinds.
func (v Value) SetElems() []Value {
	if v.kind != KindSet {
		return nil
	}
	out := make([]Value, len(v.entries))
	for i, e := range v.entries {
		out[i] = e.key
	}
	return out
}

// ObjectKeys returns the object's keys in insertion order; nil for other
// kinds.
func (v Value) ObjectKeys() []Value {
	if v.kind != KindObject {
		return nil
	}
	out := make([]Value, len(v.entries))
	for i, e := range v.entries {
		out[i] = e.key
	}
	return out
}

// Get indexes into an Array (integer key), Object (any key), or tests Set
// membership. Returns Undefined if the key/index is absent or out of
// range, or if the receiver is not a collection.
func (v Value) Get(key Value) Value {
	switch v.kind {
	case KindArray:
		if key.kind != KindInt64 {
			return Undefined()
		}
		if key.i < 0 || int(key.i) >= len(v.arr) {
			return Undefined()
		}
		return v.arr[key.i]
	case KindObject:
		for _, e := range v.entries {
			if Equal(e.key, key) {
				return e.val
			}
		}
		return Undefined()
	case KindSet:
		for _, e := range v.entries {
			if Equal(e.key, key) {
				return key
			}
		}
		return Undefined()
	default:
		return Undefined()
	}
}

// GetPath walks a sequence of string object keys from v, returning
// Undefined as soon as a segment is absent or the current value is not
// an Object.
func (v Value) GetPath(path []string) Value {
	cur := v
	for _, seg := range path {
		if cur.kind != KindObject {
			return Undefined()
		}
		cur = cur.Get(NewString(seg))
		if cur.IsUndefined() {
			return Undefined()
		}
	}
	return cur
}

// Contains reports Set/Array/Object membership of v within the
// collection, used by the Contains opcode (spec.md §4.5).
func (v Value) Contains(elem Value) bool {
	switch v.kind {
	case KindSet:
		return !v.Get(elem).IsUndefined()
	case KindArray:
		for _, e := range v.arr {
			if Equal(e, elem) {
				return true
			}
		}
		return false
	case KindObject:
		return !v.Get(elem).IsUndefined()
	default:
		return false
	}
}

// kindOrder implements the variant ordering from spec.md §3.1: null <
// boolean < number < string < array < object < set.
func kindOrder(k Kind) int {
	switch k {
	case KindNull:
		return 0
	case KindBool:
		return 1
	case KindInt64, KindFloat64:
		return 2
	case KindString:
		return 3
	case KindArray:
		return 4
	case KindObject:
		return 5
	case KindSet:
		return 6
	default:
		return -1
	}
}

// Compare implements the total order on Value required by spec.md §8:
// for all a, b exactly one of a<b, a=b, a>b holds, and the order is
// transitive.
func Compare(a, b Value) int {
	oa, ob := kindOrder(a.kind), kindOrder(b.kind)
	if oa != ob {
		return oa - ob
	}
	switch a.kind {
	case KindNull, KindUndefined:
		return 0
	case KindBool:
		if a.b == b.b {
			return 0
		}
		if !a.b {
			return -1
		}
		return 1
	case KindInt64, KindFloat64:
		an, bn := a.Number(), b.Number()
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		default:
			return 0
		}
	case KindString:
		switch {
		case a.s < b.s:
			return -1
		case a.s > b.s:
			return 1
		default:
			return 0
		}
	case KindArray:
		return compareSlices(a.arr, b.arr)
	case KindObject:
		return compareEntries(a.entries, b.entries, true)
	case KindSet:
		return compareEntries(a.entries, b.entries, false)
	default:
		return 0
	}
}

func compareSlices(a, b []Value) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}

func compareEntries(a, b []entry, withValue bool) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := Compare(a[i].key, b[i].key); c != 0 {
			return c
		}
		if withValue {
			if c := Compare(a[i].val, b[i].val); c != 0 {
				return c
			}
		}
	}
	return len(a) - len(b)
}

// Equal reports whether a and b represent the same value: per spec.md §8,
// object equality is key-set and per-key value equality, independent of
// insertion order.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	if a.kind == KindObject {
		if len(a.entries) != len(b.entries) {
			return false
		}
		for _, e := range a.entries {
			bv := b.Get(e.key)
			if bv.IsUndefined() || !Equal(e.val, bv) {
				return false
			}
		}
		return true
	}
	return Compare(a, b) == 0
}

// Hash returns a structural hash suitable for use as a map key alongside
// equality checks; it is not required to be collision-free.
func (v Value) Hash() uint64 {
	const prime = 1099511628211
	h := uint64(14695981039346656037)
	mix := func(x uint64) {
		h ^= x
		h *= prime
	}
	switch v.kind {
	case KindUndefined:
		mix(0)
	case KindNull:
		mix(1)
	case KindBool:
		if v.b {
			mix(3)
		} else {
			mix(2)
		}
	case KindInt64:
		mix(uint64(v.i))
	case KindFloat64:
		mix(uint64(v.f))
	case KindString:
		for _, c := range v.s {
			mix(uint64(c))
		}
	case KindArray:
		for _, e := range v.arr {
			mix(e.Hash())
		}
	case KindSet, KindObject:
		for _, e := range v.entries {
			mix(e.key.Hash())
			if v.kind == KindObject {
				mix(e.val.Hash())
			}
		}
	}
	return h
}
