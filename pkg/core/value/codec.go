//
//  Copyright © Manetu Inc. All rights reserved.
//

package value

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/manetu/rego-rvm/pkg/common"
)

// tag identifies a Value's kind in the binary structural codec used by
// the program artifact's preamble sections and core encoder (spec.md
// §4.4). It mirrors Kind but is pinned to stable byte values independent
// of Kind's iota ordering, so adding a new Kind never breaks old
// artifacts.
type tag byte

const (
	tagUndefined tag = 0
	tagNull      tag = 1
	tagBoolFalse tag = 2
	tagBoolTrue  tag = 3
	tagInt64     tag = 4
	tagFloat64   tag = 5
	tagString    tag = 6
	tagArray     tag = 7
	tagSet       tag = 8
	tagObject    tag = 9
)

// Encode writes v to w using the little-endian, length-prefixed framing
// used throughout the binary program format: every composite is
// length-prefixed by element/entry count so a reader can preallocate and
// never needs to recurse into a boxed intermediate form.
func Encode(w io.Writer, v Value) error {
	switch v.kind {
	case KindUndefined:
		return writeTag(w, tagUndefined)
	case KindNull:
		return writeTag(w, tagNull)
	case KindBool:
		if v.b {
			return writeTag(w, tagBoolTrue)
		}
		return writeTag(w, tagBoolFalse)
	case KindInt64:
		if err := writeTag(w, tagInt64); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, v.i)
	case KindFloat64:
		if err := writeTag(w, tagFloat64); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, math.Float64bits(v.f))
	case KindString:
		if err := writeTag(w, tagString); err != nil {
			return err
		}
		return writeString(w, v.s)
	case KindArray:
		if err := writeTag(w, tagArray); err != nil {
			return err
		}
		if err := writeU32(w, uint32(len(v.arr))); err != nil {
			return err
		}
		for _, e := range v.arr {
			if err := Encode(w, e); err != nil {
				return err
			}
		}
		return nil
	case KindSet, KindObject:
		t := tagSet
		if v.kind == KindObject {
			t = tagObject
		}
		if err := writeTag(w, t); err != nil {
			return err
		}
		if err := writeU32(w, uint32(len(v.entries))); err != nil {
			return err
		}
		for _, e := range v.entries {
			if err := Encode(w, e.key); err != nil {
				return err
			}
			if v.kind == KindObject {
				if err := Encode(w, e.val); err != nil {
					return err
				}
			}
		}
		return nil
	default:
		return common.NewErrorf(common.CodeInternal, "encode: unknown kind %d", v.kind)
	}
}

// Decode reads a Value previously written by Encode.
func Decode(r io.Reader) (Value, error) {
	t, err := readTag(r)
	if err != nil {
		return Undefined(), err
	}
	switch t {
	case tagUndefined:
		return Undefined(), nil
	case tagNull:
		return Null(), nil
	case tagBoolFalse:
		return NewBool(false), nil
	case tagBoolTrue:
		return NewBool(true), nil
	case tagInt64:
		var i int64
		if err := binary.Read(r, binary.LittleEndian, &i); err != nil {
			return Undefined(), err
		}
		return NewInt(i), nil
	case tagFloat64:
		var bits uint64
		if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
			return Undefined(), err
		}
		return NewFloat(math.Float64frombits(bits)), nil
	case tagString:
		s, err := readString(r)
		if err != nil {
			return Undefined(), err
		}
		return NewString(s), nil
	case tagArray:
		n, err := readU32(r)
		if err != nil {
			return Undefined(), err
		}
		elems := make([]Value, n)
		for i := range elems {
			if elems[i], err = Decode(r); err != nil {
				return Undefined(), err
			}
		}
		return Value{kind: KindArray, arr: elems}, nil
	case tagSet, tagObject:
		n, err := readU32(r)
		if err != nil {
			return Undefined(), err
		}
		es := make([]entry, n)
		for i := range es {
			k, err := Decode(r)
			if err != nil {
				return Undefined(), err
			}
			v := k
			if t == tagObject {
				if v, err = Decode(r); err != nil {
					return Undefined(), err
				}
			}
			es[i] = entry{key: k, val: v}
		}
		kind := KindSet
		if t == tagObject {
			kind = KindObject
		}
		return Value{kind: kind, entries: es}, nil
	default:
		return Undefined(), common.NewErrorf(common.CodeCorruptArtifact, "decode: unknown tag %d", t)
	}
}

func writeTag(w io.Writer, t tag) error { return binary.Write(w, binary.LittleEndian, t) }

func readTag(r io.Reader) (tag, error) {
	var t tag
	err := binary.Read(r, binary.LittleEndian, &t)
	return t, err
}

func writeU32(w io.Writer, n uint32) error { return binary.Write(w, binary.LittleEndian, n) }

func readU32(r io.Reader) (uint32, error) {
	var n uint32
	err := binary.Read(r, binary.LittleEndian, &n)
	return n, err
}

func writeString(w io.Writer, s string) error {
	if err := writeU32(w, uint32(len(s))); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

func readString(r io.Reader) (string, error) {
	n, err := readU32(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
