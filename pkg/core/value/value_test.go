//
//  Copyright © Manetu Inc. All rights reserved.
//

package value

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrdering(t *testing.T) {
	vals := []Value{
		Null(),
		NewBool(false),
		NewBool(true),
		NewInt(1),
		NewInt(2),
		NewString("a"),
		NewString("b"),
		NewArray(NewInt(1)),
		NewObject([2]Value{NewString("k"), NewInt(1)}),
		NewSet(NewInt(1)),
	}
	for i := 0; i < len(vals); i++ {
		for j := 0; j < len(vals); j++ {
			c := Compare(vals[i], vals[j])
			switch {
			case i < j:
				assert.Truef(t, c < 0, "expected vals[%d] < vals[%d]", i, j)
			case i > j:
				assert.Truef(t, c > 0, "expected vals[%d] > vals[%d]", i, j)
			default:
				assert.Equal(t, 0, c)
			}
		}
	}
}

func TestTotalOrderTrichotomy(t *testing.T) {
	a := NewInt(3)
	b := NewString("x")
	lt := Compare(a, b) < 0
	eq := Compare(a, b) == 0
	gt := Compare(a, b) > 0
	count := 0
	for _, x := range []bool{lt, eq, gt} {
		if x {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestObjectEqualityIgnoresOrder(t *testing.T) {
	a := NewObject([2]Value{NewString("a"), NewInt(1)}, [2]Value{NewString("b"), NewInt(2)})
	b := NewObject([2]Value{NewString("b"), NewInt(2)}, [2]Value{NewString("a"), NewInt(1)})
	assert.True(t, Equal(a, b))
}

func TestUndefinedPropagatesThroughCollections(t *testing.T) {
	assert.True(t, NewArray(NewInt(1), Undefined()).IsUndefined())
	assert.True(t, NewSet(Undefined()).IsUndefined())
	assert.True(t, NewObject([2]Value{NewString("k"), Undefined()}).IsUndefined())
}

func TestSetStableIterationOrder(t *testing.T) {
	s := NewSet(NewInt(3), NewInt(1), NewInt(2))
	elems := s.SetElems()
	assert.Equal(t, []Value{NewInt(1), NewInt(2), NewInt(3)}, elems)
}

func TestJSONRoundTrip(t *testing.T) {
	cases := []Value{
		Null(),
		NewBool(true),
		NewInt(42),
		NewFloat(3.5),
		NewString("hi"),
		NewArray(NewInt(1), NewString("two")),
		NewObject([2]Value{NewString("k"), NewInt(9)}),
	}
	for _, v := range cases {
		data, err := v.MarshalJSON()
		assert.NoError(t, err)
		got, err := ParseJSON(data)
		assert.NoError(t, err)
		assert.True(t, Equal(v, got), "round trip mismatch for %v", v)
	}
}

func TestBinaryCodecRoundTrip(t *testing.T) {
	v := NewObject(
		[2]Value{NewString("arr"), NewArray(NewInt(1), NewInt(2), NewString("x"))},
		[2]Value{NewString("set"), NewSet(NewInt(1), NewInt(1), NewInt(2))},
		[2]Value{NewString("nested"), NewObject([2]Value{NewString("k"), NewBool(true)})},
	)
	var buf bytes.Buffer
	assert.NoError(t, Encode(&buf, v))
	got, err := Decode(&buf)
	assert.NoError(t, err)
	assert.True(t, Equal(v, got))
}

func TestGetOutOfRangeIsUndefined(t *testing.T) {
	a := NewArray(NewInt(1), NewInt(2))
	assert.True(t, a.Get(NewInt(5)).IsUndefined())
	assert.True(t, a.Get(NewInt(-1)).IsUndefined())
}

func TestContains(t *testing.T) {
	s := NewSet(NewInt(1), NewInt(2))
	assert.True(t, s.Contains(NewInt(1)))
	assert.False(t, s.Contains(NewInt(3)))
}
