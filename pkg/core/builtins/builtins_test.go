//
//  Copyright © Manetu Inc. All rights reserved.
//

package builtins

import (
	"testing"

	"github.com/manetu/rego-rvm/pkg/core/value"
	"github.com/stretchr/testify/assert"
)

func call(t *testing.T, r *Registry, name string, args ...value.Value) value.Value {
	e, ok := r.Lookup(name)
	assert.True(t, ok, "missing builtin %s", name)
	v, err := e.Fn(args)
	assert.NoError(t, err)
	return v
}

func TestDefaultRegistryHasExpectedBuiltins(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"count", "sum", "max", "min", "contains", "startswith", "endswith",
		"upper", "lower", "sprintf", "to_number", "object.get", "array.concat", "json.marshal", "json.unmarshal"} {
		_, ok := r.Lookup(name)
		assert.True(t, ok, name)
	}
}

func TestCount(t *testing.T) {
	r := NewRegistry()
	got := call(t, r, "count", value.NewArray(value.NewInt(1), value.NewInt(2), value.NewInt(3)))
	assert.Equal(t, value.NewInt(3), got)
}

func TestSumIntegers(t *testing.T) {
	r := NewRegistry()
	got := call(t, r, "sum", value.NewArray(value.NewInt(1), value.NewInt(2), value.NewInt(3)))
	assert.Equal(t, value.NewInt(6), got)
}

func TestMaxMin(t *testing.T) {
	r := NewRegistry()
	arr := value.NewArray(value.NewInt(3), value.NewInt(1), value.NewInt(2))
	assert.Equal(t, value.NewInt(3), call(t, r, "max", arr))
	assert.Equal(t, value.NewInt(1), call(t, r, "min", arr))
}

func TestStringBuiltins(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, value.NewBool(true), call(t, r, "startswith", value.NewString("hello"), value.NewString("he")))
	assert.Equal(t, value.NewBool(true), call(t, r, "endswith", value.NewString("hello"), value.NewString("lo")))
	assert.Equal(t, value.NewBool(true), call(t, r, "contains", value.NewString("hello"), value.NewString("ell")))
	assert.Equal(t, value.NewString("HELLO"), call(t, r, "upper", value.NewString("hello")))
	assert.Equal(t, value.NewString("hello"), call(t, r, "lower", value.NewString("HELLO")))
}

func TestToNumber(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, value.NewInt(42), call(t, r, "to_number", value.NewString("42")))
	assert.Equal(t, value.NewFloat(4.5), call(t, r, "to_number", value.NewString("4.5")))
}

func TestObjectGetWithDefault(t *testing.T) {
	r := NewRegistry()
	obj := value.NewObject([2]value.Value{value.NewString("a"), value.NewInt(1)})
	assert.Equal(t, value.NewInt(1), call(t, r, "object.get", obj, value.NewString("a"), value.NewInt(-1)))
	assert.Equal(t, value.NewInt(-1), call(t, r, "object.get", obj, value.NewString("missing"), value.NewInt(-1)))
}

func TestArrayConcat(t *testing.T) {
	r := NewRegistry()
	got := call(t, r, "array.concat", value.NewArray(value.NewInt(1)), value.NewArray(value.NewInt(2)))
	assert.Equal(t, value.NewArray(value.NewInt(1), value.NewInt(2)), got)
}

func TestJSONRoundTripBuiltins(t *testing.T) {
	r := NewRegistry()
	obj := value.NewObject([2]value.Value{value.NewString("a"), value.NewInt(1)})
	marshaled := call(t, r, "json.marshal", obj)
	assert.Equal(t, value.KindString, marshaled.Kind())
	back := call(t, r, "json.unmarshal", marshaled)
	assert.True(t, value.Equal(obj, back))
}
