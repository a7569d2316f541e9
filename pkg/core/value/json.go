//
//  Copyright © Manetu Inc. All rights reserved.
//

package value

import (
	"bytes"
	"encoding/json"
)

// FromJSON converts standard decoded JSON (as produced by
// json.Unmarshal(data, &interface{})) into a Value. Sets have no native
// JSON representation and are never produced here; a JSON array always
// becomes an Array (spec.md §6.5).
func FromJSON(v interface{}) Value {
	switch t := v.(type) {
	case nil:
		return Null()
	case bool:
		return NewBool(t)
	case float64:
		if t == float64(int64(t)) {
			return NewInt(int64(t))
		}
		return NewFloat(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return NewInt(i)
		}
		f, _ := t.Float64()
		return NewFloat(f)
	case string:
		return NewString(t)
	case []interface{}:
		elems := make([]Value, len(t))
		for i, e := range t {
			elems[i] = FromJSON(e)
		}
		return NewArray(elems...)
	case map[string]interface{}:
		pairs := make([][2]Value, 0, len(t))
		for k, e := range t {
			pairs = append(pairs, [2]Value{NewString(k), FromJSON(e)})
		}
		return NewObject(pairs...)
	default:
		return Undefined()
	}
}

// ParseJSON decodes a JSON document directly into a Value.
func ParseJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return Undefined(), err
	}
	return FromJSON(v), nil
}

// ToInterface converts a Value into plain Go data (map[string]interface{},
// []interface{}, string, float64/int64, bool, nil) suitable for
// json.Marshal. Sets are encoded as arrays per spec.md §6.5.
func (v Value) ToInterface() interface{} {
	switch v.kind {
	case KindUndefined, KindNull:
		return nil
	case KindBool:
		return v.b
	case KindInt64:
		return v.i
	case KindFloat64:
		return v.f
	case KindString:
		return v.s
	case KindArray:
		out := make([]interface{}, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.ToInterface()
		}
		return out
	case KindSet:
		out := make([]interface{}, len(v.entries))
		for i, e := range v.entries {
			out[i] = e.key.ToInterface()
		}
		return out
	case KindObject:
		out := make(map[string]interface{}, len(v.entries))
		for _, e := range v.entries {
			out[e.key.String()] = e.val.ToInterface()
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.ToInterface())
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*v = FromJSON(raw)
	return nil
}
