//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package builtins implements the process-wide builtin registry and the
// default builtin set described in spec.md §4.7.
package builtins

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/manetu/rego-rvm/pkg/core/value"
)

// Func is a builtin implementation. It returns Undefined (never an
// error) to signal a type/domain mismatch when the caller has not
// opted into strict_builtin_errors; the VM converts that into a
// BuiltinError only when strict mode is enabled.
type Func func(args []value.Value) (value.Value, error)

// Flags records per-builtin dispatch metadata.
type Flags struct {
	// Nondeterministic marks builtins whose result depends on
	// something other than their arguments (none in the default set;
	// reserved for host-registered extensions such as clocks or RNGs).
	Nondeterministic bool
}

// Entry is one registered builtin.
type Entry struct {
	Name  string
	Arity int
	Fn    Func
	Flags Flags
}

// Registry is a process-wide, concurrency-safe builtin table, mirroring
// spec.md §4.7's "process-wide registry maps builtin name → {arity,
// fn_pointer, flags}".
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry pre-populated with the
// default builtin set.
func Default() *Registry { return defaultRegistry }

// NewRegistry returns a new registry seeded with the default set.
func NewRegistry() *Registry {
	r := &Registry{entries: make(map[string]Entry)}
	for _, e := range defaultBuiltins() {
		r.Register(e)
	}
	return r
}

// Register installs or replaces a builtin entry by name.
func (r *Registry) Register(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[e.Name] = e
}

// Lookup resolves a builtin by name, used at Program-load time to
// populate resolved_builtins from builtin_info_table (spec.md §4.4).
func (r *Registry) Lookup(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// Names returns the registered builtin names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for n := range r.entries {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func defaultBuiltins() []Entry {
	return []Entry{
		{Name: "count", Arity: 1, Fn: builtinCount},
		{Name: "sum", Arity: 1, Fn: builtinSum},
		{Name: "max", Arity: 1, Fn: builtinMax},
		{Name: "min", Arity: 1, Fn: builtinMin},
		{Name: "contains", Arity: 2, Fn: builtinContains},
		{Name: "startswith", Arity: 2, Fn: builtinStartsWith},
		{Name: "endswith", Arity: 2, Fn: builtinEndsWith},
		{Name: "upper", Arity: 1, Fn: builtinUpper},
		{Name: "lower", Arity: 1, Fn: builtinLower},
		{Name: "sprintf", Arity: 2, Fn: builtinSprintf},
		{Name: "to_number", Arity: 1, Fn: builtinToNumber},
		{Name: "object.get", Arity: 3, Fn: builtinObjectGet},
		{Name: "array.concat", Arity: 2, Fn: builtinArrayConcat},
		{Name: "json.marshal", Arity: 1, Fn: builtinJSONMarshal},
		{Name: "json.unmarshal", Arity: 1, Fn: builtinJSONUnmarshal},
		// __builtin_host_await is never dispatched through BuiltinCall;
		// HostAwait is its own opcode (spec.md §4.8). The compiler
		// matches this name directly when lowering a call and emits
		// HostAwait; it does not look the name up in the registry.
		{Name: "__builtin_host_await", Arity: 2, Fn: builtinHostAwaitPlaceholder},
	}
}

func builtinCount(args []value.Value) (value.Value, error) {
	v := args[0]
	switch v.Kind() {
	case value.KindArray, value.KindSet, value.KindObject:
		return value.NewInt(int64(v.Len())), nil
	case value.KindString:
		return value.NewInt(int64(len(v.String()))), nil
	default:
		return value.Undefined(), nil
	}
}

func numericElems(v value.Value) ([]value.Value, bool) {
	switch v.Kind() {
	case value.KindArray:
		return v.Elems(), true
	case value.KindSet:
		return v.SetElems(), true
	default:
		return nil, false
	}
}

func builtinSum(args []value.Value) (value.Value, error) {
	elems, ok := numericElems(args[0])
	if !ok {
		return value.Undefined(), nil
	}
	allInt := true
	var isum int64
	var fsum float64
	for _, e := range elems {
		switch e.Kind() {
		case value.KindInt64:
			isum += e.Int()
			fsum += float64(e.Int())
		case value.KindFloat64:
			allInt = false
			fsum += e.Float()
		default:
			return value.Undefined(), nil
		}
	}
	if allInt {
		return value.NewInt(isum), nil
	}
	return value.NewFloat(fsum), nil
}

func builtinMax(args []value.Value) (value.Value, error) {
	elems, ok := numericElems(args[0])
	if !ok || len(elems) == 0 {
		return value.Undefined(), nil
	}
	best := elems[0]
	for _, e := range elems[1:] {
		if value.Compare(e, best) > 0 {
			best = e
		}
	}
	return best, nil
}

func builtinMin(args []value.Value) (value.Value, error) {
	elems, ok := numericElems(args[0])
	if !ok || len(elems) == 0 {
		return value.Undefined(), nil
	}
	best := elems[0]
	for _, e := range elems[1:] {
		if value.Compare(e, best) < 0 {
			best = e
		}
	}
	return best, nil
}

func builtinContains(args []value.Value) (value.Value, error) {
	if args[0].Kind() != value.KindString || args[1].Kind() != value.KindString {
		return value.Undefined(), nil
	}
	return value.NewBool(strings.Contains(args[0].String(), args[1].String())), nil
}

func builtinStartsWith(args []value.Value) (value.Value, error) {
	if args[0].Kind() != value.KindString || args[1].Kind() != value.KindString {
		return value.Undefined(), nil
	}
	return value.NewBool(strings.HasPrefix(args[0].String(), args[1].String())), nil
}

func builtinEndsWith(args []value.Value) (value.Value, error) {
	if args[0].Kind() != value.KindString || args[1].Kind() != value.KindString {
		return value.Undefined(), nil
	}
	return value.NewBool(strings.HasSuffix(args[0].String(), args[1].String())), nil
}

func builtinUpper(args []value.Value) (value.Value, error) {
	if args[0].Kind() != value.KindString {
		return value.Undefined(), nil
	}
	return value.NewString(strings.ToUpper(args[0].String())), nil
}

func builtinLower(args []value.Value) (value.Value, error) {
	if args[0].Kind() != value.KindString {
		return value.Undefined(), nil
	}
	return value.NewString(strings.ToLower(args[0].String())), nil
}

func builtinSprintf(args []value.Value) (value.Value, error) {
	if args[0].Kind() != value.KindString || args[1].Kind() != value.KindArray {
		return value.Undefined(), nil
	}
	elems := args[1].Elems()
	vals := make([]interface{}, len(elems))
	for i, e := range elems {
		vals[i] = e.ToInterface()
	}
	return value.NewString(fmt.Sprintf(args[0].String(), vals...)), nil
}

func builtinToNumber(args []value.Value) (value.Value, error) {
	switch args[0].Kind() {
	case value.KindInt64, value.KindFloat64:
		return args[0], nil
	case value.KindString:
		s := args[0].String()
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return value.NewInt(i), nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return value.NewFloat(f), nil
		}
		return value.Undefined(), nil
	default:
		return value.Undefined(), nil
	}
}

func builtinObjectGet(args []value.Value) (value.Value, error) {
	if args[0].Kind() != value.KindObject {
		return args[2], nil
	}
	v := args[0].Get(args[1])
	if v.IsUndefined() {
		return args[2], nil
	}
	return v, nil
}

func builtinArrayConcat(args []value.Value) (value.Value, error) {
	if args[0].Kind() != value.KindArray || args[1].Kind() != value.KindArray {
		return value.Undefined(), nil
	}
	out := append(args[0].Elems(), args[1].Elems()...)
	return value.NewArray(out...), nil
}

func builtinJSONMarshal(args []value.Value) (value.Value, error) {
	b, err := args[0].MarshalJSON()
	if err != nil {
		return value.Undefined(), nil
	}
	return value.NewString(string(b)), nil
}

func builtinJSONUnmarshal(args []value.Value) (value.Value, error) {
	if args[0].Kind() != value.KindString {
		return value.Undefined(), nil
	}
	v, err := value.ParseJSON([]byte(args[0].String()))
	if err != nil {
		return value.Undefined(), nil
	}
	return v, nil
}

func builtinHostAwaitPlaceholder(args []value.Value) (value.Value, error) {
	return value.Undefined(), nil
}
