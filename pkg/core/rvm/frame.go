//
//  Copyright © Manetu Inc. All rights reserved.
//

package rvm

import (
	"github.com/manetu/rego-rvm/pkg/core/isa"
	"github.com/manetu/rego-rvm/pkg/core/value"
)

// kv is one (key, value) pair produced while iterating a collection for
// a loop or comprehension, per spec.md §4.6.
type kv struct {
	key value.Value
	val value.Value
}

// collectionElems flattens v into the key/value pairs a loop or
// comprehension iterates over: index/element pairs for an array,
// key/value pairs for an object, element/element pairs for a set
// (each set member stands as both its own key and value).
func collectionElems(v value.Value) []kv {
	switch v.Kind() {
	case value.KindArray:
		elems := v.Elems()
		out := make([]kv, len(elems))
		for i, e := range elems {
			out[i] = kv{key: value.NewInt(int64(i)), val: e}
		}
		return out
	case value.KindObject:
		keys := v.ObjectKeys()
		out := make([]kv, len(keys))
		for i, k := range keys {
			out[i] = kv{key: k, val: v.Get(k)}
		}
		return out
	case value.KindSet:
		elems := v.SetElems()
		out := make([]kv, len(elems))
		for i, e := range elems {
			out[i] = kv{key: e, val: e}
		}
		return out
	default:
		return nil
	}
}

// loopFrame is the runtime state of one active LoopStart/LoopNext pair.
type loopFrame struct {
	handle   uint16
	params   isa.LoopStartParams
	elems    []kv
	nextIdx  int // index of the element about to be (or being) processed
}

// compFrame is the runtime state of one active comprehension, building
// up its result collection incrementally.
type compFrame struct {
	handle    uint16
	params    isa.ComprehensionBeginParams
	elems     []kv
	nextIdx   int
	arrayOut  []value.Value
	setOut    []value.Value
	objKeys   []value.Value
	objVals   []value.Value
}

// frame is the register window and control stacks for one rule/function
// invocation, per spec.md §3.3's `registers`, `loop_stack`,
// `comprehension_stack`.
type frame struct {
	registers       []value.Value
	loopStack       []*loopFrame
	compStack       []*compFrame
	ruleReturnPC    int32
	iterationFailed bool
	ruleIndex       int32 // index into prog.RuleInfos for the rule or function this frame evaluates; -1 until runRule/runRuleWithArgs sets it
}

func newFrame(size int32) *frame {
	regs := make([]value.Value, size)
	for i := range regs {
		regs[i] = value.Undefined()
	}
	return &frame{registers: regs, ruleIndex: -1}
}

func appendArrayElem(v, elem value.Value) value.Value {
	return value.NewArray(append(v.Elems(), elem)...)
}

func addSetElem(v, elem value.Value) value.Value {
	return value.NewSet(append(v.SetElems(), elem)...)
}

func setObjectKey(v, key, val value.Value) value.Value {
	var pairs [][2]value.Value
	for _, k := range v.ObjectKeys() {
		pairs = append(pairs, [2]value.Value{k, v.Get(k)})
	}
	pairs = append(pairs, [2]value.Value{key, val})
	return value.NewObject(pairs...)
}
