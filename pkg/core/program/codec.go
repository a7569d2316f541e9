//
//  Copyright © Manetu Inc. All rights reserved.
//

package program

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/manetu/rego-rvm/pkg/common"
	"github.com/manetu/rego-rvm/pkg/core/isa"
	"github.com/manetu/rego-rvm/pkg/core/value"
)

const (
	magic                     = "REGO"
	serializationVersion uint32 = 3
)

// Partial is returned by Deserialize when the core section failed to
// decode but the preamble (sources, entry points, rego_v0) survived
// intact, letting the host recompile from source (spec.md §4.4).
type Partial struct {
	Sources     []Source
	EntryPoints map[string]int32
	EntryOrder  []string
	RegoV0      bool
}

func writeU32(w io.Writer, v uint32) error { return binary.Write(w, binary.LittleEndian, v) }
func writeI32(w io.Writer, v int32) error  { return binary.Write(w, binary.LittleEndian, v) }
func writeU16(w io.Writer, v uint16) error { return binary.Write(w, binary.LittleEndian, v) }
func writeU8(w io.Writer, v uint8) error   { return binary.Write(w, binary.LittleEndian, v) }

func readU32(r io.Reader) (uint32, error) {
	var v uint32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}
func readI32(r io.Reader) (int32, error) {
	var v int32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}
func readU16(r io.Reader) (uint16, error) {
	var v uint16
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}
func readU8(r io.Reader) (uint8, error) {
	var v uint8
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
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

func writeI32Slice(w io.Writer, s []int32) error {
	if err := writeU32(w, uint32(len(s))); err != nil {
		return err
	}
	for _, v := range s {
		if err := writeI32(w, v); err != nil {
			return err
		}
	}
	return nil
}

func readI32Slice(r io.Reader) ([]int32, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	out := make([]int32, n)
	for i := range out {
		v, err := readI32(r)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func encodeEntryPoints(w io.Writer, p *Program) error {
	if err := writeU32(w, uint32(len(p.EntryOrder))); err != nil {
		return err
	}
	for _, name := range p.EntryOrder {
		if err := writeString(w, name); err != nil {
			return err
		}
		if err := writeI32(w, p.EntryPoints[name]); err != nil {
			return err
		}
	}
	return nil
}

func decodeEntryPoints(r io.Reader) (map[string]int32, []string, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, nil, err
	}
	m := make(map[string]int32, n)
	order := make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, nil, err
		}
		pc, err := readI32(r)
		if err != nil {
			return nil, nil, err
		}
		m[name] = pc
		order = append(order, name)
	}
	return m, order, nil
}

func encodeSources(w io.Writer, sources []Source) error {
	if err := writeU32(w, uint32(len(sources))); err != nil {
		return err
	}
	for _, s := range sources {
		if err := writeString(w, s.ID); err != nil {
			return err
		}
		if err := writeString(w, s.File); err != nil {
			return err
		}
		if err := writeString(w, s.Content); err != nil {
			return err
		}
	}
	return nil
}

func decodeSources(r io.Reader) ([]Source, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	out := make([]Source, n)
	for i := range out {
		id, err := readString(r)
		if err != nil {
			return nil, err
		}
		file, err := readString(r)
		if err != nil {
			return nil, err
		}
		content, err := readString(r)
		if err != nil {
			return nil, err
		}
		out[i] = Source{ID: id, File: file, Content: content}
	}
	return out, nil
}

func encodeLiterals(w io.Writer, literals []value.Value) error {
	if err := writeU32(w, uint32(len(literals))); err != nil {
		return err
	}
	for _, lit := range literals {
		if err := value.Encode(w, lit); err != nil {
			return err
		}
	}
	return nil
}

func decodeLiterals(r io.Reader) ([]value.Value, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	out := make([]value.Value, n)
	for i := range out {
		v, err := value.Decode(r)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func encodeInstructions(w io.Writer, instrs []isa.Instruction) error {
	if err := writeU32(w, uint32(len(instrs))); err != nil {
		return err
	}
	for _, in := range instrs {
		if err := writeU32(w, uint32(in.Op)); err != nil {
			return err
		}
		if err := writeI32(w, in.A); err != nil {
			return err
		}
		if err := writeI32(w, in.B); err != nil {
			return err
		}
		if err := writeI32(w, in.C); err != nil {
			return err
		}
		if err := writeU16(w, in.Handle); err != nil {
			return err
		}
	}
	return nil
}

func decodeInstructions(r io.Reader) ([]isa.Instruction, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	out := make([]isa.Instruction, n)
	for i := range out {
		op, err := readU32(r)
		if err != nil {
			return nil, err
		}
		a, err := readI32(r)
		if err != nil {
			return nil, err
		}
		b, err := readI32(r)
		if err != nil {
			return nil, err
		}
		c, err := readI32(r)
		if err != nil {
			return nil, err
		}
		h, err := readU16(r)
		if err != nil {
			return nil, err
		}
		out[i] = isa.Instruction{Op: isa.Opcode(op), A: a, B: b, C: c, Handle: h}
	}
	return out, nil
}

func encodeInstructionData(w io.Writer, d InstructionData) error {
	if err := writeU32(w, uint32(len(d.LoopStarts))); err != nil {
		return err
	}
	for _, ls := range d.LoopStarts {
		writeU32(w, uint32(ls.Mode))
		writeI32(w, ls.Collection)
		writeI32(w, ls.KeyReg)
		writeI32(w, ls.ValueReg)
		writeI32(w, ls.ResultReg)
		writeI32(w, ls.BodyStart)
		writeI32(w, ls.LoopEnd)
	}
	if err := writeU32(w, uint32(len(d.ArrayCreates))); err != nil {
		return err
	}
	for _, ac := range d.ArrayCreates {
		writeI32(w, ac.Dest)
		writeI32Slice(w, ac.Elements)
	}
	if err := writeU32(w, uint32(len(d.ObjectCreates))); err != nil {
		return err
	}
	for _, oc := range d.ObjectCreates {
		writeI32(w, oc.Dest)
		writeI32Slice(w, oc.Keys)
		writeI32Slice(w, oc.Values)
	}
	if err := writeU32(w, uint32(len(d.SetCreates))); err != nil {
		return err
	}
	for _, sc := range d.SetCreates {
		writeI32(w, sc.Dest)
		writeI32Slice(w, sc.Elements)
	}
	if err := writeU32(w, uint32(len(d.BuiltinCalls))); err != nil {
		return err
	}
	for _, bc := range d.BuiltinCalls {
		writeI32(w, bc.Dest)
		writeI32(w, bc.Index)
		writeI32Slice(w, bc.Args)
	}
	if err := writeU32(w, uint32(len(d.FunctionCalls))); err != nil {
		return err
	}
	for _, fc := range d.FunctionCalls {
		writeI32(w, fc.Dest)
		writeI32(w, fc.RuleIndex)
		writeI32Slice(w, fc.Args)
	}
	if err := writeU32(w, uint32(len(d.VirtualDataLookups))); err != nil {
		return err
	}
	for _, vl := range d.VirtualDataLookups {
		writeI32(w, vl.Dest)
		writeU32(w, uint32(len(vl.Path)))
		for _, seg := range vl.Path {
			writeString(w, seg)
		}
	}
	if err := writeU32(w, uint32(len(d.ChainedIndexes))); err != nil {
		return err
	}
	for _, ci := range d.ChainedIndexes {
		writeI32(w, ci.Dest)
		writeI32(w, ci.Base)
		writeU32(w, uint32(len(ci.Keys)))
		for _, step := range ci.Keys {
			if step.Dynamic {
				writeU8(w, 1)
			} else {
				writeU8(w, 0)
			}
			writeI32(w, step.LitIdx)
			writeI32(w, step.Reg)
		}
	}
	if err := writeU32(w, uint32(len(d.ComprehensionBegins))); err != nil {
		return err
	}
	for _, cb := range d.ComprehensionBegins {
		writeU32(w, uint32(cb.Kind))
		writeI32(w, cb.Collection)
		writeI32(w, cb.KeyReg)
		writeI32(w, cb.ValueReg)
		writeI32(w, cb.ResultReg)
		writeI32(w, cb.BodyStart)
		writeI32(w, cb.LoopEnd)
	}
	return nil
}

func decodeInstructionData(r io.Reader) (InstructionData, error) {
	var d InstructionData
	n, err := readU32(r)
	if err != nil {
		return d, err
	}
	d.LoopStarts = make([]isa.LoopStartParams, n)
	for i := range d.LoopStarts {
		mode, _ := readU32(r)
		coll, _ := readI32(r)
		key, _ := readI32(r)
		val, _ := readI32(r)
		res, _ := readI32(r)
		bs, _ := readI32(r)
		le, err := readI32(r)
		if err != nil {
			return d, err
		}
		d.LoopStarts[i] = isa.LoopStartParams{Mode: isa.LoopMode(mode), Collection: coll, KeyReg: key, ValueReg: val, ResultReg: res, BodyStart: bs, LoopEnd: le}
	}

	n, err = readU32(r)
	if err != nil {
		return d, err
	}
	d.ArrayCreates = make([]isa.ArrayCreateParams, n)
	for i := range d.ArrayCreates {
		dest, _ := readI32(r)
		elems, err := readI32Slice(r)
		if err != nil {
			return d, err
		}
		d.ArrayCreates[i] = isa.ArrayCreateParams{Dest: dest, Elements: elems}
	}

	n, err = readU32(r)
	if err != nil {
		return d, err
	}
	d.ObjectCreates = make([]isa.ObjectCreateParams, n)
	for i := range d.ObjectCreates {
		dest, _ := readI32(r)
		keys, err := readI32Slice(r)
		if err != nil {
			return d, err
		}
		vals, err := readI32Slice(r)
		if err != nil {
			return d, err
		}
		d.ObjectCreates[i] = isa.ObjectCreateParams{Dest: dest, Keys: keys, Values: vals}
	}

	n, err = readU32(r)
	if err != nil {
		return d, err
	}
	d.SetCreates = make([]isa.SetCreateParams, n)
	for i := range d.SetCreates {
		dest, _ := readI32(r)
		elems, err := readI32Slice(r)
		if err != nil {
			return d, err
		}
		d.SetCreates[i] = isa.SetCreateParams{Dest: dest, Elements: elems}
	}

	n, err = readU32(r)
	if err != nil {
		return d, err
	}
	d.BuiltinCalls = make([]isa.BuiltinCallParams, n)
	for i := range d.BuiltinCalls {
		dest, _ := readI32(r)
		idx, _ := readI32(r)
		args, err := readI32Slice(r)
		if err != nil {
			return d, err
		}
		d.BuiltinCalls[i] = isa.BuiltinCallParams{Dest: dest, Index: idx, Args: args}
	}

	n, err = readU32(r)
	if err != nil {
		return d, err
	}
	d.FunctionCalls = make([]isa.FunctionCallParams, n)
	for i := range d.FunctionCalls {
		dest, _ := readI32(r)
		idx, _ := readI32(r)
		args, err := readI32Slice(r)
		if err != nil {
			return d, err
		}
		d.FunctionCalls[i] = isa.FunctionCallParams{Dest: dest, RuleIndex: idx, Args: args}
	}

	n, err = readU32(r)
	if err != nil {
		return d, err
	}
	d.VirtualDataLookups = make([]isa.VirtualDataLookupParams, n)
	for i := range d.VirtualDataLookups {
		dest, _ := readI32(r)
		pn, err := readU32(r)
		if err != nil {
			return d, err
		}
		path := make([]string, pn)
		for j := range path {
			seg, err := readString(r)
			if err != nil {
				return d, err
			}
			path[j] = seg
		}
		d.VirtualDataLookups[i] = isa.VirtualDataLookupParams{Dest: dest, Path: path}
	}

	n, err = readU32(r)
	if err != nil {
		return d, err
	}
	d.ChainedIndexes = make([]isa.ChainedIndexParams, n)
	for i := range d.ChainedIndexes {
		dest, _ := readI32(r)
		base, _ := readI32(r)
		kn, err := readU32(r)
		if err != nil {
			return d, err
		}
		keys := make([]isa.ChainedIndexStep, kn)
		for j := range keys {
			dyn, err := readU8(r)
			if err != nil {
				return d, err
			}
			lit, _ := readI32(r)
			reg, err := readI32(r)
			if err != nil {
				return d, err
			}
			keys[j] = isa.ChainedIndexStep{Dynamic: dyn != 0, LitIdx: lit, Reg: reg}
		}
		d.ChainedIndexes[i] = isa.ChainedIndexParams{Dest: dest, Base: base, Keys: keys}
	}

	n, err = readU32(r)
	if err != nil {
		return d, err
	}
	d.ComprehensionBegins = make([]isa.ComprehensionBeginParams, n)
	for i := range d.ComprehensionBegins {
		kind, _ := readU32(r)
		coll, _ := readI32(r)
		key, _ := readI32(r)
		val, _ := readI32(r)
		res, _ := readI32(r)
		bs, _ := readI32(r)
		le, err := readI32(r)
		if err != nil {
			return d, err
		}
		d.ComprehensionBegins[i] = isa.ComprehensionBeginParams{Kind: isa.ComprehensionKind(kind), Collection: coll, KeyReg: key, ValueReg: val, ResultReg: res, BodyStart: bs, LoopEnd: le}
	}

	return d, nil
}

func encodeCore(w io.Writer, p *Program) error {
	if err := encodeInstructions(w, p.Instructions); err != nil {
		return err
	}
	if err := encodeInstructionData(w, p.Data); err != nil {
		return err
	}

	if err := writeU32(w, uint32(len(p.BuiltinInfoTable))); err != nil {
		return err
	}
	for _, b := range p.BuiltinInfoTable {
		writeString(w, b.Name)
		writeI32(w, int32(b.Arity))
		writeU32(w, b.Flags)
	}

	if err := writeU32(w, uint32(len(p.RuleInfos))); err != nil {
		return err
	}
	for _, ri := range p.RuleInfos {
		writeString(w, ri.Path)
		writeI32(w, ri.ResultRegister)
		writeI32(w, ri.RegisterWindowSize)
		if ri.HasDefault {
			writeU8(w, 1)
		} else {
			writeU8(w, 0)
		}
		if err := value.Encode(w, ri.DefaultValue); err != nil {
			return err
		}
		writeI32(w, ri.DestructuringBlockStart)
		writeI32Slice(w, ri.BodyPCs)
		flags := uint8(0)
		if ri.IsFunction {
			flags |= 1
		}
		if ri.IsComplete {
			flags |= 2
		}
		if ri.IsPartialSet {
			flags |= 4
		}
		if ri.IsPartialObject {
			flags |= 8
		}
		writeU8(w, flags)
		writeI32(w, int32(ri.ParamCount))
	}

	if err := writeU32(w, uint32(len(p.InstructionSpans))); err != nil {
		return err
	}
	for _, s := range p.InstructionSpans {
		writeI32(w, s.PC)
		writeString(w, s.File)
		writeI32(w, int32(s.Line))
		writeI32(w, int32(s.Col))
	}

	writeString(w, p.Metadata.CompilerVersion)
	if p.Metadata.RegoV0 {
		writeU8(w, 1)
	} else {
		writeU8(w, 0)
	}
	if p.Metadata.EnableCoverage {
		writeU8(w, 1)
	} else {
		writeU8(w, 0)
	}

	writeI32(w, p.MaxRuleWindowSize)
	if p.NeedsRuntimeRecursionCheck {
		writeU8(w, 1)
	} else {
		writeU8(w, 0)
	}
	return nil
}

func decodeCore(r io.Reader, p *Program) error {
	instrs, err := decodeInstructions(r)
	if err != nil {
		return err
	}
	p.Instructions = instrs

	data, err := decodeInstructionData(r)
	if err != nil {
		return err
	}
	p.Data = data

	n, err := readU32(r)
	if err != nil {
		return err
	}
	p.BuiltinInfoTable = make([]BuiltinInfo, n)
	for i := range p.BuiltinInfoTable {
		name, err := readString(r)
		if err != nil {
			return err
		}
		arity, err := readI32(r)
		if err != nil {
			return err
		}
		flags, err := readU32(r)
		if err != nil {
			return err
		}
		p.BuiltinInfoTable[i] = BuiltinInfo{Name: name, Arity: int(arity), Flags: flags}
	}

	n, err = readU32(r)
	if err != nil {
		return err
	}
	p.RuleInfos = make([]RuleInfo, n)
	for i := range p.RuleInfos {
		path, err := readString(r)
		if err != nil {
			return err
		}
		resultReg, err := readI32(r)
		if err != nil {
			return err
		}
		winSize, err := readI32(r)
		if err != nil {
			return err
		}
		hasDefault, err := readU8(r)
		if err != nil {
			return err
		}
		defVal, err := value.Decode(r)
		if err != nil {
			return err
		}
		blockStart, err := readI32(r)
		if err != nil {
			return err
		}
		bodyPCs, err := readI32Slice(r)
		if err != nil {
			return err
		}
		flags, err := readU8(r)
		if err != nil {
			return err
		}
		paramCount, err := readI32(r)
		if err != nil {
			return err
		}
		p.RuleInfos[i] = RuleInfo{
			Path: path, ResultRegister: resultReg, RegisterWindowSize: winSize,
			HasDefault: hasDefault != 0, DefaultValue: defVal,
			DestructuringBlockStart: blockStart, BodyPCs: bodyPCs,
			IsFunction: flags&1 != 0, IsComplete: flags&2 != 0,
			IsPartialSet: flags&4 != 0, IsPartialObject: flags&8 != 0,
			ParamCount: int(paramCount),
		}
	}

	n, err = readU32(r)
	if err != nil {
		return err
	}
	p.InstructionSpans = make([]Span, n)
	for i := range p.InstructionSpans {
		pc, err := readI32(r)
		if err != nil {
			return err
		}
		file, err := readString(r)
		if err != nil {
			return err
		}
		line, err := readI32(r)
		if err != nil {
			return err
		}
		col, err := readI32(r)
		if err != nil {
			return err
		}
		p.InstructionSpans[i] = Span{PC: pc, File: file, Line: int(line), Col: int(col)}
	}

	compilerVersion, err := readString(r)
	if err != nil {
		return err
	}
	regoV0, err := readU8(r)
	if err != nil {
		return err
	}
	enableCoverage, err := readU8(r)
	if err != nil {
		return err
	}
	p.Metadata = Metadata{CompilerVersion: compilerVersion, RegoV0: regoV0 != 0, EnableCoverage: enableCoverage != 0}

	maxWin, err := readI32(r)
	if err != nil {
		return err
	}
	p.MaxRuleWindowSize = maxWin
	recheck, err := readU8(r)
	if err != nil {
		return err
	}
	p.NeedsRuntimeRecursionCheck = recheck != 0

	return nil
}

// SerializeBinary encodes p per the envelope described in spec.md §4.4.
func (p *Program) SerializeBinary() ([]byte, error) {
	var entryBuf, sourcesBuf, literalsBuf, ruleTreeBuf, coreBuf bytes.Buffer

	if err := encodeEntryPoints(&entryBuf, p); err != nil {
		return nil, err
	}
	if err := encodeSources(&sourcesBuf, p.Sources); err != nil {
		return nil, err
	}
	if err := encodeLiterals(&literalsBuf, p.Literals); err != nil {
		return nil, err
	}
	if err := value.Encode(&ruleTreeBuf, p.RuleTree); err != nil {
		return nil, err
	}
	if err := encodeCore(&coreBuf, p); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	out.WriteString(magic)
	if err := writeU32(&out, serializationVersion); err != nil {
		return nil, err
	}
	if err := writeU32(&out, uint32(entryBuf.Len())); err != nil {
		return nil, err
	}
	if err := writeU32(&out, uint32(sourcesBuf.Len())); err != nil {
		return nil, err
	}
	if err := writeU32(&out, uint32(literalsBuf.Len())); err != nil {
		return nil, err
	}
	if err := writeU32(&out, uint32(ruleTreeBuf.Len())); err != nil {
		return nil, err
	}
	regoV0 := uint8(0)
	if p.Metadata.RegoV0 {
		regoV0 = 1
	}
	if err := writeU8(&out, regoV0); err != nil {
		return nil, err
	}

	out.Write(entryBuf.Bytes())
	out.Write(sourcesBuf.Bytes())
	out.Write(literalsBuf.Bytes())
	out.Write(ruleTreeBuf.Bytes())
	out.Write(coreBuf.Bytes())

	return out.Bytes(), nil
}

// DeserializeBinary decodes a Program previously produced by
// SerializeBinary. isPartial reports whether the core section failed
// to decode while the preamble remained intact (spec.md §4.4); in that
// case p is nil and partial carries the recoverable data.
func DeserializeBinary(data []byte) (p *Program, isPartial bool, partial *Partial, err error) {
	r := bytes.NewReader(data)

	magicBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, magicBuf); err != nil || string(magicBuf) != magic {
		return nil, false, nil, common.NewErrorf(common.CodeCorruptArtifact, "bad magic")
	}

	version, err := readU32(r)
	if err != nil {
		return nil, false, nil, common.NewErrorf(common.CodeCorruptArtifact, "truncated header")
	}
	if version != serializationVersion {
		return nil, false, nil, common.NewErrorf(common.CodeUnsupportedVersion, "unsupported serialization_version %d", version)
	}

	entryLen, err1 := readU32(r)
	sourcesLen, err2 := readU32(r)
	literalsLen, err3 := readU32(r)
	ruleTreeLen, err4 := readU32(r)
	regoV0Byte, err5 := readU8(r)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
		return nil, false, nil, common.NewErrorf(common.CodeCorruptArtifact, "truncated section manifest")
	}

	total := uint64(entryLen) + uint64(sourcesLen) + uint64(literalsLen) + uint64(ruleTreeLen)
	if total > uint64(r.Len()) {
		return nil, false, nil, common.NewErrorf(common.CodeCorruptArtifact, "section-length sum exceeds artifact size")
	}

	entryBuf := make([]byte, entryLen)
	if _, err := io.ReadFull(r, entryBuf); err != nil {
		return nil, false, nil, common.NewErrorf(common.CodeCorruptArtifact, "truncated entry points section")
	}
	sourcesBuf := make([]byte, sourcesLen)
	if _, err := io.ReadFull(r, sourcesBuf); err != nil {
		return nil, false, nil, common.NewErrorf(common.CodeCorruptArtifact, "truncated sources section")
	}
	literalsBuf := make([]byte, literalsLen)
	if _, err := io.ReadFull(r, literalsBuf); err != nil {
		return nil, false, nil, common.NewErrorf(common.CodeCorruptArtifact, "truncated literals section")
	}
	ruleTreeBuf := make([]byte, ruleTreeLen)
	if _, err := io.ReadFull(r, ruleTreeBuf); err != nil {
		return nil, false, nil, common.NewErrorf(common.CodeCorruptArtifact, "truncated rule tree section")
	}

	entryPoints, entryOrder, err := decodeEntryPoints(bytes.NewReader(entryBuf))
	if err != nil {
		return nil, false, nil, common.NewErrorf(common.CodeCorruptArtifact, "corrupt entry points section")
	}
	sources, err := decodeSources(bytes.NewReader(sourcesBuf))
	if err != nil {
		return nil, false, nil, common.NewErrorf(common.CodeCorruptArtifact, "corrupt sources section")
	}

	partialData := &Partial{Sources: sources, EntryPoints: entryPoints, EntryOrder: entryOrder, RegoV0: regoV0Byte != 0}

	literals, err := decodeLiterals(bytes.NewReader(literalsBuf))
	if err != nil {
		return nil, true, partialData, nil
	}
	ruleTree, err := value.Decode(bytes.NewReader(ruleTreeBuf))
	if err != nil {
		return nil, true, partialData, nil
	}

	out := New()
	out.EntryPoints = entryPoints
	out.EntryOrder = entryOrder
	out.Sources = sources
	out.Literals = literals
	out.RuleTree = ruleTree

	if err := decodeCore(r, out); err != nil {
		return nil, true, partialData, nil
	}

	return out, false, nil, nil
}
