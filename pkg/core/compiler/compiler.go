//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package compiler lowers parsed Rego modules (pkg/core/ast) plus an
// externally supplied data document into a pkg/core/program.Program,
// per spec.md §4.3. It consumes the destructuring planner
// (pkg/core/planner) and statement scheduler (pkg/core/scheduler) and
// emits pkg/core/isa instructions.
package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/manetu/rego-rvm/pkg/common"
	"github.com/manetu/rego-rvm/pkg/core/ast"
	"github.com/manetu/rego-rvm/pkg/core/isa"
	"github.com/manetu/rego-rvm/pkg/core/planner"
	"github.com/manetu/rego-rvm/pkg/core/program"
	"github.com/manetu/rego-rvm/pkg/core/scheduler"
	"github.com/manetu/rego-rvm/pkg/core/value"
)

// Options controls compilation, per spec.md §4.3. EnableDestructuringPlans
// is always on in this core and is not exposed as a toggle.
type Options struct {
	RegoV0         bool
	TargetName     string
	EnableCoverage bool
}

// OptionFunc configures an Options value, following the functional
// options idiom used throughout this module's ambient stack.
type OptionFunc func(*Options)

// WithRegoV0 toggles the rego.v0 parsing/semantics flag recorded in the
// compiled Program's metadata.
func WithRegoV0(v bool) OptionFunc { return func(o *Options) { o.RegoV0 = v } }

// WithTargetName records an optional compilation target name.
func WithTargetName(name string) OptionFunc { return func(o *Options) { o.TargetName = name } }

// WithCoverage toggles coverage instrumentation metadata.
func WithCoverage(v bool) OptionFunc { return func(o *Options) { o.EnableCoverage = v } }

// Compile lowers modules plus dataJSON into a Program, registering the
// given entry-point rule paths. This is the compile(modules, data_json,
// entry_points, options) contract of spec.md §4.3.
func Compile(modules []*ast.Module, dataJSON []byte, entryPoints []string, opts ...OptionFunc) (*program.Program, error) {
	options := Options{}
	for _, o := range opts {
		o(&options)
	}

	dataValue := value.NewObject()
	if len(dataJSON) > 0 {
		v, err := value.ParseJSON(dataJSON)
		if err != nil {
			return nil, common.NewErrorf(common.CodeParseError, "invalid data document: %v", err)
		}
		dataValue = v
	}

	c := &compiler{
		prog:        program.New(),
		literals:    make(map[string]int32),
		builtinIdx:  make(map[string]int32),
		requestedEP: make(map[string]bool),
		data:        dataValue,
	}
	for _, ep := range entryPoints {
		c.requestedEP[ep] = true
	}
	c.prog.Metadata = program.Metadata{CompilerVersion: "rego-rvm/1", RegoV0: options.RegoV0, EnableCoverage: options.EnableCoverage}

	for _, m := range modules {
		c.prog.Sources = append(c.prog.Sources, program.Source{ID: m.File, File: m.File, Content: ""})
	}

	if err := c.buildRuleTree(modules); err != nil {
		return nil, err
	}

	for _, m := range modules {
		for _, group := range groupRulesByName(m.Rules) {
			if err := c.lowerRuleGroup(m.Package, group); err != nil {
				return nil, err
			}
		}
	}

	c.prog.Literals = c.literalList
	c.prog.MaxRuleWindowSize = c.maxWindow
	return c.prog, nil
}

type compiler struct {
	prog        *program.Program
	literalList []value.Value
	literals    map[string]int32 // literal cache key -> index
	builtinIdx  map[string]int32
	requestedEP map[string]bool
	data        value.Value
	maxWindow   int32
}

// buildRuleTree constructs program.RuleTree from every rule's
// fully-qualified path and rejects any path that collides with a
// prefix already present in the externally supplied data document,
// per spec.md §4.3 step 6.
func (c *compiler) buildRuleTree(modules []*ast.Module) error {
	tree := value.NewObject()
	for _, m := range modules {
		for _, rule := range m.Rules {
			path := append(strings.Split(m.Package, "."), rule.Name)
			if d := c.data.GetPath(path); !d.IsUndefined() {
				return common.NewErrorf(common.CodeRuleDataConflict, "rule %q conflicts with externally supplied data at the same path", "data."+strings.Join(path, "."))
			}
			tree = setPath(tree, path, value.NewBool(true))
		}
	}
	c.prog.RuleTree = tree
	return nil
}

func setPath(obj value.Value, path []string, leaf value.Value) value.Value {
	if len(path) == 0 {
		return leaf
	}
	existing := obj.Get(value.NewString(path[0]))
	if existing.IsUndefined() || existing.Kind() != value.KindObject {
		existing = value.NewObject()
	}
	updated := setPath(existing, path[1:], leaf)
	return value.NewObject(append(objectPairs(obj), [2]value.Value{value.NewString(path[0]), updated})...)
}

func objectPairs(obj value.Value) [][2]value.Value {
	var out [][2]value.Value
	for _, k := range obj.ObjectKeys() {
		if k.String() == "" {
			continue
		}
		out = append(out, [2]value.Value{k, obj.Get(k)})
	}
	return out
}

func (c *compiler) internLiteral(v value.Value) int32 {
	key := literalKey(v)
	if idx, ok := c.literals[key]; ok {
		return idx
	}
	idx := int32(len(c.literalList))
	c.literalList = append(c.literalList, v)
	c.literals[key] = idx
	return idx
}

func literalKey(v value.Value) string {
	b, _ := v.MarshalJSON()
	return fmt.Sprintf("%d:%s", v.Kind(), string(b))
}

func (c *compiler) builtinIndex(name string) int32 {
	if idx, ok := c.builtinIdx[name]; ok {
		return idx
	}
	idx := int32(len(c.prog.BuiltinInfoTable))
	c.prog.BuiltinInfoTable = append(c.prog.BuiltinInfoTable, program.BuiltinInfo{Name: name, Arity: -1})
	c.builtinIdx[name] = idx
	return idx
}

// ruleCtx threads per-rule lowering state: the register allocator and
// bookkeeping for the active rule's kind/result register. Instructions
// are appended straight to c.prog.Instructions by emit.
type ruleCtx struct {
	regs    map[string]int32
	nextReg int32
	kind    ast.RuleKind
	result  int32
}

func (rc *ruleCtx) alloc(name string) int32 {
	if name != "" {
		if r, ok := rc.regs[name]; ok {
			return r
		}
	}
	r := rc.nextReg
	rc.nextReg++
	if name != "" {
		rc.regs[name] = r
	}
	return r
}

func (rc *ruleCtx) temp() int32 { return rc.alloc("") }

// ruleGroup collects every AST rule declaration sharing one name within
// a module: at most one `default` declaration plus at most one body
// rule. Multiple non-default clauses for the same name (incremental
// definition, a feature of the full language) are not supported by this
// convenience compiler; see DESIGN.md.
type ruleGroup struct {
	name    string
	main    *ast.Rule
	defRule *ast.Rule
}

func groupRulesByName(rules []*ast.Rule) []*ruleGroup {
	order := make([]string, 0, len(rules))
	groups := make(map[string]*ruleGroup)
	for _, r := range rules {
		g, ok := groups[r.Name]
		if !ok {
			g = &ruleGroup{name: r.Name}
			groups[r.Name] = g
			order = append(order, r.Name)
		}
		if r.IsDefault {
			g.defRule = r
		} else {
			g.main = r
		}
	}
	out := make([]*ruleGroup, len(order))
	for i, name := range order {
		out[i] = groups[name]
	}
	return out
}

func (c *compiler) lowerRuleGroup(pkg string, g *ruleGroup) error {
	if g.main == nil {
		return c.lowerRule(pkg, g.defRule, nil)
	}
	return c.lowerRule(pkg, g.main, g.defRule)
}

func (c *compiler) lowerRule(pkg string, rule *ast.Rule, defaultRule *ast.Rule) error {
	path := pkg + "." + rule.Name
	fqPath := "data." + path

	rc := &ruleCtx{regs: make(map[string]int32), nextReg: 1, kind: rule.Kind}
	rc.result = 0
	rc.regs["$result"] = 0

	startPC := int32(len(c.prog.Instructions))

	if rule.IsDefault {
		// A standalone `default name = value` declaration with no
		// matching body rule compiles to an always-true rule returning
		// the default value.
		defLit, ok := literalFromTerm(rule.DefaultValue)
		if !ok {
			return common.NewErrorf(common.CodeInternal, "default value for %s must be a literal", fqPath)
		}
		c.emit(isa.Instruction{Op: isa.OpRuleInit, A: rc.result, B: int32(len(c.prog.RuleInfos))})
		c.emit(isa.Instruction{Op: isa.OpLoad, A: rc.result, B: c.internLiteral(defLit)})
		c.emit(isa.Instruction{Op: isa.OpRuleReturn})

		ri := program.RuleInfo{
			Path: fqPath, ResultRegister: rc.result, RegisterWindowSize: rc.nextReg,
			HasDefault: true, DefaultValue: defLit, DestructuringBlockStart: -1,
			BodyPCs: pcRange(startPC, int32(len(c.prog.Instructions))), IsComplete: true,
		}
		c.registerRuleInfo(fqPath, ri)
		return nil
	}

	var defLit value.Value
	hasDefault := false
	if defaultRule != nil {
		lit, ok := literalFromTerm(defaultRule.DefaultValue)
		if !ok {
			return common.NewErrorf(common.CodeInternal, "default value for %s must be a literal", fqPath)
		}
		defLit, hasDefault = lit, true
	}

	c.emit(isa.Instruction{Op: isa.OpRuleInit, A: rc.result, B: int32(len(c.prog.RuleInfos))})
	switch rule.Kind {
	case ast.RulePartialSet:
		c.emit(isa.Instruction{Op: isa.OpSetNew, A: rc.result})
	case ast.RulePartialObject:
		c.emit(isa.Instruction{Op: isa.OpObjectCreate, A: rc.result, Handle: isa.NoHandle})
	}

	for _, param := range rule.Params {
		rc.alloc(param)
	}

	if rule.Body != nil {
		sched, err := scheduler.Schedule(rule.Body)
		if err != nil {
			return err
		}
		scope := planner.NewScope(nil)
		for _, param := range rule.Params {
			scope.Bind(param)
		}
		if err := c.lowerScheduledBody(rc, rule, rule.Body, sched, scope); err != nil {
			return err
		}
	}

	switch rule.Kind {
	case ast.RuleComplete, ast.RuleFunction:
		if rule.Value != nil {
			vreg, err := c.lowerTerm(rc, rule.Value)
			if err != nil {
				return err
			}
			c.emit(isa.Instruction{Op: isa.OpMove, A: rc.result, B: vreg})
		} else if rule.Body != nil {
			c.emit(isa.Instruction{Op: isa.OpLoadTrue, A: rc.result})
		}
	}

	c.emit(isa.Instruction{Op: isa.OpRuleReturn})

	if rc.nextReg > c.maxWindow {
		c.maxWindow = rc.nextReg
	}

	ri := program.RuleInfo{
		Path: fqPath, ResultRegister: rc.result, RegisterWindowSize: rc.nextReg,
		DestructuringBlockStart: -1, BodyPCs: pcRange(startPC, int32(len(c.prog.Instructions))),
		IsFunction: rule.Kind == ast.RuleFunction, IsComplete: rule.Kind == ast.RuleComplete,
		IsPartialSet: rule.Kind == ast.RulePartialSet, IsPartialObject: rule.Kind == ast.RulePartialObject,
		ParamCount: len(rule.Params), HasDefault: hasDefault, DefaultValue: defLit,
	}
	c.registerRuleInfo(fqPath, ri)
	return nil
}

func (c *compiler) registerRuleInfo(fqPath string, ri program.RuleInfo) {
	c.prog.RuleInfos = append(c.prog.RuleInfos, ri)
	if c.requestedEP[fqPath] {
		if c.prog.EntryPoints == nil {
			c.prog.EntryPoints = make(map[string]int32)
		}
		c.prog.EntryPoints[fqPath] = ri.BodyPCs[0]
		c.prog.EntryOrder = append(c.prog.EntryOrder, fqPath)
	}
}

func pcRange(start, end int32) []int32 {
	out := make([]int32, 0, end-start)
	for pc := start; pc < end; pc++ {
		out = append(out, pc)
	}
	return out
}

func (c *compiler) emit(i isa.Instruction) int32 {
	pc := int32(len(c.prog.Instructions))
	c.prog.Instructions = append(c.prog.Instructions, i)
	return pc
}

func literalFromTerm(t *ast.Term) (value.Value, bool) {
	switch t.Kind {
	case ast.TermNull:
		return value.Null(), true
	case ast.TermBool:
		return value.NewBool(t.Bool), true
	case ast.TermNumber:
		if t.IsInt {
			return value.NewInt(t.Int), true
		}
		return value.NewFloat(t.Float), true
	case ast.TermString:
		return value.NewString(t.Str), true
	default:
		return value.Undefined(), false
	}
}

// lowerScheduledBody walks a body's scheduled statement order, wrapping
// any hoisted-loop span (spec.md §4.2) in a LoopStart/LoopNext pair.
func (c *compiler) lowerScheduledBody(rc *ruleCtx, rule *ast.Rule, body *ast.Body, sched *scheduler.Schedule, scope *planner.Scope) error {
	hoistAt := make(map[int]scheduler.HoistedLoop)
	for _, h := range sched.Hoists {
		hoistAt[h.FromStmt] = h
	}

	pos := 0
	for pos < len(sched.Order) {
		if h, ok := hoistAt[pos]; ok {
			// The statement at pos (an `x := c[_]`-shaped binding) is
			// realized entirely by the loop's ValueReg; only the
			// statements after it still need lowering inside the body.
			remaining := sched.Order[pos+1:]
			if err := c.lowerHoistedLoop(rc, rule, body, h, remaining, scope); err != nil {
				return err
			}
			return nil // the hoisted loop consumes the rest of the schedule
		}
		stmt := body.Stmts[sched.Order[pos]]
		if err := c.lowerStmt(rc, stmt, scope); err != nil {
			return err
		}
		pos++
	}
	return nil
}

func (c *compiler) lowerHoistedLoop(rc *ruleCtx, rule *ast.Rule, body *ast.Body, h scheduler.HoistedLoop, remaining []int, scope *planner.Scope) error {
	collReg, err := c.lowerTerm(rc, h.Collection)
	if err != nil {
		return err
	}
	valueReg := rc.alloc(h.BindVar)
	if h.BindVar != "" {
		scope.Bind(h.BindVar)
	}

	mode := isa.LoopAny
	if rule.Kind == ast.RulePartialSet || rule.Kind == ast.RulePartialObject {
		mode = isa.LoopForEach
	}

	handle := int32(len(c.prog.Data.LoopStarts))
	startPC := c.emit(isa.Instruction{Op: isa.OpLoopStart, Handle: uint16(handle)})
	c.prog.Data.LoopStarts = append(c.prog.Data.LoopStarts, isa.LoopStartParams{
		Mode: mode, Collection: collReg, KeyReg: -1, ValueReg: valueReg, ResultReg: rc.result,
	})

	for _, idx := range remaining {
		stmt := body.Stmts[idx]
		if err := c.lowerStmt(rc, stmt, scope); err != nil {
			return err
		}
	}

	switch rule.Kind {
	case ast.RulePartialSet:
		c.emit(isa.Instruction{Op: isa.OpSetAdd, A: rc.result, B: valueReg})
	case ast.RulePartialObject:
		keyReg, err := c.lowerTerm(rc, rule.Key)
		if err != nil {
			return err
		}
		c.emit(isa.Instruction{Op: isa.OpObjectSet, A: rc.result, B: keyReg, C: valueReg})
	}

	loopEndPC := c.emit(isa.Instruction{Op: isa.OpLoopNext, A: startPC})
	ls := c.prog.Data.LoopStarts[handle]
	ls.BodyStart = startPC + 1
	ls.LoopEnd = loopEndPC + 1
	c.prog.Data.LoopStarts[handle] = ls
	if mode == isa.LoopAny {
		// The result register is true only if some iteration succeeded;
		// otherwise (including an empty collection) the body fails.
		c.emit(isa.Instruction{Op: isa.OpAssertCondition, A: rc.result})
	}
	return nil
}

func (c *compiler) lowerStmt(rc *ruleCtx, stmt *ast.Stmt, scope *planner.Scope) error {
	switch stmt.Kind {
	case ast.StmtColonEq:
		plan, err := planner.PlanColonEquals(stmt.Pattern, stmt.Rhs, scope)
		if err != nil {
			return err
		}
		return c.lowerAssignmentPlan(rc, plan)

	case ast.StmtEq:
		plan, err := planner.PlanEquals(stmt.Pattern, stmt.Rhs, scope)
		if err != nil {
			return err
		}
		return c.lowerAssignmentPlan(rc, plan)

	case ast.StmtSomeIn:
		return c.lowerSomeIn(rc, stmt, scope)

	case ast.StmtExpr:
		reg, err := c.lowerTerm(rc, stmt.Expr)
		if err != nil {
			return err
		}
		c.emit(isa.Instruction{Op: isa.OpAssertCondition, A: reg})
		return nil
	}
	return common.NewErrorf(common.CodeInternal, "unhandled statement kind")
}

// lowerSomeIn compiles `some k?, v in collection` as a membership
// assertion: a LoopAny loop with an empty body binds k/v to the first
// element, and the AssertCondition after it fails the body when the
// collection is empty. The statements that follow are lowered after the
// loop, not inside it, so they see only the first element's k/v; later
// elements are not tried.
func (c *compiler) lowerSomeIn(rc *ruleCtx, stmt *ast.Stmt, scope *planner.Scope) error {
	bp, err := planner.PlanSomeIn(stmt.SomeKey, stmt.SomeVal, stmt.SomeColl, scope)
	if err != nil {
		return err
	}
	collReg, err := c.lowerTerm(rc, bp.CollectionExpr)
	if err != nil {
		return err
	}
	valueReg := rc.alloc(stmt.SomeVal)
	keyReg := int32(-1)
	if stmt.SomeKey != "" {
		keyReg = rc.alloc(stmt.SomeKey)
	}

	handle := int32(len(c.prog.Data.LoopStarts))
	startPC := c.emit(isa.Instruction{Op: isa.OpLoopStart, Handle: uint16(handle)})
	resultReg := rc.temp()
	c.emit(isa.Instruction{Op: isa.OpLoadFalse, A: resultReg})
	c.prog.Data.LoopStarts = append(c.prog.Data.LoopStarts, isa.LoopStartParams{
		Mode: isa.LoopAny, Collection: collReg, KeyReg: keyReg, ValueReg: valueReg, ResultReg: resultReg,
	})
	loopEndPC := c.emit(isa.Instruction{Op: isa.OpLoopNext, A: startPC})
	ls := c.prog.Data.LoopStarts[handle]
	ls.BodyStart = startPC + 2
	ls.LoopEnd = loopEndPC + 1
	c.prog.Data.LoopStarts[handle] = ls
	c.emit(isa.Instruction{Op: isa.OpAssertCondition, A: resultReg})
	return nil
}

func (c *compiler) lowerAssignmentPlan(rc *ruleCtx, ap *planner.AssignmentPlan) error {
	switch ap.Kind {
	case planner.AssignColonEquals, planner.AssignEqualsBindLeft:
		rhsReg, err := c.lowerTerm(rc, ap.RhsExpr)
		if err != nil {
			return err
		}
		return c.lowerDestructuringPlan(rc, ap.LhsPlan, rhsReg)

	case planner.AssignEqualsBindRight:
		lhsReg, err := c.lowerTerm(rc, ap.LhsExpr)
		if err != nil {
			return err
		}
		return c.lowerDestructuringPlan(rc, ap.RhsPlan, lhsReg)

	case planner.AssignEqualsBothSides:
		for _, pair := range ap.Pairs {
			reg, err := c.lowerTerm(rc, pair.ValueExpr)
			if err != nil {
				return err
			}
			if err := c.lowerDestructuringPlan(rc, pair.Plan, reg); err != nil {
				return err
			}
		}
		return nil

	case planner.AssignEqualityCheck:
		lhsReg, err := c.lowerTerm(rc, ap.LhsExpr)
		if err != nil {
			return err
		}
		rhsReg, err := c.lowerTerm(rc, ap.RhsExpr)
		if err != nil {
			return err
		}
		cmp := rc.temp()
		c.emit(isa.Instruction{Op: isa.OpEq, A: cmp, B: lhsReg, C: rhsReg})
		c.emit(isa.Instruction{Op: isa.OpAssertCondition, A: cmp})
		return nil

	case planner.AssignWildcard:
		return nil
	}
	return common.NewErrorf(common.CodeInternal, "unhandled assignment plan kind")
}

func (c *compiler) lowerDestructuringPlan(rc *ruleCtx, p *planner.DestructuringPlan, srcReg int32) error {
	switch p.Kind {
	case planner.PlanVar:
		dest := rc.alloc(p.VarName)
		c.emit(isa.Instruction{Op: isa.OpMove, A: dest, B: srcReg})
		return nil

	case planner.PlanIgnore:
		return nil

	case planner.PlanEqualityToExpr:
		exprReg, err := c.lowerTerm(rc, p.Expr)
		if err != nil {
			return err
		}
		cmp := rc.temp()
		c.emit(isa.Instruction{Op: isa.OpEq, A: cmp, B: srcReg, C: exprReg})
		c.emit(isa.Instruction{Op: isa.OpAssertCondition, A: cmp})
		return nil

	case planner.PlanEqualityToLiteral:
		litReg := rc.temp()
		c.emit(isa.Instruction{Op: isa.OpLoad, A: litReg, B: c.internLiteral(p.Literal)})
		cmp := rc.temp()
		c.emit(isa.Instruction{Op: isa.OpEq, A: cmp, B: srcReg, C: litReg})
		c.emit(isa.Instruction{Op: isa.OpAssertCondition, A: cmp})
		return nil

	case planner.PlanArray:
		for i, elemPlan := range p.Elems {
			idxLit := c.internLiteral(value.NewInt(int64(i)))
			elemReg := rc.temp()
			c.emit(isa.Instruction{Op: isa.OpIndexLiteral, A: elemReg, B: srcReg, C: idxLit})
			if err := c.lowerDestructuringPlan(rc, elemPlan, elemReg); err != nil {
				return err
			}
		}
		return nil

	case planner.PlanObject:
		for _, lk := range p.LiteralKeys {
			idxLit := c.internLiteral(lk.Key)
			elemReg := rc.temp()
			c.emit(isa.Instruction{Op: isa.OpIndexLiteral, A: elemReg, B: srcReg, C: idxLit})
			if err := c.lowerDestructuringPlan(rc, lk.Plan, elemReg); err != nil {
				return err
			}
		}
		for _, dk := range p.DynamicKeys {
			keyReg, err := c.lowerTerm(rc, dk.KeyExpr)
			if err != nil {
				return err
			}
			elemReg := rc.temp()
			c.emit(isa.Instruction{Op: isa.OpIndex, A: elemReg, B: srcReg, C: keyReg})
			if err := c.lowerDestructuringPlan(rc, dk.Plan, elemReg); err != nil {
				return err
			}
		}
		return nil
	}
	return common.NewErrorf(common.CodeInternal, "unhandled destructuring plan kind")
}

var binaryOps = map[string]isa.Opcode{
	"+": isa.OpAdd, "-": isa.OpSub, "*": isa.OpMul, "/": isa.OpDiv, "%": isa.OpMod,
	"==": isa.OpEq, "!=": isa.OpNe, "<": isa.OpLt, "<=": isa.OpLe, ">": isa.OpGt, ">=": isa.OpGe,
	"and": isa.OpAnd, "&&": isa.OpAnd, "or": isa.OpOr, "||": isa.OpOr,
}

func (c *compiler) lowerTerm(rc *ruleCtx, t *ast.Term) (int32, error) {
	switch t.Kind {
	case ast.TermNull:
		dest := rc.temp()
		c.emit(isa.Instruction{Op: isa.OpLoadNull, A: dest})
		return dest, nil

	case ast.TermBool:
		dest := rc.temp()
		if t.Bool {
			c.emit(isa.Instruction{Op: isa.OpLoadTrue, A: dest})
		} else {
			c.emit(isa.Instruction{Op: isa.OpLoadFalse, A: dest})
		}
		return dest, nil

	case ast.TermNumber:
		lit, _ := literalFromTerm(t)
		dest := rc.temp()
		c.emit(isa.Instruction{Op: isa.OpLoad, A: dest, B: c.internLiteral(lit)})
		return dest, nil

	case ast.TermString:
		dest := rc.temp()
		c.emit(isa.Instruction{Op: isa.OpLoad, A: dest, B: c.internLiteral(value.NewString(t.Str))})
		return dest, nil

	case ast.TermVar:
		if r, ok := rc.regs[t.Var]; ok {
			return r, nil
		}
		return 0, common.NewErrorf(common.CodeUnresolvedReference, "unresolved variable %q", t.Var)

	case ast.TermWildcard:
		return 0, common.NewErrorf(common.CodeInternal, "wildcard used in value position")

	case ast.TermInput:
		dest := rc.temp()
		c.emit(isa.Instruction{Op: isa.OpLoadInput, A: dest})
		return dest, nil

	case ast.TermData:
		dest := rc.temp()
		c.emit(isa.Instruction{Op: isa.OpLoadData, A: dest})
		return dest, nil

	case ast.TermArray:
		elemRegs := make([]int32, len(t.Array))
		for i, e := range t.Array {
			r, err := c.lowerTerm(rc, e)
			if err != nil {
				return 0, err
			}
			elemRegs[i] = r
		}
		dest := rc.temp()
		handle := int32(len(c.prog.Data.ArrayCreates))
		c.prog.Data.ArrayCreates = append(c.prog.Data.ArrayCreates, isa.ArrayCreateParams{Dest: dest, Elements: elemRegs})
		c.emit(isa.Instruction{Op: isa.OpArrayCreate, Handle: uint16(handle)})
		return dest, nil

	case ast.TermObject:
		keyRegs := make([]int32, len(t.ObjKeys))
		valRegs := make([]int32, len(t.ObjVals))
		for i := range t.ObjKeys {
			kr, err := c.lowerTerm(rc, t.ObjKeys[i])
			if err != nil {
				return 0, err
			}
			vr, err := c.lowerTerm(rc, t.ObjVals[i])
			if err != nil {
				return 0, err
			}
			keyRegs[i] = kr
			valRegs[i] = vr
		}
		dest := rc.temp()
		handle := int32(len(c.prog.Data.ObjectCreates))
		c.prog.Data.ObjectCreates = append(c.prog.Data.ObjectCreates, isa.ObjectCreateParams{Dest: dest, Keys: keyRegs, Values: valRegs})
		c.emit(isa.Instruction{Op: isa.OpObjectCreate, Handle: uint16(handle)})
		return dest, nil

	case ast.TermRef:
		return c.lowerRef(rc, t)

	case ast.TermCall:
		return c.lowerCall(rc, t)

	case ast.TermBinary:
		lhs, err := c.lowerTerm(rc, t.Lhs)
		if err != nil {
			return 0, err
		}
		rhs, err := c.lowerTerm(rc, t.Rhs)
		if err != nil {
			return 0, err
		}
		op, ok := binaryOps[t.Op]
		if !ok {
			return 0, common.NewErrorf(common.CodeInternal, "unknown binary operator %q", t.Op)
		}
		dest := rc.temp()
		c.emit(isa.Instruction{Op: op, A: dest, B: lhs, C: rhs})
		return dest, nil

	case ast.TermNot:
		reg, err := c.lowerTerm(rc, t.Rhs)
		if err != nil {
			return 0, err
		}
		dest := rc.temp()
		c.emit(isa.Instruction{Op: isa.OpNot, A: dest, B: reg})
		return dest, nil
	}
	return 0, common.NewErrorf(common.CodeInternal, "unhandled term kind")
}

// refPath flattens a TermRef chain into a base term plus its literal or
// dynamic key steps, innermost-first.
func refPath(t *ast.Term) (*ast.Term, []*ast.Term) {
	if t.Kind != ast.TermRef {
		return t, nil
	}
	base, keys := refPath(t.Base)
	return base, append(keys, t.Keys[0])
}

func (c *compiler) lowerRef(rc *ruleCtx, t *ast.Term) (int32, error) {
	base, keys := refPath(t)

	if base.Kind == ast.TermData {
		path := make([]string, 0, len(keys))
		allLiteral := true
		for _, k := range keys {
			if k.Kind == ast.TermString {
				path = append(path, k.Str)
			} else {
				allLiteral = false
				break
			}
		}
		if allLiteral {
			dest := rc.temp()
			handle := int32(len(c.prog.Data.VirtualDataLookups))
			c.prog.Data.VirtualDataLookups = append(c.prog.Data.VirtualDataLookups, isa.VirtualDataLookupParams{Dest: dest, Path: path})
			c.emit(isa.Instruction{Op: isa.OpVirtualDataDocumentLookup, Handle: uint16(handle)})
			return dest, nil
		}
	}

	baseReg, err := c.lowerTerm(rc, base)
	if err != nil {
		return 0, err
	}

	dest := baseReg
	for _, k := range keys {
		if k.Kind == ast.TermWildcard {
			return 0, common.NewErrorf(common.CodeInternal, "wildcard ref should have been hoisted by the scheduler")
		}
		next := rc.temp()
		if lit, ok := literalFromTerm(k); ok {
			c.emit(isa.Instruction{Op: isa.OpIndexLiteral, A: next, B: dest, C: c.internLiteral(lit)})
		} else {
			keyReg, err := c.lowerTerm(rc, k)
			if err != nil {
				return 0, err
			}
			c.emit(isa.Instruction{Op: isa.OpIndex, A: next, B: dest, C: keyReg})
		}
		dest = next
	}
	return dest, nil
}

const hostAwaitBuiltin = "__builtin_host_await"

func (c *compiler) lowerCall(rc *ruleCtx, t *ast.Term) (int32, error) {
	if t.CallName == hostAwaitBuiltin {
		if len(t.Args) != 2 {
			return 0, common.NewErrorf(common.CodeInternal, "%s expects 2 arguments", hostAwaitBuiltin)
		}
		argReg, err := c.lowerTerm(rc, t.Args[0])
		if err != nil {
			return 0, err
		}
		idReg, err := c.lowerTerm(rc, t.Args[1])
		if err != nil {
			return 0, err
		}
		dest := rc.temp()
		c.emit(isa.Instruction{Op: isa.OpHostAwait, A: dest, B: argReg, C: idReg})
		return dest, nil
	}

	argRegs := make([]int32, len(t.Args))
	for i, a := range t.Args {
		r, err := c.lowerTerm(rc, a)
		if err != nil {
			return 0, err
		}
		argRegs[i] = r
	}
	dest := rc.temp()
	handle := int32(len(c.prog.Data.BuiltinCalls))
	c.prog.Data.BuiltinCalls = append(c.prog.Data.BuiltinCalls, isa.BuiltinCallParams{Dest: dest, Index: c.builtinIndex(t.CallName), Args: argRegs})
	c.emit(isa.Instruction{Op: isa.OpBuiltinCall, Handle: uint16(handle)})
	return dest, nil
}

// sortedRulePaths returns the paths of p's compiled rules in sorted
// order. Nothing in this module calls it.
func sortedRulePaths(p *program.Program) []string {
	out := make([]string, len(p.RuleInfos))
	for i, ri := range p.RuleInfos {
		out[i] = ri.Path
	}
	sort.Strings(out)
	return out
}
