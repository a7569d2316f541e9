//
//  Copyright © Manetu Inc. All rights reserved.
//

package program

import (
	"fmt"
	"strings"
)

// GenerateListing renders a human-readable disassembly of p, one line
// per instruction, annotated with rule boundaries and entry points
// (spec.md §6.2's program_generate_listing).
func (p *Program) GenerateListing() string {
	var b strings.Builder

	entryAt := make(map[int32][]string)
	for _, name := range p.EntryOrder {
		pc := p.EntryPoints[name]
		entryAt[pc] = append(entryAt[pc], name)
	}
	ruleAt := make(map[int32]string)
	for i, ri := range p.RuleInfos {
		if len(ri.BodyPCs) > 0 {
			ruleAt[ri.BodyPCs[0]] = fmt.Sprintf("rule[%d] %s", i, ri.Path)
		}
	}

	for pc, instr := range p.Instructions {
		pc32 := int32(pc)
		for _, name := range entryAt[pc32] {
			fmt.Fprintf(&b, "; entry_point %s\n", name)
		}
		if label, ok := ruleAt[pc32]; ok {
			fmt.Fprintf(&b, "; %s\n", label)
		}
		fmt.Fprintf(&b, "%04d  %-24s A=%d B=%d C=%d h=%d\n", pc, instr.Op.String(), instr.A, instr.B, instr.C, instr.Handle)
	}

	return b.String()
}
