package regalloc

import (
	"github.com/raymyers/mandarin-llc/pkg/mach"
	"github.com/raymyers/mandarin-llc/pkg/target"
)

// EliminatePHIs lowers every PHI to copies. Each PHI gets a fresh register
// that every predecessor writes just before its terminators and that the
// block copies into the PHI's result on entry, so PHIs reading each other's
// results still see the old values.
func EliminatePHIs(f *mach.Function) int {
	n := 0
	for _, b := range f.Blocks {
		k := 0
		for k < len(b.Instrs) && b.Instrs[k].Op == target.PHI {
			k++
		}
		if k == 0 {
			continue
		}
		var entry []*mach.Instr
		for _, phi := range b.Instrs[:k] {
			dst := phi.Operands[0].(mach.Register).Reg
			tmp := f.RegInfo.CreateVirtualRegister(f.RegInfo.ClassOf(dst))
			for i := 1; i+1 < len(phi.Operands); i += 2 {
				src := phi.Operands[i].(mach.Register).Reg
				pred := phi.Operands[i+1].(mach.MBB).Block
				mach.BeforeTerminators(pred).Build(target.COPY, mach.Use(tmp), mach.Use(src))
			}
			entry = append(entry, mach.NewInstr(target.COPY, mach.Use(dst), mach.Use(tmp)))
			n++
		}
		b.Instrs = append(entry, b.Instrs[k:]...)
	}
	return n
}
