package regalloc

import (
	"github.com/raymyers/mandarin-llc/pkg/diag"
	"github.com/raymyers/mandarin-llc/pkg/instrinfo"
	"github.com/raymyers/mandarin-llc/pkg/logger"
	"github.com/raymyers/mandarin-llc/pkg/mach"
	"github.com/raymyers/mandarin-llc/pkg/target"
)

// Allocate replaces every virtual register of f with a physical register.
// PHIs are lowered to copies first. Registers that cannot be colored are
// spilled to stack slots and allocation is retried. A spill temporary that
// cannot be colored is never spilled again; one of its neighbors is.
func Allocate(f *mach.Function, ii *instrinfo.InstrInfo) (err error) {
	defer diag.Recover(&err)
	logger.LogPhase("regalloc", f.Name)

	if n := EliminatePHIs(f); n > 0 {
		logger.Debug("Eliminated PHIs", "function", f.Name, "count", n)
	}
	noSpill := NewRegSet()
	for round := 1; ; round++ {
		result := AllocateOnce(f, noSpill.Copy())
		if len(result.Spilled) == 0 {
			Rewrite(f, result.Assignment)
			logger.LogPhaseComplete("regalloc", f.Name, f.NumInstrs())
			return nil
		}
		victims := chooseVictims(result, noSpill)
		if len(victims) == 0 {
			return diag.Limitf(f.Name, "", "ran out of registers for spill temporary %v", result.Spilled[0])
		}
		logger.Debug("Spilling", "function", f.Name, "round", round, "count", len(victims))
		for _, v := range victims {
			temps, err := spillRegister(f, ii, v)
			if err != nil {
				return err
			}
			for _, t := range temps {
				noSpill.Add(t)
			}
		}
	}
}

// chooseVictims returns the registers to spill this round: every uncolored
// register that is not a spill temporary and, for each uncolored temporary,
// its interfering neighbor of highest degree
func chooseVictims(result *AllocationResult, noSpill RegSet) []target.Reg {
	victims := NewRegSet()
	for _, v := range result.Spilled {
		if !noSpill.Contains(v) {
			victims.Add(v)
			continue
		}
		best, bestDeg := target.NoReg, -1
		for _, n := range result.Graph.Edges[v].Slice() {
			if noSpill.Contains(n) {
				continue
			}
			if d := result.Graph.Degree(n); d > bestDeg {
				best, bestDeg = n, d
			}
		}
		if best != target.NoReg {
			victims.Add(best)
		}
	}
	return victims.Slice()
}

// Rewrite replaces every virtual register operand with its assignment
func Rewrite(f *mach.Function, assignment map[target.Reg]target.Reg) {
	f.Instrs(func(b *mach.Block, in *mach.Instr) {
		for i, op := range in.Operands {
			r, ok := op.(mach.Register)
			if !ok || !r.Reg.IsVirtual() {
				continue
			}
			p, ok := assignment[r.Reg]
			if !ok {
				diag.Invariant("%s: %v has no register in %s", f.Name, r.Reg, in)
			}
			r.Reg = p
			in.Operands[i] = r
		}
	})
	for i, li := range f.RegInfo.LiveIns {
		if li.Virt.IsVirtual() {
			f.RegInfo.LiveIns[i].Virt = assignment[li.Virt]
		}
	}
}
