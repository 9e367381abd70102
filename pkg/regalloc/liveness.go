package regalloc

import (
	"slices"

	"github.com/raymyers/mandarin-llc/pkg/mach"
	"github.com/raymyers/mandarin-llc/pkg/target"
)

// RegSet is a set of registers: virtual registers and physical units
type RegSet map[target.Reg]struct{}

// NewRegSet creates an empty register set
func NewRegSet(regs ...target.Reg) RegSet {
	s := make(RegSet, len(regs))
	for _, r := range regs {
		s.Add(r)
	}
	return s
}

func (s RegSet) Add(r target.Reg)    { s[r] = struct{}{} }
func (s RegSet) Remove(r target.Reg) { delete(s, r) }

func (s RegSet) Contains(r target.Reg) bool {
	_, ok := s[r]
	return ok
}

// Union returns a new set with the members of both
func (s RegSet) Union(o RegSet) RegSet {
	out := s.Copy()
	for r := range o {
		out.Add(r)
	}
	return out
}

// Minus returns a new set with the members of s not in o
func (s RegSet) Minus(o RegSet) RegSet {
	out := NewRegSet()
	for r := range s {
		if !o.Contains(r) {
			out.Add(r)
		}
	}
	return out
}

func (s RegSet) Equal(o RegSet) bool {
	if len(s) != len(o) {
		return false
	}
	for r := range s {
		if !o.Contains(r) {
			return false
		}
	}
	return true
}

func (s RegSet) Copy() RegSet {
	out := make(RegSet, len(s))
	for r := range s {
		out[r] = struct{}{}
	}
	return out
}

// Slice returns the members in ascending order
func (s RegSet) Slice() []target.Reg {
	out := make([]target.Reg, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	slices.Sort(out)
	return out
}

// LivenessInfo holds the registers live on entry to and exit from each block
type LivenessInfo struct {
	LiveIn  map[*mach.Block]RegSet
	LiveOut map[*mach.Block]RegSet
}

// tracker decides which register names liveness follows. Physical registers
// are followed per scalar unit; reserved units are ignored.
type tracker struct {
	reserved RegSet
	clobber  []target.Reg
}

func newTracker(f *mach.Function) *tracker {
	ri := target.RegisterInfo{}
	return &tracker{
		reserved: NewRegSet(ri.Reserved(f.HasFP)...),
		clobber:  ri.Allocatable(target.Generic, f.HasFP),
	}
}

// names returns the liveness names of r
func (t *tracker) names(r target.Reg) []target.Reg {
	if r.IsVirtual() {
		return []target.Reg{r}
	}
	var out []target.Reg
	for _, u := range r.Units() {
		if !t.reserved.Contains(u) {
			out = append(out, u)
		}
	}
	return out
}

// defs returns the names an instruction writes. A call writes every
// allocatable unit: Mandarin has no callee-saved registers.
func (t *tracker) defs(in *mach.Instr) []target.Reg {
	var out []target.Reg
	for _, r := range in.Defs() {
		out = append(out, t.names(r)...)
	}
	if in.IsCall() {
		out = append(out, t.clobber...)
	}
	return out
}

func (t *tracker) uses(in *mach.Instr) []target.Reg {
	var out []target.Reg
	for _, r := range in.Uses() {
		out = append(out, t.names(r)...)
	}
	return out
}

// AnalyzeLiveness computes block live-in and live-out sets by iterating the
// backward dataflow equations to a fixed point. PHIs must already be gone.
func AnalyzeLiveness(f *mach.Function) *LivenessInfo {
	t := newTracker(f)
	info := &LivenessInfo{
		LiveIn:  make(map[*mach.Block]RegSet, len(f.Blocks)),
		LiveOut: make(map[*mach.Block]RegSet, len(f.Blocks)),
	}
	use := make(map[*mach.Block]RegSet, len(f.Blocks))
	def := make(map[*mach.Block]RegSet, len(f.Blocks))
	for _, b := range f.Blocks {
		u, d := NewRegSet(), NewRegSet()
		for _, in := range b.Instrs {
			for _, r := range t.uses(in) {
				if !d.Contains(r) {
					u.Add(r)
				}
			}
			for _, r := range t.defs(in) {
				d.Add(r)
			}
		}
		use[b], def[b] = u, d
		info.LiveIn[b] = NewRegSet()
		info.LiveOut[b] = NewRegSet()
	}

	for changed := true; changed; {
		changed = false
		for i := len(f.Blocks) - 1; i >= 0; i-- {
			b := f.Blocks[i]
			out := NewRegSet()
			for _, s := range b.Succs {
				for r := range info.LiveIn[s] {
					out.Add(r)
				}
			}
			in := use[b].Union(out.Minus(def[b]))
			if !in.Equal(info.LiveIn[b]) || !out.Equal(info.LiveOut[b]) {
				info.LiveIn[b], info.LiveOut[b] = in, out
				changed = true
			}
		}
	}
	return info
}
