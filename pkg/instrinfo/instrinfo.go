// Package instrinfo answers target-specific questions about Mandarin machine
// instructions: branch analysis and rewriting, register copies and stack slot
// spills. The register allocator and branch folding are its clients.
package instrinfo

import (
	"github.com/raymyers/mandarin-llc/pkg/diag"
	"github.com/raymyers/mandarin-llc/pkg/logger"
	"github.com/raymyers/mandarin-llc/pkg/mach"
	"github.com/raymyers/mandarin-llc/pkg/target"
)

// InstrInfo is the Mandarin instruction information
type InstrInfo struct {
	Regs target.RegisterInfo
}

// New returns the instruction information for Mandarin
func New() *InstrInfo {
	return &InstrInfo{}
}

// Branch is the result of AnalyzeBranch.
//
//	TBB == nil              falls through
//	TBB != nil, Cond empty  unconditional jump to TBB
//	Cond[0], FBB == nil     conditional jump to TBB, else fall through
//	Cond[0], FBB != nil     conditional jump to TBB, else jump to FBB
type Branch struct {
	TBB  *mach.Block
	FBB  *mach.Block
	Cond []target.CondCode
}

// AnalyzeBranch walks the terminators of b from the bottom. It reports false
// when the block ends in something it cannot describe: a return, an indirect
// jump, an invalid condition code, or two conditional jumps that disagree.
//
// With allowModify set, instructions after an unconditional jump are deleted
// and a jump to the layout successor is removed.
func (ii *InstrInfo) AnalyzeBranch(b *mach.Block, allowModify bool) (Branch, bool) {
	var br Branch
	i := len(b.Instrs)
	for i > 0 {
		i--
		in := b.Instrs[i]

		if !in.IsTerminator() {
			break
		}
		if !in.IsBranch() {
			return br, false
		}
		if in.IsIndirectBranch() {
			return br, false
		}

		if in.Op == target.JMPi {
			if !allowModify {
				br.TBB = in.Target()
				continue
			}
			b.Instrs = b.Instrs[:i+1]
			br.Cond = nil
			br.FBB = nil
			if b.IsLayoutSuccessor(in.Target()) {
				br.TBB = nil
				b.Instrs = b.Instrs[:i]
				continue
			}
			br.TBB = in.Target()
			continue
		}

		cc := in.CondCode()
		if !cc.Valid() {
			return br, false
		}

		// first conditional jump from the bottom
		if len(br.Cond) == 0 {
			br.FBB = br.TBB
			br.TBB = in.Target()
			br.Cond = []target.CondCode{cc}
			continue
		}

		// later ones must agree with it
		if br.TBB != in.Target() || br.Cond[0] != cc {
			return br, false
		}
	}
	return br, true
}

// InsertBranch appends the jumps described by tbb, fbb and cond to b and
// returns how many instructions it added
func (ii *InstrInfo) InsertBranch(b *mach.Block, tbb, fbb *mach.Block, cond []target.CondCode) int {
	if tbb == nil {
		diag.Invariant("InsertBranch asked to insert a fall-through in bb.%d", b.ID)
	}
	if len(cond) > 1 {
		diag.Invariant("Mandarin branch conditions have one component, got %d", len(cond))
	}
	c := mach.AtEnd(b)

	if len(cond) == 0 {
		if fbb != nil {
			diag.Invariant("unconditional branch in bb.%d with two destinations", b.ID)
		}
		c.Build(target.JMPi, mach.MBB{Block: tbb})
		return 1
	}

	c.Build(target.JCCi, mach.MBB{Block: tbb}, mach.Cond{CC: cond[0]})
	if fbb == nil {
		return 1
	}
	c.Build(target.JMPi, mach.MBB{Block: fbb})
	return 2
}

// RemoveBranch deletes the jumps at the end of b and returns how many it removed
func (ii *InstrInfo) RemoveBranch(b *mach.Block) int {
	n := 0
	for len(b.Instrs) > 0 {
		switch b.Last().Op {
		case target.JMPi, target.JCCi, target.JMPr, target.JCCr:
			b.Instrs = b.Instrs[:len(b.Instrs)-1]
			n++
		default:
			return n
		}
	}
	return n
}

// ReverseBranchCondition reports whether cond was inverted in place. Mandarin
// has no inverse condition table, so it never is.
func (ii *InstrInfo) ReverseBranchCondition(cond []target.CondCode) bool {
	return false
}

// CopyPhysReg inserts a move of src into dst at c. A wide destination whose
// first unit is the argument register src already holds the value (a wide
// result arrives in its scalar units) and needs no instruction.
func (ii *InstrInfo) CopyPhysReg(c *mach.Cursor, dst, src target.Reg) {
	if dst == src {
		return
	}
	dc, sc := target.ClassOf(dst), target.ClassOf(src)
	if dc == sc && dc != target.NoClass {
		c.Build(target.CopyOpcode(dc), mach.Use(dst), mach.Use(src))
		return
	}
	if (dc == target.Double || dc == target.Quad) && sc == target.Generic && alreadyInPlace(dst, src) {
		logger.Debug("copy already in place", "dst", dst.String(), "src", src.String())
		return
	}
	diag.Invariant("impossible register copy %v <- %v", dst, src)
}

func alreadyInPlace(dst, src target.Reg) bool {
	if src != dst.Units()[0] {
		return false
	}
	for slot := 0; slot < target.NumArgSlots; slot++ {
		if src == target.R(slot) {
			return true
		}
	}
	return false
}

// StoreRegToStackSlot inserts a spill of src into stack object fi at c
func (ii *InstrInfo) StoreRegToStackSlot(c *mach.Cursor, src target.Reg, fi int, class target.RegClass) {
	if class != target.Generic {
		diag.Invariant("cannot store %v register %v to a stack slot", class, src)
	}
	c.Build(target.STORErr, mach.FrameIndex{Index: fi}, mach.Use(src))
}

// LoadRegFromStackSlot inserts a reload of dst from stack object fi at c
func (ii *InstrInfo) LoadRegFromStackSlot(c *mach.Cursor, dst target.Reg, fi int, class target.RegClass) {
	if class != target.Generic {
		diag.Invariant("cannot load %v register %v from a stack slot", class, dst)
	}
	c.Build(target.LOADrr, mach.Use(dst), mach.FrameIndex{Index: fi})
}

// CanSpill reports whether registers of class can live in a stack slot
func (ii *InstrInfo) CanSpill(class target.RegClass) bool {
	return class == target.Generic
}

// ExpandPostRAPseudos replaces every COPY between physical registers with a
// real move, or with nothing when the value is already in place
func (ii *InstrInfo) ExpandPostRAPseudos(f *mach.Function) {
	for _, b := range f.Blocks {
		c := mach.At(b, 0)
		for !c.Done() {
			in := c.Current()
			if in.Op != target.COPY {
				c.Next()
				continue
			}
			dst := in.Operands[0].(mach.Register).Reg
			src := in.Operands[1].(mach.Register).Reg
			if dst.IsVirtual() || src.IsVirtual() {
				diag.Invariant("%s: COPY of virtual register after allocation: %s", f.Name, in)
			}
			ii.CopyPhysReg(c, dst, src)
			c.Erase()
		}
	}
}
