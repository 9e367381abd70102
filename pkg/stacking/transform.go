package stacking

import (
	"github.com/raymyers/mandarin-llc/pkg/diag"
	"github.com/raymyers/mandarin-llc/pkg/logger"
	"github.com/raymyers/mandarin-llc/pkg/mach"
	"github.com/raymyers/mandarin-llc/pkg/target"
)

// Run finalizes the frame of an allocated function. Afterwards no frame
// index or call-sequence pseudo remains; addresses of stack objects are
// computed into the reserved scratch register.
func (fl *FrameLowering) Run(f *mach.Function) (err error) {
	defer diag.Recover(&err)
	logger.LogPhase("stacking", f.Name)

	f.HasFP = fl.HasFP(f)
	fl.Layout(f)
	fl.EliminateCallFramePseudos(f)
	fl.EliminateFrameIndices(f)
	fl.EmitPrologue(f)
	fl.EmitEpilogue(f)

	logger.LogFrame(f.Name, f.Frame.StackSize, f.HasFP)
	logger.LogPhaseComplete("stacking", f.Name, f.NumInstrs())
	return nil
}

// EliminateCallFramePseudos removes every ADJCALLSTACKDOWN/UP pair. With a
// reserved call frame they simply go away; otherwise DOWN grows SP by the
// argument area and UP shrinks it again.
func (fl *FrameLowering) EliminateCallFramePseudos(f *mach.Function) {
	reserved := fl.HasReservedCallFrame(f)
	for _, b := range f.Blocks {
		c := mach.At(b, 0)
		for !c.Done() {
			in := c.Current()
			var op target.Opcode
			switch in.Op {
			case target.ADJCALLSTACKDOWN:
				op = target.ADDri
			case target.ADJCALLSTACKUP:
				op = target.SUBri
			default:
				c.Next()
				continue
			}
			if n := in.Operands[0].(mach.Imm).Val; !reserved && n != 0 {
				c.Build(op, mach.Use(target.SP), mach.Use(target.SP), mach.Imm{Val: n})
			}
			c.Erase()
		}
	}
}

// EliminateFrameIndices rewrites each frame-index operand as it is visited.
// The address is FP + offset, or SP + offset - StackSize without a frame
// pointer, since SP then sits at the top of the frame. Mandarin memory
// operands take no displacement, so a non-zero offset is computed into
// target.Scratch just before the instruction. Taking the address itself
// (MOVrr dst, fi) becomes a single add into dst.
func (fl *FrameLowering) EliminateFrameIndices(f *mach.Function) {
	fi := f.Frame
	if !fi.LaidOut() {
		diag.Invariant("%s: frame indices eliminated before layout", f.Name)
	}
	base := target.SP
	adjust := -fi.StackSize
	if f.HasFP {
		base = target.FP
		adjust = 0
	}

	for _, b := range f.Blocks {
		c := mach.At(b, 0)
		for ; !c.Done(); c.Next() {
			in := c.Current()
			seen := false
			for i, op := range in.Operands {
				idx, ok := op.(mach.FrameIndex)
				if !ok {
					continue
				}
				if seen {
					diag.Invariant("%s: two frame indices in %s", f.Name, in)
				}
				seen = true
				obj := fi.Object(idx.Index)
				if obj.VarSized {
					diag.Invariant("%s: variable-sized object fi#%d has no frame address", f.Name, idx.Index)
				}
				off := obj.Offset + adjust
				if in.Op == target.MOVrr && i == 1 {
					foldAddress(in, base, off)
					continue
				}
				in.Operands[i] = mach.Use(materialize(c, base, off))
			}
		}
	}
}

// foldAddress turns MOVrr dst, fi into dst = base + off
func foldAddress(in *mach.Instr, base target.Reg, off int64) {
	dst := in.Operands[0]
	switch {
	case off > 0:
		in.Op, in.Operands = target.ADDri, []mach.Operand{dst, mach.Use(base), mach.Imm{Val: off}}
	case off < 0:
		in.Op, in.Operands = target.SUBri, []mach.Operand{dst, mach.Use(base), mach.Imm{Val: -off}}
	default:
		in.Operands[1] = mach.Use(base)
	}
}

// materialize returns a register holding base + off, inserting the
// arithmetic before the cursor when off is not zero
func materialize(c *mach.Cursor, base target.Reg, off int64) target.Reg {
	if off == 0 {
		return base
	}
	if off > 0 {
		c.Build(target.ADDri, mach.Use(target.Scratch), mach.Use(base), mach.Imm{Val: off})
	} else {
		c.Build(target.SUBri, mach.Use(target.Scratch), mach.Use(base), mach.Imm{Val: -off})
	}
	return target.Scratch
}
