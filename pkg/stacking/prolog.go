package stacking

import (
	"github.com/raymyers/mandarin-llc/pkg/diag"
	"github.com/raymyers/mandarin-llc/pkg/mach"
	"github.com/raymyers/mandarin-llc/pkg/target"
)

// EmitPrologue inserts the frame setup at the start of the entry block:
//
//	storel fp, [sp], 0    save the caller's FP at the frame bottom
//	mov    fp, sp
//	add    sp, sp, size   allocate the frame
//
// The first two only appear with a frame pointer, the last only for a
// non-empty frame. FP becomes live-in to every other block.
func (fl *FrameLowering) EmitPrologue(f *mach.Function) {
	entry := f.Entry()
	c := mach.At(entry, 0)
	size := f.Frame.StackSize

	if f.HasFP {
		c.Build(target.STORELri, mach.Use(target.FP), mach.Use(target.SP), mach.Imm{Val: 0})
		c.Build(target.MOVrr, mach.Use(target.FP), mach.Use(target.SP))
		for _, b := range f.Blocks[1:] {
			b.AddLiveIn(target.FP)
		}
	}
	if size > 0 {
		c.Build(target.ADDri, mach.Use(target.SP), mach.Use(target.SP), mach.Imm{Val: size})
	}
}

// EmitEpilogue releases the frame right before the function's only RET:
// SP is reset from FP for variable-sized frames or shrunk by the frame size
// otherwise, then the caller's FP is reloaded from the frame bottom.
func (fl *FrameLowering) EmitEpilogue(f *mach.Function) {
	ret, retBlock := findReturn(f)
	c := mach.At(retBlock, ret)
	size := f.Frame.StackSize

	if f.Frame.HasVarSizedObjects {
		c.Build(target.MOVrr, mach.Use(target.SP), mach.Use(target.FP))
	} else if size > 0 {
		c.Build(target.SUBri, mach.Use(target.SP), mach.Use(target.SP), mach.Imm{Val: size})
	}
	if f.HasFP {
		c.Build(target.LOADLri, mach.Use(target.FP), mach.Use(target.SP), mach.Imm{Val: 0})
	}
}

// findReturn locates the single RET of f
func findReturn(f *mach.Function) (int, *mach.Block) {
	var (
		pos   = -1
		block *mach.Block
		count int
	)
	for _, b := range f.Blocks {
		for i, in := range b.Instrs {
			if in.IsReturn() {
				pos, block = i, b
				count++
			}
		}
	}
	if count != 1 {
		diag.Invariant("%s: expected exactly one return, found %d", f.Name, count)
	}
	return pos, block
}
