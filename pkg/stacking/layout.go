// Package stacking lays out Mandarin activation records once register
// allocation has placed every spill slot. It computes object offsets and the
// frame size, emits the prologue and epilogue, removes the call-sequence
// pseudos and rewrites frame-index operands into base-register addressing.
package stacking

import (
	"github.com/raymyers/mandarin-llc/pkg/mach"
	"github.com/raymyers/mandarin-llc/pkg/target"
)

const (
	stackAlignment = 4 // Mandarin keeps SP word aligned
	wordSize       = 4
	returnAddrSize = 4 // pushed by CALL above the caller's SP
)

// Mandarin frame layout (the stack grows toward higher addresses):
//
//	+---------------------------+  <- SP after the prologue (entry SP + StackSize)
//	| Reserved call frame       |  MaxCallFrameSize, outgoing arguments
//	| Locals and spill slots    |
//	| Saved FP                  |  offset 0, only with a frame pointer
//	+---------------------------+  <- entry SP, FP when used: the frame bottom
//	| Return address            |  -4
//	| Incoming stack arguments  |  -4 - IncomingArgSize ... -4
//	+---------------------------+
//
// Object offsets are relative to the frame bottom. Outgoing arguments are
// stored at SP - NumBytes + offset, the top of the caller's frame, which the
// callee sees just below its return address.

// FrameLowering decides the frame shape of a function
type FrameLowering struct {
	DisableFPElim bool
}

// New returns the frame lowering; disableFPElim forces a frame pointer
func New(disableFPElim bool) *FrameLowering {
	return &FrameLowering{DisableFPElim: disableFPElim}
}

// HasFP reports whether f needs a dedicated frame pointer: elimination is
// disabled, the frame has variable-sized objects, or its address is taken
func (fl *FrameLowering) HasFP(f *mach.Function) bool {
	fi := f.Frame
	return fl.DisableFPElim || fi.HasVarSizedObjects || fi.FrameAddressTaken
}

// HasReservedCallFrame reports whether the outgoing argument area is part of
// the fixed frame. Without variable-sized objects SP never moves in the body.
func (fl *FrameLowering) HasReservedCallFrame(f *mach.Function) bool {
	return !f.Frame.HasVarSizedObjects
}

// IncomingArgOffset returns the frame offset of an incoming stack argument at
// byte offset off of an argument area of size argSize
func IncomingArgOffset(off, argSize int64) int64 {
	return off - argSize - returnAddrSize
}

// Layout assigns offsets to every non-fixed stack object and computes the
// frame size. It may run only once per function.
func (fl *FrameLowering) Layout(f *mach.Function) {
	fi := f.Frame
	computeCallFrameInfo(f)

	var off int64
	if f.HasFP {
		off = wordSize // saved FP
	}
	for i := range fi.Objects {
		o := &fi.Objects[i]
		if o.Fixed || o.VarSized {
			continue
		}
		off = alignUp(off, max(o.Align, 1))
		o.Offset = off
		off += o.Size
	}
	off = alignUp(off, stackAlignment)
	if fl.HasReservedCallFrame(f) {
		off += fi.MaxCallFrameSize
	}
	fi.StackSize = alignUp(off, stackAlignment)
	fi.MarkLaidOut()
}

// computeCallFrameInfo finds the largest outgoing argument area among the
// call sequences of f
func computeCallFrameInfo(f *mach.Function) {
	fi := f.Frame
	f.Instrs(func(_ *mach.Block, in *mach.Instr) {
		if in.Op != target.ADJCALLSTACKDOWN {
			return
		}
		fi.AdjustsStack = true
		if n := in.Operands[0].(mach.Imm).Val; n > fi.MaxCallFrameSize {
			fi.MaxCallFrameSize = n
		}
	})
}

// alignUp rounds n up to the nearest multiple of align
func alignUp(n, align int64) int64 {
	if align == 0 {
		return n
	}
	return ((n + align - 1) / align) * align
}
