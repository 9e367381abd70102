package stacking

import (
	"errors"
	"testing"

	"github.com/raymyers/mandarin-llc/pkg/diag"
	"github.com/raymyers/mandarin-llc/pkg/mach"
	"github.com/raymyers/mandarin-llc/pkg/target"
)

func newFunc(code ...*mach.Instr) *mach.Function {
	f := mach.NewFunction("f", 0)
	b := f.CreateBlock("entry")
	f.AppendBlock(b)
	b.Instrs = code
	return f
}

func ret() *mach.Instr { return mach.NewInstr(target.RET) }

func ops(b *mach.Block) []target.Opcode {
	out := make([]target.Opcode, len(b.Instrs))
	for i, in := range b.Instrs {
		out[i] = in.Op
	}
	return out
}

func sameOps(got, want []target.Opcode) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestAlignUp(t *testing.T) {
	tests := []struct {
		n, align, want int64
	}{
		{0, 4, 0},
		{1, 4, 4},
		{4, 4, 4},
		{5, 4, 8},
		{9, 8, 16},
		{3, 0, 3},
	}
	for _, tt := range tests {
		if got := alignUp(tt.n, tt.align); got != tt.want {
			t.Errorf("alignUp(%d, %d) = %d, want %d", tt.n, tt.align, got, tt.want)
		}
	}
}

func TestHasFP(t *testing.T) {
	tests := []struct {
		name      string
		disable   bool
		varSized  bool
		frameAddr bool
		want      bool
	}{
		{"leaf", false, false, false, false},
		{"disabled elimination", true, false, false, true},
		{"variable sized", false, true, false, true},
		{"frame address", false, false, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFunc(ret())
			f.Frame.HasVarSizedObjects = tt.varSized
			f.Frame.FrameAddressTaken = tt.frameAddr
			fl := New(tt.disable)
			if got := fl.HasFP(f); got != tt.want {
				t.Errorf("HasFP() = %v, want %v", got, tt.want)
			}
			if got := fl.HasReservedCallFrame(f); got != !tt.varSized {
				t.Errorf("HasReservedCallFrame() = %v, want %v", got, !tt.varSized)
			}
		})
	}
}

func TestLayout(t *testing.T) {
	f := newFunc(
		mach.NewInstr(target.ADJCALLSTACKDOWN, mach.Imm{Val: 8}),
		mach.NewInstr(target.ADJCALLSTACKUP, mach.Imm{Val: 8}, mach.Imm{Val: 0}),
		ret(),
	)
	fi := f.Frame
	in := fi.CreateFixedObject(4, IncomingArgOffset(0, 4))
	a := fi.CreateStackObject(4, 4)
	b := fi.CreateStackObject(8, 8)
	s := fi.CreateSpillSlot(4, 4)

	New(false).Layout(f)

	if fi.Object(in).Offset != -8 {
		t.Errorf("incoming offset = %d, want -8", fi.Object(in).Offset)
	}
	wantOff := map[int]int64{a: 0, b: 8, s: 16}
	for idx, want := range wantOff {
		if got := fi.Object(idx).Offset; got != want {
			t.Errorf("fi#%d offset = %d, want %d", idx, got, want)
		}
	}
	if fi.MaxCallFrameSize != 8 || !fi.AdjustsStack {
		t.Errorf("call frame = %d adjusts=%v", fi.MaxCallFrameSize, fi.AdjustsStack)
	}
	if fi.StackSize != 28 {
		t.Errorf("StackSize = %d, want 28", fi.StackSize)
	}
}

func TestLayoutReservesSavedFPSlot(t *testing.T) {
	f := newFunc(ret())
	f.HasFP = true
	x := f.Frame.CreateStackObject(2, 2)
	New(true).Layout(f)
	if got := f.Frame.Object(x).Offset; got != 4 {
		t.Errorf("first local offset = %d, want 4", got)
	}
	if f.Frame.StackSize != 8 {
		t.Errorf("StackSize = %d, want 8", f.Frame.StackSize)
	}
}

func TestLeafFunctionHasNoFrameCode(t *testing.T) {
	f := newFunc(
		mach.NewInstr(target.MOVri, mach.Use(target.R(0)), mach.Imm{Val: 1}),
		mach.NewInstr(target.RET, mach.ImplicitUse(target.R(0))),
	)
	if err := New(false).Run(f); err != nil {
		t.Fatal(err)
	}
	if got := ops(f.Entry()); !sameOps(got, []target.Opcode{target.MOVri, target.RET}) {
		t.Errorf("instrs = %v, want no prologue or epilogue", got)
	}
	if f.HasFP || f.Frame.StackSize != 0 {
		t.Errorf("HasFP=%v StackSize=%d", f.HasFP, f.Frame.StackSize)
	}
}

func TestPrologueAndEpilogueWithFP(t *testing.T) {
	f := newFunc(ret())
	exit := f.CreateBlock("exit")
	f.AppendBlock(exit)
	f.Entry().Instrs = []*mach.Instr{mach.NewInstr(target.JMPi, mach.MBB{Block: exit})}
	exit.Instrs = []*mach.Instr{ret()}
	f.Entry().AddSuccessor(exit)
	f.Frame.CreateStackObject(4, 4)

	if err := New(true).Run(f); err != nil {
		t.Fatal(err)
	}
	want := []target.Opcode{target.STORELri, target.MOVrr, target.ADDri, target.JMPi}
	if got := ops(f.Entry()); !sameOps(got, want) {
		t.Errorf("entry = %v, want %v", got, want)
	}
	want = []target.Opcode{target.SUBri, target.LOADLri, target.RET}
	if got := ops(exit); !sameOps(got, want) {
		t.Errorf("exit = %v, want %v", got, want)
	}
	if got := f.Entry().Instrs[2].Operands[2].(mach.Imm).Val; got != 8 {
		t.Errorf("frame allocation = %d, want 8", got)
	}
	if len(exit.LiveIns) != 1 || exit.LiveIns[0] != target.FP {
		t.Errorf("exit live-ins = %v, want [r31]", exit.LiveIns)
	}
	if len(f.Entry().LiveIns) != 0 {
		t.Errorf("entry live-ins = %v", f.Entry().LiveIns)
	}
}

func TestEpilogueResetsSPForVariableFrames(t *testing.T) {
	f := newFunc(ret())
	f.Frame.CreateVariableSizedObject(4)
	if err := New(false).Run(f); err != nil {
		t.Fatal(err)
	}
	want := []target.Opcode{target.STORELri, target.MOVrr, target.ADDri, target.MOVrr, target.LOADLri, target.RET}
	if got := ops(f.Entry()); !sameOps(got, want) {
		t.Errorf("instrs = %v, want %v", got, want)
	}
	reset := f.Entry().Instrs[3]
	if reset.Operands[0].(mach.Register).Reg != target.SP || reset.Operands[1].(mach.Register).Reg != target.FP {
		t.Errorf("epilogue reset = %s", reset)
	}
}

func TestEpilogueNeedsSingleReturn(t *testing.T) {
	for _, code := range [][]*mach.Instr{
		{mach.NewInstr(target.NOP)},
		{ret(), ret()},
	} {
		f := newFunc(code...)
		if err := New(true).Run(f); err == nil {
			t.Errorf("Run accepted %d returns", len(code)-1)
		}
	}
}

func TestEliminateCallFramePseudos(t *testing.T) {
	call := func() *mach.Function {
		return newFunc(
			mach.NewInstr(target.ADJCALLSTACKDOWN, mach.Imm{Val: 12}),
			mach.NewInstr(target.CALLi, mach.External{Name: "g"}),
			mach.NewInstr(target.ADJCALLSTACKUP, mach.Imm{Val: 12}, mach.Imm{Val: 0}),
			ret(),
		)
	}

	f := call()
	New(false).EliminateCallFramePseudos(f)
	if got := ops(f.Entry()); !sameOps(got, []target.Opcode{target.CALLi, target.RET}) {
		t.Errorf("reserved frame: %v", got)
	}

	f = call()
	f.Frame.HasVarSizedObjects = true
	New(false).EliminateCallFramePseudos(f)
	want := []target.Opcode{target.ADDri, target.CALLi, target.SUBri, target.RET}
	if got := ops(f.Entry()); !sameOps(got, want) {
		t.Errorf("dynamic frame: %v, want %v", got, want)
	}
}

func TestEliminateFrameIndices(t *testing.T) {
	tests := []struct {
		name     string
		fp       bool
		wantBase target.Reg
		wantOps  []target.Opcode
	}{
		// no FP: StackSize 8, locals at 0 and 4, incoming at -8
		{"sp relative", false, target.SP, []target.Opcode{
			target.ADDri,
			target.SUBri, target.LOADrr, target.SUBri, target.STORErr, target.SUBri, target.LOADrr,
			target.SUBri, target.RET,
		}},
		// FP: saved FP at 0, locals at 4 and 8
		{"fp relative", true, target.FP, []target.Opcode{
			target.STORELri, target.MOVrr, target.ADDri,
			target.ADDri, target.LOADrr, target.ADDri, target.STORErr, target.SUBri, target.LOADrr,
			target.SUBri, target.LOADLri, target.RET,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFunc()
			a := f.Frame.CreateStackObject(4, 4)
			b := f.Frame.CreateSpillSlot(4, 4)
			in := f.Frame.CreateFixedObject(4, IncomingArgOffset(0, 4))
			f.Entry().Instrs = []*mach.Instr{
				mach.NewInstr(target.LOADrr, mach.Use(target.R(0)), mach.FrameIndex{Index: a}),
				mach.NewInstr(target.STORErr, mach.FrameIndex{Index: b}, mach.Use(target.R(0))),
				mach.NewInstr(target.LOADrr, mach.Use(target.R(1)), mach.FrameIndex{Index: in}),
				ret(),
			}
			if err := New(tt.fp).Run(f); err != nil {
				t.Fatal(err)
			}
			if err := mach.VerifyNoFrameIndices(f); err != nil {
				t.Error(err)
			}
			if got := ops(f.Entry()); !sameOps(got, tt.wantOps) {
				t.Fatalf("instrs = %v, want %v", got, tt.wantOps)
			}
			for _, in := range f.Entry().Instrs {
				if (in.Op == target.ADDri || in.Op == target.SUBri) && in.Operands[0].(mach.Register).Reg == target.Scratch {
					if base := in.Operands[1].(mach.Register).Reg; base != tt.wantBase {
						t.Errorf("%s: base %v, want %v", in, base, tt.wantBase)
					}
				}
			}
		})
	}
}

func TestFrameIndexAtFrameTopUsesSP(t *testing.T) {
	// with no FP the object ending the frame sits exactly at SP - 4
	f := newFunc()
	x := f.Frame.CreateStackObject(4, 4)
	f.Entry().Instrs = []*mach.Instr{
		mach.NewInstr(target.MOVrr, mach.Use(target.R(2)), mach.FrameIndex{Index: x}),
		ret(),
	}
	if err := New(false).Run(f); err != nil {
		t.Fatal(err)
	}
	// the address goes straight into r2, with no copy through a temporary
	if got := ops(f.Entry()); !sameOps(got, []target.Opcode{target.ADDri, target.SUBri, target.SUBri, target.RET}) {
		t.Fatalf("instrs = %v", got)
	}
	sub := f.Entry().Instrs[1]
	if sub.Operands[0].(mach.Register).Reg != target.R(2) || sub.Operands[1].(mach.Register).Reg != target.SP ||
		sub.Operands[2].(mach.Imm).Val != 4 {
		t.Errorf("address = %s, want SUBri r2, sp, 4", sub)
	}
}

func TestFrameAddressWithFPFoldsIntoDestination(t *testing.T) {
	f := newFunc()
	x := f.Frame.CreateStackObject(4, 4)
	f.Entry().Instrs = []*mach.Instr{
		mach.NewInstr(target.MOVrr, mach.Use(target.R(0)), mach.FrameIndex{Index: x}),
		ret(),
	}
	if err := New(true).Run(f); err != nil {
		t.Fatal(err)
	}
	for _, in := range f.Entry().Instrs {
		if in.Op == target.MOVrr && in.Operands[0].(mach.Register).Reg == target.R(0) {
			t.Errorf("address copied through a temporary: %s", in)
		}
		if in.Op == target.ADDri && in.Operands[0].(mach.Register).Reg == target.R(0) {
			if in.Operands[1].(mach.Register).Reg != target.FP {
				t.Errorf("address = %s, want fp based", in)
			}
			return
		}
	}
	t.Errorf("no add into r0 in %v", ops(f.Entry()))
}

func TestTwoFrameIndicesInOneInstruction(t *testing.T) {
	f := newFunc()
	a := f.Frame.CreateStackObject(4, 4)
	b := f.Frame.CreateStackObject(4, 4)
	f.Entry().Instrs = []*mach.Instr{
		mach.NewInstr(target.STORErr, mach.FrameIndex{Index: a}, mach.FrameIndex{Index: b}),
		ret(),
	}
	var inv *diag.InvariantError
	if err := New(false).Run(f); !errors.As(err, &inv) {
		t.Errorf("Run() error = %v, want an invariant violation", err)
	}
}
