package mach

import (
	"bytes"
	"strings"
	"testing"

	"github.com/raymyers/mandarin-llc/pkg/target"
)

func newDiamondFunc() (*Function, *Block, *Block, *Block) {
	f := NewFunction("f", 0)
	a := f.CreateBlock("a")
	b := f.CreateBlock("b")
	c := f.CreateBlock("c")
	f.AppendBlock(a)
	f.AppendBlock(b)
	f.AppendBlock(c)
	a.AddSuccessor(b)
	a.AddSuccessor(c)
	b.AddSuccessor(c)
	return f, a, b, c
}

func TestNewInstrMarksDefs(t *testing.T) {
	in := NewInstr(target.ADDri, Use(target.R(1)), Use(target.R(2)), Imm{Val: 4})
	defs := in.Defs()
	if len(defs) != 1 || defs[0] != target.R(1) {
		t.Errorf("Defs() = %v, want [r1]", defs)
	}
	uses := in.Uses()
	if len(uses) != 1 || uses[0] != target.R(2) {
		t.Errorf("Uses() = %v, want [r2]", uses)
	}
	if got := in.String(); got != "r1 = ADDri r2, 4" {
		t.Errorf("String() = %q", got)
	}
}

func TestCursorInsertKeepsOrder(t *testing.T) {
	f := NewFunction("f", 0)
	b := f.CreateBlock("entry")
	f.AppendBlock(b)
	ret := NewInstr(target.RET)
	b.Instrs = []*Instr{ret}

	c := At(b, 0)
	c.Build(target.MOVri, Use(target.R(0)), Imm{Val: 1})
	c.Build(target.MOVri, Use(target.R(1)), Imm{Val: 2})
	if len(b.Instrs) != 3 || b.Instrs[2] != ret {
		t.Fatalf("instrs = %v", b.Instrs)
	}
	if b.Instrs[0].Operands[1].(Imm).Val != 1 || b.Instrs[1].Operands[1].(Imm).Val != 2 {
		t.Error("inserted instructions out of order")
	}
	if c.Current() != ret {
		t.Error("cursor should stay on the original instruction")
	}
	c.Erase()
	if !c.Done() || len(b.Instrs) != 2 {
		t.Errorf("after erase: done=%v len=%d", c.Done(), len(b.Instrs))
	}
}

func TestSpliceRest(t *testing.T) {
	f := NewFunction("f", 0)
	a, b := f.CreateBlock("a"), f.CreateBlock("b")
	f.AppendBlock(a)
	f.AppendBlock(b)
	for i := 0; i < 4; i++ {
		a.Instrs = append(a.Instrs, NewInstr(target.MOVri, Use(target.R(i)), Imm{Val: int64(i)}))
	}
	At(a, 1).SpliceRest(b)
	if len(a.Instrs) != 1 || len(b.Instrs) != 3 {
		t.Fatalf("split = %d/%d, want 1/3", len(a.Instrs), len(b.Instrs))
	}
	if b.Instrs[0].Operands[1].(Imm).Val != 1 {
		t.Error("spliced instructions out of order")
	}
}

func TestSuccessorEdges(t *testing.T) {
	_, a, b, c := newDiamondFunc()
	if len(c.Preds) != 2 {
		t.Fatalf("c preds = %d, want 2", len(c.Preds))
	}
	a.AddSuccessor(b)
	if len(a.Succs) != 2 {
		t.Error("duplicate successor added")
	}
	a.ReplaceSuccessor(b, c)
	if a.IsSuccessor(b) || len(b.Preds) != 0 {
		t.Error("ReplaceSuccessor left the old edge")
	}
	if !a.IsLayoutSuccessor(b) || a.IsLayoutSuccessor(c) {
		t.Error("layout successor is the next block in Blocks")
	}
}

func TestTransferSuccessorsAndUpdatePHIs(t *testing.T) {
	f, a, b, c := newDiamondFunc()
	c.Instrs = []*Instr{
		NewInstr(target.PHI, Use(target.VirtReg(0)), Use(target.VirtReg(1)), MBB{Block: a}, Use(target.VirtReg(2)), MBB{Block: b}),
	}
	sink := f.CreateBlock("sink")
	f.InsertBlockAfter(a, sink)
	sink.TransferSuccessorsAndUpdatePHIs(a)

	if len(a.Succs) != 0 {
		t.Errorf("a still has successors %v", a.Succs)
	}
	if !sink.IsSuccessor(b) || !sink.IsSuccessor(c) {
		t.Error("sink did not receive a's successors")
	}
	phi := c.Instrs[0]
	if phi.Operands[2].(MBB).Block != sink {
		t.Error("PHI operand not rewritten to sink")
	}
	if phi.Operands[4].(MBB).Block != b {
		t.Error("unrelated PHI operand changed")
	}
	if sink.ID != 1 || b.ID != 2 {
		t.Errorf("renumbered IDs sink=%d b=%d", sink.ID, b.ID)
	}
}

func TestRemoveBlock(t *testing.T) {
	f, _, b, c := newDiamondFunc()
	f.RemoveBlock(b)
	if len(f.Blocks) != 2 || len(c.Preds) != 1 {
		t.Errorf("blocks=%d c.preds=%d", len(f.Blocks), len(c.Preds))
	}
}

func TestFrameObjects(t *testing.T) {
	fi := &FrameInfo{}
	fixed := fi.CreateFixedObject(4, -8)
	local := fi.CreateStackObject(8, 8)
	spill := fi.CreateSpillSlot(4, 4)
	dyn := fi.CreateVariableSizedObject(4)
	if fixed != 0 || local != 1 || spill != 2 || dyn != 3 {
		t.Errorf("indices = %d %d %d %d", fixed, local, spill, dyn)
	}
	if !fi.Object(fixed).Fixed || fi.Object(fixed).Offset != -8 {
		t.Error("fixed object lost its offset")
	}
	if !fi.HasVarSizedObjects {
		t.Error("variable-sized object not recorded")
	}
	fi.MarkLaidOut()
	defer func() {
		if recover() == nil {
			t.Error("second layout should panic")
		}
	}()
	fi.MarkLaidOut()
}

func TestRegInfo(t *testing.T) {
	ri := &RegInfo{}
	v0 := ri.CreateVirtualRegister(target.Generic)
	v1 := ri.CreateVirtualRegister(target.Quad)
	if !v0.IsVirtual() || v0.VirtIndex() != 0 || v1.VirtIndex() != 1 {
		t.Errorf("vregs = %v %v", v0, v1)
	}
	if ri.ClassOf(v1) != target.Quad || ri.ClassOf(target.D(2)) != target.Double {
		t.Error("ClassOf wrong")
	}
	ri.AddLiveIn(target.R(0), v0)
	if len(ri.LiveIns) != 1 || ri.LiveIns[0].Virt != v0 {
		t.Errorf("LiveIns = %v", ri.LiveIns)
	}
}

func TestVerifyShapes(t *testing.T) {
	f := NewFunction("f", 0)
	b := f.CreateBlock("entry")
	f.AppendBlock(b)
	b.Instrs = []*Instr{
		NewInstr(target.LOADrr, Use(target.VirtReg(0)), FrameIndex{Index: 0}),
		NewInstr(target.RET, ImplicitUse(target.R(0))),
	}
	if err := Verify(f); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	tests := []struct {
		name  string
		instr *Instr
	}{
		{"too few", NewInstr(target.ADDrr, Use(target.R(0)), Use(target.R(1)))},
		{"too many", NewInstr(target.NEGr, Use(target.R(0)), Use(target.R(1)), Use(target.R(2)))},
		{"wrong kind", NewInstr(target.ADDri, Use(target.R(0)), Use(target.R(1)), Use(target.R(2)))},
		{"fi where reg", NewInstr(target.ADDrr, Use(target.R(0)), FrameIndex{}, Use(target.R(2)))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b.Instrs = []*Instr{tt.instr, NewInstr(target.RET)}
			if err := Verify(f); err == nil {
				t.Error("Verify accepted a malformed instruction")
			}
		})
	}

	b.Instrs = []*Instr{NewInstr(target.RET), NewInstr(target.NOP)}
	if err := Verify(f); err == nil || !strings.Contains(err.Error(), "after terminator") {
		t.Errorf("Verify = %v, want terminator error", err)
	}
}

func TestVerifyNoFrameIndices(t *testing.T) {
	f := NewFunction("f", 0)
	b := f.CreateBlock("entry")
	f.AppendBlock(b)
	b.Instrs = []*Instr{NewInstr(target.MOVrr, Use(target.R(0)), FrameIndex{Index: 2})}
	if err := VerifyNoFrameIndices(f); err == nil {
		t.Error("frame index not reported")
	}
	b.Instrs[0].Operands[1] = Use(target.SP)
	if err := VerifyNoFrameIndices(f); err != nil {
		t.Errorf("unexpected error %v", err)
	}
}

func TestPrinter(t *testing.T) {
	f, a, _, _ := newDiamondFunc()
	f.Frame.CreateFixedObject(4, -8)
	a.AddLiveIn(target.R(0))
	a.Instrs = []*Instr{
		NewInstr(target.ICMPri, Use(target.R(0)), Imm{Val: 3}),
		NewInstr(target.JCCi, MBB{Block: f.Blocks[2]}, Cond{CC: target.CCGR}),
	}
	var buf bytes.Buffer
	NewPrinter(&buf).PrintFunction(f)
	out := buf.String()
	for _, want := range []string{
		"fi#0: fixed size 4 align 4 offset -8",
		"bb.0 (a):",
		"liveins: r0",
		"succs: bb.1, bb.2",
		"ICMPri r0, 3",
		"JCCi bb.2, gr",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in:\n%s", want, out)
		}
	}
}
