package linearize

import (
	"testing"

	"github.com/raymyers/mandarin-llc/pkg/instrinfo"
	"github.com/raymyers/mandarin-llc/pkg/mach"
	"github.com/raymyers/mandarin-llc/pkg/target"
)

// newFunc lays out one block per name, in order
func newFunc(names ...string) (*mach.Function, []*mach.Block) {
	f := mach.NewFunction("f", 0)
	var bs []*mach.Block
	for _, n := range names {
		b := f.CreateBlock(n)
		f.AppendBlock(b)
		bs = append(bs, b)
	}
	return f, bs
}

func jmp(b *mach.Block) *mach.Instr { return mach.NewInstr(target.JMPi, mach.MBB{Block: b}) }

func jcc(b *mach.Block, cc target.CondCode) *mach.Instr {
	return mach.NewInstr(target.JCCi, mach.MBB{Block: b}, mach.Cond{CC: cc})
}

func ret() *mach.Instr { return mach.NewInstr(target.RET) }

func blockNames(f *mach.Function) []string {
	var out []string
	for _, b := range f.Blocks {
		out = append(out, b.Name)
	}
	return out
}

func equalNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestReorderBlocksLoop(t *testing.T) {
	f, bs := newFunc("entry", "exit", "loop")
	entry, exit, loop := bs[0], bs[1], bs[2]
	entry.Instrs = []*mach.Instr{jmp(loop)}
	loop.Instrs = []*mach.Instr{jcc(loop, target.CCLS), jmp(exit)}
	exit.Instrs = []*mach.Instr{ret()}
	entry.AddSuccessor(loop)
	loop.AddSuccessor(loop)
	loop.AddSuccessor(exit)

	ReorderBlocks(f)

	want := []string{"entry", "loop", "exit"}
	if got := blockNames(f); !equalNames(got, want) {
		t.Errorf("layout = %v, want %v", got, want)
	}
	for i, b := range f.Blocks {
		if b.ID != i {
			t.Errorf("%s.ID = %d, want %d", b.Name, b.ID, i)
		}
	}
}

func TestReorderBlocksKeepsUnreachableAtEnd(t *testing.T) {
	f, bs := newFunc("entry", "dead", "ret")
	bs[0].Instrs = []*mach.Instr{jmp(bs[2])}
	bs[1].Instrs = []*mach.Instr{ret()}
	bs[2].Instrs = []*mach.Instr{ret()}
	bs[0].AddSuccessor(bs[2])

	ReorderBlocks(f)

	want := []string{"entry", "ret", "dead"}
	if got := blockNames(f); !equalNames(got, want) {
		t.Errorf("layout = %v, want %v", got, want)
	}
}

func TestMakeBranchesExplicit(t *testing.T) {
	f, bs := newFunc("entry", "copy0", "join")
	entry, copy0, join := bs[0], bs[1], bs[2]
	entry.Instrs = []*mach.Instr{jcc(join, target.CCEQ)}
	copy0.Instrs = []*mach.Instr{mach.NewInstr(target.MOVri, mach.Use(target.R(0)), mach.Imm{Val: 1})}
	join.Instrs = []*mach.Instr{ret()}
	entry.AddSuccessor(join)
	entry.AddSuccessor(copy0)
	copy0.AddSuccessor(join)

	if !MakeBranchesExplicit(f, instrinfo.New()) {
		t.Fatal("MakeBranchesExplicit() = false, want true")
	}
	if last := entry.Last(); last.Op != target.JMPi || last.Target() != copy0 {
		t.Errorf("entry ends in %v, want jmp to copy0", last)
	}
	if last := copy0.Last(); last.Op != target.JMPi || last.Target() != join {
		t.Errorf("copy0 ends in %v, want jmp to join", last)
	}
	if len(join.Instrs) != 1 {
		t.Errorf("join has %d instructions, want 1", len(join.Instrs))
	}
}

func TestMakeBranchesExplicitGivesUpOnIndirectConditional(t *testing.T) {
	f, bs := newFunc("entry", "next")
	bs[0].Instrs = []*mach.Instr{
		mach.NewInstr(target.JCCr, mach.Use(target.R(0)), mach.Cond{CC: target.CCEQ}),
	}
	bs[1].Instrs = []*mach.Instr{ret()}

	if MakeBranchesExplicit(f, instrinfo.New()) {
		t.Error("MakeBranchesExplicit() = true for an indirect conditional jump")
	}
	if len(bs[0].Instrs) != 1 {
		t.Errorf("entry has %d instructions, want it untouched", len(bs[0].Instrs))
	}
}

func TestLinearizeDiamond(t *testing.T) {
	f, bs := newFunc("entry", "copy0", "join")
	entry, copy0, join := bs[0], bs[1], bs[2]
	entry.Instrs = []*mach.Instr{
		mach.NewInstr(target.ICMPri, mach.Use(target.R(0)), mach.Imm{Val: 0}),
		jcc(join, target.CCEQ),
	}
	copy0.Instrs = []*mach.Instr{mach.NewInstr(target.MOVri, mach.Use(target.R(0)), mach.Imm{Val: 1})}
	join.Instrs = []*mach.Instr{ret()}
	entry.AddSuccessor(join)
	entry.AddSuccessor(copy0)
	copy0.AddSuccessor(join)
	before := f.NumInstrs()

	if err := Linearize(f, instrinfo.New()); err != nil {
		t.Fatalf("Linearize() error = %v", err)
	}

	want := []string{"entry", "copy0", "join"}
	if got := blockNames(f); !equalNames(got, want) {
		t.Errorf("layout = %v, want %v", got, want)
	}
	if got := f.NumInstrs(); got != before {
		t.Errorf("NumInstrs() = %d, want %d", got, before)
	}
	f.Instrs(func(b *mach.Block, in *mach.Instr) {
		if in.Op == target.JMPi {
			t.Errorf("%s still jumps to %s", b.Name, in.Target().Name)
		}
	})
}

func TestLinearizeDropsJumpChains(t *testing.T) {
	f, bs := newFunc("entry", "a", "b", "exit")
	bs[0].Instrs = []*mach.Instr{jmp(bs[1])}
	bs[1].Instrs = []*mach.Instr{jmp(bs[2])}
	bs[2].Instrs = []*mach.Instr{jmp(bs[3])}
	bs[3].Instrs = []*mach.Instr{ret()}
	bs[0].AddSuccessor(bs[1])
	bs[1].AddSuccessor(bs[2])
	bs[2].AddSuccessor(bs[3])

	if err := Linearize(f, instrinfo.New()); err != nil {
		t.Fatalf("Linearize() error = %v", err)
	}

	want := []string{"entry", "exit"}
	if got := blockNames(f); !equalNames(got, want) {
		t.Errorf("layout = %v, want %v", got, want)
	}
	if len(f.Blocks[0].Instrs) != 0 {
		t.Errorf("entry = %v, want it to fall through", f.Blocks[0].Instrs)
	}
}
