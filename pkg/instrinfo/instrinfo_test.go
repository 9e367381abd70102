package instrinfo

import (
	"testing"

	"github.com/raymyers/mandarin-llc/pkg/diag"
	"github.com/raymyers/mandarin-llc/pkg/mach"
	"github.com/raymyers/mandarin-llc/pkg/target"
)

// threeBlocks returns a function laid out as a, b, c
func threeBlocks() (*mach.Function, *mach.Block, *mach.Block, *mach.Block) {
	f := mach.NewFunction("f", 0)
	a, b, c := f.CreateBlock("a"), f.CreateBlock("b"), f.CreateBlock("c")
	f.AppendBlock(a)
	f.AppendBlock(b)
	f.AppendBlock(c)
	return f, a, b, c
}

func jmp(to *mach.Block) *mach.Instr {
	return mach.NewInstr(target.JMPi, mach.MBB{Block: to})
}

func jcc(to *mach.Block, cc target.CondCode) *mach.Instr {
	return mach.NewInstr(target.JCCi, mach.MBB{Block: to}, mach.Cond{CC: cc})
}

func cmp() *mach.Instr {
	return mach.NewInstr(target.ICMPrr, mach.Use(target.R(0)), mach.Use(target.R(1)))
}

func TestAnalyzeBranch(t *testing.T) {
	_, a, b, c := threeBlocks()
	tests := []struct {
		name    string
		code    []*mach.Instr
		ok      bool
		tbb     *mach.Block
		fbb     *mach.Block
		ncond   int
		wantLen int
	}{
		{"fallthrough", []*mach.Instr{cmp()}, true, nil, nil, 0, 1},
		{"unconditional", []*mach.Instr{jmp(c)}, true, c, nil, 0, 1},
		{"conditional", []*mach.Instr{cmp(), jcc(c, target.CCGR)}, true, c, nil, 1, 2},
		{"two way", []*mach.Instr{cmp(), jcc(b, target.CCEQ), jmp(c)}, true, b, c, 1, 3},
		{"same condition twice", []*mach.Instr{jcc(c, target.CCNE), jcc(c, target.CCNE)}, true, c, nil, 1, 2},
		{"disagreeing conditions", []*mach.Instr{jcc(c, target.CCNE), jcc(c, target.CCEQ)}, false, nil, nil, 0, 2},
		{"disagreeing targets", []*mach.Instr{jcc(b, target.CCNE), jcc(c, target.CCNE)}, false, nil, nil, 0, 2},
		{"return", []*mach.Instr{mach.NewInstr(target.RET)}, false, nil, nil, 0, 1},
		{"indirect", []*mach.Instr{mach.NewInstr(target.JMPr, mach.Use(target.R(4)))}, false, nil, nil, 0, 1},
		{"invalid condition", []*mach.Instr{jcc(c, target.CCInvalid)}, false, nil, nil, 0, 1},
	}
	ii := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a.Instrs = tt.code
			br, ok := ii.AnalyzeBranch(a, false)
			if ok != tt.ok {
				t.Fatalf("AnalyzeBranch ok = %v, want %v", ok, tt.ok)
			}
			if len(a.Instrs) != tt.wantLen {
				t.Errorf("block modified without allowModify: %d instrs", len(a.Instrs))
			}
			if !ok {
				return
			}
			if br.TBB != tt.tbb || br.FBB != tt.fbb || len(br.Cond) != tt.ncond {
				t.Errorf("AnalyzeBranch = %+v, want tbb=%v fbb=%v cond=%d", br, tt.tbb, tt.fbb, tt.ncond)
			}
		})
	}
}

func TestAnalyzeBranchModify(t *testing.T) {
	ii := New()
	_, a, b, c := threeBlocks()

	// dead code after an unconditional jump is deleted
	a.Instrs = []*mach.Instr{jmp(c), jmp(b)}
	br, ok := ii.AnalyzeBranch(a, true)
	if !ok || br.TBB != c || len(a.Instrs) != 1 {
		t.Errorf("AnalyzeBranch = %+v ok=%v, %d instrs left", br, ok, len(a.Instrs))
	}

	// a jump to the layout successor becomes a fall-through
	a.Instrs = []*mach.Instr{cmp(), jmp(b)}
	br, ok = ii.AnalyzeBranch(a, true)
	if !ok || br.TBB != nil || len(a.Instrs) != 1 {
		t.Errorf("AnalyzeBranch = %+v ok=%v, %d instrs left", br, ok, len(a.Instrs))
	}

	// two-way branch whose false edge is the layout successor
	a.Instrs = []*mach.Instr{cmp(), jcc(c, target.CCLS), jmp(b)}
	br, ok = ii.AnalyzeBranch(a, true)
	if !ok || br.TBB != c || br.FBB != nil || len(br.Cond) != 1 || br.Cond[0] != target.CCLS {
		t.Errorf("AnalyzeBranch = %+v ok=%v", br, ok)
	}
	if len(a.Instrs) != 2 {
		t.Errorf("%d instrs left, want 2", len(a.Instrs))
	}
}

func TestInsertBranchRoundTrip(t *testing.T) {
	ii := New()
	_, a, b, c := threeBlocks()
	tests := []struct {
		name string
		tbb  *mach.Block
		fbb  *mach.Block
		cond []target.CondCode
		n    int
	}{
		{"unconditional", c, nil, nil, 1},
		{"conditional", c, nil, []target.CondCode{target.CCGE}, 1},
		{"two way", b, c, []target.CondCode{target.CCLE}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a.Instrs = []*mach.Instr{cmp()}
			if n := ii.InsertBranch(a, tt.tbb, tt.fbb, tt.cond); n != tt.n {
				t.Errorf("InsertBranch = %d, want %d", n, tt.n)
			}
			br, ok := ii.AnalyzeBranch(a, false)
			if !ok || br.TBB != tt.tbb || br.FBB != tt.fbb || len(br.Cond) != len(tt.cond) {
				t.Errorf("AnalyzeBranch = %+v ok=%v", br, ok)
			}
			if len(tt.cond) > 0 && br.Cond[0] != tt.cond[0] {
				t.Errorf("cond = %v, want %v", br.Cond[0], tt.cond[0])
			}
			if n := ii.RemoveBranch(a); n != tt.n {
				t.Errorf("RemoveBranch = %d, want %d", n, tt.n)
			}
			if len(a.Instrs) != 1 || a.Instrs[0].Op != target.ICMPrr {
				t.Errorf("RemoveBranch left %v", a.Instrs)
			}
		})
	}
}

func TestInsertBranchRejectsFallthrough(t *testing.T) {
	_, a, _, _ := threeBlocks()
	var err error
	func() {
		defer diag.Recover(&err)
		New().InsertBranch(a, nil, nil, nil)
	}()
	if err == nil {
		t.Error("InsertBranch with no destination did not panic")
	}
}

func TestRemoveBranchStopsAtReturn(t *testing.T) {
	_, a, _, _ := threeBlocks()
	a.Instrs = []*mach.Instr{mach.NewInstr(target.RET)}
	if n := New().RemoveBranch(a); n != 0 || len(a.Instrs) != 1 {
		t.Errorf("RemoveBranch = %d, %d instrs left", n, len(a.Instrs))
	}
}

func TestReverseBranchConditionUnsupported(t *testing.T) {
	if New().ReverseBranchCondition([]target.CondCode{target.CCEQ}) {
		t.Error("ReverseBranchCondition reported success")
	}
}

func TestCopyPhysReg(t *testing.T) {
	tests := []struct {
		name string
		dst  target.Reg
		src  target.Reg
		want []target.Opcode
	}{
		{"scalar", target.R(5), target.R(0), []target.Opcode{target.MOVrr}},
		{"double", target.D(3), target.D(0), []target.Opcode{target.MOV2rr}},
		{"quad", target.Q(2), target.Q(0), []target.Opcode{target.MOV4rr}},
		{"same register", target.R(3), target.R(3), nil},
		{"double from r0", target.D(0), target.R(0), nil},
		{"double from r2", target.D(1), target.R(2), nil},
		{"quad from r0", target.Q(0), target.R(0), nil},
	}
	ii := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, a, _, _ := threeBlocks()
			ii.CopyPhysReg(mach.AtEnd(a), tt.dst, tt.src)
			if len(a.Instrs) != len(tt.want) {
				t.Fatalf("emitted %v, want %v", a.Instrs, tt.want)
			}
			for i, in := range a.Instrs {
				if in.Op != tt.want[i] {
					t.Errorf("instr %d = %v, want %v", i, in.Op, tt.want[i])
				}
			}
		})
	}
}

func TestCopyPhysRegImpossible(t *testing.T) {
	for _, pair := range [][2]target.Reg{
		{target.R(0), target.D(0)},
		{target.D(0), target.R(2)},
		{target.Q(0), target.R(4)},
		{target.D(2), target.R(4)},
	} {
		_, a, _, _ := threeBlocks()
		var err error
		func() {
			defer diag.Recover(&err)
			New().CopyPhysReg(mach.AtEnd(a), pair[0], pair[1])
		}()
		if err == nil {
			t.Errorf("copy %v <- %v accepted", pair[0], pair[1])
		}
	}
}

func TestSpillReload(t *testing.T) {
	ii := New()
	_, a, _, _ := threeBlocks()
	c := mach.AtEnd(a)
	ii.StoreRegToStackSlot(c, target.R(7), 2, target.Generic)
	ii.LoadRegFromStackSlot(c, target.R(8), 2, target.Generic)
	if got := a.Instrs[0].String(); got != "STORErr fi#2, r7" {
		t.Errorf("spill = %q", got)
	}
	if got := a.Instrs[1].String(); got != "r8 = LOADrr fi#2" {
		t.Errorf("reload = %q", got)
	}
	if ii.CanSpill(target.Double) || !ii.CanSpill(target.Generic) {
		t.Error("only scalar registers can be spilled")
	}

	var err error
	func() {
		defer diag.Recover(&err)
		ii.StoreRegToStackSlot(c, target.D(1), 2, target.Double)
	}()
	if err == nil {
		t.Error("double spill accepted")
	}
}

func TestExpandPostRAPseudos(t *testing.T) {
	f, a, _, _ := threeBlocks()
	a.Instrs = []*mach.Instr{
		mach.NewInstr(target.COPY, mach.Use(target.R(4)), mach.Use(target.R(0))),
		mach.NewInstr(target.COPY, mach.Use(target.D(0)), mach.Use(target.R(0))),
		mach.NewInstr(target.COPY, mach.Use(target.D(2)), mach.Use(target.D(1))),
		mach.NewInstr(target.RET),
	}
	New().ExpandPostRAPseudos(f)
	want := []target.Opcode{target.MOVrr, target.MOV2rr, target.RET}
	if len(a.Instrs) != len(want) {
		t.Fatalf("instrs = %v", a.Instrs)
	}
	for i, in := range a.Instrs {
		if in.Op != want[i] {
			t.Errorf("instr %d = %v, want %v", i, in.Op, want[i])
		}
	}
}
