package target

import (
	"testing"

	"github.com/raymyers/mandarin-llc/pkg/rtl"
)

func TestRegNames(t *testing.T) {
	tests := []struct {
		reg  Reg
		want string
	}{
		{R(0), "r0"},
		{R(31), "r31"},
		{Scratch, "r29"},
		{SP, "r30"},
		{FP, "r31"},
		{D(0), "d0"},
		{D(15), "d15"},
		{Q(7), "q7"},
		{VirtReg(3), "%v3"},
		{NoReg, "noreg"},
	}
	for _, tt := range tests {
		if got := tt.reg.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestClassesAreDisjoint(t *testing.T) {
	seen := map[Reg]RegClass{}
	for _, c := range []RegClass{Generic, Double, Quad} {
		for _, r := range c.Members() {
			if prev, ok := seen[r]; ok {
				t.Errorf("%v is in both %v and %v", r, prev, c)
			}
			seen[r] = c
			if ClassOf(r) != c {
				t.Errorf("ClassOf(%v) = %v, want %v", r, ClassOf(r), c)
			}
		}
	}
	if len(seen) != NumScalarRegs+NumDoubleRegs+NumQuadRegs {
		t.Errorf("saw %d registers", len(seen))
	}
}

func TestUnits(t *testing.T) {
	if u := D(1).Units(); len(u) != 2 || u[0] != R(2) || u[1] != R(3) {
		t.Errorf("D1 units = %v, want [r2 r3]", u)
	}
	if u := Q(1).Units(); len(u) != 4 || u[0] != R(4) || u[3] != R(7) {
		t.Errorf("Q1 units = %v, want [r4..r7]", u)
	}
	if !Overlaps(Q(0), D(1)) {
		t.Error("q0 should overlap d1")
	}
	if Overlaps(D(0), D(1)) {
		t.Error("d0 should not overlap d1")
	}
}

func TestClassForType(t *testing.T) {
	tests := []struct {
		typ  rtl.Typ
		want RegClass
	}{
		{rtl.I1, Generic},
		{rtl.I8, Generic},
		{rtl.I32, Generic},
		{rtl.F32, Generic},
		{rtl.V2I32, Double},
		{rtl.V2F32, Double},
		{rtl.V4I32, Quad},
		{rtl.V4F32, Quad},
	}
	for _, tt := range tests {
		if got := ClassForType(tt.typ); got != tt.want {
			t.Errorf("ClassForType(%v) = %v, want %v", tt.typ, got, tt.want)
		}
	}
}

func TestReserved(t *testing.T) {
	var ri RegisterInfo
	if !ri.IsReserved(SP, false) {
		t.Error("SP must always be reserved")
	}
	if ri.IsReserved(FP, false) {
		t.Error("FP must be free without a frame pointer")
	}
	if !ri.IsReserved(FP, true) {
		t.Error("FP must be reserved with a frame pointer")
	}
	if !ri.IsReserved(D(15), false) {
		t.Error("d15 overlays r30 and must be reserved")
	}
	if !ri.IsReserved(Q(7), false) {
		t.Error("q7 overlays r30 and must be reserved")
	}
	if !ri.IsReserved(Scratch, false) || !ri.IsReserved(D(14), false) {
		t.Error("the frame address scratch r29 and d14 over it must be reserved")
	}

	if got := len(ri.Allocatable(Generic, false)); got != 30 {
		t.Errorf("allocatable scalars without FP = %d, want 30", got)
	}
	if got := len(ri.Allocatable(Generic, true)); got != 29 {
		t.Errorf("allocatable scalars with FP = %d, want 29", got)
	}
	if got := len(ri.Allocatable(Double, true)); got != 14 {
		t.Errorf("allocatable doubles = %d, want 14", got)
	}
	if got := len(ri.Allocatable(Quad, true)); got != 7 {
		t.Errorf("allocatable quads = %d, want 7", got)
	}
}

func TestArgReg(t *testing.T) {
	tests := []struct {
		class RegClass
		slot  int
		want  Reg
		ok    bool
	}{
		{Generic, 0, R(0), true},
		{Generic, 3, R(3), true},
		{Generic, 4, NoReg, false},
		{Double, 0, D(0), true},
		{Double, 2, D(1), true},
		{Double, 1, NoReg, false},
		{Double, 3, NoReg, false},
		{Quad, 0, Q(0), true},
		{Quad, 2, NoReg, false},
	}
	for _, tt := range tests {
		got, ok := ArgReg(tt.class, tt.slot)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ArgReg(%v, %d) = %v, %v, want %v, %v", tt.class, tt.slot, got, ok, tt.want, tt.ok)
		}
	}
}

func TestConstraintClass(t *testing.T) {
	var ri RegisterInfo
	if c, err := ri.ConstraintClass("r"); err != nil || c != Generic {
		t.Errorf("ConstraintClass(r) = %v, %v", c, err)
	}
	for _, bad := range []string{"m", "f", "", "rr"} {
		if _, err := ri.ConstraintClass(bad); err == nil {
			t.Errorf("ConstraintClass(%q) should fail", bad)
		}
	}
	if ri.PointerClass() != Generic {
		t.Error("pointers live in the scalar class")
	}
}
