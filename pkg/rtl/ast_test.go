package rtl

import "testing"

func TestTypSizes(t *testing.T) {
	tests := []struct {
		typ   Typ
		size  int64
		words int
	}{
		{I1, 1, 1},
		{I8, 1, 1},
		{I16, 2, 1},
		{I32, 4, 1},
		{F32, 4, 1},
		{V2I32, 8, 2},
		{V2F32, 8, 2},
		{V4I32, 16, 4},
		{V4F32, 16, 4},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			if got := tt.typ.Size(); got != tt.size {
				t.Errorf("Size() = %d, want %d", got, tt.size)
			}
			if got := tt.typ.Words(); got != tt.words {
				t.Errorf("Words() = %d, want %d", got, tt.words)
			}
		})
	}
}

func TestTypPredicates(t *testing.T) {
	if !F32.IsFloat() || !V4F32.IsFloat() || I32.IsFloat() {
		t.Error("IsFloat misclassifies")
	}
	if !V2I32.IsVector() || F32.IsVector() {
		t.Error("IsVector misclassifies")
	}
	if !I8.IsNarrowInt() || I32.IsNarrowInt() {
		t.Error("IsNarrowInt misclassifies")
	}
}

func TestParseRoundTrip(t *testing.T) {
	for typ := I1; typ <= V4F32; typ++ {
		got, ok := ParseTyp(typ.String())
		if !ok || got != typ {
			t.Errorf("ParseTyp(%q) = %v, %v", typ.String(), got, ok)
		}
	}
	for c := Ceq; c <= Cuno; c++ {
		got, ok := ParseCond(c.String())
		if !ok || got != c {
			t.Errorf("ParseCond(%q) = %v, %v", c.String(), got, ok)
		}
	}
	if _, ok := ParseTyp("i64"); ok {
		t.Error("ParseTyp accepted i64")
	}
}

func TestCondIsEquality(t *testing.T) {
	tests := []struct {
		cond Cond
		want bool
	}{
		{Ceq, true},
		{Cne, true},
		{Coeq, true},
		{Cune, true},
		{Cgt, false},
		{Cule, false},
		{Cord, false},
	}
	for _, tt := range tests {
		if got := tt.cond.IsEquality(); got != tt.want {
			t.Errorf("%v.IsEquality() = %v, want %v", tt.cond, got, tt.want)
		}
	}
}

func TestBlockTerminator(t *testing.T) {
	b := &Block{Name: "entry", Code: []Instruction{
		Const{Dest: 0, Type: I32, Value: 1},
		Ret{Args: []Value{0}},
	}}
	if _, ok := b.Terminator().(Ret); !ok {
		t.Errorf("Terminator() = %T, want Ret", b.Terminator())
	}
	empty := &Block{Name: "x"}
	if empty.Terminator() != nil {
		t.Error("empty block should have no terminator")
	}
	open := &Block{Name: "y", Code: []Instruction{Const{Dest: 0, Type: I32}}}
	if open.Terminator() != nil {
		t.Error("block ending in Const should have no terminator")
	}
}

func TestTerminatorSuccessors(t *testing.T) {
	br := BrCC{Cond: Cgt, Type: I32, X: 0, Y: 1, IfSo: "a", IfNot: "b"}
	succ := br.Successors()
	if len(succ) != 2 || succ[0] != "a" || succ[1] != "b" {
		t.Errorf("BrCC successors = %v, want [a b]", succ)
	}
	if len(Ret{}.Successors()) != 0 {
		t.Error("Ret should have no successors")
	}
}
