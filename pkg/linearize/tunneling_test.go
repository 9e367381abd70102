package linearize

import (
	"testing"

	"github.com/raymyers/mandarin-llc/pkg/mach"
	"github.com/raymyers/mandarin-llc/pkg/target"
)

func TestTunnelSimpleChain(t *testing.T) {
	f, bs := newFunc("entry", "l1", "l2", "l3")
	bs[0].Instrs = []*mach.Instr{jmp(bs[1])}
	bs[1].Instrs = []*mach.Instr{jmp(bs[2])}
	bs[2].Instrs = []*mach.Instr{jmp(bs[3])}
	bs[3].Instrs = []*mach.Instr{ret()}
	bs[0].AddSuccessor(bs[1])
	bs[1].AddSuccessor(bs[2])
	bs[2].AddSuccessor(bs[3])

	if n := Tunnel(f); n != 2 {
		t.Errorf("Tunnel() = %d, want 2", n)
	}
	if got := bs[0].Instrs[0].Target(); got != bs[3] {
		t.Errorf("entry jumps to %s, want l3", got.Name)
	}
	if len(bs[0].Succs) != 1 || bs[0].Succs[0] != bs[3] {
		t.Errorf("entry successors = %v, want [l3]", bs[0].Succs)
	}
	if len(bs[1].Preds) != 0 {
		t.Errorf("l1 still has %d predecessors", len(bs[1].Preds))
	}
}

func TestTunnelKeepsFallThroughEdge(t *testing.T) {
	f, bs := newFunc("entry", "hop", "exit")
	bs[0].Instrs = []*mach.Instr{jcc(bs[1], target.CCNE)}
	bs[1].Instrs = []*mach.Instr{jmp(bs[2])}
	bs[2].Instrs = []*mach.Instr{ret()}
	bs[0].AddSuccessor(bs[1])
	bs[1].AddSuccessor(bs[2])

	Tunnel(f)

	if got := bs[0].Instrs[0].Target(); got != bs[2] {
		t.Errorf("conditional jump goes to %s, want exit", got.Name)
	}
	if !bs[0].IsSuccessor(bs[1]) {
		t.Error("fall-through edge to hop was dropped")
	}
	if !bs[0].IsSuccessor(bs[2]) {
		t.Error("no edge to the tunneled destination")
	}
}

func TestTunnelSelfLoopAndCycle(t *testing.T) {
	f, bs := newFunc("entry", "a", "b", "spin")
	bs[0].Instrs = []*mach.Instr{jmp(bs[1])}
	bs[1].Instrs = []*mach.Instr{jmp(bs[2])}
	bs[2].Instrs = []*mach.Instr{jmp(bs[1])}
	bs[3].Instrs = []*mach.Instr{jmp(bs[3])}

	// must terminate
	Tunnel(f)

	if got := bs[3].Instrs[0].Target(); got != bs[3] {
		t.Errorf("spin jumps to %s, want itself", got.Name)
	}
}

func TestTunnelNeverBypassesEntry(t *testing.T) {
	f, bs := newFunc("entry", "exit")
	bs[0].Instrs = []*mach.Instr{jmp(bs[1])}
	bs[1].Instrs = []*mach.Instr{ret()}
	bs[0].AddSuccessor(bs[1])

	if n := Tunnel(f); n != 0 {
		t.Errorf("Tunnel() = %d, want 0", n)
	}
}
