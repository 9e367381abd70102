package regalloc

import (
	"github.com/raymyers/mandarin-llc/pkg/mach"
	"github.com/raymyers/mandarin-llc/pkg/target"
)

// InterferenceGraph represents the register interference graph.
// Two registers interfere if they are both live at the same point.
type InterferenceGraph struct {
	// Nodes are virtual registers
	Nodes RegSet
	// Edges maps each virtual register to its interfering virtual neighbors
	Edges map[target.Reg]RegSet
	// Fixed maps each virtual register to the physical units it must avoid
	Fixed map[target.Reg]RegSet
	// Preferences maps each register to virtual registers it is copied to or from
	Preferences map[target.Reg]RegSet
	// Hints maps each register to physical registers it is copied to or from
	Hints map[target.Reg][]target.Reg
	// LiveAcrossCalls tracks registers live across a call; with no
	// callee-saved registers they can only live on the stack
	LiveAcrossCalls RegSet
}

// NewInterferenceGraph creates an empty interference graph
func NewInterferenceGraph() *InterferenceGraph {
	return &InterferenceGraph{
		Nodes:           NewRegSet(),
		Edges:           make(map[target.Reg]RegSet),
		Fixed:           make(map[target.Reg]RegSet),
		Preferences:     make(map[target.Reg]RegSet),
		Hints:           make(map[target.Reg][]target.Reg),
		LiveAcrossCalls: NewRegSet(),
	}
}

// AddNode adds a virtual register to the graph
func (g *InterferenceGraph) AddNode(r target.Reg) {
	g.Nodes.Add(r)
	if g.Edges[r] == nil {
		g.Edges[r] = NewRegSet()
		g.Fixed[r] = NewRegSet()
		g.Preferences[r] = NewRegSet()
	}
}

// AddInterference records that a and b are live at the same time. Either may
// be a physical unit, but not both.
func (g *InterferenceGraph) AddInterference(a, b target.Reg) {
	switch {
	case a == b:
	case a.IsVirtual() && b.IsVirtual():
		g.AddEdge(a, b)
	case a.IsVirtual():
		g.AddNode(a)
		g.Fixed[a].Add(b)
	case b.IsVirtual():
		g.AddNode(b)
		g.Fixed[b].Add(a)
	}
}

// AddEdge adds an interference edge between two virtual registers
func (g *InterferenceGraph) AddEdge(r1, r2 target.Reg) {
	if r1 == r2 {
		return // No self-edges
	}
	g.AddNode(r1)
	g.AddNode(r2)
	g.Edges[r1].Add(r2)
	g.Edges[r2].Add(r1)
}

// AddPreference adds a preference edge (for move coalescing)
func (g *InterferenceGraph) AddPreference(r1, r2 target.Reg) {
	if r1 == r2 {
		return
	}
	g.AddNode(r1)
	g.AddNode(r2)
	g.Preferences[r1].Add(r2)
	g.Preferences[r2].Add(r1)
}

// AddHint records that v is copied to or from physical register p
func (g *InterferenceGraph) AddHint(v, p target.Reg) {
	g.AddNode(v)
	for _, h := range g.Hints[v] {
		if h == p {
			return
		}
	}
	g.Hints[v] = append(g.Hints[v], p)
}

// HasEdge returns true if there is an interference edge
func (g *InterferenceGraph) HasEdge(r1, r2 target.Reg) bool {
	if edges, ok := g.Edges[r1]; ok {
		return edges.Contains(r2)
	}
	return false
}

// Degree returns the number of neighbors for a register
func (g *InterferenceGraph) Degree(r target.Reg) int {
	return len(g.Edges[r])
}

// Neighbors returns the interfering neighbors of a register
func (g *InterferenceGraph) Neighbors(r target.Reg) RegSet {
	if edges, ok := g.Edges[r]; ok {
		return edges.Copy()
	}
	return NewRegSet()
}

// MoveRelated returns true if the register is involved in a move
func (g *InterferenceGraph) MoveRelated(r target.Reg) bool {
	return len(g.Preferences[r]) > 0
}

// BuildInterferenceGraph constructs the interference graph from liveness info.
// Each block is walked backwards from its live-out set; a definition
// interferes with everything live after it, except the source of a copy.
func BuildInterferenceGraph(f *mach.Function, liveness *LivenessInfo) *InterferenceGraph {
	g := NewInterferenceGraph()
	t := newTracker(f)

	for _, b := range f.Blocks {
		live := liveness.LiveOut[b].Copy()
		for i := len(b.Instrs) - 1; i >= 0; i-- {
			in := b.Instrs[i]
			for _, r := range append(in.Defs(), in.Uses()...) {
				if r.IsVirtual() {
					g.AddNode(r)
				}
			}

			var copySrc RegSet
			if in.Op == target.COPY {
				dst := in.Operands[0].(mach.Register).Reg
				src := in.Operands[1].(mach.Register).Reg
				copySrc = NewRegSet(t.names(src)...)
				switch {
				case dst.IsVirtual() && src.IsVirtual():
					g.AddPreference(dst, src)
				case dst.IsVirtual() && src.IsPhysical():
					g.AddHint(dst, src)
				case src.IsVirtual() && dst.IsPhysical():
					g.AddHint(src, dst)
				}
			}

			defs := t.defs(in)
			for _, d := range defs {
				for l := range live {
					if copySrc.Contains(l) {
						continue
					}
					g.AddInterference(d, l)
				}
				// results of one instruction may not share a register
				for _, d2 := range defs {
					g.AddInterference(d, d2)
				}
			}

			if in.IsCall() {
				for l := range live {
					if l.IsVirtual() {
						g.LiveAcrossCalls.Add(l)
					}
				}
			}

			for _, d := range defs {
				live.Remove(d)
			}
			for _, u := range t.uses(in) {
				live.Add(u)
			}
		}
	}
	return g
}
