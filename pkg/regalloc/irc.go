package regalloc

import (
	"slices"

	"github.com/raymyers/mandarin-llc/pkg/mach"
	"github.com/raymyers/mandarin-llc/pkg/target"
)

// Allocator colors the virtual registers of one mach function with
// Iterated Register Coalescing.
//
// Registers of different classes overlay the same scalar units, so the
// degree < K test is only a heuristic; colors are checked unit by unit and a
// node that finds no free register is spilled.
type Allocator struct {
	graph   *InterferenceGraph
	fn      *mach.Function
	regs    target.RegisterInfo
	noSpill RegSet // registers that must not be spilled (spill temporaries)
	colors  map[target.Reg]target.Reg

	// IRC worklists
	simplifyWorklist []target.Reg // Low-degree non-move-related nodes
	freezeWorklist   []target.Reg // Low-degree move-related nodes
	spillWorklist    []target.Reg // High-degree nodes (potential spills)
	coalescedNodes   RegSet       // Nodes that have been coalesced
	coloredNodes     RegSet       // Successfully colored nodes
	onStack          RegSet       // Nodes removed from the graph by simplify
	spilledNodes     RegSet       // Nodes that must be spilled
	selectStack      []target.Reg // Stack of nodes removed during simplify/spill

	// For coalescing
	alias map[target.Reg]target.Reg // Maps coalesced node to its representative

	// Move worklists
	coalescedMoves   [][2]target.Reg // Successfully coalesced
	constrainedMoves [][2]target.Reg // Moves between interfering nodes
	frozenMoves      [][2]target.Reg // Frozen (no longer candidates for coalescing)
	worklistMoves    [][2]target.Reg // Active move candidates
	activeMoves      [][2]target.Reg // Moves not yet ready to coalesce
}

// AllocationResult holds the result of register allocation
type AllocationResult struct {
	// Assignment maps virtual registers to physical registers
	Assignment map[target.Reg]target.Reg
	// Spilled lists the virtual registers that found no register, in order
	Spilled []target.Reg
	// Graph is the interference graph the assignment was made on
	Graph *InterferenceGraph
}

// NewAllocator creates a new register allocator
func NewAllocator(fn *mach.Function, graph *InterferenceGraph, noSpill RegSet) *Allocator {
	if noSpill == nil {
		noSpill = NewRegSet()
	}
	return &Allocator{
		fn:             fn,
		graph:          graph,
		noSpill:        noSpill,
		colors:         make(map[target.Reg]target.Reg),
		coalescedNodes: NewRegSet(),
		coloredNodes:   NewRegSet(),
		onStack:        NewRegSet(),
		spilledNodes:   NewRegSet(),
		alias:          make(map[target.Reg]target.Reg),
	}
}

// Allocate performs register allocation and returns the result
func (a *Allocator) Allocate() *AllocationResult {
	a.buildWorklists()

	// Main loop
	for {
		if len(a.simplifyWorklist) > 0 {
			a.simplify()
		} else if len(a.worklistMoves) > 0 {
			a.coalesce()
		} else if len(a.freezeWorklist) > 0 {
			a.freeze()
		} else if len(a.spillWorklist) > 0 {
			a.selectSpill()
		} else {
			break
		}
	}

	a.assignColors()
	return a.buildResult()
}

func (a *Allocator) class(r target.Reg) target.RegClass {
	return a.fn.RegInfo.ClassOf(r)
}

// k is the number of registers r can be given
func (a *Allocator) k(r target.Reg) int {
	return len(a.regs.Allocatable(a.class(r), a.fn.HasFP))
}

func (a *Allocator) buildWorklists() {
	for _, r := range a.graph.Nodes.Slice() {
		if a.degree(r) >= a.k(r) {
			a.spillWorklist = append(a.spillWorklist, r)
		} else if a.graph.MoveRelated(r) {
			a.freezeWorklist = append(a.freezeWorklist, r)
		} else {
			a.simplifyWorklist = append(a.simplifyWorklist, r)
		}
	}

	// Build initial move worklist from preferences
	for _, r := range a.graph.Nodes.Slice() {
		for _, p := range a.graph.Preferences[r].Slice() {
			if r < p { // Avoid duplicates
				a.worklistMoves = append(a.worklistMoves, [2]target.Reg{r, p})
			}
		}
	}
}

func (a *Allocator) degree(r target.Reg) int {
	// Don't count coalesced or simplified nodes
	deg := 0
	for neighbor := range a.graph.Edges[r] {
		if !a.coalescedNodes.Contains(neighbor) && !a.onStack.Contains(neighbor) {
			deg++
		}
	}
	return deg
}

func (a *Allocator) simplify() {
	n := len(a.simplifyWorklist) - 1
	r := a.simplifyWorklist[n]
	a.simplifyWorklist = a.simplifyWorklist[:n]
	if a.onStack.Contains(r) || a.coalescedNodes.Contains(r) {
		return
	}

	a.selectStack = append(a.selectStack, r)
	a.onStack.Add(r)

	for _, neighbor := range a.graph.Edges[r].Slice() {
		a.decrementDegree(neighbor)
	}
}

func (a *Allocator) decrementDegree(r target.Reg) {
	if a.coalescedNodes.Contains(r) || a.onStack.Contains(r) {
		return
	}

	// If degree drops below K, move to appropriate worklist
	if a.degree(r) == a.k(r)-1 && slices.Contains(a.spillWorklist, r) {
		a.removeFromWorklist(r, &a.spillWorklist)

		if a.graph.MoveRelated(r) {
			a.freezeWorklist = append(a.freezeWorklist, r)
		} else {
			a.simplifyWorklist = append(a.simplifyWorklist, r)
		}
	}
}

func (a *Allocator) removeFromWorklist(r target.Reg, list *[]target.Reg) {
	if i := slices.Index(*list, r); i >= 0 {
		*list = slices.Delete(*list, i, i+1)
	}
}

func (a *Allocator) coalesce() {
	n := len(a.worklistMoves) - 1
	m := a.worklistMoves[n]
	a.worklistMoves = a.worklistMoves[:n]

	x := a.getAlias(m[0])
	y := a.getAlias(m[1])

	// Make sure we merge into the lower-numbered register (arbitrary choice)
	u, v := min(x, y), max(x, y)

	switch {
	case u == v:
		a.coalescedMoves = append(a.coalescedMoves, m)
		a.addToWorklist(u)
	case a.graph.HasEdge(u, v) || a.class(u) != a.class(v):
		a.constrainedMoves = append(a.constrainedMoves, m)
		a.addToWorklist(u)
		a.addToWorklist(v)
	case a.conservativeCoalesce(u, v):
		a.coalescedMoves = append(a.coalescedMoves, m)
		a.combine(u, v)
		a.addToWorklist(u)
	default:
		a.activeMoves = append(a.activeMoves, m)
	}
}

func (a *Allocator) getAlias(r target.Reg) target.Reg {
	if a.coalescedNodes.Contains(r) {
		return a.getAlias(a.alias[r])
	}
	return r
}

// conservativeCoalesce applies the Briggs criterion: the combined node must
// have fewer than K neighbors of significant degree
func (a *Allocator) conservativeCoalesce(u, v target.Reg) bool {
	neighbors := NewRegSet()
	for n := range a.graph.Edges[u] {
		if !a.coalescedNodes.Contains(n) {
			neighbors.Add(n)
		}
	}
	for n := range a.graph.Edges[v] {
		if !a.coalescedNodes.Contains(n) {
			neighbors.Add(n)
		}
	}

	high := 0
	for n := range neighbors {
		if a.degree(n) >= a.k(n) {
			high++
		}
	}
	return high < a.k(u)
}

func (a *Allocator) combine(u, v target.Reg) {
	a.removeFromWorklist(v, &a.freezeWorklist)
	a.removeFromWorklist(v, &a.spillWorklist)

	a.coalescedNodes.Add(v)
	a.alias[v] = u

	if a.graph.LiveAcrossCalls.Contains(v) {
		a.graph.LiveAcrossCalls.Add(u)
	}
	if a.noSpill.Contains(v) {
		a.noSpill.Add(u)
	}
	for unit := range a.graph.Fixed[v] {
		a.graph.Fixed[u].Add(unit)
	}
	for _, h := range a.graph.Hints[v] {
		a.graph.AddHint(u, h)
	}

	for _, n := range a.graph.Edges[v].Slice() {
		if !a.coalescedNodes.Contains(n) && n != u {
			a.graph.AddEdge(u, n)
			a.decrementDegree(n)
		}
	}

	for _, n := range a.graph.Preferences[v].Slice() {
		if n != u {
			a.graph.AddPreference(u, n)
		}
	}

	if a.degree(u) >= a.k(u) {
		a.removeFromWorklist(u, &a.freezeWorklist)
		if !slices.Contains(a.spillWorklist, u) {
			a.spillWorklist = append(a.spillWorklist, u)
		}
	}
}

func (a *Allocator) addToWorklist(r target.Reg) {
	if a.coalescedNodes.Contains(r) {
		return
	}
	if a.degree(r) < a.k(r) && !a.hasActiveMoves(r) {
		if slices.Contains(a.freezeWorklist, r) {
			a.removeFromWorklist(r, &a.freezeWorklist)
			a.simplifyWorklist = append(a.simplifyWorklist, r)
		}
	}
}

// hasActiveMoves reports whether r still takes part in a move that may be
// coalesced
func (a *Allocator) hasActiveMoves(r target.Reg) bool {
	involves := func(m [2]target.Reg) bool {
		return a.getAlias(m[0]) == r || a.getAlias(m[1]) == r
	}
	return slices.ContainsFunc(a.worklistMoves, involves) || slices.ContainsFunc(a.activeMoves, involves)
}

func (a *Allocator) freeze() {
	n := len(a.freezeWorklist) - 1
	r := a.freezeWorklist[n]
	a.freezeWorklist = a.freezeWorklist[:n]

	a.simplifyWorklist = append(a.simplifyWorklist, r)
	a.freezeMovesFor(r)
}

func (a *Allocator) freezeMovesFor(r target.Reg) {
	var remaining [][2]target.Reg
	for _, m := range a.activeMoves {
		x, y := a.getAlias(m[0]), a.getAlias(m[1])
		if x != r && y != r {
			remaining = append(remaining, m)
			continue
		}
		a.frozenMoves = append(a.frozenMoves, m)
		other := x
		if x == r {
			other = y
		}
		a.addToWorklist(other)
	}
	a.activeMoves = remaining
}

// selectSpill picks the potential spill: values live across calls first,
// since no register survives a call, then the highest degree. Spill
// temporaries are taken last.
func (a *Allocator) selectSpill() {
	best := -1
	score := func(r target.Reg) int {
		s := a.degree(r)
		if a.graph.LiveAcrossCalls.Contains(r) {
			s += 1 << 20
		}
		if a.noSpill.Contains(r) {
			s -= 1 << 24
		}
		return s
	}
	for i, r := range a.spillWorklist {
		if best == -1 || score(r) > score(a.spillWorklist[best]) {
			best = i
		}
	}

	r := a.spillWorklist[best]
	a.spillWorklist = slices.Delete(a.spillWorklist, best, best+1)
	a.simplifyWorklist = append(a.simplifyWorklist, r)
	a.freezeMovesFor(r)
}

// assignColors pops the select stack and gives each node the first register
// of its class whose units are free of its neighbors' registers and of the
// physical units it interferes with. Hinted registers and the registers of
// move partners are tried first.
func (a *Allocator) assignColors() {
	for len(a.selectStack) > 0 {
		n := len(a.selectStack) - 1
		r := a.selectStack[n]
		a.selectStack = a.selectStack[:n]

		busy := a.graph.Fixed[r].Copy()
		for neighbor := range a.graph.Edges[r] {
			alias := a.getAlias(neighbor)
			if a.coloredNodes.Contains(alias) {
				for _, u := range a.colors[alias].Units() {
					busy.Add(u)
				}
			}
		}

		if color, ok := a.pickColor(r, busy); ok {
			a.coloredNodes.Add(r)
			a.colors[r] = color
		} else {
			a.spilledNodes.Add(r)
		}
	}

	for _, r := range a.coalescedNodes.Slice() {
		alias := a.getAlias(r)
		if a.coloredNodes.Contains(alias) {
			a.colors[r] = a.colors[alias]
			a.coloredNodes.Add(r)
		} else if a.spilledNodes.Contains(alias) {
			a.spilledNodes.Add(r)
		}
	}
}

func (a *Allocator) pickColor(r target.Reg, busy RegSet) (target.Reg, bool) {
	allocatable := a.regs.Allocatable(a.class(r), a.fn.HasFP)
	free := func(p target.Reg) bool {
		if !slices.Contains(allocatable, p) {
			return false
		}
		for _, u := range p.Units() {
			if busy.Contains(u) {
				return false
			}
		}
		return true
	}

	candidates := slices.Clone(a.graph.Hints[r])
	for _, p := range a.graph.Preferences[r].Slice() {
		if alias := a.getAlias(p); a.coloredNodes.Contains(alias) {
			candidates = append(candidates, a.colors[alias])
		}
	}
	candidates = append(candidates, allocatable...)
	for _, p := range candidates {
		if free(p) {
			return p, true
		}
	}
	return target.NoReg, false
}

func (a *Allocator) buildResult() *AllocationResult {
	result := &AllocationResult{Assignment: make(map[target.Reg]target.Reg, len(a.coloredNodes))}
	for r := range a.coloredNodes {
		result.Assignment[r] = a.colors[r]
	}
	result.Spilled = a.spilledNodes.Slice()
	result.Graph = a.graph
	return result
}

// AllocateOnce runs liveness, builds the graph and colors it
func AllocateOnce(fn *mach.Function, noSpill RegSet) *AllocationResult {
	liveness := AnalyzeLiveness(fn)
	graph := BuildInterferenceGraph(fn, liveness)
	return NewAllocator(fn, graph, noSpill).Allocate()
}
