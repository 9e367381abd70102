// Package linearize is the last control-flow pass before printing. It orders
// blocks by reverse postorder, tunnels through blocks that only jump
// elsewhere, drops unreachable blocks and folds away jumps to the layout
// successor. Branches are read and rewritten only through instrinfo.
package linearize

import (
	"github.com/raymyers/mandarin-llc/pkg/diag"
	"github.com/raymyers/mandarin-llc/pkg/instrinfo"
	"github.com/raymyers/mandarin-llc/pkg/logger"
	"github.com/raymyers/mandarin-llc/pkg/mach"
	"github.com/raymyers/mandarin-llc/pkg/target"
)

// Linearize runs block ordering and branch folding on f
func Linearize(f *mach.Function, ii *instrinfo.InstrInfo) (err error) {
	defer diag.Recover(&err)
	logger.LogPhase("linearize", f.Name)

	if MakeBranchesExplicit(f, ii) {
		ReorderBlocks(f)
	}
	Tunnel(f)
	removed := RemoveUnreachable(f)
	folded := FoldBranches(f, ii)

	logger.Debug("Folded branches", "function", f.Name, "jumps", folded, "unreachable", removed)
	logger.LogPhaseComplete("linearize", f.Name, f.NumInstrs())
	return nil
}

// MakeBranchesExplicit gives every block that falls through an explicit jump
// to its layout successor, so blocks may be reordered. It changes nothing and
// reports false when some block ends in a branch it cannot analyze that may
// still fall through.
func MakeBranchesExplicit(f *mach.Function, ii *instrinfo.InstrInfo) bool {
	branches := make([]instrinfo.Branch, len(f.Blocks))
	for i, b := range f.Blocks {
		br, ok := ii.AnalyzeBranch(b, false)
		if !ok && !endsInBarrier(b) {
			return false
		}
		branches[i] = br
	}

	for i, b := range f.Blocks {
		br := branches[i]
		next := b.LayoutSuccessor()
		if endsInBarrier(b) || next == nil {
			continue
		}
		if br.TBB == nil || (len(br.Cond) > 0 && br.FBB == nil) {
			ii.InsertBranch(b, next, nil, nil)
		}
	}
	return true
}

// endsInBarrier reports whether control never falls out of the bottom of b
func endsInBarrier(b *mach.Block) bool {
	last := b.Last()
	return last != nil && last.Op.Has(target.IsBarrier)
}

// ReorderBlocks lays blocks out in reverse postorder from the entry; blocks
// the walk does not reach keep their relative order at the end. Every block
// must end in an explicit jump or a barrier.
func ReorderBlocks(f *mach.Function) {
	visited := make(map[*mach.Block]bool, len(f.Blocks))
	var postorder []*mach.Block

	var dfs func(b *mach.Block)
	dfs = func(b *mach.Block) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, s := range b.Succs {
			dfs(s)
		}
		postorder = append(postorder, b)
	}
	dfs(f.Entry())

	order := make([]*mach.Block, 0, len(f.Blocks))
	for i := len(postorder) - 1; i >= 0; i-- {
		order = append(order, postorder[i])
	}
	for _, b := range f.Blocks {
		if !visited[b] {
			order = append(order, b)
		}
	}
	f.Blocks = order
	f.Renumber()
}
