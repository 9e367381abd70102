// Unreachable block removal and jump folding.
package linearize

import (
	"slices"

	"github.com/raymyers/mandarin-llc/pkg/instrinfo"
	"github.com/raymyers/mandarin-llc/pkg/mach"
)

// RemoveUnreachable deletes blocks the entry cannot reach and returns how
// many it deleted. The entry block is always kept.
func RemoveUnreachable(f *mach.Function) int {
	reached := map[*mach.Block]bool{f.Entry(): true}
	work := []*mach.Block{f.Entry()}
	for len(work) > 0 {
		b := work[len(work)-1]
		work = work[:len(work)-1]
		for _, s := range b.Succs {
			if !reached[s] {
				reached[s] = true
				work = append(work, s)
			}
		}
	}

	var dead []*mach.Block
	for _, b := range f.Blocks {
		if !reached[b] {
			dead = append(dead, b)
		}
	}
	for _, b := range dead {
		f.RemoveBlock(b)
	}
	return len(dead)
}

// FoldBranches removes jumps made redundant by the layout and returns how
// many jump instructions it removed:
//
//	jmp next                   -> (nothing)
//	jcc X, cc; jmp next        -> jcc X, cc
//	jcc next, cc               -> (nothing)
//	jcc X, cc; jmp X           -> jmp X
func FoldBranches(f *mach.Function, ii *instrinfo.InstrInfo) int {
	removed := 0
	for _, b := range f.Blocks {
		before := len(b.Instrs)
		br, ok := ii.AnalyzeBranch(b, true)
		removed += before - len(b.Instrs)
		if !ok || len(br.Cond) == 0 {
			continue
		}

		switch {
		case br.FBB == br.TBB:
			removed += ii.RemoveBranch(b)
			if !b.IsLayoutSuccessor(br.TBB) {
				removed -= ii.InsertBranch(b, br.TBB, nil, nil)
			}
		case br.FBB == nil && b.IsLayoutSuccessor(br.TBB):
			removed += ii.RemoveBranch(b)
		case br.FBB != nil && b.IsLayoutSuccessor(br.TBB):
			// jcc next, cc; jmp Y could become jcc Y, !cc
			cond := slices.Clone(br.Cond)
			if ii.ReverseBranchCondition(cond) {
				removed += ii.RemoveBranch(b)
				removed -= ii.InsertBranch(b, br.FBB, nil, cond)
			}
		}
	}
	return removed
}
