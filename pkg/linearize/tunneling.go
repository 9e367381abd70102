// Branch tunneling: jumps to a block that only jumps elsewhere are
// redirected to the final destination.
package linearize

import (
	"github.com/raymyers/mandarin-llc/pkg/mach"
	"github.com/raymyers/mandarin-llc/pkg/target"
)

// Tunnel shortcuts chains of unconditional jumps and returns how many branch
// operands it redirected. The entry block is never bypassed.
func Tunnel(f *mach.Function) int {
	resolved := resolveChains(buildJumpTargetMap(f))
	if len(resolved) == 0 {
		return 0
	}

	n := 0
	for _, p := range f.Blocks {
		for _, b := range redirectBranches(p, resolved) {
			n++
			dst := resolved[b]
			if !endsInBarrier(p) && p.IsLayoutSuccessor(b) {
				// p still reaches b by falling through
				p.AddSuccessor(dst)
				continue
			}
			p.ReplaceSuccessor(b, dst)
		}
	}
	return n
}

// buildJumpTargetMap finds blocks whose only instruction is a jump
func buildJumpTargetMap(f *mach.Function) map[*mach.Block]*mach.Block {
	result := make(map[*mach.Block]*mach.Block)
	for _, b := range f.Blocks[1:] {
		if len(b.Instrs) == 1 && b.Instrs[0].Op == target.JMPi && b.Instrs[0].Target() != b {
			result[b] = b.Instrs[0].Target()
		}
	}
	return result
}

// resolveChains follows jump chains to their ultimate target.
// Handles cycles by returning the block where a cycle is detected.
func resolveChains(jumpTargets map[*mach.Block]*mach.Block) map[*mach.Block]*mach.Block {
	result := make(map[*mach.Block]*mach.Block, len(jumpTargets))
	for b := range jumpTargets {
		if dst := resolveBlock(b, jumpTargets); dst != b {
			result[b] = dst
		}
	}
	return result
}

func resolveBlock(b *mach.Block, jumpTargets map[*mach.Block]*mach.Block) *mach.Block {
	visited := make(map[*mach.Block]bool)
	current := b
	for {
		if visited[current] {
			return current
		}
		visited[current] = true

		next, ok := jumpTargets[current]
		if !ok {
			return current
		}
		current = next
	}
}

// redirectBranches rewrites p's branch operands and returns the distinct
// blocks it redirected away from, in operand order
func redirectBranches(p *mach.Block, resolved map[*mach.Block]*mach.Block) []*mach.Block {
	var from []*mach.Block
	for _, in := range p.Instrs[p.FirstTerminator():] {
		if !in.IsBranch() {
			continue
		}
		for i, op := range in.Operands {
			m, ok := op.(mach.MBB)
			if !ok {
				continue
			}
			dst, ok := resolved[m.Block]
			if !ok {
				continue
			}
			in.Operands[i] = mach.MBB{Block: dst}
			if !containsBlock(from, m.Block) {
				from = append(from, m.Block)
			}
		}
	}
	return from
}

func containsBlock(bs []*mach.Block, b *mach.Block) bool {
	for _, x := range bs {
		if x == b {
			return true
		}
	}
	return false
}
