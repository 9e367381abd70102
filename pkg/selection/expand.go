package selection

import (
	"github.com/raymyers/mandarin-llc/pkg/diag"
	"github.com/raymyers/mandarin-llc/pkg/instrinfo"
	"github.com/raymyers/mandarin-llc/pkg/logger"
	"github.com/raymyers/mandarin-llc/pkg/mach"
	"github.com/raymyers/mandarin-llc/pkg/target"
)

// ExpandSelects replaces every SELECT_CC with control flow, since Mandarin
// has no conditional move:
//
//	thisMBB:
//	  ...
//	  jcc sinkMBB, cc        true value: jump straight to the join
//	copy0MBB:                falls through, carries the false value
//	sinkMBB:
//	  dst = PHI [false, copy0MBB], [true, thisMBB]
//	  rest of thisMBB
//
// sinkMBB takes over thisMBB's successors; PHIs in them are updated.
func ExpandSelects(ii *instrinfo.InstrInfo, f *mach.Function) (err error) {
	defer diag.Recover(&err)
	n := 0
	for bi := 0; bi < len(f.Blocks); bi++ {
		b := f.Blocks[bi]
		for i, in := range b.Instrs {
			if in.Op == target.SELECT_CC {
				expandSelect(ii, f, b, i)
				n++
				break
			}
		}
	}
	if n > 0 {
		logger.Debug("Expanded selects", "function", f.Name, "count", n)
	}
	return nil
}

func expandSelect(ii *instrinfo.InstrInfo, f *mach.Function, thisMBB *mach.Block, pos int) {
	sel := thisMBB.Instrs[pos]
	cc := sel.CondCode()
	if !cc.Valid() {
		diag.Invariant("%s: SELECT_CC with condition %v", f.Name, cc)
	}
	dst := sel.Operands[0].(mach.Register).Reg
	trueVal := sel.Operands[1].(mach.Register).Reg
	falseVal := sel.Operands[2].(mach.Register).Reg

	copy0MBB := f.CreateBlock(thisMBB.Name + ".false")
	sinkMBB := f.CreateBlock(thisMBB.Name + ".join")
	f.InsertBlockAfter(thisMBB, copy0MBB)
	f.InsertBlockAfter(copy0MBB, sinkMBB)

	// everything after the select moves to the join block
	mach.At(thisMBB, pos+1).SpliceRest(sinkMBB)
	thisMBB.Instrs = thisMBB.Instrs[:pos]
	sinkMBB.TransferSuccessorsAndUpdatePHIs(thisMBB)

	thisMBB.AddSuccessor(copy0MBB)
	thisMBB.AddSuccessor(sinkMBB)
	ii.InsertBranch(thisMBB, sinkMBB, nil, []target.CondCode{cc})

	copy0MBB.AddSuccessor(sinkMBB)

	mach.At(sinkMBB, 0).Build(target.PHI,
		mach.Use(dst),
		mach.Use(falseVal), mach.MBB{Block: copy0MBB},
		mach.Use(trueVal), mach.MBB{Block: thisMBB})
}
