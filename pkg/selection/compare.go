package selection

import (
	"github.com/raymyers/mandarin-llc/pkg/mach"
	"github.com/raymyers/mandarin-llc/pkg/rtl"
	"github.com/raymyers/mandarin-llc/pkg/target"
)

// intCondCodes maps signed integer conditions. Mandarin has no unsigned
// condition codes.
var intCondCodes = map[rtl.Cond]target.CondCode{
	rtl.Ceq: target.CCEQ,
	rtl.Cne: target.CCNE,
	rtl.Cgt: target.CCGR,
	rtl.Clt: target.CCLS,
	rtl.Cge: target.CCGE,
	rtl.Cle: target.CCLE,
}

// floatCondCodes collapses ordered and unordered float conditions onto the
// six codes FCMP sets. NaN operands are not distinguished.
var floatCondCodes = map[rtl.Cond]target.CondCode{
	rtl.Ceq: target.CCEQ, rtl.Coeq: target.CCEQ, rtl.Cueq: target.CCEQ,
	rtl.Cne: target.CCNE, rtl.Cone: target.CCNE, rtl.Cune: target.CCNE,
	rtl.Cgt: target.CCGR, rtl.Cogt: target.CCGR, rtl.Cugt: target.CCGR,
	rtl.Clt: target.CCLS, rtl.Colt: target.CCLS, rtl.Cult: target.CCLS,
	rtl.Cge: target.CCGE, rtl.Coge: target.CCGE, rtl.Cuge: target.CCGE,
	rtl.Cle: target.CCLE, rtl.Cole: target.CCLE, rtl.Cule: target.CCLE,
}

// CondCodeFor maps an RTL condition on operands of type t to a Mandarin
// condition code
func CondCodeFor(cond rtl.Cond, t rtl.Typ) (target.CondCode, bool) {
	table := intCondCodes
	if t.IsFloat() {
		table = floatCondCodes
	}
	cc, ok := table[cond]
	if !ok {
		return target.CCInvalid, false
	}
	return cc, true
}

// EmitCompare emits the compare of x and y and returns the condition code
// a following jump or select tests. An equality test with a constant on the
// left is swapped so the constant ends up on the right; an integer constant
// on the right folds into ICMPri.
func (ctx *SelectionContext) EmitCompare(cond rtl.Cond, t rtl.Typ, x, y rtl.Value) (target.CondCode, error) {
	if t.IsVector() {
		return target.CCInvalid, ctx.limit("compare of vector type %s", t)
	}
	cc, ok := CondCodeFor(cond, t)
	if !ok {
		return target.CCInvalid, ctx.limit("condition %s on %s has no Mandarin condition code", cond, t)
	}
	if cond.IsEquality() && ctx.isConst(x) {
		x, y = y, x
	}

	if t.IsFloat() {
		ctx.build(target.FCMPrr, mach.Use(ctx.reg(x)), mach.Use(ctx.reg(y)))
		return cc, nil
	}
	if imm, ok := ctx.consts[y]; ok {
		ctx.build(target.ICMPri, mach.Use(ctx.reg(x)), mach.Imm{Val: imm})
		return cc, nil
	}
	ctx.build(target.ICMPrr, mach.Use(ctx.reg(x)), mach.Use(ctx.reg(y)))
	return cc, nil
}

// LowerBrCC lowers a compare-and-branch to a compare, a conditional jump to
// the taken block and a jump to the other
func (ctx *SelectionContext) LowerBrCC(br rtl.BrCC) error {
	cc, err := ctx.EmitCompare(br.Cond, br.Type, br.X, br.Y)
	if err != nil {
		return err
	}
	ifso, ifnot := ctx.blocks[br.IfSo], ctx.blocks[br.IfNot]
	if ifso == ifnot {
		ctx.build(target.JMPi, mach.MBB{Block: ifso})
		return nil
	}
	ctx.Target.Instrs.InsertBranch(ctx.cur, ifso, ifnot, []target.CondCode{cc})
	return nil
}

// LowerSelect emits a compare followed by a SELECT_CC pseudo
func (ctx *SelectionContext) LowerSelect(s rtl.Select) error {
	cc, err := ctx.EmitCompare(s.Cond, s.CmpType, s.X, s.Y)
	if err != nil {
		return err
	}
	ctx.build(target.SELECT_CC,
		mach.Use(ctx.reg(s.Dest)),
		mach.Use(ctx.reg(s.IfTrue)),
		mach.Use(ctx.reg(s.IfFalse)),
		mach.Cond{CC: cc})
	return nil
}

// LowerCmp materializes a condition as 1 or 0 through a select
func (ctx *SelectionContext) LowerCmp(c rtl.Cmp) error {
	one, zero := ctx.newReg(target.Generic), ctx.newReg(target.Generic)
	ctx.build(target.MOVri, mach.Use(one), mach.Imm{Val: 1})
	ctx.build(target.MOVri, mach.Use(zero), mach.Imm{Val: 0})
	cc, err := ctx.EmitCompare(c.Cond, c.Type, c.X, c.Y)
	if err != nil {
		return err
	}
	ctx.build(target.SELECT_CC, mach.Use(ctx.reg(c.Dest)), mach.Use(one), mach.Use(zero), mach.Cond{CC: cc})
	return nil
}
