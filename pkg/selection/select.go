// Package selection lowers RTL functions to Mandarin machine code over
// virtual registers. Every RTL value gets one virtual register of the class
// its type needs; formal arguments, calls and returns follow the calling
// convention; compares become a flag-setting compare plus a conditional jump
// or a SELECT_CC pseudo that ExpandSelects later turns into a diamond.
package selection

import (
	"errors"

	"github.com/raymyers/mandarin-llc/pkg/callconv"
	"github.com/raymyers/mandarin-llc/pkg/diag"
	"github.com/raymyers/mandarin-llc/pkg/logger"
	"github.com/raymyers/mandarin-llc/pkg/mach"
	"github.com/raymyers/mandarin-llc/pkg/mandarin"
	"github.com/raymyers/mandarin-llc/pkg/rtl"
	"github.com/raymyers/mandarin-llc/pkg/target"
)

// SelectionContext carries the state of lowering one function
type SelectionContext struct {
	Target *mandarin.Target
	Fn     *rtl.Function
	MF     *mach.Function

	blocks map[string]*mach.Block
	regs   map[rtl.Value]target.Reg
	types  map[rtl.Value]rtl.Typ
	consts map[rtl.Value]int64
	fconst map[rtl.Value]bool

	cur   *mach.Block
	instr rtl.Instruction // being lowered, for diagnostics

	retLocs []callconv.ArgLocation
	exit    *mach.Block // shared return block when the function returns in several places
}

// SelectFunction lowers fn. number is the function's ordinal in the module
// and becomes part of its private labels.
func SelectFunction(tgt *mandarin.Target, fn *rtl.Function, number int) (mf *mach.Function, err error) {
	defer diag.Recover(&err)
	logger.LogPhase("selection", fn.Name)

	ctx := &SelectionContext{
		Target: tgt,
		Fn:     fn,
		MF:     mach.NewFunction(fn.Name, number),
		blocks: make(map[string]*mach.Block),
		regs:   make(map[rtl.Value]target.Reg),
		types:  make(map[rtl.Value]rtl.Typ),
		consts: make(map[rtl.Value]int64),
		fconst: make(map[rtl.Value]bool),
	}
	if err := ctx.prepare(); err != nil {
		return nil, err
	}
	if err := ctx.LowerFormalArguments(); err != nil {
		return nil, err
	}
	for _, rb := range fn.Blocks {
		ctx.cur = ctx.blocks[rb.Name]
		for _, in := range rb.Code {
			ctx.instr = in
			if err := ctx.selectInstr(in); err != nil {
				return nil, err
			}
		}
	}
	ctx.instr = nil

	logger.LogPhaseComplete("selection", fn.Name, ctx.MF.NumInstrs())
	return ctx.MF, nil
}

// prepare checks the shape of the function, records value types and builds
// the machine blocks and their edges
func (ctx *SelectionContext) prepare() error {
	fn := ctx.Fn
	if fn.VarArg {
		return ctx.limit("variadic formal arguments are not supported")
	}
	if len(fn.Blocks) == 0 {
		return ctx.limit("function has no blocks")
	}
	if err := ctx.collectValues(); err != nil {
		return err
	}

	for _, rb := range fn.Blocks {
		if _, dup := ctx.blocks[rb.Name]; dup {
			return ctx.limit("duplicate block %q", rb.Name)
		}
		mb := ctx.MF.CreateBlock(rb.Name)
		ctx.MF.AppendBlock(mb)
		ctx.blocks[rb.Name] = mb
	}

	returns := 0
	for _, rb := range fn.Blocks {
		term := rb.Terminator()
		if term == nil {
			return ctx.limit("block %q has no terminator", rb.Name)
		}
		for _, in := range rb.Code[:len(rb.Code)-1] {
			if _, ok := in.(rtl.Terminator); ok {
				ctx.instr = in
				return ctx.limit("terminator in the middle of block %q", rb.Name)
			}
		}
		if _, ok := term.(rtl.Ret); ok {
			returns++
		}
		for _, name := range term.Successors() {
			succ, ok := ctx.blocks[name]
			if !ok {
				ctx.instr = term
				return ctx.limit("unknown block %q", name)
			}
			ctx.blocks[rb.Name].AddSuccessor(succ)
		}
	}
	if returns == 0 {
		return ctx.limit("function never returns")
	}

	locs, err := ctx.Target.CallConv.AnalyzeReturn(fn.Results)
	if err != nil {
		return ctx.limit("%v", err)
	}
	ctx.retLocs = locs

	if returns > 1 {
		ctx.exit = ctx.MF.CreateBlock("return")
		ctx.MF.AppendBlock(ctx.exit)
		ret := mach.AtEnd(ctx.exit).Build(target.RET)
		for _, l := range locs {
			ret.Operands = append(ret.Operands, mach.ImplicitUse(l.Reg))
		}
	}
	ctx.cur = ctx.MF.Entry()
	return nil
}

func (ctx *SelectionContext) selectInstr(in rtl.Instruction) error {
	switch i := in.(type) {
	case rtl.Const:
		return ctx.selectConst(i)
	case rtl.FConst:
		return ctx.selectFConst(i)
	case rtl.Binop:
		return ctx.selectBinop(i)
	case rtl.Unop:
		return ctx.selectUnop(i)
	case rtl.Load:
		return ctx.selectLoad(i)
	case rtl.Store:
		return ctx.selectStore(i)
	case rtl.GlobalAddr:
		return ctx.LowerAddress(i)
	case rtl.Alloca:
		return ctx.selectAlloca(i)
	case rtl.DynAlloca:
		return ctx.selectDynAlloca(i)
	case rtl.FrameAddr:
		return ctx.selectFrameAddr(i)
	case rtl.Cmp:
		return ctx.LowerCmp(i)
	case rtl.Select:
		return ctx.LowerSelect(i)
	case rtl.Call:
		return ctx.LowerCall(i)
	case rtl.InlineAsm:
		return ctx.selectInlineAsm(i)
	case rtl.Phi:
		return ctx.selectPhi(i)
	case rtl.Br:
		ctx.build(target.JMPi, mach.MBB{Block: ctx.blocks[i.Target]})
		return nil
	case rtl.BrCC:
		return ctx.LowerBrCC(i)
	case rtl.Ret:
		return ctx.LowerReturn(i)
	}
	return ctx.limit("unsupported instruction %T", in)
}

// reg returns the virtual register of an RTL value, creating it on first use
func (ctx *SelectionContext) reg(v rtl.Value) target.Reg {
	if r, ok := ctx.regs[v]; ok {
		return r
	}
	t, ok := ctx.types[v]
	if !ok {
		diag.Invariant("%s: value x%d has no definition", ctx.Fn.Name, v)
	}
	r := ctx.newReg(target.ClassForType(t))
	ctx.regs[v] = r
	return r
}

func (ctx *SelectionContext) newReg(c target.RegClass) target.Reg {
	return ctx.MF.RegInfo.CreateVirtualRegister(c)
}

// build appends an instruction to the current block
func (ctx *SelectionContext) build(op target.Opcode, ops ...mach.Operand) *mach.Instr {
	return mach.AtEnd(ctx.cur).Build(op, ops...)
}

// limit reports a target limitation at the instruction being lowered
func (ctx *SelectionContext) limit(format string, args ...any) error {
	text := ""
	if ctx.instr != nil {
		text = rtl.InstrString(ctx.instr)
	}
	return diag.Limitf(ctx.Fn.Name, text, format, args...)
}

// wrapLimit turns a calling-convention error into a diagnostic
func (ctx *SelectionContext) wrapLimit(err error) error {
	var de *diag.Error
	if errors.As(err, &de) {
		return err
	}
	return ctx.limit("%v", err)
}
