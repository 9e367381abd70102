package selection

import (
	"math"

	"github.com/raymyers/mandarin-llc/pkg/mach"
	"github.com/raymyers/mandarin-llc/pkg/rtl"
	"github.com/raymyers/mandarin-llc/pkg/target"
)

var intBinops = map[rtl.BinOp]target.Opcode{
	rtl.Add:  target.ADDrr,
	rtl.Sub:  target.SUBrr,
	rtl.Mul:  target.MULrr,
	rtl.Div:  target.DIVrr,
	rtl.Divu: target.DIVUrr,
	rtl.Mod:  target.MODrr,
	rtl.Modu: target.MODUrr,
	rtl.And:  target.ANDrr,
	rtl.Or:   target.ORrr,
	rtl.Xor:  target.XORrr,
	rtl.Shl:  target.SHLrr,
	rtl.Shr:  target.SHRrr,
	rtl.Shru: target.SHRUrr,
}

var floatBinops = map[rtl.BinOp]target.Opcode{
	rtl.Add: target.FADDrr,
	rtl.Sub: target.FSUBrr,
	rtl.Mul: target.FMULrr,
	rtl.Div: target.FDIVrr,
}

func (ctx *SelectionContext) selectConst(c rtl.Const) error {
	if c.Type.IsVector() || c.Type.IsFloat() {
		return ctx.limit("integer constant of type %s", c.Type)
	}
	if c.Value < math.MinInt32 || c.Value > math.MaxUint32 {
		return ctx.limit("constant %d does not fit in a word", c.Value)
	}
	ctx.build(target.MOVri, mach.Use(ctx.reg(c.Dest)), mach.Imm{Val: c.Value})
	return nil
}

// selectFConst loads a float constant from the function's constant pool
func (ctx *SelectionContext) selectFConst(c rtl.FConst) error {
	if ctx.Target.PIC() {
		return ctx.limit("position independent constant pool access")
	}
	idx := ctx.MF.AddConstant(mach.ConstPoolEntry{
		Value: uint64(math.Float32bits(c.Value)),
		Size:  4,
		Align: 4,
	})
	addr := ctx.newReg(target.Generic)
	ctx.build(target.LOWri, mach.Use(addr), mach.ConstPool{Index: idx, Flag: target.FlagLo16})
	ctx.build(target.LOADrr, mach.Use(ctx.reg(c.Dest)), mach.Use(addr))
	return nil
}

func (ctx *SelectionContext) selectBinop(b rtl.Binop) error {
	if b.Type.IsVector() {
		return ctx.limit("vector arithmetic")
	}
	table := intBinops
	if b.Type.IsFloat() {
		table = floatBinops
	}
	op, ok := table[b.Op]
	if !ok {
		return ctx.limit("%s on %s", b.Op, b.Type)
	}
	ctx.build(op, mach.Use(ctx.reg(b.Dest)), mach.Use(ctx.reg(b.X)), mach.Use(ctx.reg(b.Y)))
	return nil
}

func (ctx *SelectionContext) selectUnop(u rtl.Unop) error {
	dst, x := ctx.reg(u.Dest), ctx.reg(u.X)
	if u.Op == rtl.Move {
		if ctx.MF.RegInfo.ClassOf(dst) != ctx.MF.RegInfo.ClassOf(x) {
			return ctx.limit("move between register classes")
		}
		ctx.build(target.COPY, mach.Use(dst), mach.Use(x))
		return nil
	}
	if u.Type.IsVector() {
		return ctx.limit("vector %s", u.Op)
	}

	switch u.Op {
	case rtl.Neg:
		if u.Type.IsFloat() {
			ctx.build(target.FNEGr, mach.Use(dst), mach.Use(x))
		} else {
			ctx.build(target.NEGr, mach.Use(dst), mach.Use(x))
		}
	case rtl.Not:
		ctx.build(target.NOTr, mach.Use(dst), mach.Use(x))
	case rtl.Sext8:
		ctx.build(target.SEXT8r, mach.Use(dst), mach.Use(x))
	case rtl.Sext16:
		ctx.build(target.SEXT16r, mach.Use(dst), mach.Use(x))
	case rtl.Zext8:
		ctx.build(target.ANDri, mach.Use(dst), mach.Use(x), mach.Imm{Val: 0xff})
	case rtl.Zext16:
		ctx.build(target.ANDri, mach.Use(dst), mach.Use(x), mach.Imm{Val: 0xffff})
	case rtl.IntToFloat:
		ctx.build(target.ITOFr, mach.Use(dst), mach.Use(x))
	case rtl.FloatToInt:
		ctx.build(target.FTOIr, mach.Use(dst), mach.Use(x))
	default:
		return ctx.limit("unsupported operation %s", u.Op)
	}
	return nil
}

func (ctx *SelectionContext) selectLoad(l rtl.Load) error {
	ctx.build(loadOpcode(l.Type), mach.Use(ctx.reg(l.Dest)), mach.Use(ctx.reg(l.Addr)))
	return nil
}

func (ctx *SelectionContext) selectStore(s rtl.Store) error {
	ctx.build(storeOpcode(s.Type), mach.Use(ctx.reg(s.Addr)), mach.Use(ctx.reg(s.Src)))
	return nil
}

// LowerAddress materializes the address of a symbol with a lo16 relocation;
// static code lives in the low 64 KiB
func (ctx *SelectionContext) LowerAddress(g rtl.GlobalAddr) error {
	if ctx.Target.PIC() {
		return ctx.limit("position independent address of %q", g.Symbol)
	}
	var sym mach.Operand = mach.Global{Name: g.Symbol, Flag: target.FlagLo16}
	if g.External {
		sym = mach.External{Name: g.Symbol, Flag: target.FlagLo16}
	}
	ctx.build(target.LOWri, mach.Use(ctx.reg(g.Dest)), sym)
	return nil
}

func (ctx *SelectionContext) selectAlloca(a rtl.Alloca) error {
	if a.Size < 0 {
		return ctx.limit("negative stack allocation")
	}
	fi := ctx.MF.Frame.CreateStackObject(a.Size, max(a.Align, 1))
	ctx.build(target.MOVrr, mach.Use(ctx.reg(a.Dest)), mach.FrameIndex{Index: fi})
	return nil
}

// selectDynAlloca hands out the area at the current stack top and grows SP
// by the size rounded up to a word
func (ctx *SelectionContext) selectDynAlloca(a rtl.DynAlloca) error {
	ctx.MF.Frame.CreateVariableSizedObject(4)
	rounded, size := ctx.newReg(target.Generic), ctx.newReg(target.Generic)
	ctx.build(target.ADDri, mach.Use(rounded), mach.Use(ctx.reg(a.Size)), mach.Imm{Val: 3})
	ctx.build(target.ANDri, mach.Use(size), mach.Use(rounded), mach.Imm{Val: -4})
	ctx.build(target.MOVrr, mach.Use(ctx.reg(a.Dest)), mach.Use(target.SP))
	ctx.build(target.ADDrr, mach.Use(target.SP), mach.Use(target.SP), mach.Use(size))
	return nil
}

func (ctx *SelectionContext) selectFrameAddr(f rtl.FrameAddr) error {
	ctx.MF.Frame.FrameAddressTaken = true
	ctx.build(target.MOVrr, mach.Use(ctx.reg(f.Dest)), mach.Use(target.FP))
	return nil
}

// selectInlineAsm binds every operand to a register of its constraint's class
func (ctx *SelectionContext) selectInlineAsm(a rtl.InlineAsm) error {
	ops := []mach.Operand{mach.AsmString{Text: a.Asm}}
	bind := func(o rtl.AsmOperand, def bool) error {
		class, err := ctx.Target.Regs.ConstraintClass(o.Constraint)
		if err != nil {
			return ctx.limit("%v", err)
		}
		r := ctx.reg(o.Value)
		if ctx.MF.RegInfo.ClassOf(r) != class {
			return ctx.limit("operand x%d of type %s does not fit constraint %q", o.Value, o.Type, o.Constraint)
		}
		if def {
			ops = append(ops, mach.Def(r))
		} else {
			ops = append(ops, mach.Use(r))
		}
		return nil
	}
	for _, o := range a.Outputs {
		if err := bind(o, true); err != nil {
			return err
		}
	}
	for _, o := range a.Inputs {
		if err := bind(o, false); err != nil {
			return err
		}
	}
	ctx.build(target.INLINEASM, ops...)
	return nil
}

// selectPhi emits a machine PHI; PHIs must open their block
func (ctx *SelectionContext) selectPhi(p rtl.Phi) error {
	for _, in := range ctx.cur.Instrs {
		if in.Op != target.PHI {
			return ctx.limit("phi after a non-phi instruction")
		}
	}
	ops := []mach.Operand{mach.Use(ctx.reg(p.Dest))}
	for _, a := range p.Incoming {
		pred, ok := ctx.blocks[a.Block]
		if !ok {
			return ctx.limit("phi names unknown block %q", a.Block)
		}
		ops = append(ops, mach.Use(ctx.reg(a.Value)), mach.MBB{Block: pred})
	}
	ctx.build(target.PHI, ops...)
	return nil
}
