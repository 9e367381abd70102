package selection

import (
	"github.com/samber/lo"

	"github.com/raymyers/mandarin-llc/pkg/callconv"
	"github.com/raymyers/mandarin-llc/pkg/mach"
	"github.com/raymyers/mandarin-llc/pkg/rtl"
	"github.com/raymyers/mandarin-llc/pkg/stacking"
	"github.com/raymyers/mandarin-llc/pkg/target"
)

// LowerFormalArguments materializes the parameters at the top of the entry
// block. Register pieces are copied out of their live-in argument register;
// stack pieces become fixed objects that are loaded, or whose address is the
// value for by-value aggregates.
func (ctx *SelectionContext) LowerFormalArguments() error {
	fn := ctx.Fn
	locs, st, err := ctx.Target.CallConv.AnalyzeFormals(fn.Params, fn.VarArg)
	if err != nil {
		return ctx.wrapLimit(err)
	}
	frame := ctx.MF.Frame
	frame.IncomingArgSize = st.StackSize()
	entry := ctx.MF.Entry()
	ctx.cur = entry

	for i, loc := range locs {
		dst := ctx.reg(fn.Params[i].Value)
		switch loc.Kind {
		case callconv.LocReg:
			ctx.MF.RegInfo.AddLiveIn(loc.Reg, dst)
			entry.AddLiveIn(loc.Reg)
			ctx.build(target.COPY, mach.Use(dst), mach.Use(loc.Reg))
		case callconv.LocBlock:
			fi := frame.CreateFixedObject(loc.Size, stacking.IncomingArgOffset(loc.Offset, frame.IncomingArgSize))
			ctx.build(target.MOVrr, mach.Use(dst), mach.FrameIndex{Index: fi})
		case callconv.LocMem:
			size := loc.LocType.Size()
			fi := frame.CreateFixedObject(size, stacking.IncomingArgOffset(loc.Offset, frame.IncomingArgSize))
			ctx.build(loadOpcode(loc.LocType), mach.Use(dst), mach.FrameIndex{Index: fi})
		}
	}
	return nil
}

// LowerCall emits a full call sequence:
//
//	ADJCALLSTACKDOWN n
//	stores of stack arguments, then copies into argument registers
//	CALLi/CALLr with the argument registers as implicit uses
//	ADJCALLSTACKUP n 0
//	copies out of the result registers
func (ctx *SelectionContext) LowerCall(call rtl.Call) error {
	cc := ctx.Target.CallConv
	locs, st, err := cc.AnalyzeCallOperands(call.Args, call.VarArg)
	if err != nil {
		return ctx.wrapLimit(err)
	}
	resLocs, err := cc.AnalyzeCallResult(call.Results)
	if err != nil {
		return ctx.wrapLimit(err)
	}
	numBytes := st.StackSize()
	ctx.MF.Frame.AdjustsStack = true

	ctx.build(target.ADJCALLSTACKDOWN, mach.Imm{Val: numBytes})

	vals := make([]target.Reg, len(locs))
	for i, loc := range locs {
		vals[i] = ctx.extend(ctx.reg(call.Args[i].Value), loc)
	}

	// stack pieces first; their slots are disjoint
	for _, p := range callconv.MemoryPieces(locs) {
		off, loc := p.A, p.B
		if loc.IsBlock() {
			ctx.copyByVal(vals[loc.ValNo], numBytes-off, call.Args[loc.ValNo].Flags.ByValSize)
			continue
		}
		addr := ctx.outgoingAddr(numBytes - off)
		ctx.build(storeOpcode(loc.LocType), mach.Use(addr), mach.Use(vals[loc.ValNo]))
	}

	var argRegs []target.Reg
	for i, loc := range locs {
		if !loc.IsReg() {
			continue
		}
		ctx.build(target.COPY, mach.Use(loc.Reg), mach.Use(vals[i]))
		argRegs = append(argRegs, loc.Reg)
	}

	var callInstr *mach.Instr
	switch callee := call.Callee.(type) {
	case rtl.CalleeSymbol:
		var sym mach.Operand = mach.Global{Name: callee.Name}
		if callee.External {
			sym = mach.External{Name: callee.Name}
		}
		callInstr = ctx.build(target.CALLi, sym)
	case rtl.CalleeValue:
		callInstr = ctx.build(target.CALLr, mach.Use(ctx.reg(callee.Value)))
	default:
		return ctx.limit("unsupported callee %T", call.Callee)
	}
	callInstr.Operands = append(callInstr.Operands, lo.Map(argRegs, func(r target.Reg, _ int) mach.Operand {
		return mach.ImplicitUse(r)
	})...)
	callInstr.Operands = append(callInstr.Operands, lo.Map(resLocs, func(l callconv.ArgLocation, _ int) mach.Operand {
		return mach.ImplicitDef(l.Reg)
	})...)

	ctx.build(target.ADJCALLSTACKUP, mach.Imm{Val: numBytes}, mach.Imm{Val: 0})
	ctx.LowerCallResult(call.Results, resLocs)
	return nil
}

// LowerCallResult copies each result register into its value, in order
func (ctx *SelectionContext) LowerCallResult(results []rtl.Result, locs []callconv.ArgLocation) {
	for i, loc := range locs {
		ctx.build(target.COPY, mach.Use(ctx.reg(results[i].Value)), mach.Use(loc.Reg))
	}
}

// LowerReturn copies the returned values into the result registers and
// returns, or jumps to the shared return block
func (ctx *SelectionContext) LowerReturn(ret rtl.Ret) error {
	if len(ret.Args) != len(ctx.retLocs) {
		return ctx.limit("returns %d values, function declares %d", len(ret.Args), len(ctx.retLocs))
	}
	for i, loc := range ctx.retLocs {
		ctx.build(target.COPY, mach.Use(loc.Reg), mach.Use(ctx.reg(ret.Args[i])))
	}
	if ctx.exit != nil {
		ctx.build(target.JMPi, mach.MBB{Block: ctx.exit})
		ctx.cur.AddSuccessor(ctx.exit)
		return nil
	}
	r := ctx.build(target.RET)
	for _, loc := range ctx.retLocs {
		r.Operands = append(r.Operands, mach.ImplicitUse(loc.Reg))
	}
	return nil
}

// extend widens a narrow argument to its location type
func (ctx *SelectionContext) extend(v target.Reg, loc callconv.ArgLocation) target.Reg {
	switch loc.Info {
	case callconv.SExt:
		dst := ctx.newReg(target.Generic)
		switch loc.ValType {
		case rtl.I8:
			ctx.build(target.SEXT8r, mach.Use(dst), mach.Use(v))
		case rtl.I16:
			ctx.build(target.SEXT16r, mach.Use(dst), mach.Use(v))
		default:
			// i1: 0 or -1
			bit := ctx.newReg(target.Generic)
			ctx.build(target.ANDri, mach.Use(bit), mach.Use(v), mach.Imm{Val: 1})
			ctx.build(target.NEGr, mach.Use(dst), mach.Use(bit))
		}
		return dst
	case callconv.ZExt:
		dst := ctx.newReg(target.Generic)
		ctx.build(target.ANDri, mach.Use(dst), mach.Use(v), mach.Imm{Val: zextMask(loc.ValType)})
		return dst
	case callconv.AExt:
		dst := ctx.newReg(target.Generic)
		ctx.build(target.COPY, mach.Use(dst), mach.Use(v))
		return dst
	}
	return v
}

func zextMask(t rtl.Typ) int64 {
	switch t {
	case rtl.I1:
		return 1
	case rtl.I8:
		return 0xff
	}
	return 0xffff
}

// outgoingAddr returns a register holding SP - delta, the address of an
// outgoing argument slot delta bytes below the stack top
func (ctx *SelectionContext) outgoingAddr(delta int64) target.Reg {
	addr := ctx.newReg(target.Generic)
	ctx.build(target.SUBri, mach.Use(addr), mach.Use(target.SP), mach.Imm{Val: delta})
	return addr
}

// copyByVal copies a by-value aggregate from src into the outgoing slot at
// SP - delta: whole words first, then the remaining bytes
func (ctx *SelectionContext) copyByVal(src target.Reg, delta, size int64) {
	var off int64
	for ; off+4 <= size; off += 4 {
		ctx.copyUnit(src, delta, off, target.LOADrr, target.STORErr)
	}
	for ; off < size; off++ {
		ctx.copyUnit(src, delta, off, target.LOADBrr, target.STOREBrr)
	}
}

func (ctx *SelectionContext) copyUnit(src target.Reg, delta, off int64, load, store target.Opcode) {
	from := src
	if off != 0 {
		from = ctx.newReg(target.Generic)
		ctx.build(target.ADDri, mach.Use(from), mach.Use(src), mach.Imm{Val: off})
	}
	tmp := ctx.newReg(target.Generic)
	ctx.build(load, mach.Use(tmp), mach.Use(from))
	ctx.build(store, mach.Use(ctx.outgoingAddr(delta-off)), mach.Use(tmp))
}

// loadOpcode returns the load that reads a value of type t
func loadOpcode(t rtl.Typ) target.Opcode {
	switch t {
	case rtl.I1, rtl.I8:
		return target.LOADBrr
	case rtl.I16:
		return target.LOADHrr
	}
	return target.LoadOpcode(target.ClassForType(t))
}

// storeOpcode returns the store that writes a value of type t
func storeOpcode(t rtl.Typ) target.Opcode {
	switch t {
	case rtl.I1, rtl.I8:
		return target.STOREBrr
	case rtl.I16:
		return target.STOREHrr
	}
	return target.StoreOpcode(target.ClassForType(t))
}
