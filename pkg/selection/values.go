package selection

import (
	"github.com/raymyers/mandarin-llc/pkg/rtl"
)

// collectValues records the type of every defined value and the integer
// constants, then checks that every use names a defined value
func (ctx *SelectionContext) collectValues() error {
	for _, p := range ctx.Fn.Params {
		ctx.types[p.Value] = p.Type
	}
	for _, b := range ctx.Fn.Blocks {
		for _, in := range b.Code {
			for _, d := range defs(in) {
				if _, seen := ctx.types[d.Value]; !seen {
					ctx.types[d.Value] = d.Type
				}
			}
			switch i := in.(type) {
			case rtl.Const:
				ctx.consts[i.Dest] = i.Value
			case rtl.FConst:
				ctx.fconst[i.Dest] = true
			}
		}
	}
	for _, b := range ctx.Fn.Blocks {
		for _, in := range b.Code {
			for _, v := range uses(in) {
				if _, ok := ctx.types[v]; !ok {
					ctx.instr = in
					return ctx.limit("use of undefined value x%d", v)
				}
			}
		}
	}
	return nil
}

// isConst reports whether v is an integer or float constant
func (ctx *SelectionContext) isConst(v rtl.Value) bool {
	_, ok := ctx.consts[v]
	return ok || ctx.fconst[v]
}

// defs returns the values an instruction defines with their types
func defs(in rtl.Instruction) []rtl.Result {
	switch i := in.(type) {
	case rtl.Const:
		return []rtl.Result{{Value: i.Dest, Type: i.Type}}
	case rtl.FConst:
		return []rtl.Result{{Value: i.Dest, Type: rtl.F32}}
	case rtl.Binop:
		return []rtl.Result{{Value: i.Dest, Type: i.Type}}
	case rtl.Unop:
		return []rtl.Result{{Value: i.Dest, Type: i.Type}}
	case rtl.Load:
		return []rtl.Result{{Value: i.Dest, Type: i.Type}}
	case rtl.GlobalAddr:
		return []rtl.Result{{Value: i.Dest, Type: rtl.I32}}
	case rtl.Alloca:
		return []rtl.Result{{Value: i.Dest, Type: rtl.I32}}
	case rtl.DynAlloca:
		return []rtl.Result{{Value: i.Dest, Type: rtl.I32}}
	case rtl.FrameAddr:
		return []rtl.Result{{Value: i.Dest, Type: rtl.I32}}
	case rtl.Cmp:
		return []rtl.Result{{Value: i.Dest, Type: rtl.I32}}
	case rtl.Select:
		return []rtl.Result{{Value: i.Dest, Type: i.Type}}
	case rtl.Call:
		return i.Results
	case rtl.InlineAsm:
		out := make([]rtl.Result, len(i.Outputs))
		for j, o := range i.Outputs {
			out[j] = rtl.Result{Value: o.Value, Type: o.Type}
		}
		return out
	case rtl.Phi:
		return []rtl.Result{{Value: i.Dest, Type: i.Type}}
	}
	return nil
}

// uses returns the values an instruction reads
func uses(in rtl.Instruction) []rtl.Value {
	switch i := in.(type) {
	case rtl.Binop:
		return []rtl.Value{i.X, i.Y}
	case rtl.Unop:
		return []rtl.Value{i.X}
	case rtl.Load:
		return []rtl.Value{i.Addr}
	case rtl.Store:
		return []rtl.Value{i.Addr, i.Src}
	case rtl.DynAlloca:
		return []rtl.Value{i.Size}
	case rtl.Cmp:
		return []rtl.Value{i.X, i.Y}
	case rtl.Select:
		return []rtl.Value{i.X, i.Y, i.IfTrue, i.IfFalse}
	case rtl.Call:
		var vs []rtl.Value
		if cv, ok := i.Callee.(rtl.CalleeValue); ok {
			vs = append(vs, cv.Value)
		}
		for _, a := range i.Args {
			vs = append(vs, a.Value)
		}
		return vs
	case rtl.InlineAsm:
		vs := make([]rtl.Value, len(i.Inputs))
		for j, o := range i.Inputs {
			vs[j] = o.Value
		}
		return vs
	case rtl.Phi:
		vs := make([]rtl.Value, len(i.Incoming))
		for j, a := range i.Incoming {
			vs[j] = a.Value
		}
		return vs
	case rtl.BrCC:
		return []rtl.Value{i.X, i.Y}
	case rtl.Ret:
		return i.Args
	}
	return nil
}
