package rtlload

import (
	"gopkg.in/yaml.v3"

	"github.com/raymyers/mandarin-llc/pkg/rtl"
)

// instr converts one raw instruction. The op field selects the form;
// arithmetic ops are named directly (add, neg, itof, ...).
func (l *loader) instr(ri rawInstr) (rtl.Instruction, error) {
	n := ri.node
	need := func(field string, r valueRef) (rtl.Value, error) {
		if !r.set {
			return 0, l.errorf(n, "%s: missing %s", ri.Op, field)
		}
		return r.v, nil
	}
	// collects the first error so the cases below stay flat
	var err error
	val := func(field string, r valueRef) rtl.Value {
		v, e := need(field, r)
		if err == nil {
			err = e
		}
		return v
	}
	typ := func(s string) rtl.Typ {
		t, e := l.typ(n, s)
		if err == nil {
			err = e
		}
		return t
	}
	cond := func(s string) rtl.Cond {
		c, e := l.cond(n, s)
		if err == nil {
			err = e
		}
		return c
	}

	var in rtl.Instruction
	if op, ok := rtl.ParseBinOp(ri.Op); ok {
		in = rtl.Binop{Op: op, Dest: val("dest", ri.Dest), Type: typ(ri.Type), X: val("x", ri.X), Y: val("y", ri.Y)}
		return in, err
	}
	if op, ok := rtl.ParseUnOp(ri.Op); ok {
		in = rtl.Unop{Op: op, Dest: val("dest", ri.Dest), Type: typ(ri.Type), X: val("x", ri.X)}
		return in, err
	}

	switch ri.Op {
	case "const":
		var v int64
		if e := l.scalar(n, "value", &ri.Value, &v); e != nil {
			return nil, e
		}
		in = rtl.Const{Dest: val("dest", ri.Dest), Type: typ(ri.Type), Value: v}
	case "fconst":
		var v float32
		if e := l.scalar(n, "value", &ri.Value, &v); e != nil {
			return nil, e
		}
		in = rtl.FConst{Dest: val("dest", ri.Dest), Value: v}
	case "load":
		in = rtl.Load{Dest: val("dest", ri.Dest), Type: typ(ri.Type), Addr: val("addr", ri.Addr)}
	case "store":
		in = rtl.Store{Type: typ(ri.Type), Addr: val("addr", ri.Addr), Src: val("src", ri.Src)}
	case "addr":
		if ri.Symbol == "" {
			return nil, l.errorf(n, "addr: missing symbol")
		}
		in = rtl.GlobalAddr{Dest: val("dest", ri.Dest), Symbol: ri.Symbol, External: ri.External}
	case "alloca":
		var size int64
		if e := l.scalar(n, "size", &ri.Size, &size); e != nil {
			return nil, e
		}
		align := ri.Align
		if align == 0 {
			align = 4
		}
		in = rtl.Alloca{Dest: val("dest", ri.Dest), Size: size, Align: align}
	case "dynalloca":
		var size valueRef
		if e := l.scalar(n, "size", &ri.Size, &size); e != nil {
			return nil, e
		}
		in = rtl.DynAlloca{Dest: val("dest", ri.Dest), Size: size.v}
	case "frameaddr":
		in = rtl.FrameAddr{Dest: val("dest", ri.Dest)}
	case "cmp":
		in = rtl.Cmp{Dest: val("dest", ri.Dest), Cond: cond(ri.Cond), Type: typ(ri.Type), X: val("x", ri.X), Y: val("y", ri.Y)}
	case "select":
		in = rtl.Select{
			Dest: val("dest", ri.Dest), Type: typ(ri.Type),
			Cond: cond(ri.Cond), CmpType: typ(ri.CmpType),
			X: val("x", ri.X), Y: val("y", ri.Y),
			IfTrue: val("if_true", ri.IfTrue), IfFalse: val("if_false", ri.IfFalse),
		}
	case "call":
		return l.call(ri)
	case "asm":
		a := rtl.InlineAsm{Asm: ri.Asm}
		for _, o := range ri.Outputs {
			a.Outputs = append(a.Outputs, rtl.AsmOperand{Constraint: o.Constraint, Value: val("value", o.Value), Type: typ(o.Type)})
		}
		for _, o := range ri.Inputs {
			a.Inputs = append(a.Inputs, rtl.AsmOperand{Constraint: o.Constraint, Value: val("value", o.Value), Type: typ(o.Type)})
		}
		in = a
	case "phi":
		p := rtl.Phi{Dest: val("dest", ri.Dest), Type: typ(ri.Type)}
		for _, a := range ri.Incoming {
			p.Incoming = append(p.Incoming, rtl.PhiArg{Block: a.Block, Value: val("value", a.Value)})
		}
		in = p
	case "br":
		in = rtl.Br{Target: ri.Target}
	case "brcc":
		in = rtl.BrCC{Cond: cond(ri.Cond), Type: typ(ri.Type), X: val("x", ri.X), Y: val("y", ri.Y), IfSo: ri.IfSo, IfNot: ri.IfNot}
	case "ret":
		var args []valueRef
		if ri.Args.Kind != 0 {
			if e := ri.Args.Decode(&args); e != nil {
				return nil, l.wrap(n, e)
			}
		}
		r := rtl.Ret{}
		for _, a := range args {
			r.Args = append(r.Args, a.v)
		}
		in = r
	case "":
		return nil, l.errorf(n, "instruction without an op")
	default:
		return nil, l.errorf(n, "unknown op %q", ri.Op)
	}
	return in, err
}

func (l *loader) call(ri rawInstr) (rtl.Instruction, error) {
	n := ri.node
	c := rtl.Call{VarArg: ri.VarArg}
	switch {
	case ri.Callee != "" && ri.CalleeValue.set:
		return nil, l.errorf(n, "call: both callee and callee_value given")
	case ri.Callee != "":
		c.Callee = rtl.CalleeSymbol{Name: ri.Callee, External: ri.External}
	case ri.CalleeValue.set:
		c.Callee = rtl.CalleeValue{Value: ri.CalleeValue.v}
	default:
		return nil, l.errorf(n, "call: missing callee")
	}

	var args []rawArg
	if ri.Args.Kind != 0 {
		if err := ri.Args.Decode(&args); err != nil {
			return nil, l.wrap(n, err)
		}
	}
	for i, ra := range args {
		a, err := l.arg(ra, i)
		if err != nil {
			return nil, err
		}
		c.Args = append(c.Args, a)
	}
	for _, rr := range ri.Results {
		t, err := l.typ(n, rr.Type)
		if err != nil {
			return nil, err
		}
		c.Results = append(c.Results, rtl.Result{Value: rr.Value.v, Type: t})
	}
	return c, nil
}

// scalar decodes a required scalar field
func (l *loader) scalar(n *yaml.Node, field string, v *yaml.Node, out any) error {
	if v.Kind == 0 {
		return l.errorf(n, "missing %s", field)
	}
	if err := v.Decode(out); err != nil {
		return l.wrap(v, err)
	}
	return nil
}
