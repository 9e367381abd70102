package rtl

import (
	"fmt"
	"io"
	"strings"
)

// Printer outputs RTL in a readable text format
type Printer struct {
	w io.Writer
}

// NewPrinter creates a new RTL printer
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// PrintProgram prints every function, separated by blank lines
func (p *Printer) PrintProgram(prog *Program) {
	for i, fn := range prog.Functions {
		p.PrintFunction(fn)
		if i < len(prog.Functions)-1 {
			fmt.Fprintln(p.w)
		}
	}
}

// PrintFunction prints a function header followed by its blocks
func (p *Printer) PrintFunction(fn *Function) {
	params := make([]string, len(fn.Params))
	for i, prm := range fn.Params {
		params[i] = fmt.Sprintf("x%d: %s%s", prm.Value, prm.Type, flagSuffix(prm.Flags))
	}
	if fn.VarArg {
		params = append(params, "...")
	}
	fmt.Fprintf(p.w, "%s(%s)", fn.Name, strings.Join(params, ", "))
	if len(fn.Results) > 0 {
		res := make([]string, len(fn.Results))
		for i, t := range fn.Results {
			res[i] = t.String()
		}
		fmt.Fprintf(p.w, " -> %s", strings.Join(res, ", "))
	}
	if fn.CallConv != CCC {
		fmt.Fprintf(p.w, " %s", fn.CallConv)
	}
	fmt.Fprintln(p.w, " {")
	for _, b := range fn.Blocks {
		fmt.Fprintf(p.w, "%s:\n", b.Name)
		for _, instr := range b.Code {
			fmt.Fprint(p.w, "  ")
			p.printInstruction(instr)
			fmt.Fprintln(p.w)
		}
	}
	fmt.Fprintln(p.w, "}")
}

// InstrString renders one instruction the way PrintFunction does
func InstrString(instr Instruction) string {
	var sb strings.Builder
	NewPrinter(&sb).printInstruction(instr)
	return sb.String()
}

func flagSuffix(f ArgFlags) string {
	var sb strings.Builder
	if f.SExt {
		sb.WriteString(" signext")
	}
	if f.ZExt {
		sb.WriteString(" zeroext")
	}
	if f.ByVal {
		fmt.Fprintf(&sb, " byval(%d, %d)", f.ByValSize, f.ByValAlign)
	}
	return sb.String()
}

func (p *Printer) printInstruction(instr Instruction) {
	switch i := instr.(type) {
	case Const:
		fmt.Fprintf(p.w, "x%d = %s %d", i.Dest, i.Type, i.Value)
	case FConst:
		fmt.Fprintf(p.w, "x%d = f32 %g", i.Dest, i.Value)
	case Binop:
		fmt.Fprintf(p.w, "x%d = %s %s x%d, x%d", i.Dest, i.Op, i.Type, i.X, i.Y)
	case Unop:
		fmt.Fprintf(p.w, "x%d = %s %s x%d", i.Dest, i.Op, i.Type, i.X)
	case Load:
		fmt.Fprintf(p.w, "x%d = load %s [x%d]", i.Dest, i.Type, i.Addr)
	case Store:
		fmt.Fprintf(p.w, "store %s [x%d], x%d", i.Type, i.Addr, i.Src)
	case GlobalAddr:
		kind := "global"
		if i.External {
			kind = "extern"
		}
		fmt.Fprintf(p.w, "x%d = addr %s \"%s\"", i.Dest, kind, i.Symbol)
	case Alloca:
		fmt.Fprintf(p.w, "x%d = alloca %d, align %d", i.Dest, i.Size, i.Align)
	case DynAlloca:
		fmt.Fprintf(p.w, "x%d = alloca x%d", i.Dest, i.Size)
	case FrameAddr:
		fmt.Fprintf(p.w, "x%d = frameaddr", i.Dest)
	case Cmp:
		fmt.Fprintf(p.w, "x%d = cmp %s %s x%d, x%d", i.Dest, i.Cond, i.Type, i.X, i.Y)
	case Select:
		fmt.Fprintf(p.w, "x%d = select %s %s x%d, x%d ? x%d : x%d",
			i.Dest, i.Cond, i.CmpType, i.X, i.Y, i.IfTrue, i.IfFalse)
	case Call:
		p.printCall(i)
	case InlineAsm:
		fmt.Fprintf(p.w, "asm %q", i.Asm)
		for _, o := range i.Outputs {
			fmt.Fprintf(p.w, " out(%q x%d)", o.Constraint, o.Value)
		}
		for _, o := range i.Inputs {
			fmt.Fprintf(p.w, " in(%q x%d)", o.Constraint, o.Value)
		}
	case Phi:
		args := make([]string, len(i.Incoming))
		for j, in := range i.Incoming {
			args[j] = fmt.Sprintf("[x%d, %s]", in.Value, in.Block)
		}
		fmt.Fprintf(p.w, "x%d = phi %s %s", i.Dest, i.Type, strings.Join(args, ", "))
	case Br:
		fmt.Fprintf(p.w, "goto %s", i.Target)
	case BrCC:
		fmt.Fprintf(p.w, "if %s %s x%d, x%d goto %s else goto %s",
			i.Cond, i.Type, i.X, i.Y, i.IfSo, i.IfNot)
	case Ret:
		if len(i.Args) == 0 {
			fmt.Fprint(p.w, "return")
			return
		}
		args := make([]string, len(i.Args))
		for j, a := range i.Args {
			args[j] = fmt.Sprintf("x%d", a)
		}
		fmt.Fprintf(p.w, "return %s", strings.Join(args, ", "))
	default:
		fmt.Fprint(p.w, "???")
	}
}

func (p *Printer) printCall(i Call) {
	if len(i.Results) > 0 {
		res := make([]string, len(i.Results))
		for j, r := range i.Results {
			res[j] = fmt.Sprintf("x%d", r.Value)
		}
		fmt.Fprintf(p.w, "%s = ", strings.Join(res, ", "))
	}
	fmt.Fprint(p.w, "call ")
	switch c := i.Callee.(type) {
	case CalleeSymbol:
		fmt.Fprintf(p.w, "\"%s\"", c.Name)
	case CalleeValue:
		fmt.Fprintf(p.w, "x%d", c.Value)
	}
	args := make([]string, len(i.Args))
	for j, a := range i.Args {
		args[j] = fmt.Sprintf("x%d: %s%s", a.Value, a.Type, flagSuffix(a.Flags))
	}
	if i.VarArg {
		args = append(args, "...")
	}
	fmt.Fprintf(p.w, "(%s)", strings.Join(args, ", "))
}
