package mach

import (
	"fmt"

	"github.com/raymyers/mandarin-llc/pkg/target"
)

// Operand is one machine operand. Each tag has its own payload; code that
// inspects operands switches over the concrete types and panics on anything
// it does not know.
type Operand interface {
	implOperand()
}

// Register is a physical or virtual register operand
type Register struct {
	Reg      target.Reg
	Def      bool // written by the instruction
	Implicit bool // not printed; call argument or return value
}

// Imm is a signed immediate
type Imm struct {
	Val int64
}

// MBB references a basic block
type MBB struct {
	Block *Block
}

// Global references a symbol defined in this module
type Global struct {
	Name string
	Flag target.TargetFlag
}

// External references a symbol defined elsewhere
type External struct {
	Name string
	Flag target.TargetFlag
}

// ConstPool references an entry of the function's constant pool
type ConstPool struct {
	Index int
	Flag  target.TargetFlag
}

// FrameIndex references a stack object whose address is not yet known
type FrameIndex struct {
	Index int
}

// Cond is a condition-code operand
type Cond struct {
	CC target.CondCode
}

// AsmString is an inline assembly template
type AsmString struct {
	Text string
}

func (Register) implOperand()   {}
func (Imm) implOperand()        {}
func (MBB) implOperand()        {}
func (Global) implOperand()     {}
func (External) implOperand()   {}
func (ConstPool) implOperand()  {}
func (FrameIndex) implOperand() {}
func (Cond) implOperand()       {}
func (AsmString) implOperand()  {}

// Use returns a register use operand
func Use(r target.Reg) Register { return Register{Reg: r} }

// Def returns a register def operand
func Def(r target.Reg) Register { return Register{Reg: r, Def: true} }

// ImplicitUse returns an implicit register use operand
func ImplicitUse(r target.Reg) Register { return Register{Reg: r, Implicit: true} }

// ImplicitDef returns an implicit register def operand
func ImplicitDef(r target.Reg) Register { return Register{Reg: r, Def: true, Implicit: true} }

// OperandString renders an operand for debug dumps
func OperandString(op Operand) string {
	switch o := op.(type) {
	case Register:
		s := o.Reg.String()
		if o.Implicit {
			if o.Def {
				return "implicit-def " + s
			}
			return "implicit " + s
		}
		return s
	case Imm:
		return fmt.Sprintf("%d", o.Val)
	case MBB:
		return fmt.Sprintf("bb.%d", o.Block.ID)
	case Global:
		return o.Flag.Wrap("@" + o.Name)
	case External:
		return o.Flag.Wrap("$" + o.Name)
	case ConstPool:
		return o.Flag.Wrap(fmt.Sprintf("cp#%d", o.Index))
	case FrameIndex:
		return fmt.Sprintf("fi#%d", o.Index)
	case Cond:
		return o.CC.String()
	case AsmString:
		return fmt.Sprintf("%q", o.Text)
	}
	panic(fmt.Sprintf("mach: unknown operand %T", op))
}

// Matches reports whether op satisfies the declared operand kind k
func Matches(op Operand, k target.OperandKind) bool {
	switch o := op.(type) {
	case Register:
		return k == target.KReg || k == target.KRegFI
	case FrameIndex:
		return k == target.KRegFI
	case Imm:
		return k == target.KImm
	case MBB:
		return k == target.KBlock && o.Block != nil
	case Global, External, ConstPool:
		return k == target.KSym
	case Cond:
		return k == target.KCond
	case AsmString:
		return k == target.KAsm
	}
	panic(fmt.Sprintf("mach: unknown operand %T", op))
}
