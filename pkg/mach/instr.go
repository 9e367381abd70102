package mach

import (
	"strings"

	"github.com/raymyers/mandarin-llc/pkg/target"
)

// Instr is one machine instruction
type Instr struct {
	Op       target.Opcode
	Operands []Operand
}

// NewInstr builds an instruction, marking the opcode's leading def operands
func NewInstr(op target.Opcode, ops ...Operand) *Instr {
	in := &Instr{Op: op, Operands: ops}
	for i := 0; i < op.Get().NumDefs && i < len(ops); i++ {
		if r, ok := ops[i].(Register); ok {
			r.Def = true
			in.Operands[i] = r
		}
	}
	return in
}

// Desc returns the opcode descriptor
func (in *Instr) Desc() *target.Desc { return in.Op.Get() }

func (in *Instr) IsTerminator() bool { return in.Op.Has(target.IsTerminator) }
func (in *Instr) IsBranch() bool     { return in.Op.Has(target.IsBranch) }
func (in *Instr) IsReturn() bool     { return in.Op.Has(target.IsReturn) }
func (in *Instr) IsCall() bool       { return in.Op.Has(target.IsCall) }

// IsUnconditionalBranch reports a direct or indirect jump without condition
func (in *Instr) IsUnconditionalBranch() bool {
	return in.IsBranch() && !in.Op.Has(target.IsConditional)
}

// IsConditionalBranch reports a conditional jump
func (in *Instr) IsConditionalBranch() bool {
	return in.Op.Has(target.IsBranch | target.IsConditional)
}

// IsIndirectBranch reports a jump through a register
func (in *Instr) IsIndirectBranch() bool {
	return in.Op.Has(target.IsBranch | target.IsIndirect)
}

// Target returns the block operand of a direct branch
func (in *Instr) Target() *Block {
	if m, ok := in.Operands[0].(MBB); ok {
		return m.Block
	}
	return nil
}

// CondCode returns the condition operand of a conditional branch or select
func (in *Instr) CondCode() target.CondCode {
	for _, op := range in.Operands {
		if c, ok := op.(Cond); ok {
			return c.CC
		}
	}
	return target.CCInvalid
}

// Defs returns the registers written by the instruction
func (in *Instr) Defs() []target.Reg {
	var regs []target.Reg
	for _, op := range in.Operands {
		if r, ok := op.(Register); ok && r.Def {
			regs = append(regs, r.Reg)
		}
	}
	return regs
}

// Uses returns the registers read by the instruction
func (in *Instr) Uses() []target.Reg {
	var regs []target.Reg
	for _, op := range in.Operands {
		if r, ok := op.(Register); ok && !r.Def {
			regs = append(regs, r.Reg)
		}
	}
	return regs
}

// ReplaceReg rewrites every operand naming from to name to
func (in *Instr) ReplaceReg(from, to target.Reg) {
	for i, op := range in.Operands {
		if r, ok := op.(Register); ok && r.Reg == from {
			r.Reg = to
			in.Operands[i] = r
		}
	}
}

// String renders the instruction for debug dumps
func (in *Instr) String() string {
	var sb strings.Builder
	d := in.Desc()
	ops := in.Operands
	if d.NumDefs > 0 && len(ops) >= d.NumDefs {
		defs := make([]string, d.NumDefs)
		for i := range defs {
			defs[i] = OperandString(ops[i])
		}
		sb.WriteString(strings.Join(defs, ", "))
		sb.WriteString(" = ")
		ops = ops[d.NumDefs:]
	}
	sb.WriteString(d.Name)
	for i, op := range ops {
		if i == 0 {
			sb.WriteString(" ")
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(OperandString(op))
	}
	return sb.String()
}
