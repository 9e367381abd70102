package mach

import (
	"fmt"

	"github.com/raymyers/mandarin-llc/pkg/target"
)

// Verify checks every instruction against its opcode's operand shape and
// that terminators only appear at block ends.
func Verify(f *Function) error {
	for _, b := range f.Blocks {
		seenTerm := false
		for i, in := range b.Instrs {
			if err := verifyShape(in); err != nil {
				return fmt.Errorf("%s: bb.%d[%d] %s: %w", f.Name, b.ID, i, in, err)
			}
			if in.IsTerminator() {
				seenTerm = true
			} else if seenTerm {
				return fmt.Errorf("%s: bb.%d[%d] %s: instruction after terminator", f.Name, b.ID, i, in)
			}
			if in.Op == target.PHI && i > 0 && b.Instrs[i-1].Op != target.PHI {
				return fmt.Errorf("%s: bb.%d[%d]: PHI after non-PHI", f.Name, b.ID, i)
			}
		}
	}
	return nil
}

func verifyShape(in *Instr) error {
	d := in.Desc()
	if len(in.Operands) < len(d.Shape) {
		return fmt.Errorf("has %d operands, %s needs %d", len(in.Operands), d.Name, len(d.Shape))
	}
	if len(in.Operands) > len(d.Shape) && !d.Variadic {
		return fmt.Errorf("has %d operands, %s takes %d", len(in.Operands), d.Name, len(d.Shape))
	}
	for i, k := range d.Shape {
		if !Matches(in.Operands[i], k) {
			return fmt.Errorf("operand %d is %T", i, in.Operands[i])
		}
	}
	return nil
}

// VerifyNoFrameIndices reports any FrameIndex operand left in f
func VerifyNoFrameIndices(f *Function) error {
	var err error
	f.Instrs(func(b *Block, in *Instr) {
		for _, op := range in.Operands {
			if fi, ok := op.(FrameIndex); ok && err == nil {
				err = fmt.Errorf("%s: bb.%d: %s still references fi#%d", f.Name, b.ID, in, fi.Index)
			}
		}
	})
	return err
}
