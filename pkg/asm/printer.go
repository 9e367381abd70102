// Package asm renders allocated, frame-lowered machine functions as Mandarin
// assembly text.
package asm

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/raymyers/mandarin-llc/pkg/diag"
	"github.com/raymyers/mandarin-llc/pkg/mach"
	"github.com/raymyers/mandarin-llc/pkg/target"
)

// Directives and prefixes of the Mandarin assembler
const (
	CommentString   = "// "
	PrivatePrefix   = "pg_"
	GlobalDirective = "\t// global\t"
	DataHeader      = ".DATA"
	InlineAsmStart  = "// inline start"
	InlineAsmEnd    = "// inline end"
)

// ErrNotLowered reports an instruction or operand with no assembly form;
// earlier stages should have replaced it
var ErrNotLowered = errors.New("not lowered")

// Printer outputs Mandarin assembly
type Printer struct {
	w io.Writer
}

// NewPrinter creates a new assembly printer
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// PrintFunction writes the constant pool of f followed by its code. Nothing
// is written when f cannot be printed.
func (p *Printer) PrintFunction(f *mach.Function) (err error) {
	defer diag.Recover(&err)

	var sb strings.Builder
	printConstantPool(&sb, f)

	sb.WriteString(GlobalDirective + f.Name + "\n")
	sb.WriteString(f.Name + ":\n")

	labeled := referencedBlocks(f)
	for _, b := range f.Blocks {
		if labeled[b] {
			sb.WriteString(BlockLabel(f, b) + ":\n")
		}
		for _, in := range b.Instrs {
			line, err := FormatInstr(f, in)
			if err != nil {
				return err
			}
			sb.WriteString(line)
		}
	}
	sb.WriteString("\n")

	_, err = io.WriteString(p.w, sb.String())
	return err
}

// BlockLabel returns the private label of b
func BlockLabel(f *mach.Function, b *mach.Block) string {
	return fmt.Sprintf("%sBB%d_%d", PrivatePrefix, f.Number, b.ID)
}

// ConstPoolLabel returns the private label of pool entry i
func ConstPoolLabel(f *mach.Function, i int) string {
	return fmt.Sprintf("%sCPI%d_%d", PrivatePrefix, f.Number, i)
}

// referencedBlocks finds blocks some branch names; only they need a label
func referencedBlocks(f *mach.Function) map[*mach.Block]bool {
	out := make(map[*mach.Block]bool)
	f.Instrs(func(_ *mach.Block, in *mach.Instr) {
		for _, op := range in.Operands {
			if m, ok := op.(mach.MBB); ok {
				out[m.Block] = true
			}
		}
	})
	return out
}

// printConstantPool emits the pool entries back to back, padding with zero
// bytes wherever an entry's alignment is not met
func printConstantPool(sb *strings.Builder, f *mach.Function) {
	if len(f.ConstPool) == 0 {
		return
	}
	sb.WriteString(DataHeader + "\n")

	var offset int64
	for i, e := range f.ConstPool {
		align := max(e.Align, 1)
		next := (offset + align - 1) &^ (align - 1)
		if pad := next - offset; pad > 0 {
			fmt.Fprintf(sb, "\tstring\tbyte[%d] 0\n", pad)
		}
		offset = next + e.Size

		sb.WriteString("\t" + ConstPoolLabel(f, i))
		writeData(sb, e.Value, e.Size)
	}
}

// writeData emits value with the widest directive that fits; eight-byte
// values are split into two words, most significant first
func writeData(sb *strings.Builder, value uint64, size int64) {
	switch size {
	case 1:
		fmt.Fprintf(sb, "\tbyte\t%d\n", uint8(value))
	case 2:
		fmt.Fprintf(sb, "\tword\t%d\n", uint16(value))
	case 4:
		fmt.Fprintf(sb, "\tdword\t%d\n", uint32(value))
	case 8:
		fmt.Fprintf(sb, "\tdword\t%d\n", uint32(value>>32))
		fmt.Fprintf(sb, "\tdword\t%d\n", uint32(value))
	default:
		diag.Invariant("constant pool entry of %d bytes", size)
	}
}

// FormatInstr renders one instruction as a tab-indented line
func FormatInstr(f *mach.Function, in *mach.Instr) (string, error) {
	if in.Op == target.INLINEASM {
		text, err := expandInlineAsm(f, in)
		if err != nil {
			return "", err
		}
		return InlineAsmStart + "\n\t" + text + "\n" + InlineAsmEnd + "\n", nil
	}

	format := in.Desc().Format
	if format == "" {
		return "", fmt.Errorf("%s in %s: %w", in.Op, f.Name, ErrNotLowered)
	}

	var sb strings.Builder
	sb.WriteByte('\t')
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '$' {
			sb.WriteByte(c)
			continue
		}
		j := i + 1
		for j < len(format) && format[j] >= '0' && format[j] <= '9' {
			j++
		}
		n, _ := strconv.Atoi(format[i+1 : j])
		s, err := Operand(f, in.Operands[n])
		if err != nil {
			return "", fmt.Errorf("%s in %s: %w", in.Op, f.Name, err)
		}
		sb.WriteString(s)
		i = j - 1
	}
	sb.WriteByte('\n')
	return sb.String(), nil
}

// Operand renders one operand: lower-case registers, signed decimal
// immediates and symbols wrapped in their relocation tag
func Operand(f *mach.Function, op mach.Operand) (string, error) {
	switch o := op.(type) {
	case mach.Register:
		if o.Reg.IsVirtual() {
			return "", fmt.Errorf("virtual register %v: %w", o.Reg, ErrNotLowered)
		}
		return strings.ToLower(o.Reg.String()), nil
	case mach.Imm:
		return strconv.FormatInt(int64(int32(o.Val)), 10), nil
	case mach.MBB:
		return BlockLabel(f, o.Block), nil
	case mach.Global:
		return o.Flag.Wrap(o.Name), nil
	case mach.External:
		return o.Flag.Wrap(o.Name), nil
	case mach.ConstPool:
		return o.Flag.Wrap(ConstPoolLabel(f, o.Index)), nil
	case mach.Cond:
		return o.CC.String(), nil
	case mach.FrameIndex:
		return "", fmt.Errorf("frame index %d: %w", o.Index, ErrNotLowered)
	}
	return "", fmt.Errorf("operand %T: %w", op, ErrNotLowered)
}

// expandInlineAsm substitutes $N and ${N:r} in the template with the asm
// operands, outputs first; $$ is a literal dollar
func expandInlineAsm(f *mach.Function, in *mach.Instr) (string, error) {
	text := in.Operands[0].(mach.AsmString).Text
	args := in.Operands[1:]

	var sb strings.Builder
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '$' || i+1 == len(text) {
			sb.WriteByte(c)
			continue
		}

		var ref, modifier string
		switch next := text[i+1]; {
		case next == '$':
			sb.WriteByte('$')
			i++
			continue
		case next == '{':
			end := strings.IndexByte(text[i:], '}')
			if end < 0 {
				return "", diag.Limitf(f.Name, "INLINEASM", "unterminated operand reference in %q", text)
			}
			ref, modifier, _ = strings.Cut(text[i+2:i+end], ":")
			i += end
		case next >= '0' && next <= '9':
			j := i + 1
			for j < len(text) && text[j] >= '0' && text[j] <= '9' {
				j++
			}
			ref = text[i+1 : j]
			i = j - 1
		default:
			sb.WriteByte(c)
			continue
		}

		if modifier != "" && modifier != "r" {
			return "", diag.Limitf(f.Name, "INLINEASM", "unknown operand modifier %q", modifier)
		}
		n, err := strconv.Atoi(ref)
		if err != nil || n < 0 || n >= len(args) {
			return "", diag.Limitf(f.Name, "INLINEASM", "operand reference $%s out of range", ref)
		}
		s, err := Operand(f, args[n])
		if err != nil {
			return "", err
		}
		sb.WriteString(s)
	}
	return sb.String(), nil
}
