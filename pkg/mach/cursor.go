package mach

import (
	"slices"

	"github.com/raymyers/mandarin-llc/pkg/target"
)

// Cursor is an insertion point inside a block. Insert places instructions
// before the current position and keeps the cursor on the same instruction,
// so a sequence of inserts comes out in program order.
type Cursor struct {
	Block *Block
	Pos   int
}

// At returns a cursor on instruction pos of b
func At(b *Block, pos int) *Cursor { return &Cursor{Block: b, Pos: pos} }

// AtEnd returns a cursor past the last instruction of b
func AtEnd(b *Block) *Cursor { return &Cursor{Block: b, Pos: len(b.Instrs)} }

// BeforeTerminators returns a cursor on b's first terminator
func BeforeTerminators(b *Block) *Cursor { return &Cursor{Block: b, Pos: b.FirstTerminator()} }

// Done reports whether the cursor is past the last instruction
func (c *Cursor) Done() bool { return c.Pos >= len(c.Block.Instrs) }

// Current returns the instruction under the cursor, or nil at the end
func (c *Cursor) Current() *Instr {
	if c.Done() {
		return nil
	}
	return c.Block.Instrs[c.Pos]
}

// Next advances past the current instruction
func (c *Cursor) Next() { c.Pos++ }

// Insert places in before the current instruction
func (c *Cursor) Insert(in *Instr) *Instr {
	c.Block.Instrs = slices.Insert(c.Block.Instrs, c.Pos, in)
	c.Pos++
	return in
}

// Build creates an instruction and inserts it
func (c *Cursor) Build(op target.Opcode, ops ...Operand) *Instr {
	return c.Insert(NewInstr(op, ops...))
}

// Erase removes the current instruction; the cursor moves onto the next one
func (c *Cursor) Erase() {
	c.Block.Instrs = slices.Delete(c.Block.Instrs, c.Pos, c.Pos+1)
}

// SpliceRest moves every instruction from the cursor onward to the end of dst
func (c *Cursor) SpliceRest(dst *Block) {
	dst.Instrs = append(dst.Instrs, c.Block.Instrs[c.Pos:]...)
	c.Block.Instrs = slices.Clip(c.Block.Instrs[:c.Pos])
}
