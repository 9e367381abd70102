package mach

import (
	"slices"

	"github.com/raymyers/mandarin-llc/pkg/target"
)

// Block is a machine basic block; it owns its instruction list
type Block struct {
	ID      int    // layout number, used for labels
	Name    string // source block name, for dumps
	Instrs  []*Instr
	Preds   []*Block
	Succs   []*Block
	LiveIns []target.Reg
	Parent  *Function
}

// AddSuccessor adds a CFG edge b -> s
func (b *Block) AddSuccessor(s *Block) {
	if b.IsSuccessor(s) {
		return
	}
	b.Succs = append(b.Succs, s)
	s.Preds = append(s.Preds, b)
}

// RemoveSuccessor drops the CFG edge b -> s
func (b *Block) RemoveSuccessor(s *Block) {
	b.Succs = slices.DeleteFunc(b.Succs, func(x *Block) bool { return x == s })
	s.Preds = slices.DeleteFunc(s.Preds, func(x *Block) bool { return x == b })
}

// ReplaceSuccessor moves the edge b -> old onto b -> repl
func (b *Block) ReplaceSuccessor(old, repl *Block) {
	b.RemoveSuccessor(old)
	b.AddSuccessor(repl)
}

// IsSuccessor reports whether s is a CFG successor of b
func (b *Block) IsSuccessor(s *Block) bool {
	return slices.Contains(b.Succs, s)
}

// TransferSuccessorsAndUpdatePHIs moves every successor edge of from onto b
// and rewrites PHI operands in those successors that named from.
func (b *Block) TransferSuccessorsAndUpdatePHIs(from *Block) {
	succs := slices.Clone(from.Succs)
	for _, s := range succs {
		from.RemoveSuccessor(s)
		b.AddSuccessor(s)
		for _, in := range s.Instrs {
			if in.Op != target.PHI {
				break
			}
			for i, op := range in.Operands {
				if m, ok := op.(MBB); ok && m.Block == from {
					in.Operands[i] = MBB{Block: b}
				}
			}
		}
	}
}

// AddLiveIn records a physical register live on entry
func (b *Block) AddLiveIn(r target.Reg) {
	if !slices.Contains(b.LiveIns, r) {
		b.LiveIns = append(b.LiveIns, r)
	}
}

// FirstTerminator returns the index of the first terminator, or len(Instrs)
func (b *Block) FirstTerminator() int {
	i := len(b.Instrs)
	for i > 0 && b.Instrs[i-1].IsTerminator() {
		i--
	}
	return i
}

// Last returns the final instruction, or nil for an empty block
func (b *Block) Last() *Instr {
	if len(b.Instrs) == 0 {
		return nil
	}
	return b.Instrs[len(b.Instrs)-1]
}

// LayoutSuccessor returns the block placed right after b, or nil
func (b *Block) LayoutSuccessor() *Block {
	f := b.Parent
	i := f.Index(b)
	if i < 0 || i+1 >= len(f.Blocks) {
		return nil
	}
	return f.Blocks[i+1]
}

// IsLayoutSuccessor reports whether s is placed right after b
func (b *Block) IsLayoutSuccessor(s *Block) bool {
	return s != nil && b.LayoutSuccessor() == s
}

// ConstPoolEntry is one constant emitted in the function's data section
type ConstPoolEntry struct {
	Value uint64
	Size  int64
	Align int64
}

// Function is a machine function. It owns its blocks in layout order, its
// stack-object table and its virtual register namespace.
type Function struct {
	Name      string
	Number    int // ordinal within the module, used for private labels
	Blocks    []*Block
	Frame     *FrameInfo
	RegInfo   *RegInfo
	ConstPool []ConstPoolEntry
	HasFP     bool // decided once frame lowering starts
}

// NewFunction creates an empty machine function
func NewFunction(name string, number int) *Function {
	return &Function{
		Name:    name,
		Number:  number,
		Frame:   &FrameInfo{},
		RegInfo: &RegInfo{},
	}
}

// Entry returns the entry block
func (f *Function) Entry() *Block { return f.Blocks[0] }

// CreateBlock makes a block owned by f without placing it in the layout
func (f *Function) CreateBlock(name string) *Block {
	return &Block{Name: name, Parent: f}
}

// AppendBlock places b at the end of the layout
func (f *Function) AppendBlock(b *Block) {
	b.Parent = f
	f.Blocks = append(f.Blocks, b)
	f.Renumber()
}

// InsertBlockAfter places b right after pos in the layout
func (f *Function) InsertBlockAfter(pos, b *Block) {
	b.Parent = f
	i := f.Index(pos)
	f.Blocks = slices.Insert(f.Blocks, i+1, b)
	f.Renumber()
}

// RemoveBlock deletes b from the layout and detaches its edges
func (f *Function) RemoveBlock(b *Block) {
	for _, s := range slices.Clone(b.Succs) {
		b.RemoveSuccessor(s)
	}
	for _, p := range slices.Clone(b.Preds) {
		p.RemoveSuccessor(b)
	}
	f.Blocks = slices.DeleteFunc(f.Blocks, func(x *Block) bool { return x == b })
	f.Renumber()
}

// Index returns the layout position of b, or -1
func (f *Function) Index(b *Block) int {
	return slices.Index(f.Blocks, b)
}

// Renumber assigns block IDs in layout order
func (f *Function) Renumber() {
	for i, b := range f.Blocks {
		b.ID = i
	}
}

// AddConstant appends a pool entry, reusing an identical one
func (f *Function) AddConstant(e ConstPoolEntry) int {
	if i := slices.Index(f.ConstPool, e); i >= 0 {
		return i
	}
	f.ConstPool = append(f.ConstPool, e)
	return len(f.ConstPool) - 1
}

// NumInstrs counts the instructions of every block
func (f *Function) NumInstrs() int {
	n := 0
	for _, b := range f.Blocks {
		n += len(b.Instrs)
	}
	return n
}

// Instrs calls fn for every instruction in layout order
func (f *Function) Instrs(fn func(b *Block, in *Instr)) {
	for _, b := range f.Blocks {
		for _, in := range b.Instrs {
			fn(b, in)
		}
	}
}
