// Package rtl defines the architecture-neutral IR handed to the Mandarin back end.
// A function is a CFG of named basic blocks. Each block holds an ordered list of
// typed instructions over an unbounded supply of virtual values and ends in
// exactly one terminator.
package rtl

import "fmt"

// Value is a virtual value (non-negative integer, infinite supply)
type Value int

// Typ is the machine-independent type of a value
type Typ int

const (
	I1 Typ = iota
	I8
	I16
	I32
	F32
	V2I32
	V2F32
	V4I32
	V4F32
)

var typNames = [...]string{
	I1:    "i1",
	I8:    "i8",
	I16:   "i16",
	I32:   "i32",
	F32:   "f32",
	V2I32: "v2i32",
	V2F32: "v2f32",
	V4I32: "v4i32",
	V4F32: "v4f32",
}

func (t Typ) String() string {
	if t >= 0 && int(t) < len(typNames) {
		return typNames[t]
	}
	return fmt.Sprintf("typ(%d)", int(t))
}

// ParseTyp maps a type name back to its Typ
func ParseTyp(s string) (Typ, bool) {
	for i, n := range typNames {
		if n == s {
			return Typ(i), true
		}
	}
	return 0, false
}

// Size returns the store size in bytes
func (t Typ) Size() int64 {
	switch t {
	case I1, I8:
		return 1
	case I16:
		return 2
	case I32, F32:
		return 4
	case V2I32, V2F32:
		return 8
	case V4I32, V4F32:
		return 16
	}
	panic(fmt.Sprintf("rtl: size of %v", t))
}

// Words returns how many 32-bit machine words a value of this type occupies
func (t Typ) Words() int {
	if t.Size() <= 4 {
		return 1
	}
	return int(t.Size() / 4)
}

// IsFloat reports whether the type (or its element type) is floating point
func (t Typ) IsFloat() bool {
	return t == F32 || t == V2F32 || t == V4F32
}

// IsVector reports whether the type is a 2- or 4-element vector
func (t Typ) IsVector() bool {
	return t >= V2I32
}

// IsNarrowInt reports whether the type is an integer narrower than a word
func (t Typ) IsNarrowInt() bool {
	return t == I1 || t == I8 || t == I16
}

// Cond is an abstract comparison condition. The same condition is read as
// unsigned for integer operands and as unordered-or for float operands,
// e.g. Cugt is "unsigned greater" on i32 and "unordered or greater" on f32.
type Cond int

const (
	Ceq Cond = iota
	Cne
	Cgt
	Clt
	Cge
	Cle
	Cugt
	Cult
	Cuge
	Cule
	Coeq
	Cone
	Cogt
	Colt
	Coge
	Cole
	Cueq
	Cune
	Cord
	Cuno
)

var condNames = [...]string{
	Ceq: "eq", Cne: "ne", Cgt: "gt", Clt: "lt", Cge: "ge", Cle: "le",
	Cugt: "ugt", Cult: "ult", Cuge: "uge", Cule: "ule",
	Coeq: "oeq", Cone: "one", Cogt: "ogt", Colt: "olt", Coge: "oge", Cole: "ole",
	Cueq: "ueq", Cune: "une", Cord: "ord", Cuno: "uno",
}

func (c Cond) String() string {
	if c >= 0 && int(c) < len(condNames) {
		return condNames[c]
	}
	return fmt.Sprintf("cond(%d)", int(c))
}

// ParseCond maps a condition name back to its Cond
func ParseCond(s string) (Cond, bool) {
	for i, n := range condNames {
		if n == s {
			return Cond(i), true
		}
	}
	return 0, false
}

// IsEquality reports whether the condition only tests (in)equality
func (c Cond) IsEquality() bool {
	switch c {
	case Ceq, Cne, Coeq, Cone, Cueq, Cune:
		return true
	}
	return false
}

// CallConv identifies a calling convention
type CallConv int

const (
	CCC CallConv = iota
	Fast
)

func (cc CallConv) String() string {
	switch cc {
	case CCC:
		return "ccc"
	case Fast:
		return "fastcc"
	}
	return fmt.Sprintf("cc(%d)", int(cc))
}

// ArgFlags carries the ABI attributes of one argument piece
type ArgFlags struct {
	SExt       bool  // sign-extend to the location width
	ZExt       bool  // zero-extend to the location width
	ByVal      bool  // aggregate passed by value; the piece is its address
	ByValSize  int64 // aggregate size in bytes
	ByValAlign int64 // aggregate alignment in bytes
}

// Param is one formal argument piece
type Param struct {
	Value     Value
	Type      Typ
	Flags     ArgFlags
	OrigIndex int // source-level argument this piece belongs to
}

// CallArg is one actual argument piece at a call site
type CallArg struct {
	Value     Value
	Type      Typ
	Flags     ArgFlags
	OrigIndex int
}

// Result is one value produced by a call
type Result struct {
	Value Value
	Type  Typ
}

// --- Instructions ---

// Instruction is implemented by every RTL instruction
type Instruction interface {
	implInstruction()
}

// Terminator is implemented by the instructions that end a block
type Terminator interface {
	Instruction
	Successors() []string
}

// BinOp enumerates two-operand arithmetic
type BinOp int

const (
	Add BinOp = iota
	Sub
	Mul
	Div
	Divu
	Mod
	Modu
	And
	Or
	Xor
	Shl
	Shr
	Shru
)

var binOpNames = [...]string{
	Add: "add", Sub: "sub", Mul: "mul", Div: "div", Divu: "divu",
	Mod: "mod", Modu: "modu", And: "and", Or: "or", Xor: "xor",
	Shl: "shl", Shr: "shr", Shru: "shru",
}

func (op BinOp) String() string { return binOpNames[op] }

// ParseBinOp maps an operator name back to its BinOp
func ParseBinOp(s string) (BinOp, bool) {
	for i, n := range binOpNames {
		if n == s {
			return BinOp(i), true
		}
	}
	return 0, false
}

// UnOp enumerates one-operand operations
type UnOp int

const (
	Move UnOp = iota
	Neg
	Not
	Sext8
	Sext16
	Zext8
	Zext16
	IntToFloat
	FloatToInt
)

var unOpNames = [...]string{
	Move: "move", Neg: "neg", Not: "not",
	Sext8: "sext8", Sext16: "sext16", Zext8: "zext8", Zext16: "zext16",
	IntToFloat: "itof", FloatToInt: "ftoi",
}

func (op UnOp) String() string { return unOpNames[op] }

// ParseUnOp maps an operator name back to its UnOp
func ParseUnOp(s string) (UnOp, bool) {
	for i, n := range unOpNames {
		if n == s {
			return UnOp(i), true
		}
	}
	return 0, false
}

// Const defines an integer constant
type Const struct {
	Dest  Value
	Type  Typ
	Value int64
}

// FConst defines a float32 constant
type FConst struct {
	Dest  Value
	Value float32
}

// Binop computes Dest = X op Y
type Binop struct {
	Op   BinOp
	Dest Value
	Type Typ
	X, Y Value
}

// Unop computes Dest = op X
type Unop struct {
	Op   UnOp
	Dest Value
	Type Typ
	X    Value
}

// Load reads a value of Type from the address in Addr
type Load struct {
	Dest Value
	Type Typ
	Addr Value
}

// Store writes Src (of Type) to the address in Addr
type Store struct {
	Type Typ
	Addr Value
	Src  Value
}

// GlobalAddr takes the address of a global or external symbol
type GlobalAddr struct {
	Dest     Value
	Symbol   string
	External bool
}

// Alloca reserves a fixed-size local stack object and yields its address
type Alloca struct {
	Dest  Value
	Size  int64
	Align int64
}

// DynAlloca reserves a run-time sized stack area and yields its address
type DynAlloca struct {
	Dest Value
	Size Value
}

// FrameAddr yields the address of the current frame
type FrameAddr struct {
	Dest Value
}

// Cmp sets Dest (i32) to 1 if X cond Y holds, else 0
type Cmp struct {
	Dest Value
	Cond Cond
	Type Typ // type of X and Y
	X, Y Value
}

// Select sets Dest to IfTrue if X cond Y holds, else IfFalse
type Select struct {
	Dest    Value
	Type    Typ // type of Dest
	Cond    Cond
	CmpType Typ // type of X and Y
	X, Y    Value
	IfTrue  Value
	IfFalse Value
}

// Callee is either a symbol or a value holding a function address
type Callee interface {
	implCallee()
}

// CalleeSymbol calls a named function
type CalleeSymbol struct {
	Name     string
	External bool
}

// CalleeValue calls through a function pointer
type CalleeValue struct {
	Value Value
}

func (CalleeSymbol) implCallee() {}
func (CalleeValue) implCallee()  {}

// Call invokes a function
type Call struct {
	Callee  Callee
	Args    []CallArg
	Results []Result
	VarArg  bool
}

// AsmOperand binds a value to an inline assembly constraint
type AsmOperand struct {
	Constraint string
	Value      Value
	Type       Typ
}

// InlineAsm splices an assembly template; $N refers to Outputs then Inputs
type InlineAsm struct {
	Asm     string
	Outputs []AsmOperand
	Inputs  []AsmOperand
}

// PhiArg is one incoming edge of a Phi
type PhiArg struct {
	Block string
	Value Value
}

// Phi merges values at a join point
type Phi struct {
	Dest     Value
	Type     Typ
	Incoming []PhiArg
}

// Br jumps unconditionally
type Br struct {
	Target string
}

// BrCC branches to IfSo if X cond Y holds, else IfNot
type BrCC struct {
	Cond  Cond
	Type  Typ
	X, Y  Value
	IfSo  string
	IfNot string
}

// Ret returns Args in the positions of Function.Results
type Ret struct {
	Args []Value
}

func (Const) implInstruction()      {}
func (FConst) implInstruction()     {}
func (Binop) implInstruction()      {}
func (Unop) implInstruction()       {}
func (Load) implInstruction()       {}
func (Store) implInstruction()      {}
func (GlobalAddr) implInstruction() {}
func (Alloca) implInstruction()     {}
func (DynAlloca) implInstruction()  {}
func (FrameAddr) implInstruction()  {}
func (Cmp) implInstruction()        {}
func (Select) implInstruction()     {}
func (Call) implInstruction()       {}
func (InlineAsm) implInstruction()  {}
func (Phi) implInstruction()        {}
func (Br) implInstruction()         {}
func (BrCC) implInstruction()       {}
func (Ret) implInstruction()        {}

func (t Br) Successors() []string   { return []string{t.Target} }
func (t BrCC) Successors() []string { return []string{t.IfSo, t.IfNot} }
func (t Ret) Successors() []string  { return nil }

// --- Function and Program ---

// Block is a named basic block; the last instruction is its terminator
type Block struct {
	Name string
	Code []Instruction
}

// Terminator returns the block's terminator, or nil if it has none
func (b *Block) Terminator() Terminator {
	if len(b.Code) == 0 {
		return nil
	}
	t, _ := b.Code[len(b.Code)-1].(Terminator)
	return t
}

// Function is an RTL function. Blocks[0] is the entry block.
type Function struct {
	Name     string
	Params   []Param
	Results  []Typ
	VarArg   bool
	CallConv CallConv
	Blocks   []*Block
}

// Block looks up a block by name
func (f *Function) Block(name string) *Block {
	for _, b := range f.Blocks {
		if b.Name == name {
			return b
		}
	}
	return nil
}

// Program is a list of functions compiled in order
type Program struct {
	Functions []*Function
}
