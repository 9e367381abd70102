package target

import "fmt"

// Opcode identifies a Mandarin machine instruction or a pre-emission pseudo
type Opcode int

const (
	// Pseudo instructions, gone before emission
	PHI Opcode = iota
	COPY
	ADJCALLSTACKDOWN
	ADJCALLSTACKUP
	SELECT_CC

	INLINEASM
	NOP

	// Moves
	MOVrr
	MOV2rr
	MOV4rr
	MOVri
	LOWri

	// Integer arithmetic
	ADDrr
	ADDri
	SUBrr
	SUBri
	MULrr
	DIVrr
	DIVUrr
	MODrr
	MODUrr
	ANDrr
	ANDri
	ORrr
	XORrr
	SHLrr
	SHRrr
	SHRUrr
	NEGr
	NOTr
	SEXT8r
	SEXT16r

	// Float arithmetic
	FADDrr
	FSUBrr
	FMULrr
	FDIVrr
	FNEGr
	ITOFr
	FTOIr

	// Memory
	LOADrr
	LOADBrr
	LOADHrr
	LOAD2rr
	LOAD4rr
	STORErr
	STOREBrr
	STOREHrr
	STORE2rr
	STORE4rr
	LOADLri
	STORELri

	// Compare
	ICMPrr
	ICMPri
	FCMPrr

	// Control flow
	JMPi
	JCCi
	JMPr
	JCCr
	CALLi
	CALLr
	RET

	NumOpcodes
)

// OperandKind is the declared kind of one operand position
type OperandKind int

const (
	KReg   OperandKind = iota // register
	KRegFI                    // register or frame index (address base)
	KImm                      // immediate
	KBlock                    // basic block
	KSym                      // global, external or constant-pool symbol
	KCond                     // condition code
	KAsm                      // inline assembly template
)

// InstrFlags describe an opcode's control and memory behaviour
type InstrFlags uint32

const (
	IsPseudo InstrFlags = 1 << iota
	IsBranch
	IsConditional
	IsIndirect
	IsTerminator
	IsBarrier
	IsReturn
	IsCall
	MayLoad
	MayStore
	SetsFlags
	ReadsFlags
	IsMove
)

// Desc is the descriptor of one opcode
type Desc struct {
	Name     string
	Format   string // $N substitutes operand N, [$N] prints a memory operand
	NumDefs  int    // leading operands written by the instruction
	Shape    []OperandKind
	Variadic bool // extra operands (implicit registers, phi pairs) may follow
	Flags    InstrFlags
}

// Has reports whether every flag in f is set
func (d *Desc) Has(f InstrFlags) bool { return d.Flags&f == f }

var (
	shapeNone  = []OperandKind{}
	shapeR     = []OperandKind{KReg}
	shapeRR    = []OperandKind{KReg, KReg}
	shapeRRR   = []OperandKind{KReg, KReg, KReg}
	shapeRRI   = []OperandKind{KReg, KReg, KImm}
	shapeRI    = []OperandKind{KReg, KImm}
	shapeLoad  = []OperandKind{KReg, KRegFI}
	shapeStore = []OperandKind{KRegFI, KReg}
)

var descs = [NumOpcodes]Desc{
	PHI:              {Name: "PHI", NumDefs: 1, Shape: shapeR, Variadic: true, Flags: IsPseudo},
	COPY:             {Name: "COPY", NumDefs: 1, Shape: shapeRR, Flags: IsPseudo | IsMove},
	ADJCALLSTACKDOWN: {Name: "ADJCALLSTACKDOWN", Shape: []OperandKind{KImm}, Flags: IsPseudo},
	ADJCALLSTACKUP:   {Name: "ADJCALLSTACKUP", Shape: []OperandKind{KImm, KImm}, Flags: IsPseudo},
	SELECT_CC:        {Name: "SELECT_CC", NumDefs: 1, Shape: []OperandKind{KReg, KReg, KReg, KCond}, Flags: IsPseudo | ReadsFlags},
	INLINEASM:        {Name: "INLINEASM", Shape: []OperandKind{KAsm}, Variadic: true},
	NOP:              {Name: "NOP", Format: "nop", Shape: shapeNone},

	MOVrr:  {Name: "MOVrr", Format: "mov\t$0, $1", NumDefs: 1, Shape: []OperandKind{KReg, KRegFI}, Flags: IsMove},
	MOV2rr: {Name: "MOV2rr", Format: "mov2\t$0, $1", NumDefs: 1, Shape: shapeRR, Flags: IsMove},
	MOV4rr: {Name: "MOV4rr", Format: "mov4\t$0, $1", NumDefs: 1, Shape: shapeRR, Flags: IsMove},
	MOVri:  {Name: "MOVri", Format: "movi\t$0, $1", NumDefs: 1, Shape: shapeRI},
	LOWri:  {Name: "LOWri", Format: "movi\t$0, $1", NumDefs: 1, Shape: []OperandKind{KReg, KSym}},

	ADDrr:   {Name: "ADDrr", Format: "add\t$0, $1, $2", NumDefs: 1, Shape: shapeRRR},
	ADDri:   {Name: "ADDri", Format: "add\t$0, $1, $2", NumDefs: 1, Shape: shapeRRI},
	SUBrr:   {Name: "SUBrr", Format: "sub\t$0, $1, $2", NumDefs: 1, Shape: shapeRRR},
	SUBri:   {Name: "SUBri", Format: "sub\t$0, $1, $2", NumDefs: 1, Shape: shapeRRI},
	MULrr:   {Name: "MULrr", Format: "mul\t$0, $1, $2", NumDefs: 1, Shape: shapeRRR},
	DIVrr:   {Name: "DIVrr", Format: "div\t$0, $1, $2", NumDefs: 1, Shape: shapeRRR},
	DIVUrr:  {Name: "DIVUrr", Format: "divu\t$0, $1, $2", NumDefs: 1, Shape: shapeRRR},
	MODrr:   {Name: "MODrr", Format: "mod\t$0, $1, $2", NumDefs: 1, Shape: shapeRRR},
	MODUrr:  {Name: "MODUrr", Format: "modu\t$0, $1, $2", NumDefs: 1, Shape: shapeRRR},
	ANDrr:   {Name: "ANDrr", Format: "and\t$0, $1, $2", NumDefs: 1, Shape: shapeRRR},
	ANDri:   {Name: "ANDri", Format: "and\t$0, $1, $2", NumDefs: 1, Shape: shapeRRI},
	ORrr:    {Name: "ORrr", Format: "or\t$0, $1, $2", NumDefs: 1, Shape: shapeRRR},
	XORrr:   {Name: "XORrr", Format: "xor\t$0, $1, $2", NumDefs: 1, Shape: shapeRRR},
	SHLrr:   {Name: "SHLrr", Format: "shl\t$0, $1, $2", NumDefs: 1, Shape: shapeRRR},
	SHRrr:   {Name: "SHRrr", Format: "shr\t$0, $1, $2", NumDefs: 1, Shape: shapeRRR},
	SHRUrr:  {Name: "SHRUrr", Format: "shru\t$0, $1, $2", NumDefs: 1, Shape: shapeRRR},
	NEGr:    {Name: "NEGr", Format: "neg\t$0, $1", NumDefs: 1, Shape: shapeRR},
	NOTr:    {Name: "NOTr", Format: "not\t$0, $1", NumDefs: 1, Shape: shapeRR},
	SEXT8r:  {Name: "SEXT8r", Format: "sext8\t$0, $1", NumDefs: 1, Shape: shapeRR},
	SEXT16r: {Name: "SEXT16r", Format: "sext16\t$0, $1", NumDefs: 1, Shape: shapeRR},

	FADDrr: {Name: "FADDrr", Format: "fadd\t$0, $1, $2", NumDefs: 1, Shape: shapeRRR},
	FSUBrr: {Name: "FSUBrr", Format: "fsub\t$0, $1, $2", NumDefs: 1, Shape: shapeRRR},
	FMULrr: {Name: "FMULrr", Format: "fmul\t$0, $1, $2", NumDefs: 1, Shape: shapeRRR},
	FDIVrr: {Name: "FDIVrr", Format: "fdiv\t$0, $1, $2", NumDefs: 1, Shape: shapeRRR},
	FNEGr:  {Name: "FNEGr", Format: "fneg\t$0, $1", NumDefs: 1, Shape: shapeRR},
	ITOFr:  {Name: "ITOFr", Format: "itof\t$0, $1", NumDefs: 1, Shape: shapeRR},
	FTOIr:  {Name: "FTOIr", Format: "ftoi\t$0, $1", NumDefs: 1, Shape: shapeRR},

	LOADrr:   {Name: "LOADrr", Format: "load\t$0, [$1]", NumDefs: 1, Shape: shapeLoad, Flags: MayLoad},
	LOADBrr:  {Name: "LOADBrr", Format: "loadb\t$0, [$1]", NumDefs: 1, Shape: shapeLoad, Flags: MayLoad},
	LOADHrr:  {Name: "LOADHrr", Format: "loadh\t$0, [$1]", NumDefs: 1, Shape: shapeLoad, Flags: MayLoad},
	LOAD2rr:  {Name: "LOAD2rr", Format: "load2\t$0, [$1]", NumDefs: 1, Shape: shapeLoad, Flags: MayLoad},
	LOAD4rr:  {Name: "LOAD4rr", Format: "load4\t$0, [$1]", NumDefs: 1, Shape: shapeLoad, Flags: MayLoad},
	STORErr:  {Name: "STORErr", Format: "store\t[$0], $1", Shape: shapeStore, Flags: MayStore},
	STOREBrr: {Name: "STOREBrr", Format: "storeb\t[$0], $1", Shape: shapeStore, Flags: MayStore},
	STOREHrr: {Name: "STOREHrr", Format: "storeh\t[$0], $1", Shape: shapeStore, Flags: MayStore},
	STORE2rr: {Name: "STORE2rr", Format: "store2\t[$0], $1", Shape: shapeStore, Flags: MayStore},
	STORE4rr: {Name: "STORE4rr", Format: "store4\t[$0], $1", Shape: shapeStore, Flags: MayStore},
	LOADLri:  {Name: "LOADLri", Format: "loadl\t$0, [$1], $2", NumDefs: 1, Shape: shapeRRI, Flags: MayLoad},
	STORELri: {Name: "STORELri", Format: "storel\t$0, [$1], $2", Shape: shapeRRI, Flags: MayStore},

	ICMPrr: {Name: "ICMPrr", Format: "cmp\t$0, $1", Shape: shapeRR, Flags: SetsFlags},
	ICMPri: {Name: "ICMPri", Format: "cmp\t$0, $1", Shape: shapeRI, Flags: SetsFlags},
	FCMPrr: {Name: "FCMPrr", Format: "fcmp\t$0, $1", Shape: shapeRR, Flags: SetsFlags},

	JMPi:  {Name: "JMPi", Format: "jmp\t$0", Shape: []OperandKind{KBlock}, Flags: IsBranch | IsTerminator | IsBarrier},
	JCCi:  {Name: "JCCi", Format: "j$1\t$0", Shape: []OperandKind{KBlock, KCond}, Flags: IsBranch | IsConditional | IsTerminator | ReadsFlags},
	JMPr:  {Name: "JMPr", Format: "jmp\t$0", Shape: shapeR, Flags: IsBranch | IsIndirect | IsTerminator | IsBarrier},
	JCCr:  {Name: "JCCr", Format: "j$1\t$0", Shape: []OperandKind{KReg, KCond}, Flags: IsBranch | IsIndirect | IsConditional | IsTerminator | ReadsFlags},
	CALLi: {Name: "CALLi", Format: "call\t$0", Shape: []OperandKind{KSym}, Variadic: true, Flags: IsCall},
	CALLr: {Name: "CALLr", Format: "call\t$0", Shape: shapeR, Variadic: true, Flags: IsCall},
	RET:   {Name: "RET", Format: "ret", Shape: shapeNone, Variadic: true, Flags: IsReturn | IsTerminator | IsBarrier},
}

// Get returns the descriptor of op
func (op Opcode) Get() *Desc {
	if op < 0 || op >= NumOpcodes {
		panic(fmt.Sprintf("target: unknown opcode %d", int(op)))
	}
	return &descs[op]
}

func (op Opcode) String() string { return op.Get().Name }

// Has reports whether op's descriptor carries every flag in f
func (op Opcode) Has(f InstrFlags) bool { return op.Get().Has(f) }

// CopyOpcode returns the register-to-register move for a class
func CopyOpcode(c RegClass) Opcode {
	switch c {
	case Generic:
		return MOVrr
	case Double:
		return MOV2rr
	case Quad:
		return MOV4rr
	}
	panic(fmt.Sprintf("target: no move for %v", c))
}

// LoadOpcode returns the full-width load for a class
func LoadOpcode(c RegClass) Opcode {
	switch c {
	case Generic:
		return LOADrr
	case Double:
		return LOAD2rr
	case Quad:
		return LOAD4rr
	}
	panic(fmt.Sprintf("target: no load for %v", c))
}

// StoreOpcode returns the full-width store for a class
func StoreOpcode(c RegClass) Opcode {
	switch c {
	case Generic:
		return STORErr
	case Double:
		return STORE2rr
	case Quad:
		return STORE4rr
	}
	panic(fmt.Sprintf("target: no store for %v", c))
}
