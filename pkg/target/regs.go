// Package target describes the Mandarin machine: registers and register
// classes, condition codes, relocation tags and the opcode descriptor table.
//
// Mandarin is a 32-bit big-endian machine whose stack grows upward. It has 32
// scalar registers, 16 two-word registers and 8 four-word registers. Every
// register id belongs to exactly one class; the wide registers physically
// overlay consecutive scalar registers, which the allocator sees through Units.
package target

import (
	"fmt"

	"github.com/raymyers/mandarin-llc/pkg/rtl"
	"github.com/samber/lo"
)

// Reg is a physical register id or, above VirtualBase, a virtual register
type Reg uint32

// NoReg is the zero register id
const NoReg Reg = 0

const (
	NumScalarRegs = 32
	NumDoubleRegs = 16
	NumQuadRegs   = 8

	firstR = 1
	firstD = firstR + NumScalarRegs
	firstQ = firstD + NumDoubleRegs

	// NumPhysRegs bounds the physical register ids
	NumPhysRegs = firstQ + NumQuadRegs

	// VirtualBase is the first virtual register id
	VirtualBase Reg = 1 << 16
)

// Named registers
const (
	Scratch Reg = firstR + 29 // frame address temporary, always reserved
	SP      Reg = firstR + 30 // stack pointer, always reserved
	FP      Reg = firstR + 31 // frame pointer, reserved when the function has one
)

// NumArgSlots is the number of word-sized argument/return register slots
const NumArgSlots = 4

// R returns scalar register n
func R(n int) Reg {
	if n < 0 || n >= NumScalarRegs {
		panic(fmt.Sprintf("target: no scalar register %d", n))
	}
	return Reg(firstR + n)
}

// D returns two-word register n
func D(n int) Reg {
	if n < 0 || n >= NumDoubleRegs {
		panic(fmt.Sprintf("target: no double register %d", n))
	}
	return Reg(firstD + n)
}

// Q returns four-word register n
func Q(n int) Reg {
	if n < 0 || n >= NumQuadRegs {
		panic(fmt.Sprintf("target: no quad register %d", n))
	}
	return Reg(firstQ + n)
}

// VirtReg returns the i-th virtual register
func VirtReg(i int) Reg { return VirtualBase + Reg(i) }

// IsVirtual reports whether r is a virtual register
func (r Reg) IsVirtual() bool { return r >= VirtualBase }

// IsPhysical reports whether r is a physical register
func (r Reg) IsPhysical() bool { return r != NoReg && r < NumPhysRegs }

// VirtIndex returns the index of a virtual register
func (r Reg) VirtIndex() int { return int(r - VirtualBase) }

// String returns the lower-case assembly name, or %vN for virtual registers
func (r Reg) String() string {
	switch {
	case r == NoReg:
		return "noreg"
	case r.IsVirtual():
		return fmt.Sprintf("%%v%d", r.VirtIndex())
	case r < firstD:
		return fmt.Sprintf("r%d", r-firstR)
	case r < firstQ:
		return fmt.Sprintf("d%d", r-firstD)
	case r < NumPhysRegs:
		return fmt.Sprintf("q%d", r-firstQ)
	}
	return fmt.Sprintf("reg(%d)", uint32(r))
}

// Units returns the scalar registers a physical register overlays
func (r Reg) Units() []Reg {
	switch ClassOf(r) {
	case Generic:
		return []Reg{r}
	case Double:
		k := int(r - firstD)
		return []Reg{R(2 * k), R(2*k + 1)}
	case Quad:
		k := int(r - firstQ)
		return []Reg{R(4 * k), R(4*k + 1), R(4*k + 2), R(4*k + 3)}
	}
	panic(fmt.Sprintf("target: units of %v", r))
}

// Overlaps reports whether two physical registers share a unit
func Overlaps(a, b Reg) bool {
	for _, u := range a.Units() {
		if lo.Contains(b.Units(), u) {
			return true
		}
	}
	return false
}

// RegClass is a set of interchangeable registers for one value width
type RegClass int

const (
	NoClass RegClass = iota
	Generic          // one word: i1..i32, f32
	Double           // two words: v2i32, v2f32
	Quad             // four words: v4i32, v4f32
)

func (c RegClass) String() string {
	switch c {
	case Generic:
		return "GenericRegs"
	case Double:
		return "DoubleRegs"
	case Quad:
		return "QuadRegs"
	}
	return "NoClass"
}

// Words returns the class width in machine words
func (c RegClass) Words() int {
	switch c {
	case Generic:
		return 1
	case Double:
		return 2
	case Quad:
		return 4
	}
	panic(fmt.Sprintf("target: width of %v", c))
}

// SpillSize returns the stack slot size in bytes for the class
func (c RegClass) SpillSize() int64 { return int64(c.Words()) * 4 }

// Members returns the registers of the class in allocation order
func (c RegClass) Members() []Reg {
	var first, n int
	switch c {
	case Generic:
		first, n = firstR, NumScalarRegs
	case Double:
		first, n = firstD, NumDoubleRegs
	case Quad:
		first, n = firstQ, NumQuadRegs
	default:
		panic(fmt.Sprintf("target: members of %v", c))
	}
	regs := make([]Reg, n)
	for i := range regs {
		regs[i] = Reg(first + i)
	}
	return regs
}

// Contains reports whether r is a member of the class
func (c RegClass) Contains(r Reg) bool {
	return r.IsPhysical() && ClassOf(r) == c
}

// ClassOf returns the class of a physical register
func ClassOf(r Reg) RegClass {
	switch {
	case r >= firstR && r < firstD:
		return Generic
	case r >= firstD && r < firstQ:
		return Double
	case r >= firstQ && r < NumPhysRegs:
		return Quad
	}
	return NoClass
}

// ClassForType returns the register class that holds values of type t
func ClassForType(t rtl.Typ) RegClass {
	switch t {
	case rtl.I1, rtl.I8, rtl.I16, rtl.I32, rtl.F32:
		return Generic
	case rtl.V2I32, rtl.V2F32:
		return Double
	case rtl.V4I32, rtl.V4F32:
		return Quad
	}
	panic(fmt.Sprintf("target: no register class for %v", t))
}

// ArgReg returns the register that covers argument slot `slot` for a piece of
// class c. Wide registers only exist at slots aligned to their width.
func ArgReg(c RegClass, slot int) (Reg, bool) {
	if slot < 0 || slot+c.Words() > NumArgSlots || slot%c.Words() != 0 {
		return NoReg, false
	}
	switch c {
	case Generic:
		return R(slot), true
	case Double:
		return D(slot / 2), true
	case Quad:
		return Q(slot / 4), true
	}
	return NoReg, false
}

// RegisterInfo answers register policy questions for one function
type RegisterInfo struct{}

// Reserved returns the scalar registers the allocator must never touch.
// Scratch is held back so frame lowering always has a register for the
// address of a stack object, whatever the pressure at that point.
func (RegisterInfo) Reserved(hasFP bool) []Reg {
	if hasFP {
		return []Reg{Scratch, SP, FP}
	}
	return []Reg{Scratch, SP}
}

// IsReserved reports whether any unit of r is reserved
func (ri RegisterInfo) IsReserved(r Reg, hasFP bool) bool {
	reserved := ri.Reserved(hasFP)
	return lo.SomeBy(r.Units(), func(u Reg) bool { return lo.Contains(reserved, u) })
}

// Allocatable returns the members of c that do not overlay a reserved register
func (ri RegisterInfo) Allocatable(c RegClass, hasFP bool) []Reg {
	return lo.Filter(c.Members(), func(r Reg, _ int) bool { return !ri.IsReserved(r, hasFP) })
}

// PointerClass returns the class that holds addresses
func (RegisterInfo) PointerClass() RegClass { return Generic }

// ConstraintClass maps an inline-asm constraint to a register class
func (RegisterInfo) ConstraintClass(constraint string) (RegClass, error) {
	if constraint == "r" {
		return Generic, nil
	}
	return NoClass, fmt.Errorf("unsupported inline asm constraint %q", constraint)
}
