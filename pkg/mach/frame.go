package mach

import "fmt"

// StackObject is a storage location whose address is fixed by frame lowering.
// Instructions refer to it only through FrameIndex operands.
type StackObject struct {
	Size      int64
	Align     int64
	Offset    int64 // from the frame bottom (entry SP); valid once Fixed or laid out
	Fixed     bool  // offset chosen at creation (incoming stack arguments)
	SpillSlot bool
	VarSized  bool
}

// FrameInfo is the per-function stack-object table and frame summary
type FrameInfo struct {
	Objects []StackObject

	StackSize          int64 // bytes the prologue adds to SP
	MaxCallFrameSize   int64 // largest outgoing argument area of any call
	AdjustsStack       bool  // the function makes calls
	HasVarSizedObjects bool
	FrameAddressTaken  bool
	IncomingArgSize    int64 // bytes of stack-passed formal arguments

	laidOut bool
}

func (fi *FrameInfo) add(o StackObject) int {
	if fi.laidOut && !o.Fixed {
		panic("mach: stack object created after frame layout")
	}
	fi.Objects = append(fi.Objects, o)
	return len(fi.Objects) - 1
}

// CreateFixedObject adds an object at a known offset from the frame bottom
func (fi *FrameInfo) CreateFixedObject(size, offset int64) int {
	return fi.add(StackObject{Size: size, Align: 4, Offset: offset, Fixed: true})
}

// CreateStackObject adds a local whose offset frame layout will choose
func (fi *FrameInfo) CreateStackObject(size, align int64) int {
	return fi.add(StackObject{Size: size, Align: align})
}

// CreateSpillSlot adds a register spill slot
func (fi *FrameInfo) CreateSpillSlot(size, align int64) int {
	return fi.add(StackObject{Size: size, Align: align, SpillSlot: true})
}

// CreateVariableSizedObject records a run-time sized allocation
func (fi *FrameInfo) CreateVariableSizedObject(align int64) int {
	fi.HasVarSizedObjects = true
	return fi.add(StackObject{Align: align, VarSized: true})
}

// Object returns stack object i
func (fi *FrameInfo) Object(i int) *StackObject {
	if i < 0 || i >= len(fi.Objects) {
		panic(fmt.Sprintf("mach: no stack object %d", i))
	}
	return &fi.Objects[i]
}

// MarkLaidOut records that offsets are final; a second call panics
func (fi *FrameInfo) MarkLaidOut() {
	if fi.laidOut {
		panic("mach: frame laid out twice")
	}
	fi.laidOut = true
}

// LaidOut reports whether offsets are final
func (fi *FrameInfo) LaidOut() bool { return fi.laidOut }
