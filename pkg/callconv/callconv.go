// Package callconv assigns argument and return-value pieces to Mandarin
// locations: the four word-sized argument registers R0..R3 or stack offsets
// in the caller's outgoing argument area.
//
// Arguments are walked in order. An argument whose pieces all fit in the
// remaining register pool goes to registers; the first one that does not fit
// sends itself and every later argument to the stack. Variadic signatures put
// everything on the stack. Results must fit in the register pool.
package callconv

import (
	"fmt"

	"github.com/raymyers/mandarin-llc/pkg/rtl"
	"github.com/raymyers/mandarin-llc/pkg/target"
	"github.com/samber/lo"
)

const (
	// StackAlignment is the alignment of the stack and of every call frame
	StackAlignment = 4

	// SlotSize is the size and alignment of one stack argument word
	SlotSize = 4

	// DefaultMaxByValSize is the largest by-value aggregate that can be
	// addressed through a 16-bit offset
	DefaultMaxByValSize = 1 << 16
)

// LocKind says where a piece lives
type LocKind int

const (
	LocReg   LocKind = iota // argument register
	LocMem                  // stack slot at Offset
	LocBlock                // by-value aggregate copied to Offset
)

// LocInfo says how a value is widened to its location type
type LocInfo int

const (
	Full LocInfo = iota
	SExt
	ZExt
	AExt
)

func (li LocInfo) String() string {
	switch li {
	case SExt:
		return "sext"
	case ZExt:
		return "zext"
	case AExt:
		return "aext"
	}
	return "full"
}

// ArgLocation is the assignment of one piece
type ArgLocation struct {
	ValNo   int // position of the piece in the analyzed list
	ValType rtl.Typ
	LocType rtl.Typ
	Info    LocInfo
	Kind    LocKind
	Reg     target.Reg // LocReg
	Offset  int64      // LocMem, LocBlock: byte offset in the argument area
	Size    int64      // LocBlock: bytes reserved
	Align   int64      // LocBlock: alignment of the copy
}

func (l ArgLocation) IsReg() bool   { return l.Kind == LocReg }
func (l ArgLocation) IsMem() bool   { return l.Kind == LocMem }
func (l ArgLocation) IsBlock() bool { return l.Kind == LocBlock }

func (l ArgLocation) String() string {
	switch l.Kind {
	case LocReg:
		return fmt.Sprintf("%s:%s", l.Reg, l.LocType)
	case LocMem:
		return fmt.Sprintf("stack@%d:%s", l.Offset, l.LocType)
	case LocBlock:
		return fmt.Sprintf("block@%d[%d]", l.Offset, l.Size)
	}
	return "?"
}

// Piece is one argument piece as seen by the analyzer
type Piece struct {
	Type      rtl.Typ
	Flags     rtl.ArgFlags
	OrigIndex int
}

// State is the running allocation state of one analysis
type State struct {
	VarArg      bool
	slotsUsed   int
	stackOffset int64
	useStack    bool
}

// allocateStack reserves size bytes aligned to align and returns the offset
func (s *State) allocateStack(size, align int64) int64 {
	s.stackOffset = alignTo(s.stackOffset, align)
	off := s.stackOffset
	s.stackOffset += size
	return off
}

// StackSize returns the outgoing argument area size, a multiple of StackAlignment
func (s *State) StackSize() int64 {
	return alignTo(s.stackOffset, StackAlignment)
}

// SlotsUsed returns how many argument register slots were taken
func (s *State) SlotsUsed() int { return s.slotsUsed }

// allocateReg takes the first free register that can hold class c, skipping
// slots a wide register cannot start at.
func (s *State) allocateReg(c target.RegClass) (target.Reg, bool) {
	slot := alignTo(int64(s.slotsUsed), int64(c.Words()))
	r, ok := target.ArgReg(c, int(slot))
	if !ok {
		return target.NoReg, false
	}
	// the pool shrinks by words, not by one per piece: d1 overlays r2 and
	// r3, so a 2-wide piece uses up both scalar slots
	s.slotsUsed = int(slot) + c.Words()
	return r, true
}

// fits reports whether every piece of one argument still gets a register
func (s *State) fits(pieces []Piece) bool {
	slot := s.slotsUsed
	for _, p := range pieces {
		c := target.ClassForType(locType(p.Type))
		slot = int(alignTo(int64(slot), int64(c.Words())))
		if _, ok := target.ArgReg(c, slot); !ok {
			return false
		}
		slot += c.Words()
	}
	return true
}

func alignTo(v, align int64) int64 {
	if align <= 1 {
		return v
	}
	return (v + align - 1) / align * align
}

// locType promotes narrow integers to a full word
func locType(t rtl.Typ) rtl.Typ {
	if t.IsNarrowInt() {
		return rtl.I32
	}
	return t
}

func locInfo(p Piece) LocInfo {
	if !p.Type.IsNarrowInt() {
		return Full
	}
	switch {
	case p.Flags.SExt:
		return SExt
	case p.Flags.ZExt:
		return ZExt
	}
	return AExt
}

// Convention is the Mandarin calling convention
type Convention struct {
	MaxByValSize int64
}

// New returns the calling convention; maxByVal <= 0 selects the default limit
func New(maxByVal int64) *Convention {
	if maxByVal <= 0 {
		maxByVal = DefaultMaxByValSize
	}
	return &Convention{MaxByValSize: maxByVal}
}

// CountParts groups consecutive pieces that share an origin index and
// returns the number of pieces of each argument
func CountParts(pieces []Piece) []int {
	var parts []int
	for i, p := range pieces {
		if i > 0 && pieces[i-1].OrigIndex == p.OrigIndex {
			parts[len(parts)-1]++
			continue
		}
		parts = append(parts, 1)
	}
	return parts
}

// AnalyzeArguments assigns every piece a location
func (c *Convention) AnalyzeArguments(pieces []Piece, varArg bool) ([]ArgLocation, *State, error) {
	st := &State{VarArg: varArg}
	locs := make([]ArgLocation, 0, len(pieces))

	if varArg {
		for i, p := range pieces {
			loc, err := c.assignStack(st, i, p)
			if err != nil {
				return nil, nil, err
			}
			locs = append(locs, loc)
		}
		return locs, st, nil
	}

	valNo := 0
	for _, n := range CountParts(pieces) {
		arg := pieces[valNo : valNo+n]
		if arg[0].Flags.ByVal {
			for j := range arg {
				loc, err := c.assignByVal(st, valNo+j, arg[j])
				if err != nil {
					return nil, nil, err
				}
				locs = append(locs, loc)
			}
			valNo += n
			continue
		}

		if !st.useStack && st.fits(arg) {
			for _, p := range arg {
				lt := locType(p.Type)
				r, _ := st.allocateReg(target.ClassForType(lt))
				locs = append(locs, ArgLocation{
					ValNo: valNo, ValType: p.Type, LocType: lt, Info: locInfo(p),
					Kind: LocReg, Reg: r,
				})
				valNo++
			}
			continue
		}

		st.useStack = true
		for _, p := range arg {
			loc, err := c.assignStack(st, valNo, p)
			if err != nil {
				return nil, nil, err
			}
			locs = append(locs, loc)
			valNo++
		}
	}
	return locs, st, nil
}

func (c *Convention) assignStack(st *State, valNo int, p Piece) (ArgLocation, error) {
	if p.Flags.ByVal {
		return c.assignByVal(st, valNo, p)
	}
	lt := locType(p.Type)
	off := st.allocateStack(lt.Size(), SlotSize)
	return ArgLocation{
		ValNo: valNo, ValType: p.Type, LocType: lt, Info: locInfo(p),
		Kind: LocMem, Offset: off,
	}, nil
}

func (c *Convention) assignByVal(st *State, valNo int, p Piece) (ArgLocation, error) {
	size := p.Flags.ByValSize
	if size > c.MaxByValSize {
		return ArgLocation{}, fmt.Errorf("by-value aggregate of %d bytes exceeds the %d byte limit", size, c.MaxByValSize)
	}
	if size < 0 {
		return ArgLocation{}, fmt.Errorf("by-value aggregate has negative size %d", size)
	}
	align := max(p.Flags.ByValAlign, SlotSize)
	size = alignTo(size, SlotSize)
	off := st.allocateStack(size, align)
	return ArgLocation{
		ValNo: valNo, ValType: p.Type, LocType: p.Type, Info: Full,
		Kind: LocBlock, Offset: off, Size: size, Align: align,
	}, nil
}

// AnalyzeReturn assigns result types to the register pool; results never
// spill to the stack
func (c *Convention) AnalyzeReturn(types []rtl.Typ) ([]ArgLocation, error) {
	st := &State{}
	locs := make([]ArgLocation, 0, len(types))
	for i, t := range types {
		lt := locType(t)
		r, ok := st.allocateReg(target.ClassForType(lt))
		if !ok {
			return nil, fmt.Errorf("return value %d (%s) does not fit in %d return registers", i, t, target.NumArgSlots)
		}
		locs = append(locs, ArgLocation{ValNo: i, ValType: t, LocType: lt, Info: Full, Kind: LocReg, Reg: r})
	}
	return locs, nil
}

// AnalyzeFormals analyzes a function's formal argument pieces
func (c *Convention) AnalyzeFormals(params []rtl.Param, varArg bool) ([]ArgLocation, *State, error) {
	pieces := lo.Map(params, func(p rtl.Param, _ int) Piece {
		return Piece{Type: p.Type, Flags: p.Flags, OrigIndex: p.OrigIndex}
	})
	return c.AnalyzeArguments(pieces, varArg)
}

// AnalyzeCallOperands analyzes the actual argument pieces of a call
func (c *Convention) AnalyzeCallOperands(args []rtl.CallArg, varArg bool) ([]ArgLocation, *State, error) {
	pieces := lo.Map(args, func(a rtl.CallArg, _ int) Piece {
		return Piece{Type: a.Type, Flags: a.Flags, OrigIndex: a.OrigIndex}
	})
	return c.AnalyzeArguments(pieces, varArg)
}

// AnalyzeCallResult analyzes the values a call produces
func (c *Convention) AnalyzeCallResult(results []rtl.Result) ([]ArgLocation, error) {
	return c.AnalyzeReturn(lo.Map(results, func(r rtl.Result, _ int) rtl.Typ { return r.Type }))
}

// MemoryPieces pairs each stack-bound location with its offset, in order
func MemoryPieces(locs []ArgLocation) []lo.Tuple2[int64, ArgLocation] {
	var out []lo.Tuple2[int64, ArgLocation]
	for _, l := range locs {
		if !l.IsReg() {
			out = append(out, lo.T2(l.Offset, l))
		}
	}
	return out
}
