package mach

import (
	"fmt"
	"io"
	"strings"
)

// Printer dumps machine functions for debugging (-dmach and friends)
type Printer struct {
	w io.Writer
}

// NewPrinter creates a new machine IR printer
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// PrintFunction prints the frame summary followed by every block
func (p *Printer) PrintFunction(f *Function) {
	fmt.Fprintf(p.w, "%s:\n", f.Name)
	fi := f.Frame
	fmt.Fprintf(p.w, "  frame: size %d, max call frame %d", fi.StackSize, fi.MaxCallFrameSize)
	if f.HasFP {
		fmt.Fprint(p.w, ", fp")
	}
	fmt.Fprintln(p.w)
	for i, o := range fi.Objects {
		kind := "local"
		switch {
		case o.Fixed:
			kind = "fixed"
		case o.SpillSlot:
			kind = "spill"
		case o.VarSized:
			kind = "variable"
		}
		fmt.Fprintf(p.w, "  fi#%d: %s size %d align %d offset %d\n", i, kind, o.Size, o.Align, o.Offset)
	}
	for i, c := range f.ConstPool {
		fmt.Fprintf(p.w, "  cp#%d: %#x size %d align %d\n", i, c.Value, c.Size, c.Align)
	}
	for _, b := range f.Blocks {
		p.printBlock(b)
	}
}

func (p *Printer) printBlock(b *Block) {
	fmt.Fprintf(p.w, "bb.%d", b.ID)
	if b.Name != "" {
		fmt.Fprintf(p.w, " (%s)", b.Name)
	}
	fmt.Fprintln(p.w, ":")
	if len(b.LiveIns) > 0 {
		names := make([]string, len(b.LiveIns))
		for i, r := range b.LiveIns {
			names[i] = r.String()
		}
		fmt.Fprintf(p.w, "  liveins: %s\n", strings.Join(names, ", "))
	}
	if len(b.Preds) > 0 {
		fmt.Fprintf(p.w, "  preds: %s\n", blockList(b.Preds))
	}
	if len(b.Succs) > 0 {
		fmt.Fprintf(p.w, "  succs: %s\n", blockList(b.Succs))
	}
	for _, in := range b.Instrs {
		fmt.Fprintf(p.w, "    %s\n", in)
	}
}

func blockList(bs []*Block) string {
	names := make([]string, len(bs))
	for i, b := range bs {
		names[i] = fmt.Sprintf("bb.%d", b.ID)
	}
	return strings.Join(names, ", ")
}
