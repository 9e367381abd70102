package regalloc

import (
	"github.com/raymyers/mandarin-llc/pkg/diag"
	"github.com/raymyers/mandarin-llc/pkg/instrinfo"
	"github.com/raymyers/mandarin-llc/pkg/logger"
	"github.com/raymyers/mandarin-llc/pkg/mach"
	"github.com/raymyers/mandarin-llc/pkg/target"
)

// spillRegister gives v a stack slot and rewrites every instruction that
// mentions it to work on a fresh register: reloaded before a use, stored
// after a definition. It returns the fresh registers.
func spillRegister(f *mach.Function, ii *instrinfo.InstrInfo, v target.Reg) ([]target.Reg, error) {
	class := f.RegInfo.ClassOf(v)
	if !ii.CanSpill(class) {
		return nil, diag.Limitf(f.Name, "", "cannot spill %s register %v", class, v)
	}
	fi := f.Frame.CreateSpillSlot(class.SpillSize(), 4)
	logger.LogSpill(f.Name, v.String(), fi)

	var temps []target.Reg
	for _, b := range f.Blocks {
		c := mach.At(b, 0)
		for !c.Done() {
			in := c.Current()
			uses, defs := mentions(in.Uses(), v), mentions(in.Defs(), v)
			if !uses && !defs {
				c.Next()
				continue
			}
			t := f.RegInfo.CreateVirtualRegister(class)
			temps = append(temps, t)
			if uses {
				ii.LoadRegFromStackSlot(c, t, fi, class)
			}
			in.ReplaceReg(v, t)
			c.Next()
			if defs {
				ii.StoreRegToStackSlot(c, t, fi, class)
			}
		}
	}
	for i, li := range f.RegInfo.LiveIns {
		if li.Virt == v {
			f.RegInfo.LiveIns[i].Virt = target.NoReg
		}
	}
	return temps, nil
}

func mentions(regs []target.Reg, v target.Reg) bool {
	for _, r := range regs {
		if r == v {
			return true
		}
	}
	return false
}
