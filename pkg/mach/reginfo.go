package mach

import (
	"fmt"

	"github.com/raymyers/mandarin-llc/pkg/target"
)

// LiveIn pairs an incoming physical register with the virtual register that
// receives it
type LiveIn struct {
	Phys target.Reg
	Virt target.Reg
}

// RegInfo is the function's virtual register namespace
type RegInfo struct {
	classes []target.RegClass
	LiveIns []LiveIn
}

// CreateVirtualRegister returns a fresh virtual register of class c
func (ri *RegInfo) CreateVirtualRegister(c target.RegClass) target.Reg {
	ri.classes = append(ri.classes, c)
	return target.VirtReg(len(ri.classes) - 1)
}

// NumVirtRegs returns how many virtual registers exist
func (ri *RegInfo) NumVirtRegs() int { return len(ri.classes) }

// ClassOf returns the class of a virtual or physical register
func (ri *RegInfo) ClassOf(r target.Reg) target.RegClass {
	if r.IsVirtual() {
		i := r.VirtIndex()
		if i >= len(ri.classes) {
			panic(fmt.Sprintf("mach: unknown virtual register %v", r))
		}
		return ri.classes[i]
	}
	return target.ClassOf(r)
}

// AddLiveIn records that phys arrives live and is copied into virt
func (ri *RegInfo) AddLiveIn(phys, virt target.Reg) {
	ri.LiveIns = append(ri.LiveIns, LiveIn{Phys: phys, Virt: virt})
}
