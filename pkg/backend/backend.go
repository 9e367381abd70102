// Package backend drives one RTL module through the Mandarin pipeline:
// instruction selection, select expansion, register allocation, frame
// lowering, branch folding and assembly printing.
package backend

import (
	"errors"
	"fmt"
	"io"

	"github.com/raymyers/mandarin-llc/pkg/asm"
	"github.com/raymyers/mandarin-llc/pkg/diag"
	"github.com/raymyers/mandarin-llc/pkg/linearize"
	"github.com/raymyers/mandarin-llc/pkg/logger"
	"github.com/raymyers/mandarin-llc/pkg/mach"
	"github.com/raymyers/mandarin-llc/pkg/mandarin"
	"github.com/raymyers/mandarin-llc/pkg/regalloc"
	"github.com/raymyers/mandarin-llc/pkg/rtl"
	"github.com/raymyers/mandarin-llc/pkg/selection"
)

// Stage names a point of the pipeline whose machine code can be dumped
type Stage int

const (
	AfterSelection Stage = iota // selected, selects expanded, virtual registers
	AfterRegAlloc               // physical registers, frame not yet lowered
	AfterLowering               // final machine code
)

// Backend compiles RTL for one target configuration
type Backend struct {
	Target *mandarin.Target
	// Dumps receive the machine code of every function at a stage
	Dumps map[Stage]io.Writer
}

// New returns a backend for tgt
func New(tgt *mandarin.Target) *Backend {
	return &Backend{Target: tgt, Dumps: make(map[Stage]io.Writer)}
}

// FunctionError is the failure of one function
type FunctionError struct {
	Func  string
	Phase string
	Err   error
}

func (e *FunctionError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Func, e.Phase, e.Err)
}

func (e *FunctionError) Unwrap() error { return e.Err }

func (be *Backend) dump(s Stage, f *mach.Function) {
	if w, ok := be.Dumps[s]; ok && w != nil {
		mach.NewPrinter(w).PrintFunction(f)
	}
}

// CompileFunction lowers fn to allocated, frame-lowered machine code.
// number is the function's ordinal in the module.
func (be *Backend) CompileFunction(fn *rtl.Function, number int) (*mach.Function, error) {
	tgt := be.Target
	logger.LogFunction(fn.Name, number, len(fn.Blocks))

	fail := func(phase string, err error) (*mach.Function, error) {
		if diag.IsLimitation(err) {
			logger.LogLimitation(phase, fn.Name, err)
		} else {
			logger.LogError(phase, fn.Name, err)
		}
		return nil, &FunctionError{Func: fn.Name, Phase: phase, Err: err}
	}

	mf, err := selection.SelectFunction(tgt, fn, number)
	if err != nil {
		return fail("selection", err)
	}
	if err := selection.ExpandSelects(tgt.Instrs, mf); err != nil {
		return fail("select expansion", err)
	}
	if err := mach.Verify(mf); err != nil {
		return fail("verify", err)
	}
	be.dump(AfterSelection, mf)

	// the frame pointer is reserved before allocation
	mf.HasFP = tgt.Frame.HasFP(mf)
	if err := regalloc.Allocate(mf, tgt.Instrs); err != nil {
		return fail("register allocation", err)
	}
	be.dump(AfterRegAlloc, mf)

	if err := tgt.Frame.Run(mf); err != nil {
		return fail("frame lowering", err)
	}
	if err := be.expandPseudos(mf); err != nil {
		return fail("pseudo expansion", err)
	}
	if err := linearize.Linearize(mf, tgt.Instrs); err != nil {
		return fail("linearize", err)
	}

	if err := mach.Verify(mf); err != nil {
		return fail("verify", err)
	}
	if err := mach.VerifyNoFrameIndices(mf); err != nil {
		return fail("verify", err)
	}
	be.dump(AfterLowering, mf)
	return mf, nil
}

func (be *Backend) expandPseudos(mf *mach.Function) (err error) {
	defer diag.Recover(&err)
	be.Target.Instrs.ExpandPostRAPseudos(mf)
	return nil
}

// CompileModule compiles the functions of prog in order and prints their
// assembly to w. A function that fails is left out of the output; the
// failures are returned together once every function was attempted.
func (be *Backend) CompileModule(prog *rtl.Program, w io.Writer) error {
	p := asm.NewPrinter(w)
	var errs []error
	for i, fn := range prog.Functions {
		mf, err := be.CompileFunction(fn, i)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := p.PrintFunction(mf); err != nil {
			logger.LogError("asm", fn.Name, err)
			errs = append(errs, &FunctionError{Func: fn.Name, Phase: "asm", Err: err})
		}
	}
	return errors.Join(errs...)
}
