// Package mandarin assembles the Mandarin target description: register
// policy, instruction information, calling convention and frame lowering,
// built once from Options and passed to every stage.
package mandarin

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/raymyers/mandarin-llc/pkg/callconv"
	"github.com/raymyers/mandarin-llc/pkg/instrinfo"
	"github.com/raymyers/mandarin-llc/pkg/stacking"
	"github.com/raymyers/mandarin-llc/pkg/target"
)

// Relocation models
const (
	RelocStatic = "static"
	RelocPIC    = "pic"
)

// ErrInvalidOptions is wrapped by every option validation failure
var ErrInvalidOptions = errors.New("invalid target options")

// Options configure the target
type Options struct {
	DisableFPElim  bool   `yaml:"disable_fp_elim"`
	RelocModel     string `yaml:"reloc_model"`
	StackAlignment int64  `yaml:"stack_alignment"`
	MaxByValSize   int64  `yaml:"max_byval_size"`
}

// DefaultOptions returns the static, frame-pointer-eliminating configuration
func DefaultOptions() Options {
	return Options{
		RelocModel:     RelocStatic,
		StackAlignment: callconv.StackAlignment,
		MaxByValSize:   callconv.DefaultMaxByValSize,
	}
}

// Validate checks the options against what Mandarin supports
func (o Options) Validate() error {
	switch o.RelocModel {
	case RelocStatic, RelocPIC:
	default:
		return fmt.Errorf("%w: reloc_model %q (want %q or %q)", ErrInvalidOptions, o.RelocModel, RelocStatic, RelocPIC)
	}
	if o.StackAlignment != callconv.StackAlignment {
		return fmt.Errorf("%w: stack_alignment %d (Mandarin requires %d)", ErrInvalidOptions, o.StackAlignment, callconv.StackAlignment)
	}
	if o.MaxByValSize <= 0 {
		return fmt.Errorf("%w: max_byval_size %d", ErrInvalidOptions, o.MaxByValSize)
	}
	return nil
}

// LoadOptions reads options from a YAML file. Keys left out keep their
// defaults.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("reading target config: %w", err)
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("parsing target config %s: %w", path, err)
	}
	if err := opts.Validate(); err != nil {
		return opts, fmt.Errorf("%s: %w", path, err)
	}
	return opts, nil
}

// Target is the Mandarin target description
type Target struct {
	Options  Options
	Regs     target.RegisterInfo
	Instrs   *instrinfo.InstrInfo
	CallConv *callconv.Convention
	Frame    *stacking.FrameLowering
}

// New builds a target from validated options
func New(opts Options) (*Target, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Target{
		Options:  opts,
		Instrs:   instrinfo.New(),
		CallConv: callconv.New(opts.MaxByValSize),
		Frame:    stacking.New(opts.DisableFPElim),
	}, nil
}

// PIC reports whether position independent code was requested
func (t *Target) PIC() bool { return t.Options.RelocModel == RelocPIC }
