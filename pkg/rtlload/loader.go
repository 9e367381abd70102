// Package rtlload reads RTL modules written as YAML.
//
//	functions:
//	  - name: max
//	    params: [{value: "%0", type: i32}, {value: "%1", type: i32}]
//	    results: [i32]
//	    blocks:
//	      - name: entry
//	        code:
//	          - {op: select, dest: "%2", type: i32, cond: gt, cmp_type: i32, x: "%0", y: "%1", if_true: "%0", if_false: "%1"}
//	          - {op: ret, args: ["%2"]}
//
// Values are written "%N" (a bare N is accepted too). Errors carry the line
// of the offending node.
package rtlload

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/raymyers/mandarin-llc/pkg/rtl"
)

// ErrSyntax is wrapped by every positioned loading error
var ErrSyntax = errors.New("invalid RTL module")

// Error is a loading error at a line of the input
type Error struct {
	File string
	Line int
	Msg  string
}

func (e *Error) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("%s: %s", e.File, e.Msg)
	}
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

func (e *Error) Unwrap() error { return ErrSyntax }

// LoadFile reads and parses the module at path
func LoadFile(path string) (*rtl.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	return Parse(path, data)
}

// Parse parses a module; name is used in error positions
func Parse(name string, data []byte) (*rtl.Program, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", name, ErrSyntax, err)
	}
	l := &loader{file: name}
	if len(doc.Content) == 0 {
		return &rtl.Program{}, nil
	}

	var raw rawModule
	if err := doc.Content[0].Decode(&raw); err != nil {
		return nil, l.wrap(doc.Content[0], err)
	}

	prog := &rtl.Program{}
	seen := make(map[string]bool)
	for _, rf := range raw.Functions {
		fn, err := l.function(rf)
		if err != nil {
			return nil, err
		}
		if seen[fn.Name] {
			return nil, l.errorf(rf.node, "function %q defined twice", fn.Name)
		}
		seen[fn.Name] = true
		prog.Functions = append(prog.Functions, fn)
	}
	return prog, nil
}

type loader struct {
	file string
}

func (l *loader) errorf(n *yaml.Node, format string, args ...any) error {
	line := 0
	if n != nil {
		line = n.Line
	}
	return &Error{File: l.file, Line: line, Msg: fmt.Sprintf(format, args...)}
}

// wrap positions a decode error; yaml.TypeError already names its line
func (l *loader) wrap(n *yaml.Node, err error) error {
	var te *yaml.TypeError
	if errors.As(err, &te) && len(te.Errors) > 0 {
		return &Error{File: l.file, Msg: te.Errors[0]}
	}
	var pe *Error
	if errors.As(err, &pe) {
		pe.File = l.file
		return pe
	}
	return l.errorf(n, "%v", err)
}

func (l *loader) typ(n *yaml.Node, s string) (rtl.Typ, error) {
	t, ok := rtl.ParseTyp(s)
	if !ok {
		return 0, l.errorf(n, "unknown type %q", s)
	}
	return t, nil
}

func (l *loader) cond(n *yaml.Node, s string) (rtl.Cond, error) {
	c, ok := rtl.ParseCond(s)
	if !ok {
		return 0, l.errorf(n, "unknown condition %q", s)
	}
	return c, nil
}

func (l *loader) function(rf rawFunction) (*rtl.Function, error) {
	if rf.Name == "" {
		return nil, l.errorf(rf.node, "function without a name")
	}
	fn := &rtl.Function{Name: rf.Name, VarArg: rf.VarArg}

	switch rf.CallConv {
	case "", "ccc":
		fn.CallConv = rtl.CCC
	case "fastcc":
		fn.CallConv = rtl.Fast
	default:
		return nil, l.errorf(rf.node, "unknown calling convention %q", rf.CallConv)
	}

	for i, rp := range rf.Params {
		a, err := l.arg(rp, i)
		if err != nil {
			return nil, err
		}
		fn.Params = append(fn.Params, rtl.Param(a))
	}
	for _, r := range rf.Results {
		t, err := l.typ(rf.node, r)
		if err != nil {
			return nil, err
		}
		fn.Results = append(fn.Results, t)
	}

	if len(rf.Blocks) == 0 {
		return nil, l.errorf(rf.node, "function %q has no blocks", rf.Name)
	}
	names := make(map[string]bool)
	for _, rb := range rf.Blocks {
		if names[rb.Name] {
			return nil, l.errorf(rb.node, "block %q defined twice", rb.Name)
		}
		names[rb.Name] = true
	}
	for _, rb := range rf.Blocks {
		b, err := l.block(rb, names)
		if err != nil {
			return nil, err
		}
		fn.Blocks = append(fn.Blocks, b)
	}
	return fn, nil
}

func (l *loader) block(rb rawBlock, names map[string]bool) (*rtl.Block, error) {
	if rb.Name == "" {
		return nil, l.errorf(rb.node, "block without a name")
	}
	b := &rtl.Block{Name: rb.Name}
	for i, ri := range rb.Code {
		in, err := l.instr(ri)
		if err != nil {
			return nil, err
		}
		t, isTerm := in.(rtl.Terminator)
		if isTerm != (i == len(rb.Code)-1) {
			if isTerm {
				return nil, l.errorf(ri.node, "terminator %s before the end of block %q", ri.Op, rb.Name)
			}
			return nil, l.errorf(ri.node, "block %q does not end in a terminator", rb.Name)
		}
		if isTerm {
			for _, s := range t.Successors() {
				if !names[s] {
					return nil, l.errorf(ri.node, "branch to unknown block %q", s)
				}
			}
		}
		if phi, ok := in.(rtl.Phi); ok {
			for _, a := range phi.Incoming {
				if !names[a.Block] {
					return nil, l.errorf(ri.node, "phi names unknown block %q", a.Block)
				}
			}
		}
		b.Code = append(b.Code, in)
	}
	if len(b.Code) == 0 {
		return nil, l.errorf(rb.node, "block %q is empty", rb.Name)
	}
	return b, nil
}

// arg converts a param or call argument; the origin index defaults to the
// position in the list
func (l *loader) arg(ra rawArg, pos int) (rtl.CallArg, error) {
	t, err := l.typ(ra.node, ra.Type)
	if err != nil {
		return rtl.CallArg{}, err
	}
	orig := pos
	if ra.Orig != nil {
		orig = *ra.Orig
	}
	return rtl.CallArg{
		Value: ra.Value.v,
		Type:  t,
		Flags: rtl.ArgFlags{
			SExt:       ra.SExt,
			ZExt:       ra.ZExt,
			ByVal:      ra.ByVal || ra.ByValSize > 0,
			ByValSize:  ra.ByValSize,
			ByValAlign: ra.ByValAlign,
		},
		OrigIndex: orig,
	}, nil
}
