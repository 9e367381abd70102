package rtlload

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/raymyers/mandarin-llc/pkg/rtl"
)

// The raw* types mirror the YAML layout. Each keeps its node so later checks
// can report a line.

type rawModule struct {
	Functions []rawFunction `yaml:"functions"`
}

type rawFunction struct {
	Name     string     `yaml:"name"`
	Params   []rawArg   `yaml:"params"`
	Results  []string   `yaml:"results"`
	VarArg   bool       `yaml:"vararg"`
	CallConv string     `yaml:"callconv"`
	Blocks   []rawBlock `yaml:"blocks"`

	node *yaml.Node
}

type rawBlock struct {
	Name string     `yaml:"name"`
	Code []rawInstr `yaml:"code"`

	node *yaml.Node
}

type rawArg struct {
	Value      valueRef `yaml:"value"`
	Type       string   `yaml:"type"`
	Orig       *int     `yaml:"orig"`
	SExt       bool     `yaml:"signext"`
	ZExt       bool     `yaml:"zeroext"`
	ByVal      bool     `yaml:"byval"`
	ByValSize  int64    `yaml:"byval_size"`
	ByValAlign int64    `yaml:"byval_align"`

	node *yaml.Node
}

type rawResult struct {
	Value valueRef `yaml:"value"`
	Type  string   `yaml:"type"`
}

type rawAsmOperand struct {
	Constraint string   `yaml:"constraint"`
	Value      valueRef `yaml:"value"`
	Type       string   `yaml:"type"`
}

type rawPhiArg struct {
	Block string   `yaml:"block"`
	Value valueRef `yaml:"value"`
}

type rawInstr struct {
	Op   string   `yaml:"op"`
	Dest valueRef `yaml:"dest"`
	Type string   `yaml:"type"`

	// constants: int64 for const, float for fconst
	Value yaml.Node `yaml:"value"`

	X    valueRef `yaml:"x"`
	Y    valueRef `yaml:"y"`
	Addr valueRef `yaml:"addr"`
	Src  valueRef `yaml:"src"`

	Symbol   string `yaml:"symbol"`
	External bool   `yaml:"external"`

	// alloca: a byte count; dynalloca: a value
	Size  yaml.Node `yaml:"size"`
	Align int64     `yaml:"align"`

	Cond    string   `yaml:"cond"`
	CmpType string   `yaml:"cmp_type"`
	IfTrue  valueRef `yaml:"if_true"`
	IfFalse valueRef `yaml:"if_false"`

	Callee      string      `yaml:"callee"`
	CalleeValue valueRef    `yaml:"callee_value"`
	Results     []rawResult `yaml:"results"`
	VarArg      bool        `yaml:"vararg"`

	// call: argument list; ret: returned values
	Args yaml.Node `yaml:"args"`

	Asm     string          `yaml:"asm"`
	Outputs []rawAsmOperand `yaml:"outputs"`
	Inputs  []rawAsmOperand `yaml:"inputs"`

	Incoming []rawPhiArg `yaml:"incoming"`

	Target string `yaml:"target"`
	IfSo   string `yaml:"if_so"`
	IfNot  string `yaml:"if_not"`

	node *yaml.Node
}

func (r *rawFunction) UnmarshalYAML(n *yaml.Node) error {
	type plain rawFunction
	if err := n.Decode((*plain)(r)); err != nil {
		return err
	}
	r.node = n
	return nil
}

func (r *rawBlock) UnmarshalYAML(n *yaml.Node) error {
	type plain rawBlock
	if err := n.Decode((*plain)(r)); err != nil {
		return err
	}
	r.node = n
	return nil
}

func (r *rawArg) UnmarshalYAML(n *yaml.Node) error {
	type plain rawArg
	if err := n.Decode((*plain)(r)); err != nil {
		return err
	}
	r.node = n
	return nil
}

func (r *rawInstr) UnmarshalYAML(n *yaml.Node) error {
	type plain rawInstr
	if err := n.Decode((*plain)(r)); err != nil {
		return err
	}
	r.node = n
	return nil
}

// valueRef is a value reference: "%N", "xN" or N
type valueRef struct {
	v   rtl.Value
	set bool
}

func (r *valueRef) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return &Error{Line: n.Line, Msg: "value reference must be a scalar"}
	}
	s := strings.TrimPrefix(strings.TrimPrefix(n.Value, "%"), "x")
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return &Error{Line: n.Line, Msg: fmt.Sprintf("bad value reference %q", n.Value)}
	}
	r.v, r.set = rtl.Value(v), true
	return nil
}
