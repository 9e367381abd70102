package target

// TargetFlag is the relocation tag carried by a symbol operand
type TargetFlag int

const (
	FlagNone TargetFlag = iota
	FlagHi32
	FlagHi24
	FlagHi16
	FlagHi8
	FlagLo32
	FlagLo24
	FlagLo16
	FlagLo8
)

var targetFlagNames = [...]string{
	FlagNone: "",
	FlagHi32: "hi32",
	FlagHi24: "hi24",
	FlagHi16: "hi16",
	FlagHi8:  "hi8",
	FlagLo32: "lo32",
	FlagLo24: "lo24",
	FlagLo16: "lo16",
	FlagLo8:  "lo8",
}

// Name returns the tag name, empty for FlagNone
func (f TargetFlag) Name() string {
	if f < 0 || int(f) >= len(targetFlagNames) {
		return ""
	}
	return targetFlagNames[f]
}

// Wrap renders base inside the tag's call-like syntax
func (f TargetFlag) Wrap(base string) string {
	if f == FlagNone {
		return base
	}
	return f.Name() + "(" + base + ")"
}
