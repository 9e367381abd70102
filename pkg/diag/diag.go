// Package diag defines the two failure classes of the back end.
//
// Target limitations (an input the Mandarin target cannot express) are
// returned as *Error values that unwrap to ErrTargetLimitation. Invariant
// violations are bugs in an earlier stage; they panic with *InvariantError.
package diag

import (
	"errors"
	"fmt"
)

// ErrTargetLimitation is wrapped by every target-limitation diagnostic
var ErrTargetLimitation = errors.New("target limitation")

// Error is a diagnostic identifying the offending function and instruction
type Error struct {
	Func  string // function being lowered
	Instr string // offending instruction, if known
	Msg   string
}

func (e *Error) Error() string {
	if e.Instr != "" {
		return fmt.Sprintf("%s: in %q: %s", e.Func, e.Instr, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Func, e.Msg)
}

// Unwrap makes errors.Is(err, ErrTargetLimitation) hold
func (e *Error) Unwrap() error { return ErrTargetLimitation }

// Limitf builds a target-limitation error
func Limitf(fn, instr, format string, args ...any) *Error {
	return &Error{Func: fn, Instr: instr, Msg: fmt.Sprintf(format, args...)}
}

// IsLimitation reports whether err is a target limitation
func IsLimitation(err error) bool {
	return errors.Is(err, ErrTargetLimitation)
}

// InvariantError is the panic value of an invariant violation
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string { return "invariant violated: " + e.Msg }

// Invariant panics with an *InvariantError
func Invariant(format string, args ...any) {
	panic(&InvariantError{Msg: fmt.Sprintf(format, args...)})
}

// Recover converts an invariant panic into an error; other panics propagate.
// Use as: defer diag.Recover(&err)
func Recover(err *error) {
	r := recover()
	if r == nil {
		return
	}
	if ie, ok := r.(*InvariantError); ok {
		*err = ie
		return
	}
	panic(r)
}
