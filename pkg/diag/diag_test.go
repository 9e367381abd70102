package diag

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestLimitfUnwraps(t *testing.T) {
	err := Limitf("f", "call g", "byval of %d bytes", 70000)
	if !errors.Is(err, ErrTargetLimitation) {
		t.Error("Limitf error should unwrap to ErrTargetLimitation")
	}
	wrapped := fmt.Errorf("lowering: %w", err)
	if !IsLimitation(wrapped) {
		t.Error("wrapped limitation not recognized")
	}
	if got := err.Error(); got != `f: in "call g": byval of 70000 bytes` {
		t.Errorf("Error() = %q", got)
	}
	if got := Limitf("f", "", "varargs").Error(); got != "f: varargs" {
		t.Errorf("Error() = %q", got)
	}
}

func TestRecoverInvariant(t *testing.T) {
	run := func() (err error) {
		defer Recover(&err)
		Invariant("copy %s <- %s", "d0", "q1")
		return nil
	}
	err := run()
	var ie *InvariantError
	if !errors.As(err, &ie) {
		t.Fatalf("err = %v, want *InvariantError", err)
	}
	if !strings.Contains(err.Error(), "copy d0 <- q1") {
		t.Errorf("Error() = %q", err.Error())
	}
	if IsLimitation(err) {
		t.Error("invariant violation is not a limitation")
	}
}

func TestRecoverRepanicsOthers(t *testing.T) {
	defer func() {
		if r := recover(); r != "boom" {
			t.Errorf("recovered %v, want boom", r)
		}
	}()
	func() (err error) {
		defer Recover(&err)
		panic("boom")
	}()
}
