package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

// asmCase is one end-to-end case: an RTL module and what its assembly must show
type asmCase struct {
	Name        string   `yaml:"name"`
	Input       string   `yaml:"input"`
	Expect      []string `yaml:"expect"`        // present somewhere
	ExpectOrder []string `yaml:"expect_order"`  // present, first occurrences in this order
	ExpectOnce  []string `yaml:"expect_unique"` // present exactly once
	ExpectNot   []string `yaml:"expect_not"`    // absent
	Skip        string   `yaml:"skip,omitempty"`
}

func loadAsmCases(t *testing.T, path string) []asmCase {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	var file struct {
		Tests []asmCase `yaml:"tests"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		t.Fatalf("parsing %s: %v", path, err)
	}
	if len(file.Tests) == 0 {
		t.Fatalf("%s has no tests", path)
	}
	return file.Tests
}

// check reports every way asm violates the case
func (c asmCase) check(t *testing.T, asm string) {
	t.Helper()
	for _, s := range c.Expect {
		if !strings.Contains(asm, s) {
			t.Errorf("missing %q in:\n%s", s, asm)
		}
	}
	prev := -1
	for _, s := range c.ExpectOrder {
		at := strings.Index(asm, s)
		switch {
		case at < 0:
			t.Errorf("missing %q (order check) in:\n%s", s, asm)
		case at <= prev:
			t.Errorf("%q at %d, want after %d in:\n%s", s, at, prev, asm)
		}
		prev = at
	}
	for _, s := range c.ExpectOnce {
		if n := strings.Count(asm, s); n != 1 {
			t.Errorf("count(%q) = %d, want 1 in:\n%s", s, n, asm)
		}
	}
	for _, s := range c.ExpectNot {
		if strings.Contains(asm, s) {
			t.Errorf("unexpected %q in:\n%s", s, asm)
		}
	}
}

func TestE2EAsmYAML(t *testing.T) {
	for _, tc := range loadAsmCases(t, "../../testdata/e2e_asm.yaml") {
		t.Run(tc.Name, func(t *testing.T) {
			if tc.Skip != "" {
				t.Skip(tc.Skip)
			}
			input := filepath.Join(t.TempDir(), "test.yaml")
			if err := os.WriteFile(input, []byte(tc.Input), 0644); err != nil {
				t.Fatalf("failed to write test file: %v", err)
			}
			asm, errOut, err := execute(input)
			if err != nil {
				t.Fatalf("mandarin-llc failed: %v\nstderr: %s", err, errOut)
			}
			tc.check(t, asm)
		})
	}
}
