package model

import "testing"

func TestParseModeMatchesExactly(t *testing.T) {
	for _, m := range Modes {
		got, ok := ParseMode(string(m))
		if !ok || got != m {
			t.Fatalf("ParseMode(%q) = %q, %v", m, got, ok)
		}
	}
	for _, bad := range []string{"OPPOSITION", "Cone", " cone", "cone ", "", "wobble"} {
		if _, ok := ParseMode(bad); ok {
			t.Fatalf("ParseMode(%q) should not match", bad)
		}
	}
}
