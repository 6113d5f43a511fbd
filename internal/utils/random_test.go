package utils

import (
	"strconv"
	"testing"
)

func TestSixDigitCodeRange(t *testing.T) {
	for i := 0; i < 5000; i++ {
		code := SixDigitCode()
		if len(code) != 6 {
			t.Fatalf("expected 6 digits, got %q", code)
		}
		n, err := strconv.Atoi(code)
		if err != nil {
			t.Fatalf("code %q is not numeric: %v", code, err)
		}
		if n < 100000 || n > 999999 {
			t.Fatalf("code %d out of range", n)
		}
	}
}

func TestMaskEmail(t *testing.T) {
	if got := MaskEmail("alice@example.com"); got != "a****@example.com" {
		t.Fatalf("unexpected mask %q", got)
	}
	if got := MaskEmail("nope"); got != "****" {
		t.Fatalf("unexpected mask %q", got)
	}
}
