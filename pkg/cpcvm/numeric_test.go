package cpcvm

import (
	"testing"
)

func TestRoundToIntHalfAwayFromZero(t *testing.T) {
	tests := []struct {
		in   any
		want int
	}{
		{2.5, 3},
		{-2.5, -3},
		{1.4999, 1},
		{-1.5, -2},
		{0.5, 1},
		{-0.4, 0},
		{7, 7},
		{int16(-12), -12},
		{Num(3.5), 4},
		{true, -1},
	}

	for _, tt := range tests {
		got, err := RoundToInt(tt.in, "TEST")
		if err != nil {
			t.Errorf("RoundToInt(%v) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("RoundToInt(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestRoundToIntRejectsStrings(t *testing.T) {
	for _, in := range []any{"12", Str("12")} {
		_, err := RoundToInt(in, "TEST")
		f, ok := AsFault(err)
		if !ok || f.Code != FaultTypeMismatch {
			t.Errorf("RoundToInt(%#v) error = %v, want Type mismatch", in, err)
		}
	}
}

func TestInRangeRound(t *testing.T) {
	tests := []struct {
		name     string
		in       any
		min, max int
		want     int
		wantCode int // -1: no error
	}{
		{"inside", 5, 0, 10, 5, -1},
		{"rounded inside", 9.6, 0, 10, 10, -1},
		{"rounded above", 10.5, 0, 10, 0, FaultImproperArgument},
		{"below min", -1, 0, 255, 0, FaultImproperArgument},
		{"16-bit but above max", 65535, 0, 255, 0, FaultImproperArgument},
		{"above envelope", 70000, 0, 255, 0, FaultOverflow},
		{"below envelope", -40000, -32768, 32767, 0, FaultOverflow},
		{"string", "x", 0, 1, 0, FaultTypeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := InRangeRound(tt.in, tt.min, tt.max, "TEST")
			if tt.wantCode < 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got != tt.want {
					t.Errorf("got %d, want %d", got, tt.want)
				}
				return
			}
			f, ok := AsFault(err)
			if !ok {
				t.Fatalf("expected fault, got %v", err)
			}
			if f.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", f.Code, tt.wantCode)
			}
		})
	}
}

func TestTwosComplementRoundTrip(t *testing.T) {
	for n := -32768; n <= 65535; n += 97 {
		u, err := TwosComplementRound(n, "TEST")
		if err != nil {
			t.Fatalf("TwosComplementRound(%d): %v", n, err)
		}
		if u < 0 || u > 65535 {
			t.Fatalf("TwosComplementRound(%d) = %d, outside 0..65535", n, u)
		}
		if diff := ToSigned16(u) - n; diff%65536 != 0 {
			t.Fatalf("ToSigned16(%d) = %d, not congruent to %d", u, ToSigned16(u), n)
		}
	}

	if u, _ := TwosComplementRound(-1, "TEST"); u != 65535 {
		t.Errorf("TwosComplementRound(-1) = %d, want 65535", u)
	}
	if _, err := TwosComplementRound(65536, "TEST"); err == nil {
		t.Error("TwosComplementRound(65536) should overflow")
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"", 0, true},
		{" 12 ", 12, true},
		{"-1.5", -1.5, true},
		{"&FF", 255, true},
		{"&hff", 255, true},
		{"&X101", 5, true},
		{"1e3", 1000, true},
		{"abc", 0, false},
		{"&XZ", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseNumber(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseNumber(%q) = %v,%v want %v,%v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNumberFormatting(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{5, " 5"},
		{-3, "-3"},
		{0.5, " .5"},
		{-0.25, "-.25"},
		{1e10, " 1E+10"},
		{1.0 / 3, " .333333333"},
	}
	for _, tt := range tests {
		if got := formatStrNumber(tt.in); got != tt.want {
			t.Errorf("formatStrNumber(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
