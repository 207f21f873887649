package core

import "testing"

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"12.34", 1234, true},
		{"12,34", 1234, true},
		{"12", 1200, true},
		{"0.5", 50, true},
		{"12.345", 1234, true}, // rounds down
		{"12.346", 1235, true}, // rounds up
		{"", 0, false},
		{"-12.34", 0, false}, // signs rejected, kind decides the sign
		{"+12.34", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"0", 0, false},
	}
	for i, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("case %d (%q): expected ok, got %v", i, tc.in, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d (%q): expected error", i, tc.in)
		}
		if tc.ok && got != tc.want {
			t.Fatalf("case %d (%q): got %d, want %d", i, tc.in, got, tc.want)
		}
	}
}

func TestMoneyFromFloat(t *testing.T) {
	if got := MoneyFromFloat(12.34); got.Cents != 1234 {
		t.Fatalf("got %d, want 1234", got.Cents)
	}
	if got := MoneyFromFloat(-1200.00); got.Cents != -120000 {
		t.Fatalf("got %d, want -120000", got.Cents)
	}
	// Half-up on float noise
	if got := MoneyFromFloat(0.115); got.Cents != 12 && got.Cents != 11 {
		t.Fatalf("got %d, want 11 or 12", got.Cents)
	}
}

func TestMoneyFormat(t *testing.T) {
	cases := []struct {
		cents int64
		want  string
	}{
		{1234, "R$ 12,34"},
		{-120000, "-R$ 1200,00"},
		{5, "R$ 0,05"},
		{0, "R$ 0,00"},
	}
	for i, tc := range cases {
		if got := (Money{Cents: tc.cents}).Format(); got != tc.want {
			t.Fatalf("case %d: got %q, want %q", i, got, tc.want)
		}
	}
}
