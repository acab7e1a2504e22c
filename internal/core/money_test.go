package core

import (
	"encoding/json"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1.00", true},
		{"1.0", "1.00", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{"1.005", "1.01", true}, // half-up rounding
		{" 2.50 ", "2.50", true},
		{"0", "0.00", true},
		{"-1", "", false},
		{"+1", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
		{".", "", false},
		{"1234567890123456", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got.String() != tc.out {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestMoneyArithmetic(t *testing.T) {
	a := MustParseMoney("100")
	b := MustParseMoney("40.25")

	if got := a.Sub(b).String(); got != "59.75" {
		t.Fatalf("sub = %s", got)
	}
	if got := a.Add(b).String(); got != "140.25" {
		t.Fatalf("add = %s", got)
	}
	if got := b.Times(3).String(); got != "120.75" {
		t.Fatalf("times = %s", got)
	}
	if got := b.Sub(a).MaxZero(); !got.IsZero() {
		t.Fatalf("max zero = %s", got)
	}
	if got := MoneyFromCents(1234).Cents(); got != 1234 {
		t.Fatalf("cents round trip = %d", got)
	}
	if !Sum(a, b, MoneyFromCents(-25)).Equal(MustParseMoney("140")) {
		t.Fatalf("sum mismatch")
	}
}

func TestMoneyPercentOf(t *testing.T) {
	cases := []struct {
		spent, budget string
		want          float64
	}{
		{"75", "100", 75},
		{"150", "100", 150},
		{"0", "100", 0},
		{"50", "0", 0},
		{"1", "3", 33.3333},
	}
	for _, tc := range cases {
		got := MustParseMoney(tc.spent).PercentOf(MustParseMoney(tc.budget))
		if got != tc.want {
			t.Errorf("%s of %s = %v, want %v", tc.spent, tc.budget, got, tc.want)
		}
	}
}

func TestMoneyFormat(t *testing.T) {
	cases := []struct {
		in       Money
		currency string
		want     string
	}{
		{MustParseMoney("1234.5"), "USD", "USD 1,234.50"},
		{MustParseMoney("12"), "EUR", "EUR 12.00"},
		{MustParseMoney("1000000"), "", "1,000,000.00"},
		{MoneyFromCents(-12345), "USD", "USD -123.45"},
		{Zero, "USD", "USD 0.00"},
	}
	for _, tc := range cases {
		if got := tc.in.Format(tc.currency); got != tc.want {
			t.Errorf("Format(%s) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMoneyJSON(t *testing.T) {
	var payload struct {
		A Money `json:"a"`
		B Money `json:"b"`
		C Money `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a": 12.5, "b": "7.125", "c": null}`), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.A.String() != "12.50" || payload.B.String() != "7.13" || !payload.C.IsZero() {
		t.Fatalf("unexpected decode: %s %s %s", payload.A, payload.B, payload.C)
	}

	out, err := json.Marshal(map[string]Money{"x": MustParseMoney("3.1")})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"x":3.10}` {
		t.Fatalf("marshal = %s", out)
	}

	if err := json.Unmarshal([]byte(`{"a": "nope"}`), &payload); err == nil {
		t.Fatalf("expected error for invalid amount")
	}
}
