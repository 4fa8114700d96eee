package extract

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestNormalizeAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"1.234,56", "1234.56", true},
		{"1234,56", "1234.56", true},
		{"1.234.567", "1234567", true},
		{"R$ 1.234,56", "1234.56", true},
		{"-287,00", "287", true},
		{"0,00", "0", true},
		{"1234.56", "1234.56", true},
		{"42", "42", true},
		{"", "", false},
		{"R$", "", false},
		{"abc", "", false},
	}

	for _, c := range cases {
		got := NormalizeAmount(c.in)
		if got.Valid != c.ok {
			t.Errorf("NormalizeAmount(%q) valid = %v, want %v", c.in, got.Valid, c.ok)
			continue
		}
		if !c.ok {
			continue
		}
		want := decimal.RequireFromString(c.want)
		if !got.Decimal.Equal(want) {
			t.Errorf("NormalizeAmount(%q) = %s, want %s", c.in, got.Decimal, want)
		}
	}
}

func TestNormalizeAmountIdempotent(t *testing.T) {
	for _, in := range []string{"1.234,56", "1234,56", "987.654.321", "12,30"} {
		first := NormalizeAmount(in)
		if !first.Valid {
			t.Fatalf("NormalizeAmount(%q) unexpectedly absent", in)
		}
		second := NormalizeAmount(first.Decimal.String())
		if !second.Valid || !second.Decimal.Equal(first.Decimal) {
			t.Errorf("re-normalizing %q: got %v, want %s", in, second, first.Decimal)
		}
	}
}

func TestNormalizeAmountNeverZeroForAbsent(t *testing.T) {
	got := NormalizeAmount("   ")
	if got.Valid {
		t.Fatalf("blank input must be absent, got %s", got.Decimal)
	}
}
