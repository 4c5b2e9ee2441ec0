package money

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
)

func mustAmount(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := ParseAmount(s)
	if err != nil {
		t.Fatalf("ParseAmount(%q): %v", s, err)
	}
	return d
}

func TestNormalizeCode(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"USD", "USD", false},
		{"usd", "USD", false},
		{" eur ", "EUR", false},
		{"jpy", "JPY", false},
		{"ZZZ", "ZZZ", false}, // well-formed but unknown: accepted
		{"US", "", true},
		{"USDD", "", true},
		{"U5D", "", true},
		{"", "", true},
	}
	for _, tc := range cases {
		got, err := NormalizeCode(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("NormalizeCode(%q): expected error, got %q", tc.in, got)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("NormalizeCode(%q) = (%q, %v), want %q", tc.in, got, err, tc.want)
		}
	}
}

func TestDecimalPlaces_Fallback(t *testing.T) {
	if p := DecimalPlaces("JPY"); p != 0 {
		t.Fatalf("JPY places = %d, want 0", p)
	}
	if p := DecimalPlaces("KWD"); p != 3 {
		t.Fatalf("KWD places = %d, want 3", p)
	}
	// Unknown codes use the documented two-decimal default.
	if p := DecimalPlaces("ZZZ"); p != DefaultDecimalPlaces {
		t.Fatalf("ZZZ places = %d, want %d", p, DefaultDecimalPlaces)
	}
}

func TestToMinorUnits_HalfUpRounding(t *testing.T) {
	cases := []struct {
		amount string
		code   string
		want   int64
	}{
		{"12.345", "USD", 1235}, // half-up at the cent boundary
		{"12.344", "USD", 1234},
		{"1999.6", "JPY", 2000}, // zero-decimal currency
		{"1999.4", "JPY", 1999},
		{"1999.5", "JPY", 2000},
		{"0.005", "USD", 1},
		{"2000", "JPY", 2000},
		{"1.2345", "KWD", 1235}, // three-decimal currency
		{"10.00", "ZZZ", 1000},  // unknown code behaves as two-decimal
	}
	for _, tc := range cases {
		got := ToMinorUnits(mustAmount(t, tc.amount), tc.code)
		if got.Cmp(big.NewInt(tc.want)) != 0 {
			t.Fatalf("ToMinorUnits(%s, %s) = %s, want %d", tc.amount, tc.code, got, tc.want)
		}
	}
}

func TestFromMinorUnits_FixedPlaces(t *testing.T) {
	cases := []struct {
		minor int64
		code  string
		want  string
	}{
		{1235, "USD", "12.35"},
		{2000, "JPY", "2000"},
		{729, "USD", "7.29"},
		{1235, "KWD", "1.235"},
		{5, "USD", "0.05"},
		{0, "USD", "0.00"},
	}
	for _, tc := range cases {
		got := FromMinorUnits(big.NewInt(tc.minor), tc.code)
		if got != tc.want {
			t.Fatalf("FromMinorUnits(%d, %s) = %q, want %q", tc.minor, tc.code, got, tc.want)
		}
	}
}

func TestRoundTrip_RoundsToCurrencyPlaces(t *testing.T) {
	// fromMinorUnits(toMinorUnits(x)) rounds x to the currency's places.
	cases := []struct {
		amount, code, want string
	}{
		{"12.345", "USD", "12.35"},
		{"1999.6", "JPY", "2000"},
		{"8", "EUR", "8.00"},
	}
	for _, tc := range cases {
		minor := ToMinorUnits(mustAmount(t, tc.amount), tc.code)
		if got := FromMinorUnits(minor, tc.code); got != tc.want {
			t.Fatalf("round trip %s %s = %q, want %q", tc.amount, tc.code, got, tc.want)
		}
	}
}

func TestCommission_ExactResults(t *testing.T) {
	cases := []struct {
		gross int64
		rate  string
		code  string
		want  int64
	}{
		{23900, "12", "USD", 2868},   // 239.00 at 12% -> 28.68 exactly
		{10050, "7.25", "USD", 729},  // 100.50 at 7.25% -> 7.285 -> 7.29
		{10000, "8.5", "USD", 850},   // 100.00 at 8.5%
		{2000, "8", "JPY", 160},      // zero-decimal gross
		{1, "8", "USD", 0},           // 0.08 minor -> rounds down
		{7, "8", "USD", 1},           // 0.56 minor -> rounds up
		{12500, "0", "USD", 0},       // zero rate
		{12345, "100", "USD", 12345}, // full rate
	}
	for _, tc := range cases {
		rate, err := ParseRate(tc.rate)
		if err != nil {
			t.Fatalf("ParseRate(%q): %v", tc.rate, err)
		}
		got := Commission(big.NewInt(tc.gross), rate, tc.code)
		if got.Cmp(big.NewInt(tc.want)) != 0 {
			t.Fatalf("Commission(%d, %s%%) = %s, want %d", tc.gross, tc.rate, got, tc.want)
		}
	}
}

func TestCommission_LargeGrossStaysExact(t *testing.T) {
	// A gross far beyond float64's 53-bit integer range must not lose
	// precision: 9_007_199_254_740_993 is not representable as a float.
	gross, ok := new(big.Int).SetString("9007199254740993", 10)
	if !ok {
		t.Fatal("bad literal")
	}
	rate, _ := ParseRate("100")
	got := Commission(gross, rate, "USD")
	if got.Cmp(gross) != 0 {
		t.Fatalf("Commission at 100%% = %s, want %s", got, gross)
	}
}

func TestParseRate_Bounds(t *testing.T) {
	if _, err := ParseRate("-1"); err == nil {
		t.Fatal("expected error for negative rate")
	}
	if _, err := ParseRate("100.01"); err == nil {
		t.Fatal("expected error for rate above 100")
	}
	if _, err := ParseRate("abc"); err == nil {
		t.Fatal("expected error for non-decimal rate")
	}
	if r, err := ParseRate(" 8.5 "); err != nil || !r.Equal(decimal.RequireFromString("8.5")) {
		t.Fatalf("ParseRate(8.5) = (%v, %v)", r, err)
	}
}

func TestParseAmount_RejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "abc", "1.2.3", "NaN", "Inf"} {
		if _, err := ParseAmount(s); err == nil {
			t.Fatalf("ParseAmount(%q): expected error", s)
		}
	}
}
