package core

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in    string
		cents int64
		ok    bool
	}{
		{"12.34", 1234, true},
		{"12,34", 1234, true},
		{"12.345", 1235, true},
		{"12.344", 1234, true},
		{"10", 1000, true},
		{"0.005", 1, true},
		{" 7.5 ", 750, true},
		{"0", 0, false},
		{"0.004", 0, false},
		{"-1", 0, false},
		{"+1", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
		{"184467440737095516.17", 0, false},
		{"92233720368547758.08", 0, false},
		{"92233720368547758.07", math.MaxInt64, true},
	}
	for _, tc := range cases {
		m, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil {
				t.Errorf("ParseAmount(%q) unexpected error: %v", tc.in, err)
				continue
			}
			if m.Cents != tc.cents {
				t.Errorf("ParseAmount(%q) = %d, want %d", tc.in, m.Cents, tc.cents)
			}
		} else if err == nil {
			t.Errorf("ParseAmount(%q) expected error, got %d", tc.in, m.Cents)
		}
	}
}

func TestParseMoneyAcceptsStoredForms(t *testing.T) {
	for in, want := range map[string]int64{"10": 1000, "10.5": 1050, "10.50": 1050, "-3.25": -325} {
		m, err := ParseMoney(in)
		if err != nil {
			t.Fatalf("ParseMoney(%q): %v", in, err)
		}
		if m.Cents != want {
			t.Fatalf("ParseMoney(%q) = %d, want %d", in, m.Cents, want)
		}
	}
	for _, in := range []string{"ten", "184467440737095516.17", "-92233720368547758.09"} {
		if _, err := ParseMoney(in); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("ParseMoney(%q) err = %v, want ErrInvalidAmount", in, err)
		}
	}
}

func TestMoneyString(t *testing.T) {
	cases := map[int64]string{0: "0.00", 5: "0.05", 1250: "12.50", 100000: "1000.00", -75: "-0.75"}
	for cents, want := range cases {
		if got := Cents(cents).String(); got != want {
			t.Errorf("Cents(%d).String() = %q, want %q", cents, got, want)
		}
	}
}

func TestMoneyFromDecimalRoundsHalfAwayFromZero(t *testing.T) {
	if got := MoneyFromDecimal(decimal.RequireFromString("8.335")).Cents; got != 834 {
		t.Fatalf("got %d, want 834", got)
	}
	if got := MoneyFromDecimal(decimal.RequireFromString("8.334")).Cents; got != 833 {
		t.Fatalf("got %d, want 833", got)
	}
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Fare Money `json:"fare"`
	}{Cents(1050)})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"fare":10.50}` {
		t.Fatalf("marshal = %s", b)
	}

	var in struct {
		A Money `json:"a"`
		B Money `json:"b"`
	}
	if err := json.Unmarshal([]byte(`{"a":12.5,"b":"3.10"}`), &in); err != nil {
		t.Fatal(err)
	}
	if in.A.Cents != 1250 || in.B.Cents != 310 {
		t.Fatalf("unmarshal = %+v", in)
	}
}
