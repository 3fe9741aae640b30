package normalize

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestPrice(t *testing.T) {
	cases := map[string]float64{
		"₹2,999":       2999,
		"₹1,23,456.50": 123456.5,
		"$1,299.99":    1299.99,
		"€ 49":         49,
		"Rs. 499":      499,
		"INR 2,499":    2499,
		"2999":         2999,
		"  ₹799  ":     799,
		"₹2 999":       2999,
	}
	for in, want := range cases {
		got, err := Price(in)
		if err != nil {
			t.Fatalf("Price(%q) error: %v", in, err)
		}
		if got == nil || *got != want {
			t.Fatalf("Price(%q)=%v want %v", in, got, want)
		}
	}
}

func TestPrice_EmptyIsUnavailable(t *testing.T) {
	for _, in := range []string{"", "   "} {
		got, err := Price(in)
		if err != nil || got != nil {
			t.Fatalf("Price(%q)=%v, %v want nil, nil", in, got, err)
		}
	}
}

func TestPrice_Malformed(t *testing.T) {
	for _, in := range []string{"₹", "Currently unavailable", "₹2,999 - ₹3,499", "NaN", "Inf"} {
		got, err := Price(in)
		if got != nil {
			t.Fatalf("Price(%q)=%v want nil", in, *got)
		}
		if !errors.Is(err, ErrMalformed) {
			t.Fatalf("Price(%q) error=%v want ErrMalformed", in, err)
		}
	}
}

func TestPriceJSON(t *testing.T) {
	got, err := PriceJSON(json.RawMessage(`"₹2,999"`))
	if err != nil || got == nil || *got != 2999 {
		t.Fatalf("string price: got %v, %v", got, err)
	}

	got, err = PriceJSON(json.RawMessage(`1499.5`))
	if err != nil || got == nil || *got != 1499.5 {
		t.Fatalf("numeric price: got %v, %v", got, err)
	}

	for _, raw := range []string{``, `null`} {
		got, err = PriceJSON(json.RawMessage(raw))
		if err != nil || got != nil {
			t.Fatalf("PriceJSON(%q)=%v, %v want nil, nil", raw, got, err)
		}
	}

	if _, err := PriceJSON(json.RawMessage(`{"amount":1}`)); !errors.Is(err, ErrMalformed) {
		t.Fatalf("object price: expected ErrMalformed, got %v", err)
	}
}

func TestNumber_ZeroIsDistinctFromAbsent(t *testing.T) {
	for _, raw := range []string{`0`, `"0"`, `0.0`} {
		got, err := Number(json.RawMessage(raw))
		if err != nil {
			t.Fatalf("Number(%s) error: %v", raw, err)
		}
		if got == nil || *got != 0 {
			t.Fatalf("Number(%s)=%v want 0", raw, got)
		}
	}

	for _, raw := range []string{``, `null`, `""`, `"  "`} {
		got, err := Number(json.RawMessage(raw))
		if err != nil || got != nil {
			t.Fatalf("Number(%s)=%v, %v want nil, nil", raw, got, err)
		}
	}
}

func TestNumber(t *testing.T) {
	cases := map[string]float64{
		`"4.3"`: 4.3,
		`4.3`:   4.3,
		`"4"`:   4,
	}
	for raw, want := range cases {
		got, err := Number(json.RawMessage(raw))
		if err != nil || got == nil || *got != want {
			t.Fatalf("Number(%s)=%v, %v want %v", raw, got, err, want)
		}
	}

	if _, err := Number(json.RawMessage(`"4.3 out of 5"`)); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if _, err := Number(json.RawMessage(`true`)); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for bool, got %v", err)
	}
}

func TestCount(t *testing.T) {
	got, err := Count(json.RawMessage(`"12,345"`))
	if err != nil || got == nil || *got != 12345 {
		t.Fatalf("Count: got %v, %v", got, err)
	}

	got, err = Count(json.RawMessage(`812`))
	if err != nil || got == nil || *got != 812 {
		t.Fatalf("Count: got %v, %v", got, err)
	}

	got, err = Count(json.RawMessage(`0`))
	if err != nil || got == nil || *got != 0 {
		t.Fatalf("Count zero: got %v, %v", got, err)
	}

	if _, err := Count(json.RawMessage(`12.5`)); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for fraction, got %v", err)
	}

	got, err = Count(nil)
	if err != nil || got != nil {
		t.Fatalf("Count(nil)=%v, %v want nil, nil", got, err)
	}

	for _, raw := range []string{`1e30`, `"-1e19"`, `9223372036854775808`} {
		if got, err := Count(json.RawMessage(raw)); !errors.Is(err, ErrMalformed) || got != nil {
			t.Fatalf("Count(%s): expected ErrMalformed for out-of-range value, got %v, %v", raw, got, err)
		}
	}
}

func TestTruthy(t *testing.T) {
	cases := map[string]bool{
		`true`:    true,
		`false`:   false,
		`1`:       true,
		`0`:       false,
		`"yes"`:   true,
		`"false"`: false,
		`""`:      false,
		`null`:    false,
		``:        false,
	}
	for raw, want := range cases {
		if got := Truthy(json.RawMessage(raw)); got != want {
			t.Fatalf("Truthy(%s)=%v want %v", raw, got, want)
		}
	}
}
