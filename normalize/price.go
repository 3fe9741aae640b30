// Package normalize converts locale-formatted values from the product API
// into numbers. Nothing here panics or logs; callers decide how to report
// a malformed value.
package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ErrMalformed is wrapped by every parse failure in this package
var ErrMalformed = errors.New("malformed numeric value")

var currencyPrefixes = []string{"INR", "Rs.", "Rs", "USD", "EUR", "GBP"}

// Price parses strings such as "₹2,999", "$1,299.50" or "Rs. 499".
// An empty string yields (nil, nil): the price is unavailable, not broken.
func Price(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	cleaned := strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Sc, r) || isSeparator(r) {
			return -1
		}
		return r
	}, s)
	cleaned = strings.TrimSpace(cleaned)
	for _, prefix := range currencyPrefixes {
		if strings.HasPrefix(cleaned, prefix) {
			cleaned = strings.TrimSpace(strings.TrimPrefix(cleaned, prefix))
			break
		}
	}

	v, err := parseFloat(cleaned)
	if err != nil {
		return nil, fmt.Errorf("price %q: %w", s, err)
	}
	return &v, nil
}

// PriceJSON accepts the raw product_price field, which the API sends as a
// formatted string, a bare number or null.
func PriceJSON(raw json.RawMessage) (*float64, error) {
	switch kind(raw) {
	case kindNull:
		return nil, nil
	case kindString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("price %s: %w", raw, ErrMalformed)
		}
		return Price(s)
	case kindNumber:
		return Number(raw)
	}
	return nil, fmt.Errorf("price %s: %w", raw, ErrMalformed)
}

// Number parses a rating-like field given as a JSON number or numeric string.
// Absent, null and "" are unavailable; a present zero is 0.
func Number(raw json.RawMessage) (*float64, error) {
	switch kind(raw) {
	case kindNull:
		return nil, nil
	case kindNumber:
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("number %s: %w", raw, ErrMalformed)
		}
		return &v, nil
	case kindString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("number %s: %w", raw, ErrMalformed)
		}
		s = strings.Map(func(r rune) rune {
			if isSeparator(r) {
				return -1
			}
			return r
		}, strings.TrimSpace(s))
		if s == "" {
			return nil, nil
		}
		v, err := parseFloat(s)
		if err != nil {
			return nil, fmt.Errorf("number %q: %w", s, err)
		}
		return &v, nil
	}
	return nil, fmt.Errorf("number %s: %w", raw, ErrMalformed)
}

// Count is Number restricted to whole values, used for rating counts
func Count(raw json.RawMessage) (*int64, error) {
	v, err := Number(raw)
	if err != nil || v == nil {
		return nil, err
	}
	if *v != math.Trunc(*v) {
		return nil, fmt.Errorf("count %s is not whole: %w", raw, ErrMalformed)
	}
	if math.Abs(*v) >= 1<<63 {
		return nil, fmt.Errorf("count %s is out of range: %w", raw, ErrMalformed)
	}
	n := int64(*v)
	return &n, nil
}

// Truthy interprets flags such as is_verified_purchase. Strings other than
// "", "0" and "false" count as true, as do non-zero numbers.
func Truthy(raw json.RawMessage) bool {
	switch kind(raw) {
	case kindBool:
		return bytes.Equal(bytes.TrimSpace(raw), []byte("true"))
	case kindNumber:
		var v float64
		return json.Unmarshal(raw, &v) == nil && v != 0
	case kindString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "", "0", "false":
			return false
		}
		return true
	}
	return false
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrMalformed
	}
	return v, nil
}

func isSeparator(r rune) bool {
	switch r {
	case ',', ' ', '\u00a0', '\u202f', '\u2009', '\'':
		return true
	}
	return false
}

type jsonKind int

const (
	kindNull jsonKind = iota
	kindString
	kindNumber
	kindBool
	kindOther
)

func kind(raw json.RawMessage) jsonKind {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return kindNull
	}
	switch c := trimmed[0]; {
	case c == '"':
		return kindString
	case c == '-' || (c >= '0' && c <= '9'):
		return kindNumber
	case c == 't' || c == 'f':
		return kindBool
	}
	return kindOther
}
