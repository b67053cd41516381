package model

import (
	"math/big"
	"strconv"

	"github.com/nereid-dev/nereid/pkg/schema"
)

// OrderKey is a sparse orderable value allowing stable insertion between two
// sibling messages without renumbering. Keys are canonical decimal strings;
// midpoints always have power-of-two denominators so every generated key has
// a finite decimal form.
type OrderKey string

// OrderKeyFromIndex returns the integer key for a 1-based position.
func OrderKeyFromIndex(i int) OrderKey {
	return OrderKey(strconv.Itoa(i))
}

func (k OrderKey) rat() (*big.Rat, bool) {
	r := new(big.Rat)
	if _, ok := r.SetString(string(k)); !ok {
		return nil, false
	}
	return r, true
}

// Valid reports whether the key parses as a decimal number.
func (k OrderKey) Valid() bool {
	_, ok := k.rat()
	return ok
}

// CompareOrderKeys orders keys numerically; keys that fail to parse sort
// after all valid keys, lexically among themselves.
func CompareOrderKeys(a, b OrderKey) int {
	ra, oka := a.rat()
	rb, okb := b.rat()
	switch {
	case oka && okb:
		return ra.Cmp(rb)
	case oka:
		return -1
	case okb:
		return 1
	default:
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		default:
			return 0
		}
	}
}

// OrderKeyBetween returns the midpoint key between a and b. Either side may
// be empty: before the first key, after the last key, or "1" for an empty
// collection.
func OrderKeyBetween(a, b OrderKey) (OrderKey, error) {
	switch {
	case a == "" && b == "":
		return "1", nil
	case a == "":
		rb, ok := b.rat()
		if !ok {
			return "", schema.NewErrorf(schema.ErrCodeInvalidParams, "invalid order key %q", b)
		}
		return ratKey(new(big.Rat).Sub(rb, big.NewRat(1, 1))), nil
	case b == "":
		ra, ok := a.rat()
		if !ok {
			return "", schema.NewErrorf(schema.ErrCodeInvalidParams, "invalid order key %q", a)
		}
		return ratKey(new(big.Rat).Add(ra, big.NewRat(1, 1))), nil
	}
	ra, oka := a.rat()
	rb, okb := b.rat()
	if !oka || !okb {
		return "", schema.NewErrorf(schema.ErrCodeInvalidParams, "invalid order keys %q, %q", a, b)
	}
	if ra.Cmp(rb) >= 0 {
		return "", schema.NewErrorf(schema.ErrCodeInvalidParams, "order key %q is not below %q", a, b)
	}
	mid := new(big.Rat).Add(ra, rb)
	mid.Quo(mid, big.NewRat(2, 1))
	return ratKey(mid), nil
}

func ratKey(r *big.Rat) OrderKey {
	if r.IsInt() {
		return OrderKey(r.Num().String())
	}
	// Denominator is a power of two by construction, so the expansion is
	// exact at some finite precision.
	prec := r.Denom().BitLen()
	s := r.FloatString(prec)
	// Trim trailing zeros and a dangling decimal point.
	for len(s) > 0 && s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if len(s) > 0 && s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	return OrderKey(s)
}
