// Package core provides the record domain model for the technicians business.
//
// This file contains the nullable quantity type used for income, cost and hours,
// together with the lenient parsing rules applied to user and seed input.
package core

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Number is a nullable non-negative decimal quantity.
// The zero value is absent, which means "not yet recorded" rather than 0.
type Number struct {
	v     float64
	valid bool
}

// Num returns a present Number holding v.
func Num(v float64) Number {
	return Number{v: v, valid: true}
}

// Absent returns a Number with no value.
func Absent() Number {
	return Number{}
}

// Valid reports whether a value is recorded.
func (n Number) Valid() bool {
	return n.valid
}

// Float returns the stored value and whether it is present.
func (n Number) Float() (float64, bool) {
	return n.v, n.valid
}

// Value returns the value for arithmetic: absent, NaN and ±Inf all count as 0.
func (n Number) Value() float64 {
	if !n.valid || math.IsNaN(n.v) || math.IsInf(n.v, 0) {
		return 0
	}
	return n.v
}

// Ptr returns a pointer to the value, or nil when absent. Used by storage adapters.
func (n Number) Ptr() *float64 {
	if !n.valid {
		return nil
	}
	v := n.v
	return &v
}

// NumberFromPtr is the inverse of Ptr.
func NumberFromPtr(p *float64) Number {
	if p == nil {
		return Number{}
	}
	return Num(*p)
}

// String formats the value without trailing zeros; absent values format as "".
func (n Number) String() string {
	if !n.valid {
		return ""
	}
	return strconv.FormatFloat(n.v, 'f', -1, 64)
}

// ParseNumber converts user input into a Number.
//
// Empty input and input that is not a finite number yield an absent Number with a nil
// error: a malformed quantity is treated as "not recorded". Both dot (12.5) and comma
// (12,5) decimal separators are accepted. Negative values return ErrNegativeQuantity.
func ParseNumber(s string) (Number, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Number{}, nil
	}
	s = strings.ReplaceAll(s, ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return Number{}, nil
	}
	if f < 0 {
		return Number{}, ErrNegativeQuantity
	}
	return Num(f), nil
}

// MarshalJSON encodes absent values as null.
func (n Number) MarshalJSON() ([]byte, error) {
	if !n.valid || math.IsNaN(n.v) || math.IsInf(n.v, 0) {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(n.v, 'f', -1, 64)), nil
}

// UnmarshalJSON accepts a number, a numeric string or null.
// Anything else decodes as absent instead of failing the whole document.
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = Number{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*n = Number{}
			return nil
		}
		f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			*n = Number{}
			return nil
		}
		*n = Num(f)
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		*n = Number{}
		return nil
	}
	*n = Num(f)
	return nil
}
