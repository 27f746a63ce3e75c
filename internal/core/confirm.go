package core

import (
	"encoding/json"
	"strings"
)

// ConfirmKind is a confirmation tag that can be attached to a record.
type ConfirmKind string

const (
	ConfirmRoom   ConfirmKind = "room"
	ConfirmOffice ConfirmKind = "office"
)

// ConfirmKinds lists every kind in canonical order.
var ConfirmKinds = []ConfirmKind{ConfirmRoom, ConfirmOffice}

// Label is the display name used in the grid select.
func (k ConfirmKind) Label() string {
	switch k {
	case ConfirmRoom:
		return "Room"
	case ConfirmOffice:
		return "Office"
	}
	return string(k)
}

// IsValid reports whether k belongs to the fixed enumeration.
func (k ConfirmKind) IsValid() bool {
	switch k {
	case ConfirmRoom, ConfirmOffice:
		return true
	}
	return false
}

// ConfirmSet is a set of confirm kinds. Adding a kind twice has no effect.
type ConfirmSet struct {
	bits uint8
}

func (k ConfirmKind) bit() uint8 {
	for i, c := range ConfirmKinds {
		if c == k {
			return 1 << i
		}
	}
	return 0
}

// NewConfirmSet builds a set, ignoring duplicates.
func NewConfirmSet(kinds ...ConfirmKind) ConfirmSet {
	var s ConfirmSet
	for _, k := range kinds {
		s.bits |= k.bit()
	}
	return s
}

// ParseConfirms parses raw tags, collapsing duplicates and rejecting unknown kinds.
// Blank entries are skipped.
func ParseConfirms(raw []string) (ConfirmSet, error) {
	var s ConfirmSet
	for _, v := range raw {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		k := ConfirmKind(v)
		if !k.IsValid() {
			return ConfirmSet{}, ErrInvalidConfirm
		}
		s.bits |= k.bit()
	}
	return s, nil
}

// Has reports membership.
func (s ConfirmSet) Has(k ConfirmKind) bool {
	b := k.bit()
	return b != 0 && s.bits&b != 0
}

// Len returns the number of distinct kinds in the set.
func (s ConfirmSet) Len() int {
	n := 0
	for _, k := range ConfirmKinds {
		if s.Has(k) {
			n++
		}
	}
	return n
}

// Kinds returns members in canonical order.
func (s ConfirmSet) Kinds() []ConfirmKind {
	out := make([]ConfirmKind, 0, len(ConfirmKinds))
	for _, k := range ConfirmKinds {
		if s.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

// Clone returns a copy; ConfirmSet is a value type so this is trivial.
func (s ConfirmSet) Clone() ConfirmSet {
	return s
}

// String joins members with ", " as shown in the grid.
func (s ConfirmSet) String() string {
	kinds := s.Kinds()
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return strings.Join(parts, ", ")
}

// MarshalJSON encodes the set as a JSON array of strings.
func (s ConfirmSet) MarshalJSON() ([]byte, error) {
	kinds := s.Kinds()
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes an array of strings; unknown tags are rejected.
func (s *ConfirmSet) UnmarshalJSON(data []byte) error {
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	set, err := ParseConfirms(raw)
	if err != nil {
		return err
	}
	*s = set
	return nil
}
