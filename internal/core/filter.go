package core

import (
	"slices"
	"strings"
)

// Filter selects the record subset shown on the analytics page.
// Dates compare as strings, which is correct for ISO-8601.
type Filter struct {
	ServiceTypes []string // empty means any
	From         string   // inclusive, empty means unbounded
	To           string   // inclusive, empty means unbounded
}

// IsZero reports whether the filter restricts nothing.
func (f Filter) IsZero() bool {
	return len(f.ServiceTypes) == 0 && f.From == "" && f.To == ""
}

// Matches reports whether r passes the filter.
func (f Filter) Matches(r Record) bool {
	if len(f.ServiceTypes) > 0 && !slices.Contains(f.ServiceTypes, r.ServiceType) {
		return false
	}
	if f.From != "" && r.Date < f.From {
		return false
	}
	if f.To != "" && r.Date > f.To {
		return false
	}
	return true
}

// Apply returns the matching records as a fresh slice.
func (f Filter) Apply(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// Key is a stable cache key for the filter.
func (f Filter) Key() string {
	types := slices.Clone(f.ServiceTypes)
	slices.Sort(types)
	types = slices.Compact(types)
	return strings.Join(types, "\x1f") + "|" + f.From + "|" + f.To
}

// ServiceOptions returns the distinct service types in first-seen order.
func ServiceOptions(records []Record) []string {
	seen := make(map[string]struct{}, len(records))
	var out []string
	for _, r := range records {
		if _, ok := seen[r.ServiceType]; ok {
			continue
		}
		seen[r.ServiceType] = struct{}{}
		out = append(out, r.ServiceType)
	}
	return out
}
