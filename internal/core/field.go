package core

import (
	"strings"
)

// Field names a record column that can be searched and edited.
type Field string

const (
	FieldName        Field = "name"
	FieldDate        Field = "date"
	FieldPlace       Field = "place"
	FieldServiceType Field = "serviceType"
	FieldIncome      Field = "income"
	FieldCost        Field = "cost"
	FieldHours       Field = "hours"
	FieldStatus      Field = "status"
	FieldNotes       Field = "notes"
)

// Fields lists the searchable and editable columns in grid order.
var Fields = []Field{
	FieldName, FieldDate, FieldPlace, FieldServiceType,
	FieldIncome, FieldCost, FieldHours, FieldStatus, FieldNotes,
}

// DefaultSearchFields is the initial selection of the search field picker.
var DefaultSearchFields = []Field{FieldName, FieldPlace, FieldServiceType, FieldNotes}

// Label is the column header.
func (f Field) Label() string {
	switch f {
	case FieldName:
		return "Job / Technician"
	case FieldDate:
		return "Date"
	case FieldPlace:
		return "Place"
	case FieldServiceType:
		return "Service type"
	case FieldIncome:
		return "Income"
	case FieldCost:
		return "Cost"
	case FieldHours:
		return "Hours"
	case FieldStatus:
		return "Status"
	case FieldNotes:
		return "Notes"
	}
	return string(f)
}

// IsValid reports whether f names a known column.
func (f Field) IsValid() bool {
	for _, k := range Fields {
		if k == f {
			return true
		}
	}
	return false
}

// IsNumeric reports whether the column holds a Number.
func (f Field) IsNumeric() bool {
	return f == FieldIncome || f == FieldCost || f == FieldHours
}

// ParseFields keeps the valid, distinct field names from raw.
func ParseFields(raw []string) []Field {
	seen := map[Field]bool{}
	var out []Field
	for _, v := range raw {
		f := Field(strings.TrimSpace(v))
		if !f.IsValid() || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// Text returns the string form of a column, used by search and export.
// The boolean is false for absent numbers.
func (r Record) Text(f Field) (string, bool) {
	switch f {
	case FieldName:
		return r.Name, true
	case FieldDate:
		return r.Date, true
	case FieldPlace:
		return r.Place, true
	case FieldServiceType:
		return r.ServiceType, true
	case FieldIncome:
		return r.Income.String(), r.Income.Valid()
	case FieldCost:
		return r.Cost.String(), r.Cost.Valid()
	case FieldHours:
		return r.Hours.String(), r.Hours.Valid()
	case FieldStatus:
		return r.Status, true
	case FieldNotes:
		return r.Notes, true
	}
	return "", false
}

// ApplyEdit returns r with one cell changed from raw user input.
//
// Numeric columns treat empty or non-numeric input as absent. Text columns are sanitized.
func ApplyEdit(r Record, f Field, raw string) (Record, error) {
	if !f.IsValid() {
		return r, ErrUnknownField
	}
	if f.IsNumeric() {
		n, err := ParseNumber(raw)
		if err != nil {
			return r, err
		}
		switch f {
		case FieldIncome:
			r.Income = n
		case FieldCost:
			r.Cost = n
		case FieldHours:
			r.Hours = n
		}
		return r, nil
	}
	v := Sanitize(raw)
	switch f {
	case FieldName:
		r.Name = v
	case FieldDate:
		if v != "" && !isoDate.MatchString(v) {
			return r, ErrInvalidDate
		}
		r.Date = v
	case FieldPlace:
		r.Place = v
	case FieldServiceType:
		r.ServiceType = v
	case FieldStatus:
		r.Status = v
	case FieldNotes:
		r.Notes = v
	}
	return r, nil
}

// Search is the grid quick filter: a query matched against a set of fields.
type Search struct {
	Query  string
	Fields []Field
}

// Matches reports whether r contains the query, case-insensitively, in any selected field.
func (s Search) Matches(r Record) bool {
	q := strings.ToLower(strings.TrimSpace(s.Query))
	if q == "" {
		return true
	}
	for _, f := range s.Fields {
		v, ok := r.Text(f)
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(v), q) {
			return true
		}
	}
	return false
}

// Apply returns the matching records as a fresh slice.
func (s Search) Apply(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if s.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}
