package core

import (
	"errors"
	"regexp"
	"strings"
)

// DefaultStatus is the status given to freshly added rows.
const DefaultStatus = "Pending"

type (
	// Record is one job entry in the business grid.
	Record struct {
		ID          int64      `json:"id"`
		Name        string     `json:"name"`
		Date        string     `json:"date"` // ISO-8601 YYYY-MM-DD, may be empty
		Place       string     `json:"place"`
		ServiceType string     `json:"serviceType"`
		Income      Number     `json:"income"`
		Cost        Number     `json:"cost"`
		Hours       Number     `json:"hours"`
		Status      string     `json:"status"`
		Notes       string     `json:"notes"`
		Confirms    ConfirmSet `json:"confirms"`
	}

	// LabeledPoint is one bucket of an aggregated series.
	LabeledPoint struct {
		Label string  `json:"label"`
		Value float64 `json:"value"`
	}
)

var (
	ErrForbidden        = errors.New("operation not permitted for role")
	ErrNotFound         = errors.New("record not found")
	ErrUnknownField     = errors.New("unknown field")
	ErrNegativeQuantity = errors.New("quantity cannot be negative")
	ErrInvalidConfirm   = errors.New("invalid confirm kind")
	ErrInvalidDate      = errors.New("invalid date (expected YYYY-MM-DD)")
)

var isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// NewRecord returns the blank row added by "add job".
func NewRecord(id int64) Record {
	return Record{ID: id, Status: DefaultStatus}
}

// Profit is income minus cost, with absent values counting as 0.
func (r Record) Profit() float64 {
	return r.Income.Value() - r.Cost.Value()
}

// RowClass maps the number of confirmations to the grid row style.
func (r Record) RowClass() string {
	switch r.Confirms.Len() {
	case 0:
		return ""
	case 1:
		return "row-yellow"
	default:
		return "row-green"
	}
}

// Clone returns a deep copy.
func (r Record) Clone() Record {
	r.Confirms = r.Confirms.Clone()
	return r
}

// Validate checks the stored shape of a record. Empty dates are allowed for new rows.
func (r Record) Validate() error {
	if r.Date != "" && !isoDate.MatchString(r.Date) {
		return ErrInvalidDate
	}
	for _, n := range []Number{r.Income, r.Cost, r.Hours} {
		if v, ok := n.Float(); ok && v < 0 {
			return ErrNegativeQuantity
		}
	}
	if len(r.Name) > 200 || len(r.Place) > 200 || len(r.ServiceType) > 200 || len(r.Status) > 100 {
		return errors.New("text field too long")
	}
	if len(r.Notes) > 2000 {
		return errors.New("notes too long (max 2000 characters)")
	}
	return nil
}

// CloneAll deep-copies a slice of records.
func CloneAll(in []Record) []Record {
	out := make([]Record, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}

// Sanitize removes control characters except tab, newline and carriage return, and trims.
func Sanitize(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
