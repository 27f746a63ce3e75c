package http

import (
	"errors"
	"math"
	"net/http"

	"github.com/dustin/go-humanize"

	"techbiz/internal/core"
	"techbiz/internal/log"
)

// formatMoney renders an amount with thousands separators and two decimals.
func formatMoney(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	return humanize.FormatFloat("#,###.##", v)
}

// formatNumber renders a nullable grid number; absent values render empty.
func formatNumber(n core.Number) string {
	v, ok := n.Float()
	if !ok {
		return ""
	}
	return humanize.CommafWithDigits(v, 2)
}

// formatHours renders a plain total with separators.
func formatHours(v float64) string {
	return humanize.CommafWithDigits(v, 2)
}

// writeServiceError maps domain errors to HTMX error fragments.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, op string) {
	switch {
	case errors.Is(err, core.ErrForbidden):
		errorFragment(http.StatusForbidden, "You do not have permission to change records").Write(w)
	case errors.Is(err, core.ErrNotFound):
		errorFragment(http.StatusNotFound, "Record not found").Write(w)
	case errors.Is(err, core.ErrUnknownField),
		errors.Is(err, core.ErrNegativeQuantity),
		errors.Is(err, core.ErrInvalidConfirm),
		errors.Is(err, core.ErrInvalidDate):
		errorFragment(http.StatusUnprocessableEntity, err.Error()).Write(w)
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Record operation failed",
			log.FieldOperation, op,
			log.FieldError, err,
			"error_type", log.ErrorTypeInternal)
		errorFragment(http.StatusInternalServerError, "Error saving record").Write(w)
	}
}
