// Package analytics groups filtered records into labeled series for charting.
package analytics

import (
	"math"
	"slices"
	"strings"

	"techbiz/internal/core"
)

// AggregateSum groups items by key and sums value per group.
// Groups appear in first-seen order. Non-finite contributions count as 0.
func AggregateSum[T any](items []T, key func(T) string, value func(T) float64) []core.LabeledPoint {
	out := make([]core.LabeledPoint, 0, len(items))
	index := make(map[string]int, len(items))
	for _, it := range items {
		k := key(it)
		v := value(it)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		if i, ok := index[k]; ok {
			out[i].Value += v
			continue
		}
		index[k] = len(out)
		out = append(out, core.LabeledPoint{Label: k, Value: v})
	}
	return out
}

// RevenueByDate sums income per date, sorted ascending by date.
func RevenueByDate(records []core.Record) []core.LabeledPoint {
	pts := AggregateSum(records,
		func(r core.Record) string { return r.Date },
		func(r core.Record) float64 { return r.Income.Value() },
	)
	slices.SortStableFunc(pts, func(a, b core.LabeledPoint) int {
		return strings.Compare(a.Label, b.Label)
	})
	return pts
}

// ProfitByService sums income minus cost per service type.
func ProfitByService(records []core.Record) []core.LabeledPoint {
	return AggregateSum(records,
		func(r core.Record) string { return r.ServiceType },
		func(r core.Record) float64 { return r.Profit() },
	)
}

// IncomeByName sums income per technician or job name.
func IncomeByName(records []core.Record) []core.LabeledPoint {
	return AggregateSum(records,
		func(r core.Record) string { return r.Name },
		func(r core.Record) float64 { return r.Income.Value() },
	)
}
