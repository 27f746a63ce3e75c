package analytics

import "techbiz/internal/core"

// Summary bundles the analytics page series for one filter.
type Summary struct {
	Filter          core.Filter
	Count           int
	TotalIncome     float64
	TotalCost       float64
	TotalHours      float64
	RevenueByDate   []core.LabeledPoint
	ProfitByService []core.LabeledPoint
	IncomeByName    []core.LabeledPoint
}

// TotalProfit is income minus cost over the filtered records.
func (s Summary) TotalProfit() float64 {
	return s.TotalIncome - s.TotalCost
}

// Series returns a series by its chart name, as used in chart URLs.
func (s Summary) Series(name string) ([]core.LabeledPoint, bool) {
	switch name {
	case SeriesRevenueByDate:
		return s.RevenueByDate, true
	case SeriesProfitByService:
		return s.ProfitByService, true
	case SeriesIncomeByName:
		return s.IncomeByName, true
	}
	return nil, false
}

// Chart names.
const (
	SeriesRevenueByDate   = "revenue-by-date"
	SeriesProfitByService = "profit-by-service"
	SeriesIncomeByName    = "income-by-name"
)

// SeriesTitle is the human heading for a chart name.
func SeriesTitle(name string) string {
	switch name {
	case SeriesRevenueByDate:
		return "Revenue by date"
	case SeriesProfitByService:
		return "Profit by service type"
	case SeriesIncomeByName:
		return "Income by technician / job"
	}
	return name
}

// Summarize filters records and computes every series.
func Summarize(records []core.Record, f core.Filter) Summary {
	filtered := f.Apply(records)
	s := Summary{
		Filter:          f,
		Count:           len(filtered),
		RevenueByDate:   RevenueByDate(filtered),
		ProfitByService: ProfitByService(filtered),
		IncomeByName:    IncomeByName(filtered),
	}
	for _, r := range filtered {
		s.TotalIncome += r.Income.Value()
		s.TotalCost += r.Cost.Value()
		s.TotalHours += r.Hours.Value()
	}
	return s
}
