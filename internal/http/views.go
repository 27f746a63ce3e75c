package http

import (
	"html/template"
	"slices"

	"techbiz/internal/analytics"
	"techbiz/internal/auth"
	"techbiz/internal/charts"
	"techbiz/internal/charts/svg"
	"techbiz/internal/core"
)

type (
	cellView struct {
		RecordID  int64
		Editable  bool
		Field     core.Field
		Label     string
		Value     string // raw value for the edit input
		Display   string
		InputType string
	}

	confirmView struct {
		Kind    core.ConfirmKind
		Label   string
		Checked bool
	}

	rowView struct {
		ID       int64
		CanEdit  bool
		RowClass string
		Leading  []cellView // name .. cost
		Profit   string
		Trailing []cellView // hours .. notes
		Confirms []confirmView
	}

	fieldOption struct {
		Field    core.Field
		Label    string
		Selected bool
	}

	gridTotals struct {
		Income, Cost, Profit, Hours string
	}

	gridPage struct {
		Session      auth.Session
		Query        string
		FieldOptions []fieldOption
		Headers      []string
		Rows         []rowView
		Count        int
		Totals       gridTotals
		ExportCSV    template.URL
		ExportXLSX   template.URL
	}

	serviceOption struct {
		Name     string
		Selected bool
	}

	legendView struct {
		Label   string
		Color   string
		Value   string
		Percent string // empty when the series has no positive total
	}

	chartView struct {
		Name   string
		Title  string
		Markup template.HTML
		Legend []legendView
		SVG    template.URL
		PNG    template.URL
	}

	analyticsPage struct {
		Session  auth.Session
		From, To string
		Services []serviceOption
		Count    int
		Totals   gridTotals
		Charts   []chartView
		Filtered bool
	}

	loginPage struct {
		Username string
		Next     string
		Error    string
	}
)

var gridHeaders = []string{
	core.FieldName.Label(), core.FieldDate.Label(), core.FieldPlace.Label(), core.FieldServiceType.Label(),
	core.FieldIncome.Label(), core.FieldCost.Label(), "Profit", core.FieldHours.Label(),
	core.FieldStatus.Label(), core.FieldNotes.Label(), "Confirms",
}

var (
	leadingFields  = []core.Field{core.FieldName, core.FieldDate, core.FieldPlace, core.FieldServiceType, core.FieldIncome, core.FieldCost}
	trailingFields = []core.Field{core.FieldHours, core.FieldStatus, core.FieldNotes}
)

// chartOrder is the analytics page layout: two bar charts and a donut.
var chartOrder = []string{
	analytics.SeriesRevenueByDate,
	analytics.SeriesProfitByService,
	analytics.SeriesIncomeByName,
}

func isPieChart(name string) bool {
	return name == analytics.SeriesIncomeByName
}

func newCell(r core.Record, f core.Field, canEdit bool) cellView {
	raw, _ := r.Text(f)
	c := cellView{RecordID: r.ID, Editable: canEdit, Field: f, Label: f.Label(), Value: raw, Display: raw, InputType: "text"}
	switch {
	case f == core.FieldDate:
		c.InputType = "date"
	case f == core.FieldIncome:
		c.InputType, c.Display = "number", formatNumber(r.Income)
	case f == core.FieldCost:
		c.InputType, c.Display = "number", formatNumber(r.Cost)
	case f == core.FieldHours:
		c.InputType, c.Display = "number", formatNumber(r.Hours)
	}
	return c
}

func newRowView(r core.Record, canEdit bool) rowView {
	v := rowView{
		ID:       r.ID,
		CanEdit:  canEdit,
		RowClass: r.RowClass(),
		Profit:   formatMoney(r.Profit()),
	}
	for _, f := range leadingFields {
		v.Leading = append(v.Leading, newCell(r, f, canEdit))
	}
	for _, f := range trailingFields {
		v.Trailing = append(v.Trailing, newCell(r, f, canEdit))
	}
	for _, k := range core.ConfirmKinds {
		v.Confirms = append(v.Confirms, confirmView{Kind: k, Label: k.Label(), Checked: r.Confirms.Has(k)})
	}
	return v
}

func newRowViews(records []core.Record, canEdit bool) []rowView {
	rows := make([]rowView, 0, len(records))
	for _, r := range records {
		rows = append(rows, newRowView(r, canEdit))
	}
	return rows
}

func totalsOf(records []core.Record) gridTotals {
	var income, cost, hours float64
	for _, r := range records {
		income += r.Income.Value()
		cost += r.Cost.Value()
		hours += r.Hours.Value()
	}
	return gridTotals{
		Income: formatMoney(income),
		Cost:   formatMoney(cost),
		Profit: formatMoney(income - cost),
		Hours:  formatHours(hours),
	}
}

func newGridPage(s auth.Session, search core.Search, records []core.Record) gridPage {
	p := gridPage{
		Session: s,
		Query:   search.Query,
		Headers: gridHeaders,
		Rows:    newRowViews(records, s.CanEdit()),
		Count:   len(records),
		Totals:  totalsOf(records),
	}
	for _, f := range core.Fields {
		p.FieldOptions = append(p.FieldOptions, fieldOption{Field: f, Label: f.Label(), Selected: slices.Contains(search.Fields, f)})
	}
	enc := searchQuery(search).Encode()
	p.ExportCSV = template.URL("/export/records.csv?" + enc)   // #nosec G203 -- url.Values encoded
	p.ExportXLSX = template.URL("/export/records.xlsx?" + enc) // #nosec G203 -- url.Values encoded
	return p
}

func newAnalyticsPage(s auth.Session, res analyticsResult) analyticsPage {
	sum := res.Summary
	p := analyticsPage{
		Session:  s,
		From:     sum.Filter.From,
		To:       sum.Filter.To,
		Count:    sum.Count,
		Filtered: !sum.Filter.IsZero(),
		Totals: gridTotals{
			Income: formatMoney(sum.TotalIncome),
			Cost:   formatMoney(sum.TotalCost),
			Profit: formatMoney(sum.TotalProfit()),
			Hours:  formatHours(sum.TotalHours),
		},
	}
	for _, name := range res.Services {
		p.Services = append(p.Services, serviceOption{Name: name, Selected: slices.Contains(sum.Filter.ServiceTypes, name)})
	}
	enc := filterQuery(sum.Filter).Encode()
	if enc != "" {
		enc = "?" + enc
	}
	for _, name := range chartOrder {
		points, _ := sum.Series(name)
		cv := chartView{
			Name:  name,
			Title: analytics.SeriesTitle(name),
			SVG:   template.URL("/analytics/charts/" + name + ".svg" + enc), // #nosec G203 -- url.Values encoded
			PNG:   template.URL("/analytics/charts/" + name + ".png" + enc), // #nosec G203 -- url.Values encoded
		}
		if isPieChart(name) {
			pie := charts.LayoutPie(points, 0)
			cv.Markup = svg.PieMarkup(pie)
			for _, e := range pie.Legend {
				cv.Legend = append(cv.Legend, legendView{Label: e.Label, Color: e.Color, Value: formatMoney(e.Value), Percent: e.PercentText})
			}
		} else {
			cv.Markup = svg.BarMarkup(charts.LayoutBars(points, 0))
		}
		p.Charts = append(p.Charts, cv)
	}
	return p
}
