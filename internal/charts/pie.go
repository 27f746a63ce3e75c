package charts

import (
	"strconv"

	"techbiz/internal/core"
)

const (
	// DefaultPieSize is used when the caller passes a non-positive size.
	DefaultPieSize = 260

	pieInset = 10
)

// Segment is one slice of the ring. Value is the clamped, non-negative share.
type Segment struct {
	Label      string
	Value      float64
	Color      string
	StartAngle float64
	EndAngle   float64
}

// Span is the angular width in degrees.
func (s Segment) Span() float64 { return s.EndAngle - s.StartAngle }

// LegendEntry describes one point next to the ring.
// PercentText is empty when the series has no positive total.
type LegendEntry struct {
	Label       string
	Color       string
	Value       float64
	Percent     float64
	PercentText string
}

// PieChart is a donut layout on a square surface of side Size.
type PieChart struct {
	Size     float64
	Center   Point
	Radius   float64
	Total    float64
	Empty    bool
	Segments []Segment
	Legend   []LegendEntry
	Arcs     []Arc
}

// Shapes returns the drawable arcs.
func (c PieChart) Shapes() []Shape {
	out := make([]Shape, len(c.Arcs))
	for i, a := range c.Arcs {
		out[i] = a
	}
	return out
}

// LayoutPie maps points to ring segments proportional to their clamped share.
//
// Negative and non-finite values count as zero. When nothing is positive the
// chart is empty: segments have zero span, no arcs are produced and the legend
// carries no percentages.
func LayoutPie(points []core.LabeledPoint, size float64) PieChart {
	if size <= 0 {
		size = DefaultPieSize
	}
	c := Point{X: size / 2, Y: size / 2}
	chart := PieChart{
		Size:     size,
		Center:   c,
		Radius:   size/2 - pieInset,
		Segments: make([]Segment, 0, len(points)),
		Legend:   make([]LegendEntry, 0, len(points)),
	}

	clamped := make([]float64, len(points))
	var total float64
	for i, p := range points {
		if finite(p.Value) && p.Value > 0 {
			clamped[i] = p.Value
		}
		total += clamped[i]
	}
	chart.Total = total
	if total <= 0 {
		chart.Empty = true
		total = 1
	}

	var acc float64
	for i, p := range points {
		color := Color(i)
		start := 360 * acc / total
		acc += clamped[i]
		end := start + 360*clamped[i]/total
		seg := Segment{Label: p.Label, Value: clamped[i], Color: color, StartAngle: start, EndAngle: end}
		chart.Segments = append(chart.Segments, seg)

		entry := LegendEntry{Label: p.Label, Color: color, Value: clamped[i]}
		if !chart.Empty {
			entry.Percent = 100 * clamped[i] / total
			entry.PercentText = strconv.FormatFloat(entry.Percent, 'f', 1, 64)
		}
		chart.Legend = append(chart.Legend, entry)

		if seg.Span() <= 0 {
			continue
		}
		chart.Arcs = append(chart.Arcs, Arc{
			Center:      c,
			Radius:      chart.Radius,
			StartAngle:  start,
			EndAngle:    end,
			From:        Polar(c, chart.Radius, end),
			To:          Polar(c, chart.Radius, start),
			LargeArc:    seg.Span() > 180,
			Sweep:       false,
			Stroke:      color,
			StrokeWidth: size / 2,
		})
	}
	return chart
}
