package charts

import (
	"math"

	"techbiz/internal/core"
)

const (
	// DefaultBarHeight is used when the caller passes a non-positive height.
	DefaultBarHeight = 220

	barTopMargin   = 30
	barBaseline    = 20
	barInset       = 5
	barGap         = 8
	barMinWidth    = 24
	barLabelOffset = 6
	barLabelFontPx = 10
)

// Bar is the geometry of one series point.
type Bar struct {
	Point core.LabeledPoint
	Rect  Rect
	Label Label
}

// BarChart is a categorical bar layout. Horizontal coordinates are percent of
// the surface width; vertical coordinates are pixels.
type BarChart struct {
	Height float64
	Max    float64
	Bars   []Bar
}

// Shapes returns every rectangle followed by every label.
func (c BarChart) Shapes() []Shape {
	out := make([]Shape, 0, 2*len(c.Bars))
	for _, b := range c.Bars {
		out = append(out, b.Rect)
	}
	for _, b := range c.Bars {
		out = append(out, b.Label)
	}
	return out
}

// LayoutBars maps points to bars on a surface of the given pixel height.
//
// The tallest bar reaches height-30 and every bar rests on a baseline 20px
// above the bottom edge. Values at or below zero draw as zero-height bars.
func LayoutBars(points []core.LabeledPoint, height float64) BarChart {
	if height <= 0 {
		height = DefaultBarHeight
	}
	chart := BarChart{Height: height, Max: 1}
	n := len(points)
	if n == 0 {
		return chart
	}
	for _, p := range points {
		if finite(p.Value) && p.Value > chart.Max {
			chart.Max = p.Value
		}
	}
	usable := height - barTopMargin
	if usable < 0 {
		usable = 0
	}
	slot := 100 / float64(n)
	width := math.Max(barMinWidth, math.Floor(slot-barGap))
	chart.Bars = make([]Bar, n)
	for i, p := range points {
		x := float64(i)*slot + barInset
		h := 0.0
		if finite(p.Value) {
			h = p.Value / chart.Max * usable
		}
		h = math.Min(math.Max(h, 0), usable)
		y := height - h - barBaseline
		chart.Bars[i] = Bar{
			Point: p,
			Rect:  Rect{X: Pct(x), Y: Px(y), Width: Pct(width), Height: Px(h), Fill: barFill},
			Label: Label{X: Pct(x + 1), Y: Px(height - barLabelOffset), Text: p.Label, FontSize: barLabelFontPx, Fill: labelFill},
		}
	}
	return chart
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
