// Package raster renders labeled series as PNG images with go-chart.
package raster

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"techbiz/internal/charts"
	"techbiz/internal/core"
)

const (
	DefaultWidth  = 640
	DefaultHeight = 320
	noData        = "no data"
)

// Bar writes a PNG bar chart. Negative values draw as zero because go-chart
// bars grow from the axis minimum.
func Bar(w io.Writer, title string, points []core.LabeledPoint, width, height int) error {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	maxV := 1.0
	bars := make([]chart.Value, 0, len(points))
	for i, p := range points {
		v := clamp(p.Value)
		maxV = math.Max(maxV, v)
		bars = append(bars, chart.Value{
			Label: p.Label,
			Value: v,
			Style: chart.Style{FillColor: color(charts.Color(i)), StrokeColor: color(charts.Color(i))},
		})
	}
	if len(bars) == 0 {
		bars = append(bars, chart.Value{Label: noData, Value: 0})
	}

	graph := chart.BarChart{
		Title: title,
		TitleStyle: chart.Style{
			FontSize:  14,
			FontColor: drawing.ColorBlack,
		},
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		Width:    width,
		Height:   height,
		BarWidth: barWidth(width, len(bars)),
		Bars:     bars,
		XAxis:    chart.Style{FontSize: 9},
		YAxis: chart.YAxis{
			Style: chart.Style{FontSize: 9},
			Range: &chart.ContinuousRange{Min: 0, Max: maxV},
		},
	}
	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render bar chart %q: %w", title, err)
	}
	return nil
}

// Pie writes a PNG pie chart of the positive values. An all-zero series
// renders a single grey "no data" slice.
func Pie(w io.Writer, title string, points []core.LabeledPoint, size int) error {
	if size <= 0 {
		size = charts.DefaultPieSize
	}
	values := make([]chart.Value, 0, len(points))
	for i, p := range points {
		v := clamp(p.Value)
		if v <= 0 {
			continue
		}
		values = append(values, chart.Value{
			Label: p.Label,
			Value: v,
			Style: chart.Style{FillColor: color(charts.Color(i)), StrokeColor: drawing.ColorWhite},
		})
	}
	if len(values) == 0 {
		values = append(values, chart.Value{
			Label: noData,
			Value: 1,
			Style: chart.Style{FillColor: drawing.ColorFromHex("bdbdbd")},
		})
	}

	graph := chart.PieChart{
		Title:  title,
		Width:  size,
		Height: size,
		Values: values,
	}
	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render pie chart %q: %w", title, err)
	}
	return nil
}

func barWidth(width, n int) int {
	if n <= 0 {
		return 40
	}
	bw := (width - 80) / (2 * n)
	return max(4, min(bw, 80))
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func color(hex string) drawing.Color {
	return drawing.ColorFromHex(strings.TrimPrefix(hex, "#"))
}
