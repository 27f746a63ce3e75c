// Package svg writes chart layouts as SVG markup.
package svg

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"strconv"
	"strings"

	"techbiz/internal/charts"
)

const xmlns = "http://www.w3.org/2000/svg"

// RenderBar writes a standalone bar chart. A positive width resolves percent
// coordinates to pixels; otherwise the chart stretches to its container.
func RenderBar(w io.Writer, c charts.BarChart, width float64) error {
	var b strings.Builder
	writeBar(&b, c, width, true)
	_, err := io.WriteString(w, b.String())
	return err
}

// RenderPie writes a standalone donut chart.
func RenderPie(w io.Writer, c charts.PieChart) error {
	var b strings.Builder
	writePie(&b, c, true)
	_, err := io.WriteString(w, b.String())
	return err
}

// BarMarkup returns the chart for inline use in an HTML page.
func BarMarkup(c charts.BarChart) template.HTML {
	var b strings.Builder
	writeBar(&b, c, 0, false)
	return template.HTML(b.String()) // #nosec G203 -- every text node is escaped
}

// PieMarkup returns the donut for inline use in an HTML page.
func PieMarkup(c charts.PieChart) template.HTML {
	var b strings.Builder
	writePie(&b, c, false)
	return template.HTML(b.String()) // #nosec G203 -- every text node is escaped
}

func writeBar(b *strings.Builder, c charts.BarChart, width float64, standalone bool) {
	h := num(c.Height)
	w := "100%"
	if width > 0 {
		w = num(width)
	}
	b.WriteString("<svg")
	if standalone {
		fmt.Fprintf(b, ` xmlns="%s"`, xmlns)
	}
	fmt.Fprintf(b, ` width="%s" height="%s" style="background:#fff" role="img">`, w, h)
	if standalone {
		b.WriteString(`<rect width="100%" height="100%" fill="#fff"/>`)
	}
	for _, s := range c.Shapes() {
		writeShape(b, s, width)
	}
	b.WriteString("</svg>")
}

func writePie(b *strings.Builder, c charts.PieChart, standalone bool) {
	size := num(c.Size)
	b.WriteString("<svg")
	if standalone {
		fmt.Fprintf(b, ` xmlns="%s"`, xmlns)
	}
	fmt.Fprintf(b, ` width="%s" height="%s" viewBox="0 0 %s %s" role="img">`, size, size, size, size)
	for _, a := range c.Arcs {
		writeArc(b, a, arcTitle(c, a))
	}
	b.WriteString("</svg>")
}

// arcTitle finds the legend entry drawn by an arc. Zero-span segments have
// no arc, so arcs and legend entries are matched by angle.
func arcTitle(c charts.PieChart, a charts.Arc) string {
	for j, s := range c.Segments {
		if s.StartAngle == a.StartAngle && s.EndAngle == a.EndAngle && s.Span() > 0 {
			e := c.Legend[j]
			if e.PercentText == "" {
				return e.Label
			}
			return e.Label + " " + e.PercentText + "%"
		}
	}
	return ""
}

func writeShape(b *strings.Builder, s charts.Shape, width float64) {
	switch v := s.(type) {
	case charts.Rect:
		fmt.Fprintf(b, `<rect x="%s" y="%s" width="%s" height="%s" fill="%s"/>`,
			length(v.X, width), length(v.Y, width), length(v.Width, width), length(v.Height, width), esc(v.Fill))
	case charts.Label:
		fmt.Fprintf(b, `<text x="%s" y="%s" font-size="%s" fill="%s">%s</text>`,
			length(v.X, width), length(v.Y, width), num(v.FontSize), esc(v.Fill), esc(v.Text))
	case charts.Arc:
		writeArc(b, v, "")
	}
}

func writeArc(b *strings.Builder, a charts.Arc, title string) {
	fmt.Fprintf(b, `<path d="%s" fill="none" stroke="%s" stroke-width="%s" stroke-linecap="butt">`,
		arcPath(a), esc(a.Stroke), num(a.StrokeWidth))
	if title != "" {
		fmt.Fprintf(b, "<title>%s</title>", esc(title))
	}
	b.WriteString("</path>")
}

// arcPath builds the path data. A full circle has coincident endpoints, which
// SVG would draw as nothing, so it is split into two half arcs.
func arcPath(a charts.Arc) string {
	r := num(a.Radius)
	sweep := flag(a.Sweep)
	if a.Full() {
		mid := charts.Polar(a.Center, a.Radius, a.StartAngle+180)
		return fmt.Sprintf("M %s %s A %s %s 0 0 %s %s %s A %s %s 0 0 %s %s %s",
			num(a.From.X), num(a.From.Y),
			r, r, sweep, num(mid.X), num(mid.Y),
			r, r, sweep, num(a.To.X), num(a.To.Y))
	}
	return fmt.Sprintf("M %s %s A %s %s 0 %s %s %s %s",
		num(a.From.X), num(a.From.Y), r, r, flag(a.LargeArc), sweep, num(a.To.X), num(a.To.Y))
}

func length(l charts.Length, width float64) string {
	if width > 0 && l.Unit == charts.Percent {
		return num(l.Resolve(width))
	}
	return l.String()
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func esc(s string) string {
	var buf bytes.Buffer
	template.HTMLEscape(&buf, []byte(s))
	return buf.String()
}
