// Package charts lays out labeled series as surface-independent geometry.
//
// Layouts produce value types (rectangles, arcs and labels) that adapters in
// the svg and raster subpackages turn into concrete output.
package charts

import (
	"math"
	"strconv"
)

// Unit is the coordinate unit of a Length.
type Unit uint8

const (
	Pixels Unit = iota
	Percent
)

// Length is a coordinate that is either absolute or relative to the surface width.
type Length struct {
	Value float64
	Unit  Unit
}

// Px returns an absolute length.
func Px(v float64) Length { return Length{Value: v, Unit: Pixels} }

// Pct returns a length relative to the surface width.
func Pct(v float64) Length { return Length{Value: v, Unit: Percent} }

// String formats the length the way SVG attributes expect it.
func (l Length) String() string {
	s := strconv.FormatFloat(l.Value, 'f', -1, 64)
	if l.Unit == Percent {
		return s + "%"
	}
	return s
}

// Resolve converts the length to pixels on a surface of the given width.
func (l Length) Resolve(width float64) float64 {
	if l.Unit == Percent {
		return l.Value * width / 100
	}
	return l.Value
}

// Point is an absolute position on the surface.
type Point struct {
	X, Y float64
}

// Polar converts an angle in degrees, measured clockwise from 12 o'clock,
// into a point on the circle of radius r around c.
func Polar(c Point, r, deg float64) Point {
	rad := (deg - 90) * math.Pi / 180
	return Point{X: c.X + r*math.Cos(rad), Y: c.Y + r*math.Sin(rad)}
}

// ShapeKind tags the concrete type behind a Shape.
type ShapeKind uint8

const (
	KindRect ShapeKind = iota + 1
	KindArc
	KindLabel
)

func (k ShapeKind) String() string {
	switch k {
	case KindRect:
		return "rect"
	case KindArc:
		return "arc"
	case KindLabel:
		return "label"
	}
	return "unknown"
}

// Shape is a drawing instruction. The set of implementations is closed.
type Shape interface {
	Kind() ShapeKind
	shape()
}

// Rect is a filled rectangle.
type Rect struct {
	X, Y, Width, Height Length
	Fill                string
}

// Arc is a stroked circular arc drawn from From to To.
type Arc struct {
	Center      Point
	Radius      float64
	StartAngle  float64
	EndAngle    float64
	From, To    Point
	LargeArc    bool
	Sweep       bool
	Stroke      string
	StrokeWidth float64
}

// Span is the angular width of the arc in degrees.
func (a Arc) Span() float64 { return a.EndAngle - a.StartAngle }

// Full reports whether the arc covers the whole circle.
func (a Arc) Full() bool { return a.Span() >= 360-1e-9 }

// Label is a text run anchored at its baseline start.
type Label struct {
	X, Y     Length
	Text     string
	FontSize float64
	Fill     string
}

func (Rect) Kind() ShapeKind  { return KindRect }
func (Arc) Kind() ShapeKind   { return KindArc }
func (Label) Kind() ShapeKind { return KindLabel }

func (Rect) shape()  {}
func (Arc) shape()   {}
func (Label) shape() {}
