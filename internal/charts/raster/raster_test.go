package raster

import (
	"bytes"
	"testing"

	"techbiz/internal/core"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func TestBarWritesPNG(t *testing.T) {
	var buf bytes.Buffer
	pts := []core.LabeledPoint{{Label: "2024-01-01", Value: 150}, {Label: "2024-01-02", Value: -20}}
	if err := Bar(&buf, "Revenue", pts, 0, 0); err != nil {
		t.Fatalf("Bar: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), pngMagic) {
		t.Fatalf("output is not a PNG")
	}
}

func TestEmptySeriesStillRenders(t *testing.T) {
	var bar, pie bytes.Buffer
	if err := Bar(&bar, "Empty", nil, 320, 200); err != nil {
		t.Fatalf("Bar: %v", err)
	}
	if err := Pie(&pie, "Empty", []core.LabeledPoint{{Label: "zero", Value: 0}}, 0); err != nil {
		t.Fatalf("Pie: %v", err)
	}
	if !bytes.HasPrefix(bar.Bytes(), pngMagic) || !bytes.HasPrefix(pie.Bytes(), pngMagic) {
		t.Fatalf("output is not a PNG")
	}
}

func TestBarWidthBounds(t *testing.T) {
	if got := barWidth(640, 1); got != 80 {
		t.Fatalf("barWidth(640,1) = %d", got)
	}
	if got := barWidth(640, 500); got != 4 {
		t.Fatalf("barWidth(640,500) = %d", got)
	}
}
