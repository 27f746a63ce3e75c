package charts

// Palette is the cyclic series palette.
var Palette = []string{"#1976d2", "#388e3c", "#f57c00", "#d32f2f", "#7b1fa2", "#0288d1", "#ffb300"}

const (
	barFill   = "#1976d2"
	labelFill = "#111"
)

// Color returns the palette entry for the i-th series point.
func Color(i int) string {
	if i < 0 {
		i = -i
	}
	return Palette[i%len(Palette)]
}
