// Package colormap maps metric values onto the sequential YlOrRd palette
// used by the choropleth layer and its legend.
package colormap

import (
	"fmt"
	"math"

	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ylOrRd9 is the nine-class ColorBrewer YlOrRd scheme, light to dark.
var ylOrRd9 = []string{
	"ffffcc", "ffeda0", "fed976", "feb24c", "fd8d3c",
	"fc4e2a", "e31a1c", "bd0026", "800026",
}

// Missing is the fill for areas whose value is undefined.
const Missing = "gray"

// Linear interpolates evenly spaced color stops across [Min, Max].
type Linear struct {
	Min, Max float64
	Caption  string
	colors   []drawing.Color
}

// Stop is one legend entry.
type Stop struct {
	Value float64 `json:"value"`
	Color string  `json:"color"`
}

// YlOrRd9 returns the palette scaled to [lo, hi]. If hi <= lo the range is
// widened to lo+1.
func YlOrRd9(lo, hi float64) *Linear {
	if hi <= lo {
		hi = lo + 1
	}
	cm := &Linear{Min: lo, Max: hi}
	for _, h := range ylOrRd9 {
		cm.colors = append(cm.colors, drawing.ColorFromHex(h))
	}
	return cm
}

// At returns the interpolated color for v. Values outside the range are
// clamped to the end colors.
func (l *Linear) At(v float64) drawing.Color {
	if math.IsNaN(v) {
		return l.colors[0]
	}
	t := (v - l.Min) / (l.Max - l.Min)
	t = math.Max(0, math.Min(1, t))

	pos := t * float64(len(l.colors)-1)
	i := int(math.Floor(pos))
	if i >= len(l.colors)-1 {
		return l.colors[len(l.colors)-1]
	}
	frac := pos - float64(i)
	a, b := l.colors[i], l.colors[i+1]
	return drawing.Color{
		R: lerp(a.R, b.R, frac),
		G: lerp(a.G, b.G, frac),
		B: lerp(a.B, b.B, frac),
		A: 255,
	}
}

// Color returns the hex fill for v.
func (l *Linear) Color(v float64) string {
	return Hex(l.At(v))
}

// ColorOf returns the hex fill for an optional value, or Missing for nil.
func (l *Linear) ColorOf(v *float64) string {
	if v == nil {
		return Missing
	}
	return l.Color(*v)
}

// Stops returns one legend entry per palette class, from Min to Max.
func (l *Linear) Stops() []Stop {
	n := len(l.colors)
	out := make([]Stop, n)
	for i, c := range l.colors {
		out[i] = Stop{
			Value: l.Min + (l.Max-l.Min)*float64(i)/float64(n-1),
			Color: Hex(c),
		}
	}
	return out
}

// Hex formats c as #rrggbb.
func Hex(c drawing.Color) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(math.Round(float64(a) + (float64(b)-float64(a))*t))
}
