package colormap

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYlOrRd9_Endpoints(t *testing.T) {
	cm := YlOrRd9(0, 80)
	assert.Equal(t, "#ffffcc", cm.Color(0))
	assert.Equal(t, "#800026", cm.Color(80))
	assert.Equal(t, "#fd8d3c", cm.Color(40), "midpoint is the fifth class")
}

func TestYlOrRd9_Clamps(t *testing.T) {
	cm := YlOrRd9(10, 20)
	assert.Equal(t, "#ffffcc", cm.Color(-5))
	assert.Equal(t, "#800026", cm.Color(1e9))
	assert.Equal(t, "#ffffcc", cm.Color(math.NaN()))
}

func TestYlOrRd9_Interpolates(t *testing.T) {
	cm := YlOrRd9(0, 8)
	// halfway between ffffcc and ffeda0
	assert.Equal(t, "#fff6b6", cm.Color(0.5))
}

func TestYlOrRd9_DegenerateRange(t *testing.T) {
	cm := YlOrRd9(5, 5)
	assert.InDelta(t, 6.0, cm.Max, 0)
	assert.Equal(t, "#800026", cm.Color(6))
}

func TestColorOf(t *testing.T) {
	cm := YlOrRd9(0, 1)
	assert.Equal(t, Missing, cm.ColorOf(nil))
	v := 1.0
	assert.Equal(t, "#800026", cm.ColorOf(&v))
}

func TestStops(t *testing.T) {
	cm := YlOrRd9(0, 16)
	stops := cm.Stops()
	require.Len(t, stops, 9)
	assert.InDelta(t, 0.0, stops[0].Value, 0)
	assert.InDelta(t, 2.0, stops[1].Value, 1e-9)
	assert.InDelta(t, 16.0, stops[8].Value, 1e-9)
	assert.Equal(t, "#ffeda0", stops[1].Color)
	assert.Equal(t, "#800026", stops[8].Color)
}
