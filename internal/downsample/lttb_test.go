package downsample

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func series(n int) ([]float64, []float64) {
	x := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = float64(i)
		y[i] = math.Sin(float64(i))
	}
	return x, y
}

func TestDownsample_ShortCircuitOnSmallN(t *testing.T) {
	x, y := series(100)
	outX, outY := Downsample(x, y, 2)
	require.Len(t, outX, 100)
	require.Len(t, outY, 100)
	assert.Equal(t, float32(0), outX[0])
}

func TestDownsample_ShortCircuitWhenNGreaterThanLength(t *testing.T) {
	x, y := series(10)
	outX, outY := Downsample(x, y, 50)
	assert.Len(t, outX, 10)
	assert.Len(t, outY, 10)
}

func TestDownsample_BoundaryPreserved(t *testing.T) {
	x, y := series(100)
	outX, outY := Downsample(x, y, 50)
	require.Len(t, outX, 50)
	require.Len(t, outY, 50)

	assert.Equal(t, float32(0), outX[0])
	assert.InDelta(t, math.Sin(0), float64(outY[0]), 1e-4)

	assert.Equal(t, float32(99), outX[len(outX)-1])
	assert.InDelta(t, math.Sin(99), float64(outY[len(outY)-1]), 1e-4)
}

func TestDownsample_MonotoneIndexOrder(t *testing.T) {
	x, y := series(1000)
	outX, _ := Downsample(x, y, 123)
	for i := 1; i < len(outX); i++ {
		assert.Greater(t, outX[i], outX[i-1])
	}
}

func TestDownsample_Deterministic(t *testing.T) {
	x, y := series(5000)
	x1, y1 := Downsample(x, y, 200)
	x2, y2 := Downsample(x, y, 200)
	assert.Equal(t, x1, x2)
	assert.Equal(t, y1, y2)
}

func TestDownsample_OutputLengthIsN(t *testing.T) {
	x, y := series(3000)
	outX, outY := Downsample(x, y, 500)
	assert.Len(t, outX, 500)
	assert.Len(t, outY, 500)
}
