package tasks

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInferDType_Bool(t *testing.T) {
	assert.Equal(t, DTypeBool, InferDType([]float64{0, 1, 1, 0}))
}

func TestInferDType_Uint8(t *testing.T) {
	assert.Equal(t, DTypeUint8, InferDType([]float64{0, 100, 255}))
}

func TestInferDType_Int16Negative(t *testing.T) {
	assert.Equal(t, DTypeInt16, InferDType([]float64{-200, 0, 300}))
}

func TestInferDType_Float(t *testing.T) {
	assert.Equal(t, DTypeFloat32, InferDType([]float64{1.5, 2.25}))
}

func TestResolveColumnDType_WidensOnOverflow(t *testing.T) {
	col := make([]float64, sampleWindow+1)
	for i := range col[:sampleWindow] {
		col[i] = 1
	}
	col[sampleWindow] = 1000 // overflows uint8/bool sample-window guess
	dt := ResolveColumnDType(col)
	assert.Equal(t, DTypeUint16, dt)
}
