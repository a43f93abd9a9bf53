package compute

import (
	"math"
	"testing"

	"github.com/fieldtrace/signalstudio/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractVariables(t *testing.T) {
	assert.Equal(t, []string{"A", "B"}, ExtractVariables("A + B * 2"))
	assert.Equal(t, []string{"A"}, ExtractVariables("sqrt(A) + pi"))
}

func TestParse_RejectsUnbalancedParens(t *testing.T) {
	_, err := Parse("sqrt(A")
	assert.Error(t, err)
}

func TestParse_RejectsUnknownIdentifier(t *testing.T) {
	_, err := Parse("__import__")
	assert.Error(t, err)
}

func TestCreate_SimpleFormula(t *testing.T) {
	speed := &models.Signal{Name: "Speed", Loaded: true, Timestamps: []float64{0, 1, 2}, Values: []float64{1, 2, 3}}
	req := Request{
		Name:    "SpeedX2",
		Formula: "A * 2",
		Mapping: map[string]string{"A": "Speed"},
	}
	sig, err := Create(req, func(name string) (*models.Signal, error) { return speed, nil }, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 4, 6}, sig.Values)
	assert.True(t, sig.Computed)
}

func TestCreate_MismatchedLengthRejected(t *testing.T) {
	a := &models.Signal{Name: "A", Loaded: true, Values: []float64{1, 2, 3}}
	b := &models.Signal{Name: "B", Loaded: true, Values: []float64{1, 2}}
	req := Request{
		Name:    "Sum",
		Formula: "A + B",
		Mapping: map[string]string{"A": "A", "B": "B"},
	}
	_, err := Create(req, func(name string) (*models.Signal, error) {
		if name == "A" {
			return a, nil
		}
		return b, nil
	}, 0)
	assert.Error(t, err)
}

func TestCreate_ClampsInfinities(t *testing.T) {
	zero := &models.Signal{Name: "Z", Loaded: true, Timestamps: []float64{0, 1}, Values: []float64{0, 1}}
	req := Request{
		Name:    "Inverse",
		Formula: "1 / Z",
		Mapping: map[string]string{"Z": "Z"},
	}
	sig, err := Create(req, func(name string) (*models.Signal, error) { return zero, nil }, 0)
	require.NoError(t, err)
	assert.Equal(t, math.MaxFloat64, sig.Values[0])
	assert.Equal(t, float64(1), sig.Values[1])
}

func TestCreate_MissingMappingRejected(t *testing.T) {
	req := Request{Name: "X", Formula: "A + B", Mapping: map[string]string{"A": "Speed"}}
	_, err := Create(req, func(name string) (*models.Signal, error) { return nil, nil }, 0)
	assert.Error(t, err)
}

func TestFunctions_MinMaxClip(t *testing.T) {
	node, err := Parse("clip(A, 0, 10)")
	require.NoError(t, err)
	out, err := node.Eval(3, map[string][]float64{"A": {-5, 5, 50}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 5, 10}, out)
}
