package compute

import (
	"fmt"
	"math"
	"regexp"
	"sort"

	"github.com/fieldtrace/signalstudio/internal/apperr"
	"github.com/fieldtrace/signalstudio/internal/colorutil"
	"github.com/fieldtrace/signalstudio/internal/models"
)

var variableTokenPattern = regexp.MustCompile(`\b([A-Z])\b`)

// ExtractVariables auto-detects single-letter A..Z tokens referenced by a
// formula, so a client can be told which bindings it still needs to
// supply before create-time validation.
func ExtractVariables(formula string) []string {
	matches := variableTokenPattern.FindAllStringSubmatch(formula, -1)
	seen := map[string]bool{}
	var out []string
	for _, m := range matches {
		letter := m[1]
		if !seen[letter] {
			seen[letter] = true
			out = append(out, letter)
		}
	}
	sort.Strings(out)
	return out
}

// SignalSource resolves a bound signal name to its loaded array, used to
// decouple the evaluator from internal/recording.
type SignalSource interface {
	SignalByName(sessionID, name string) (*models.Signal, error)
	Preload(sessionID string, index int) error
}

// Request is the input to Create: a formula plus a letter→signal-name
// mapping.
type Request struct {
	Name        string
	Unit        string
	Description string
	Formula     string
	Mapping     map[string]string // letter -> signal name
}

// Create validates and evaluates a formula against resolved signal
// arrays, producing a fully materialized computed signal. All bound
// signals must share the reference length (the first bound signal's
// timestamps); ±Inf results are clamped to the float64 min/max finite
// value, NaNs are left to propagate into view-time interpolation.
func Create(req Request, resolve func(name string) (*models.Signal, error), colorIndex int) (*models.Signal, error) {
	if len(req.Formula) == 0 || len(req.Formula) > 500 {
		return nil, apperr.Validation("formula must be 1-500 characters")
	}
	if req.Name == "" {
		return nil, apperr.Validation("name is required")
	}

	used := ExtractVariables(req.Formula)
	for _, letter := range used {
		if _, ok := req.Mapping[letter]; !ok {
			return nil, apperr.Validation(fmt.Sprintf("formula references %q but no signal is mapped to it", letter))
		}
	}

	node, err := Parse(req.Formula)
	if err != nil {
		return nil, apperr.Validation(fmt.Sprintf("invalid formula: %s", err))
	}

	vars := make(map[string][]float64, len(req.Mapping))
	var refTimestamps []float64
	var refLen int
	first := true
	// Iterate mapping in sorted letter order so "the first bound signal"
	// is deterministic regardless of map iteration order.
	letters := make([]string, 0, len(req.Mapping))
	for letter := range req.Mapping {
		letters = append(letters, letter)
	}
	sort.Strings(letters)

	for _, letter := range letters {
		name := req.Mapping[letter]
		sig, err := resolve(name)
		if err != nil {
			return nil, apperr.Validation(fmt.Sprintf("signal %q not found", name))
		}
		if !sig.Loaded {
			return nil, apperr.Validation(fmt.Sprintf("signal %q is not loaded", name))
		}
		if first {
			refLen = len(sig.Values)
			refTimestamps = sig.Timestamps
			first = false
		} else if len(sig.Values) != refLen {
			return nil, apperr.Validation("all bound signals must share the reference length")
		}
		vars[letter] = sig.Values
	}

	if refLen == 0 {
		return nil, apperr.Validation("at least one signal must be bound")
	}

	result, err := node.Eval(refLen, vars)
	if err != nil {
		return nil, apperr.Validation(fmt.Sprintf("formula evaluation failed: %s", err))
	}
	clampInfinities(result)

	return &models.Signal{
		Name:       req.Name,
		Unit:       req.Unit,
		Color:      colorutil.ForIndex(colorIndex),
		Computed:   true,
		Formula:    req.Formula,
		Loaded:     true,
		Timestamps: refTimestamps,
		Values:     result,
	}, nil
}

func clampInfinities(vals []float64) {
	for i, v := range vals {
		switch {
		case math.IsInf(v, 1):
			vals[i] = math.MaxFloat64
		case math.IsInf(v, -1):
			vals[i] = -math.MaxFloat64
		}
	}
}
