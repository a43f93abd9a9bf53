package compute

import (
	"fmt"
	"math"
)

// constants is the closed set of named constants a formula may reference.
var constants = map[string]float64{
	"pi": math.Pi,
	"e":  math.E,
}

// fn is an allow-listed numeric function: it receives each argument's
// already-evaluated array and returns the element-wise result.
type fn func(args [][]float64) ([]float64, error)

func unary(f func(float64) float64) fn {
	return func(args [][]float64) ([]float64, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("expected 1 argument, got %d", len(args))
		}
		out := make([]float64, len(args[0]))
		for i, v := range args[0] {
			out[i] = f(v)
		}
		return out, nil
	}
}

// allowedFunctions is the closed set of numeric functions a formula may
// call. Nothing outside this map and `constants` is ever in
// scope during evaluation.
var allowedFunctions = map[string]fn{
	"abs":   unary(math.Abs),
	"sqrt":  unary(math.Sqrt),
	"sin":   unary(math.Sin),
	"cos":   unary(math.Cos),
	"tan":   unary(math.Tan),
	"asin":  unary(math.Asin),
	"acos":  unary(math.Acos),
	"atan":  unary(math.Atan),
	"log":   unary(math.Log),
	"log10": unary(math.Log10),
	"exp":   unary(math.Exp),
	"floor": unary(math.Floor),
	"ceil":  unary(math.Ceil),
	"sign": unary(func(v float64) float64 {
		switch {
		case v > 0:
			return 1
		case v < 0:
			return -1
		default:
			return 0
		}
	}),
	"atan2": func(args [][]float64) ([]float64, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("atan2 expects 2 arguments")
		}
		out := make([]float64, len(args[0]))
		for i := range out {
			out[i] = math.Atan2(args[0][i], args[1][i])
		}
		return out, nil
	},
	"min": func(args [][]float64) ([]float64, error) {
		return reduceBinary(args, math.Min)
	},
	"max": func(args [][]float64) ([]float64, error) {
		return reduceBinary(args, math.Max)
	},
	"clip": func(args [][]float64) ([]float64, error) {
		if len(args) != 3 {
			return nil, fmt.Errorf("clip expects 3 arguments: value, min, max")
		}
		out := make([]float64, len(args[0]))
		for i := range out {
			out[i] = math.Min(math.Max(args[0][i], args[1][i]), args[2][i])
		}
		return out, nil
	},
}

func reduceBinary(args [][]float64, op func(a, b float64) float64) ([]float64, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("expected at least 2 arguments")
	}
	out := make([]float64, len(args[0]))
	copy(out, args[0])
	for _, arg := range args[1:] {
		for i := range out {
			out[i] = op(out[i], arg[i])
		}
	}
	return out, nil
}

func powf(base, exp float64) float64 { return math.Pow(base, exp) }
