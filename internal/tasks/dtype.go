package tasks

import "math"

// DType is the narrow numeric dtype chosen for one output column.
type DType string

const (
	DTypeBool    DType = "bool"
	DTypeInt8    DType = "int8"
	DTypeInt16   DType = "int16"
	DTypeInt32   DType = "int32"
	DTypeUint8   DType = "uint8"
	DTypeUint16  DType = "uint16"
	DTypeUint32  DType = "uint32"
	DTypeFloat32 DType = "float32"
)

// sampleWindow is how many leading rows are inspected to pick a dtype
// before the rest of the column is scanned for overflow (the "~10k
// rows or the whole column when small").
const sampleWindow = 10000

// InferDType chooses the narrowest dtype that fits every value in sample.
func InferDType(sample []float64) DType {
	allBool := true
	allInt := true
	allNonNeg := true
	for _, v := range sample {
		if v != 0 && v != 1 {
			allBool = false
		}
		if v != math.Trunc(v) || math.IsNaN(v) || math.IsInf(v, 0) {
			allInt = false
		}
		if v < 0 {
			allNonNeg = false
		}
	}
	if len(sample) > 0 && allBool {
		return DTypeBool
	}
	if !allInt {
		return DTypeFloat32
	}
	lo, hi := minMax(sample)
	return narrowestInt(lo, hi, allNonNeg)
}

func minMax(vals []float64) (float64, float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	lo, hi := vals[0], vals[0]
	for _, v := range vals[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

func narrowestInt(lo, hi float64, nonNeg bool) DType {
	if nonNeg {
		switch {
		case hi <= math.MaxUint8:
			return DTypeUint8
		case hi <= math.MaxUint16:
			return DTypeUint16
		case hi <= math.MaxUint32:
			return DTypeUint32
		default:
			return DTypeFloat32
		}
	}
	switch {
	case lo >= math.MinInt8 && hi <= math.MaxInt8:
		return DTypeInt8
	case lo >= math.MinInt16 && hi <= math.MaxInt16:
		return DTypeInt16
	case lo >= math.MinInt32 && hi <= math.MaxInt32:
		return DTypeInt32
	default:
		return DTypeFloat32
	}
}

// fits reports whether v is representable in dt without loss, used by the
// widen-on-overflow pass as later chunks are scanned.
func fits(dt DType, v float64) bool {
	switch dt {
	case DTypeBool:
		return v == 0 || v == 1
	case DTypeInt8:
		return v == math.Trunc(v) && v >= math.MinInt8 && v <= math.MaxInt8
	case DTypeInt16:
		return v == math.Trunc(v) && v >= math.MinInt16 && v <= math.MaxInt16
	case DTypeInt32:
		return v == math.Trunc(v) && v >= math.MinInt32 && v <= math.MaxInt32
	case DTypeUint8:
		return v == math.Trunc(v) && v >= 0 && v <= math.MaxUint8
	case DTypeUint16:
		return v == math.Trunc(v) && v >= 0 && v <= math.MaxUint16
	case DTypeUint32:
		return v == math.Trunc(v) && v >= 0 && v <= math.MaxUint32
	default: // float32 fits everything finite or not
		return true
	}
}

// widenedDType returns the next dtype up when a value overflows dt,
// implementing widen-on-overflow for mixed-magnitude columns.
func widenedDType(dt DType) DType {
	switch dt {
	case DTypeBool, DTypeUint8:
		return DTypeUint16
	case DTypeUint16:
		return DTypeUint32
	case DTypeUint32:
		return DTypeFloat32
	case DTypeInt8:
		return DTypeInt16
	case DTypeInt16:
		return DTypeInt32
	case DTypeInt32:
		return DTypeFloat32
	default:
		return DTypeFloat32
	}
}

// ResolveColumnDType infers a dtype from the leading sample window, then
// widens it as needed to cover every value in the full column.
func ResolveColumnDType(column []float64) DType {
	window := column
	if len(window) > sampleWindow {
		window = window[:sampleWindow]
	}
	dt := InferDType(window)
	for _, v := range column {
		for !fits(dt, v) {
			next := widenedDType(dt)
			if next == dt {
				break
			}
			dt = next
		}
		if dt == DTypeFloat32 {
			break
		}
	}
	return dt
}
