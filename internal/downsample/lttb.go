// Package downsample implements Largest-Triangle-Three-Buckets, a
// visually-faithful reduction of a (timestamp, value) series to at most n
// points. One precision is used everywhere a view crosses this
// boundary: float32 throughout, converted at the compute edge.
package downsample

// Downsample reduces x/y (equal length, sorted by x) to at most n points
// using LTTB. When n <= 2 or n >= len(x), the input is returned unchanged
// (converted to float32) as a short-circuit. The first and
// last input points are always kept. Ties within a bucket are broken by
// lowest index, making the result deterministic for a given input.
func Downsample(x, y []float64, n int) (outX, outY []float32) {
	length := len(x)
	if n <= 2 || n >= length {
		return toFloat32(x), toFloat32(y)
	}
	if length == 0 {
		return nil, nil
	}

	fx := toFloat32(x)
	fy := toFloat32(y)

	outX = make([]float32, 0, n)
	outY = make([]float32, 0, n)

	// Bucket size for the middle (length-2) samples, split into n-2 buckets.
	bucketSize := float64(length-2) / float64(n-2)

	outX = append(outX, fx[0])
	outY = append(outY, fy[0])

	prevX, prevY := fx[0], fy[0]

	for i := 0; i < n-2; i++ {
		bucketStart := int(float64(i)*bucketSize) + 1
		bucketEnd := int(float64(i+1)*bucketSize) + 1
		if bucketEnd > length-1 {
			bucketEnd = length - 1
		}
		if bucketStart >= bucketEnd {
			bucketStart = bucketEnd - 1
		}
		if bucketStart < 1 {
			bucketStart = 1
		}

		// Centroid of the NEXT bucket, used as the fixed apex for this
		// bucket's triangle-area comparisons.
		nextStart := int(float64(i+1)*bucketSize) + 1
		nextEnd := int(float64(i+2)*bucketSize) + 1
		if nextEnd > length {
			nextEnd = length
		}
		if nextStart >= nextEnd {
			nextStart = nextEnd - 1
		}
		if nextStart < 0 {
			nextStart = 0
		}
		avgX, avgY := centroid(fx, fy, nextStart, nextEnd)

		bestArea := float32(-1)
		bestIdx := bucketStart
		for j := bucketStart; j < bucketEnd; j++ {
			area := triangleArea(prevX, prevY, fx[j], fy[j], avgX, avgY)
			if area > bestArea {
				bestArea = area
				bestIdx = j
			}
		}

		outX = append(outX, fx[bestIdx])
		outY = append(outY, fy[bestIdx])
		prevX, prevY = fx[bestIdx], fy[bestIdx]
	}

	outX = append(outX, fx[length-1])
	outY = append(outY, fy[length-1])
	return outX, outY
}

func centroid(x, y []float32, start, end int) (float32, float32) {
	if start >= end {
		if start < len(x) {
			return x[start], y[start]
		}
		return x[len(x)-1], y[len(y)-1]
	}
	var sumX, sumY float32
	count := float32(end - start)
	for k := start; k < end; k++ {
		sumX += x[k]
		sumY += y[k]
	}
	return sumX / count, sumY / count
}

// triangleArea computes |(p.x-avg.x)(c.y-p.y) - (p.x-c.x)(avg.y-p.y)|, the
// (unnormalized, un-halved) area of the triangle formed by the previously
// kept point p, a candidate c, and the next bucket's centroid avg.
func triangleArea(px, py, cx, cy, avgX, avgY float32) float32 {
	area := (px-avgX)*(cy-py) - (px-cx)*(avgY-py)
	if area < 0 {
		return -area
	}
	return area
}

func toFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}
