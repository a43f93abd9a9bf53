// Package colorutil assigns visually-stable colors to signals, shared
// by signal listing and computed variables so the same signal index
// always renders the same color across repeated requests.
package colorutil

import "fmt"

// ForIndex returns a stable hex color for the i-th signal, derived from
// hsl((37*i) % 360, 70%, 55%); the 37° hue step keeps adjacent signals
// visually distinct.
func ForIndex(i int) string {
	hue := float64((37 * i) % 360)
	r, g, b := hslToRGB(hue, 0.70, 0.55)
	return fmt.Sprintf("#%02X%02X%02X", r, g, b)
}

func hslToRGB(h, s, l float64) (r, g, b uint8) {
	c := (1 - abs(2*l-1)) * s
	hp := h / 60
	x := c * (1 - abs(mod2(hp)-1))
	var r1, g1, b1 float64
	switch {
	case hp >= 0 && hp < 1:
		r1, g1, b1 = c, x, 0
	case hp >= 1 && hp < 2:
		r1, g1, b1 = x, c, 0
	case hp >= 2 && hp < 3:
		r1, g1, b1 = 0, c, x
	case hp >= 3 && hp < 4:
		r1, g1, b1 = 0, x, c
	case hp >= 4 && hp < 5:
		r1, g1, b1 = x, 0, c
	default:
		r1, g1, b1 = c, 0, x
	}
	m := l - c/2
	return toByte(r1 + m), toByte(g1 + m), toByte(b1 + m)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func mod2(v float64) float64 {
	for v >= 2 {
		v -= 2
	}
	return v
}

func toByte(v float64) uint8 {
	n := int(v*255 + 0.5)
	if n < 0 {
		n = 0
	}
	if n > 255 {
		n = 255
	}
	return uint8(n)
}
