package utils

import (
	"math"
)

// POW is x^p with repeated multiplication for small integer powers
func POW(x float64, p int) (y float64) {
	if p > 8 || p < -8 {
		return math.Pow(x, float64(p))
	}
	n := p
	if n < 0 {
		n = -n
	}
	y = 1
	for ; n > 0; n-- {
		y *= x
	}
	if p < 0 {
		y = 1 / y
	}
	return
}
