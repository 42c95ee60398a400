package utils

import (
	"fmt"
	"math"
)

// ObservedOrder returns log(e_i/e_i+1)/log(h_i/h_i+1) for each successive pair of
// (step size, error) samples
func ObservedOrder(h, err []float64) (order []float64, e error) {
	if len(h) != len(err) {
		e = fmt.Errorf("step and error samples differ in length: %d != %d", len(h), len(err))
		return
	}
	if len(h) < 2 {
		e = fmt.Errorf("need at least two samples, have %d", len(h))
		return
	}
	order = make([]float64, len(h)-1)
	for i := 0; i < len(h)-1; i++ {
		if h[i] <= 0 || h[i+1] <= 0 || err[i] <= 0 || err[i+1] <= 0 || h[i] == h[i+1] {
			e = fmt.Errorf("invalid sample pair at %d: h = (%g, %g), err = (%g, %g)",
				i, h[i], h[i+1], err[i], err[i+1])
			return
		}
		order[i] = math.Log(err[i]/err[i+1]) / math.Log(h[i]/h[i+1])
	}
	return
}
