// Package aggregate summarises run outcomes into mean, spread and success
// statistics.
package aggregate

import "math"

// Mean computes the arithmetic mean. Returns 0 for empty input.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// SampleStdDev computes the standard deviation with Bessel's correction.
// Returns 0 when fewer than 2 values are given.
func SampleStdDev(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	return math.Sqrt(sumSquares(values) / float64(n-1))
}

// PopulationStdDev computes the population standard deviation.
// Returns 0 for empty input.
func PopulationStdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return math.Sqrt(sumSquares(values) / float64(len(values)))
}

func sumSquares(values []float64) float64 {
	m := Mean(values)
	sumSq := 0.0
	for _, v := range values {
		d := v - m
		sumSq += d * d
	}
	return sumSq
}
