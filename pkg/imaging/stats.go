package imaging

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Mean returns the arithmetic mean of the samples, 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// PopVariance returns the population (1/N) variance of the samples.
func PopVariance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	_, variance := stat.PopMeanVariance(values, nil)
	return variance
}

// PopStdDev returns the population standard deviation of the samples.
func PopStdDev(values []float64) float64 {
	return math.Sqrt(PopVariance(values))
}

// Skewness returns the third standardized moment using population moments.
// A distribution with zero spread has skewness 0.
func Skewness(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean, variance := stat.PopMeanVariance(values, nil)
	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range values {
		z := (v - mean) / std
		sum += z * z * z
	}
	return sum / float64(len(values))
}

// Correlation returns the Pearson correlation of x and y. Undefined results
// (mismatched or short inputs, zero variance) are reported as 0.
func Correlation(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return 0
	}
	corr := stat.Correlation(x, y, nil)
	if math.IsNaN(corr) || math.IsInf(corr, 0) {
		return 0
	}
	return corr
}

// Median calculates the median value of a slice of float64 values.
// Even-length inputs average the two middle values.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}

	// Create a copy to avoid modifying the original
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}
