// Package statutil collects the small numeric helpers shared by the
// badness, clustering and slicing stages: percentile, standardization,
// distance and chi-squared functions, so every stage normalizes data the
// same way. Only the chi-squared p-value uses gonum; the rest is plain Go.
package statutil

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// Percentile95 returns the 95th percentile of a non-empty slice of
// non-negative values using nearest-rank selection (sorted[min(floor(n*p), n-1)]),
// matching the original discovery notebook's latency normalization rather
// than gonum's default interpolated stat.Quantile.
func Percentile95(values []float64) float64 {
	return NearestRankPercentile(values, 0.95)
}

// NearestRankPercentile returns the p-th nearest-rank percentile (p in
// [0,1]) of values. Panics if values is empty; callers are expected to
// guard against that case, matching how the badness aggregator only calls
// this once positive latencies have been confirmed to exist.
func NearestRankPercentile(values []float64, p float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	n := len(sorted)
	idx := int(float64(n) * p)
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}

// Standardize computes per-column mean and standard deviation across rows
// and returns a new matrix (same shape) with each column rescaled to zero
// mean and unit variance. Columns with zero variance are left untouched
// after centering (dividing by a zero stddev would produce NaN/Inf).
func Standardize(rows [][]float64) (standardized [][]float64, means []float64, stddevs []float64) {
	if len(rows) == 0 {
		return nil, nil, nil
	}
	numCols := len(rows[0])
	means = make([]float64, numCols)
	stddevs = make([]float64, numCols)

	for c := 0; c < numCols; c++ {
		col := make([]float64, len(rows))
		for r, row := range rows {
			col[r] = row[c]
		}
		mean, std := meanStdDev(col)
		means[c] = mean
		stddevs[c] = std
	}

	standardized = make([][]float64, len(rows))
	for r, row := range rows {
		out := make([]float64, numCols)
		for c, v := range row {
			if stddevs[c] == 0 {
				out[c] = 0
			} else {
				out[c] = (v - means[c]) / stddevs[c]
			}
		}
		standardized[r] = out
	}
	return standardized, means, stddevs
}

func meanStdDev(values []float64) (mean, std float64) {
	n := float64(len(values))
	if n == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean = sum / n

	varSum := 0.0
	for _, v := range values {
		d := v - mean
		varSum += d * d
	}
	if n > 0 {
		std = math.Sqrt(varSum / n)
	}
	return mean, std
}

// EuclideanDistance returns the L2 distance between two equal-length
// vectors.
func EuclideanDistance(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// ChiSquaredPValue returns the right-tail p-value for a chi-squared
// statistic with the given degrees of freedom, using gonum's
// distuv.ChiSquared survival function.
func ChiSquaredPValue(statistic float64, degreesOfFreedom float64) float64 {
	dist := distuv.ChiSquared{K: degreesOfFreedom}
	return dist.Survival(statistic)
}

// ChiSquaredStatistic computes Pearson's chi-squared test statistic for a
// 2x2 contingency table laid out as:
//
//	[[a, b],
//	 [c, d]]
//
// Returns (statistic, ok). ok is false when any expected cell frequency
// would be degenerate (a row or column totals to zero), in which case the
// caller should treat the test as inconclusive.
func ChiSquaredStatistic(a, b, c, d float64) (float64, bool) {
	rowA := a + b
	rowB := c + d
	colA := a + c
	colB := b + d
	total := rowA + rowB
	if rowA == 0 || rowB == 0 || colA == 0 || colB == 0 || total == 0 {
		return 0, false
	}

	expected := func(row, col, total float64) float64 { return row * col / total }
	ea := expected(rowA, colA, total)
	eb := expected(rowA, colB, total)
	ec := expected(rowB, colA, total)
	ed := expected(rowB, colB, total)

	term := func(observed, exp float64) float64 {
		if exp == 0 {
			return 0
		}
		diff := observed - exp
		return diff * diff / exp
	}

	return term(a, ea) + term(b, eb) + term(c, ec) + term(d, ed), true
}
