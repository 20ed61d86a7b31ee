package statutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNearestRankPercentile(t *testing.T) {
	values := []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	p95 := NearestRankPercentile(values, 0.95)
	assert.Equal(t, 100.0, p95)
}

func TestNearestRankPercentile_SingleValue(t *testing.T) {
	assert.Equal(t, 42.0, NearestRankPercentile([]float64{42}, 0.95))
}

func TestStandardize(t *testing.T) {
	rows := [][]float64{
		{1, 100},
		{2, 200},
		{3, 300},
	}
	standardized, means, stddevs := Standardize(rows)

	assert.Equal(t, 2.0, means[0])
	assert.InDelta(t, 200.0, means[1], 1e-9)
	assert.True(t, stddevs[0] > 0)

	// standardized columns have zero mean
	var sum0 float64
	for _, r := range standardized {
		sum0 += r[0]
	}
	assert.InDelta(t, 0.0, sum0, 1e-9)
}

func TestStandardize_ZeroVarianceColumn(t *testing.T) {
	rows := [][]float64{{5, 1}, {5, 2}, {5, 3}}
	standardized, _, stddevs := Standardize(rows)

	assert.Equal(t, 0.0, stddevs[0])
	for _, r := range standardized {
		assert.Equal(t, 0.0, r[0])
	}
}

func TestEuclideanDistance(t *testing.T) {
	d := EuclideanDistance([]float64{0, 0}, []float64{3, 4})
	assert.Equal(t, 5.0, d)
}

func TestChiSquaredStatistic(t *testing.T) {
	stat, ok := ChiSquaredStatistic(10, 20, 5, 25)
	assert.True(t, ok)
	assert.True(t, stat > 0)
}

func TestChiSquaredStatistic_Degenerate(t *testing.T) {
	_, ok := ChiSquaredStatistic(0, 0, 5, 10)
	assert.False(t, ok)
}

func TestChiSquaredPValue_HighStatisticIsSignificant(t *testing.T) {
	p := ChiSquaredPValue(50, 1)
	assert.True(t, p < 0.01)
}

func TestChiSquaredPValue_ZeroStatisticIsNotSignificant(t *testing.T) {
	p := ChiSquaredPValue(0, 1)
	assert.True(t, math.Abs(p-1.0) < 1e-6)
}
