package metrics

import (
	"math"
	"sort"
)

// PhaseStat is the per-phase, per-scope order-statistic summary. P50/P85 are
// nil when the sample pool is empty.
type PhaseStat struct {
	P50   *float64 `json:"p50"`
	P85   *float64 `json:"p85"`
	Count int      `json:"count"`
}

// Percentile computes the q-th percentile (q in [0,1]) of samples using
// linear interpolation between bracketing order statistics at rank q*(n-1).
// The second return is false when samples is empty. The method is fixed so
// that identical pools always reproduce identical statistics.
func Percentile(samples []float64, q float64) (float64, bool) {
	n := len(samples)
	if n == 0 {
		return 0, false
	}
	sorted := make([]float64, n)
	copy(sorted, samples)
	sort.Float64s(sorted)
	if n == 1 {
		return sorted[0], true
	}
	rank := q * float64(n-1)
	lower := int(math.Floor(rank))
	upper := lower + 1
	if upper >= n {
		return sorted[n-1], true
	}
	frac := rank - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower]), true
}

// DayStats summarizes a pool of hour samples, reporting days.
func DayStats(hourSamples []float64) PhaseStat {
	return summarize(hourSamples, 24, 2)
}

// HourStats summarizes a pool of hour samples, keeping the hour unit.
func HourStats(hourSamples []float64) PhaseStat {
	return summarize(hourSamples, 1, 1)
}

func summarize(samples []float64, divisor float64, decimals int) PhaseStat {
	st := PhaseStat{Count: len(samples)}
	if len(samples) == 0 {
		return st
	}
	p50, _ := Percentile(samples, 0.50)
	p85, _ := Percentile(samples, 0.85)
	v50 := roundTo(p50/divisor, decimals)
	v85 := roundTo(p85/divisor, decimals)
	st.P50 = &v50
	st.P85 = &v85
	return st
}

func roundTo(v float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Round(v*pow) / pow
}
