// Package aggregate reduces enriched patient, encounter and procedure tables
// into the named summary sections of an analysis run. Every function here is
// a pure reduction; none depends on another section's output.
package aggregate

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// Quantile returns the q-th quantile of values using linear interpolation
// between closest ranks, h = (n-1)q. NaN for an empty input.
func Quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	h := float64(len(sorted)-1) * q
	lo := math.Floor(h)
	hi := math.Ceil(h)
	if lo == hi {
		return sorted[int(lo)]
	}
	return sorted[int(lo)] + (h-lo)*(sorted[int(hi)]-sorted[int(lo)])
}

func Median(values []float64) float64 {
	return Quantile(values, 0.5)
}

// Mean returns 0 for an empty input.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var s float64
	for _, v := range values {
		s += v
	}
	return s / float64(len(values))
}

// Std is the sample standard deviation (n-1 denominator). 0 when fewer than
// two values.
func Std(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := Mean(values)
	var ss float64
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)-1))
}

func minMax(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// MoneySum adds amounts as exact decimals so per-group totals partition the
// grand total.
func MoneySum(values []float64) decimal.Decimal {
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(decimal.NewFromFloat(v))
	}
	return sum
}

func moneyMean(values []float64) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	return MoneySum(values).Div(decimal.NewFromInt(int64(len(values))))
}

// cents rounds a money amount half away from zero to two places.
func cents(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// round2 rounds half to even at two decimals, used for rates and durations.
func round2(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return math.RoundToEven(x*100) / 100
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return round2(float64(part) / float64(whole) * 100)
}

// Bin is one equal-width histogram bucket. The last bucket is closed on the
// right.
type Bin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// Histogram splits [min, max] of values into n equal-width buckets.
func Histogram(values []float64, n int) []Bin {
	if len(values) == 0 || n <= 0 {
		return nil
	}
	lo, hi := minMax(values)
	if lo == hi {
		lo -= 0.5
		hi += 0.5
	}
	width := (hi - lo) / float64(n)
	bins := make([]Bin, n)
	for i := range bins {
		bins[i].Lower = lo + float64(i)*width
		bins[i].Upper = lo + float64(i+1)*width
	}
	for _, v := range values {
		i := int((v - lo) / width)
		if i >= n {
			i = n - 1
		}
		if i < 0 {
			i = 0
		}
		bins[i].Count++
	}
	return bins
}

// present collects the non-nil values.
func present(ptrs ...*float64) []float64 {
	out := make([]float64, 0, len(ptrs))
	for _, p := range ptrs {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out
}
