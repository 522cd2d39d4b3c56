// Package calc holds the pure numeric helpers used to turn raw records into
// dashboard statistics.
//
// Every float returned by this package is rounded to Precision decimal places
// and is always finite: empty inputs and zero denominators produce a
// documented fallback instead of NaN.
package calc

import (
	"math"
	"sort"
)

// Precision is the number of decimal places every result is rounded to.
const Precision = 1

var scale = math.Pow10(Precision)

// Round rounds v half away from zero to Precision decimals. Non-finite input
// becomes 0.
func Round(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*scale) / scale
}

// Rate returns success/total as a percentage. It returns 0 when total <= 0.
// success is clamped to [0, total].
func Rate(success, total int) float64 {
	if total <= 0 {
		return 0
	}
	success = min(max(success, 0), total)
	return Round(float64(success) / float64(total) * 100)
}

// Weighted is one value participating in a weighted average.
type Weighted struct {
	Value  float64
	Weight float64
}

// WeightedAverage returns sum(value*weight)/sum(weight). Items with a
// non-finite value or a non-positive weight are ignored; when nothing is left
// the fallback is returned (rounded).
func WeightedAverage(items []Weighted, fallback float64) float64 {
	var sum, weights float64
	for _, it := range items {
		if !finite(it.Value) || !finite(it.Weight) || it.Weight <= 0 {
			continue
		}
		sum += it.Value * it.Weight
		weights += it.Weight
	}
	if weights == 0 {
		return Round(fallback)
	}
	return Round(sum / weights)
}

// Mean is WeightedAverage with every weight set to 1.
func Mean(values []float64, fallback float64) float64 {
	items := make([]Weighted, 0, len(values))
	for _, v := range values {
		items = append(items, Weighted{Value: v, Weight: 1})
	}
	return WeightedAverage(items, fallback)
}

// Bucket is one slice of a distribution.
type Bucket struct {
	Name       string  `json:"name"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

/*
Distribution groups items with classify and reports each bucket's share.

  - Buckets are sorted by name so the output does not depend on input order.
  - Percentages add up to 100 give or take rounding.
  - Empty input yields an empty (non-nil) slice, never an error.
  - Items classified as "" are counted under "unknown".
*/
func Distribution[T any](items []T, classify func(T) string) []Bucket {
	counts := make(map[string]int)
	for _, it := range items {
		name := classify(it)
		if name == "" {
			name = "unknown"
		}
		counts[name]++
	}

	out := make([]Bucket, 0, len(counts))
	for name, n := range counts {
		out = append(out, Bucket{Name: name, Count: n, Percentage: Rate(n, len(items))})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Threshold names the band for values >= Min.
type Threshold struct {
	Min  float64
	Name string
}

// Band builds a classifier for Distribution from thresholds. The highest
// matching Min wins; values below every threshold fall into below.
func Band(thresholds []Threshold, below string) func(float64) string {
	sorted := append([]Threshold(nil), thresholds...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Min > sorted[j].Min })
	return func(v float64) string {
		for _, t := range sorted {
			if v >= t.Min {
				return t.Name
			}
		}
		return below
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
