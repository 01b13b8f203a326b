// Package aggregate turns phenotype embeddings into a single disease or query vector.
//
// Both functions are pure: they only read the table and never retain the
// inputs, so callers may run them concurrently for different diseases.
package aggregate

import (
	"sort"
)

// VectorLookup resolves a phenotype ID to its embedding, nil when unknown.
type VectorLookup interface {
	Vector(id string) []float32
}

// Average returns the element-wise mean of the vectors of the known phenotypes.
// Unknown IDs are dropped. ok is false when no phenotype resolves.
func Average(ids []string, table VectorLookup) (vec []float32, ok bool) {
	var sum []float64
	n := 0
	for _, id := range ids {
		v := table.Vector(id)
		if len(v) == 0 {
			continue
		}
		if sum == nil {
			sum = make([]float64, len(v))
		}
		if len(v) != len(sum) {
			continue
		}
		for i, x := range v {
			sum[i] += float64(x)
		}
		n++
	}
	if n == 0 {
		return nil, false
	}
	return scale(sum, 1/float64(n)), true
}

// WeightedAverage returns Σ(wᵢ·vᵢ)/Σwᵢ over phenotypes present in both weights
// and table. ok is false when the accumulated weight is not positive.
func WeightedAverage(weights map[string]float64, table VectorLookup) (vec []float32, ok bool) {
	// Fixed iteration order keeps the floating-point sum reproducible.
	ids := make([]string, 0, len(weights))
	for id := range weights {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var sum []float64
	total := 0.0
	for _, id := range ids {
		v := table.Vector(id)
		if len(v) == 0 {
			continue
		}
		if sum == nil {
			sum = make([]float64, len(v))
		}
		if len(v) != len(sum) {
			continue
		}
		w := weights[id]
		for i, x := range v {
			sum[i] += w * float64(x)
		}
		total += w
	}
	if total <= 0 {
		return nil, false
	}
	return scale(sum, 1/total), true
}

func scale(sum []float64, f float64) []float32 {
	out := make([]float32, len(sum))
	for i, x := range sum {
		out[i] = float32(x * f)
	}
	return out
}
