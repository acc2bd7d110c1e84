package detector

import (
	"math"
	"sort"

	"github.com/scaqms/aqms-go/internal/datastore"
	"github.com/scaqms/aqms-go/internal/errors"
)

// densityMethod is the unsupervised detector: it fits a k-nearest-neighbour
// average-distance scorer over the current window's standardized feature
// vectors. Points whose neighbourhood is sparser than the (1-contamination)
// quantile of the window are flagged. Fully deterministic for a given window.
type densityMethod struct {
	neighbors     int
	contamination float64
	minSamples    int
}

// densityResult holds the per-reading score and the calibrated threshold.
type densityResult struct {
	scores    []float64 // normalized to [0,1]
	raw       []float64
	threshold float64 // in raw score space
}

// flagged reports whether the reading at index i was flagged.
func (r *densityResult) flagged(i int) bool {
	return r.raw[i] > r.threshold
}

// fitScore fits the scorer over the window and scores every reading. It
// returns a model-fit error when the window is below the minimum sample
// threshold; the caller skips the method for that cycle and records a
// degraded cycle.
func (m *densityMethod) fitScore(readings []datastore.Reading) (*densityResult, error) {
	n := len(readings)
	if n < m.minSamples {
		return nil, errors.Newf("window of %d readings is below the %d sample minimum", n, m.minSamples).
			Component("detector").
			Category(errors.CategoryModelFit).
			Build()
	}

	// Standardize features over the window so no single quantity dominates
	// the distance metric.
	vectors := make([][featureCount]float64, n)
	var mean, sd [featureCount]float64
	for i := range readings {
		vectors[i] = featureVector(&readings[i])
		for f := 0; f < featureCount; f++ {
			mean[f] += vectors[i][f]
		}
	}
	for f := 0; f < featureCount; f++ {
		mean[f] /= float64(n)
	}
	for i := range vectors {
		for f := 0; f < featureCount; f++ {
			d := vectors[i][f] - mean[f]
			sd[f] += d * d
		}
	}
	for f := 0; f < featureCount; f++ {
		sd[f] = math.Sqrt(sd[f] / float64(n))
		if sd[f] == 0 {
			sd[f] = 1
		}
	}
	for i := range vectors {
		for f := 0; f < featureCount; f++ {
			vectors[i][f] = (vectors[i][f] - mean[f]) / sd[f]
		}
	}

	k := m.neighbors
	if k >= n {
		k = n - 1
	}

	// Average distance to the k nearest neighbours; sparse neighbourhoods
	// score high.
	raw := make([]float64, n)
	dists := make([]float64, 0, n-1)
	for i := range vectors {
		dists = dists[:0]
		for j := range vectors {
			if i == j {
				continue
			}
			dists = append(dists, euclidean(&vectors[i], &vectors[j]))
		}
		sort.Float64s(dists)
		sum := 0.0
		for _, d := range dists[:k] {
			sum += d
		}
		raw[i] = sum / float64(k)
	}

	threshold := quantile(raw, 1-m.contamination)

	// Normalize so the flag threshold lands at 0.5 and twice the threshold
	// saturates at 1.
	scores := make([]float64, n)
	for i, s := range raw {
		if threshold > 0 {
			scores[i] = math.Min(s/(2*threshold), 1.0)
		}
	}

	return &densityResult{scores: scores, raw: raw, threshold: threshold}, nil
}

func euclidean(a, b *[featureCount]float64) float64 {
	sum := 0.0
	for f := 0; f < featureCount; f++ {
		d := a[f] - b[f]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// quantile returns the q-th quantile of values using nearest-rank on a
// sorted copy.
func quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	idx := int(math.Ceil(q*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
