package classifier

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
)

// The four ordered AQI classes predicted by the model.
const numClasses = 4

var classLabels = [numClasses]string{"Good", "Moderate", "Unhealthy", "Hazardous"}

// scalerState is a running per-feature standardizer maintained with
// Welford's algorithm so updates never revisit historical data.
type scalerState struct {
	Count int64                `json:"count"`
	Mean  [numFeatures]float64 `json:"mean"`
	M2    [numFeatures]float64 `json:"m2"`
}

func (s *scalerState) update(v *[numFeatures]float64) {
	s.Count++
	for i := 0; i < numFeatures; i++ {
		delta := v[i] - s.Mean[i]
		s.Mean[i] += delta / float64(s.Count)
		s.M2[i] += delta * (v[i] - s.Mean[i])
	}
}

func (s *scalerState) transform(v *[numFeatures]float64) [numFeatures]float64 {
	var out [numFeatures]float64
	for i := 0; i < numFeatures; i++ {
		sd := 1.0
		if s.Count > 1 {
			if computed := math.Sqrt(s.M2[i] / float64(s.Count)); computed > 0 {
				sd = computed
			}
		}
		out[i] = (v[i] - s.Mean[i]) / sd
	}
	return out
}

// modelState is the serializable classifier state: softmax regression
// weights plus the running scaler. The version counter strictly increases
// with every persisted update.
type modelState struct {
	Version int64                            `json:"version"`
	Weights [numClasses][numFeatures]float64 `json:"weights"`
	Bias    [numClasses]float64              `json:"bias"`
	Scaler  scalerState                      `json:"scaler"`
}

// newModelState returns the safe default (zero-weight) state.
func newModelState() *modelState {
	return &modelState{}
}

// decodeModelState unmarshals a persisted checkpoint payload and verifies
// it is internally consistent with the stored version.
func decodeModelState(payload []byte, version int64) (*modelState, error) {
	var state modelState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("decoding model state: %w", err)
	}
	if state.Version != version {
		return nil, fmt.Errorf("model state version %d does not match checkpoint version %d",
			state.Version, version)
	}
	return &state, nil
}

// encode marshals the state for checkpointing.
func (m *modelState) encode() ([]byte, error) {
	return json.Marshal(m)
}

// softmax returns the class probability distribution for a standardized
// feature vector. Scoring is fully deterministic.
func (m *modelState) softmax(x *[numFeatures]float64) [numClasses]float64 {
	var logits [numClasses]float64
	maxLogit := math.Inf(-1)
	for c := 0; c < numClasses; c++ {
		sum := m.Bias[c]
		for f := 0; f < numFeatures; f++ {
			sum += m.Weights[c][f] * x[f]
		}
		logits[c] = sum
		if sum > maxLogit {
			maxLogit = sum
		}
	}

	var probs [numClasses]float64
	total := 0.0
	for c := 0; c < numClasses; c++ {
		probs[c] = math.Exp(logits[c] - maxLogit)
		total += probs[c]
	}
	for c := 0; c < numClasses; c++ {
		probs[c] /= total
	}
	return probs
}

// predict returns the argmax class index and its probability.
func (m *modelState) predict(x *[numFeatures]float64) (int, [numClasses]float64) {
	probs := m.softmax(x)
	best := 0
	for c := 1; c < numClasses; c++ {
		if probs[c] > probs[best] {
			best = c
		}
	}
	return best, probs
}

// fitBatch performs one incremental SGD step over the mini-batch with a
// softmax cross-entropy loss. The sample order is shuffled with the seeded
// source so the update is reproducible; cost is bounded by batch size, never
// by dataset size. Returns the post-update accuracy against the labels.
func (m *modelState) fitBatch(features [][numFeatures]float64, labels []int, learningRate float64, seed int64) float64 {
	n := len(features)
	if n == 0 {
		return 0
	}

	// Update the scaler with the batch before standardizing it; both passes
	// are deterministic.
	for i := range features {
		m.Scaler.update(&features[i])
	}
	scaled := make([][numFeatures]float64, n)
	for i := range features {
		scaled[i] = m.Scaler.transform(&features[i])
	}

	rng := rand.New(rand.NewSource(seed))
	order := rng.Perm(n)

	for _, i := range order {
		probs := m.softmax(&scaled[i])
		for c := 0; c < numClasses; c++ {
			grad := probs[c]
			if c == labels[i] {
				grad -= 1
			}
			for f := 0; f < numFeatures; f++ {
				m.Weights[c][f] -= learningRate * grad * scaled[i][f]
			}
			m.Bias[c] -= learningRate * grad
		}
	}

	correct := 0
	for i := range scaled {
		pred, _ := m.predict(&scaled[i])
		if pred == labels[i] {
			correct++
		}
	}
	return float64(correct) / float64(n)
}

// score standardizes and predicts one raw feature vector without mutating
// any state.
func (m *modelState) score(v *[numFeatures]float64) (string, float64, [numClasses]float64) {
	x := m.Scaler.transform(v)
	idx, probs := m.predict(&x)
	return classLabels[idx], probs[idx], probs
}
