package scoring

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
)

// Composite returns the weighted average of scores. Only domains present in
// both maps contribute, and the result is divided by the sum of those
// domains' weights, so missing domains renormalize the remainder. When no
// supplied domain carries weight the composite is 0. The result is not
// clamped.
func Composite(scores map[string]float64, weights Weights) float64 {
	var totalW, weighted float64
	for k, s := range scores {
		w, ok := weights[k]
		if !ok {
			continue
		}
		totalW += w
		weighted += s * w
	}
	if totalW == 0 {
		return 0.0
	}
	return weighted / totalW
}

// Scorer combines domain scores using a validated default weight table.
// It holds no mutable state and is safe for concurrent use.
type Scorer struct {
	weights Weights
}

// NewScorer validates weights and binds them as the default table.
func NewScorer(weights Weights) (*Scorer, error) {
	if len(weights) == 0 {
		return nil, eris.New("scoring: default weight table is empty")
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{weights: weights.Clone()}, nil
}

// Weights returns a copy of the default table.
func (s *Scorer) Weights() Weights {
	return s.weights.Clone()
}

// Score combines scores with the default table.
func (s *Scorer) Score(scores map[string]float64) float64 {
	return Composite(scores, s.weights)
}

// ScoreWith combines scores with override, falling back to the default
// table when override is empty. Overrides need not sum to 1.0.
func (s *Scorer) ScoreWith(scores map[string]float64, override Weights) float64 {
	if len(override) == 0 {
		return s.Score(scores)
	}
	return Composite(scores, override)
}

// Hash returns a short SHA-256 digest of the default table so persisted
// snapshots can be tied to the weights that produced them.
func (s *Scorer) Hash() string {
	return WeightsHash(s.weights)
}

// WeightsHash returns a 32 hex character digest of w. encoding/json sorts
// map keys, so equal tables hash equally.
func WeightsHash(w Weights) string {
	data, err := json.Marshal(w)
	if err != nil {
		return ""
	}
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:16])
}
