package scoring

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// weightTolerance is the allowed drift of the default table from 1.0.
const weightTolerance = 1e-6

// Domain keys with a weight in the default table.
const (
	DomainEducation   = "education"
	DomainEmployment  = "employment"
	DomainEnvironment = "environment"
	DomainHealth      = "health"
	DomainSmartCity   = "smart_city"
)

// Weights maps a domain key to its non-negative weight.
type Weights map[string]float64

// DefaultWeights returns the equal-priority table. Weights sum to 1.0.
func DefaultWeights() Weights {
	return Weights{
		DomainEducation:   0.20,
		DomainEmployment:  0.20,
		DomainEnvironment: 0.20,
		DomainHealth:      0.20,
		DomainSmartCity:   0.20,
	}
}

// Sum returns the total of all weights in the table.
func (w Weights) Sum() float64 {
	var sum float64
	for _, v := range w {
		sum += v
	}
	return sum
}

// Keys returns the domain keys in sorted order.
func (w Weights) Keys() []string {
	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns an independent copy of the table.
func (w Weights) Clone() Weights {
	if w == nil {
		return nil
	}
	c := make(Weights, len(w))
	for k, v := range w {
		c[k] = v
	}
	return c
}

// Validate checks the table is usable as the process-wide default: every
// weight is non-negative and the total is 1.0 within tolerance.
func (w Weights) Validate() error {
	var problems []string

	for _, k := range w.Keys() {
		v := w[k]
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			problems = append(problems, fmt.Sprintf("%s weight must be a finite value >= 0, got %v", k, v))
		}
	}

	if sum := w.Sum(); math.IsNaN(sum) || math.Abs(sum-1.0) >= weightTolerance {
		problems = append(problems, fmt.Sprintf("weights must sum to 1.0, got %.6f", sum))
	}

	if len(problems) > 0 {
		return &ConfigurationError{Problems: problems}
	}
	return nil
}

// ConfigurationError reports an invalid default weight table. It is fatal at
// startup.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return "scoring: invalid weight table: " + strings.Join(e.Problems, "; ")
}
