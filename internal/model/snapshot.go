package model

import "time"

// DomainResult is the dashboard view of one domain for a cycle. Display is
// the value shown to users: 0 when the provider failed. Only Available
// domains feed the composite.
type DomainResult struct {
	Domain    string  `json:"domain"`
	Label     string  `json:"label"`
	Display   float64 `json:"display"`
	Available bool    `json:"available"`
	Error     string  `json:"error,omitempty"`
}

// Snapshot is the outcome of one dashboard cycle.
type Snapshot struct {
	ID          string         `json:"id"`
	Composite   float64        `json:"composite"`
	Domains     []DomainResult `json:"domains"`
	WeightsHash string         `json:"weights_hash"`
	ComputedAt  time.Time      `json:"computed_at"`
}

// Scores returns the composite input: scores of available domains only.
func (s *Snapshot) Scores() map[string]float64 {
	out := make(map[string]float64, len(s.Domains))
	for _, d := range s.Domains {
		if d.Available {
			out[d.Domain] = d.Display
		}
	}
	return out
}

// Failed returns the keys of domains whose provider failed.
func (s *Snapshot) Failed() []string {
	var out []string
	for _, d := range s.Domains {
		if !d.Available {
			out = append(out, d.Domain)
		}
	}
	return out
}
