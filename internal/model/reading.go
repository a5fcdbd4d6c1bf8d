package model

import "time"

// Reading is one raw metric observation for a domain.
type Reading struct {
	ID         string    `json:"id"`
	Domain     string    `json:"domain"`
	Metric     string    `json:"metric"`
	Value      float64   `json:"value"`
	ObservedAt time.Time `json:"observed_at"`
	Source     string    `json:"source,omitempty"` // import file or feed name
	CreatedAt  time.Time `json:"created_at"`
}
