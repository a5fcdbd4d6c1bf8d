package provider

import "github.com/smart-sustain/sustain-cli/internal/model"

// FromSpecs builds one MetricProvider per domain in order, all reading from
// source. Domains without specs get an empty catalogue and always fail.
func FromSpecs(order []string, specs map[string][]model.MetricSpec, source ReadingSource) []Provider {
	out := make([]Provider, 0, len(order))
	for _, d := range order {
		out = append(out, NewMetricProvider(d, specs[d], source))
	}
	return out
}
