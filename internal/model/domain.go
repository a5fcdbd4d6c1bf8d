package model

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/smart-sustain/sustain-cli/internal/scoring"
)

// Domain keys, in dashboard display order.
const (
	DomainEducation   = scoring.DomainEducation
	DomainEmployment  = scoring.DomainEmployment
	DomainEnvironment = scoring.DomainEnvironment
	DomainHealth      = scoring.DomainHealth
	DomainSmartCity   = scoring.DomainSmartCity
)

// Domains lists every known domain key in display order.
var Domains = []string{
	DomainEducation,
	DomainEmployment,
	DomainEnvironment,
	DomainHealth,
	DomainSmartCity,
}

// IsDomain reports whether key is a known domain.
func IsDomain(key string) bool {
	for _, d := range Domains {
		if d == key {
			return true
		}
	}
	return false
}

var titleCaser = cases.Title(language.English)

// DefaultLabel derives a display label from a domain key,
// e.g. "smart_city" -> "Smart City".
func DefaultLabel(key string) string {
	return titleCaser.String(strings.ReplaceAll(key, "_", " "))
}

// MetricSpec declares the known range and polarity of one raw metric.
type MetricSpec struct {
	Name    string  `json:"name" yaml:"name" mapstructure:"name"`
	Min     float64 `json:"min" yaml:"min" mapstructure:"min"`
	Max     float64 `json:"max" yaml:"max" mapstructure:"max"`
	Reverse bool    `json:"reverse" yaml:"reverse" mapstructure:"reverse"` // lower raw values are better
}

// DefaultMetricSpecs returns the built-in metric catalogue per domain.
func DefaultMetricSpecs() map[string][]MetricSpec {
	return map[string][]MetricSpec{
		DomainEducation: {
			{Name: "literacy_rate", Min: 0, Max: 100},
			{Name: "enrollment_rate", Min: 0, Max: 100},
			{Name: "pupil_teacher_ratio", Min: 10, Max: 60, Reverse: true},
		},
		DomainEmployment: {
			{Name: "employment_rate", Min: 0, Max: 100},
			{Name: "unemployment_rate", Min: 0, Max: 30, Reverse: true},
			{Name: "median_income", Min: 0, Max: 100_000},
		},
		DomainEnvironment: {
			{Name: "aqi", Min: 0, Max: 300, Reverse: true},
			{Name: "green_cover_pct", Min: 0, Max: 60},
			{Name: "waste_recycled_pct", Min: 0, Max: 100},
		},
		DomainHealth: {
			{Name: "life_expectancy", Min: 40, Max: 90},
			{Name: "infant_mortality", Min: 0, Max: 100, Reverse: true},
			{Name: "hospital_beds_per_1k", Min: 0, Max: 10},
		},
		DomainSmartCity: {
			{Name: "broadband_pct", Min: 0, Max: 100},
			{Name: "public_transit_pct", Min: 0, Max: 100},
			{Name: "smart_meter_pct", Min: 0, Max: 100},
		},
	}
}
