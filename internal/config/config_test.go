package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smart-sustain/sustain-cli/internal/model"
	"github.com/smart-sustain/sustain-cli/internal/scoring"
)

// chdirTemp moves into an empty temp dir so no stray config.yaml is found.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "sustain.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.InDelta(t, 20, cfg.Server.RateLimit, 0.001)
	assert.Equal(t, 40, cfg.Server.RateBurst)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 3, cfg.Scoring.RetryAttempts)
	assert.InDelta(t, 40, cfg.Monitoring.CompositeThreshold, 0.001)
	assert.Equal(t, 1, cfg.Monitoring.MaxFailedDomains)
	assert.Equal(t, 0, cfg.Monitoring.CheckIntervalSecs)

	table := cfg.Scoring.Table()
	assert.Len(t, table, 5)
	assert.InDelta(t, 1.0, table.Sum(), 1e-6)
	for _, d := range model.Domains {
		assert.InDelta(t, 0.2, table[d], 1e-9, d)
	}

	assert.Equal(t, "Smart City", cfg.Domains[model.DomainSmartCity].Label)
	assert.Equal(t, model.DefaultMetricSpecs()[model.DomainEnvironment], cfg.Domains[model.DomainEnvironment].Metrics)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/sustain
log:
  level: debug
  format: console
server:
  port: 9090
scoring:
  weights:
    education: 0.3
    environment: 0.1
domains:
  environment:
    label: Air & Green
    metrics:
      - name: pm25
        min: 0
        max: 250
        reverse: true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)

	// File values merge over per-domain defaults.
	table := cfg.Scoring.Table()
	assert.InDelta(t, 0.3, table[model.DomainEducation], 1e-9)
	assert.InDelta(t, 0.1, table[model.DomainEnvironment], 1e-9)
	assert.InDelta(t, 0.2, table[model.DomainHealth], 1e-9)

	env := cfg.Domains[model.DomainEnvironment]
	assert.Equal(t, "Air & Green", env.Label)
	require.Len(t, env.Metrics, 1)
	assert.Equal(t, model.MetricSpec{Name: "pm25", Min: 0, Max: 250, Reverse: true}, env.Metrics[0])

	// Untouched domains keep the built-in catalogue.
	assert.Equal(t, "Health", cfg.Domains[model.DomainHealth].Label)
	assert.NotEmpty(t, cfg.Domains[model.DomainHealth].Metrics)

	require.NoError(t, cfg.Validate())
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("SUSTAIN_SERVER_PORT", "3000")
	t.Setenv("SUSTAIN_STORE_DRIVER", "postgres")
	t.Setenv("SUSTAIN_SCORING_WEIGHTS_HEALTH", "0.1")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.InDelta(t, 0.1, cfg.Scoring.Table()[model.DomainHealth], 1e-9)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [\n"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Server.Port = 8080
	cfg.Scoring.Weights = scoring.DefaultWeights()
	cfg.Scoring.RetryAttempts = 3
	cfg.applyDomainDefaults()
	return cfg
}

func TestValidate_WeightsMustSumToOne(t *testing.T) {
	cfg := validDefaults()
	cfg.Scoring.Weights[model.DomainSmartCity] = 0.1 // sums to 0.9

	err := cfg.Validate()
	require.Error(t, err)

	var cfgErr *scoring.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, err.Error(), "must sum to 1.0")
}

func TestValidate_NegativeWeight(t *testing.T) {
	cfg := validDefaults()
	cfg.Scoring.Weights[model.DomainHealth] = -0.2
	cfg.Scoring.Weights[model.DomainEducation] = 0.6

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "health weight must be")
}

func TestValidate_Driver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")

	cfg.Store.Driver = "postgres"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.DatabaseURL = "postgres://localhost/sustain"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_Port(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
}

func TestValidate_CheckInterval(t *testing.T) {
	cfg := validDefaults()
	cfg.Monitoring.CheckIntervalSecs = -5

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitoring.check_interval_secs")

	cfg.Monitoring.CheckIntervalSecs = 300
	assert.NoError(t, cfg.Validate())
}

func TestValidate_MetricRange(t *testing.T) {
	cfg := validDefaults()
	dc := cfg.Domains[model.DomainHealth]
	dc.Metrics = []model.MetricSpec{{Name: "life_expectancy", Min: 90, Max: 40}}
	cfg.Domains[model.DomainHealth] = dc

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "domains.health.life_expectancy")
}

func TestLabel(t *testing.T) {
	cfg := validDefaults()
	assert.Equal(t, "Education", cfg.Label(model.DomainEducation))
	assert.Equal(t, "Transport", cfg.Label("transport"))
}

func TestValidate_NonFiniteMetricBounds(t *testing.T) {
	tests := []struct {
		name string
		spec model.MetricSpec
		want string
	}{
		{"inf max", model.MetricSpec{Name: "aqi", Min: 0, Max: math.Inf(1)}, "must be finite"},
		{"nan min", model.MetricSpec{Name: "aqi", Min: math.NaN(), Max: 300}, "must be finite"},
		{"overflowing range", model.MetricSpec{Name: "aqi", Min: -1.7e308, Max: 1.7e308}, "overflows"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			dc := cfg.Domains[model.DomainEnvironment]
			dc.Metrics = []model.MetricSpec{tt.spec}
			cfg.Domains[model.DomainEnvironment] = dc

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "domains.environment.aqi")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadRejectsInfiniteBoundFromYAML(t *testing.T) {
	dir := chdirTemp(t)
	yaml := `domains:
  environment:
    metrics:
      - name: aqi
        min: 0
        max: .inf
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min and max must be finite")
}
