package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/smart-sustain/sustain-cli/internal/model"
	"github.com/smart-sustain/sustain-cli/internal/scoring"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig             `yaml:"store" mapstructure:"store"`
	Server     ServerConfig            `yaml:"server" mapstructure:"server"`
	Log        LogConfig               `yaml:"log" mapstructure:"log"`
	Scoring    ScoringConfig           `yaml:"scoring" mapstructure:"scoring"`
	Domains    map[string]DomainConfig `yaml:"domains" mapstructure:"domains"`
	Monitoring MonitoringConfig        `yaml:"monitoring" mapstructure:"monitoring"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	RateLimit   float64  `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per second
	RateBurst   int      `yaml:"rate_burst" mapstructure:"rate_burst"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ScoringConfig holds the process-wide weight table.
type ScoringConfig struct {
	Weights       map[string]float64 `yaml:"weights" mapstructure:"weights"`
	RetryAttempts int                `yaml:"retry_attempts" mapstructure:"retry_attempts"`
}

// DomainConfig describes how one domain is labelled and scored.
type DomainConfig struct {
	Label   string             `yaml:"label" mapstructure:"label"`
	Metrics []model.MetricSpec `yaml:"metrics" mapstructure:"metrics"`
}

// MonitoringConfig configures score alerting.
type MonitoringConfig struct {
	WebhookURL         string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CompositeThreshold float64 `yaml:"composite_threshold" mapstructure:"composite_threshold"`
	MaxFailedDomains   int     `yaml:"max_failed_domains" mapstructure:"max_failed_domains"`
	CheckIntervalSecs  int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"` // 0 disables the serve-time checker
}

// Table returns a copy of the configured weights.
func (c ScoringConfig) Table() scoring.Weights {
	return scoring.Weights(c.Weights).Clone()
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SUSTAIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "sustain.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 20)
	v.SetDefault("server.rate_burst", 40)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("scoring.retry_attempts", 3)
	for k, w := range scoring.DefaultWeights() {
		v.SetDefault("scoring.weights."+k, w)
	}
	v.SetDefault("monitoring.composite_threshold", 40)
	v.SetDefault("monitoring.max_failed_domains", 1)
	v.SetDefault("monitoring.check_interval_secs", 0)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	cfg.applyDomainDefaults()

	return &cfg, nil
}

// applyDomainDefaults fills in labels and metric catalogues for any domain
// the config file leaves unset.
func (c *Config) applyDomainDefaults() {
	if c.Domains == nil {
		c.Domains = make(map[string]DomainConfig, len(model.Domains))
	}
	specs := model.DefaultMetricSpecs()
	for _, d := range model.Domains {
		dc := c.Domains[d]
		if dc.Label == "" {
			dc.Label = model.DefaultLabel(d)
		}
		if len(dc.Metrics) == 0 {
			dc.Metrics = specs[d]
		}
		c.Domains[d] = dc
	}
}

// Label returns the display label for a domain key.
func (c *Config) Label(domain string) string {
	if dc, ok := c.Domains[domain]; ok && dc.Label != "" {
		return dc.Label
	}
	return model.DefaultLabel(domain)
}

// Validate checks the configuration is internally consistent. An invalid
// weight table is returned as a *scoring.ConfigurationError.
func (c *Config) Validate() error {
	if err := c.Scoring.Table().Validate(); err != nil {
		return err
	}

	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required for postgres")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port out of range: %d", c.Server.Port))
	}
	if c.Scoring.RetryAttempts < 1 {
		errs = append(errs, "scoring.retry_attempts must be >= 1")
	}
	if c.Monitoring.CheckIntervalSecs < 0 {
		errs = append(errs, "monitoring.check_interval_secs must be >= 0")
	}

	for _, d := range model.Domains {
		for _, m := range c.Domains[d].Metrics {
			if m.Name == "" {
				errs = append(errs, fmt.Sprintf("domains.%s has a metric without a name", d))
			}
			switch {
			case math.IsNaN(m.Min) || math.IsInf(m.Min, 0) || math.IsNaN(m.Max) || math.IsInf(m.Max, 0):
				errs = append(errs, fmt.Sprintf("domains.%s.%s: min and max must be finite", d, m.Name))
			case m.Min > m.Max:
				errs = append(errs, fmt.Sprintf("domains.%s.%s: min %v > max %v", d, m.Name, m.Min, m.Max))
			case math.IsInf(m.Max-m.Min, 0):
				errs = append(errs, fmt.Sprintf("domains.%s.%s: range [%v, %v] overflows", d, m.Name, m.Min, m.Max))
			}
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
