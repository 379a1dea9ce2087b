// Package config loads application configuration from config.yaml and
// AREASCOPE_* environment variables.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/areascope/internal/records"
	"github.com/sells-group/areascope/internal/resilience"
	"github.com/sells-group/areascope/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Provider     ProviderConfig             `yaml:"provider" mapstructure:"provider"`
	Fetch        records.FetchConfig        `yaml:"fetch" mapstructure:"fetch"`
	Retry        RetryConfig                `yaml:"retry" mapstructure:"retry"`
	Orchestrator records.OrchestratorConfig `yaml:"orchestrator" mapstructure:"orchestrator"`
	Affluence    records.AffluenceConfig    `yaml:"affluence" mapstructure:"affluence"`
	Area         AreaConfig                 `yaml:"area" mapstructure:"area"`
	Store        store.Config               `yaml:"store" mapstructure:"store"`
	Server       ServerConfig               `yaml:"server" mapstructure:"server"`
	Log          LogConfig                  `yaml:"log" mapstructure:"log"`
}

// ProviderConfig holds records-provider credentials and limits.
type ProviderConfig struct {
	Token        string        `yaml:"token" mapstructure:"token"`
	BaseURL      string        `yaml:"base_url" mapstructure:"base_url"`
	RateRequests int           `yaml:"rate_requests" mapstructure:"rate_requests"`
	RateWindow   time.Duration `yaml:"rate_window" mapstructure:"rate_window"`
	TimeoutSecs  int           `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// RetryConfig configures the provider retry policy.
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff" mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff" mapstructure:"max_backoff"`
}

// Resilience converts the retry settings to the runtime policy.
func (c RetryConfig) Resilience() resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	if c.MaxAttempts > 0 {
		cfg.MaxAttempts = c.MaxAttempts
	}
	if c.InitialBackoff > 0 {
		cfg.InitialBackoff = c.InitialBackoff
	}
	if c.MaxBackoff > 0 {
		cfg.MaxBackoff = c.MaxBackoff
	}
	return cfg
}

// AreaConfig configures area-file parsing.
type AreaConfig struct {
	MaxRingPoints int `yaml:"max_ring_points" mapstructure:"max_ring_points"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port            int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins  []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	MaxUploadSizeMB int      `yaml:"max_upload_size_mb" mapstructure:"max_upload_size_mb"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("AREASCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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

	if err := cfg.Affluence.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// AutomaticEnv only surfaces keys that viper knows about, so the
	// token needs a default even though there is no sensible value.
	v.SetDefault("provider.token", "")
	v.SetDefault("provider.base_url", "https://api.data-axle.com/v1")
	v.SetDefault("provider.rate_requests", 150)
	v.SetDefault("provider.rate_window", "10s")
	v.SetDefault("provider.timeout_secs", 60)

	v.SetDefault("fetch.max_pages", records.DefaultMaxPages)
	v.SetDefault("fetch.max_results", 0)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff", "500ms")
	v.SetDefault("retry.max_backoff", "30s")

	v.SetDefault("orchestrator.concurrency", 4)
	v.SetDefault("orchestrator.timeout", "10m")

	affluence := records.DefaultAffluenceConfig()
	v.SetDefault("affluence.income_weight", affluence.IncomeWeight)
	v.SetDefault("affluence.home_value_weight", affluence.HomeValueWeight)
	v.SetDefault("affluence.wealth_weight", affluence.WealthWeight)
	v.SetDefault("affluence.ownership_weight", affluence.OwnershipWeight)
	v.SetDefault("affluence.income_cap", affluence.IncomeCap)
	v.SetDefault("affluence.home_value_cap", affluence.HomeValueCap)
	v.SetDefault("affluence.wealth_cap", affluence.WealthCap)

	v.SetDefault("area.max_ring_points", 500)

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "areascope.db")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.max_upload_size_mb", 32)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
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
