// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Breaker BreakerConfig `mapstructure:"breaker"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Extract ExtractConfig `mapstructure:"extract"`
	Runner  RunnerConfig  `mapstructure:"runner"`
	Alert   AlertConfig   `mapstructure:"alert"`
	DB      DBConfig      `mapstructure:"db"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls the monitoring HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// HTTPConfig configures fetch retry behavior.
type HTTPConfig struct {
	TimeoutSeconds   int `mapstructure:"timeout_seconds"`
	MaxRetries       int `mapstructure:"max_retries"`
	BackoffBaseMs    int `mapstructure:"backoff_base_ms"`
	URLBudgetSeconds int `mapstructure:"url_budget_seconds"`
}

// BreakerConfig tunes the per-domain circuit breakers.
type BreakerConfig struct {
	FailureThreshold int `mapstructure:"failure_threshold"`
	CooldownMinutes  int `mapstructure:"cooldown_minutes"`
}

// CacheConfig governs the in-memory response cache.
type CacheConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	TTLMinutes int  `mapstructure:"ttl_minutes"`
}

// ExtractConfig tunes the HTML extraction heuristics.
type ExtractConfig struct {
	MinTitleLength int `mapstructure:"min_title_length"`
	MinTextLength  int `mapstructure:"min_text_length"`
	MaxDescription int `mapstructure:"max_description"`
}

// RunnerConfig governs the sequential batch loop.
type RunnerConfig struct {
	SitesFile       string  `mapstructure:"sites_file"`
	DelaySeconds    int     `mapstructure:"delay_seconds"`
	IntervalMinutes int     `mapstructure:"interval_minutes"`
	DomainRPS       float64 `mapstructure:"domain_rps"`
}

// AlertConfig selects and configures the alert sink.
type AlertConfig struct {
	SlackToken   string `mapstructure:"slack_token"`
	SlackChannel string `mapstructure:"slack_channel"`
}

// DBConfig controls optional Postgres persistence of scraped records.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCRAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_base_ms", 1000)
	v.SetDefault("http.url_budget_seconds", 120)
	v.SetDefault("breaker.failure_threshold", 3)
	v.SetDefault("breaker.cooldown_minutes", 30)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl_minutes", 60)
	v.SetDefault("extract.min_title_length", 15)
	v.SetDefault("extract.min_text_length", 15)
	v.SetDefault("extract.max_description", 500)
	v.SetDefault("runner.delay_seconds", 2)
	v.SetDefault("runner.interval_minutes", 60)
	v.SetDefault("runner.domain_rps", 0.5)
	v.SetDefault("db.table", "opportunities")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.Breaker.FailureThreshold <= 0 {
		return fmt.Errorf("breaker.failure_threshold must be > 0")
	}
	if c.Breaker.CooldownMinutes <= 0 {
		return fmt.Errorf("breaker.cooldown_minutes must be > 0")
	}
	if c.Cache.Enabled && c.Cache.TTLMinutes <= 0 {
		return fmt.Errorf("cache.ttl_minutes must be > 0 when cache is enabled")
	}
	if c.Alert.SlackToken != "" && c.Alert.SlackChannel == "" {
		return fmt.Errorf("alert.slack_channel must be set when alert.slack_token is set")
	}
	return nil
}

// FetchTimeout returns the per-attempt timeout as a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// URLBudget returns the overall per-URL wall-clock budget.
func (c Config) URLBudget() time.Duration {
	return time.Duration(c.HTTP.URLBudgetSeconds) * time.Second
}

// Cooldown returns the circuit-breaker cooldown as a duration.
func (c Config) Cooldown() time.Duration {
	return time.Duration(c.Breaker.CooldownMinutes) * time.Minute
}

// CacheTTL returns the response-cache lifetime as a duration.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLMinutes) * time.Minute
}

// RunDelay returns the pause between sites in a batch run.
func (c Config) RunDelay() time.Duration {
	return time.Duration(c.Runner.DelaySeconds) * time.Second
}

// RunInterval returns the period between batch runs.
func (c Config) RunInterval() time.Duration {
	return time.Duration(c.Runner.IntervalMinutes) * time.Minute
}
