// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	DB        DBConfig        `mapstructure:"db"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Snapshots SnapshotsConfig `mapstructure:"snapshots"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// CrawlerConfig governs the discovery pipeline.
type CrawlerConfig struct {
	UserAgent         string   `mapstructure:"user_agent"`
	Merchants         []string `mapstructure:"merchants"`
	MerchantTimeoutMs int      `mapstructure:"merchant_timeout_ms"`
	RenderTimeoutMs   int      `mapstructure:"render_timeout_ms"`
	ProbeTimeoutMs    int      `mapstructure:"probe_timeout_ms"`
	MaxParallel       int      `mapstructure:"max_parallel"`
	DomainQPS         float64  `mapstructure:"domain_qps"`
}

// DBConfig controls access to the relational database. Credentials must
// come from the environment; there is no usable default for them.
type DBConfig struct {
	Driver   string `mapstructure:"driver"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	Currency string `mapstructure:"currency"`
}

// PubSubConfig holds metadata for price-drop notifications. Leaving the
// project empty disables publishing.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// SnapshotsConfig selects where rendered pages are archived.
// Provider is one of "gcs", "local" or "noop".
type SnapshotsConfig struct {
	Provider  string `mapstructure:"provider"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	LocalDir  string `mapstructure:"local_dir"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment. Environment variables use
// the PRICEHOUND_ prefix with dots replaced by underscores, so db.user
// is read from PRICEHOUND_DB_USER.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PRICEHOUND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnv(v)

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
	v.SetDefault("crawler.user_agent", "pricehound-bot/0.1")
	v.SetDefault("crawler.merchants", []string{"https://www.amazon.de", "https://www.otto.de"})
	v.SetDefault("crawler.merchant_timeout_ms", 45000)
	v.SetDefault("crawler.render_timeout_ms", 10000)
	v.SetDefault("crawler.probe_timeout_ms", 15000)
	v.SetDefault("crawler.max_parallel", 2)
	v.SetDefault("crawler.domain_qps", 1.0)
	v.SetDefault("db.driver", "postgresql")
	v.SetDefault("db.currency", "EUR")
	v.SetDefault("snapshots.provider", "noop")
	v.SetDefault("snapshots.local_dir", "snapshots")
	v.SetDefault("logging.development", true)
}

// bindEnv registers keys that have no default so AutomaticEnv picks
// them up during Unmarshal.
func bindEnv(v *viper.Viper) {
	for _, key := range []string{
		"db.user", "db.password", "db.host", "db.port", "db.name",
		"pubsub.project_id", "pubsub.topic_name",
		"snapshots.gcs_bucket",
	} {
		_ = v.BindEnv(key)
	}
}

// Validate enforces required values and reasonable limits. Missing
// database credentials are a startup error, not something to limp past.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.UserAgent == "" {
		return fmt.Errorf("crawler.user_agent must be set")
	}
	if len(c.Crawler.Merchants) == 0 {
		return fmt.Errorf("crawler.merchants must list at least one base URL")
	}
	if c.Crawler.MaxParallel <= 0 {
		return fmt.Errorf("crawler.max_parallel must be > 0")
	}
	if c.Crawler.RenderTimeoutMs <= 0 {
		return fmt.Errorf("crawler.render_timeout_ms must be > 0")
	}
	if c.Crawler.ProbeTimeoutMs <= 0 {
		return fmt.Errorf("crawler.probe_timeout_ms must be > 0")
	}
	if c.DB.Driver == "" {
		return fmt.Errorf("db.driver must be set")
	}
	if c.DB.User == "" {
		return fmt.Errorf("db.user must be set")
	}
	if c.DB.Password == "" {
		return fmt.Errorf("db.password must be set")
	}
	if c.DB.Host == "" {
		return fmt.Errorf("db.host must be set")
	}
	if c.DB.Port <= 0 {
		return fmt.Errorf("db.port must be > 0")
	}
	if c.DB.Name == "" {
		return fmt.Errorf("db.name must be set")
	}
	switch c.Snapshots.Provider {
	case "gcs":
		if c.Snapshots.GCSBucket == "" {
			return fmt.Errorf("snapshots.gcs_bucket must be set when provider is gcs")
		}
	case "local":
		if c.Snapshots.LocalDir == "" {
			return fmt.Errorf("snapshots.local_dir must be set when provider is local")
		}
	case "noop":
	default:
		return fmt.Errorf("snapshots.provider must be gcs, local or noop")
	}
	return nil
}

// DSN assembles the database connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("%s://%s:%s@%s:%d/%s",
		c.Driver, c.User, c.Password, c.Host, c.Port, c.Name)
}

// MerchantTimeout converts the per-merchant budget into a duration.
func (c CrawlerConfig) MerchantTimeout() time.Duration {
	return time.Duration(c.MerchantTimeoutMs) * time.Millisecond
}

// RenderTimeout converts the render wait budget into a duration.
func (c CrawlerConfig) RenderTimeout() time.Duration {
	return time.Duration(c.RenderTimeoutMs) * time.Millisecond
}

// ProbeTimeout converts the preflight probe budget into a duration.
func (c CrawlerConfig) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutMs) * time.Millisecond
}
