// Package config provides configuration management for the paper acquisition service.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the acquisition service.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Database contains PostgreSQL paper store settings.
	Database DatabaseConfig `mapstructure:"database"`
	// Kafka contains saved-paper event publisher settings.
	Kafka KafkaConfig `mapstructure:"kafka"`
	// Browser contains browser automation settings.
	Browser BrowserConfig `mapstructure:"browser"`
	// Crawl contains orchestrator defaults.
	Crawl CrawlConfig `mapstructure:"crawl"`
	// Sources contains per-source crawl settings.
	Sources SourcesConfig `mapstructure:"sources"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// Port is the HTTP server port (default: 8080).
	Port int `mapstructure:"port"`
	// ReadTimeout is the maximum duration for reading a request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing a response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for the metrics endpoint.
	Path string `mapstructure:"path"`
}

// DatabaseConfig holds PostgreSQL connection configuration for the paper store.
// When Enabled is false the service falls back to the in-memory store.
type DatabaseConfig struct {
	// Enabled selects the Postgres-backed paper store.
	Enabled bool `mapstructure:"enabled"`
	// Host is the PostgreSQL server hostname.
	Host string `mapstructure:"host"`
	// Port is the PostgreSQL server port (default: 5432).
	Port int `mapstructure:"port"`
	// User is the database username.
	User string `mapstructure:"user"`
	// Password is the database password (set via environment in production).
	Password string `mapstructure:"password"`
	// Name is the database name.
	Name string `mapstructure:"name"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	SSLMode string `mapstructure:"ssl_mode"`
	// MaxConns is the maximum number of connections in the pool.
	MaxConns int32 `mapstructure:"max_conns"`
	// ConnectTimeout is the maximum time to wait for a connection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// MigrationAutoRun enables automatic migration on startup.
	MigrationAutoRun bool `mapstructure:"migration_auto_run"`
}

// KafkaConfig holds saved-paper event publisher settings.
type KafkaConfig struct {
	// Enabled controls whether saved papers are published to Kafka.
	Enabled bool `mapstructure:"enabled"`
	// Brokers is the list of Kafka broker addresses.
	Brokers []string `mapstructure:"brokers"`
	// Topic is the Kafka topic for saved-paper events.
	Topic string `mapstructure:"topic"`
	// BatchTimeout is the maximum time to wait for a batch to fill before sending.
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

// BrowserConfig holds browser automation settings.
type BrowserConfig struct {
	// ExecPath is an explicit Chrome/Chromium binary path (empty = auto-detect).
	ExecPath string `mapstructure:"exec_path"`
	// Headless runs the browser without a display.
	Headless bool `mapstructure:"headless"`
	// UserAgent overrides the default browser user agent.
	UserAgent string `mapstructure:"user_agent"`
	// ViewportWidth is the emulated viewport width in pixels.
	ViewportWidth int64 `mapstructure:"viewport_width"`
	// ViewportHeight is the emulated viewport height in pixels.
	ViewportHeight int64 `mapstructure:"viewport_height"`
	// NavigationTimeout bounds a single page load.
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	// SettleDelay is the fixed wait after load so client-rendered result
	// lists can appear before extraction.
	SettleDelay time.Duration `mapstructure:"settle_delay"`
	// MaxReconnects bounds session reinitialization attempts before a source
	// is marked failed.
	MaxReconnects int `mapstructure:"max_reconnects"`
}

// CrawlConfig holds orchestrator defaults.
type CrawlConfig struct {
	// DefaultTarget is the paper-count target when a request omits one.
	DefaultTarget int `mapstructure:"default_target"`
	// RetryMaxAttempts bounds retries of one page-processing attempt.
	RetryMaxAttempts int `mapstructure:"retry_max_attempts"`
	// RetryBaseDelay is the base delay between retries; the effective delay
	// is base × attempt number.
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
	// MaxEmptyPages ends a source after this many consecutive pages with no
	// usable items.
	MaxEmptyPages int `mapstructure:"max_empty_pages"`
}

// SourcesConfig holds per-source crawl settings.
type SourcesConfig struct {
	// PubMed contains the PubMed HTML source settings.
	PubMed HTMLSourceConfig `mapstructure:"pubmed"`
	// BioRxiv contains the bioRxiv HTML source settings.
	BioRxiv HTMLSourceConfig `mapstructure:"biorxiv"`
	// RSS contains the RSS aggregation source settings.
	RSS RSSSourceConfig `mapstructure:"rss"`
}

// HTMLSourceConfig holds settings for one browser-driven HTML source.
type HTMLSourceConfig struct {
	// Enabled controls whether this source is registered.
	Enabled bool `mapstructure:"enabled"`
	// BaseURL overrides the source's default site URL.
	BaseURL string `mapstructure:"base_url"`
	// RatePerMinute is the requests-per-minute budget.
	RatePerMinute int `mapstructure:"rate_per_minute"`
	// MaxPages caps result-page pagination per run.
	MaxPages int `mapstructure:"max_pages"`
	// DetailFetchLimit caps secondary item-page fetches per result page.
	DetailFetchLimit int `mapstructure:"detail_fetch_limit"`
}

// RSSSourceConfig holds settings for the RSS aggregation source.
type RSSSourceConfig struct {
	// Enabled controls whether the RSS source is registered.
	Enabled bool `mapstructure:"enabled"`
	// Feeds is the initial set of feed endpoints, as "name=url" pairs.
	Feeds []string `mapstructure:"feeds"`
	// RatePerMinute is the feed-fetch budget.
	RatePerMinute int `mapstructure:"rate_per_minute"`
	// FetchTimeout bounds one feed fetch.
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// Address returns the HTTP server bind address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("PAPERHARBOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/paper-acquisition")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file is fine; env vars and defaults apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "paperharbor")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "paper_acquisition")
	v.SetDefault("database.ssl_mode", "require")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.migration_auto_run", false)

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "papers.saved")
	v.SetDefault("kafka.batch_timeout", "10ms")

	// Browser defaults
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.viewport_width", 1366)
	v.SetDefault("browser.viewport_height", 900)
	v.SetDefault("browser.navigation_timeout", "45s")
	v.SetDefault("browser.settle_delay", "2s")
	v.SetDefault("browser.max_reconnects", 3)

	// Crawl defaults
	v.SetDefault("crawl.default_target", 50)
	v.SetDefault("crawl.retry_max_attempts", 3)
	v.SetDefault("crawl.retry_base_delay", "2s")
	v.SetDefault("crawl.max_empty_pages", 3)

	// Source defaults - PubMed
	v.SetDefault("sources.pubmed.enabled", true)
	v.SetDefault("sources.pubmed.base_url", "https://pubmed.ncbi.nlm.nih.gov")
	v.SetDefault("sources.pubmed.rate_per_minute", 20)
	v.SetDefault("sources.pubmed.max_pages", 10)
	v.SetDefault("sources.pubmed.detail_fetch_limit", 3)

	// Source defaults - bioRxiv
	v.SetDefault("sources.biorxiv.enabled", true)
	v.SetDefault("sources.biorxiv.base_url", "https://www.biorxiv.org")
	v.SetDefault("sources.biorxiv.rate_per_minute", 12)
	v.SetDefault("sources.biorxiv.max_pages", 10)
	v.SetDefault("sources.biorxiv.detail_fetch_limit", 3)

	// Source defaults - RSS
	v.SetDefault("sources.rss.enabled", true)
	v.SetDefault("sources.rss.feeds", []string{
		"Nature=https://www.nature.com/nature.rss",
		"Science=https://www.science.org/action/showFeed?type=etoc&feed=rss&jc=science",
	})
	v.SetDefault("sources.rss.rate_per_minute", 30)
	v.SetDefault("sources.rss.fetch_timeout", "20s")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.Port)
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Database.Enabled {
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			return fmt.Errorf("invalid database port: %d", c.Database.Port)
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database name is required")
		}
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka brokers are required when kafka is enabled")
	}

	if c.Crawl.DefaultTarget <= 0 {
		return fmt.Errorf("crawl default_target must be positive")
	}
	if c.Crawl.RetryMaxAttempts <= 0 {
		return fmt.Errorf("crawl retry_max_attempts must be positive")
	}

	for _, entry := range c.Sources.RSS.Feeds {
		if _, _, err := ParseFeedEntry(entry); err != nil {
			return err
		}
	}

	return nil
}

// ParseFeedEntry splits a configured "name=url" feed entry.
func ParseFeedEntry(entry string) (name, feedURL string, err error) {
	name, feedURL, ok := strings.Cut(entry, "=")
	if !ok || strings.TrimSpace(name) == "" || strings.TrimSpace(feedURL) == "" {
		return "", "", fmt.Errorf("invalid feed entry %q (want name=url)", entry)
	}
	return strings.TrimSpace(name), strings.TrimSpace(feedURL), nil
}
