// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/JakeFAU/quote-crawler/internal/crawler"
)

// Storage and archive providers.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"

	ArchiveNone   = "none"
	ArchiveMemory = "memory"
	ArchiveLocal  = "local"
	ArchiveGCS    = "gcs"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Scraper  ScraperConfig  `mapstructure:"scraper"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Progress ProgressConfig `mapstructure:"progress"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                   int `mapstructure:"port"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
}

// ScraperConfig configures catalog access.
type ScraperConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	UserAgent string `mapstructure:"user_agent"`
	DelayMS   int    `mapstructure:"delay_ms"`
	// MaxRPS caps fetches per second to one site across all crawls; 0 disables.
	MaxRPS float64 `mapstructure:"max_rps"`
	Burst  int     `mapstructure:"burst"`
}

// StorageConfig selects the book repository.
type StorageConfig struct {
	Provider string         `mapstructure:"provider"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
}

// SQLiteConfig locates the SQLite database file.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// PostgresConfig controls the pgx pool.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int    `mapstructure:"max_conns"`
	MinConns int    `mapstructure:"min_conns"`
}

// ArchiveConfig controls raw page archiving.
type ArchiveConfig struct {
	Provider  string `mapstructure:"provider"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds crawl notification settings. Notifications are
// disabled when ProjectID is empty.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ProgressConfig tunes the progress hub.
type ProgressConfig struct {
	BufferSize     int `mapstructure:"buffer_size"`
	MaxBatchEvents int `mapstructure:"max_batch_events"`
	MaxBatchWaitMS int `mapstructure:"max_batch_wait_ms"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from defaults, an optional file at path, and the
// environment (QUOTES_ prefix, dots replaced by underscores).
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("QUOTES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindAliases(v); err != nil {
		return Config{}, err
	}

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
	cfg.Storage.Provider = strings.ToLower(strings.TrimSpace(cfg.Storage.Provider))
	cfg.Archive.Provider = strings.ToLower(strings.TrimSpace(cfg.Archive.Provider))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// AppName names the per-user config and data directories.
const AppName = "quote-crawler"

// DefaultSQLitePath is the database file under the user's XDG data directory.
func DefaultSQLitePath() string {
	return filepath.Join(xdg.DataHome, AppName, "quotes.db")
}

// DefaultConfigFile returns the config file found in the XDG config
// directories, or "" when there is none.
func DefaultConfigFile() string {
	path, err := xdg.SearchConfigFile(filepath.Join(AppName, "config.yaml"))
	if err != nil {
		return ""
	}
	return path
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("scraper.base_url", crawler.DefaultBaseURL)
	v.SetDefault("scraper.user_agent", crawler.DefaultUserAgent)
	v.SetDefault("scraper.delay_ms", int(crawler.DefaultDelay/time.Millisecond))
	v.SetDefault("scraper.max_rps", 2.0)
	v.SetDefault("scraper.burst", 4)
	v.SetDefault("storage.provider", StorageMemory)
	v.SetDefault("storage.postgres.dsn", "")
	v.SetDefault("storage.postgres.max_conns", 8)
	v.SetDefault("storage.postgres.min_conns", 0)
	v.SetDefault("storage.sqlite.path", DefaultSQLitePath())
	v.SetDefault("archive.provider", ArchiveNone)
	v.SetDefault("archive.base_dir", "")
	v.SetDefault("archive.gcs_bucket", "")
	v.SetDefault("archive.prefix", "pages")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "crawl.completed")
	v.SetDefault("progress.buffer_size", 1024)
	v.SetDefault("progress.max_batch_events", 256)
	v.SetDefault("progress.max_batch_wait_ms", 250)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
}

// bindAliases accepts the conventional unprefixed variables used by container
// platforms alongside the QUOTES_ names; the prefixed name wins.
func bindAliases(v *viper.Viper) error {
	aliases := map[string][]string{
		"server.port":      {"QUOTES_SERVER_PORT", "SERVER_PORT", "PORT"},
		"scraper.delay_ms": {"QUOTES_SCRAPER_DELAY_MS", "SCRAPE_DELAY_MS"},
	}
	for key, envs := range aliases {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if u, err := url.Parse(c.Scraper.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("scraper.base_url must be an absolute URL")
	}
	if c.Scraper.DelayMS < 0 {
		return fmt.Errorf("scraper.delay_ms must be >= 0")
	}
	if c.Scraper.MaxRPS < 0 {
		return fmt.Errorf("scraper.max_rps must be >= 0")
	}
	switch c.Storage.Provider {
	case StorageMemory:
	case StoragePostgres:
		if c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("storage.postgres.dsn is required for the postgres provider")
		}
	case StorageSQLite:
		if c.Storage.SQLite.Path == "" {
			return fmt.Errorf("storage.sqlite.path is required for the sqlite provider")
		}
	default:
		return fmt.Errorf("storage.provider %q is not supported", c.Storage.Provider)
	}
	switch c.Archive.Provider {
	case ArchiveNone, ArchiveMemory:
	case ArchiveLocal:
		if c.Archive.BaseDir == "" {
			return fmt.Errorf("archive.base_dir is required for the local provider")
		}
	case ArchiveGCS:
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket is required for the gcs provider")
		}
	default:
		return fmt.Errorf("archive.provider %q is not supported", c.Archive.Provider)
	}
	if c.PubSub.ProjectID != "" && c.PubSub.TopicName == "" {
		return fmt.Errorf("pubsub.topic_name is required when pubsub.project_id is set")
	}
	return nil
}

// CrawlerConfig converts the scraper section into crawler.Config.
func (c Config) CrawlerConfig() crawler.Config {
	cfg := crawler.DefaultConfig()
	cfg.BaseURL = c.Scraper.BaseURL
	cfg.UserAgent = c.Scraper.UserAgent
	cfg.Delay = time.Duration(c.Scraper.DelayMS) * time.Millisecond
	return cfg
}

// ShutdownTimeout is the grace period for in-flight requests on shutdown.
func (c Config) ShutdownTimeout() time.Duration {
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

// MaxBatchWait converts the progress batch wait to a duration.
func (c ProgressConfig) MaxBatchWait() time.Duration {
	return time.Duration(c.MaxBatchWaitMS) * time.Millisecond
}
