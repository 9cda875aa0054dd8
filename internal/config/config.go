package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/thanos-io/thanos/pkg/tracing/otlp"
	yaml "gopkg.in/yaml.v3"
)

type Config struct {
	Upstream  UpstreamConfig  `yaml:"upstream,omitempty"`
	Server    ServerConfig    `yaml:"server,omitempty"`
	Scrape    ScrapeConfig    `yaml:"scrape,omitempty"`
	Database  DatabaseConfig  `yaml:"database,omitempty"`
	Cache     CacheConfig     `yaml:"cache,omitempty"`
	Retention RetentionConfig `yaml:"retention,omitempty"`
	Tracing   *otlp.Config    `yaml:"tracing,omitempty"`
	CORS      CORSConfig      `yaml:"cors,omitempty"`
	MemLimit  MemLimitConfig  `yaml:"memlimit,omitempty"`
}

// UpstreamConfig points at the funnelchat API the console manages.
type UpstreamConfig struct {
	URL         string        `yaml:"url,omitempty"`
	MetricsPath string        `yaml:"metrics_path,omitempty"`
	ClientToken string        `yaml:"client_token,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
}

type ServerConfig struct {
	InsecureListenAddress string `yaml:"insecure_listen_address,omitempty"`
}

type ScrapeConfig struct {
	Enabled  bool          `yaml:"enabled,omitempty"`
	Interval time.Duration `yaml:"interval,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
	CacheTTL time.Duration `yaml:"cache_ttl,omitempty"`
}

type DatabaseConfig struct {
	Provider   string           `yaml:"provider,omitempty"`
	PostgreSQL PostgreSQLConfig `yaml:"postgresql,omitempty"`
	SQLite     SQLiteConfig     `yaml:"sqlite,omitempty"`
}

type PostgreSQLConfig struct {
	Addr            string        `yaml:"addr,omitempty"`
	Port            int           `yaml:"port,omitempty"`
	Database        string        `yaml:"database,omitempty"`
	User            string        `yaml:"user,omitempty"`
	Password        string        `yaml:"password,omitempty"`
	SSLMode         string        `yaml:"sslmode,omitempty"`
	DialTimeout     time.Duration `yaml:"dial_timeout,omitempty"`
	MaxOpenConns    int           `yaml:"max_open_conns,omitempty"`
	MaxIdleConns    int           `yaml:"max_idle_conns,omitempty"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime,omitempty"`
}

type SQLiteConfig struct {
	DatabasePath string `yaml:"database_path,omitempty"`
}

type CacheConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

type RetentionConfig struct {
	Enabled         bool          `yaml:"enabled,omitempty"`
	Interval        time.Duration `yaml:"interval,omitempty"`
	RunTimeout      time.Duration `yaml:"run_timeout,omitempty"`
	SnapshotsMaxAge time.Duration `yaml:"snapshots_max_age,omitempty"`
	ContactMaxAge   time.Duration `yaml:"contact_max_age,omitempty"`
}

type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowed_origins,omitempty"`
	AllowedMethods   []string `yaml:"allowed_methods,omitempty"`
	AllowedHeaders   []string `yaml:"allowed_headers,omitempty"`
	AllowCredentials bool     `yaml:"allow_credentials,omitempty"`
	MaxAge           int      `yaml:"max_age,omitempty"`
}

type MemLimitConfig struct {
	Ratio float64 `yaml:"ratio,omitempty"`
}

var DefaultConfig = &Config{
	CORS: CORSConfig{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	},
	Upstream: UpstreamConfig{
		MetricsPath: "/metrics",
		Timeout:     15 * time.Second,
	},
	Scrape: ScrapeConfig{
		Enabled:  true,
		Interval: 15 * time.Second,
		Timeout:  10 * time.Second,
		CacheTTL: 30 * time.Second,
	},
	Retention: RetentionConfig{
		Enabled:         true,
		Interval:        time.Hour,
		RunTimeout:      time.Minute,
		SnapshotsMaxAge: 14 * 24 * time.Hour,
		ContactMaxAge:   90 * 24 * time.Hour,
	},
	MemLimit: MemLimitConfig{
		Ratio: 0.9,
	},
}

func RegisterScrapeFlags(fs *flag.FlagSet) {
	fs.BoolVar(&DefaultConfig.Scrape.Enabled, "scrape-enabled", DefaultConfig.Scrape.Enabled, "Enable the background metrics scraper.")
	fs.DurationVar(&DefaultConfig.Scrape.Interval, "scrape-interval", DefaultConfig.Scrape.Interval, "Interval between scrapes of the upstream metrics endpoint.")
	fs.DurationVar(&DefaultConfig.Scrape.Timeout, "scrape-timeout", DefaultConfig.Scrape.Timeout, "Timeout for a single scrape.")
	fs.DurationVar(&DefaultConfig.Scrape.CacheTTL, "scrape-cache-ttl", DefaultConfig.Scrape.CacheTTL, "TTL for cached dashboard snapshots.")
}

func RegisterCacheFlags(fs *flag.FlagSet) {
	fs.StringVar(&DefaultConfig.Cache.Addr, "cache-redis-addr", "", "Address of the redis server used to cache dashboards. Empty disables the cache.")
	fs.StringVar(&DefaultConfig.Cache.Username, "cache-redis-username", "", "Username for the redis server.")
	fs.StringVar(&DefaultConfig.Cache.Password, "cache-redis-password", "", "Password for the redis server.")
	fs.IntVar(&DefaultConfig.Cache.DB, "cache-redis-db", 0, "Redis logical database.")
}

func RegisterRetentionFlags(fs *flag.FlagSet) {
	fs.BoolVar(&DefaultConfig.Retention.Enabled, "retention-enabled", DefaultConfig.Retention.Enabled, "Enable the retention worker.")
	fs.DurationVar(&DefaultConfig.Retention.Interval, "retention-interval", DefaultConfig.Retention.Interval, "Interval between retention runs.")
	fs.DurationVar(&DefaultConfig.Retention.RunTimeout, "retention-run-timeout", DefaultConfig.Retention.RunTimeout, "Timeout for a single retention run.")
	fs.DurationVar(&DefaultConfig.Retention.SnapshotsMaxAge, "retention-snapshots-max-age", DefaultConfig.Retention.SnapshotsMaxAge, "Maximum age of persisted dashboard snapshots.")
	fs.DurationVar(&DefaultConfig.Retention.ContactMaxAge, "retention-contact-max-age", DefaultConfig.Retention.ContactMaxAge, "Maximum age of stored contact messages.")
}

func RegisterMemoryLimitFlags(fs *flag.FlagSet) {
	fs.Float64Var(&DefaultConfig.MemLimit.Ratio, "memlimit-ratio", DefaultConfig.MemLimit.Ratio, "Fraction of the detected memory limit to set as GOMEMLIMIT.")
}

func LoadConfig(path string) error {
	f, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(f, DefaultConfig); err != nil {
		return fmt.Errorf("failed to unmarshal config file: %w", err)
	}
	return nil
}

func (c *Config) IsTracingEnabled() bool {
	if c == nil {
		return false
	}
	return c.Tracing != nil
}

func (c *Config) GetTracingServiceName() string {
	serviceName := os.Getenv("OTEL_SERVICE_NAME")
	if serviceName == "" {
		if c == nil || c.Tracing == nil {
			return ""
		}
		return c.Tracing.ServiceName
	}
	return serviceName
}

// GetSanitizedConfig returns a copy safe for exposure over the API: upstream
// credentials and datastore secrets are blanked.
func (c *Config) GetSanitizedConfig() Config {
	out := *c
	out.Upstream.ClientToken = ""
	out.Cache.Password = ""
	out.Database.PostgreSQL.User = ""
	out.Database.PostgreSQL.Password = ""
	out.Database.SQLite.DatabasePath = ""
	return out
}
