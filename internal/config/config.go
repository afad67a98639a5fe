// Package config loads seqtrack process configuration from an optional
// YAML/JSON/TOML file and SEQTRACK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"

	"seqtrack/internal/archive"
	"seqtrack/internal/core"
	"seqtrack/internal/history"
)

// EnvPrefix prefixes every environment override, e.g. SEQTRACK_LIMS_URL.
const EnvPrefix = "SEQTRACK"

// DefaultFile is looked up in the working directory when no file is given.
const DefaultFile = "seqtrack"

// LIMS drivers.
const (
	LIMSDriverREST    = "rest"
	LIMSDriverFixture = "fixture"
)

// Config is the complete process configuration.
type Config struct {
	LIMS    LIMSConfig         `mapstructure:"lims"`
	Catalog CatalogConfig      `mapstructure:"catalog"`
	Storage core.StorageConfig `mapstructure:"storage"`
	Archive archive.Config     `mapstructure:"archive"`
	Log     LogConfig          `mapstructure:"log"`
	Metrics MetricsConfig      `mapstructure:"metrics"`
	Trace   TraceConfig        `mapstructure:"trace"`
	Report  ReportConfig       `mapstructure:"report"`
}

// LIMSConfig selects and configures the LIMS client.
type LIMSConfig struct {
	Driver    string        `mapstructure:"driver"`
	URL       string        `mapstructure:"url"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
	Timeout   time.Duration `mapstructure:"timeout"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
	CacheSize int           `mapstructure:"cache_size"`
	// Fixture is the JSON snapshot read by the fixture driver.
	Fixture string `mapstructure:"fixture"`
}

// CatalogConfig points at the step catalog and tunes history ordering.
type CatalogConfig struct {
	Path     string `mapstructure:"path"`
	TieBreak string `mapstructure:"tie_break"`
	MaxHops  int    `mapstructure:"max_hops"`
}

// LogConfig configures the slog handler of the CLI.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Metrics drivers.
const (
	MetricsDriverPrometheus = "prometheus"
	MetricsDriverExpvar     = "expvar"
	MetricsDriverNone       = "none"
)

// MetricsConfig configures metrics output.
type MetricsConfig struct {
	Driver string `mapstructure:"driver"`
	// Textfile receives Prometheus text exposition after each command.
	Textfile string `mapstructure:"textfile"`
}

// TraceConfig configures span output.
type TraceConfig struct {
	// File receives one JSON line per finished span; empty disables tracing.
	File string `mapstructure:"file"`
}

// ReportConfig tunes trending reports.
type ReportConfig struct {
	SkipSamples []string `mapstructure:"skip_samples"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("lims.driver", LIMSDriverREST)
	v.SetDefault("lims.url", "")
	v.SetDefault("lims.username", "")
	v.SetDefault("lims.password", "")
	v.SetDefault("lims.timeout", 30*time.Second)
	v.SetDefault("lims.cache_ttl", 10*time.Minute)
	v.SetDefault("lims.cache_size", 4096)
	v.SetDefault("lims.fixture", "")

	v.SetDefault("catalog.path", "")
	v.SetDefault("catalog.tie_break", history.TieFirstSeen.String())
	v.SetDefault("catalog.max_hops", 64)

	v.SetDefault("storage.driver", string(core.StorageSQLite))
	v.SetDefault("storage.sqlite_path", "seqtrack.db")
	v.SetDefault("storage.postgres_dsn", "")

	v.SetDefault("archive.driver", "fs")
	v.SetDefault("archive.fs_root", "./archive")
	v.SetDefault("archive.s3.region", "")
	v.SetDefault("archive.s3.bucket", "")
	v.SetDefault("archive.s3.endpoint", "")
	v.SetDefault("archive.s3.access_key_id", "")
	v.SetDefault("archive.s3.secret_access_key", "")
	v.SetDefault("archive.s3.path_style", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("metrics.driver", MetricsDriverPrometheus)
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("trace.file", "")
	v.SetDefault("report.skip_samples", []string{})
}

// Load reads path when given, else ./seqtrack.{yaml,json,toml} when present,
// applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(DefaultFile)
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

var (
	logLevels   = []string{"debug", "info", "warn", "error"}
	logFormats  = []string{"text", "json"}
	storageKeys = []core.StorageDriver{core.StorageMemory, core.StorageSQLite, core.StoragePostgres}
	archiveKeys = []string{"memory", "fs", "s3"}
	metricsKeys = []string{MetricsDriverPrometheus, MetricsDriverExpvar, MetricsDriverNone}
)

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var result *multierror.Error
	switch c.LIMS.Driver {
	case LIMSDriverREST:
		if c.LIMS.URL == "" {
			result = multierror.Append(result, errors.New("lims.url is required for the rest driver"))
		}
	case LIMSDriverFixture:
		if c.LIMS.Fixture == "" {
			result = multierror.Append(result, errors.New("lims.fixture is required for the fixture driver"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("unknown lims.driver %q", c.LIMS.Driver))
	}
	if c.LIMS.CacheSize < 0 || c.LIMS.Timeout < 0 || c.LIMS.CacheTTL < 0 {
		result = multierror.Append(result, errors.New("lims timeout, cache_ttl and cache_size must not be negative"))
	}
	if _, err := history.ParseTieBreak(c.Catalog.TieBreak); err != nil {
		result = multierror.Append(result, fmt.Errorf("catalog.tie_break: %w", err))
	}
	if c.Catalog.MaxHops <= 0 {
		result = multierror.Append(result, fmt.Errorf("catalog.max_hops must be positive, got %d", c.Catalog.MaxHops))
	}
	if !slices.Contains(storageKeys, c.Storage.Driver) {
		result = multierror.Append(result, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}
	if c.Storage.Driver == core.StoragePostgres && c.Storage.PostgresDSN == "" {
		result = multierror.Append(result, errors.New("storage.postgres_dsn is required for the postgres driver"))
	}
	if !slices.Contains(archiveKeys, string(c.Archive.Driver)) {
		result = multierror.Append(result, fmt.Errorf("unknown archive.driver %q", c.Archive.Driver))
	}
	if string(c.Archive.Driver) == "s3" && c.Archive.S3.Bucket == "" {
		result = multierror.Append(result, errors.New("archive.s3.bucket is required for the s3 driver"))
	}
	if !slices.Contains(logLevels, strings.ToLower(c.Log.Level)) {
		result = multierror.Append(result, fmt.Errorf("invalid log.level %q", c.Log.Level))
	}
	if !slices.Contains(logFormats, c.Log.Format) {
		result = multierror.Append(result, fmt.Errorf("invalid log.format %q, must be text or json", c.Log.Format))
	}
	if !slices.Contains(metricsKeys, c.Metrics.Driver) {
		result = multierror.Append(result, fmt.Errorf("unknown metrics.driver %q", c.Metrics.Driver))
	} else if c.Metrics.Textfile != "" && c.Metrics.Driver != MetricsDriverPrometheus {
		result = multierror.Append(result, fmt.Errorf("metrics.textfile requires the prometheus driver, got %q", c.Metrics.Driver))
	}
	return result.ErrorOrNil()
}

// TieBreak returns the parsed tie-break policy.
func (c *Config) TieBreak() history.TieBreak {
	tb, _ := history.ParseTieBreak(c.Catalog.TieBreak)
	return tb
}

// SlogLevel maps log.level onto slog.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
