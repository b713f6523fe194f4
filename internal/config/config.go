// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultUserAgent is the desktop browser identity the site expects.
const DefaultUserAgent = "Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:79.0) Gecko/20100101 Firefox/79.0"

// Storage backends.
const (
	BackendLocal = "local"
	BackendGCS   = "gcs"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Paths    PathsConfig    `mapstructure:"paths"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// CrawlerConfig governs the zone tree walk.
type CrawlerConfig struct {
	BaseURL     string   `mapstructure:"base_url"`
	UserAgent   string   `mapstructure:"user_agent"`
	Workers     int      `mapstructure:"workers"`
	TestMode    bool     `mapstructure:"test_mode"`
	SampleZone  string   `mapstructure:"sample_zone"`
	DeniedZones []string `mapstructure:"denied_zones"`
	// CacheAssets lets pages, geography and pictograms be served from the session cache.
	CacheAssets bool `mapstructure:"cache_assets"`
	// CacheForecasts does the same for multiforecast responses; off by default.
	CacheForecasts bool `mapstructure:"cache_forecasts"`
}

// HTTPConfig configures the live transport and the session cache.
type HTTPConfig struct {
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
	CacheEnabled      bool    `mapstructure:"cache_enabled"`
}

// PathsConfig locates the emitted site and the cache directory.
type PathsConfig struct {
	WWW   string `mapstructure:"www"`
	SVG   string `mapstructure:"svg"`
	Data  string `mapstructure:"data"`
	Cache string `mapstructure:"cache"`
}

// StorageConfig selects where emitted artifacts are written.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// ScheduleConfig controls the periodic batch loop.
type ScheduleConfig struct {
	IntervalHours int `mapstructure:"interval_hours"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("METEO")
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
	v.SetDefault("crawler.base_url", "https://meteofrance.com")
	v.SetDefault("crawler.user_agent", DefaultUserAgent)
	v.SetDefault("crawler.workers", 4)
	v.SetDefault("crawler.test_mode", false)
	v.SetDefault("crawler.sample_zone", "regin10")
	v.SetDefault("crawler.denied_zones", []string{"dept988", "opp*"})
	v.SetDefault("crawler.cache_assets", true)
	v.SetDefault("crawler.cache_forecasts", false)
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.requests_per_second", 0)
	v.SetDefault("http.burst", 1)
	v.SetDefault("http.cache_enabled", true)
	v.SetDefault("paths.www", "www/")
	v.SetDefault("paths.svg", "www/svg/")
	v.SetDefault("paths.data", "www/data/")
	v.SetDefault("paths.cache", "cache/")
	v.SetDefault("storage.backend", BackendLocal)
	v.SetDefault("storage.prefix", "")
	v.SetDefault("schedule.interval_hours", 4)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Crawler.BaseURL == "" {
		return errors.New("crawler.base_url must be set")
	}
	if c.Crawler.Workers < 0 {
		return errors.New("crawler.workers must be >= 0")
	}
	if c.Crawler.TestMode && c.Crawler.SampleZone == "" {
		return errors.New("crawler.sample_zone must be set when test_mode is enabled")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return errors.New("http.timeout_seconds must be > 0")
	}
	if c.HTTP.RequestsPerSecond < 0 {
		return errors.New("http.requests_per_second must be >= 0")
	}
	if c.Paths.Cache == "" || c.Paths.Data == "" || c.Paths.SVG == "" || c.Paths.WWW == "" {
		return errors.New("paths.www, paths.svg, paths.data and paths.cache must be set")
	}
	switch c.Storage.Backend {
	case BackendLocal:
	case BackendGCS:
		if c.Storage.GCSBucket == "" {
			return errors.New("storage.gcs_bucket must be set when backend is gcs")
		}
	default:
		return fmt.Errorf("storage.backend %q must be %q or %q", c.Storage.Backend, BackendLocal, BackendGCS)
	}
	if c.Schedule.IntervalHours <= 0 {
		return errors.New("schedule.interval_hours must be > 0")
	}
	if c.Server.Port <= 0 {
		return errors.New("server.port must be > 0")
	}
	return nil
}

// RequestTimeout converts the HTTP timeout into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// Interval is the pause between two batch runs.
func (c Config) Interval() time.Duration {
	return time.Duration(c.Schedule.IntervalHours) * time.Hour
}
