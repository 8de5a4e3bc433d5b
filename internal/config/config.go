package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variable overrides,
// e.g. RDL_DOWNLOAD_DIR for download.dir
const EnvPrefix = "RDL"

// Config represents the entire application configuration
type Config struct {
	Download    DownloadConfig    `mapstructure:"download"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
}

// DownloadConfig contains transfer settings
type DownloadConfig struct {
	Dir               string `mapstructure:"dir"`
	TempSuffix        string `mapstructure:"temp_suffix"`
	SampleInterval    string `mapstructure:"sample_interval"`
	BufferSizeKB      int    `mapstructure:"buffer_size_kb"`
	ProgressBuffer    int    `mapstructure:"progress_buffer"`
	InactivityTimeout string `mapstructure:"inactivity_timeout"`
}

// HTTPConfig contains HTTP client settings
type HTTPConfig struct {
	UserAgent             string            `mapstructure:"user_agent"`
	DialTimeout           string            `mapstructure:"dial_timeout"`
	ResponseHeaderTimeout string            `mapstructure:"response_header_timeout"`
	IdleConnTimeout       string            `mapstructure:"idle_conn_timeout"`
	SkipTLSVerify         bool              `mapstructure:"skip_tls_verify"`
	Headers               map[string]string `mapstructure:"headers"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// MaintenanceConfig contains cleanup settings
type MaintenanceConfig struct {
	CleanupInterval string `mapstructure:"cleanup_interval"`
	TempFileMaxAge  string `mapstructure:"temp_file_max_age"`
	HistoryMaxAge   string `mapstructure:"history_max_age"`
}

// Load loads configuration from the specified file path. An empty path
// loads defaults and environment overrides only.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Database.Path == "" {
		config.Database.Path = filepath.Join(config.Download.Dir, ".rdl", "history.db")
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("download.dir", ".")
	v.SetDefault("download.temp_suffix", ".downloading")
	v.SetDefault("download.sample_interval", "1s")
	v.SetDefault("download.buffer_size_kb", 32)
	v.SetDefault("download.progress_buffer", 16)
	v.SetDefault("download.inactivity_timeout", "0s")
	v.SetDefault("http.user_agent", "rdl/1.0")
	v.SetDefault("http.dial_timeout", "30s")
	v.SetDefault("http.response_header_timeout", "30s")
	v.SetDefault("http.idle_conn_timeout", "90s")
	v.SetDefault("http.skip_tls_verify", false)
	v.SetDefault("http.headers", map[string]string{})
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("database.path", "")
	v.SetDefault("maintenance.cleanup_interval", "1h")
	v.SetDefault("maintenance.temp_file_max_age", "168h")
	v.SetDefault("maintenance.history_max_age", "720h")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Download.Dir == "" {
		return fmt.Errorf("download.dir is required")
	}
	if c.Download.TempSuffix == "" || strings.ContainsAny(c.Download.TempSuffix, `/\`) {
		return fmt.Errorf("download.temp_suffix must be a non-empty file name suffix")
	}
	if c.Download.BufferSizeKB <= 0 {
		return fmt.Errorf("download.buffer_size_kb must be positive")
	}
	if c.Download.ProgressBuffer <= 0 {
		return fmt.Errorf("download.progress_buffer must be positive")
	}

	durations := map[string]string{
		"download.sample_interval":      c.Download.SampleInterval,
		"download.inactivity_timeout":   c.Download.InactivityTimeout,
		"http.dial_timeout":             c.HTTP.DialTimeout,
		"http.response_header_timeout":  c.HTTP.ResponseHeaderTimeout,
		"http.idle_conn_timeout":        c.HTTP.IdleConnTimeout,
		"maintenance.cleanup_interval":  c.Maintenance.CleanupInterval,
		"maintenance.temp_file_max_age": c.Maintenance.TempFileMaxAge,
		"maintenance.history_max_age":   c.Maintenance.HistoryMaxAge,
	}
	for key, value := range durations {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must not be negative", key)
		}
	}
	if c.Download.GetSampleInterval() <= 0 {
		return fmt.Errorf("download.sample_interval must be positive")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
		// Valid formats
	default:
		return fmt.Errorf("invalid logging.format: %s", c.Logging.Format)
	}

	return nil
}

// GetSampleInterval returns the progress sampling interval as time.Duration
func (c *DownloadConfig) GetSampleInterval() time.Duration {
	d, _ := time.ParseDuration(c.SampleInterval)
	return d
}

// GetInactivityTimeout returns the inactivity timeout as time.Duration;
// zero disables the watchdog
func (c *DownloadConfig) GetInactivityTimeout() time.Duration {
	d, _ := time.ParseDuration(c.InactivityTimeout)
	return d
}

// GetBufferSize returns the copy buffer size in bytes
func (c *DownloadConfig) GetBufferSize() int {
	if c.BufferSizeKB <= 0 {
		return 32 * 1024
	}
	return c.BufferSizeKB * 1024
}

// GetDialTimeout returns the dial timeout as time.Duration
func (c *HTTPConfig) GetDialTimeout() time.Duration {
	d, _ := time.ParseDuration(c.DialTimeout)
	if d == 0 {
		return 30 * time.Second
	}
	return d
}

// GetResponseHeaderTimeout returns the response header timeout as time.Duration
func (c *HTTPConfig) GetResponseHeaderTimeout() time.Duration {
	d, _ := time.ParseDuration(c.ResponseHeaderTimeout)
	if d == 0 {
		return 30 * time.Second
	}
	return d
}

// GetIdleConnTimeout returns the idle connection timeout as time.Duration
func (c *HTTPConfig) GetIdleConnTimeout() time.Duration {
	d, _ := time.ParseDuration(c.IdleConnTimeout)
	if d == 0 {
		return 90 * time.Second
	}
	return d
}

// GetCleanupInterval returns the periodic cleanup interval as time.Duration
func (c *MaintenanceConfig) GetCleanupInterval() time.Duration {
	d, _ := time.ParseDuration(c.CleanupInterval)
	if d == 0 {
		return time.Hour
	}
	return d
}

// GetTempFileMaxAge returns the temp file max age as time.Duration
func (c *MaintenanceConfig) GetTempFileMaxAge() time.Duration {
	d, _ := time.ParseDuration(c.TempFileMaxAge)
	if d == 0 {
		return 7 * 24 * time.Hour
	}
	return d
}

// GetHistoryMaxAge returns the history max age as time.Duration
func (c *MaintenanceConfig) GetHistoryMaxAge() time.Duration {
	d, _ := time.ParseDuration(c.HistoryMaxAge)
	if d == 0 {
		return 30 * 24 * time.Hour
	}
	return d
}
