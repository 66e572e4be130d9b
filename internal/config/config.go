// Package config provides configuration management for the bridge.
package config

import "time"

// Config is the root configuration structure for the bridge.
type Config struct {
	Komari  KomariConfig  `mapstructure:"komari" validate:"required"`
	Poll    PollConfig    `mapstructure:"poll"`
	Server  ServerConfig  `mapstructure:"server"`
	Site    SiteConfig    `mapstructure:"site"`
	Logging LoggingConfig `mapstructure:"logging"`
	HTTP    HTTPConfig    `mapstructure:"http"`
}

// KomariConfig contains configuration for the upstream Komari RPC API.
type KomariConfig struct {
	Endpoint string        `mapstructure:"endpoint" validate:"required,url"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// PollConfig controls the status polling loop and the directory cache.
type PollConfig struct {
	Interval     time.Duration `mapstructure:"interval"`                      // Status poll interval
	DirectoryTTL time.Duration `mapstructure:"directory_ttl"`                 // Node roster cache lifetime
	RecordCount  int           `mapstructure:"record_count" validate:"gte=1"` // Max samples per monitor query
	RecordHours  int           `mapstructure:"record_hours" validate:"gte=1"` // Time window for monitor queries
}

// ServerConfig contains configuration for the downstream HTTP API.
type ServerConfig struct {
	Listen         string        `mapstructure:"listen" validate:"required"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
}

// SiteConfig carries dashboard-facing site metadata. An empty name falls back
// to the upstream site name.
type SiteConfig struct {
	Name     string `mapstructure:"name"`
	Language string `mapstructure:"language"`
}

// LoggingConfig contains configurations for logging.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

// HTTPConfig contains HTTP client configurations including retry settings.
type HTTPConfig struct {
	Retry RetryConfig `mapstructure:"retry"`
}

// RetryConfig defines retry behavior for HTTP requests.
type RetryConfig struct {
	MaxRetries int           `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
}
