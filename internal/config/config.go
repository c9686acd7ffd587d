package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr         string `mapstructure:"addr" yaml:"addr"`
	HTTPAddr     string `mapstructure:"http_addr" yaml:"http_addr"`
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`
	LogLevel     string `mapstructure:"log_level" yaml:"log_level"`

	DefaultChannels []string `mapstructure:"default_channels" yaml:"default_channels"`
	GCEmptyChannels bool     `mapstructure:"gc_empty_channels" yaml:"gc_empty_channels"`

	MaxLineBytes      int `mapstructure:"max_line_bytes" yaml:"max_line_bytes"`
	OutboundBuffer    int `mapstructure:"outbound_buffer" yaml:"outbound_buffer"`
	MessagesPerMinute int `mapstructure:"messages_per_minute" yaml:"messages_per_minute"`
	BcryptCost        int `mapstructure:"bcrypt_cost" yaml:"bcrypt_cost"`

	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	MetricsInterval   time.Duration `mapstructure:"metrics_interval" yaml:"metrics_interval"`

	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTTTL      time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":6668",
		HTTPAddr:          ":8080",
		DatabasePath:      "linechat.db",
		LogLevel:          "info",
		DefaultChannels:   []string{"#general"},
		MaxLineBytes:      64 * 1024,
		OutboundBuffer:    64,
		MessagesPerMinute: 120,
		BcryptCost:        10,
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		MetricsInterval:   60 * time.Second,
		JWTIssuer:         "linechat",
		JWTTTL:            24 * time.Hour,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.HTTPAddr != "" {
		c.HTTPAddr = other.HTTPAddr
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if len(other.DefaultChannels) > 0 {
		c.DefaultChannels = other.DefaultChannels
	}
	if other.MaxLineBytes != 0 {
		c.MaxLineBytes = other.MaxLineBytes
	}
	if other.OutboundBuffer != 0 {
		c.OutboundBuffer = other.OutboundBuffer
	}
	if other.MessagesPerMinute != 0 {
		c.MessagesPerMinute = other.MessagesPerMinute
	}
	if other.JWTSecret != "" {
		c.JWTSecret = other.JWTSecret
	}
}
