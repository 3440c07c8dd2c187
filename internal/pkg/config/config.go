package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	Map       MapConfig       `mapstructure:"map"`
	Realtime  RealtimeConfig  `mapstructure:"realtime"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

// UpstreamConfig selects the transit-data GraphQL router and carries
// the opaque API key appended to its URL.
type UpstreamConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	APIKey   string `mapstructure:"api_key"`
	Network  string `mapstructure:"network"`
}

// URL returns the endpoint with the API key suffix applied.
func (u UpstreamConfig) URL() string {
	return u.Endpoint + u.APIKey
}

// MapConfig describes the tile layers drawn under station markers.
// Layers are ordered lowest to highest; later layers draw on top.
type MapConfig struct {
	TileLayers    []string `mapstructure:"tile_layers"`
	APIKey        string   `mapstructure:"api_key"`
	DefaultZoom   int      `mapstructure:"default_zoom"`
	DefaultWidth  int      `mapstructure:"default_width"`
	DefaultHeight int      `mapstructure:"default_height"`
}

type RealtimeConfig struct {
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "bikemap")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "bikemap")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("upstream.endpoint", "https://api.digitransit.fi/routing/v1/routers/hsl/index/graphql")
	v.SetDefault("upstream.api_key", "")
	v.SetDefault("upstream.network", "hsl")
	v.SetDefault("map.tile_layers", []string{
		"https://cdn.digitransit.fi/map/v2/hsl-map{size}/{z}/{x}/{y}.png",
	})
	v.SetDefault("map.api_key", "")
	v.SetDefault("map.default_zoom", 15)
	v.SetDefault("map.default_width", 1024)
	v.SetDefault("map.default_height", 768)
	v.SetDefault("realtime.poll_interval_seconds", 30)
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: BIKEMAP_UPSTREAM_ENDPOINT → upstream.endpoint
	v.SetEnvPrefix("BIKEMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Upstream.Endpoint == "" {
		errs = append(errs, "upstream.endpoint is required")
	}
	if len(c.Map.TileLayers) == 0 {
		errs = append(errs, "map.tile_layers must list at least one layer")
	}
	if c.Map.DefaultZoom < 0 || c.Map.DefaultZoom > 20 {
		errs = append(errs, fmt.Sprintf("map.default_zoom must be 0-20, got %d", c.Map.DefaultZoom))
	}
	if c.Realtime.PollIntervalSeconds <= 0 {
		errs = append(errs, "realtime.poll_interval_seconds must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
