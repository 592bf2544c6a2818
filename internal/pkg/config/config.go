package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	Database    DatabaseConfig    `mapstructure:"database"`
	NATS        NATSConfig        `mapstructure:"nats"`
	Valkey      ValkeyConfig      `mapstructure:"valkey"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
	Geometry    GeometryConfig    `mapstructure:"geometry"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Performance PerformanceConfig `mapstructure:"performance"`
	Sheets      SheetsConfig      `mapstructure:"sheets"`
	Temporal    TemporalConfig    `mapstructure:"temporal"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

type ValkeyConfig struct {
	Addr    string `mapstructure:"addr"`
	Enabled bool   `mapstructure:"enabled"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// GeometryConfig controls polygon construction.
type GeometryConfig struct {
	MaxRadius       float64       `mapstructure:"max_radius"`
	DefaultPoints   int           `mapstructure:"default_points"`
	PolarAreaMethod string        `mapstructure:"polar_area_method"`
	PrimaryEnabled  bool          `mapstructure:"primary_enabled"`
	PrimaryTimeout  time.Duration `mapstructure:"primary_timeout"`
	// BreakerFailures consecutive primary failures open the circuit breaker.
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown"`
}

// CacheConfig controls cache keys and the hot layer.
type CacheConfig struct {
	CoordDecimals  int `mapstructure:"coord_decimals"`
	RadiusDecimals int `mapstructure:"radius_decimals"`
	HotTTLSeconds  int `mapstructure:"hot_ttl_seconds"`
	MaxEntries     int `mapstructure:"max_entries"`
}

type PerformanceConfig struct {
	ArtificialDelay   time.Duration `mapstructure:"artificial_delay"`
	SideEffectTimeout time.Duration `mapstructure:"side_effect_timeout"`
}

// SheetsConfig points the request logger at a Google spreadsheet.
type SheetsConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	CredentialsFile string `mapstructure:"credentials_file"`
	SpreadsheetID   string `mapstructure:"spreadsheet_id"`
	Range           string `mapstructure:"range"`
}

type TemporalConfig struct {
	HostPort      string `mapstructure:"host_port"`
	Namespace     string `mapstructure:"namespace"`
	TaskQueue     string `mapstructure:"task_queue"`
	PruneSchedule string `mapstructure:"prune_schedule"`
}

// Load reads configuration from .env, an optional config file and
// environment variables, in increasing precedence.
func Load(service string) (*Config, error) {
	_ = godotenv.Load() // OK if missing

	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "geopoly")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enabled", true)
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.enabled", true)
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("geometry.max_radius", 50000.0)
	v.SetDefault("geometry.default_points", 64)
	v.SetDefault("geometry.polar_area_method", "legacy")
	v.SetDefault("geometry.primary_enabled", true)
	v.SetDefault("geometry.primary_timeout", 3*time.Second)
	v.SetDefault("geometry.breaker_failures", 5)
	v.SetDefault("geometry.breaker_cooldown", 30*time.Second)
	v.SetDefault("cache.coord_decimals", 6)
	v.SetDefault("cache.radius_decimals", 2)
	v.SetDefault("cache.hot_ttl_seconds", 3600)
	v.SetDefault("cache.max_entries", 100000)
	v.SetDefault("performance.artificial_delay", 5*time.Second)
	v.SetDefault("performance.side_effect_timeout", 10*time.Second)
	v.SetDefault("sheets.enabled", true)
	v.SetDefault("sheets.credentials_file", "credentials.json")
	v.SetDefault("sheets.spreadsheet_id", "")
	v.SetDefault("sheets.range", "A:E")
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "geopoly-maintenance")
	v.SetDefault("temporal.prune_schedule", "@hourly")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: GEOPOLY_DATABASE_HOST → database.host
	v.SetEnvPrefix("GEOPOLY")
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
	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Enabled && c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Geometry.MaxRadius <= 0 {
		errs = append(errs, "geometry.max_radius must be positive")
	}
	if c.Geometry.DefaultPoints < 1 {
		errs = append(errs, "geometry.default_points must be at least 1")
	}
	switch c.Geometry.PolarAreaMethod {
	case "legacy", "lambert":
	default:
		errs = append(errs, fmt.Sprintf("geometry.polar_area_method must be legacy or lambert, got %q", c.Geometry.PolarAreaMethod))
	}
	if c.Geometry.PrimaryTimeout <= 0 {
		errs = append(errs, "geometry.primary_timeout must be positive")
	}
	if c.Cache.CoordDecimals < 0 || c.Cache.RadiusDecimals < 0 {
		errs = append(errs, "cache decimals must not be negative")
	}
	if c.Performance.ArtificialDelay < 0 {
		errs = append(errs, "performance.artificial_delay must not be negative")
	}
	if c.Performance.SideEffectTimeout <= 0 {
		errs = append(errs, "performance.side_effect_timeout must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
