package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/signalsfoundry/orbital-guard/core"
	"github.com/signalsfoundry/orbital-guard/timectrl"
)

// EnvPrefix prefixes every environment override, e.g.
// ORBITAL_GUARD_HTTP_ADDR or ORBITAL_GUARD_CLOCK_SCALE.
const EnvPrefix = "ORBITAL_GUARD"

// ErrInvalidConfig marks a configuration that failed validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the fully decoded service configuration.
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	GRPC    GRPCConfig    `mapstructure:"grpc"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing"`
	Catalog CatalogConfig `mapstructure:"catalog"`
	Clock   ClockConfig   `mapstructure:"clock"`
	Session SessionConfig `mapstructure:"session"`
	Hazard  HazardConfig  `mapstructure:"hazard"`
	Remote  RemoteConfig  `mapstructure:"remote"`
	Storage StorageConfig `mapstructure:"storage"`
	Influx  InfluxConfig  `mapstructure:"influx"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type HTTPConfig struct {
	Addr        string   `mapstructure:"addr"`
	CORSOrigins []string `mapstructure:"corsOrigins"`
}

type GRPCConfig struct {
	Addr string `mapstructure:"addr"`
}

// MetricsConfig controls the standalone metrics listener. An empty Addr
// serves /metrics from the HTTP API only.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"serviceName"`
	Exporter    string  `mapstructure:"exporter"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRatio float64 `mapstructure:"sampleRatio"`
}

// CatalogConfig selects where tracked objects come from.
type CatalogConfig struct {
	// Source is one of: http, tle, file, none.
	Source          string        `mapstructure:"source"`
	URL             string        `mapstructure:"url"`
	DebrisURL       string        `mapstructure:"debrisUrl"`
	Path            string        `mapstructure:"path"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RefreshInterval time.Duration `mapstructure:"refreshInterval"`
}

type ClockConfig struct {
	Tick      time.Duration `mapstructure:"tick"`
	Scale     float64       `mapstructure:"scale"`
	Horizon   time.Duration `mapstructure:"horizon"`
	AutoStart bool          `mapstructure:"autoStart"`
}

type SessionConfig struct {
	HazardInterval time.Duration `mapstructure:"hazardInterval"`
	// PositionEvery is the number of clock ticks between position refreshes.
	PositionEvery int `mapstructure:"positionEvery"`
}

type HazardConfig struct {
	CollisionKm float64 `mapstructure:"collisionKm"`
	CriticalKm  float64 `mapstructure:"criticalKm"`
	ModerateKm  float64 `mapstructure:"moderateKm"`
}

// Thresholds converts the configured bands.
func (h HazardConfig) Thresholds() core.Thresholds {
	return core.Thresholds{CollisionKm: h.CollisionKm, CriticalKm: h.CriticalKm, ModerateKm: h.ModerateKm}
}

// RemoteConfig points the session at a remote hazard service instead of the
// in-process evaluator.
type RemoteConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Target  string        `mapstructure:"target"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type StorageConfig struct {
	// Type is one of: none, memory, sqlite, postgres.
	Type     string         `mapstructure:"type"`
	Capacity int            `mapstructure:"capacity"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslMode"`
}

type InfluxConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Token   string `mapstructure:"token"`
	Org     string `mapstructure:"org"`
	Bucket  string `mapstructure:"bucket"`
}

// New returns a viper instance carrying defaults and environment overrides.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.corsOrigins", []string{"*"})
	v.SetDefault("grpc.addr", ":9090")
	v.SetDefault("metrics.addr", "")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.serviceName", "orbital-guard")
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.sampleRatio", 1.0)

	v.SetDefault("catalog.source", "none")
	v.SetDefault("catalog.url", "")
	v.SetDefault("catalog.debrisUrl", "")
	v.SetDefault("catalog.path", "")
	v.SetDefault("catalog.timeout", "30s")
	v.SetDefault("catalog.refreshInterval", "0s")

	v.SetDefault("clock.tick", "100ms")
	v.SetDefault("clock.scale", 1.0)
	v.SetDefault("clock.horizon", "24h")
	v.SetDefault("clock.autoStart", true)

	v.SetDefault("session.hazardInterval", "200ms")
	v.SetDefault("session.positionEvery", 20)

	th := core.DefaultThresholds()
	v.SetDefault("hazard.collisionKm", th.CollisionKm)
	v.SetDefault("hazard.criticalKm", th.CriticalKm)
	v.SetDefault("hazard.moderateKm", th.ModerateKm)

	v.SetDefault("remote.enabled", false)
	v.SetDefault("remote.target", "")
	v.SetDefault("remote.timeout", "2s")

	v.SetDefault("storage.type", "memory")
	v.SetDefault("storage.capacity", 1000)
	v.SetDefault("storage.sqlite.path", "orbital-guard.db")
	v.SetDefault("storage.postgres.host", "localhost")
	v.SetDefault("storage.postgres.port", "5432")
	v.SetDefault("storage.postgres.username", "postgres")
	v.SetDefault("storage.postgres.password", "postgres")
	v.SetDefault("storage.postgres.database", "orbital_guard")
	v.SetDefault("storage.postgres.sslMode", "disable")

	v.SetDefault("influx.enabled", false)
	v.SetDefault("influx.url", "http://localhost:8086")
	v.SetDefault("influx.token", "")
	v.SetDefault("influx.org", "orbital-guard")
	v.SetDefault("influx.bucket", "hazards")
}

// Load reads the optional config file into v and decodes the result. An
// empty file searches for orbital-guard.{yaml,json} in the working directory
// and /etc/orbital-guard; not finding one there is not an error.
func Load(v *viper.Viper, file string) (Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		v.SetConfigName("orbital-guard")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/orbital-guard")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	var errs []error
	if c.Clock.Tick <= 0 {
		errs = append(errs, fmt.Errorf("clock.tick must be positive, got %s", c.Clock.Tick))
	}
	if !(c.Clock.Scale > 0) || c.Clock.Scale > timectrl.MaxScale {
		errs = append(errs, fmt.Errorf("clock.scale must be in (0, %g], got %v", timectrl.MaxScale, c.Clock.Scale))
	}
	if c.Session.HazardInterval <= 0 {
		errs = append(errs, fmt.Errorf("session.hazardInterval must be positive, got %s", c.Session.HazardInterval))
	}
	if c.Session.PositionEvery <= 0 {
		errs = append(errs, fmt.Errorf("session.positionEvery must be positive, got %d", c.Session.PositionEvery))
	}
	if err := c.Hazard.Thresholds().Validate(); err != nil {
		errs = append(errs, err)
	}
	switch c.Catalog.Source {
	case "none", "":
	case "http", "tle":
		if c.Catalog.URL == "" {
			errs = append(errs, fmt.Errorf("catalog.url is required for source %q", c.Catalog.Source))
		}
	case "file":
		if c.Catalog.Path == "" {
			errs = append(errs, errors.New("catalog.path is required for source \"file\""))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown catalog.source %q", c.Catalog.Source))
	}
	switch c.Storage.Type {
	case "none", "memory", "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("unknown storage.type %q", c.Storage.Type))
	}
	if c.Remote.Enabled && c.Remote.Target == "" {
		errs = append(errs, errors.New("remote.target is required when remote.enabled is set"))
	}
	if c.Influx.Enabled && c.Influx.URL == "" {
		errs = append(errs, errors.New("influx.url is required when influx.enabled is set"))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}
