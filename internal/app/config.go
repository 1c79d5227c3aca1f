package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/ovationhq/ovation/pkg/validator"
)

// Config represents the runtime configuration for the Ovation worker.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Queue       QueueConfig       `mapstructure:"queue"`
	Reactions   ReactionsConfig   `mapstructure:"reactions"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
}

// ServerConfig configures the monitoring HTTP server.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"gt=0,lte=65535"`
	LogLevel string `mapstructure:"log_level"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string            `mapstructure:"driver" validate:"oneof=sqlite postgres postgresql mysql"`
	Path     string            `mapstructure:"path"`
	DSN      string            `mapstructure:"dsn"`
	Host     string            `mapstructure:"host"`
	Port     int               `mapstructure:"port"`
	User     string            `mapstructure:"user"`
	Password string            `mapstructure:"password"`
	Name     string            `mapstructure:"name"`
	Options  map[string]string `mapstructure:"options"`
}

// QueueConfig sizes the in-process event dispatcher.
type QueueConfig struct {
	Workers      int           `mapstructure:"workers" validate:"gte=1"`
	Buffer       int           `mapstructure:"buffer" validate:"gte=1"`
	MaxRetries   int           `mapstructure:"max_retries" validate:"gte=0"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff" validate:"gte=0"`
}

// ReactionsConfig tunes the aggregation engine.
type ReactionsConfig struct {
	// AggregatedCategories lists the reaction categories that surface as
	// notifications. Moderation categories must stay out of this list.
	AggregatedCategories []string `mapstructure:"aggregated_categories" validate:"min=1"`
}

// MaintenanceConfig controls the reconciliation sweeper.
type MaintenanceConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Schedule  string `mapstructure:"schedule"`
	BatchSize int    `mapstructure:"batch_size" validate:"gte=1"`
}

// MonitoringConfig enables health checks and metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Health     HealthConfig     `mapstructure:"health_check"`
}

// PrometheusConfig toggles the metrics endpoint.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// HealthConfig toggles the health endpoint.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadConfig initialises application configuration using Viper with
// sensible defaults. A config.yaml in ./config or any of the supplied
// paths is merged over the defaults, then OVATION_* environment variables
// override both.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("OVATION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := validator.ValidateStruct(&config); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/ovation.sqlite")

	v.SetDefault("queue.workers", 4)
	v.SetDefault("queue.buffer", 256)
	v.SetDefault("queue.max_retries", 3)
	v.SetDefault("queue.retry_backoff", "250ms")

	v.SetDefault("reactions.aggregated_categories", []string{"like", "unicorn", "exploding_head", "raised_hands", "fire"})

	v.SetDefault("maintenance.enabled", true)
	v.SetDefault("maintenance.schedule", "@hourly")
	v.SetDefault("maintenance.batch_size", 500)

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
	v.SetDefault("monitoring.health_check.enabled", true)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
