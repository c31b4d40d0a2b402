package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env string

	Database  DatabaseConfig
	Log       LogConfig
	Migration MigrationConfig
	Reports   ReportsConfig
	Metrics   MetricsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type LogConfig struct {
	Level  string
	Format string
}

// MigrationConfig governs legacy attendance migration runs.
type MigrationConfig struct {
	BatchSize    int
	Parallel     bool
	BatchTimeout time.Duration
}

// ReportsConfig tunes bulletin and consolidated report generation.
type ReportsConfig struct {
	DefaultMinimumPercentage float64
}

// MetricsConfig toggles the Prometheus side listener on CLI runs.
type MetricsConfig struct {
	Enabled bool
	Port    int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Migration = MigrationConfig{
		BatchSize:    v.GetInt("MIGRATION_BATCH_SIZE"),
		Parallel:     v.GetBool("MIGRATION_PARALLEL"),
		BatchTimeout: parseDuration(v.GetString("MIGRATION_BATCH_TIMEOUT"), 5*time.Minute),
	}

	cfg.Reports = ReportsConfig{
		DefaultMinimumPercentage: v.GetFloat64("REPORTS_DEFAULT_MIN_PERCENTAGE"),
	}

	cfg.Metrics = MetricsConfig{
		Enabled: v.GetBool("METRICS_ENABLED"),
		Port:    v.GetInt("METRICS_PORT"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "attendance_ledger")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("MIGRATION_BATCH_SIZE", 1000)
	v.SetDefault("MIGRATION_PARALLEL", false)
	v.SetDefault("MIGRATION_BATCH_TIMEOUT", "5m")

	v.SetDefault("REPORTS_DEFAULT_MIN_PERCENTAGE", 70.0)

	v.SetDefault("METRICS_ENABLED", false)
	v.SetDefault("METRICS_PORT", 9090)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}
