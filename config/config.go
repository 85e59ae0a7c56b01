package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/prisvakt/compliance-service/internal/compliance"
	"github.com/prisvakt/compliance-service/internal/database"
)

// Config holds the application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Commerce   CommerceConfig   `mapstructure:"commerce"`
	Scan       ScanConfig       `mapstructure:"scan"`
	Retention  RetentionConfig  `mapstructure:"retention"`
	Compliance ComplianceConfig `mapstructure:"compliance"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	Host           string        `mapstructure:"host"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	InternalAPIKey string        `mapstructure:"internal_api_key"`
	WidgetRPS      float64       `mapstructure:"widget_rps"`
	WidgetBurst    int           `mapstructure:"widget_burst"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// RedisConfig holds the Redis connection used for scan locks and widget caching.
// An empty URL disables both.
type RedisConfig struct {
	URL       string        `mapstructure:"url"`
	WidgetTTL time.Duration `mapstructure:"widget_ttl"`
}

// KafkaConfig holds the compliance event publisher configuration.
// No brokers disables publishing.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// CommerceConfig holds commerce platform admin API configuration
type CommerceConfig struct {
	APIVersion        string        `mapstructure:"api_version"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	MaxRetries        int           `mapstructure:"max_retries"`
	InitialBackoff    time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff        time.Duration `mapstructure:"max_backoff"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

// ScanConfig holds scan scheduling configuration
type ScanConfig struct {
	Interval       time.Duration `mapstructure:"interval"`
	Concurrency    int           `mapstructure:"concurrency"`
	Timeout        time.Duration `mapstructure:"timeout"`
	LockTTL        time.Duration `mapstructure:"lock_ttl"`
	Workers        int           `mapstructure:"workers"`
	WorkerPoll     time.Duration `mapstructure:"worker_poll"`
	SweeperEnabled bool          `mapstructure:"sweeper_enabled"`
}

// RetentionConfig holds data retention configuration
type RetentionConfig struct {
	ObservationDays int `mapstructure:"observation_days"`
	TaskDays        int `mapstructure:"task_days"`
}

// ComplianceConfig holds the rule thresholds. RulesFile, when set, replaces
// the built-in rule set.
type ComplianceConfig struct {
	CountryCode       string `mapstructure:"country_code"`
	RulesFile         string `mapstructure:"rules_file"`
	LookbackDays      int    `mapstructure:"lookback_days"`
	MaxSaleDays       int    `mapstructure:"max_sale_days"`
	MinGapDays        int    `mapstructure:"min_gap_days"`
	HistoryWindowDays int    `mapstructure:"history_window_days"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Format  string `mapstructure:"format"`
	NoColor bool   `mapstructure:"no_color"`
}

// TelemetryConfig holds OpenTelemetry exporter configuration
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
	Environment string `mapstructure:"environment"`
}

var globalConfig *Config

// Load loads the configuration from file, .env, and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Config file: explicit path or config.yaml in ./config or .
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	if err := loadEnvFile(); err != nil {
		// .env is optional
		log.Debug().Err(err).Msg(".env file not loaded")
	}

	// Environment variables override the file
	v.SetEnvPrefix("PRICE_COMPLIANCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVars(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Unmarshal into struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	globalConfig = &cfg
	return &cfg, nil
}

// loadEnvFile loads the first .env file found into the process environment
func loadEnvFile() error {
	for _, path := range []string{".", "./config"} {
		envFile := fmt.Sprintf("%s/.env", path)
		if _, err := os.Stat(envFile); err == nil {
			return loadDotEnvFile(envFile)
		}
	}
	return fmt.Errorf("no .env file found")
}

// loadDotEnvFile reads KEY=VALUE lines. Variables already set win.
func loadDotEnvFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		os.Setenv(key, strings.Trim(strings.TrimSpace(value), "\"'"))
	}
	return scanner.Err()
}

// bindEnvVars binds conventional unprefixed environment variables
func bindEnvVars(v *viper.Viper) {
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("redis.url", "REDIS_URL")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.host", "HOST")
	v.BindEnv("server.internal_api_key", "INTERNAL_API_KEY")
	v.BindEnv("logging.level", "LOG_LEVEL")
	v.BindEnv("telemetry.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
	v.BindEnv("telemetry.service_name", "OTEL_SERVICE_NAME")
	v.BindEnv("compliance.rules_file", "RULES_FILE")
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.widget_rps", 20)
	v.SetDefault("server.widget_burst", 40)

	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_connections", 5)
	v.SetDefault("database.max_conn_lifetime", 1*time.Hour)
	v.SetDefault("database.max_conn_idle_time", 30*time.Minute)

	v.SetDefault("redis.widget_ttl", 5*time.Minute)

	v.SetDefault("kafka.topic", "compliance.changed")

	v.SetDefault("commerce.api_version", "2024-10")
	v.SetDefault("commerce.requests_per_second", 2)
	v.SetDefault("commerce.max_retries", 3)
	v.SetDefault("commerce.initial_backoff", 100*time.Millisecond)
	v.SetDefault("commerce.max_backoff", 30*time.Second)
	v.SetDefault("commerce.timeout", 30*time.Second)

	v.SetDefault("scan.interval", 6*time.Hour)
	v.SetDefault("scan.concurrency", 8)
	v.SetDefault("scan.timeout", 15*time.Minute)
	v.SetDefault("scan.lock_ttl", 20*time.Minute)
	v.SetDefault("scan.workers", 2)
	v.SetDefault("scan.worker_poll", 5*time.Second)
	v.SetDefault("scan.sweeper_enabled", true)

	v.SetDefault("retention.observation_days", 400)
	v.SetDefault("retention.task_days", 7)

	v.SetDefault("compliance.country_code", compliance.CountryNorway)
	v.SetDefault("compliance.lookback_days", compliance.DefaultLookbackDays)
	v.SetDefault("compliance.max_sale_days", compliance.DefaultMaxSaleDays)
	v.SetDefault("compliance.min_gap_days", compliance.DefaultMinGapDays)
	v.SetDefault("compliance.history_window_days", compliance.DefaultHistoryWindowDays)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.no_color", false)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "opentelemetry-collector:4317")
	v.SetDefault("telemetry.service_name", "compliance-service")
	v.SetDefault("telemetry.environment", "production")
}

// PoolConfig returns the connection pool settings for url
func (d DatabaseConfig) PoolConfig(url string, trace bool) database.PoolConfig {
	return database.PoolConfig{
		URL:             url,
		MaxConns:        d.MaxConnections,
		MinConns:        d.MinConnections,
		MaxConnLifetime: d.MaxConnLifetime,
		MaxConnIdleTime: d.MaxConnIdleTime,
		Trace:           trace,
	}
}

// Get returns the global configuration
func Get() *Config {
	return globalConfig
}

// GetDatabaseURL returns the database URL from config or environment
func GetDatabaseURL() string {
	if cfg := Get(); cfg != nil && cfg.Database.URL != "" {
		return cfg.Database.URL
	}
	return os.Getenv("DATABASE_URL")
}

// RuleSet returns the configured rule set: the rules file when set,
// otherwise the built-in rules with the configured thresholds.
func (c ComplianceConfig) RuleSet() (compliance.RuleSet, error) {
	defaults := compliance.Defaults{
		LookbackDays:      c.LookbackDays,
		MaxSaleDays:       c.MaxSaleDays,
		MinGapDays:        c.MinGapDays,
		HistoryWindowDays: c.HistoryWindowDays,
	}
	if c.RulesFile != "" {
		rs, err := compliance.LoadRuleSet(c.RulesFile)
		if err != nil {
			return compliance.RuleSet{}, err
		}
		// parameters the file leaves out use the configured thresholds
		rs.Defaults = defaults
		if err := rs.Validate(); err != nil {
			// malformed rules are skipped per evaluation; surface it once here
			log.Warn().Err(err).Str("file", c.RulesFile).Msg("Rule set contains invalid definitions")
		}
		return rs, nil
	}

	return compliance.NewRuleSet(strings.ToUpper(c.CountryCode), defaults), nil
}
