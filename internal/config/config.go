// Package config loads the analytics engine's configuration via Viper,
// following the same nested mapstructure-tagged struct convention the
// platform's auth service uses.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete analytics engine configuration.
type Config struct {
	Environment string         `mapstructure:"environment"`
	Server      ServerConfig   `mapstructure:"server"`
	Database    DatabaseConfig `mapstructure:"database"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Kafka       KafkaConfig    `mapstructure:"kafka"`
	Logging     LoggingConfig  `mapstructure:"logging"`
	Metrics     MetricsConfig  `mapstructure:"metrics"`
	Upstream    UpstreamConfig `mapstructure:"upstream"`
	Analytics   AnalyticsConfig `mapstructure:"analytics"`
}

// ServerConfig configures the thin operator HTTP surface.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	HealthPort      int           `mapstructure:"health_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig configures the Postgres connection pool.
type DatabaseConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	User         string        `mapstructure:"user"`
	Password     string        `mapstructure:"password"`
	DBName       string        `mapstructure:"dbname"`
	SSLMode      string        `mapstructure:"sslmode"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
	MaxLifetime  time.Duration `mapstructure:"max_lifetime"`
}

// RedisConfig configures the distributed cache backend.
type RedisConfig struct {
	Addr       string        `mapstructure:"addr"`
	Password   string        `mapstructure:"password"`
	DB         int           `mapstructure:"db"`
	KeyPrefix  string        `mapstructure:"key_prefix"`
	PoolSize   int           `mapstructure:"pool_size"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// KafkaConfig configures the event stream consumer transport.
type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	ConsumerGroup string   `mapstructure:"consumer_group"`
	Streams       []string `mapstructure:"streams"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
	Encoding    string `mapstructure:"encoding"`
}

// MetricsConfig configures Prometheus exposition.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// UpstreamConfig names the base URLs of the inventory/sales services the
// upstream client calls.
type UpstreamConfig struct {
	InventoryURL           string        `mapstructure:"inventory_url"`
	SalesURL               string        `mapstructure:"sales_url"`
	AnalyticsCallbacksURL  string        `mapstructure:"analytics_callbacks_url"`
	RequestTimeout         time.Duration `mapstructure:"request_timeout"`
	HealthProbeTimeout     time.Duration `mapstructure:"health_probe_timeout"`
	MaxRetries             int           `mapstructure:"max_retries"`
}

// AnalyticsConfig carries the tunable defaults for forecast periods, lead
// time, service level, cache TTLs, retention, and bulk-restock concurrency.
type AnalyticsConfig struct {
	PeriodDaysDefault        int           `mapstructure:"period_days_default"`
	TopNDefault              int           `mapstructure:"top_n_default"`
	LeadTimeDaysDefault      int           `mapstructure:"lead_time_days_default"`
	ServiceLevelDefault      float64       `mapstructure:"service_level_default"`
	ModelCacheTTL            time.Duration `mapstructure:"model_cache_ttl"`
	ForecastResultTTL        time.Duration `mapstructure:"forecast_result_ttl"`
	RetentionDays            int           `mapstructure:"retention_days"`
	BulkMaxProducts          int           `mapstructure:"bulk_max_products"`
	BulkWorkerPool           int           `mapstructure:"bulk_worker_pool"`
	ConsumerBatchSize        int           `mapstructure:"consumer_batch_size"`
}

// Load reads configuration from environment variables (prefixed
// ANALYTICS_ENGINE_) and an optional YAML file, falling back to the defaults
// below when neither sets a value.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/analytics-engine")

	v.SetEnvPrefix("ANALYTICS_ENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("server.port", 8095)
	v.SetDefault("server.health_port", 8096)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "analytics_engine")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_lifetime", "30m")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "analytics")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", "5s")

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.consumer_group", "analytics-engine")
	v.SetDefault("kafka.streams", []string{"orders", "payments", "shipments"})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.encoding", "json")

	v.SetDefault("metrics.enabled", true)

	v.SetDefault("upstream.inventory_url", "http://inventory-service:8080")
	v.SetDefault("upstream.sales_url", "http://sales-service:8080")
	v.SetDefault("upstream.analytics_callbacks_url", "http://analytics-callbacks:8080")
	v.SetDefault("upstream.request_timeout", "5s")
	v.SetDefault("upstream.health_probe_timeout", "3s")
	v.SetDefault("upstream.max_retries", 3)

	v.SetDefault("analytics.period_days_default", 30)
	v.SetDefault("analytics.top_n_default", 10)
	v.SetDefault("analytics.lead_time_days_default", 7)
	v.SetDefault("analytics.service_level_default", 0.95)
	v.SetDefault("analytics.model_cache_ttl", "1h")
	v.SetDefault("analytics.forecast_result_ttl", "6h")
	v.SetDefault("analytics.retention_days", 90)
	v.SetDefault("analytics.bulk_max_products", 50)
	v.SetDefault("analytics.bulk_worker_pool", 8)
	v.SetDefault("analytics.consumer_batch_size", 100)
}
