package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	// HTTP surface
	App AppConfig `mapstructure:"app"`

	// Link storage backend
	Storage StorageConfig `mapstructure:"storage"`

	// PostgreSQL
	Postgres PostgresConfig `mapstructure:"postgres"`

	// Redis
	Redis RedisConfig `mapstructure:"redis"`

	// Resolution cache
	Cache CacheConfig `mapstructure:"cache"`

	// NATS
	NATS NATSConfig `mapstructure:"nats"`

	// Click accounting
	Clicks ClicksConfig `mapstructure:"clicks"`

	// Per-client admission control
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`

	// Prometheus
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

type AppConfig struct {
	Env         string   `mapstructure:"env"`
	Port        int      `mapstructure:"port"`
	BaseURL     string   `mapstructure:"base_url"`
	AdminAPIKey string   `mapstructure:"admin_api_key"`
	IPSalt      string   `mapstructure:"ip_salt"`
	ProxyHeader string   `mapstructure:"proxy_header"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	LogLevel    string   `mapstructure:"log_level"`
}

// Development reports whether the service runs outside production.
func (c AppConfig) Development() bool {
	return c.Env != "production"
}

type StorageConfig struct {
	// Driver is either "postgres" or "memory".
	Driver string `mapstructure:"driver"`
}

type PostgresConfig struct {
	Host              string        `mapstructure:"host"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	Port              int           `mapstructure:"port"`
	SSLMode           string        `mapstructure:"sslmode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type NATSConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

type ClicksConfig struct {
	// Driver is either "worker" (in-process queue) or "nats" (JetStream).
	Driver          string        `mapstructure:"driver"`
	Workers         int           `mapstructure:"workers"`
	BufferSize      int           `mapstructure:"buffer_size"`
	RetryAttempts   int           `mapstructure:"retry_attempts"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type RateLimitConfig struct {
	Limit         int           `mapstructure:"limit"`
	Window        time.Duration `mapstructure:"window"`
	IdleTTL       time.Duration `mapstructure:"idle_ttl"`
	SweepSchedule string        `mapstructure:"sweep_schedule"`
}

type PrometheusConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

func Load() (*Config, error) {
	// Load local .env for development (ignored when missing).
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	// Search for config/config.yaml (plus root for overrides).
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Allow environment variables to override YAML entries.
	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Clicks.Driver {
	case "worker", "nats":
	default:
		return fmt.Errorf("config: unknown clicks driver %q", c.Clicks.Driver)
	}
	if c.RateLimit.Limit <= 0 {
		return fmt.Errorf("config: ratelimit.limit must be positive, got %d", c.RateLimit.Limit)
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("config: ratelimit.window must be positive, got %s", c.RateLimit.Window)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.base_url", "http://localhost:8080")
	v.SetDefault("app.admin_api_key", "")
	v.SetDefault("app.ip_salt", "default_salt_change_me")
	v.SetDefault("app.proxy_header", "")
	v.SetDefault("app.cors_origins", []string{"*"})
	v.SetDefault("app.log_level", "")

	v.SetDefault("storage.driver", "postgres")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.database", "linkgate")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 1)
	v.SetDefault("postgres.max_conn_lifetime", time.Hour)
	v.SetDefault("postgres.max_conn_idle_time", 30*time.Minute)
	v.SetDefault("postgres.health_check_period", time.Minute)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("cache.ttl", 30*time.Second)

	v.SetDefault("nats.host", "localhost")
	v.SetDefault("nats.port", 4222)
	v.SetDefault("nats.user", "")
	v.SetDefault("nats.password", "")

	v.SetDefault("clicks.driver", "worker")
	v.SetDefault("clicks.workers", 3)
	v.SetDefault("clicks.buffer_size", 1000)
	v.SetDefault("clicks.retry_attempts", 3)
	v.SetDefault("clicks.retry_delay", time.Second)
	v.SetDefault("clicks.shutdown_timeout", 30*time.Second)

	v.SetDefault("ratelimit.limit", 120)
	v.SetDefault("ratelimit.window", time.Minute)
	v.SetDefault("ratelimit.idle_ttl", 10*time.Minute)
	v.SetDefault("ratelimit.sweep_schedule", "@every 5m")

	v.SetDefault("prometheus.enabled", false)
	v.SetDefault("prometheus.port", 9090)
}

func bindEnvVars(v *viper.Viper) {
	// Application
	v.BindEnv("app.env", "APP_ENV")
	v.BindEnv("app.port", "PORT")
	v.BindEnv("app.base_url", "BASE_URL")
	v.BindEnv("app.admin_api_key", "ADMIN_API_KEY")
	v.BindEnv("app.ip_salt", "IP_SALT")
	v.BindEnv("app.proxy_header", "PROXY_HEADER")
	v.BindEnv("app.log_level", "LOG_LEVEL")

	v.BindEnv("storage.driver", "STORAGE_DRIVER")

	// PostgreSQL
	v.BindEnv("postgres.host", "PG_HOST")
	v.BindEnv("postgres.user", "PG_USER")
	v.BindEnv("postgres.password", "PG_PASSWORD")
	v.BindEnv("postgres.database", "PG_DB")
	v.BindEnv("postgres.port", "PG_PORT")
	v.BindEnv("postgres.sslmode", "PG_SSLMODE")

	// Redis
	v.BindEnv("redis.enabled", "REDIS_ENABLED")
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")
	v.BindEnv("cache.ttl", "CACHE_TTL")

	// NATS
	v.BindEnv("nats.host", "NATS_HOST")
	v.BindEnv("nats.port", "NATS_PORT")
	v.BindEnv("nats.user", "NATS_USER")
	v.BindEnv("nats.password", "NATS_PASSWORD")

	// Click accounting
	v.BindEnv("clicks.driver", "CLICKS_DRIVER")
	v.BindEnv("clicks.workers", "CLICKS_WORKERS")

	// Rate limiting
	v.BindEnv("ratelimit.limit", "RATE_LIMIT")
	v.BindEnv("ratelimit.window", "RATE_LIMIT_WINDOW")

	// Prometheus
	v.BindEnv("prometheus.enabled", "PROM_ENABLED")
	v.BindEnv("prometheus.port", "PROM_PORT")
}
