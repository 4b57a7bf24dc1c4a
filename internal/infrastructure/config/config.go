package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full service configuration, loaded from file and
// INVOICING_* environment variables.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Processor     ProcessorConfig     `mapstructure:"processor"`
	Notification  NotificationConfig  `mapstructure:"notification"`
	Reconcile     ReconcileConfig     `mapstructure:"reconcile"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Auth          AuthConfig          `mapstructure:"auth"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimit       int           `mapstructure:"rate_limit"`
	RateLimitWindow time.Duration `mapstructure:"rate_limit_window"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// DSN returns the PostgreSQL connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ProcessorConfig struct {
	Mode             string        `mapstructure:"mode"` // "simulated" or "live"
	APIKey           string        `mapstructure:"api_key"`
	WebhookSecret    string        `mapstructure:"webhook_secret"`
	WebhookTolerance time.Duration `mapstructure:"webhook_tolerance"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`

	BreakerMaxRequests  uint32        `mapstructure:"breaker_max_requests"`
	BreakerInterval     time.Duration `mapstructure:"breaker_interval"`
	BreakerTimeout      time.Duration `mapstructure:"breaker_timeout"`
	BreakerMinRequests  uint32        `mapstructure:"breaker_min_requests"`
	BreakerFailureRatio float64       `mapstructure:"breaker_failure_ratio"`
}

type NotificationConfig struct {
	SendGridAPIKey string        `mapstructure:"sendgrid_api_key"`
	FromName       string        `mapstructure:"from_name"`
	FromEmail      string        `mapstructure:"from_email"`
	MaxAttempts    uint          `mapstructure:"max_attempts"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	RetryMaxDelay  time.Duration `mapstructure:"retry_max_delay"`
	SendTimeout    time.Duration `mapstructure:"send_timeout"`
}

type ReconcileConfig struct {
	TransactionTimeout time.Duration `mapstructure:"transaction_timeout"`
	LockTTL            time.Duration `mapstructure:"lock_ttl"`
	ReplayBatchSize    int           `mapstructure:"replay_batch_size"`
}

type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	Environment    string `mapstructure:"environment"`
	ServiceName    string `mapstructure:"service_name"`
	TracingEnabled bool   `mapstructure:"tracing_enabled"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// Load reads configuration from the given path (optional) and environment
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix("INVOICING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// a missing config file is fine, env and defaults cover everything
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.rate_limit", 100)
	v.SetDefault("server.rate_limit_window", time.Minute)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "invoicing")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", time.Hour)
	v.SetDefault("database.max_conn_idle_time", 30*time.Minute)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("processor.mode", "simulated")
	v.SetDefault("processor.webhook_tolerance", 5*time.Minute)
	v.SetDefault("processor.request_timeout", 15*time.Second)
	v.SetDefault("processor.breaker_max_requests", 3)
	v.SetDefault("processor.breaker_interval", time.Minute)
	v.SetDefault("processor.breaker_timeout", 30*time.Second)
	v.SetDefault("processor.breaker_min_requests", 5)
	v.SetDefault("processor.breaker_failure_ratio", 0.6)

	v.SetDefault("notification.from_name", "Invoicing")
	v.SetDefault("notification.from_email", "billing@example.com")
	v.SetDefault("notification.max_attempts", 3)
	v.SetDefault("notification.retry_delay", time.Second)
	v.SetDefault("notification.retry_max_delay", 10*time.Second)
	v.SetDefault("notification.send_timeout", 30*time.Second)

	v.SetDefault("reconcile.transaction_timeout", 10*time.Second)
	v.SetDefault("reconcile.lock_ttl", 30*time.Second)
	v.SetDefault("reconcile.replay_batch_size", 50)

	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.environment", "development")
	v.SetDefault("observability.service_name", "invoicing-api")
	v.SetDefault("observability.tracing_enabled", false)
	v.SetDefault("observability.jaeger_endpoint", "http://localhost:14268/api/traces")

	v.SetDefault("auth.token_ttl", 24*time.Hour)

	// AutomaticEnv only resolves keys viper already knows about, so secrets
	// must be registered even though they have no usable default
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("processor.api_key", "")
	v.SetDefault("processor.webhook_secret", "")
	v.SetDefault("notification.sendgrid_api_key", "")
	v.SetDefault("redis.password", "")
}

// Validate checks configuration invariants
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Processor.Mode != "simulated" && c.Processor.Mode != "live" {
		return fmt.Errorf("processor.mode must be simulated or live, got %q", c.Processor.Mode)
	}
	if c.Processor.Mode == "live" && c.Processor.APIKey == "" {
		return fmt.Errorf("processor.api_key is required in live mode")
	}
	if c.Processor.Mode == "live" && c.Processor.WebhookSecret == "" {
		return fmt.Errorf("processor.webhook_secret is required in live mode")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Reconcile.TransactionTimeout <= 0 {
		return fmt.Errorf("reconcile.transaction_timeout must be positive")
	}
	return nil
}
