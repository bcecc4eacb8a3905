package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	OTel     OTelConfig     `mapstructure:"otel"`
	Points   PointsConfig   `mapstructure:"points"`
	Session  SessionConfig  `mapstructure:"session"`
}

// AppConfig holds application-level settings
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"` // development, staging, production
	Debug       bool   `mapstructure:"debug"`
	LogLevel    string `mapstructure:"log_level"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// Addr returns the server listen address
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// DSN returns the PostgreSQL connection string
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

// Addr returns the Redis address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// KafkaConfig holds Kafka/Redpanda connection settings
type KafkaConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	Brokers      []string `mapstructure:"brokers"`
	SessionTopic string   `mapstructure:"session_topic"`
	LedgerTopic  string   `mapstructure:"ledger_topic"`
	ClientID     string   `mapstructure:"client_id"`
}

// JWTConfig holds JWT settings
type JWTConfig struct {
	Secret          string        `mapstructure:"secret"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
	Issuer          string        `mapstructure:"issuer"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	ServiceName   string `mapstructure:"service_name"`
	CollectorAddr string `mapstructure:"collector_addr"`
}

// PointsConfig holds the points economy policy
type PointsConfig struct {
	MaxPoints      int           `mapstructure:"max_points"`
	StartingPoints int           `mapstructure:"starting_points"`
	RegenAmount    int           `mapstructure:"regen_amount"`
	RegenInterval  time.Duration `mapstructure:"regen_interval"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
}

// SessionConfig holds session lifecycle policy
type SessionConfig struct {
	Duration        time.Duration `mapstructure:"duration"`
	WarningWindow   time.Duration `mapstructure:"warning_window"`
	WaitPerPosition time.Duration `mapstructure:"wait_per_position"`
	PointsCost      int           `mapstructure:"points_cost"`
	FreeAgentID     string        `mapstructure:"free_agent_id"`
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")

	// .env is optional; environment variables may carry everything
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Continue: env vars can still provide the config
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "stagedoor")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 6969)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "stagedoor")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.min_conns", 5)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.pool_size", 100)
	v.SetDefault("redis.min_idle_conns", 10)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.session_topic", "session-events")
	v.SetDefault("kafka.ledger_topic", "ledger-events")
	v.SetDefault("kafka.client_id", "stagedoor-producer")

	v.SetDefault("jwt.access_token_ttl", time.Hour)
	v.SetDefault("jwt.refresh_token_ttl", 7*24*time.Hour)
	v.SetDefault("jwt.issuer", "stagedoor")

	v.SetDefault("otel.enabled", false)
	v.SetDefault("otel.service_name", "stagedoor")
	v.SetDefault("otel.collector_addr", "localhost:4317")

	v.SetDefault("points.max_points", 100)
	v.SetDefault("points.starting_points", 100)
	v.SetDefault("points.regen_amount", 50)
	v.SetDefault("points.regen_interval", 24*time.Hour)
	v.SetDefault("points.sweep_interval", time.Minute)

	v.SetDefault("session.duration", 5*time.Minute)
	v.SetDefault("session.warning_window", 30*time.Second)
	v.SetDefault("session.wait_per_position", 5*time.Minute)
	v.SetDefault("session.points_cost", 10)
	v.SetDefault("session.free_agent_id", "")
}

// Validate checks that required settings are present
func (c *Config) Validate() error {
	if c.JWT.Secret == "" && c.App.Environment == "production" {
		return fmt.Errorf("jwt.secret is required in production")
	}
	if c.Points.MaxPoints <= 0 {
		return fmt.Errorf("points.max_points must be positive")
	}
	if c.Session.Duration <= 0 {
		return fmt.Errorf("session.duration must be positive")
	}
	if c.Session.WarningWindow >= c.Session.Duration {
		return fmt.Errorf("session.warning_window must be shorter than session.duration")
	}
	return nil
}

// IsDevelopment returns true when running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}
