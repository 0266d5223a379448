package config

import (
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Store backends
const (
	BackendMemory   = "memory"
	BackendBadger   = "badger"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

var backends = []string{BackendMemory, BackendBadger, BackendRedis, BackendPostgres}

// Config represents the complete application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Store      StoreConfig      `yaml:"store"`
	RabbitMQ   RabbitMQConfig   `yaml:"rabbitmq"`
	Logging    LoggingConfig    `yaml:"logging"`
	App        AppConfig        `yaml:"app"`
	Automation AutomationConfig `yaml:"automation"`
	Payment    PaymentConfig    `yaml:"payment"`
	Relay      RelayConfig      `yaml:"relay"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StoreConfig selects and configures the key-value backend
type StoreConfig struct {
	Backend  string         `yaml:"backend"`
	Badger   BadgerConfig   `yaml:"badger"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres DatabaseConfig `yaml:"postgres"`
}

// BadgerConfig holds embedded database settings
type BadgerConfig struct {
	Path       string        `yaml:"path"`
	InMemory   bool          `yaml:"in_memory"`
	GCInterval time.Duration `yaml:"gc_interval"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr        string        `yaml:"addr"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	Namespace   string        `yaml:"namespace"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration.
// Push publishing is off unless Enabled is set.
type RabbitMQConfig struct {
	Enabled    bool             `yaml:"enabled"`
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      QueueConfig      `yaml:"queue"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
	Consumer   ConsumerConfig   `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueueConfig holds RabbitMQ queue configuration
type QueueConfig struct {
	Name       string `yaml:"name"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
	Exclusive  bool   `yaml:"exclusive"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	Tag           string `yaml:"tag"`
	PrefetchCount int    `yaml:"prefetch_count"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// AutomationConfig holds scheduler settings
type AutomationConfig struct {
	JobTimeout time.Duration `yaml:"job_timeout"`
	Seed       uint64        `yaml:"seed"`
}

// PaymentConfig tunes the simulated gateway
type PaymentConfig struct {
	SuccessRate float64       `yaml:"success_rate"`
	Delay       time.Duration `yaml:"delay"`
}

// RelayConfig holds push relay settings
type RelayConfig struct {
	Concurrency     int           `yaml:"concurrency"`
	DeliveryTimeout time.Duration `yaml:"delivery_timeout"`
	OutboxPrefix    string        `yaml:"outbox_prefix"`
	Outbox          RedisConfig   `yaml:"outbox"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Load reads and parses the configuration file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Store:   StoreConfig{Backend: BackendMemory},
		Payment: PaymentConfig{SuccessRate: 0.95},
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// ValidateAdvisorConfig checks the settings the advisor service needs
func (c *Config) ValidateAdvisorConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if err := c.Store.validate(); err != nil {
		return err
	}

	if c.Payment.SuccessRate < 0 || c.Payment.SuccessRate > 1 {
		return fmt.Errorf("payment success_rate must be between 0 and 1, got %v", c.Payment.SuccessRate)
	}

	if c.Automation.JobTimeout < 0 {
		return fmt.Errorf("automation job_timeout must not be negative")
	}

	if c.RabbitMQ.Enabled {
		return c.RabbitMQ.validate()
	}

	return nil
}

// ValidateRelayConfig checks the settings the push relay needs
func (c *Config) ValidateRelayConfig() error {
	if err := c.RabbitMQ.validate(); err != nil {
		return err
	}

	if c.Relay.Concurrency <= 0 {
		return fmt.Errorf("relay concurrency must be greater than 0")
	}

	if c.Relay.DeliveryTimeout <= 0 {
		return fmt.Errorf("relay delivery_timeout must be greater than 0")
	}

	if c.Relay.Outbox.Addr == "" {
		return fmt.Errorf("relay outbox addr is required")
	}

	if c.Relay.ShutdownTimeout <= 0 {
		return fmt.Errorf("relay shutdown_timeout must be greater than 0")
	}

	return nil
}

func (s *StoreConfig) validate() error {
	if !slices.Contains(backends, s.Backend) {
		return fmt.Errorf("unknown store backend %q (must be one of %v)", s.Backend, backends)
	}

	switch s.Backend {
	case BackendBadger:
		if s.Badger.Path == "" && !s.Badger.InMemory {
			return fmt.Errorf("badger path is required")
		}
	case BackendRedis:
		if s.Redis.Addr == "" {
			return fmt.Errorf("redis addr is required")
		}
	case BackendPostgres:
		if s.Postgres.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if s.Postgres.Port < MinPort || s.Postgres.Port > MaxPort {
			return fmt.Errorf("invalid database port: %d (must be between %d and %d)", s.Postgres.Port, MinPort, MaxPort)
		}
		if s.Postgres.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	return nil
}

func (r *RabbitMQConfig) validate() error {
	if r.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if r.Port < MinPort || r.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", r.Port, MinPort, MaxPort)
	}

	if r.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	if r.Queue.Name == "" {
		return fmt.Errorf("rabbitmq queue name is required")
	}

	return nil
}
