package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Logging  LoggingConfig  `yaml:"logging"`
	App      AppConfig      `yaml:"app"`
	Tracking TrackingConfig `yaml:"tracking"`
	Routing  RoutingConfig  `yaml:"routing"`
	Agent    AgentConfig    `yaml:"agent"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
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

// RabbitMQConfig holds the change-feed exchange and consumer queue settings
type RabbitMQConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	VHost           string        `yaml:"vhost"`
	Exchange        string        `yaml:"exchange"`
	ExchangeDurable bool          `yaml:"exchange_durable"`
	Queue           string        `yaml:"queue"`
	QueueDurable    bool          `yaml:"queue_durable"`
	QueueAutoDelete bool          `yaml:"queue_auto_delete"`
	RetryAttempts   int           `yaml:"retry_attempts"`
	RetryInterval   time.Duration `yaml:"retry_interval"`
	Heartbeat       time.Duration `yaml:"heartbeat"`
	PublishRetries  int           `yaml:"publish_retries"`
	PublishDelay    time.Duration `yaml:"publish_delay"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	Output    string `yaml:"output"`
	AddSource bool   `yaml:"add_source"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// TrackingConfig holds telemetry ingestion settings shared by the service
// (verification) and the agent (reporting).
type TrackingConfig struct {
	IngestURL        string        `yaml:"ingest_url"`
	AuthSecret       string        `yaml:"auth_secret"`
	PersistInterval  time.Duration `yaml:"persist_interval"`
	PersistDistanceM float64       `yaml:"persist_distance_m"`
}

// RoutingConfig holds the directions and geocoding provider settings
type RoutingConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// AgentConfig holds courier-agent settings
type AgentConfig struct {
	CourierID     string        `yaml:"courier_id"`
	BearerToken   string        `yaml:"bearer_token"`
	AlertCue      string        `yaml:"alert_cue"` // voice or bell
	FollowMode    bool          `yaml:"follow_mode"`
	GuardTTL      time.Duration `yaml:"guard_ttl"`
	WakeHeartbeat time.Duration `yaml:"wake_heartbeat"`
}

// Load reads and parses the configuration file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// ValidateServiceConfig checks the fields the tracking service requires
func (c *Config) ValidateServiceConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if err := c.validateDatabase(); err != nil {
		return err
	}

	if err := c.validateRabbitMQ(); err != nil {
		return err
	}

	if c.Tracking.AuthSecret == "" {
		return fmt.Errorf("tracking auth_secret is required")
	}

	return nil
}

// ValidateAgentConfig checks the fields the courier agent requires
func (c *Config) ValidateAgentConfig() error {
	if c.Agent.CourierID == "" {
		return fmt.Errorf("agent courier_id is required")
	}

	if err := c.validateDatabase(); err != nil {
		return err
	}

	if err := c.validateRabbitMQ(); err != nil {
		return err
	}

	if c.Tracking.PersistInterval < 0 {
		return fmt.Errorf("tracking persist_interval must not be negative")
	}

	if c.Tracking.PersistDistanceM < 0 {
		return fmt.Errorf("tracking persist_distance_m must not be negative")
	}

	if c.Routing.BaseURL == "" {
		return fmt.Errorf("routing base_url is required")
	}

	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	return nil
}

func (c *Config) validateRabbitMQ() error {
	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	return nil
}
