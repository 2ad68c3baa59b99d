package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)

				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "dispatch_db", cfg.Database.Database)
				assert.Equal(t, "dispatch_events", cfg.RabbitMQ.Exchange)
				assert.Equal(t, "tracking-service", cfg.App.Name)
				assert.Equal(t, 30*time.Second, cfg.Tracking.PersistInterval)
				assert.Equal(t, 20.0, cfg.Tracking.PersistDistanceM)
				assert.Equal(t, 15*time.Second, cfg.Agent.WakeHeartbeat)
			}
		})
	}
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "dispatch_db",
		},
		RabbitMQ: RabbitMQConfig{
			Host:     "localhost",
			Port:     5672,
			Exchange: "dispatch_events",
		},
		Tracking: TrackingConfig{
			AuthSecret:       "secret",
			PersistInterval:  30 * time.Second,
			PersistDistanceM: 20,
		},
		Routing: RoutingConfig{BaseURL: "https://routing.example.com"},
		Agent:   AgentConfig{CourierID: "c-1"},
	}
}

func TestValidateServiceConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   bool
		errString string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:      "invalid server port - too low",
			mutate:    func(c *Config) { c.Server.Port = 0 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "invalid server port - too high",
			mutate:    func(c *Config) { c.Server.Port = 70000 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "missing database host",
			mutate:    func(c *Config) { c.Database.Host = "" },
			wantErr:   true,
			errString: "database host is required",
		},
		{
			name:      "missing rabbitmq exchange",
			mutate:    func(c *Config) { c.RabbitMQ.Exchange = "" },
			wantErr:   true,
			errString: "rabbitmq exchange name is required",
		},
		{
			name:      "missing auth secret",
			mutate:    func(c *Config) { c.Tracking.AuthSecret = "" },
			wantErr:   true,
			errString: "auth_secret is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.ValidateServiceConfig()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateAgentConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   bool
		errString string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:      "missing courier id",
			mutate:    func(c *Config) { c.Agent.CourierID = "" },
			wantErr:   true,
			errString: "courier_id is required",
		},
		{
			name:      "negative persist interval",
			mutate:    func(c *Config) { c.Tracking.PersistInterval = -time.Second },
			wantErr:   true,
			errString: "persist_interval",
		},
		{
			name:      "negative persist distance",
			mutate:    func(c *Config) { c.Tracking.PersistDistanceM = -1 },
			wantErr:   true,
			errString: "persist_distance_m",
		},
		{
			name:      "missing routing base url",
			mutate:    func(c *Config) { c.Routing.BaseURL = "" },
			wantErr:   true,
			errString: "routing base_url is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.ValidateAgentConfig()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
