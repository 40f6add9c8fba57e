package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration loaded from YAML.
type Config struct {
	Database struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"database"`
	} `yaml:"database"`

	RabbitMQ struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
	} `yaml:"rabbitmq"`

	Redis struct {
		Addr string `yaml:"addr"`
		DB   int    `yaml:"db"`
	} `yaml:"redis"`

	Service struct {
		Port        int `yaml:"port"`         // websocket + health endpoints
		MetricsPort int `yaml:"metrics_port"` // prometheus scrape endpoint
	} `yaml:"service"`

	Push struct {
		BaseURL          string `yaml:"base_url"`           // push provider API root
		AccessToken      string `yaml:"access_token"`       // optional bearer token
		ChunkSize        int    `yaml:"chunk_size"`         // messages per request
		ReceiptChunkSize int    `yaml:"receipt_chunk_size"` // receipt ids per request
	} `yaml:"push"`

	JWT struct {
		SecretKey string `yaml:"secret_key"`
	} `yaml:"jwt"`
}

// LoadFromFile loads config from a YAML file, applies defaults, and
// validates required fields.
func LoadFromFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets safe defaults for optional fields.
func applyDefaults(cfg *Config) {
	// Database
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}

	// RabbitMQ
	if cfg.RabbitMQ.Host == "" {
		cfg.RabbitMQ.Host = "localhost"
	}
	if cfg.RabbitMQ.Port == 0 {
		cfg.RabbitMQ.Port = 5672
	}

	// Redis
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}

	// Service
	if cfg.Service.Port == 0 {
		cfg.Service.Port = 3002
	}
	if cfg.Service.MetricsPort == 0 {
		cfg.Service.MetricsPort = 9091
	}

	// Push provider (Expo)
	if cfg.Push.BaseURL == "" {
		cfg.Push.BaseURL = "https://exp.host/--/api/v2"
	}
	if cfg.Push.ChunkSize == 0 {
		cfg.Push.ChunkSize = 100
	}
	if cfg.Push.ReceiptChunkSize == 0 {
		cfg.Push.ReceiptChunkSize = 300
	}
}

// validate checks required fields and basic ranges.
func (c *Config) validate() error {
	var problems []string

	// DB
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		problems = append(problems, "database.port must be in 1..65535")
	}
	if c.Database.User == "" {
		problems = append(problems, "database.user is required")
	}
	if c.Database.Password == "" {
		problems = append(problems, "database.password is required")
	}
	if c.Database.Name == "" {
		problems = append(problems, "database.database is required")
	}

	// RabbitMQ
	if c.RabbitMQ.Port <= 0 || c.RabbitMQ.Port > 65535 {
		problems = append(problems, "rabbitmq.port must be in 1..65535")
	}
	if c.RabbitMQ.User == "" {
		problems = append(problems, "rabbitmq.user is required")
	}
	if c.RabbitMQ.Password == "" {
		problems = append(problems, "rabbitmq.password is required")
	}

	// Service
	if c.Service.Port <= 0 || c.Service.Port > 65535 {
		problems = append(problems, "service.port must be in 1..65535")
	}
	if c.Service.MetricsPort <= 0 || c.Service.MetricsPort > 65535 {
		problems = append(problems, "service.metrics_port must be in 1..65535")
	}

	// Push
	if c.Push.ChunkSize < 1 || c.Push.ChunkSize > 100 {
		problems = append(problems, "push.chunk_size must be in 1..100")
	}
	if c.Push.ReceiptChunkSize < 1 || c.Push.ReceiptChunkSize > 300 {
		problems = append(problems, "push.receipt_chunk_size must be in 1..300")
	}

	// JWT
	if strings.TrimSpace(c.JWT.SecretKey) == "" {
		problems = append(problems, "jwt.secret_key is required")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
