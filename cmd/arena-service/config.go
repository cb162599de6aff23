package main

import (
	"fmt"
	"os"
	"time"

	"codearena/internal/common/cache"
	"codearena/internal/common/db"
	"codearena/internal/common/mq"
	"codearena/internal/common/storage"
	"codearena/pkg/utils/logger"

	"gopkg.in/yaml.v3"
)

// Config is the arena service configuration, loaded from YAML.
type Config struct {
	Server    ServerConfig         `yaml:"server"`
	Log       logger.Config        `yaml:"log"`
	Database  db.MySQLConfig       `yaml:"database"`
	Redis     cache.RedisConfig    `yaml:"redis"`
	Kafka     *mq.KafkaConfig      `yaml:"kafka"`
	Storage   *storage.MinIOConfig `yaml:"storage"`
	Auth      AuthConfig           `yaml:"auth"`
	Judge     JudgeConfig          `yaml:"judge"`
	Match     MatchConfig          `yaml:"match"`
	Generator GeneratorConfig      `yaml:"generator"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Mode            string        `yaml:"mode"` // debug, release
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// AuthConfig configures token issuance.
type AuthConfig struct {
	JWTSecret string        `yaml:"jwtSecret"`
	TokenTTL  time.Duration `yaml:"tokenTTL"`
	Issuer    string        `yaml:"issuer"`
}

// JudgeConfig configures submission judging.
type JudgeConfig struct {
	WorkDir string `yaml:"workDir"`
}

// MatchConfig configures match rooms.
type MatchConfig struct {
	IdleTTL       time.Duration `yaml:"idleTTL"`
	SweepInterval time.Duration `yaml:"sweepInterval"`
	KFactor       float64       `yaml:"kFactor"`
}

// GeneratorConfig configures the task generator endpoint.
type GeneratorConfig struct {
	Endpoint   string        `yaml:"endpoint"`
	APIKey     string        `yaml:"apiKey"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"maxRetries"`
}

// LoadConfig reads the configuration file and applies defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "release"
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}
	if c.Match.IdleTTL <= 0 {
		c.Match.IdleTTL = time.Hour
	}
	if c.Match.SweepInterval <= 0 {
		c.Match.SweepInterval = 5 * time.Minute
	}
	if c.Generator.Timeout <= 0 {
		c.Generator.Timeout = 60 * time.Second
	}
	if c.Generator.MaxRetries <= 0 {
		c.Generator.MaxRetries = 2
	}
}

func (c *Config) validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwtSecret is required")
	}
	return nil
}

// Addr returns the host:port the server listens on.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
