package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/wekeepgrowing/settlement-service/pkg/logger"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Service        ServiceConfig        `yaml:"service"`
	Database       DatabaseConfig       `yaml:"database"`
	Server         ServerConfig         `yaml:"server"`
	Log            logger.Config        `yaml:"log"`
	JWT            JWTConfig            `yaml:"jwt"`
	Gateway        GatewayConfig        `yaml:"gateway"`
	Webhook        WebhookConfig        `yaml:"webhook"`
	Payout         PayoutConfig         `yaml:"payout"`
	Redis          RedisConfig          `yaml:"redis"`
	Kafka          KafkaConfig          `yaml:"kafka"`
	Events         EventsConfig         `yaml:"events"`
	Tracing        TracingConfig        `yaml:"tracing"`
	Reconciliation ReconciliationConfig `yaml:"reconciliation"`
}

// LoadConfig reads the YAML file at CONFIG_PATH (default ./configs/settlement.yaml),
// fills defaults and applies environment overrides. A missing file is not an error
// so the service can run from environment variables alone.
func LoadConfig() (*Config, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/settlement.yaml"
	}

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	var cfg Config
	data, err := os.ReadFile(absPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	case os.IsNotExist(err) && os.Getenv("CONFIG_PATH") == "":
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks settings the service cannot start without.
func (c *Config) Validate() error {
	if c.Gateway.EntityID == "" {
		return fmt.Errorf("gateway.entity_id is required")
	}
	if c.Gateway.Authorization == "" {
		return fmt.Errorf("gateway.authorization is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	if c.Webhook.Secret == "" && !c.Webhook.AllowUnsigned {
		return fmt.Errorf("webhook.secret is required unless webhook.allow_unsigned is set")
	}
	if c.Webhook.LockTTL > 0 && c.Webhook.LockTTL <= c.Webhook.ProcessTimeout {
		return fmt.Errorf("webhook.lock_ttl must exceed webhook.process_timeout")
	}
	switch c.Events.Publisher {
	case "", EventPublisherKafka, EventPublisherRedis:
	default:
		return fmt.Errorf("unknown events.publisher %q", c.Events.Publisher)
	}
	if c.Events.Publisher == EventPublisherKafka && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required for the kafka event publisher")
	}
	if c.Events.Publisher == EventPublisherRedis && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required for the redis event publisher")
	}
	return nil
}
