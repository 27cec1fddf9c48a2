package config

import (
	"strings"
	"time"
)

type ServiceConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
	ClientURL   string `yaml:"client_url"`
	// NodeID seeds merchant transaction ids; unique per replica (0-1023).
	NodeID int64 `yaml:"node_id"`
}

type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// GatewayConfig configures the card payment gateway client.
type GatewayConfig struct {
	Host          string        `yaml:"host"`
	EntityID      string        `yaml:"entity_id"`
	Authorization string        `yaml:"authorization"`
	Timeout       time.Duration `yaml:"timeout"`
}

// BaseURL returns the gateway origin. A bare host is served over https.
func (c GatewayConfig) BaseURL() string {
	if strings.HasPrefix(c.Host, "http://") || strings.HasPrefix(c.Host, "https://") {
		return strings.TrimRight(c.Host, "/")
	}
	return "https://" + strings.TrimRight(c.Host, "/")
}

// BearerToken returns the Authorization header value, adding the Bearer scheme if missing.
func (c GatewayConfig) BearerToken() string {
	if strings.HasPrefix(c.Authorization, "Bearer ") {
		return c.Authorization
	}
	return "Bearer " + c.Authorization
}

type WebhookConfig struct {
	Secret          string        `yaml:"secret"`
	SignatureHeader string        `yaml:"signature_header"`
	AllowUnsigned   bool          `yaml:"allow_unsigned"`
	LockTTL         time.Duration `yaml:"lock_ttl"`
	// ProcessTimeout bounds one notification, detached from the delivery request.
	ProcessTimeout time.Duration `yaml:"process_timeout"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

const (
	EventPublisherKafka = "kafka"
	EventPublisherRedis = "redis"
)

// EventsConfig selects where payment status changes are published. Empty disables publishing.
type EventsConfig struct {
	Publisher string `yaml:"publisher"`
	Channel   string `yaml:"channel"`
}

type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
	Endpoint    string `yaml:"endpoint"`
}

type ReconciliationConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Interval   time.Duration `yaml:"interval"`
	StaleAfter time.Duration `yaml:"stale_after"`
	BatchSize  int           `yaml:"batch_size"`
}
