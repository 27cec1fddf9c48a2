package config

import (
	"strings"
	"time"

	pkgconfig "github.com/wekeepgrowing/settlement-service/pkg/config"
)

func (c *Config) applyDefaults() {
	if c.Service.Name == "" {
		c.Service.Name = "settlement"
	}
	if c.Service.Environment == "" {
		c.Service.Environment = "development"
	}
	if c.Server.HTTP.Port == 0 {
		c.Server.HTTP.Port = 8080
	}
	if c.Server.HTTP.MetricsPath == "" {
		c.Server.HTTP.MetricsPath = "/metrics"
	}
	if c.Server.GRPC.Port == 0 {
		c.Server.GRPC.Port = 9090
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 30 * time.Minute
	}
	if c.Gateway.Host == "" {
		c.Gateway.Host = "eu-test.oppwa.com"
	}
	if c.Gateway.Timeout == 0 {
		c.Gateway.Timeout = 60 * time.Second
	}
	if c.Webhook.SignatureHeader == "" {
		c.Webhook.SignatureHeader = "X-Signature"
	}
	if c.Webhook.ProcessTimeout == 0 {
		c.Webhook.ProcessTimeout = 5 * time.Minute
	}
	if c.Webhook.LockTTL == 0 {
		c.Webhook.LockTTL = c.Webhook.ProcessTimeout + time.Minute
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "payment-events"
	}
	if c.Events.Channel == "" {
		c.Events.Channel = "payment-events"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = c.Service.Name
	}
	if c.Tracing.Endpoint == "" {
		c.Tracing.Endpoint = "http://localhost:14268/api/traces"
	}
	if c.Reconciliation.Interval == 0 {
		c.Reconciliation.Interval = 5 * time.Minute
	}
	if c.Reconciliation.StaleAfter == 0 {
		c.Reconciliation.StaleAfter = 15 * time.Minute
	}
	if c.Reconciliation.BatchSize == 0 {
		c.Reconciliation.BatchSize = 50
	}
	c.Payout.applyDefaults()
}

// envAliases binds the historical variable names to config keys.
var envAliases = map[string][]string{
	"gateway.host":                        {"PAYMENT_HOST"},
	"gateway.entity_id":                   {"PAYMENT_ENTITY_ID"},
	"gateway.authorization":               {"PAYMENT_AUTHORIZATION"},
	"webhook.secret":                      {"PAYMENT_WEBHOOK_SECRET"},
	"jwt.secret":                          {"JWT_SECRET"},
	"payout.admin_wallet_address":         {"ADMIN_WALLET_ADDRESS"},
	"payout.admin_private_key":            {"ADMIN_PRIVATE_KEY"},
	"payout.admin_private_key_ciphertext": {"ADMIN_PRIVATE_KEY_ENCRYPTED"},
	"payout.admin_private_key_iv":         {"ADMIN_PRIVATE_KEY_IV"},
	"payout.key_encryption_key":           {"KEY_ENCRYPTION_KEY"},
	"database.host":                       {"DB_HOST"},
	"database.port":                       {"DB_PORT"},
	"database.name":                       {"DB_NAME"},
	"database.user":                       {"DB_USER"},
	"database.password":                   {"DB_PASSWORD"},
	"redis.addr":                          {"REDIS_ADDR"},
	"redis.password":                      {"REDIS_PASSWORD"},
	"kafka.brokers":                       {"KAFKA_BROKERS"},
	"tracing.endpoint":                    {"JAEGER_ENDPOINT"},
}

func (c *Config) applyEnv() error {
	env, err := pkgconfig.NewEnv(envAliases)
	if err != nil {
		return err
	}

	setString(env, "service.environment", &c.Service.Environment)
	setString(env, "service.client_url", &c.Service.ClientURL)
	if env.IsSet("service.node_id") {
		c.Service.NodeID = int64(env.GetInt("service.node_id"))
	}
	setString(env, "gateway.host", &c.Gateway.Host)
	setString(env, "gateway.entity_id", &c.Gateway.EntityID)
	setString(env, "gateway.authorization", &c.Gateway.Authorization)
	setDuration(env, "gateway.timeout", &c.Gateway.Timeout)
	setDuration(env, "webhook.lock_ttl", &c.Webhook.LockTTL)
	setDuration(env, "webhook.process_timeout", &c.Webhook.ProcessTimeout)
	setString(env, "webhook.secret", &c.Webhook.Secret)
	if env.IsSet("webhook.allow_unsigned") {
		c.Webhook.AllowUnsigned = env.GetBool("webhook.allow_unsigned")
	}
	setString(env, "jwt.secret", &c.JWT.Secret)
	setString(env, "database.host", &c.Database.Host)
	setInt(env, "database.port", &c.Database.Port)
	setString(env, "database.name", &c.Database.Name)
	setString(env, "database.user", &c.Database.User)
	setString(env, "database.password", &c.Database.Password)
	setString(env, "redis.addr", &c.Redis.Addr)
	setString(env, "redis.password", &c.Redis.Password)
	if env.IsSet("kafka.brokers") {
		c.Kafka.Brokers = env.GetList("kafka.brokers")
	}
	setString(env, "events.publisher", &c.Events.Publisher)
	setString(env, "tracing.endpoint", &c.Tracing.Endpoint)
	if env.IsSet("tracing.enabled") {
		c.Tracing.Enabled = env.GetBool("tracing.enabled")
	}

	setString(env, "payout.admin_wallet_address", &c.Payout.AdminWalletAddress)
	setString(env, "payout.admin_private_key", &c.Payout.AdminPrivateKey)
	setString(env, "payout.admin_private_key_ciphertext", &c.Payout.AdminPrivateKeyCiphertext)
	setString(env, "payout.admin_private_key_iv", &c.Payout.AdminPrivateKeyIV)
	setString(env, "payout.key_encryption_key", &c.Payout.KeyEncryptionKey)

	for name, network := range c.Payout.Networks {
		// BSC_RPC, POLYGON_RPC, ...
		key := strings.ToLower(name) + "_rpc"
		if env.IsSet(key) {
			network.RPCURL = env.GetString(key)
			c.Payout.Networks[name] = network
		}
	}
	if env.IsSet("payout.wait_for_receipt") {
		c.Payout.WaitForReceipt = env.GetBool("payout.wait_for_receipt")
	}

	return nil
}

func setString(env pkgconfig.Env, key string, dst *string) {
	if env.IsSet(key) {
		*dst = env.GetString(key)
	}
}

func setInt(env pkgconfig.Env, key string, dst *int) {
	if env.IsSet(key) {
		*dst = env.GetInt(key)
	}
}

func setDuration(env pkgconfig.Env, key string, dst *time.Duration) {
	if env.IsSet(key) {
		*dst = env.GetDuration(key)
	}
}
