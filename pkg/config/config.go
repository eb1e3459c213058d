package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	BackendDynamoDB = "dynamodb"
	BackendMemory   = "memory"
)

type Config struct {
	Port             string `envconfig:"PORT" default:"8080"`
	AWSRegion        string `envconfig:"AWS_REGION" default:"ap-northeast-2"`
	TableName        string `envconfig:"TABLE_NAME" default:"storefront"`
	DynamoDBEndpoint string `envconfig:"DYNAMODB_ENDPOINT" default:""` // DynamoDB Local
	StoreBackend     string `envconfig:"STORE_BACKEND" default:"dynamodb"`

	KafkaEnabled      bool   `envconfig:"KAFKA_ENABLED" default:"true"`
	KafkaBrokers      string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	OrderEventsTopic  string `envconfig:"ORDER_EVENTS_TOPIC" default:"order-events"`
	CompensationTopic string `envconfig:"COMPENSATION_TOPIC" default:"inventory-compensation"`

	RedisURL       string        `envconfig:"REDIS_URL" default:""`
	IdempotencyTTL time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`

	JWTSecrets []string `envconfig:"JWT_SECRETS" required:"true"`
	JWTIssuer  string   `envconfig:"JWT_ISSUER" default:"storefront"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	SeedFile string `envconfig:"SEED_FILE" default:""`

	ReleaseRetries int           `envconfig:"RELEASE_RETRIES" default:"3"`
	ReleaseBackoff time.Duration `envconfig:"RELEASE_BACKOFF" default:"50ms"`
	RecentOrders   int           `envconfig:"RECENT_ORDERS" default:"5"`

	InternalTLSEnabled bool `envconfig:"INTERNAL_TLS_ENABLED" default:"false"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	c.StoreBackend = strings.ToLower(strings.TrimSpace(c.StoreBackend))
	switch c.StoreBackend {
	case BackendDynamoDB, BackendMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendDynamoDB, BackendMemory, c.StoreBackend)
	}

	secrets := c.JWTSecrets[:0]
	for _, s := range c.JWTSecrets {
		if s = strings.TrimSpace(s); s != "" {
			secrets = append(secrets, s)
		}
	}
	if len(secrets) == 0 {
		return fmt.Errorf("JWT_SECRETS must name at least one key")
	}
	c.JWTSecrets = secrets

	if c.ReleaseRetries < 0 {
		return fmt.Errorf("RELEASE_RETRIES must not be negative")
	}
	if c.RecentOrders < 0 {
		return fmt.Errorf("RECENT_ORDERS must not be negative")
	}
	return nil
}
