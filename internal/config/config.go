package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendMongo    = "mongo"
	BackendMemory   = "memory"
	BackendPostgres = "postgres"

	ProviderStripe    = "stripe"
	ProviderSimulated = "simulated"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	HTTPPort string
	GRPCPort string

	StorageBackend string
	MongoURI       string
	MongoDBName    string

	OrderStore     string
	DBHost         string
	DBPort         int
	DBUser         string
	DBPassword     string
	DBName         string
	MigrationsPath string

	RedisAddr     string
	RedisPassword string
	CartCacheTTL  time.Duration
	// PendingKeyTTL bounds a confirm's idempotency claim; finished results
	// are kept for a day.
	PendingKeyTTL time.Duration

	KafkaBrokers     []string
	OrderEventsTopic string

	PaymentProvider string
	StripeSecretKey string
	Currency        string

	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	SeedCatalog bool
	LogLevel    string
}

// Load reads the environment. An empty REDIS_ADDR or KAFKA_BROKERS turns the
// cache or the event relay off.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:         getEnv("HTTP_PORT", "8080"),
		GRPCPort:         getEnv("GRPC_PORT", "50051"),
		StorageBackend:   getEnv("STORAGE_BACKEND", BackendMongo),
		MongoURI:         getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:      getEnv("MONGO_DB_NAME", "storefront"),
		OrderStore:       getEnv("ORDER_STORE", BackendMongo),
		DBHost:           getEnv("DB_HOST", "localhost"),
		DBUser:           getEnv("DB_USER", "postgres"),
		DBPassword:       getEnv("DB_PASSWORD", "postgres"),
		DBName:           getEnv("DB_NAME", "storefront"),
		MigrationsPath:   getEnv("MIGRATIONS_PATH", "./internal/repository/postgres/migrations"),
		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		OrderEventsTopic: getEnv("ORDER_EVENTS_TOPIC", "order-events"),
		PaymentProvider:  getEnv("PAYMENT_PROVIDER", ProviderSimulated),
		StripeSecretKey:  getEnv("STRIPE_SECRET_KEY", ""),
		Currency:         strings.ToLower(getEnv("CURRENCY", "usd")),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.DBPort, err = strconv.Atoi(getEnv("DB_PORT", "5432")); err != nil {
		return nil, fmt.Errorf("%w: DB_PORT: %w", ErrInvalidConfig, err)
	}
	if cfg.RequestTimeout, err = time.ParseDuration(getEnv("REQUEST_TIMEOUT", "30s")); err != nil {
		return nil, fmt.Errorf("%w: REQUEST_TIMEOUT: %w", ErrInvalidConfig, err)
	}
	if cfg.ShutdownTimeout, err = time.ParseDuration(getEnv("SHUTDOWN_TIMEOUT", "10s")); err != nil {
		return nil, fmt.Errorf("%w: SHUTDOWN_TIMEOUT: %w", ErrInvalidConfig, err)
	}
	if cfg.CartCacheTTL, err = time.ParseDuration(getEnv("CART_CACHE_TTL", "15m")); err != nil {
		return nil, fmt.Errorf("%w: CART_CACHE_TTL: %w", ErrInvalidConfig, err)
	}
	if cfg.PendingKeyTTL, err = time.ParseDuration(getEnv("IDEMPOTENCY_PENDING_TTL", "2m")); err != nil {
		return nil, fmt.Errorf("%w: IDEMPOTENCY_PENDING_TTL: %w", ErrInvalidConfig, err)
	}
	if cfg.SeedCatalog, err = strconv.ParseBool(getEnv("SEED_CATALOG", "false")); err != nil {
		return nil, fmt.Errorf("%w: SEED_CATALOG: %w", ErrInvalidConfig, err)
	}
	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StorageBackend {
	case BackendMongo, BackendMemory:
	default:
		return fmt.Errorf("%w: STORAGE_BACKEND must be %q or %q, got %q", ErrInvalidConfig, BackendMongo, BackendMemory, c.StorageBackend)
	}

	switch c.OrderStore {
	case BackendMongo, BackendPostgres:
	default:
		return fmt.Errorf("%w: ORDER_STORE must be %q or %q, got %q", ErrInvalidConfig, BackendMongo, BackendPostgres, c.OrderStore)
	}

	switch c.PaymentProvider {
	case ProviderStripe:
		if c.StripeSecretKey == "" {
			return fmt.Errorf("%w: STRIPE_SECRET_KEY is required when PAYMENT_PROVIDER=stripe", ErrInvalidConfig)
		}
	case ProviderSimulated:
	default:
		return fmt.Errorf("%w: PAYMENT_PROVIDER must be %q or %q, got %q", ErrInvalidConfig, ProviderStripe, ProviderSimulated, c.PaymentProvider)
	}

	if c.RequestTimeout <= 0 || c.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalidConfig)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
