package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	DBConfig struct {
		Host     string `env:"PAYMENTS_DB_HOST"`
		Port     int    `env:"PAYMENTS_DB_PORT"`
		User     string `env:"PAYMENTS_DB_USER"`
		Password string `env:"PAYMENTS_DB_PASSWORD"`
		Name     string `env:"PAYMENTS_DB_NAME"`
		SSLMode  string `env:"PAYMENTS_DB_SSLMODE"`
	}

	KafkaBrokerURL           string        `env:"KAFKA_BROKER_URL"`
	KafkaOrderEventsTopic    string        `env:"KAFKA_ORDER_EVENTS_TOPIC"`
	KafkaPaymentEventsTopic  string        `env:"KAFKA_PAYMENT_EVENTS_TOPIC"`
	KafkaConsumerGroup       string        `env:"KAFKA_CONSUMER_GROUP"`
	KafkaTopicPartitions     int           `env:"KAFKA_TOPIC_PARTITIONS"`
	KafkaReplicationFactor   int           `env:"KAFKA_REPLICATION_FACTOR"`
	KafkaWriteTimeout        time.Duration `env:"KAFKA_WRITE_TIMEOUT"`
	KafkaWriteMaxAttempts    int           `env:"KAFKA_WRITE_MAX_ATTEMPTS"`
	KafkaHandlerTimeout      time.Duration `env:"KAFKA_HANDLER_TIMEOUT"`
	KafkaHandlerAttempts     int           `env:"KAFKA_HANDLER_ATTEMPTS"`
	KafkaRetryBackoff        time.Duration `env:"KAFKA_RETRY_BACKOFF"`
	KafkaEnsureTopicsTimeout time.Duration `env:"KAFKA_ENSURE_TOPICS_TIMEOUT"`

	RandomAPI struct {
		BaseURL        string        `env:"RANDOM_API_BASE_URL"`
		Path           string        `env:"RANDOM_API_PATH"`
		Min            int           `env:"RANDOM_API_MIN"`
		Max            int           `env:"RANDOM_API_MAX"`
		Count          int           `env:"RANDOM_API_COUNT"`
		Timeout        time.Duration `env:"RANDOM_API_TIMEOUT"`
		MaxRetries     int           `env:"RANDOM_API_MAX_RETRIES"`
		InitialBackoff time.Duration `env:"RANDOM_API_INITIAL_BACKOFF"`
	}

	Redis struct {
		Addr           string        `env:"REDIS_ADDR"`
		Password       string        `env:"REDIS_PASSWORD"`
		DB             int           `env:"REDIS_DB"`
		IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL"`
	}

	HTTPPort            int           `env:"HTTP_PORT"`
	CompensationTimeout time.Duration `env:"COMPENSATION_TIMEOUT"`
	StoreDriver         string        `env:"STORE_DRIVER"`
	LogLevel            string        `env:"LOG_LEVEL"`
}

// LoadConfig reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{}

	cfg.DBConfig.Host = getEnvOrDefault("PAYMENTS_DB_HOST", "localhost")
	cfg.DBConfig.Port = getEnvAsInt("PAYMENTS_DB_PORT", 5432)
	cfg.DBConfig.User = getEnvOrDefault("PAYMENTS_DB_USER", "user")
	cfg.DBConfig.Password = getEnvOrDefault("PAYMENTS_DB_PASSWORD", "password")
	cfg.DBConfig.Name = getEnvOrDefault("PAYMENTS_DB_NAME", "payments_db")
	cfg.DBConfig.SSLMode = getEnvOrDefault("PAYMENTS_DB_SSLMODE", "disable")

	cfg.KafkaBrokerURL = getEnvOrDefault("KAFKA_BROKER_URL", "localhost:9092")
	cfg.KafkaOrderEventsTopic = getEnvOrDefault("KAFKA_ORDER_EVENTS_TOPIC", "order-events")
	cfg.KafkaPaymentEventsTopic = getEnvOrDefault("KAFKA_PAYMENT_EVENTS_TOPIC", "payment-events")
	cfg.KafkaConsumerGroup = getEnvOrDefault("KAFKA_CONSUMER_GROUP", "payment-service")
	cfg.KafkaTopicPartitions = getEnvAsInt("KAFKA_TOPIC_PARTITIONS", 3)
	cfg.KafkaReplicationFactor = getEnvAsInt("KAFKA_REPLICATION_FACTOR", 1)
	cfg.KafkaWriteTimeout = getEnvAsDuration("KAFKA_WRITE_TIMEOUT", 10*time.Second)
	cfg.KafkaWriteMaxAttempts = getEnvAsInt("KAFKA_WRITE_MAX_ATTEMPTS", 3)
	cfg.KafkaHandlerTimeout = getEnvAsDuration("KAFKA_HANDLER_TIMEOUT", 60*time.Second)
	cfg.KafkaHandlerAttempts = getEnvAsInt("KAFKA_HANDLER_ATTEMPTS", 3)
	cfg.KafkaRetryBackoff = getEnvAsDuration("KAFKA_RETRY_BACKOFF", 500*time.Millisecond)
	cfg.KafkaEnsureTopicsTimeout = getEnvAsDuration("KAFKA_ENSURE_TOPICS_TIMEOUT", 10*time.Second)

	cfg.RandomAPI.BaseURL = getEnvOrDefault("RANDOM_API_BASE_URL", "http://www.randomnumberapi.com")
	cfg.RandomAPI.Path = getEnvOrDefault("RANDOM_API_PATH", "/api/v1.0/random")
	cfg.RandomAPI.Min = getEnvAsInt("RANDOM_API_MIN", 1)
	cfg.RandomAPI.Max = getEnvAsInt("RANDOM_API_MAX", 100)
	cfg.RandomAPI.Count = getEnvAsInt("RANDOM_API_COUNT", 1)
	cfg.RandomAPI.Timeout = getEnvAsDuration("RANDOM_API_TIMEOUT", 5*time.Second)
	cfg.RandomAPI.MaxRetries = getEnvAsInt("RANDOM_API_MAX_RETRIES", 3)
	cfg.RandomAPI.InitialBackoff = getEnvAsDuration("RANDOM_API_INITIAL_BACKOFF", 2*time.Second)

	cfg.Redis.Addr = getEnvOrDefault("REDIS_ADDR", "")
	cfg.Redis.Password = getEnvOrDefault("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", 0)
	cfg.Redis.IdempotencyTTL = getEnvAsDuration("IDEMPOTENCY_TTL", 24*time.Hour)

	cfg.HTTPPort = getEnvAsInt("HTTP_PORT", 8082)
	cfg.CompensationTimeout = getEnvAsDuration("COMPENSATION_TIMEOUT", 5*time.Second)
	cfg.StoreDriver = strings.ToLower(getEnvOrDefault("STORE_DRIVER", StoreDriverPostgres))
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if len(c.GetKafkaBrokers()) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKER_URL must list at least one broker"))
	}
	if c.KafkaOrderEventsTopic == "" || c.KafkaPaymentEventsTopic == "" {
		errs = append(errs, errors.New("kafka topics must not be empty"))
	}
	if c.KafkaTopicPartitions < 1 {
		errs = append(errs, errors.New("KAFKA_TOPIC_PARTITIONS must be at least 1"))
	}
	if c.KafkaHandlerAttempts < 1 {
		errs = append(errs, errors.New("KAFKA_HANDLER_ATTEMPTS must be at least 1"))
	}
	if c.RandomAPI.Min > c.RandomAPI.Max {
		errs = append(errs, fmt.Errorf("RANDOM_API_MIN (%d) must not exceed RANDOM_API_MAX (%d)", c.RandomAPI.Min, c.RandomAPI.Max))
	}
	if c.RandomAPI.Count < 1 {
		errs = append(errs, errors.New("RANDOM_API_COUNT must be at least 1"))
	}
	if c.StoreDriver != StoreDriverPostgres && c.StoreDriver != StoreDriverMemory {
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	return errors.Join(errs...)
}

func (c *Config) GetKafkaBrokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokerURL, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func (c *Config) IdempotencyEnabled() bool {
	return c.Redis.Addr != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnvOrDefault(key, strconv.Itoa(defaultValue))
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnvOrDefault(key, defaultValue.String())
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
