package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/gomarketplace/internal/kv"
)

type Config struct {
	AppEnv   string
	LogLevel string

	HTTPPort string
	GRPCPort string

	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	CartKey      string
	WriteTimeout time.Duration

	KV kv.Config

	KafkaBrokers []string
	KafkaTopic   string

	OTLPEndpoint string
}

func Load() *Config {
	return &Config{
		AppEnv:   getEnv("APP_ENV", "dev"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		HTTPPort: getEnv("HTTP_PORT", "8080"),
		GRPCPort: getEnv("GRPC_PORT", "50052"),

		RequestTimeout:  getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		CartKey:      getEnv("CART_STORAGE_KEY", "@GoMarketplace:products"),
		WriteTimeout: getEnvDuration("CART_WRITE_TIMEOUT", 5*time.Second),

		KV: kv.Config{
			Backend:            getEnv("STORE_BACKEND", kv.BackendMemory),
			RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword:      getEnv("REDIS_PASSWORD", ""),
			RedisDB:            getEnvInt("REDIS_DB", 0),
			RedisTTL:           getEnvDuration("REDIS_TTL", 0),
			MongoURI:           getEnv("MONGO_URI", "mongodb://localhost:27017"),
			MongoDB:            getEnv("MONGO_DB_NAME", "cartdb"),
			SQLDSN:             getEnv("SQL_DSN", "cart.db"),
			BreakerMaxFailures: uint32(getEnvInt("BREAKER_MAX_FAILURES", 5)),
			BreakerOpenTimeout: getEnvDuration("BREAKER_OPEN_TIMEOUT", 30*time.Second),
		},

		KafkaBrokers: getEnvList("KAFKA_BROKERS"),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "cart-events"),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}

	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultValue
	}
	return d
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
