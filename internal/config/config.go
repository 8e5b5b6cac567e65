package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Visit sink modes: direct database inserts or the RabbitMQ pipeline.
const (
	VisitSinkDB   = "db"
	VisitSinkAMQP = "amqp"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Broker   BrokerConfig
	App      AppConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// CacheConfig holds the Redis caching layer configuration
type CacheConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	TTL      time.Duration
}

// BrokerConfig holds the RabbitMQ connection configuration used by the
// amqp visit sink and the analytics worker.
type BrokerConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Queue    string
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Environment  string // "development", "staging", "production"
	BaseURL      string // Base URL for generating short links, e.g. https://behzod.uk
	SlugRetries  int    // Attempts at reserving a random slug
	VisitSink    string // "db" or "amqp"
	VisitLimit   int    // Max visits returned by the analytics endpoint
	OTLPEndpoint string // Trace export endpoint; empty disables export
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "shortlink"),
			Password: getEnv("DB_PASSWORD", "shortlink_secret"),
			DBName:   getEnv("DB_NAME", "shortlink"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Cache: CacheConfig{
			Host:     getEnv("RDB_HOST", "localhost"),
			Port:     getEnv("RDB_PORT", "6379"),
			User:     getEnv("RDB_USER", ""),
			Password: getEnv("RDB_PASSWORD", ""),
			TTL:      getEnvDuration("CACHE_TTL", 5*time.Minute),
		},
		Broker: BrokerConfig{
			Host:     getEnv("AMQP_HOST", "localhost"),
			Port:     getEnv("AMQP_PORT", "5672"),
			User:     getEnv("AMQP_USER", "guest"),
			Password: getEnv("AMQP_PASSWORD", "guest"),
			Queue:    getEnv("VISIT_QUEUE", "shortlink.visits"),
		},
		App: AppConfig{
			Environment:  getEnv("ENVIRONMENT", "development"),
			BaseURL:      getEnv("BASE_URL", "http://localhost:8080"),
			SlugRetries:  getEnvInt("SLUG_MAX_RETRIES", 5),
			VisitSink:    getEnv("VISIT_SINK", VisitSinkDB),
			VisitLimit:   getEnvInt("VISIT_LIST_LIMIT", 100),
			OTLPEndpoint: getEnv("OTLP_ENDPOINT", ""),
		},
	}

	if cfg.App.VisitSink != VisitSinkDB && cfg.App.VisitSink != VisitSinkAMQP {
		return nil, fmt.Errorf("invalid VISIT_SINK %q: must be %q or %q", cfg.App.VisitSink, VisitSinkDB, VisitSinkAMQP)
	}

	return cfg, nil
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

// ConnectionString returns the Redis connection string
func (c *CacheConfig) ConnectionString() string {
	return fmt.Sprintf("redis://%s:%s@%s:%s/0", c.User, c.Password, c.Host, c.Port)
}

// ConnectionString returns the AMQP connection string
func (b *BrokerConfig) ConnectionString() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/", b.User, b.Password, b.Host, b.Port)
}

func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
