package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
)

type Config struct {
	Port       int
	LogLevel   string
	Store      StoreConfig
	Classifier ClassifierConfig
	Upload     UploadConfig
	Limits     LimitsConfig
	Server     ServerConfig
}

type StoreConfig struct {
	Driver          string
	MongoURI        string
	MongoDatabase   string
	MongoCollection string
	PostgresURL     string
}

type ClassifierConfig struct {
	URL     string
	Timeout time.Duration
}

type UploadConfig struct {
	Dir      string
	MaxBytes int64
}

type LimitsConfig struct {
	MaxResults  int
	MaxPageSize int
}

type ServerConfig struct {
	RateLimit       float64
	RateLimitBurst  int
	AllowedOrigins  []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Load reads the optional .env file, then builds the configuration from the
// environment, applying defaults for anything unset or unparsable.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:     getEnvInt("PORT", 5000),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Store: StoreConfig{
			Driver:          strings.ToLower(getEnv("STORE_DRIVER", DriverMongo)),
			MongoURI:        getEnv("MONGO_URI", ""),
			MongoDatabase:   getEnv("MONGO_DATABASE", "test"),
			MongoCollection: getEnv("MONGO_COLLECTION", "restaurants"),
			PostgresURL:     getEnv("DATABASE_URL", ""),
		},
		Classifier: ClassifierConfig{
			URL:     getEnv("CLASSIFIER_URL", "http://localhost:8000/classify-image/"),
			Timeout: getEnvDuration("CLASSIFIER_TIMEOUT", 30*time.Second),
		},
		Upload: UploadConfig{
			Dir:      getEnv("UPLOAD_DIR", "uploads"),
			MaxBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 10<<20)),
		},
		Limits: LimitsConfig{
			MaxResults:  getEnvInt("MAX_RESULTS", 500),
			MaxPageSize: getEnvInt("MAX_PAGE_SIZE", 100),
		},
		Server: ServerConfig{
			RateLimit:       getEnvFloat("RATE_LIMIT", 100),
			RateLimitBurst:  getEnvInt("RATE_LIMIT_BURST", 200),
			AllowedOrigins:  splitList(getEnv("ALLOWED_ORIGINS", "*")),
			ReadTimeout:     getEnvDuration("READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvDuration("WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:     getEnvDuration("IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
	}

	if err := cfg.Store.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the selected store driver has a connection string.
func (s StoreConfig) Validate() error {
	switch s.Driver {
	case DriverMongo:
		if s.MongoURI == "" {
			return fmt.Errorf("MONGO_URI environment variable not set")
		}
	case DriverPostgres:
		if s.PostgresURL == "" {
			return fmt.Errorf("DATABASE_URL environment variable not set")
		}
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q (want %q or %q)", s.Driver, DriverMongo, DriverPostgres)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	f, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil || f <= 0 {
		return def
	}
	return f
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
