package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Server captures process level configuration for the API and the CLI.
type Server struct {
	Addr           string
	DatabaseURL    string
	Redis          RedisConfig
	Kafka          KafkaConfig
	Log            LogConfig
	IngestWorkers  int
	RequestTimeout time.Duration
	MaxUploadBytes int64
}

// RedisConfig configures the revalidation cache client. An empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	KeyPrefix    string
	Channel      string
	ViewTTL      time.Duration
}

// KafkaConfig configures the invalidation event producer. No brokers disables Kafka.
type KafkaConfig struct {
	Brokers         []string
	RevalidateTopic string
	ClientID        string
}

type LogConfig struct {
	Level  string
	Format string
}

// LoadDotEnv pre-loads variables from .env style files. Missing files are
// ignored; variables already set in the environment win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	cfg := Server{
		Addr:        getenv("SITECARBON_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:       os.Getenv("REDIS_URL"),
			KeyPrefix: getenv("REDIS_KEY_PREFIX", "sitecarbon:view:"),
			Channel:   getenv("REDIS_REVALIDATE_CHANNEL", "sitecarbon:revalidate"),
		},
		Kafka: KafkaConfig{
			Brokers:         splitList(os.Getenv("KAFKA_BROKERS")),
			RevalidateTopic: getenv("KAFKA_REVALIDATE_TOPIC", "sitecarbon.revalidate"),
			ClientID:        getenv("KAFKA_CLIENT_ID", "sitecarbon"),
		},
		Log: LogConfig{
			Level:  getenv("LOG_LEVEL", "info"),
			Format: getenv("LOG_FORMAT", "json"),
		},
	}

	var err error
	if cfg.Redis.PoolSize, err = intEnv("REDIS_POOL_SIZE", 10); err != nil {
		return Server{}, err
	}
	if cfg.Redis.MinIdleConns, err = intEnv("REDIS_MIN_IDLE_CONNS", 2); err != nil {
		return Server{}, err
	}
	if cfg.Redis.DialTimeout, err = durationEnv("REDIS_DIAL_TIMEOUT", 5*time.Second); err != nil {
		return Server{}, err
	}
	if cfg.Redis.ReadTimeout, err = durationEnv("REDIS_READ_TIMEOUT", 3*time.Second); err != nil {
		return Server{}, err
	}
	if cfg.Redis.WriteTimeout, err = durationEnv("REDIS_WRITE_TIMEOUT", 3*time.Second); err != nil {
		return Server{}, err
	}
	if cfg.Redis.ViewTTL, err = durationEnv("REDIS_VIEW_TTL", 5*time.Minute); err != nil {
		return Server{}, err
	}
	if cfg.IngestWorkers, err = intEnv("INGEST_WORKERS", 8); err != nil {
		return Server{}, err
	}
	if cfg.RequestTimeout, err = durationEnv("REQUEST_TIMEOUT", 30*time.Second); err != nil {
		return Server{}, err
	}
	maxUpload, err := intEnv("MAX_UPLOAD_BYTES", 10<<20)
	if err != nil {
		return Server{}, err
	}
	cfg.MaxUploadBytes = int64(maxUpload)

	if cfg.IngestWorkers < 1 {
		return Server{}, fmt.Errorf("INGEST_WORKERS must be at least 1, got %d", cfg.IngestWorkers)
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, v)
	}
	return n, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
