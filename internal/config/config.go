package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendNATS     = "nats"
	BackendLocal    = "local"
	BackendMinIO    = "minio"
)

// Config holds all configuration for the ImagePipe server.
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Database DatabaseConfig
	Queue    QueueConfig
	Artifact ArtifactConfig
	Redis    RedisConfig
	Worker   WorkerConfig
}

type ServerConfig struct {
	Port           int
	Env            string
	MaxUploadMB    int64
	RequestsPerMin int
}

type StoreConfig struct {
	Backend string
}

type DatabaseConfig struct {
	URL             string
	MigrationsDir   string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type QueueConfig struct {
	Backend string
	Size    int
	NATSURL string
	Subject string
}

type ArtifactConfig struct {
	Backend string
	DataDir string

	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOUseSSL    bool
	MinIOBucket    string
}

type RedisConfig struct {
	URL string
}

type WorkerConfig struct {
	Count int
}

// Load reads configuration from environment variables and returns a validated
// Config. Returns an error with a descriptive message if any required value
// is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           envInt("IMAGEPIPE_PORT", 8080),
			Env:            envString("IMAGEPIPE_ENV", "development"),
			MaxUploadMB:    int64(envInt("IMAGEPIPE_MAX_UPLOAD_MB", 64)),
			RequestsPerMin: envInt("IMAGEPIPE_REQUESTS_PER_MIN", 60),
		},
		Store: StoreConfig{
			Backend: envString("STORE_BACKEND", BackendMemory),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MigrationsDir:   envString("DATABASE_MIGRATIONS_DIR", "migrations"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Queue: QueueConfig{
			Backend: envString("QUEUE_BACKEND", BackendMemory),
			Size:    envInt("IMAGEPIPE_QUEUE_SIZE", 256),
			NATSURL: os.Getenv("NATS_URL"),
			Subject: envString("NATS_SUBJECT", "imagepipe.tasks"),
		},
		Artifact: ArtifactConfig{
			Backend:        envString("ARTIFACT_BACKEND", BackendLocal),
			DataDir:        envString("IMAGEPIPE_DATA_DIR", "uploads"),
			MinIOEndpoint:  os.Getenv("MINIO_ENDPOINT"),
			MinIOAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			MinIOSecretKey: os.Getenv("MINIO_SECRET_KEY"),
			MinIOUseSSL:    envBool("MINIO_USE_SSL", false),
			MinIOBucket:    envString("MINIO_BUCKET", "imagepipe"),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Worker: WorkerConfig{
			Count: envInt("IMAGEPIPE_WORKERS", 4),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND is postgres")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be memory or postgres; got %q", c.Store.Backend)
	}

	switch c.Queue.Backend {
	case BackendMemory:
	case BackendNATS:
		if c.Queue.NATSURL == "" {
			return fmt.Errorf("NATS_URL is required when QUEUE_BACKEND is nats")
		}
	default:
		return fmt.Errorf("QUEUE_BACKEND must be memory or nats; got %q", c.Queue.Backend)
	}

	switch c.Artifact.Backend {
	case BackendLocal:
		if c.Artifact.DataDir == "" {
			return fmt.Errorf("IMAGEPIPE_DATA_DIR is required when ARTIFACT_BACKEND is local")
		}
	case BackendMinIO:
		if c.Artifact.MinIOEndpoint == "" {
			return fmt.Errorf("MINIO_ENDPOINT is required when ARTIFACT_BACKEND is minio")
		}
		if c.Artifact.MinIOAccessKey == "" || c.Artifact.MinIOSecretKey == "" {
			return fmt.Errorf("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required when ARTIFACT_BACKEND is minio")
		}
	default:
		return fmt.Errorf("ARTIFACT_BACKEND must be local or minio; got %q", c.Artifact.Backend)
	}

	if c.Worker.Count <= 0 {
		return fmt.Errorf("IMAGEPIPE_WORKERS must be positive; got %d", c.Worker.Count)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("IMAGEPIPE_MAX_UPLOAD_MB must be positive; got %d", c.Server.MaxUploadMB)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
