// Package config loads process configuration from an optional YAML file, a .env file
// and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	BackendDisk       = "disk"
	BackendCloudinary = "cloudinary"
)

type Config struct {
	Port        string `yaml:"port"`
	DatabaseURL string `yaml:"database_url"`

	JWTSecret     string        `yaml:"jwt_secret"`
	JWTExpiration time.Duration `yaml:"jwt_expiration"`

	ImageBackend        string        `yaml:"image_backend"`
	ImageTimeout        time.Duration `yaml:"image_timeout"`
	CloudinaryCloudName string        `yaml:"cloudinary_cloud_name"`
	CloudinaryAPIKey    string        `yaml:"cloudinary_api_key"`
	CloudinaryAPISecret string        `yaml:"cloudinary_api_secret"`
	CloudinaryFolder    string        `yaml:"cloudinary_folder"`
	UploadDir           string        `yaml:"upload_dir"`
	PublicBaseURL       string        `yaml:"public_base_url"`

	RabbitMQURL          string        `yaml:"rabbitmq_url"`
	ReleaseQueue         string        `yaml:"release_queue"`
	ChannelPoolSize      int           `yaml:"channel_pool_size"`
	JanitorWorkers       int           `yaml:"janitor_workers"`
	JanitorMaxAttempts   int           `yaml:"janitor_max_attempts"`
	// JanitorRetryDelay doubles per attempt up to JanitorMaxRetryDelay.
	JanitorRetryDelay    time.Duration `yaml:"janitor_retry_delay"`
	JanitorMaxRetryDelay time.Duration `yaml:"janitor_max_retry_delay"`

	SeedCatalog bool   `yaml:"seed_catalog"`
	CORSOrigin  string `yaml:"cors_origin"`
}

func defaults() Config {
	return Config{
		Port:                 "8080",
		JWTExpiration:        time.Hour,
		ImageBackend:         BackendDisk,
		ImageTimeout:         5 * time.Second,
		CloudinaryFolder:     "products",
		UploadDir:            "uploads",
		PublicBaseURL:        "http://localhost:8080",
		ReleaseQueue:         "image_release",
		ChannelPoolSize:      4,
		JanitorWorkers:       2,
		JanitorMaxAttempts:   5,
		JanitorRetryDelay:    2 * time.Second,
		JanitorMaxRetryDelay: time.Minute,
		SeedCatalog:          true,
		CORSOrigin:           "*",
	}
}

// Load builds the configuration. path names an optional YAML file; pass "" to skip it.
// Variables from .env never override ones already set in the environment.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.JWTExpiration = getEnvAsDuration("JWT_EXPIRATION", cfg.JWTExpiration)
	cfg.ImageBackend = strings.ToLower(getEnv("IMAGE_BACKEND", cfg.ImageBackend))
	cfg.ImageTimeout = getEnvAsDuration("IMAGE_TIMEOUT", cfg.ImageTimeout)
	cfg.CloudinaryCloudName = getEnv("CLOUDINARY_CLOUD_NAME", cfg.CloudinaryCloudName)
	cfg.CloudinaryAPIKey = getEnv("CLOUDINARY_API_KEY", cfg.CloudinaryAPIKey)
	cfg.CloudinaryAPISecret = getEnv("CLOUDINARY_API_SECRET", cfg.CloudinaryAPISecret)
	cfg.CloudinaryFolder = getEnv("CLOUDINARY_FOLDER", cfg.CloudinaryFolder)
	cfg.UploadDir = getEnv("UPLOAD_DIR", cfg.UploadDir)
	cfg.PublicBaseURL = getEnv("PUBLIC_BASE_URL", cfg.PublicBaseURL)
	cfg.RabbitMQURL = getEnv("RABBITMQ_URL", cfg.RabbitMQURL)
	cfg.ReleaseQueue = getEnv("RELEASE_QUEUE", cfg.ReleaseQueue)
	cfg.ChannelPoolSize = getEnvAsInt("CHANNEL_POOL_SIZE", cfg.ChannelPoolSize)
	cfg.JanitorWorkers = getEnvAsInt("JANITOR_WORKERS", cfg.JanitorWorkers)
	cfg.JanitorMaxAttempts = getEnvAsInt("JANITOR_MAX_ATTEMPTS", cfg.JanitorMaxAttempts)
	cfg.JanitorRetryDelay = getEnvAsDuration("JANITOR_RETRY_DELAY", cfg.JanitorRetryDelay)
	cfg.JanitorMaxRetryDelay = getEnvAsDuration("JANITOR_MAX_RETRY_DELAY", cfg.JanitorMaxRetryDelay)
	cfg.SeedCatalog = getEnvAsBool("SEED_CATALOG", cfg.SeedCatalog)
	cfg.CORSOrigin = getEnv("CORS_ORIGIN", cfg.CORSOrigin)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first missing or inconsistent setting.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	switch c.ImageBackend {
	case BackendDisk:
		if c.UploadDir == "" {
			return errors.New("UPLOAD_DIR is required for the disk image backend")
		}
	case BackendCloudinary:
		if c.CloudinaryCloudName == "" || c.CloudinaryAPIKey == "" || c.CloudinaryAPISecret == "" {
			return errors.New("cloudinary image backend needs CLOUDINARY_CLOUD_NAME, CLOUDINARY_API_KEY and CLOUDINARY_API_SECRET")
		}
	default:
		return fmt.Errorf("unknown IMAGE_BACKEND %q", c.ImageBackend)
	}
	if c.ImageTimeout <= 0 {
		return errors.New("IMAGE_TIMEOUT must be positive")
	}
	if c.JanitorMaxAttempts < 1 {
		return errors.New("JANITOR_MAX_ATTEMPTS must be at least 1")
	}
	if c.JanitorRetryDelay < 0 || c.JanitorMaxRetryDelay < 0 {
		return errors.New("janitor retry delays must not be negative")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}
