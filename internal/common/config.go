package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Storage  StorageConfig
	OCR      OCRConfig
	LLM      LLMConfig
	Upload   UploadConfig
	Fields   FieldsConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr         string
	StaticDir    string
	CORSOrigins  []string
	UploadWorker int // max concurrent documents per upload batch
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string // "postgres" | "sqlite"
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// StorageConfig holds blob storage configuration
type StorageConfig struct {
	Provider        string // "gcs" | "local"
	Bucket          string
	CredentialsFile string
	LocalDir        string
	PublicBaseURL   string
}

// OCRConfig holds the remote OCR service configuration
type OCRConfig struct {
	Endpoint     string
	APIKey       string
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// LLMConfig holds language-model configuration
type LLMConfig struct {
	BaseURL         string
	APIKey          string
	Model           string
	Temperature     float32
	MaxTokens       int
	MaxContextChars int
	Timeout         time.Duration
}

// UploadConfig holds upload validation configuration
type UploadConfig struct {
	MaxSizeBytes      int64
	MaxImageDimension int
}

// FieldsConfig holds heuristic field extraction configuration
type FieldsConfig struct {
	BoilerplateTokens []string // empty -> package defaults
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         getEnv("HTTP_ADDR", ":8080"),
			StaticDir:    getEnv("STATIC_DIR", "./static"),
			CORSOrigins:  getEnvAsList("CORS_ORIGINS", []string{"*"}),
			UploadWorker: getEnvAsInt("UPLOAD_WORKERS", 4),
		},
		Database: DatabaseConfig{
			Driver:           getEnv("DB_DRIVER", "postgres"),
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Storage: StorageConfig{
			Provider:        getEnv("STORAGE_PROVIDER", "gcs"),
			Bucket:          getEnv("STORAGE_BUCKET", ""),
			CredentialsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
			LocalDir:        getEnv("STORAGE_LOCAL_DIR", "./data/blobs"),
			PublicBaseURL:   getEnv("STORAGE_PUBLIC_BASE_URL", ""),
		},
		OCR: OCRConfig{
			Endpoint:     getEnv("OCR_ENDPOINT", ""),
			APIKey:       getEnv("OCR_API_KEY", ""),
			PollInterval: getEnvAsDuration("OCR_POLL_INTERVAL", 1200*time.Millisecond),
			PollTimeout:  getEnvAsDuration("OCR_POLL_TIMEOUT", 25*time.Second),
		},
		LLM: LLMConfig{
			BaseURL:         getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
			APIKey:          getEnv("LLM_API_KEY", ""),
			Model:           getEnv("LLM_MODEL", "gpt-4o-mini"),
			Temperature:     getEnvAsFloat32("LLM_TEMPERATURE", 0.0),
			MaxTokens:       getEnvAsInt("LLM_MAX_TOKENS", 512),
			MaxContextChars: getEnvAsInt("LLM_MAX_CONTEXT_CHARS", 12000),
			Timeout:         getEnvAsDuration("LLM_TIMEOUT", 45*time.Second),
		},
		Upload: UploadConfig{
			MaxSizeBytes:      getEnvAsInt64("UPLOAD_MAX_SIZE_BYTES", 10<<20),
			MaxImageDimension: getEnvAsInt("UPLOAD_MAX_IMAGE_DIM", 2400),
		},
		Fields: FieldsConfig{
			BoilerplateTokens: getEnvAsList("FIELDS_BOILERPLATE_TOKENS", nil),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Server.Addr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Storage.Provider == "gcs" && c.Storage.Bucket == "" {
		return NewAppError("CONFIG_ERROR", "STORAGE_BUCKET is required for gcs storage", ErrInvalidInput)
	}
	return nil
}
