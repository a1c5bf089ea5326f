package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	Adapters   AdapterConfig
	Queue      QueueConfig
	Thresholds Thresholds
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string
	HTTPAddr string
}

// AdapterConfig holds endpoints and timeouts for the external recognition,
// parsing and matching services, plus the image store root.
type AdapterConfig struct {
	RecognitionURL string
	ParsingURL     string
	MatchingURL    string
	HTTPTimeout    time.Duration
	ImageRoot      string
}

// QueueConfig holds worker pool configuration.
type QueueConfig struct {
	Workers        int
	Size           int
	ProcessTimeout time.Duration
}

// Thresholds exposes the pipeline's review and validation knobs as
// configuration. Defaults match observed production behavior; whether they
// become tenant-configurable is an open product question.
type Thresholds struct {
	ReviewConfidence  float64 // below this, a completed job still goes to review
	ValidationFloor   float64 // below this, validation demands review
	MismatchTolerance float64 // line-sum vs declared total, as a fraction
	TotalCeiling      int64   // minor currency units
	MaxLineItems      int
	ReasonableWindow  time.Duration // how far back a receipt date is still plausible
	MaxRetries        int
	RetrySchedule     []time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			GRPCAddr: getEnv("GRPC_ADDR", ":8080"),
			HTTPAddr: getEnv("HTTP_ADDR", ":8081"),
		},
		Adapters: AdapterConfig{
			RecognitionURL: getEnv("RECOGNITION_URL", ""),
			ParsingURL:     getEnv("PARSING_URL", ""),
			MatchingURL:    getEnv("MATCHING_URL", ""),
			HTTPTimeout:    getEnvAsDuration("ADAPTER_TIMEOUT", 45*time.Second),
			ImageRoot:      getEnv("IMAGE_ROOT", "./images"),
		},
		Queue: QueueConfig{
			Workers:        getEnvAsInt("QUEUE_WORKERS", 4),
			Size:           getEnvAsInt("QUEUE_SIZE", 256),
			ProcessTimeout: getEnvAsDuration("QUEUE_PROCESS_TIMEOUT", 3*time.Minute),
		},
		Thresholds: DefaultThresholds(),
	}
}

// DefaultThresholds returns the stock review/validation knobs, with env
// overrides applied.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ReviewConfidence:  getEnvAsFloat64("REVIEW_CONFIDENCE_THRESHOLD", 0.70),
		ValidationFloor:   getEnvAsFloat64("VALIDATION_CONFIDENCE_FLOOR", 0.60),
		MismatchTolerance: getEnvAsFloat64("TOTAL_MISMATCH_TOLERANCE", 0.10),
		TotalCeiling:      getEnvAsInt64("TOTAL_CEILING_MINOR_UNITS", 1_000_000),
		MaxLineItems:      getEnvAsInt("MAX_LINE_ITEMS", 100),
		ReasonableWindow:  getEnvAsDuration("REASONABLE_DATE_WINDOW", 6*30*24*time.Hour),
		MaxRetries:        getEnvAsInt("MAX_RETRY_COUNT", 3),
		RetrySchedule:     []time.Duration{1 * time.Second, 5 * time.Second, 15 * time.Second},
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

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
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

// ValidateConfig validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Adapters.RecognitionURL == "" {
		return NewAppError("CONFIG_ERROR", "RECOGNITION_URL is required", ErrInvalidInput)
	}
	if c.Adapters.ParsingURL == "" {
		return NewAppError("CONFIG_ERROR", "PARSING_URL is required", ErrInvalidInput)
	}
	if c.Adapters.MatchingURL == "" {
		return NewAppError("CONFIG_ERROR", "MATCHING_URL is required", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" {
		return NewAppError("CONFIG_ERROR", "GRPC_ADDR is required", ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	return nil
}
