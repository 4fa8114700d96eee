package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Batch BatchConfig
	State StateConfig
	Paths PathsConfig
	Mail  MailConfig
}

// BatchConfig holds the scheduler and idempotency constants. These are
// externally supplied knobs, not hard rules of the pipeline itself.
type BatchConfig struct {
	Size                int
	Delay               time.Duration
	MaxRetries          int
	TimeCeiling         time.Duration
	IndexFlushThreshold int
	ShiftCutoffHour     int
}

// StateConfig holds the durable run-state store configuration. A
// postgres:// DSN selects the pgx backend, anything else is treated as
// a SQLite path (":memory:" included).
type StateConfig struct {
	DSN         string
	DialTimeout time.Duration
}

// PathsConfig holds the filesystem layout of the pipeline.
type PathsConfig struct {
	InboxDir    string // .eml inbox, optional
	SourceDir   string // .txt/.pdf file store, optional
	DestRoot    string // destination container root
	IndexFile   string // processed-item line log
	LedgerFile  string // XLSX ledger
	LedgerSheet string
	AnchorsFile string // optional YAML anchor overrides
}

// MailConfig holds the inbox filters.
type MailConfig struct {
	SubjectPattern string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Batch: BatchConfig{
			Size:                getEnvAsInt("CT_BATCH_SIZE", 10),
			Delay:               getEnvAsDuration("CT_BATCH_DELAY", time.Minute),
			MaxRetries:          getEnvAsInt("CT_MAX_RETRIES", 3),
			TimeCeiling:         getEnvAsDuration("CT_TIME_CEILING", 4*time.Minute),
			IndexFlushThreshold: getEnvAsInt("CT_INDEX_FLUSH", 20),
			ShiftCutoffHour:     getEnvAsInt("CT_SHIFT_CUTOFF", 16),
		},
		State: StateConfig{
			DSN:         getEnv("CT_STATE_DSN", ""),
			DialTimeout: getEnvAsDuration("CT_STATE_DIAL_TIMEOUT", 3*time.Second),
		},
		Paths: PathsConfig{
			InboxDir:    getEnv("CT_INBOX_DIR", ""),
			SourceDir:   getEnv("CT_SOURCE_DIR", ""),
			DestRoot:    getEnv("CT_DEST_ROOT", ""),
			IndexFile:   getEnv("CT_INDEX_FILE", ""),
			LedgerFile:  getEnv("CT_LEDGER_FILE", ""),
			LedgerSheet: getEnv("CT_LEDGER_SHEET", "Closings"),
			AnchorsFile: getEnv("CT_ANCHORS_FILE", ""),
		},
		Mail: MailConfig{
			SubjectPattern: getEnv("CT_SUBJECT_PATTERN", `(?i)fechamento`),
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Paths.DestRoot == "" {
		return NewAppError("CONFIG_ERROR", "CT_DEST_ROOT is required", ErrInvalidInput)
	}
	if c.Paths.IndexFile == "" {
		return NewAppError("CONFIG_ERROR", "CT_INDEX_FILE is required", ErrInvalidInput)
	}
	if c.Paths.InboxDir == "" && c.Paths.SourceDir == "" {
		return NewAppError("CONFIG_ERROR", "at least one of CT_INBOX_DIR or CT_SOURCE_DIR is required", ErrInvalidInput)
	}
	if c.Batch.Size <= 0 {
		return NewAppError("CONFIG_ERROR", "CT_BATCH_SIZE must be positive", ErrInvalidInput)
	}
	if c.Batch.ShiftCutoffHour < 0 || c.Batch.ShiftCutoffHour > 23 {
		return NewAppError("CONFIG_ERROR", "CT_SHIFT_CUTOFF must be an hour 0-23", ErrInvalidInput)
	}
	return nil
}
