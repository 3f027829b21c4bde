package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all process-level configuration for leadscore
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
//
// Pipeline semantics (windows, cadence, columns) live in the YAML pipeline
// config, see internal/pipelineconfig. PipelineConfigPath points at it.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Pipeline
	PipelineConfigPath string
	OutputDir          string
	OutputKeepRuns     int
	Source             SourceConfig

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// API
	API APIConfig

	// Scoring collaborator
	Scoring ScoringConfig

	// Scheduler
	ScheduleSpec string

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// SourceConfig locates the raw input tables.
// Kind "csv" reads the *CSV paths, "postgres" reads the *Table names.
type SourceConfig struct {
	Kind string

	PayingCSV    string
	NonPayingCSV string
	UsageCSV     string

	PayingTable    string
	NonPayingTable string
	UsageTable     string
}

// ScoringConfig locates the external model-training collaborator
type ScoringConfig struct {
	URL       string
	Timeout   time.Duration
	BatchSize int
	RateLimit float64 // requests per second, shared across replicas via Redis
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
	TTL      time.Duration
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL    string
	Schema string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// APIConfig holds HTTP boundary settings
type APIConfig struct {
	RateLimit float64 // requests per second
	RateBurst int
	MaxRows   int
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		PipelineConfigPath: getEnv("PIPELINE_CONFIG", "config/pipeline.yaml"),
		OutputDir:          getEnv("OUTPUT_DIR", "output"),
		OutputKeepRuns:     getEnvAsInt("OUTPUT_KEEP_RUNS", 12),
		Source: SourceConfig{
			Kind:           getEnv("SOURCE_KIND", "csv"),
			PayingCSV:      getEnv("SOURCE_PAYING_CSV", "data/paying.csv"),
			NonPayingCSV:   getEnv("SOURCE_NON_PAYING_CSV", "data/non_paying.csv"),
			UsageCSV:       getEnv("SOURCE_USAGE_CSV", "data/usage.csv"),
			PayingTable:    getEnv("SOURCE_PAYING_TABLE", "paying_entities"),
			NonPayingTable: getEnv("SOURCE_NON_PAYING_TABLE", "non_paying_entities"),
			UsageTable:     getEnv("SOURCE_USAGE_TABLE", "usage_events"),
		},

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			Schema:          getEnv("DB_SCHEMA", "leadscore"),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			TTL:      getEnvAsDuration("REDIS_TTL", "168h"),
		},

		API: APIConfig{
			RateLimit: getEnvAsFloat("API_RATE_LIMIT", 20),
			RateBurst: getEnvAsInt("API_RATE_BURST", 40),
			MaxRows:   getEnvAsInt("API_MAX_ROWS", 5000),
		},

		Scoring: ScoringConfig{
			URL:       getEnv("SCORING_URL", ""),
			Timeout:   getEnvAsDuration("SCORING_TIMEOUT", "30s"),
			BatchSize: getEnvAsInt("SCORING_BATCH_SIZE", 1000),
			RateLimit: getEnvAsFloat("SCORING_RATE_LIMIT", 5),
		},

		// 매주 일요일 03:00 (seconds field enabled)
		ScheduleSpec: getEnv("SCHEDULE_SPEC", "0 0 3 * * 0"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if configuration values are coherent.
// DATABASE_URL is optional: CSV-only runs never touch Postgres.
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.PipelineConfigPath == "" {
		return fmt.Errorf("PIPELINE_CONFIG is required")
	}

	if c.Source.Kind != "csv" && c.Source.Kind != "postgres" {
		return fmt.Errorf("SOURCE_KIND must be one of: csv, postgres")
	}

	if c.OutputKeepRuns < 1 {
		return fmt.Errorf("OUTPUT_KEEP_RUNS must be >= 1")
	}

	if c.Scoring.BatchSize <= 0 || c.Scoring.RateLimit <= 0 {
		return fmt.Errorf("SCORING_BATCH_SIZE and SCORING_RATE_LIMIT must be > 0")
	}

	if c.API.RateLimit <= 0 || c.API.RateBurst <= 0 {
		return fmt.Errorf("API_RATE_LIMIT and API_RATE_BURST must be > 0")
	}

	return nil
}

// RequireDatabase reports an error when a command needs Postgres but
// DATABASE_URL is not set.
func (c *Config) RequireDatabase() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required for this command")
	}
	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
