package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// All environment variables are read here and nowhere else.
type Config struct {
	// Environment
	Env string // development, staging, production

	// Paths
	DataDir       string // per-symbol daily series files
	OutputDir     string // result snapshots
	WatchlistFile string // watchlist JSON

	// Subsystems
	Upstream UpstreamConfig
	Sync     SyncConfig
	Analyze  AnalyzeConfig
	LLM      LLMConfig

	// API server
	Port string

	// Logging
	LogLevel  string
	LogFormat string
}

// UpstreamConfig holds the market-data source configuration.
type UpstreamConfig struct {
	BaseURL   string
	ProxyURL  string // optional; empty means no proxied transport available
	Timeout   time.Duration
	RateLimit float64 // requests per second per client
}

// SyncConfig holds the synchronization engine tuning knobs.
type SyncConfig struct {
	DefaultStartDate string // first-time fetch window start, YYYY-MM-DD
	DataReadyHour    int    // hour after which today's close is published
	MaxAttempts      int    // retry rounds
	AbortThreshold   int    // consecutive failures before the run aborts
	ChunkSize        int    // tasks per worker chunk
	Workers          int    // concurrent chunk workers
	RetryPause       time.Duration
}

// AnalyzeConfig holds the feature/backtest engine tuning knobs.
type AnalyzeConfig struct {
	Workers int
}

// LLMConfig holds the advisory endpoint configuration.
type LLMConfig struct {
	APIURL     string
	APIKey     string
	Model      string
	BatchSize  int
	MaxThreads int
	Timeout    time.Duration
}

// Load reads configuration from environment variables.
// Only this function calls os.Getenv().
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Env: getEnv("ENV", "development"),

		DataDir:       getEnv("DATA_DIR", "data/daily"),
		OutputDir:     getEnv("OUTPUT_DIR", "output"),
		WatchlistFile: getEnv("WATCHLIST_FILE", "watchlist.json"),

		Upstream: UpstreamConfig{
			BaseURL:   getEnv("UPSTREAM_BASE_URL", "http://www.baostock.com/api/v1"),
			ProxyURL:  getEnv("PROXY_URL", ""),
			Timeout:   getEnvAsDuration("UPSTREAM_TIMEOUT", "30s"),
			RateLimit: getEnvAsFloat("UPSTREAM_RATE_LIMIT", 10),
		},

		Sync: SyncConfig{
			DefaultStartDate: getEnv("DEFAULT_START_DATE", "2023-01-01"),
			DataReadyHour:    getEnvAsInt("DATA_READY_HOUR", 17),
			MaxAttempts:      getEnvAsInt("MAX_ATTEMPTS", 7),
			AbortThreshold:   getEnvAsInt("ABORT_THRESHOLD", 50),
			ChunkSize:        getEnvAsInt("SYNC_CHUNK_SIZE", 20),
			Workers:          getEnvAsInt("SYNC_WORKERS", defaultWorkers()),
			RetryPause:       getEnvAsDuration("SYNC_RETRY_PAUSE", "3s"),
		},

		Analyze: AnalyzeConfig{
			Workers: getEnvAsInt("ANALYZE_WORKERS", defaultWorkers()),
		},

		LLM: LLMConfig{
			APIURL:     getEnv("LLM_API_URL", "https://api.siliconflow.cn/v1/chat/completions"),
			APIKey:     getEnv("LLM_API_KEY", ""),
			Model:      getEnv("LLM_MODEL", "deepseek-ai/DeepSeek-V3"),
			BatchSize:  getEnvAsInt("LLM_BATCH_SIZE", 10),
			MaxThreads: getEnvAsInt("LLM_MAX_THREADS", 3),
			Timeout:    getEnvAsDuration("LLM_TIMEOUT", "120s"),
		},

		Port: getEnv("PORT", "8087"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set.
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if _, err := time.Parse("2006-01-02", c.Sync.DefaultStartDate); err != nil {
		return fmt.Errorf("DEFAULT_START_DATE must be YYYY-MM-DD: %w", err)
	}

	if c.Sync.DataReadyHour < 0 || c.Sync.DataReadyHour > 23 {
		return fmt.Errorf("DATA_READY_HOUR must be 0-23, got %d", c.Sync.DataReadyHour)
	}

	if c.Sync.MaxAttempts < 1 {
		return fmt.Errorf("MAX_ATTEMPTS must be at least 1, got %d", c.Sync.MaxAttempts)
	}

	if c.Sync.ChunkSize < 1 {
		return fmt.Errorf("SYNC_CHUNK_SIZE must be at least 1, got %d", c.Sync.ChunkSize)
	}

	return nil
}

// EnsureDirs creates the data and output directories if missing.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.DataDir, c.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	return nil
}

// defaultWorkers leaves two cores for the system and the UI.
func defaultWorkers() int {
	n := runtime.NumCPU() - 2
	if n < 2 {
		n = 2
	}
	return n
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env", // Current directory
	}

	// Also try relative to executable
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
