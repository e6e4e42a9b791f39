package common

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/household-docs/constants"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	OCR      OCRConfig
	LLM      LLMConfig
	Redis    RedisConfig
	Bank     BankConfig
	Receipt  ReceiptConfig
	LogLevel slog.Level
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

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr  string
	HTTPAddr  string
	UploadDir string
}

// OCRConfig holds text extraction configuration
type OCRConfig struct {
	Pdftotext      string
	Pdftoppm       string
	Tesseract      string
	Language       string
	DPI            int
	MaxPages       int
	TessdataDir    string
	HeicConverter  string
	PrimaryEnabled bool
	MinNativeChars int
	Workers        int
}

// LLMConfig holds model structuring configuration
type LLMConfig struct {
	Provider       string // "openai" | "gemini" | "none"
	Model          string
	APIKey         string
	BaseURL        string
	Temperature    float32
	AttemptTimeout time.Duration
	MaxAttempts    int
	Backoff        time.Duration
	Workers        int
}

// RedisConfig enables the extracted-text cache when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// BankConfig holds statement parsing configuration
type BankConfig struct {
	SubscriptionKeywords []string
}

// ReceiptConfig holds extra keyword rules prepended to the built-in table.
type ReceiptConfig struct {
	ExtraKeywords []constants.KeywordRule
}

// keywordFile is the YAML layout of KEYWORDS_FILE.
type keywordFile struct {
	Subscriptions   []string                `yaml:"subscriptions"`
	ReceiptKeywords []constants.KeywordRule `yaml:"receipt_keywords"`
}

// LoadConfig loads configuration from the environment, after merging an
// optional .env file from the working directory.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Driver:           getEnv("DB_DRIVER", "postgres"),
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			GRPCAddr:  getEnv("GRPC_ADDR", ":8080"),
			HTTPAddr:  getEnv("HTTP_ADDR", ":9090"),
			UploadDir: getEnv("LOCAL_UPLOAD_DIR", os.TempDir()),
		},
		OCR: OCRConfig{
			Pdftotext:      getEnv("PDFTOTEXT_BIN", "pdftotext"),
			Pdftoppm:       getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Tesseract:      getEnv("TESSERACT_BIN", "tesseract"),
			Language:       getEnv("OCR_LANG", "eng"),
			DPI:            getEnvAsInt("OCR_DPI", 300),
			MaxPages:       getEnvAsInt("OCR_MAX_PAGES", 0),
			TessdataDir:    getEnv("TESSDATA_PREFIX", ""),
			HeicConverter:  getEnv("HEIC_CONVERTER", "magick"),
			PrimaryEnabled: getEnvAsBool("OCR_PRIMARY_ENABLED", true),
			MinNativeChars: getEnvAsInt("OCR_MIN_NATIVE_CHARS", 50),
			Workers:        getEnvAsInt("OCR_WORKERS", 2),
		},
		LLM: LLMConfig{
			Provider:       strings.ToLower(getEnv("LLM_PROVIDER", "gemini")),
			Model:          getEnv("LLM_MODEL", ""),
			APIKey:         firstNonEmpty(os.Getenv("LLM_API_KEY"), os.Getenv("GEMINI_API_KEY"), os.Getenv("OPENAI_API_KEY")),
			BaseURL:        getEnv("LLM_BASE_URL", ""),
			Temperature:    getEnvAsFloat32("LLM_TEMPERATURE", 0.0),
			AttemptTimeout: getEnvAsDuration("LLM_ATTEMPT_TIMEOUT", 60*time.Second),
			MaxAttempts:    getEnvAsInt("LLM_MAX_ATTEMPTS", 3),
			Backoff:        getEnvAsDuration("LLM_RETRY_BACKOFF", 2*time.Second),
			Workers:        getEnvAsInt("LLM_WORKERS", 2),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			TTL:      getEnvAsDuration("TEXT_CACHE_TTL", 24*time.Hour),
		},
		Bank: BankConfig{
			SubscriptionKeywords: getEnvAsList("SUBSCRIPTION_KEYWORDS"),
		},
		LogLevel: parseLevel(getEnv("LOG_LEVEL", "info")),
	}

	if path := getEnv("KEYWORDS_FILE", ""); path != "" {
		if err := cfg.loadKeywordFile(path); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (c *Config) loadKeywordFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading keywords file: %w", err)
	}
	var kf keywordFile
	if err := yaml.Unmarshal(data, &kf); err != nil {
		return fmt.Errorf("parsing keywords file: %w", err)
	}
	if len(kf.Subscriptions) > 0 {
		c.Bank.SubscriptionKeywords = append(c.Bank.SubscriptionKeywords, kf.Subscriptions...)
	}
	for _, r := range kf.ReceiptKeywords {
		r.Keyword = strings.ToLower(strings.TrimSpace(r.Keyword))
		if r.Keyword == "" || r.Category == "" {
			continue
		}
		c.Receipt.ExtraKeywords = append(c.Receipt.ExtraKeywords, r)
	}
	return nil
}

// ModelEnabled reports whether model structuring should be attempted.
func (c *Config) ModelEnabled() bool {
	return c.LLM.Provider != "none" && c.LLM.Provider != "" && c.LLM.APIKey != ""
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return NewAppError("CONFIG_ERROR", "DB_DRIVER must be postgres or sqlite", ErrInvalidInput)
	}
	switch c.LLM.Provider {
	case "openai", "gemini", "none":
	default:
		return NewAppError("CONFIG_ERROR", "LLM_PROVIDER must be openai, gemini or none", ErrInvalidInput)
	}
	if c.LLM.MaxAttempts < 1 {
		return NewAppError("CONFIG_ERROR", "LLM_MAX_ATTEMPTS must be >= 1", ErrInvalidInput)
	}
	if c.OCR.Workers < 1 || c.LLM.Workers < 1 {
		return NewAppError("CONFIG_ERROR", "worker pools need at least one worker", ErrInvalidInput)
	}
	return nil
}

// RequireDatabase fails when no DB_URL is configured. Only commands that
// persist call it; document processing runs without a store.
func (c *Config) RequireDatabase() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	return nil
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

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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

// getEnvAsList splits a comma separated value, dropping blanks.
func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
