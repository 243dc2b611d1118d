package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ilucas1a/DocAnalyser-beta-sub001/internal/logger"
)

// DefaultProviderOrder is the cloud provider preference when none is
// configured. Gemini first: it accepts raw PDFs and handles handwriting.
const DefaultProviderOrder = "gemini,google-vision,document-ai,openai"

type Config struct {
	// Cloud provider configuration
	OpenAIAPIKey          string
	OpenAIModel           string
	GoogleCloudProject    string
	GoogleCloudLocation   string
	GeminiRegion          string
	GeminiModel           string
	DocumentAIProcessorID string

	// ProviderOrder is the comma-separated cloud provider preference for
	// both per-page escalation (first entry) and direct-document fallback
	// (all document-capable entries, in order).
	ProviderOrder string

	// Extraction configuration
	CacheDir            string
	ConfidenceThreshold float64
	RenderDPI           int
	RetryDPI            int
	FlushEvery          int
	PrescreenTimeout    time.Duration
	Language            string

	// Logging configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

// Load builds configuration from the environment. Every cloud credential is
// optional: a missing credential just removes that provider from the
// chain, it never blocks local extraction.
func Load() (*Config, error) {
	config := &Config{
		OpenAIAPIKey:          getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:           getEnv("OPENAI_MODEL", ""),
		GoogleCloudProject:    getEnv("GOOGLE_PROJECT_ID", getEnv("GOOGLE_CLOUD_PROJECT", "")),
		GoogleCloudLocation:   getEnv("GOOGLE_CLOUD_LOCATION", "us"),
		GeminiRegion:          getEnv("GEMINI_REGION", "us-central1"),
		GeminiModel:           getEnv("GEMINI_MODEL", ""),
		DocumentAIProcessorID: getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
		ProviderOrder:         getEnv("CLOUD_PROVIDER_ORDER", DefaultProviderOrder),
		CacheDir:              getEnv("OCR_CACHE_DIR", defaultCacheDir()),
		ConfidenceThreshold:   getEnvFloat("OCR_CONFIDENCE_THRESHOLD", 60),
		RenderDPI:             getEnvInt("OCR_RENDER_DPI", 300),
		RetryDPI:              getEnvInt("OCR_RETRY_DPI", 150),
		FlushEvery:            getEnvInt("OCR_FLUSH_EVERY", 10),
		PrescreenTimeout:      getEnvDuration("OCR_PRESCREEN_TIMEOUT", 5*time.Second),
		Language:              getEnv("OCR_LANGUAGE", "eng"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:         getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:             getEnv("LOG_OUTPUT", "stderr"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 100 {
		return fmt.Errorf("OCR_CONFIDENCE_THRESHOLD must be between 0 and 100, got %g", c.ConfidenceThreshold)
	}
	if c.RenderDPI < 72 {
		return fmt.Errorf("OCR_RENDER_DPI must be at least 72, got %d", c.RenderDPI)
	}
	if c.RetryDPI != 0 && c.RetryDPI < 72 {
		return fmt.Errorf("OCR_RETRY_DPI must be 0 or at least 72, got %d", c.RetryDPI)
	}
	if c.PrescreenTimeout <= 0 {
		return fmt.Errorf("OCR_PRESCREEN_TIMEOUT must be positive, got %s", c.PrescreenTimeout)
	}
	return nil
}

// Providers returns the configured provider order as a slice.
func (c *Config) Providers() []string {
	var out []string
	for _, p := range strings.Split(c.ProviderOrder, ",") {
		if p = strings.TrimSpace(strings.ToLower(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func defaultCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "docanalyser", "ocr")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
