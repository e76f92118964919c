package common

import (
	"os"
	"strconv"
	"time"

	"github.com/aurelmarchand/medidocs/constants"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Mistral  MistralConfig
	Pipeline PipelineConfig
	Template TemplateConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// MistralConfig holds model-client configuration
type MistralConfig struct {
	APIKey      string
	BaseURL     string
	OCRModel    string
	TextModel   string
	Temperature float32
	TopP        float32
	Timeout     time.Duration
	// RequestsPerSecond caps the raw HTTP request rate to the provider.
	// 0 disables the cap (the gateway's semaphore and inter-call delay
	// already bound effective throughput).
	RequestsPerSecond float64
}

// PipelineConfig holds model-gateway and page-pipeline configuration
type PipelineConfig struct {
	MaxConcurrent int
	CallDelay     time.Duration
	MaxAttempts   int
	BackoffBase   time.Duration
	BackoffCap    time.Duration
	BackoffJitter float64
	RenderZoom    float64
	OCRPrompt     string
	StoreImages   bool
}

// TemplateConfig locates the summary field template.
type TemplateConfig struct {
	Path    string
	Version string
}

// DefaultOCRPrompt asks for a literal transcription of one page image.
// The %d is replaced with the page number.
const DefaultOCRPrompt = "Extract all text from this image of page %d. Return only the extracted text, no additional commentary."

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:             getEnv("DB_URL", ""),
			MaxConns:        getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:        getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		Mistral: MistralConfig{
			APIKey:            getEnv("MISTRAL_API_KEY", ""),
			BaseURL:           getEnv("MISTRAL_BASE_URL", "https://api.mistral.ai/v1"),
			OCRModel:          getEnv("MISTRAL_OCR_MODEL", "pixtral-large-latest"),
			TextModel:         getEnv("MISTRAL_TEXT_MODEL", "mistral-large-latest"),
			Temperature:       getEnvAsFloat32("MISTRAL_TEMPERATURE", 0.1),
			TopP:              getEnvAsFloat32("MISTRAL_TOP_P", 0.1),
			Timeout:           getEnvAsDuration("MISTRAL_TIMEOUT", 120*time.Second),
			RequestsPerSecond: getEnvAsFloat64("MISTRAL_RPS", 0),
		},
		Pipeline: PipelineConfig{
			MaxConcurrent: getEnvAsInt("PIPELINE_MAX_CONCURRENT", 2),
			CallDelay:     getEnvAsDuration("PIPELINE_CALL_DELAY", time.Second),
			MaxAttempts:   getEnvAsInt("PIPELINE_MAX_ATTEMPTS", 4),
			BackoffBase:   getEnvAsDuration("PIPELINE_BACKOFF_BASE", 2*time.Second),
			BackoffCap:    getEnvAsDuration("PIPELINE_BACKOFF_CAP", 60*time.Second),
			BackoffJitter: getEnvAsFloat64("PIPELINE_BACKOFF_JITTER", 0.1),
			RenderZoom:    getEnvAsFloat64("RENDER_ZOOM", 2),
			OCRPrompt:     getEnv("OCR_PROMPT", DefaultOCRPrompt),
			StoreImages:   getEnvAsBool("STORE_PAGE_IMAGES", true),
		},
		Template: TemplateConfig{
			Path:    getEnv("TEMPLATE_PATH", "templates/fields.yaml"),
			Version: getEnv("TEMPLATE_VERSION", constants.DefaultTemplateVersion),
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

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
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

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Mistral.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "MISTRAL_API_KEY is required", ErrInvalidInput)
	}
	if c.Pipeline.MaxConcurrent < 1 {
		return NewAppError("CONFIG_ERROR", "PIPELINE_MAX_CONCURRENT must be >= 1", ErrInvalidInput)
	}
	return nil
}
