package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	OCR       OCRConfig       `yaml:"ocr"`
	LLM       LLMConfig       `yaml:"llm"`
	Chunk     ChunkConfig     `yaml:"chunk"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Limits    LimitsConfig    `yaml:"limits"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Tesseract     string `yaml:"tesseract"`
	TesseractLang string `yaml:"tesseract_lang"`
	TessdataDir   string `yaml:"tessdata_dir"`
	Pdftotext     string `yaml:"pdftotext"`
	Pdftoppm      string `yaml:"pdftoppm"`
	DPI           int    `yaml:"dpi"`
	MaxPages      int    `yaml:"max_pages"`
}

// LLMConfig holds LLM-related configuration. APIKey is never given a default;
// an empty key disables the model stage.
type LLMConfig struct {
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Temperature float32       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// ChunkConfig sizes the sliding window fed to the model, in characters.
type ChunkConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// ReconcileConfig selects how colliding (form, code) values are merged.
type ReconcileConfig struct {
	MergePolicy string `yaml:"merge_policy"`
}

// LimitsConfig bounds what a single upload can make the process hold in memory or on disk.
type LimitsConfig struct {
	MaxFileBytes      int64 `yaml:"max_file_bytes"`
	MaxUploadBytes    int64 `yaml:"max_upload_bytes"`
	MaxArchiveEntries int   `yaml:"max_archive_entries"`
	MaxArchiveBytes   int64 `yaml:"max_archive_bytes"`
	MaxArchiveDepth   int   `yaml:"max_archive_depth"`
}

// DefaultConfig returns sane defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:        ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		OCR: OCRConfig{
			Enabled:       true,
			Tesseract:     "tesseract",
			TesseractLang: "fra",
			Pdftotext:     "pdftotext",
			Pdftoppm:      "pdftoppm",
			DPI:           300,
			MaxPages:      20,
		},
		LLM: LLMConfig{
			Model:       "gpt-4o-mini",
			BaseURL:     "https://api.openai.com/v1",
			Temperature: 0.0,
			Timeout:     60 * time.Second,
		},
		Chunk: ChunkConfig{
			Size:    3000,
			Overlap: 200,
		},
		Reconcile: ReconcileConfig{
			MergePolicy: "last-write-wins",
		},
		Limits: LimitsConfig{
			MaxFileBytes:      50 << 20,
			MaxUploadBytes:    200 << 20,
			MaxArchiveEntries: 1000,
			MaxArchiveBytes:   500 << 20,
			MaxArchiveDepth:   3,
		},
	}
}

// LoadConfig builds the configuration from defaults, an optional YAML file, then
// environment variables. path may be empty; TAXASSIST_CONFIG is consulted in that case.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = os.Getenv("TAXASSIST_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, NewAppError("CONFIG_ERROR", fmt.Sprintf("read config %s", path), err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, NewAppError("CONFIG_ERROR", fmt.Sprintf("parse config %s", path), err)
		}
	}
	cfg.applyEnv()
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() {
	c.Server.HTTPAddr = getEnv("HTTP_ADDR", c.Server.HTTPAddr)

	c.OCR.Enabled = getEnvAsBool("OCR_ENABLED", c.OCR.Enabled)
	c.OCR.TesseractLang = getEnv("TESSERACT_LANG", c.OCR.TesseractLang)
	c.OCR.TessdataDir = getEnv("TESSDATA_PREFIX", c.OCR.TessdataDir)

	c.LLM.APIKey = getEnv("OPENAI_API_KEY", c.LLM.APIKey)
	c.LLM.Model = getEnv("OPENAI_MODEL", c.LLM.Model)
	c.LLM.BaseURL = getEnv("OPENAI_BASE_URL", c.LLM.BaseURL)
	c.LLM.Temperature = getEnvAsFloat32("OPENAI_TEMPERATURE", c.LLM.Temperature)
	c.LLM.Timeout = getEnvAsDuration("OPENAI_TIMEOUT", c.LLM.Timeout)

	c.Chunk.Size = getEnvAsInt("CHUNK_SIZE", c.Chunk.Size)
	c.Chunk.Overlap = getEnvAsInt("CHUNK_OVERLAP", c.Chunk.Overlap)

	c.Reconcile.MergePolicy = getEnv("MERGE_POLICY", c.Reconcile.MergePolicy)

	c.Limits.MaxFileBytes = getEnvAsInt64("MAX_FILE_BYTES", c.Limits.MaxFileBytes)
	c.Limits.MaxUploadBytes = getEnvAsInt64("MAX_UPLOAD_BYTES", c.Limits.MaxUploadBytes)
}

// LLMEnabled reports whether a credential was supplied.
func (c *Config) LLMEnabled() bool {
	return strings.TrimSpace(c.LLM.APIKey) != ""
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

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
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

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Chunk.Size <= 0 {
		return NewAppError("CONFIG_ERROR", "chunk.size must be > 0", ErrInvalidInput)
	}
	if c.Chunk.Overlap < 0 || c.Chunk.Overlap >= c.Chunk.Size {
		return NewAppError("CONFIG_ERROR",
			fmt.Sprintf("chunk.overlap must be in [0, %d), got %d", c.Chunk.Size, c.Chunk.Overlap), ErrInvalidInput)
	}
	if c.Limits.MaxFileBytes <= 0 {
		return NewAppError("CONFIG_ERROR", "limits.max_file_bytes must be > 0", ErrInvalidInput)
	}
	if c.Limits.MaxArchiveDepth < 1 {
		return NewAppError("CONFIG_ERROR", "limits.max_archive_depth must be >= 1", ErrInvalidInput)
	}
	if c.LLMEnabled() && c.LLM.Timeout <= 0 {
		return NewAppError("CONFIG_ERROR", "llm.timeout must be > 0", ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "server.http_addr is required", ErrInvalidInput)
	}
	return nil
}
