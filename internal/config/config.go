package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the Scribe server.
type Config struct {
	Server        ServerConfig
	Uploads       UploadConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Audio         AudioConfig
	Transcription TranscriptionConfig
	Summary       SummaryConfig
	Pipeline      PipelineConfig
}

type ServerConfig struct {
	Port            int
	Env             string
	LogLevel        string
	RateLimitPerMin int
}

type UploadConfig struct {
	Dir      string
	MaxBytes int64
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type AudioConfig struct {
	FFmpegPath string
}

type TranscriptionConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string
}

type SummaryConfig struct {
	Provider        string
	APIKey          string
	BaseURL         string
	Model           string
	Timeout         time.Duration
	MaxInputTokens  int
	MaxOutputTokens int
	Temperature     float64
	DefaultMethod   string
}

type PipelineConfig struct {
	VisibilityPause time.Duration
}

var validProviders = map[string]bool{
	"deepseek": true,
	"openai":   true,
	"ollama":   true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Load reads configuration from environment variables and returns a validated Config.
// A .env file in the working directory is loaded first when present; variables
// already set in the environment take precedence over it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            envInt("SCRIBE_PORT", 8080),
			Env:             envString("SCRIBE_ENV", "development"),
			LogLevel:        strings.ToLower(envString("LOG_LEVEL", "info")),
			RateLimitPerMin: envInt("RATE_LIMIT_PER_MIN", 60),
		},
		Uploads: UploadConfig{
			Dir:      envString("UPLOAD_DIR", "./uploads"),
			MaxBytes: int64(envInt("MAX_UPLOAD_MB", 200)) << 20,
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Audio: AudioConfig{
			FFmpegPath: envString("FFMPEG_PATH", "ffmpeg"),
		},
		Transcription: TranscriptionConfig{
			APIKey:   os.Getenv("DEEPGRAM_API_KEY"),
			BaseURL:  envString("DEEPGRAM_BASE_URL", "https://api.deepgram.com"),
			Model:    envString("TRANSCRIPTION_MODEL", "nova-3"),
			Language: envString("TRANSCRIPTION_LANGUAGE", "es-419"),
		},
		Summary: SummaryConfig{
			Provider:        strings.ToLower(envString("SUMMARY_PROVIDER", "deepseek")),
			APIKey:          os.Getenv("SUMMARY_API_KEY"),
			BaseURL:         os.Getenv("SUMMARY_BASE_URL"),
			Model:           os.Getenv("SUMMARY_MODEL"),
			Timeout:         envDurationSecs("SUMMARY_TIMEOUT_SECS", 120*time.Second),
			MaxInputTokens:  envInt("SUMMARY_MAX_INPUT_TOKENS", 30000),
			MaxOutputTokens: envInt("SUMMARY_MAX_OUTPUT_TOKENS", 1024),
			Temperature:     envFloat("SUMMARY_TEMPERATURE", 0.3),
			DefaultMethod:   strings.ToLower(envString("SUMMARY_METHOD", "external")),
		},
		Pipeline: PipelineConfig{
			VisibilityPause: envDuration("VISIBILITY_PAUSE", 3*time.Second),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if !strings.HasPrefix(c.Database.URL, "postgres://") &&
		!strings.HasPrefix(c.Database.URL, "postgresql://") &&
		!strings.HasPrefix(c.Database.URL, "sqlite://") {
		return fmt.Errorf("DATABASE_URL must start with postgres://, postgresql:// or sqlite://, got %q", c.Database.URL)
	}

	if !validLogLevels[c.Server.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error; got %q", c.Server.LogLevel)
	}
	if c.Uploads.MaxBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive")
	}

	if c.Transcription.APIKey == "" {
		return fmt.Errorf("DEEPGRAM_API_KEY is required")
	}
	if !strings.HasPrefix(c.Transcription.BaseURL, "http://") && !strings.HasPrefix(c.Transcription.BaseURL, "https://") {
		return fmt.Errorf("DEEPGRAM_BASE_URL must start with http:// or https://, got %q", c.Transcription.BaseURL)
	}

	if !validProviders[c.Summary.Provider] {
		return fmt.Errorf("SUMMARY_PROVIDER must be one of deepseek, openai, ollama; got %q", c.Summary.Provider)
	}
	if c.Summary.MaxInputTokens <= 0 {
		return fmt.Errorf("SUMMARY_MAX_INPUT_TOKENS must be positive")
	}
	switch c.Summary.DefaultMethod {
	case "external", "local":
	default:
		return fmt.Errorf("SUMMARY_METHOD must be external or local; got %q", c.Summary.DefaultMethod)
	}

	if c.Pipeline.VisibilityPause < 0 {
		return fmt.Errorf("VISIBILITY_PAUSE must not be negative")
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
