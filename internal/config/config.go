package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is the environment prefix, e.g. TR_PROVIDER.
const Prefix = "TR"

// Config holds process configuration. A missing API key is deliberately not a load
// error: each chat turn fails on its own instead.
type Config struct {
	Provider         string `envconfig:"PROVIDER" default:"anthropic"`
	APIKey           string `envconfig:"API_KEY"`
	Model            string `envconfig:"MODEL"`
	StructuredOutput bool   `envconfig:"STRUCTURED_OUTPUT" default:"false"`
	MaxTokens        int64  `envconfig:"MAX_TOKENS" default:"1024"`
	GeminiBaseURL    string `envconfig:"GEMINI_BASE_URL" default:"https://generativelanguage.googleapis.com"`

	Persona     string `envconfig:"PERSONA" default:"tabula-rasa"`
	PersonaFile string `envconfig:"PERSONA_FILE"`

	StoreDriver string `envconfig:"STORE_DRIVER" default:"file"`
	DataDir     string `envconfig:"DATA_DIR" default:".tabularasa"`
	SQLitePath  string `envconfig:"SQLITE_PATH"`
	PostgresDSN string `envconfig:"POSTGRES_DSN"`
	RedisURL    string `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`
	StorageKey  string `envconfig:"STORAGE_KEY" default:"tabularasa_brain_memory"`

	HTTPAddr         string `envconfig:"HTTP_ADDR" default:":8080"`
	LogLevel         string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat        string `envconfig:"LOG_FORMAT" default:"json"`
	ExportTimeLayout string `envconfig:"EXPORT_TIME_LAYOUT" default:"2006-01-02 15:04:05"`
}

// Load reads an optional .env file (existing variables win) and then the environment.
func Load(dotenvFiles ...string) (*Config, error) {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ResolveDefaults validates enums and fills provider-dependent fields.
func (c *Config) ResolveDefaults() error {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	switch c.Provider {
	case "anthropic":
		if c.APIKey == "" {
			c.APIKey = firstEnv("ANTHROPIC_API_KEY", "API_KEY")
		}
	case "gemini":
		if c.APIKey == "" {
			c.APIKey = firstEnv("GEMINI_API_KEY", "API_KEY")
		}
	default:
		return fmt.Errorf("unsupported PROVIDER: %s", c.Provider)
	}

	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	switch c.StoreDriver {
	case "file", "sqlite", "postgres", "redis", "mem":
	default:
		return fmt.Errorf("unsupported STORE_DRIVER: %s", c.StoreDriver)
	}
	if c.StoreDriver == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("STORE_DRIVER=postgres requires %s_POSTGRES_DSN", Prefix)
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 1024
	}
	return nil
}

// HasAPIKey reports whether a credential is configured.
func (c *Config) HasAPIKey() bool { return strings.TrimSpace(c.APIKey) != "" }

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
