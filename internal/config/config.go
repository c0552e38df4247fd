// Package config loads environment-driven configuration for the state layer.
package config

import (
	"fmt"
	"os"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config is the full application configuration.
type Config struct {
	Supabase SupabaseConfig
	Gemini   GeminiConfig

	// DataDir is where the durable local store lives.
	DataDir  string `env:"STUDYFLOW_DATA_DIR,default=."`
	LogLevel string `env:"STUDYFLOW_LOG_LEVEL,default=info"`

	// CostsPath optionally points at a YAML tool cost table.
	CostsPath string `env:"STUDYFLOW_COSTS_PATH"`
}

// SupabaseConfig holds the remote backend settings.
type SupabaseConfig struct {
	URL     string `env:"SUPABASE_URL"`
	AnonKey string `env:"SUPABASE_ANON_KEY"`
}

// Configured reports whether the remote backend should be used. Placeholder
// values from a template .env are treated as unconfigured.
func (s SupabaseConfig) Configured() bool {
	if s.URL == "" || s.AnonKey == "" {
		return false
	}
	if s.URL == "your_supabase_project_url" || s.AnonKey == "your_supabase_anon_key" {
		return false
	}
	return true
}

// GeminiConfig holds the generative content service settings.
type GeminiConfig struct {
	APIKey string `env:"GEMINI_API_KEY"`
	Model  string `env:"GEMINI_MODEL,default=gemini-3-flash-preview"`
}

// Load reads configuration from the environment, optionally loading a .env
// file first. A missing .env file is not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, fmt.Errorf("load env file %s: %w", envFile, err)
			}
		}
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode env: %w", err)
	}
	return &cfg, nil
}
