package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Backend provider names accepted in config
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderNone   = "none"
)

// Config holds high-level settings required across the application.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Backend  BackendConfig  `yaml:"backend"`
}

// ServerConfig describes the HTTP listener and optional basic auth.
type ServerConfig struct {
	Port     int    `yaml:"port"`
	AuthUser string `yaml:"authUser"`
	AuthPass string `yaml:"authPass"`
}

// DatabaseConfig describes the BoltDB file location.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// BackendConfig selects the intelligent backend for the pipeline stages.
// Provider "none" runs every stage on the deterministic rules only.
type BackendConfig struct {
	Provider string       `yaml:"provider"`
	Gemini   GeminiConfig `yaml:"gemini"`
	OpenAI   OpenAIConfig `yaml:"openai"`
}

// GeminiConfig wires the Google Gemini text and vision models.
type GeminiConfig struct {
	APIKey      string `yaml:"apiKey"`
	TextModel   string `yaml:"textModel"`
	VisionModel string `yaml:"visionModel"`
}

// OpenAIConfig defines how to contact an OpenAI-compatible chat API.
type OpenAIConfig struct {
	BaseURL string `yaml:"baseUrl"`
	APIKey  string `yaml:"apiKey"`
	Model   string `yaml:"model"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server:   ServerConfig{Port: 8080},
		Database: DatabaseConfig{Path: "pantrylog.db"},
		Backend: BackendConfig{
			Provider: ProviderGemini,
			Gemini: GeminiConfig{
				TextModel:   "gemini-2.5-flash",
				VisionModel: "gemini-2.5-flash",
			},
			OpenAI: OpenAIConfig{
				BaseURL: "https://api.groq.com/openai/v1",
				Model:   "llama-3.3-70b-versatile",
			},
		},
	}
}

// Load reads YAML configuration from path and merges it over the defaults.
// An empty path returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}

	return mergeConfig(cfg, fileCfg), nil
}

// Validate rejects configurations the process cannot start with.
func (c Config) Validate() error {
	switch c.Backend.Provider {
	case ProviderGemini:
		if c.Backend.Gemini.APIKey == "" {
			return fmt.Errorf("gemini api key is required when provider is %q", ProviderGemini)
		}
	case ProviderOpenAI:
		if c.Backend.OpenAI.APIKey == "" {
			return fmt.Errorf("openai api key is required when provider is %q", ProviderOpenAI)
		}
	case ProviderNone:
	default:
		return fmt.Errorf("unknown backend provider %q", c.Backend.Provider)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	return nil
}

func mergeConfig(base, override Config) Config {
	if override.Server.Port != 0 {
		base.Server.Port = override.Server.Port
	}
	if override.Server.AuthUser != "" {
		base.Server.AuthUser = override.Server.AuthUser
	}
	if override.Server.AuthPass != "" {
		base.Server.AuthPass = override.Server.AuthPass
	}

	if override.Database.Path != "" {
		base.Database.Path = override.Database.Path
	}

	if override.Backend.Provider != "" {
		base.Backend.Provider = override.Backend.Provider
	}
	if override.Backend.Gemini.APIKey != "" {
		base.Backend.Gemini.APIKey = override.Backend.Gemini.APIKey
	}
	if override.Backend.Gemini.TextModel != "" {
		base.Backend.Gemini.TextModel = override.Backend.Gemini.TextModel
	}
	if override.Backend.Gemini.VisionModel != "" {
		base.Backend.Gemini.VisionModel = override.Backend.Gemini.VisionModel
	}
	if override.Backend.OpenAI.BaseURL != "" {
		base.Backend.OpenAI.BaseURL = override.Backend.OpenAI.BaseURL
	}
	if override.Backend.OpenAI.APIKey != "" {
		base.Backend.OpenAI.APIKey = override.Backend.OpenAI.APIKey
	}
	if override.Backend.OpenAI.Model != "" {
		base.Backend.OpenAI.Model = override.Backend.OpenAI.Model
	}

	return base
}
