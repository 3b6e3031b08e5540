// Package config loads service configuration from an optional YAML file with
// environment variable overrides. main calls gotenv.Load first, so a local
// .env file feeds the overrides too.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Assistant AssistantConfig `yaml:"assistant"`
	Providers ProvidersConfig `yaml:"providers"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Address       string `yaml:"address"`
	BodyLimit     string `yaml:"body_limit"`
	RatePerMinute int    `yaml:"rate_per_minute"`
}

// AuthConfig contains token issuing configuration. APIKeyHash and
// APISecretHash are hex SHA-256 digests; the plaintext never lives in config.
type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret"`
	APIKeyHash    string `yaml:"api_key_hash"`
	APISecretHash string `yaml:"api_secret_hash"`
	TokenTTLHours int    `yaml:"token_ttl_hours"`
}

// AssistantConfig contains the conversational defaults
type AssistantConfig struct {
	SystemPrompt  string `yaml:"system_prompt"`
	RecordSeconds int    `yaml:"record_seconds"`
	Voice         string `yaml:"voice"`
	ArtifactDir   string `yaml:"artifact_dir"`
}

// ProvidersConfig selects the external collaborators
type ProvidersConfig struct {
	LLM string `yaml:"llm"` // openai | gemini
	STT string `yaml:"stt"` // openai | google
	TTS string `yaml:"tts"` // openai | google

	OpenAIAPIKey   string `yaml:"openai_api_key"`
	OpenAIModel    string `yaml:"openai_model"`
	GeminiModel    string `yaml:"gemini_model"`
	GoogleLanguage string `yaml:"google_language"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:       ":8080",
			BodyLimit:     "10MB",
			RatePerMinute: 20,
		},
		Auth: AuthConfig{
			TokenTTLHours: 24,
		},
		Assistant: AssistantConfig{
			SystemPrompt:  "You are a helpful assistant",
			RecordSeconds: 3,
		},
		Providers: ProvidersConfig{
			LLM: "openai",
			STT: "openai",
			TTS: "openai",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file if path is
// non-empty, then environment overrides, then validation.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) applyEnv() {
	setString(&c.Server.Address, "VOXLOOP_ADDRESS")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Auth.APIKeyHash, "API_KEY_HASH")
	setString(&c.Auth.APISecretHash, "API_SECRET_HASH")
	setString(&c.Assistant.SystemPrompt, "SYSTEM_PROMPT")
	setString(&c.Assistant.Voice, "VOXLOOP_VOICE")
	setString(&c.Assistant.ArtifactDir, "VOXLOOP_ARTIFACT_DIR")
	setString(&c.Providers.LLM, "VOXLOOP_LLM")
	setString(&c.Providers.STT, "VOXLOOP_STT")
	setString(&c.Providers.TTS, "VOXLOOP_TTS")
	setString(&c.Providers.OpenAIAPIKey, "OPENAI_API_KEY")
	setString(&c.Providers.OpenAIModel, "OPENAI_MODEL")
	setString(&c.Providers.GeminiModel, "GEMINI_MODEL")
	setInt(&c.Assistant.RecordSeconds, "RECORD_SECONDS")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// Validate performs validation of the configuration
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server config: address is required")
	}
	if c.Server.RatePerMinute <= 0 {
		return fmt.Errorf("server config: rate_per_minute must be positive")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth config: jwt_secret is required")
	}
	if c.Auth.TokenTTLHours <= 0 {
		return fmt.Errorf("auth config: token_ttl_hours must be positive")
	}

	if c.Assistant.SystemPrompt == "" {
		return fmt.Errorf("assistant config: system_prompt is required")
	}
	if c.Assistant.RecordSeconds <= 0 {
		return fmt.Errorf("assistant config: record_seconds must be positive")
	}

	switch c.Providers.LLM {
	case "openai", "gemini":
	default:
		return fmt.Errorf("providers config: unknown llm provider %q", c.Providers.LLM)
	}
	switch c.Providers.STT {
	case "openai", "google":
	default:
		return fmt.Errorf("providers config: unknown stt provider %q", c.Providers.STT)
	}
	switch c.Providers.TTS {
	case "openai", "google":
	default:
		return fmt.Errorf("providers config: unknown tts provider %q", c.Providers.TTS)
	}

	usesOpenAI := c.Providers.LLM == "openai" || c.Providers.STT == "openai" || c.Providers.TTS == "openai"
	if usesOpenAI && c.Providers.OpenAIAPIKey == "" {
		return fmt.Errorf("providers config: openai_api_key is required when an openai provider is selected")
	}

	return nil
}
