package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when --config is not given.
const DefaultPath = ".minutes.yml"

// EnvPrefix prefixes every environment override. Nested keys use a double
// underscore, e.g. MINUTES_SERVER__PORT or MINUTES_LAYOUT__INDEX_DIR.
const EnvPrefix = "MINUTES_"

// ErrInvalid is wrapped by every validation and credential error.
var ErrInvalid = errors.New("invalid configuration")

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (MINUTES_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// envKey maps MINUTES_SERVER__PORT to server.port.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

var validProviders = map[ProviderType]bool{
	ProviderAnthropic:  true,
	ProviderOpenAI:     true,
	ProviderGoogle:     true,
	ProviderOllama:     true,
	ProviderMiniMax:    true,
	ProviderOpenRouter: true,
}

var validEmbeddingProviders = map[ProviderType]bool{
	ProviderOpenAI: true,
	ProviderGoogle: true,
	ProviderOllama: true,
	ProviderLocal:  true,
}

var validQualityTiers = map[QualityTier]bool{
	QualityLite:   true,
	QualityNormal: true,
	QualityMax:    true,
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Provider == "" {
		return invalid("provider is required")
	}
	if !validProviders[c.Provider] {
		return invalid("unknown provider %q", c.Provider)
	}
	if c.Model == "" {
		return invalid("model is required")
	}
	if c.EmbeddingProvider != "" && !validEmbeddingProviders[c.EmbeddingProvider] {
		return invalid("unknown embedding_provider %q", c.EmbeddingProvider)
	}
	if c.Quality != "" && !validQualityTiers[c.Quality] {
		return invalid("quality %q must be one of lite, normal, max", c.Quality)
	}
	if c.NotesDir == "" {
		return invalid("notes_dir is required")
	}
	if c.Layout.ProcessedDir == "" || c.Layout.IndexDir == "" {
		return invalid("layout.processed_dir and layout.index_dir are required")
	}
	if c.Layout.ProcessedDir == c.Layout.RawDir {
		return invalid("layout.processed_dir and layout.raw_dir must differ")
	}
	if c.ChunkSize <= 0 {
		return invalid("chunk_size must be positive")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return invalid("chunk_overlap must be in [0, chunk_size)")
	}
	if c.SearchK <= 0 {
		return invalid("search_k must be positive")
	}
	if c.MaxAgentSteps <= 0 {
		return invalid("max_agent_steps must be positive")
	}
	if c.MaxConcurrency < 0 {
		return invalid("max_concurrency must be non-negative")
	}
	if c.RateLimitRPM < 0 {
		return invalid("rate_limit_rpm must be non-negative")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return invalid("temperature must be in [0, 2]")
	}
	return nil
}

// CheckCredentials reports a missing API key for the configured chat and
// embedding providers. Call it before any ingestion or model work.
func (c *Config) CheckCredentials() error {
	for _, p := range []ProviderType{c.Provider, c.embeddingProvider()} {
		envVar := APIKeyEnvVar(p)
		if envVar != "" && os.Getenv(envVar) == "" {
			return invalid("%s is not set (required by provider %s)", envVar, p)
		}
	}
	return nil
}

func (c *Config) embeddingProvider() ProviderType {
	if c.EmbeddingProvider != "" {
		return c.EmbeddingProvider
	}
	return c.Provider
}

// ResolvedEmbedding returns the embedding provider and model, filling gaps
// from the quality preset of the chat provider.
func (c *Config) ResolvedEmbedding() (ProviderType, string) {
	provider := c.embeddingProvider()
	model := c.EmbeddingModel
	if model == "" {
		model = GetPreset(provider, c.Quality).EmbeddingModel
	}
	return provider, model
}

// ResolvedAgentModel returns the agent model, falling back to the preset.
func (c *Config) ResolvedAgentModel() string {
	if c.AgentModel != "" {
		return c.AgentModel
	}
	return GetPreset(c.Provider, c.Quality).AgentModel
}

// APIKeyEnvVar returns the conventional environment variable name for
// the API key of the given provider.
func APIKeyEnvVar(provider ProviderType) string {
	switch provider {
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderGoogle:
		return "GOOGLE_API_KEY"
	case ProviderMiniMax:
		return "MINIMAX_API_KEY"
	case ProviderOpenRouter:
		return "OPENROUTER_API_KEY"
	default:
		return ""
	}
}
