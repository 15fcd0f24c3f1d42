package llm

import (
	"fmt"
	"os"
)

// NewProvider creates a new LLM provider based on the given provider type and model.
// Supported provider types: "anthropic", "openai", "google", "ollama",
// "openrouter", "minimax". API keys are read from the environment.
func NewProvider(providerType string, model string) (Provider, error) {
	key := func(env string) (string, error) {
		v := os.Getenv(env)
		if v == "" {
			return "", fmt.Errorf("%s environment variable is not set", env)
		}
		return v, nil
	}

	switch providerType {
	case "anthropic":
		apiKey, err := key("ANTHROPIC_API_KEY")
		if err != nil {
			return nil, err
		}
		return NewAnthropicProvider(apiKey, model), nil

	case "openai":
		apiKey, err := key("OPENAI_API_KEY")
		if err != nil {
			return nil, err
		}
		return NewOpenAIProvider(apiKey, model), nil

	case "openrouter":
		apiKey, err := key("OPENROUTER_API_KEY")
		if err != nil {
			return nil, err
		}
		return NewOpenRouterProvider(apiKey, model), nil

	case "minimax":
		apiKey, err := key("MINIMAX_API_KEY")
		if err != nil {
			return nil, err
		}
		return NewMinimaxProvider(apiKey, model), nil

	case "google":
		apiKey, err := key("GOOGLE_API_KEY")
		if err != nil {
			return nil, err
		}
		return NewGoogleProvider(apiKey, model), nil

	case "ollama":
		host := os.Getenv("OLLAMA_HOST")
		if host == "" {
			host = "http://localhost:11434"
		}
		return NewOllamaProvider(host, model), nil

	default:
		return nil, fmt.Errorf("unsupported provider type: %s", providerType)
	}
}
