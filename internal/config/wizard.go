package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard, saves the result to
// path and returns it.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to minutes! Let's configure your meeting-notes assistant.")
	fmt.Println()

	cfg := DefaultConfig()

	providerPrompt := promptui.Select{
		Label: "Select LLM provider",
		Items: []string{"openai", "anthropic", "google", "ollama", "openrouter", "minimax"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	cfg.Provider = ProviderType(providerStr)

	qualityPrompt := promptui.Select{
		Label: "Select quality tier",
		Items: []string{
			"lite   (fast & cheap)",
			"normal (balanced)",
			"max    (highest quality)",
		},
		CursorPos: 1,
	}
	qualityIdx, _, err := qualityPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("quality selection: %w", err)
	}
	tiers := []QualityTier{QualityLite, QualityNormal, QualityMax}
	cfg.Quality = tiers[qualityIdx]

	preset := GetPreset(cfg.Provider, cfg.Quality)
	cfg.Model = preset.Model
	cfg.AgentModel = preset.AgentModel
	cfg.EmbeddingProvider = embeddingProviderFor(cfg.Provider)
	cfg.EmbeddingModel = GetPreset(cfg.EmbeddingProvider, cfg.Quality).EmbeddingModel

	notesPrompt := promptui.Prompt{
		Label:   "Meeting notes directory",
		Default: cfg.NotesDir,
	}
	if cfg.NotesDir, err = notesPrompt.Run(); err != nil {
		return nil, fmt.Errorf("notes dir: %w", err)
	}

	topicsPrompt := promptui.Prompt{
		Label:   "Topics (comma-separated)",
		Default: strings.Join(cfg.Topics, ","),
	}
	topicsStr, err := topicsPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("topics: %w", err)
	}
	if topics := splitAndTrim(topicsStr); len(topics) > 0 {
		cfg.Topics = topics
	}

	limitPrompt := promptui.Prompt{
		Label:    "Passages retrieved per question",
		Default:  strconv.Itoa(cfg.SearchK),
		Validate: positiveInt,
	}
	kStr, err := limitPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("search k: %w", err)
	}
	cfg.SearchK, _ = strconv.Atoi(kStr)

	if envVar := APIKeyEnvVar(cfg.Provider); envVar != "" && os.Getenv(envVar) == "" {
		fmt.Printf("\nNote: set %s (or add it to .env) before running minutes ingest.\n", envVar)
	}

	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}

// embeddingProviderFor returns the default embedding provider for a given
// LLM provider. OpenAI embeddings are used for cloud providers without
// their own embedding endpoint.
func embeddingProviderFor(p ProviderType) ProviderType {
	switch p {
	case ProviderOllama, ProviderGoogle:
		return p
	default:
		return ProviderOpenAI
	}
}

func positiveInt(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return fmt.Errorf("enter a positive number")
	}
	return nil
}

// splitAndTrim splits a comma-separated string and drops empty entries.
func splitAndTrim(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if token := strings.TrimSpace(part); token != "" {
			result = append(result, token)
		}
	}
	return result
}
