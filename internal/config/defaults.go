package config

// QualityPreset describes the models to use for a given quality tier.
type QualityPreset struct {
	Model          string
	AgentModel     string
	EmbeddingModel string
}

// qualityPresets maps each provider+quality combination to its model choices.
var qualityPresets = map[ProviderType]map[QualityTier]QualityPreset{
	ProviderAnthropic: {
		QualityLite:   {Model: "claude-haiku-4-5-20251001", AgentModel: "claude-haiku-4-5-20251001", EmbeddingModel: "text-embedding-3-small"},
		QualityNormal: {Model: "claude-sonnet-4-5-20250929", AgentModel: "claude-sonnet-4-5-20250929", EmbeddingModel: "text-embedding-3-small"},
		QualityMax:    {Model: "claude-opus-4-6", AgentModel: "claude-opus-4-6", EmbeddingModel: "text-embedding-3-large"},
	},
	ProviderOpenAI: {
		QualityLite:   {Model: "gpt-4o-mini", AgentModel: "gpt-4o-mini", EmbeddingModel: "text-embedding-3-small"},
		QualityNormal: {Model: "gpt-4o", AgentModel: "gpt-4", EmbeddingModel: "text-embedding-3-small"},
		QualityMax:    {Model: "gpt-4o", AgentModel: "gpt-4o", EmbeddingModel: "text-embedding-3-large"},
	},
	ProviderGoogle: {
		QualityLite:   {Model: "gemini-3-flash-preview", AgentModel: "gemini-3-flash-preview", EmbeddingModel: "gemini-embedding-001"},
		QualityNormal: {Model: "gemini-3-pro-preview", AgentModel: "gemini-3-pro-preview", EmbeddingModel: "gemini-embedding-001"},
		QualityMax:    {Model: "gemini-3-pro-preview", AgentModel: "gemini-3-pro-preview", EmbeddingModel: "gemini-embedding-001"},
	},
	ProviderOllama: {
		QualityLite:   {Model: "llama3", AgentModel: "llama3", EmbeddingModel: "nomic-embed-text"},
		QualityNormal: {Model: "llama3", AgentModel: "llama3", EmbeddingModel: "nomic-embed-text"},
		QualityMax:    {Model: "llama3:70b", AgentModel: "llama3:70b", EmbeddingModel: "nomic-embed-text"},
	},
	ProviderMiniMax: {
		QualityLite:   {Model: "MiniMax-M2.5-highspeed", AgentModel: "MiniMax-M2.5-highspeed", EmbeddingModel: "text-embedding-3-small"},
		QualityNormal: {Model: "MiniMax-M2.5", AgentModel: "MiniMax-M2.5", EmbeddingModel: "text-embedding-3-small"},
		QualityMax:    {Model: "MiniMax-M2.5", AgentModel: "MiniMax-M2.5", EmbeddingModel: "text-embedding-3-large"},
	},
	ProviderOpenRouter: {
		QualityLite:   {Model: "openai/gpt-4o-mini", AgentModel: "openai/gpt-4o-mini", EmbeddingModel: "text-embedding-3-small"},
		QualityNormal: {Model: "openai/gpt-4o", AgentModel: "openai/gpt-4", EmbeddingModel: "text-embedding-3-small"},
		QualityMax:    {Model: "openai/gpt-4o", AgentModel: "openai/gpt-4o", EmbeddingModel: "text-embedding-3-large"},
	},
}

// DefaultTopics is the enumerated theme set. Topic folders whose names match
// one of these (after NFKC normalisation) become agent tools.
var DefaultTopics = []string{"営業", "マーケティング", "採用", "開発", "教育", "全社", "顧客"}

// Reserved directory names inside the notes tree.
const (
	DefaultProcessedDir = "データベース化済み"
	DefaultRawDir       = "データベース化前"
	DefaultIndexDir     = ".db"
)

// DefaultIncludes are the document formats picked up by ingestion.
var DefaultIncludes = []string{"**/*.docx", "**/*.txt", "**/*.md"}

// DefaultExcludes are glob patterns excluded from ingestion by default.
var DefaultExcludes = []string{
	"**/~$*",
	"**/.DS_Store",
	"**/Thumbs.db",
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:          ProviderOpenAI,
		Model:             "gpt-4o",
		AgentModel:        "gpt-4",
		EmbeddingProvider: ProviderOpenAI,
		EmbeddingModel:    "text-embedding-3-small",
		Quality:           QualityNormal,
		Temperature:       0,
		NotesDir:          "notes",
		Topics:            append([]string(nil), DefaultTopics...),
		Layout: LayoutNames{
			ProcessedDir: DefaultProcessedDir,
			RawDir:       DefaultRawDir,
			IndexDir:     DefaultIndexDir,
		},
		Include:        append([]string(nil), DefaultIncludes...),
		Exclude:        append([]string(nil), DefaultExcludes...),
		ChunkSize:      500,
		ChunkOverlap:   50,
		SearchK:        2,
		AnswerLanguage: "Japanese",
		MaxAgentSteps:  8,
		Stream:         true,
		MaxConcurrency: 4,
		DataDir:        ".minutes",
		LogLevel:       "info",
		Server: ServerConfig{
			Port: 8080,
		},
	}
}

// GetPreset returns the quality preset for the given provider and tier.
// Returns the Normal OpenAI preset if the combination is not found.
func GetPreset(provider ProviderType, tier QualityTier) QualityPreset {
	if tiers, ok := qualityPresets[provider]; ok {
		if preset, ok := tiers[tier]; ok {
			return preset
		}
	}
	return qualityPresets[ProviderOpenAI][QualityNormal]
}
