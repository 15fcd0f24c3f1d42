package config

// QualityTier controls the model selection and trade-off between speed/cost and quality.
type QualityTier string

const (
	QualityLite   QualityTier = "lite"
	QualityNormal QualityTier = "normal"
	QualityMax    QualityTier = "max"
)

// ProviderType identifies an LLM or embedding provider.
type ProviderType string

const (
	ProviderAnthropic  ProviderType = "anthropic"
	ProviderOpenAI     ProviderType = "openai"
	ProviderGoogle     ProviderType = "google"
	ProviderOllama     ProviderType = "ollama"
	ProviderMiniMax    ProviderType = "minimax"
	ProviderOpenRouter ProviderType = "openrouter"
	// ProviderLocal is only valid as an embedding provider. It selects the
	// offline feature-hashing embedder.
	ProviderLocal ProviderType = "local"
)

// Config is the top-level minutes configuration, corresponding to .minutes.yml.
type Config struct {
	Provider          ProviderType `yaml:"provider" koanf:"provider"`
	Model             string       `yaml:"model" koanf:"model"`
	AgentModel        string       `yaml:"agent_model" koanf:"agent_model"`
	EmbeddingProvider ProviderType `yaml:"embedding_provider" koanf:"embedding_provider"`
	EmbeddingModel    string       `yaml:"embedding_model" koanf:"embedding_model"`
	Quality           QualityTier  `yaml:"quality" koanf:"quality"`
	Temperature       float32      `yaml:"temperature" koanf:"temperature"`

	NotesDir string      `yaml:"notes_dir" koanf:"notes_dir"`
	Topics   []string    `yaml:"topics" koanf:"topics"`
	Layout   LayoutNames `yaml:"layout" koanf:"layout"`
	Include  []string    `yaml:"include" koanf:"include"`
	Exclude  []string    `yaml:"exclude" koanf:"exclude"`

	ChunkSize      int    `yaml:"chunk_size" koanf:"chunk_size"`
	ChunkOverlap   int    `yaml:"chunk_overlap" koanf:"chunk_overlap"`
	SearchK        int    `yaml:"search_k" koanf:"search_k"`
	AnswerLanguage string `yaml:"answer_language" koanf:"answer_language"`
	MaxAgentSteps  int    `yaml:"max_agent_steps" koanf:"max_agent_steps"`
	Stream         bool   `yaml:"stream" koanf:"stream"`

	MaxConcurrency int    `yaml:"max_concurrency" koanf:"max_concurrency"`
	RateLimitRPM   int    `yaml:"rate_limit_rpm" koanf:"rate_limit_rpm"`
	PersistIndex   bool   `yaml:"persist_index" koanf:"persist_index"`
	DataDir        string `yaml:"data_dir" koanf:"data_dir"`
	LogLevel       string `yaml:"log_level" koanf:"log_level"`

	Server ServerConfig `yaml:"server" koanf:"server"`
}

// LayoutNames holds the reserved directory names inside the notes tree.
type LayoutNames struct {
	ProcessedDir string `yaml:"processed_dir" koanf:"processed_dir"`
	RawDir       string `yaml:"raw_dir" koanf:"raw_dir"`
	IndexDir     string `yaml:"index_dir" koanf:"index_dir"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port" koanf:"port"`
	AllowAllOrigins bool     `yaml:"allow_all_origins" koanf:"allow_all_origins"`
	AllowedOrigins  []string `yaml:"allowed_origins" koanf:"allowed_origins"`
}
