package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ziadkadry99/minutes/internal/agent"
	"github.com/ziadkadry99/minutes/internal/audit"
	"github.com/ziadkadry99/minutes/internal/chunker"
	"github.com/ziadkadry99/minutes/internal/config"
	"github.com/ziadkadry99/minutes/internal/corpus"
	"github.com/ziadkadry99/minutes/internal/db"
	"github.com/ziadkadry99/minutes/internal/embeddings"
	"github.com/ziadkadry99/minutes/internal/indexer"
	"github.com/ziadkadry99/minutes/internal/ingest"
	"github.com/ziadkadry99/minutes/internal/llm"
	"github.com/ziadkadry99/minutes/internal/logging"
	"github.com/ziadkadry99/minutes/internal/progress"
	"github.com/ziadkadry99/minutes/internal/rag"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `minutes init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !verbose && cfg.LogLevel != "" {
		logging.Setup(cfg.LogLevel)
	}
	return cfg, nil
}

// layoutFromConfig returns the notes layout described by cfg.
func layoutFromConfig(cfg *config.Config) corpus.Layout {
	return corpus.Layout{
		Root:           cfg.NotesDir,
		ProcessedDir:   cfg.Layout.ProcessedDir,
		RawDir:         cfg.Layout.RawDir,
		IndexDir:       cfg.Layout.IndexDir,
		ReservedPrefix: ".",
	}
}

// createEmbedderFromConfig creates an embeddings.Embedder based on config.
func createEmbedderFromConfig(cfg *config.Config) (embeddings.Embedder, error) {
	provider, model := cfg.ResolvedEmbedding()

	switch provider {
	case config.ProviderLocal:
		return embeddings.NewHashEmbedder(0), nil
	case config.ProviderGoogle:
		apiKey := os.Getenv(config.APIKeyEnvVar(config.ProviderGoogle))
		if apiKey == "" {
			return nil, fmt.Errorf("GOOGLE_API_KEY environment variable is required for Google embeddings")
		}
		return embeddings.NewGoogleEmbedder(apiKey, embeddings.GoogleModel(model)), nil
	case config.ProviderOllama:
		return embeddings.NewOllamaEmbedder(model, 768, os.Getenv("OLLAMA_HOST")), nil
	default:
		apiKey := os.Getenv(config.APIKeyEnvVar(config.ProviderOpenAI))
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is required for OpenAI embeddings")
		}
		return embeddings.NewOpenAIEmbedder(apiKey, embeddings.OpenAIModel(model)), nil
	}
}

// createLLMProviderFromConfig creates an LLM provider based on config
// settings, rate limited when rate_limit_rpm is set.
func createLLMProviderFromConfig(cfg *config.Config) (llm.Provider, error) {
	p, err := llm.NewProvider(string(cfg.Provider), cfg.Model)
	if err != nil {
		return nil, err
	}
	if cfg.RateLimitRPM > 0 {
		return llm.NewRateLimitedProvider(p, cfg.RateLimitRPM), nil
	}
	return p, nil
}

// app holds everything a command needs to answer questions.
type app struct {
	cfg      *config.Config
	tracker  *ingest.Tracker
	pipeline *rag.Pipeline
	db       *db.DB
	audit    *audit.Store
	logger   *slog.Logger
}

func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
}

// newApp wires the pipeline from the config. Credentials are checked
// before anything touches the notes tree.
func newApp(cfg *config.Config) (*app, error) {
	if err := cfg.CheckCredentials(); err != nil {
		return nil, err
	}
	logger := slog.Default()

	database, err := db.Open(filepath.Join(cfg.DataDir, db.FileName))
	if err != nil {
		return nil, err
	}
	auditStore := audit.NewStore(database)

	embedder, err := createEmbedderFromConfig(cfg)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	provider, err := createLLMProviderFromConfig(cfg)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("creating LLM provider: %w", err)
	}
	ch, err := chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		database.Close()
		return nil, err
	}

	tracker := ingest.NewTracker(ingest.Options{
		Layout:  layoutFromConfig(cfg),
		Include: cfg.Include,
		Exclude: cfg.Exclude,
		Audit:   auditStore,
		Logger:  logger,
	})
	builder, err := indexer.NewBuilder(indexer.Options{
		Chunker:     ch,
		Embedder:    embedder,
		Concurrency: cfg.MaxConcurrency,
		Reporter:    progress.NewReporter(),
		Audit:       auditStore,
		Logger:      logger,
	})
	if err != nil {
		database.Close()
		return nil, err
	}

	model := rag.ModelSettings{Model: cfg.Model, Temperature: float64(cfg.Temperature)}
	pipeline, err := rag.New(rag.Options{
		Tracker:      tracker,
		Builder:      builder,
		Provider:     provider,
		Rewrite:      model,
		Answer:       model,
		SearchK:      cfg.SearchK,
		Language:     cfg.AnswerLanguage,
		PersistIndex: cfg.PersistIndex,
		Audit:        auditStore,
		Logger:       logger,
	})
	if err != nil {
		database.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		tracker:  tracker,
		pipeline: pipeline,
		db:       database,
		audit:    auditStore,
		logger:   logger,
	}, nil
}

// initialize ingests the notes and builds the indexes, reporting topics
// that failed to build.
func (a *app) initialize(ctx context.Context) ([]string, error) {
	topics, err := a.pipeline.Initialize(ctx)
	if err != nil {
		return nil, err
	}
	if report := a.pipeline.BuildReport(); report != nil {
		for _, e := range report.Errors {
			a.logger.Warn("topic skipped", logging.Err(e))
		}
	}
	return topics, nil
}

// agentConfig returns the agent settings from cfg.
func (a *app) agentConfig() agent.Config {
	return agent.Config{
		Topics:      a.cfg.Topics,
		Model:       a.cfg.ResolvedAgentModel(),
		Temperature: float64(a.cfg.Temperature),
		MaxSteps:    a.cfg.MaxAgentSteps,
		Language:    a.cfg.AnswerLanguage,
		Usage:       a.pipeline.Usage(),
		Audit:       a.audit,
		Logger:      a.logger,
	}
}

// printUsage writes the model usage of this run to stderr.
func (a *app) printUsage() {
	calls, in, out, cost := a.pipeline.Usage().Totals()
	if calls == 0 {
		return
	}
	fmt.Fprintf(os.Stderr, "\n%d model call(s), ~%d input / ~%d output tokens, ~$%.4f\n", calls, in, out, cost)
}
