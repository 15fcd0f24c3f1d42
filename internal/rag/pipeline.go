package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/ziadkadry99/minutes/internal/audit"
	"github.com/ziadkadry99/minutes/internal/indexer"
	"github.com/ziadkadry99/minutes/internal/ingest"
	"github.com/ziadkadry99/minutes/internal/llm"
	"github.com/ziadkadry99/minutes/internal/logging"
	"github.com/ziadkadry99/minutes/internal/vectordb"
)

// DefaultSearchK is the number of chunks retrieved per question.
const DefaultSearchK = 2

// State is the lifecycle state of a Pipeline.
type State int

const (
	StateUninitialized State = iota
	StateIngesting
	StateIndexBuilding
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateIngesting:
		return "ingesting"
	case StateIndexBuilding:
		return "index_building"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Options configures a Pipeline.
type Options struct {
	Tracker  *ingest.Tracker
	Builder  *indexer.Builder
	Provider llm.Provider

	// Rewrite and Answer select the model for each step. Empty models
	// fall back to the provider default.
	Rewrite ModelSettings
	Answer  ModelSettings

	SearchK  int
	Language string

	// PersistIndex writes a snapshot of the built indexes to the layout's
	// index dir. The snapshot is never read back by Initialize.
	PersistIndex bool

	Audit  audit.Recorder
	Logger *slog.Logger
}

// Pipeline owns the topic indexes and moves through
// Uninitialized, Ingesting, IndexBuilding and Ready, or Failed.
type Pipeline struct {
	tracker  *ingest.Tracker
	builder  *indexer.Builder
	provider llm.Provider
	rewrite  ModelSettings
	answer   ModelSettings
	k        int
	language string
	persist  bool
	audit    audit.Recorder
	logger   *slog.Logger
	usage    *llm.Usage

	mu     sync.RWMutex
	state  State
	err    error
	set    *vectordb.Set
	ingest *ingest.Result
	report *indexer.BuildReport

	initMu  sync.Mutex
	session *Session
}

// New creates a pipeline in the Uninitialized state.
func New(opts Options) (*Pipeline, error) {
	if opts.Tracker == nil || opts.Builder == nil || opts.Provider == nil {
		return nil, errors.New("rag: tracker, builder and provider are required")
	}
	p := &Pipeline{
		tracker:  opts.Tracker,
		builder:  opts.Builder,
		provider: opts.Provider,
		rewrite:  opts.Rewrite,
		answer:   opts.Answer,
		k:        opts.SearchK,
		language: opts.Language,
		persist:  opts.PersistIndex,
		audit:    opts.Audit,
		logger:   logging.OrDefault(opts.Logger),
		usage:    &llm.Usage{},
	}
	if p.k <= 0 {
		p.k = DefaultSearchK
	}
	if p.language == "" {
		p.language = DefaultLanguage
	}
	if p.audit == nil {
		p.audit = audit.Nop{}
	}
	p.session = p.NewSession()
	return p, nil
}

// Initialize resets the processed markers, ingests the notes tree and
// rebuilds every index from scratch. It returns the topics that have an
// index. With no documents, or no chunks, the pipeline ends in Failed.
func (p *Pipeline) Initialize(ctx context.Context) ([]string, error) {
	p.initMu.Lock()
	defer p.initMu.Unlock()

	p.setState(StateIngesting, nil)
	if err := p.tracker.Reset(ctx); err != nil {
		return nil, p.fail(fmt.Errorf("resetting corpus: %w", err))
	}
	res, err := p.tracker.Ingest(ctx)
	if err != nil {
		return nil, p.fail(fmt.Errorf("ingesting notes: %w", err))
	}
	p.mu.Lock()
	p.ingest = res
	p.mu.Unlock()

	if len(res.Topics()) == 0 {
		return nil, p.fail(ErrNoTopics)
	}

	p.setState(StateIndexBuilding, nil)
	set, report, err := p.builder.Build(ctx, res.Documents)
	p.mu.Lock()
	p.report = report
	p.mu.Unlock()
	if err != nil {
		return nil, p.fail(fmt.Errorf("building indexes: %w", err))
	}

	dir := p.tracker.Layout().IndexPath()
	if p.persist {
		if err := set.Persist(dir); err != nil {
			p.logger.Warn("index snapshot not written", logging.Err(err))
		}
	}
	if err := p.builder.NewManifest(report).Save(dir); err != nil {
		p.logger.Warn("index manifest not written", logging.Err(err))
	}

	p.mu.Lock()
	p.set = set
	p.mu.Unlock()
	p.setState(StateReady, nil)

	topics := set.TopicNames()
	p.logger.Info("pipeline ready",
		"topics", len(topics),
		"documents", res.DocumentCount(),
		"chunks", report.GlobalChunks)
	return topics, nil
}

func (p *Pipeline) setState(s State, err error) {
	p.mu.Lock()
	p.state = s
	p.err = err
	if s != StateReady {
		p.set = nil
	}
	p.mu.Unlock()
	p.logger.Debug("pipeline state", "state", s.String())
}

func (p *Pipeline) fail(err error) error {
	p.setState(StateFailed, err)
	p.logger.Error("pipeline failed", logging.Err(err))
	return err
}

// State returns the current state and, in Failed, the error that caused it.
func (p *Pipeline) State() (State, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state, p.err
}

// Topics returns the indexed topics, nil unless Ready.
func (p *Pipeline) Topics() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.set == nil {
		return nil
	}
	return p.set.TopicNames()
}

// IngestResult returns the result of the last ingestion, if any.
func (p *Pipeline) IngestResult() *ingest.Result {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ingest
}

// BuildReport returns the report of the last index build, if any.
func (p *Pipeline) BuildReport() *indexer.BuildReport {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.report
}

// Usage returns the token usage of every model call made by the pipeline.
func (p *Pipeline) Usage() *llm.Usage { return p.usage }

// Provider returns the language model used for answers.
func (p *Pipeline) Provider() llm.Provider { return p.provider }

// retriever resolves the index of topic, or the global index when topic is
// empty, at call time so chains follow re-initialization.
func (p *Pipeline) retriever(topic string) (vectordb.Retriever, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.state != StateReady || p.set == nil {
		return nil, ErrUninitialized
	}
	if topic == "" {
		return p.set.Global(), nil
	}
	ix, ok := p.set.Topic(topic)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}
	return ix, nil
}

// Search runs raw retrieval without the model.
func (p *Pipeline) Search(ctx context.Context, topic, query string, k int) ([]vectordb.SearchResult, error) {
	r, err := p.retriever(topic)
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		k = p.k
	}
	return r.Retrieve(ctx, query, k)
}

// Chain builds a chain over topic (empty for the global index) that
// appends to history. The topic must exist when the chain is built.
func (p *Pipeline) Chain(topic string, history *History) (*Chain, error) {
	if _, err := p.retriever(topic); err != nil {
		return nil, err
	}
	return &Chain{
		topic:       topic,
		resolve:     func() (vectordb.Retriever, error) { return p.retriever(topic) },
		rewriter:    NewRewriter(p.provider, p.rewrite, p.language, p.usage),
		synthesizer: NewSynthesizer(p.provider, p.answer, p.language, p.usage),
		history:     history,
		k:           p.k,
		logger:      p.logger,
	}, nil
}

// Query answers text over the global index using the pipeline's default
// session. Only valid in Ready.
func (p *Pipeline) Query(ctx context.Context, text string) (string, error) {
	a, err := p.session.Ask(ctx, text, nil)
	if err != nil {
		return "", err
	}
	return a.Text, nil
}

// ResetHistory clears the default session's history.
func (p *Pipeline) ResetHistory() {
	p.session.ResetHistory(context.Background())
}

// DefaultSession returns the session used by Query.
func (p *Pipeline) DefaultSession() *Session { return p.session }

// NewSession returns a session with its own empty history over the same
// indexes.
func (p *Pipeline) NewSession() *Session {
	return p.RestoreSession(uuid.NewString(), NewHistory())
}

// RestoreSession wraps an existing history under a known id.
func (p *Pipeline) RestoreSession(id string, history *History) *Session {
	return &Session{id: id, p: p, history: history}
}
