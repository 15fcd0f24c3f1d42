package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/ziadkadry99/minutes/internal/audit"
	"github.com/ziadkadry99/minutes/internal/chunker"
	"github.com/ziadkadry99/minutes/internal/corpus"
	"github.com/ziadkadry99/minutes/internal/embeddings"
	"github.com/ziadkadry99/minutes/internal/logging"
	"github.com/ziadkadry99/minutes/internal/progress"
	"github.com/ziadkadry99/minutes/internal/vectordb"
)

// Options configures a Builder.
type Options struct {
	Chunker     *chunker.Chunker
	Embedder    embeddings.Embedder
	Concurrency int
	Reporter    progress.Reporter
	Audit       audit.Recorder
	Logger      *slog.Logger
}

// Builder turns topic corpora into a vectordb.Set.
type Builder struct {
	chunker     *chunker.Chunker
	embedder    embeddings.Embedder
	concurrency int
	reporter    progress.Reporter
	audit       audit.Recorder
	logger      *slog.Logger
}

// NewBuilder creates a Builder. Embedder is required; a nil Chunker selects
// the default window size and overlap.
func NewBuilder(opts Options) (*Builder, error) {
	if opts.Embedder == nil {
		return nil, fmt.Errorf("indexer: embedder is required")
	}
	b := &Builder{
		chunker:     opts.Chunker,
		embedder:    opts.Embedder,
		concurrency: opts.Concurrency,
		reporter:    opts.Reporter,
		audit:       opts.Audit,
		logger:      logging.OrDefault(opts.Logger),
	}
	if b.chunker == nil {
		c, err := chunker.New(chunker.DefaultSize, chunker.DefaultOverlap)
		if err != nil {
			return nil, err
		}
		b.chunker = c
	}
	if b.concurrency < 1 {
		b.concurrency = 4
	}
	if b.audit == nil {
		b.audit = audit.Nop{}
	}
	return b, nil
}

// Build chunks and embeds every topic, then assembles the global index from
// the vectors already computed for the topics. Topics that fail to embed are
// reported in BuildReport.Errors and left out. ErrEmptyIndex is returned
// when the global index would hold no chunks.
func (b *Builder) Build(ctx context.Context, docs map[string][]corpus.RawDocument) (*vectordb.Set, *BuildReport, error) {
	start := time.Now()
	report := &BuildReport{}

	topics := make([]string, 0, len(docs))
	for t := range docs {
		topics = append(topics, t)
	}
	sort.Strings(topics)

	jobs := make([]topicJob, 0, len(topics))
	for _, t := range topics {
		jobs = append(jobs, topicJob{
			topic:     t,
			documents: len(docs[t]),
			chunks:    b.chunker.SplitAll(docs[t]),
		})
	}

	if b.reporter != nil {
		b.reporter.Start(len(jobs))
	}
	batcher := NewBatcher(b.concurrency, b.embedder, func(done, total int, topic string) {
		if b.reporter != nil {
			b.reporter.Update(done, "Embedding "+topic)
		}
		b.logger.Debug("topic embedded", "topic", topic, "done", done, "total", total)
	})
	batch := batcher.Process(ctx, jobs)
	if b.reporter != nil {
		b.reporter.Finish()
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	report.Errors = append(report.Errors, batch.Errors...)

	set := vectordb.NewSet(b.embedder)
	var globalChunks []corpus.Chunk
	var globalVectors [][]float32

	for _, e := range batch.Topics {
		if e == nil {
			continue
		}
		if err := b.addTopic(ctx, set, e); err != nil {
			report.Errors = append(report.Errors, &BuildError{Topic: e.topic, Err: err})
			continue
		}
		report.Topics = append(report.Topics, TopicStats{
			Topic:     e.topic,
			Documents: e.documents,
			Chunks:    len(e.chunks),
		})
		globalChunks = append(globalChunks, e.chunks...)
		globalVectors = append(globalVectors, e.vectors...)
	}

	for _, err := range report.Errors {
		b.logger.Warn("topic index failed", logging.Err(err))
	}

	report.GlobalChunks = len(globalChunks)
	report.Duration = time.Since(start)
	if len(globalChunks) == 0 {
		b.record(ctx, report, ErrEmptyIndex)
		return nil, report, ErrEmptyIndex
	}

	global, err := set.NewIndex(vectordb.GlobalName)
	if err != nil {
		return nil, report, err
	}
	if err := global.Add(ctx, globalChunks, globalVectors); err != nil {
		b.record(ctx, report, err)
		return nil, report, fmt.Errorf("building global index: %w", err)
	}
	set.SetGlobal(global)

	report.Duration = time.Since(start)
	b.logger.Info("index built",
		"topics", len(report.Topics),
		"chunks", report.GlobalChunks,
		"failed", len(report.Errors),
		"duration", report.Duration.Round(time.Millisecond))
	b.record(ctx, report, nil)
	return set, report, nil
}

func (b *Builder) addTopic(ctx context.Context, set *vectordb.Set, e *embedded) error {
	ix, err := set.NewIndex(e.topic)
	if err != nil {
		return err
	}
	if err := ix.Add(ctx, e.chunks, e.vectors); err != nil {
		if dropErr := set.Drop(e.topic); dropErr != nil {
			b.logger.Warn("dropping failed topic index", "topic", e.topic, logging.Err(dropErr))
		}
		return err
	}
	set.PutTopic(ix)
	return nil
}

func (b *Builder) record(ctx context.Context, report *BuildReport, err error) {
	entry := audit.Entry{
		Action:  audit.ActionIndexBuild,
		Scope:   audit.ScopeCorpus,
		Summary: fmt.Sprintf("%d topics, %d chunks", len(report.Topics), report.GlobalChunks),
	}
	if err != nil {
		entry.Failed = true
		entry.Detail = err.Error()
	} else if len(report.Errors) > 0 {
		entry.Detail = fmt.Sprintf("%d topics failed", len(report.Errors))
	}
	if aerr := b.audit.Log(ctx, entry); aerr != nil {
		b.logger.Warn("audit log failed", "action", entry.Action, logging.Err(aerr))
	}
}
